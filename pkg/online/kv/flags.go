package kv

import "github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"

// flagFields lists the session flags in bit order, low bit first. The order
// is part of the wire contract.
func flagFields(s *online.SessionSettings) []*bool {
	return []*bool{
		&s.ShouldAdvertise,
		&s.AllowJoinInProgress,
		&s.IsLANMatch,
		&s.IsDedicated,
		&s.UsesStats,
		&s.AllowInvites,
		&s.UsesPresence,
		&s.AllowJoinViaPresence,
		&s.AllowJoinViaPresenceFriendsOnly,
		&s.AntiCheatProtected,
	}
}

// NumFlags is the number of booleans packed by PackFlags.
const NumFlags = 10

// PackFlags packs the boolean fields of s into a bitfield.
func PackFlags(s online.SessionSettings) uint32 {
	var bits uint32
	for i, f := range flagFields(&s) {
		if *f {
			bits |= 1 << i
		}
	}

	return bits
}

// UnpackFlags sets the boolean fields of s from a bitfield produced by
// PackFlags. Bits above NumFlags are ignored.
func UnpackFlags(bits uint32, s *online.SessionSettings) {
	for i, f := range flagFields(s) {
		*f = bits&(1<<i) != 0
	}
}
