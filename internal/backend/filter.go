package backend

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
)

type (
	// LobbyDistance bounds how far away returned lobbies may be.
	LobbyDistance uint8

	// NumericFilter keeps lobbies whose value at Key compares to Value.
	NumericFilter struct {
		Key   string
		Value int64
		Op    online.ComparisonOp
	}

	// StringFilter keeps lobbies whose value at Key compares to Value.
	StringFilter struct {
		Key   string
		Value string
		Op    online.ComparisonOp
	}

	// NearFilter ranks lobbies by the distance of the value at Key to Value.
	NearFilter struct {
		Key   string
		Value int64
	}

	// LobbyFilter is a lobby list request. Keys are metadata keys, already
	// encoded by the key/value codec.
	LobbyFilter struct {
		MaxResults int
		Distance   LobbyDistance
		MinSlots   int

		Numeric []NumericFilter
		Strings []StringFilter
		Near    []NearFilter
	}

	// LobbyCandidate is a lobby considered by a LobbyFilter.
	LobbyCandidate struct {
		ID        online.ID
		Data      map[string]string
		OpenSlots int
	}

	// ServerFilter is a server list request.
	ServerFilter struct {
		AppID int16

		DedicatedOnly bool
		SecureOnly    bool
		EmptyOnly     bool
		NonEmptyOnly  bool
		MinSlots      int

		Map string

		// Keywords must all appear in the server's comma separated keywords.
		Keywords []string
	}
)

const (
	DistanceClose LobbyDistance = iota
	DistanceDefault
	DistanceFar
	DistanceWorldwide
)

// Matches reports whether a lobby with data and openSlots passes every
// filter.
func (f LobbyFilter) Matches(data map[string]string, openSlots int) bool {
	if openSlots < f.MinSlots {
		return false
	}

	for _, nf := range f.Numeric {
		raw, ok := data[nf.Key]
		if !ok {
			return false
		}

		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || !compare(v, float64(nf.Value), nf.Op) {
			return false
		}
	}

	for _, sf := range f.Strings {
		raw, ok := data[sf.Key]
		if !ok {
			return false
		}

		if !compareStrings(raw, sf.Value, sf.Op) {
			return false
		}
	}

	return true
}

// Apply filters candidates, orders them by the near filters and caps the
// result count.
func (f LobbyFilter) Apply(candidates []LobbyCandidate) []online.ID {
	kept := make([]LobbyCandidate, 0, len(candidates))
	for _, c := range candidates {
		if f.Matches(c.Data, c.OpenSlots) {
			kept = append(kept, c)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		for _, nf := range f.Near {
			di, dj := nearDistance(kept[i].Data, nf), nearDistance(kept[j].Data, nf)
			if di != dj {
				return di < dj
			}
		}

		return false
	})

	if f.MaxResults > 0 && len(kept) > f.MaxResults {
		kept = kept[:f.MaxResults]
	}

	ids := make([]online.ID, len(kept))
	for i, c := range kept {
		ids[i] = c.ID
	}

	return ids
}

func nearDistance(data map[string]string, nf NearFilter) float64 {
	v, err := strconv.ParseFloat(data[nf.Key], 64)
	if err != nil {
		return math.Inf(1)
	}

	return math.Abs(v - float64(nf.Value))
}

// compare applies op as "lobby value op filter value".
func compare(v, want float64, op online.ComparisonOp) bool {
	switch op {
	case online.OpEquals, online.OpNear:
		return v == want
	case online.OpNotEquals:
		return v != want
	case online.OpGreaterThan:
		return v > want
	case online.OpGreaterThanEquals:
		return v >= want
	case online.OpLessThan:
		return v < want
	case online.OpLessThanEquals:
		return v <= want
	default:
		return false
	}
}

func compareStrings(v, want string, op online.ComparisonOp) bool {
	c := strings.Compare(v, want)

	switch op {
	case online.OpEquals, online.OpNear:
		return c == 0
	case online.OpNotEquals:
		return c != 0
	case online.OpGreaterThan:
		return c > 0
	case online.OpGreaterThanEquals:
		return c >= 0
	case online.OpLessThan:
		return c < 0
	case online.OpLessThanEquals:
		return c <= 0
	default:
		return false
	}
}

// Matches reports whether a server passes every filter.
func (f ServerFilter) Matches(d ServerDetails) bool {
	switch {
	case f.AppID != 0 && d.AppID != f.AppID:
		return false
	case f.DedicatedOnly && !d.Dedicated:
		return false
	case f.SecureOnly && !d.Secure:
		return false
	case f.EmptyOnly && d.Players > 0:
		return false
	case f.NonEmptyOnly && d.Players == 0:
		return false
	case int(d.MaxPlayers-d.Players) < f.MinSlots:
		return false
	case f.Map != "" && !strings.EqualFold(f.Map, d.Map):
		return false
	}

	if len(f.Keywords) == 0 {
		return true
	}

	have := make(map[string]bool)
	for _, k := range strings.Split(d.Keywords, ",") {
		have[strings.TrimSpace(strings.ToLower(k))] = true
	}

	for _, k := range f.Keywords {
		if !have[strings.ToLower(k)] {
			return false
		}
	}

	return true
}
