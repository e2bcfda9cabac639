package online

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
)

type (
	// ID is an opaque 64-bit backend identifier naming a user, a lobby or a
	// game server login. Equality is defined over the raw bits.
	//
	// Layout, high to low: universe (8 bits), account type (4 bits),
	// instance (20 bits), account number (32 bits).
	ID uint64

	// AccountType is the kind of account an ID names.
	AccountType uint8
)

const (
	AccountInvalid AccountType = iota
	AccountIndividual
	AccountMultiseat
	AccountGameServer
	AccountAnonGameServer
	AccountPending
	AccountContentServer
	AccountClan
	AccountChat
	AccountConsoleUser
	AccountAnonUser
)

const (
	// UniversePublic is the only universe this subsystem issues identities in.
	UniversePublic uint8 = 1

	// InstanceDesktop is the instance used for individual accounts.
	InstanceDesktop uint32 = 1

	// InstanceFlagLobby marks a chat account as a matchmaking lobby.
	InstanceFlagLobby uint32 = (instanceMask + 1) >> 2

	instanceMask = 0x000FFFFF
)

// InvalidID is the zero identity.
const InvalidID ID = 0

// NewID packs the supplied fields into an ID.
func NewID(universe uint8, typ AccountType, instance, account uint32) ID {
	return ID(uint64(universe)<<56 |
		uint64(typ&0xF)<<52 |
		uint64(instance&instanceMask)<<32 |
		uint64(account))
}

// NewUserID returns the identity of an individual user account.
func NewUserID(account uint32) ID {
	return NewID(UniversePublic, AccountIndividual, InstanceDesktop, account)
}

// NewLobbyID returns the identity of a matchmaking lobby.
func NewLobbyID(account uint32) ID {
	return NewID(UniversePublic, AccountChat, InstanceFlagLobby, account)
}

// NewGameServerID returns the identity of a game server login.
func NewGameServerID(account uint32) ID {
	return NewID(UniversePublic, AccountGameServer, 0, account)
}

// RandomID returns a fresh identity of the given account type with a random
// account number. LAN sessions use this in place of a backend-issued id.
func RandomID(typ AccountType) (ID, error) {
	b := make([]byte, 4)
	for {
		if _, err := rand.Read(b); err != nil {
			return InvalidID, err
		}

		if account := binary.BigEndian.Uint32(b); account != 0 {
			instance := uint32(0)
			if typ == AccountIndividual {
				instance = InstanceDesktop
			}

			return NewID(UniversePublic, typ, instance, account), nil
		}
	}
}

// ParseID parses the decimal form produced by ID.String.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return InvalidID, fmt.Errorf("parse id %q: %w", s, err)
	}

	return ID(v), nil
}

// Universe returns the universe bits.
func (id ID) Universe() uint8 {
	return uint8(id >> 56)
}

// AccountType returns the account type bits.
func (id ID) AccountType() AccountType {
	return AccountType((id >> 52) & 0xF)
}

// Instance returns the instance bits.
func (id ID) Instance() uint32 {
	return uint32(id>>32) & instanceMask
}

// Account returns the account number.
func (id ID) Account() uint32 {
	return uint32(id)
}

// IsValid reports whether the id names a real account.
func (id ID) IsValid() bool {
	if id == InvalidID || id.Universe() == 0 {
		return false
	}

	switch id.AccountType() {
	case AccountInvalid:
		return false
	case AccountIndividual:
		return id.Account() != 0 && id.Instance() <= 4
	case AccountGameServer:
		return id.Account() != 0
	default:
		return true
	}
}

// IsLobby reports whether the id names a matchmaking lobby.
func (id ID) IsLobby() bool {
	return id.AccountType() == AccountChat && id.Instance()&InstanceFlagLobby != 0
}

// IsGameServer reports whether the id names a game server login.
func (id ID) IsGameServer() bool {
	t := id.AccountType()
	return t == AccountGameServer || t == AccountAnonGameServer
}

// String returns the decimal form of the id.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}
