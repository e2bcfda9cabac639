package online

import (
	"fmt"
	"net/netip"
)

type (
	// SessionState is the lifecycle state of a named session.
	SessionState uint8

	// SessionType tags which backend a SessionInfo describes.
	SessionType uint8

	// PeerAddress addresses a host through the backend's peer-to-peer relay
	// rather than a routable IP.
	PeerAddress struct {
		ID   ID
		Port uint16
	}

	// SessionInfo is the backend-specific location of a session.
	SessionInfo struct {
		Type SessionType

		// HostAddr is the routable address of the host, if known.
		HostAddr netip.AddrPort

		// PeerAddr is the relay address of the host, if known.
		PeerAddr PeerAddress

		// SessionID names the lobby or game server backing the session.
		SessionID ID
	}

	// Session is the part of a session visible to searchers.
	Session struct {
		OwningUserID   ID
		OwningUserName string

		NumOpenPrivateConnections int32
		NumOpenPublicConnections  int32

		Settings SessionSettings
		Info     SessionInfo
	}

	// NamedSession is a session tracked locally under a caller-chosen name.
	NamedSession struct {
		Session

		Name string

		// HostingPlayerNum is the local player slot that created the session.
		HostingPlayerNum int

		// Hosting is true when this process created the session.
		Hosting bool

		RegisteredPlayers []ID

		State SessionState
	}
)

const (
	NoSession SessionState = iota
	Creating
	Pending
	InProgress
	Ending
	Ended
	Destroying
)

const (
	SessionTypeNone SessionType = iota
	SessionTypeLobby
	SessionTypeAdvertisedHost
	SessionTypeAdvertisedClient
	SessionTypeLAN
)

// IsValid reports whether the peer address names a relay endpoint.
func (p PeerAddress) IsValid() bool {
	return p.ID.IsValid()
}

// String returns the peer address in connect-string form.
func (p PeerAddress) String() string {
	return fmt.Sprintf("p2p.%s:%d", p.ID, p.Port)
}

// IsValid applies the type-dependent validity rule: LAN sessions need a
// routable host address, backend sessions need a relay address and an id.
func (i SessionInfo) IsValid() bool {
	switch i.Type {
	case SessionTypeLAN:
		return i.HostAddr.IsValid() && i.HostAddr.Port() != 0
	case SessionTypeLobby, SessionTypeAdvertisedHost, SessionTypeAdvertisedClient:
		return i.PeerAddr.IsValid() && i.SessionID.IsValid()
	default:
		return false
	}
}

// ConnectString returns the address a client should connect to, preferring
// a routable address over the relay address.
func (i SessionInfo) ConnectString() (string, error) {
	if i.HostAddr.IsValid() && !i.HostAddr.Addr().IsUnspecified() {
		return i.HostAddr.String(), nil
	}

	if i.PeerAddr.IsValid() {
		return i.PeerAddr.String(), nil
	}

	return "", ErrInvalidSessionInfo
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	c := s
	c.Settings = s.Settings.Clone()

	return c
}

// Clone returns a deep copy.
func (s NamedSession) Clone() NamedSession {
	c := s
	c.Session = s.Session.Clone()
	c.RegisteredPlayers = append([]ID(nil), s.RegisteredPlayers...)

	return c
}

// IsRegistered reports whether id is in the registered player list.
func (s *NamedSession) IsRegistered(id ID) bool {
	for _, p := range s.RegisteredPlayers {
		if p == id {
			return true
		}
	}

	return false
}
