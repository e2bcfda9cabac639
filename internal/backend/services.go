// Package backend describes the matchmaking backend consumed by the session
// manager.
//
// Requests return a Call that the worker polls from task ticks. Passive
// notifications are delivered to a Listener from any goroutine; receivers
// must hand them over to the game thread before touching session state.
package backend

import (
	"errors"
	"net/netip"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/hashicorp/go-multierror"
)

type (
	// LobbyType controls who can find and join a lobby.
	LobbyType uint8

	// MemberChange describes a lobby membership change.
	MemberChange uint8

	// LobbyEnter is the outcome of joining a lobby.
	LobbyEnter struct {
		Lobby   online.ID
		Owner   online.ID
		Data    map[string]string
		Members []online.ID
	}

	// ServerDetails describes an advertised server, both as announced by the
	// host and as returned by the server browser.
	ServerDetails struct {
		ServerID online.ID
		AppID    int16

		Name     string
		Map      string
		GameMode string
		Keywords string

		// Addr is the game address; QueryAddr answers rules queries.
		Addr      netip.AddrPort
		QueryAddr netip.AddrPort

		Players    int32
		MaxPlayers int32

		Dedicated  bool
		Secure     bool
		Passworded bool

		// Ping is the measured round trip, zero when unknown.
		Ping time.Duration

		// DoNotRefresh marks listings the browser considers stale.
		DoNotRefresh bool
	}

	// FriendGame is where a friend is currently playing.
	FriendGame struct {
		// Lobby is valid when the friend is in a lobby.
		Lobby online.ID

		// Server is valid when the friend is on an advertised server. It is
		// the server's query address.
		Server netip.AddrPort
	}

	// Account resolves the local user.
	Account interface {
		LocalUser() online.ID
		LocalUserName() string
		IsLoggedOn() bool
		NetworkAvailable() bool
	}

	// Lobbies is the lobby directory.
	Lobbies interface {
		CreateLobby(typ LobbyType, maxMembers int) *Call[online.ID]
		SetLobbyData(lobby online.ID, data map[string]string) error
		SetLobbyType(lobby online.ID, typ LobbyType) error
		SetLobbyJoinable(lobby online.ID, joinable bool) error

		// LobbyData returns the cached metadata of a lobby.
		LobbyData(lobby online.ID) (map[string]string, bool)
		LobbyOwner(lobby online.ID) online.ID
		LobbyMembers(lobby online.ID) []online.ID

		RequestLobbyList(filter LobbyFilter) *Call[[]online.ID]

		// RequestLobbyData refreshes the cached metadata of a lobby. The
		// outcome arrives as Listener.LobbyDataUpdated.
		RequestLobbyData(lobby online.ID) error

		JoinLobby(lobby online.ID) *Call[LobbyEnter]
		LeaveLobby(lobby online.ID) error
		InviteUserToLobby(lobby, user online.ID) error
	}

	// GameServer announces this process as an advertised server.
	GameServer interface {
		LogOn(details ServerDetails) *Call[online.ID]
		LogOff() *Call[struct{}]
		ServerLoggedOn() bool
		UpdateDetails(details ServerDetails) error
		SetRules(rules map[string]string) error
	}

	// ServerQuery is an open server browser query. Queries count against a
	// small backend limit until cancelled, even after they complete.
	ServerQuery interface {
		Cancel()
	}

	// ServerListener receives the progress of a server list query.
	ServerListener interface {
		ServerResponded(details ServerDetails)
		ServerFailedToRespond(addr netip.AddrPort)
		RefreshComplete()
	}

	// RulesListener receives the progress of a single server's rules query.
	RulesListener interface {
		RulesResponded(key, value string)
		RulesFailedToRespond()
		RulesRefreshComplete()
	}

	// ServerBrowser queries the advertised server directory.
	ServerBrowser interface {
		RequestServerList(filter ServerFilter, l ServerListener) ServerQuery
		RequestRules(queryAddr netip.AddrPort, l RulesListener) ServerQuery
	}

	// Friends is the social graph of the local user.
	Friends interface {
		FriendGame(friend online.ID) (FriendGame, bool)
		InviteUserToGame(friend online.ID, connect string) error
		SetPlayedWith(user online.ID)
		SetRichPresence(key, value string)
		RequestUserInformation(user online.ID)
	}

	// Voice registers talkers with the voice chat system.
	Voice interface {
		RegisterLocalTalker(slot int)
		RegisterRemoteTalker(user online.ID)
		UnregisterRemoteTalker(user online.ID)
		RemoveAllRemoteTalkers()
		ProcessMuteChangeNotification(slot int)
	}

	// Leaderboards flushes stats written during a session.
	Leaderboards interface {
		FlushLeaderboards(sessionName string) error
	}

	// Listener receives passive notifications. Methods may be called from any
	// goroutine.
	Listener interface {
		// LobbyDataUpdated reports refreshed metadata. member equals lobby
		// for lobby wide data.
		LobbyDataUpdated(lobby, member online.ID, ok bool)
		LobbyMemberChanged(lobby, member online.ID, change MemberChange)
		LobbyInviteReceived(from, lobby online.ID)
		JoinRequested(friend online.ID, connect string)
		ConnectionStatusChanged(status online.ConnectionStatus)
		ShutdownRequested()
	}

	// Notifier delivers passive notifications.
	Notifier interface {
		// Subscribe registers l and returns a function removing it.
		Subscribe(l Listener) func()
	}

	// Notifiers fans a subscription out to several notifiers.
	Notifiers []Notifier

	// Services bundles the backend capabilities used by the manager.
	Services struct {
		Account       Account
		Lobbies       Lobbies
		GameServer    GameServer
		ServerBrowser ServerBrowser
		Friends       Friends

		// Voice, Leaderboards and Notifier are optional.
		Voice        Voice
		Leaderboards Leaderboards
		Notifier     Notifier
	}
)

//go:generate go run golang.org/x/tools/cmd/stringer -type=LobbyType,MemberChange -output=types_string.go

const (
	LobbyPrivate LobbyType = iota
	LobbyFriendsOnly
	LobbyPublic
	LobbyInvisible
)

const (
	MemberEntered MemberChange = iota
	MemberLeft
	MemberDisconnected
	MemberKicked
)

var (
	ErrMissingAccount       = errors.New("backend services must provide an account")
	ErrMissingLobbies       = errors.New("backend services must provide lobbies")
	ErrMissingGameServer    = errors.New("backend services must provide a game server")
	ErrMissingServerBrowser = errors.New("backend services must provide a server browser")
	ErrMissingFriends       = errors.New("backend services must provide friends")
)

// Validate reports every missing required capability.
func (s Services) Validate() error {
	var result *multierror.Error

	if s.Account == nil {
		result = multierror.Append(result, ErrMissingAccount)
	}

	if s.Lobbies == nil {
		result = multierror.Append(result, ErrMissingLobbies)
	}

	if s.GameServer == nil {
		result = multierror.Append(result, ErrMissingGameServer)
	}

	if s.ServerBrowser == nil {
		result = multierror.Append(result, ErrMissingServerBrowser)
	}

	if s.Friends == nil {
		result = multierror.Append(result, ErrMissingFriends)
	}

	return result.ErrorOrNil()
}

// Subscribe subscribes l to every notifier.
func (n Notifiers) Subscribe(l Listener) func() {
	unsubs := make([]func(), 0, len(n))
	for _, notifier := range n {
		if notifier != nil {
			unsubs = append(unsubs, notifier.Subscribe(l))
		}
	}

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// LobbyTypeFor returns the lobby visibility matching settings.
func LobbyTypeFor(s online.SessionSettings) LobbyType {
	switch {
	case !s.ShouldAdvertise && !s.AllowJoinViaPresence:
		return LobbyPrivate
	case s.AllowJoinViaPresenceFriendsOnly:
		return LobbyFriendsOnly
	case s.ShouldAdvertise:
		return LobbyPublic
	default:
		return LobbyInvisible
	}
}
