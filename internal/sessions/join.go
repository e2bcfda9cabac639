package sessions

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/async"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online/kv"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

type (
	// joinLobbyTask enters the lobby of a search result. The lobby enter
	// supplies the final settings of the session.
	joinLobbyTask struct {
		async.BaseTask
		m      *Manager
		name   string
		gen    uint64
		lobby  online.ID
		timer  async.InactivityTimer
		call   *backend.Call[backend.LobbyEnter]
		enter  backend.LobbyEnter
		err    error
		result online.JoinResult
	}

	// friendLobbyTask refreshes the lobby a friend is in.
	friendLobbyTask struct {
		async.BaseTask
		m            *Manager
		id           uuid.UUID
		localUserNum int
		lobby        online.ID
		logger       *logrus.Entry
		timer        async.InactivityTimer
		inbox        *lobbyInbox
		results      []online.SearchResult
	}

	// friendServerTask queries the rules of the server a friend plays on.
	friendServerTask struct {
		async.BaseTask
		m            *Manager
		localUserNum int
		addr         netip.AddrPort
		logger       *logrus.Entry
		timer        async.InactivityTimer
		query        backend.ServerQuery
		rules        rulesInbox
		seen         int
		results      []online.SearchResult
	}
)

// presenceConnect is the rich presence key friends join through.
const presenceConnect = "connect"

// JoinSession joins the session of a search result under name. Lobbies are
// entered asynchronously; advertised and LAN sessions are joined at once.
func (m *Manager) JoinSession(localUserNum int, name string, result online.SearchResult) error {
	if m.sessions.exists(name) {
		m.sessionLogger(name).Warn("cannot join, a session of that name exists")
		m.OnJoinSessionComplete.Broadcast(JoinOutcome{Name: name, Result: online.JoinAlreadyInSession})

		return online.ErrSessionExists
	}

	if !result.Session.Info.IsValid() {
		m.sessionLogger(name).Warn("cannot join a search result without a valid address")
		m.OnJoinSessionComplete.Broadcast(JoinOutcome{Name: name, Result: online.JoinCouldNotRetrieveAddress})

		return online.ErrInvalidSessionInfo
	}

	s := &online.NamedSession{
		Session:          result.Session.Clone(),
		Name:             name,
		HostingPlayerNum: localUserNum,
		State:            online.Pending,
	}

	switch s.Info.Type {
	case online.SessionTypeLobby:
		gen, _ := m.addSession(s)
		m.runner.Enqueue(&joinLobbyTask{
			m:     m,
			name:  name,
			gen:   gen,
			lobby: s.Info.SessionID,
			timer: m.timer(),
		})

		return nil

	case online.SessionTypeAdvertisedHost, online.SessionTypeAdvertisedClient:
		s.Info.Type = online.SessionTypeAdvertisedClient

		connect, err := s.Info.ConnectString()
		if err != nil {
			m.OnJoinSessionComplete.Broadcast(JoinOutcome{Name: name, Result: online.JoinCouldNotRetrieveAddress})
			return err
		}

		m.addSession(s)
		m.svc.Friends.SetRichPresence(presenceConnect, connect)
	default:
		m.addSession(s)
	}

	m.registerLocalPlayers(s)
	m.sessionLogger(name).WithField("type", s.Info.Type.String()).Info("session joined")
	m.OnJoinSessionComplete.Broadcast(JoinOutcome{Name: name, Result: online.JoinSuccess})

	return nil
}

func (t *joinLobbyTask) String() string { return "join lobby" }

func (t *joinLobbyTask) Tick(elapsed time.Duration) {
	if t.call == nil {
		t.call = t.m.svc.Lobbies.JoinLobby(t.lobby)
	}

	enter, done, err := t.call.Poll()
	if !done {
		if t.timer.Advance(elapsed) {
			t.err = errTimedOut
			t.result = online.JoinUnknownError
			t.Complete(false)
		}

		return
	}

	if err != nil {
		t.err = err
		t.result = joinResult(err)
		t.Complete(false)

		return
	}

	t.enter = enter
	t.result = online.JoinSuccess
	t.Complete(true)
}

// joinResult maps a failed lobby enter onto a join result.
func joinResult(err error) online.JoinResult {
	switch backend.ResultOf(err) {
	case backend.ResultFull:
		return online.JoinSessionIsFull
	case backend.ResultFileNotFound, backend.ResultAccessDenied:
		return online.JoinSessionDoesNotExist
	default:
		return online.JoinUnknownError
	}
}

func (t *joinLobbyTask) Finalize() {
	logger := t.m.sessionLogger(t.name).
		WithFields(logrus.Fields{
			"task":  t.String(),
			"lobby": t.lobby.String(),
		})

	if !t.WasSuccessful() {
		logger.
			WithField("error", t.err.Error()).
			Warn("error joining lobby")

		t.m.removeSessionGen(t.name, t.gen)

		return
	}

	local := t.m.svc.Account.LocalUser()
	settings, skipped, err := kv.ReadSession(t.enter.Data)
	if err != nil {
		logger.
			WithField("error", err.Error()).
			Warn("lobby metadata is invalid, keeping the search result settings")
	} else if len(skipped) > 0 {
		logger.WithField("keys", skipped).Debug("skipping undecodable settings")
	}

	var (
		s     online.NamedSession
		alive bool
	)

	t.m.sessions.updateGen(t.name, t.gen, func(ns *online.NamedSession) {
		if ns.State == online.Destroying {
			return
		}

		alive = true

		if err == nil {
			presence := ns.Settings.UsesPresence
			ns.Settings = settings.Settings
			ns.Settings.UsesPresence = presence
			ns.NumOpenPublicConnections = settings.NumOpenPublicConnections
			ns.NumOpenPrivateConnections = settings.NumOpenPrivateConnections

			if settings.Info.PeerAddr.IsValid() {
				ns.Info.PeerAddr = settings.Info.PeerAddr
			}
		}

		if t.enter.Owner.IsValid() {
			ns.OwningUserID = t.enter.Owner
		}

		s = ns.Clone()
	})

	if !alive {
		logger.Info("session destroyed while joining, leaving lobby")
		t.m.runner.Enqueue(newLeaveLobbyTask(t.m, t.lobby))
		t.result = online.JoinUnknownError

		return
	}

	var members []online.ID
	for _, id := range t.enter.Members {
		if id != local {
			members = append(members, id)
		}
	}

	t.m.register(t.name, members, false)
	t.m.registerLocalPlayers(&s)

	logger.WithField("members", len(t.enter.Members)).Info("lobby joined")
}

func (t *joinLobbyTask) TriggerDelegates() {
	t.m.OnJoinSessionComplete.Broadcast(JoinOutcome{Name: t.name, Result: t.result})
}

// FindFriendSession looks up the session a friend is playing in. The result
// is delivered through OnFindFriendSessionComplete.
func (m *Manager) FindFriendSession(localUserNum int, friend online.ID) error {
	logger := m.logger.WithField("friend", friend.String())

	game, ok := m.svc.Friends.FriendGame(friend)
	switch {
	case ok && game.Lobby.IsValid() && game.Lobby.IsLobby():
		id := uuid.New()
		m.runner.Enqueue(&friendLobbyTask{
			m:            m,
			id:           id,
			localUserNum: localUserNum,
			lobby:        game.Lobby,
			logger:       logger.WithField("task", "friend lobby"),
			timer:        m.timer(),
		})

	case ok && game.Server.IsValid():
		m.runner.Enqueue(&friendServerTask{
			m:            m,
			localUserNum: localUserNum,
			addr:         game.Server,
			logger:       logger.WithField("task", "friend server"),
			timer:        m.timer(),
		})

	default:
		logger.Warn("friend is not in a joinable session")
		m.OnFindFriendSessionComplete.Broadcast(FriendOutcome{LocalUserNum: localUserNum})

		return online.ErrFriendNotInSession
	}

	return nil
}

func (t *friendLobbyTask) String() string { return "friend lobby" }

func (t *friendLobbyTask) Tick(elapsed time.Duration) {
	if t.inbox == nil {
		t.inbox = t.m.router.open(t.id, []online.ID{t.lobby})

		if err := t.m.svc.Lobbies.RequestLobbyData(t.lobby); err != nil {
			t.logger.
				WithField("error", err.Error()).
				Warn("error requesting friend lobby data")
			t.finish(false)

			return
		}
	}

	received, ready := t.inbox.progress()
	if received > 0 {
		for _, id := range ready {
			if r, ok := t.m.lobbyResult(id, t.logger); ok {
				t.results = append(t.results, r)
			}
		}

		t.finish(len(t.results) > 0)

		return
	}

	if t.timer.Advance(elapsed) {
		t.logger.Warn("friend lobby data request timed out")
		t.finish(false)
	}
}

func (t *friendLobbyTask) finish(ok bool) {
	t.m.router.close(t.id)
	t.Complete(ok)
}

func (t *friendLobbyTask) Finalize() {}

func (t *friendLobbyTask) TriggerDelegates() {
	t.m.OnFindFriendSessionComplete.Broadcast(FriendOutcome{
		LocalUserNum: t.localUserNum,
		Success:      t.WasSuccessful(),
		Results:      t.results,
	})
}

func (t *friendServerTask) String() string { return "friend server" }

func (t *friendServerTask) Tick(elapsed time.Duration) {
	if t.query == nil {
		t.query = t.m.svc.ServerBrowser.RequestRules(t.addr, &t.rules)
	}

	rules, n, failed, complete := t.rules.state()
	if n > t.seen {
		t.seen = n
		t.timer.Reset()
	}

	switch {
	case failed:
		t.logger.Warn("friend server failed to answer rules query")
		t.finish(false)

	case complete:
		d := backend.ServerDetails{QueryAddr: t.addr}
		if r, ok := t.m.serverResult(d, rules, t.logger); ok {
			t.results = append(t.results, r)
		}

		t.finish(len(t.results) > 0)

	case t.timer.Advance(elapsed):
		t.logger.Warn("friend server rules query timed out")
		t.finish(false)
	}
}

func (t *friendServerTask) finish(ok bool) {
	t.query.Cancel()
	t.Complete(ok)
}

func (t *friendServerTask) Finalize() {}

func (t *friendServerTask) TriggerDelegates() {
	t.m.OnFindFriendSessionComplete.Broadcast(FriendOutcome{
		LocalUserNum: t.localUserNum,
		Success:      t.WasSuccessful(),
		Results:      t.results,
	})
}

// SendSessionInviteToFriend invites friend to the named session: to the
// lobby for lobby sessions, with the connect string otherwise.
func (m *Manager) SendSessionInviteToFriend(localUserNum int, name string, friend online.ID) error {
	s, ok := m.sessions.get(name)
	if !ok {
		return online.ErrSessionNotFound
	}

	logger := m.sessionLogger(name).
		WithFields(logrus.Fields{
			"player": localUserNum,
			"friend": friend.String(),
		})

	switch s.Info.Type {
	case online.SessionTypeLAN:
		return online.ErrUnsupported

	case online.SessionTypeLobby:
		if err := m.svc.Lobbies.InviteUserToLobby(s.Info.SessionID, friend); err != nil {
			return fmt.Errorf("invite %s to lobby: %w", friend, err)
		}

	default:
		connect, err := s.Info.ConnectString()
		if err != nil {
			return err
		}

		if err = m.svc.Friends.InviteUserToGame(friend, connect); err != nil {
			return fmt.Errorf("invite %s to game: %w", friend, err)
		}
	}

	logger.Debug("invite sent")

	return nil
}

// SendSessionInviteToFriends invites every friend, reporting every failure.
func (m *Manager) SendSessionInviteToFriends(localUserNum int, name string, friends []online.ID) error {
	var result *multierror.Error

	for _, f := range friends {
		err := m.SendSessionInviteToFriend(localUserNum, name, f)
		if err == nil {
			continue
		}

		result = multierror.Append(result, err)

		if errors.Is(err, online.ErrSessionNotFound) || errors.Is(err, online.ErrUnsupported) {
			break
		}
	}

	return result.ErrorOrNil()
}

// GetResolvedConnectString returns the address a client connects to for the
// named session.
func (m *Manager) GetResolvedConnectString(name string) (string, error) {
	s, ok := m.sessions.get(name)
	if !ok {
		return "", online.ErrSessionNotFound
	}

	return s.Info.ConnectString()
}
