package sessions

import (
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online/kv"
	"github.com/sirupsen/logrus"
)

type (
	// listener turns backend notifications into game thread events. Lobby
	// data refreshes are also routed to the tasks waiting for them.
	listener struct {
		m *Manager
	}

	// lobbyDataEvent refreshes the settings of the joined sessions backed by
	// lobby.
	lobbyDataEvent struct {
		m       *Manager
		lobby   online.ID
		updates []SettingsUpdate
	}

	// memberEvent applies a lobby membership change to the sessions backed
	// by lobby.
	memberEvent struct {
		m       *Manager
		lobby   online.ID
		member  online.ID
		change  backend.MemberChange
		changed []PlayersOutcome
	}

	inviteEvent struct {
		m      *Manager
		invite Invite
	}

	joinRequestEvent struct {
		m       *Manager
		request JoinRequest
	}

	statusEvent struct {
		m       *Manager
		status  online.ConnectionStatus
		changed *StatusChange
	}

	shutdownEvent struct {
		m *Manager
	}
)

func (l listener) LobbyDataUpdated(lobby, member online.ID, ok bool) {
	if lobby != member {
		return
	}

	l.m.router.deliver(lobby, ok)

	if ok {
		l.m.runner.AddEvent(&lobbyDataEvent{m: l.m, lobby: lobby})
	}
}

func (l listener) LobbyMemberChanged(lobby, member online.ID, change backend.MemberChange) {
	l.m.runner.AddEvent(&memberEvent{m: l.m, lobby: lobby, member: member, change: change})
}

func (l listener) LobbyInviteReceived(from, lobby online.ID) {
	l.m.runner.AddEvent(&inviteEvent{m: l.m, invite: Invite{From: from, Lobby: lobby}})
}

func (l listener) JoinRequested(friend online.ID, connect string) {
	l.m.runner.AddEvent(&joinRequestEvent{m: l.m, request: JoinRequest{From: friend, Connect: connect}})
}

func (l listener) ConnectionStatusChanged(status online.ConnectionStatus) {
	l.m.runner.AddEvent(&statusEvent{m: l.m, status: status})
}

func (l listener) ShutdownRequested() {
	l.m.runner.AddEvent(&shutdownEvent{m: l.m})
}

// joinedLobby matches the sessions joined, not hosted, through lobby.
func joinedLobby(lobby online.ID) func(s *online.NamedSession) bool {
	return func(s *online.NamedSession) bool {
		return s.Info.Type == online.SessionTypeLobby && s.Info.SessionID == lobby
	}
}

func (e *lobbyDataEvent) String() string { return "lobby data" }

func (e *lobbyDataEvent) Finalize() {
	names := e.m.sessions.names(func(s *online.NamedSession) bool {
		return !s.Hosting && joinedLobby(e.lobby)(s)
	})
	if len(names) == 0 {
		return
	}

	logger := e.m.logger.WithField("lobby", e.lobby.String())

	data, ok := e.m.svc.Lobbies.LobbyData(e.lobby)
	if !ok {
		return
	}

	fresh, _, err := kv.ReadSession(data)
	if err != nil {
		logger.
			WithField("error", err.Error()).
			Warn("ignoring invalid lobby metadata")

		return
	}

	for _, name := range names {
		e.m.sessions.update(name, func(s *online.NamedSession) {
			presence := s.Settings.UsesPresence
			s.Settings = fresh.Settings.Clone()
			s.Settings.UsesPresence = presence
			s.NumOpenPublicConnections = fresh.NumOpenPublicConnections
			s.NumOpenPrivateConnections = fresh.NumOpenPrivateConnections

			e.updates = append(e.updates, SettingsUpdate{Name: name, Settings: s.Settings.Clone()})
		})
	}

	logger.WithField("sessions", len(e.updates)).Debug("joined session settings refreshed")
}

func (e *lobbyDataEvent) TriggerDelegates() {
	for _, u := range e.updates {
		e.m.OnSessionSettingsUpdated.Broadcast(u)
	}
}

func (e *memberEvent) String() string { return "lobby member" }

func (e *memberEvent) Finalize() {
	if e.member == e.m.svc.Account.LocalUser() {
		return
	}

	logger := e.m.logger.
		WithFields(logrus.Fields{
			"lobby":  e.lobby.String(),
			"member": e.member.String(),
			"change": e.change.String(),
		})

	for _, name := range e.m.sessions.names(joinedLobby(e.lobby)) {
		players := []online.ID{e.member}

		if e.change == backend.MemberEntered {
			if len(e.m.register(name, players, false)) > 0 {
				e.changed = append(e.changed, PlayersOutcome{Name: name, Players: players, Success: true})
			}

			continue
		}

		if len(e.m.unregister(name, players)) > 0 {
			e.changed = append(e.changed, PlayersOutcome{Name: name, Players: players, Success: true})
		}

		owner := e.m.svc.Lobbies.LobbyOwner(e.lobby)
		if owner.IsValid() {
			e.m.sessions.update(name, func(s *online.NamedSession) {
				s.OwningUserID = owner
			})
		}
	}

	logger.Debug("lobby membership changed")
}

func (e *memberEvent) TriggerDelegates() {
	for _, c := range e.changed {
		if e.change == backend.MemberEntered {
			e.m.OnRegisterPlayersComplete.Broadcast(c)
			continue
		}

		e.m.OnUnregisterPlayersComplete.Broadcast(c)
	}
}

func (e *inviteEvent) String() string { return "lobby invite" }

func (e *inviteEvent) Finalize() {
	e.m.logger.
		WithFields(logrus.Fields{
			"from":  e.invite.From.String(),
			"lobby": e.invite.Lobby.String(),
		}).
		Info("session invite received")
}

func (e *inviteEvent) TriggerDelegates() {
	e.m.OnSessionInviteReceived.Broadcast(e.invite)
}

func (e *joinRequestEvent) String() string { return "join request" }

func (e *joinRequestEvent) Finalize() {
	e.m.logger.WithField("from", e.request.From.String()).Info("session join requested")
}

func (e *joinRequestEvent) TriggerDelegates() {
	e.m.OnSessionJoinRequested.Broadcast(e.request)
}

func (e *statusEvent) String() string { return "connection status" }

func (e *statusEvent) Finalize() {
	old := e.m.status
	if old == e.status {
		return
	}

	e.m.status = e.status
	e.changed = &StatusChange{Old: old, New: e.status}

	e.m.logger.
		WithFields(logrus.Fields{
			"old": old.String(),
			"new": e.status.String(),
		}).
		Info("connection status changed")
}

func (e *statusEvent) TriggerDelegates() {
	if e.changed != nil {
		e.m.OnConnectionStatusChanged.Broadcast(*e.changed)
	}
}

func (e *shutdownEvent) String() string { return "shutdown requested" }

func (e *shutdownEvent) Finalize() {
	e.m.logger.Warn("backend requested shutdown")
}

func (e *shutdownEvent) TriggerDelegates() {
	e.m.OnShutdownRequested.Broadcast(struct{}{})
}

var _ backend.Listener = listener{}
