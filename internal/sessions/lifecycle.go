package sessions

import (
	"net/netip"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
)

// CreateSession creates and hosts a new named session. LAN sessions are
// created at once. Presence sessions are backed by a lobby and other
// sessions by an advertised server; both complete from Tick.
func (m *Manager) CreateSession(hostingPlayerNum int, name string, settings online.SessionSettings) error {
	if m.sessions.exists(name) {
		return m.reject(&m.OnCreateSessionComplete, "create", name, online.ErrSessionExists)
	}

	settings = settings.Clone()
	settings.BuildUniqueID = m.cfg.BuildUniqueID

	s := &online.NamedSession{
		Session: online.Session{
			OwningUserID:              m.svc.Account.LocalUser(),
			OwningUserName:            m.svc.Account.LocalUserName(),
			NumOpenPublicConnections:  settings.NumPublicConnections,
			NumOpenPrivateConnections: settings.NumPrivateConnections,
			Settings:                  settings,
		},
		Name:             name,
		HostingPlayerNum: hostingPlayerNum,
		Hosting:          true,
		State:            online.Creating,
	}

	switch {
	case settings.IsLANMatch:
		return m.createLAN(s)
	case settings.UsesPresence:
		gen, _ := m.addSession(s)
		m.runner.Enqueue(newCreateLobbyTask(m, s, gen))
	default:
		if len(m.sessions.names(isAdvertisedHost)) > 0 {
			return m.reject(&m.OnCreateSessionComplete, "create", name, online.ErrAdvertisedSessionExists)
		}

		gen, _ := m.addSession(s)
		m.runner.Enqueue(newCreateServerTask(m, s, gen))
	}

	return nil
}

// isAdvertisedHost matches the sessions backed by this process's server
// login, including one still being created.
func isAdvertisedHost(s *online.NamedSession) bool {
	return s.Hosting && !s.Settings.IsLANMatch && !s.Settings.UsesPresence
}

// loginOwnedElsewhere reports whether an advertised session other than
// generation gen of name holds the server login.
func (m *Manager) loginOwnedElsewhere(name string, gen uint64) bool {
	for _, n := range m.sessions.names(isAdvertisedHost) {
		if g, _ := m.sessions.generation(n); n != name || g != gen {
			return true
		}
	}

	return false
}

func (m *Manager) createLAN(s *online.NamedSession) error {
	id, err := online.RandomID(online.AccountAnonGameServer)
	if err != nil {
		return m.reject(&m.OnCreateSessionComplete, "create", s.Name, err)
	}

	s.Info = online.SessionInfo{
		Type:      online.SessionTypeLAN,
		HostAddr:  netip.AddrPortFrom(netip.IPv4Unspecified(), m.cfg.GamePort),
		SessionID: id,
	}
	s.State = online.Pending

	m.addSession(s)

	if s.Settings.ShouldAdvertise {
		if err = m.hostLAN(s.Name); err != nil {
			m.removeSession(s.Name)
			return m.reject(&m.OnCreateSessionComplete, "create", s.Name, err)
		}
	}

	m.registerLocalPlayers(s)

	m.sessionLogger(s.Name).Info("lan session created")
	m.OnCreateSessionComplete.Broadcast(Result{Name: s.Name, Success: true})

	return nil
}

// StartSession marks the named session as in progress.
func (m *Manager) StartSession(name string) error {
	s, ok := m.sessions.get(name)
	if !ok {
		return m.reject(&m.OnStartSessionComplete, "start", name, online.ErrSessionNotFound)
	}

	if s.State != online.Pending && s.State != online.Ended {
		return m.reject(&m.OnStartSessionComplete, "start", name, online.ErrInvalidState)
	}

	if s.Settings.IsLANMatch {
		if !s.Settings.AllowJoinInProgress && m.lanHostSession == name {
			m.stopLANHost()
		}
	} else {
		local := m.svc.Account.LocalUser()
		for _, p := range s.RegisteredPlayers {
			if p != local {
				m.svc.Friends.SetPlayedWith(p)
			}
		}
	}

	m.setState(name, online.InProgress)
	m.OnStartSessionComplete.Broadcast(Result{Name: name, Success: true})

	return nil
}

// UpdateSession replaces the settings of the named session. A hosted online
// session publishes them when refreshOnline is set. The presence flag of a
// live session cannot change and is kept.
func (m *Manager) UpdateSession(name string, settings online.SessionSettings, refreshOnline bool) error {
	s, ok := m.sessions.get(name)
	if !ok {
		return m.reject(&m.OnUpdateSessionComplete, "update", name, online.ErrSessionNotFound)
	}

	if s.State == online.Creating || s.State == online.Destroying {
		return m.reject(&m.OnUpdateSessionComplete, "update", name, online.ErrInvalidState)
	}

	settings = settings.Clone()
	if settings.UsesPresence != s.Settings.UsesPresence {
		m.sessionLogger(name).Warn("presence cannot change on a live session, keeping the current value")
		settings.UsesPresence = s.Settings.UsesPresence
	}

	settings.IsLANMatch = s.Settings.IsLANMatch
	settings.BuildUniqueID = s.Settings.BuildUniqueID

	m.sessions.update(name, func(s *online.NamedSession) {
		s.NumOpenPublicConnections = clampOpen(s.NumOpenPublicConnections+settings.NumPublicConnections-s.Settings.NumPublicConnections, settings.NumPublicConnections)
		s.NumOpenPrivateConnections = clampOpen(s.NumOpenPrivateConnections+settings.NumPrivateConnections-s.Settings.NumPrivateConnections, settings.NumPrivateConnections)
		s.Settings = settings
	})

	if !refreshOnline || !s.Hosting || !m.publish(name, true) {
		m.OnUpdateSessionComplete.Broadcast(Result{Name: name, Success: true})
	}

	return nil
}

func clampOpen(open, total int32) int32 {
	switch {
	case open < 0:
		return 0
	case open > total:
		return total
	default:
		return open
	}
}

// publish enqueues the task pushing the named session's metadata to the
// backend and reports whether one was enqueued. Only hosted online sessions
// publish anything.
func (m *Manager) publish(name string, notify bool) bool {
	s, ok := m.sessions.get(name)
	if !ok || !s.Hosting {
		return false
	}

	switch s.Info.Type {
	case online.SessionTypeLobby:
		m.runner.Enqueue(newUpdateLobbyTask(m, &s, notify))
	case online.SessionTypeAdvertisedHost:
		m.runner.Enqueue(newUpdateServerTask(m, &s, notify))
	default:
		return false
	}

	return true
}

// EndSession ends the match of the named session. Stats are flushed first
// for online sessions.
func (m *Manager) EndSession(name string) error {
	s, ok := m.sessions.get(name)
	if !ok {
		return m.reject(&m.OnEndSessionComplete, "end", name, online.ErrSessionNotFound)
	}

	if s.State != online.InProgress {
		return m.reject(&m.OnEndSessionComplete, "end", name, online.ErrInvalidState)
	}

	if s.Settings.IsLANMatch {
		if s.Hosting && s.Settings.ShouldAdvertise && m.lanHostSession == "" {
			if err := m.hostLAN(name); err != nil {
				m.sessionLogger(name).
					WithField("error", err.Error()).
					Error("error restarting lan beacon")
			}
		}

		m.setState(name, online.Ended)
		m.OnEndSessionComplete.Broadcast(Result{Name: name, Success: true})

		return nil
	}

	if m.svc.Leaderboards != nil {
		if err := m.svc.Leaderboards.FlushLeaderboards(name); err != nil {
			m.sessionLogger(name).
				WithField("error", err.Error()).
				Warn("error flushing leaderboards")
		}
	}

	m.setState(name, online.Ending)
	m.runner.Enqueue(&endSessionTask{m: m, name: name})

	return nil
}

// DestroySession tears the named session down. A session in progress is
// ended first. Destroying a session twice fails with ErrAlreadyDestroying
// and fires no delegate.
func (m *Manager) DestroySession(name string) error {
	s, ok := m.sessions.get(name)
	if !ok {
		return m.reject(&m.OnDestroySessionComplete, "destroy", name, online.ErrSessionNotFound)
	}

	if s.State == online.Destroying {
		m.sessionLogger(name).Warn("session is already being destroyed")
		return online.ErrAlreadyDestroying
	}

	if s.State == online.InProgress {
		if err := m.EndSession(name); err != nil {
			return err
		}
	}

	m.setState(name, online.Destroying)

	switch s.Info.Type {
	case online.SessionTypeLAN:
		m.removeSession(name)
		m.svc.Friends.SetRichPresence(presenceConnect, "")
		m.sessionLogger(name).Info("lan session destroyed")
		m.OnDestroySessionComplete.Broadcast(Result{Name: name, Success: true})

		return nil

	case online.SessionTypeLobby:
		m.runner.Enqueue(newLeaveLobbyTask(m, s.Info.SessionID))

	case online.SessionTypeAdvertisedHost:
		if m.svc.GameServer.ServerLoggedOn() {
			m.runner.Enqueue(newLogOffTask(m))
		}
	}

	gen, _ := m.sessions.generation(name)
	m.runner.Enqueue(&destroySessionTask{m: m, name: name, gen: gen})

	return nil
}

// RegisterPlayers adds players to the named session. The host takes one
// open slot per new player, private slots first for invited players.
func (m *Manager) RegisterPlayers(name string, players []online.ID, wasInvited bool) error {
	if !m.sessions.exists(name) {
		m.sessionLogger(name).Warn("cannot register players, session not found")
		m.OnRegisterPlayersComplete.Broadcast(PlayersOutcome{Name: name, Players: players})

		return online.ErrSessionNotFound
	}

	m.register(name, players, wasInvited)
	m.OnRegisterPlayersComplete.Broadcast(PlayersOutcome{Name: name, Players: players, Success: true})

	return nil
}

// UnregisterPlayers removes players from the named session and frees their
// slots on the host.
func (m *Manager) UnregisterPlayers(name string, players []online.ID) error {
	if !m.sessions.exists(name) {
		m.sessionLogger(name).Warn("cannot unregister players, session not found")
		m.OnUnregisterPlayersComplete.Broadcast(PlayersOutcome{Name: name, Players: players})

		return online.ErrSessionNotFound
	}

	m.unregister(name, players)
	m.OnUnregisterPlayersComplete.Broadcast(PlayersOutcome{Name: name, Players: players, Success: true})

	return nil
}

// register adds the players not yet registered and returns them.
func (m *Manager) register(name string, players []online.ID, wasInvited bool) []online.ID {
	var (
		added   []online.ID
		slot    int
		hosting bool
		voice   bool
	)

	m.sessions.update(name, func(s *online.NamedSession) {
		slot = s.HostingPlayerNum
		hosting = s.Hosting
		voice = !s.Settings.IsDedicated

		for _, p := range players {
			if s.IsRegistered(p) {
				continue
			}

			s.RegisteredPlayers = append(s.RegisteredPlayers, p)
			added = append(added, p)

			if hosting {
				takeSlot(s, wasInvited)
			}
		}
	})

	local := m.svc.Account.LocalUser()
	for _, p := range added {
		if p == local {
			if voice && m.svc.Voice != nil {
				m.svc.Voice.ProcessMuteChangeNotification(slot)
			}

			continue
		}

		m.svc.Friends.RequestUserInformation(p)

		if voice && m.svc.Voice != nil {
			m.svc.Voice.RegisterRemoteTalker(p)
		}
	}

	if hosting && len(added) > 0 {
		m.publish(name, false)
	}

	return added
}

// unregister removes the registered players among players and returns them.
func (m *Manager) unregister(name string, players []online.ID) []online.ID {
	var (
		removed []online.ID
		slot    int
		hosting bool
		voice   bool
	)

	m.sessions.update(name, func(s *online.NamedSession) {
		slot = s.HostingPlayerNum
		hosting = s.Hosting
		voice = !s.Settings.IsDedicated

		for _, p := range players {
			for i, r := range s.RegisteredPlayers {
				if r != p {
					continue
				}

				s.RegisteredPlayers = append(s.RegisteredPlayers[:i], s.RegisteredPlayers[i+1:]...)
				removed = append(removed, p)

				if hosting {
					freeSlot(s)
				}

				break
			}
		}
	})

	if voice && m.svc.Voice != nil {
		local := m.svc.Account.LocalUser()
		for _, p := range removed {
			if p == local {
				m.svc.Voice.ProcessMuteChangeNotification(slot)
				continue
			}

			m.svc.Voice.UnregisterRemoteTalker(p)
		}
	}

	if hosting && len(removed) > 0 {
		m.publish(name, false)
	}

	return removed
}

func takeSlot(s *online.NamedSession, invited bool) {
	switch {
	case invited && s.NumOpenPrivateConnections > 0:
		s.NumOpenPrivateConnections--
	case s.NumOpenPublicConnections > 0:
		s.NumOpenPublicConnections--
	case s.NumOpenPrivateConnections > 0:
		s.NumOpenPrivateConnections--
	}
}

func freeSlot(s *online.NamedSession) {
	switch {
	case s.NumOpenPublicConnections < s.Settings.NumPublicConnections:
		s.NumOpenPublicConnections++
	case s.NumOpenPrivateConnections < s.Settings.NumPrivateConnections:
		s.NumOpenPrivateConnections++
	}
}
