package sessions

import (
	"net/netip"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/async"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online/kv"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

type (
	// createLobbyTask creates the lobby backing a presence session and
	// publishes its metadata.
	createLobbyTask struct {
		async.BaseTask
		m       *Manager
		name    string
		gen     uint64
		session online.Session
		timer   async.InactivityTimer
		call    *backend.Call[online.ID]
		info    online.SessionInfo
		err     error
		created bool
	}

	// createServerTask logs the advertised server on and publishes its
	// details and rules.
	createServerTask struct {
		async.BaseTask
		m       *Manager
		name    string
		gen     uint64
		session online.Session
		timer   async.InactivityTimer
		call    *backend.Call[online.ID]
		info    online.SessionInfo
		owner   online.ID
		err     error
		created bool
	}

	// updateLobbyTask publishes the metadata of a hosted lobby.
	updateLobbyTask struct {
		async.BaseTask
		m        *Manager
		name     string
		session  online.Session
		joinable bool
		notify   bool
		err      error
	}

	// updateServerTask publishes the details and rules of the advertised
	// server.
	updateServerTask struct {
		async.BaseTask
		m       *Manager
		name    string
		session online.Session
		notify  bool
		err     error
	}

	// endSessionTask completes the end of a match.
	endSessionTask struct {
		async.BaseTask
		m    *Manager
		name string
	}

	// destroySessionTask removes a session once its teardown tasks ran.
	destroySessionTask struct {
		async.BaseTask
		m    *Manager
		name string
		gen  uint64
	}

	// leaveLobbyTask leaves a lobby.
	leaveLobbyTask struct {
		async.BaseTask
		m     *Manager
		lobby online.ID
		err   error
	}

	// logOffTask logs the advertised server off.
	logOffTask struct {
		async.BaseTask
		m     *Manager
		timer async.InactivityTimer
		call  *backend.Call[struct{}]
		err   error
	}
)

func newCreateLobbyTask(m *Manager, s *online.NamedSession, gen uint64) *createLobbyTask {
	return &createLobbyTask{
		m:       m,
		name:    s.Name,
		gen:     gen,
		session: s.Session.Clone(),
		timer:   m.timer(),
	}
}

func (t *createLobbyTask) String() string { return "create lobby" }

func (t *createLobbyTask) Tick(elapsed time.Duration) {
	lobbies := t.m.svc.Lobbies

	if t.call == nil {
		members := int(t.session.Settings.NumPublicConnections + t.session.Settings.NumPrivateConnections)
		t.call = lobbies.CreateLobby(backend.LobbyTypeFor(t.session.Settings), members)
	}

	id, done, err := t.call.Poll()
	if !done {
		if t.timer.Advance(elapsed) {
			t.err = errTimedOut
			t.Complete(false)
		}

		return
	}

	if err != nil {
		t.err = err
		t.Complete(false)

		return
	}

	s := t.session
	s.Info = online.SessionInfo{
		Type:      online.SessionTypeLobby,
		SessionID: id,
		PeerAddr:  online.PeerAddress{ID: s.OwningUserID, Port: t.m.cfg.P2PPort},
	}

	if err = lobbies.SetLobbyData(id, kv.SessionData(&s)); err != nil {
		t.err = err
		if lerr := lobbies.LeaveLobby(id); lerr != nil {
			t.err = multierror.Append(t.err, lerr)
		}

		t.Complete(false)

		return
	}

	t.info = s.Info
	t.Complete(true)
}

func (t *createLobbyTask) Finalize() {
	logger := t.m.sessionLogger(t.name).WithField("task", t.String())

	if !t.WasSuccessful() {
		logger.
			WithField("error", t.err.Error()).
			Warn("error creating lobby")

		t.m.removeSessionGen(t.name, t.gen)

		return
	}

	var s online.NamedSession
	alive := t.m.sessions.updateGen(t.name, t.gen, func(ns *online.NamedSession) {
		if ns.State != online.Creating {
			return
		}

		ns.Info = t.info
		ns.State = online.Pending
		s = ns.Clone()
	})

	if !alive || s.State != online.Pending {
		logger.Info("session destroyed while its lobby was created, leaving it")
		t.m.runner.Enqueue(newLeaveLobbyTask(t.m, t.info.SessionID))

		return
	}

	t.created = true
	t.m.registerLocalPlayers(&s)

	logger.WithField("lobby", t.info.SessionID.String()).Info("lobby session created")
}

func (t *createLobbyTask) TriggerDelegates() {
	t.m.OnCreateSessionComplete.Broadcast(Result{Name: t.name, Success: t.created})
}

func newCreateServerTask(m *Manager, s *online.NamedSession, gen uint64) *createServerTask {
	return &createServerTask{
		m:       m,
		name:    s.Name,
		gen:     gen,
		session: s.Session.Clone(),
		timer:   m.timer(),
	}
}

func (t *createServerTask) String() string { return "create server" }

func (t *createServerTask) Tick(elapsed time.Duration) {
	gs := t.m.svc.GameServer

	if t.call == nil {
		t.call = gs.LogOn(t.m.serverDetails(&t.session))
	}

	id, done, err := t.call.Poll()
	if !done {
		if t.timer.Advance(elapsed) {
			t.err = errTimedOut
			t.Complete(false)
		}

		return
	}

	if err != nil {
		t.err = err
		t.Complete(false)

		return
	}

	s := t.session
	s.Info = online.SessionInfo{
		Type:      online.SessionTypeAdvertisedHost,
		SessionID: id,
		PeerAddr:  online.PeerAddress{ID: id, Port: t.m.cfg.P2PPort},
	}

	if t.m.cfg.PublicIP.IsValid() {
		s.Info.HostAddr = netip.AddrPortFrom(t.m.cfg.PublicIP, t.m.cfg.GamePort)
	}

	if s.Settings.IsDedicated {
		s.OwningUserID = id
	}

	if err = publishServer(gs, t.m.serverDetails(&s), kv.SessionData(&s)); err != nil {
		t.err = err
		gs.LogOff()
		t.Complete(false)

		return
	}

	t.info = s.Info
	t.owner = s.OwningUserID
	t.Complete(true)
}

func (t *createServerTask) Finalize() {
	logger := t.m.sessionLogger(t.name).WithField("task", t.String())

	if !t.WasSuccessful() {
		logger.
			WithField("error", t.err.Error()).
			Warn("error creating advertised server")

		t.m.removeSessionGen(t.name, t.gen)

		return
	}

	var s online.NamedSession
	alive := t.m.sessions.updateGen(t.name, t.gen, func(ns *online.NamedSession) {
		if ns.State != online.Creating {
			return
		}

		ns.Info = t.info
		ns.OwningUserID = t.owner
		ns.State = online.Pending
		s = ns.Clone()
	})

	if !alive || s.State != online.Pending {
		if t.m.loginOwnedElsewhere(t.name, t.gen) {
			logger.Info("session destroyed while its server logged on")
			return
		}

		logger.Info("session destroyed while its server logged on, logging off")
		t.m.runner.Enqueue(newLogOffTask(t.m))

		return
	}

	t.created = true
	t.m.registerLocalPlayers(&s)

	logger.WithField("server", t.info.SessionID.String()).Info("advertised session created")
}

func (t *createServerTask) TriggerDelegates() {
	t.m.OnCreateSessionComplete.Broadcast(Result{Name: t.name, Success: t.created})
}

func publishServer(gs backend.GameServer, details backend.ServerDetails, rules map[string]string) error {
	var result *multierror.Error

	if err := gs.UpdateDetails(details); err != nil {
		result = multierror.Append(result, err)
	}

	if err := gs.SetRules(rules); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

func newUpdateLobbyTask(m *Manager, s *online.NamedSession, notify bool) *updateLobbyTask {
	return &updateLobbyTask{
		m:        m,
		name:     s.Name,
		session:  s.Session.Clone(),
		joinable: s.State != online.InProgress || s.Settings.AllowJoinInProgress,
		notify:   notify,
	}
}

func (t *updateLobbyTask) String() string { return "update lobby" }

func (t *updateLobbyTask) Tick(time.Duration) {
	lobbies := t.m.svc.Lobbies
	id := t.session.Info.SessionID

	var result *multierror.Error

	if err := lobbies.SetLobbyData(id, kv.SessionData(&t.session)); err != nil {
		result = multierror.Append(result, err)
	}

	if err := lobbies.SetLobbyType(id, backend.LobbyTypeFor(t.session.Settings)); err != nil {
		result = multierror.Append(result, err)
	}

	if err := lobbies.SetLobbyJoinable(id, t.joinable); err != nil {
		result = multierror.Append(result, err)
	}

	t.err = result.ErrorOrNil()
	t.Complete(t.err == nil)
}

func (t *updateLobbyTask) Finalize() {
	if t.err != nil {
		t.m.sessionLogger(t.name).
			WithFields(logrus.Fields{
				"task":  t.String(),
				"error": t.err.Error(),
			}).
			Warn("error updating lobby")
	}
}

func (t *updateLobbyTask) TriggerDelegates() {
	if t.notify {
		t.m.OnUpdateSessionComplete.Broadcast(Result{Name: t.name, Success: t.WasSuccessful()})
	}
}

func newUpdateServerTask(m *Manager, s *online.NamedSession, notify bool) *updateServerTask {
	return &updateServerTask{
		m:       m,
		name:    s.Name,
		session: s.Session.Clone(),
		notify:  notify,
	}
}

func (t *updateServerTask) String() string { return "update server" }

func (t *updateServerTask) Tick(time.Duration) {
	t.err = publishServer(t.m.svc.GameServer, t.m.serverDetails(&t.session), kv.SessionData(&t.session))
	t.Complete(t.err == nil)
}

func (t *updateServerTask) Finalize() {
	if t.err != nil {
		t.m.sessionLogger(t.name).
			WithFields(logrus.Fields{
				"task":  t.String(),
				"error": t.err.Error(),
			}).
			Warn("error updating advertised server")
	}
}

func (t *updateServerTask) TriggerDelegates() {
	if t.notify {
		t.m.OnUpdateSessionComplete.Broadcast(Result{Name: t.name, Success: t.WasSuccessful()})
	}
}

func (t *endSessionTask) String() string     { return "end session" }
func (t *endSessionTask) Tick(time.Duration) { t.Complete(true) }

func (t *endSessionTask) Finalize() {
	t.m.sessions.update(t.name, func(s *online.NamedSession) {
		if s.State == online.Ending {
			s.State = online.Ended
		}
	})
}

func (t *endSessionTask) TriggerDelegates() {
	t.m.OnEndSessionComplete.Broadcast(Result{Name: t.name, Success: true})
}

func (t *destroySessionTask) String() string     { return "destroy session" }
func (t *destroySessionTask) Tick(time.Duration) { t.Complete(true) }

func (t *destroySessionTask) Finalize() {
	t.m.removeSessionGen(t.name, t.gen)
	t.m.svc.Friends.SetRichPresence(presenceConnect, "")
	t.m.sessionLogger(t.name).Info("session destroyed")
}

func (t *destroySessionTask) TriggerDelegates() {
	t.m.OnDestroySessionComplete.Broadcast(Result{Name: t.name, Success: true})
}

func newLeaveLobbyTask(m *Manager, lobby online.ID) *leaveLobbyTask {
	return &leaveLobbyTask{m: m, lobby: lobby}
}

func (t *leaveLobbyTask) String() string { return "leave lobby" }

func (t *leaveLobbyTask) Tick(time.Duration) {
	t.err = t.m.svc.Lobbies.LeaveLobby(t.lobby)
	t.Complete(t.err == nil)
}

func (t *leaveLobbyTask) Finalize() {
	if t.err != nil {
		t.m.logger.
			WithFields(logrus.Fields{
				"lobby": t.lobby.String(),
				"error": t.err.Error(),
			}).
			Warn("error leaving lobby")
	}
}

func (t *leaveLobbyTask) TriggerDelegates() {}

func newLogOffTask(m *Manager) *logOffTask {
	return &logOffTask{m: m, timer: m.timer()}
}

func (t *logOffTask) String() string { return "log off server" }

func (t *logOffTask) Tick(elapsed time.Duration) {
	if t.call == nil {
		t.call = t.m.svc.GameServer.LogOff()
	}

	_, done, err := t.call.Poll()
	if !done {
		if t.timer.Advance(elapsed) {
			t.err = errTimedOut
			t.Complete(false)
		}

		return
	}

	t.err = err
	t.Complete(err == nil)
}

func (t *logOffTask) Finalize() {
	if t.err != nil {
		t.m.logger.
			WithField("error", t.err.Error()).
			Warn("error logging off server")
	}
}

func (t *logOffTask) TriggerDelegates() {}
