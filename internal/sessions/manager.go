// Package sessions is the session lifecycle and matchmaking engine.
//
// A Manager owns the named sessions of one local user. Its commands and
// Tick must be called from a single goroutine, the game thread. Backend
// round trips run as async tasks on the worker goroutine started by
// RunWorker; their results are applied and their delegates fired from Tick.
package sessions

import (
	"context"
	"errors"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/async"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/lan"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/metrics"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

type (
	// Config configures a Manager.
	Config struct {
		// AppID identifies the game in the server directory.
		AppID int16

		// BuildUniqueID is published with every hosted session. Search
		// results of other builds are dropped.
		BuildUniqueID int32

		// P2PPort is the port peers connect to through a peer address.
		P2PPort uint16

		// GamePort and QueryPort are announced by advertised hosts and LAN
		// sessions.
		GamePort  uint16
		QueryPort uint16

		// PublicIP is announced for advertised hosts when valid. Otherwise
		// the backend picks the address.
		PublicIP netip.Addr

		// AsyncTimeout bounds backend round trips without progress.
		AsyncTimeout time.Duration

		// LAN configures the LAN beacons. LAN.Timeout ends LAN searches.
		LAN lan.Config
	}

	// Manager is the session registry and the commands operating on it.
	Manager struct {
		// Delegates are fired from Tick, or inline when a command is
		// rejected.
		Delegates

		// cfg is immutable after New.
		cfg Config

		// svc is the backend. The worker goroutine calls it from task ticks.
		svc backend.Services

		// runner carries async tasks to the worker and results back.
		runner *async.Runner

		// logger handles structured logging for this manager
		logger *logrus.Entry

		metrics *metrics.Metrics

		// sessions is the registry of named sessions.
		sessions registry

		// router hands lobby data notifications to the tasks waiting for
		// them.
		router lobbyRouter

		// asyncTimeout and lanTimeout are tunable while running.
		asyncTimeout atomic.Int64
		lanTimeout   atomic.Int64

		// The fields below are owned by the game thread.

		// search is the most recent search; searchTask runs it unless it is
		// a LAN search.
		search     *online.SearchSettings
		searchKind string
		searchTask abandoner

		// lanHost answers LAN queries for lanHostSession.
		lanHost        *lan.Beacon
		lanHostSession string

		// lanSearch is the beacon of the current LAN search.
		lanSearch *lan.Beacon

		status      online.ConnectionStatus
		unsubscribe func()
	}

	// Option configures a Manager.
	Option func(*Manager)

	// abandoner is a search task that can be told to finish early.
	abandoner interface {
		abandon()
	}
)

// DefaultAsyncTimeout is used when Config.AsyncTimeout is not set.
const DefaultAsyncTimeout = 15 * time.Second

// DefaultLANSearchTimeout is used when Config.LAN.Timeout is not set.
const DefaultLANSearchTimeout = time.Second

// Search kinds used in metrics.
const (
	searchLobby  = "lobby"
	searchServer = "server"
	searchLAN    = "lan"
)

var (
	// ErrMissingRunner is returned by New without a runner.
	ErrMissingRunner = errors.New("sessions: a runner is required")

	errTimedOut = errors.New("backend request timed out")
)

// WithMetrics records session and search metrics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// New returns a manager with an empty registry. It subscribes to the
// backend notifier when one is provided.
func New(cfg Config, svc backend.Services, runner *async.Runner, logger *logrus.Entry, opts ...Option) (*Manager, error) {
	var result *multierror.Error

	if err := svc.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if runner == nil {
		result = multierror.Append(result, ErrMissingRunner)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	if cfg.AsyncTimeout <= 0 {
		cfg.AsyncTimeout = DefaultAsyncTimeout
	}

	if cfg.LAN.Timeout <= 0 {
		cfg.LAN.Timeout = DefaultLANSearchTimeout
	}

	if cfg.LAN.GameID == 0 {
		cfg.LAN.GameID = int32(cfg.AppID)
	}

	m := &Manager{
		cfg:     cfg,
		svc:     svc,
		runner:  runner,
		logger:  logger,
		lanHost: lan.NewBeacon(cfg.LAN, logger.WithField("beacon", "host")),
		status:  online.StatusNotConnected,
	}

	if svc.Account.IsLoggedOn() {
		m.status = online.StatusConnected
	}

	m.asyncTimeout.Store(int64(cfg.AsyncTimeout))
	m.lanTimeout.Store(int64(cfg.LAN.Timeout))

	for _, opt := range opts {
		opt(m)
	}

	if svc.Notifier != nil {
		m.unsubscribe = svc.Notifier.Subscribe(listener{m: m})
	}

	return m, nil
}

// SetAsyncTimeout changes the inactivity timeout of tasks enqueued from now
// on. It is safe to call from any goroutine.
func (m *Manager) SetAsyncTimeout(d time.Duration) {
	if d > 0 {
		m.asyncTimeout.Store(int64(d))
	}
}

// SetLANSearchTimeout changes the duration of LAN searches started from now
// on. It is safe to call from any goroutine.
func (m *Manager) SetLANSearchTimeout(d time.Duration) {
	if d > 0 {
		m.lanTimeout.Store(int64(d))
	}
}

func (m *Manager) timer() async.InactivityTimer {
	return async.InactivityTimer{Timeout: time.Duration(m.asyncTimeout.Load())}
}

// RunWorker runs the async worker until ctx is done.
func (m *Manager) RunWorker(ctx context.Context) error {
	return m.runner.Run(ctx)
}

// Tick is the game thread step: completed tasks and passive events are
// applied and their delegates fired, then the LAN beacons handle the
// packets received since the last tick.
func (m *Manager) Tick(elapsed time.Duration) {
	m.runner.GameTick()
	m.lanHost.Tick(elapsed)

	if m.lanSearch != nil {
		m.lanSearch.Tick(elapsed)
	}
}

// Session returns a copy of the named session.
func (m *Manager) Session(name string) (online.NamedSession, bool) {
	return m.sessions.get(name)
}

// Sessions returns a copy of every session. It is safe to call from any
// goroutine.
func (m *Manager) Sessions() []online.NamedSession {
	return m.sessions.snapshot()
}

// Status returns the last reported backend connection health.
func (m *Manager) Status() online.ConnectionStatus {
	return m.status
}

// Shutdown cancels the current search and starts destroying every session.
// The sessions are gone once Tick has applied the teardown tasks.
func (m *Manager) Shutdown() error {
	var result *multierror.Error

	if m.search != nil && m.search.State == online.SearchInProgress {
		if err := m.CancelFindSessions(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	for _, name := range m.sessions.names(nil) {
		err := m.DestroySession(name)
		if err != nil && !errors.Is(err, online.ErrAlreadyDestroying) {
			result = multierror.Append(result, err)
		}
	}

	m.stopLANHost()

	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}

	return result.ErrorOrNil()
}

func (m *Manager) sessionLogger(name string) *logrus.Entry {
	return m.logger.WithField("session", name)
}

// reject reports a precondition failure of a command on a named session.
func (m *Manager) reject(d *Delegate[Result], op, name string, err error) error {
	m.sessionLogger(name).
		WithFields(logrus.Fields{
			"op":    op,
			"error": err.Error(),
		}).
		Warn("session command rejected")

	d.Broadcast(Result{Name: name})

	return err
}

// addSession stores s and returns the generation tasks started for it
// must present.
func (m *Manager) addSession(s *online.NamedSession) (uint64, bool) {
	gen, ok := m.sessions.add(s)
	if !ok {
		return 0, false
	}

	m.metrics.SetSessions(m.sessions.len())

	return gen, true
}

// removeSession drops the named session. Once the registry is empty the
// remote talkers are dropped as well.
func (m *Manager) removeSession(name string) {
	m.removed(name, m.sessions.remove(name))
}

// removeSessionGen drops the named session if it is still generation gen.
func (m *Manager) removeSessionGen(name string, gen uint64) {
	m.removed(name, m.sessions.removeGen(name, gen))
}

func (m *Manager) removed(name string, ok bool) {
	if !ok {
		return
	}

	if m.lanHostSession == name {
		m.stopLANHost()
	}

	n := m.sessions.len()
	m.metrics.SetSessions(n)

	if n == 0 && m.svc.Voice != nil {
		m.svc.Voice.RemoveAllRemoteTalkers()
	}
}

func (m *Manager) setState(name string, state online.SessionState) {
	m.sessions.update(name, func(s *online.NamedSession) {
		s.State = state
	})
}

func (m *Manager) registerLocalPlayers(s *online.NamedSession) {
	if m.svc.Voice == nil || s.Settings.IsDedicated {
		return
	}

	m.svc.Voice.RegisterLocalTalker(s.HostingPlayerNum)
}

func (m *Manager) hostLAN(name string) error {
	if err := m.lanHost.Host(func() (online.Session, bool) { return m.lanAdvert(name) }); err != nil {
		return err
	}

	m.lanHostSession = name

	return nil
}

func (m *Manager) stopLANHost() {
	m.lanHost.Stop()
	m.lanHostSession = ""
}

// lanAdvert returns the session answered to LAN queries, or false while the
// session does not accept joiners.
func (m *Manager) lanAdvert(name string) (online.Session, bool) {
	s, ok := m.sessions.get(name)
	switch {
	case !ok:
		return online.Session{}, false
	case s.State == online.Destroying, s.State == online.Creating:
		return online.Session{}, false
	case s.State == online.InProgress && !s.Settings.AllowJoinInProgress:
		return online.Session{}, false
	case s.NumOpenPublicConnections <= 0:
		return online.Session{}, false
	}

	return s.Session, true
}
