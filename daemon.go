package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/async"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend/memory"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend/redis"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/lan"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/metrics"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/notify"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/query"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/sessions"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/config"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/proto"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/proto/a2s"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type (
	// daemon hosts the sessions of one local user.
	daemon struct {
		cfg        *config.Config
		configFile string
		logger     *logrus.Entry

		registry *prometheus.Registry
		manager  *sessions.Manager

		// state is what the query endpoint answers with.
		state *proto.StateHolder
		query *query.Server
		feed  *notify.Client

		// closers are released once the game thread has stopped.
		closers []io.Closer

		shutdown     chan struct{}
		shutdownOnce sync.Once
	}

	// sessionView is the JSON rendition of a named session.
	sessionView struct {
		Name                      string `json:"name"`
		State                     string `json:"state"`
		Type                      string `json:"type"`
		SessionID                 string `json:"sessionID"`
		Owner                     string `json:"owner"`
		Hosting                   bool   `json:"hosting"`
		NumOpenPublicConnections  int32  `json:"numOpenPublicConnections"`
		NumOpenPrivateConnections int32  `json:"numOpenPrivateConnections"`
		RegisteredPlayers         int    `json:"registeredPlayers"`
		Connect                   string `json:"connect,omitempty"`
	}
)

// teardownTimeout bounds the wait for hosted sessions to be destroyed.
const teardownTimeout = 10 * time.Second

var errShutdownRequested = errors.New("backend requested shutdown")

// newDaemon wires the backend selected by cfg to a session manager. The
// query endpoint is bound here so its port is known before anything is
// hosted.
func newDaemon(cfg *config.Config, configFile string, logger *logrus.Entry) (*daemon, error) {
	d := &daemon{
		cfg:        cfg,
		configFile: configFile,
		logger:     logger,
		registry:   prometheus.NewRegistry(),
		state:      proto.NewStateHolder(nil),
		shutdown:   make(chan struct{}),
	}

	responder, err := query.NewResponder(cfg.QueryProtocol, d.state, cfg.AppID)
	if err != nil {
		return nil, err
	}

	d.query, err = query.Listen(net.JoinHostPort("", strconv.Itoa(int(cfg.QueryPort))), responder, logger)
	if err != nil {
		return nil, fmt.Errorf("error listening for queries: %w", err)
	}

	d.closers = append(d.closers, d.query)

	svc, err := d.services()
	if err != nil {
		_ = d.close()

		return nil, err
	}

	m := metrics.New(d.registry)
	runner := async.NewRunner(logger.WithField("component", "worker"),
		async.WithMetrics(m),
		async.WithInterval(cfg.TaskInterval.Std()),
	)

	mc := managerConfig(cfg)
	mc.QueryPort = d.query.LocalAddr().Port()

	d.manager, err = sessions.New(mc, svc, runner, logger, sessions.WithMetrics(m))
	if err != nil {
		_ = d.close()

		return nil, fmt.Errorf("error creating session manager: %w", err)
	}

	d.observe()

	return d, nil
}

// managerConfig maps the daemon configuration to the manager configuration.
func managerConfig(c *config.Config) sessions.Config {
	mc := sessions.Config{
		AppID:         c.AppID,
		BuildUniqueID: c.BuildUniqueID,
		P2PPort:       c.P2PPort,
		GamePort:      c.GamePort,
		QueryPort:     c.QueryPort,
		AsyncTimeout:  c.AsyncTimeout.Std(),
		LAN: lan.Config{
			Port:          c.LANPort,
			BroadcastAddr: c.LANBroadcastAddr,
			Timeout:       c.LANSearchTimeout.Std(),
		},
	}

	if ip, err := netip.ParseAddr(c.PublicIP); err == nil {
		mc.PublicIP = ip
	}

	return mc
}

// services returns the backend. The local account, friends, voice and
// leaderboards are always in process; the redis backend replaces the lobby
// and server directory.
func (d *daemon) services() (backend.Services, error) {
	local := memory.NewNetwork().NewClient(d.cfg.LocalUserAccount, d.cfg.LocalUserName)
	svc := local.Services()
	notifiers := backend.Notifiers{local}

	if d.cfg.Backend == "redis" {
		rdb := goredis.NewClient(&goredis.Options{Addr: d.cfg.RedisAddr})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()

			return backend.Services{}, fmt.Errorf("error connecting to redis: %w", err)
		}

		dir, err := redis.New(redis.Config{
			Client:    rdb,
			KeyPrefix: d.cfg.RedisKeyPrefix,
			User:      local.LocalUser(),
			Query:     &a2s.Client{Timeout: time.Second},
			Logger:    d.logger.WithField("component", "redis"),
		})
		if err != nil {
			_ = rdb.Close()

			return backend.Services{}, err
		}

		d.closers = append(d.closers, rdb, dir)
		svc.Lobbies = dir
		svc.GameServer = dir
		svc.ServerBrowser = dir
		notifiers = append(notifiers, dir)
	}

	if d.cfg.NotifyURL != "" {
		d.feed = notify.NewClient(d.cfg.NotifyURL, local.LocalUser(), d.logger.WithField("component", "notify"))
		if err := d.feed.Connect(); err != nil {
			_ = d.feed.Close()

			return backend.Services{}, fmt.Errorf("error connecting to notification feed: %w", err)
		}

		d.closers = append(d.closers, d.feed)
		notifiers = append(notifiers, d.feed)
	}

	svc.GameServer = query.NewAnnouncer(svc.GameServer, d.state, strconv.Itoa(int(d.cfg.BuildUniqueID)))
	svc.Notifier = notifiers

	return svc, nil
}

// observe logs the outcome of every command and turns shutdown requests into
// a daemon stop.
func (d *daemon) observe() {
	logResult := func(msg string) func(sessions.Result) {
		return func(r sessions.Result) {
			logger := d.logger.WithFields(logrus.Fields{
				"session": r.Name,
				"success": r.Success,
			})

			if !r.Success {
				logger.Warn(msg)

				return
			}

			logger.Info(msg)
		}
	}

	d.manager.OnCreateSessionComplete.Add(logResult("create session complete"))
	d.manager.OnStartSessionComplete.Add(logResult("start session complete"))
	d.manager.OnEndSessionComplete.Add(logResult("end session complete"))
	d.manager.OnDestroySessionComplete.Add(logResult("destroy session complete"))

	d.manager.OnRegisterPlayersComplete.Add(func(o sessions.PlayersOutcome) {
		d.logger.
			WithFields(logrus.Fields{
				"session": o.Name,
				"players": len(o.Players),
			}).
			Info("players registered")
	})

	d.manager.OnUnregisterPlayersComplete.Add(func(o sessions.PlayersOutcome) {
		d.logger.
			WithFields(logrus.Fields{
				"session": o.Name,
				"players": len(o.Players),
			}).
			Info("players unregistered")
	})

	d.manager.OnShutdownRequested.Add(func(struct{}) {
		d.shutdownOnce.Do(func() {
			close(d.shutdown)
		})
	})
}

// hostSettings returns the settings of the session hosted at startup.
func hostSettings(h config.HostConfig) online.SessionSettings {
	s := online.SessionSettings{
		NumPublicConnections:  h.NumPublicConnections,
		NumPrivateConnections: h.NumPrivateConnections,
		ShouldAdvertise:       true,
		IsLANMatch:            h.LAN,
		IsDedicated:           h.Dedicated,
		UsesPresence:          h.UsesPresence,
		AllowJoinViaPresence:  h.UsesPresence,
		AllowJoinInProgress:   h.AllowJoinInProgress,
		AllowInvites:          h.AllowInvites,
	}

	for name, value := range map[string]string{
		online.SettingServerName: h.ServerName,
		online.SettingMapName:    h.MapName,
		online.SettingGameMode:   h.GameMode,
	} {
		if value != "" {
			s.Set(name, online.String(value), online.ViaOnlineService)
		}
	}

	return s
}

// run serves until ctx is done or the backend requests a shutdown, then
// destroys every session and releases the backend.
func (d *daemon) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	// The worker outlives the game thread so teardown tasks complete.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	g.Go(func() error {
		return d.manager.RunWorker(workerCtx)
	})

	g.Go(func() error {
		defer stopWorker()

		return d.gameThread(gctx)
	})

	g.Go(func() error {
		select {
		case <-d.shutdown:
			return errShutdownRequested
		case <-gctx.Done():
			return nil
		}
	})

	if d.cfg.MetricsAddr != "" {
		g.Go(func() error {
			return d.serveHTTP(gctx)
		})
	}

	if d.feed != nil {
		g.Go(func() error {
			for {
				select {
				case err := <-d.feed.Errors():
					d.logger.
						WithField("error", err.Error()).
						Warn("notification feed error")
				case <-gctx.Done():
					return nil
				}
			}
		})
	}

	if d.configFile != "" {
		g.Go(func() error {
			return config.Watch(gctx, d.logger, d.configFile, d.reload)
		})
	}

	err := g.Wait()

	if cerr := d.close(); cerr != nil {
		err = multierror.Append(err, cerr).ErrorOrNil()
	}

	return err
}

// reload applies the tunables of a rewritten configuration file.
func (d *daemon) reload(c *config.Config) {
	d.manager.SetAsyncTimeout(c.AsyncTimeout.Std())
	d.manager.SetLANSearchTimeout(c.LANSearchTimeout.Std())

	d.logger.
		WithFields(logrus.Fields{
			"async_timeout":      c.AsyncTimeout.Std().String(),
			"lan_search_timeout": c.LANSearchTimeout.Std().String(),
		}).
		Info("config reloaded")
}

// gameThread owns the manager: every command and Tick runs here.
func (d *daemon) gameThread(ctx context.Context) error {
	if h := d.cfg.Host; h.SessionName != "" {
		if err := d.manager.CreateSession(0, h.SessionName, hostSettings(h)); err != nil {
			return fmt.Errorf("error hosting %s: %w", h.SessionName, err)
		}
	}

	interval := d.cfg.TickInterval.Std()
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return d.teardown(ticker.C, last)
		case now := <-ticker.C:
			d.manager.Tick(now.Sub(last))
			last = now
		}
	}
}

// teardown destroys every session and keeps ticking until they are gone.
func (d *daemon) teardown(tick <-chan time.Time, last time.Time) error {
	var result *multierror.Error

	if err := d.manager.Shutdown(); err != nil {
		result = multierror.Append(result, err)
	}

	deadline := time.NewTimer(teardownTimeout)
	defer deadline.Stop()

	for len(d.manager.Sessions()) > 0 {
		select {
		case now := <-tick:
			d.manager.Tick(now.Sub(last))
			last = now
		case <-deadline.C:
			return multierror.Append(result, fmt.Errorf("%d sessions not destroyed", len(d.manager.Sessions()))).ErrorOrNil()
		}
	}

	return result.ErrorOrNil()
}

func (d *daemon) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	r.Get("/sessions", d.handleSessions)

	return r
}

func (d *daemon) serveHTTP(ctx context.Context) error {
	srv := &http.Server{
		Addr:              d.cfg.MetricsAddr,
		Handler:           d.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	d.logger.WithField("addr", d.cfg.MetricsAddr).Info("serving http")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("error serving http: %w", err)
	}

	return nil
}

func (d *daemon) handleSessions(w http.ResponseWriter, _ *http.Request) {
	snapshot := d.manager.Sessions()
	views := make([]sessionView, 0, len(snapshot))

	for _, s := range snapshot {
		connect, _ := s.Info.ConnectString()

		views = append(views, sessionView{
			Name:                      s.Name,
			State:                     s.State.String(),
			Type:                      s.Info.Type.String(),
			SessionID:                 s.Info.SessionID.String(),
			Owner:                     s.OwningUserID.String(),
			Hosting:                   s.Hosting,
			NumOpenPublicConnections:  s.NumOpenPublicConnections,
			NumOpenPrivateConnections: s.NumOpenPrivateConnections,
			RegisteredPlayers:         len(s.RegisteredPlayers),
			Connect:                   connect,
		})
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(views); err != nil {
		d.logger.
			WithField("error", err.Error()).
			Warn("error writing sessions")
	}
}

// close releases the backend and the query endpoint.
func (d *daemon) close() error {
	var result *multierror.Error

	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	d.closers = nil

	return result.ErrorOrNil()
}
