package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/async"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend/memory"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend/redis"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/lan"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/sessions"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/config"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/proto/a2s"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// tickInterval is the game thread cadence while a search runs.
const tickInterval = 10 * time.Millisecond

var errSearchFailed = errors.New("search did not complete")

func lanSearchCmd(g *globals) *cobra.Command {
	var (
		port      int
		broadcast string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "lan-search",
		Short: "Search the LAN for sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}

			mc := searchConfig(cfg)
			if port != 0 {
				mc.LAN.Port = port
			}

			if broadcast != "" {
				mc.LAN.BroadcastAddr = broadcast
			}

			mc.LAN.Timeout = timeout

			local := memory.NewNetwork().NewClient(cfg.LocalUserAccount, cfg.LocalUserName)

			search := online.NewSearchSettings(cfg.MaxSearchResults)
			search.IsLANQuery = true

			results, err := runSearch(cmd.Context(), local.Services(), mc, search, logger)
			printResults(cmd.OutOrStdout(), results)

			return err
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "LAN beacon port, defaults to the configured port")
	cmd.Flags().StringVar(&broadcast, "broadcast", "", "address queries are broadcast to")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Second, "how long to wait for hosts to respond")

	return cmd
}

func searchCmd(g *globals) *cobra.Command {
	var (
		redisAddr  string
		lobbies    bool
		dedicated  bool
		mapName    string
		maxResults int
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the redis directory for lobbies or servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}

			if redisAddr != "" {
				cfg.RedisAddr = redisAddr
			}

			if maxResults <= 0 {
				maxResults = cfg.MaxSearchResults
			}

			svc, closeFn, err := directoryServices(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			defer closeFn()

			search := online.NewSearchSettings(maxResults)
			if lobbies {
				search.Set(online.SearchPresence, online.Bool(true), online.OpEquals)
			}

			if dedicated {
				search.Set(online.SearchDedicatedOnly, online.Bool(true), online.OpEquals)
			}

			if mapName != "" {
				search.Set(online.SettingMapName, online.String(mapName), online.OpEquals)
			}

			mc := searchConfig(cfg)
			mc.AsyncTimeout = timeout

			results, err := runSearch(cmd.Context(), svc, mc, search, logger)
			printResults(cmd.OutOrStdout(), results)

			return err
		},
	}

	cmd.Flags().StringVar(&redisAddr, "redis", "", "redis directory address, defaults to the configured address")
	cmd.Flags().BoolVar(&lobbies, "lobbies", false, "search presence lobbies instead of servers")
	cmd.Flags().BoolVar(&dedicated, "dedicated", false, "only list dedicated servers")
	cmd.Flags().StringVar(&mapName, "map", "", "only list sessions on this map")
	cmd.Flags().IntVar(&maxResults, "max", 0, "maximum number of results, defaults to the configured maximum")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "inactivity timeout of the search")

	return cmd
}

// searchConfig returns the manager configuration of a searching client.
func searchConfig(c *config.Config) sessions.Config {
	return sessions.Config{
		AppID:         c.AppID,
		BuildUniqueID: c.BuildUniqueID,
		AsyncTimeout:  c.AsyncTimeout.Std(),
		LAN: lan.Config{
			Port:          c.LANPort,
			BroadcastAddr: c.LANBroadcastAddr,
			Timeout:       c.LANSearchTimeout.Std(),
		},
	}
}

// directoryServices returns an in-process account backed by the redis
// directory.
func directoryServices(ctx context.Context, cfg *config.Config, logger *logrus.Entry) (backend.Services, func(), error) {
	local := memory.NewNetwork().NewClient(cfg.LocalUserAccount, cfg.LocalUserName)
	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()

		return backend.Services{}, nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	dir, err := redis.New(redis.Config{
		Client:    rdb,
		KeyPrefix: cfg.RedisKeyPrefix,
		User:      local.LocalUser(),
		Query:     &a2s.Client{Timeout: time.Second},
		Logger:    logger.WithField("component", "redis"),
	})
	if err != nil {
		_ = rdb.Close()

		return backend.Services{}, nil, err
	}

	svc := local.Services()
	svc.Lobbies = dir
	svc.GameServer = dir
	svc.ServerBrowser = dir
	svc.Notifier = backend.Notifiers{local, dir}

	return svc, func() {
		_ = dir.Close()
		_ = rdb.Close()
	}, nil
}

// runSearch runs search on a fresh manager, acting as its game thread until
// the search completes or ctx is done.
func runSearch(ctx context.Context, svc backend.Services, cfg sessions.Config, search *online.SearchSettings, logger *logrus.Entry) ([]online.SearchResult, error) {
	m, err := sessions.New(cfg, svc, async.NewRunner(logger), logger)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = m.Shutdown()
	}()

	workerCtx, stop := context.WithCancel(ctx)
	defer stop()

	go func() {
		_ = m.RunWorker(workerCtx)
	}()

	var done, ok bool
	m.OnFindSessionsComplete.Add(func(success bool) {
		done = true
		ok = success
	})

	if err = m.FindSessions(0, search); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	last := time.Now()

	for !done {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case now := <-ticker.C:
			m.Tick(now.Sub(last))
			last = now
		}
	}

	if !ok {
		return search.Results, errSearchFailed
	}

	return search.Results, nil
}

// printResults writes one row per valid result.
func printResults(w io.Writer, results []online.SearchResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "TYPE\tSESSION\tOWNER\tOPEN\tPING\tMAP\tCONNECT")

	for _, r := range results {
		if !r.IsValid() {
			continue
		}

		s := r.Session
		connect, err := s.Info.ConnectString()
		if err != nil {
			connect = "-"
		}

		mapName := "-"
		if v, ok := s.Settings.Get(online.SettingMapName); ok {
			mapName = v.String()
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\t%s\t%s\n",
			s.Info.Type,
			s.Info.SessionID,
			s.OwningUserName,
			s.NumOpenPublicConnections,
			s.Settings.NumPublicConnections,
			r.PingMs,
			mapName,
			connect,
		)
	}
}
