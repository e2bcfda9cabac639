// Package redis provides a Redis-based lobby and advertised server
// directory implementing the backend lobby, game server and server browser
// services.
//
// Requests run on their own goroutine and resolve a backend.Call. Lobby
// membership changes are published on a per-lobby channel that every member
// subscribes to.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/proto/a2s"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type (
	// QueryClient queries advertised servers directly.
	QueryClient interface {
		QueryInfo(ctx context.Context, addr string) (*a2s.Info, error)
		QueryRules(ctx context.Context, addr string) (map[string]string, error)
	}

	// Config contains configuration options for the directory.
	Config struct {
		// Client is the Redis client instance.
		Client *redis.Client

		// KeyPrefix is the prefix for all Redis keys.
		// Default: "sessiond"
		KeyPrefix string

		// User is the local user; lobbies created here are owned by it.
		User online.ID

		// Timeout bounds every request.
		// Default: 5s
		Timeout time.Duration

		// ServerTTL is how long a server listing survives without a
		// heartbeat.
		// Default: 1m
		ServerTTL time.Duration

		// Query measures ping and fetches rules of listed servers. Nil lists
		// servers without ping and reads rules from the directory.
		Query QueryClient

		Logger *logrus.Entry
	}

	// Directory implements backend.Lobbies, backend.GameServer,
	// backend.ServerBrowser and backend.Notifier.
	Directory struct {
		cfg Config
		rdb *redis.Client

		mu           sync.Mutex
		listeners    map[int]backend.Listener
		nextListener int
		cache        map[online.ID]*lobbyState
		subs         map[online.ID]*redis.PubSub
		serverID     online.ID
		stopBeat     context.CancelFunc
		openQueries  int
	}

	lobbyState struct {
		owner   online.ID
		data    map[string]string
		members []online.ID
	}

	// lobbyEvent is published on a lobby channel.
	lobbyEvent struct {
		Member online.ID             `json:"member"`
		Change *backend.MemberChange `json:"change,omitempty"`
		Data   bool                  `json:"data,omitempty"`
	}
)

var (
	ErrClientRequired = errors.New("redis client is required")
	ErrUserRequired   = errors.New("local user is required")
)

// Lobby hash fields.
const (
	fieldOwner    = "owner"
	fieldType     = "type"
	fieldJoinable = "joinable"
	fieldMax      = "max"
)

// New returns a directory.
func New(cfg Config) (*Directory, error) {
	if cfg.Client == nil {
		return nil, ErrClientRequired
	}

	if !cfg.User.IsValid() {
		return nil, ErrUserRequired
	}

	// Apply defaults
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "sessiond"
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	if cfg.ServerTTL <= 0 {
		cfg.ServerTTL = time.Minute
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Directory{
		cfg:       cfg,
		rdb:       cfg.Client,
		listeners: make(map[int]backend.Listener),
		cache:     make(map[online.ID]*lobbyState),
		subs:      make(map[online.ID]*redis.PubSub),
	}, nil
}

// Close releases every lobby subscription and stops the server heartbeat.
func (d *Directory) Close() error {
	d.mu.Lock()
	subs := d.subs
	d.subs = make(map[online.ID]*redis.PubSub)
	stop := d.stopBeat
	d.stopBeat = nil
	d.mu.Unlock()

	if stop != nil {
		stop()
	}

	var err error
	for _, s := range subs {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	return err
}

func (d *Directory) key(parts ...string) string {
	k := d.cfg.KeyPrefix
	for _, p := range parts {
		k += ":" + p
	}

	return k
}

func (d *Directory) lobbyKey(id online.ID, suffix string) string {
	if suffix == "" {
		return d.key("lobby", id.String())
	}

	return d.key("lobby", id.String(), suffix)
}

func (d *Directory) serverKey(id online.ID, suffix string) string {
	if suffix == "" {
		return d.key("server", id.String())
	}

	return d.key("server", id.String(), suffix)
}

// run executes fn on a new goroutine with the request timeout and resolves
// the returned call with its outcome.
func run[T any](d *Directory, fn func(ctx context.Context) (T, error)) *backend.Call[T] {
	c := backend.NewCall[T]()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		defer cancel()

		v, err := fn(ctx)
		if err != nil {
			d.cfg.Logger.
				WithField("error", err.Error()).
				Debug("redis request failed")

			err = wrapResult(err)
		}

		c.Resolve(v, err)
	}()

	return c
}

// wrapResult attaches a backend result code to redis errors.
func wrapResult(err error) error {
	var re backend.ResultError
	switch {
	case errors.As(err, &re):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s", backend.ResultTimeout.Err(), err)
	case errors.Is(err, redis.Nil):
		return fmt.Errorf("%w: %s", backend.ResultFileNotFound.Err(), err)
	default:
		return fmt.Errorf("%w: %s", backend.ResultServiceUnavailable.Err(), err)
	}
}

// Subscribe implements backend.Notifier.
func (d *Directory) Subscribe(l backend.Listener) func() {
	d.mu.Lock()
	id := d.nextListener
	d.nextListener++
	d.listeners[id] = l
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

func (d *Directory) notify(fn func(l backend.Listener)) {
	d.mu.Lock()
	ls := make([]backend.Listener, 0, len(d.listeners))
	for i := 0; i < d.nextListener; i++ {
		if l, ok := d.listeners[i]; ok {
			ls = append(ls, l)
		}
	}
	d.mu.Unlock()

	for _, l := range ls {
		fn(l)
	}
}

// OpenQueries returns the number of server browser queries not yet
// cancelled.
func (d *Directory) OpenQueries() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.openQueries
}

func parseID(s string) online.ID {
	id, err := online.ParseID(s)
	if err != nil {
		return online.InvalidID
	}

	return id
}

func parseIDs(ss []string) []online.ID {
	out := make([]online.ID, 0, len(ss))
	for _, s := range ss {
		if id := parseID(s); id.IsValid() {
			out = append(out, id)
		}
	}

	return out
}

func pairs(m map[string]string) []interface{} {
	out := make([]interface{}, 0, 2*len(m))
	for k, v := range m {
		out = append(out, k, v)
	}

	return out
}

func encodeEvent(e lobbyEvent) string {
	b, _ := json.Marshal(e)
	return string(b)
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func copyData(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

// sortCandidates orders lobbies by id so results are stable across calls.
func sortCandidates(c []backend.LobbyCandidate) {
	sort.Slice(c, func(i, j int) bool { return c[i].ID < c[j].ID })
}

var (
	_ backend.Lobbies       = (*Directory)(nil)
	_ backend.GameServer    = (*Directory)(nil)
	_ backend.ServerBrowser = (*Directory)(nil)
	_ backend.Notifier      = (*Directory)(nil)
)
