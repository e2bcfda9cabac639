package redis

import (
	"context"
	"net/netip"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type (
	memberEvents struct {
		backend.BaseListener
		mu      sync.Mutex
		changes []backend.MemberChange
		updated []online.ID
	}

	collector struct {
		mu      sync.Mutex
		servers []backend.ServerDetails
		failed  []netip.AddrPort
		rules   map[string]string
		done    bool
	}
)

func (m *memberEvents) LobbyMemberChanged(_, _ online.ID, c backend.MemberChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, c)
}

func (m *memberEvents) LobbyDataUpdated(lobby, _ online.ID, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.updated = append(m.updated, lobby)
	}
}

func (m *memberEvents) snapshot() ([]backend.MemberChange, []online.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]backend.MemberChange(nil), m.changes...), append([]online.ID(nil), m.updated...)
}

func (c *collector) ServerResponded(d backend.ServerDetails) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.servers = append(c.servers, d)
}

func (c *collector) ServerFailedToRespond(addr netip.AddrPort) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = append(c.failed, addr)
}

func (c *collector) RefreshComplete()      { c.finish() }
func (c *collector) RulesFailedToRespond() { c.finish() }
func (c *collector) RulesRefreshComplete() { c.finish() }

func (c *collector) RulesResponded(k, v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rules == nil {
		c.rules = make(map[string]string)
	}
	c.rules[k] = v
}

func (c *collector) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done = true
}

func (c *collector) isDone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// testClient connects to REDIS_ADDR, or a local server, and skips the test
// when none is reachable.
func testClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 3})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("skipping redis directory tests: %v", err)
	}

	t.Cleanup(func() { _ = rdb.Close() })

	return rdb
}

func testDirectory(t *testing.T, rdb *redis.Client, prefix string, account uint32) *Directory {
	t.Helper()

	d, err := New(Config{
		Client:    rdb,
		KeyPrefix: prefix,
		User:      online.NewUserID(account),
		Timeout:   2 * time.Second,
		Logger:    logrus.NewEntry(logrus.New()),
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = d.Close() })

	return d
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.ErrorIs(t, err, ErrClientRequired)

	_, err = New(Config{Client: redis.NewClient(&redis.Options{})})
	require.ErrorIs(t, err, ErrUserRequired)
}

func TestWrapResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want backend.Result
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: backend.ResultTimeout},
		{name: "nil", err: redis.Nil, want: backend.ResultFileNotFound},
		{name: "other", err: os.ErrClosed, want: backend.ResultServiceUnavailable},
		{name: "result", err: backend.ResultFull.Err(), want: backend.ResultFull},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, backend.ResultOf(wrapResult(tt.err)))
		})
	}
}

func TestDirectory_Lobbies(t *testing.T) {
	t.Parallel()
	rdb := testClient(t)
	prefix := "test-" + uuid.NewString()
	ctx := context.Background()

	host := testDirectory(t, rdb, prefix, 1)
	guest := testDirectory(t, rdb, prefix, 2)

	hostEvents := &memberEvents{}
	guestEvents := &memberEvents{}
	host.Subscribe(hostEvents)
	guest.Subscribe(guestEvents)

	id, err := host.CreateLobby(backend.LobbyPublic, 2).Wait(ctx)
	require.NoError(t, err)
	require.True(t, id.IsLobby())
	require.Equal(t, host.cfg.User, host.LobbyOwner(id))

	require.NoError(t, host.SetLobbyData(id, map[string]string{"map": "dust"}))
	require.ErrorIs(t, guest.SetLobbyData(id, map[string]string{"map": "x"}), backend.ResultAccessDenied.Err())

	ids, err := guest.RequestLobbyList(backend.LobbyFilter{
		Strings: []backend.StringFilter{{Key: "map", Value: "dust", Op: online.OpEquals}},
	}).Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, []online.ID{id}, ids)

	enter, err := guest.JoinLobby(id).Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, host.cfg.User, enter.Owner)
	require.Equal(t, "dust", enter.Data["map"])
	require.Len(t, enter.Members, 2)

	require.Eventually(t, func() bool {
		changes, _ := hostEvents.snapshot()
		return len(changes) == 1 && changes[0] == backend.MemberEntered
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, host.LobbyMembers(id), 2)

	// A third member does not fit.
	third := testDirectory(t, rdb, prefix, 3)
	_, err = third.JoinLobby(id).Wait(ctx)
	require.Equal(t, backend.ResultFull, backend.ResultOf(err))

	require.NoError(t, host.SetLobbyData(id, map[string]string{"map": "nuke"}))
	require.Eventually(t, func() bool {
		data, ok := guest.LobbyData(id)
		return ok && data["map"] == "nuke"
	}, 2*time.Second, 10*time.Millisecond)

	_, updated := guestEvents.snapshot()
	require.Contains(t, updated, id)

	require.NoError(t, host.LeaveLobby(id))
	require.Eventually(t, func() bool {
		return guest.LobbyOwner(id) == guest.cfg.User
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, guest.LeaveLobby(id))

	ids, err = third.RequestLobbyList(backend.LobbyFilter{}).Wait(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestDirectory_LobbyVisibility(t *testing.T) {
	t.Parallel()
	rdb := testClient(t)
	prefix := "test-" + uuid.NewString()
	ctx := context.Background()

	host := testDirectory(t, rdb, prefix, 1)
	guest := testDirectory(t, rdb, prefix, 2)

	id, err := host.CreateLobby(backend.LobbyPublic, 4).Wait(ctx)
	require.NoError(t, err)

	require.NoError(t, host.SetLobbyJoinable(id, false))
	_, err = guest.JoinLobby(id).Wait(ctx)
	require.Equal(t, backend.ResultAccessDenied, backend.ResultOf(err))

	ids, err := guest.RequestLobbyList(backend.LobbyFilter{}).Wait(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)

	require.NoError(t, host.SetLobbyJoinable(id, true))
	require.NoError(t, host.SetLobbyType(id, backend.LobbyInvisible))

	ids, err = guest.RequestLobbyList(backend.LobbyFilter{}).Wait(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)

	_, err = guest.JoinLobby(online.NewLobbyID(999999)).Wait(ctx)
	require.Equal(t, backend.ResultFileNotFound, backend.ResultOf(err))

	require.NoError(t, host.LeaveLobby(id))
}

func TestDirectory_Servers(t *testing.T) {
	t.Parallel()
	rdb := testClient(t)
	prefix := "test-" + uuid.NewString()
	ctx := context.Background()

	srv := testDirectory(t, rdb, prefix, 1)
	browser := testDirectory(t, rdb, prefix, 2)

	require.ErrorIs(t, srv.UpdateDetails(backend.ServerDetails{}), backend.ResultNoConnection.Err())

	queryAddr := netip.MustParseAddrPort("10.0.0.1:27015")
	id, err := srv.LogOn(backend.ServerDetails{
		AppID:      480,
		Name:       "test",
		Map:        "dust",
		Addr:       netip.MustParseAddrPort("10.0.0.1:7777"),
		QueryAddr:  queryAddr,
		MaxPlayers: 8,
	}).Wait(ctx)
	require.NoError(t, err)
	require.True(t, id.IsGameServer())
	require.True(t, srv.ServerLoggedOn())

	require.NoError(t, srv.SetRules(map[string]string{"b": "2", "a": "1"}))

	list := &collector{}
	q := browser.RequestServerList(backend.ServerFilter{AppID: 480, Map: "DUST"}, list)
	require.Eventually(t, list.isDone, 2*time.Second, 10*time.Millisecond)
	require.Len(t, list.servers, 1)
	require.Equal(t, id, list.servers[0].ServerID)
	require.Equal(t, 1, browser.OpenQueries())
	q.Cancel()
	q.Cancel()
	require.Zero(t, browser.OpenQueries())

	rules := &collector{}
	rq := browser.RequestRules(queryAddr, rules)
	require.Eventually(t, rules.isDone, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, map[string]string{"a": "1", "b": "2"}, rules.rules)
	rq.Cancel()

	_, err = srv.LogOff().Wait(ctx)
	require.NoError(t, err)
	require.False(t, srv.ServerLoggedOn())

	empty := &collector{}
	browser.RequestServerList(backend.ServerFilter{}, empty).Cancel()

	empty = &collector{}
	browser.RequestServerList(backend.ServerFilter{}, empty)
	require.Eventually(t, empty.isDone, 2*time.Second, 10*time.Millisecond)
	require.Empty(t, empty.servers)
}
