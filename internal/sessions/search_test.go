package sessions

import (
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend/memory"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestFindSessions_Lobby(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	host := newHarness(t, net, 1, testConfig())
	client := newHarness(t, net, 2, testConfig())
	hosted := host.hostLobby(4)

	found := record(&client.m.OnFindSessionsComplete)
	search := presenceSearch()

	require.NoError(t, client.m.FindSessions(0, search))
	require.Equal(t, online.SearchInProgress, search.State)
	require.NotEqual(t, uuid.Nil, search.ID)

	client.pump(5)

	require.Equal(t, []bool{true}, found.all())
	require.Equal(t, online.SearchDone, search.State)
	require.Len(t, search.Results, 1)

	r := search.Results[0]
	require.True(t, r.IsValid())
	require.Equal(t, online.SessionTypeLobby, r.Session.Info.Type)
	require.Equal(t, hosted.Info.SessionID, r.Session.Info.SessionID)
	require.Equal(t, host.c.LocalUser(), r.Session.OwningUserID)
	require.Equal(t, online.MaxQueryPing, r.PingMs)

	v, ok := r.Session.Settings.Get(online.SettingMapName)
	require.True(t, ok)
	require.Equal(t, "dm-arena", v.String())
}

func TestFindSessions_LobbyOtherBuildDropped(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()

	cfg := testConfig()
	cfg.BuildUniqueID = 99

	host := newHarness(t, net, 1, cfg)
	client := newHarness(t, net, 2, testConfig())
	host.hostLobby(4)

	search := presenceSearch()
	require.NoError(t, client.m.FindSessions(0, search))
	client.pump(5)

	require.Equal(t, online.SearchDone, search.State)
	require.Empty(t, search.Results)
}

func TestFindSessions_EmptyLobbyList(t *testing.T) {
	t.Parallel()
	client := newHarness(t, memory.NewNetwork(), 2, testConfig())
	found := record(&client.m.OnFindSessionsComplete)

	search := presenceSearch()
	require.NoError(t, client.m.FindSessions(0, search))
	client.pump(2)

	require.Equal(t, []bool{true}, found.all())
	require.Equal(t, online.SearchDone, search.State)
	require.Empty(t, search.Results)
}

func TestFindSessions_LobbyDataTimeout(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	host := newHarness(t, net, 1, testConfig())
	client := newHarness(t, net, 2, testConfig())
	host.hostLobby(4)

	client.m.SetAsyncTimeout(100 * time.Millisecond)
	client.c.StallLobbyData(true)
	found := record(&client.m.OnFindSessionsComplete)

	search := presenceSearch()
	require.NoError(t, client.m.FindSessions(0, search))

	client.pump(8)
	require.Empty(t, found.all(), "the search must not finish before the timeout")
	require.Equal(t, online.SearchInProgress, search.State)

	client.pump(10)
	require.Equal(t, []bool{false}, found.all())
	require.Equal(t, online.SearchFailed, search.State)
	require.Empty(t, search.Results)
}

func TestFindSessions_Offline(t *testing.T) {
	t.Parallel()
	client := newHarness(t, memory.NewNetwork(), 2, testConfig())
	client.c.SetNetworkAvailable(false)
	found := record(&client.m.OnFindSessionsComplete)

	search := presenceSearch()
	require.NoError(t, client.m.FindSessions(0, search))
	client.pump(2)

	require.Equal(t, []bool{false}, found.all())
	require.Equal(t, online.SearchFailed, search.State)
}

func TestFindSessions_Server(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	host := newHarness(t, net, 1, testConfig())
	client := newHarness(t, net, 2, testConfig())
	hosted := host.hostServer(8)

	found := record(&client.m.OnFindSessionsComplete)
	search := online.NewSearchSettings(10)
	search.Set(online.SearchDedicatedOnly, online.Bool(true), online.OpEquals)
	search.Set(online.SettingMapName, online.String("ctf-docks"), online.OpEquals)

	require.NoError(t, client.m.FindSessions(0, search))
	client.pump(3)

	require.Equal(t, []bool{true}, found.all())
	require.Equal(t, online.SearchDone, search.State)
	require.Len(t, search.Results, 1)
	require.Zero(t, net.OpenQueries(), "every browser query is released")

	r := search.Results[0]
	require.True(t, r.IsValid())
	require.Equal(t, online.SessionTypeAdvertisedClient, r.Session.Info.Type)
	require.Equal(t, hosted.Info.SessionID, r.Session.Info.SessionID)
	require.True(t, r.Session.Info.HostAddr.IsValid())
	require.Equal(t, int32(20), r.PingMs)
	require.True(t, r.Session.Settings.IsDedicated)
}

func TestFindSessions_ServerFilteredOut(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	host := newHarness(t, net, 1, testConfig())
	client := newHarness(t, net, 2, testConfig())
	host.hostServer(8)

	search := online.NewSearchSettings(10)
	search.Set(online.SettingMapName, online.String("dm-arena"), online.OpEquals)

	require.NoError(t, client.m.FindSessions(0, search))
	client.pump(3)

	require.Equal(t, online.SearchDone, search.State)
	require.Empty(t, search.Results)
	require.Zero(t, net.OpenQueries())
}

func TestFindSessions_InProgress(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	host := newHarness(t, net, 1, testConfig())
	client := newHarness(t, net, 2, testConfig())
	host.hostLobby(4)
	client.c.StallLobbyData(true)

	found := record(&client.m.OnFindSessionsComplete)
	first := presenceSearch()
	require.NoError(t, client.m.FindSessions(0, first))

	second := presenceSearch()
	require.ErrorIs(t, client.m.FindSessions(0, second), online.ErrSearchInProgress)
	require.Equal(t, []bool{false}, found.all())
	require.Equal(t, online.SearchInProgress, first.State)
}

func TestCancelFindSessions(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	host := newHarness(t, net, 1, testConfig())
	client := newHarness(t, net, 2, testConfig())
	host.hostLobby(4)
	client.c.StallLobbyData(true)

	found := record(&client.m.OnFindSessionsComplete)
	cancelled := record(&client.m.OnCancelFindSessionsComplete)

	require.ErrorIs(t, client.m.CancelFindSessions(), online.ErrNoSearchInProgress)
	require.Equal(t, []bool{false}, cancelled.all())

	search := presenceSearch()
	require.NoError(t, client.m.FindSessions(0, search))
	client.pump(3)

	require.NoError(t, client.m.CancelFindSessions())
	require.Equal(t, online.SearchFailed, search.State)
	require.Equal(t, []bool{false}, found.all())
	require.Equal(t, []bool{false, true}, cancelled.all())

	client.pump(3)
	require.Equal(t, []bool{false}, found.all(), "the abandoned task fires nothing")
	require.Zero(t, client.runner.Pending())

	next := presenceSearch()
	client.c.StallLobbyData(false)
	require.NoError(t, client.m.FindSessions(0, next))
	client.pump(5)
	require.Equal(t, online.SearchDone, next.State)
	require.Len(t, next.Results, 1)
	require.Empty(t, search.Results, "the cancelled search keeps no results")
}

func TestCancelFindSessions_Server(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	client := newHarness(t, net, 2, testConfig())

	search := online.NewSearchSettings(10)
	require.NoError(t, client.m.FindSessions(0, search))
	require.NoError(t, client.m.CancelFindSessions())

	client.pump(2)
	require.Zero(t, net.OpenQueries())
	require.Equal(t, online.SearchFailed, search.State)
}

func TestFindSessions_LAN(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	host := newHarness(t, net, 1, testConfig())

	settings := online.SessionSettings{
		NumPublicConnections: 4,
		IsLANMatch:           true,
		ShouldAdvertise:      true,
	}
	settings.Set(online.SettingMapName, online.String("lan-party"), online.ViaOnlineService)
	require.NoError(t, host.m.CreateSession(0, "lan", settings))
	require.Equal(t, "lan", host.m.lanHostSession)

	cfg := testConfig()
	cfg.LAN.Port = int(host.m.lanHost.LocalAddr().Port())
	cfg.LAN.BroadcastAddr = "127.0.0.1"
	cfg.LAN.Timeout = time.Second

	client := newHarness(t, net, 2, cfg)
	found := record(&client.m.OnFindSessionsComplete)

	search := online.NewSearchSettings(10)
	search.IsLANQuery = true
	require.NoError(t, client.m.FindSessions(0, search))

	require.Eventually(t, func() bool {
		host.m.Tick(step)
		client.m.Tick(step)

		return search.State != online.SearchInProgress
	}, 10*time.Second, 5*time.Millisecond)

	require.Equal(t, []bool{true}, found.all())
	require.Equal(t, online.SearchDone, search.State)
	require.Len(t, search.Results, 1)

	r := search.Results[0]
	require.Equal(t, online.SessionTypeLAN, r.Session.Info.Type)
	require.Equal(t, host.session("lan").Info.SessionID, r.Session.Info.SessionID)
	require.Equal(t, uint16(7777), r.Session.Info.HostAddr.Port())
	require.LessOrEqual(t, r.PingMs, online.MaxQueryPing)

	v, ok := r.Session.Settings.Get(online.SettingMapName)
	require.True(t, ok)
	require.Equal(t, "lan-party", v.String())

	require.NoError(t, host.m.StartSession("lan"))
	require.Empty(t, host.m.lanHostSession, "in progress sessions without join in progress stop advertising")

	require.NoError(t, host.m.EndSession("lan"))
	require.Equal(t, "lan", host.m.lanHostSession)

	require.NoError(t, host.m.DestroySession("lan"))
	require.Empty(t, host.m.lanHostSession)
}

func TestFindSessions_LANInvalidBroadcast(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.LAN.BroadcastAddr = "not-an-ip"

	client := newHarness(t, memory.NewNetwork(), 2, cfg)
	found := record(&client.m.OnFindSessionsComplete)

	search := online.NewSearchSettings(10)
	search.IsLANQuery = true
	require.Error(t, client.m.FindSessions(0, search))
	require.Equal(t, []bool{false}, found.all())
	require.Equal(t, online.SearchFailed, search.State)
}

type (
	// heldBrowser answers rules queries from the wrapped browser. The first
	// failFirst queries fail. When hold is set the answers are kept until
	// the test replays them.
	heldBrowser struct {
		backend.ServerBrowser

		mu        sync.Mutex
		failFirst int
		hold      bool
		queries   []*heldRules
	}

	// heldRules is a rules query whose answer is replayed by hand.
	heldRules struct {
		l        backend.RulesListener
		keys     []string
		values   []string
		failed   bool
		complete bool
	}
)

func (b *heldBrowser) RequestRules(addr netip.AddrPort, l backend.RulesListener) backend.ServerQuery {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := &heldRules{}
	inner := b.ServerBrowser.RequestRules(addr, q)
	q.l = l

	if b.failFirst > 0 {
		b.failFirst--
		q.keys, q.values, q.failed = nil, nil, true
	}

	b.queries = append(b.queries, q)

	if !b.hold {
		for q.next() {
		}
	}

	return inner
}

func (b *heldBrowser) query(i int) *heldRules {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.queries[i]
}

func (q *heldRules) RulesResponded(key, value string) {
	q.keys = append(q.keys, key)
	q.values = append(q.values, value)
}

func (q *heldRules) RulesFailedToRespond() { q.failed = true }
func (q *heldRules) RulesRefreshComplete() { q.complete = true }

// next delivers the next callback of the answer and reports whether one
// was left.
func (q *heldRules) next() bool {
	switch {
	case q.failed:
		q.failed = false
		q.keys, q.values, q.complete = nil, nil, false
		q.l.RulesFailedToRespond()
	case len(q.keys) > 0:
		q.l.RulesResponded(q.keys[0], q.values[0])
		q.keys, q.values = q.keys[1:], q.values[1:]
	case q.complete:
		q.complete = false
		q.l.RulesRefreshComplete()
	default:
		return false
	}

	return true
}

func TestFindSessions_LobbyDataKeepsSearchAlive(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	client := newHarness(t, net, 9, testConfig())

	var lobbies []online.ID
	for account := uint32(1); account <= 3; account++ {
		host := newHarness(t, net, account, testConfig())
		lobbies = append(lobbies, host.hostLobby(4).Info.SessionID)
	}

	client.m.SetAsyncTimeout(100 * time.Millisecond)
	client.c.StallLobbyData(true)
	found := record(&client.m.OnFindSessionsComplete)

	search := presenceSearch()
	require.NoError(t, client.m.FindSessions(0, search))
	client.pump(3)

	// Each update arrives within the timeout of the previous one; together
	// they take longer than the timeout.
	for _, id := range lobbies {
		client.pump(8)
		require.Empty(t, found.all())
		listener{m: client.m}.LobbyDataUpdated(id, id, true)
	}

	client.pump(2)

	require.Equal(t, []bool{true}, found.all())
	require.Equal(t, online.SearchDone, search.State)
	require.Len(t, search.Results, len(lobbies))
}

func TestFindSessions_RulesKeepSearchAlive(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	host := newHarness(t, net, 1, testConfig())
	hosted := host.hostServer(8)

	browser := &heldBrowser{hold: true}
	client := newHarnessWith(t, net, 2, testConfig(), func(svc *backend.Services) {
		browser.ServerBrowser = svc.ServerBrowser
		svc.ServerBrowser = browser
	})
	client.m.SetAsyncTimeout(100 * time.Millisecond)
	found := record(&client.m.OnFindSessionsComplete)

	search := online.NewSearchSettings(10)
	search.Set(online.SearchDedicatedOnly, online.Bool(true), online.OpEquals)
	require.NoError(t, client.m.FindSessions(0, search))
	client.pump(1)

	q := browser.query(0)
	require.Greater(t, len(q.keys), 1)

	// Each rule arrives within the timeout of the previous one; together
	// they take longer than the timeout.
	for len(q.keys) > 0 {
		client.pump(8)
		require.Empty(t, found.all())
		require.True(t, q.next())
	}

	client.pump(8)
	require.Empty(t, found.all())
	require.True(t, q.next(), "refresh complete")
	client.pump(2)

	require.Equal(t, []bool{true}, found.all())
	require.Len(t, search.Results, 1)
	require.Equal(t, hosted.Info.SessionID, search.Results[0].Session.Info.SessionID)
}

func TestFindSessions_ServerFailedRulesFreeResultSlot(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	first := newHarness(t, net, 1, testConfig())
	second := newHarness(t, net, 2, testConfig())
	first.hostServer(8)
	second.hostServer(8)

	browser := &heldBrowser{failFirst: 1}
	client := newHarnessWith(t, net, 3, testConfig(), func(svc *backend.Services) {
		browser.ServerBrowser = svc.ServerBrowser
		svc.ServerBrowser = browser
	})
	found := record(&client.m.OnFindSessionsComplete)

	search := online.NewSearchSettings(1)
	search.Set(online.SearchDedicatedOnly, online.Bool(true), online.OpEquals)
	require.NoError(t, client.m.FindSessions(0, search))
	client.pump(4)

	require.Equal(t, []bool{true}, found.all())
	require.Len(t, search.Results, 1, "a listed server takes the slot of the one that failed")
	require.Len(t, browser.queries, 2)
	require.Zero(t, net.OpenQueries())
}
