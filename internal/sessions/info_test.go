package sessions

import (
	"net/netip"
	"testing"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend/memory"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online/kv"
	"github.com/stretchr/testify/require"
)

func mustKey(t *testing.T, name string, v online.Value) string {
	t.Helper()

	key, ok := kv.Key(name, v)
	require.True(t, ok)

	return key
}

func TestLobbyFilter(t *testing.T) {
	t.Parallel()

	search := online.NewSearchSettings(5)
	search.Set(online.SearchPresence, online.Bool(true), online.OpEquals)
	search.Set(online.SearchMinSlotsAvailable, online.Int32(2), online.OpGreaterThanEquals)
	search.Set(online.SearchDedicatedOnly, online.Bool(true), online.OpEquals)
	search.Set(online.SettingMapName, online.String("dm-arena"), online.OpEquals)
	search.Set("SKILL", online.Int32(1500), online.OpNear)
	search.Set("LEVEL", online.Int64(10), online.OpGreaterThan)
	search.Set("RANKED", online.Bool(true), online.OpEquals)

	got := lobbyFilter(search)

	require.Equal(t, backend.LobbyFilter{
		MaxResults: 5,
		Distance:   backend.DistanceDefault,
		MinSlots:   2,
		Numeric: []backend.NumericFilter{
			{Key: mustKey(t, "LEVEL", online.Int64(10)), Value: 10, Op: online.OpGreaterThan},
		},
		Strings: []backend.StringFilter{
			{Key: mustKey(t, online.SettingMapName, online.String("")), Value: "dm-arena", Op: online.OpEquals},
			{Key: mustKey(t, "RANKED", online.Bool(true)), Value: "true", Op: online.OpEquals},
		},
		Near: []backend.NearFilter{
			{Key: mustKey(t, "SKILL", online.Int32(0)), Value: 1500},
		},
	}, got)
}

func TestLobbyFilter_LargeIntegers(t *testing.T) {
	t.Parallel()

	const id = int64(1<<53 + 1)

	search := online.NewSearchSettings(5)
	search.Set("OWNERID", online.Int64(id), online.OpEquals)
	search.Set("SEED", online.Int64(id), online.OpNear)

	got := lobbyFilter(search)
	require.Equal(t, []backend.NumericFilter{
		{Key: mustKey(t, "OWNERID", online.Int64(0)), Value: id, Op: online.OpEquals},
	}, got.Numeric)
	require.Equal(t, []backend.NearFilter{
		{Key: mustKey(t, "SEED", online.Int64(0)), Value: id},
	}, got.Near)
}

func TestServerFilter(t *testing.T) {
	t.Parallel()

	search := online.NewSearchSettings(5)
	search.Set(online.SearchDedicatedOnly, online.Bool(true), online.OpEquals)
	search.Set(online.SearchSecureServersOnly, online.Bool(false), online.OpEquals)
	search.Set(online.SearchEmptyServersOnly, online.Bool(true), online.OpEquals)
	search.Set(online.SearchNonEmptyServersOnly, online.String("true"), online.OpEquals)
	search.Set(online.SearchMinSlotsAvailable, online.Int64(3), online.OpEquals)
	search.Set(online.SearchKeywords, online.String("ctf, ranked,,"), online.OpEquals)
	search.Set(online.SettingMapName, online.String("ctf-docks"), online.OpEquals)
	search.Set("SKILL", online.Int32(1500), online.OpNear)

	require.Equal(t, backend.ServerFilter{
		AppID:         480,
		DedicatedOnly: true,
		EmptyOnly:     true,
		MinSlots:      3,
		Map:           "ctf-docks",
		Keywords:      []string{"ctf", "ranked"},
	}, serverFilter(480, search))
}

func TestServerDetails(t *testing.T) {
	t.Parallel()
	h := newHarness(t, memory.NewNetwork(), 1, testConfig())

	s := online.Session{
		OwningUserName:            "host",
		NumOpenPublicConnections:  3,
		NumOpenPrivateConnections: 1,
		Settings:                  serverSettings(6),
	}
	s.Settings.NumPrivateConnections = 2
	s.Settings.AntiCheatProtected = true

	d := h.m.serverDetails(&s)
	require.Equal(t, int16(480), d.AppID)
	require.Equal(t, "host", d.Name)
	require.Equal(t, "ctf-docks", d.Map)
	require.Equal(t, int32(4), d.Players)
	require.Equal(t, int32(8), d.MaxPlayers)
	require.True(t, d.Dedicated)
	require.True(t, d.Secure)
	require.False(t, d.Addr.IsValid())

	cfg := testConfig()
	cfg.PublicIP = netip.MustParseAddr("203.0.113.7")
	h = newHarness(t, memory.NewNetwork(), 1, cfg)

	d = h.m.serverDetails(&s)
	require.Equal(t, netip.MustParseAddrPort("203.0.113.7:7777"), d.Addr)
	require.Equal(t, netip.MustParseAddrPort("203.0.113.7:27015"), d.QueryAddr)
}

func TestServerResult_Ping(t *testing.T) {
	t.Parallel()
	h := newHarness(t, memory.NewNetwork(), 1, testConfig())

	id := online.NewGameServerID(5)
	s := online.Session{
		OwningUserID: id,
		Settings:     serverSettings(4),
		Info:         online.SessionInfo{PeerAddr: online.PeerAddress{ID: id, Port: 7777}},
	}
	s.Settings.BuildUniqueID = 7
	rules := kv.SessionData(&s)

	tests := []struct {
		name string
		ping time.Duration
		want int32
	}{
		{name: "measured", ping: 35 * time.Millisecond, want: 35},
		{name: "unknown", ping: 0, want: online.MaxQueryPing},
		{name: "capped", ping: time.Hour, want: online.MaxQueryPing},
	}

	for _, tt := range tests {
		r, ok := h.m.serverResult(backend.ServerDetails{ServerID: id, Ping: tt.ping}, rules, h.m.logger)
		require.True(t, ok, tt.name)
		require.Equal(t, tt.want, r.PingMs, tt.name)
		require.Equal(t, id, r.Session.Info.SessionID, tt.name)
	}

	s.Settings.BuildUniqueID = 8
	_, ok := h.m.serverResult(backend.ServerDetails{ServerID: id}, kv.SessionData(&s), h.m.logger)
	require.False(t, ok, "other builds are dropped")
}
