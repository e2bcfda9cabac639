package online

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionInfo_IsValid(t *testing.T) {
	t.Parallel()
	peer := PeerAddress{ID: NewUserID(1), Port: 7777}
	tests := []struct {
		name string
		info SessionInfo
		want bool
	}{
		{
			name: "lan with address",
			info: SessionInfo{Type: SessionTypeLAN, HostAddr: netip.MustParseAddrPort("192.168.1.10:7777")},
			want: true,
		},
		{
			name: "lan without port",
			info: SessionInfo{Type: SessionTypeLAN, HostAddr: netip.MustParseAddrPort("192.168.1.10:0")},
		},
		{
			name: "lan with only a peer address",
			info: SessionInfo{Type: SessionTypeLAN, PeerAddr: peer},
		},
		{
			name: "lobby",
			info: SessionInfo{Type: SessionTypeLobby, PeerAddr: peer, SessionID: NewLobbyID(5)},
			want: true,
		},
		{
			name: "lobby without id",
			info: SessionInfo{Type: SessionTypeLobby, PeerAddr: peer},
		},
		{
			name: "advertised client",
			info: SessionInfo{Type: SessionTypeAdvertisedClient, PeerAddr: peer, SessionID: NewGameServerID(2)},
			want: true,
		},
		{
			name: "untyped",
			info: SessionInfo{PeerAddr: peer, SessionID: NewGameServerID(2)},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.info.IsValid())
		})
	}
}

func TestSessionInfo_ConnectString(t *testing.T) {
	t.Parallel()
	peer := PeerAddress{ID: NewUserID(1), Port: 7777}

	s, err := SessionInfo{HostAddr: netip.MustParseAddrPort("10.0.0.2:7777"), PeerAddr: peer}.ConnectString()
	require.NoError(t, err)
	require.Equal(t, "10.0.0.2:7777", s)

	s, err = SessionInfo{HostAddr: netip.MustParseAddrPort("0.0.0.0:7777"), PeerAddr: peer}.ConnectString()
	require.NoError(t, err)
	require.Equal(t, "p2p."+NewUserID(1).String()+":7777", s)

	_, err = SessionInfo{}.ConnectString()
	require.ErrorIs(t, err, ErrInvalidSessionInfo)
}

func TestNamedSession_Clone(t *testing.T) {
	t.Parallel()
	s := NamedSession{Name: "Game1", RegisteredPlayers: []ID{NewUserID(1)}}
	s.Settings.Set(SettingMapName, String("a"), ViaOnlineService)

	c := s.Clone()
	c.RegisteredPlayers[0] = NewUserID(2)
	c.Settings.Set(SettingMapName, String("b"), ViaOnlineService)

	require.True(t, s.IsRegistered(NewUserID(1)))
	require.False(t, s.IsRegistered(NewUserID(2)))
	v, _ := s.Settings.Get(SettingMapName)
	require.Equal(t, String("a"), v)
	require.Equal(t, "InProgress", InProgress.String())
}

func TestSearchSettings(t *testing.T) {
	t.Parallel()
	s := NewSearchSettings(2)
	require.False(t, s.WantsPresence())
	s.Set(SearchPresence, Bool(true), OpEquals)
	require.True(t, s.WantsPresence())

	s.Results = []SearchResult{{PingMs: 80}, {PingMs: 20}}
	require.True(t, s.IsFull())
	s.SortResults()
	require.Equal(t, int32(20), s.Results[0].PingMs)

	s.Compare = func(a, b SearchResult) int { return int(b.PingMs) - int(a.PingMs) }
	s.SortResults()
	require.Equal(t, int32(80), s.Results[0].PingMs)
}
