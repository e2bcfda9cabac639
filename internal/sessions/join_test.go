package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend/memory"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/stretchr/testify/require"
)

// findLobby runs a presence search on h and returns its only result.
func (h *harness) findLobby() online.SearchResult {
	h.t.Helper()

	search := presenceSearch()
	require.NoError(h.t, h.m.FindSessions(0, search))
	h.pump(5)
	require.Equal(h.t, online.SearchDone, search.State)
	require.Len(h.t, search.Results, 1)

	return search.Results[0]
}

// findServer runs a server search on h and returns its only result.
func (h *harness) findServer() online.SearchResult {
	h.t.Helper()

	search := online.NewSearchSettings(10)
	require.NoError(h.t, h.m.FindSessions(0, search))
	h.pump(3)
	require.Equal(h.t, online.SearchDone, search.State)
	require.Len(h.t, search.Results, 1)

	return search.Results[0]
}

func TestJoinSession_Lobby(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	host := newHarness(t, net, 1, testConfig())
	client := newHarness(t, net, 2, testConfig())
	hosted := host.hostLobby(4)

	joined := record(&client.m.OnJoinSessionComplete)
	hostRegistered := record(&host.m.OnRegisterPlayersComplete)

	result := client.findLobby()
	require.NoError(t, client.m.JoinSession(0, "game", result))
	require.Empty(t, joined.all(), "lobby joins complete from Tick")

	pumpAll(3, client, host)

	require.Equal(t, []JoinOutcome{{Name: "game", Result: online.JoinSuccess}}, joined.all())

	s := client.session("game")
	require.Equal(t, online.Pending, s.State)
	require.False(t, s.Hosting)
	require.Equal(t, hosted.Info.SessionID, s.Info.SessionID)
	require.Equal(t, host.c.LocalUser(), s.OwningUserID)
	require.Equal(t, []online.ID{host.c.LocalUser()}, s.RegisteredPlayers)
	require.Equal(t, []int{0}, client.c.LocalTalkers())
	require.Equal(t, []online.ID{host.c.LocalUser()}, client.c.RemoteTalkers())

	connect, err := client.m.GetResolvedConnectString("game")
	require.NoError(t, err)
	require.Equal(t, hosted.Info.PeerAddr.String(), connect)

	require.Equal(t, []PlayersOutcome{{Name: "game", Players: []online.ID{client.c.LocalUser()}, Success: true}}, hostRegistered.all())
	require.Equal(t, int32(3), host.session("game").NumOpenPublicConnections)

	require.NoError(t, client.m.DestroySession("game"))
	hostUnregistered := record(&host.m.OnUnregisterPlayersComplete)
	pumpAll(3, client, host)

	require.Empty(t, client.m.Sessions())
	require.Empty(t, client.c.RemoteTalkers(), "the last session drops every remote talker")
	require.Len(t, hostUnregistered.all(), 1)
	require.Equal(t, int32(4), host.session("game").NumOpenPublicConnections)
}

func TestJoinSession_SettingsRefresh(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	host := newHarness(t, net, 1, testConfig())
	client := newHarness(t, net, 2, testConfig())
	hosted := host.hostLobby(4)

	require.NoError(t, client.m.JoinSession(0, "game", client.findLobby()))
	pumpAll(3, client, host)

	updates := record(&client.m.OnSessionSettingsUpdated)

	settings := hosted.Settings.Clone()
	settings.Set(online.SettingMapName, online.String("dm-tower"), online.ViaOnlineService)
	require.NoError(t, host.m.UpdateSession("game", settings, true))
	pumpAll(2, host, client)

	require.NotEmpty(t, updates.all())

	last := updates.all()[len(updates.all())-1]
	require.Equal(t, "game", last.Name)

	v, ok := last.Settings.Get(online.SettingMapName)
	require.True(t, ok)
	require.Equal(t, "dm-tower", v.String())

	joined := client.session("game")
	got, _ := joined.Settings.Get(online.SettingMapName)
	require.Equal(t, "dm-tower", got.String())
}

func TestJoinSession_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prepare func(t *testing.T, client, other *harness, r *online.SearchResult)
		want    online.JoinResult
	}{
		{
			name: "full",
			prepare: func(t *testing.T, _, other *harness, r *online.SearchResult) {
				_, _, err := other.m.svc.Lobbies.JoinLobby(r.Session.Info.SessionID).Poll()
				require.NoError(t, err)
			},
			want: online.JoinSessionIsFull,
		},
		{
			name: "missing lobby",
			prepare: func(_ *testing.T, _, _ *harness, r *online.SearchResult) {
				r.Session.Info.SessionID = online.NewLobbyID(999)
			},
			want: online.JoinSessionDoesNotExist,
		},
		{
			name: "backend failure",
			prepare: func(_ *testing.T, client, _ *harness, _ *online.SearchResult) {
				client.c.FailNext(memory.OpJoinLobby, backend.ResultServiceUnavailable)
			},
			want: online.JoinUnknownError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			net := memory.NewNetwork()
			host := newHarness(t, net, 1, testConfig())
			other := newHarness(t, net, 3, testConfig())
			client := newHarness(t, net, 2, testConfig())
			host.hostLobby(2)

			r := client.findLobby()
			tt.prepare(t, client, other, &r)

			joined := record(&client.m.OnJoinSessionComplete)
			require.NoError(t, client.m.JoinSession(0, "game", r))
			client.pump(2)

			require.Equal(t, []JoinOutcome{{Name: "game", Result: tt.want}}, joined.all())
			require.Empty(t, client.m.Sessions())
		})
	}
}

func TestJoinSession_Rejected(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	host := newHarness(t, net, 1, testConfig())
	client := newHarness(t, net, 2, testConfig())
	host.hostLobby(4)

	result := client.findLobby()
	joined := record(&client.m.OnJoinSessionComplete)

	require.NoError(t, client.m.CreateSession(0, "game", online.SessionSettings{NumPublicConnections: 2, IsLANMatch: true}))
	require.ErrorIs(t, client.m.JoinSession(0, "game", result), online.ErrSessionExists)

	invalid := result
	invalid.Session.Info.PeerAddr = online.PeerAddress{}
	require.ErrorIs(t, client.m.JoinSession(0, "other", invalid), online.ErrInvalidSessionInfo)

	require.Equal(t, []JoinOutcome{
		{Name: "game", Result: online.JoinAlreadyInSession},
		{Name: "other", Result: online.JoinCouldNotRetrieveAddress},
	}, joined.all())
	require.Zero(t, client.runner.Pending())
}

func TestJoinSession_Advertised(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	host := newHarness(t, net, 1, testConfig())
	client := newHarness(t, net, 2, testConfig())
	host.hostServer(8)

	result := client.findServer()
	joined := record(&client.m.OnJoinSessionComplete)

	require.NoError(t, client.m.JoinSession(0, "game", result))
	require.Equal(t, []JoinOutcome{{Name: "game", Result: online.JoinSuccess}}, joined.all())

	s := client.session("game")
	require.Equal(t, online.SessionTypeAdvertisedClient, s.Info.Type)
	require.Equal(t, online.Pending, s.State)

	connect, err := client.m.GetResolvedConnectString("game")
	require.NoError(t, err)
	require.Equal(t, result.Session.Info.HostAddr.String(), connect)
	require.Equal(t, connect, client.c.RichPresence(presenceConnect))

	require.NoError(t, client.m.DestroySession("game"))
	client.pump(1)
	require.Empty(t, client.c.RichPresence(presenceConnect))
	require.Equal(t, 1, net.Servers(), "clients never log the server off")

	_, err = client.m.GetResolvedConnectString("game")
	require.ErrorIs(t, err, online.ErrSessionNotFound)
}

func TestFindFriendSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		host func(h *harness) online.NamedSession
		want online.SessionType
	}{
		{name: "lobby", host: func(h *harness) online.NamedSession { return h.hostLobby(4) }, want: online.SessionTypeLobby},
		{name: "server", host: func(h *harness) online.NamedSession { return h.hostServer(4) }, want: online.SessionTypeAdvertisedClient},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			net := memory.NewNetwork()
			host := newHarness(t, net, 1, testConfig())
			client := newHarness(t, net, 2, testConfig())
			hosted := tt.host(host)

			found := record(&client.m.OnFindFriendSessionComplete)
			require.NoError(t, client.m.FindFriendSession(0, host.c.LocalUser()))
			client.pump(3)

			got := found.all()
			require.Len(t, got, 1)
			require.True(t, got[0].Success)
			require.Len(t, got[0].Results, 1)

			r := got[0].Results[0]
			require.Equal(t, tt.want, r.Session.Info.Type)
			require.Equal(t, hosted.Info.SessionID, r.Session.Info.SessionID)
			require.True(t, r.IsValid())
			require.Zero(t, net.OpenQueries())
		})
	}
}

func TestFindFriendSession_NotInSession(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	friend := newHarness(t, net, 1, testConfig())
	client := newHarness(t, net, 2, testConfig())

	found := record(&client.m.OnFindFriendSessionComplete)
	require.ErrorIs(t, client.m.FindFriendSession(3, friend.c.LocalUser()), online.ErrFriendNotInSession)
	require.Equal(t, []FriendOutcome{{LocalUserNum: 3}}, found.all())
}

func TestSendSessionInvite(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	host := newHarness(t, net, 1, testConfig())
	friend := newHarness(t, net, 2, testConfig())
	hosted := host.hostLobby(4)

	invites := record(&friend.m.OnSessionInviteReceived)
	require.NoError(t, host.m.SendSessionInviteToFriend(0, "game", friend.c.LocalUser()))
	friend.pump(1)
	require.Equal(t, []Invite{{From: host.c.LocalUser(), Lobby: hosted.Info.SessionID}}, invites.all())

	err := host.m.SendSessionInviteToFriends(0, "game", []online.ID{friend.c.LocalUser(), online.NewUserID(404)})
	require.Error(t, err)
	friend.pump(1)
	require.Len(t, invites.all(), 2)

	require.ErrorIs(t, host.m.SendSessionInviteToFriend(0, "nope", friend.c.LocalUser()), online.ErrSessionNotFound)

	require.NoError(t, host.m.CreateSession(0, "lan", online.SessionSettings{NumPublicConnections: 2, IsLANMatch: true}))
	require.ErrorIs(t, host.m.SendSessionInviteToFriend(0, "lan", friend.c.LocalUser()), online.ErrUnsupported)
}

func TestSendSessionInvite_Advertised(t *testing.T) {
	t.Parallel()
	net := memory.NewNetwork()
	host := newHarness(t, net, 1, testConfig())
	friend := newHarness(t, net, 2, testConfig())
	host.hostServer(4)

	requests := record(&friend.m.OnSessionJoinRequested)
	require.NoError(t, host.m.SendSessionInviteToFriends(0, "game", []online.ID{friend.c.LocalUser()}))
	friend.pump(1)

	connect, err := host.m.GetResolvedConnectString("game")
	require.NoError(t, err)
	require.Equal(t, []JoinRequest{{From: host.c.LocalUser(), Connect: connect}}, requests.all())
}

func TestPassiveEvents(t *testing.T) {
	t.Parallel()
	h := newHarness(t, memory.NewNetwork(), 1, testConfig())

	statuses := record(&h.m.OnConnectionStatusChanged)
	shutdowns := record(&h.m.OnShutdownRequested)

	h.c.SetLoggedOn(false)
	h.c.SetLoggedOn(false)
	h.c.RequestShutdown()
	require.Empty(t, statuses.all(), "events are delivered from Tick")

	h.m.Tick(step)

	require.Equal(t, []StatusChange{{Old: online.StatusConnected, New: online.StatusNotConnected}}, statuses.all())
	require.Equal(t, online.StatusNotConnected, h.m.Status())
	require.Len(t, shutdowns.all(), 1)

	require.NoError(t, h.m.Shutdown())
	h.c.SetLoggedOn(true)
	h.m.Tick(step)
	require.Len(t, statuses.all(), 1, "shut down managers are unsubscribed")
}

func TestRunWorker(t *testing.T) {
	t.Parallel()
	h := newHarness(t, memory.NewNetwork(), 1, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.m.RunWorker(ctx) }()

	created := record(&h.m.OnCreateSessionComplete)
	require.NoError(t, h.m.CreateSession(0, "game", lobbySettings(4)))

	require.Eventually(t, func() bool {
		h.m.Tick(step)
		return len(created.all()) == 1
	}, 5*time.Second, 5*time.Millisecond)

	require.True(t, created.all()[0].Success)
	require.Equal(t, online.Pending, h.session("game").State)

	cancel()
	require.NoError(t, <-done)
}
