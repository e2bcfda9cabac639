package memory

import (
	"net/netip"
	"sync"
	"testing"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/stretchr/testify/require"
)

type (
	recordingListener struct {
		backend.BaseListener

		mu       sync.Mutex
		data     []online.ID
		members  []backend.MemberChange
		invites  []online.ID
		joins    []string
		statuses []online.ConnectionStatus
		shutdown int
	}

	serverCollector struct {
		servers  []backend.ServerDetails
		complete bool
	}

	rulesCollector struct {
		rules    map[string]string
		failed   bool
		complete bool
	}
)

func (r *recordingListener) LobbyDataUpdated(lobby, _ online.ID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ok {
		r.data = append(r.data, lobby)
	}
}

func (r *recordingListener) LobbyMemberChanged(_, _ online.ID, change backend.MemberChange) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members = append(r.members, change)
}

func (r *recordingListener) LobbyInviteReceived(_, lobby online.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.invites = append(r.invites, lobby)
}

func (r *recordingListener) JoinRequested(_ online.ID, connect string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.joins = append(r.joins, connect)
}

func (r *recordingListener) ConnectionStatusChanged(status online.ConnectionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses = append(r.statuses, status)
}

func (r *recordingListener) ShutdownRequested() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.shutdown++
}

func (s *serverCollector) ServerResponded(d backend.ServerDetails) { s.servers = append(s.servers, d) }
func (s *serverCollector) ServerFailedToRespond(netip.AddrPort)    {}
func (s *serverCollector) RefreshComplete()                        { s.complete = true }

func (r *rulesCollector) RulesResponded(k, v string) {
	if r.rules == nil {
		r.rules = make(map[string]string)
	}

	r.rules[k] = v
}

func (r *rulesCollector) RulesFailedToRespond() { r.failed = true }
func (r *rulesCollector) RulesRefreshComplete() { r.complete = true }

func TestLobbyLifecycle(t *testing.T) {
	t.Parallel()
	n := NewNetwork()
	host := n.NewClient(1, "host")
	guest := n.NewClient(2, "guest")

	hostEvents := &recordingListener{}
	unsub := host.Subscribe(hostEvents)
	defer unsub()

	guestEvents := &recordingListener{}
	guest.Subscribe(guestEvents)

	id, done, err := host.CreateLobby(backend.LobbyPublic, 2).Poll()
	require.True(t, done)
	require.NoError(t, err)
	require.True(t, id.IsLobby())
	require.Equal(t, host.LocalUser(), host.LobbyOwner(id))

	require.NoError(t, host.SetLobbyData(id, map[string]string{"MAPNAME_s": "dust"}))
	require.ErrorIs(t, guest.SetLobbyData(id, nil), backend.ResultAccessDenied.Err())

	ids, _, err := guest.RequestLobbyList(backend.LobbyFilter{MinSlots: 1}).Poll()
	require.NoError(t, err)
	require.Equal(t, []online.ID{id}, ids)

	require.NoError(t, guest.RequestLobbyData(id))
	require.Equal(t, []online.ID{id}, guestEvents.data)

	enter, _, err := guest.JoinLobby(id).Poll()
	require.NoError(t, err)
	require.Equal(t, "dust", enter.Data["MAPNAME_s"])
	require.Equal(t, []online.ID{host.LocalUser(), guest.LocalUser()}, enter.Members)
	require.Equal(t, []backend.MemberChange{backend.MemberEntered}, hostEvents.members)

	// Full lobbies are no longer listed with a slot filter.
	ids, _, err = guest.RequestLobbyList(backend.LobbyFilter{MinSlots: 1}).Poll()
	require.NoError(t, err)
	require.Empty(t, ids)

	third := n.NewClient(3, "third")
	_, _, err = third.JoinLobby(id).Poll()
	require.Equal(t, backend.ResultFull, backend.ResultOf(err))

	require.NoError(t, host.LeaveLobby(id))
	require.Equal(t, guest.LocalUser(), guest.LobbyOwner(id), "ownership passes on")
	require.Equal(t, []backend.MemberChange{backend.MemberLeft}, guestEvents.members)

	require.NoError(t, guest.LeaveLobby(id))
	require.Zero(t, n.Lobbies())
	require.Error(t, guest.LeaveLobby(id))
}

func TestLobbyVisibility(t *testing.T) {
	t.Parallel()
	n := NewNetwork()
	host := n.NewClient(1, "host")

	private, _, err := host.CreateLobby(backend.LobbyPrivate, 4).Poll()
	require.NoError(t, err)

	public, _, err := host.CreateLobby(backend.LobbyPublic, 4).Poll()
	require.NoError(t, err)

	closed, _, err := host.CreateLobby(backend.LobbyPublic, 4).Poll()
	require.NoError(t, err)
	require.NoError(t, host.SetLobbyJoinable(closed, false))

	guest := n.NewClient(2, "guest")
	ids, _, err := guest.RequestLobbyList(backend.LobbyFilter{}).Poll()
	require.NoError(t, err)
	require.Equal(t, []online.ID{public}, ids)

	_, _, err = guest.JoinLobby(closed).Poll()
	require.Equal(t, backend.ResultAccessDenied, backend.ResultOf(err))

	require.NoError(t, host.SetLobbyType(private, backend.LobbyPublic))
	ids, _, err = guest.RequestLobbyList(backend.LobbyFilter{}).Poll()
	require.NoError(t, err)
	require.Equal(t, []online.ID{private, public}, ids)
}

func TestFailNextAndStall(t *testing.T) {
	t.Parallel()
	n := NewNetwork()
	c := n.NewClient(1, "user")

	c.FailNext(OpCreateLobby, backend.ResultBusy)
	_, _, err := c.CreateLobby(backend.LobbyPublic, 2).Poll()
	require.Equal(t, backend.ResultBusy, backend.ResultOf(err))

	id, _, err := c.CreateLobby(backend.LobbyPublic, 2).Poll()
	require.NoError(t, err, "failures only apply once")

	events := &recordingListener{}
	c.Subscribe(events)

	c.StallLobbyData(true)
	require.NoError(t, c.RequestLobbyData(id))
	require.Empty(t, events.data)

	require.Error(t, c.RequestLobbyData(online.NewUserID(5)))
}

func TestServerBrowser(t *testing.T) {
	t.Parallel()
	n := NewNetwork()
	host := n.NewClient(1, "host")
	browser := n.NewClient(2, "browser")

	require.False(t, host.ServerLoggedOn())
	id, _, err := host.LogOn(backend.ServerDetails{AppID: 480, Name: "srv", MaxPlayers: 8}).Poll()
	require.NoError(t, err)
	require.True(t, id.IsGameServer())
	require.True(t, host.ServerLoggedOn())
	require.NoError(t, host.SetRules(map[string]string{"MAPNAME_s": "dust", "BUILDID": "1"}))
	require.NoError(t, host.UpdateDetails(backend.ServerDetails{AppID: 480, Name: "renamed", MaxPlayers: 8}))

	list := &serverCollector{}
	q := browser.RequestServerList(backend.ServerFilter{AppID: 480}, list)
	require.True(t, list.complete)
	require.Len(t, list.servers, 1)
	require.Equal(t, "renamed", list.servers[0].Name)
	require.Equal(t, id, list.servers[0].ServerID)
	require.True(t, list.servers[0].QueryAddr.IsValid())
	require.Equal(t, 1, n.OpenQueries())

	rules := &rulesCollector{}
	rq := browser.RequestRules(list.servers[0].QueryAddr, rules)
	require.True(t, rules.complete)
	require.Equal(t, "dust", rules.rules["MAPNAME_s"])
	require.Equal(t, 2, n.OpenQueries())

	missing := &rulesCollector{}
	mq := browser.RequestRules(netip.MustParseAddrPort("192.0.2.1:1"), missing)
	require.True(t, missing.failed)

	q.Cancel()
	q.Cancel()
	rq.Cancel()
	mq.Cancel()
	require.Zero(t, n.OpenQueries())

	_, _, err = host.LogOff().Poll()
	require.NoError(t, err)
	require.Zero(t, n.Servers())
	require.Error(t, host.SetRules(nil))
}

func TestFriends(t *testing.T) {
	t.Parallel()
	n := NewNetwork()
	host := n.NewClient(1, "host")
	friend := n.NewClient(2, "friend")
	viewer := n.NewClient(3, "viewer")

	_, ok := viewer.FriendGame(friend.LocalUser())
	require.False(t, ok)

	lobbyID, _, err := friend.CreateLobby(backend.LobbyFriendsOnly, 4).Poll()
	require.NoError(t, err)

	game, ok := viewer.FriendGame(friend.LocalUser())
	require.True(t, ok)
	require.Equal(t, lobbyID, game.Lobby)

	require.NoError(t, friend.LeaveLobby(lobbyID))

	_, _, err = host.LogOn(backend.ServerDetails{AppID: 480}).Poll()
	require.NoError(t, err)

	game, ok = viewer.FriendGame(host.LocalUser())
	require.True(t, ok)
	require.True(t, game.Server.IsValid())

	list := &serverCollector{}
	viewer.RequestServerList(backend.ServerFilter{}, list).Cancel()
	friend.SetRichPresence("connect", list.servers[0].Addr.String())

	game, ok = viewer.FriendGame(friend.LocalUser())
	require.True(t, ok)
	require.Equal(t, list.servers[0].QueryAddr, game.Server)

	events := &recordingListener{}
	friend.Subscribe(events)
	require.NoError(t, viewer.InviteUserToGame(friend.LocalUser(), "10.0.0.1:7777"))
	require.Equal(t, []string{"10.0.0.1:7777"}, events.joins)
	require.Error(t, viewer.InviteUserToGame(online.NewUserID(99), "x"))

	lobbyID, _, err = viewer.CreateLobby(backend.LobbyPrivate, 2).Poll()
	require.NoError(t, err)
	require.NoError(t, viewer.InviteUserToLobby(lobbyID, friend.LocalUser()))
	require.Equal(t, []online.ID{lobbyID}, events.invites)

	friend.SetLoggedOn(false)
	require.False(t, friend.IsLoggedOn())
	friend.RequestShutdown()
	require.Equal(t, []online.ConnectionStatus{online.StatusNotConnected}, events.statuses)
	require.Equal(t, 1, events.shutdown)
}

func TestVoiceAndStats(t *testing.T) {
	t.Parallel()
	c := NewNetwork().NewClient(1, "user")
	other := online.NewUserID(2)

	c.RegisterLocalTalker(0)
	c.RegisterRemoteTalker(other)
	c.RegisterRemoteTalker(online.NewUserID(3))
	c.UnregisterRemoteTalker(online.NewUserID(3))
	require.Equal(t, []int{0}, c.LocalTalkers())
	require.Equal(t, []online.ID{other}, c.RemoteTalkers())

	c.RemoveAllRemoteTalkers()
	require.Empty(t, c.RemoteTalkers())

	c.ProcessMuteChangeNotification(0)
	require.Equal(t, 1, c.MuteChanges())

	require.NoError(t, c.FlushLeaderboards("Game1"))
	require.Equal(t, []string{"Game1"}, c.Flushed())

	c.SetPlayedWith(other)
	c.RequestUserInformation(other)
	require.Equal(t, []online.ID{other}, c.PlayedWith())
	require.Equal(t, []online.ID{other}, c.RequestedUsers())

	require.NoError(t, c.Services().Validate())
}
