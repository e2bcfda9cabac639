package memory

import (
	"net/netip"
	"sync"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
)

type (
	// Client is the backend of one user. It implements every service in
	// backend.Services.
	Client struct {
		net  *Network
		user online.ID
		name string

		mu           sync.Mutex
		loggedOn     bool
		network      bool
		stallData    bool
		serverID     online.ID
		presence     map[string]string
		playedWith   []online.ID
		requested    []online.ID
		listeners    map[int]backend.Listener
		nextListener int
		failures     map[string]backend.Result

		localTalkers  []int
		remoteTalkers []online.ID
		muteChanges   int
		flushed       []string
	}
)

// Operation names accepted by FailNext.
const (
	OpCreateLobby      = "CreateLobby"
	OpRequestLobbyList = "RequestLobbyList"
	OpRequestLobbyData = "RequestLobbyData"
	OpJoinLobby        = "JoinLobby"
	OpLogOn            = "LogOn"
	OpSetLobbyData     = "SetLobbyData"
)

// Compile-time assertions that Client implements every backend service.
var (
	_ backend.Account       = (*Client)(nil)
	_ backend.Lobbies       = (*Client)(nil)
	_ backend.GameServer    = (*Client)(nil)
	_ backend.ServerBrowser = (*Client)(nil)
	_ backend.Friends       = (*Client)(nil)
	_ backend.Voice         = (*Client)(nil)
	_ backend.Leaderboards  = (*Client)(nil)
	_ backend.Notifier      = (*Client)(nil)
)

// Services returns every service backed by c.
func (c *Client) Services() backend.Services {
	return backend.Services{
		Account:       c,
		Lobbies:       c,
		GameServer:    c,
		ServerBrowser: c,
		Friends:       c,
		Voice:         c,
		Leaderboards:  c,
		Notifier:      c,
	}
}

// FailNext makes the next call of op fail with r.
func (c *Client) FailNext(op string, r backend.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures[op] = r
}

func (c *Client) failure(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.failures[op]
	if !ok {
		return nil
	}

	delete(c.failures, op)

	return r.Err()
}

// SetLoggedOn changes the login state and notifies listeners.
func (c *Client) SetLoggedOn(loggedOn bool) {
	c.mu.Lock()
	c.loggedOn = loggedOn
	c.mu.Unlock()

	status := online.StatusConnected
	if !loggedOn {
		status = online.StatusNotConnected
	}

	c.notify(func(l backend.Listener) { l.ConnectionStatusChanged(status) })
}

// SetNetworkAvailable changes the network state.
func (c *Client) SetNetworkAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.network = available
}

// StallLobbyData makes RequestLobbyData accept requests without ever
// answering them.
func (c *Client) StallLobbyData(stall bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stallData = stall
}

// RequestShutdown delivers a shutdown request to listeners.
func (c *Client) RequestShutdown() {
	c.notify(func(l backend.Listener) { l.ShutdownRequested() })
}

// Subscribe implements backend.Notifier.
func (c *Client) Subscribe(l backend.Listener) func() {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = l
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) snapshotListeners() []backend.Listener {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]backend.Listener, 0, len(c.listeners))
	for i := 0; i < c.nextListener; i++ {
		if l, ok := c.listeners[i]; ok {
			out = append(out, l)
		}
	}

	return out
}

func (c *Client) notify(fn notification) {
	deliver([]pending{{to: []*Client{c}, fn: fn}})
}

// LocalUser implements backend.Account.
func (c *Client) LocalUser() online.ID {
	return c.user
}

// LocalUserName implements backend.Account.
func (c *Client) LocalUserName() string {
	return c.name
}

// IsLoggedOn implements backend.Account.
func (c *Client) IsLoggedOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loggedOn
}

// NetworkAvailable implements backend.Account.
func (c *Client) NetworkAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.network
}

// FriendGame implements backend.Friends. Every user of the network is a
// friend of every other.
func (c *Client) FriendGame(friend online.ID) (backend.FriendGame, bool) {
	n := c.net
	n.mu.Lock()
	defer n.mu.Unlock()

	fc, ok := n.clients[friend]
	if !ok {
		return backend.FriendGame{}, false
	}

	for _, l := range n.lobbies {
		if l.isMember(friend) {
			return backend.FriendGame{Lobby: l.id}, true
		}
	}

	fc.mu.Lock()
	serverID := fc.serverID
	connect := fc.presence["connect"]
	fc.mu.Unlock()

	if s, ok := n.servers[serverID]; ok {
		return backend.FriendGame{Server: s.details.QueryAddr}, true
	}

	if addr, err := netip.ParseAddrPort(connect); err == nil {
		for _, s := range n.servers {
			if s.details.Addr == addr {
				return backend.FriendGame{Server: s.details.QueryAddr}, true
			}
		}
	}

	return backend.FriendGame{}, false
}

// InviteUserToGame implements backend.Friends. The friend receives a join
// request carrying connect.
func (c *Client) InviteUserToGame(friend online.ID, connect string) error {
	c.net.mu.Lock()
	fc, ok := c.net.clients[friend]
	c.net.mu.Unlock()

	if !ok {
		return backend.ResultFileNotFound.Err()
	}

	from := c.user
	fc.notify(func(l backend.Listener) { l.JoinRequested(from, connect) })

	return nil
}

// SetPlayedWith implements backend.Friends.
func (c *Client) SetPlayedWith(user online.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.playedWith = append(c.playedWith, user)
}

// SetRichPresence implements backend.Friends.
func (c *Client) SetRichPresence(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if value == "" {
		delete(c.presence, key)
		return
	}

	c.presence[key] = value
}

// RequestUserInformation implements backend.Friends.
func (c *Client) RequestUserInformation(user online.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requested = append(c.requested, user)
}

// RegisterLocalTalker implements backend.Voice.
func (c *Client) RegisterLocalTalker(slot int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.localTalkers = append(c.localTalkers, slot)
}

// RegisterRemoteTalker implements backend.Voice.
func (c *Client) RegisterRemoteTalker(user online.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.remoteTalkers = append(c.remoteTalkers, user)
}

// UnregisterRemoteTalker implements backend.Voice.
func (c *Client) UnregisterRemoteTalker(user online.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, t := range c.remoteTalkers {
		if t == user {
			c.remoteTalkers = append(c.remoteTalkers[:i], c.remoteTalkers[i+1:]...)
			return
		}
	}
}

// RemoveAllRemoteTalkers implements backend.Voice.
func (c *Client) RemoveAllRemoteTalkers() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.remoteTalkers = nil
}

// ProcessMuteChangeNotification implements backend.Voice.
func (c *Client) ProcessMuteChangeNotification(int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.muteChanges++
}

// FlushLeaderboards implements backend.Leaderboards.
func (c *Client) FlushLeaderboards(sessionName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.flushed = append(c.flushed, sessionName)

	return nil
}

// RemoteTalkers returns the registered remote talkers.
func (c *Client) RemoteTalkers() []online.ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]online.ID(nil), c.remoteTalkers...)
}

// LocalTalkers returns the registered local talker slots.
func (c *Client) LocalTalkers() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]int(nil), c.localTalkers...)
}

// MuteChanges returns the number of mute state reprocessing requests.
func (c *Client) MuteChanges() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.muteChanges
}

// PlayedWith returns the users marked as played with.
func (c *Client) PlayedWith() []online.ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]online.ID(nil), c.playedWith...)
}

// RequestedUsers returns the users whose information was requested.
func (c *Client) RequestedUsers() []online.ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]online.ID(nil), c.requested...)
}

// Flushed returns the sessions whose leaderboards were flushed.
func (c *Client) Flushed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.flushed...)
}

// RichPresence returns a rich presence value.
func (c *Client) RichPresence(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.presence[key]
}
