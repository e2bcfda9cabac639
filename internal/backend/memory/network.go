// Package memory is an in-process matchmaking backend.
//
// A Network holds the shared lobby and server directory; every Client is the
// view of one user. Calls resolve synchronously and notifications are
// delivered on the calling goroutine once the network lock is released.
package memory

import (
	"net/netip"
	"sync"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
)

type (
	// Network is the shared state of every client.
	Network struct {
		// Latency is reported as the ping of every listed server.
		Latency time.Duration

		mu          sync.Mutex
		nextLobby   uint32
		nextServer  uint32
		lobbies     map[online.ID]*lobby
		servers     map[online.ID]*server
		clients     map[online.ID]*Client
		openQueries int
	}

	lobby struct {
		id         online.ID
		owner      online.ID
		typ        backend.LobbyType
		joinable   bool
		maxMembers int
		members    []online.ID
		data       map[string]string
	}

	server struct {
		details backend.ServerDetails
		rules   map[string]string
	}

	// notification is a listener call deferred until the lock is released.
	notification func(l backend.Listener)

	pending struct {
		to []*Client
		fn notification
	}
)

// NewNetwork returns an empty network.
func NewNetwork() *Network {
	return &Network{
		Latency: 20 * time.Millisecond,
		lobbies: make(map[online.ID]*lobby),
		servers: make(map[online.ID]*server),
		clients: make(map[online.ID]*Client),
	}
}

// NewClient returns the client of a new logged on user.
func (n *Network) NewClient(account uint32, name string) *Client {
	c := &Client{
		net:       n,
		user:      online.NewUserID(account),
		name:      name,
		loggedOn:  true,
		network:   true,
		presence:  make(map[string]string),
		listeners: make(map[int]backend.Listener),
		failures:  make(map[string]backend.Result),
	}

	n.mu.Lock()
	n.clients[c.user] = c
	n.mu.Unlock()

	return c
}

// OpenQueries returns the number of server browser queries not yet
// cancelled.
func (n *Network) OpenQueries() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.openQueries
}

// Lobbies returns the number of live lobbies.
func (n *Network) Lobbies() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.lobbies)
}

// Servers returns the number of logged on servers.
func (n *Network) Servers() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.servers)
}

// deliver runs notifications. It must be called without n.mu held.
func deliver(notes []pending) {
	for _, p := range notes {
		for _, c := range p.to {
			for _, l := range c.snapshotListeners() {
				p.fn(l)
			}
		}
	}
}

// membersLocked returns the clients of the members of l.
func (n *Network) membersLocked(l *lobby, except online.ID) []*Client {
	var out []*Client
	for _, m := range l.members {
		if m == except {
			continue
		}

		if c, ok := n.clients[m]; ok {
			out = append(out, c)
		}
	}

	return out
}

// syntheticAddr returns a unique routable looking address for servers that
// announce none.
func syntheticAddr(id online.ID, port uint16) netip.AddrPort {
	acct := id.Account()

	return netip.AddrPortFrom(netip.AddrFrom4([4]byte{10, byte(acct >> 16), byte(acct >> 8), byte(acct)}), port)
}

func (l *lobby) isMember(id online.ID) bool {
	for _, m := range l.members {
		if m == id {
			return true
		}
	}

	return false
}

func (l *lobby) remove(id online.ID) bool {
	for i, m := range l.members {
		if m == id {
			l.members = append(l.members[:i], l.members[i+1:]...)
			return true
		}
	}

	return false
}

func copyData(data map[string]string) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}

	return out
}
