package memory

import (
	"net/netip"
	"sort"
	"sync"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
)

type (
	// query is an open server browser query.
	query struct {
		net  *Network
		once sync.Once
	}
)

// Cancel implements backend.ServerQuery.
func (q *query) Cancel() {
	q.once.Do(func() {
		q.net.mu.Lock()
		q.net.openQueries--
		q.net.mu.Unlock()
	})
}

func (n *Network) openQuery() *query {
	n.mu.Lock()
	n.openQueries++
	n.mu.Unlock()

	return &query{net: n}
}

// LogOn implements backend.GameServer. Servers announcing no address are
// given a synthetic one.
func (c *Client) LogOn(details backend.ServerDetails) *backend.Call[online.ID] {
	if err := c.failure(OpLogOn); err != nil {
		return backend.Failed[online.ID](err)
	}

	n := c.net
	n.mu.Lock()
	defer n.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.serverID.IsValid() {
		return backend.Resolved(c.serverID, nil)
	}

	n.nextServer++
	details.ServerID = online.NewGameServerID(n.nextServer)
	if !details.Addr.IsValid() {
		details.Addr = syntheticAddr(details.ServerID, 7777)
	}

	if !details.QueryAddr.IsValid() {
		details.QueryAddr = syntheticAddr(details.ServerID, 27015)
	}

	n.servers[details.ServerID] = &server{details: details, rules: make(map[string]string)}
	c.serverID = details.ServerID

	return backend.Resolved(details.ServerID, nil)
}

// LogOff implements backend.GameServer.
func (c *Client) LogOff() *backend.Call[struct{}] {
	n := c.net
	n.mu.Lock()
	defer n.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(n.servers, c.serverID)
	c.serverID = online.InvalidID

	return backend.Resolved(struct{}{}, nil)
}

// ServerLoggedOn implements backend.GameServer.
func (c *Client) ServerLoggedOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.serverID.IsValid()
}

// UpdateDetails implements backend.GameServer.
func (c *Client) UpdateDetails(details backend.ServerDetails) error {
	n := c.net
	n.mu.Lock()
	defer n.mu.Unlock()

	s, ok := n.servers[c.serverIDLocked()]
	if !ok {
		return backend.ResultNoConnection.Err()
	}

	details.ServerID = s.details.ServerID
	if !details.Addr.IsValid() {
		details.Addr = s.details.Addr
	}

	if !details.QueryAddr.IsValid() {
		details.QueryAddr = s.details.QueryAddr
	}

	s.details = details

	return nil
}

// SetRules implements backend.GameServer.
func (c *Client) SetRules(rules map[string]string) error {
	n := c.net
	n.mu.Lock()
	defer n.mu.Unlock()

	s, ok := n.servers[c.serverIDLocked()]
	if !ok {
		return backend.ResultNoConnection.Err()
	}

	s.rules = copyData(rules)

	return nil
}

func (c *Client) serverIDLocked() online.ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.serverID
}

// RequestServerList implements backend.ServerBrowser. Responses are
// delivered before it returns.
func (c *Client) RequestServerList(filter backend.ServerFilter, l backend.ServerListener) backend.ServerQuery {
	n := c.net
	q := n.openQuery()

	n.mu.Lock()
	found := make([]backend.ServerDetails, 0, len(n.servers))
	for _, s := range n.servers {
		if filter.Matches(s.details) {
			d := s.details
			d.Ping = n.Latency
			found = append(found, d)
		}
	}
	n.mu.Unlock()

	sort.Slice(found, func(i, j int) bool { return found[i].ServerID < found[j].ServerID })

	for _, d := range found {
		l.ServerResponded(d)
	}

	l.RefreshComplete()

	return q
}

// RequestRules implements backend.ServerBrowser. Responses are delivered
// before it returns.
func (c *Client) RequestRules(queryAddr netip.AddrPort, l backend.RulesListener) backend.ServerQuery {
	n := c.net
	q := n.openQuery()

	var rules map[string]string

	n.mu.Lock()
	for _, s := range n.servers {
		if s.details.QueryAddr == queryAddr {
			rules = copyData(s.rules)
			break
		}
	}
	n.mu.Unlock()

	if rules == nil {
		l.RulesFailedToRespond()
		return q
	}

	keys := make([]string, 0, len(rules))
	for k := range rules {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		l.RulesResponded(k, rules[k])
	}

	l.RulesRefreshComplete()

	return q
}
