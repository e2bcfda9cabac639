package memory

import (
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
)

// CreateLobby implements backend.Lobbies. The creator is the owner and only
// member.
func (c *Client) CreateLobby(typ backend.LobbyType, maxMembers int) *backend.Call[online.ID] {
	if err := c.failure(OpCreateLobby); err != nil {
		return backend.Failed[online.ID](err)
	}

	n := c.net
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextLobby++
	l := &lobby{
		id:         online.NewLobbyID(n.nextLobby),
		owner:      c.user,
		typ:        typ,
		joinable:   true,
		maxMembers: maxMembers,
		members:    []online.ID{c.user},
		data:       make(map[string]string),
	}
	n.lobbies[l.id] = l

	return backend.Resolved(l.id, nil)
}

// ownedLocked returns the lobby if c owns it.
func (c *Client) ownedLocked(id online.ID) (*lobby, error) {
	l, ok := c.net.lobbies[id]
	if !ok {
		return nil, backend.ResultFileNotFound.Err()
	}

	if l.owner != c.user {
		return nil, backend.ResultAccessDenied.Err()
	}

	return l, nil
}

// SetLobbyData implements backend.Lobbies. The metadata is replaced and
// every other member is notified.
func (c *Client) SetLobbyData(id online.ID, data map[string]string) error {
	if err := c.failure(OpSetLobbyData); err != nil {
		return err
	}

	n := c.net
	n.mu.Lock()

	l, err := c.ownedLocked(id)
	if err != nil {
		n.mu.Unlock()
		return err
	}

	l.data = copyData(data)
	to := n.membersLocked(l, c.user)
	n.mu.Unlock()

	deliver([]pending{{to: to, fn: func(ls backend.Listener) { ls.LobbyDataUpdated(id, id, true) }}})

	return nil
}

// SetLobbyType implements backend.Lobbies.
func (c *Client) SetLobbyType(id online.ID, typ backend.LobbyType) error {
	c.net.mu.Lock()
	defer c.net.mu.Unlock()

	l, err := c.ownedLocked(id)
	if err != nil {
		return err
	}

	l.typ = typ

	return nil
}

// SetLobbyJoinable implements backend.Lobbies.
func (c *Client) SetLobbyJoinable(id online.ID, joinable bool) error {
	c.net.mu.Lock()
	defer c.net.mu.Unlock()

	l, err := c.ownedLocked(id)
	if err != nil {
		return err
	}

	l.joinable = joinable

	return nil
}

// LobbyData implements backend.Lobbies.
func (c *Client) LobbyData(id online.ID) (map[string]string, bool) {
	c.net.mu.Lock()
	defer c.net.mu.Unlock()

	l, ok := c.net.lobbies[id]
	if !ok {
		return nil, false
	}

	return copyData(l.data), true
}

// LobbyOwner implements backend.Lobbies.
func (c *Client) LobbyOwner(id online.ID) online.ID {
	c.net.mu.Lock()
	defer c.net.mu.Unlock()

	if l, ok := c.net.lobbies[id]; ok {
		return l.owner
	}

	return online.InvalidID
}

// LobbyMembers implements backend.Lobbies.
func (c *Client) LobbyMembers(id online.ID) []online.ID {
	c.net.mu.Lock()
	defer c.net.mu.Unlock()

	if l, ok := c.net.lobbies[id]; ok {
		return append([]online.ID(nil), l.members...)
	}

	return nil
}

// RequestLobbyList implements backend.Lobbies. Only public joinable lobbies
// are listed.
func (c *Client) RequestLobbyList(filter backend.LobbyFilter) *backend.Call[[]online.ID] {
	if err := c.failure(OpRequestLobbyList); err != nil {
		return backend.Failed[[]online.ID](err)
	}

	n := c.net
	n.mu.Lock()
	defer n.mu.Unlock()

	candidates := make([]backend.LobbyCandidate, 0, len(n.lobbies))
	for i := uint32(1); i <= n.nextLobby; i++ {
		l, ok := n.lobbies[online.NewLobbyID(i)]
		if !ok || l.typ != backend.LobbyPublic || !l.joinable {
			continue
		}

		candidates = append(candidates, backend.LobbyCandidate{
			ID:        l.id,
			Data:      l.data,
			OpenSlots: l.maxMembers - len(l.members),
		})
	}

	return backend.Resolved(filter.Apply(candidates), nil)
}

// RequestLobbyData implements backend.Lobbies.
func (c *Client) RequestLobbyData(id online.ID) error {
	if !id.IsLobby() {
		return backend.ResultFail.Err()
	}

	if err := c.failure(OpRequestLobbyData); err != nil {
		return err
	}

	c.mu.Lock()
	stall := c.stallData
	c.mu.Unlock()

	if stall {
		return nil
	}

	c.net.mu.Lock()
	_, ok := c.net.lobbies[id]
	c.net.mu.Unlock()

	c.notify(func(l backend.Listener) { l.LobbyDataUpdated(id, id, ok) })

	return nil
}

// JoinLobby implements backend.Lobbies. The other members are notified of
// the new member.
func (c *Client) JoinLobby(id online.ID) *backend.Call[backend.LobbyEnter] {
	if err := c.failure(OpJoinLobby); err != nil {
		return backend.Failed[backend.LobbyEnter](err)
	}

	n := c.net
	n.mu.Lock()

	l, ok := n.lobbies[id]
	switch {
	case !ok:
		n.mu.Unlock()
		return backend.Failed[backend.LobbyEnter](backend.ResultFileNotFound.Err())
	case l.isMember(c.user):
	case !l.joinable:
		n.mu.Unlock()
		return backend.Failed[backend.LobbyEnter](backend.ResultAccessDenied.Err())
	case len(l.members) >= l.maxMembers:
		n.mu.Unlock()
		return backend.Failed[backend.LobbyEnter](backend.ResultFull.Err())
	default:
		l.members = append(l.members, c.user)
	}

	enter := backend.LobbyEnter{
		Lobby:   l.id,
		Owner:   l.owner,
		Data:    copyData(l.data),
		Members: append([]online.ID(nil), l.members...),
	}
	to := n.membersLocked(l, c.user)
	n.mu.Unlock()

	user := c.user
	deliver([]pending{{to: to, fn: func(ls backend.Listener) { ls.LobbyMemberChanged(id, user, backend.MemberEntered) }}})

	return backend.Resolved(enter, nil)
}

// LeaveLobby implements backend.Lobbies. Ownership passes to the oldest
// remaining member and an empty lobby is removed.
func (c *Client) LeaveLobby(id online.ID) error {
	n := c.net
	n.mu.Lock()

	l, ok := n.lobbies[id]
	if !ok || !l.remove(c.user) {
		n.mu.Unlock()
		return backend.ResultFileNotFound.Err()
	}

	if len(l.members) == 0 {
		delete(n.lobbies, id)
		n.mu.Unlock()

		return nil
	}

	if l.owner == c.user {
		l.owner = l.members[0]
	}

	to := n.membersLocked(l, c.user)
	n.mu.Unlock()

	user := c.user
	deliver([]pending{{to: to, fn: func(ls backend.Listener) { ls.LobbyMemberChanged(id, user, backend.MemberLeft) }}})

	return nil
}

// InviteUserToLobby implements backend.Lobbies.
func (c *Client) InviteUserToLobby(id, user online.ID) error {
	n := c.net
	n.mu.Lock()
	_, lok := n.lobbies[id]
	to, uok := n.clients[user]
	n.mu.Unlock()

	if !lok || !uok {
		return backend.ResultFileNotFound.Err()
	}

	from := c.user
	to.notify(func(l backend.Listener) { l.LobbyInviteReceived(from, id) })

	return nil
}
