package sessions

import (
	"sync"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/google/uuid"
)

type (
	// lobbyRouter delivers lobby data notifications to the inbox of every
	// task waiting for that lobby. Notifications arrive on any goroutine.
	lobbyRouter struct {
		mu      sync.Mutex
		inboxes map[uuid.UUID]*lobbyInbox
	}

	// lobbyInbox collects the lobby data updates one task asked for.
	lobbyInbox struct {
		mu       sync.Mutex
		wanted   map[online.ID]bool
		received int
		ready    []online.ID
	}
)

// open registers an inbox for lobbies under id.
func (r *lobbyRouter) open(id uuid.UUID, lobbies []online.ID) *lobbyInbox {
	in := &lobbyInbox{wanted: make(map[online.ID]bool, len(lobbies))}
	for _, l := range lobbies {
		in.wanted[l] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inboxes == nil {
		r.inboxes = make(map[uuid.UUID]*lobbyInbox)
	}

	r.inboxes[id] = in

	return in
}

func (r *lobbyRouter) close(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.inboxes, id)
}

func (r *lobbyRouter) deliver(lobby online.ID, ok bool) {
	r.mu.Lock()
	inboxes := make([]*lobbyInbox, 0, len(r.inboxes))
	for _, in := range r.inboxes {
		inboxes = append(inboxes, in)
	}
	r.mu.Unlock()

	for _, in := range inboxes {
		in.record(lobby, ok)
	}
}

// record counts the first update of a wanted lobby. Lobbies whose refresh
// failed count as received but are not ready.
func (in *lobbyInbox) record(lobby online.ID, ok bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.wanted[lobby] {
		return
	}

	delete(in.wanted, lobby)
	in.received++

	if ok {
		in.ready = append(in.ready, lobby)
	}
}

// progress returns the number of updates received and the lobbies ready.
func (in *lobbyInbox) progress() (int, []online.ID) {
	in.mu.Lock()
	defer in.mu.Unlock()

	return in.received, append([]online.ID(nil), in.ready...)
}
