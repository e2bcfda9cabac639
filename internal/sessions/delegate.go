package sessions

import (
	"sort"
	"sync"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
)

type (
	// Delegate is a multicast callback. Handlers are invoked on the game
	// thread in the order they were added.
	Delegate[T any] struct {
		mu       sync.Mutex
		next     int
		handlers map[int]func(T)
	}

	// Handle identifies a handler added to a Delegate.
	Handle int

	// Result is the outcome of a command on a named session.
	Result struct {
		Name    string
		Success bool
	}

	// JoinOutcome is the outcome of a join.
	JoinOutcome struct {
		Name   string
		Result online.JoinResult
	}

	// PlayersOutcome is the outcome of a player registration change.
	PlayersOutcome struct {
		Name    string
		Players []online.ID
		Success bool
	}

	// FriendOutcome is the outcome of a friend session lookup.
	FriendOutcome struct {
		LocalUserNum int
		Success      bool
		Results      []online.SearchResult
	}

	// Invite is a lobby invite received from a friend.
	Invite struct {
		From  online.ID
		Lobby online.ID
	}

	// JoinRequest is a request from a friend to join their game.
	JoinRequest struct {
		From    online.ID
		Connect string
	}

	// StatusChange is a change of the backend connection health.
	StatusChange struct {
		Old online.ConnectionStatus
		New online.ConnectionStatus
	}

	// SettingsUpdate carries the settings a joined session was refreshed
	// with.
	SettingsUpdate struct {
		Name     string
		Settings online.SessionSettings
	}

	// Delegates are the callbacks fired by a Manager.
	Delegates struct {
		OnCreateSessionComplete      Delegate[Result]
		OnStartSessionComplete       Delegate[Result]
		OnUpdateSessionComplete      Delegate[Result]
		OnEndSessionComplete         Delegate[Result]
		OnDestroySessionComplete     Delegate[Result]
		OnJoinSessionComplete        Delegate[JoinOutcome]
		OnFindSessionsComplete       Delegate[bool]
		OnCancelFindSessionsComplete Delegate[bool]
		OnFindFriendSessionComplete  Delegate[FriendOutcome]
		OnRegisterPlayersComplete    Delegate[PlayersOutcome]
		OnUnregisterPlayersComplete  Delegate[PlayersOutcome]
		OnSessionInviteReceived      Delegate[Invite]
		OnSessionJoinRequested       Delegate[JoinRequest]
		OnConnectionStatusChanged    Delegate[StatusChange]
		OnShutdownRequested          Delegate[struct{}]
		OnSessionSettingsUpdated     Delegate[SettingsUpdate]
	}
)

// Add registers fn and returns a handle for Remove.
func (d *Delegate[T]) Add(fn func(T)) Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handlers == nil {
		d.handlers = make(map[int]func(T))
	}

	d.next++
	d.handlers[d.next] = fn

	return Handle(d.next)
}

// Remove unregisters the handler behind h.
func (d *Delegate[T]) Remove(h Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.handlers, int(h))
}

// Broadcast calls every handler with v. Handlers may add or remove handlers.
func (d *Delegate[T]) Broadcast(v T) {
	d.mu.Lock()
	ids := make([]int, 0, len(d.handlers))
	for id := range d.handlers {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	fns := make([]func(T), len(ids))
	for i, id := range ids {
		fns[i] = d.handlers[id]
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
