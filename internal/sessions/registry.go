package sessions

import (
	"sync"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
)

// registry holds the named sessions of one manager. Only the game thread
// mutates it; the lock lets other goroutines take snapshots.
//
// Every added session is stamped with a generation. Async tasks hold the
// name and generation of their session so a session recreated under the
// same name is never mistaken for the one they were started for.
type registry struct {
	mu       sync.Mutex
	next     uint64
	sessions []*registered
}

type registered struct {
	gen uint64
	s   *online.NamedSession
}

func (r *registry) indexLocked(name string) int {
	for i, e := range r.sessions {
		if e.s.Name == name {
			return i
		}
	}

	return -1
}

// generationLocked returns the index of the named session if it has
// generation gen.
func (r *registry) generationLocked(name string, gen uint64) int {
	i := r.indexLocked(name)
	if i < 0 || r.sessions[i].gen != gen {
		return -1
	}

	return i
}

// add stores s unless a session of the same name exists and returns its
// generation.
func (r *registry) add(s *online.NamedSession) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(s.Name) >= 0 {
		return 0, false
	}

	r.next++
	r.sessions = append(r.sessions, &registered{gen: r.next, s: s})

	return r.next, true
}

func (r *registry) exists(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.indexLocked(name) >= 0
}

// get returns a copy of the named session.
func (r *registry) get(name string) (online.NamedSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(name)
	if i < 0 {
		return online.NamedSession{}, false
	}

	return r.sessions[i].s.Clone(), true
}

// generation returns the generation of the named session.
func (r *registry) generation(name string) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(name)
	if i < 0 {
		return 0, false
	}

	return r.sessions[i].gen, true
}

// update calls fn with the named session under the lock.
func (r *registry) update(name string, fn func(s *online.NamedSession)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(name)
	if i < 0 {
		return false
	}

	fn(r.sessions[i].s)

	return true
}

// updateGen is update restricted to the session of generation gen.
func (r *registry) updateGen(name string, gen uint64, fn func(s *online.NamedSession)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.generationLocked(name, gen)
	if i < 0 {
		return false
	}

	fn(r.sessions[i].s)

	return true
}

func (r *registry) remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(r.indexLocked(name))
}

// removeGen removes the named session only if it has generation gen.
func (r *registry) removeGen(name string, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(r.generationLocked(name, gen))
}

func (r *registry) removeLocked(i int) bool {
	if i < 0 {
		return false
	}

	r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)

	return true
}

// names returns the names of the sessions matching fn, in creation order.
func (r *registry) names(fn func(s *online.NamedSession) bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, e := range r.sessions {
		if fn == nil || fn(e.s) {
			out = append(out, e.s.Name)
		}
	}

	return out
}

func (r *registry) snapshot() []online.NamedSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]online.NamedSession, len(r.sessions))
	for i, e := range r.sessions {
		out[i] = e.s.Clone()
	}

	return out
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}
