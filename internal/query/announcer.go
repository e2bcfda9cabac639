package query

import (
	"context"
	"sync"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/proto"
)

// Announcer is a backend.GameServer which also publishes what the host
// announces to the directory as the state answered by the query endpoint.
type Announcer struct {
	backend.GameServer

	state   *proto.StateHolder
	buildID string

	mu      sync.Mutex
	details backend.ServerDetails
	rules   map[string]string
}

// NewAnnouncer returns gs publishing to state.
func NewAnnouncer(gs backend.GameServer, state *proto.StateHolder, buildID string) *Announcer {
	return &Announcer{
		GameServer: gs,
		state:      state,
		buildID:    buildID,
	}
}

// LogOn implements backend.GameServer. The state is withdrawn again when the
// log on fails.
func (a *Announcer) LogOn(details backend.ServerDetails) *backend.Call[online.ID] {
	a.mu.Lock()
	a.details = details
	a.publishLocked()
	a.mu.Unlock()

	c := a.GameServer.LogOn(details)

	go func() {
		if _, err := c.Wait(context.Background()); err != nil {
			a.withdraw()
		}
	}()

	return c
}

// LogOff implements backend.GameServer.
func (a *Announcer) LogOff() *backend.Call[struct{}] {
	a.withdraw()

	return a.GameServer.LogOff()
}

// UpdateDetails implements backend.GameServer.
func (a *Announcer) UpdateDetails(details backend.ServerDetails) error {
	if err := a.GameServer.UpdateDetails(details); err != nil {
		return err
	}

	a.mu.Lock()
	a.details = details
	a.publishLocked()
	a.mu.Unlock()

	return nil
}

// SetRules implements backend.GameServer.
func (a *Announcer) SetRules(rules map[string]string) error {
	if err := a.GameServer.SetRules(rules); err != nil {
		return err
	}

	a.mu.Lock()
	a.rules = make(map[string]string, len(rules))
	for k, v := range rules {
		a.rules[k] = v
	}
	a.publishLocked()
	a.mu.Unlock()

	return nil
}

func (a *Announcer) withdraw() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.details = backend.ServerDetails{}
	a.rules = nil
	a.state.Store(nil)
}

// publishLocked stores a fresh state; readers never see it change.
func (a *Announcer) publishLocked() {
	a.state.Store(&proto.QueryState{
		CurrentPlayers: a.details.Players,
		MaxPlayers:     a.details.MaxPlayers,
		ServerName:     a.details.Name,
		GameType:       a.details.GameMode,
		Map:            a.details.Map,
		BuildID:        a.buildID,
		Port:           a.details.Addr.Port(),
		Rules:          a.rules,
	})
}
