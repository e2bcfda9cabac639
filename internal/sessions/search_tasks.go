package sessions

import (
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/async"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type (
	lobbySearchState uint8

	// lobbySearchTask lists lobbies, refreshes the metadata of each and
	// materializes a result per lobby once every refresh arrived.
	lobbySearchTask struct {
		async.BaseTask
		m      *Manager
		id     uuid.UUID
		filter backend.LobbyFilter
		logger *logrus.Entry
		timer  async.InactivityTimer

		state     lobbySearchState
		list      *backend.Call[[]online.ID]
		requested []online.ID
		inbox     *lobbyInbox
		received  int
		results   []online.SearchResult
		abandoned atomic.Bool

		// current is set by Finalize when the search was not abandoned.
		current bool
	}

	// serverSearchTask lists advertised servers and queries the rules of
	// each. Browser callbacks may arrive on any goroutine, including
	// synchronously from the request, so they only write to inboxes that
	// Tick drains.
	serverSearchTask struct {
		async.BaseTask
		m          *Manager
		id         uuid.UUID
		filter     backend.ServerFilter
		maxResults int
		logger     *logrus.Entry
		timer      async.InactivityTimer

		started   bool
		inbox     serverInbox
		query     backend.ServerQuery
		pending   []*pendingServer
		backlog   []backend.ServerDetails
		results   []online.SearchResult
		abandoned atomic.Bool
		current   bool
	}

	// serverInbox receives the callbacks of a server list query.
	serverInbox struct {
		mu        sync.Mutex
		responded []backend.ServerDetails
		events    int
		refreshed bool
	}

	// pendingServer is a listed server whose rules are being queried.
	pendingServer struct {
		details backend.ServerDetails
		query   backend.ServerQuery
		rules   rulesInbox
		seen    int
	}

	// rulesInbox receives the callbacks of a rules query.
	rulesInbox struct {
		mu       sync.Mutex
		rules    map[string]string
		events   int
		failed   bool
		complete bool
	}
)

//go:generate go run golang.org/x/tools/cmd/stringer -type=lobbySearchState -trimprefix=lobbySearch -output=lobbysearchstate_string.go

const (
	lobbySearchInit lobbySearchState = iota
	lobbySearchRequestLobbyList
	lobbySearchRequestLobbyData
	lobbySearchWaitForRequestLobbyData
	lobbySearchFinished
)

func newLobbySearchTask(m *Manager, search *online.SearchSettings) *lobbySearchTask {
	return &lobbySearchTask{
		m:      m,
		id:     search.ID,
		filter: lobbyFilter(search),
		logger: m.searchLogger(search).WithField("task", "lobby search"),
		timer:  m.timer(),
	}
}

func (t *lobbySearchTask) String() string { return "lobby search" }
func (t *lobbySearchTask) abandon()       { t.abandoned.Store(true) }

func (t *lobbySearchTask) Tick(elapsed time.Duration) {
	if t.abandoned.Load() {
		t.finish(false)
		return
	}

	lobbies := t.m.svc.Lobbies

	switch t.state {
	case lobbySearchInit:
		account := t.m.svc.Account
		if !account.NetworkAvailable() || !account.IsLoggedOn() {
			t.logger.Warn("cannot search lobbies while offline")
			t.finish(false)

			return
		}

		t.list = lobbies.RequestLobbyList(t.filter)
		t.state = lobbySearchRequestLobbyList

	case lobbySearchRequestLobbyList:
		ids, done, err := t.list.Poll()
		if !done {
			if t.timer.Advance(elapsed) {
				t.logger.Warn("lobby list request timed out")
				t.finish(false)
			}

			return
		}

		if err != nil {
			t.logger.
				WithField("error", err.Error()).
				Warn("error listing lobbies")
			t.finish(false)

			return
		}

		if len(ids) == 0 {
			t.finish(true)
			return
		}

		t.requested = ids
		t.state = lobbySearchRequestLobbyData

	case lobbySearchRequestLobbyData:
		t.inbox = t.m.router.open(t.id, t.requested)
		t.timer.Reset()

		for _, id := range t.requested {
			if err := lobbies.RequestLobbyData(id); err != nil {
				t.logger.
					WithFields(logrus.Fields{
						"lobby": id.String(),
						"error": err.Error(),
					}).
					Warn("error requesting lobby data")
				t.finish(false)

				return
			}
		}

		t.state = lobbySearchWaitForRequestLobbyData

	case lobbySearchWaitForRequestLobbyData:
		received, _ := t.inbox.progress()
		if received > t.received {
			t.received = received
			t.timer.Reset()
		}

		if received >= len(t.requested) {
			t.finish(true)
			return
		}

		if t.timer.Advance(elapsed) {
			t.logger.
				WithFields(logrus.Fields{
					"received":  received,
					"requested": len(t.requested),
				}).
				Warn("lobby data requests timed out")
			t.finish(false)
		}
	}
}

// finish materializes a result for every lobby whose data arrived.
func (t *lobbySearchTask) finish(ok bool) {
	t.state = lobbySearchFinished

	if t.inbox != nil {
		t.m.router.close(t.id)

		if !t.abandoned.Load() {
			_, ready := t.inbox.progress()
			for _, id := range ready {
				if r, valid := t.m.lobbyResult(id, t.logger); valid {
					t.results = append(t.results, r)
				}
			}
		}
	}

	t.Complete(ok)
}

func (t *lobbySearchTask) Finalize() {
	t.current = t.m.finishSearch(t.id, t.results, t.WasSuccessful())
}

func (t *lobbySearchTask) TriggerDelegates() {
	if t.current {
		t.m.OnFindSessionsComplete.Broadcast(t.WasSuccessful())
	}
}

func newServerSearchTask(m *Manager, search *online.SearchSettings) *serverSearchTask {
	return &serverSearchTask{
		m:          m,
		id:         search.ID,
		filter:     serverFilter(m.cfg.AppID, search),
		maxResults: search.MaxSearchResults,
		logger:     m.searchLogger(search).WithField("task", "server search"),
		timer:      m.timer(),
	}
}

func (t *serverSearchTask) String() string { return "server search" }
func (t *serverSearchTask) abandon()       { t.abandoned.Store(true) }

func (t *serverSearchTask) full() bool {
	return t.maxResults > 0 && len(t.results) >= t.maxResults
}

func (t *serverSearchTask) Tick(elapsed time.Duration) {
	if t.abandoned.Load() {
		t.finish(false)
		return
	}

	browser := t.m.svc.ServerBrowser

	if !t.started {
		if !t.m.svc.Account.NetworkAvailable() {
			t.logger.Warn("cannot search servers while offline")
			t.finish(false)

			return
		}

		t.started = true
		t.query = browser.RequestServerList(t.filter, &t.inbox)
	}

	responded, events, refreshed := t.inbox.drain()
	progress := events > 0

	for _, d := range responded {
		if d.AppID != t.m.cfg.AppID || d.DoNotRefresh {
			continue
		}

		if !t.isListed(d.QueryAddr) {
			t.backlog = append(t.backlog, d)
		}
	}

	t.admit(browser)

	remaining := t.pending[:0]
	for _, p := range t.pending {
		rules, n, failed, complete := p.rules.state()
		if n > p.seen {
			p.seen = n
			progress = true
		}

		switch {
		case failed:
			p.query.Cancel()
			t.logger.
				WithField("server", p.details.QueryAddr.String()).
				Debug("server failed to answer rules query")

		case complete:
			p.query.Cancel()
			if r, ok := t.m.serverResult(p.details, rules, t.logger); ok && !t.full() {
				t.results = append(t.results, r)
			}

		default:
			remaining = append(remaining, p)
		}
	}

	for i := len(remaining); i < len(t.pending); i++ {
		t.pending[i] = nil
	}

	t.pending = remaining

	// Dropped servers free room for listed ones.
	t.admit(browser)

	if progress {
		t.timer.Reset()
	}

	switch {
	case t.full():
		t.finish(true)
	case refreshed && len(t.pending) == 0 && len(t.backlog) == 0:
		t.finish(true)
	case t.timer.Advance(elapsed):
		t.logger.
			WithFields(logrus.Fields{
				"pending": len(t.pending),
				"results": len(t.results),
			}).
			Warn("server search timed out")
		t.finish(false)
	}
}

// admit queries the rules of backlogged servers while the results and the
// queries in flight stay below the maximum.
func (t *serverSearchTask) admit(browser backend.ServerBrowser) {
	n := 0
	for _, d := range t.backlog {
		if t.maxResults > 0 && len(t.results)+len(t.pending) >= t.maxResults {
			break
		}

		p := &pendingServer{details: d}
		t.pending = append(t.pending, p)
		p.query = browser.RequestRules(d.QueryAddr, &p.rules)
		n++
	}

	t.backlog = t.backlog[n:]
}

func (t *serverSearchTask) isListed(addr netip.AddrPort) bool {
	for _, p := range t.pending {
		if p.details.QueryAddr == addr {
			return true
		}
	}

	for _, d := range t.backlog {
		if d.QueryAddr == addr {
			return true
		}
	}

	return false
}

// finish releases the list query and every outstanding rules query.
func (t *serverSearchTask) finish(ok bool) {
	if t.query != nil {
		t.query.Cancel()
		t.query = nil
	}

	for _, p := range t.pending {
		p.query.Cancel()
	}

	t.pending = nil
	t.backlog = nil
	t.Complete(ok)
}

func (t *serverSearchTask) Finalize() {
	t.current = t.m.finishSearch(t.id, t.results, t.WasSuccessful())
}

func (t *serverSearchTask) TriggerDelegates() {
	if t.current {
		t.m.OnFindSessionsComplete.Broadcast(t.WasSuccessful())
	}
}

// ServerResponded implements backend.ServerListener.
func (in *serverInbox) ServerResponded(d backend.ServerDetails) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.responded = append(in.responded, d)
	in.events++
}

// ServerFailedToRespond implements backend.ServerListener.
func (in *serverInbox) ServerFailedToRespond(netip.AddrPort) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.events++
}

// RefreshComplete implements backend.ServerListener.
func (in *serverInbox) RefreshComplete() {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.refreshed = true
	in.events++
}

// drain returns the servers responded since the last call, the number of
// callbacks received since then and whether the list is complete.
func (in *serverInbox) drain() ([]backend.ServerDetails, int, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	responded, events := in.responded, in.events
	in.responded = nil
	in.events = 0

	return responded, events, in.refreshed
}

// RulesResponded implements backend.RulesListener.
func (in *rulesInbox) RulesResponded(key, value string) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.rules == nil {
		in.rules = make(map[string]string)
	}

	in.rules[key] = value
	in.events++
}

// RulesFailedToRespond implements backend.RulesListener.
func (in *rulesInbox) RulesFailedToRespond() {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.failed = true
	in.events++
}

// RulesRefreshComplete implements backend.RulesListener.
func (in *rulesInbox) RulesRefreshComplete() {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.complete = true
	in.events++
}

// state returns a copy of the rules, the total number of callbacks and the
// outcome so far.
func (in *rulesInbox) state() (map[string]string, int, bool, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	rules := make(map[string]string, len(in.rules))
	for k, v := range in.rules {
		rules[k] = v
	}

	return rules, in.events, in.failed, in.complete
}

var (
	_ backend.ServerListener = (*serverInbox)(nil)
	_ backend.RulesListener  = (*rulesInbox)(nil)
)
