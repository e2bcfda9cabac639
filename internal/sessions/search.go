package sessions

import (
	"encoding/binary"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/lan"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FindSessions starts a search. LAN searches broadcast on the local segment;
// presence searches list lobbies and other searches list advertised servers.
// Results are stored in search and OnFindSessionsComplete fires once done.
// Only one search runs at a time.
func (m *Manager) FindSessions(searchingPlayerNum int, search *online.SearchSettings) error {
	if m.search != nil && m.search.State == online.SearchInProgress {
		m.logger.
			WithField("search_id", m.search.ID.String()).
			Warn("ignoring search request while one is in progress")
		m.OnFindSessionsComplete.Broadcast(false)

		return online.ErrSearchInProgress
	}

	search.ID = uuid.New()
	search.State = online.SearchInProgress
	search.Results = nil

	m.search = search
	m.searchTask = nil

	logger := m.searchLogger(search).WithField("player", searchingPlayerNum)

	switch {
	case search.IsLANQuery:
		m.searchKind = searchLAN
		return m.findLAN(search)

	case search.WantsPresence():
		m.searchKind = searchLobby
		t := newLobbySearchTask(m, search)
		m.searchTask = t
		m.runner.Enqueue(t)

	default:
		m.searchKind = searchServer
		t := newServerSearchTask(m, search)
		m.searchTask = t
		m.runner.Enqueue(t)
	}

	logger.WithField("kind", m.searchKind).Debug("search started")

	return nil
}

func (m *Manager) searchLogger(search *online.SearchSettings) *logrus.Entry {
	return m.logger.WithField("search_id", search.ID.String())
}

// CancelFindSessions abandons the current search. Its results are discarded
// and its task completes without touching the search.
func (m *Manager) CancelFindSessions() error {
	if m.search == nil || m.search.State != online.SearchInProgress {
		m.logger.Warn("no search in progress to cancel")
		m.OnCancelFindSessionsComplete.Broadcast(false)

		return online.ErrNoSearchInProgress
	}

	search := m.search
	search.State = online.SearchFailed

	if search.IsLANQuery && m.lanSearch != nil {
		m.lanSearch.Stop()
	}

	if m.searchTask != nil {
		m.searchTask.abandon()
	}

	m.search = nil
	m.searchTask = nil
	m.metrics.SearchFinished(m.searchKind, false)

	m.searchLogger(search).Info("search cancelled")

	m.OnFindSessionsComplete.Broadcast(false)
	m.OnCancelFindSessionsComplete.Broadcast(true)

	return nil
}

// finishSearch stores the results of the search with id and reports whether
// it is still the current one.
func (m *Manager) finishSearch(id uuid.UUID, results []online.SearchResult, ok bool) bool {
	search := m.search
	if search == nil || search.ID != id || search.State != online.SearchInProgress {
		m.logger.WithField("search_id", id.String()).Debug("abandoned search finished")
		return false
	}

	search.Results = results
	search.SortResults()

	search.State = online.SearchDone
	if !ok {
		search.State = online.SearchFailed
	}

	m.searchTask = nil
	m.metrics.SearchFinished(m.searchKind, ok)

	m.searchLogger(search).
		WithFields(logrus.Fields{
			"success": ok,
			"results": len(results),
		}).
		Info("search finished")

	return true
}

func (m *Manager) findLAN(search *online.SearchSettings) error {
	cfg := m.cfg.LAN
	cfg.Timeout = time.Duration(m.lanTimeout.Load())

	m.lanSearch = lan.NewBeacon(cfg, m.logger.WithField("beacon", "search"))

	started := time.Now()
	logger := m.searchLogger(search)

	var results []online.SearchResult

	onResult := func(s online.Session) {
		if m.search != search || search.State != online.SearchInProgress {
			return
		}

		if s.Settings.BuildUniqueID != m.cfg.BuildUniqueID {
			logger.
				WithField("build_id", s.Settings.BuildUniqueID).
				Debug("dropping lan session of another build")

			return
		}

		if search.MaxSearchResults > 0 && len(results) >= search.MaxSearchResults {
			return
		}

		ping := time.Since(started).Milliseconds()
		if ping > int64(online.MaxQueryPing) {
			ping = int64(online.MaxQueryPing)
		}

		results = append(results, online.SearchResult{Session: s, PingMs: int32(ping)})
	}

	onDone := func() {
		if m.finishSearch(search.ID, results, true) {
			m.OnFindSessionsComplete.Broadcast(true)
		}
	}

	nonce := binary.BigEndian.Uint64(search.ID[:8])
	if err := m.lanSearch.Search(nonce, onResult, onDone); err != nil {
		logger.
			WithField("error", err.Error()).
			Error("error starting lan search")

		m.finishSearch(search.ID, nil, false)
		m.OnFindSessionsComplete.Broadcast(false)

		return err
	}

	return nil
}
