package online

import (
	"sort"

	"github.com/google/uuid"
)

type (
	// ComparisonOp is the comparison a query parameter applies.
	ComparisonOp uint8

	// SearchState tracks the progress of a search.
	SearchState uint8

	// QueryParam is one filter of a search.
	QueryParam struct {
		Data Value
		Op   ComparisonOp
	}

	// SearchResult is one session found by a search.
	SearchResult struct {
		Session Session

		// PingMs is the measured round trip, or MaxQueryPing when unknown.
		PingMs int32
	}

	// SearchSettings is a query and its accumulating results.
	//
	// A search is owned by the game thread: the manager mutates State and
	// Results only from its game-thread tick.
	SearchSettings struct {
		// ID is assigned when the search starts. Notifications route to the
		// search by id, so a replaced search never receives stale results.
		ID uuid.UUID

		IsLANQuery       bool
		MaxSearchResults int
		QuerySettings    map[string]QueryParam

		// Compare orders the results once collection is done. Nil sorts by
		// ascending ping.
		Compare func(a, b SearchResult) int

		State   SearchState
		Results []SearchResult
	}
)

const (
	OpEquals ComparisonOp = iota
	OpNotEquals
	OpGreaterThan
	OpGreaterThanEquals
	OpLessThan
	OpLessThanEquals
	OpNear
)

const (
	SearchNotStarted SearchState = iota
	SearchInProgress
	SearchDone
	SearchFailed
)

// Reserved query keys handled by dedicated filters rather than the key/value
// codec.
const (
	SearchPresence            = "PRESENCESEARCH"
	SearchDedicatedOnly       = "DEDICATEDONLY"
	SearchEmptyServersOnly    = "EMPTYONLY"
	SearchNonEmptyServersOnly = "NONEMPTYONLY"
	SearchSecureServersOnly   = "SECUREONLY"
	SearchMinSlotsAvailable   = "MINSLOTSAVAILABLE"
	SearchKeywords            = "SEARCHKEYWORDS"
)

var reservedSearchKeys = map[string]bool{
	SearchPresence:            true,
	SearchDedicatedOnly:       true,
	SearchEmptyServersOnly:    true,
	SearchNonEmptyServersOnly: true,
	SearchSecureServersOnly:   true,
	SearchMinSlotsAvailable:   true,
	SearchKeywords:            true,
}

// IsReservedSearchKey reports whether key is handled by a dedicated filter.
func IsReservedSearchKey(key string) bool {
	return reservedSearchKeys[key]
}

// MaxQueryPing is reported for results whose ping cannot be measured.
const MaxQueryPing int32 = 9999

// NewSearchSettings returns a search with the given result cap.
func NewSearchSettings(maxResults int) *SearchSettings {
	return &SearchSettings{
		MaxSearchResults: maxResults,
		QuerySettings:    make(map[string]QueryParam),
	}
}

// Set adds or replaces a query parameter.
func (s *SearchSettings) Set(key string, v Value, op ComparisonOp) {
	if s.QuerySettings == nil {
		s.QuerySettings = make(map[string]QueryParam)
	}

	s.QuerySettings[key] = QueryParam{Data: v, Op: op}
}

// Get returns a query parameter.
func (s *SearchSettings) Get(key string) (QueryParam, bool) {
	p, ok := s.QuerySettings[key]
	return p, ok
}

// WantsPresence reports whether the search targets presence (lobby) sessions.
func (s *SearchSettings) WantsPresence() bool {
	p, ok := s.QuerySettings[SearchPresence]
	if !ok {
		return false
	}

	b, ok := p.Data.(Bool)

	return ok && bool(b)
}

// IsFull reports whether the result cap has been reached.
func (s *SearchSettings) IsFull() bool {
	return s.MaxSearchResults > 0 && len(s.Results) >= s.MaxSearchResults
}

// SortResults orders Results with Compare, or by ping when Compare is nil.
func (s *SearchSettings) SortResults() {
	cmp := s.Compare
	if cmp == nil {
		cmp = func(a, b SearchResult) int { return int(a.PingMs) - int(b.PingMs) }
	}

	sort.SliceStable(s.Results, func(i, j int) bool {
		return cmp(s.Results[i], s.Results[j]) < 0
	})
}

// IsValid reports whether the result can be joined.
func (r SearchResult) IsValid() bool {
	return r.Session.Info.IsValid() && r.Session.OwningUserID.IsValid()
}
