package online

import "errors"

var (
	ErrSessionExists           = errors.New("session already exists")
	ErrSessionNotFound         = errors.New("session not found")
	ErrInvalidState            = errors.New("session is in the wrong state")
	ErrAlreadyDestroying       = errors.New("session is already being destroyed")
	ErrSearchInProgress        = errors.New("a search is already in progress")
	ErrNoSearchInProgress      = errors.New("no search in progress")
	ErrAdvertisedSessionExists = errors.New("an advertised session is already hosted by this process")
	ErrNotHost                 = errors.New("only the host can perform this operation")
	ErrNotLoggedOn             = errors.New("not logged on")
	ErrNoNetwork               = errors.New("no network connection")
	ErrInvalidSessionInfo      = errors.New("invalid session info")
	ErrUnsupported             = errors.New("operation not supported by this session type")
	ErrFriendNotInSession      = errors.New("friend is not in a joinable session")
)
