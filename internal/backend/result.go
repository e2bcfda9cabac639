package backend

import (
	"errors"
	"fmt"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
)

type (
	// Result is the status code a backend reports for a request.
	Result uint8

	// ResultError is a non-OK Result returned as an error.
	ResultError Result
)

//go:generate go run golang.org/x/tools/cmd/stringer -type=Result -trimprefix=Result -output=result_string.go

const (
	ResultOK Result = iota
	ResultFail
	ResultNoConnection
	ResultInvalidPassword
	ResultLoggedInElsewhere
	ResultInvalidProtocolVer
	ResultBusy
	ResultServiceUnavailable
	ResultTimeout
	ResultAccessDenied
	ResultLimitExceeded
	ResultFileNotFound
	ResultFull
)

func (e ResultError) Error() string {
	return fmt.Sprintf("backend request failed: %s", Result(e))
}

// Err returns nil for ResultOK and a ResultError otherwise.
func (r Result) Err() error {
	if r == ResultOK {
		return nil
	}

	return ResultError(r)
}

// ResultOf returns the Result carried by err: ResultOK for nil, the wrapped
// code for a ResultError and ResultFail for anything else.
func ResultOf(err error) Result {
	if err == nil {
		return ResultOK
	}

	var re ResultError
	if errors.As(err, &re) {
		return Result(re)
	}

	return ResultFail
}

// ConnectionStatusFromResult maps a backend result onto the connection
// health taxonomy.
func ConnectionStatusFromResult(r Result) online.ConnectionStatus {
	switch r {
	case ResultOK:
		return online.StatusConnected
	case ResultNoConnection:
		return online.StatusNoNetworkConnection
	case ResultInvalidPassword, ResultAccessDenied:
		return online.StatusInvalidUser
	case ResultLoggedInElsewhere:
		return online.StatusDuplicateLoginDetected
	case ResultInvalidProtocolVer:
		return online.StatusUpdateRequired
	case ResultBusy, ResultLimitExceeded:
		return online.StatusServersTooBusy
	default:
		return online.StatusServiceUnavailable
	}
}
