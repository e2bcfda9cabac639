package a2s

import (
	"errors"
	"fmt"
)

type (
	// UnsupportedQueryError is an error which represents an unknown A2S query header.
	UnsupportedQueryError struct {
		header []byte
	}

	// UnexpectedResponseError is returned by the client when a server replies
	// with a packet of the wrong type.
	UnexpectedResponseError byte
)

var (
	ErrInvalidPacketLength = errors.New("invalid packet length")
	ErrResponseTooLarge    = errors.New("response does not fit in a single packet")
	ErrMalformedResponse   = errors.New("malformed response")
	ErrTooManyChallenges   = errors.New("server kept issuing challenges")
)

// NewUnsupportedQueryError returns a new instance of UnsupportedQueryError.
func NewUnsupportedQueryError(header []byte) error {
	return &UnsupportedQueryError{
		header: append([]byte(nil), header...),
	}
}

// Error returns the error string.
func (e *UnsupportedQueryError) Error() string {
	return fmt.Sprintf("unsupported query: %x", e.header)
}

func (e UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected response type: 0x%02x", byte(e))
}
