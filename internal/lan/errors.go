package lan

import (
	"errors"
	"fmt"
)

var (
	ErrBeaconInUse          = errors.New("beacon is already in use")
	ErrInvalidBroadcastAddr = errors.New("invalid broadcast address")
)

type (
	// MalformedPacketError is returned when a datagram cannot be framed as a
	// beacon packet.
	MalformedPacketError struct {
		Len    int
		Reason string
	}
)

func (e *MalformedPacketError) Error() string {
	return fmt.Sprintf("malformed beacon packet of %d bytes: %s", e.Len, e.Reason)
}
