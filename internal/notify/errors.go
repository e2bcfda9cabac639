package notify

import "fmt"

// UnknownEventTypeError is returned in the event of an event with an unknown
// type being delivered by the feed.
type UnknownEventTypeError EventType

func (e UnknownEventTypeError) Error() string {
	return fmt.Sprintf("unknown event type: %q", EventType(e).String())
}

// InvalidEventTypeError is returned when trying to parse an EventType from a
// string that does not match a valid value.
type InvalidEventTypeError string

func (e InvalidEventTypeError) Error() string {
	return fmt.Sprintf("invalid event type: %q", string(e))
}

// SubscribeError is reported by the feed when a channel subscription fails.
type SubscribeError string

func (e SubscribeError) Error() string {
	return fmt.Sprintf("subscribe: %s", string(e))
}
