package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/google/uuid"
)

// EventType represents a type of notification delivered to a user.
type EventType uint8

const (
	// InviteReceivedEventType is dispatched when another user invites the
	// recipient to a lobby.
	InviteReceivedEventType EventType = iota

	// JoinRequestedEventType is dispatched when the recipient accepts a game
	// invite or asks to join a friend.
	JoinRequestedEventType

	// ConnectionStatusEventType is dispatched when the health of the login to
	// the backend changes.
	ConnectionStatusEventType

	// ShutdownRequestedEventType is dispatched when the backend requires the
	// process to exit.
	ShutdownRequestedEventType
)

// MarshalJSON implements json.Marshaler
func (i EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (i *EventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch strings.ToLower(s) {
	case "invitereceivedeventtype":
		*i = InviteReceivedEventType
	case "joinrequestedeventtype":
		*i = JoinRequestedEventType
	case "connectionstatuseventtype":
		*i = ConnectionStatusEventType
	case "shutdownrequestedeventtype":
		*i = ShutdownRequestedEventType
	default:
		return InvalidEventTypeError(s)
	}

	return nil
}

// Event represents a notification for a user.
type Event interface {
	// Type returns the type of the event.
	Type() EventType
}

// BaseEvent represents fields common to all Event implementations.
type BaseEvent struct {
	EventID   string
	EventType EventType
	UserID    online.ID
}

// Type returns the type of the event.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

func newBaseEvent(et EventType, user online.ID) *BaseEvent {
	return &BaseEvent{
		EventID:   uuid.Must(uuid.NewUUID()).String(),
		EventType: et,
		UserID:    user,
	}
}

// InviteReceivedEvent is dispatched when another user invites the recipient
// to a lobby.
type InviteReceivedEvent struct {
	*BaseEvent

	From  online.ID
	Lobby online.ID
}

// NewInviteReceivedEvent returns a new lobby invite event.
func NewInviteReceivedEvent(user, from, lobby online.ID) *InviteReceivedEvent {
	return &InviteReceivedEvent{
		BaseEvent: newBaseEvent(InviteReceivedEventType, user),
		From:      from,
		Lobby:     lobby,
	}
}

// JoinRequestedEvent is dispatched when the recipient wants to join the game
// of a friend, identified by a connect string.
type JoinRequestedEvent struct {
	*BaseEvent

	From    online.ID
	Connect string
}

// NewJoinRequestedEvent returns a new join request event.
func NewJoinRequestedEvent(user, from online.ID, connect string) *JoinRequestedEvent {
	return &JoinRequestedEvent{
		BaseEvent: newBaseEvent(JoinRequestedEventType, user),
		From:      from,
		Connect:   connect,
	}
}

// ConnectionStatusEvent is dispatched when the login health changes.
type ConnectionStatusEvent struct {
	*BaseEvent

	Status online.ConnectionStatus
}

// NewConnectionStatusEvent returns a new connection status event.
func NewConnectionStatusEvent(user online.ID, status online.ConnectionStatus) *ConnectionStatusEvent {
	return &ConnectionStatusEvent{
		BaseEvent: newBaseEvent(ConnectionStatusEventType, user),
		Status:    status,
	}
}

// ShutdownRequestedEvent is dispatched when the backend requires the process
// to exit.
type ShutdownRequestedEvent struct {
	*BaseEvent
}

// NewShutdownRequestedEvent returns a new shutdown request event.
func NewShutdownRequestedEvent(user online.ID) *ShutdownRequestedEvent {
	return &ShutdownRequestedEvent{BaseEvent: newBaseEvent(ShutdownRequestedEventType, user)}
}

// UnmarshalEventJSON returns an Event unmarshaled from the JSON bytes.
func UnmarshalEventJSON(b []byte) (Event, error) {
	var be BaseEvent
	if err := json.Unmarshal(b, &be); err != nil {
		return nil, fmt.Errorf("unmarshal event from JSON: %w", err)
	}

	switch et := be.Type(); et {
	case InviteReceivedEventType:
		var e InviteReceivedEvent
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, fmt.Errorf("unmarshal invite received event from JSON: %w", err)
		}

		return e, nil
	case JoinRequestedEventType:
		var e JoinRequestedEvent
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, fmt.Errorf("unmarshal join requested event from JSON: %w", err)
		}

		return e, nil
	case ConnectionStatusEventType:
		var e ConnectionStatusEvent
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, fmt.Errorf("unmarshal connection status event from JSON: %w", err)
		}

		return e, nil
	case ShutdownRequestedEventType:
		return ShutdownRequestedEvent{BaseEvent: &be}, nil
	default:
		return nil, UnknownEventTypeError(et)
	}
}

// Compile-time assertion that the BaseEvent implements the expected Event
// methods.
var _ Event = BaseEvent{}
