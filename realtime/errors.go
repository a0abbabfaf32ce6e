package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyConnected is returned by Connect when a connection is live.
	ErrAlreadyConnected = errors.New("realtime: already connected")

	// ErrNotConnected is returned when an operation needs a live connection.
	ErrNotConnected = errors.New("realtime: not connected")

	// ErrConnectionClosed terminates pending waits when the transport goes away.
	ErrConnectionClosed = errors.New("realtime: connection closed")

	// ErrToolNotRegistered is reported when the model invokes an unknown tool.
	ErrToolNotRegistered = errors.New("realtime: tool not registered")
)

// ProtocolError reports an inbound event the conversation state machine
// cannot fold: an unhandled event type, or a reference to an item or
// response that the protocol guarantees must already exist.
type ProtocolError struct {
	EventType string
	Message   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("realtime: %s: %s", e.EventType, e.Message)
}

func protocolErrorf(eventType, format string, args ...any) *ProtocolError {
	return &ProtocolError{EventType: eventType, Message: fmt.Sprintf(format, args...)}
}
