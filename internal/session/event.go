package session

import (
	"log/slog"
	"time"

	"github.com/large-farva/cybot-control/internal/protocol"
)

// Status is the connection state of the robot link.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	default:
		return "DISCONNECTED"
	}
}

// EventKind discriminates queue events.
type EventKind int

const (
	EventStatus EventKind = iota + 1
	EventLog
	EventTelemetry
)

// Event is what the network goroutine hands to the consumer. Exactly one of
// the payload groups is meaningful, selected by Kind.
type Event struct {
	Kind      EventKind
	At        time.Time
	SessionID string

	// EventStatus
	Status Status
	Addr   string

	// EventLog
	Level   slog.Level
	Message string

	// EventTelemetry
	Telemetry protocol.Event
	Line      string
}
