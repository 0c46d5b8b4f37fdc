// Package protocol implements the CyBot line protocol: decoding framed
// telemetry lines into typed events and encoding operator commands into
// the single-character wire form.
//
// Two inbound shapes are supported side by side. The legacy ranging
// firmware sends three bare numbers per line (distance, pulse width,
// overflow count). The mission firmware prefixes every line with a tag:
//
//	MOV,<cm>
//	TURN,<deg>
//	OBJ,<scan deg>,<cm>
//	REQ[,<question>]
package protocol

import "fmt"

// Kind identifies the variant carried by an Event.
type Kind int

const (
	KindMove Kind = iota + 1
	KindTurn
	KindObject
	KindApproval
	KindRaw
	KindPing
)

func (k Kind) String() string {
	switch k {
	case KindMove:
		return "move"
	case KindTurn:
		return "turn"
	case KindObject:
		return "object"
	case KindApproval:
		return "approval"
	case KindRaw:
		return "raw"
	case KindPing:
		return "ping"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is a decoded telemetry line. Implementations are immutable values.
type Event interface {
	Kind() Kind
}

// Move reports a straight-line displacement along the current heading.
// Negative distances are reverse motion.
type Move struct {
	DistanceCM float64
}

// Turn reports an in-place rotation. Positive is counter-clockwise.
type Turn struct {
	DeltaDeg float64
}

// Object reports an obstacle seen by the scanner, relative to the robot's
// heading.
type Object struct {
	ScanAngleDeg float64
	DistanceCM   float64
}

// ApprovalRequest asks the operator a yes/no question.
type ApprovalRequest struct {
	Message string
}

// Raw is free-form console text from the robot.
type Raw struct {
	Text string
}

// Ping is one reading from the legacy single-sensor firmware.
type Ping struct {
	DistanceCM      float64
	PulseWidthTicks float64
	Overflows       int
}

func (Move) Kind() Kind            { return KindMove }
func (Turn) Kind() Kind            { return KindTurn }
func (Object) Kind() Kind          { return KindObject }
func (ApprovalRequest) Kind() Kind { return KindApproval }
func (Raw) Kind() Kind             { return KindRaw }
func (Ping) Kind() Kind            { return KindPing }
