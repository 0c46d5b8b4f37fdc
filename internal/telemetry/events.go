// Package telemetry defines the envelopes cybotd pushes to WebSocket and
// MQTT subscribers. Every envelope carries a type and an RFC 3339
// timestamp; the remaining fields depend on the type.
package telemetry

import "time"

// EventType identifies the kind of envelope.
type EventType string

const (
	EventHeartbeat EventType = "heartbeat"
	EventStatus    EventType = "status"
	EventLog       EventType = "log"
	EventPose      EventType = "pose"
	EventObstacle  EventType = "obstacle"
	EventApproval  EventType = "approval"
	EventPing      EventType = "ping"
	EventRaw       EventType = "raw"
)

// Types lists every envelope type, in the order clients usually care about.
var Types = []EventType{
	EventHeartbeat, EventStatus, EventLog, EventPose,
	EventObstacle, EventApproval, EventPing, EventRaw,
}

// Envelope is implemented by every event struct so fan-out code can route
// on the type without a type switch.
type Envelope interface {
	EventType() EventType
}

// Event is the base envelope shared by every event type.
type Event struct {
	Type EventType `json:"type"`
	TS   string    `json:"ts"`
}

func (e Event) EventType() EventType { return e.Type }

// NowTS returns the current UTC time as an RFC 3339 nano string.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func stamp(t EventType) Event {
	return Event{Type: t, TS: NowTS()}
}

// Heartbeat is sent periodically so clients can detect a stalled daemon.
type Heartbeat struct {
	Event
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func NewHeartbeat(status string, uptime time.Duration) Heartbeat {
	return Heartbeat{Event: stamp(EventHeartbeat), Status: status, UptimeSeconds: int64(uptime.Seconds())}
}

// Status reports a robot link transition.
type Status struct {
	Event
	Status    string `json:"status"`
	Addr      string `json:"addr"`
	SessionID string `json:"session_id,omitempty"`
}

func NewStatus(status, addr, sessionID string) Status {
	return Status{Event: stamp(EventStatus), Status: status, Addr: addr, SessionID: sessionID}
}

// LogLine carries an operator-facing message.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}

func NewLogLine(level, message string) LogLine {
	return LogLine{Event: stamp(EventLog), Level: level, Message: message}
}

// Pose is emitted after every applied Move or Turn.
type Pose struct {
	Event
	XCM        float64 `json:"x_cm"`
	YCM        float64 `json:"y_cm"`
	HeadingDeg float64 `json:"heading_deg"`
	PathLen    int     `json:"path_len"`
}

func NewPose(x, y, heading float64, pathLen int) Pose {
	return Pose{Event: stamp(EventPose), XCM: x, YCM: y, HeadingDeg: heading, PathLen: pathLen}
}

// Obstacle is emitted for every placed scan return.
type Obstacle struct {
	Event
	XCM          float64 `json:"x_cm"`
	YCM          float64 `json:"y_cm"`
	ScanAngleDeg float64 `json:"scan_angle_deg"`
	DistanceCM   float64 `json:"distance_cm"`
	Count        int     `json:"count"`
}

func NewObstacle(x, y, scanAngle, distance float64, count int) Obstacle {
	return Obstacle{
		Event:        stamp(EventObstacle),
		XCM:          x,
		YCM:          y,
		ScanAngleDeg: scanAngle,
		DistanceCM:   distance,
		Count:        count,
	}
}

// Approval mirrors the gate after every request or response.
type Approval struct {
	Event
	Pending bool   `json:"pending"`
	Message string `json:"message,omitempty"`
}

func NewApproval(pending bool, message string) Approval {
	return Approval{Event: stamp(EventApproval), Pending: pending, Message: message}
}

// Ping carries a legacy ultrasonic reading.
type Ping struct {
	Event
	DistanceCM      float64 `json:"distance_cm"`
	PulseWidthTicks float64 `json:"pulse_width_ticks"`
	Overflows       int     `json:"overflows"`
}

func NewPing(distance, pulse float64, overflows int) Ping {
	return Ping{Event: stamp(EventPing), DistanceCM: distance, PulseWidthTicks: pulse, Overflows: overflows}
}

// Raw carries an untagged robot line verbatim.
type Raw struct {
	Event
	Text string `json:"text"`
}

func NewRaw(text string) Raw {
	return Raw{Event: stamp(EventRaw), Text: text}
}
