package protocol

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultApprovalPrompt is used when a REQ line carries no question.
const DefaultApprovalPrompt = "Action required?"

// Tags of the mission protocol.
const (
	TagMove    = "MOV"
	TagTurn    = "TURN"
	TagObject  = "OBJ"
	TagRequest = "REQ"
)

var (
	ErrEmpty      = errors.New("empty message")
	ErrUnknownTag = errors.New("unknown tag")
	ErrMalformed  = errors.New("malformed message")
)

// ParseError describes a line that could not be decoded. It wraps one of
// ErrEmpty, ErrUnknownTag or ErrMalformed.
type ParseError struct {
	Line   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%v: %q", e.Err, e.Line)
	}
	return fmt.Sprintf("%v: %s: %q", e.Err, e.Reason, e.Line)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Decode parses one framed message. It never panics; any line it cannot
// understand is reported as a *ParseError and the caller drops it.
func Decode(line string) (Event, error) {
	msg := strings.TrimSpace(line)
	if msg == "" {
		return nil, &ParseError{Line: line, Err: ErrEmpty}
	}

	tag, rest, hasFields := strings.Cut(msg, ",")
	tag = strings.TrimSpace(tag)

	switch tag {
	case TagMove:
		f, err := numericFields(line, rest, hasFields, 1)
		if err != nil {
			return nil, err
		}
		return Move{DistanceCM: f[0]}, nil

	case TagTurn:
		f, err := numericFields(line, rest, hasFields, 1)
		if err != nil {
			return nil, err
		}
		return Turn{DeltaDeg: f[0]}, nil

	case TagObject:
		f, err := numericFields(line, rest, hasFields, 2)
		if err != nil {
			return nil, err
		}
		return Object{ScanAngleDeg: f[0], DistanceCM: f[1]}, nil

	case TagRequest:
		q := strings.TrimSpace(rest)
		if q == "" {
			q = DefaultApprovalPrompt
		}
		return ApprovalRequest{Message: q}, nil
	}

	if _, err := parseFloat(tag); err == nil {
		return decodePing(line, msg)
	}
	if !hasFields {
		return Raw{Text: msg}, nil
	}
	return nil, &ParseError{Line: line, Reason: "tag " + strconv.Quote(tag), Err: ErrUnknownTag}
}

// decodePing handles the untagged three-number legacy shape.
func decodePing(line, msg string) (Event, error) {
	parts := strings.Split(msg, ",")
	if len(parts) != 3 {
		return nil, &ParseError{
			Line:   line,
			Reason: fmt.Sprintf("legacy reading wants 3 fields, got %d", len(parts)),
			Err:    ErrMalformed,
		}
	}
	dist, err := parseFloat(parts[0])
	if err != nil {
		return nil, &ParseError{Line: line, Reason: "distance", Err: ErrMalformed}
	}
	pulse, err := parseFloat(parts[1])
	if err != nil {
		return nil, &ParseError{Line: line, Reason: "pulse width", Err: ErrMalformed}
	}
	ovf, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return nil, &ParseError{Line: line, Reason: "overflow count", Err: ErrMalformed}
	}
	return Ping{DistanceCM: dist, PulseWidthTicks: pulse, Overflows: ovf}, nil
}

// numericFields parses exactly n comma separated numbers following a tag.
func numericFields(line, rest string, hasFields bool, n int) ([]float64, error) {
	if !hasFields {
		return nil, &ParseError{Line: line, Reason: fmt.Sprintf("want %d fields, got 0", n), Err: ErrMalformed}
	}
	parts := strings.Split(rest, ",")
	if len(parts) != n {
		return nil, &ParseError{
			Line:   line,
			Reason: fmt.Sprintf("want %d fields, got %d", n, len(parts)),
			Err:    ErrMalformed,
		}
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := parseFloat(p)
		if err != nil {
			return nil, &ParseError{Line: line, Reason: fmt.Sprintf("field %d: %v", i+1, err), Err: ErrMalformed}
		}
		out[i] = v
	}
	return out, nil
}

// parseFloat accepts finite decimal numbers only. NaN and Inf would poison
// the integrated pose forever.
func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
