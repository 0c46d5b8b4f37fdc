package protocol

import (
	"errors"
	"fmt"
	"sort"
)

// Encoder produces outbound command bytes. Terminal-framed firmware wants a
// newline after each command; raw firmware reads single characters and
// wants none.
type Encoder struct {
	Terminator string
}

// Encode returns the wire form of a single-character command.
func (e Encoder) Encode(command byte) []byte {
	out := make([]byte, 0, 1+len(e.Terminator))
	out = append(out, command)
	return append(out, e.Terminator...)
}

// Operator intents understood by the command table.
const (
	IntentForward = "forward"
	IntentBack    = "back"
	IntentLeft    = "left"
	IntentRight   = "right"
	IntentScan    = "scan"
	IntentStop    = "stop"
	IntentApprove = "approve"
	IntentDeny    = "deny"
)

var ErrUnknownIntent = errors.New("unknown command")

// CommandTable maps operator intents to the characters the firmware expects.
type CommandTable map[string]byte

// DefaultCommands is the w/a/s/d layout used by the CyBot firmware.
func DefaultCommands() CommandTable {
	return CommandTable{
		IntentForward: 'w',
		IntentBack:    's',
		IntentLeft:    'a',
		IntentRight:   'd',
		IntentScan:    'm',
		IntentStop:    ' ',
		IntentApprove: 'y',
		IntentDeny:    'n',
	}
}

// Lookup returns the command character for an intent.
func (t CommandTable) Lookup(intent string) (byte, error) {
	c, ok := t[intent]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownIntent, intent)
	}
	return c, nil
}

// IntentFor performs the reverse lookup used by keyboard adapters.
func (t CommandTable) IntentFor(c byte) (string, bool) {
	for intent, cc := range t {
		if cc == c {
			return intent, true
		}
	}
	return "", false
}

// Intents lists the configured intents in stable order.
func (t CommandTable) Intents() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
