// Package approval tracks whether the robot is waiting on a yes/no answer
// from the operator.
package approval

// Answer is the operator's response.
type Answer bool

const (
	No  Answer = false
	Yes Answer = true
)

func (a Answer) String() string {
	if a {
		return "yes"
	}
	return "no"
}

// ParseAnswer accepts yes/no/y/n.
func ParseAnswer(s string) (Answer, bool) {
	switch s {
	case "yes", "y", "approve":
		return Yes, true
	case "no", "n", "deny":
		return No, true
	}
	return No, false
}

// State is a snapshot of the gate.
type State struct {
	Pending bool   `json:"pending"`
	Message string `json:"message,omitempty"`
}

// Gate is a two-state machine: Idle, or Pending with the question being
// asked. A new request replaces an unanswered one; there is no queue.
// Gate is not safe for concurrent use.
type Gate struct {
	yes, no byte
	state   State
}

// NewGate returns an idle gate that answers with the given command bytes.
func NewGate(yes, no byte) *Gate {
	return &Gate{yes: yes, no: no}
}

// OnRequest moves the gate to Pending with msg, overwriting any earlier
// unanswered question.
func (g *Gate) OnRequest(msg string) {
	g.state = State{Pending: true, Message: msg}
}

// OnResponse resolves a pending request and returns the command to send to
// the robot. It reports ok=false and changes nothing when the gate is idle.
func (g *Gate) OnResponse(a Answer) (command byte, ok bool) {
	if !g.state.Pending {
		return 0, false
	}
	g.state = State{}
	if a == Yes {
		return g.yes, true
	}
	return g.no, true
}

// State returns the current state.
func (g *Gate) State() State { return g.state }
