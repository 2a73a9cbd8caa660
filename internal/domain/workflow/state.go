package workflow

import (
	"errors"
	"fmt"
)

// State is a lifecycle state shared by approval records and escalation paths
type State string

const (
	StatePending   State = "pending"
	StateApproved  State = "approved"
	StateRejected  State = "rejected"
	StateEscalated State = "escalated"
	StateExpired   State = "expired"
	StateResolved  State = "resolved"
	StateTimeout   State = "timeout"
)

// Trigger names the event that moves a record or path between states
type Trigger string

const (
	TriggerApprove  Trigger = "APPROVE"
	TriggerReject   Trigger = "REJECT"
	TriggerEscalate Trigger = "ESCALATE"
	TriggerExpire   Trigger = "EXPIRE"
	TriggerResolve  Trigger = "RESOLVE"
	TriggerTimeOut  Trigger = "TIME_OUT"
)

var (
	ErrInvalidTransition = errors.New("transition not permitted")
	ErrInvalidState      = errors.New("unknown lifecycle state")
	ErrGuardFailed       = errors.New("transition guard rejected")
)

// IsValid reports whether s is one of the lifecycle states above
func (s State) IsValid() bool {
	switch s {
	case StatePending, StateEscalated,
		StateApproved, StateRejected, StateExpired, StateResolved, StateTimeout:
		return true
	}
	return false
}

// IsTerminal reports whether s accepts no further triggers.
// Escalated records still expire once their chain is exhausted.
func (s State) IsTerminal() bool {
	return s.IsValid() && s != StatePending && s != StateEscalated
}

func (s State) String() string { return string(s) }

func (t Trigger) String() string { return string(t) }

// TransitionError reports a trigger that could not be applied to a state.
// It unwraps to ErrInvalidTransition or ErrGuardFailed.
type TransitionError struct {
	From    State
	Trigger Trigger
	cause   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %s from %s", e.cause, e.Trigger, e.From)
}

func (e *TransitionError) Unwrap() error { return e.cause }
