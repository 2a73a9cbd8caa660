package workflow

import (
	"context"
	"slices"
)

// Transition is the edge taken by a successful Fire
type Transition struct {
	From    State
	To      State
	Trigger Trigger
}

// StateMachine is a cursor over an edge table. Instances are not safe for concurrent use.
type StateMachine interface {
	State() State
	CanFire(ctx context.Context, trigger Trigger) bool
	Fire(ctx context.Context, trigger Trigger) (Transition, error)
	// PermittedTriggers lists configured triggers of the current state, guards ignored
	PermittedTriggers() []Trigger
}

type stateMachine struct {
	current State
	edges   edgeTable
}

func (m *stateMachine) State() State { return m.current }

// open returns the first edge for trigger whose guard passes
func (m *stateMachine) open(ctx context.Context, trigger Trigger) (edge, bool, bool) {
	es := m.edges[edgeKey{from: m.current, trigger: trigger}]
	for _, e := range es {
		if e.guard == nil || e.guard(ctx) {
			return e, true, true
		}
	}
	return edge{}, len(es) > 0, false
}

func (m *stateMachine) CanFire(ctx context.Context, trigger Trigger) bool {
	_, _, ok := m.open(ctx, trigger)
	return ok
}

// Fire leaves the machine untouched on error
func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) (Transition, error) {
	e, configured, ok := m.open(ctx, trigger)
	if !ok {
		cause := ErrInvalidTransition
		if configured {
			cause = ErrGuardFailed
		}
		return Transition{}, &TransitionError{From: m.current, Trigger: trigger, cause: cause}
	}

	tr := Transition{From: m.current, To: e.to, Trigger: trigger}
	m.current = e.to
	return tr, nil
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	var triggers []Trigger
	for k := range m.edges {
		if k.from == m.current {
			triggers = append(triggers, k.trigger)
		}
	}
	slices.Sort(triggers)
	return triggers
}
