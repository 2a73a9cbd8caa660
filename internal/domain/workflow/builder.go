package workflow

import (
	"context"
	"fmt"
)

// GuardFunc gates an edge; a false result lets the next edge for the same trigger try
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder accumulates edges and hands out machines over them
type StateMachineBuilder interface {
	Configure(state State) StateConfiguration
	Build(initialState State) (StateMachine, error)
}

// StateConfiguration adds edges leaving a single source state
type StateConfiguration interface {
	Permit(trigger Trigger, toState State) StateConfiguration
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type edgeKey struct {
	from    State
	trigger Trigger
}

type edge struct {
	to    State
	guard GuardFunc
}

// edgeTable is immutable once a machine has been built from it
type edgeTable map[edgeKey][]edge

type tableBuilder struct {
	edges    edgeTable
	snapshot edgeTable
}

type sourceConfig struct {
	b    *tableBuilder
	from State
}

// NewBuilder returns an empty builder
func NewBuilder() StateMachineBuilder {
	return &tableBuilder{edges: make(edgeTable)}
}

// Configure panics on an unknown state; lifecycles are wired at init time
func (b *tableBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("workflow: configure unknown state %q", state))
	}
	return &sourceConfig{b: b, from: state}
}

// Build positions a new machine at initialState.
// All machines share the snapshot taken at the first Build after the last edit.
func (b *tableBuilder) Build(initialState State) (StateMachine, error) {
	if !initialState.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, initialState)
	}
	if b.snapshot == nil {
		b.snapshot = make(edgeTable, len(b.edges))
		for k, es := range b.edges {
			b.snapshot[k] = append([]edge(nil), es...)
		}
	}
	return &stateMachine{current: initialState, edges: b.snapshot}, nil
}

func (c *sourceConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

func (c *sourceConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	switch {
	case !toState.IsValid():
		panic(fmt.Sprintf("workflow: edge to unknown state %q", toState))
	case c.from.IsTerminal():
		panic(fmt.Sprintf("workflow: terminal state %s cannot have edges", c.from))
	}

	k := edgeKey{from: c.from, trigger: trigger}
	c.b.edges[k] = append(c.b.edges[k], edge{to: toState, guard: guard})
	c.b.snapshot = nil
	return c
}
