package workflow

import (
	"context"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

var (
	recordLifecycle     = warm(configureRecordLifecycle(NewBuilder()))
	escalationLifecycle = warm(configureEscalationLifecycle(NewBuilder()))
)

// configureRecordLifecycle wires pending -> approved|rejected|escalated|expired.
// An escalated record only moves again when its chain is exhausted.
func configureRecordLifecycle(b StateMachineBuilder) StateMachineBuilder {
	b.Configure(StatePending).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerEscalate, StateEscalated).
		Permit(TriggerExpire, StateExpired)

	b.Configure(StateEscalated).
		Permit(TriggerExpire, StateExpired)

	return b
}

// configureEscalationLifecycle wires pending -> resolved|timeout
func configureEscalationLifecycle(b StateMachineBuilder) StateMachineBuilder {
	b.Configure(StatePending).
		Permit(TriggerResolve, StateResolved).
		Permit(TriggerTimeOut, StateTimeout)

	return b
}

// warm freezes the transition table so later Builds are read-only
func warm(b StateMachineBuilder) StateMachineBuilder {
	if _, err := b.Build(StatePending); err != nil {
		panic(err)
	}
	return b
}

// NewRecordMachine returns a record lifecycle machine positioned at status
func NewRecordMachine(status entity.ApprovalStatus) (StateMachine, error) {
	return recordLifecycle.Build(State(status))
}

// NewEscalationMachine returns an escalation path machine positioned at status
func NewEscalationMachine(status entity.EscalationStatus) (StateMachine, error) {
	return escalationLifecycle.Build(State(status))
}

// AdvanceRecord validates a record transition and returns the new status
func AdvanceRecord(ctx context.Context, status entity.ApprovalStatus, trigger Trigger) (entity.ApprovalStatus, error) {
	m, err := NewRecordMachine(status)
	if err != nil {
		return status, err
	}
	if _, err := m.Fire(ctx, trigger); err != nil {
		return status, err
	}
	return entity.ApprovalStatus(m.State()), nil
}

// AdvanceEscalation validates an escalation path transition and returns the new status
func AdvanceEscalation(ctx context.Context, status entity.EscalationStatus, trigger Trigger) (entity.EscalationStatus, error) {
	m, err := NewEscalationMachine(status)
	if err != nil {
		return status, err
	}
	if _, err := m.Fire(ctx, trigger); err != nil {
		return status, err
	}
	return entity.EscalationStatus(m.State()), nil
}
