package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// seedEscalation stores an escalated record with one pending path at level
func seedEscalation(t *testing.T, f *engineFixture, level entity.EscalationLevel, approvers []string, deadline time.Time) (*entity.ApprovalRecord, *entity.EscalationPath) {
	t.Helper()
	ctx := context.Background()

	record := &entity.ApprovalRecord{
		EvaluationID:  "eval-seed",
		EvaluationKey: "risk:R-1:" + deadline.String(),
		ItemID:        "R-1",
		ItemType:      entity.ItemTypeRisk,
		Department:    "finance",
		Status:        entity.ApprovalStatusEscalated,
		Decision:      entity.DecisionEscalate,
		SubmittedBy:   "bob",
	}
	require.NoError(t, f.records.Create(ctx, record))

	path := &entity.EscalationPath{
		ApprovalRecordID:    record.ID,
		Level:               level,
		AssignedApprovers:   approvers,
		Urgency:             entity.UrgencyMedium,
		UrgencyScore:        40,
		TimeoutHours:        24,
		Deadline:            deadline,
		NextEscalationLevel: level.Next(),
		Status:              entity.EscalationStatusPending,
	}
	require.NoError(t, f.paths.Create(ctx, path))
	return record, path
}

func TestIdentifyApprovers(t *testing.T) {
	f := newEngineFixture(t)
	f.hierarchy.rows = append(f.hierarchy.rows,
		&entity.ApprovalHierarchy{Department: "legal", Level: entity.EscalationLevelDirector, ApproverUserID: "gone", IsActive: true},
		&entity.ApprovalHierarchy{Department: "legal", Level: entity.EscalationLevelExecutive, ApproverUserID: "gc-1", IsActive: true},
		&entity.ApprovalHierarchy{Department: "ops", Level: entity.EscalationLevelManager, ApproverUserID: "ops-1", BackupApproverUserID: "ops-1", IsActive: true},
		&entity.ApprovalHierarchy{Department: "ops", Level: entity.EscalationLevelManager, ApproverUserID: "ops-retired", IsActive: false},
	)
	f.delegations.delegations = append(f.delegations.delegations,
		&entity.ApprovalDelegation{DelegatorID: "ops-1", DelegateID: "ops-expired", StartDate: testNow.Add(-72 * time.Hour), EndDate: timePtr(testNow.Add(-24 * time.Hour)), IsActive: true},
		&entity.ApprovalDelegation{DelegatorID: "ops-1", DelegateID: "ops-audits", Scope: string(entity.ItemTypeAuditTest), StartDate: testNow.Add(-time.Hour), IsActive: true},
		&entity.ApprovalDelegation{DelegatorID: "ops-1", DelegateID: "ops-risks", Scope: string(entity.ItemTypeRisk), StartDate: testNow.Add(-time.Hour), IsActive: true},
		&entity.ApprovalDelegation{DelegatorID: "ops-1", DelegateID: "ops-future", StartDate: testNow.Add(time.Hour), IsActive: true},
	)
	for _, id := range []string{"gc-1", "ops-1", "ops-retired", "ops-expired", "ops-audits", "ops-risks", "ops-future"} {
		f.users.users[id] = &entity.User{ID: id, IsActive: true}
	}

	tests := []struct {
		name          string
		department    string
		itemType      entity.ItemType
		level         entity.EscalationLevel
		wantApprovers []string
		wantLevel     entity.EscalationLevel
	}{
		{"primary plus active delegate", "finance", entity.ItemTypeRisk, entity.EscalationLevelExecutive, []string{"exec-1", "deputy-1"}, entity.EscalationLevelExecutive},
		{"walks up past inactive users", "legal", entity.ItemTypeRisk, entity.EscalationLevelManager, []string{"gc-1"}, entity.EscalationLevelExecutive},
		{"delegation scope and window", "ops", entity.ItemTypeRisk, entity.EscalationLevelManager, []string{"ops-1", "ops-risks"}, entity.EscalationLevelManager},
		{"no approvers anywhere", "unknown", entity.ItemTypeRisk, entity.EscalationLevelDirector, []string{}, entity.EscalationLevelDirector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			approvers, level, err := f.escalations.IdentifyApprovers(context.Background(), tt.department, tt.itemType, tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.wantApprovers, approvers)
			assert.Equal(t, tt.wantLevel, level)
		})
	}

	_, _, err := f.escalations.IdentifyApprovers(context.Background(), "finance", entity.ItemTypeRisk, "chairman")
	assert.Error(t, err)
}

func TestProcessEscalationTimeout_ChainsToBoardThenExpires(t *testing.T) {
	f := newEngineFixture(t)
	record, path := seedEscalation(t, f, entity.EscalationLevelSupervisor, []string{"sup-1"}, testNow)
	ctx := context.Background()

	expected := []struct {
		level     entity.EscalationLevel
		approvers []string
		hours     int
	}{
		{entity.EscalationLevelManager, []string{"mgr-1"}, 48},
		{entity.EscalationLevelDirector, []string{"dir-1"}, 72},
		{entity.EscalationLevelExecutive, []string{"exec-1", "deputy-1"}, 96},
		{entity.EscalationLevelBoard, []string{"board-1"}, 168},
	}

	for _, want := range expected {
		at := path.Deadline
		next, err := f.escalations.ProcessEscalationTimeout(ctx, path.ID, at)
		require.NoError(t, err)

		assert.Equal(t, want.level, next.Level)
		assert.Equal(t, want.approvers, next.AssignedApprovers)
		assert.Equal(t, want.hours, next.TimeoutHours)
		assert.Equal(t, at.Add(time.Duration(want.hours)*time.Hour), next.Deadline)
		assert.Equal(t, entity.UrgencyMedium, next.Urgency)
		require.NotNil(t, next.PreviousPathID)
		assert.Equal(t, path.ID, *next.PreviousPathID)

		old, err := f.paths.GetByID(ctx, path.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.EscalationStatusTimeout, old.Status)

		path = next
	}
	assert.Nil(t, path.NextEscalationLevel)

	expired, err := f.escalations.ProcessEscalationTimeout(ctx, path.ID, path.Deadline.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, path.ID, expired.ID)
	assert.Equal(t, entity.EscalationStatusTimeout, expired.Status)
	assert.Equal(t, 5, f.paths.count())

	stored, err := f.records.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusExpired, stored.Status)

	chain, err := f.escalations.GetEscalationChain(ctx, record.ID)
	require.NoError(t, err)
	assert.Len(t, chain, 5)

	assert.Equal(t, []string{
		entity.AuditActionEscalationTimeout, entity.AuditActionEscalationChained,
		entity.AuditActionEscalationTimeout, entity.AuditActionEscalationChained,
		entity.AuditActionEscalationTimeout, entity.AuditActionEscalationChained,
		entity.AuditActionEscalationTimeout, entity.AuditActionEscalationChained,
		entity.AuditActionEscalationTimeout, entity.AuditActionExpired,
	}, f.audit.actions())
	assert.Equal(t, []string{"bob"}, f.sink.recipients(entity.NotificationTypeEscalationExpired))
	assert.Equal(t, []string{"mgr-1", "dir-1", "exec-1", "deputy-1", "board-1"}, f.sink.recipients(entity.NotificationTypeEscalationAssigned))
}

func TestProcessEscalationTimeout_ScenarioE_BoardExpiresRecord(t *testing.T) {
	f := newEngineFixture(t)
	record, path := seedEscalation(t, f, entity.EscalationLevelBoard, []string{"board-1"}, testNow.Add(-time.Hour))

	got, err := f.escalations.ProcessEscalationTimeout(context.Background(), path.ID, testNow)
	require.NoError(t, err)
	assert.Equal(t, entity.EscalationStatusTimeout, got.Status)
	assert.Equal(t, 1, f.paths.count())

	stored, err := f.records.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusExpired, stored.Status)
}

func TestProcessEscalationTimeout_NoOp(t *testing.T) {
	f := newEngineFixture(t)
	_, path := seedEscalation(t, f, entity.EscalationLevelManager, []string{"mgr-1"}, testNow.Add(time.Hour))

	got, err := f.escalations.ProcessEscalationTimeout(context.Background(), path.ID, testNow)
	require.NoError(t, err)
	assert.Equal(t, entity.EscalationStatusPending, got.Status)
	assert.Equal(t, path.ID, got.ID)
	assert.Equal(t, 1, f.paths.count())
	assert.Empty(t, f.audit.actions())

	_, err = f.escalations.ResolveEscalation(context.Background(), path.ID, "mgr-1", false, "no")
	require.NoError(t, err)

	got, err = f.escalations.ProcessEscalationTimeout(context.Background(), path.ID, testNow.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, entity.EscalationStatusResolved, got.Status)
	assert.Equal(t, 1, f.paths.count())

	_, err = f.escalations.ProcessEscalationTimeout(context.Background(), 404, testNow)
	assert.ErrorIs(t, err, ErrEscalationNotFound)
}

func TestResolveEscalation(t *testing.T) {
	f := newEngineFixture(t)
	record, path := seedEscalation(t, f, entity.EscalationLevelDirector, []string{"dir-1"}, testNow.Add(time.Hour))
	ctx := context.Background()

	_, err := f.escalations.ResolveEscalation(ctx, path.ID, "mallory", true, "")
	assert.ErrorIs(t, err, ErrNotAssignedApprover)

	resolved, err := f.escalations.ResolveEscalation(ctx, path.ID, "dir-1", true, "approved with conditions")
	require.NoError(t, err)
	assert.Equal(t, entity.EscalationStatusResolved, resolved.Status)
	assert.Equal(t, entity.ResolutionApproved, resolved.Resolution)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, "dir-1", *resolved.ResolvedBy)

	stored, err := f.records.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusEscalated, stored.Status)
	require.NotNil(t, stored.ApprovedBy)
	assert.Equal(t, "dir-1", *stored.ApprovedBy)

	assert.Equal(t, []string{entity.AuditActionEscalationResolved}, f.audit.actions())
	assert.Equal(t, []string{"bob"}, f.sink.recipients(entity.NotificationTypeApprovalDecision))

	_, err = f.escalations.ResolveEscalation(ctx, path.ID, "dir-1", false, "")
	assert.ErrorIs(t, err, ErrEscalationNotPending)

	_, err = f.escalations.ResolveEscalation(ctx, 404, "dir-1", true, "")
	assert.ErrorIs(t, err, ErrEscalationNotFound)
}

func TestResolveEscalation_UnassignedPathAcceptsAnyone(t *testing.T) {
	f := newEngineFixture(t)
	record, path := seedEscalation(t, f, entity.EscalationLevelDirector, []string{}, testNow.Add(time.Hour))

	resolved, err := f.escalations.ResolveEscalation(context.Background(), path.ID, "ceo", false, "declined")
	require.NoError(t, err)
	assert.Equal(t, entity.ResolutionRejected, resolved.Resolution)

	stored, err := f.records.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ApprovedBy)
}

func TestListDueEscalations(t *testing.T) {
	f := newEngineFixture(t)
	_, due := seedEscalation(t, f, entity.EscalationLevelManager, []string{"mgr-1"}, testNow.Add(-time.Minute))
	seedEscalation(t, f, entity.EscalationLevelManager, []string{"mgr-1"}, testNow.Add(time.Minute))

	paths, err := f.escalations.ListDueEscalations(context.Background(), testNow, 10)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, due.ID, paths[0].ID)
}

func timePtr(t time.Time) *time.Time { return &t }
