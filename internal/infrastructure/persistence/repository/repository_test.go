package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/approval-engine/pkg/database"
)

var testNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(database.Config{Path: database.MemoryPath}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, zap.NewNop()).Migrate(context.Background()))
	return db.DB
}

func newTestRecord(key string) *entity.ApprovalRecord {
	return &entity.ApprovalRecord{
		EvaluationID:       "eval-" + key,
		EvaluationKey:      key,
		ItemID:             "F-1",
		ItemType:           entity.ItemTypeFinding,
		Department:         "finance",
		Status:             entity.ApprovalStatusPending,
		Decision:           entity.DecisionRequireReview,
		DecisionMethod:     entity.DecisionMethodManual,
		RiskLevel:          entity.RiskLevelMedium,
		RiskScore:          42,
		DecisionConfidence: 80,
		DecisionSnapshot:   `{"decision":"require_review"}`,
		SubmittedBy:        "alice",
		SubmittedAt:        testNow.Add(-time.Hour),
		CreatedAt:          testNow,
	}
}

func TestApprovalRecordRepository_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRecordRepository(db, zap.NewNop())
	ctx := context.Background()

	record := newTestRecord("finding:F-1:1")
	require.NoError(t, repo.Create(ctx, record))
	assert.NotZero(t, record.ID)

	err := repo.Create(ctx, newTestRecord("finding:F-1:1"))
	assert.ErrorIs(t, err, port.ErrDuplicate)

	got, err := repo.GetByEvaluationKey(ctx, "finding:F-1:1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, entity.ItemTypeFinding, got.ItemType)
	assert.Equal(t, 42, got.RiskScore)
	assert.True(t, got.SubmittedAt.Equal(record.SubmittedAt))
	assert.Nil(t, got.ApprovedBy)

	_, err = repo.GetByEvaluationKey(ctx, "missing")
	assert.ErrorIs(t, err, port.ErrNotFound)

	require.NoError(t, repo.UpdateStatus(ctx, record.ID, entity.ApprovalStatusPending, entity.ApprovalStatusApproved, entity.DecisionMethodManual))
	err = repo.UpdateStatus(ctx, record.ID, entity.ApprovalStatusPending, entity.ApprovalStatusRejected, entity.DecisionMethodManual)
	assert.ErrorIs(t, err, port.ErrStatusConflict)
	err = repo.UpdateStatus(ctx, 999, entity.ApprovalStatusPending, entity.ApprovalStatusRejected, entity.DecisionMethodManual)
	assert.ErrorIs(t, err, port.ErrNotFound)

	require.NoError(t, repo.SetApproval(ctx, record.ID, "mgr-1", testNow))
	got, err = repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusApproved, got.Status)
	require.NotNil(t, got.ApprovedBy)
	assert.Equal(t, "mgr-1", *got.ApprovedBy)
	require.NotNil(t, got.ApprovedAt)
	assert.True(t, got.ApprovedAt.Equal(testNow))
}

func TestApprovalRecordRepository_ListNewestFirst(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRecordRepository(db, zap.NewNop())
	ctx := context.Background()

	for _, key := range []string{"k1", "k2", "k3"} {
		require.NoError(t, repo.Create(ctx, newTestRecord(key)))
	}

	page, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "k3", page[0].EvaluationKey)
	assert.Equal(t, "k2", page[1].EvaluationKey)

	page, err = repo.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "k1", page[0].EvaluationKey)
}

func TestTransaction_RollsBackAcrossRepositories(t *testing.T) {
	db := openTestDB(t)
	tx := sqlite.NewDB(db, zap.NewNop())
	records := NewApprovalRecordRepository(db, zap.NewNop())
	audit := NewAuditTrailRepository(db, zap.NewNop())
	ctx := context.Background()

	err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
		record := newTestRecord("rolled-back")
		if err := records.Create(txCtx, record); err != nil {
			return err
		}
		if err := audit.Append(txCtx, &entity.AuditTrailEntry{ApprovalRecordID: record.ID, Action: entity.AuditActionEvaluated, ActorID: entity.SystemActor}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = records.GetByEvaluationKey(ctx, "rolled-back")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestAuditTrailRepository_AppendAndList(t *testing.T) {
	db := openTestDB(t)
	records := NewApprovalRecordRepository(db, zap.NewNop())
	repo := NewAuditTrailRepository(db, zap.NewNop())
	ctx := context.Background()

	record := newTestRecord("audit")
	require.NoError(t, records.Create(ctx, record))

	for _, action := range []string{entity.AuditActionEvaluated, entity.AuditActionEscalated} {
		require.NoError(t, repo.Append(ctx, &entity.AuditTrailEntry{
			ApprovalRecordID: record.ID,
			EvaluationID:     record.EvaluationID,
			Action:           action,
			ActorID:          entity.SystemActor,
			AlgorithmVersion: entity.AlgorithmVersion,
			Data:             `{"k":"v"}`,
			CreatedAt:        testNow,
		}))
	}

	entries, err := repo.ListByRecordID(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entity.AuditActionEvaluated, entries[0].Action)
	assert.Equal(t, entity.AuditActionEscalated, entries[1].Action)
	assert.Equal(t, `{"k":"v"}`, entries[0].Data)
}

func TestEscalationPathRepository_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	records := NewApprovalRecordRepository(db, zap.NewNop())
	repo := NewEscalationPathRepository(db, zap.NewNop())
	ctx := context.Background()

	record := newTestRecord("esc")
	require.NoError(t, records.Create(ctx, record))

	next := entity.EscalationLevelBoard
	first := &entity.EscalationPath{
		ApprovalRecordID:    record.ID,
		Level:               entity.EscalationLevelExecutive,
		AssignedApprovers:   []string{"exec-1", "deputy-1"},
		Urgency:             entity.UrgencyCritical,
		UrgencyScore:        90,
		TimeoutHours:        48,
		Deadline:            testNow.Add(-time.Hour),
		NextEscalationLevel: &next,
		Status:              entity.EscalationStatusPending,
		CreatedAt:           testNow.Add(-49 * time.Hour),
	}
	require.NoError(t, repo.Create(ctx, first))

	second := &entity.EscalationPath{
		ApprovalRecordID: record.ID,
		PreviousPathID:   &first.ID,
		Level:            entity.EscalationLevelBoard,
		Urgency:          entity.UrgencyCritical,
		UrgencyScore:     90,
		TimeoutHours:     84,
		Deadline:         testNow.Add(84 * time.Hour),
		Status:           entity.EscalationStatusPending,
	}
	require.NoError(t, repo.Create(ctx, second))

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"exec-1", "deputy-1"}, got.AssignedApprovers)
	require.NotNil(t, got.NextEscalationLevel)
	assert.Equal(t, entity.EscalationLevelBoard, *got.NextEscalationLevel)
	assert.Nil(t, got.PreviousPathID)

	got, err = repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.AssignedApprovers)
	require.NotNil(t, got.PreviousPathID)
	assert.Equal(t, first.ID, *got.PreviousPathID)
	assert.Nil(t, got.NextEscalationLevel)

	due, err := repo.ListDue(ctx, testNow, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, first.ID, due[0].ID)

	require.NoError(t, repo.MarkTimeout(ctx, first.ID, testNow))
	assert.ErrorIs(t, repo.MarkTimeout(ctx, first.ID, testNow), port.ErrStatusConflict)
	assert.ErrorIs(t, repo.Resolve(ctx, first.ID, "exec-1", entity.ResolutionApproved, "", testNow), port.ErrStatusConflict)

	require.NoError(t, repo.Resolve(ctx, second.ID, "board-1", entity.ResolutionApproved, "ok", testNow))
	got, err = repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EscalationStatusResolved, got.Status)
	require.NotNil(t, got.ResolvedBy)
	assert.Equal(t, "board-1", *got.ResolvedBy)
	assert.Equal(t, "ok", got.Comment)

	chain, err := repo.ListByRecordID(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, entity.EscalationStatusTimeout, chain[0].Status)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, port.ErrNotFound)
	assert.ErrorIs(t, repo.MarkTimeout(ctx, 999, testNow), port.ErrNotFound)
}

func TestPolicyAndRuleRepositories_Upsert(t *testing.T) {
	db := openTestDB(t)
	policies := NewPolicyRepository(db, zap.NewNop())
	rules := NewRuleRepository(db, zap.NewNop())
	ctx := context.Background()

	limit := 100000.0
	policy := &entity.ApprovalPolicy{
		ID:                  "P-1",
		Name:                "Spending cap",
		Conditions:          entity.PolicyConditions{MaxFinancialImpact: &limit, MaxRiskLevel: entity.RiskLevelHigh},
		ApplicableItemTypes: []entity.ItemType{entity.ItemTypeRisk},
		IsActive:            true,
		EffectiveDate:       testNow.Add(-24 * time.Hour),
	}
	require.NoError(t, policies.Upsert(ctx, policy))
	require.NoError(t, policies.Upsert(ctx, &entity.ApprovalPolicy{ID: "P-2", Name: "Retired", EffectiveDate: testNow}))

	policy.Name = "Spending cap v2"
	require.NoError(t, policies.Upsert(ctx, policy))

	active, err := policies.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Spending cap v2", active[0].Name)
	require.NotNil(t, active[0].Conditions.MaxFinancialImpact)
	assert.Equal(t, limit, *active[0].Conditions.MaxFinancialImpact)
	assert.Equal(t, []entity.ItemType{entity.ItemTypeRisk}, active[0].ApplicableItemTypes)
	assert.Empty(t, active[0].ApplicableDepartments)

	require.NoError(t, rules.Upsert(ctx, &entity.ApprovalRule{
		ID: "R-2", Name: "Escalate critical", Priority: 2, Action: entity.DecisionEscalate, IsActive: true, EffectiveDate: testNow,
		Conditions: []entity.Condition{{Field: entity.FieldRiskLevel, Operator: entity.OperatorEquals, Value: "critical"}},
	}))
	require.NoError(t, rules.Upsert(ctx, &entity.ApprovalRule{
		ID: "R-1", Name: "Expression", Priority: 1, Action: entity.DecisionRequireReview, IsActive: true, EffectiveDate: testNow,
		Expression: "financialImpact > 50000.0",
	}))

	list, err := rules.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "R-1", list[0].ID)
	assert.Equal(t, "financialImpact > 50000.0", list[0].Expression)
	require.Len(t, list[1].Conditions, 1)
	assert.Equal(t, "critical", list[1].Conditions[0].Value)
}

func TestOrganizationRepositories(t *testing.T) {
	db := openTestDB(t)
	hierarchy := NewHierarchyRepository(db, zap.NewNop())
	delegations := NewDelegationRepository(db, zap.NewNop())
	users := NewUserRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, hierarchy.Create(ctx, &entity.ApprovalHierarchy{
		Department: "finance", Level: entity.EscalationLevelExecutive,
		ApproverUserID: "exec-1", BackupApproverUserID: "exec-2", ApprovalLimit: 1e6, IsActive: true,
	}))
	require.NoError(t, hierarchy.Create(ctx, &entity.ApprovalHierarchy{
		Department: "finance", Level: entity.EscalationLevelExecutive, ApproverUserID: "exec-3",
	}))

	rows, err := hierarchy.ListByDepartmentLevel(ctx, "finance", entity.EscalationLevelExecutive)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].IsActive)
	assert.False(t, rows[1].IsActive)
	assert.Equal(t, "exec-2", rows[0].BackupApproverUserID)

	end := testNow.Add(24 * time.Hour)
	require.NoError(t, delegations.Create(ctx, &entity.ApprovalDelegation{
		DelegatorID: "exec-1", DelegateID: "deputy-1", Scope: entity.DelegationScopeAll,
		StartDate: testNow.Add(-time.Hour), EndDate: &end, IsActive: true,
	}))
	require.NoError(t, delegations.Create(ctx, &entity.ApprovalDelegation{
		DelegatorID: "other", DelegateID: "x", StartDate: testNow, IsActive: true,
	}))

	list, err := delegations.ListByDelegators(ctx, []string{"exec-1", "exec-2"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "deputy-1", list[0].DelegateID)
	require.NotNil(t, list[0].EndDate)
	assert.True(t, list[0].IsEffective(testNow))

	list, err = delegations.ListByDelegators(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, users.Upsert(ctx, &entity.User{ID: "exec-1", Name: "Exec", LarkOpenID: "ou_1", IsActive: true}))
	require.NoError(t, users.Upsert(ctx, &entity.User{ID: "exec-2", Name: "Backup"}))
	require.NoError(t, users.Upsert(ctx, &entity.User{ID: "deputy-1", Name: "Deputy", IsActive: true}))

	active, err := users.ListActiveByIDs(ctx, []string{"exec-1", "exec-2", "deputy-1"})
	require.NoError(t, err)
	ids := make([]string, 0, len(active))
	for _, u := range active {
		ids = append(ids, u.ID)
	}
	assert.ElementsMatch(t, []string{"exec-1", "deputy-1"}, ids)

	u, err := users.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "ou_1", u.LarkOpenID)
	_, err = users.GetByID(ctx, "nobody")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestNotificationRepository_Outbox(t *testing.T) {
	db := openTestDB(t)
	repo := NewNotificationRepository(db, zap.NewNop())
	ctx := context.Background()

	for _, recipient := range []string{"alice", "bob"} {
		require.NoError(t, repo.Create(ctx, &entity.Notification{
			RecipientID: recipient,
			Type:        entity.NotificationTypeEscalationAssigned,
			Category:    entity.NotificationCategoryApproval,
			Priority:    entity.NotificationPriorityUrgent,
			Title:       "Escalation",
			Data:        map[string]interface{}{"respond_within_hours": 4},
			Channels:    []string{entity.ChannelInApp, entity.ChannelLark},
		}))
	}

	pending, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, entity.NotificationStatusPending, pending[0].Status)
	assert.True(t, pending[0].HasChannel(entity.ChannelLark))
	assert.Equal(t, float64(4), pending[0].Data["respond_within_hours"])

	require.NoError(t, repo.MarkSent(ctx, pending[0].ID, testNow))
	require.NoError(t, repo.MarkFailed(ctx, pending[1].ID, "lark unavailable"))

	pending, err = repo.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestConfigRepository_LoadSave(t *testing.T) {
	db := openTestDB(t)
	repo := NewConfigRepository(db, zap.NewNop())
	ctx := context.Background()

	_, err := repo.Load(ctx, entity.EngineConfigKey)
	assert.ErrorIs(t, err, port.ErrNotFound)

	require.NoError(t, repo.Save(ctx, entity.EngineConfigKey, `{"a":1}`))
	require.NoError(t, repo.Save(ctx, entity.EngineConfigKey, `{"a":2}`))

	value, err := repo.Load(ctx, entity.EngineConfigKey)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, value)
}
