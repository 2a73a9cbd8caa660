package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/compliance"
	"github.com/garyjia/approval-engine/internal/domain/decision"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/risk"
	"github.com/garyjia/approval-engine/internal/domain/rules"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

// ErrRecordNotFound is returned when an approval record does not exist
var ErrRecordNotFound = errors.New("approval record not found")

// ApprovalEngine evaluates submitted items and records the decisions
type ApprovalEngine interface {
	// EvaluateForApproval decides an item and durably records the decision.
	// Evaluation failures yield a manual-review fallback decision, never an error;
	// only persistence failures are returned.
	EvaluateForApproval(ctx context.Context, item *entity.ApprovalItem) (*entity.ApprovalDecision, error)
	// PreviewDecision decides an item without persisting, escalating or notifying
	PreviewDecision(ctx context.Context, item *entity.ApprovalItem) (*entity.ApprovalDecision, error)
	// RecordManualDecision approves or rejects a pending record
	RecordManualDecision(ctx context.Context, recordID int64, approverID string, approve bool, comment string) (*entity.ApprovalRecord, error)
	GetRecord(ctx context.Context, id int64) (*entity.ApprovalRecord, error)
	ListRecords(ctx context.Context, limit, offset int) ([]*entity.ApprovalRecord, error)
	// GetAuditTrail returns the record's audit entries oldest first
	GetAuditTrail(ctx context.Context, recordID int64) ([]*entity.AuditTrailEntry, error)
}

// evaluation is the outcome of the sub-engine pipeline.
// risk holds whatever assessment was computed before a failure.
type evaluation struct {
	decision *entity.ApprovalDecision
	override string
	risk     *entity.RiskAssessment
	err      error
}

type approvalEngineImpl struct {
	analyzer    *risk.Analyzer
	compliance  *compliance.Engine
	rules       *rules.Engine
	recordRepo  port.ApprovalRecordRepository
	auditRepo   port.AuditTrailRepository
	policyRepo  port.PolicyRepository
	ruleRepo    port.RuleRepository
	txManager   port.TransactionManager
	configs     ConfigService
	escalations EscalationManager
	notifier    port.NotificationSink
	metrics     *engineMetrics
	logger      Logger
	now         func() time.Time
	newID       func() string
}

// NewApprovalEngine creates a new ApprovalEngine
func NewApprovalEngine(
	ruleEngine *rules.Engine,
	recordRepo port.ApprovalRecordRepository,
	auditRepo port.AuditTrailRepository,
	policyRepo port.PolicyRepository,
	ruleRepo port.RuleRepository,
	txManager port.TransactionManager,
	configs ConfigService,
	escalations EscalationManager,
	notifier port.NotificationSink,
	logger Logger,
) ApprovalEngine {
	return &approvalEngineImpl{
		analyzer:    risk.NewAnalyzer(),
		compliance:  compliance.NewEngine(),
		rules:       ruleEngine,
		recordRepo:  recordRepo,
		auditRepo:   auditRepo,
		policyRepo:  policyRepo,
		ruleRepo:    ruleRepo,
		txManager:   txManager,
		configs:     configs,
		escalations: escalations,
		notifier:    notifier,
		metrics:     newEngineMetrics(),
		logger:      logger,
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
	}
}

// EvaluateForApproval decides an item and durably records the decision
func (e *approvalEngineImpl) EvaluateForApproval(ctx context.Context, item *entity.ApprovalItem) (*entity.ApprovalDecision, error) {
	if item != nil && item.Validate() == nil {
		existing, err := e.recordRepo.GetByEvaluationKey(ctx, item.EvaluationKey())
		switch {
		case err == nil:
			e.logger.Info("Item already evaluated, returning recorded decision",
				"item_id", item.ID, "record_id", existing.ID, "evaluation_key", existing.EvaluationKey)
			return e.recordedDecision(ctx, existing)
		case !errors.Is(err, port.ErrNotFound):
			return nil, fmt.Errorf("lookup evaluation: %w", err)
		}
	}

	cfg := e.configs.Current()
	now := e.now().UTC()
	result := e.evaluate(ctx, item, cfg, now)
	d := e.finalize(result, now)

	e.metrics.recordDecision(ctx, string(d.Decision), d.Fallback)
	e.logger.Info("Approval decision made",
		"item_id", itemID(item),
		"evaluation_id", d.EvaluationID,
		"decision", d.Decision,
		"confidence", d.Confidence,
		"override", result.override,
		"fallback", d.Fallback,
	)

	if item == nil || item.Validate() != nil {
		e.logger.Warn("Invalid item, decision not recorded", "item_id", itemID(item), "evaluation_id", d.EvaluationID)
		return d, nil
	}

	record, err := e.persist(ctx, item, d, result.override, cfg, now)
	if errors.Is(err, port.ErrDuplicate) {
		// a concurrent evaluation of the same submission won the insert
		existing, getErr := e.recordRepo.GetByEvaluationKey(ctx, item.EvaluationKey())
		if getErr != nil {
			return nil, fmt.Errorf("lookup evaluation after duplicate: %w", getErr)
		}
		return e.recordedDecision(ctx, existing)
	}
	if err != nil {
		e.logger.Error("Failed to record approval decision", "error", err, "item_id", item.ID, "evaluation_id", d.EvaluationID)
		return nil, err
	}

	notify(ctx, e.notifier, e.logger, decisionNotification(record, d, cfg))
	if d.Decision == entity.DecisionRequireReview {
		e.notifyReviewers(ctx, record, d, cfg)
	}
	return d, nil
}

// notifyReviewers tells the department's supervisor-level approvers that a record awaits manual review
func (e *approvalEngineImpl) notifyReviewers(ctx context.Context, record *entity.ApprovalRecord, d *entity.ApprovalDecision, cfg *entity.EngineConfig) {
	reviewers, level, err := e.escalations.IdentifyApprovers(ctx, record.Department, record.ItemType, entity.EscalationLevelSupervisor)
	if err != nil {
		e.logger.Warn("Failed to resolve reviewers", "error", err, "record_id", record.ID, "department", record.Department)
		return
	}
	for _, id := range reviewers {
		if id == record.SubmittedBy {
			continue
		}
		n := decisionNotification(record, d, cfg)
		n.RecipientID = id
		n.Data["reviewer_level"] = string(level)
		notify(ctx, e.notifier, e.logger, n)
	}
}

// PreviewDecision decides an item without side effects
func (e *approvalEngineImpl) PreviewDecision(ctx context.Context, item *entity.ApprovalItem) (*entity.ApprovalDecision, error) {
	now := e.now().UTC()
	result := e.evaluate(ctx, item, e.configs.Current(), now)
	return e.finalize(result, now), nil
}

func (e *approvalEngineImpl) finalize(result evaluation, now time.Time) *entity.ApprovalDecision {
	d := result.decision
	if result.err != nil {
		e.logger.Error("Evaluation failed, falling back to manual review", "error", result.err)
		d = decision.Fallback(result.err, result.risk, now)
	}
	d.EvaluationID = e.newID()
	return d
}

// evaluate runs the sub-engines in order and synthesizes the decision.
// Any failure, including a panic, is returned in evaluation.err.
func (e *approvalEngineImpl) evaluate(ctx context.Context, item *entity.ApprovalItem, cfg *entity.EngineConfig, now time.Time) (result evaluation) {
	defer func() {
		if r := recover(); r != nil {
			result.decision = nil
			result.err = fmt.Errorf("panic during evaluation: %v", r)
		}
	}()

	if err := item.Validate(); err != nil {
		return evaluation{err: err}
	}

	assessment, err := e.analyzer.Assess(item, cfg)
	if err != nil {
		return evaluation{err: fmt.Errorf("assess risk: %w", err)}
	}
	result.risk = assessment

	policies, err := e.policyRepo.ListActive(ctx)
	if err != nil {
		result.err = fmt.Errorf("load policies: %w", err)
		return result
	}
	comp, err := e.compliance.Check(item, policies, cfg, now)
	if err != nil {
		result.err = fmt.Errorf("check compliance: %w", err)
		return result
	}

	ruleSet, err := e.ruleRepo.ListActive(ctx)
	if err != nil {
		result.err = fmt.Errorf("load rules: %w", err)
		return result
	}
	ruleEval, err := e.rules.Evaluate(item, assessment, ruleSet, now)
	if err != nil {
		result.err = fmt.Errorf("evaluate rules: %w", err)
		return result
	}

	result.decision, result.override = decision.Synthesize(decision.Inputs{
		Item:       item,
		Risk:       assessment,
		Compliance: comp,
		Rules:      ruleEval,
	}, cfg, now)
	return result
}

// persist writes the record, its audit entry and any escalation in one transaction
func (e *approvalEngineImpl) persist(ctx context.Context, item *entity.ApprovalItem, d *entity.ApprovalDecision, override string, cfg *entity.EngineConfig, now time.Time) (*entity.ApprovalRecord, error) {
	snapshot, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode decision: %w", err)
	}

	record := &entity.ApprovalRecord{
		EvaluationID:       d.EvaluationID,
		EvaluationKey:      item.EvaluationKey(),
		ItemID:             item.ID,
		ItemType:           item.Type,
		Department:         item.Department(),
		Status:             entity.ApprovalStatusPending,
		Decision:           d.Decision,
		DecisionMethod:     entity.DecisionMethodManual,
		RiskLevel:          d.RiskAssessment.Level,
		RiskScore:          d.RiskAssessment.Score,
		DecisionConfidence: d.Confidence,
		DecisionSnapshot:   string(snapshot),
		SubmittedBy:        item.SubmittedBy,
		SubmittedAt:        item.SubmittedAt.UTC(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if d.Decision == entity.DecisionAutoApprove {
		approver := entity.SystemActor
		record.Status = entity.ApprovalStatusApproved
		record.DecisionMethod = entity.DecisionMethodAutomatic
		record.ApprovedBy = &approver
		record.ApprovedAt = &now
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.recordRepo.Create(txCtx, record); err != nil {
			return fmt.Errorf("create approval record: %w", err)
		}

		if cfg.DefaultPolicies.AuditTrailRequired {
			if err := e.auditRepo.Append(txCtx, e.decisionAuditEntry(record, d, override)); err != nil {
				return fmt.Errorf("append audit entry: %w", err)
			}
		}

		if d.Decision == entity.DecisionEscalate && cfg.DefaultPolicies.EnableEscalation && !d.Fallback {
			path, err := e.escalations.InitiateEscalation(txCtx, record, item, d)
			if err != nil {
				return fmt.Errorf("initiate escalation: %w", err)
			}
			d.Escalation = path
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.RecordID = record.ID
	return record, nil
}

func (e *approvalEngineImpl) decisionAuditEntry(record *entity.ApprovalRecord, d *entity.ApprovalDecision, override string) *entity.AuditTrailEntry {
	data := map[string]interface{}{
		"decision":          d.Decision,
		"confidence":        d.Confidence,
		"override":          override,
		"fallback":          d.Fallback,
		"applied_rules":     d.AppliedRules,
		"policy_violations": d.PolicyViolations,
	}
	if d.RiskAssessment != nil {
		data["risk_level"] = d.RiskAssessment.Level
		data["risk_score"] = d.RiskAssessment.Score
		data["risk_factors"] = d.RiskAssessment.Factors
	}
	if d.Compliance != nil {
		data["compliance_score"] = d.Compliance.ComplianceScore
	}

	return &entity.AuditTrailEntry{
		ApprovalRecordID: record.ID,
		EvaluationID:     record.EvaluationID,
		Action:           entity.AuditActionEvaluated,
		NewStatus:        string(record.Status),
		ActorID:          entity.SystemActor,
		Reasoning:        d.Reasoning,
		AlgorithmVersion: d.AlgorithmVersion,
		Data:             auditData(e.logger, data),
		CreatedAt:        record.CreatedAt,
	}
}

// recordedDecision rebuilds the decision returned for an already recorded evaluation
func (e *approvalEngineImpl) recordedDecision(ctx context.Context, record *entity.ApprovalRecord) (*entity.ApprovalDecision, error) {
	var d entity.ApprovalDecision
	if err := json.Unmarshal([]byte(record.DecisionSnapshot), &d); err != nil {
		return nil, fmt.Errorf("decode recorded decision %d: %w", record.ID, err)
	}
	d.RecordID = record.ID

	if record.Status == entity.ApprovalStatusEscalated || record.Status == entity.ApprovalStatusExpired {
		chain, err := e.escalations.GetEscalationChain(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		if len(chain) > 0 {
			d.Escalation = chain[len(chain)-1]
		}
	}
	return &d, nil
}

// RecordManualDecision approves or rejects a pending record
func (e *approvalEngineImpl) RecordManualDecision(ctx context.Context, recordID int64, approverID string, approve bool, comment string) (*entity.ApprovalRecord, error) {
	if approverID == "" {
		return nil, fmt.Errorf("approver id is required")
	}
	record, err := e.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	trigger, action := workflow.TriggerReject, entity.AuditActionManualRejected
	if approve {
		trigger, action = workflow.TriggerApprove, entity.AuditActionManualApproved
	}
	next, err := workflow.AdvanceRecord(ctx, record.Status, trigger)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", recordID, err)
	}

	now := e.now().UTC()
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.recordRepo.UpdateStatus(txCtx, record.ID, record.Status, next, entity.DecisionMethodManual); err != nil {
			return fmt.Errorf("update record status: %w", err)
		}
		if approve {
			if err := e.recordRepo.SetApproval(txCtx, record.ID, approverID, now); err != nil {
				return fmt.Errorf("set approval: %w", err)
			}
		}
		return e.auditRepo.Append(txCtx, &entity.AuditTrailEntry{
			ApprovalRecordID: record.ID,
			EvaluationID:     record.EvaluationID,
			Action:           action,
			PreviousStatus:   string(record.Status),
			NewStatus:        string(next),
			ActorID:          approverID,
			Reasoning:        comment,
			CreatedAt:        now,
		})
	})
	if err != nil {
		e.logger.Error("Failed to record manual decision", "error", err, "record_id", recordID)
		return nil, err
	}

	record.Status = next
	record.DecisionMethod = entity.DecisionMethodManual
	record.UpdatedAt = now
	if approve {
		record.ApprovedBy = &approverID
		record.ApprovedAt = &now
	}

	e.logger.Info("Manual decision recorded", "record_id", record.ID, "status", next, "approver_id", approverID)
	notify(ctx, e.notifier, e.logger, outcomeNotification(record, string(next), approverID, comment))
	return record, nil
}

// GetRecord returns a record by id
func (e *approvalEngineImpl) GetRecord(ctx context.Context, id int64) (*entity.ApprovalRecord, error) {
	record, err := e.recordRepo.GetByID(ctx, id)
	if errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", id, err)
	}
	return record, nil
}

// ListRecords returns records newest first
func (e *approvalEngineImpl) ListRecords(ctx context.Context, limit, offset int) ([]*entity.ApprovalRecord, error) {
	records, err := e.recordRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// GetAuditTrail returns the record's audit entries oldest first
func (e *approvalEngineImpl) GetAuditTrail(ctx context.Context, recordID int64) ([]*entity.AuditTrailEntry, error) {
	if _, err := e.GetRecord(ctx, recordID); err != nil {
		return nil, err
	}
	entries, err := e.auditRepo.ListByRecordID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("list audit trail: %w", err)
	}
	return entries, nil
}

func itemID(item *entity.ApprovalItem) string {
	if item == nil {
		return ""
	}
	return item.ID
}
