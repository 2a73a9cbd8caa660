package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/escalation"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

var (
	// ErrEscalationNotFound is returned when an escalation path does not exist
	ErrEscalationNotFound = errors.New("escalation path not found")

	// ErrEscalationNotPending is returned when acting on a resolved or timed out path
	ErrEscalationNotPending = errors.New("escalation path is not pending")

	// ErrNotAssignedApprover is returned when someone outside the assigned approvers resolves a path
	ErrNotAssignedApprover = errors.New("user is not an assigned approver")
)

// EscalationManager routes decisions through the approval hierarchy
type EscalationManager interface {
	// InitiateEscalation creates the first path for a record and moves the record to escalated
	InitiateEscalation(ctx context.Context, record *entity.ApprovalRecord, item *entity.ApprovalItem, decision *entity.ApprovalDecision) (*entity.EscalationPath, error)
	// ResolveEscalation records a human decision on a pending path
	ResolveEscalation(ctx context.Context, pathID int64, approverID string, approve bool, comment string) (*entity.EscalationPath, error)
	// ProcessEscalationTimeout advances a path whose deadline passed.
	// It returns the new path when chained and the timed out path when the record expired.
	ProcessEscalationTimeout(ctx context.Context, pathID int64, now time.Time) (*entity.EscalationPath, error)
	// ListDueEscalations returns pending paths whose deadline passed
	ListDueEscalations(ctx context.Context, now time.Time, limit int) ([]*entity.EscalationPath, error)
	// IdentifyApprovers resolves the active approvers at level, walking up when a level has none
	IdentifyApprovers(ctx context.Context, department string, itemType entity.ItemType, level entity.EscalationLevel) ([]string, entity.EscalationLevel, error)
	// GetEscalationChain returns every path of a record in creation order
	GetEscalationChain(ctx context.Context, recordID int64) ([]*entity.EscalationPath, error)
}

type escalationManagerImpl struct {
	recordRepo     port.ApprovalRecordRepository
	pathRepo       port.EscalationPathRepository
	auditRepo      port.AuditTrailRepository
	hierarchyRepo  port.HierarchyRepository
	delegationRepo port.DelegationRepository
	userRepo       port.UserRepository
	txManager      port.TransactionManager
	configs        ConfigService
	notifier       port.NotificationSink
	metrics        *engineMetrics
	logger         Logger
	now            func() time.Time
}

// NewEscalationManager creates a new EscalationManager
func NewEscalationManager(
	recordRepo port.ApprovalRecordRepository,
	pathRepo port.EscalationPathRepository,
	auditRepo port.AuditTrailRepository,
	hierarchyRepo port.HierarchyRepository,
	delegationRepo port.DelegationRepository,
	userRepo port.UserRepository,
	txManager port.TransactionManager,
	configs ConfigService,
	notifier port.NotificationSink,
	logger Logger,
) EscalationManager {
	return &escalationManagerImpl{
		recordRepo:     recordRepo,
		pathRepo:       pathRepo,
		auditRepo:      auditRepo,
		hierarchyRepo:  hierarchyRepo,
		delegationRepo: delegationRepo,
		userRepo:       userRepo,
		txManager:      txManager,
		configs:        configs,
		notifier:       notifier,
		metrics:        newEngineMetrics(),
		logger:         logger,
		now:            time.Now,
	}
}

// InitiateEscalation creates the first path for a record and moves the record to escalated.
// It joins a transaction already carried by ctx.
func (m *escalationManagerImpl) InitiateEscalation(ctx context.Context, record *entity.ApprovalRecord, item *entity.ApprovalItem, decision *entity.ApprovalDecision) (*entity.EscalationPath, error) {
	if record == nil || item == nil || decision == nil {
		return nil, fmt.Errorf("initiate escalation: record, item and decision are required")
	}
	cfg := m.configs.Current()
	now := m.now().UTC()

	plan := escalation.NewPlan(item, decision.RiskAssessment, decision.Confidence, cfg)
	approvers, level, err := m.IdentifyApprovers(ctx, item.Department(), item.Type, plan.Level)
	if err != nil {
		return nil, fmt.Errorf("identify approvers: %w", err)
	}
	hours := escalation.TimeoutHours(level, plan.Urgency, cfg)

	path := &entity.EscalationPath{
		ApprovalRecordID:    record.ID,
		Level:               level,
		AssignedApprovers:   approvers,
		Urgency:             plan.Urgency,
		UrgencyScore:        plan.UrgencyScore,
		TimeoutHours:        hours,
		Deadline:            now.Add(time.Duration(hours) * time.Hour),
		NextEscalationLevel: level.Next(),
		Status:              entity.EscalationStatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	next, err := workflow.AdvanceRecord(ctx, record.Status, workflow.TriggerEscalate)
	if err != nil {
		return nil, fmt.Errorf("escalate record %d: %w", record.ID, err)
	}

	err = m.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := m.recordRepo.UpdateStatus(txCtx, record.ID, record.Status, next, entity.DecisionMethodManual); err != nil {
			return fmt.Errorf("update record status: %w", err)
		}
		if err := m.pathRepo.Create(txCtx, path); err != nil {
			return fmt.Errorf("create escalation path: %w", err)
		}
		return m.auditRepo.Append(txCtx, &entity.AuditTrailEntry{
			ApprovalRecordID: record.ID,
			EvaluationID:     record.EvaluationID,
			Action:           entity.AuditActionEscalated,
			PreviousStatus:   string(record.Status),
			NewStatus:        string(next),
			ActorID:          entity.SystemActor,
			Reasoning:        fmt.Sprintf("Escalated to %s with %s urgency", level, plan.Urgency),
			AlgorithmVersion: entity.AlgorithmVersion,
			Data:             auditData(m.logger, pathAuditData(path, plan.Level)),
			CreatedAt:        now,
		})
	})
	if err != nil {
		m.logger.Error("Failed to initiate escalation", "error", err, "record_id", record.ID)
		return nil, err
	}

	record.Status = next
	record.DecisionMethod = entity.DecisionMethodManual
	m.metrics.recordEscalation(ctx, string(level), false)
	m.logger.Info("Escalation initiated",
		"record_id", record.ID,
		"path_id", path.ID,
		"level", level,
		"urgency", plan.Urgency,
		"approvers", len(approvers),
		"timeout_hours", hours,
	)
	if len(approvers) == 0 {
		m.logger.Warn("No active approvers found for escalation", "record_id", record.ID, "department", item.Department(), "level", level)
	}

	for _, approver := range approvers {
		notify(ctx, m.notifier, m.logger, escalationAssignedNotification(approver, record, path))
	}
	return path, nil
}

// ResolveEscalation records a human decision on a pending path.
// The record stays escalated; an approval also stamps approvedBy/At.
func (m *escalationManagerImpl) ResolveEscalation(ctx context.Context, pathID int64, approverID string, approve bool, comment string) (*entity.EscalationPath, error) {
	path, err := m.getPath(ctx, pathID)
	if err != nil {
		return nil, err
	}
	if path.Status != entity.EscalationStatusPending {
		return nil, fmt.Errorf("%w: path %d is %s", ErrEscalationNotPending, pathID, path.Status)
	}
	if len(path.AssignedApprovers) > 0 && !path.IsAssigned(approverID) {
		return nil, fmt.Errorf("%w: %s on path %d", ErrNotAssignedApprover, approverID, pathID)
	}
	next, err := workflow.AdvanceEscalation(ctx, path.Status, workflow.TriggerResolve)
	if err != nil {
		return nil, err
	}

	record, err := m.recordRepo.GetByID(ctx, path.ApprovalRecordID)
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", path.ApprovalRecordID, err)
	}

	now := m.now().UTC()
	resolution := entity.ResolutionRejected
	if approve {
		resolution = entity.ResolutionApproved
	}

	err = m.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := m.pathRepo.Resolve(txCtx, path.ID, approverID, resolution, comment, now); err != nil {
			return fmt.Errorf("resolve path: %w", err)
		}
		if approve {
			if err := m.recordRepo.SetApproval(txCtx, record.ID, approverID, now); err != nil {
				return fmt.Errorf("set approval: %w", err)
			}
		}
		return m.auditRepo.Append(txCtx, &entity.AuditTrailEntry{
			ApprovalRecordID: record.ID,
			EvaluationID:     record.EvaluationID,
			Action:           entity.AuditActionEscalationResolved,
			PreviousStatus:   string(record.Status),
			NewStatus:        string(record.Status),
			ActorID:          approverID,
			Reasoning:        comment,
			Data: auditData(m.logger, map[string]interface{}{
				"path_id":    path.ID,
				"level":      path.Level,
				"resolution": resolution,
			}),
			CreatedAt: now,
		})
	})
	if err != nil {
		m.logger.Error("Failed to resolve escalation", "error", err, "path_id", pathID)
		return nil, err
	}

	path.Status = next
	path.ResolvedBy = &approverID
	path.ResolvedAt = &now
	path.Resolution = resolution
	path.Comment = comment
	path.UpdatedAt = now

	m.logger.Info("Escalation resolved", "path_id", path.ID, "record_id", record.ID, "resolution", resolution, "approver_id", approverID)
	notify(ctx, m.notifier, m.logger, outcomeNotification(record, resolution, approverID, comment))
	return path, nil
}

// ProcessEscalationTimeout advances a path whose deadline passed
func (m *escalationManagerImpl) ProcessEscalationTimeout(ctx context.Context, pathID int64, now time.Time) (*entity.EscalationPath, error) {
	path, err := m.getPath(ctx, pathID)
	if err != nil {
		return nil, err
	}
	now = now.UTC()

	step := escalation.Advance(path, now)
	if step.Action == escalation.ActionNone {
		return path, nil
	}
	if _, err := workflow.AdvanceEscalation(ctx, path.Status, workflow.TriggerTimeOut); err != nil {
		return nil, err
	}

	record, err := m.recordRepo.GetByID(ctx, path.ApprovalRecordID)
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", path.ApprovalRecordID, err)
	}

	if step.Action == escalation.ActionExpire {
		return m.expire(ctx, record, path, now)
	}
	return m.chain(ctx, record, path, step.NextLevel, now)
}

func (m *escalationManagerImpl) markTimeout(ctx context.Context, record *entity.ApprovalRecord, path *entity.EscalationPath, now time.Time) error {
	if err := m.pathRepo.MarkTimeout(ctx, path.ID, now); err != nil {
		return fmt.Errorf("mark path timeout: %w", err)
	}
	return m.auditRepo.Append(ctx, &entity.AuditTrailEntry{
		ApprovalRecordID: record.ID,
		EvaluationID:     record.EvaluationID,
		Action:           entity.AuditActionEscalationTimeout,
		PreviousStatus:   string(record.Status),
		NewStatus:        string(record.Status),
		ActorID:          entity.SystemActor,
		Reasoning:        fmt.Sprintf("No resolution at %s level within %d hours", path.Level, path.TimeoutHours),
		Data:             auditData(m.logger, map[string]interface{}{"path_id": path.ID, "level": path.Level}),
		CreatedAt:        now,
	})
}

func (m *escalationManagerImpl) chain(ctx context.Context, record *entity.ApprovalRecord, path *entity.EscalationPath, nextLevel entity.EscalationLevel, now time.Time) (*entity.EscalationPath, error) {
	cfg := m.configs.Current()
	approvers, level, err := m.IdentifyApprovers(ctx, record.Department, record.ItemType, nextLevel)
	if err != nil {
		return nil, fmt.Errorf("identify approvers: %w", err)
	}
	hours := escalation.TimeoutHours(level, path.Urgency, cfg)
	prevID := path.ID

	next := &entity.EscalationPath{
		ApprovalRecordID:    record.ID,
		PreviousPathID:      &prevID,
		Level:               level,
		AssignedApprovers:   approvers,
		Urgency:             path.Urgency,
		UrgencyScore:        path.UrgencyScore,
		TimeoutHours:        hours,
		Deadline:            now.Add(time.Duration(hours) * time.Hour),
		NextEscalationLevel: level.Next(),
		Status:              entity.EscalationStatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err = m.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := m.markTimeout(txCtx, record, path, now); err != nil {
			return err
		}
		if err := m.pathRepo.Create(txCtx, next); err != nil {
			return fmt.Errorf("create escalation path: %w", err)
		}
		return m.auditRepo.Append(txCtx, &entity.AuditTrailEntry{
			ApprovalRecordID: record.ID,
			EvaluationID:     record.EvaluationID,
			Action:           entity.AuditActionEscalationChained,
			PreviousStatus:   string(record.Status),
			NewStatus:        string(record.Status),
			ActorID:          entity.SystemActor,
			Reasoning:        fmt.Sprintf("Escalation advanced from %s to %s", path.Level, level),
			AlgorithmVersion: entity.AlgorithmVersion,
			Data:             auditData(m.logger, pathAuditData(next, nextLevel)),
			CreatedAt:        now,
		})
	})
	if err != nil {
		m.logger.Error("Failed to chain escalation", "error", err, "path_id", path.ID)
		return nil, err
	}

	m.metrics.recordTimeout(ctx, string(path.Level), string(escalation.ActionChain))
	m.metrics.recordEscalation(ctx, string(level), true)
	m.logger.Info("Escalation chained",
		"record_id", record.ID,
		"from_path_id", path.ID,
		"to_path_id", next.ID,
		"from_level", path.Level,
		"to_level", level,
		"timeout_hours", hours,
	)

	for _, approver := range approvers {
		notify(ctx, m.notifier, m.logger, escalationAssignedNotification(approver, record, next))
	}
	return next, nil
}

func (m *escalationManagerImpl) expire(ctx context.Context, record *entity.ApprovalRecord, path *entity.EscalationPath, now time.Time) (*entity.EscalationPath, error) {
	expired, err := workflow.AdvanceRecord(ctx, record.Status, workflow.TriggerExpire)
	if err != nil {
		return nil, fmt.Errorf("expire record %d: %w", record.ID, err)
	}

	err = m.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := m.markTimeout(txCtx, record, path, now); err != nil {
			return err
		}
		if err := m.recordRepo.UpdateStatus(txCtx, record.ID, record.Status, expired, entity.DecisionMethodManual); err != nil {
			return fmt.Errorf("update record status: %w", err)
		}
		return m.auditRepo.Append(txCtx, &entity.AuditTrailEntry{
			ApprovalRecordID: record.ID,
			EvaluationID:     record.EvaluationID,
			Action:           entity.AuditActionExpired,
			PreviousStatus:   string(record.Status),
			NewStatus:        string(expired),
			ActorID:          entity.SystemActor,
			Reasoning:        fmt.Sprintf("Escalation chain exhausted at %s level", path.Level),
			Data:             auditData(m.logger, map[string]interface{}{"path_id": path.ID}),
			CreatedAt:        now,
		})
	})
	if err != nil {
		m.logger.Error("Failed to expire record", "error", err, "record_id", record.ID, "path_id", path.ID)
		return nil, err
	}

	record.Status = expired
	path.Status = entity.EscalationStatusTimeout
	path.UpdatedAt = now

	m.metrics.recordTimeout(ctx, string(path.Level), string(escalation.ActionExpire))
	m.logger.Info("Approval record expired", "record_id", record.ID, "path_id", path.ID, "level", path.Level)
	notify(ctx, m.notifier, m.logger, escalationExpiredNotification(record, path))
	return path, nil
}

// ListDueEscalations returns pending paths whose deadline passed
func (m *escalationManagerImpl) ListDueEscalations(ctx context.Context, now time.Time, limit int) ([]*entity.EscalationPath, error) {
	paths, err := m.pathRepo.ListDue(ctx, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list due escalations: %w", err)
	}
	return paths, nil
}

// GetEscalationChain returns every path of a record in creation order
func (m *escalationManagerImpl) GetEscalationChain(ctx context.Context, recordID int64) ([]*entity.EscalationPath, error) {
	paths, err := m.pathRepo.ListByRecordID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("list escalation chain: %w", err)
	}
	return paths, nil
}

// IdentifyApprovers resolves the active approvers at level.
// Primary and backup approvers come first, then one hop of active delegates.
// A level with no active candidate is skipped for the next one up.
func (m *escalationManagerImpl) IdentifyApprovers(ctx context.Context, department string, itemType entity.ItemType, level entity.EscalationLevel) ([]string, entity.EscalationLevel, error) {
	start := level.Index()
	if start < 0 {
		return nil, level, fmt.Errorf("unknown escalation level %q", level)
	}
	now := m.now().UTC()

	for _, lvl := range entity.EscalationLevels[start:] {
		rows, err := m.hierarchyRepo.ListByDepartmentLevel(ctx, department, lvl)
		if err != nil {
			return nil, level, fmt.Errorf("list hierarchy %s/%s: %w", department, lvl, err)
		}

		candidates := newOrderedSet()
		for _, h := range rows {
			if !h.IsActive {
				continue
			}
			candidates.add(h.ApproverUserID)
			candidates.add(h.BackupApproverUserID)
		}
		if candidates.len() == 0 {
			continue
		}

		delegations, err := m.delegationRepo.ListByDelegators(ctx, candidates.values())
		if err != nil {
			return nil, level, fmt.Errorf("list delegations: %w", err)
		}
		for _, d := range delegations {
			if d.IsEffective(now) && d.Covers(itemType, department) && candidates.has(d.DelegatorID) {
				candidates.add(d.DelegateID)
			}
		}

		users, err := m.userRepo.ListActiveByIDs(ctx, candidates.values())
		if err != nil {
			return nil, level, fmt.Errorf("list active users: %w", err)
		}
		active := make(map[string]bool, len(users))
		for _, u := range users {
			active[u.ID] = true
		}

		approvers := make([]string, 0, len(users))
		for _, id := range candidates.values() {
			if active[id] {
				approvers = append(approvers, id)
			}
		}
		if len(approvers) > 0 {
			if lvl != level {
				m.logger.Info("Walked up escalation level for available approvers", "department", department, "requested", level, "selected", lvl)
			}
			return approvers, lvl, nil
		}
	}

	return []string{}, level, nil
}

func (m *escalationManagerImpl) getPath(ctx context.Context, pathID int64) (*entity.EscalationPath, error) {
	path, err := m.pathRepo.GetByID(ctx, pathID)
	if errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrEscalationNotFound, pathID)
	}
	if err != nil {
		return nil, fmt.Errorf("get escalation path %d: %w", pathID, err)
	}
	return path, nil
}

func pathAuditData(path *entity.EscalationPath, requested entity.EscalationLevel) map[string]interface{} {
	return map[string]interface{}{
		"path_id":         path.ID,
		"level":           path.Level,
		"requested_level": requested,
		"urgency":         path.Urgency,
		"urgency_score":   path.UrgencyScore,
		"timeout_hours":   path.TimeoutHours,
		"deadline":        path.Deadline,
		"approvers":       path.AssignedApprovers,
	}
}

// auditData serializes audit payloads; an encoding failure is logged and recorded as empty
func auditData(logger Logger, v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warn("Failed to encode audit data", "error", err)
		return ""
	}
	return string(data)
}

// orderedSet keeps first-insertion order and ignores empty ids
type orderedSet struct {
	order []string
	seen  map[string]bool
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool)}
}

func (s *orderedSet) add(id string) {
	if id == "" || s.seen[id] {
		return
	}
	s.seen[id] = true
	s.order = append(s.order, id)
}

func (s *orderedSet) has(id string) bool { return s.seen[id] }

func (s *orderedSet) len() int { return len(s.order) }

func (s *orderedSet) values() []string {
	return append([]string(nil), s.order...)
}
