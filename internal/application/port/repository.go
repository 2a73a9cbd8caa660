package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")

	// ErrStatusConflict is returned when a conditional status update finds another status
	ErrStatusConflict = errors.New("status changed concurrently")

	// ErrDuplicate is returned when a unique key already exists
	ErrDuplicate = errors.New("duplicate key")
)

// ApprovalRecordRepository defines persistence operations for ApprovalRecord
type ApprovalRecordRepository interface {
	Create(ctx context.Context, record *entity.ApprovalRecord) error
	GetByID(ctx context.Context, id int64) (*entity.ApprovalRecord, error)
	GetByEvaluationKey(ctx context.Context, key string) (*entity.ApprovalRecord, error)
	// UpdateStatus moves the record from one status to another; ErrStatusConflict if it is no longer at from
	UpdateStatus(ctx context.Context, id int64, from, to entity.ApprovalStatus, method entity.DecisionMethod) error
	SetApproval(ctx context.Context, id int64, approvedBy string, at time.Time) error
	List(ctx context.Context, limit, offset int) ([]*entity.ApprovalRecord, error)
}

// AuditTrailRepository is the append-only audit trail
type AuditTrailRepository interface {
	Append(ctx context.Context, entry *entity.AuditTrailEntry) error
	ListByRecordID(ctx context.Context, recordID int64) ([]*entity.AuditTrailEntry, error)
}

// EscalationPathRepository defines persistence operations for EscalationPath
type EscalationPathRepository interface {
	Create(ctx context.Context, path *entity.EscalationPath) error
	GetByID(ctx context.Context, id int64) (*entity.EscalationPath, error)
	ListByRecordID(ctx context.Context, recordID int64) ([]*entity.EscalationPath, error)
	// ListDue returns pending paths whose deadline is at or before now, oldest deadline first
	ListDue(ctx context.Context, now time.Time, limit int) ([]*entity.EscalationPath, error)
	// Resolve marks a pending path resolved; ErrStatusConflict if it is not pending
	Resolve(ctx context.Context, id int64, resolvedBy, resolution, comment string, at time.Time) error
	// MarkTimeout marks a pending path timed out; ErrStatusConflict if it is not pending
	MarkTimeout(ctx context.Context, id int64, at time.Time) error
}

// PolicyRepository reads and administers approval policies
type PolicyRepository interface {
	ListActive(ctx context.Context) ([]*entity.ApprovalPolicy, error)
	Upsert(ctx context.Context, policy *entity.ApprovalPolicy) error
}

// RuleRepository reads and administers approval rules
type RuleRepository interface {
	ListActive(ctx context.Context) ([]*entity.ApprovalRule, error)
	Upsert(ctx context.Context, rule *entity.ApprovalRule) error
}

// HierarchyRepository reads the approval org chart
type HierarchyRepository interface {
	ListByDepartmentLevel(ctx context.Context, department string, level entity.EscalationLevel) ([]*entity.ApprovalHierarchy, error)
	Create(ctx context.Context, h *entity.ApprovalHierarchy) error
}

// DelegationRepository reads approval delegations
type DelegationRepository interface {
	ListByDelegators(ctx context.Context, delegatorIDs []string) ([]*entity.ApprovalDelegation, error)
	Create(ctx context.Context, d *entity.ApprovalDelegation) error
}

// UserRepository reads approver users
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
	// ListActiveByIDs returns the active users among ids, in no particular order
	ListActiveByIDs(ctx context.Context, ids []string) ([]*entity.User, error)
	Upsert(ctx context.Context, user *entity.User) error
}

// NotificationRepository is the notification outbox
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	ListPending(ctx context.Context, limit int) ([]*entity.Notification, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

// ConfigStore holds serialized configuration snapshots by key.
// Load returns ErrNotFound for a key that was never saved.
type ConfigStore interface {
	Load(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key, value string) error
}

// TransactionManager runs fn in one unit of work; repositories called with
// the ctx it passes in share that unit
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
