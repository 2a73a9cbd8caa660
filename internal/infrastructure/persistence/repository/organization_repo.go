package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
)

// HierarchyRepository implements port.HierarchyRepository
type HierarchyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHierarchyRepository creates a new hierarchy repository
func NewHierarchyRepository(db *sql.DB, logger *zap.Logger) port.HierarchyRepository {
	return &HierarchyRepository{
		db:     db,
		logger: logger,
	}
}

// ListByDepartmentLevel returns every entry, active or not, for a department and level
func (r *HierarchyRepository) ListByDepartmentLevel(ctx context.Context, department string, level entity.EscalationLevel) ([]*entity.ApprovalHierarchy, error) {
	query := `
		SELECT id, department, approval_level, approver_user_id, backup_approver_user_id,
			approval_limit, is_active
		FROM approval_hierarchy
		WHERE department = ? AND approval_level = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, department, string(level))
	if err != nil {
		r.logger.Error("Failed to list hierarchy",
			zap.String("department", department),
			zap.String("level", string(level)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list hierarchy: %w", err)
	}
	defer rows.Close()

	var entries []*entity.ApprovalHierarchy
	for rows.Next() {
		var h entity.ApprovalHierarchy
		var lvl string
		if err := rows.Scan(&h.ID, &h.Department, &lvl, &h.ApproverUserID,
			&h.BackupApproverUserID, &h.ApprovalLimit, &h.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan hierarchy: %w", err)
		}
		h.Level = entity.EscalationLevel(lvl)
		entries = append(entries, &h)
	}
	return entries, rows.Err()
}

// Create inserts a hierarchy entry
func (r *HierarchyRepository) Create(ctx context.Context, h *entity.ApprovalHierarchy) error {
	query := `
		INSERT INTO approval_hierarchy (
			department, approval_level, approver_user_id, backup_approver_user_id, approval_limit, is_active
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		h.Department, string(h.Level), h.ApproverUserID, h.BackupApproverUserID, h.ApprovalLimit, h.IsActive)
	if err != nil {
		r.logger.Error("Failed to create hierarchy entry",
			zap.String("department", h.Department),
			zap.Error(err))
		return fmt.Errorf("failed to create hierarchy entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	h.ID = id
	return nil
}

// DelegationRepository implements port.DelegationRepository
type DelegationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDelegationRepository creates a new delegation repository
func NewDelegationRepository(db *sql.DB, logger *zap.Logger) port.DelegationRepository {
	return &DelegationRepository{
		db:     db,
		logger: logger,
	}
}

// ListByDelegators returns every delegation granted by one of the delegators.
// Effectiveness is evaluated by the caller.
func (r *DelegationRepository) ListByDelegators(ctx context.Context, delegatorIDs []string) ([]*entity.ApprovalDelegation, error) {
	if len(delegatorIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, delegator_id, delegate_id, scope, start_date, end_date, is_active
		FROM approval_delegations
		WHERE delegator_id IN (` + placeholders(len(delegatorIDs)) + `)
		ORDER BY id ASC
	`
	args := make([]interface{}, len(delegatorIDs))
	for i, id := range delegatorIDs {
		args[i] = id
	}

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list delegations", zap.Strings("delegators", delegatorIDs), zap.Error(err))
		return nil, fmt.Errorf("failed to list delegations: %w", err)
	}
	defer rows.Close()

	var delegations []*entity.ApprovalDelegation
	for rows.Next() {
		var d entity.ApprovalDelegation
		var end sql.NullTime
		if err := rows.Scan(&d.ID, &d.DelegatorID, &d.DelegateID, &d.Scope,
			&d.StartDate, &end, &d.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan delegation: %w", err)
		}
		d.EndDate = timePtr(end)
		delegations = append(delegations, &d)
	}
	return delegations, rows.Err()
}

// Create inserts a delegation
func (r *DelegationRepository) Create(ctx context.Context, d *entity.ApprovalDelegation) error {
	query := `
		INSERT INTO approval_delegations (delegator_id, delegate_id, scope, start_date, end_date, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		d.DelegatorID, d.DelegateID, d.Scope, d.StartDate.UTC(), nullTime(d.EndDate), d.IsActive)
	if err != nil {
		r.logger.Error("Failed to create delegation",
			zap.String("delegator_id", d.DelegatorID),
			zap.Error(err))
		return fmt.Errorf("failed to create delegation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	d.ID = id
	return nil
}

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	query := `SELECT id, name, email, lark_open_id, is_active FROM users WHERE id = ?`

	var u entity.User
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.LarkOpenID, &u.IsActive)
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// ListActiveByIDs returns the active users among ids
func (r *UserRepository) ListActiveByIDs(ctx context.Context, ids []string) ([]*entity.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, name, email, lark_open_id, is_active
		FROM users
		WHERE is_active = 1 AND id IN (` + placeholders(len(ids)) + `)
	`
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list active users", zap.Strings("ids", ids), zap.Error(err))
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		var u entity.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.LarkOpenID, &u.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// Upsert inserts or replaces a user by ID
func (r *UserRepository) Upsert(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (id, name, email, lark_open_id, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			lark_open_id = excluded.lark_open_id,
			is_active = excluded.is_active
	`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.LarkOpenID, user.IsActive)
	if err != nil {
		r.logger.Error("Failed to upsert user", zap.String("id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}
