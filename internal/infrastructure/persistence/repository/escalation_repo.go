package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
)

const pathColumns = `id, approval_record_id, previous_path_id, escalation_level, assigned_approvers,
	urgency, urgency_score, timeout_hours, deadline, next_escalation_level, escalation_status,
	resolved_by, resolved_at, resolution, comment, created_at, updated_at`

// EscalationPathRepository implements port.EscalationPathRepository
type EscalationPathRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewEscalationPathRepository creates a new escalation path repository
func NewEscalationPathRepository(db *sql.DB, logger *zap.Logger) port.EscalationPathRepository {
	return &EscalationPathRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Create inserts a path
func (r *EscalationPathRepository) Create(ctx context.Context, path *entity.EscalationPath) error {
	query := `
		INSERT INTO escalation_paths (
			approval_record_id, previous_path_id, escalation_level, assigned_approvers,
			urgency, urgency_score, timeout_hours, deadline, next_escalation_level, escalation_status,
			resolved_by, resolved_at, resolution, comment, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	approvers := path.AssignedApprovers
	if approvers == nil {
		approvers = []string{}
	}
	approversJSON, err := marshalJSON(approvers)
	if err != nil {
		return err
	}

	var previous sql.NullInt64
	if path.PreviousPathID != nil {
		previous = sql.NullInt64{Int64: *path.PreviousPathID, Valid: true}
	}
	var next sql.NullString
	if path.NextEscalationLevel != nil {
		next = sql.NullString{String: string(*path.NextEscalationLevel), Valid: true}
	}

	if path.CreatedAt.IsZero() {
		path.CreatedAt = r.now().UTC()
	}
	if path.UpdatedAt.IsZero() {
		path.UpdatedAt = path.CreatedAt
	}

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		path.ApprovalRecordID,
		previous,
		string(path.Level),
		approversJSON,
		string(path.Urgency),
		path.UrgencyScore,
		path.TimeoutHours,
		path.Deadline.UTC(),
		next,
		string(path.Status),
		nullString(path.ResolvedBy),
		nullTime(path.ResolvedAt),
		path.Resolution,
		path.Comment,
		path.CreatedAt.UTC(),
		path.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create escalation path",
			zap.Int64("approval_record_id", path.ApprovalRecordID),
			zap.String("level", string(path.Level)),
			zap.Error(err))
		return fmt.Errorf("failed to create escalation path: %w", sqlite.TranslateError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	path.ID = id
	return nil
}

// GetByID retrieves a path by ID
func (r *EscalationPathRepository) GetByID(ctx context.Context, id int64) (*entity.EscalationPath, error) {
	query := `SELECT ` + pathColumns + ` FROM escalation_paths WHERE id = ?`

	path, err := scanPath(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		err = sqlite.TranslateError(err)
		if errors.Is(err, port.ErrNotFound) {
			return nil, err
		}
		r.logger.Error("Failed to get escalation path", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get escalation path: %w", err)
	}
	return path, nil
}

// ListByRecordID returns the chain of a record in creation order
func (r *EscalationPathRepository) ListByRecordID(ctx context.Context, recordID int64) ([]*entity.EscalationPath, error) {
	query := `SELECT ` + pathColumns + ` FROM escalation_paths WHERE approval_record_id = ? ORDER BY id ASC`
	return r.list(ctx, query, recordID)
}

// ListDue returns pending paths past their deadline, oldest deadline first
func (r *EscalationPathRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*entity.EscalationPath, error) {
	query := `SELECT ` + pathColumns + `
		FROM escalation_paths
		WHERE escalation_status = ? AND deadline <= ?
		ORDER BY deadline ASC, id ASC
		LIMIT ?`
	return r.list(ctx, query, string(entity.EscalationStatusPending), now.UTC(), limit)
}

// Resolve marks a pending path resolved
func (r *EscalationPathRepository) Resolve(ctx context.Context, id int64, resolvedBy, resolution, comment string, at time.Time) error {
	query := `
		UPDATE escalation_paths
		SET escalation_status = ?, resolved_by = ?, resolved_at = ?, resolution = ?, comment = ?, updated_at = ?
		WHERE id = ? AND escalation_status = ?
	`

	exec := sqlite.ExecutorFor(ctx, r.db)
	result, err := exec.ExecContext(ctx, query,
		string(entity.EscalationStatusResolved),
		resolvedBy,
		at.UTC(),
		resolution,
		comment,
		r.now().UTC(),
		id,
		string(entity.EscalationStatusPending),
	)
	if err != nil {
		r.logger.Error("Failed to resolve escalation path", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to resolve escalation path: %w", err)
	}
	return checkAffected(ctx, exec, result, "escalation_paths", id)
}

// MarkTimeout marks a pending path timed out
func (r *EscalationPathRepository) MarkTimeout(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE escalation_paths
		SET escalation_status = ?, updated_at = ?
		WHERE id = ? AND escalation_status = ?
	`

	exec := sqlite.ExecutorFor(ctx, r.db)
	result, err := exec.ExecContext(ctx, query,
		string(entity.EscalationStatusTimeout),
		at.UTC(),
		id,
		string(entity.EscalationStatusPending),
	)
	if err != nil {
		r.logger.Error("Failed to mark escalation path timed out", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark escalation timeout: %w", err)
	}
	return checkAffected(ctx, exec, result, "escalation_paths", id)
}

func (r *EscalationPathRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.EscalationPath, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list escalation paths", zap.Error(err))
		return nil, fmt.Errorf("failed to list escalation paths: %w", err)
	}
	defer rows.Close()

	var paths []*entity.EscalationPath
	for rows.Next() {
		path, err := scanPath(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation path: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

func scanPath(s rowScanner) (*entity.EscalationPath, error) {
	var path entity.EscalationPath
	var previous sql.NullInt64
	var level, urgency, status, approvers string
	var next, resolvedBy sql.NullString
	var resolvedAt sql.NullTime

	err := s.Scan(
		&path.ID,
		&path.ApprovalRecordID,
		&previous,
		&level,
		&approvers,
		&urgency,
		&path.UrgencyScore,
		&path.TimeoutHours,
		&path.Deadline,
		&next,
		&status,
		&resolvedBy,
		&resolvedAt,
		&path.Resolution,
		&path.Comment,
		&path.CreatedAt,
		&path.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSON(approvers, &path.AssignedApprovers); err != nil {
		return nil, err
	}
	if path.AssignedApprovers == nil {
		path.AssignedApprovers = []string{}
	}
	if previous.Valid {
		id := previous.Int64
		path.PreviousPathID = &id
	}
	if next.Valid {
		lvl := entity.EscalationLevel(next.String)
		path.NextEscalationLevel = &lvl
	}
	path.Level = entity.EscalationLevel(level)
	path.Urgency = entity.Urgency(urgency)
	path.Status = entity.EscalationStatus(status)
	path.ResolvedBy = stringPtr(resolvedBy)
	path.ResolvedAt = timePtr(resolvedAt)
	return &path, nil
}
