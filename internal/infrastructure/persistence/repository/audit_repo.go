package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
)

// AuditTrailRepository implements port.AuditTrailRepository.
// Entries are only ever inserted.
type AuditTrailRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditTrailRepository creates a new audit trail repository
func NewAuditTrailRepository(db *sql.DB, logger *zap.Logger) port.AuditTrailRepository {
	return &AuditTrailRepository{
		db:     db,
		logger: logger,
	}
}

// Append adds an entry to the trail
func (r *AuditTrailRepository) Append(ctx context.Context, entry *entity.AuditTrailEntry) error {
	query := `
		INSERT INTO audit_trail (
			approval_record_id, evaluation_id, action, previous_status, new_status,
			actor_id, reasoning, algorithm_version, data, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		entry.ApprovalRecordID,
		entry.EvaluationID,
		entry.Action,
		entry.PreviousStatus,
		entry.NewStatus,
		entry.ActorID,
		entry.Reasoning,
		entry.AlgorithmVersion,
		entry.Data,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.Int64("approval_record_id", entry.ApprovalRecordID),
			zap.String("action", entry.Action),
			zap.Error(err))
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListByRecordID returns the trail of a record in insertion order
func (r *AuditTrailRepository) ListByRecordID(ctx context.Context, recordID int64) ([]*entity.AuditTrailEntry, error) {
	query := `
		SELECT id, approval_record_id, evaluation_id, action, previous_status, new_status,
			actor_id, reasoning, algorithm_version, data, created_at
		FROM audit_trail
		WHERE approval_record_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, recordID)
	if err != nil {
		r.logger.Error("Failed to list audit trail",
			zap.Int64("approval_record_id", recordID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list audit trail: %w", err)
	}
	defer rows.Close()

	var entries []*entity.AuditTrailEntry
	for rows.Next() {
		var e entity.AuditTrailEntry
		if err := rows.Scan(
			&e.ID,
			&e.ApprovalRecordID,
			&e.EvaluationID,
			&e.Action,
			&e.PreviousStatus,
			&e.NewStatus,
			&e.ActorID,
			&e.Reasoning,
			&e.AlgorithmVersion,
			&e.Data,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
