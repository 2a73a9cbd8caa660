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

const recordColumns = `id, evaluation_id, evaluation_key, approval_item_id, approval_item_type, department,
	approval_status, decision, decision_method, risk_level, risk_score, decision_confidence,
	decision_snapshot, submitted_by, submitted_at, approved_by, approved_at, created_at, updated_at`

// ApprovalRecordRepository implements port.ApprovalRecordRepository
type ApprovalRecordRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewApprovalRecordRepository creates a new approval record repository
func NewApprovalRecordRepository(db *sql.DB, logger *zap.Logger) port.ApprovalRecordRepository {
	return &ApprovalRecordRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Create inserts a record; ErrDuplicate if its evaluation key is already stored
func (r *ApprovalRecordRepository) Create(ctx context.Context, record *entity.ApprovalRecord) error {
	query := `
		INSERT INTO approval_records (
			evaluation_id, evaluation_key, approval_item_id, approval_item_type, department,
			approval_status, decision, decision_method, risk_level, risk_score, decision_confidence,
			decision_snapshot, submitted_by, submitted_at, approved_by, approved_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := r.now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		record.EvaluationID,
		record.EvaluationKey,
		record.ItemID,
		string(record.ItemType),
		record.Department,
		string(record.Status),
		string(record.Decision),
		string(record.DecisionMethod),
		string(record.RiskLevel),
		record.RiskScore,
		record.DecisionConfidence,
		record.DecisionSnapshot,
		record.SubmittedBy,
		record.SubmittedAt.UTC(),
		nullString(record.ApprovedBy),
		nullTime(record.ApprovedAt),
		record.CreatedAt.UTC(),
		record.UpdatedAt.UTC(),
	)
	if err != nil {
		err = sqlite.TranslateError(err)
		if errors.Is(err, port.ErrDuplicate) {
			return err
		}
		r.logger.Error("Failed to create approval record",
			zap.String("evaluation_key", record.EvaluationKey),
			zap.Error(err))
		return fmt.Errorf("failed to create approval record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	record.ID = id
	return nil
}

// GetByID retrieves a record by ID
func (r *ApprovalRecordRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM approval_records WHERE id = ?`
	record, err := scanRecord(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, r.readError("get approval record", err, zap.Int64("id", id))
	}
	return record, nil
}

// GetByEvaluationKey retrieves the record stored for an evaluation key
func (r *ApprovalRecordRepository) GetByEvaluationKey(ctx context.Context, key string) (*entity.ApprovalRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM approval_records WHERE evaluation_key = ?`
	record, err := scanRecord(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, key))
	if err != nil {
		return nil, r.readError("get approval record by key", err, zap.String("evaluation_key", key))
	}
	return record, nil
}

// UpdateStatus moves a record from one status to another
func (r *ApprovalRecordRepository) UpdateStatus(ctx context.Context, id int64, from, to entity.ApprovalStatus, method entity.DecisionMethod) error {
	query := `
		UPDATE approval_records
		SET approval_status = ?, decision_method = ?, updated_at = ?
		WHERE id = ? AND approval_status = ?
	`

	exec := sqlite.ExecutorFor(ctx, r.db)
	result, err := exec.ExecContext(ctx, query, string(to), string(method), r.now().UTC(), id, string(from))
	if err != nil {
		r.logger.Error("Failed to update approval record status",
			zap.Int64("id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(err))
		return fmt.Errorf("failed to update approval record status: %w", err)
	}
	return checkAffected(ctx, exec, result, "approval_records", id)
}

// SetApproval records who approved the record and when
func (r *ApprovalRecordRepository) SetApproval(ctx context.Context, id int64, approvedBy string, at time.Time) error {
	query := `
		UPDATE approval_records
		SET approved_by = ?, approved_at = ?, updated_at = ?
		WHERE id = ?
	`

	exec := sqlite.ExecutorFor(ctx, r.db)
	result, err := exec.ExecContext(ctx, query, approvedBy, at.UTC(), r.now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to set approval",
			zap.Int64("id", id),
			zap.Error(err))
		return fmt.Errorf("failed to set approval: %w", err)
	}
	return checkAffected(ctx, exec, result, "approval_records", id)
}

// List returns records newest first
func (r *ApprovalRecordRepository) List(ctx context.Context, limit, offset int) ([]*entity.ApprovalRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM approval_records ORDER BY id DESC LIMIT ? OFFSET ?`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list approval records", zap.Error(err))
		return nil, fmt.Errorf("failed to list approval records: %w", err)
	}
	defer rows.Close()

	var records []*entity.ApprovalRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *ApprovalRecordRepository) readError(op string, err error, field zap.Field) error {
	err = sqlite.TranslateError(err)
	if errors.Is(err, port.ErrNotFound) {
		return err
	}
	r.logger.Error("Failed to "+op, field, zap.Error(err))
	return fmt.Errorf("failed to %s: %w", op, err)
}

func scanRecord(s rowScanner) (*entity.ApprovalRecord, error) {
	var record entity.ApprovalRecord
	var itemType, status, decision, method, riskLevel string
	var approvedBy sql.NullString
	var approvedAt sql.NullTime

	err := s.Scan(
		&record.ID,
		&record.EvaluationID,
		&record.EvaluationKey,
		&record.ItemID,
		&itemType,
		&record.Department,
		&status,
		&decision,
		&method,
		&riskLevel,
		&record.RiskScore,
		&record.DecisionConfidence,
		&record.DecisionSnapshot,
		&record.SubmittedBy,
		&record.SubmittedAt,
		&approvedBy,
		&approvedAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.ItemType = entity.ItemType(itemType)
	record.Status = entity.ApprovalStatus(status)
	record.Decision = entity.DecisionType(decision)
	record.DecisionMethod = entity.DecisionMethod(method)
	record.RiskLevel = entity.RiskLevel(riskLevel)
	record.ApprovedBy = stringPtr(approvedBy)
	record.ApprovedAt = timePtr(approvedAt)
	return &record, nil
}
