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

// PolicyRepository implements port.PolicyRepository
type PolicyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *sql.DB, logger *zap.Logger) port.PolicyRepository {
	return &PolicyRepository{
		db:     db,
		logger: logger,
	}
}

// ListActive returns every policy flagged active.
// Effective windows are checked by the caller against its own clock.
func (r *PolicyRepository) ListActive(ctx context.Context) ([]*entity.ApprovalPolicy, error) {
	query := `
		SELECT id, name, conditions, applicable_item_types, applicable_departments,
			is_active, effective_date, expiry_date
		FROM approval_policies
		WHERE is_active = 1
		ORDER BY id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list active policies", zap.Error(err))
		return nil, fmt.Errorf("failed to list active policies: %w", err)
	}
	defer rows.Close()

	var policies []*entity.ApprovalPolicy
	for rows.Next() {
		var p entity.ApprovalPolicy
		var conditions, types, departments string
		var expiry sql.NullTime

		if err := rows.Scan(&p.ID, &p.Name, &conditions, &types, &departments,
			&p.IsActive, &p.EffectiveDate, &expiry); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		if err := unmarshalJSON(conditions, &p.Conditions); err != nil {
			return nil, fmt.Errorf("policy %s: %w", p.ID, err)
		}
		if err := unmarshalJSON(types, &p.ApplicableItemTypes); err != nil {
			return nil, fmt.Errorf("policy %s: %w", p.ID, err)
		}
		if err := unmarshalJSON(departments, &p.ApplicableDepartments); err != nil {
			return nil, fmt.Errorf("policy %s: %w", p.ID, err)
		}
		p.ExpiryDate = timePtr(expiry)
		policies = append(policies, &p)
	}
	return policies, rows.Err()
}

// Upsert inserts or replaces a policy by ID
func (r *PolicyRepository) Upsert(ctx context.Context, policy *entity.ApprovalPolicy) error {
	query := `
		INSERT INTO approval_policies (
			id, name, conditions, applicable_item_types, applicable_departments,
			is_active, effective_date, expiry_date, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			conditions = excluded.conditions,
			applicable_item_types = excluded.applicable_item_types,
			applicable_departments = excluded.applicable_departments,
			is_active = excluded.is_active,
			effective_date = excluded.effective_date,
			expiry_date = excluded.expiry_date,
			updated_at = excluded.updated_at
	`

	conditions, err := marshalJSON(policy.Conditions)
	if err != nil {
		return err
	}
	types, err := marshalJSON(nonNilItemTypes(policy.ApplicableItemTypes))
	if err != nil {
		return err
	}
	departments, err := marshalJSON(nonNilStrings(policy.ApplicableDepartments))
	if err != nil {
		return err
	}

	_, err = sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		policy.ID,
		policy.Name,
		conditions,
		types,
		departments,
		policy.IsActive,
		policy.EffectiveDate.UTC(),
		nullTime(policy.ExpiryDate),
		time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to upsert policy", zap.String("id", policy.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert policy: %w", err)
	}
	return nil
}

func nonNilItemTypes(v []entity.ItemType) []entity.ItemType {
	if v == nil {
		return []entity.ItemType{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
