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

// RuleRepository implements port.RuleRepository
type RuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *sql.DB, logger *zap.Logger) port.RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger,
	}
}

// ListActive returns every rule flagged active, lowest priority number first
func (r *RuleRepository) ListActive(ctx context.Context) ([]*entity.ApprovalRule, error) {
	query := `
		SELECT id, name, priority, conditions, expression, action,
			applicable_item_types, applicable_departments, is_active, effective_date, expiry_date
		FROM approval_rules
		WHERE is_active = 1
		ORDER BY priority ASC, id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list active rules", zap.Error(err))
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	defer rows.Close()

	var rules []*entity.ApprovalRule
	for rows.Next() {
		var rule entity.ApprovalRule
		var conditions, action, types, departments string
		var expiry sql.NullTime

		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Priority, &conditions, &rule.Expression, &action,
			&types, &departments, &rule.IsActive, &rule.EffectiveDate, &expiry); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if err := unmarshalJSON(conditions, &rule.Conditions); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		if err := unmarshalJSON(types, &rule.ApplicableItemTypes); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		if err := unmarshalJSON(departments, &rule.ApplicableDepartments); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		rule.Action = entity.DecisionType(action)
		rule.ExpiryDate = timePtr(expiry)
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

// Upsert inserts or replaces a rule by ID
func (r *RuleRepository) Upsert(ctx context.Context, rule *entity.ApprovalRule) error {
	query := `
		INSERT INTO approval_rules (
			id, name, priority, conditions, expression, action,
			applicable_item_types, applicable_departments, is_active, effective_date, expiry_date, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			priority = excluded.priority,
			conditions = excluded.conditions,
			expression = excluded.expression,
			action = excluded.action,
			applicable_item_types = excluded.applicable_item_types,
			applicable_departments = excluded.applicable_departments,
			is_active = excluded.is_active,
			effective_date = excluded.effective_date,
			expiry_date = excluded.expiry_date,
			updated_at = excluded.updated_at
	`

	conditions := rule.Conditions
	if conditions == nil {
		conditions = []entity.Condition{}
	}
	conditionsJSON, err := marshalJSON(conditions)
	if err != nil {
		return err
	}
	types, err := marshalJSON(nonNilItemTypes(rule.ApplicableItemTypes))
	if err != nil {
		return err
	}
	departments, err := marshalJSON(nonNilStrings(rule.ApplicableDepartments))
	if err != nil {
		return err
	}

	_, err = sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		rule.Priority,
		conditionsJSON,
		rule.Expression,
		string(rule.Action),
		types,
		departments,
		rule.IsActive,
		rule.EffectiveDate.UTC(),
		nullTime(rule.ExpiryDate),
		time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to upsert rule", zap.String("id", rule.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert rule: %w", err)
	}
	return nil
}
