package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

var (
	// ErrUnknownField is returned for condition fields the engine does not support
	ErrUnknownField = errors.New("unknown condition field")

	// ErrUnknownOperator is returned for unsupported condition operators
	ErrUnknownOperator = errors.New("unknown condition operator")
)

// evaluateCondition reports whether a single condition holds for the item and assessment
func evaluateCondition(c entity.Condition, item *entity.ApprovalItem, assessment *entity.RiskAssessment) (bool, error) {
	switch c.Field {
	case entity.FieldRiskLevel:
		return compareLevel(c, assessment.Level)
	case entity.FieldRiskScore:
		return compareNumber(c, float64(assessment.Score))
	case entity.FieldFinancialImpact:
		if !item.HasFinancialImpact() {
			if !isKnownOperator(c.Operator) {
				return false, fmt.Errorf("%w: %s", ErrUnknownOperator, c.Operator)
			}
			return false, nil
		}
		return compareNumber(c, item.Impact())
	case entity.FieldItemType:
		return compareString(c, string(item.Type))
	case entity.FieldDepartment:
		return compareString(c, item.Department())
	case entity.FieldRegulatoryImplications:
		if c.Operator != entity.OperatorEquals {
			return false, fmt.Errorf("%w: %s on %s", ErrUnknownOperator, c.Operator, c.Field)
		}
		want, err := cast.ToBoolE(c.Value)
		if err != nil {
			return false, fmt.Errorf("condition %s: %w", c.Field, err)
		}
		return item.RegulatoryImplications == want, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownField, c.Field)
	}
}

func isKnownOperator(op string) bool {
	switch op {
	case entity.OperatorEquals, entity.OperatorGreaterThan, entity.OperatorLessThan,
		entity.OperatorContains, entity.OperatorNotContains:
		return true
	}
	return false
}

func compareNumber(c entity.Condition, actual float64) (bool, error) {
	if c.Operator == entity.OperatorContains || c.Operator == entity.OperatorNotContains {
		return false, fmt.Errorf("%w: %s on numeric field %s", ErrUnknownOperator, c.Operator, c.Field)
	}
	want, err := cast.ToFloat64E(c.Value)
	if err != nil {
		return false, fmt.Errorf("condition %s: %w", c.Field, err)
	}
	switch c.Operator {
	case entity.OperatorEquals:
		return actual == want, nil
	case entity.OperatorGreaterThan:
		return actual > want, nil
	case entity.OperatorLessThan:
		return actual < want, nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownOperator, c.Operator)
}

// compareLevel orders levels by rank for greater_than and less_than
func compareLevel(c entity.Condition, actual entity.RiskLevel) (bool, error) {
	switch c.Operator {
	case entity.OperatorGreaterThan, entity.OperatorLessThan:
		s, err := cast.ToStringE(c.Value)
		if err != nil {
			return false, fmt.Errorf("condition %s: %w", c.Field, err)
		}
		want := entity.RiskLevel(strings.ToLower(s))
		if !want.IsValid() {
			return false, fmt.Errorf("condition %s: unknown risk level %q", c.Field, s)
		}
		if c.Operator == entity.OperatorGreaterThan {
			return actual.Rank() > want.Rank(), nil
		}
		return actual.Rank() < want.Rank(), nil
	}
	return compareString(c, string(actual))
}

// compareString treats a list value as a set for contains and not_contains
func compareString(c entity.Condition, actual string) (bool, error) {
	switch c.Operator {
	case entity.OperatorEquals:
		want, err := cast.ToStringE(c.Value)
		if err != nil {
			return false, fmt.Errorf("condition %s: %w", c.Field, err)
		}
		return strings.EqualFold(actual, want), nil
	case entity.OperatorContains, entity.OperatorNotContains:
		found, err := containsValue(c.Value, actual)
		if err != nil {
			return false, fmt.Errorf("condition %s: %w", c.Field, err)
		}
		if c.Operator == entity.OperatorNotContains {
			return !found, nil
		}
		return found, nil
	case entity.OperatorGreaterThan, entity.OperatorLessThan:
		return false, fmt.Errorf("%w: %s on text field %s", ErrUnknownOperator, c.Operator, c.Field)
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownOperator, c.Operator)
}

func containsValue(value interface{}, actual string) (bool, error) {
	switch v := value.(type) {
	case string:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(v)), nil
	case []interface{}, []string:
		list, err := cast.ToStringSliceE(v)
		if err != nil {
			return false, err
		}
		for _, s := range list {
			if strings.EqualFold(s, actual) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("contains expects a string or list, got %T", value)
}
