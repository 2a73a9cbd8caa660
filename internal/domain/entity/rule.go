package entity

import "time"

// Condition fields understood by the rule engine
const (
	FieldRiskLevel              = "riskLevel"
	FieldRiskScore              = "riskScore"
	FieldFinancialImpact        = "financialImpact"
	FieldItemType               = "itemType"
	FieldDepartment             = "department"
	FieldRegulatoryImplications = "regulatoryImplications"
)

// Condition operators
const (
	OperatorEquals      = "equals"
	OperatorGreaterThan = "greater_than"
	OperatorLessThan    = "less_than"
	OperatorContains    = "contains"
	OperatorNotContains = "not_contains"
)

// Condition logic connectives
const (
	LogicAnd = "AND"
	LogicOr  = "OR"
)

// Condition is one predicate of a rule's condition set.
// Logic combines it with the running match flag; empty means AND.
type Condition struct {
	Field    string      `json:"field" yaml:"field"`
	Operator string      `json:"operator" yaml:"operator"`
	Value    interface{} `json:"value" yaml:"value"`
	Logic    string      `json:"logic,omitempty" yaml:"logic,omitempty"`
}

// ApprovalRule is a configurable, prioritized decision rule
type ApprovalRule struct {
	ID                    string       `json:"id" yaml:"id"`
	Name                  string       `json:"name" yaml:"name"`
	Priority              int          `json:"priority" yaml:"priority"`
	Conditions            []Condition  `json:"conditions" yaml:"conditions"`
	Expression            string       `json:"expression,omitempty" yaml:"expression,omitempty"`
	Action                DecisionType `json:"action" yaml:"action"`
	ApplicableItemTypes   []ItemType   `json:"applicable_item_types,omitempty" yaml:"applicable_item_types,omitempty"`
	ApplicableDepartments []string     `json:"applicable_departments,omitempty" yaml:"applicable_departments,omitempty"`
	IsActive              bool         `json:"is_active" yaml:"is_active"`
	EffectiveDate         time.Time    `json:"effective_date" yaml:"effective_date"`
	ExpiryDate            *time.Time   `json:"expiry_date,omitempty" yaml:"expiry_date,omitempty"`
}

// PolicyConditions are the structured constraints a policy enforces
type PolicyConditions struct {
	MaxFinancialImpact       *float64  `json:"max_financial_impact,omitempty" yaml:"max_financial_impact,omitempty"`
	MaxRiskLevel             RiskLevel `json:"max_risk_level,omitempty" yaml:"max_risk_level,omitempty"`
	RequiresRegulatoryReview bool      `json:"requires_regulatory_review,omitempty" yaml:"requires_regulatory_review,omitempty"`
}

// ApprovalPolicy is an organizational constraint checked for compliance
type ApprovalPolicy struct {
	ID                    string           `json:"id" yaml:"id"`
	Name                  string           `json:"name" yaml:"name"`
	Conditions            PolicyConditions `json:"conditions" yaml:"conditions"`
	ApplicableItemTypes   []ItemType       `json:"applicable_item_types,omitempty" yaml:"applicable_item_types,omitempty"`
	ApplicableDepartments []string         `json:"applicable_departments,omitempty" yaml:"applicable_departments,omitempty"`
	IsActive              bool             `json:"is_active" yaml:"is_active"`
	EffectiveDate         time.Time        `json:"effective_date" yaml:"effective_date"`
	ExpiryDate            *time.Time       `json:"expiry_date,omitempty" yaml:"expiry_date,omitempty"`
}

// InEffect returns true if the window [effective, expiry] contains now
func InEffect(active bool, effective time.Time, expiry *time.Time, now time.Time) bool {
	if !active || effective.After(now) {
		return false
	}
	return expiry == nil || expiry.After(now)
}

// AppliesTo returns true if the applicability lists include the item.
// An empty list applies to all.
func AppliesTo(types []ItemType, departments []string, item *ApprovalItem) bool {
	if len(types) > 0 {
		found := false
		for _, t := range types {
			if t == item.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(departments) == 0 {
		return true
	}
	for _, d := range departments {
		if d == item.Department() {
			return true
		}
	}
	return false
}
