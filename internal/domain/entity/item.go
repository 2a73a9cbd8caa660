package entity

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidItem is returned when an ApprovalItem cannot be evaluated
var ErrInvalidItem = errors.New("invalid approval item")

// OrganizationalContext places an item inside the org chart
type OrganizationalContext struct {
	Department string `json:"department" yaml:"department"`
}

// ApprovalItem is a governance item submitted for approval.
// It is created by the submitting collaborator and never mutated by the engine.
type ApprovalItem struct {
	ID                        string                `json:"id" yaml:"id"`
	Type                      ItemType              `json:"type" yaml:"type"`
	Title                     string                `json:"title,omitempty" yaml:"title,omitempty"`
	RiskLevel                 RiskLevel             `json:"risk_level,omitempty" yaml:"risk_level,omitempty"`
	FinancialImpact           *float64              `json:"financial_impact,omitempty" yaml:"financial_impact,omitempty"`
	RegulatoryImplications    bool                  `json:"regulatory_implications" yaml:"regulatory_implications"`
	RegulatoryReviewCompleted bool                  `json:"regulatory_review_completed" yaml:"regulatory_review_completed"`
	Stakeholders              []string              `json:"stakeholders,omitempty" yaml:"stakeholders,omitempty"`
	OrganizationalContext     OrganizationalContext `json:"organizational_context" yaml:"organizational_context"`
	SubmittedBy               string                `json:"submitted_by" yaml:"submitted_by"`
	SubmittedAt               time.Time             `json:"submitted_at" yaml:"submitted_at"`
}

// Validate checks the fields the engines compute on
func (i *ApprovalItem) Validate() error {
	if i == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidItem)
	}
	if i.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidItem)
	}
	if i.RiskLevel != "" && !i.RiskLevel.IsValid() {
		return fmt.Errorf("%w: unknown risk level %q", ErrInvalidItem, i.RiskLevel)
	}
	if i.FinancialImpact != nil {
		v := *i.FinancialImpact
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: financial impact is not a finite number", ErrInvalidItem)
		}
		if v < 0 {
			return fmt.Errorf("%w: financial impact must not be negative, got %.2f", ErrInvalidItem, v)
		}
	}
	return nil
}

// HasFinancialImpact returns true when a financial impact was supplied
func (i *ApprovalItem) HasFinancialImpact() bool {
	return i.FinancialImpact != nil
}

// Impact returns the financial impact or zero
func (i *ApprovalItem) Impact() float64 {
	if i.FinancialImpact == nil {
		return 0
	}
	return *i.FinancialImpact
}

// Department returns the owning department
func (i *ApprovalItem) Department() string {
	return i.OrganizationalContext.Department
}

// EvaluationKey identifies one submission of an item.
// Re-evaluating the same submission maps to the same key; a resubmission does not.
func (i *ApprovalItem) EvaluationKey() string {
	if i == nil || i.ID == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s:%d", i.Type, i.ID, i.SubmittedAt.Unix())
}
