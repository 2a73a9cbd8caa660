// Package compliance checks approval items against organizational policies.
package compliance

import (
	"fmt"
	"time"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// Score deductions; warnings cost half their impact
const (
	startingScore          = 100
	financialCeilingImpact = 50
	riskCeilingImpact      = 30
	regulatoryReviewImpact = 10
)

// Engine evaluates policy compliance. It holds no state.
type Engine struct{}

// NewEngine creates a new compliance engine
func NewEngine() *Engine {
	return &Engine{}
}

// Applicable returns the policies in effect at now that apply to the item
func Applicable(policies []*entity.ApprovalPolicy, item *entity.ApprovalItem, now time.Time) []*entity.ApprovalPolicy {
	out := make([]*entity.ApprovalPolicy, 0, len(policies))
	for _, p := range policies {
		if p == nil || !entity.InEffect(p.IsActive, p.EffectiveDate, p.ExpiryDate, now) {
			continue
		}
		if !entity.AppliesTo(p.ApplicableItemTypes, p.ApplicableDepartments, item) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Check evaluates the item against every applicable policy
func (e *Engine) Check(item *entity.ApprovalItem, policies []*entity.ApprovalPolicy, cfg *entity.EngineConfig, now time.Time) (*entity.PolicyComplianceResult, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("compliance engine: %w: config is nil", entity.ErrInvalidConfig)
	}

	result := &entity.PolicyComplianceResult{
		Violations:         make([]entity.PolicyViolation, 0),
		Warnings:           make([]entity.PolicyWarning, 0),
		RecommendedActions: make([]string, 0),
	}
	score := startingScore

	for _, p := range Applicable(policies, item, now) {
		c := p.Conditions

		if c.MaxFinancialImpact != nil && item.HasFinancialImpact() && item.Impact() > *c.MaxFinancialImpact {
			result.Violations = append(result.Violations, entity.PolicyViolation{
				PolicyID:    p.ID,
				Severity:    entity.ViolationSeverityCritical,
				Description: fmt.Sprintf("Financial impact %.2f exceeds policy limit %.2f", item.Impact(), *c.MaxFinancialImpact),
				Remediation: "Obtain approval from an authority with a sufficient financial limit",
			})
			score -= financialCeilingImpact
		}

		// only a stated risk level can breach the ceiling
		if c.MaxRiskLevel.IsValid() && item.RiskLevel.IsValid() && item.RiskLevel.Rank() > c.MaxRiskLevel.Rank() {
			result.Violations = append(result.Violations, entity.PolicyViolation{
				PolicyID:    p.ID,
				Severity:    entity.ViolationSeverityMajor,
				Description: fmt.Sprintf("Risk level %s exceeds policy maximum %s", item.RiskLevel, c.MaxRiskLevel),
				Remediation: "Reduce the risk through mitigation or route to a higher approval level",
			})
			score -= riskCeilingImpact
		}

		if c.RequiresRegulatoryReview && item.RegulatoryImplications && !item.RegulatoryReviewCompleted {
			result.Warnings = append(result.Warnings, entity.PolicyWarning{
				PolicyID:    p.ID,
				Description: "Regulatory review required but not completed",
			})
			score -= regulatoryReviewImpact / 2
		}
	}

	if score < 0 {
		score = 0
	}
	result.ComplianceScore = score
	result.IsCompliant = len(result.Violations) == 0
	if cfg.DefaultPolicies.StrictComplianceMode && len(result.Warnings) > 0 {
		result.IsCompliant = false
	}

	for _, v := range result.Violations {
		result.RecommendedActions = append(result.RecommendedActions, fmt.Sprintf("[%s] %s", v.PolicyID, v.Remediation))
	}
	for _, w := range result.Warnings {
		result.RecommendedActions = append(result.RecommendedActions, fmt.Sprintf("[%s] Resolve warning: %s", w.PolicyID, w.Description))
	}

	return result, nil
}
