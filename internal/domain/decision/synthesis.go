// Package decision converts risk, compliance and rule outputs into one approval decision.
package decision

import (
	"fmt"
	"time"

	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/match"
)

// Override confidences
const (
	criticalViolationConfidence = 95
	criticalRiskConfidence      = 90
	executiveAmountConfidence   = 95
	ruleAdoptionThreshold       = 80
	autoApproveConfidence       = 85
	defaultReviewConfidence     = 70
	highRiskEscalationScore     = 85
)

// Override names, recorded in audit data
const (
	OverrideCriticalViolation = "critical_policy_violation"
	OverrideCriticalRisk      = "critical_risk"
	OverrideExecutiveAmount   = "executive_financial_threshold"
	OverrideConfidentRule     = "confident_rule"
	OverrideLowRiskAutoApply  = "low_risk_auto_approve"
	OverrideDefaultReview     = "default_review"
)

// Inputs are the sub-engine outputs a decision is synthesized from
type Inputs struct {
	Item       *entity.ApprovalItem
	Risk       *entity.RiskAssessment
	Compliance *entity.PolicyComplianceResult
	Rules      *entity.RuleEvaluation
}

type verdict struct {
	decision   entity.DecisionType
	confidence int
	reasoning  string
}

// overrides returns the ordered override hierarchy. All inputs must be non-nil.
func overrides(in Inputs, cfg *entity.EngineConfig) []match.Case[verdict] {
	item, risk, comp, rules := in.Item, in.Risk, in.Compliance, in.Rules
	limit := cfg.FinancialThresholds

	return []match.Case[verdict]{
		match.When(OverrideCriticalViolation,
			func() bool { return comp.HasCriticalViolation() },
			verdict{entity.DecisionEscalate, criticalViolationConfidence, "Critical policy violation requires escalation"}),
		match.When(OverrideCriticalRisk,
			func() bool {
				return risk.Level == entity.RiskLevelCritical ||
					(risk.Level == entity.RiskLevelHigh && risk.Score > highRiskEscalationScore)
			},
			verdict{entity.DecisionEscalate, criticalRiskConfidence, fmt.Sprintf("Risk level %s (score %d) requires escalation", risk.Level, risk.Score)}),
		match.When(OverrideExecutiveAmount,
			func() bool { return item.HasFinancialImpact() && item.Impact() > limit.ExecutiveApprovalRequired },
			verdict{entity.DecisionEscalate, executiveAmountConfidence, fmt.Sprintf("Financial impact %.2f exceeds executive approval threshold %.2f", item.Impact(), limit.ExecutiveApprovalRequired)}),
		{
			Name: OverrideConfidentRule,
			Eval: func() (verdict, bool) {
				if rules.RecommendedAction == entity.DecisionAutoApprove || rules.Confidence <= ruleAdoptionThreshold {
					return verdict{}, false
				}
				return verdict{rules.RecommendedAction, rules.Confidence, rules.Reasoning}, true
			},
		},
		match.When(OverrideLowRiskAutoApply,
			func() bool {
				return risk.Level == entity.RiskLevelLow && comp.IsCompliant &&
					(!item.HasFinancialImpact() || item.Impact() <= limit.AutoApproveLimit)
			},
			verdict{entity.DecisionAutoApprove, autoApproveConfidence, "Low risk, policy compliant and within auto-approval limit"}),
	}
}

// Synthesize applies the override hierarchy and the engine switches
func Synthesize(in Inputs, cfg *entity.EngineConfig, now time.Time) (*entity.ApprovalDecision, string) {
	result := match.FirstOr(overrides(in, cfg), verdict{
		decision:   entity.DecisionRequireReview,
		confidence: defaultReviewConfidence,
		reasoning:  "Manual review required",
	})
	override := result.Name
	if !result.Matched {
		override = OverrideDefaultReview
	}

	v := result.Value
	if v.decision == entity.DecisionAutoApprove && !cfg.DefaultPolicies.EnableAutoApproval {
		v.decision = entity.DecisionRequireReview
		v.reasoning += "; auto-approval disabled, routed to manual review"
	}

	appliedRules := []string{}
	if in.Rules != nil {
		appliedRules = append(appliedRules, in.Rules.AppliedRules...)
	}

	d := &entity.ApprovalDecision{
		Decision:           v.decision,
		Reasoning:          v.reasoning,
		Confidence:         v.confidence,
		EscalationRequired: v.decision == entity.DecisionEscalate,
		PolicyViolations:   append([]entity.PolicyViolation{}, in.Compliance.Violations...),
		AppliedRules:       appliedRules,
		RiskAssessment:     in.Risk,
		Compliance:         in.Compliance,
		RuleEvaluation:     in.Rules,
		AlgorithmVersion:   entity.AlgorithmVersion,
		EvaluatedAt:        now,
	}
	d.FollowUpRequired = d.Decision != entity.DecisionAutoApprove ||
		len(in.Compliance.Warnings) > 0 ||
		(in.Item.HasFinancialImpact() && in.Item.Impact() > cfg.FinancialThresholds.ManualReviewRequired)

	return d, override
}

// fallbackRisk stands in when no assessment was computed
func fallbackRisk() *entity.RiskAssessment {
	return &entity.RiskAssessment{
		Level:                 entity.RiskLevelHigh,
		Score:                 75,
		Factors:               []entity.RiskFactor{},
		MitigationSuggestions: []string{"Manual review required: automated risk assessment unavailable"},
		ComplianceImpact:      entity.ComplianceImpactNone,
		ReputationalRisk:      entity.RiskLevelHigh,
	}
}

// Fallback is the safe decision returned when evaluation fails.
// It never auto-approves and always flags escalation.
func Fallback(err error, partial *entity.RiskAssessment, now time.Time) *entity.ApprovalDecision {
	risk := partial
	if risk == nil {
		risk = fallbackRisk()
	}
	return &entity.ApprovalDecision{
		Decision:           entity.DecisionRequireReview,
		Reasoning:          fmt.Sprintf("Evaluation error: %v. Manual review required.", err),
		Confidence:         0,
		EscalationRequired: true,
		PolicyViolations:   []entity.PolicyViolation{},
		AppliedRules:       []string{},
		FollowUpRequired:   true,
		Fallback:           true,
		RiskAssessment:     risk,
		AlgorithmVersion:   entity.AlgorithmVersion,
		EvaluatedAt:        now,
	}
}
