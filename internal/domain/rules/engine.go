// Package rules evaluates prioritized approval rules with first-match-wins semantics.
package rules

import (
	"fmt"
	"sort"
	"time"

	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/match"
)

const (
	baseConfidence       = 85
	unmetConditionCost   = 20
	defaultConfidence    = 50
	defaultRuleReasoning = "No approval rule matched; defaulting to manual review"
)

// Engine evaluates approval rules
type Engine struct {
	expressions *ExpressionEvaluator
}

// NewEngine creates a rule engine with a CEL expression evaluator
func NewEngine() (*Engine, error) {
	exprs, err := NewExpressionEvaluator()
	if err != nil {
		return nil, err
	}
	return &Engine{expressions: exprs}, nil
}

type outcome struct {
	evaluation *entity.RuleEvaluation
	err        error
}

// Applicable returns the rules in effect at now that apply to the item, sorted by priority
func Applicable(rules []*entity.ApprovalRule, item *entity.ApprovalItem, now time.Time) []*entity.ApprovalRule {
	out := make([]*entity.ApprovalRule, 0, len(rules))
	for _, r := range rules {
		if r == nil || !entity.InEffect(r.IsActive, r.EffectiveDate, r.ExpiryDate, now) {
			continue
		}
		if !entity.AppliesTo(r.ApplicableItemTypes, r.ApplicableDepartments, item) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Evaluate returns the action of the first matching rule, or require_review at 50
func (e *Engine) Evaluate(item *entity.ApprovalItem, assessment *entity.RiskAssessment, rules []*entity.ApprovalRule, now time.Time) (*entity.RuleEvaluation, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if assessment == nil {
		return nil, fmt.Errorf("rule engine: risk assessment is required")
	}

	applicable := Applicable(rules, item, now)
	cases := make([]match.Case[outcome], 0, len(applicable))
	for _, r := range applicable {
		rule := r
		cases = append(cases, match.Case[outcome]{
			Name: rule.ID,
			Eval: func() (outcome, bool) {
				ev, ok, err := e.evaluateRule(rule, item, assessment)
				if err != nil {
					return outcome{err: err}, true
				}
				return outcome{evaluation: ev}, ok
			},
		})
	}

	result := match.First(cases)
	if !result.Matched {
		return &entity.RuleEvaluation{
			RecommendedAction: entity.DecisionRequireReview,
			Confidence:        defaultConfidence,
			Reasoning:         defaultRuleReasoning,
			AppliedRules:      []string{},
		}, nil
	}
	if result.Value.err != nil {
		return nil, fmt.Errorf("rule %s: %w", result.Name, result.Value.err)
	}
	return result.Value.evaluation, nil
}

// evaluateRule folds the condition set into a match flag.
// AND conditions that fail clear the flag and cost confidence; OR conditions can restore it.
func (e *Engine) evaluateRule(rule *entity.ApprovalRule, item *entity.ApprovalItem, assessment *entity.RiskAssessment) (*entity.RuleEvaluation, bool, error) {
	if !rule.Action.IsValid() {
		return nil, false, fmt.Errorf("invalid action %q", rule.Action)
	}

	matched := true
	confidence := baseConfidence

	for i, c := range rule.Conditions {
		ok, err := evaluateCondition(c, item, assessment)
		if err != nil {
			return nil, false, err
		}
		if i > 0 && c.Logic == entity.LogicOr {
			matched = matched || ok
			continue
		}
		if !ok {
			matched = false
			confidence -= unmetConditionCost
		}
	}

	if rule.Expression != "" {
		ok, err := e.expressions.Eval(rule.Expression, item, assessment)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			matched = false
			confidence -= unmetConditionCost
		}
	}

	if !matched {
		return nil, false, nil
	}
	if confidence < 0 {
		confidence = 0
	}

	return &entity.RuleEvaluation{
		RecommendedAction: rule.Action,
		Confidence:        confidence,
		Reasoning:         fmt.Sprintf("Rule %q (priority %d) matched: %s", rule.Name, rule.Priority, rule.Action),
		AppliedRules:      []string{rule.ID},
	}, true, nil
}

// ValidateRule checks a rule's action, fields, operators and expression
func (e *Engine) ValidateRule(rule *entity.ApprovalRule) error {
	if rule == nil {
		return fmt.Errorf("rule is nil")
	}
	if rule.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if !rule.Action.IsValid() {
		return fmt.Errorf("rule %s: invalid action %q", rule.ID, rule.Action)
	}

	zero := 0.0
	probe := &entity.ApprovalItem{ID: "probe", FinancialImpact: &zero}
	assessment := &entity.RiskAssessment{Level: entity.RiskLevelLow}
	for _, c := range rule.Conditions {
		if c.Logic != "" && c.Logic != entity.LogicAnd && c.Logic != entity.LogicOr {
			return fmt.Errorf("rule %s: unknown logic %q", rule.ID, c.Logic)
		}
		if !isKnownOperator(c.Operator) {
			return fmt.Errorf("rule %s: %w: %s", rule.ID, ErrUnknownOperator, c.Operator)
		}
		if _, err := evaluateCondition(c, probe, assessment); err != nil {
			return fmt.Errorf("rule %s: %w", rule.ID, err)
		}
	}
	if rule.Expression != "" {
		if err := e.expressions.Compile(rule.Expression); err != nil {
			return fmt.Errorf("rule %s: %w", rule.ID, err)
		}
	}
	return nil
}
