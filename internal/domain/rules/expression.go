package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// ExpressionEvaluator compiles and runs CEL rule expressions with a program cache.
// Expressions see two variables: item and risk.
type ExpressionEvaluator struct {
	env      *cel.Env
	prgCache map[string]cel.Program
	mu       sync.RWMutex
}

// NewExpressionEvaluator creates an evaluator with the rule fact environment
func NewExpressionEvaluator() (*ExpressionEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("risk", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &ExpressionEvaluator{
		env:      env,
		prgCache: make(map[string]cel.Program),
	}, nil
}

// Compile checks an expression and caches its program
func (e *ExpressionEvaluator) Compile(expr string) error {
	_, err := e.program(expr)
	return err
}

// Eval runs expr against the item and assessment facts. The result must be a bool.
func (e *ExpressionEvaluator) Eval(expr string, item *entity.ApprovalItem, assessment *entity.RiskAssessment) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(facts(item, assessment))
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not evaluate to bool", expr)
	}
	return val, nil
}

func (e *ExpressionEvaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.prgCache[expr]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit = e.prgCache[expr]; hit {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	prg, err := e.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	e.prgCache[expr] = prg
	return prg, nil
}

func facts(item *entity.ApprovalItem, assessment *entity.RiskAssessment) map[string]any {
	stakeholders := make([]string, len(item.Stakeholders))
	copy(stakeholders, item.Stakeholders)

	risk := map[string]any{
		"level": "",
		"score": int64(0),
	}
	if assessment != nil {
		risk["level"] = string(assessment.Level)
		risk["score"] = int64(assessment.Score)
	}

	return map[string]any{
		"item": map[string]any{
			"id":                     item.ID,
			"type":                   string(item.Type),
			"riskLevel":              string(item.RiskLevel),
			"department":             item.Department(),
			"financialImpact":        item.Impact(),
			"hasFinancialImpact":     item.HasFinancialImpact(),
			"regulatoryImplications": item.RegulatoryImplications,
			"stakeholders":           stakeholders,
			"stakeholderCount":       int64(len(item.Stakeholders)),
			"submittedBy":            item.SubmittedBy,
		},
		"risk": risk,
	}
}
