package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

var now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine()
	require.NoError(t, err)
	return e
}

func rule(id string, priority int, action entity.DecisionType, conditions ...entity.Condition) *entity.ApprovalRule {
	return &entity.ApprovalRule{
		ID:            id,
		Name:          id,
		Priority:      priority,
		Action:        action,
		Conditions:    conditions,
		IsActive:      true,
		EffectiveDate: now.Add(-time.Hour),
	}
}

func cond(field, op string, value interface{}) entity.Condition {
	return entity.Condition{Field: field, Operator: op, Value: value}
}

func or(c entity.Condition) entity.Condition {
	c.Logic = entity.LogicOr
	return c
}

func amount(v float64) *float64 { return &v }

func TestEngine_NoRulesDefaultsToReview(t *testing.T) {
	got, err := newEngine(t).Evaluate(&entity.ApprovalItem{ID: "x"}, &entity.RiskAssessment{Level: entity.RiskLevelLow}, nil, now)
	require.NoError(t, err)
	assert.Equal(t, entity.DecisionRequireReview, got.RecommendedAction)
	assert.Equal(t, 50, got.Confidence)
	assert.Empty(t, got.AppliedRules)
}

func TestEngine_PriorityOrderFirstMatchWins(t *testing.T) {
	rules := []*entity.ApprovalRule{
		rule("late", 20, entity.DecisionAutoApprove, cond(entity.FieldRiskLevel, entity.OperatorEquals, "low")),
		rule("early", 5, entity.DecisionEscalate, cond(entity.FieldRiskScore, entity.OperatorLessThan, 30)),
		rule("never", 1, entity.DecisionRequireReview, cond(entity.FieldItemType, entity.OperatorEquals, "risk")),
	}

	item := &entity.ApprovalItem{ID: "x", Type: entity.ItemTypeAuditTest}
	got, err := newEngine(t).Evaluate(item, &entity.RiskAssessment{Level: entity.RiskLevelLow, Score: 17}, rules, now)
	require.NoError(t, err)
	assert.Equal(t, entity.DecisionEscalate, got.RecommendedAction)
	assert.Equal(t, 85, got.Confidence)
	assert.Equal(t, []string{"early"}, got.AppliedRules)
}

func TestEngine_OrConditionRestoresMatchAtReducedConfidence(t *testing.T) {
	r := rule("mixed", 1, entity.DecisionRequireReview,
		cond(entity.FieldFinancialImpact, entity.OperatorGreaterThan, 1000000),
		or(cond(entity.FieldDepartment, entity.OperatorContains, []interface{}{"finance", "treasury"})),
	)

	item := &entity.ApprovalItem{ID: "x", FinancialImpact: amount(10), OrganizationalContext: entity.OrganizationalContext{Department: "finance"}}
	got, err := newEngine(t).Evaluate(item, &entity.RiskAssessment{Level: entity.RiskLevelMedium}, []*entity.ApprovalRule{r}, now)
	require.NoError(t, err)
	assert.Equal(t, entity.DecisionRequireReview, got.RecommendedAction)
	assert.Equal(t, 65, got.Confidence)
}

func TestEngine_UnmetAndSkipsRule(t *testing.T) {
	r := rule("strict", 1, entity.DecisionAutoApprove,
		cond(entity.FieldRegulatoryImplications, entity.OperatorEquals, false),
		cond(entity.FieldRiskLevel, entity.OperatorLessThan, "medium"),
	)

	item := &entity.ApprovalItem{ID: "x", RegulatoryImplications: true}
	got, err := newEngine(t).Evaluate(item, &entity.RiskAssessment{Level: entity.RiskLevelLow}, []*entity.ApprovalRule{r}, now)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Confidence)
	assert.Equal(t, entity.DecisionRequireReview, got.RecommendedAction)
}

func TestEngine_FiltersByApplicability(t *testing.T) {
	scoped := rule("scoped", 1, entity.DecisionEscalate)
	scoped.ApplicableDepartments = []string{"legal"}

	expired := rule("expired", 2, entity.DecisionEscalate)
	past := now.Add(-time.Minute)
	expired.ExpiryDate = &past

	fallback := rule("open", 3, entity.DecisionAutoApprove)

	got, err := newEngine(t).Evaluate(
		&entity.ApprovalItem{ID: "x", OrganizationalContext: entity.OrganizationalContext{Department: "it"}},
		&entity.RiskAssessment{Level: entity.RiskLevelLow},
		[]*entity.ApprovalRule{scoped, expired, fallback}, now,
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"open"}, got.AppliedRules)
}

func TestEngine_UnknownFieldIsError(t *testing.T) {
	r := rule("bad", 1, entity.DecisionAutoApprove, cond("colour", entity.OperatorEquals, "red"))
	_, err := newEngine(t).Evaluate(&entity.ApprovalItem{ID: "x"}, &entity.RiskAssessment{Level: entity.RiskLevelLow}, []*entity.ApprovalRule{r}, now)
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestEngine_UnknownOperatorIsError(t *testing.T) {
	r := rule("bad", 1, entity.DecisionAutoApprove, cond(entity.FieldRiskScore, "between", 5))
	_, err := newEngine(t).Evaluate(&entity.ApprovalItem{ID: "x"}, &entity.RiskAssessment{Level: entity.RiskLevelLow}, []*entity.ApprovalRule{r}, now)
	assert.ErrorIs(t, err, ErrUnknownOperator)
}

func TestEngine_Expression(t *testing.T) {
	r := rule("cel", 1, entity.DecisionEscalate)
	r.Expression = `item.stakeholderCount > 2 && risk.score >= 40`

	e := newEngine(t)
	item := &entity.ApprovalItem{ID: "x", Stakeholders: []string{"a", "b", "c"}}

	got, err := e.Evaluate(item, &entity.RiskAssessment{Level: entity.RiskLevelMedium, Score: 45}, []*entity.ApprovalRule{r}, now)
	require.NoError(t, err)
	assert.Equal(t, entity.DecisionEscalate, got.RecommendedAction)

	got, err = e.Evaluate(item, &entity.RiskAssessment{Level: entity.RiskLevelLow, Score: 10}, []*entity.ApprovalRule{r}, now)
	require.NoError(t, err)
	assert.Equal(t, entity.DecisionRequireReview, got.RecommendedAction)
}

func TestEngine_ValidateRule(t *testing.T) {
	e := newEngine(t)

	ok := rule("ok", 1, entity.DecisionAutoApprove, cond(entity.FieldFinancialImpact, entity.OperatorLessThan, "5000"))
	ok.Expression = `item.type == "risk"`
	assert.NoError(t, e.ValidateRule(ok))

	badAction := rule("action", 1, "maybe")
	assert.Error(t, e.ValidateRule(badAction))

	badExpr := rule("expr", 1, entity.DecisionEscalate)
	badExpr.Expression = `item.type ==`
	assert.Error(t, e.ValidateRule(badExpr))

	badValue := rule("value", 1, entity.DecisionEscalate, cond(entity.FieldRiskScore, entity.OperatorGreaterThan, "lots"))
	assert.Error(t, e.ValidateRule(badValue))
}
