package compliance

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

var now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func money(v float64) *float64 { return &v }

func policy(id string, c entity.PolicyConditions) *entity.ApprovalPolicy {
	return &entity.ApprovalPolicy{
		ID:            id,
		Conditions:    c,
		IsActive:      true,
		EffectiveDate: now.Add(-24 * time.Hour),
	}
}

func TestEngine_Check(t *testing.T) {
	cfg := entity.DefaultEngineConfig()
	engine := NewEngine()

	financial := policy("FIN-1", entity.PolicyConditions{MaxFinancialImpact: money(50000)})
	riskCap := policy("RISK-1", entity.PolicyConditions{MaxRiskLevel: entity.RiskLevelMedium})
	review := policy("REG-1", entity.PolicyConditions{RequiresRegulatoryReview: true})
	all := []*entity.ApprovalPolicy{financial, riskCap, review}

	tests := []struct {
		name           string
		item           *entity.ApprovalItem
		wantCompliant  bool
		wantScore      int
		wantViolations int
		wantWarnings   int
		wantCritical   bool
	}{
		{
			name:          "clean item",
			item:          &entity.ApprovalItem{ID: "1", RiskLevel: entity.RiskLevelLow, FinancialImpact: money(1000)},
			wantCompliant: true,
			wantScore:     100,
		},
		{
			name:           "financial ceiling breach",
			item:           &entity.ApprovalItem{ID: "2", FinancialImpact: money(75000)},
			wantCompliant:  false,
			wantScore:      50,
			wantViolations: 1,
			wantCritical:   true,
		},
		{
			name:           "risk ceiling breach",
			item:           &entity.ApprovalItem{ID: "3", RiskLevel: entity.RiskLevelHigh},
			wantCompliant:  false,
			wantScore:      70,
			wantViolations: 1,
		},
		{
			name:          "no stated risk level never breaches the risk ceiling",
			item:          &entity.ApprovalItem{ID: "7", FinancialImpact: money(40000)},
			wantCompliant: true,
			wantScore:     100,
		},
		{
			name:          "missing regulatory review is a warning",
			item:          &entity.ApprovalItem{ID: "4", RegulatoryImplications: true},
			wantCompliant: true,
			wantScore:     95,
			wantWarnings:  1,
		},
		{
			name:          "completed regulatory review",
			item:          &entity.ApprovalItem{ID: "5", RegulatoryImplications: true, RegulatoryReviewCompleted: true},
			wantCompliant: true,
			wantScore:     100,
		},
		{
			name: "breaches accumulate across policies",
			item: &entity.ApprovalItem{
				ID: "6", RiskLevel: entity.RiskLevelCritical, FinancialImpact: money(900000), RegulatoryImplications: true,
			},
			wantCompliant:  false,
			wantScore:      15,
			wantViolations: 2,
			wantWarnings:   1,
			wantCritical:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Check(tt.item, all, cfg, now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCompliant, got.IsCompliant)
			assert.Equal(t, tt.wantScore, got.ComplianceScore)
			assert.Len(t, got.Violations, tt.wantViolations)
			assert.Len(t, got.Warnings, tt.wantWarnings)
			assert.Equal(t, tt.wantCritical, got.HasCriticalViolation())
			assert.Len(t, got.RecommendedActions, tt.wantViolations+tt.wantWarnings)
		})
	}
}

func TestEngine_ScoreFloor(t *testing.T) {
	policies := []*entity.ApprovalPolicy{
		policy("A", entity.PolicyConditions{MaxFinancialImpact: money(1)}),
		policy("B", entity.PolicyConditions{MaxFinancialImpact: money(1)}),
		policy("C", entity.PolicyConditions{MaxFinancialImpact: money(1)}),
	}
	got, err := NewEngine().Check(&entity.ApprovalItem{ID: "x", FinancialImpact: money(10)}, policies, entity.DefaultEngineConfig(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ComplianceScore)
	assert.Len(t, got.Violations, 3)
}

func TestEngine_StrictModeTurnsWarningsIntoNonCompliance(t *testing.T) {
	cfg := entity.DefaultEngineConfig()
	cfg.DefaultPolicies.StrictComplianceMode = true

	got, err := NewEngine().Check(
		&entity.ApprovalItem{ID: "x", RegulatoryImplications: true},
		[]*entity.ApprovalPolicy{policy("REG-1", entity.PolicyConditions{RequiresRegulatoryReview: true})},
		cfg, now,
	)
	require.NoError(t, err)
	assert.False(t, got.IsCompliant)
	assert.Empty(t, got.Violations)
}

func TestApplicable(t *testing.T) {
	future := policy("FUTURE", entity.PolicyConditions{})
	future.EffectiveDate = now.Add(time.Hour)

	expired := policy("EXPIRED", entity.PolicyConditions{})
	past := now.Add(-time.Hour)
	expired.ExpiryDate = &past

	inactive := policy("INACTIVE", entity.PolicyConditions{})
	inactive.IsActive = false

	otherDept := policy("OTHER", entity.PolicyConditions{})
	otherDept.ApplicableDepartments = []string{"legal"}

	otherType := policy("TYPE", entity.PolicyConditions{})
	otherType.ApplicableItemTypes = []entity.ItemType{entity.ItemTypeRisk}

	mine := policy("MINE", entity.PolicyConditions{})
	mine.ApplicableDepartments = []string{"finance"}

	item := &entity.ApprovalItem{ID: "x", Type: entity.ItemTypeFinding, OrganizationalContext: entity.OrganizationalContext{Department: "finance"}}
	got := Applicable([]*entity.ApprovalPolicy{future, expired, inactive, otherDept, otherType, mine, nil}, item, now)

	require.Len(t, got, 1)
	assert.Equal(t, "MINE", got[0].ID)
}

func TestEngine_Deterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	policies := []*entity.ApprovalPolicy{
		policy("FIN", entity.PolicyConditions{MaxFinancialImpact: money(25000)}),
		policy("REG", entity.PolicyConditions{RequiresRegulatoryReview: true, MaxRiskLevel: entity.RiskLevelHigh}),
	}
	cfg := entity.DefaultEngineConfig()

	properties.Property("identical input yields identical result", prop.ForAll(
		func(amount float64, regulatory bool) bool {
			item := &entity.ApprovalItem{ID: "p", FinancialImpact: &amount, RegulatoryImplications: regulatory, RiskLevel: entity.RiskLevelCritical}
			a, err1 := NewEngine().Check(item, policies, cfg, now)
			b, err2 := NewEngine().Check(item, policies, cfg, now)
			return err1 == nil && err2 == nil && assert.ObjectsAreEqual(a, b) &&
				a.ComplianceScore >= 0 && a.ComplianceScore <= 100
		},
		gen.Float64Range(0, 1000000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
