// Package risk computes weighted risk assessments for approval items.
package risk

import (
	"fmt"
	"math"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// Factor names
const (
	FactorItemType         = "item_type"
	FactorFinancialImpact  = "financial_impact"
	FactorRegulatory       = "regulatory_implications"
	FactorOrganizational   = "organizational_risk"
	FactorStakeholderCount = "stakeholder_count"
)

// Factor weights. Weights of absent factors are not redistributed.
const (
	WeightItemType         = 0.20
	WeightFinancialImpact  = 0.30
	WeightRegulatory       = 0.25
	WeightOrganizational   = 0.15
	WeightStakeholderCount = 0.10
)

const (
	financialImpactScale = 100000.0
	regulatoryValue      = 80.0
	stakeholderValue     = 10.0
	mitigationThreshold  = 70.0
)

var mitigations = map[string]string{
	FactorItemType:         "Assign a senior reviewer familiar with this item type",
	FactorFinancialImpact:  "Obtain finance sign-off and document the budget impact",
	FactorRegulatory:       "Complete a regulatory review before final approval",
	FactorOrganizational:   "Coordinate with the department risk owner",
	FactorStakeholderCount: "Hold a stakeholder alignment session before approval",
}

// Analyzer computes RiskAssessments. It holds no state.
type Analyzer struct{}

// NewAnalyzer creates a new risk analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Assess computes the weighted risk assessment of an item under cfg
func (a *Analyzer) Assess(item *entity.ApprovalItem, cfg *entity.EngineConfig) (*entity.RiskAssessment, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("risk analyzer: %w: config is nil", entity.ErrInvalidConfig)
	}

	factors := make([]entity.RiskFactor, 0, 5)
	add := func(name string, value, weight float64) {
		factors = append(factors, entity.RiskFactor{
			Name:         name,
			Value:        value,
			Weight:       weight,
			Contribution: value * weight,
		})
	}

	add(FactorItemType, baseRisk(item, cfg), WeightItemType)
	if item.HasFinancialImpact() {
		add(FactorFinancialImpact, math.Min(100, item.Impact()/financialImpactScale*100), WeightFinancialImpact)
	}
	if item.RegulatoryImplications {
		add(FactorRegulatory, regulatoryValue, WeightRegulatory)
	}
	add(FactorOrganizational, departmentRisk(item.Department(), cfg), WeightOrganizational)
	if len(item.Stakeholders) > 0 {
		add(FactorStakeholderCount, math.Min(100, float64(len(item.Stakeholders))*stakeholderValue), WeightStakeholderCount)
	}

	total := 0.0
	for _, f := range factors {
		total += f.Contribution
	}
	score := int(math.Round(math.Max(0, math.Min(100, total))))
	level := cfg.LevelForScore(score)

	reputational := level
	if item.RegulatoryImplications && score > 70 {
		reputational = entity.RiskLevelCritical
	}

	return &entity.RiskAssessment{
		Level:                 level,
		Score:                 score,
		Factors:               factors,
		MitigationSuggestions: suggestMitigations(factors),
		ComplianceImpact:      complianceImpact(item.RegulatoryImplications, score),
		ReputationalRisk:      reputational,
	}, nil
}

// baseRisk uses the stated severity for findings and the type table otherwise
func baseRisk(item *entity.ApprovalItem, cfg *entity.EngineConfig) float64 {
	if item.Type == entity.ItemTypeFinding && item.RiskLevel != "" {
		if v, ok := cfg.FindingSeverityLimits.For(item.RiskLevel); ok {
			return float64(v)
		}
	}
	if v, ok := cfg.ItemTypeBaseRisk[item.Type]; ok {
		return v
	}
	return cfg.DefaultItemTypeRisk
}

func departmentRisk(department string, cfg *entity.EngineConfig) float64 {
	if v, ok := cfg.DepartmentRisk[department]; ok {
		return v
	}
	return cfg.DefaultDepartmentRisk
}

func complianceImpact(regulatory bool, score int) entity.ComplianceImpact {
	switch {
	case regulatory && score > 70:
		return entity.ComplianceImpactSignificant
	case regulatory:
		return entity.ComplianceImpactModerate
	case score > 50:
		return entity.ComplianceImpactMinor
	default:
		return entity.ComplianceImpactNone
	}
}

func suggestMitigations(factors []entity.RiskFactor) []string {
	suggestions := make([]string, 0)
	for _, f := range factors {
		if f.Value > mitigationThreshold {
			suggestions = append(suggestions, mitigations[f.Name])
		}
	}
	return suggestions
}
