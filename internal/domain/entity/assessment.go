package entity

// RiskFactor is one weighted input to the risk score
type RiskFactor struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// RiskAssessment is the RiskAnalyzer output
type RiskAssessment struct {
	Level                 RiskLevel        `json:"level"`
	Score                 int              `json:"score"`
	Factors               []RiskFactor     `json:"factors"`
	MitigationSuggestions []string         `json:"mitigation_suggestions"`
	ComplianceImpact      ComplianceImpact `json:"compliance_impact"`
	ReputationalRisk      RiskLevel        `json:"reputational_risk"`
}

// ViolationSeverity grades a policy violation
type ViolationSeverity string

const (
	ViolationSeverityCritical ViolationSeverity = "critical"
	ViolationSeverityMajor    ViolationSeverity = "major"
)

// PolicyViolation is a breached policy condition
type PolicyViolation struct {
	PolicyID    string            `json:"policy_id"`
	Severity    ViolationSeverity `json:"severity"`
	Description string            `json:"description"`
	Remediation string            `json:"remediation"`
}

// PolicyWarning is a policy concern that does not break compliance
type PolicyWarning struct {
	PolicyID    string `json:"policy_id"`
	Description string `json:"description"`
}

// PolicyComplianceResult is the PolicyComplianceEngine output
type PolicyComplianceResult struct {
	IsCompliant        bool              `json:"is_compliant"`
	Violations         []PolicyViolation `json:"violations"`
	Warnings           []PolicyWarning   `json:"warnings"`
	ComplianceScore    int               `json:"compliance_score"`
	RecommendedActions []string          `json:"recommended_actions"`
}

// HasCriticalViolation returns true if any violation is critical
func (r *PolicyComplianceResult) HasCriticalViolation() bool {
	if r == nil {
		return false
	}
	for _, v := range r.Violations {
		if v.Severity == ViolationSeverityCritical {
			return true
		}
	}
	return false
}

// RuleEvaluation is the ApprovalRuleEngine output
type RuleEvaluation struct {
	RecommendedAction DecisionType `json:"recommended_action"`
	Confidence        int          `json:"confidence"`
	Reasoning         string       `json:"reasoning"`
	AppliedRules      []string     `json:"applied_rules"`
}
