package entity

// ItemType identifies the kind of governance item submitted for approval
type ItemType string

const (
	ItemTypeFinding         ItemType = "finding"
	ItemTypeRisk            ItemType = "risk"
	ItemTypeControlTest     ItemType = "control_test"
	ItemTypeAuditTest       ItemType = "audit_test"
	ItemTypeRemediationPlan ItemType = "remediation_plan"
	ItemTypeAuditReport     ItemType = "audit_report"
)

// RiskLevel is the four-step risk classification shared by items and assessments
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

var riskLevelRank = map[RiskLevel]int{
	RiskLevelLow:      1,
	RiskLevelMedium:   2,
	RiskLevelHigh:     3,
	RiskLevelCritical: 4,
}

// Rank returns 1..4 for valid levels and 0 otherwise
func (l RiskLevel) Rank() int {
	return riskLevelRank[l]
}

// IsValid returns true if the level is one of the defined constants
func (l RiskLevel) IsValid() bool {
	return riskLevelRank[l] > 0
}

// String returns the string representation of the level
func (l RiskLevel) String() string {
	return string(l)
}

// MaxRiskLevel returns the higher-ranked of two levels
func MaxRiskLevel(a, b RiskLevel) RiskLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ComplianceImpact describes how strongly an item touches compliance obligations
type ComplianceImpact string

const (
	ComplianceImpactNone        ComplianceImpact = "none"
	ComplianceImpactMinor       ComplianceImpact = "minor"
	ComplianceImpactModerate    ComplianceImpact = "moderate"
	ComplianceImpactSignificant ComplianceImpact = "significant"
)

// DecisionType is the outcome of an approval evaluation
type DecisionType string

const (
	DecisionAutoApprove   DecisionType = "auto_approve"
	DecisionRequireReview DecisionType = "require_review"
	DecisionEscalate      DecisionType = "escalate"
)

// IsValid returns true if the decision is one of the defined constants
func (d DecisionType) IsValid() bool {
	switch d {
	case DecisionAutoApprove, DecisionRequireReview, DecisionEscalate:
		return true
	}
	return false
}

// ApprovalStatus is the lifecycle status of an ApprovalRecord
type ApprovalStatus string

const (
	ApprovalStatusPending   ApprovalStatus = "pending"
	ApprovalStatusApproved  ApprovalStatus = "approved"
	ApprovalStatusRejected  ApprovalStatus = "rejected"
	ApprovalStatusEscalated ApprovalStatus = "escalated"
	ApprovalStatusExpired   ApprovalStatus = "expired"
)

// DecisionMethod records whether a decision was taken by the engine or a person
type DecisionMethod string

const (
	DecisionMethodAutomatic DecisionMethod = "automatic"
	DecisionMethodManual    DecisionMethod = "manual"
)

// Audit trail actions
const (
	AuditActionEvaluated          = "EVALUATED"
	AuditActionEscalated          = "ESCALATED"
	AuditActionEscalationTimeout  = "ESCALATION_TIMEOUT"
	AuditActionEscalationChained  = "ESCALATION_CHAINED"
	AuditActionEscalationResolved = "ESCALATION_RESOLVED"
	AuditActionExpired            = "EXPIRED"
	AuditActionManualApproved     = "MANUAL_APPROVED"
	AuditActionManualRejected     = "MANUAL_REJECTED"
)

// SystemActor is recorded as the approver for automatic decisions
const SystemActor = "system"
