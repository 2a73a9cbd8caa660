package entity

import "time"

// ApprovalDecision is the synthesized outcome of one evaluation
type ApprovalDecision struct {
	EvaluationID       string                  `json:"evaluation_id"`
	Decision           DecisionType            `json:"decision"`
	Reasoning          string                  `json:"reasoning"`
	Confidence         int                     `json:"confidence"`
	EscalationRequired bool                    `json:"escalation_required"`
	PolicyViolations   []PolicyViolation       `json:"policy_violations"`
	AppliedRules       []string                `json:"applied_rules"`
	FollowUpRequired   bool                    `json:"follow_up_required"`
	Fallback           bool                    `json:"fallback,omitempty"`
	RiskAssessment     *RiskAssessment         `json:"risk_assessment,omitempty"`
	Compliance         *PolicyComplianceResult `json:"compliance,omitempty"`
	RuleEvaluation     *RuleEvaluation         `json:"rule_evaluation,omitempty"`
	AlgorithmVersion   string                  `json:"algorithm_version"`
	EvaluatedAt        time.Time               `json:"evaluated_at"`
	RecordID           int64                   `json:"record_id,omitempty"`
	Escalation         *EscalationPath         `json:"escalation,omitempty"`
}

// ApprovalRecord is the durable record of a decision
type ApprovalRecord struct {
	ID                 int64          `json:"id"`
	EvaluationID       string         `json:"evaluation_id"`
	EvaluationKey      string         `json:"evaluation_key"`
	ItemID             string         `json:"approval_item_id"`
	ItemType           ItemType       `json:"approval_item_type"`
	Department         string         `json:"department"`
	Status             ApprovalStatus `json:"approval_status"`
	Decision           DecisionType   `json:"decision"`
	DecisionMethod     DecisionMethod `json:"decision_method"`
	RiskLevel          RiskLevel      `json:"risk_level"`
	RiskScore          int            `json:"risk_score"`
	DecisionConfidence int            `json:"decision_confidence"`
	DecisionSnapshot   string         `json:"decision_snapshot"`
	SubmittedBy        string         `json:"submitted_by"`
	SubmittedAt        time.Time      `json:"submitted_at"`
	ApprovedBy         *string        `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time     `json:"approved_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}
