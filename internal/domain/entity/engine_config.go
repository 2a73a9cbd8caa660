package entity

import (
	"errors"
	"fmt"
)

// EngineConfigKey is the configuration store key holding the serialized EngineConfig
const EngineConfigKey = "approval_engine.config"

// AlgorithmVersion is recorded on every decision and audit entry
const AlgorithmVersion = "2.1.0"

// ErrInvalidConfig is returned by EngineConfig.Validate
var ErrInvalidConfig = errors.New("invalid engine configuration")

// RiskThresholds are the upper score bounds of the low, medium and high levels
type RiskThresholds struct {
	AutoApprove         int `json:"autoApprove" mapstructure:"auto_approve"`
	RequireReview       int `json:"requireReview" mapstructure:"require_review"`
	EscalateImmediately int `json:"escalateImmediately" mapstructure:"escalate_immediately"`
}

// FindingSeverityLimits map a finding's stated severity to its base risk
type FindingSeverityLimits struct {
	Low      int `json:"low" mapstructure:"low"`
	Medium   int `json:"medium" mapstructure:"medium"`
	High     int `json:"high" mapstructure:"high"`
	Critical int `json:"critical" mapstructure:"critical"`
}

// For returns the limit for a level, or false for unknown levels
func (f FindingSeverityLimits) For(level RiskLevel) (int, bool) {
	switch level {
	case RiskLevelLow:
		return f.Low, true
	case RiskLevelMedium:
		return f.Medium, true
	case RiskLevelHigh:
		return f.High, true
	case RiskLevelCritical:
		return f.Critical, true
	}
	return 0, false
}

// FinancialThresholds are money limits driving auto-approval and escalation
type FinancialThresholds struct {
	AutoApproveLimit          float64 `json:"autoApproveLimit" mapstructure:"auto_approve_limit"`
	ManualReviewRequired      float64 `json:"manualReviewRequired" mapstructure:"manual_review_required"`
	ExecutiveApprovalRequired float64 `json:"executiveApprovalRequired" mapstructure:"executive_approval_required"`
}

// TimeConstraints are response windows in hours
type TimeConstraints struct {
	UrgentApprovalTimeLimit int `json:"urgentApprovalTimeLimit" mapstructure:"urgent_approval_time_limit"`
	StandardProcessingTime  int `json:"standardProcessingTime" mapstructure:"standard_processing_time"`
	EscalationTimeLimit     int `json:"escalationTimeLimit" mapstructure:"escalation_time_limit"`
}

// DefaultPolicies are engine-wide switches
type DefaultPolicies struct {
	EnableAutoApproval   bool `json:"enableAutoApproval" mapstructure:"enable_auto_approval"`
	EnableEscalation     bool `json:"enableEscalation" mapstructure:"enable_escalation"`
	StrictComplianceMode bool `json:"strictComplianceMode" mapstructure:"strict_compliance_mode"`
	AuditTrailRequired   bool `json:"auditTrailRequired" mapstructure:"audit_trail_required"`
}

// EngineConfig is the immutable configuration snapshot used for one evaluation.
// Treat values as read-only; use Clone before modifying.
type EngineConfig struct {
	RiskThresholds        RiskThresholds          `json:"riskThresholds"`
	FindingSeverityLimits FindingSeverityLimits   `json:"findingSeverityLimits"`
	FinancialThresholds   FinancialThresholds     `json:"financialThresholds"`
	TimeConstraints       TimeConstraints         `json:"timeConstraints"`
	DefaultPolicies       DefaultPolicies         `json:"defaultPolicies"`
	ItemTypeBaseRisk      map[ItemType]float64    `json:"itemTypeBaseRisk"`
	DefaultItemTypeRisk   float64                 `json:"defaultItemTypeRisk"`
	DepartmentRisk        map[string]float64      `json:"departmentRisk"`
	DefaultDepartmentRisk float64                 `json:"defaultDepartmentRisk"`
	BaseTimeoutHours      map[EscalationLevel]int `json:"baseTimeoutHours"`
	UrgencyMultipliers    map[Urgency]float64     `json:"urgencyMultipliers"`
}

// DefaultEngineConfig returns the built-in configuration
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		RiskThresholds: RiskThresholds{
			AutoApprove:         25,
			RequireReview:       50,
			EscalateImmediately: 75,
		},
		FindingSeverityLimits: FindingSeverityLimits{
			Low:      25,
			Medium:   50,
			High:     75,
			Critical: 100,
		},
		FinancialThresholds: FinancialThresholds{
			AutoApproveLimit:          10000,
			ManualReviewRequired:      50000,
			ExecutiveApprovalRequired: 100000,
		},
		TimeConstraints: TimeConstraints{
			UrgentApprovalTimeLimit: 4,
			StandardProcessingTime:  48,
			EscalationTimeLimit:     168,
		},
		DefaultPolicies: DefaultPolicies{
			EnableAutoApproval:   true,
			EnableEscalation:     true,
			StrictComplianceMode: false,
			AuditTrailRequired:   true,
		},
		ItemTypeBaseRisk: map[ItemType]float64{
			ItemTypeFinding:         60,
			ItemTypeRisk:            70,
			ItemTypeControlTest:     40,
			ItemTypeAuditTest:       40,
			ItemTypeRemediationPlan: 50,
		},
		DefaultItemTypeRisk:   50,
		DepartmentRisk:        map[string]float64{},
		DefaultDepartmentRisk: 50,
		BaseTimeoutHours: map[EscalationLevel]int{
			EscalationLevelSupervisor: 24,
			EscalationLevelManager:    48,
			EscalationLevelDirector:   72,
			EscalationLevelExecutive:  96,
			EscalationLevelBoard:      168,
		},
		UrgencyMultipliers: map[Urgency]float64{
			UrgencyCritical: 0.5,
			UrgencyHigh:     0.75,
			UrgencyMedium:   1.0,
			UrgencyLow:      1.5,
		},
	}
}

// Validate checks ranges and ordering of every section
func (c *EngineConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	rt := c.RiskThresholds
	if rt.AutoApprove <= 0 || rt.AutoApprove >= rt.RequireReview ||
		rt.RequireReview >= rt.EscalateImmediately || rt.EscalateImmediately >= 100 {
		return fmt.Errorf("%w: risk thresholds must satisfy 0 < autoApprove < requireReview < escalateImmediately < 100", ErrInvalidConfig)
	}

	fs := c.FindingSeverityLimits
	for _, v := range []int{fs.Low, fs.Medium, fs.High, fs.Critical} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: finding severity limits must be within [0,100]", ErrInvalidConfig)
		}
	}

	ft := c.FinancialThresholds
	if ft.AutoApproveLimit < 0 || ft.AutoApproveLimit > ft.ManualReviewRequired ||
		ft.ManualReviewRequired > ft.ExecutiveApprovalRequired {
		return fmt.Errorf("%w: financial thresholds must satisfy 0 <= autoApproveLimit <= manualReviewRequired <= executiveApprovalRequired", ErrInvalidConfig)
	}

	tc := c.TimeConstraints
	if tc.UrgentApprovalTimeLimit <= 0 || tc.StandardProcessingTime <= 0 || tc.EscalationTimeLimit <= 0 {
		return fmt.Errorf("%w: time constraints must be positive", ErrInvalidConfig)
	}

	for t, v := range c.ItemTypeBaseRisk {
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: base risk for %s out of range: %.2f", ErrInvalidConfig, t, v)
		}
	}
	for d, v := range c.DepartmentRisk {
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: department risk for %s out of range: %.2f", ErrInvalidConfig, d, v)
		}
	}
	if c.DefaultItemTypeRisk < 0 || c.DefaultItemTypeRisk > 100 ||
		c.DefaultDepartmentRisk < 0 || c.DefaultDepartmentRisk > 100 {
		return fmt.Errorf("%w: default risks must be within [0,100]", ErrInvalidConfig)
	}

	for _, lvl := range EscalationLevels {
		if c.BaseTimeoutHours[lvl] <= 0 {
			return fmt.Errorf("%w: base timeout for %s must be positive", ErrInvalidConfig, lvl)
		}
	}
	prev := 0.0
	for _, u := range []Urgency{UrgencyCritical, UrgencyHigh, UrgencyMedium, UrgencyLow} {
		m := c.UrgencyMultipliers[u]
		if m <= 0 {
			return fmt.Errorf("%w: urgency multiplier for %s must be positive", ErrInvalidConfig, u)
		}
		if m < prev {
			return fmt.Errorf("%w: urgency multipliers must not decrease as urgency drops", ErrInvalidConfig)
		}
		prev = m
	}
	return nil
}

// LevelForScore maps a 0-100 score onto a risk level using the thresholds
func (c *EngineConfig) LevelForScore(score int) RiskLevel {
	switch {
	case score <= c.RiskThresholds.AutoApprove:
		return RiskLevelLow
	case score <= c.RiskThresholds.RequireReview:
		return RiskLevelMedium
	case score <= c.RiskThresholds.EscalateImmediately:
		return RiskLevelHigh
	default:
		return RiskLevelCritical
	}
}

// Clone returns a deep copy
func (c *EngineConfig) Clone() *EngineConfig {
	out := *c
	out.ItemTypeBaseRisk = make(map[ItemType]float64, len(c.ItemTypeBaseRisk))
	for k, v := range c.ItemTypeBaseRisk {
		out.ItemTypeBaseRisk[k] = v
	}
	out.DepartmentRisk = make(map[string]float64, len(c.DepartmentRisk))
	for k, v := range c.DepartmentRisk {
		out.DepartmentRisk[k] = v
	}
	out.BaseTimeoutHours = make(map[EscalationLevel]int, len(c.BaseTimeoutHours))
	for k, v := range c.BaseTimeoutHours {
		out.BaseTimeoutHours[k] = v
	}
	out.UrgencyMultipliers = make(map[Urgency]float64, len(c.UrgencyMultipliers))
	for k, v := range c.UrgencyMultipliers {
		out.UrgencyMultipliers[k] = v
	}
	return &out
}
