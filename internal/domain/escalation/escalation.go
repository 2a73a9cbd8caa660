// Package escalation holds the pure escalation arithmetic and the path transition function.
package escalation

import (
	"math"
	"time"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

const (
	regulatoryUrgency     = 20
	lowConfidenceUrgency  = 10
	lowConfidenceCutoff   = 70
	stakeholderUrgency    = 2
	maxStakeholderUrgency = 10
)

var riskUrgency = map[entity.RiskLevel]int{
	entity.RiskLevelLow:      10,
	entity.RiskLevelMedium:   20,
	entity.RiskLevelHigh:     30,
	entity.RiskLevelCritical: 40,
}

// Plan is the computed shape of a new escalation
type Plan struct {
	Urgency      entity.Urgency
	UrgencyScore int
	RiskLevel    entity.RiskLevel
	Level        entity.EscalationLevel
	TimeoutHours int
}

// EffectiveRiskLevel is the higher of the stated hint and the assessed level
func EffectiveRiskLevel(item *entity.ApprovalItem, assessment *entity.RiskAssessment) entity.RiskLevel {
	level := item.RiskLevel
	if assessment != nil {
		level = entity.MaxRiskLevel(level, assessment.Level)
	}
	if !level.IsValid() {
		return entity.RiskLevelMedium
	}
	return level
}

// financialUrgency tiers are fixed; only applies when an impact was supplied
func financialUrgency(item *entity.ApprovalItem) int {
	if !item.HasFinancialImpact() {
		return 0
	}
	switch v := item.Impact(); {
	case v > 100000:
		return 30
	case v > 50000:
		return 20
	case v > 10000:
		return 10
	default:
		return 5
	}
}

// ScoreUrgency returns the 0-100 urgency score and its class
func ScoreUrgency(item *entity.ApprovalItem, risk entity.RiskLevel, confidence int, cfg *entity.EngineConfig) (int, entity.Urgency) {
	score := riskUrgency[risk] + financialUrgency(item)
	if item.RegulatoryImplications {
		score += regulatoryUrgency
	}
	stakeholders := len(item.Stakeholders) * stakeholderUrgency
	if stakeholders > maxStakeholderUrgency {
		stakeholders = maxStakeholderUrgency
	}
	score += stakeholders
	if confidence < lowConfidenceCutoff {
		score += lowConfidenceUrgency
	}
	if score > 100 {
		score = 100
	}
	return score, entity.Urgency(cfg.LevelForScore(score))
}

// SelectLevel picks the first hierarchy level to escalate to
func SelectLevel(item *entity.ApprovalItem, risk entity.RiskLevel, urgency entity.Urgency, cfg *entity.EngineConfig) entity.EscalationLevel {
	switch {
	case risk == entity.RiskLevelCritical ||
		item.Impact() > cfg.FinancialThresholds.ExecutiveApprovalRequired ||
		urgency == entity.UrgencyCritical:
		return entity.EscalationLevelExecutive
	case risk == entity.RiskLevelHigh || item.RegulatoryImplications || urgency == entity.UrgencyHigh:
		return entity.EscalationLevelDirector
	case risk == entity.RiskLevelMedium || urgency == entity.UrgencyMedium:
		return entity.EscalationLevelManager
	default:
		return entity.EscalationLevelSupervisor
	}
}

// TimeoutHours scales the level's base timeout by the urgency multiplier
func TimeoutHours(level entity.EscalationLevel, urgency entity.Urgency, cfg *entity.EngineConfig) int {
	base := cfg.BaseTimeoutHours[level]
	multiplier, ok := cfg.UrgencyMultipliers[urgency]
	if !ok {
		multiplier = 1.0
	}
	return int(math.Round(float64(base) * multiplier))
}

// NewPlan computes urgency, level and timeout for an item that requires escalation
func NewPlan(item *entity.ApprovalItem, assessment *entity.RiskAssessment, confidence int, cfg *entity.EngineConfig) Plan {
	risk := EffectiveRiskLevel(item, assessment)
	score, urgency := ScoreUrgency(item, risk, confidence, cfg)
	level := SelectLevel(item, risk, urgency, cfg)
	return Plan{
		Urgency:      urgency,
		UrgencyScore: score,
		RiskLevel:    risk,
		Level:        level,
		TimeoutHours: TimeoutHours(level, urgency, cfg),
	}
}

// Action is the outcome of advancing a path
type Action string

const (
	ActionNone   Action = "none"
	ActionChain  Action = "chain"
	ActionExpire Action = "expire"
)

// Step is the result of Advance
type Step struct {
	Action    Action
	NextLevel entity.EscalationLevel
}

// Advance decides what a timeout check at now does to the path.
// Only pending paths past their deadline move; board has no successor and expires.
func Advance(path *entity.EscalationPath, now time.Time) Step {
	if path == nil || path.Status != entity.EscalationStatusPending || now.Before(path.Deadline) {
		return Step{Action: ActionNone}
	}
	if path.NextEscalationLevel == nil {
		return Step{Action: ActionExpire}
	}
	return Step{Action: ActionChain, NextLevel: *path.NextEscalationLevel}
}
