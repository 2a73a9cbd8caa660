package entity

import "time"

// EscalationLevel is a rung in the organizational approval hierarchy
type EscalationLevel string

const (
	EscalationLevelSupervisor EscalationLevel = "supervisor"
	EscalationLevelManager    EscalationLevel = "manager"
	EscalationLevelDirector   EscalationLevel = "director"
	EscalationLevelExecutive  EscalationLevel = "executive"
	EscalationLevelBoard      EscalationLevel = "board"
)

// EscalationLevels is the total order of levels, lowest first
var EscalationLevels = []EscalationLevel{
	EscalationLevelSupervisor,
	EscalationLevelManager,
	EscalationLevelDirector,
	EscalationLevelExecutive,
	EscalationLevelBoard,
}

// Index returns the position of the level in EscalationLevels, or -1
func (l EscalationLevel) Index() int {
	for i, lvl := range EscalationLevels {
		if lvl == l {
			return i
		}
	}
	return -1
}

// IsValid returns true if the level is one of the defined constants
func (l EscalationLevel) IsValid() bool {
	return l.Index() >= 0
}

// Next returns the successor level, or nil at board and for unknown levels
func (l EscalationLevel) Next() *EscalationLevel {
	i := l.Index()
	if i < 0 || i+1 >= len(EscalationLevels) {
		return nil
	}
	next := EscalationLevels[i+1]
	return &next
}

// Urgency classifies how quickly an escalation must be handled
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// IsValid returns true if the urgency is one of the defined constants
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// EscalationStatus is the state of a single EscalationPath
type EscalationStatus string

const (
	EscalationStatusPending  EscalationStatus = "pending"
	EscalationStatusResolved EscalationStatus = "resolved"
	EscalationStatusTimeout  EscalationStatus = "timeout"
)

// Resolution outcomes recorded on a resolved path
const (
	ResolutionApproved = "approved"
	ResolutionRejected = "rejected"
)

// EscalationPath is one hop of an escalation chain
type EscalationPath struct {
	ID                  int64            `json:"id"`
	ApprovalRecordID    int64            `json:"approval_record_id"`
	PreviousPathID      *int64           `json:"previous_path_id,omitempty"`
	Level               EscalationLevel  `json:"escalation_level"`
	AssignedApprovers   []string         `json:"assigned_approvers"`
	Urgency             Urgency          `json:"urgency"`
	UrgencyScore        int              `json:"urgency_score"`
	TimeoutHours        int              `json:"timeout_hours"`
	Deadline            time.Time        `json:"deadline"`
	NextEscalationLevel *EscalationLevel `json:"next_escalation_level,omitempty"`
	Status              EscalationStatus `json:"escalation_status"`
	ResolvedBy          *string          `json:"resolved_by,omitempty"`
	ResolvedAt          *time.Time       `json:"resolved_at,omitempty"`
	Resolution          string           `json:"resolution,omitempty"`
	Comment             string           `json:"comment,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// IsAssigned returns true if userID is one of the assigned approvers
func (p *EscalationPath) IsAssigned(userID string) bool {
	for _, a := range p.AssignedApprovers {
		if a == userID {
			return true
		}
	}
	return false
}
