package entity

import "time"

// AuditTrailEntry is one append-only entry in the audit trail of an approval record
type AuditTrailEntry struct {
	ID               int64     `json:"id"`
	ApprovalRecordID int64     `json:"approval_record_id"`
	EvaluationID     string    `json:"evaluation_id,omitempty"`
	Action           string    `json:"action"`
	PreviousStatus   string    `json:"previous_status"`
	NewStatus        string    `json:"new_status"`
	ActorID          string    `json:"actor_id"`
	Reasoning        string    `json:"reasoning"`
	AlgorithmVersion string    `json:"algorithm_version,omitempty"`
	Data             string    `json:"data,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// SystemConfig represents system configuration key-value pairs
type SystemConfig struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}
