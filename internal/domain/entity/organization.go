package entity

import "time"

// ApprovalHierarchy is one org chart entry: who approves at a level for a department
type ApprovalHierarchy struct {
	ID                   int64           `json:"id" yaml:"id"`
	Department           string          `json:"department" yaml:"department"`
	Level                EscalationLevel `json:"approval_level" yaml:"approval_level"`
	ApproverUserID       string          `json:"approver_user_id" yaml:"approver_user_id"`
	BackupApproverUserID string          `json:"backup_approver_user_id,omitempty" yaml:"backup_approver_user_id,omitempty"`
	ApprovalLimit        float64         `json:"approval_limit" yaml:"approval_limit"`
	IsActive             bool            `json:"is_active" yaml:"is_active"`
}

// Delegation scopes that apply to every item
const (
	DelegationScopeAll = "all"
)

// ApprovalDelegation is a temporary transfer of approval authority
type ApprovalDelegation struct {
	ID          int64      `json:"id" yaml:"id"`
	DelegatorID string     `json:"delegator_id" yaml:"delegator_id"`
	DelegateID  string     `json:"delegate_id" yaml:"delegate_id"`
	Scope       string     `json:"scope" yaml:"scope"`
	StartDate   time.Time  `json:"start_date" yaml:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	IsActive    bool       `json:"is_active" yaml:"is_active"`
}

// IsEffective returns true if the delegation is active at now.
// A nil EndDate is open-ended.
func (d *ApprovalDelegation) IsEffective(now time.Time) bool {
	if !d.IsActive || now.Before(d.StartDate) {
		return false
	}
	return d.EndDate == nil || !now.After(*d.EndDate)
}

// Covers returns true if the delegation scope applies to the item type or department
func (d *ApprovalDelegation) Covers(itemType ItemType, department string) bool {
	switch d.Scope {
	case "", DelegationScopeAll:
		return true
	case string(itemType), department:
		return true
	}
	return false
}

// User is an approver candidate
type User struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Email      string `json:"email,omitempty" yaml:"email,omitempty"`
	LarkOpenID string `json:"lark_open_id,omitempty" yaml:"lark_open_id,omitempty"`
	IsActive   bool   `json:"is_active" yaml:"is_active"`
}
