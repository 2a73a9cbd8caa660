package entity

import "time"

// Notification types
const (
	NotificationTypeApprovalDecision   = "approval_decision"
	NotificationTypeReviewRequired     = "review_required"
	NotificationTypeEscalationAssigned = "escalation_assigned"
	NotificationTypeEscalationExpired  = "escalation_expired"
)

// NotificationCategoryApproval groups all engine notifications
const NotificationCategoryApproval = "approval"

// Notification priorities
const (
	NotificationPriorityLow    = "low"
	NotificationPriorityNormal = "normal"
	NotificationPriorityHigh   = "high"
	NotificationPriorityUrgent = "urgent"
)

// Notification channels
const (
	ChannelInApp = "in_app"
	ChannelLark  = "lark"
)

// Notification delivery status
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)

// Notification is a message queued for one recipient
type Notification struct {
	ID           int64                  `json:"id"`
	RecipientID  string                 `json:"recipient_id"`
	Type         string                 `json:"type"`
	Category     string                 `json:"category"`
	Priority     string                 `json:"priority"`
	Title        string                 `json:"title"`
	Message      string                 `json:"message"`
	ActionURL    string                 `json:"action_url,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
	Channels     []string               `json:"channels"`
	Status       string                 `json:"status"`
	SentAt       *time.Time             `json:"sent_at,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// HasChannel returns true if the notification targets the given channel
func (n *Notification) HasChannel(channel string) bool {
	for _, c := range n.Channels {
		if c == channel {
			return true
		}
	}
	return false
}
