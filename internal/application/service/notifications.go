package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
)

var defaultChannels = []string{entity.ChannelInApp, entity.ChannelLark}

var urgencyPriority = map[entity.Urgency]string{
	entity.UrgencyLow:      entity.NotificationPriorityLow,
	entity.UrgencyMedium:   entity.NotificationPriorityNormal,
	entity.UrgencyHigh:     entity.NotificationPriorityHigh,
	entity.UrgencyCritical: entity.NotificationPriorityUrgent,
}

var pendingTitle = map[entity.DecisionType]string{
	entity.DecisionRequireReview: "requires review",
	entity.DecisionEscalate:      "was escalated",
}

func recordURL(recordID int64) string {
	return fmt.Sprintf("/approvals/%d", recordID)
}

// notify hands a notification to the sink. Failures are logged and never returned.
func notify(ctx context.Context, sink port.NotificationSink, logger Logger, n *entity.Notification) {
	if sink == nil || n == nil || n.RecipientID == "" {
		return
	}
	if err := sink.CreateNotification(ctx, n); err != nil {
		logger.Error("Failed to create notification", "error", err, "recipient_id", n.RecipientID, "type", n.Type)
	}
}

func decisionNotification(record *entity.ApprovalRecord, d *entity.ApprovalDecision, cfg *entity.EngineConfig) *entity.Notification {
	data := map[string]interface{}{
		"record_id":     record.ID,
		"evaluation_id": d.EvaluationID,
		"decision":      string(d.Decision),
		"confidence":    d.Confidence,
		"risk_level":    string(record.RiskLevel),
	}

	if d.Decision == entity.DecisionAutoApprove {
		return &entity.Notification{
			RecipientID: record.SubmittedBy,
			Type:        entity.NotificationTypeApprovalDecision,
			Category:    entity.NotificationCategoryApproval,
			Priority:    entity.NotificationPriorityNormal,
			Title:       fmt.Sprintf("%s %s approved", record.ItemType, record.ItemID),
			Message:     d.Reasoning,
			ActionURL:   recordURL(record.ID),
			Data:        data,
			Channels:    defaultChannels,
		}
	}

	priority := entity.NotificationPriorityNormal
	hours := cfg.TimeConstraints.StandardProcessingTime
	if d.Decision == entity.DecisionEscalate {
		priority = entity.NotificationPriorityHigh
		hours = cfg.TimeConstraints.UrgentApprovalTimeLimit
	}
	data["respond_within_hours"] = hours

	message := d.Reasoning
	if len(d.PolicyViolations) > 0 {
		descs := make([]string, 0, len(d.PolicyViolations))
		for _, v := range d.PolicyViolations {
			descs = append(descs, v.Description)
		}
		message += "\nPolicy violations: " + strings.Join(descs, "; ")
	}

	return &entity.Notification{
		RecipientID: record.SubmittedBy,
		Type:        entity.NotificationTypeReviewRequired,
		Category:    entity.NotificationCategoryApproval,
		Priority:    priority,
		Title:       fmt.Sprintf("%s %s %s", record.ItemType, record.ItemID, pendingTitle[d.Decision]),
		Message:     message,
		ActionURL:   recordURL(record.ID),
		Data:        data,
		Channels:    defaultChannels,
	}
}

func escalationAssignedNotification(approverID string, record *entity.ApprovalRecord, path *entity.EscalationPath) *entity.Notification {
	return &entity.Notification{
		RecipientID: approverID,
		Type:        entity.NotificationTypeEscalationAssigned,
		Category:    entity.NotificationCategoryApproval,
		Priority:    urgencyPriority[path.Urgency],
		Title:       fmt.Sprintf("Escalation at %s level: %s %s", path.Level, record.ItemType, record.ItemID),
		Message: fmt.Sprintf("You are an assigned approver. Urgency %s, respond within %d hours (by %s).",
			path.Urgency, path.TimeoutHours, path.Deadline.Format("2006-01-02 15:04 MST")),
		ActionURL: recordURL(record.ID),
		Data: map[string]interface{}{
			"record_id":        record.ID,
			"escalation_id":    path.ID,
			"escalation_level": string(path.Level),
			"urgency":          string(path.Urgency),
			"deadline":         path.Deadline.Unix(),
		},
		Channels: defaultChannels,
	}
}

func escalationExpiredNotification(record *entity.ApprovalRecord, path *entity.EscalationPath) *entity.Notification {
	return &entity.Notification{
		RecipientID: record.SubmittedBy,
		Type:        entity.NotificationTypeEscalationExpired,
		Category:    entity.NotificationCategoryApproval,
		Priority:    entity.NotificationPriorityHigh,
		Title:       fmt.Sprintf("%s %s expired without a decision", record.ItemType, record.ItemID),
		Message:     fmt.Sprintf("The escalation reached the %s level and timed out. Resubmit the item to restart approval.", path.Level),
		ActionURL:   recordURL(record.ID),
		Data: map[string]interface{}{
			"record_id":     record.ID,
			"escalation_id": path.ID,
		},
		Channels: defaultChannels,
	}
}

func outcomeNotification(record *entity.ApprovalRecord, outcome, approverID, comment string) *entity.Notification {
	message := fmt.Sprintf("%s by %s.", outcome, approverID)
	if comment != "" {
		message += " Comment: " + comment
	}
	return &entity.Notification{
		RecipientID: record.SubmittedBy,
		Type:        entity.NotificationTypeApprovalDecision,
		Category:    entity.NotificationCategoryApproval,
		Priority:    entity.NotificationPriorityNormal,
		Title:       fmt.Sprintf("%s %s %s", record.ItemType, record.ItemID, outcome),
		Message:     message,
		ActionURL:   recordURL(record.ID),
		Data: map[string]interface{}{
			"record_id":   record.ID,
			"outcome":     outcome,
			"approver_id": approverID,
		},
		Channels: defaultChannels,
	}
}
