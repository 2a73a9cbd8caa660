package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// NotificationService is the notification sink: it queues notifications in the outbox
// and delivers them to chat channels
type NotificationService interface {
	port.NotificationSink
	// DispatchPending delivers up to limit queued notifications and returns how many were processed
	DispatchPending(ctx context.Context, limit int) (int, error)
}

type notificationServiceImpl struct {
	notificationRepo port.NotificationRepository
	userRepo         port.UserRepository
	messageSender    port.MessageSender
	logger           Logger
	now              func() time.Time
}

// NewNotificationService creates a new NotificationService.
// messageSender may be nil, in which case notifications are delivered in-app only.
func NewNotificationService(
	notificationRepo port.NotificationRepository,
	userRepo port.UserRepository,
	messageSender port.MessageSender,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		messageSender:    messageSender,
		logger:           logger,
		now:              time.Now,
	}
}

// CreateNotification queues a notification in the outbox
func (s *notificationServiceImpl) CreateNotification(ctx context.Context, n *entity.Notification) error {
	if n == nil || n.RecipientID == "" {
		return fmt.Errorf("notification recipient is required")
	}
	if n.Category == "" {
		n.Category = entity.NotificationCategoryApproval
	}
	if n.Priority == "" {
		n.Priority = entity.NotificationPriorityNormal
	}
	if len(n.Channels) == 0 {
		n.Channels = []string{entity.ChannelInApp}
	}
	n.Status = entity.NotificationStatusPending
	n.CreatedAt = s.now().UTC()

	if err := s.notificationRepo.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	s.logger.Info("Notification queued",
		"notification_id", n.ID,
		"recipient_id", n.RecipientID,
		"type", n.Type,
		"channels", strings.Join(n.Channels, ","),
	)
	return nil
}

// DispatchPending delivers queued notifications.
// Per-notification failures are recorded on the row and do not stop the batch.
func (s *notificationServiceImpl) DispatchPending(ctx context.Context, limit int) (int, error) {
	pending, err := s.notificationRepo.ListPending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending notifications: %w", err)
	}

	for _, n := range pending {
		if err := s.deliver(ctx, n); err != nil {
			s.logger.Error("Failed to deliver notification", "error", err, "notification_id", n.ID, "recipient_id", n.RecipientID)
			if markErr := s.notificationRepo.MarkFailed(ctx, n.ID, err.Error()); markErr != nil {
				s.logger.Error("Failed to mark notification failed", "error", markErr, "notification_id", n.ID)
			}
			continue
		}
		if err := s.notificationRepo.MarkSent(ctx, n.ID, s.now().UTC()); err != nil {
			s.logger.Error("Failed to mark notification sent", "error", err, "notification_id", n.ID)
		}
	}

	return len(pending), nil
}

// deliver pushes a notification to its chat channels; in-app delivery is the outbox row itself
func (s *notificationServiceImpl) deliver(ctx context.Context, n *entity.Notification) error {
	if !n.HasChannel(entity.ChannelLark) || s.messageSender == nil {
		return nil
	}

	user, err := s.userRepo.GetByID(ctx, n.RecipientID)
	if errors.Is(err, port.ErrNotFound) {
		s.logger.Warn("Notification recipient unknown, skipping chat delivery", "recipient_id", n.RecipientID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get recipient: %w", err)
	}
	if user.LarkOpenID == "" {
		s.logger.Warn("Recipient has no Lark identity, skipping chat delivery", "recipient_id", n.RecipientID)
		return nil
	}

	if err := s.messageSender.SendText(ctx, user.LarkOpenID, renderMessage(n)); err != nil {
		return fmt.Errorf("send lark message: %w", err)
	}
	return nil
}

func renderMessage(n *entity.Notification) string {
	var b strings.Builder
	b.WriteString(n.Title)
	b.WriteString("\n\n")
	b.WriteString(n.Message)
	if n.ActionURL != "" {
		b.WriteString("\n\n")
		b.WriteString(n.ActionURL)
	}
	return b.String()
}
