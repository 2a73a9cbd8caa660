package port

import (
	"context"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// NotificationSink accepts notifications for delivery.
// Delivery is asynchronous from the caller's point of view.
type NotificationSink interface {
	CreateNotification(ctx context.Context, n *entity.Notification) error
}

// MessageSender delivers a rendered message to one chat user
type MessageSender interface {
	SendText(ctx context.Context, openID string, content string) error
}
