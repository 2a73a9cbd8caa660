package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
)

// NotificationRepository implements port.NotificationRepository as an outbox table
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create queues a notification
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (
			recipient_id, type, category, priority, title, message, action_url,
			data, channels, status, sent_at, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	data := n.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	dataJSON, err := marshalJSON(data)
	if err != nil {
		return err
	}
	channels, err := marshalJSON(nonNilStrings(n.Channels))
	if err != nil {
		return err
	}
	if n.Status == "" {
		n.Status = entity.NotificationStatusPending
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		n.RecipientID,
		n.Type,
		n.Category,
		n.Priority,
		n.Title,
		n.Message,
		n.ActionURL,
		dataJSON,
		channels,
		n.Status,
		nullTime(n.SentAt),
		n.ErrorMessage,
		n.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("recipient_id", n.RecipientID),
			zap.String("type", n.Type),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	n.ID = id
	return nil
}

// ListPending returns undelivered notifications, oldest first
func (r *NotificationRepository) ListPending(ctx context.Context, limit int) ([]*entity.Notification, error) {
	query := `
		SELECT id, recipient_id, type, category, priority, title, message, action_url,
			data, channels, status, sent_at, error_message, created_at
		FROM notifications
		WHERE status = ?
		ORDER BY id ASC
		LIMIT ?
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, entity.NotificationStatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to list pending notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*entity.Notification
	for rows.Next() {
		var n entity.Notification
		var data, channels string
		var sentAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Category, &n.Priority, &n.Title,
			&n.Message, &n.ActionURL, &data, &channels, &n.Status, &sentAt, &n.ErrorMessage,
			&n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if err := unmarshalJSON(data, &n.Data); err != nil {
			return nil, fmt.Errorf("notification %d: %w", n.ID, err)
		}
		if err := unmarshalJSON(channels, &n.Channels); err != nil {
			return nil, fmt.Errorf("notification %d: %w", n.ID, err)
		}
		n.SentAt = timePtr(sentAt)
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// MarkSent marks a notification delivered
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE notifications SET status = ?, sent_at = ?, error_message = '' WHERE id = ?`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, entity.NotificationStatusSent, at.UTC(), id)
	if err != nil {
		r.logger.Error("Failed to mark notification as sent", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark as sent: %w", err)
	}
	return nil
}

// MarkFailed marks a notification failed with an error message
func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	query := `UPDATE notifications SET status = ?, error_message = ? WHERE id = ?`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, entity.NotificationStatusFailed, errMsg, id)
	if err != nil {
		r.logger.Error("Failed to mark notification as failed", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark as failed: %w", err)
	}
	return nil
}
