package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// NotificationDispatcher delivers queued notifications
type NotificationDispatcher interface {
	DispatchPending(ctx context.Context, limit int) (int, error)
}

// NotificationDispatchWorker periodically drains the notification outbox
type NotificationDispatchWorker struct {
	poller
	dispatcher NotificationDispatcher
	batchSize  int
}

// NewNotificationDispatchWorker creates a new notification dispatch worker
func NewNotificationDispatchWorker(dispatcher NotificationDispatcher, interval time.Duration, batchSize int, logger *zap.Logger) *NotificationDispatchWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	w := &NotificationDispatchWorker{
		dispatcher: dispatcher,
		batchSize:  batchSize,
	}
	w.poller = poller{
		name:     "NotificationDispatchWorker",
		interval: interval,
		logger:   logger,
		tick:     w.drain,
	}
	return w
}

// drain dispatches full batches until the outbox is empty or a batch fails
func (w *NotificationDispatchWorker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.dispatcher.DispatchPending(ctx, w.batchSize)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				w.logger.Error("Notification dispatch failed", zap.Error(err))
			}
			return
		}
		if n < w.batchSize {
			return
		}
	}
}
