package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// EscalationSweeper is the part of the escalation manager the timeout worker drives
type EscalationSweeper interface {
	ListDueEscalations(ctx context.Context, now time.Time, limit int) ([]*entity.EscalationPath, error)
	ProcessEscalationTimeout(ctx context.Context, pathID int64, now time.Time) (*entity.EscalationPath, error)
}

// EscalationTimeoutWorker periodically advances escalation paths whose deadline passed
type EscalationTimeoutWorker struct {
	poller
	sweeper   EscalationSweeper
	batchSize int
	now       func() time.Time
}

// NewEscalationTimeoutWorker creates a new escalation timeout worker
func NewEscalationTimeoutWorker(sweeper EscalationSweeper, interval time.Duration, batchSize int, logger *zap.Logger) *EscalationTimeoutWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	w := &EscalationTimeoutWorker{
		sweeper:   sweeper,
		batchSize: batchSize,
		now:       time.Now,
	}
	w.poller = poller{
		name:     "EscalationTimeoutWorker",
		interval: interval,
		logger:   logger,
	}
	w.poller.tick = func(ctx context.Context) {
		if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Escalation sweep failed", zap.Error(err))
		}
	}
	return w
}

// RunOnce processes one batch of due escalations and returns how many were advanced.
// A failing path is logged and skipped so it is retried on the next sweep.
func (w *EscalationTimeoutWorker) RunOnce(ctx context.Context) (int, error) {
	now := w.now().UTC()
	due, err := w.sweeper.ListDueEscalations(ctx, now, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	processed := 0
	for _, path := range due {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		next, err := w.sweeper.ProcessEscalationTimeout(ctx, path.ID, now)
		if err != nil {
			w.logger.Error("Failed to process escalation timeout",
				zap.Int64("path_id", path.ID),
				zap.Int64("approval_record_id", path.ApprovalRecordID),
				zap.Error(err))
			continue
		}
		processed++
		w.logger.Info("Escalation timed out",
			zap.Int64("path_id", path.ID),
			zap.String("level", string(path.Level)),
			zap.Int64("result_path_id", next.ID),
			zap.String("result_level", string(next.Level)))
	}

	w.logger.Info("Escalation sweep completed",
		zap.Int("due", len(due)),
		zap.Int("processed", processed))
	return processed, nil
}
