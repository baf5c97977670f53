package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bkaraoglu/finishline/internal/domain"
	"github.com/bkaraoglu/finishline/internal/notify"
	"github.com/bkaraoglu/finishline/internal/observability"
	"github.com/bkaraoglu/finishline/internal/queue"
	"github.com/bkaraoglu/finishline/internal/repository"
	"go.uber.org/zap"
)

// Checker decides from durable state whether a batch is finished. It performs
// no work-unit logic and writes nothing, so concurrent duplicate checks are
// harmless: the observer tolerates duplicate "complete" payloads and cleanup
// is idempotent.
type Checker struct {
	batches   repository.BatchRepository
	tasks     repository.TaskRepository
	notifier  notify.Notifier
	publisher queue.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics

	// notifyProgress mirrors an older revision that pinged the observer on
	// every partial check. Off by default; purely telemetry.
	notifyProgress bool
}

func NewChecker(
	batches repository.BatchRepository,
	tasks repository.TaskRepository,
	notifier notify.Notifier,
	publisher queue.Publisher,
	notifyProgress bool,
	logger *zap.Logger,
) (*Checker, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if tasks == nil {
		return nil, fmt.Errorf("task repository is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Checker{
		batches:        batches,
		tasks:          tasks,
		notifier:       notifier,
		publisher:      publisher,
		notifyProgress: notifyProgress,
		logger:         logger,
	}, nil
}

func (c *Checker) SetMetrics(metrics *observability.Metrics) {
	if c == nil {
		return
	}
	c.metrics = metrics
}

// Check evaluates the batch. Loaded and zero incomplete tasks means done: the
// observer gets a "complete" payload and a cleanup sweep is scheduled. A batch
// that is gone was already cleaned up; the check is a stale duplicate.
func (c *Checker) Check(ctx context.Context, batchID string) error {
	batch, err := c.batches.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.logger.Debug("check for absent batch, likely already cleaned up",
				zap.String("batchId", batchID),
			)
			return nil
		}
		return fmt.Errorf("failed to load batch %q: %w", batchID, err)
	}

	if !batch.AllTasksLoaded {
		c.progress(ctx, batchID)
		return nil
	}

	incomplete, err := c.tasks.HasIncomplete(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to query incomplete tasks of batch %q: %w", batchID, err)
	}
	if incomplete {
		c.progress(ctx, batchID)
		return nil
	}

	// Best effort: the channel contract is fire-and-forget, and a failed send
	// must not block cleanup of a finished batch.
	if err := c.notifier.Send(ctx, batchID, notify.StatusMessage{Status: notify.StatusComplete}); err != nil {
		c.logger.Warn("failed to send completion notification",
			zap.String("batchId", batchID),
			zap.Error(err),
		)
	}

	if c.metrics != nil {
		c.metrics.IncBatchCompleted()
	}
	c.logger.Info("batch complete", zap.String("batchId", batchID))

	payload, err := queue.EncodeCleanupMessage(queue.CleanupMessage{BatchID: batchID})
	if err != nil {
		return err
	}
	if err := c.publisher.Publish(ctx, queue.QueueCleanup, payload); err != nil {
		return fmt.Errorf("failed to schedule cleanup of batch %q: %w", batchID, err)
	}

	return nil
}

func (c *Checker) progress(ctx context.Context, batchID string) {
	if !c.notifyProgress {
		return
	}
	if err := c.notifier.Send(ctx, batchID, notify.StatusMessage{Status: notify.StatusIncomplete}); err != nil {
		c.logger.Debug("failed to send progress notification",
			zap.String("batchId", batchID),
			zap.Error(err),
		)
	}
}
