package service

import (
	"context"
	"fmt"

	"github.com/bkaraoglu/finishline/internal/observability"
	"github.com/bkaraoglu/finishline/internal/outbox"
	"github.com/bkaraoglu/finishline/internal/queue"
	"github.com/bkaraoglu/finishline/internal/repository"
	"go.uber.org/zap"
)

const defaultCleanupPageSize = 100

// Sweeper reclaims a finished batch's records in bounded pages. Each page
// delete commits together with the next sweep step, so a crash mid-cleanup
// resumes from durable state. Sweeping an already-clean batch is a no-op.
type Sweeper struct {
	batches    repository.BatchRepository
	tasks      repository.TaskRepository
	executions repository.ExecutionRepository
	logger     *zap.Logger
	metrics    *observability.Metrics
	pageSize   int
}

func NewSweeper(
	batches repository.BatchRepository,
	tasks repository.TaskRepository,
	executions repository.ExecutionRepository,
	pageSize int,
	logger *zap.Logger,
) (*Sweeper, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if tasks == nil {
		return nil, fmt.Errorf("task repository is required")
	}
	if executions == nil {
		return nil, fmt.Errorf("execution repository is required")
	}
	if pageSize <= 0 {
		pageSize = defaultCleanupPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sweeper{
		batches:    batches,
		tasks:      tasks,
		executions: executions,
		pageSize:   pageSize,
		logger:     logger,
	}, nil
}

func (s *Sweeper) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Sweep deletes one page of task records and schedules the next step, or, once
// no tasks remain, reclaims the execution log and the batch record itself.
func (s *Sweeper) Sweep(ctx context.Context, batchID string) error {
	ids, err := s.tasks.ListIDsPage(ctx, batchID, s.pageSize)
	if err != nil {
		return fmt.Errorf("failed to list task page of batch %q: %w", batchID, err)
	}

	if len(ids) > 0 {
		payload, err := queue.EncodeCleanupMessage(queue.CleanupMessage{BatchID: batchID})
		if err != nil {
			return err
		}

		if err := s.tasks.DeleteByIDsWithEnqueue(ctx, ids, outbox.NewMessage(queue.QueueCleanup, payload)); err != nil {
			return fmt.Errorf("failed to delete task page of batch %q: %w", batchID, err)
		}

		if s.metrics != nil {
			s.metrics.IncCleanupPage()
		}
		s.logger.Debug("cleanup page deleted",
			zap.String("batchId", batchID),
			zap.Int("tasks", len(ids)),
		)
		return nil
	}

	if err := s.executions.DeleteByBatch(ctx, batchID); err != nil {
		return fmt.Errorf("failed to delete execution log of batch %q: %w", batchID, err)
	}

	// Deleting an already-absent batch is success, not an error.
	if err := s.batches.Delete(ctx, batchID); err != nil {
		return fmt.Errorf("failed to delete batch %q: %w", batchID, err)
	}

	if s.metrics != nil {
		s.metrics.IncBatchReclaimed()
	}
	s.logger.Info("batch cleaned up", zap.String("batchId", batchID))

	return nil
}
