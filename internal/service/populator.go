package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bkaraoglu/finishline/internal/domain"
	"github.com/bkaraoglu/finishline/internal/outbox"
	"github.com/bkaraoglu/finishline/internal/queue"
	"github.com/bkaraoglu/finishline/internal/repository"
	"github.com/bkaraoglu/finishline/internal/work"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Populator creates a batch, one task record per work unit, and the staged
// runner messages, then flips all_tasks_loaded and triggers a completion
// check. The check-after-load step covers the race where every runner finished
// before loading completed.
type Populator struct {
	batches repository.BatchRepository
	tasks   repository.TaskRepository
	staging repository.OutboxRepository
	logger  *zap.Logger
}

func NewPopulator(
	batches repository.BatchRepository,
	tasks repository.TaskRepository,
	staging repository.OutboxRepository,
	logger *zap.Logger,
) (*Populator, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if tasks == nil {
		return nil, fmt.Errorf("task repository is required")
	}
	if staging == nil {
		return nil, fmt.Errorf("outbox repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Populator{
		batches: batches,
		tasks:   tasks,
		staging: staging,
		logger:  logger,
	}, nil
}

// Populate registers the batch and its work units. Failure to create the
// batch record leaves nothing behind; any later failure, task create or the
// loaded-flag update, aborts the whole batch and schedules a cleanup sweep so
// the records already written are reclaimed rather than silently leaked.
func (p *Populator) Populate(ctx context.Context, batchID string, units []work.Unit) error {
	if ctx == nil {
		ctx = context.Background()
	}

	batchID = strings.TrimSpace(batchID)
	batch := &domain.Batch{ID: batchID}
	if err := batch.Validate(); err != nil {
		return err
	}
	for i := range units {
		if err := units[i].Validate(); err != nil {
			return fmt.Errorf("%w: work unit %d: %v", domain.ErrValidation, i, err)
		}
	}

	if err := p.batches.Create(ctx, batch); err != nil {
		return fmt.Errorf("failed to create batch %q: %w", batchID, err)
	}

	for i := range units {
		task := &domain.Task{
			ID:      uuid.NewString(),
			BatchID: batchID,
		}

		payload, err := queue.EncodeTaskMessage(queue.TaskMessage{
			TaskID:  task.ID,
			BatchID: batchID,
			Kind:    units[i].Kind,
			Params:  units[i].Params,
		})
		if err != nil {
			p.abort(ctx, batchID)
			return err
		}

		if err := p.tasks.CreateWithEnqueue(ctx, task, outbox.NewMessage(queue.QueueTasks, payload)); err != nil {
			p.abort(ctx, batchID)
			return fmt.Errorf("failed to create task %d of batch %q: %w", i, batchID, err)
		}
	}

	checkPayload, err := queue.EncodeCheckMessage(queue.CheckMessage{BatchID: batchID})
	if err != nil {
		p.abort(ctx, batchID)
		return err
	}

	// A batch that never gets its loaded flag is invisible to the checker, so
	// this failure must also reclaim the records already written.
	if err := p.batches.MarkLoadedWithEnqueue(ctx, batchID, outbox.NewMessage(queue.QueueCompletion, checkPayload)); err != nil {
		p.abort(ctx, batchID)
		return fmt.Errorf("failed to mark batch %q loaded: %w", batchID, err)
	}

	p.logger.Info("batch populated",
		zap.String("batchId", batchID),
		zap.Int("tasks", len(units)),
	)

	return nil
}

// abort schedules a cleanup sweep for a partially populated batch. Best
// effort: the records are unreachable for completion anyway because
// all_tasks_loaded was never set.
func (p *Populator) abort(ctx context.Context, batchID string) {
	payload, err := queue.EncodeCleanupMessage(queue.CleanupMessage{BatchID: batchID})
	if err != nil {
		return
	}
	if err := p.staging.Enqueue(ctx, outbox.NewMessage(queue.QueueCleanup, payload)); err != nil {
		p.logger.Error("failed to schedule cleanup for aborted batch",
			zap.String("batchId", batchID),
			zap.Error(err),
		)
	}
}
