package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bkaraoglu/finishline/internal/domain"
	"github.com/bkaraoglu/finishline/internal/observability"
	"github.com/bkaraoglu/finishline/internal/outbox"
	"github.com/bkaraoglu/finishline/internal/queue"
	"github.com/bkaraoglu/finishline/internal/ratelimit"
	"github.com/bkaraoglu/finishline/internal/repository"
	"github.com/bkaraoglu/finishline/internal/work"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner executes one work unit and unconditionally marks its task complete.
// Work-unit failures are recorded and discarded; the tracker's completion
// semantics are about execution having occurred, not business success.
type Runner struct {
	tasks      repository.TaskRepository
	executions repository.ExecutionRepository
	registry   *work.Registry
	limiter    ratelimit.RateLimiter
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewRunner(
	tasks repository.TaskRepository,
	executions repository.ExecutionRepository,
	registry *work.Registry,
	limiter ratelimit.RateLimiter,
	logger *zap.Logger,
) (*Runner, error) {
	if tasks == nil {
		return nil, fmt.Errorf("task repository is required")
	}
	if executions == nil {
		return nil, fmt.Errorf("execution repository is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("work registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		tasks:      tasks,
		executions: executions,
		registry:   registry,
		limiter:    limiter,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (r *Runner) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

// Run processes one task message. A missing task record is a broken parent
// invariant: it is logged loudly and dead-lettered, never silently retried.
// Redelivery of an already-completed task skips the work unit and only
// re-triggers the completion check.
func (r *Runner) Run(ctx context.Context, msg queue.TaskMessage) error {
	task, err := r.tasks.GetByID(ctx, msg.TaskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.Error("task record missing at execution time, dead-lettering",
				zap.String("taskId", msg.TaskID),
				zap.String("batchId", msg.BatchID),
				zap.String("kind", msg.Kind),
			)
			return fmt.Errorf("%w: task %s does not exist", queue.ErrReject, msg.TaskID)
		}
		return fmt.Errorf("failed to load task %s: %w", msg.TaskID, err)
	}

	if !task.Completed {
		r.execute(ctx, task, msg)
	} else {
		r.logger.Debug("task already completed, skipping work unit",
			zap.String("taskId", task.ID),
			zap.String("batchId", task.BatchID),
		)
	}

	checkPayload, err := queue.EncodeCheckMessage(queue.CheckMessage{BatchID: task.BatchID})
	if err != nil {
		return err
	}

	err = r.tasks.MarkCompletedWithEnqueue(ctx, task.ID, outbox.NewMessage(queue.QueueCompletion, checkPayload))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.Error("task record vanished before completion mark, dead-lettering",
				zap.String("taskId", task.ID),
				zap.String("batchId", task.BatchID),
			)
			return fmt.Errorf("%w: task %s vanished", queue.ErrReject, task.ID)
		}
		return fmt.Errorf("failed to mark task %s complete: %w", task.ID, err)
	}

	if r.metrics != nil {
		r.metrics.IncTaskCompleted(msg.Kind)
	}

	return nil
}

// execute runs the work unit, rate limited per kind, and records the typed
// outcome. Nothing here may fail the surrounding Run: errors are retained for
// diagnosis and dropped.
func (r *Runner) execute(ctx context.Context, task *domain.Task, msg queue.TaskMessage) {
	logger := observability.WithContextLogger(r.logger, ctx)

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, msg.Kind); err != nil {
			logger.Warn("rate limiter wait failed, running work unit anyway",
				zap.String("taskId", task.ID),
				zap.String("kind", msg.Kind),
				zap.Error(err),
			)
		}
	}

	started := r.now()
	execErr := r.runUnit(ctx, msg)
	duration := r.now().Sub(started)

	if execErr != nil {
		logger.Warn("work unit failed",
			zap.String("taskId", task.ID),
			zap.String("kind", msg.Kind),
			zap.Bool("transient", work.IsTransient(execErr)),
			zap.Error(execErr),
		)
		if r.metrics != nil {
			r.metrics.IncWorkUnitFailed(msg.Kind)
		}
	}

	var errText *string
	if execErr != nil {
		value := execErr.Error()
		errText = &value
	}

	execution := &domain.TaskExecution{
		ID:         uuid.NewString(),
		TaskID:     task.ID,
		BatchID:    task.BatchID,
		Kind:       msg.Kind,
		OK:         execErr == nil,
		Error:      errText,
		DurationMs: duration.Milliseconds(),
		CreatedAt:  r.now().UTC(),
	}
	if err := r.executions.Create(ctx, execution); err != nil {
		logger.Warn("failed to record work unit execution",
			zap.String("taskId", task.ID),
			zap.Error(err),
		)
	}

	if r.metrics != nil {
		r.metrics.ObserveWorkUnitDuration(msg.Kind, duration)
	}
}

func (r *Runner) runUnit(ctx context.Context, msg queue.TaskMessage) error {
	handler, err := r.registry.Resolve(msg.Kind)
	if err != nil {
		return err
	}
	return handler(ctx, msg.Params)
}
