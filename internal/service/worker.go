package service

import (
	"context"
	"fmt"

	"github.com/bkaraoglu/finishline/internal/observability"
	"github.com/bkaraoglu/finishline/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 3

// Worker drives the three asynchronous step kinds off their queues. All
// coordination is through durable state transitions; a failed step is nacked
// and redelivered by the substrate.
type Worker struct {
	runner      *Runner
	checker     *Checker
	sweeper     *Sweeper
	consumer    queue.Consumer
	logger      *zap.Logger
	concurrency int
}

func NewWorker(
	runner *Runner,
	checker *Checker,
	sweeper *Sweeper,
	consumer queue.Consumer,
	concurrency int,
	logger *zap.Logger,
) (*Worker, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if checker == nil {
		return nil, fmt.Errorf("checker is required")
	}
	if sweeper == nil {
		return nil, fmt.Errorf("sweeper is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Worker{
		runner:      runner,
		checker:     checker,
		sweeper:     sweeper,
		consumer:    consumer,
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

// Start consumes the work queues until context cancellation. Consumers are
// spread round-robin over the queues so each queue always has at least one.
func (w *Worker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	queueNames := queue.WorkQueueNames()
	g, groupCtx := errgroup.WithContext(ctx)

	for i := 0; i < w.concurrency; i++ {
		queueName := queueNames[i%len(queueNames)]
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)

			err := w.consumer.Consume(groupCtx, queueName, w.handlerFor(queueName))
			if err != nil {
				w.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

func (w *Worker) handlerFor(queueName string) queue.MessageHandler {
	switch queueName {
	case queue.QueueTasks:
		return w.handleTask
	case queue.QueueCompletion:
		return w.handleCheck
	case queue.QueueCleanup:
		return w.handleCleanup
	default:
		return func(ctx context.Context, body []byte) error {
			return fmt.Errorf("%w: no handler for queue %q", queue.ErrReject, queueName)
		}
	}
}

func (w *Worker) handleTask(ctx context.Context, body []byte) error {
	msg, err := queue.DecodeTaskMessage(body)
	if err != nil {
		return fmt.Errorf("%w: %v", queue.ErrReject, err)
	}
	return w.runner.Run(observability.WithBatchID(ctx, msg.BatchID), msg)
}

func (w *Worker) handleCheck(ctx context.Context, body []byte) error {
	msg, err := queue.DecodeCheckMessage(body)
	if err != nil {
		return fmt.Errorf("%w: %v", queue.ErrReject, err)
	}
	return w.checker.Check(observability.WithBatchID(ctx, msg.BatchID), msg.BatchID)
}

func (w *Worker) handleCleanup(ctx context.Context, body []byte) error {
	msg, err := queue.DecodeCleanupMessage(body)
	if err != nil {
		return fmt.Errorf("%w: %v", queue.ErrReject, err)
	}
	return w.sweeper.Sweep(observability.WithBatchID(ctx, msg.BatchID), msg.BatchID)
}
