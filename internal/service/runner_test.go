package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/bkaraoglu/finishline/internal/domain"
	"github.com/bkaraoglu/finishline/internal/queue"
	"github.com/bkaraoglu/finishline/internal/work"
)

func testRegistry(t *testing.T, handler work.Handler) *work.Registry {
	t.Helper()
	registry := work.NewRegistry()
	if handler == nil {
		handler = func(ctx context.Context, params json.RawMessage) error { return nil }
	}
	if err := registry.Register("webhook", handler); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return registry
}

func taskMsg(taskID string) queue.TaskMessage {
	return queue.TaskMessage{
		TaskID:  taskID,
		BatchID: "batch-1",
		Kind:    "webhook",
		Params:  json.RawMessage(`{"url":"https://example.com"}`),
	}
}

func TestRunnerExecutesAndMarksComplete(t *testing.T) {
	t.Parallel()

	executed := false
	registry := testRegistry(t, func(ctx context.Context, params json.RawMessage) error {
		executed = true
		return nil
	})

	marked := false
	tasks := &fakeTaskRepo{
		getFn: func(ctx context.Context, id string) (*domain.Task, error) {
			return &domain.Task{ID: id, BatchID: "batch-1"}, nil
		},
		markCompletedFn: func(ctx context.Context, id string, msg *domain.OutboxMessage) error {
			if id != "task-1" {
				t.Fatalf("marked id = %s, want task-1", id)
			}
			if msg == nil || msg.Queue != queue.QueueCompletion {
				t.Fatalf("completion mark should stage a check message, got %+v", msg)
			}
			marked = true
			return nil
		},
	}

	recorded := false
	executions := &fakeExecutionRepo{
		createFn: func(ctx context.Context, e *domain.TaskExecution) error {
			if !e.OK {
				t.Fatalf("execution record should be ok, got error %v", e.Error)
			}
			if e.TaskID != "task-1" || e.BatchID != "batch-1" || e.Kind != "webhook" {
				t.Fatalf("execution record mismatch: %+v", e)
			}
			recorded = true
			return nil
		},
	}

	r, err := NewRunner(tasks, executions, registry, &fakeRateLimiter{}, nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	if err := r.Run(context.Background(), taskMsg("task-1")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !executed {
		t.Fatal("expected the work unit to run")
	}
	if !marked {
		t.Fatal("expected the task to be marked complete")
	}
	if !recorded {
		t.Fatal("expected an execution record")
	}
}

func TestRunnerWorkUnitFailureStillCompletesTask(t *testing.T) {
	t.Parallel()

	registry := testRegistry(t, func(ctx context.Context, params json.RawMessage) error {
		return errors.New("downstream exploded")
	})

	marked := false
	tasks := &fakeTaskRepo{
		getFn: func(ctx context.Context, id string) (*domain.Task, error) {
			return &domain.Task{ID: id, BatchID: "batch-1"}, nil
		},
		markCompletedFn: func(ctx context.Context, id string, msg *domain.OutboxMessage) error {
			marked = true
			return nil
		},
	}
	var recordedErr *string
	executions := &fakeExecutionRepo{
		createFn: func(ctx context.Context, e *domain.TaskExecution) error {
			if e.OK {
				t.Fatal("failed execution must not be recorded as ok")
			}
			recordedErr = e.Error
			return nil
		},
	}

	r, err := NewRunner(tasks, executions, registry, &fakeRateLimiter{}, nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	if err := r.Run(context.Background(), taskMsg("task-1")); err != nil {
		t.Fatalf("Run() error = %v, work unit failures must be swallowed", err)
	}
	if !marked {
		t.Fatal("task must be marked complete even when the work unit fails")
	}
	if recordedErr == nil || *recordedErr == "" {
		t.Fatal("the work unit error should be retained in the execution record")
	}
}

func TestRunnerUnknownKindStillCompletesTask(t *testing.T) {
	t.Parallel()

	marked := false
	tasks := &fakeTaskRepo{
		getFn: func(ctx context.Context, id string) (*domain.Task, error) {
			return &domain.Task{ID: id, BatchID: "batch-1"}, nil
		},
		markCompletedFn: func(ctx context.Context, id string, msg *domain.OutboxMessage) error {
			marked = true
			return nil
		},
	}

	r, err := NewRunner(tasks, &fakeExecutionRepo{}, work.NewRegistry(), &fakeRateLimiter{}, nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	if err := r.Run(context.Background(), taskMsg("task-1")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !marked {
		t.Fatal("unresolvable kinds still count as executed")
	}
}

func TestRunnerRedeliverySkipsWorkUnit(t *testing.T) {
	t.Parallel()

	registry := testRegistry(t, func(ctx context.Context, params json.RawMessage) error {
		t.Fatal("completed task must not re-run its work unit")
		return nil
	})

	marked := false
	tasks := &fakeTaskRepo{
		getFn: func(ctx context.Context, id string) (*domain.Task, error) {
			return &domain.Task{ID: id, BatchID: "batch-1", Completed: true}, nil
		},
		markCompletedFn: func(ctx context.Context, id string, msg *domain.OutboxMessage) error {
			if msg == nil || msg.Queue != queue.QueueCompletion {
				t.Fatal("redelivery must still re-trigger the completion check")
			}
			marked = true
			return nil
		},
	}

	r, err := NewRunner(tasks, &fakeExecutionRepo{}, registry, &fakeRateLimiter{}, nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	if err := r.Run(context.Background(), taskMsg("task-1")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !marked {
		t.Fatal("redelivered task should still be re-marked complete")
	}
}

func TestRunnerMissingTaskDeadLetters(t *testing.T) {
	t.Parallel()

	r, err := NewRunner(&fakeTaskRepo{}, &fakeExecutionRepo{}, testRegistry(t, nil), &fakeRateLimiter{}, nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	err = r.Run(context.Background(), taskMsg("missing"))
	if !errors.Is(err, queue.ErrReject) {
		t.Fatalf("Run() error = %v, want dead-letter rejection", err)
	}
}

func TestRunnerTransientStoreErrorRequeues(t *testing.T) {
	t.Parallel()

	tasks := &fakeTaskRepo{
		getFn: func(ctx context.Context, id string) (*domain.Task, error) {
			return nil, errors.New("connection reset")
		},
	}

	r, err := NewRunner(tasks, &fakeExecutionRepo{}, testRegistry(t, nil), &fakeRateLimiter{}, nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	err = r.Run(context.Background(), taskMsg("task-1"))
	if err == nil {
		t.Fatal("Run() should surface store errors for redelivery")
	}
	if errors.Is(err, queue.ErrReject) {
		t.Fatal("store errors must requeue, not dead-letter")
	}
}

func TestRunnerLimiterFailureDoesNotBlockExecution(t *testing.T) {
	t.Parallel()

	executed := false
	registry := testRegistry(t, func(ctx context.Context, params json.RawMessage) error {
		executed = true
		return nil
	})
	limiter := &fakeRateLimiter{
		waitFn: func(ctx context.Context, kind string) error {
			return errors.New("redis gone")
		},
	}
	tasks := &fakeTaskRepo{
		getFn: func(ctx context.Context, id string) (*domain.Task, error) {
			return &domain.Task{ID: id, BatchID: "batch-1"}, nil
		},
		markCompletedFn: func(ctx context.Context, id string, msg *domain.OutboxMessage) error {
			return nil
		},
	}

	r, err := NewRunner(tasks, &fakeExecutionRepo{}, registry, limiter, nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	if err := r.Run(context.Background(), taskMsg("task-1")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !executed {
		t.Fatal("limiter failures must not prevent execution")
	}
}
