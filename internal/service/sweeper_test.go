package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bkaraoglu/finishline/internal/domain"
	"github.com/bkaraoglu/finishline/internal/queue"
)

func TestSweeperDeletesPageAndSchedulesNext(t *testing.T) {
	t.Parallel()

	page := []string{"t1", "t2", "t3"}
	var deleted []string
	tasks := &fakeTaskRepo{
		listIDsPageFn: func(ctx context.Context, batchID string, limit int) ([]string, error) {
			if limit != 3 {
				t.Fatalf("page limit = %d, want 3", limit)
			}
			return page, nil
		},
		deleteByIDsFn: func(ctx context.Context, ids []string, msg *domain.OutboxMessage) error {
			deleted = ids
			if msg == nil || msg.Queue != queue.QueueCleanup {
				t.Fatalf("page delete should stage the next sweep, got %+v", msg)
			}
			next, err := queue.DecodeCleanupMessage(msg.Payload)
			if err != nil {
				t.Fatalf("staged next sweep invalid: %v", err)
			}
			if next.BatchID != "batch-1" {
				t.Fatalf("next sweep batch = %s, want batch-1", next.BatchID)
			}
			return nil
		},
	}
	batches := &fakeBatchRepo{
		deleteFn: func(ctx context.Context, id string) error {
			t.Fatal("batch record must survive until all tasks are gone")
			return nil
		},
	}

	s, err := NewSweeper(batches, tasks, &fakeExecutionRepo{}, 3, nil)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}

	if err := s.Sweep(context.Background(), "batch-1"); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(deleted) != 3 {
		t.Fatalf("deleted %d tasks, want 3", len(deleted))
	}
}

func TestSweeperFinalStepReclaimsBatch(t *testing.T) {
	t.Parallel()

	executionsDeleted := false
	executions := &fakeExecutionRepo{
		deleteByBatchFn: func(ctx context.Context, batchID string) error {
			executionsDeleted = true
			return nil
		},
	}
	batchDeleted := false
	batches := &fakeBatchRepo{
		deleteFn: func(ctx context.Context, id string) error {
			if id != "batch-1" {
				t.Fatalf("deleted batch = %s, want batch-1", id)
			}
			batchDeleted = true
			return nil
		},
	}

	s, err := NewSweeper(batches, &fakeTaskRepo{}, executions, 100, nil)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}

	if err := s.Sweep(context.Background(), "batch-1"); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if !executionsDeleted {
		t.Fatal("expected the execution log to be reclaimed")
	}
	if !batchDeleted {
		t.Fatal("expected the batch record to be reclaimed")
	}
}

func TestSweeperDrainsLargeBatchInPages(t *testing.T) {
	t.Parallel()

	const pageSize = 100
	remaining := 250
	sweeps := 0

	tasks := &fakeTaskRepo{
		listIDsPageFn: func(ctx context.Context, batchID string, limit int) ([]string, error) {
			n := remaining
			if n > limit {
				n = limit
			}
			ids := make([]string, 0, n)
			for i := 0; i < n; i++ {
				ids = append(ids, fmt.Sprintf("t%d", i))
			}
			return ids, nil
		},
		deleteByIDsFn: func(ctx context.Context, ids []string, msg *domain.OutboxMessage) error {
			remaining -= len(ids)
			return nil
		},
	}

	s, err := NewSweeper(&fakeBatchRepo{}, tasks, &fakeExecutionRepo{}, pageSize, nil)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}

	// Drive the sweep chain the way redelivered cleanup messages would.
	for remaining > 0 || sweeps == 0 {
		sweeps++
		if sweeps > 10 {
			t.Fatal("sweep chain did not converge")
		}
		if err := s.Sweep(context.Background(), "batch-1"); err != nil {
			t.Fatalf("Sweep() #%d error = %v", sweeps, err)
		}
	}

	if sweeps != 3 {
		t.Fatalf("drained 250 tasks in %d sweeps, want 3 pages of %d", sweeps, pageSize)
	}
	if remaining != 0 {
		t.Fatalf("%d tasks left after drain", remaining)
	}
}

func TestSweeperCleanBatchIsNoOp(t *testing.T) {
	t.Parallel()

	// Everything is already gone; a duplicate sweep must still succeed.
	s, err := NewSweeper(&fakeBatchRepo{}, &fakeTaskRepo{}, &fakeExecutionRepo{}, 100, nil)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}

	if err := s.Sweep(context.Background(), "already-clean"); err != nil {
		t.Fatalf("Sweep() on clean batch = %v, want nil", err)
	}
}

func TestSweeperPageDeleteFailureSurfaces(t *testing.T) {
	t.Parallel()

	tasks := &fakeTaskRepo{
		listIDsPageFn: func(ctx context.Context, batchID string, limit int) ([]string, error) {
			return []string{"t1"}, nil
		},
		deleteByIDsFn: func(ctx context.Context, ids []string, msg *domain.OutboxMessage) error {
			return errors.New("deadlock detected")
		},
	}

	s, err := NewSweeper(&fakeBatchRepo{}, tasks, &fakeExecutionRepo{}, 100, nil)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}

	if err := s.Sweep(context.Background(), "batch-1"); err == nil {
		t.Fatal("a failed page delete must surface so the sweep is redelivered")
	}
}
