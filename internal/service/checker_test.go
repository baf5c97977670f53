package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bkaraoglu/finishline/internal/domain"
	"github.com/bkaraoglu/finishline/internal/notify"
	"github.com/bkaraoglu/finishline/internal/queue"
)

func loadedBatchRepo(allLoaded bool) *fakeBatchRepo {
	return &fakeBatchRepo{
		getFn: func(ctx context.Context, id string) (*domain.Batch, error) {
			return &domain.Batch{ID: id, AllTasksLoaded: allLoaded}, nil
		},
	}
}

func TestCheckerCompleteBatchNotifiesAndSchedulesCleanup(t *testing.T) {
	t.Parallel()

	notified := false
	notifier := &fakeNotifier{
		sendFn: func(ctx context.Context, address string, msg notify.StatusMessage) error {
			if address != "batch-1" {
				t.Fatalf("notification address = %s, want batch-1", address)
			}
			if msg.Status != notify.StatusComplete {
				t.Fatalf("status = %s, want %s", msg.Status, notify.StatusComplete)
			}
			notified = true
			return nil
		},
	}
	cleanupScheduled := false
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, body []byte) error {
			if queueName != queue.QueueCleanup {
				t.Fatalf("published to %s, want %s", queueName, queue.QueueCleanup)
			}
			msg, err := queue.DecodeCleanupMessage(body)
			if err != nil {
				t.Fatalf("cleanup payload invalid: %v", err)
			}
			if msg.BatchID != "batch-1" {
				t.Fatalf("cleanup batch = %s, want batch-1", msg.BatchID)
			}
			cleanupScheduled = true
			return nil
		},
	}

	c, err := NewChecker(loadedBatchRepo(true), &fakeTaskRepo{}, notifier, publisher, false, nil)
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}

	if err := c.Check(context.Background(), "batch-1"); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !notified {
		t.Fatal("expected a complete notification")
	}
	if !cleanupScheduled {
		t.Fatal("expected a cleanup sweep to be scheduled")
	}
}

func TestCheckerIncompleteTasksSendNothingByDefault(t *testing.T) {
	t.Parallel()

	tasks := &fakeTaskRepo{
		hasIncompleteFn: func(ctx context.Context, batchID string) (bool, error) {
			return true, nil
		},
	}
	notifier := &fakeNotifier{
		sendFn: func(ctx context.Context, address string, msg notify.StatusMessage) error {
			t.Fatalf("unexpected notification %q while tasks remain", msg.Status)
			return nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, body []byte) error {
			t.Fatal("no cleanup may be scheduled while tasks remain")
			return nil
		},
	}

	c, err := NewChecker(loadedBatchRepo(true), tasks, notifier, publisher, false, nil)
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}

	if err := c.Check(context.Background(), "batch-1"); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
}

func TestCheckerNotLoadedNeverCompletes(t *testing.T) {
	t.Parallel()

	tasks := &fakeTaskRepo{
		hasIncompleteFn: func(ctx context.Context, batchID string) (bool, error) {
			t.Fatal("incomplete query is pointless before loading finishes")
			return false, nil
		},
	}
	notifier := &fakeNotifier{
		sendFn: func(ctx context.Context, address string, msg notify.StatusMessage) error {
			t.Fatal("no notification may be sent before loading finishes")
			return nil
		},
	}

	c, err := NewChecker(loadedBatchRepo(false), tasks, notifier, &fakePublisher{}, false, nil)
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}

	if err := c.Check(context.Background(), "batch-1"); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
}

func TestCheckerProgressNotificationsWhenEnabled(t *testing.T) {
	t.Parallel()

	var statuses []string
	notifier := &fakeNotifier{
		sendFn: func(ctx context.Context, address string, msg notify.StatusMessage) error {
			statuses = append(statuses, msg.Status)
			return nil
		},
	}
	tasks := &fakeTaskRepo{
		hasIncompleteFn: func(ctx context.Context, batchID string) (bool, error) {
			return true, nil
		},
	}

	c, err := NewChecker(loadedBatchRepo(true), tasks, notifier, &fakePublisher{}, true, nil)
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}

	if err := c.Check(context.Background(), "batch-1"); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(statuses) != 1 || statuses[0] != notify.StatusIncomplete {
		t.Fatalf("statuses = %v, want one %q", statuses, notify.StatusIncomplete)
	}
}

func TestCheckerAbsentBatchIsStaleDuplicate(t *testing.T) {
	t.Parallel()

	c, err := NewChecker(&fakeBatchRepo{}, &fakeTaskRepo{}, &fakeNotifier{}, &fakePublisher{}, false, nil)
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}

	if err := c.Check(context.Background(), "gone"); err != nil {
		t.Fatalf("Check() on absent batch = %v, want nil", err)
	}
}

func TestCheckerNotificationFailureStillSchedulesCleanup(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{
		sendFn: func(ctx context.Context, address string, msg notify.StatusMessage) error {
			return errors.New("channel closed")
		},
	}
	cleanupScheduled := false
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, body []byte) error {
			cleanupScheduled = true
			return nil
		},
	}

	c, err := NewChecker(loadedBatchRepo(true), &fakeTaskRepo{}, notifier, publisher, false, nil)
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}

	if err := c.Check(context.Background(), "batch-1"); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !cleanupScheduled {
		t.Fatal("a dead notification channel must not block cleanup")
	}
}

func TestCheckerCleanupPublishFailureSurfacesForRedelivery(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, body []byte) error {
			return errors.New("broker unavailable")
		},
	}

	c, err := NewChecker(loadedBatchRepo(true), &fakeTaskRepo{}, &fakeNotifier{}, publisher, false, nil)
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}

	if err := c.Check(context.Background(), "batch-1"); err == nil {
		t.Fatal("a failed cleanup publish must surface so the check is redelivered")
	}
}
