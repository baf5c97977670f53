package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bkaraoglu/finishline/internal/domain"
	"github.com/bkaraoglu/finishline/internal/notify"
)

type fakeBatchRepo struct {
	createFn     func(ctx context.Context, b *domain.Batch) error
	getFn        func(ctx context.Context, id string) (*domain.Batch, error)
	markLoadedFn func(ctx context.Context, id string, msg *domain.OutboxMessage) error
	deleteFn     func(ctx context.Context, id string) error
}

func (f *fakeBatchRepo) Create(ctx context.Context, b *domain.Batch) error {
	if f.createFn != nil {
		return f.createFn(ctx, b)
	}
	return nil
}

func (f *fakeBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return nil, fmt.Errorf("batch %s: %w", id, domain.ErrNotFound)
}

func (f *fakeBatchRepo) MarkLoadedWithEnqueue(ctx context.Context, id string, msg *domain.OutboxMessage) error {
	if f.markLoadedFn != nil {
		return f.markLoadedFn(ctx, id, msg)
	}
	return nil
}

func (f *fakeBatchRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeTaskRepo struct {
	createFn          func(ctx context.Context, t *domain.Task, msg *domain.OutboxMessage) error
	getFn             func(ctx context.Context, id string) (*domain.Task, error)
	markCompletedFn   func(ctx context.Context, id string, msg *domain.OutboxMessage) error
	hasIncompleteFn   func(ctx context.Context, batchID string) (bool, error)
	countIncompleteFn func(ctx context.Context, batchID string) (int64, error)
	listIDsPageFn     func(ctx context.Context, batchID string, limit int) ([]string, error)
	deleteByIDsFn     func(ctx context.Context, ids []string, msg *domain.OutboxMessage) error
}

func (f *fakeTaskRepo) CreateWithEnqueue(ctx context.Context, t *domain.Task, msg *domain.OutboxMessage) error {
	if f.createFn != nil {
		return f.createFn(ctx, t, msg)
	}
	return nil
}

func (f *fakeTaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
}

func (f *fakeTaskRepo) MarkCompletedWithEnqueue(ctx context.Context, id string, msg *domain.OutboxMessage) error {
	if f.markCompletedFn != nil {
		return f.markCompletedFn(ctx, id, msg)
	}
	return nil
}

func (f *fakeTaskRepo) HasIncomplete(ctx context.Context, batchID string) (bool, error) {
	if f.hasIncompleteFn != nil {
		return f.hasIncompleteFn(ctx, batchID)
	}
	return false, nil
}

func (f *fakeTaskRepo) CountIncomplete(ctx context.Context, batchID string) (int64, error) {
	if f.countIncompleteFn != nil {
		return f.countIncompleteFn(ctx, batchID)
	}
	return 0, nil
}

func (f *fakeTaskRepo) ListIDsPage(ctx context.Context, batchID string, limit int) ([]string, error) {
	if f.listIDsPageFn != nil {
		return f.listIDsPageFn(ctx, batchID, limit)
	}
	return nil, nil
}

func (f *fakeTaskRepo) DeleteByIDsWithEnqueue(ctx context.Context, ids []string, msg *domain.OutboxMessage) error {
	if f.deleteByIDsFn != nil {
		return f.deleteByIDsFn(ctx, ids, msg)
	}
	return nil
}

type fakeOutboxRepo struct {
	enqueueFn func(ctx context.Context, msg *domain.OutboxMessage) error
}

func (f *fakeOutboxRepo) Enqueue(ctx context.Context, msg *domain.OutboxMessage) error {
	if f.enqueueFn != nil {
		return f.enqueueFn(ctx, msg)
	}
	return nil
}

func (f *fakeOutboxRepo) ListUndispatched(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	return nil, nil
}

func (f *fakeOutboxRepo) MarkDispatched(ctx context.Context, id string) error {
	return nil
}

func (f *fakeOutboxRepo) DeleteDispatchedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeExecutionRepo struct {
	createFn        func(ctx context.Context, e *domain.TaskExecution) error
	deleteByBatchFn func(ctx context.Context, batchID string) error
}

func (f *fakeExecutionRepo) Create(ctx context.Context, e *domain.TaskExecution) error {
	if f.createFn != nil {
		return f.createFn(ctx, e)
	}
	return nil
}

func (f *fakeExecutionRepo) DeleteByBatch(ctx context.Context, batchID string) error {
	if f.deleteByBatchFn != nil {
		return f.deleteByBatchFn(ctx, batchID)
	}
	return nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, body []byte) error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, body []byte) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, body)
	}
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeNotifier struct {
	sendFn func(ctx context.Context, address string, msg notify.StatusMessage) error
}

func (f *fakeNotifier) Send(ctx context.Context, address string, msg notify.StatusMessage) error {
	if f.sendFn != nil {
		return f.sendFn(ctx, address, msg)
	}
	return nil
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, kind string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, kind string) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, kind string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, kind)
	}
	return nil
}
