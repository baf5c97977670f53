package repository

import (
	"context"
	"time"

	"github.com/bkaraoglu/finishline/internal/domain"
	"gorm.io/gorm"
)

type OutboxRepository interface {
	// Enqueue stages a message outside of any surrounding transaction. Writes
	// that must commit together with their message go through the *WithEnqueue
	// repo methods instead.
	Enqueue(ctx context.Context, msg *domain.OutboxMessage) error
	ListUndispatched(ctx context.Context, limit int) ([]domain.OutboxMessage, error)
	MarkDispatched(ctx context.Context, id string) error
	// DeleteDispatchedBefore prunes relayed messages older than the cutoff.
	DeleteDispatchedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormOutboxRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormOutboxRepo(db *gorm.DB) *GormOutboxRepo {
	return &GormOutboxRepo{db: db, now: time.Now}
}

func (r *GormOutboxRepo) Enqueue(ctx context.Context, msg *domain.OutboxMessage) error {
	return r.db.WithContext(ctx).Create(outboxModelFromDomain(msg)).Error
}

func (r *GormOutboxRepo) ListUndispatched(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit < 1 {
		limit = 1
	}

	var models []OutboxMessageModel
	err := r.db.WithContext(ctx).
		Where("dispatched_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]domain.OutboxMessage, 0, len(models))
	for i := range models {
		messages = append(messages, *outboxModelToDomain(&models[i]))
	}
	return messages, nil
}

func (r *GormOutboxRepo) MarkDispatched(ctx context.Context, id string) error {
	dispatchedAt := r.now().UTC()
	result := r.db.WithContext(ctx).
		Model(&OutboxMessageModel{}).
		Where("id = ? AND dispatched_at IS NULL", id).
		Update("dispatched_at", dispatchedAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormOutboxRepo) DeleteDispatchedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Delete(&OutboxMessageModel{}, "dispatched_at IS NOT NULL AND dispatched_at < ?", cutoff)
	return result.RowsAffected, result.Error
}
