package repository

import (
	"context"
	"errors"

	"github.com/bkaraoglu/finishline/internal/domain"
	"gorm.io/gorm"
)

type TaskRepository interface {
	// CreateWithEnqueue persists the task and stages its runner message in one
	// transaction: the runner fires if and only if the record committed.
	CreateWithEnqueue(ctx context.Context, t *domain.Task, msg *domain.OutboxMessage) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	// MarkCompletedWithEnqueue sets completed = true and stages the completion
	// check message in the same transaction. The update never writes false, so
	// completed stays monotonic under redelivery.
	MarkCompletedWithEnqueue(ctx context.Context, id string, msg *domain.OutboxMessage) error
	// HasIncomplete reports whether any task of the batch is still incomplete.
	// Reads are consistent with all prior committed writes for the batch.
	HasIncomplete(ctx context.Context, batchID string) (bool, error)
	CountIncomplete(ctx context.Context, batchID string) (int64, error)
	// ListIDsPage returns up to limit task ids of the batch, ordered by id so
	// repeated sweeps progress deterministically.
	ListIDsPage(ctx context.Context, batchID string, limit int) ([]string, error)
	// DeleteByIDsWithEnqueue bulk-deletes the page and stages the next cleanup
	// step in the same transaction. Absent ids delete as a no-op.
	DeleteByIDsWithEnqueue(ctx context.Context, ids []string, msg *domain.OutboxMessage) error
}

type GormTaskRepo struct {
	db *gorm.DB
}

func NewGormTaskRepo(db *gorm.DB) *GormTaskRepo {
	return &GormTaskRepo{db: db}
}

func (r *GormTaskRepo) CreateWithEnqueue(ctx context.Context, t *domain.Task, msg *domain.OutboxMessage) error {
	model := taskModelFromDomain(t)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if msg != nil {
			if err := tx.Create(outboxModelFromDomain(msg)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if t != nil {
		*t = *taskModelToDomain(model)
	}
	return nil
}

func (r *GormTaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	var model TaskModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return taskModelToDomain(&model), nil
}

func (r *GormTaskRepo) MarkCompletedWithEnqueue(ctx context.Context, id string, msg *domain.OutboxMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Model(&TaskModel{}).
			Where("id = ?", id).
			Update("completed", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		if msg != nil {
			if err := tx.Create(outboxModelFromDomain(msg)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormTaskRepo) HasIncomplete(ctx context.Context, batchID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("batch_id = ? AND completed = ?", batchID, false).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormTaskRepo) CountIncomplete(ctx context.Context, batchID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("batch_id = ? AND completed = ?", batchID, false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormTaskRepo) ListIDsPage(ctx context.Context, batchID string, limit int) ([]string, error) {
	if limit < 1 {
		limit = 1
	}

	var ids []string
	err := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("batch_id = ?", batchID).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormTaskRepo) DeleteByIDsWithEnqueue(ctx context.Context, ids []string, msg *domain.OutboxMessage) error {
	if len(ids) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&TaskModel{}, "id IN ?", ids).Error; err != nil {
			return err
		}
		if msg != nil {
			if err := tx.Create(outboxModelFromDomain(msg)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
