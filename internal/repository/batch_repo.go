package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bkaraoglu/finishline/internal/domain"
	"gorm.io/gorm"
)

type BatchRepository interface {
	Create(ctx context.Context, b *domain.Batch) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	// MarkLoadedWithEnqueue flips all_tasks_loaded and stages msg in the same
	// transaction. The flag is monotonic: the update never writes false.
	MarkLoadedWithEnqueue(ctx context.Context, id string, msg *domain.OutboxMessage) error
	// Delete removes the batch record. Deleting an absent batch is a no-op.
	Delete(ctx context.Context, id string) error
}

type GormBatchRepo struct {
	db *gorm.DB
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db}
}

func (r *GormBatchRepo) Create(ctx context.Context, b *domain.Batch) error {
	model := batchModelFromDomain(b)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	if b != nil {
		*b = *batchModelToDomain(model)
	}
	return nil
}

func (r *GormBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	var model BatchModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

func (r *GormBatchRepo) MarkLoadedWithEnqueue(ctx context.Context, id string, msg *domain.OutboxMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Model(&BatchModel{}).
			Where("id = ?", id).
			Update("all_tasks_loaded", true)
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

func (r *GormBatchRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&BatchModel{}, "id = ?", id).Error
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
