package repository

import (
	"context"

	"github.com/bkaraoglu/finishline/internal/domain"
	"gorm.io/gorm"
)

type ExecutionRepository interface {
	Create(ctx context.Context, e *domain.TaskExecution) error
	// DeleteByBatch reclaims the execution log of a finished batch.
	DeleteByBatch(ctx context.Context, batchID string) error
}

type GormExecutionRepo struct {
	db *gorm.DB
}

func NewGormExecutionRepo(db *gorm.DB) *GormExecutionRepo {
	return &GormExecutionRepo{db: db}
}

func (r *GormExecutionRepo) Create(ctx context.Context, e *domain.TaskExecution) error {
	return r.db.WithContext(ctx).Create(executionModelFromDomain(e)).Error
}

func (r *GormExecutionRepo) DeleteByBatch(ctx context.Context, batchID string) error {
	return r.db.WithContext(ctx).Delete(&TaskExecutionModel{}, "batch_id = ?", batchID).Error
}
