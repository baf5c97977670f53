package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bkaraoglu/finishline/internal/domain"
	"github.com/bkaraoglu/finishline/internal/repository"
)

// BatchStatus is a read-only progress snapshot of a batch.
type BatchStatus struct {
	BatchID        string
	AllTasksLoaded bool
	Remaining      int64
}

// StatusReader serves progress queries for the HTTP surface.
type StatusReader struct {
	batches repository.BatchRepository
	tasks   repository.TaskRepository
}

func NewStatusReader(batches repository.BatchRepository, tasks repository.TaskRepository) (*StatusReader, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if tasks == nil {
		return nil, fmt.Errorf("task repository is required")
	}
	return &StatusReader{batches: batches, tasks: tasks}, nil
}

func (r *StatusReader) Status(ctx context.Context, batchID string) (*BatchStatus, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	batch, err := r.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	remaining, err := r.tasks.CountIncomplete(ctx, batchID)
	if err != nil {
		return nil, err
	}

	return &BatchStatus{
		BatchID:        batch.ID,
		AllTasksLoaded: batch.AllTasksLoaded,
		Remaining:      remaining,
	}, nil
}
