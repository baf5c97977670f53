package domain

import (
	"fmt"
	"strings"
	"time"
)

// Task is the completion-tracking record for one work unit. Completed is
// monotonic: it transitions false to true exactly once and never reverts.
type Task struct {
	ID        string
	BatchID   string
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *Task) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: task is required", ErrValidation)
	}
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: task id is required", ErrValidation)
	}
	if strings.TrimSpace(t.BatchID) == "" {
		return fmt.Errorf("%w: task batch id is required", ErrValidation)
	}
	return nil
}
