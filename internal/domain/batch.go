package domain

import (
	"fmt"
	"strings"
	"time"
)

// Batch groups the tasks of one fan-out submission. The id is the caller's
// correlation identifier (typically a session id) and doubles as the address
// completion notifications are sent to.
type Batch struct {
	ID             string
	AllTasksLoaded bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (b *Batch) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: batch is required", ErrValidation)
	}
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("%w: batch id is required", ErrValidation)
	}
	return nil
}
