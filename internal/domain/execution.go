package domain

import "time"

// TaskExecution records the outcome of one work-unit run. The tracker marks a
// task complete regardless of the outcome; the failure detail is retained here
// for diagnosis instead of being swallowed.
type TaskExecution struct {
	ID         string
	TaskID     string
	BatchID    string
	Kind       string
	OK         bool
	Error      *string
	DurationMs int64
	CreatedAt  time.Time
}
