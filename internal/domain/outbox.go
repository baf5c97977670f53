package domain

import "time"

// OutboxMessage is a broker message staged inside a store transaction. A relay
// publishes staged messages after commit, so a job is enqueued if and only if
// the writes it depends on were durably committed.
type OutboxMessage struct {
	ID           string
	Queue        string
	Payload      []byte
	DispatchedAt *time.Time
	CreatedAt    time.Time
}
