package notify

import "context"

// Status values carried in batch notifications.
const (
	StatusComplete   = "complete"
	StatusIncomplete = "incomplete"
)

// StatusMessage is the payload delivered to the observer of a batch.
type StatusMessage struct {
	Status string `json:"status"`
}

// Notifier delivers a status payload to the client identified by address (the
// batch's correlation id). Delivery is fire-and-forget, best effort.
type Notifier interface {
	Send(ctx context.Context, address string, msg StatusMessage) error
}
