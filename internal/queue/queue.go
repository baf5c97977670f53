package queue

import (
	"context"
	"errors"
	"fmt"
)

// Queue names for the three asynchronous step kinds.
const (
	// QueueTasks carries task-runner messages, one per work unit.
	QueueTasks = "tasks"
	// QueueCompletion carries completion-check messages for a batch.
	QueueCompletion = "completion"
	// QueueCleanup carries cleanup-sweep messages, one per page step.
	QueueCleanup = "cleanup"
)

// ErrReject marks a delivery as permanently unprocessable. The consumer routes
// it to the dead-letter queue instead of requeueing.
var ErrReject = errors.New("reject delivery")

// Publisher publishes raw JSON payloads to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
	Close() error
}

// MessageHandler handles one consumed delivery body. Returning an error that
// wraps ErrReject dead-letters the delivery; any other error requeues it.
type MessageHandler func(ctx context.Context, body []byte) error

// Consumer consumes deliveries from a queue until context cancellation.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

var workQueues = []string{QueueTasks, QueueCompletion, QueueCleanup}

// WorkQueueNames returns all work queues (3 total).
func WorkQueueNames() []string {
	queues := make([]string, len(workQueues))
	copy(queues, workQueues)
	return queues
}

// DLQName returns the dead-letter queue name for a work queue, e.g. dlq.tasks.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

// DLQNames returns all dead-letter queues (3 total).
func DLQNames() []string {
	queues := make([]string, 0, len(workQueues))
	for _, queue := range workQueues {
		queues = append(queues, DLQName(queue))
	}
	return queues
}

// IsWorkQueue reports whether name is one of the declared work queues.
func IsWorkQueue(name string) bool {
	for _, queue := range workQueues {
		if queue == name {
			return true
		}
	}
	return false
}
