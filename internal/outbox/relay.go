// Package outbox relays broker messages staged inside store transactions.
// Staging a message in the same transaction as the writes it depends on gives
// the enqueue-iff-committed coupling the tracker relies on; the relay provides
// at-least-once delivery on top.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/bkaraoglu/finishline/internal/domain"
	"github.com/bkaraoglu/finishline/internal/queue"
	"github.com/bkaraoglu/finishline/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultScanInterval   = time.Second
	defaultScanLimit      = 100
	defaultPruneAfter     = time.Hour
	defaultPruneFrequency = 64
)

// NewMessage builds an undispatched outbox message for a work queue.
func NewMessage(queueName string, payload []byte) *domain.OutboxMessage {
	return &domain.OutboxMessage{
		ID:      uuid.NewString(),
		Queue:   queueName,
		Payload: payload,
	}
}

// Relay periodically publishes staged messages and marks them dispatched.
// A crash between publish and mark re-publishes on the next scan, which the
// consumers tolerate.
type Relay struct {
	outbox     repository.OutboxRepository
	publisher  queue.Publisher
	logger     *zap.Logger
	interval   time.Duration
	limit      int
	pruneAfter time.Duration

	scanCount int
}

func NewRelay(
	outbox repository.OutboxRepository,
	publisher queue.Publisher,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*Relay, error) {
	if outbox == nil {
		return nil, fmt.Errorf("outbox repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultScanInterval
	}
	if limit <= 0 {
		limit = defaultScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Relay{
		outbox:     outbox,
		publisher:  publisher,
		logger:     logger,
		interval:   interval,
		limit:      limit,
		pruneAfter: defaultPruneAfter,
	}, nil
}

func (r *Relay) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Initial scan so messages staged before startup do not wait a tick.
	if err := r.scanOnce(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("outbox initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.scanOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("outbox scan failed", zap.Error(err))
			}
		}
	}
}

func (r *Relay) scanOnce(ctx context.Context) error {
	messages, err := r.outbox.ListUndispatched(ctx, r.limit)
	if err != nil {
		return fmt.Errorf("failed to list undispatched messages: %w", err)
	}

	for i := range messages {
		msg := messages[i]
		if err := r.publisher.Publish(ctx, msg.Queue, msg.Payload); err != nil {
			r.logger.Error("failed to publish outbox message",
				zap.String("outboxId", msg.ID),
				zap.String("queue", msg.Queue),
				zap.Error(err),
			)
			continue
		}

		if err := r.outbox.MarkDispatched(ctx, msg.ID); err != nil {
			r.logger.Error("failed to mark outbox message dispatched",
				zap.String("outboxId", msg.ID),
				zap.Error(err),
			)
			continue
		}
	}

	r.scanCount++
	if r.scanCount%defaultPruneFrequency == 0 {
		cutoff := time.Now().UTC().Add(-r.pruneAfter)
		if _, err := r.outbox.DeleteDispatchedBefore(ctx, cutoff); err != nil {
			r.logger.Warn("failed to prune dispatched outbox messages", zap.Error(err))
		}
	}

	return nil
}
