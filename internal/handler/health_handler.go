package handler

import (
	"context"
	"time"

	"github.com/bkaraoglu/finishline/internal/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	readinessTimeout = 2 * time.Second

	// outboxStaleAfter is how old the oldest staged message may get before the
	// relay is considered stuck rather than merely busy.
	outboxStaleAfter = time.Minute
)

// StorePinger probes the durable store.
type StorePinger interface {
	PingContext(ctx context.Context) error
}

// ChannelPinger probes the notification channel.
type ChannelPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// OutboxBacklog exposes the staged messages still waiting for the relay.
type OutboxBacklog interface {
	ListUndispatched(ctx context.Context, limit int) ([]domain.OutboxMessage, error)
}

func RegisterHealthRoutes(app fiber.Router, store StorePinger, channel ChannelPinger, outbox OutboxBacklog) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(store, channel, outbox))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

// ReadyzHandler probes the durable store and the notification channel, and
// reports whether the outbox relay is draining. The broker itself is not
// probed, and a stalled outbox does not flip readiness: the outbox absorbs
// broker outages, so the API keeps accepting populate calls while RabbitMQ
// reconnects. The backlog state is surfaced for operators instead.
func ReadyzHandler(store StorePinger, channel ChannelPinger, outbox OutboxBacklog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
		defer cancel()

		pgErr := store.PingContext(ctx)
		redisErr := channel.Ping(ctx).Err()

		pgStatus := "ok"
		if pgErr != nil {
			pgStatus = "down"
		}
		redisStatus := "ok"
		if redisErr != nil {
			redisStatus = "down"
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if pgErr != nil || redisErr != nil {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": fiber.Map{
				"postgres": pgStatus,
				"redis":    redisStatus,
				"outbox":   outboxStatus(ctx, outbox),
			},
		})
	}
}

// outboxStatus reports "ok" while staged messages are fresh, "stalled" once
// the oldest one has waited longer than the relay should ever need, and
// "unknown" when the backlog cannot be read.
func outboxStatus(ctx context.Context, outbox OutboxBacklog) string {
	if outbox == nil {
		return "unknown"
	}

	oldest, err := outbox.ListUndispatched(ctx, 1)
	if err != nil {
		return "unknown"
	}
	if len(oldest) == 0 {
		return "ok"
	}
	if time.Since(oldest[0].CreatedAt) > outboxStaleAfter {
		return "stalled"
	}
	return "ok"
}
