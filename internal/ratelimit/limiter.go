package ratelimit

import "context"

// RateLimiter throttles work-unit execution per kind.
type RateLimiter interface {
	Allow(ctx context.Context, kind string) (bool, error)
	Wait(ctx context.Context, kind string) error
}
