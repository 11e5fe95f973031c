package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"janus/pkg/errors"
)

// Limiter paces calls to an external provider.
// The market-data provider allows a low sustained request rate, so the
// backfill engine waits on the limiter before every HTTP call instead of
// sprinkling raw sleeps through the fetch code.
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// NewLimiter creates a limiter that allows one call per minInterval,
// with no burst beyond a single token
func NewLimiter(name string, minInterval time.Duration) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		name:    name,
	}
}

// Wait blocks until the rate limiter allows the request
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "rate limiter %s", l.name)
	}
	return nil
}

// Allow checks if a request is allowed without blocking
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
