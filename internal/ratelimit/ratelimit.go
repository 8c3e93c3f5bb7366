// Package ratelimit spaces out requests to a single upstream source.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter blocks callers until MinInterval has passed since the previous
// Wait returned. One instance belongs to one source crawl loop.
type Limiter struct {
	interval time.Duration
	limiter  *rate.Limiter
}

// New returns a limiter allowing one request per minInterval. A zero or
// negative interval disables waiting.
func New(minInterval time.Duration) *Limiter {
	l := &Limiter{interval: minInterval}
	if minInterval > 0 {
		l.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return l
}

func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}

func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}
