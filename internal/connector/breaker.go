package connector

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

var ErrBreakerOpen = errors.New("connector circuit open")

type BreakerConfig struct {
	// FailureThreshold consecutive transient failures open the breaker.
	FailureThreshold uint32
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
}

// Guarded wraps a Connector with a per-source circuit breaker. Only
// transient errors count as failures; a 404 on one deleted thread does not
// trip the breaker for the whole source.
type Guarded struct {
	inner   Connector
	breaker *gobreaker.CircuitBreaker[any]
}

func Guard(c Connector, cfg BreakerConfig, logger *zap.Logger) *Guarded {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	settings := gobreaker.Settings{
		Name:        c.SourceType() + ":" + c.SourceName(),
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("connector breaker state changed",
					zap.String("source", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			}
		},
	}
	return &Guarded{inner: c, breaker: gobreaker.NewCircuitBreaker[any](settings)}
}

func (g *Guarded) SourceType() string { return g.inner.SourceType() }
func (g *Guarded) SourceName() string { return g.inner.SourceName() }

// State is the breaker state name: closed, half-open or open.
func (g *Guarded) State() string { return g.breaker.State().String() }

func (g *Guarded) ListRecentThreads(ctx context.Context, since time.Time) ([]ThreadItem, error) {
	out, err := g.breaker.Execute(func() (any, error) {
		return g.inner.ListRecentThreads(ctx, since)
	})
	if err != nil {
		return nil, g.wrap(err)
	}
	items, _ := out.([]ThreadItem)
	return items, nil
}

func (g *Guarded) ListPosts(ctx context.Context, thread ThreadItem, cutoff time.Time) ([]PostItem, error) {
	out, err := g.breaker.Execute(func() (any, error) {
		return g.inner.ListPosts(ctx, thread, cutoff)
	})
	if err != nil {
		return nil, g.wrap(err)
	}
	items, _ := out.([]PostItem)
	return items, nil
}

func (g *Guarded) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", g.breaker.Name(), ErrBreakerOpen)
	}
	return err
}
