package stationdb

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kilianp07/evreco/core/logger"
	"github.com/kilianp07/evreco/core/model"
)

func newBreaker(name string, c BreakerConfig, log logger.Logger) *gobreaker.CircuitBreaker[any] {
	threshold := c.FailureThreshold
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Duration(c.TimeoutSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, model.ErrStationNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})
}

// read runs fn behind the breaker with the configured deadline.
func read[T any](ctx context.Context, r *Repository, fn func(context.Context) (T, error)) (T, error) {
	if r.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.readTimeout)
		defer cancel()
	}
	out, err := r.cb.Execute(func() (any, error) { return fn(ctx) })
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}
