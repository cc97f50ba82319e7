package rowstore

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for the Row Store circuit breaker
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the breaker
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

type breakerClient struct {
	next Client
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker wraps next so that calls fail fast with gobreaker.ErrOpenState
// while the backend keeps failing. It never retries. Not-found, duplicate
// and cancellation errors are the caller's doing and do not count as
// failures.
func WithBreaker(next Client, config BreakerConfig, logger *zap.Logger) Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("row store breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, ErrDuplicate) ||
				errors.Is(err, context.Canceled)
		},
	})
	return &breakerClient{next: next, cb: cb}
}

func (b *breakerClient) Select(ctx context.Context, table string, filter Filter) ([]Row, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Select(ctx, table, filter)
	})
	if err != nil {
		return nil, err
	}
	return out.([]Row), nil
}

func (b *breakerClient) Insert(ctx context.Context, table string, row Row) (Row, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Insert(ctx, table, row)
	})
	if err != nil {
		return nil, err
	}
	return out.(Row), nil
}

func (b *breakerClient) Update(ctx context.Context, table string, filter Filter, patch Row) (Row, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Update(ctx, table, filter, patch)
	})
	if err != nil {
		return nil, err
	}
	return out.(Row), nil
}

func (b *breakerClient) Delete(ctx context.Context, table string, filter Filter) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Delete(ctx, table, filter)
	})
	return err
}

func (b *breakerClient) Subscribe(ctx context.Context, table string, filter Filter, onEvent func(Event)) (Unsubscribe, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Subscribe(ctx, table, filter, onEvent)
	})
	if err != nil {
		return nil, err
	}
	return out.(Unsubscribe), nil
}
