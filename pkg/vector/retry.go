package vector

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultRetryAttempts is the total number of attempts (first call
	// plus retries) made against a flaky backend before giving up.
	DefaultRetryAttempts = 3

	// DefaultRetryBaseDelay is the backoff delay before the first retry;
	// it doubles on each subsequent retry.
	DefaultRetryBaseDelay = 250 * time.Millisecond
)

// Retry runs backend calls with bounded exponential backoff. Only errors
// wrapping ErrBackendUnavailable are retried; everything else is treated as
// permanent and surfaced immediately.
type Retry struct {
	Attempts  int
	BaseDelay time.Duration
	Logger    *zap.Logger
}

// NewRetry returns a Retry with the default attempt and backoff settings.
func NewRetry(logger *zap.Logger) Retry {
	return Retry{
		Attempts:  DefaultRetryAttempts,
		BaseDelay: DefaultRetryBaseDelay,
		Logger:    logger,
	}
}

// Do invokes op, retrying transient failures until the attempt budget runs
// out or the context is cancelled. The last error is returned unwrapped so
// callers can still match it with errors.Is.
func (r Retry) Do(ctx context.Context, what string, op func() error) error {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}
	delay := r.BaseDelay
	if delay <= 0 {
		delay = DefaultRetryBaseDelay
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrBackendUnavailable) || attempt == attempts {
			return err
		}

		if r.Logger != nil {
			r.Logger.Warn("vector backend call failed, retrying",
				zap.String("op", what),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
