package backend

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jdziat/simple-batch-jobs/pkg/storage"
)

// RetryConfig controls how Open retries connecting to a backend that is not
// reachable yet, e.g. a database container still starting.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	JitterFraction    float64 // 0.0 to 1.0
}

// DefaultRetryConfig returns the retry settings Open uses.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

// retryWithBackoff runs operation until it succeeds, the attempts are
// exhausted or ctx is done. It returns the last error.
func retryWithBackoff(ctx context.Context, config RetryConfig, operation func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= max(config.MaxAttempts, 1); attempt++ {
		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt >= config.MaxAttempts {
			break
		}

		jitter := time.Duration(float64(backoff) * config.JitterFraction * (rand.Float64()*2 - 1))
		sleep := backoff + jitter
		if sleep < 0 {
			sleep = backoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return lastErr
}

// isRetryable reports whether a connection error may go away on its own.
// Cancellation and malformed configuration never do.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, storage.ErrInvalidRedisURL) || errors.Is(err, storage.ErrUnknownPoolProfile) {
		return false
	}
	return true
}
