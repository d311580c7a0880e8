// Package retry classifies transient provider failures and runs operations
// with exponential backoff.
package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// Config holds retry behavior for one round. Attempts counts the initial
// call, so Attempts=1 means no retries.
type Config struct {
	Attempts    int
	BackoffBase time.Duration
	MaxDelay    time.Duration
}

// statusCoder is implemented by provider errors carrying an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// sleep is stubbed in tests to count and skip backoff waits.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRetryable reports whether err looks transient: a network timeout, a
// connection-level failure, or an HTTP 429 / 5xx response. Structural
// errors (malformed responses) and context cancellation are not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		status := sc.HTTPStatus()
		return status == 429 || status >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	// A stream cut mid-body surfaces as an unexpected EOF.
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}

// BackoffDelay computes the delay before the retry following the given
// attempt (1-based): base*2^(attempt-1) plus up to 20% jitter, clamped to
// MaxDelay.
func BackoffDelay(cfg Config, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		base *= 2
		if base >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	jitter := time.Duration(rand.Int63n(int64(base)/5 + 1))
	delay := base + jitter
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}

// Do invokes op up to cfg.Attempts times, sleeping a backoff delay between
// retryable failures. The last error is returned once attempts are
// exhausted or a non-retryable error occurs. op must be atomic from the
// caller's perspective: nothing it produced may have been handed out before
// it failed.
func Do[T any](ctx context.Context, cfg Config, name string, logger *slog.Logger, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt >= attempts {
			break
		}
		delay := BackoffDelay(cfg, attempt)
		if logger != nil {
			logger.Warn("retrying after transient failure",
				"operation", name,
				"attempt", attempt,
				"max_attempts", attempts,
				"delay", delay,
				"error", err)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}
