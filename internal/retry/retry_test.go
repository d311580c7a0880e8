package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"
)

type statusError struct {
	code int
}

func (e *statusError) Error() string   { return fmt.Sprintf("HTTP %d", e.code) }
func (e *statusError) HTTPStatus() int { return e.code }

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &statusError{429}, true},
		{"server error", &statusError{503}, true},
		{"bad request", &statusError{400}, false},
		{"not found", &statusError{404}, false},
		{"wrapped status", fmt.Errorf("call failed: %w", &statusError{500}), true},
		{"timeout", timeoutError{}, true},
		{"op error", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"plain error", errors.New("malformed response"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestBackoffDelayBounds(t *testing.T) {
	cfg := Config{Attempts: 5, BackoffBase: 100 * time.Millisecond, MaxDelay: 2 * time.Second}

	for attempt := 1; attempt <= 10; attempt++ {
		delay := BackoffDelay(cfg, attempt)
		base := cfg.BackoffBase
		for i := 1; i < attempt; i++ {
			base *= 2
		}
		low := base
		if low > cfg.MaxDelay {
			low = cfg.MaxDelay
		}
		if delay < low {
			t.Errorf("attempt %d: delay %v below base %v", attempt, delay, low)
		}
		if delay > cfg.MaxDelay {
			t.Errorf("attempt %d: delay %v exceeds max %v", attempt, delay, cfg.MaxDelay)
		}
		if base < cfg.MaxDelay && float64(delay) > 1.2*float64(base)+1 {
			t.Errorf("attempt %d: delay %v above jittered base %v", attempt, delay, base)
		}
	}
}

func TestBackoffDelayMonotonic(t *testing.T) {
	cfg := Config{Attempts: 8, BackoffBase: 50 * time.Millisecond, MaxDelay: time.Second}

	// Minimum possible delay at attempt n+1 (2^n * base) always meets or
	// exceeds the maximum possible at attempt n (1.2 * 2^(n-1) * base), so
	// sampling with jitter stays non-decreasing until saturation.
	prev := time.Duration(0)
	for attempt := 1; attempt <= 8; attempt++ {
		delay := BackoffDelay(cfg, attempt)
		if delay < prev && prev < cfg.MaxDelay {
			t.Errorf("attempt %d: delay %v decreased from %v", attempt, delay, prev)
		}
		prev = delay
	}
	if BackoffDelay(cfg, 20) != cfg.MaxDelay {
		t.Errorf("expected saturation at MaxDelay, got %v", BackoffDelay(cfg, 20))
	}
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	sleeps := 0
	restore := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return nil
	}
	defer func() { sleep = restore }()

	cfg := Config{Attempts: 3, BackoffBase: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	calls := 0
	result, err := Do(context.Background(), cfg, "test", nil, func(ctx context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", &statusError{503}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected ok, got %q", result)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if sleeps != 2 {
		t.Errorf("expected exactly 2 sleeps, got %d", sleeps)
	}
}

func TestDoNonRetryableFailsFast(t *testing.T) {
	restore := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		t.Error("sleep should not be called for non-retryable errors")
		return nil
	}
	defer func() { sleep = restore }()

	cfg := Config{Attempts: 3, BackoffBase: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	structural := errors.New("response missing choices")
	calls := 0
	_, err := Do(context.Background(), cfg, "test", nil, func(ctx context.Context) (string, error) {
		calls++
		return "", structural
	})
	if !errors.Is(err, structural) {
		t.Errorf("expected structural error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	restore := sleep
	sleep = func(ctx context.Context, d time.Duration) error { return nil }
	defer func() { sleep = restore }()

	cfg := Config{Attempts: 2, BackoffBase: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	transient := &statusError{502}
	calls := 0
	_, err := Do(context.Background(), cfg, "test", nil, func(ctx context.Context) (string, error) {
		calls++
		return "", transient
	})
	if !errors.Is(err, transient) {
		t.Errorf("expected last error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}
