package providers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// --- RetryDo tests ---

// TestRetryDoRecoversTransient verifies that a retryable failure is retried
// and the later success is returned.
func TestRetryDoRecoversTransient(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond}
	attempts := 0

	got, err := RetryDo(context.Background(), cfg, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", &HTTPError{Status: http.StatusServiceUnavailable, Body: "busy"}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("RetryDo: %v", err)
	}
	if got != "ok" {
		t.Errorf("RetryDo = %q, want %q", got, "ok")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

// TestRetryDoStopsOnPermanent verifies that a non-retryable error returns
// immediately without further attempts.
func TestRetryDoStopsOnPermanent(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond}
	attempts := 0

	_, err := RetryDo(context.Background(), cfg, func() (string, error) {
		attempts++
		return "", &HTTPError{Status: http.StatusBadRequest, Body: "bad schema"}
	})
	var he *HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusBadRequest {
		t.Fatalf("err = %v, want http 400", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

// TestRetryDoExhaustsBudget verifies that the last transient error surfaces
// once MaxRetries is spent.
func TestRetryDoExhaustsBudget(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond}
	attempts := 0

	_, err := RetryDo(context.Background(), cfg, func() (int, error) {
		attempts++
		return 0, &HTTPError{Status: http.StatusTooManyRequests, Body: "slow down"}
	})
	var he *HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusTooManyRequests {
		t.Fatalf("err = %v, want http 429", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

// TestRetryDoHonorsCancellation verifies that a cancelled context aborts the
// backoff wait.
func TestRetryDoHonorsCancellation(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, BaseDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := RetryDo(ctx, cfg, func() (string, error) {
			return "", &HTTPError{Status: http.StatusInternalServerError, Body: "boom"}
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RetryDo did not honor cancellation")
	}
}

// TestParseRetryAfter verifies second-valued headers parse and junk is zero.
func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{value: "3", want: 3 * time.Second},
		{value: "", want: 0},
		{value: "soon", want: 0},
		{value: "-1", want: 0},
	}
	for _, tt := range tests {
		if got := ParseRetryAfter(tt.value); got != tt.want {
			t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
