package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func noBackoff(int) time.Duration { return time.Millisecond }

func refused() error {
	return &Error{Kind: KindUnreachable, Reason: ReasonConnectionRefused, Op: "test"}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{"attempt 0", 0, InitialBackoff},
		{"attempt 1", 1, InitialBackoff * 2},
		{"attempt 2", 2, InitialBackoff * 4},
		{"attempt large", 20, MaxBackoff}, // Should cap at max
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateBackoff(tt.attempt)
			if got != tt.want {
				t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"refused", refused(), true},
		{"timeout", &Error{Kind: KindUnreachable, Reason: ReasonTimeout}, true},
		{"tls", &Error{Kind: KindUnreachable, Reason: ReasonTLS}, false},
		{"other network", &Error{Kind: KindUnreachable, Reason: ReasonOther}, false},
		{"backend 503", &Error{Kind: KindBackend, StatusCode: http.StatusServiceUnavailable}, false},
		{"malformed", &Error{Kind: KindMalformed}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWithRetry_Success(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	result, err := WithRetry(ctx, 3, noBackoff, func() (string, error) {
		callCount++
		return "success", nil
	})

	if err != nil {
		t.Errorf("WithRetry() unexpected error: %v", err)
	}
	if result != "success" {
		t.Errorf("WithRetry() = %v, want %v", result, "success")
	}
	if callCount != 1 {
		t.Errorf("WithRetry() called %d times, want 1", callCount)
	}
}

func TestWithRetry_RetryableError(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	_, err := WithRetry(ctx, 3, noBackoff, func() (string, error) {
		callCount++
		return "", refused()
	})

	if !IsUnreachable(err) {
		t.Errorf("WithRetry() error = %v, want unreachable", err)
	}
	if callCount != 3 {
		t.Errorf("WithRetry() called %d times, want 3", callCount)
	}
}

func TestWithRetry_NonRetryableError(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	_, err := WithRetry(ctx, 3, noBackoff, func() (string, error) {
		callCount++
		return "", &Error{Kind: KindBackend, StatusCode: http.StatusBadRequest, Message: "bad request"}
	})

	if err == nil {
		t.Error("WithRetry() expected error, got nil")
	}
	if callCount != 1 {
		t.Errorf("WithRetry() called %d times, want 1 (no retry for backend errors)", callCount)
	}
}

func TestWithRetry_SingleAttempt(t *testing.T) {
	callCount := 0
	_, _ = WithRetry(context.Background(), 0, noBackoff, func() (int, error) {
		callCount++
		return 0, refused()
	})
	if callCount != 1 {
		t.Errorf("WithRetry() called %d times, want 1", callCount)
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := WithRetry(ctx, 3, noBackoff, func() (string, error) {
		return "success", nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("WithRetry() error = %v, want context.Canceled", err)
	}
}

func TestWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	callCount := 0

	_, err := WithRetry(ctx, 3, func(int) time.Duration { return time.Hour }, func() (string, error) {
		callCount++
		cancel()
		return "", refused()
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("WithRetry() error = %v, want context.Canceled", err)
	}
	if callCount != 1 {
		t.Errorf("WithRetry() called %d times, want 1", callCount)
	}
}

func TestWithRetry_SuccessAfterRetry(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	result, err := WithRetry(ctx, 3, noBackoff, func() (string, error) {
		callCount++
		if callCount < 2 {
			return "", refused()
		}
		return "success", nil
	})

	if err != nil {
		t.Errorf("WithRetry() unexpected error: %v", err)
	}
	if result != "success" {
		t.Errorf("WithRetry() = %v, want %v", result, "success")
	}
	if callCount != 2 {
		t.Errorf("WithRetry() called %d times, want 2", callCount)
	}
}
