// internal/errors/errors_test.go
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestFetchError_KindAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := fmt.Errorf("page 2: %w", NewFetchError("leboncoin", NetworkError, cause))

	if !IsKind(err, NetworkError) {
		t.Error("expected wrapped error to be a NetworkError")
	}
	if IsKind(err, BlockedByTarget) {
		t.Error("NetworkError must not match BlockedByTarget")
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected FetchError to unwrap to its cause")
	}

	var fe *FetchError
	if !stderrors.As(err, &fe) {
		t.Fatal("expected errors.As to find FetchError")
	}
	if fe.Source != "leboncoin" {
		t.Errorf("expected source leboncoin, got %s", fe.Source)
	}
}

func TestFetchError_Retryable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{NetworkError, true},
		{Timeout, false},
		{BlockedByTarget, false},
		{ParseFailure, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := NewFetchError("src", tt.kind, nil)
			if got := err.Retryable(); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
			if got := IsRetryableFetch(err); got != tt.want {
				t.Errorf("IsRetryableFetch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTPStatusAndExitCode(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"nil", nil, http.StatusOK, 0},
		{"policy", &PolicyViolation{Field: "scraping_mode", Value: "sometimes"}, http.StatusBadRequest, 2},
		{"timeout", NewFetchError("x", Timeout, nil), http.StatusGatewayTimeout, 3},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.status {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.status)
			}
			if got := ExitCode(tt.err); got != tt.code {
				t.Errorf("ExitCode() = %d, want %d", got, tt.code)
			}
		})
	}
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond}
	calls := 0

	err := Retry(context.Background(), cfg, func(int) error {
		calls++
		return NewFetchError("src", BlockedByTarget, nil)
	}, IsRetryableFetch)

	if !IsKind(err, BlockedByTarget) {
		t.Errorf("expected BlockedByTarget, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_RetriesNetworkErrorOnce(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond}
	calls := 0

	err := Retry(context.Background(), cfg, func(int) error {
		calls++
		return NewFetchError("src", NetworkError, nil)
	}, IsRetryableFetch)

	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestRetry_SucceedsAfterRetry(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond}

	err := Retry(context.Background(), cfg, func(attempt int) error {
		if attempt == 0 {
			return NewFetchError("src", NetworkError, nil)
		}
		return nil
	}, IsRetryableFetch)

	if err != nil {
		t.Errorf("expected success, got %v", err)
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := RetryConfig{MaxRetries: 5, BaseDelay: time.Hour}
	calls := 0
	start := time.Now()

	_ = Retry(ctx, cfg, func(int) error {
		calls++
		return NewFetchError("src", NetworkError, nil)
	}, nil)

	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
	if time.Since(start) > time.Second {
		t.Error("Retry did not honour cancelled context")
	}
}

func TestRetryConfig_Delay(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, BackoffFactor: 2, MaxDelay: 300 * time.Millisecond}

	if d := cfg.Delay(0); d != 100*time.Millisecond {
		t.Errorf("Delay(0) = %v", d)
	}
	if d := cfg.Delay(1); d != 200*time.Millisecond {
		t.Errorf("Delay(1) = %v", d)
	}
	if d := cfg.Delay(5); d != 300*time.Millisecond {
		t.Errorf("Delay(5) = %v, expected cap", d)
	}

	cfg.Jitter = true
	d := cfg.Delay(0)
	if d < 90*time.Millisecond || d > 110*time.Millisecond {
		t.Errorf("jittered delay %v outside +/-10%%", d)
	}
}
