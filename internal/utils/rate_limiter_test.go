// internal/utils/rate_limiter_test.go
package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestKeyedRateLimiter_PerKeyBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewKeyedRateLimiter(1, 2, time.Minute)
	l.now = func() time.Time { return now }

	if !l.Allow("10.0.0.1") || !l.Allow("10.0.0.1") {
		t.Fatal("expected burst of 2 to be allowed")
	}
	if l.Allow("10.0.0.1") {
		t.Error("expected third request to be rejected")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("expected another client to have its own bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("10.0.0.1") {
		t.Error("expected a token to be refilled after one second")
	}
}

func TestKeyedRateLimiter_ForgetsIdleKeys(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewKeyedRateLimiter(5, 5, 30*time.Second)
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	if l.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", l.Len())
	}

	now = now.Add(2 * time.Minute)
	l.Allow("c")
	if l.Len() != 1 {
		t.Errorf("expected idle keys to be swept, got %d", l.Len())
	}
}

func TestKeyedRateLimiter_SetLimit(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewKeyedRateLimiter(1, 1, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("a")
	if l.Allow("a") {
		t.Fatal("expected bucket to be empty")
	}
	l.SetLimit(100, 10)
	now = now.Add(100 * time.Millisecond)
	if !l.Allow("a") {
		t.Error("expected the raised limit to apply to existing buckets")
	}
}

func TestKeyedRateLimiter_Wait(t *testing.T) {
	l := NewKeyedRateLimiter(0.1, 1, time.Minute)

	if err := l.Wait(context.Background(), "a.example"); err != nil {
		t.Fatalf("expected the burst token, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "b.example"); err != nil {
		t.Errorf("expected an independent bucket for another key, got %v", err)
	}
	if err := l.Wait(ctx, "a.example"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected a deadline error, got %v", err)
	}

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	if err := l.Wait(cancelled, "a.example"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected a cancellation error, got %v", err)
	}
}
