// internal/utils/rate_limiter.go
package utils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sweepEvery bounds how often idle buckets are looked for.
const sweepEvery = time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter keeps one token bucket per key, typically a client IP or
// a target host.
// Buckets idle for longer than the idle window are forgotten.
type KeyedRateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

// NewKeyedRateLimiter allows requestsPerSecond per key with the given burst.
func NewKeyedRateLimiter(requestsPerSecond float64, burst int, idle time.Duration) *KeyedRateLimiter {
	if burst < 1 {
		burst = 1
	}
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &KeyedRateLimiter{
		limit:   rate.Limit(requestsPerSecond),
		burst:   burst,
		idle:    idle,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow reports whether key may make a request now.
func (k *KeyedRateLimiter) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	return k.bucketFor(key, now).AllowN(now, 1)
}

// Wait blocks until key may make a request or ctx is done. When the wait
// would outlast the ctx deadline it fails at once with an error matching
// context.DeadlineExceeded.
func (k *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	k.mu.Lock()
	limiter := k.bucketFor(key, k.now())
	k.mu.Unlock()

	err := limiter.Wait(ctx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

// bucketFor returns the limiter for key, creating it on first use. k.mu must
// be held.
func (k *KeyedRateLimiter) bucketFor(key string, now time.Time) *rate.Limiter {
	if now.Sub(k.lastSweep) >= sweepEvery {
		k.sweep(now)
	}
	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Len returns the number of tracked keys.
func (k *KeyedRateLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

// SetLimit changes the rate for existing and future keys.
func (k *KeyedRateLimiter) SetLimit(requestsPerSecond float64, burst int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.limit = rate.Limit(requestsPerSecond)
	if burst >= 1 {
		k.burst = burst
	}
	now := k.now()
	for _, b := range k.buckets {
		b.limiter.SetLimitAt(now, k.limit)
		b.limiter.SetBurstAt(now, k.burst)
	}
}

func (k *KeyedRateLimiter) sweep(now time.Time) {
	for key, b := range k.buckets {
		if now.Sub(b.lastSeen) > k.idle {
			delete(k.buckets, key)
		}
	}
	k.lastSweep = now
}
