// internal/aggregator/pool_test.go
package aggregator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_Bounded(t *testing.T) {
	pool := NewWorkerPool(2, 10, nil)
	defer pool.Close()

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		err := pool.Submit(context.Background(), func() {
			defer wg.Done()
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	wg.Wait()

	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent jobs, saw %d", peak.Load())
	}
}

func TestWorkerPool_SubmitHonoursContext(t *testing.T) {
	pool := NewWorkerPool(1, 0, nil)
	defer pool.Close()

	block := make(chan struct{})
	if err := pool.Submit(context.Background(), func() { <-block }); err != nil {
		t.Fatal(err)
	}
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	// Wait until the only worker picked up the blocking job.
	for pool.Busy() == 0 {
		time.Sleep(time.Millisecond)
	}
	if err := pool.Submit(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error on saturated pool, got %v", err)
	}
}

func TestWorkerPool_CloseDrainsQueue(t *testing.T) {
	pool := NewWorkerPool(1, 5, nil)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		if err := pool.Submit(context.Background(), func() { ran.Add(1) }); err != nil {
			t.Fatal(err)
		}
	}
	pool.Close()

	if ran.Load() != 5 {
		t.Errorf("expected queued jobs to run before close, ran %d", ran.Load())
	}
	if err := pool.Submit(context.Background(), func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}

func TestWorkerPool_SurvivesPanic(t *testing.T) {
	pool := NewWorkerPool(1, 1, nil)
	defer pool.Close()

	_ = pool.Submit(context.Background(), func() { panic("boom") })

	done := make(chan struct{})
	_ = pool.Submit(context.Background(), func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker died after panic")
	}
}
