// internal/aggregator/pool.go
package aggregator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valpere/AutoScrapexter/internal/utils"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool is closed")

// WorkerPool runs jobs on a fixed set of long-lived workers. It is created
// once per process and shared by every aggregation call.
type WorkerPool struct {
	jobs   chan func()
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger utils.Logger
	size   int

	closeOnce sync.Once
	busy      atomic.Int32
	processed atomic.Int64
}

// NewWorkerPool starts size workers with a queue of queueSize pending jobs.
func NewWorkerPool(size, queueSize int, logger utils.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	p := &WorkerPool{
		jobs:   make(chan func(), queueSize),
		stopCh: make(chan struct{}),
		logger: logger.WithField("component", "worker_pool"),
		size:   size,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.work(i)
	}
	p.logger.Debugf("worker pool started with %d workers", size)
	return p
}

func (p *WorkerPool) work(id int) {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			p.run(id, job)
		case <-p.stopCh:
			// Finish what is already queued.
			for {
				select {
				case job := <-p.jobs:
					p.run(id, job)
				default:
					return
				}
			}
		}
	}
}

func (p *WorkerPool) run(id int, job func()) {
	p.busy.Add(1)
	defer func() {
		p.busy.Add(-1)
		p.processed.Add(1)
		if r := recover(); r != nil {
			p.logger.Errorf("worker %d: job panicked: %v", id, r)
		}
	}()
	job()
}

// Submit queues job, blocking while the queue is full. It fails when ctx
// ends first or the pool is closed.
func (p *WorkerPool) Submit(ctx context.Context, job func()) error {
	select {
	case <-p.stopCh:
		return ErrPoolClosed
	default:
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return ErrPoolClosed
	}
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int { return p.size }

// Busy returns the number of workers currently running a job.
func (p *WorkerPool) Busy() int { return int(p.busy.Load()) }

// Processed returns the number of jobs run since start.
func (p *WorkerPool) Processed() int64 { return p.processed.Load() }

// Close stops accepting jobs, drains the queue and waits for workers.
func (p *WorkerPool) Close() {
	p.closeOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()
		p.logger.Debug("worker pool stopped")
	})
}
