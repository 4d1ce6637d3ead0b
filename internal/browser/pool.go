// internal/browser/pool.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/valpere/AutoScrapexter/internal/utils"
)

// ErrPoolClosed is returned when acquiring from a closed pool.
var ErrPoolClosed = errors.New("session pool is closed")

// SessionPool bounds the number of live rendering sessions and reuses idle
// ones.
type SessionPool struct {
	factory Factory
	logger  utils.Logger
	slots   chan struct{}
	idle    chan Renderer

	mu     sync.Mutex
	closed bool

	created   atomic.Int64
	reused    atomic.Int64
	discarded atomic.Int64
}

// NewSessionPool creates a pool of at most maxSessions renderers.
func NewSessionPool(factory Factory, maxSessions int, logger utils.Logger) *SessionPool {
	if maxSessions <= 0 {
		maxSessions = DefaultBrowserConfig().MaxSessions
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &SessionPool{
		factory: factory,
		logger:  logger.WithField("component", "session_pool"),
		slots:   make(chan struct{}, maxSessions),
		idle:    make(chan Renderer, maxSessions),
	}
}

// NewChromePool creates a pool of chromedp sessions.
func NewChromePool(config *BrowserConfig, logger utils.Logger) *SessionPool {
	if config == nil {
		config = DefaultBrowserConfig()
	}
	return NewSessionPool(ChromeFactory(config), config.MaxSessions, logger)
}

// WithSession runs fn with a pooled session. The session always goes back:
// to the idle set when fn finished cleanly, or closed when ctx ended or fn
// panicked. A panic is re-raised after release.
func (p *SessionPool) WithSession(ctx context.Context, fn func(Renderer) error) error {
	r, err := p.acquire(ctx)
	if err != nil {
		return err
	}

	completed := false
	defer func() {
		if !completed || ctx.Err() != nil {
			p.discard(r)
			return
		}
		p.release(r)
	}()

	err = fn(r)
	completed = true
	return err
}

func (p *SessionPool) acquire(ctx context.Context) (Renderer, error) {
	if p.isClosed() {
		return nil, ErrPoolClosed
	}

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for session: %w", ctx.Err())
	}

	select {
	case r := <-p.idle:
		p.reused.Add(1)
		return r, nil
	default:
	}

	r, err := p.factory(ctx)
	if err != nil {
		<-p.slots
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	p.created.Add(1)
	p.logger.Debug("created rendering session")
	return r, nil
}

func (p *SessionPool) release(r Renderer) {
	p.mu.Lock()
	if p.closed {
		r.Close()
	} else {
		select {
		case p.idle <- r:
		default:
			r.Close()
		}
	}
	p.mu.Unlock()
	<-p.slots
}

func (p *SessionPool) discard(r Renderer) {
	if err := r.Close(); err != nil {
		p.logger.Warnf("closing discarded session: %v", err)
	}
	p.discarded.Add(1)
	<-p.slots
}

func (p *SessionPool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Stats returns pool usage counters.
func (p *SessionPool) Stats() PoolStats {
	return PoolStats{
		MaxSessions: cap(p.slots),
		InUse:       len(p.slots),
		Idle:        len(p.idle),
		Created:     p.created.Load(),
		Reused:      p.reused.Load(),
		Discarded:   p.discarded.Load(),
	}
}

// Close closes all idle sessions. Sessions still in use are closed when
// they are returned.
func (p *SessionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case r := <-p.idle:
			r.Close()
		default:
			return nil
		}
	}
}
