package browser

import (
	"context"
	"fmt"
	"sync"

	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
)

// -----------------------------------------------------------------------------

// PoolStats is a point-in-time view of the pool.
type PoolStats struct {
	Idle      int `json:"idle"`
	InUse     int `json:"in_use"`
	Created   int `json:"created"`
	Discarded int `json:"discarded"`
	MaxActive int `json:"max_active"`
}

// -----------------------------------------------------------------------------

// SessionPool reuses browser sessions across workers. Idle sessions are kept
// on a LIFO stack so the most recently used (warmest) one is handed out first.
// When maxActive > 0 at most that many sessions exist at once; otherwise
// growth is bounded only by the callers' own worker counts.
type SessionPool struct {
	factory interfaces.ISessionFactory
	logger  *logger.Logger

	mu        sync.Mutex
	idle      []interfaces.ISession
	inUse     int
	created   int
	discarded int
	closed    bool

	slots     chan struct{}
	maxActive int
}

// -----------------------------------------------------------------------------

func NewSessionPool(factory interfaces.ISessionFactory, maxActive int, log *logger.Logger) *SessionPool {
	p := &SessionPool{
		factory:   factory,
		logger:    log,
		maxActive: maxActive,
	}
	if maxActive > 0 {
		p.slots = make(chan struct{}, maxActive)
	}
	return p
}

// -----------------------------------------------------------------------------

// Acquire pops an idle session or launches a new one. A launch failure is
// returned as is; the pool never retries it.
func (p *SessionPool) Acquire(ctx context.Context) (interfaces.ISession, error) {
	if p.slots != nil {
		select {
		case p.slots <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.freeSlot()
		return nil, fmt.Errorf("session pool is closed")
	}
	if n := len(p.idle); n > 0 {
		s := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.inUse++
		p.mu.Unlock()
		return s, nil
	}
	p.mu.Unlock()

	s, err := p.factory.NewSession(ctx)
	if err != nil {
		p.freeSlot()
		return nil, err
	}

	p.mu.Lock()
	p.created++
	p.inUse++
	p.mu.Unlock()

	p.logger.Debug("Launched session %s", s.ID())
	return s, nil
}

// -----------------------------------------------------------------------------

// Release returns a healthy session to the idle stack.
func (p *SessionPool) Release(s interfaces.ISession) {
	if s == nil {
		return
	}

	p.mu.Lock()
	p.inUse--
	if p.closed {
		p.mu.Unlock()
		p.freeSlot()
		s.Close()
		return
	}
	p.idle = append(p.idle, s)
	p.mu.Unlock()
	p.freeSlot()
}

// -----------------------------------------------------------------------------

// Discard closes a session judged broken. The next Acquire builds a fresh one.
func (p *SessionPool) Discard(s interfaces.ISession) {
	if s == nil {
		return
	}

	p.mu.Lock()
	p.inUse--
	p.discarded++
	p.mu.Unlock()
	p.freeSlot()

	p.logger.Warning("Discarding session %s", s.ID())
	if err := s.Close(); err != nil {
		p.logger.Debug("Closing discarded session %s: %v", s.ID(), err)
	}
}

// -----------------------------------------------------------------------------

// Close shuts down every idle session. Sessions still checked out are closed
// when they are released.
func (p *SessionPool) Close() error {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()

	var firstErr error
	for _, s := range idle {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.logger.Info("Session pool closed (%d idle sessions shut down)", len(idle))
	return firstErr
}

// -----------------------------------------------------------------------------

func (p *SessionPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Idle:      len(p.idle),
		InUse:     p.inUse,
		Created:   p.created,
		Discarded: p.discarded,
		MaxActive: p.maxActive,
	}
}

// -----------------------------------------------------------------------------

func (p *SessionPool) freeSlot() {
	if p.slots != nil {
		<-p.slots
	}
}
