package rate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter gates outbound API calls so we respect provider rate limits.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Pacer enforces a minimum interval between calls. Unlike a ticker-backed
// bucket it holds no goroutine, so there is nothing to stop.
type Pacer struct {
	interval time.Duration

	mu   sync.Mutex
	next time.Time
}

// NewPacer returns a limiter admitting at most rps calls per second.
func NewPacer(rps int) *Pacer {
	if rps <= 0 {
		rps = 1
	}
	return &Pacer{interval: time.Second / time.Duration(rps)}
}

// Wait blocks until this caller's slot arrives or the context is canceled.
// Concurrent callers take slots in the order they reserve them.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	at := p.next
	if at.Before(now) {
		at = now
	}
	p.next = at.Add(p.interval)
	p.mu.Unlock()

	delay := time.Until(at)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

var _ Limiter = (*Pacer)(nil)
