package dispatch

import (
	"sync"
	"time"
)

// Pulser schedules the delayed halves of synthetic press/release
// pairs (mode transitions, gate-crossing pulses). Timers are tracked
// so a stopping run can cancel everything still outstanding instead
// of leaking one-shot goroutines.
type Pulser struct {
	mu     sync.Mutex
	next   uint64
	timers map[uint64]*time.Timer
	closed bool
}

// NewPulser creates an empty scheduler.
func NewPulser() *Pulser {
	return &Pulser{timers: make(map[uint64]*time.Timer)}
}

// After runs fn once after the delay. Scheduling against a closed
// pulser is a no-op; the triggering goroutine has already moved on
// and must not block.
func (p *Pulser) After(delay time.Duration, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	id := p.next
	p.next++
	p.timers[id] = time.AfterFunc(delay, func() {
		p.mu.Lock()
		delete(p.timers, id)
		closed := p.closed
		p.mu.Unlock()
		if !closed {
			fn()
		}
	})
}

// Pending reports outstanding timers.
func (p *Pulser) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.timers)
}

// Close cancels every outstanding timer and rejects new ones.
func (p *Pulser) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for id, t := range p.timers {
		t.Stop()
		delete(p.timers, id)
	}
}
