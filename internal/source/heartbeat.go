package source

import (
	"context"
	"time"

	"github.com/kvance/remapd/internal/event"
)

// HeartbeatInterval is how often the runtime announces liveness.
const HeartbeatInterval = 5 * time.Second

// Heartbeat periodically publishes a liveness tick so observers can
// tell a quiet runtime from a dead one.
type Heartbeat struct {
	bus      *event.Bus
	interval time.Duration
}

// NewHeartbeat creates a heartbeat with the given interval, or
// HeartbeatInterval when zero.
func NewHeartbeat(bus *event.Bus, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = HeartbeatInterval
	}
	return &Heartbeat{bus: bus, interval: interval}
}

// Run ticks until the context is cancelled.
func (h *Heartbeat) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			h.bus.Publish(event.TopicHeartbeat, t)
		}
	}
}
