package store

import (
	"sync"
	"time"
)

// Heartbeat records service liveness. Handlers beat it on successful
// requests; the health endpoint exposes the last beat. It is an explicit
// dependency passed to whoever needs it, never a package global.
type Heartbeat struct {
	mu   sync.Mutex
	last time.Time
}

// NewHeartbeat creates a heartbeat with the current time as first beat.
func NewHeartbeat() *Heartbeat {
	return &Heartbeat{last: time.Now().UTC()}
}

// Beat records liveness now.
func (h *Heartbeat) Beat() {
	h.mu.Lock()
	h.last = time.Now().UTC()
	h.mu.Unlock()
}

// Last returns the time of the most recent beat.
func (h *Heartbeat) Last() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// FreshWithin reports whether the last beat is within the window.
func (h *Heartbeat) FreshWithin(window time.Duration) bool {
	return time.Since(h.Last()) <= window
}
