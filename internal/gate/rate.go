package gate

import (
	"sync"
	"time"
)

// DefaultChatInterval is the minimum spacing between accepted chat messages
// on one connection.
const DefaultChatInterval = time.Second

// RateGate throttles per-connection message frequency. State is owned by the
// gate instance, keyed by connection id, and must be dropped with Forget when
// the connection closes so the map cannot grow unbounded.
type RateGate struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastAllowed map[string]time.Time
}

func NewRateGate(minInterval time.Duration) *RateGate {
	if minInterval <= 0 {
		minInterval = DefaultChatInterval
	}
	return &RateGate{
		minInterval: minInterval,
		lastAllowed: make(map[string]time.Time),
	}
}

// TryConsume reports whether a message on connID is allowed at now, and on
// allow records now as the last accepted time.
func (g *RateGate) TryConsume(connID string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.lastAllowed[connID]; ok && now.Sub(last) < g.minInterval {
		return false
	}
	g.lastAllowed[connID] = now
	return true
}

// Forget drops the entry for a closed connection.
func (g *RateGate) Forget(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.lastAllowed, connID)
}

// Tracked returns the number of live entries.
func (g *RateGate) Tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.lastAllowed)
}
