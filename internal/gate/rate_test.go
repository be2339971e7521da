package gate

import (
	"testing"
	"time"
)

func TestTryConsumeWindow(t *testing.T) {
	g := NewRateGate(time.Second)
	base := time.Unix(1000, 0)

	if !g.TryConsume("c1", base) {
		t.Fatalf("first message should be allowed")
	}
	if g.TryConsume("c1", base.Add(999*time.Millisecond)) {
		t.Fatalf("second message inside the window should be rejected")
	}
	if !g.TryConsume("c1", base.Add(time.Second)) {
		t.Fatalf("message at exactly the interval should be allowed")
	}
}

func TestRejectedMessageDoesNotResetWindow(t *testing.T) {
	g := NewRateGate(time.Second)
	base := time.Unix(1000, 0)
	_ = g.TryConsume("c1", base)
	_ = g.TryConsume("c1", base.Add(500*time.Millisecond)) // rejected
	if !g.TryConsume("c1", base.Add(1100*time.Millisecond)) {
		t.Fatalf("window must be measured from the last ALLOWED message")
	}
}

func TestConnectionsAreIndependent(t *testing.T) {
	g := NewRateGate(time.Second)
	base := time.Unix(1000, 0)
	if !g.TryConsume("c1", base) || !g.TryConsume("c2", base) {
		t.Fatalf("different connections must not share a window")
	}
}

func TestForgetDropsEntry(t *testing.T) {
	g := NewRateGate(time.Second)
	base := time.Unix(1000, 0)
	_ = g.TryConsume("c1", base)
	_ = g.TryConsume("c2", base)
	g.Forget("c1")
	if got := g.Tracked(); got != 1 {
		t.Fatalf("Tracked = %d, want 1", got)
	}
	// a fresh connection reusing the id starts with a clean window
	if !g.TryConsume("c1", base.Add(time.Millisecond)) {
		t.Fatalf("forgotten connection should be allowed immediately")
	}
}
