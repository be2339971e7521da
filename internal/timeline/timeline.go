package timeline

import "sync"

// Ply is a single move in a match, identified by its zero-based index.
// Plies are immutable once appended.
type Ply struct {
	Index    int    `json:"index"`
	Notation string `json:"notation"`
	PlayerID string `json:"player_id"`
}

var (
	ErrOutOfOrder = errf("ply index does not extend the timeline")
	ErrOutOfRange = errf("ply index out of range")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

// Timeline is the canonical append-only ply sequence of one session.
// Indices are contiguous starting at 0: no gaps, no duplicates, no reordering.
type Timeline struct {
	mu    sync.RWMutex
	plies []Ply
}

func New() *Timeline { return &Timeline{} }

// Append accepts the ply only when it extends the sequence by exactly one.
// Anything else is OutOfOrder and leaves the timeline untouched.
func (t *Timeline) Append(p Ply) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.Index != len(t.plies) {
		return ErrOutOfOrder
	}
	t.plies = append(t.plies, p)
	return nil
}

func (t *Timeline) At(index int) (Ply, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index < 0 || index >= len(t.plies) {
		return Ply{}, ErrOutOfRange
	}
	return t.plies[index], nil
}

// Latest returns the last appended ply, or false when the timeline is empty.
func (t *Timeline) Latest() (Ply, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.plies) == 0 {
		return Ply{}, false
	}
	return t.plies[len(t.plies)-1], true
}

// LatestIndex is the index of the last ply, or -1 when empty.
func (t *Timeline) LatestIndex() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.plies) - 1
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.plies)
}

// Snapshot copies the full sequence.
func (t *Timeline) Snapshot() []Ply {
	return t.Tail(-1)
}

// Tail copies the plies strictly after the given index. Tail(-1) is the
// whole timeline; a caller that already knows ply N asks for Tail(N).
func (t *Timeline) Tail(afterIndex int) []Ply {
	t.mu.RLock()
	defer t.mu.RUnlock()
	start := afterIndex + 1
	if start < 0 {
		start = 0
	}
	if start >= len(t.plies) {
		return nil
	}
	out := make([]Ply, len(t.plies)-start)
	copy(out, t.plies[start:])
	return out
}

// Notations returns the plain notation strings in order, for handing a
// position to a rules engine.
func (t *Timeline) Notations() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.plies))
	for i, p := range t.plies {
		out[i] = p.Notation
	}
	return out
}
