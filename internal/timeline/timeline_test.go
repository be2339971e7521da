package timeline

import (
	"errors"
	"testing"
)

func ply(i int, notation string) Ply {
	return Ply{Index: i, Notation: notation, PlayerID: "p"}
}

func TestAppendContiguous(t *testing.T) {
	tl := New()
	if got := tl.LatestIndex(); got != -1 {
		t.Fatalf("empty LatestIndex = %d, want -1", got)
	}
	for i := 0; i < 3; i++ {
		if err := tl.Append(ply(i, "m")); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}
	if got := tl.Len(); got != 3 {
		t.Fatalf("Len = %d, want 3", got)
	}
	last, ok := tl.Latest()
	if !ok || last.Index != 2 {
		t.Fatalf("Latest = %+v ok=%v", last, ok)
	}
}

func TestAppendRejectsGapsAndDuplicates(t *testing.T) {
	tl := New()
	if err := tl.Append(ply(0, "a")); err != nil {
		t.Fatalf("Append(0): %v", err)
	}
	for _, idx := range []int{0, 2, -1, 5} {
		if err := tl.Append(ply(idx, "x")); !errors.Is(err, ErrOutOfOrder) {
			t.Fatalf("Append(%d) = %v, want ErrOutOfOrder", idx, err)
		}
	}
	// rejected appends leave latest unchanged
	if got := tl.LatestIndex(); got != 0 {
		t.Fatalf("LatestIndex after rejections = %d, want 0", got)
	}
}

func TestAtBounds(t *testing.T) {
	tl := New()
	_ = tl.Append(ply(0, "a"))
	if _, err := tl.At(-1); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("At(-1) = %v, want ErrOutOfRange", err)
	}
	if _, err := tl.At(1); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("At(1) = %v, want ErrOutOfRange", err)
	}
	p, err := tl.At(0)
	if err != nil || p.Notation != "a" {
		t.Fatalf("At(0) = %+v, %v", p, err)
	}
}

func TestTail(t *testing.T) {
	tl := New()
	for i := 0; i < 6; i++ {
		_ = tl.Append(ply(i, "m"))
	}
	// client knows ply 3, timeline is at 5 → replay exactly 4 and 5
	tail := tl.Tail(3)
	if len(tail) != 2 || tail[0].Index != 4 || tail[1].Index != 5 {
		t.Fatalf("Tail(3) = %+v, want plies 4,5", tail)
	}
	if got := len(tl.Tail(-1)); got != 6 {
		t.Fatalf("Tail(-1) len = %d, want 6", got)
	}
	if tl.Tail(5) != nil {
		t.Fatalf("Tail(latest) should be empty")
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tl := New()
	_ = tl.Append(ply(0, "a"))
	snap := tl.Snapshot()
	snap[0].Notation = "mutated"
	p, _ := tl.At(0)
	if p.Notation != "a" {
		t.Fatalf("snapshot mutation leaked into timeline")
	}
}
