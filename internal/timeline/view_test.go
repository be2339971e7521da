package timeline

import "testing"

func filled(t *testing.T, n int) *Timeline {
	t.Helper()
	tl := New()
	for i := 0; i < n; i++ {
		if err := tl.Append(ply(i, "m")); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}
	return tl
}

func TestViewStartsLive(t *testing.T) {
	v := NewView()
	if !v.Live() {
		t.Fatalf("new view should be live")
	}
	if _, ok := v.Cursor(); ok {
		t.Fatalf("live view should report no cursor")
	}
}

func TestStepBackAndForwardBoundaries(t *testing.T) {
	tl := filled(t, 2)
	v := NewView()

	v.StepBack(tl) // live at 1 → pinned at 0
	if c, ok := v.Cursor(); !ok || c != 0 {
		t.Fatalf("cursor = %d ok=%v, want 0", c, ok)
	}
	v.StepBack(tl) // → -1
	v.StepBack(tl) // boundary no-op
	if c, _ := v.Cursor(); c != CursorStart {
		t.Fatalf("cursor = %d, want %d", c, CursorStart)
	}

	v.StepForward(tl)
	v.StepForward(tl)
	if c, ok := v.Cursor(); !ok || c != 1 {
		t.Fatalf("cursor = %d ok=%v, want 1", c, ok)
	}
	// at latest: forward stays pinned, never flips to live implicitly
	v.StepForward(tl)
	if v.Live() {
		t.Fatalf("StepForward at latest must not go live")
	}
}

func TestStepForwardWhileLiveIsNoop(t *testing.T) {
	tl := filled(t, 3)
	v := NewView()
	v.StepForward(tl)
	if !v.Live() {
		t.Fatalf("StepForward on live view should be a no-op")
	}
}

func TestJumpEndIdempotent(t *testing.T) {
	tl := filled(t, 3)
	v := NewView()
	v.JumpEnd()
	if !v.Live() {
		t.Fatalf("JumpEnd on live view should stay live")
	}
	v.JumpStart()
	if c, _ := v.Cursor(); c != CursorStart {
		t.Fatalf("JumpStart cursor = %d", c)
	}
	v.JumpEnd()
	if !v.Live() {
		t.Fatalf("JumpEnd should return to live")
	}
	p, ok := v.Current(tl)
	if !ok || p.Index != 2 {
		t.Fatalf("Current after JumpEnd = %+v ok=%v, want ply 2", p, ok)
	}
}

func TestGoToClamps(t *testing.T) {
	tl := filled(t, 2)
	v := NewView()
	v.GoTo(99, tl)
	if c, _ := v.Cursor(); c != 1 {
		t.Fatalf("GoTo(99) cursor = %d, want 1", c)
	}
	v.GoTo(-99, tl)
	if c, _ := v.Cursor(); c != CursorStart {
		t.Fatalf("GoTo(-99) cursor = %d, want %d", c, CursorStart)
	}
}

func TestHasNewMovesDerived(t *testing.T) {
	tl := filled(t, 1)
	v := NewView()
	if v.HasNewMoves(tl) {
		t.Fatalf("live view never reports new moves")
	}
	v.JumpStart() // pinned at -1, latest is 0
	if !v.HasNewMoves(tl) {
		t.Fatalf("pinned behind latest should report new moves")
	}
	v.GoTo(0, tl)
	if v.HasNewMoves(tl) {
		t.Fatalf("pinned at latest should not report new moves")
	}
	// append advances the timeline but must not move the cursor
	if err := tl.Append(ply(1, "m")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if c, ok := v.Cursor(); !ok || c != 0 {
		t.Fatalf("append moved the cursor: %d ok=%v", c, ok)
	}
	if !v.HasNewMoves(tl) {
		t.Fatalf("HasNewMoves should flip true after append past cursor")
	}
	v.JumpEnd()
	if v.HasNewMoves(tl) {
		t.Fatalf("back to live, no new-move flag")
	}
}
