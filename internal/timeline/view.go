package timeline

// CursorStart is the virtual cursor position before the first move.
const CursorStart = -1

// View is one client's navigation state over a shared timeline. A nil cursor
// means live (track the latest ply); a non-nil cursor pins the view to a ply
// index, or CursorStart for the position before any move. Views never touch
// the timeline itself, and appends never move a cursor.
type View struct {
	cursor *int
}

func NewView() *View { return &View{} }

// Live reports whether the view tracks the latest ply.
func (v *View) Live() bool { return v.cursor == nil }

// Cursor returns the pinned index and true, or false when live.
func (v *View) Cursor() (int, bool) {
	if v.cursor == nil {
		return 0, false
	}
	return *v.cursor, true
}

// GoTo pins the view to index, clamped to [CursorStart, latest].
func (v *View) GoTo(index int, tl *Timeline) {
	latest := tl.LatestIndex()
	if index > latest {
		index = latest
	}
	if index < CursorStart {
		index = CursorStart
	}
	v.cursor = &index
}

// StepBack moves one ply toward the start. Pins a live view to latest-1.
// At CursorStart it is a no-op.
func (v *View) StepBack(tl *Timeline) {
	latest := tl.LatestIndex()
	if v.cursor == nil {
		v.GoTo(latest-1, tl)
		return
	}
	if *v.cursor <= CursorStart {
		return
	}
	v.GoTo(*v.cursor-1, tl)
}

// StepForward moves one ply toward the latest. No-op when live or already at
// the latest ply (it does not flip the view back to live).
func (v *View) StepForward(tl *Timeline) {
	if v.cursor == nil {
		return
	}
	latest := tl.LatestIndex()
	if *v.cursor >= latest {
		return
	}
	v.GoTo(*v.cursor+1, tl)
}

// JumpStart pins the view before the first move.
func (v *View) JumpStart() {
	c := CursorStart
	v.cursor = &c
}

// JumpEnd returns the view to live. Idempotent.
func (v *View) JumpEnd() { v.cursor = nil }

// Current resolves the ply the view is looking at. ok is false when live on
// an empty timeline or pinned at CursorStart.
func (v *View) Current(tl *Timeline) (Ply, bool) {
	if v.cursor == nil {
		return tl.Latest()
	}
	if *v.cursor <= CursorStart {
		return Ply{}, false
	}
	p, err := tl.At(*v.cursor)
	if err != nil {
		return Ply{}, false
	}
	return p, true
}

// HasNewMoves reports whether the timeline advanced past a pinned cursor.
// Derived on every read, never stored.
func (v *View) HasNewMoves(tl *Timeline) bool {
	if v.cursor == nil {
		return false
	}
	return *v.cursor < tl.LatestIndex()
}
