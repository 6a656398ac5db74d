package session

// DefaultHistoryDepth bounds the undo stack. Snapshots are structural copies,
// not diffs; with realistic session sizes the memory cost is small and the
// restore path stays trivial.
const DefaultHistoryDepth = 50

// History holds bounded undo/redo stacks of session snapshots. Snapshots
// exclude selection and playhead: restoring them would make undo jump the
// user's focus around.
type History struct {
	depth int
	undo  []*Session
	redo  []*Session
}

// NewHistory creates a history bounded to depth snapshots. A depth of zero or
// less falls back to DefaultHistoryDepth.
func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	return &History{depth: depth}
}

// Commit records prev as the state to return to on undo and clears the redo
// stack. When the stack is full the oldest snapshot is evicted.
func (h *History) Commit(prev *Session) {
	h.undo = append(h.undo, snapshot(prev))
	if len(h.undo) > h.depth {
		h.undo = h.undo[1:]
	}
	h.redo = h.redo[:0]
}

// Undo pops the most recent snapshot, pushing current onto the redo stack.
// Returns nil when there is nothing to undo.
func (h *History) Undo(current *Session) *Session {
	if len(h.undo) == 0 {
		return nil
	}
	top := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, snapshot(current))
	return top.Clone()
}

// Redo is symmetric to Undo. Returns nil when the redo stack is empty.
func (h *History) Redo(current *Session) *Session {
	if len(h.redo) == 0 {
		return nil
	}
	top := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, snapshot(current))
	return top.Clone()
}

// CanUndo reports whether an undo snapshot is available. The frontend uses
// this to disable the control instead of erroring.
func (h *History) CanUndo() bool {
	return len(h.undo) > 0
}

// CanRedo reports whether a redo snapshot is available.
func (h *History) CanRedo() bool {
	return len(h.redo) > 0
}

// Depth returns the current undo stack size.
func (h *History) Depth() int {
	return len(h.undo)
}

func snapshot(s *Session) *Session {
	c := s.Clone()
	c.SelectedSegmentID = ""
	c.SelectedOverlayID = ""
	return c
}
