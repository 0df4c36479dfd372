// Package history keeps bounded undo/redo stacks of whole-document snapshots.
package history

// DefaultLimit is the undo depth used when none is configured.
const DefaultLimit = 50

// History is an undo stack of prior contents and a redo stack of undone ones.
// It is not safe for concurrent use; the editor session guards it.
type History struct {
	limit int
	undo  []string
	redo  []string
}

// New returns an empty history holding at most limit undo entries.
// A non-positive limit selects DefaultLimit.
func New(limit int) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{limit: limit}
}

// Record pushes the content as it was immediately before an edit.
// The oldest entry is evicted once the limit is reached, and redo is cleared.
func (h *History) Record(previous string) {
	if len(h.undo) >= h.limit {
		copy(h.undo, h.undo[1:])
		h.undo = h.undo[:len(h.undo)-1]
	}
	h.undo = append(h.undo, previous)
	h.redo = h.redo[:0]
}

// Undo pops the most recent snapshot and pushes current onto redo.
// It returns false and leaves both stacks untouched when there is nothing to undo.
func (h *History) Undo(current string) (string, bool) {
	if len(h.undo) == 0 {
		return "", false
	}
	prev := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current)
	return prev, true
}

// Redo reverses the last Undo.
func (h *History) Redo(current string) (string, bool) {
	if len(h.redo) == 0 {
		return "", false
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, current)
	return next, true
}

// Reset drops both stacks, e.g. when another document is opened.
func (h *History) Reset() {
	h.undo = nil
	h.redo = nil
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Len returns the undo and redo depths.
func (h *History) Len() (undo, redo int) {
	return len(h.undo), len(h.redo)
}

// Limit returns the configured undo depth.
func (h *History) Limit() int { return h.limit }
