package cellgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// History is a fixed-capacity ring of serialized graph snapshots. Undo and
// redo move a cursor through the ring; the counters say how far each may go.
type History struct {
	entries  [][]byte
	cursor   int
	undoable int
	redoable int
	stored   int
}

// NewHistory returns an empty ring holding capacity snapshots.
func NewHistory(capacity int) (*History, error) {
	if capacity < 2 {
		return nil, malformedf("history capacity %d, need at least 2", capacity)
	}
	return newHistory(capacity), nil
}

func newHistory(capacity int) *History {
	return &History{entries: make([][]byte, capacity)}
}

func (h *History) Capacity() int { return len(h.entries) }

// Push stores state as the newest snapshot and discards anything that could
// have been redone.
func (h *History) Push(state []byte) {
	state = bytes.Clone(state)
	if h.stored == 0 {
		h.cursor = 0
		h.entries[0] = state
		h.stored = 1
		h.undoable, h.redoable = 0, 0
		return
	}
	h.cursor = (h.cursor + 1) % len(h.entries)
	h.entries[h.cursor] = state
	h.undoable = min(h.undoable+1, len(h.entries)-1)
	h.redoable = 0
	h.stored = min(h.stored+1, len(h.entries))
}

// Undo steps back one snapshot and returns it.
func (h *History) Undo() ([]byte, bool) {
	if h.undoable == 0 {
		return nil, false
	}
	h.cursor = (h.cursor - 1 + len(h.entries)) % len(h.entries)
	h.undoable--
	h.redoable++
	return bytes.Clone(h.entries[h.cursor]), true
}

// Redo steps forward one snapshot and returns it.
func (h *History) Redo() ([]byte, bool) {
	if h.redoable == 0 {
		return nil, false
	}
	h.cursor = (h.cursor + 1) % len(h.entries)
	h.redoable--
	h.undoable++
	return bytes.Clone(h.entries[h.cursor]), true
}

// Current returns the snapshot under the cursor.
func (h *History) Current() ([]byte, bool) {
	if h.stored == 0 {
		return nil, false
	}
	return bytes.Clone(h.entries[h.cursor]), true
}

func (h *History) CanUndo() bool { return h.undoable > 0 }
func (h *History) CanRedo() bool { return h.redoable > 0 }

// HistoryState is the persistable form of a History.
type HistoryState struct {
	Capacity int               `json:"capacity"`
	Cursor   int               `json:"cursor"`
	Undoable int               `json:"undoable"`
	Redoable int               `json:"redoable"`
	Stored   int               `json:"stored"`
	Entries  []json.RawMessage `json:"entries"`
}

// State returns a detached copy of the ring.
func (h *History) State() HistoryState {
	st := HistoryState{
		Capacity: len(h.entries),
		Cursor:   h.cursor,
		Undoable: h.undoable,
		Redoable: h.redoable,
		Stored:   h.stored,
		Entries:  make([]json.RawMessage, len(h.entries)),
	}
	for i, e := range h.entries {
		if e != nil {
			st.Entries[i] = bytes.Clone(e)
		}
	}
	return st
}

// Restore replaces the ring with st after checking it is consistent.
func (h *History) Restore(st HistoryState) error {
	switch {
	case st.Capacity < 2:
		return malformedf("history capacity %d", st.Capacity)
	case len(st.Entries) != st.Capacity:
		return malformedf("history has %d entries for capacity %d", len(st.Entries), st.Capacity)
	case st.Stored < 0 || st.Stored > st.Capacity:
		return malformedf("history stored %d", st.Stored)
	case st.Cursor < 0 || st.Cursor >= st.Capacity:
		return malformedf("history cursor %d", st.Cursor)
	case st.Undoable < 0 || st.Redoable < 0 || (st.Stored > 0 && st.Undoable+st.Redoable > st.Stored-1):
		return malformedf("history counters %d/%d", st.Undoable, st.Redoable)
	}
	entries := make([][]byte, st.Capacity)
	for i, e := range st.Entries {
		if len(e) > 0 && !bytes.Equal(e, []byte("null")) {
			entries[i] = bytes.Clone(e)
		}
	}
	*h = History{
		entries:  entries,
		cursor:   st.Cursor,
		undoable: st.Undoable,
		redoable: st.Redoable,
		stored:   st.Stored,
	}
	return nil
}

// PushSnapshot serializes the graph onto its history.
func (g *Graph) PushSnapshot() error {
	data, err := g.Serialize()
	if err != nil {
		return err
	}
	g.history.Push(data)
	return nil
}

// Undo restores the previous snapshot. It reports false when there is
// nothing to undo.
func (g *Graph) Undo() (bool, error) {
	data, ok := g.history.Undo()
	if !ok {
		return false, nil
	}
	if err := g.Deserialize(data); err != nil {
		g.history.Redo()
		return false, fmt.Errorf("undo: %w", err)
	}
	return true, nil
}

// Redo restores the next snapshot. It reports false when there is nothing
// to redo.
func (g *Graph) Redo() (bool, error) {
	data, ok := g.history.Redo()
	if !ok {
		return false, nil
	}
	if err := g.Deserialize(data); err != nil {
		g.history.Undo()
		return false, fmt.Errorf("redo: %w", err)
	}
	return true, nil
}

func (g *Graph) CanUndo() bool { return g.history.CanUndo() }
func (g *Graph) CanRedo() bool { return g.history.CanRedo() }

// HistoryState returns the persistable undo history.
func (g *Graph) HistoryState() HistoryState { return g.history.State() }

// RestoreHistory replaces the undo history with st.
func (g *Graph) RestoreHistory(st HistoryState) error {
	return g.history.Restore(st)
}
