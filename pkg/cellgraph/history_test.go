package cellgraph_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/ravi-parthasarathy/cellgraph/pkg/cellgraph"
)

// ─── History ring ─────────────────────────────────────────────────────────────

func TestHistory_FourSlotRoundTrip(t *testing.T) {
	h, err := cellgraph.NewHistory(4)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i <= 4; i++ {
		h.Push([]byte(fmt.Sprintf("S%d", i)))
	}

	for _, want := range []string{"S3", "S2", "S1"} {
		got, ok := h.Undo()
		if !ok || string(got) != want {
			t.Fatalf("Undo = %q, %v; want %q", got, ok, want)
		}
	}
	if h.CanUndo() {
		t.Errorf("CanUndo should be false beyond capacity")
	}
	if _, ok := h.Undo(); ok {
		t.Errorf("Undo past capacity succeeded")
	}

	for _, want := range []string{"S2", "S3", "S4"} {
		got, ok := h.Redo()
		if !ok || string(got) != want {
			t.Fatalf("Redo = %q, %v; want %q", got, ok, want)
		}
	}
	if h.CanRedo() {
		t.Errorf("CanRedo should be false at the newest state")
	}

	h.Undo()
	h.Push([]byte("S5"))
	if h.CanRedo() {
		t.Errorf("CanRedo should be false after a fresh push")
	}
	if cur, _ := h.Current(); string(cur) != "S5" {
		t.Errorf("Current = %q, want S5", cur)
	}
}

func TestHistory_RejectsTinyCapacity(t *testing.T) {
	if _, err := cellgraph.NewHistory(1); !errors.Is(err, cellgraph.ErrMalformedInput) {
		t.Fatalf("err = %v, want ErrMalformedInput", err)
	}
}

func TestHistory_StateRestore(t *testing.T) {
	h, _ := cellgraph.NewHistory(3)
	h.Push([]byte(`{"a":1}`))
	h.Push([]byte(`{"a":2}`))
	h.Undo()

	data, err := json.Marshal(h.State())
	if err != nil {
		t.Fatal(err)
	}
	var st cellgraph.HistoryState
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatal(err)
	}
	restored, _ := cellgraph.NewHistory(2)
	if err := restored.Restore(st); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Capacity() != 3 || restored.CanUndo() || !restored.CanRedo() {
		t.Fatalf("restored ring: cap=%d undo=%v redo=%v", restored.Capacity(), restored.CanUndo(), restored.CanRedo())
	}
	if got, _ := restored.Redo(); string(got) != `{"a":2}` {
		t.Errorf("Redo = %s", got)
	}

	st.Cursor = 7
	if err := restored.Restore(st); !errors.Is(err, cellgraph.ErrMalformedInput) {
		t.Errorf("err = %v, want ErrMalformedInput", err)
	}
}

// ─── Graph undo/redo ──────────────────────────────────────────────────────────

func TestGraph_UndoRedo(t *testing.T) {
	g := newGraph(t,
		cellSpec{code: "x = 1", writes: []string{"x"}},
		cellSpec{code: "y = 2", writes: []string{"y"}},
	)
	if g.CanUndo() || g.CanRedo() {
		t.Fatalf("fresh graph should have no history")
	}
	if err := g.PushSnapshot(); err != nil {
		t.Fatal(err)
	}
	if err := g.MergeCells(0, 1); err != nil {
		t.Fatal(err)
	}
	if err := g.PushSnapshot(); err != nil {
		t.Fatal(err)
	}

	ok, err := g.Undo()
	if !ok || err != nil {
		t.Fatalf("Undo = %v, %v", ok, err)
	}
	if g.Len() != 2 {
		t.Errorf("Len after undo = %d, want 2", g.Len())
	}
	ok, err = g.Redo()
	if !ok || err != nil {
		t.Fatalf("Redo = %v, %v", ok, err)
	}
	if g.Len() != 1 {
		t.Errorf("Len after redo = %d, want 1", g.Len())
	}
	if ok, _ := g.Redo(); ok {
		t.Errorf("Redo with nothing to redo succeeded")
	}
}

func TestGraph_WithHistoryCapacity(t *testing.T) {
	g := cellgraph.New(cellgraph.WithHistoryCapacity(2), cellgraph.WithConfig("a: 1"))
	for i := 0; i < 5; i++ {
		if err := g.PushSnapshot(); err != nil {
			t.Fatal(err)
		}
	}
	if st := g.HistoryState(); st.Capacity != 2 || st.Undoable != 1 {
		t.Errorf("state = %+v, want capacity 2 undoable 1", st)
	}
	if g.Config() != "a: 1" {
		t.Errorf("Config = %q", g.Config())
	}
}
