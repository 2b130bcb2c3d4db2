package cellgraph_test

import (
	"errors"
	"testing"

	"github.com/ravi-parthasarathy/cellgraph/pkg/cellgraph"
)

func hoistedGraph(t *testing.T) *cellgraph.Graph {
	t.Helper()
	g := newGraph(t,
		cellSpec{code: "k = 3", writes: []string{"k"}},
		cellSpec{
			code:   "# scale by k\ndef scale(v):\n    return v * k\n\ny = scale(2)",
			reads:  []string{"k", "scale"},
			writes: []string{"scale", "y"},
		},
	)
	if err := g.HoistFunctionDeclarations(); err != nil {
		t.Fatalf("HoistFunctionDeclarations: %v", err)
	}
	return g
}

func TestHoistFunctionDeclarations(t *testing.T) {
	g := hoistedGraph(t)
	if g.Len() != 3 {
		t.Fatalf("Len = %d, want 3", g.Len())
	}
	checkInvariants(t, g)

	fc := cell(t, g, 1)
	if !fc.IsFunctionCell || fc.Role.Kind != cellgraph.RoleScript {
		t.Fatalf("cell 1 should be a script function cell, got %+v", fc.Role)
	}
	if fc.Code != "# scale by k\ndef scale(v):\n    return v * k" {
		t.Errorf("function cell code = %q", fc.Code)
	}
	if got := fc.Reads.Sorted(); len(got) != 1 || got[0] != "k" {
		t.Errorf("function cell reads = %v, want [k]", got)
	}
	if got := fc.DependsOn["k"]; got != 0 {
		t.Errorf("function cell dependsOn[k] = %d, want 0", got)
	}

	rest := cell(t, g, 2)
	if rest.Code != "y = scale(2)" {
		t.Errorf("remaining code = %q", rest.Code)
	}
	if rest.Reads.Len() != 0 {
		t.Errorf("remaining reads = %v, want none", rest.Reads.Sorted())
	}
	if rest.Writes.Has("scale") {
		t.Errorf("hoisted function should no longer be a write of the origin")
	}
	if got, ok := rest.DependsOnFunction["scale"]; !ok || got != 1 {
		t.Errorf("dependsOnFunction[scale] = %d (%v), want 1", got, ok)
	}
}

func TestMakeFunctionIndependent_RoundTrip(t *testing.T) {
	g := hoistedGraph(t)
	if err := g.MakeFunctionIndependent(1); err != nil {
		t.Fatalf("MakeFunctionIndependent: %v", err)
	}
	checkInvariants(t, g)

	fc := cell(t, g, 1)
	if fc.Code != "# scale by k\ndef scale(v, k__param):\n    return v * k__param" {
		t.Errorf("function code = %q", fc.Code)
	}
	if fc.Reads.Len() != 0 {
		t.Errorf("function reads = %v, want none", fc.Reads.Sorted())
	}
	if !fc.ReplacedFunctionVariables.Has("k") {
		t.Errorf("k should be recorded as replaced")
	}
	caller := cell(t, g, 2)
	if caller.Code != "y = scale(2, k__param=k)" {
		t.Errorf("caller code = %q", caller.Code)
	}
	if got, ok := caller.DependsOn["k"]; !ok || got != 0 {
		t.Errorf("caller dependsOn[k] = %d (%v), want 0", got, ok)
	}

	if err := g.RemoveFunctionDependency(1, "k"); err != nil {
		t.Fatalf("RemoveFunctionDependency: %v", err)
	}
	checkInvariants(t, g)
	fc, caller = cell(t, g, 1), cell(t, g, 2)
	if fc.Code != "# scale by k\ndef scale(v):\n    return v * k" {
		t.Errorf("restored function code = %q", fc.Code)
	}
	if !fc.Reads.Has("k") || fc.ReplacedFunctionVariables.Has("k") {
		t.Errorf("k should be a read again, reads=%v", fc.Reads.Sorted())
	}
	if caller.Code != "y = scale(2)" || caller.Reads.Has("k") {
		t.Errorf("caller = %q reads %v", caller.Code, caller.Reads.Sorted())
	}
}

func TestMakeFunctionIndependent_NotFunctionCell(t *testing.T) {
	g := newGraph(t, cellSpec{code: "x = 1", writes: []string{"x"}})
	if err := g.MakeFunctionIndependent(0); !errors.Is(err, cellgraph.ErrNotFunctionCell) {
		t.Fatalf("err = %v, want ErrNotFunctionCell", err)
	}
	if err := g.RemoveFunctionDependency(0, "x"); !errors.Is(err, cellgraph.ErrNotFunctionCell) {
		t.Fatalf("err = %v, want ErrNotFunctionCell", err)
	}
}

func TestMakeFunctionIndependent_NothingToReplace(t *testing.T) {
	g := newGraph(t,
		cellSpec{code: "def twice(v):\n    return 2 * v\n"},
		cellSpec{code: "y = twice(4)", writes: []string{"y"}},
	)
	before := cell(t, g, 1).Code
	if err := g.MakeFunctionIndependent(0); err != nil {
		t.Fatalf("MakeFunctionIndependent: %v", err)
	}
	caller := cell(t, g, 1)
	if caller.Code != before {
		t.Errorf("caller rewritten to %q", caller.Code)
	}
	if got, ok := caller.DependsOnFunction["twice"]; !ok || got != 0 {
		t.Errorf("dependsOnFunction[twice] = %d (%v), want 0", got, ok)
	}
}

func TestRemoveCellDependency_OnReplacedVariable(t *testing.T) {
	g := hoistedGraph(t)
	if err := g.MakeFunctionIndependent(1); err != nil {
		t.Fatal(err)
	}
	if err := g.RemoveCellDependency(1, "k"); err != nil {
		t.Fatalf("RemoveCellDependency: %v", err)
	}
	if cell(t, g, 1).ReplacedFunctionVariables.Has("k") {
		t.Errorf("parameter for k should be gone")
	}
}
