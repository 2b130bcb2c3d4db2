package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ravi-parthasarathy/cellgraph/pkg/agent/tools"
	"github.com/ravi-parthasarathy/cellgraph/pkg/cellgraph"
	"github.com/ravi-parthasarathy/cellgraph/pkg/workspace"
)

type usageTable map[string]cellgraph.Usage

func (u usageTable) Analyze(_ context.Context, fragments []string) ([]cellgraph.Usage, error) {
	out := make([]cellgraph.Usage, len(fragments))
	for i, f := range fragments {
		out[i] = u[f]
	}
	return out, nil
}

var usages = usageTable{
	"y = 1":     {Writes: []string{"y"}},
	"z = y * n": {Reads: []string{"y", "n"}, Writes: []string{"z"}},
	"print(z)":  {Reads: []string{"z"}},
}

func newWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws := workspace.New(workspace.WithAnalyzer(usages))
	ref, err := ws.Import(context.Background(), []string{"y = 1", "z = y * n", "print(z)"})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if _, err := ref.Wait(context.Background()); err != nil {
		t.Fatalf("refinement: %v", err)
	}
	return ws
}

func run(t *testing.T, reg *tools.Registry, name, input string) (string, error) {
	t.Helper()
	tool, err := reg.Get(name)
	if err != nil {
		t.Fatalf("Get(%q): %v", name, err)
	}
	return tool.Execute(context.Background(), json.RawMessage(input))
}

// ─── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_GetMissing(t *testing.T) {
	reg := tools.NewRegistry()
	_, err := reg.Get("nonexistent")
	if !errors.Is(err, tools.ErrUnknownTool) {
		t.Fatalf("Get = %v, want ErrUnknownTool", err)
	}
}

type stubTool struct{ name, schema string }

func (s stubTool) Name() string                 { return s.name }
func (s stubTool) Description() string          { return "stub" }
func (s stubTool) InputSchema() json.RawMessage { return json.RawMessage(s.schema) }
func (s stubTool) Execute(context.Context, json.RawMessage) (string, error) {
	return "ok", nil
}

func TestRegistry_RegisterRejects(t *testing.T) {
	tests := []struct {
		name  string
		tools []stubTool
	}{
		{"empty name", []stubTool{{"", schemaObject}}},
		{"duplicate", []stubTool{{"a", schemaObject}, {"a", schemaObject}}},
		{"bad json", []stubTool{{"a", "{"}}},
		{"not an object", []stubTool{{"a", `{"type":"string"}`}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("Register did not panic")
				}
			}()
			reg := tools.NewRegistry()
			for _, st := range tt.tools {
				reg.Register(st)
			}
		})
	}
}

const schemaObject = `{"type":"object","properties":{}}`

func TestRegistry_Definitions(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(stubTool{"zeta", schemaObject})
	reg.Register(stubTool{"alpha", schemaObject})
	defs := reg.Definitions()
	if reg.Len() != 2 || len(defs) != 2 {
		t.Fatalf("Len = %d, definitions = %d, want 2", reg.Len(), len(defs))
	}
	if defs[0].Name != "alpha" || defs[1].Name != "zeta" {
		t.Errorf("definitions = %s, %s; want alpha, zeta", defs[0].Name, defs[1].Name)
	}
	if string(defs[0].InputSchema) != schemaObject {
		t.Errorf("schema = %s", defs[0].InputSchema)
	}
}

func TestRegistry_AllIsSorted(t *testing.T) {
	reg := tools.NewGraphTools(workspace.New())
	all := reg.All()
	if len(all) < 10 {
		t.Fatalf("expected the full graph tool set, got %d tools", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Name() >= all[i].Name() {
			t.Errorf("tools out of order: %s before %s", all[i-1].Name(), all[i].Name())
		}
	}
	for _, tool := range all {
		var schema map[string]any
		if err := json.Unmarshal(tool.InputSchema(), &schema); err != nil {
			t.Errorf("%s: schema is not JSON: %v", tool.Name(), err)
		}
		if schema["type"] != "object" {
			t.Errorf("%s: schema type = %v, want object", tool.Name(), schema["type"])
		}
	}
}

// ─── Inspection ───────────────────────────────────────────────────────────────

func TestListCells(t *testing.T) {
	reg := tools.NewGraphTools(newWorkspace(t))
	out, err := run(t, reg, "list_cells", `{}`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "reads=n,y") || !strings.Contains(lines[1], "missing=n") {
		t.Errorf("line 1 = %q, want reads and missing n", lines[1])
	}

	empty, _ := run(t, tools.NewGraphTools(workspace.New()), "list_cells", ``)
	if empty != "no cells" {
		t.Errorf("empty listing = %q", empty)
	}
}

func TestShowCell(t *testing.T) {
	reg := tools.NewGraphTools(newWorkspace(t))
	out, err := run(t, reg, "show_cell", `{"cell":2}`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var s cellgraph.CellSummary
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("output is not a summary: %v", err)
	}
	if s.Index != 2 || s.Code != "print(z)" || s.DependsOn["z"] != 1 {
		t.Errorf("summary = %+v", s)
	}

	if _, err := run(t, reg, "show_cell", `{"cell":7}`); !errors.Is(err, cellgraph.ErrIndexOutOfRange) {
		t.Errorf("err = %v, want ErrIndexOutOfRange", err)
	}
}

// ─── Editing ──────────────────────────────────────────────────────────────────

func TestSetWildcardThenUndo(t *testing.T) {
	ws := newWorkspace(t)
	reg := tools.NewGraphTools(ws)

	if _, err := run(t, reg, "set_wildcard", `{"cell":1,"variable":"n"}`); err != nil {
		t.Fatalf("set_wildcard: %v", err)
	}
	c, _ := ws.Cell(1)
	if !c.Wildcards.Has("n") || c.MissingDependencies.Has("n") {
		t.Fatalf("wildcards=%v missing=%v", c.Wildcards.Sorted(), c.MissingDependencies.Sorted())
	}

	out, err := run(t, reg, "undo", `{}`)
	if err != nil || out != "undone" {
		t.Fatalf("undo = %q, %v", out, err)
	}
	c, _ = ws.Cell(1)
	if c.Wildcards.Has("n") {
		t.Errorf("wildcard survived undo")
	}
}

func TestSetRole(t *testing.T) {
	ws := newWorkspace(t)
	reg := tools.NewGraphTools(ws)
	if _, err := run(t, reg, "set_role", `{"cell":0,"role":"rule"}`); err != nil {
		t.Fatalf("set_role: %v", err)
	}
	if c, _ := ws.Cell(2); c.Role.Kind != cellgraph.RoleRule {
		t.Errorf("downstream role = %s, want rule", c.Role.Kind)
	}
	if _, err := run(t, reg, "set_role", `{"cell":2,"role":"script"}`); !errors.Is(err, cellgraph.ErrIllegalRoleTransition) {
		t.Errorf("err = %v, want ErrIllegalRoleTransition", err)
	}
	if _, err := run(t, reg, "set_role", `{"cell":0,"role":"boss"}`); !errors.Is(err, cellgraph.ErrMalformedInput) {
		t.Errorf("err = %v, want ErrMalformedInput", err)
	}
}

func TestDeleteCell_BrokenDependency(t *testing.T) {
	ws := newWorkspace(t)
	reg := tools.NewGraphTools(ws)
	_, err := run(t, reg, "delete_cell", `{"cell":0}`)
	var broken *cellgraph.BrokenDependencyError
	if !errors.As(err, &broken) {
		t.Fatalf("err = %v, want BrokenDependencyError", err)
	}
	if ws.Len() != 3 {
		t.Errorf("Len = %d after rejected delete", ws.Len())
	}

	out, err := run(t, reg, "delete_cell", `{"cell":2}`)
	if err != nil {
		t.Fatalf("delete_cell: %v", err)
	}
	if out != "deleted cell 2" || ws.Len() != 2 {
		t.Errorf("out = %q, Len = %d", out, ws.Len())
	}
}

func TestMergeCells(t *testing.T) {
	ws := newWorkspace(t)
	reg := tools.NewGraphTools(ws)
	if _, err := run(t, reg, "merge_cells", `{"cell":1}`); err == nil {
		t.Fatal("merge without other should fail")
	}
	out, err := run(t, reg, "merge_cells", `{"cell":1,"other":2}`)
	if err != nil {
		t.Fatalf("merge_cells: %v", err)
	}
	if !strings.HasPrefix(out, "merged cells 1 and 2") || ws.Len() != 2 {
		t.Errorf("out = %q, Len = %d", out, ws.Len())
	}
}

func TestInputValidation(t *testing.T) {
	reg := tools.NewGraphTools(newWorkspace(t))
	tests := []struct {
		name  string
		tool  string
		input string
	}{
		{"missing cell", "show_cell", `{}`},
		{"missing variable", "add_dependency", `{"cell":1}`},
		{"unknown field", "delete_cell", `{"cell":1,"force":true}`},
		{"not json", "set_name", `{"cell":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, reg, tt.tool, tt.input)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.HasPrefix(err.Error(), tt.tool+":") {
				t.Errorf("error %q is not prefixed with the tool name", err)
			}
		})
	}
}
