package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ravi-parthasarathy/cellgraph/pkg/cellgraph"
	"github.com/ravi-parthasarathy/cellgraph/pkg/workspace"
)

// Input is the union of arguments the graph tools accept. Each tool's
// schema names the subset it reads.
type Input struct {
	Cell     *int   `json:"cell,omitempty"`
	Other    *int   `json:"other,omitempty"`
	Variable string `json:"variable,omitempty"`
	Role     string `json:"role,omitempty"`
	Name     string `json:"name,omitempty"`
	CodeA    string `json:"code_a,omitempty"`
	CodeB    string `json:"code_b,omitempty"`
}

func (in Input) cell() (int, error) {
	if in.Cell == nil {
		return 0, errors.New("missing required field \"cell\"")
	}
	return *in.Cell, nil
}

func (in Input) variable() (string, error) {
	if strings.TrimSpace(in.Variable) == "" {
		return "", errors.New("missing required field \"variable\"")
	}
	return in.Variable, nil
}

// GraphTool exposes one workspace operation to the agent.
type GraphTool struct {
	name        string
	description string
	schema      json.RawMessage
	run         func(ctx context.Context, in Input) (string, error)
}

func (t *GraphTool) Name() string                 { return t.name }
func (t *GraphTool) Description() string          { return t.description }
func (t *GraphTool) InputSchema() json.RawMessage { return t.schema }

func (t *GraphTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var in Input
	if len(input) > 0 {
		dec := json.NewDecoder(bytes.NewReader(input))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			return "", fmt.Errorf("%s: invalid input: %w", t.name, err)
		}
	}
	out, err := t.run(ctx, in)
	if err != nil {
		return "", fmt.Errorf("%s: %w", t.name, err)
	}
	return out, nil
}

const (
	schemaNone         = `{"type":"object","properties":{}}`
	schemaCell         = `{"type":"object","properties":{"cell":{"type":"integer","description":"Cell index"}},"required":["cell"]}`
	schemaCellVariable = `{"type":"object","properties":{"cell":{"type":"integer","description":"Cell index"},"variable":{"type":"string","description":"Variable name"}},"required":["cell","variable"]}`
)

// NewGraphTools returns a registry holding every graph tool bound to ws.
func NewGraphTools(ws *workspace.Workspace) *Registry {
	r := NewRegistry()
	RegisterGraphTools(r, ws)
	return r
}

// RegisterGraphTools adds the inspection and editing tools for ws to r.
func RegisterGraphTools(r *Registry, ws *workspace.Workspace) {
	r.Register(&GraphTool{
		name:        "list_cells",
		description: "List every cell with its role, name, reads, writes and missing dependencies.",
		schema:      json.RawMessage(schemaNone),
		run: func(context.Context, Input) (string, error) {
			return listCells(ws.Cells()), nil
		},
	})
	r.Register(&GraphTool{
		name:        "show_cell",
		description: "Show the code, dependencies and legal roles of one cell as JSON.",
		schema:      json.RawMessage(schemaCell),
		run: func(_ context.Context, in Input) (string, error) {
			i, err := in.cell()
			if err != nil {
				return "", err
			}
			var s cellgraph.CellSummary
			if err := ws.View(func(g *cellgraph.Graph) error {
				s, err = g.Summary(i)
				return err
			}); err != nil {
				return "", err
			}
			data, err := json.MarshalIndent(s, "", "  ")
			return string(data), err
		},
	})

	r.Register(&GraphTool{
		name:        "delete_cell",
		description: "Delete a cell. Fails if a later cell still depends on one of its writes.",
		schema:      json.RawMessage(schemaCell),
		run: func(ctx context.Context, in Input) (string, error) {
			i, err := in.cell()
			if err != nil {
				return "", err
			}
			ref, err := ws.Delete(ctx, i)
			if err != nil {
				return "", err
			}
			return settled(ctx, fmt.Sprintf("deleted cell %d", i), ref), nil
		},
	})
	r.Register(&GraphTool{
		name:        "split_cell",
		description: "Replace a cell with two cells holding code_a and code_b in that order.",
		schema: json.RawMessage(`{"type":"object","properties":{` +
			`"cell":{"type":"integer","description":"Cell index"},` +
			`"code_a":{"type":"string","description":"Code of the first new cell"},` +
			`"code_b":{"type":"string","description":"Code of the second new cell"}},` +
			`"required":["cell","code_a","code_b"]}`),
		run: func(ctx context.Context, in Input) (string, error) {
			i, err := in.cell()
			if err != nil {
				return "", err
			}
			ref, err := ws.Split(ctx, i, in.CodeA, in.CodeB)
			if err != nil {
				return "", err
			}
			return settled(ctx, fmt.Sprintf("split cell %d into cells %d and %d", i, i, i+1), ref), nil
		},
	})
	r.Register(&GraphTool{
		name:        "merge_cells",
		description: "Merge two cells into one at the lower index.",
		schema: json.RawMessage(`{"type":"object","properties":{` +
			`"cell":{"type":"integer","description":"First cell index"},` +
			`"other":{"type":"integer","description":"Second cell index"}},` +
			`"required":["cell","other"]}`),
		run: func(ctx context.Context, in Input) (string, error) {
			a, err := in.cell()
			if err != nil {
				return "", err
			}
			if in.Other == nil {
				return "", errors.New("missing required field \"other\"")
			}
			b := *in.Other
			ref, err := ws.Merge(ctx, a, b)
			if err != nil {
				return "", err
			}
			return settled(ctx, fmt.Sprintf("merged cells %d and %d into cell %d", a, b, min(a, b)), ref), nil
		},
	})

	r.Register(&GraphTool{
		name:        "set_role",
		description: "Set a cell's role to rule, script or undecided. Only roles listed as legal for the cell are accepted.",
		schema: json.RawMessage(`{"type":"object","properties":{` +
			`"cell":{"type":"integer","description":"Cell index"},` +
			`"role":{"type":"string","enum":["rule","script","undecided"]}},` +
			`"required":["cell","role"]}`),
		run: func(ctx context.Context, in Input) (string, error) {
			i, err := in.cell()
			if err != nil {
				return "", err
			}
			role, err := cellgraph.ParseRole(in.Role)
			if err != nil {
				return "", err
			}
			if err := ws.SetRole(ctx, i, role); err != nil {
				return "", err
			}
			return fmt.Sprintf("cell %d is now %s", i, role), nil
		},
	})
	r.Register(&GraphTool{
		name:        "set_name",
		description: "Set the rule or script name of a cell.",
		schema: json.RawMessage(`{"type":"object","properties":{` +
			`"cell":{"type":"integer","description":"Cell index"},` +
			`"name":{"type":"string","description":"Identifier-style name"}},` +
			`"required":["cell","name"]}`),
		run: func(ctx context.Context, in Input) (string, error) {
			i, err := in.cell()
			if err != nil {
				return "", err
			}
			if err := ws.SetName(ctx, i, in.Name); err != nil {
				return "", err
			}
			return fmt.Sprintf("cell %d is named %q", i, in.Name), nil
		},
	})

	variableTool := func(name, description, done string, fn func(ctx context.Context, i int, v string) error) {
		r.Register(&GraphTool{
			name:        name,
			description: description,
			schema:      json.RawMessage(schemaCellVariable),
			run: func(ctx context.Context, in Input) (string, error) {
				i, err := in.cell()
				if err != nil {
					return "", err
				}
				v, err := in.variable()
				if err != nil {
					return "", err
				}
				if err := fn(ctx, i, v); err != nil {
					return "", err
				}
				return fmt.Sprintf(done, v, i), nil
			},
		})
	}
	variableTool("set_wildcard",
		"Turn a variable the cell reads into a configuration wildcard.",
		"%s is a wildcard of cell %d", ws.SetWildcard)
	variableTool("set_dependency",
		"Turn a wildcard back into an ordinary dependency.",
		"%s is a dependency of cell %d again", ws.SetDependency)
	variableTool("add_dependency",
		"Record that the cell reads a variable the analysis missed.",
		"%s added to the reads of cell %d", ws.AddDependency)
	variableTool("remove_dependency",
		"Remove a variable from the cell's reads.",
		"%s removed from the reads of cell %d", ws.RemoveDependency)
	variableTool("add_write",
		"Record that the cell writes a variable the analysis missed.",
		"%s added to the writes of cell %d", ws.AddWrite)
	variableTool("remove_write",
		"Remove a variable from the cell's writes. Fails if a later cell depends on it.",
		"%s removed from the writes of cell %d", ws.RemoveWrite)
	variableTool("remove_function_dependency",
		"Restore a free variable of a function cell that was turned into a parameter.",
		"%s is a free variable of function cell %d again", ws.RemoveFunctionDependency)

	r.Register(&GraphTool{
		name:        "make_function_independent",
		description: "Turn the free variables of a function cell into parameters and rewrite its callers.",
		schema:      json.RawMessage(schemaCell),
		run: func(ctx context.Context, in Input) (string, error) {
			i, err := in.cell()
			if err != nil {
				return "", err
			}
			if err := ws.MakeFunctionIndependent(ctx, i); err != nil {
				return "", err
			}
			return fmt.Sprintf("function cell %d no longer reads globals", i), nil
		},
	})
	r.Register(&GraphTool{
		name:        "hoist_imports",
		description: "Move every import statement into a new script cell at the top.",
		schema:      json.RawMessage(schemaNone),
		run: func(ctx context.Context, _ Input) (string, error) {
			if err := ws.HoistImports(ctx); err != nil {
				return "", err
			}
			return fmt.Sprintf("imports hoisted; %d cells", ws.Len()), nil
		},
	})
	r.Register(&GraphTool{
		name:        "hoist_functions",
		description: "Move every top-level function definition into its own function cell.",
		schema:      json.RawMessage(schemaNone),
		run: func(ctx context.Context, _ Input) (string, error) {
			if err := ws.HoistFunctions(ctx); err != nil {
				return "", err
			}
			return fmt.Sprintf("functions hoisted; %d cells", ws.Len()), nil
		},
	})
	r.Register(&GraphTool{
		name:        "undo",
		description: "Undo the most recent change.",
		schema:      json.RawMessage(schemaNone),
		run: func(ctx context.Context, _ Input) (string, error) {
			ok, err := ws.Undo(ctx)
			if err != nil {
				return "", err
			}
			if !ok {
				return "nothing to undo", nil
			}
			return "undone", nil
		},
	})
}

// settled waits for the refinement scheduled by a structural edit so the
// model sees the updated roles in its next listing.
func settled(ctx context.Context, msg string, ref *workspace.Refinement) string {
	applied, err := ref.Wait(ctx)
	switch {
	case err != nil:
		return fmt.Sprintf("%s; role suggestions unavailable: %v", msg, err)
	case applied > 0:
		return fmt.Sprintf("%s; %d cells re-labelled", msg, applied)
	}
	return msg
}

func listCells(cells []cellgraph.Cell) string {
	if len(cells) == 0 {
		return "no cells"
	}
	var b strings.Builder
	for i, c := range cells {
		name := c.Role.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(&b, "%d\t%s\t%s", i, c.Role.Kind, name)
		if c.IsFunctionCell {
			b.WriteString("\tfunction")
		}
		writeNames(&b, "reads", c.Reads)
		writeNames(&b, "writes", c.Writes)
		writeNames(&b, "wildcards", c.Wildcards)
		writeNames(&b, "missing", c.MissingDependencies)
		b.WriteByte('\n')
	}
	return b.String()
}

func writeNames(b *strings.Builder, label string, names cellgraph.NameSet) {
	if names.Len() == 0 {
		return
	}
	fmt.Fprintf(b, "\t%s=%s", label, strings.Join(names.Sorted(), ","))
}
