package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/ravi-parthasarathy/cellgraph/pkg/llm"
)

// Tool is one operation the agent may call. Execute returns the text shown
// to the model; an error is shown to the model as a failed call.
type Tool interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	Execute(ctx context.Context, input json.RawMessage) (string, error)
}

// ErrUnknownTool is returned by Get for a name nothing registered.
var ErrUnknownTool = errors.New("unknown tool")

// Registry holds the tools offered to the model, kept in name order so the
// tool list sent with each request is stable.
type Registry struct {
	byName map[string]Tool
	names  []string
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

// Register adds t. It panics on an empty or duplicate name and on an input
// schema that is not a JSON object schema.
func (r *Registry) Register(t Tool) {
	name := t.Name()
	if name == "" {
		panic("tools: Register with empty name")
	}
	if _, dup := r.byName[name]; dup {
		panic("tools: Register called twice for " + name)
	}
	var schema struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(t.InputSchema(), &schema); err != nil {
		panic(fmt.Sprintf("tools: %s: input schema: %v", name, err))
	}
	if schema.Type != "object" {
		panic(fmt.Sprintf("tools: %s: input schema type %q, want object", name, schema.Type))
	}
	r.byName[name] = t
	i, _ := slices.BinarySearch(r.names, name)
	r.names = slices.Insert(r.names, i, name)
}

func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTool, name)
	}
	return t, nil
}

func (r *Registry) Len() int { return len(r.names) }

// All returns the tools ordered by name.
func (r *Registry) All() []Tool {
	out := make([]Tool, len(r.names))
	for i, name := range r.names {
		out[i] = r.byName[name]
	}
	return out
}

// Definitions describes every tool for a model request.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, len(r.names))
	for i, name := range r.names {
		t := r.byName[name]
		defs[i] = llm.ToolDefinition{
			Name:        name,
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		}
	}
	return defs
}
