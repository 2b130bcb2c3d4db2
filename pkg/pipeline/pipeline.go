// Package pipeline turns a cell graph into a Snakemake workflow: Snakefile
// and per-rule scripts, a DOT drawing, and a lint pass over the result.
package pipeline

import (
	"fmt"
	"sort"

	"github.com/ravi-parthasarathy/cellgraph/pkg/cellgraph"
)

// Step is one cell as it appears in the exported workflow.
type Step struct {
	Index int
	Name  string
	Role  cellgraph.Role
	Legal bool

	Code       string
	PrefixCode string
	SuffixCode string
	RuleText   string

	// Inputs maps each dependency to the producing step index.
	Inputs map[string]int
	// Outputs are written variables that a later step reads.
	Outputs   []string
	ReadsFile []string
	Wildcards []string
	Missing   []string
}

// ID is the step's node identifier in DOT output.
func (s *Step) ID() string { return fmt.Sprintf("c%d", s.Index) }

// Label is the step name, or a positional stand-in for unnamed cells.
func (s *Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("cell_%d", s.Index)
}

// Edge is a data dependency between two steps.
type Edge struct {
	From     int
	To       int
	Variable string
}

// Pipeline is the exported view of a graph.
type Pipeline struct {
	Name   string
	Config string
	Steps  []*Step
	Edges  []*Edge
}

// FromCells builds a pipeline from graph cells in index order.
func FromCells(name string, cells []cellgraph.Cell, config string) *Pipeline {
	p := &Pipeline{Name: name, Config: config}
	for i := range cells {
		c := &cells[i]
		s := &Step{
			Index:      i,
			Name:       c.Role.Name,
			Role:       c.Role.Kind,
			Legal:      c.Role.CanBecome().Allows(c.Role.Kind),
			Code:       c.Code,
			PrefixCode: c.Role.PrefixCode,
			SuffixCode: c.Role.SuffixCode,
			RuleText:   c.Role.GeneratedRuleText,
			Inputs:     make(map[string]int, len(c.DependsOn)),
			ReadsFile:  c.ReadsFile.Sorted(),
			Wildcards:  c.Wildcards.Sorted(),
			Missing:    c.MissingDependencies.Sorted(),
		}
		for v, j := range c.DependsOn {
			s.Inputs[v] = j
		}
		for v, readers := range c.WritesTo {
			if len(readers) > 0 {
				s.Outputs = append(s.Outputs, v)
			}
		}
		sort.Strings(s.Outputs)
		p.Steps = append(p.Steps, s)
	}
	for _, s := range p.Steps {
		for _, v := range sortedInputs(s.Inputs) {
			p.Edges = append(p.Edges, &Edge{From: s.Inputs[v], To: s.Index, Variable: v})
		}
	}
	return p
}

// FromGraph builds a pipeline from the current state of g.
func FromGraph(name string, g *cellgraph.Graph) *Pipeline {
	return FromCells(name, g.Cells(), g.Config())
}

// Rules returns the steps whose role is rule.
func (p *Pipeline) Rules() []*Step {
	return p.withRole(cellgraph.RoleRule)
}

// Scripts returns the steps whose role is script.
func (p *Pipeline) Scripts() []*Step {
	return p.withRole(cellgraph.RoleScript)
}

func (p *Pipeline) withRole(r cellgraph.Role) []*Step {
	var out []*Step
	for _, s := range p.Steps {
		if s.Role == r {
			out = append(out, s)
		}
	}
	return out
}

// OutgoingEdges returns the edges leaving step i.
func (p *Pipeline) OutgoingEdges(i int) []*Edge {
	var out []*Edge
	for _, e := range p.Edges {
		if e.From == i {
			out = append(out, e)
		}
	}
	return out
}

// IncomingEdges returns the edges arriving at step i.
func (p *Pipeline) IncomingEdges(i int) []*Edge {
	var out []*Edge
	for _, e := range p.Edges {
		if e.To == i {
			out = append(out, e)
		}
	}
	return out
}

func sortedInputs(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
