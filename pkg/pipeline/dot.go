package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	gographviz "github.com/awalterschulze/gographviz"

	"github.com/ravi-parthasarathy/cellgraph/pkg/cellgraph"
)

var roleShapes = map[cellgraph.Role]string{
	cellgraph.RoleRule:      "box",
	cellgraph.RoleScript:    "note",
	cellgraph.RoleUndecided: "ellipse",
}

// RenderDOT draws the pipeline as a Graphviz digraph. Each step is a node
// labelled with its name; the role is kept in the node comment so ParseDOT
// can read it back.
func RenderDOT(p *Pipeline) (string, error) {
	g := gographviz.NewEscape()
	name := p.Name
	if name == "" {
		name = "cellgraph"
	}
	if err := g.SetName(name); err != nil {
		return "", fmt.Errorf("dot: %w", err)
	}
	if err := g.SetDir(true); err != nil {
		return "", fmt.Errorf("dot: %w", err)
	}
	for _, s := range p.Steps {
		attrs := map[string]string{
			"label":   s.Label(),
			"comment": string(s.Role),
			"shape":   roleShapes[s.Role],
		}
		if len(s.Missing) > 0 {
			attrs["color"] = "red"
		}
		if err := g.AddNode(name, s.ID(), attrs); err != nil {
			return "", fmt.Errorf("dot: node %s: %w", s.ID(), err)
		}
	}
	for _, e := range p.Edges {
		from, to := p.Steps[e.From].ID(), p.Steps[e.To].ID()
		if err := g.AddEdge(from, to, true, map[string]string{"label": e.Variable}); err != nil {
			return "", fmt.Errorf("dot: edge %s->%s: %w", from, to, err)
		}
	}
	return g.String(), nil
}

// ParseDOT reads a digraph written by RenderDOT back into steps and edges.
// Only names, roles and edges survive the trip.
func ParseDOT(src string) (*Pipeline, error) {
	ast, err := gographviz.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("dot parse error: %w", err)
	}
	c := newDOTCollector()
	if err := gographviz.Analyse(ast, c); err != nil {
		return nil, fmt.Errorf("dot analyse error: %w", err)
	}

	p := &Pipeline{Name: c.name}
	index := make(map[string]int, len(c.nodes))
	ids := make([]string, 0, len(c.nodes))
	for id := range c.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return stepNumber(ids[a]) < stepNumber(ids[b]) })
	for _, id := range ids {
		n := stepNumber(id)
		if n < 0 || n != len(p.Steps) {
			return nil, fmt.Errorf("dot: node %q is not a step id in sequence", id)
		}
		attrs := c.nodes[id]
		role, err := cellgraph.ParseRole(firstNonEmpty(attrs["comment"], string(cellgraph.RoleUndecided)))
		if err != nil {
			return nil, fmt.Errorf("dot: node %q: %w", id, err)
		}
		s := &Step{Index: n, Role: role, Legal: true, Inputs: map[string]int{}}
		if label := attrs["label"]; label != s.Label() {
			s.Name = label
		}
		index[id] = n
		p.Steps = append(p.Steps, s)
	}
	for _, e := range c.edges {
		from, ok1 := index[e.from]
		to, ok2 := index[e.to]
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("dot: edge %s->%s references an unknown node", e.from, e.to)
		}
		p.Edges = append(p.Edges, &Edge{From: from, To: to, Variable: e.label})
		p.Steps[to].Inputs[e.label] = from
	}
	for _, s := range p.Steps {
		seen := map[string]bool{}
		for _, e := range p.OutgoingEdges(s.Index) {
			if !seen[e.Variable] {
				seen[e.Variable] = true
				s.Outputs = append(s.Outputs, e.Variable)
			}
		}
		sort.Strings(s.Outputs)
	}
	return p, nil
}

func stepNumber(id string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(id, "c"))
	if err != nil || !strings.HasPrefix(id, "c") {
		return -1
	}
	return n
}

// ─── permissive DOT collector ─────────────────────────────────────────────────

type rawEdge struct {
	from, to string
	label    string
}

// dotCollector implements gographviz.Interface without attribute validation.
type dotCollector struct {
	name  string
	nodes map[string]map[string]string
	edges []rawEdge
}

func newDOTCollector() *dotCollector {
	return &dotCollector{nodes: make(map[string]map[string]string)}
}

func (c *dotCollector) SetStrict(bool) error   { return nil }
func (c *dotCollector) SetDir(bool) error      { return nil }
func (c *dotCollector) SetName(n string) error { c.name = unquote(n); return nil }
func (c *dotCollector) String() string         { return c.name }

func (c *dotCollector) AddNode(_ string, name string, attrs map[string]string) error {
	id := unquote(name)
	if c.nodes[id] == nil {
		c.nodes[id] = make(map[string]string, len(attrs))
	}
	for k, v := range attrs {
		c.nodes[id][k] = unquote(v)
	}
	return nil
}

func (c *dotCollector) AddEdge(src, dst string, _ bool, attrs map[string]string) error {
	c.edges = append(c.edges, rawEdge{from: unquote(src), to: unquote(dst), label: unquote(attrs["label"])})
	return nil
}

func (c *dotCollector) AddPortEdge(src, _, dst, _ string, directed bool, attrs map[string]string) error {
	return c.AddEdge(src, dst, directed, attrs)
}

func (c *dotCollector) AddAttr(string, string, string) error               { return nil }
func (c *dotCollector) AddSubGraph(string, string, map[string]string) error { return nil }

// unquote strips surrounding double quotes from a DOT identifier.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
		return s[1 : len(s)-1]
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
