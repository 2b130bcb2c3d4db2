package cellgraph

import (
	"fmt"
	"slices"
)

const defaultHistoryCapacity = 32

// Graph owns an ordered sequence of cells and the dependency edges between
// them. It is not safe for concurrent use; callers serialize access.
type Graph struct {
	cells   []*Cell
	config  string
	stage   int
	history *History
}

// Option configures a Graph.
type Option func(*Graph)

// WithHistoryCapacity sets the number of undo snapshots kept. Values below
// two are raised to two.
func WithHistoryCapacity(n int) Option {
	return func(g *Graph) {
		g.history = newHistory(max(n, 2))
	}
}

// WithConfig sets the pipeline-wide configuration text.
func WithConfig(config string) Option {
	return func(g *Graph) { g.config = config }
}

// New returns an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{history: newHistory(defaultHistoryCapacity)}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Len returns the number of cells.
func (g *Graph) Len() int { return len(g.cells) }

// Cell returns a copy of cell i.
func (g *Graph) Cell(i int) (Cell, error) {
	if err := g.checkIndex(i); err != nil {
		return Cell{}, err
	}
	return g.cells[i].Clone(), nil
}

// Cells returns copies of all cells in order.
func (g *Graph) Cells() []Cell {
	out := make([]Cell, len(g.cells))
	for i, c := range g.cells {
		out[i] = c.Clone()
	}
	return out
}

func (g *Graph) Config() string          { return g.config }
func (g *Graph) SetConfig(config string) { g.config = config }
func (g *Graph) Stage() int              { return g.stage }
func (g *Graph) SetStage(stage int)      { g.stage = stage }

func (g *Graph) checkIndex(i int) error {
	if i < 0 || i >= len(g.cells) {
		return outOfRange(i, len(g.cells))
	}
	return nil
}

// ImportFromRawCells replaces the graph's cells with one cell per text.
// Usage sets start empty until RecordAnalysis fills them.
func (g *Graph) ImportFromRawCells(texts []string) error {
	cells := make([]*Cell, 0, len(texts))
	for i, text := range texts {
		c, err := newCell(text)
		if err != nil {
			return fmt.Errorf("import cell %d: %w", i, err)
		}
		cells = append(cells, c)
	}
	g.cells = cells
	g.BuildDependencyGraph()
	return nil
}

// RecordAnalysis stores the usage an analyzer reported for cell i. The
// graph is not rebuilt.
func (g *Graph) RecordAnalysis(i int, u Usage) error {
	if err := g.checkIndex(i); err != nil {
		return err
	}
	if err := checkUsage(u); err != nil {
		return err
	}
	c := g.cells[i]
	c.Reads = NewNameSet(u.Reads...)
	c.Writes = NewNameSet(u.Writes...)
	c.ReadsFile = NewNameSet(u.ReadsFile...)
	return nil
}

// RecordSymbols overrides the scanned imports, declarations and calls of
// cell i.
func (g *Graph) RecordSymbols(i int, imports, declares, calls []string) error {
	if err := g.checkIndex(i); err != nil {
		return err
	}
	if err := checkNames("imports", imports); err != nil {
		return err
	}
	if err := checkNames("declares", declares); err != nil {
		return err
	}
	if err := checkNames("calls", calls); err != nil {
		return err
	}
	c := g.cells[i]
	c.Imports = NewNameSet(imports...)
	c.Declares = NewNameSet(declares...)
	c.Calls = NewNameSet(calls...)
	return nil
}

func checkUsage(u Usage) error {
	if err := checkNames("reads", u.Reads); err != nil {
		return err
	}
	if err := checkNames("writes", u.Writes); err != nil {
		return err
	}
	return checkNames("readsFile", u.ReadsFile)
}

// BuildDependencyGraph recomputes every edge. Each read resolves to the
// nearest preceding cell that writes it; each call resolves to the first
// function cell declaring it. Function cells never act as writers.
// Roles are re-partitioned and reconciled afterwards.
func (g *Graph) BuildDependencyGraph() {
	lastWriter := map[string]int{}
	declaredAt := map[string]int{}

	for _, c := range g.cells {
		c.resetEdges()
	}
	for i, c := range g.cells {
		for _, v := range c.Reads.Sorted() {
			if c.Wildcards.Has(v) {
				continue
			}
			j, ok := lastWriter[v]
			if !ok {
				c.MissingDependencies.Add(v)
				continue
			}
			c.DependsOn[v] = j
			g.cells[j].WritesTo[v] = append(g.cells[j].WritesTo[v], i)
		}
		for call := range c.Calls {
			if j, ok := declaredAt[call]; ok {
				c.DependsOnFunction[call] = j
			}
		}

		if c.IsFunctionCell {
			for name := range c.Declares {
				if _, seen := declaredAt[name]; !seen {
					declaredAt[name] = i
				}
			}
			continue
		}
		for v := range c.Writes {
			lastWriter[v] = i
		}
	}
	g.refreshRoles()
}

// updatePartition rebuilds the role buckets of cell i from its edges.
func (g *Graph) updatePartition(i int) {
	c := g.cells[i]
	c.Role.functionCell = c.IsFunctionCell
	c.Role.DependenciesByRole = map[Role]map[string]int{}
	for v, j := range c.DependsOn {
		kind := g.cells[j].Role.Kind
		bucket := c.Role.DependenciesByRole[kind]
		if bucket == nil {
			bucket = map[string]int{}
			c.Role.DependenciesByRole[kind] = bucket
		}
		bucket[v] = j
	}
}

// refreshRoles partitions and reconciles every cell in index order. Edges
// always point backwards, so a single pass settles every role.
func (g *Graph) refreshRoles() {
	for i, c := range g.cells {
		g.updatePartition(i)
		c.Role.Reconcile()
	}
}

// graphState is a deep copy of the mutable graph state.
type graphState struct {
	cells  []*Cell
	config string
	stage  int
}

func (g *Graph) checkpoint() graphState {
	cp := graphState{cells: make([]*Cell, len(g.cells)), config: g.config, stage: g.stage}
	for i, c := range g.cells {
		clone := c.Clone()
		cp.cells[i] = &clone
	}
	return cp
}

func (g *Graph) restore(cp graphState) {
	g.cells = cp.cells
	g.config = cp.config
	g.stage = cp.stage
}

// atomically runs fn and rolls the graph back if it fails.
func (g *Graph) atomically(fn func() error) error {
	cp := g.checkpoint()
	if err := fn(); err != nil {
		g.restore(cp)
		return err
	}
	return nil
}

// insertCells puts cells at index i.
func (g *Graph) insertCells(i int, cells ...*Cell) {
	g.cells = slices.Insert(g.cells, i, cells...)
}
