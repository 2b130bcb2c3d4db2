// Package workspace drives a cellgraph.Graph for interactive use. It
// serializes every call, snapshots each committed change for undo and runs
// the collaborator refinements that follow structural edits.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ravi-parthasarathy/cellgraph/pkg/cellgraph"
)

// Workspace owns a graph and is safe for concurrent use.
type Workspace struct {
	mu    sync.Mutex
	graph *cellgraph.Graph
	wg    sync.WaitGroup
	// layout counts changes that add, remove or reorder cells. Refinements
	// computed under an older layout are discarded.
	layout uint64

	historyCapacity int
	analyzer        cellgraph.Analyzer
	suggester       cellgraph.Suggester
	generator       cellgraph.Generator
	activity        ActivityLogger
	logger          *slog.Logger
}

// Option configures a Workspace.
type Option func(*Workspace)

func WithAnalyzer(a cellgraph.Analyzer) Option   { return func(w *Workspace) { w.analyzer = a } }
func WithSuggester(s cellgraph.Suggester) Option { return func(w *Workspace) { w.suggester = s } }
func WithGenerator(g cellgraph.Generator) Option { return func(w *Workspace) { w.generator = g } }

// WithActivityLogger enables activity records.
func WithActivityLogger(a ActivityLogger) Option { return func(w *Workspace) { w.activity = a } }

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option { return func(w *Workspace) { w.logger = l } }

// WithHistoryCapacity sets the undo ring size of graphs the workspace creates.
func WithHistoryCapacity(n int) Option { return func(w *Workspace) { w.historyCapacity = n } }

// New returns an empty workspace.
func New(opts ...Option) *Workspace {
	w := &Workspace{activity: noopActivity{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	w.graph = w.newGraph()
	return w
}

func (w *Workspace) newGraph() *cellgraph.Graph {
	if w.historyCapacity > 0 {
		return cellgraph.New(cellgraph.WithHistoryCapacity(w.historyCapacity))
	}
	return cellgraph.New()
}

// Wait blocks until every scheduled refinement has resolved.
func (w *Workspace) Wait() { w.wg.Wait() }

// View runs fn with the graph under the workspace lock. fn must not keep
// the graph or mutate it.
func (w *Workspace) View(fn func(g *cellgraph.Graph) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn(w.graph)
}

// commit applies fn under the lock and snapshots the result when fn succeeds.
func (w *Workspace) commit(ctx context.Context, op string, fn func(g *cellgraph.Graph) error, attrs ...any) error {
	if err := fn(w.graph); err != nil {
		return err
	}
	if err := w.graph.PushSnapshot(); err != nil {
		return fmt.Errorf("%s: snapshot: %w", op, err)
	}
	w.logger.Info("committed", append([]any{"op", op, "cells", w.graph.Len()}, attrs...)...)
	w.activity.Activity(ctx, op, attrs...)
	return nil
}

func (w *Workspace) do(ctx context.Context, op string, fn func(g *cellgraph.Graph) error, attrs ...any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.commit(ctx, op, fn, attrs...)
}

// ─── Construction ─────────────────────────────────────────────────────────────

// Import replaces the graph with cells built from codes, analyses them when
// an analyzer is configured and schedules a full suggestion pass.
func (w *Workspace) Import(ctx context.Context, codes []string) (*Refinement, error) {
	var usages []cellgraph.Usage
	if w.analyzer != nil && len(codes) > 0 {
		var err error
		if usages, err = w.analyzer.Analyze(ctx, codes); err != nil {
			return nil, &cellgraph.AnalysisError{Op: "import", Cause: err}
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	g := w.newGraph()
	if err := g.ImportFromRawCells(codes); err != nil {
		return nil, err
	}
	for i, u := range usages {
		if i >= len(codes) {
			break
		}
		if err := g.RecordAnalysis(i, u); err != nil {
			return nil, fmt.Errorf("import: cell %d: %w", i, err)
		}
	}
	g.BuildDependencyGraph()
	if err := g.PushSnapshot(); err != nil {
		return nil, fmt.Errorf("import: snapshot: %w", err)
	}
	w.graph = g
	w.layout++
	w.logger.Info("committed", "op", "import", "cells", g.Len(), "analysed", len(usages))
	w.activity.Activity(ctx, "import", "cells", g.Len())
	return w.refine(ctx, "import", 0), nil
}

// Suggest schedules a suggestion pass from cell from.
func (w *Workspace) Suggest(ctx context.Context, from int) *Refinement {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.refine(ctx, "suggest", from)
}

// ─── Structural edits ─────────────────────────────────────────────────────────

// Delete removes cell i. The follow-up refinement failing does not undo
// the delete.
func (w *Workspace) Delete(ctx context.Context, i int) (*Refinement, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.commit(ctx, "delete", func(g *cellgraph.Graph) error { return g.DeleteCell(i) }, "cell", i); err != nil {
		return nil, err
	}
	w.layout++
	return w.refine(ctx, "delete", i), nil
}

// Split replaces cell i with codeA and codeB.
func (w *Workspace) Split(ctx context.Context, i int, codeA, codeB string) (*Refinement, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.commit(ctx, "split", func(g *cellgraph.Graph) error {
		return g.SplitCell(ctx, i, codeA, codeB, w.analyzer)
	}, "cell", i)
	if err != nil {
		return nil, err
	}
	w.layout++
	return w.refine(ctx, "split", i), nil
}

// Merge joins cells a and b.
func (w *Workspace) Merge(ctx context.Context, a, b int) (*Refinement, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.commit(ctx, "merge", func(g *cellgraph.Graph) error { return g.MergeCells(a, b) }, "a", a, "b", b); err != nil {
		return nil, err
	}
	w.layout++
	return w.refine(ctx, "merge", min(a, b)), nil
}

func (w *Workspace) HoistImports(ctx context.Context) error {
	return w.restructure(ctx, "hoist imports", (*cellgraph.Graph).HoistImports)
}

func (w *Workspace) HoistFunctions(ctx context.Context) error {
	return w.restructure(ctx, "hoist functions", (*cellgraph.Graph).HoistFunctionDeclarations)
}

func (w *Workspace) restructure(ctx context.Context, op string, fn func(g *cellgraph.Graph) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.commit(ctx, op, fn); err != nil {
		return err
	}
	w.layout++
	return nil
}

// ─── Cell edits ───────────────────────────────────────────────────────────────

func (w *Workspace) SetRole(ctx context.Context, i int, r cellgraph.Role) error {
	return w.do(ctx, "set role", func(g *cellgraph.Graph) error { return g.SetRole(i, r) }, "cell", i, "role", r)
}

func (w *Workspace) SetName(ctx context.Context, i int, name string) error {
	return w.do(ctx, "set name", func(g *cellgraph.Graph) error { return g.SetName(i, name) }, "cell", i, "name", name)
}

func (w *Workspace) SetWildcard(ctx context.Context, i int, name string) error {
	return w.do(ctx, "set wildcard", func(g *cellgraph.Graph) error { return g.SetDependencyAsWildcard(i, name) }, "cell", i, "name", name)
}

func (w *Workspace) SetDependency(ctx context.Context, i int, name string) error {
	return w.do(ctx, "set dependency", func(g *cellgraph.Graph) error { return g.SetWildcardAsDependency(i, name) }, "cell", i, "name", name)
}

func (w *Workspace) AddDependency(ctx context.Context, i int, name string) error {
	return w.do(ctx, "add dependency", func(g *cellgraph.Graph) error { return g.AddCellDependency(i, name) }, "cell", i, "name", name)
}

func (w *Workspace) RemoveDependency(ctx context.Context, i int, name string) error {
	return w.do(ctx, "remove dependency", func(g *cellgraph.Graph) error { return g.RemoveCellDependency(i, name) }, "cell", i, "name", name)
}

func (w *Workspace) AddWrite(ctx context.Context, i int, name string) error {
	return w.do(ctx, "add write", func(g *cellgraph.Graph) error { return g.AddCellWrite(i, name) }, "cell", i, "name", name)
}

func (w *Workspace) RemoveWrite(ctx context.Context, i int, name string) error {
	return w.do(ctx, "remove write", func(g *cellgraph.Graph) error { return g.RemoveCellWrite(i, name) }, "cell", i, "name", name)
}

func (w *Workspace) MakeFunctionIndependent(ctx context.Context, i int) error {
	return w.do(ctx, "make function independent", func(g *cellgraph.Graph) error { return g.MakeFunctionIndependent(i) }, "cell", i)
}

func (w *Workspace) RemoveFunctionDependency(ctx context.Context, i int, name string) error {
	return w.do(ctx, "remove function dependency", func(g *cellgraph.Graph) error { return g.RemoveFunctionDependency(i, name) }, "cell", i, "name", name)
}

// SetConfig replaces the pipeline-wide YAML parameters.
func (w *Workspace) SetConfig(ctx context.Context, config string) error {
	return w.do(ctx, "set config", func(g *cellgraph.Graph) error { g.SetConfig(config); return nil })
}

// Generate asks the generator for the glue of rule cell i and stores it.
func (w *Workspace) Generate(ctx context.Context, i int) error {
	if w.generator == nil {
		return fmt.Errorf("generate: no generator configured")
	}
	var summary cellgraph.CellSummary
	if err := w.View(func(g *cellgraph.Graph) (err error) { summary, err = g.Summary(i); return err }); err != nil {
		return err
	}
	code, err := w.generator.Generate(ctx, summary)
	if err != nil {
		return &cellgraph.AnalysisError{Op: "generate", Cause: err}
	}
	return w.do(ctx, "generate", func(g *cellgraph.Graph) error { return g.SetGeneratedCode(i, code) }, "cell", i)
}

// ─── History ──────────────────────────────────────────────────────────────────

// Undo restores the previous snapshot. It reports false when there is none.
func (w *Workspace) Undo(ctx context.Context) (bool, error) {
	return w.step(ctx, "undo", (*cellgraph.Graph).Undo)
}

// Redo re-applies the next snapshot. It reports false when there is none.
func (w *Workspace) Redo(ctx context.Context) (bool, error) {
	return w.step(ctx, "redo", (*cellgraph.Graph).Redo)
}

func (w *Workspace) step(ctx context.Context, op string, fn func(*cellgraph.Graph) (bool, error)) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ok, err := fn(w.graph)
	if ok && err == nil {
		w.layout++
		w.logger.Info("committed", "op", op, "cells", w.graph.Len())
		w.activity.Activity(ctx, op)
	}
	return ok, err
}

func (w *Workspace) CanUndo() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.CanUndo()
}

func (w *Workspace) CanRedo() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.CanRedo()
}

// ─── Reads ────────────────────────────────────────────────────────────────────

// Cells returns deep copies of every cell.
func (w *Workspace) Cells() []cellgraph.Cell {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.Cells()
}

func (w *Workspace) Cell(i int) (cellgraph.Cell, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.Cell(i)
}

func (w *Workspace) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.Len()
}

func (w *Workspace) Config() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.Config()
}

// Serialize returns the current snapshot document.
func (w *Workspace) Serialize() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.Serialize()
}
