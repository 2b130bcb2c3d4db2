package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/ravi-parthasarathy/cellgraph/pkg/cellgraph"
)

// Refinement is the asynchronous role and name suggestion that follows a
// structural change. Abandoning it needs no cleanup.
type Refinement struct {
	from    int
	layout  uint64
	done    chan struct{}
	applied int
	err     error
}

func newRefinement(from int, layout uint64) *Refinement {
	return &Refinement{from: from, layout: layout, done: make(chan struct{})}
}

func (r *Refinement) finish(applied int, err error) {
	r.applied, r.err = applied, err
	close(r.done)
}

// From is the first cell index the refinement covers.
func (r *Refinement) From() int { return r.from }

// Done is closed once the refinement has been applied or discarded.
func (r *Refinement) Done() <-chan struct{} { return r.done }

// Wait blocks until the refinement resolves or ctx is done. It returns the
// number of cells whose role or name changed.
func (r *Refinement) Wait(ctx context.Context) (int, error) {
	if r == nil {
		return 0, nil
	}
	select {
	case <-r.done:
		return r.applied, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// refine schedules a suggestion pass from cell from. The caller holds w.mu.
func (w *Workspace) refine(ctx context.Context, op string, from int) *Refinement {
	r := newRefinement(from, w.layout)
	if w.suggester == nil || from < 0 || from >= w.graph.Len() {
		r.finish(0, nil)
		return r
	}
	cells := w.graph.Summaries()
	w.logger.Debug("scheduling refinement", "op", op, "from", from, "cells", len(cells))

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		suggestions, err := w.suggester.Suggest(ctx, cells, from)
		if err != nil {
			w.logger.Warn("refinement failed", "op", op, "from", from, "error", err)
			r.finish(0, &cellgraph.AnalysisError{Op: op + " refinement", Cause: err})
			return
		}
		r.finish(w.applySuggestions(ctx, op, suggestions, r))
	}()
	return r
}

// applySuggestions applies a finished refinement and snapshots it when it
// changed anything. A refinement whose cell layout has since changed is
// stale.
func (w *Workspace) applySuggestions(ctx context.Context, op string, suggestions []cellgraph.Suggestion, r *Refinement) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if r.layout != w.layout {
		w.logger.Warn("discarding stale refinement", "op", op, "from", r.from, "cells", w.graph.Len())
		return 0, &cellgraph.InputError{Kind: cellgraph.ErrStaleRefinement, Msg: op + ": cells changed while suggestions were pending"}
	}
	applied, err := w.graph.ApplyGuessedRolesAndNames(suggestions, r.from)
	if errors.Is(err, cellgraph.ErrStaleRefinement) {
		w.logger.Warn("discarding stale refinement", "op", op, "from", r.from, "cells", w.graph.Len())
		return 0, err
	}
	if err != nil {
		return 0, err
	}
	if applied == 0 {
		return 0, nil
	}
	if err := w.graph.PushSnapshot(); err != nil {
		return applied, fmt.Errorf("%s refinement: %w", op, err)
	}
	w.activity.Activity(ctx, "refinement applied", "op", op, "from", r.from, "applied", applied)
	return applied, nil
}
