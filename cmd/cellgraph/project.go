package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/ravi-parthasarathy/cellgraph/pkg/analysis"
	"github.com/ravi-parthasarathy/cellgraph/pkg/llm"
	"github.com/ravi-parthasarathy/cellgraph/pkg/workspace"
)

// client builds the configured model client.
func (a *app) client() (llm.Client, error) {
	if a.offline {
		return nil, fmt.Errorf("a model is required; drop --offline")
	}
	c, err := llm.NewClient(a.cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", a.cfg.Model, err)
	}
	return c, nil
}

// open returns a workspace holding the saved project. With mustExist false a
// missing project yields an empty workspace.
func (a *app) open(ctx context.Context, mustExist bool) (*workspace.Workspace, error) {
	opts := []workspace.Option{
		workspace.WithHistoryCapacity(a.cfg.History),
		workspace.WithLogger(slog.Default()),
	}
	if a.cfg.Telemetry {
		opts = append(opts, workspace.WithActivityLogger(workspace.NewSlogActivity(slog.Default())))
	}
	if !a.offline {
		client, err := a.client()
		if err != nil {
			return nil, err
		}
		svc, err := analysis.New(client, analysis.WithLogger(slog.Default()))
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			workspace.WithAnalyzer(svc),
			workspace.WithSuggester(svc),
			workspace.WithGenerator(svc),
		)
	}
	ws := workspace.New(opts...)

	ok, err := workspace.Exists(ctx, a.cfg.Project)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", a.cfg.Project, err)
	}
	switch {
	case ok:
		if err := ws.Load(ctx, a.cfg.Project); err != nil {
			return nil, err
		}
	case mustExist:
		return nil, fmt.Errorf("no project at %s; run cellgraph import first", a.cfg.Project)
	}
	return ws, nil
}

func (a *app) save(ctx context.Context, ws *workspace.Workspace) error {
	ws.Wait()
	return ws.Save(ctx, a.cfg.Project)
}

// edit opens the project, applies fn and saves the result.
func (a *app) edit(ctx context.Context, fn func(ws *workspace.Workspace) error) error {
	ws, err := a.open(ctx, true)
	if err != nil {
		return err
	}
	if err := fn(ws); err != nil {
		return err
	}
	return a.save(ctx, ws)
}

// settle waits for a refinement and reports its outcome. A failed refinement
// is a warning: the edit that scheduled it stands.
func settle(ctx context.Context, out io.Writer, ref *workspace.Refinement) {
	applied, err := ref.Wait(ctx)
	switch {
	case err != nil:
		fmt.Fprintf(out, "warning: role suggestions failed: %v\n", err)
	case applied > 0:
		fmt.Fprintf(out, "%d cells re-labelled\n", applied)
	}
}

func cellArg(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("cell index %q: %w", s, err)
	}
	return i, nil
}
