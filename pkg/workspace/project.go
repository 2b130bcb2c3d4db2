package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/afs"

	"github.com/ravi-parthasarathy/cellgraph/pkg/cellgraph"
)

// Project is the saved form of a workspace: the current graph plus its undo
// history.
type Project struct {
	Graph   cellgraph.Document     `json:"graph"`
	History cellgraph.HistoryState `json:"history"`
}

var fs = afs.New()

// Save writes the project to URL. Any afs URL works; a plain path is a
// local file.
func (w *Workspace) Save(ctx context.Context, URL string) error {
	w.mu.Lock()
	p := Project{Graph: w.graph.MarshalDocument(), History: w.graph.HistoryState()}
	data, err := json.MarshalIndent(p, "", "  ")
	w.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save project: marshal: %w", err)
	}
	if err := fs.Upload(ctx, URL, 0o644, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save project %s: %w", URL, err)
	}
	w.logger.Info("saved project", "url", URL, "bytes", len(data))
	return nil
}

// Load replaces the workspace graph and history with the project at URL.
// On error the workspace is unchanged.
func (w *Workspace) Load(ctx context.Context, URL string) error {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return fmt.Errorf("load project %s: %w", URL, err)
	}
	g, err := decodeProject(data)
	if err != nil {
		return fmt.Errorf("load project %s: %w", URL, err)
	}
	w.mu.Lock()
	w.graph = g
	w.layout++
	w.mu.Unlock()
	w.logger.Info("loaded project", "url", URL, "cells", g.Len())
	return nil
}

// Exists reports whether a project is stored at URL.
func Exists(ctx context.Context, URL string) (bool, error) {
	return fs.Exists(ctx, URL)
}

func decodeProject(data []byte) (*cellgraph.Graph, error) {
	var p Project
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, &cellgraph.InputError{Kind: cellgraph.ErrMalformedInput, Msg: err.Error()}
	}
	g := cellgraph.New()
	if err := g.LoadDocument(p.Graph); err != nil {
		return nil, err
	}
	if err := g.RestoreHistory(p.History); err != nil {
		return nil, err
	}
	return g, nil
}
