// Package ipynb reads Jupyter notebooks.
package ipynb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/viant/afs"
)

// Notebook is the subset of the nbformat document cellgraph needs.
type Notebook struct {
	Cells    []Cell         `json:"cells"`
	Metadata map[string]any `json:"metadata"`
	Format   int            `json:"nbformat"`
}

type Cell struct {
	Type   string `json:"cell_type"`
	Source Source `json:"source"`
}

// Source is cell text. nbformat stores it as a string or a list of lines.
type Source string

func (s *Source) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = Source(text)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("cell source: want string or list of strings")
	}
	*s = Source(strings.Join(lines, ""))
	return nil
}

// Decode parses a notebook document.
func Decode(r io.Reader) (*Notebook, error) {
	var nb Notebook
	if err := json.NewDecoder(r).Decode(&nb); err != nil {
		return nil, fmt.Errorf("decode notebook: %w", err)
	}
	if nb.Format != 0 && nb.Format < 4 {
		return nil, fmt.Errorf("decode notebook: nbformat %d not supported", nb.Format)
	}
	return &nb, nil
}

// CodeCells returns the text of the code cells in order. Blank cells are
// skipped.
func (nb *Notebook) CodeCells() []string {
	var out []string
	for _, c := range nb.Cells {
		if c.Type != "code" {
			continue
		}
		text := strings.TrimRight(string(c.Source), "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, text)
	}
	return out
}

// ReadCodeCells downloads the notebook at URL and returns its code cells.
func ReadCodeCells(ctx context.Context, URL string) ([]string, error) {
	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("read notebook %s: %w", URL, err)
	}
	nb, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", URL, err)
	}
	return nb.CodeCells(), nil
}
