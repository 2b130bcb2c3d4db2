package ipynb

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/viant/afs"
)

// SplitPercent splits a percent-format script into code cells. A line
// starting with "# %%" opens a new cell; markdown cells ("# %% [markdown]")
// and blank cells are dropped. A script with no markers is one cell.
func SplitPercent(src string) []string {
	var (
		out      []string
		cur      []string
		markdown bool
	)
	flush := func() {
		text := strings.TrimRight(strings.Join(cur, "\n"), "\n")
		if !markdown && strings.TrimSpace(text) != "" {
			out = append(out, strings.TrimLeft(text, "\n"))
		}
		cur = cur[:0]
	}
	for _, line := range strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n") {
		if strings.HasPrefix(line, "# %%") {
			flush()
			markdown = strings.Contains(line, "[markdown]")
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return out
}

// ReadCells returns the code cells of the notebook or percent-format script
// at URL, chosen by extension.
func ReadCells(ctx context.Context, URL string) ([]string, error) {
	if strings.EqualFold(path.Ext(URL), ".ipynb") {
		return ReadCodeCells(ctx, URL)
	}
	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", URL, err)
	}
	return SplitPercent(string(data)), nil
}
