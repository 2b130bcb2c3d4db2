package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/viant/afs"
	"github.com/viant/afs/url"

	"github.com/ravi-parthasarathy/cellgraph/pkg/cellgraph"
	"github.com/ravi-parthasarathy/cellgraph/pkg/pipeline"
	"github.com/ravi-parthasarathy/cellgraph/pkg/workspace"
)

var fs = afs.New()

// ─── show ─────────────────────────────────────────────────────────────────────

func showCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [cell]",
		Short: "List the cells, or print one cell in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				return writeCells(out, ws.Cells())
			}
			i, err := cellArg(args[0])
			if err != nil {
				return err
			}
			var s cellgraph.CellSummary
			if err := ws.View(func(g *cellgraph.Graph) (err error) {
				s, err = g.Summary(i)
				return err
			}); err != nil {
				return err
			}
			data, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\n", data)
			return nil
		},
	}
}

// writeCells prints one row per cell.
func writeCells(out io.Writer, cells []cellgraph.Cell) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CELL\tROLE\tNAME\tREADS\tWRITES\tMISSING\tFIRST LINE")
	for i, c := range cells {
		kind := string(c.Role.Kind)
		if c.IsFunctionCell {
			kind += "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", i, kind, dash(c.Role.Name),
			dash(strings.Join(c.Reads.Sorted(), ",")),
			dash(strings.Join(c.Writes.Sorted(), ",")),
			dash(strings.Join(c.MissingDependencies.Sorted(), ",")),
			truncate(firstLine(c.Code), 40))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

// truncate shortens s to maxLen chars, appending "…" if needed.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "…"
}

// ─── graph ────────────────────────────────────────────────────────────────────

func graphCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the workflow the project exports to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := a.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			p := exportPipeline(ws, a.workflowName())
			switch strings.ToLower(format) {
			case "dot":
				src, err := pipeline.RenderDOT(p)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), src)
			case "text", "":
				fmt.Fprint(cmd.OutOrStdout(), renderText(p))
			default:
				return fmt.Errorf("unknown format %q: use text or dot", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or dot")
	return cmd
}

func exportPipeline(ws *workspace.Workspace, name string) *pipeline.Pipeline {
	var p *pipeline.Pipeline
	_ = ws.View(func(g *cellgraph.Graph) error {
		p = pipeline.FromGraph(name, g)
		return nil
	})
	return p
}

// workflowName derives the workflow name from the project file name.
func (a *app) workflowName() string {
	base := path.Base(a.cfg.Project)
	return strings.TrimSuffix(base, path.Ext(base))
}

// renderText produces the human-readable summary of a pipeline.
func renderText(p *pipeline.Pipeline) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Pipeline: %s  (%d rules, %d scripts, %d edges)\n",
		p.Name, len(p.Rules()), len(p.Scripts()), len(p.Edges))

	maxLabel := 4
	for _, s := range p.Steps {
		maxLabel = max(maxLabel, len(s.Label()))
	}
	fmt.Fprintf(&sb, "\nSteps:\n")
	for _, s := range p.Steps {
		var attrs []string
		if len(s.Wildcards) > 0 {
			attrs = append(attrs, "wildcards="+strings.Join(s.Wildcards, ","))
		}
		if len(s.ReadsFile) > 0 {
			attrs = append(attrs, "files="+strings.Join(s.ReadsFile, ","))
		}
		if len(s.Missing) > 0 {
			attrs = append(attrs, "missing="+strings.Join(s.Missing, ","))
		}
		if !s.Legal {
			attrs = append(attrs, "illegal-role")
		}
		fmt.Fprintf(&sb, "  %-4s  %-*s  %-10s  %s\n", s.ID(), maxLabel, s.Label(), s.Role, strings.Join(attrs, " "))
	}

	fmt.Fprintf(&sb, "\nEdges:\n")
	edges := append([]*pipeline.Edge(nil), p.Edges...)
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].From < edges[j].From })
	for _, e := range edges {
		fmt.Fprintf(&sb, "  %-*s  →  %s  [%s]\n", maxLabel, p.Steps[e.From].Label(), p.Steps[e.To].Label(), e.Variable)
	}
	return sb.String()
}

// ─── export ───────────────────────────────────────────────────────────────────

func exportCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Write the Snakefile, rule scripts, config and a DOT drawing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := a.open(ctx, true)
			if err != nil {
				return err
			}
			p := exportPipeline(ws, a.workflowName())
			if err := pipeline.ValidateErr(p); err != nil {
				if !force {
					return fmt.Errorf("%w\nuse --force to export anyway", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}

			files := p.Files()
			dot, err := pipeline.RenderDOT(p)
			if err != nil {
				return err
			}
			files["workflow.dot"] = dot

			names := make([]string, 0, len(files))
			for name := range files {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				URL := url.Join(args[0], name)
				if err := fs.Upload(ctx, URL, 0o644, bytes.NewReader([]byte(files[name]))); err != nil {
					return fmt.Errorf("export %s: %w", URL, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), URL)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "export even when lint finds problems")
	return cmd
}

// ─── lint ─────────────────────────────────────────────────────────────────────

func lintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lint [workflow.dot]",
		Short: "Check the project, or a DOT drawing of it, for export problems",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p *pipeline.Pipeline
			if len(args) == 1 {
				src, err := fs.DownloadWithURL(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("read file: %w", err)
				}
				if p, err = pipeline.ParseDOT(string(src)); err != nil {
					return fmt.Errorf("parse: %w", err)
				}
			} else {
				ws, err := a.open(cmd.Context(), true)
				if err != nil {
					return err
				}
				p = exportPipeline(ws, a.workflowName())
			}
			if err := pipeline.ValidateErr(p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: workflow %q is valid (%d rules, %d edges)\n",
				p.Name, len(p.Rules()), len(p.Edges))
			return nil
		},
	}
}
