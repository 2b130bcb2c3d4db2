package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/cellgraph/pkg/cellgraph"
	"github.com/ravi-parthasarathy/cellgraph/pkg/ipynb"
	"github.com/ravi-parthasarathy/cellgraph/pkg/workspace"
)

// ─── import ───────────────────────────────────────────────────────────────────

func importCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <notebook.ipynb|script.py>",
		Short: "Start a project from a notebook or a percent-format script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			cells, err := ipynb.ReadCells(ctx, args[0])
			if err != nil {
				return err
			}
			ws, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			ref, err := ws.Import(ctx, cells)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %d cells from %s\n", len(cells), args[0])
			settle(ctx, out, ref)
			return a.save(ctx, ws)
		},
	}
}

// ─── structure ────────────────────────────────────────────────────────────────

func deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <cell>",
		Short: "Delete a cell nothing depends on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := cellArg(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return a.edit(ctx, func(ws *workspace.Workspace) error {
				ref, err := ws.Delete(ctx, i)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted cell %d\n", i)
				settle(ctx, cmd.OutOrStdout(), ref)
				return nil
			})
		},
	}
}

func splitCmd(a *app) *cobra.Command {
	var at int
	cmd := &cobra.Command{
		Use:   "split <cell> --at <line>",
		Short: "Split a cell in two before the given line (1-based)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := cellArg(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return a.edit(ctx, func(ws *workspace.Workspace) error {
				c, err := ws.Cell(i)
				if err != nil {
					return err
				}
				codeA, codeB, err := splitAt(c.Code, at)
				if err != nil {
					return err
				}
				ref, err := ws.Split(ctx, i, codeA, codeB)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "split cell %d into cells %d and %d\n", i, i, i+1)
				settle(ctx, cmd.OutOrStdout(), ref)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&at, "at", 0, "first line of the second cell")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

// splitAt cuts code before 1-based line at. Both halves must be non-empty.
func splitAt(code string, at int) (string, string, error) {
	lines := strings.Split(code, "\n")
	if at < 2 || at > len(lines) {
		return "", "", fmt.Errorf("--at %d: cell has %d lines, split line must be in 2..%d", at, len(lines), len(lines))
	}
	return strings.Join(lines[:at-1], "\n"), strings.Join(lines[at-1:], "\n"), nil
}

func mergeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <cell> <cell>",
		Short: "Merge two cells into one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := cellArg(args[0])
			if err != nil {
				return err
			}
			y, err := cellArg(args[1])
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return a.edit(ctx, func(ws *workspace.Workspace) error {
				ref, err := ws.Merge(ctx, x, y)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "merged cells %d and %d into cell %d\n", x, y, min(x, y))
				settle(ctx, cmd.OutOrStdout(), ref)
				return nil
			})
		},
	}
}

func hoistCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "hoist <imports|functions>",
		Short:     "Move imports or function definitions into their own cells",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"imports", "functions"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return a.edit(ctx, func(ws *workspace.Workspace) error {
				var err error
				if args[0] == "imports" {
					err = ws.HoistImports(ctx)
				} else {
					err = ws.HoistFunctions(ctx)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "hoisted %s; %d cells\n", args[0], ws.Len())
				return nil
			})
		},
	}
}

// ─── roles ────────────────────────────────────────────────────────────────────

func roleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "role <cell> <rule|script|undecided>",
		Short: "Set the role of a cell",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := cellArg(args[0])
			if err != nil {
				return err
			}
			role, err := cellgraph.ParseRole(args[1])
			if err != nil {
				return err
			}
			return a.edit(cmd.Context(), func(ws *workspace.Workspace) error {
				return ws.SetRole(cmd.Context(), i, role)
			})
		},
	}
}

func nameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "name <cell> <name>",
		Short: "Name the rule or script of a cell",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := cellArg(args[0])
			if err != nil {
				return err
			}
			return a.edit(cmd.Context(), func(ws *workspace.Workspace) error {
				return ws.SetName(cmd.Context(), i, args[1])
			})
		},
	}
}

// ─── variables ────────────────────────────────────────────────────────────────

func wildcardCmd(a *app) *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:   "wildcard <cell> <variable>",
		Short: "Make a read variable a config wildcard, or with --off a dependency again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := cellArg(args[0])
			if err != nil {
				return err
			}
			return a.edit(cmd.Context(), func(ws *workspace.Workspace) error {
				if off {
					return ws.SetDependency(cmd.Context(), i, args[1])
				}
				return ws.SetWildcard(cmd.Context(), i, args[1])
			})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "turn the wildcard back into a dependency")
	return cmd
}

type variableEdit func(ws *workspace.Workspace, ctx context.Context, i int, v string) error

// variableCmd builds an "add|remove <cell> <variable>" command.
func variableCmd(a *app, use, short string, add, remove variableEdit) *cobra.Command {
	return &cobra.Command{
		Use:       use + " <add|remove> <cell> <variable>",
		Short:     short,
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{"add", "remove"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var fn variableEdit
			switch args[0] {
			case "add":
				fn = add
			case "remove":
				fn = remove
			default:
				return fmt.Errorf("unknown action %q: use add or remove", args[0])
			}
			i, err := cellArg(args[1])
			if err != nil {
				return err
			}
			return a.edit(cmd.Context(), func(ws *workspace.Workspace) error {
				return fn(ws, cmd.Context(), i, args[2])
			})
		},
	}
}

func dependencyCmd(a *app) *cobra.Command {
	return variableCmd(a, "dependency", "Add or remove a variable a cell reads",
		(*workspace.Workspace).AddDependency, (*workspace.Workspace).RemoveDependency)
}

func writeCmd(a *app) *cobra.Command {
	return variableCmd(a, "write", "Add or remove a variable a cell writes",
		(*workspace.Workspace).AddWrite, (*workspace.Workspace).RemoveWrite)
}

func independentCmd(a *app) *cobra.Command {
	var restore string
	cmd := &cobra.Command{
		Use:   "independent <cell>",
		Short: "Turn the globals of a function cell into parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := cellArg(args[0])
			if err != nil {
				return err
			}
			return a.edit(cmd.Context(), func(ws *workspace.Workspace) error {
				if restore != "" {
					return ws.RemoveFunctionDependency(cmd.Context(), i, restore)
				}
				return ws.MakeFunctionIndependent(cmd.Context(), i)
			})
		},
	}
	cmd.Flags().StringVar(&restore, "restore", "", "turn this parameter back into a global read")
	return cmd
}

func paramsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "params <config.yaml>",
		Short: "Set the workflow config that wildcards are read from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := fs.DownloadWithURL(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			return a.edit(cmd.Context(), func(ws *workspace.Workspace) error {
				return ws.SetConfig(cmd.Context(), string(data))
			})
		},
	}
}

// ─── history ──────────────────────────────────────────────────────────────────

func undoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Undo the last change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.edit(cmd.Context(), func(ws *workspace.Workspace) error {
				ok, err := ws.Undo(cmd.Context())
				if err == nil && !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to undo")
				}
				return err
			})
		},
	}
}

func redoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Redo the last undone change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.edit(cmd.Context(), func(ws *workspace.Workspace) error {
				ok, err := ws.Redo(cmd.Context())
				if err == nil && !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to redo")
				}
				return err
			})
		},
	}
}
