package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/cellgraph/pkg/agent"
	"github.com/ravi-parthasarathy/cellgraph/pkg/agent/tools"
	"github.com/ravi-parthasarathy/cellgraph/pkg/workspace"
)

// ─── suggest ──────────────────────────────────────────────────────────────────

func suggestCmd(a *app) *cobra.Command {
	var from int
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Ask the model for cell roles and names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.offline {
				return fmt.Errorf("suggest needs a model; drop --offline")
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return a.edit(ctx, func(ws *workspace.Workspace) error {
				applied, err := ws.Suggest(ctx, from).Wait(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d cells re-labelled\n", applied)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "first cell to reconsider")
	return cmd
}

// ─── generate ─────────────────────────────────────────────────────────────────

func generateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <cell>",
		Short: "Ask the model for the Snakemake rule and glue code of a rule cell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.offline {
				return fmt.Errorf("generate needs a model; drop --offline")
			}
			i, err := cellArg(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return a.edit(ctx, func(ws *workspace.Workspace) error {
				if err := ws.Generate(ctx, i); err != nil {
					return err
				}
				c, err := ws.Cell(i)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), c.Role.GeneratedRuleText)
				return nil
			})
		},
	}
}

// ─── agent ────────────────────────────────────────────────────────────────────

func agentCmd(a *app) *cobra.Command {
	var (
		maxTurns  int
		maxTokens int
		quiet     bool
	)
	cmd := &cobra.Command{
		Use:   "agent <instruction>...",
		Short: "Let the model restructure the project with graph editing tools",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return a.edit(ctx, func(ws *workspace.Workspace) error {
				events := make(chan agent.Event, 64)
				done := make(chan struct{})
				go func() {
					defer close(done)
					for e := range events {
						if !quiet {
							printEvent(cmd.ErrOrStderr(), e)
						}
					}
				}()

				loop := agent.NewLoop(client, tools.NewGraphTools(ws),
					agent.WithModel(a.cfg.Model),
					agent.WithMaxTurns(maxTurns),
					agent.WithMaxTokens(maxTokens),
					agent.WithEvents(events),
				)
				res, err := loop.Run(ctx, strings.Join(args, " "))
				close(events)
				<-done
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Output)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&maxTurns, "max-turns", 50, "maximum model turns")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 4096, "per-turn token budget")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print tool calls")
	return cmd
}

// printEvent shows tool calls, failed results and steering.
func printEvent(w io.Writer, e agent.Event) {
	switch {
	case e.Type == agent.EventTypeToolCall,
		e.Type == agent.EventTypeToolResult && e.IsError,
		e.Type == agent.EventTypeSteering:
		fmt.Fprintln(w, truncate(e.String(), 160))
	}
}
