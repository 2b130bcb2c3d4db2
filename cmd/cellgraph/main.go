package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/cellgraph/pkg/config"

	// Register all LLM providers via their init() functions.
	_ "github.com/ravi-parthasarathy/cellgraph/pkg/llm/providers"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the global flags and the settings resolved from them.
type app struct {
	configPath string
	project    string
	model      string
	offline    bool
	verbose    bool
	logLevel   string
	logFormat  string

	cfg *config.Config
}

func rootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "cellgraph",
		Short: "cellgraph: notebook to Snakemake decomposition",
		Long: `cellgraph turns notebook cells into a Snakemake workflow.

Each cell becomes a rule, a script or stays undecided. Edits keep the
dependency graph consistent and can be undone; the project is saved
after every command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "settings file (default cellgraph.yaml)")
	pf.StringVar(&a.project, "project", "", "project file or URL (default from settings)")
	pf.StringVar(&a.model, "model", "", "LLM model as provider:model-id")
	pf.BoolVar(&a.offline, "offline", false, "never call a model; edits skip analysis and role suggestions")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	pf.StringVar(&a.logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(
		importCmd(a),
		showCmd(a),
		graphCmd(a),
		deleteCmd(a),
		splitCmd(a),
		mergeCmd(a),
		roleCmd(a),
		nameCmd(a),
		wildcardCmd(a),
		dependencyCmd(a),
		writeCmd(a),
		hoistCmd(a),
		independentCmd(a),
		paramsCmd(a),
		undoCmd(a),
		redoCmd(a),
		suggestCmd(a),
		generateCmd(a),
		exportCmd(a),
		lintCmd(a),
		agentCmd(a),
	)
	return root
}

func (a *app) setup() error {
	level := a.logLevel
	if a.verbose {
		level = "debug"
	}
	if err := initLogger(level, a.logFormat); err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.project != "" {
		cfg.Project = a.project
	}
	if a.model != "" {
		cfg.Model = a.model
	}
	a.cfg = cfg
	slog.Debug("settings", "project", cfg.Project, "model", cfg.Model, "history", cfg.History, "offline", a.offline)
	return nil
}

// initLogger installs the default slog handler on stderr.
func initLogger(level, format string) error {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q: use debug, info, warn or error", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "text", "":
		h = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format %q: use text or json", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		select {
		case <-ch:
			fmt.Fprintln(os.Stderr, "\n[cellgraph] interrupted, cancelling")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
