// Command ckg builds and analyzes code knowledge graphs.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/codegraph/internal/config"
	"github.com/dusk-indust/codegraph/internal/engine"
	"github.com/dusk-indust/codegraph/internal/store"
)

// version is set by goreleaser at build time.
var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	ProjectRoot string
	ConfigPath  string
	LogLevel    string
	LogFormat   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// app carries the state a subcommand needs after flag parsing.
type app struct {
	flags  globalFlags
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "ckg",
		Short:         "Build and analyze code knowledge graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(a.stderr, a.flags.LogLevel, a.flags.LogFormat)
			if err != nil {
				return err
			}
			a.logger = logger
			slog.SetDefault(logger)
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.ProjectRoot, "project-root", ".", "path to the target project")
	pf.StringVar(&a.flags.ConfigPath, "config", "", "config file (default: ckg.yml in the project root)")
	pf.StringVar(&a.flags.LogLevel, "log-level", "warn", "log level: debug, info, warn, error")
	pf.StringVar(&a.flags.LogFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(
		a.parseCmd(),
		a.buildCmd(),
		a.queryCmd(),
		a.searchCmd(),
		a.analyzeCmd(),
		a.statusCmd(),
		a.serveMCPCmd(),
		versionCmd(stdout),
	)
	return root
}

func versionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintln(stdout, version)
		},
	}
}

// newLogger returns a slog logger writing to w.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid --log-format %q (want text or json)", format)
}

// loadConfig reads --config, or the project's ckg.yml when none is given.
func (a *app) loadConfig() (*config.Config, error) {
	if a.flags.ConfigPath != "" {
		return config.LoadFile(a.flags.ConfigPath)
	}
	return config.Load(a.flags.ProjectRoot)
}

// openEngine loads the config, lets mutate adjust it, and creates an
// engine.
func (a *app) openEngine(ctx context.Context, mutate func(*config.Config)) (*engine.Engine, *config.Config, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}
	e, err := engine.New(ctx, cfg, engine.WithLogger(a.logger))
	if err != nil {
		return nil, nil, err
	}
	return e, cfg, nil
}

// openGraph returns an engine whose store holds the project graph. Without
// a persistent store the project is parsed and built into memory first.
func (a *app) openGraph(ctx context.Context, language string) (*engine.Engine, error) {
	ephemeral := false
	e, cfg, err := a.openEngine(ctx, func(c *config.Config) {
		if c.Store.Backend == store.BackendNone || c.Store.Backend == store.BackendMemory || c.Store.Backend == "" {
			c.Store.Backend = store.BackendMemory
			ephemeral = true
		}
	})
	if err != nil {
		return nil, err
	}
	if !ephemeral {
		return e, nil
	}

	a.logger.Info("no persistent graph store configured, building in memory",
		slog.String("project", a.flags.ProjectRoot),
		slog.String("config", cfg.Source))
	pr := e.ParseProjectLanguage(ctx, a.flags.ProjectRoot, language)
	if !pr.Success {
		_ = e.Close()
		return nil, fmt.Errorf("parse: %s", pr.Error)
	}
	if res := e.BuildGraph(ctx, pr); !res.Report.Success {
		_ = e.Close()
		return nil, fmt.Errorf("build: %s", res.Report.Error)
	}
	return e, nil
}
