package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/codegraph/internal/config"
	"github.com/dusk-indust/codegraph/internal/export"
	"github.com/dusk-indust/codegraph/internal/mcptools"
	"github.com/dusk-indust/codegraph/internal/query"
	"github.com/dusk-indust/codegraph/internal/store"
)

// =============================================================================
// PARSE
// =============================================================================

func (a *app) parseCmd() *cobra.Command {
	var (
		language string
		asJSON   bool
		trees    bool
	)
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse the project and report per-file results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, _, err := a.openEngine(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer e.Close()

			pr := e.ParseProjectLanguage(cmd.Context(), a.flags.ProjectRoot, language)
			if asJSON {
				if err := export.WriteJSON(a.stdout, export.ParseReport(pr, trees)); err != nil {
					return err
				}
			} else {
				printParseReport(a.stdout, pr)
			}
			if !pr.Success {
				return fmt.Errorf("parse failed: %s", pr.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "primary language (default: config or detected)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&trees, "trees", false, "include syntax trees in JSON output")
	return cmd
}

// =============================================================================
// BUILD
// =============================================================================

func (a *app) buildCmd() *cobra.Command {
	var (
		language   string
		dryRun     bool
		asJSON     bool
		statements bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Parse the project and write its graph to the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, _, err := a.openEngine(ctx, func(c *config.Config) {
				if dryRun {
					c.Store.Backend = store.BackendNone
				}
			})
			if err != nil {
				return err
			}
			defer e.Close()

			pr := e.ParseProjectLanguage(ctx, a.flags.ProjectRoot, language)
			if !pr.Success {
				return fmt.Errorf("parse failed: %s", pr.Error)
			}
			res := e.BuildGraph(ctx, pr)
			if asJSON {
				if err := export.WriteJSON(a.stdout, export.BuildResult(res, statements)); err != nil {
					return err
				}
			} else {
				printBuildReport(a.stdout, pr, res)
				if statements {
					for _, s := range res.Statements {
						fmt.Fprintf(a.stdout, "%s;\n", s.Text)
					}
				}
			}
			if !res.Report.Success {
				return fmt.Errorf("build failed: %s", res.Report.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "primary language (default: config or detected)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "generate statements without writing to a store")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&statements, "statements", false, "include generated statements in the output")
	return cmd
}

// =============================================================================
// QUERY AND SEARCH
// =============================================================================

func (a *app) queryCmd() *cobra.Command {
	var (
		name     string
		params   []string
		language string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "query [cypher]",
		Short: "Run a Cypher query or a named query against the graph",
		Long: "Run a Cypher query, or a named query with --name. Named queries: " +
			strings.Join(query.Names(), ", ") + ".",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (name == "") == (len(args) == 0) {
				return errors.New("give either a query or --name")
			}
			p, err := parseParams(params)
			if err != nil {
				return err
			}
			e, err := a.openGraph(cmd.Context(), language)
			if err != nil {
				return err
			}
			defer e.Close()

			var out query.Outcome
			if name != "" {
				out = e.NamedQuery(cmd.Context(), name, p)
			} else {
				out = e.Query(cmd.Context(), args[0], p)
			}
			return a.printOutcome(out, asJSON)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "named query to run")
	cmd.Flags().StringArrayVar(&params, "param", nil, "query parameter key=value (repeatable; ints and bools are converted)")
	cmd.Flags().StringVar(&language, "language", "", "language used when building an in-memory graph")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the outcome as JSON")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var (
		limit    int
		language string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "search <pattern>",
		Short: "Find symbols whose name contains a pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			e, err := a.openGraph(cmd.Context(), language)
			if err != nil {
				return err
			}
			defer e.Close()
			return a.printOutcome(e.Search(cmd.Context(), args[0], limit), asJSON)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default 50)")
	cmd.Flags().StringVar(&language, "language", "", "language used when building an in-memory graph")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the outcome as JSON")
	return cmd
}

func (a *app) printOutcome(out query.Outcome, asJSON bool) error {
	if asJSON {
		if err := export.WriteJSON(a.stdout, out); err != nil {
			return err
		}
	} else {
		printRows(a.stdout, out.Results)
	}
	if !out.Success {
		return fmt.Errorf("query failed: %s", out.Error)
	}
	return nil
}

// parseParams converts key=value pairs. Values that parse as integers or
// booleans are converted; everything else stays a string.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q (want key=value)", pair)
		}
		out[k] = coerce(v)
	}
	return out, nil
}

func coerce(v string) any {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}

// =============================================================================
// ANALYZE
// =============================================================================

const (
	formatText    = "text"
	formatJSON    = "json"
	formatMermaid = "mermaid"
)

func (a *app) analyzeCmd() *cobra.Command {
	var (
		format   string
		language string
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Detect import cycles, unused public elements and coupling problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch format {
			case formatText, formatJSON, formatMermaid:
			default:
				return fmt.Errorf("invalid --format %q (want text, json or mermaid)", format)
			}
			e, err := a.openGraph(cmd.Context(), language)
			if err != nil {
				return err
			}
			defer e.Close()

			res := e.AnalyzeArchitecture(cmd.Context(), a.flags.ProjectRoot)
			switch format {
			case formatJSON:
				if err := export.WriteJSON(a.stdout, export.Analysis(res)); err != nil {
					return err
				}
			case formatMermaid:
				fmt.Fprint(a.stdout, export.Mermaid(res))
			default:
				printAnalysis(a.stdout, res)
			}
			if !res.Success {
				return fmt.Errorf("analysis failed: %s", res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", formatText, "output format: text, json or mermaid")
	cmd.Flags().StringVar(&language, "language", "", "language used when building an in-memory graph")
	return cmd
}

// =============================================================================
// STATUS
// =============================================================================

func (a *app) statusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report parser, store, builder and analyzer health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, _, err := a.openEngine(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer e.Close()

			st := e.Status(cmd.Context())
			if asJSON {
				return export.WriteJSON(a.stdout, st)
			}
			printStatus(a.stdout, st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")
	return cmd
}

// =============================================================================
// SERVE-MCP
// =============================================================================

func (a *app) serveMCPCmd() *cobra.Command {
	var (
		addr  string
		stdio bool
	)
	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the code graph tools over the Model Context Protocol",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, _, err := a.openEngine(ctx, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			svc := mcptools.NewCodeGraphService(e, a.flags.ProjectRoot, a.logger)
			if stdio {
				return mcptools.RunMCPServerStdio(ctx, svc)
			}
			return mcptools.RunMCPServer(ctx, svc, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8765", "listen address for streamable HTTP")
	cmd.Flags().BoolVar(&stdio, "stdio", false, "serve on stdin/stdout instead of HTTP")
	return cmd
}
