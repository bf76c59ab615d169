// Package builder maps parsed syntax trees onto the code knowledge graph.
// Each file becomes a File node, a root container and the definitions
// beneath it; a post-pass then resolves imports, calls and supertypes across
// files. Statements are generated through the schema registry and, when a
// store is configured, executed as one ordered batch.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/codegraph/internal/graph"
	"github.com/dusk-indust/codegraph/internal/parse"
	"github.com/dusk-indust/codegraph/internal/store"
)

// Builder generates graph statements from parse reports. A Builder owns its
// id generator, so ids stay unique across every Build it runs.
type Builder struct {
	registry *graph.Registry
	exec     store.Executor
	logger   *slog.Logger
	workers  int
	ids      *graph.IDGenerator
}

// Option configures a Builder.
type Option func(*Builder)

// WithExecutor sets the store statements are executed against. Without one
// the builder runs in dry-run mode.
func WithExecutor(e store.Executor) Option {
	return func(b *Builder) { b.exec = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithWorkers sets how many files are mapped concurrently.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithIDGenerator shares an id generator between builders.
func WithIDGenerator(g *graph.IDGenerator) Option {
	return func(b *Builder) {
		if g != nil {
			b.ids = g
		}
	}
}

// New creates a Builder emitting statements through reg.
func New(reg *graph.Registry, opts ...Option) *Builder {
	if reg == nil {
		reg = graph.DefaultRegistry()
	}
	b := &Builder{
		registry: reg,
		logger:   slog.Default(),
		workers:  runtime.NumCPU(),
		ids:      graph.NewIDGenerator(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// DryRun reports whether the builder has no store to execute against.
func (b *Builder) DryRun() bool { return b.exec == nil }

// Result holds everything one Build generated.
type Result struct {
	// Statements are in execution order: each file's nodes then its
	// relationships, in report order, followed by cross-file relationships.
	Statements []graph.Statement `json:"statements"`
	Nodes      []graph.Node      `json:"nodes"`
	Edges      []graph.Edge      `json:"edges"`
	// Dependencies maps each file to the project files it imports.
	Dependencies map[string][]string `json:"dependencies"`
	Report       *Report             `json:"report"`
}

// Build maps every successful unit of pr and, unless in dry-run mode,
// executes the statements. Failures are reported in the Result's Report,
// never returned.
func (b *Builder) Build(ctx context.Context, pr *parse.Report) *Result {
	start := time.Now()
	report := newReport(uuid.NewString(), b.DryRun())
	res := &Result{Report: report, Dependencies: map[string][]string{}}

	if pr == nil {
		report.Error = "no parse report"
		report.finish(time.Since(start))
		return res
	}
	if !pr.Success {
		report.Error = fmt.Sprintf("parse failed: %s", pr.Error)
		report.finish(time.Since(start))
		return res
	}

	units := pr.Successful()
	ctx, span := startBuildSpan(ctx, len(units))
	defer span.End()

	files := b.mapFiles(ctx, units, report)

	l := newLinker(b.registry, pr.Root, files)
	l.run()
	report.UnresolvedImports = l.unresolved
	for _, e := range l.errs {
		report.addError("%s", e)
	}
	res.Dependencies = l.dependencies()

	var plan []step
	for _, fg := range files {
		plan = append(plan, fg.steps...)
		plan = append(plan, fg.links...)
		res.Nodes = append(res.Nodes, fg.nodes...)
		res.Edges = append(res.Edges, fg.edges...)
	}
	plan = append(plan, l.links...)
	res.Edges = append(res.Edges, l.edges...)

	res.Statements = make([]graph.Statement, len(plan))
	for i, s := range plan {
		res.Statements[i] = s.stmt
	}
	report.StatementsGenerated = len(plan)

	if b.DryRun() {
		for _, s := range plan {
			if s.isEdge {
				report.countRel(s.rel)
			} else {
				report.countNode(s.kind)
			}
		}
		report.Success = true
	} else {
		b.execute(ctx, plan, report)
	}

	report.finish(time.Since(start))
	setBuildSpanResult(span, report, report.Duration)
	recordBuildMetrics(ctx, report)
	b.logger.Info("graph build finished",
		slog.String("run_id", report.RunID),
		slog.Int("files", report.FilesProcessed),
		slog.Int("nodes", report.TotalNodes),
		slog.Int("relationships", report.TotalRelationships),
		slog.Int("failed_statements", report.StatementsFailed),
		slog.Bool("dry_run", report.DryRun),
		slog.Duration("duration", report.Duration))
	return res
}

// mapFiles builds every unit in parallel and returns the surviving file
// graphs in report order.
func (b *Builder) mapFiles(ctx context.Context, units []parse.ParsedUnit, report *Report) []*fileGraph {
	out := make([]*fileGraph, len(units))
	errs := make([]error, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, pu := range units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = fmt.Errorf("build %s: cancelled", pu.Source.RelPath)
				return nil
			}
			out[i], errs[i] = b.buildFile(pu)
			return nil
		})
	}
	_ = g.Wait()

	files := make([]*fileGraph, 0, len(units))
	for i, fg := range out {
		if errs[i] != nil {
			report.FilesFailed++
			report.addError("%v", errs[i])
			b.logger.Warn("file skipped", slog.String("file", units[i].Source.RelPath), slog.Any("error", errs[i]))
			continue
		}
		report.FilesProcessed++
		for _, e := range fg.errs {
			report.addError("%s", e)
		}
		files = append(files, fg)
	}
	return files
}

// execute runs plan in order. A relationship is skipped when either
// endpoint's node statement failed.
func (b *Builder) execute(ctx context.Context, plan []step, report *Report) {
	if err := b.exec.InitSchema(ctx, b.registry); err != nil {
		report.Error = fmt.Sprintf("init schema: %v", err)
		b.logger.Warn("graph store unavailable", slog.Any("error", err))
		return
	}

	failed := make(map[string]bool)
	decide := func(i int) bool {
		s := plan[i]
		if s.isEdge && (failed[s.src] || failed[s.dst]) {
			report.StatementsSkipped++
			return false
		}
		return true
	}
	record := func(i int, err error) {
		s := plan[i]
		if err != nil {
			report.StatementsFailed++
			report.addError("%s %s: %v", s.stmt.Op, s.stmt.Label, err)
			if !s.isEdge {
				failed[s.node] = true
			}
			return
		}
		report.StatementsExecuted++
		if s.isEdge {
			report.countRel(s.rel)
		} else {
			report.countNode(s.kind)
		}
	}

	stmts := make([]graph.Statement, len(plan))
	for i, s := range plan {
		stmts[i] = s.stmt
	}
	if err := store.RunBatch(ctx, b.exec, stmts, decide, record); err != nil {
		report.Error = fmt.Sprintf("execute: %v", err)
		return
	}
	if report.StatementsExecuted == 0 && report.StatementsFailed > 0 {
		report.Error = fmt.Sprintf("every statement failed (%d)", report.StatementsFailed)
		return
	}
	report.Success = true
}
