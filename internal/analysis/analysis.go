// Package analysis detects architectural issues in a built code knowledge
// graph: import cycles between files, unused public elements, orphaned
// modules and files with excessive fan-out.
//
// Each run starts fresh. Query failures degrade the run (fewer findings,
// still successful); an unexpected fault fails it with no partial results.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dusk-indust/codegraph/internal/graph"
	"github.com/dusk-indust/codegraph/internal/query"
	"github.com/dusk-indust/codegraph/internal/store"
)

// Querier runs named graph queries. *query.Client implements it.
type Querier interface {
	Named(ctx context.Context, name string, params map[string]any) query.Outcome
}

// State is the analyzer's lifecycle position.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// DefaultCouplingThreshold is the fan-out above which a file is reported.
const DefaultCouplingThreshold = 20

// Result is the outcome of one analysis run.
type Result struct {
	RunID        string              `json:"runId"`
	ProjectPath  string              `json:"projectPath"`
	Success      bool                `json:"success"`
	Error        string              `json:"error,omitempty"`
	State        State               `json:"state"`
	Issues       []Issue             `json:"issues"`
	Cycles       [][]string          `json:"cycles"`
	Clusters     []Cluster           `json:"clusters,omitempty"`
	Dependencies map[string][]string `json:"dependencies,omitempty"`
	Summary      Summary             `json:"summary"`
	Limitations  []string            `json:"limitations"`
	// Warnings name the steps that degraded because a query failed.
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Option configures an Analyzer.
type Option func(*Analyzer)

func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithCycleDedupe toggles dropping rotations of an already reported cycle.
func WithCycleDedupe(on bool) Option {
	return func(a *Analyzer) { a.dedupeCycles = on }
}

// WithOrphanDetection toggles OrphanedModule findings.
func WithOrphanDetection(on bool) Option {
	return func(a *Analyzer) { a.detectOrphans = on }
}

// WithCouplingThreshold sets the fan-out limit; zero disables the check.
func WithCouplingThreshold(n int) Option {
	return func(a *Analyzer) { a.couplingThreshold = n }
}

// Analyzer runs architecture analysis against a graph.
type Analyzer struct {
	q      Querier
	logger *slog.Logger

	dedupeCycles      bool
	detectOrphans     bool
	couplingThreshold int

	mu    sync.Mutex
	state State
}

// New creates an Analyzer reading through q.
func New(q Querier, opts ...Option) *Analyzer {
	a := &Analyzer{
		q:                 q,
		logger:            slog.Default(),
		dedupeCycles:      true,
		detectOrphans:     true,
		couplingThreshold: DefaultCouplingThreshold,
		state:             StateIdle,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the state of the most recent run, or StateIdle.
func (a *Analyzer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Analyzer) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Analyze runs every detection step against the graph built for
// projectPath. It never panics and never returns partial results on
// failure.
func (a *Analyzer) Analyze(ctx context.Context, projectPath string) (res *Result) {
	start := time.Now()
	a.setState(StateRunning)
	res = newResult(projectPath)

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("architecture analysis failed",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			res = failedResult(res, fmt.Errorf("analysis panicked: %v", r))
		}
		res.Duration = time.Since(start)
		a.setState(res.State)
	}()

	if err := a.run(ctx, res); err != nil {
		a.logger.Error("architecture analysis failed", slog.String("error", err.Error()))
		return failedResult(res, err)
	}

	res.Success = true
	res.State = StateSucceeded
	res.Summary = summarize(res.Issues)
	a.logger.Info("architecture analysis complete",
		slog.String("project", projectPath),
		slog.Int("issues", res.Summary.Total),
		slog.Int("cycles", len(res.Cycles)),
		slog.Int("warnings", len(res.Warnings)))
	return res
}

func (a *Analyzer) run(ctx context.Context, res *Result) error {
	if a.q == nil {
		return errors.New("analyzer has no query interface")
	}

	// Step 1: dependency graph. A failed query leaves it empty.
	dg := NewDependencyGraph()
	if rows, ok := a.fetch(ctx, res, graph.QueryFileDependencyEdges, "dependency edges"); ok {
		for _, r := range rows {
			dg.AddEdge(store.GetString(r, "source"), store.GetString(r, "target"))
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 2: cycles.
	cycles := dg.Cycles()
	if a.dedupeCycles {
		cycles = DedupeCycles(cycles)
	}
	res.Cycles = append(res.Cycles, cycles...)
	res.Dependencies = dg.Edges()
	res.Clusters = dg.Clusters()

	// Step 3: unused public elements, one query each.
	var unused []store.Row
	seen := make(map[string]bool)
	for _, name := range []string{graph.QueryUnusedPublicFunctions, graph.QueryUnusedPublicClasses} {
		rows, _ := a.fetch(ctx, res, name, "unused public elements")
		for _, r := range rows {
			key := store.GetString(r, "id")
			if key == "" {
				key = elementLabel(store.GetString(r, "file_path"), store.GetString(r, "name"))
			}
			if !seen[key] {
				seen[key] = true
				unused = append(unused, r)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 4: map findings to issues.
	for _, c := range cycles {
		res.Issues = append(res.Issues, cycleIssue(c))
	}
	for _, r := range unused {
		res.Issues = append(res.Issues, unusedIssue(r))
	}

	// An edgeless graph cannot tell an orphan from a project that was
	// never linked.
	if a.detectOrphans && dg.EdgeCount() > 0 {
		if rows, ok := a.fetch(ctx, res, graph.QueryProjectFiles, "project files"); ok {
			for _, r := range rows {
				path := store.GetString(r, "path")
				if path != "" && dg.FanOut(path) == 0 && dg.FanIn(path) == 0 {
					res.Issues = append(res.Issues, orphanIssue(path))
				}
			}
		}
	}
	if a.couplingThreshold > 0 {
		for _, n := range dg.Nodes() {
			if out := dg.FanOut(n); out > a.couplingThreshold {
				res.Issues = append(res.Issues, couplingIssue(n, out, a.couplingThreshold))
			}
		}
	}
	return nil
}

// fetch runs a named query. A failure is logged and recorded as a warning.
func (a *Analyzer) fetch(ctx context.Context, res *Result, name, step string) ([]store.Row, bool) {
	o := a.q.Named(ctx, name, nil)
	if !o.Success {
		a.logger.Warn("analysis step degraded",
			slog.String("step", step),
			slog.String("query", name),
			slog.String("error", o.Error))
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s unavailable: %s", step, o.Error))
		return nil, false
	}
	return o.Results, true
}

func newResult(projectPath string) *Result {
	return &Result{
		RunID:       uuid.NewString(),
		ProjectPath: projectPath,
		State:       StateRunning,
		Issues:      []Issue{},
		Cycles:      [][]string{},
		Summary:     summarize(nil),
		Limitations: Limitations(),
	}
}

// failedResult discards everything found so far.
func failedResult(res *Result, err error) *Result {
	out := newResult(res.ProjectPath)
	out.RunID = res.RunID
	out.State = StateFailed
	out.Error = err.Error()
	return out
}
