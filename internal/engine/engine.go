// Package engine wires parsing, graph building, querying and analysis into
// the single surface used by the CLI and the MCP server.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dusk-indust/codegraph/internal/analysis"
	"github.com/dusk-indust/codegraph/internal/builder"
	"github.com/dusk-indust/codegraph/internal/config"
	"github.com/dusk-indust/codegraph/internal/graph"
	"github.com/dusk-indust/codegraph/internal/parse"
	"github.com/dusk-indust/codegraph/internal/query"
	"github.com/dusk-indust/codegraph/internal/store"
	"github.com/dusk-indust/codegraph/internal/syntax"
)

// ErrNoStore is reported when no graph store is configured.
var ErrNoStore = fmt.Errorf("%w: no graph store configured", store.ErrNotConnected)

// Builder modes reported by Status.
const (
	ModeDryRun = "dry-run"
	ModeLive   = "live"
)

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithExecutor uses exec instead of opening the configured store. The
// engine does not close it.
func WithExecutor(exec store.Executor) Option {
	return func(e *Engine) { e.injected = exec }
}

// WithParsers replaces the default parser plugins.
func WithParsers(reg *parse.Registry) Option {
	return func(e *Engine) { e.parsers = reg }
}

// Engine owns one store connection and the components built on it. It is
// safe for concurrent use.
type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	parsers  *parse.Registry
	coord    *parse.Coordinator
	schema   *graph.Registry
	ids      *graph.IDGenerator
	queries  *query.Client
	analyzer *analysis.Analyzer
	injected store.Executor

	mu       sync.Mutex
	exec     store.Executor
	storeErr error
	closed   bool
}

// New validates cfg and initializes every component. Configuration errors
// are returned; an unreachable store is not an error, and is retried on
// use.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	e := &Engine{
		cfg:    cfg,
		logger: slog.Default(),
		schema: graph.DefaultRegistry(),
		ids:    graph.NewIDGenerator(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.parsers == nil {
		tools, _ := cfg.ToolCommands()
		e.parsers = parse.DefaultRegistry(parse.ToolOptions{
			Tools:     tools,
			Timeout:   cfg.Parsers.Timeout,
			Heuristic: cfg.Parsers.Fallback,
		})
	}
	e.coord = parse.NewCoordinator(e.parsers,
		parse.WithMaxFileSize(cfg.MaxFileSizeBytes),
		parse.WithExcludeDirs(cfg.ExcludeDirs...),
		parse.WithExcludeGlobs(cfg.ExcludeGlobs...),
		parse.WithGitignore(cfg.RespectGitignore),
		parse.WithWorkers(cfg.Workers),
		parse.WithLogger(e.logger),
	)

	if e.injected != nil {
		e.exec = e.injected
	}
	e.queries = query.New(ctx, e.connect,
		query.WithLogger(e.logger),
	)
	e.analyzer = analysis.New(e.queries,
		analysis.WithLogger(e.logger),
		analysis.WithCycleDedupe(cfg.Analysis.DedupeCycles),
		analysis.WithOrphanDetection(cfg.Analysis.DetectOrphans),
		analysis.WithCouplingThreshold(cfg.Analysis.CouplingThreshold),
	)

	e.logger.Debug("engine ready",
		slog.String("backend", string(e.backend())),
		slog.Int("parsers", len(e.parsers.Languages())),
		slog.Bool("store_connected", e.queries.Available()))
	return e, nil
}

func (e *Engine) backend() store.Backend {
	if e.injected != nil {
		return store.Backend(e.injected.Dialect())
	}
	if e.cfg.Store.Backend == "" {
		return store.BackendNone
	}
	return e.cfg.Store.Backend
}

// connect returns the store executor, opening and pinging it when no
// previous attempt succeeded. The open happens outside the lock.
func (e *Engine) connect(ctx context.Context) (store.Executor, error) {
	e.mu.Lock()
	exec, closed := e.exec, e.closed
	e.mu.Unlock()
	switch {
	case closed:
		return nil, fmt.Errorf("%w: engine closed", store.ErrNotConnected)
	case exec != nil:
		return exec, nil
	case e.backend() == store.BackendNone:
		return nil, ErrNoStore
	}

	timeout := e.cfg.Store.ConnectTimeout
	if timeout <= 0 {
		timeout = store.DefaultConnectTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	exec, err := store.Open(dialCtx, e.cfg.Store)
	if err == nil && exec != nil {
		if perr := exec.Ping(dialCtx); perr != nil {
			_ = exec.Close()
			exec, err = nil, perr
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.storeErr = err
		return nil, err
	}
	if e.exec != nil || e.closed {
		// Lost a race with another caller, or closed meanwhile.
		_ = exec.Close()
		if e.closed {
			return nil, fmt.Errorf("%w: engine closed", store.ErrNotConnected)
		}
		return e.exec, nil
	}
	e.exec, e.storeErr = exec, nil
	e.logger.Info("graph store connected", slog.String("backend", string(e.cfg.Store.Backend)))
	return exec, nil
}

// ParseProject parses the project at path in the configured language, or
// the detected dominant language when none is configured.
func (e *Engine) ParseProject(ctx context.Context, path string) *parse.Report {
	lang, ok, _ := e.cfg.PrimaryLanguage()
	if !ok {
		detected, err := e.coord.DetectLanguage(path)
		if err != nil {
			return failedParse(path, "", err)
		}
		lang = detected
	}
	return e.coord.ParseProject(ctx, path, lang)
}

// ParseProjectLanguage parses path as the named language. An unknown name
// fails before anything is enumerated.
func (e *Engine) ParseProjectLanguage(ctx context.Context, path, language string) *parse.Report {
	if language == "" {
		return e.ParseProject(ctx, path)
	}
	lang, ok := syntax.ParseLanguage(language)
	if !ok {
		return failedParse(path, syntax.Language(language),
			fmt.Errorf("%w: %s", parse.ErrUnsupportedLanguage, language))
	}
	return e.coord.ParseProject(ctx, path, lang)
}

func failedParse(root string, lang syntax.Language, err error) *parse.Report {
	return &parse.Report{
		Root:        root,
		Language:    lang,
		Files:       []parse.ParsedUnit{},
		PerLanguage: map[syntax.Language]parse.LanguageStats{},
		Error:       err.Error(),
	}
}

// BuildGraph builds the graph for a parse report. Without a reachable
// store the build runs dry and only generates statements. Every build of
// one engine draws node ids from the same generator.
func (e *Engine) BuildGraph(ctx context.Context, report *parse.Report) *builder.Result {
	opts := []builder.Option{
		builder.WithLogger(e.logger),
		builder.WithWorkers(e.cfg.Workers),
		builder.WithIDGenerator(e.ids),
	}
	exec, err := e.connect(ctx)
	switch {
	case err == nil:
		opts = append(opts, builder.WithExecutor(exec))
	case !errors.Is(err, ErrNoStore):
		e.logger.Warn("graph store unavailable, building in dry-run mode", slog.String("error", err.Error()))
	}
	return builder.New(e.schema, opts...).Build(ctx, report)
}

// Query runs an arbitrary graph query.
func (e *Engine) Query(ctx context.Context, text string, params map[string]any) query.Outcome {
	return e.queries.Execute(ctx, text, params)
}

// NamedQuery runs one of the named queries listed by query.Names.
func (e *Engine) NamedQuery(ctx context.Context, name string, params map[string]any) query.Outcome {
	return e.queries.Named(ctx, name, params)
}

// Search finds symbols whose name contains pattern, ignoring case.
func (e *Engine) Search(ctx context.Context, pattern string, limit int) query.Outcome {
	return e.queries.SearchByName(ctx, pattern, limit)
}

// AnalyzeArchitecture analyzes the graph built for path.
func (e *Engine) AnalyzeArchitecture(ctx context.Context, path string) *analysis.Result {
	return e.analyzer.Analyze(ctx, path)
}

// IsAvailable reports whether every component, including the graph store,
// is ready.
func (e *Engine) IsAvailable() bool {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	return !closed && e.queries.Available()
}

// Status is the health of each component.
type Status struct {
	Available bool                 `json:"available"`
	Parsers   []parse.PluginStatus `json:"parsers"`
	Store     StoreStatus          `json:"store"`
	Builder   BuilderStatus        `json:"builder"`
	Analyzer  AnalyzerStatus       `json:"analyzer"`
	Config    string               `json:"config,omitempty"`
}

type StoreStatus struct {
	Backend   store.Backend `json:"backend"`
	Connected bool          `json:"connected"`
	Dialect   graph.Dialect `json:"dialect,omitempty"`
	Error     string        `json:"error,omitempty"`
}

type BuilderStatus struct {
	Mode string `json:"mode"`
}

type AnalyzerStatus struct {
	Ready bool           `json:"ready"`
	State analysis.State `json:"state"`
}

// Status reports component health, retrying the store connection and
// verifying it with a ping.
func (e *Engine) Status(ctx context.Context) Status {
	st := Status{
		Parsers:  e.parsers.Status(),
		Store:    StoreStatus{Backend: e.backend()},
		Builder:  BuilderStatus{Mode: ModeDryRun},
		Analyzer: AnalyzerStatus{Ready: e.analyzer != nil, State: e.analyzer.State()},
		Config:   e.cfg.Source,
	}
	exec, err := e.connect(ctx)
	if err == nil {
		err = exec.Ping(ctx)
	}
	if err != nil {
		st.Store.Error = err.Error()
	} else {
		st.Store.Connected = true
		st.Store.Dialect = exec.Dialect()
		st.Builder.Mode = ModeLive
	}
	st.Available = st.Store.Connected && st.Analyzer.Ready
	return st
}

// Close releases the store connection. Further calls report the store as
// unavailable.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	exec := e.exec
	e.exec = nil
	if exec == nil || exec == e.injected {
		return nil
	}
	return exec.Close()
}
