// Package query answers questions about a built code knowledge graph.
//
// A Client wraps a store connection that may come and go: construction
// attempts a connection but never fails, and every query retries the
// connection when the previous attempt did not succeed. Queries never
// return errors; failures are reported in the Outcome.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dusk-indust/codegraph/internal/graph"
	"github.com/dusk-indust/codegraph/internal/store"
)

// ErrUnknownQuery is reported for a named query that does not exist.
var ErrUnknownQuery = errors.New("unknown named query")

// Connector opens (or returns) the executor queries run against.
type Connector func(ctx context.Context) (store.Executor, error)

// Static returns a Connector for an executor that is already open.
func Static(exec store.Executor) Connector {
	return func(context.Context) (store.Executor, error) {
		if exec == nil {
			return nil, store.ErrNotConnected
		}
		return exec, nil
	}
}

// Outcome is the result of one query. TotalCount always equals
// len(Results); a failed query has no results.
type Outcome struct {
	Query      string         `json:"query"`
	Name       string         `json:"name,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	Results    []store.Row    `json:"results"`
	TotalCount int            `json:"totalCount"`
	ElapsedMS  float64        `json:"elapsedMs"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout bounds each query. Zero means no bound beyond the caller's
// context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Client runs ad-hoc and named queries.
type Client struct {
	connect Connector
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	exec    store.Executor
	lastErr error
}

// New creates a Client and attempts an initial connection. A failed
// attempt is logged and retried on the next query.
func New(ctx context.Context, connect Connector, opts ...Option) *Client {
	c := &Client{connect: connect, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := c.executor(ctx); err != nil {
		c.logger.Warn("graph store unavailable, queries will retry",
			slog.Any("error", err))
	}
	return c
}

// Available reports whether the last connection attempt succeeded.
func (c *Client) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exec != nil
}

// LastError returns the most recent connection or execution error.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// executor returns the connected executor, dialing when there is none.
// The dial happens outside the lock.
func (c *Client) executor(ctx context.Context) (store.Executor, error) {
	c.mu.Lock()
	exec := c.exec
	c.mu.Unlock()
	if exec != nil {
		return exec, nil
	}

	exec, err := c.dial(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err
		return nil, err
	}
	if c.exec == nil {
		c.exec = exec
		c.lastErr = nil
	}
	return c.exec, nil
}

func (c *Client) dial(ctx context.Context) (store.Executor, error) {
	if c.connect == nil {
		return nil, store.ErrNotConnected
	}
	exec, err := c.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if exec == nil {
		return nil, store.ErrNotConnected
	}
	if err := exec.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return exec, nil
}

// Execute runs an arbitrary query. Named-only stores reject it.
func (c *Client) Execute(ctx context.Context, text string, params map[string]any) Outcome {
	return c.run(ctx, "", func(graph.Dialect) (graph.Statement, error) {
		return graph.NewQuery("", text, params), nil
	})
}

// Named runs the named query with the given parameters.
func (c *Client) Named(ctx context.Context, name string, params map[string]any) Outcome {
	return c.run(ctx, name, func(d graph.Dialect) (graph.Statement, error) {
		return Render(d, name, params)
	})
}

// FunctionsInFile lists the top-level functions defined in a file.
func (c *Client) FunctionsInFile(ctx context.Context, path string) Outcome {
	return c.Named(ctx, graph.QueryFunctionsInFile, map[string]any{graph.ParamPath: path})
}

// ClassesInFile lists the class-like types defined in a file.
func (c *Client) ClassesInFile(ctx context.Context, path string) Outcome {
	return c.Named(ctx, graph.QueryClassesInFile, map[string]any{graph.ParamPath: path})
}

// MethodsInClass lists the methods of every type with the given name.
func (c *Client) MethodsInClass(ctx context.Context, class string) Outcome {
	return c.Named(ctx, graph.QueryMethodsInClass, map[string]any{graph.ParamName: class})
}

func (c *Client) ImportsInFile(ctx context.Context, path string) Outcome {
	return c.Named(ctx, graph.QueryImportsInFile, map[string]any{graph.ParamPath: path})
}

// CallersOf lists the callables that call a function with the given name.
func (c *Client) CallersOf(ctx context.Context, name string) Outcome {
	return c.Named(ctx, graph.QueryCallersOf, map[string]any{graph.ParamName: name})
}

// CalleesOf lists the callables called by a function with the given name.
func (c *Client) CalleesOf(ctx context.Context, name string) Outcome {
	return c.Named(ctx, graph.QueryCalleesOf, map[string]any{graph.ParamName: name})
}

// ClassHierarchyOf lists the supertype edges touching a type, in both
// directions.
func (c *Client) ClassHierarchyOf(ctx context.Context, name string) Outcome {
	return c.Named(ctx, graph.QueryClassHierarchyOf, map[string]any{graph.ParamName: name})
}

func (c *Client) FileDependenciesOf(ctx context.Context, path string) Outcome {
	return c.Named(ctx, graph.QueryFileDependenciesOf, map[string]any{graph.ParamPath: path})
}

func (c *Client) UnusedPublicFunctions(ctx context.Context) Outcome {
	return c.Named(ctx, graph.QueryUnusedPublicFunctions, nil)
}

func (c *Client) UnusedPublicClasses(ctx context.Context) Outcome {
	return c.Named(ctx, graph.QueryUnusedPublicClasses, nil)
}

// ComplexFunctions lists callables whose complexity exceeds threshold,
// most complex first.
func (c *Client) ComplexFunctions(ctx context.Context, threshold int) Outcome {
	return c.Named(ctx, graph.QueryComplexFunctions, map[string]any{graph.ParamThreshold: threshold})
}

// CircularDependencyCandidates lists pairs of files that import each other.
func (c *Client) CircularDependencyCandidates(ctx context.Context) Outcome {
	return c.Named(ctx, graph.QueryCircularDependencies, nil)
}

// SearchByName finds nodes whose name contains pattern, ignoring case.
// A non-positive limit uses the default.
func (c *Client) SearchByName(ctx context.Context, pattern string, limit int) Outcome {
	params := map[string]any{graph.ParamPattern: pattern}
	if limit > 0 {
		params[graph.ParamLimit] = limit
	}
	return c.Named(ctx, graph.QuerySearchByName, params)
}

// FileDependencyEdges lists every file-to-file import edge.
func (c *Client) FileDependencyEdges(ctx context.Context) Outcome {
	return c.Named(ctx, graph.QueryFileDependencyEdges, nil)
}

// ProjectFiles lists the path and language of every File node.
func (c *Client) ProjectFiles(ctx context.Context) Outcome {
	return c.Named(ctx, graph.QueryProjectFiles, nil)
}

// ProjectStats returns one row of node, relationship, file, function and
// class counts.
func (c *Client) ProjectStats(ctx context.Context) Outcome {
	return c.Named(ctx, graph.QueryProjectStats, nil)
}

func (c *Client) run(ctx context.Context, name string, build func(graph.Dialect) (graph.Statement, error)) (out Outcome) {
	start := time.Now()
	ctx, span := startQuerySpan(ctx, name)
	defer span.End()

	out = Outcome{Name: name, Results: []store.Row{}}
	defer func() {
		if r := recover(); r != nil {
			out = failed(out, fmt.Errorf("query panicked: %v", r))
		}
		out.ElapsedMS = float64(time.Since(start).Microseconds()) / 1000
		setQuerySpanResult(span, out)
		recordQueryMetrics(ctx, out)
		if !out.Success {
			c.logger.Warn("graph query failed",
				slog.String("query", queryLabel(out)),
				slog.String("error", out.Error))
		}
	}()

	exec, connErr := c.executor(ctx)
	dialect := graph.DialectNeo4j
	if connErr == nil {
		dialect = exec.Dialect()
	}
	stmt, err := build(dialect)
	out.Query, out.Params = stmt.Text, stmt.Params
	if err != nil {
		return failed(out, err)
	}
	if connErr != nil {
		return failed(out, connErr)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	rows, err := exec.Execute(ctx, stmt)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		return failed(out, err)
	}
	if rows == nil {
		rows = []store.Row{}
	}
	out.Results = rows
	out.TotalCount = len(rows)
	out.Success = true
	return out
}

func failed(out Outcome, err error) Outcome {
	out.Results = []store.Row{}
	out.TotalCount = 0
	out.Success = false
	out.Error = err.Error()
	return out
}
