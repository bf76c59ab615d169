// Package store executes graph statements against a property-graph
// database. Neo4jStore speaks bolt to Neo4j and Memgraph, KuzuStore embeds
// Kuzu, and MemStore keeps the graph in process.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dusk-indust/codegraph/internal/graph"
)

var (
	// ErrNotConnected is returned when no store connection is available.
	ErrNotConnected = errors.New("graph store not connected")

	// ErrUnsupportedQuery is returned by stores that only answer named
	// queries when given ad-hoc text.
	ErrUnsupportedQuery = errors.New("unsupported query")

	// ErrUnsupportedBackend is returned for an unknown backend name.
	ErrUnsupportedBackend = errors.New("unsupported store backend")

	// ErrMissingCredentials is returned when a backend needs a URI, path or
	// password that was not configured.
	ErrMissingCredentials = errors.New("missing store credentials")

	// ErrDanglingEndpoint is returned when a relationship references a node
	// id the store does not hold.
	ErrDanglingEndpoint = errors.New("relationship endpoint not found")
)

// Row is one result record keyed by column name.
type Row map[string]any

// Executor runs statements against a graph store.
type Executor interface {
	// Execute runs one statement. Mutations return no rows.
	Execute(ctx context.Context, stmt graph.Statement) ([]Row, error)
	// InitSchema prepares the store for the shapes held by reg.
	InitSchema(ctx context.Context, reg *graph.Registry) error
	Ping(ctx context.Context) error
	Dialect() graph.Dialect
	Close() error
}

// RunFunc executes one statement inside a batch.
type RunFunc func(graph.Statement) error

// BatchExecutor is implemented by stores that can run an ordered sequence
// of statements over a single session. fn is called once and decides per
// statement whether to run it.
type BatchExecutor interface {
	Batch(ctx context.Context, fn func(run RunFunc) error) error
}

// Backend names a store implementation.
type Backend string

const (
	BackendNone     Backend = "none"
	BackendMemory   Backend = "memory"
	BackendNeo4j    Backend = "neo4j"
	BackendMemgraph Backend = "memgraph"
	BackendKuzu     Backend = "kuzu"
)

// DefaultConnectTimeout bounds connection verification.
const DefaultConnectTimeout = 5 * time.Second

// Config holds graph store connection parameters.
type Config struct {
	Backend        Backend       `yaml:"backend" json:"backend"`
	URI            string        `yaml:"uri,omitempty" json:"uri,omitempty"`
	Username       string        `yaml:"username,omitempty" json:"username,omitempty"`
	Password       string        `yaml:"password,omitempty" json:"-"`
	Database       string        `yaml:"database,omitempty" json:"database,omitempty"`
	Path           string        `yaml:"path,omitempty" json:"path,omitempty"`
	ConnectTimeout time.Duration `yaml:"connectTimeout,omitempty" json:"connectTimeout,omitempty"`
}

// Validate reports configuration errors. These are never retried.
func (c Config) Validate() error {
	switch c.Backend {
	case "", BackendNone, BackendMemory:
		return nil
	case BackendNeo4j, BackendMemgraph:
		if c.URI == "" {
			return fmt.Errorf("%w: %s backend requires a uri", ErrMissingCredentials, c.Backend)
		}
		if c.Username != "" && c.Password == "" {
			return fmt.Errorf("%w: username %q has no password", ErrMissingCredentials, c.Username)
		}
		return nil
	case BackendKuzu:
		if c.Path == "" {
			return fmt.Errorf("%w: kuzu backend requires a path", ErrMissingCredentials)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedBackend, c.Backend)
	}
}

// Open returns the executor for cfg. The none backend returns a nil
// executor, which callers treat as dry-run.
func Open(ctx context.Context, cfg Config) (Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendMemory:
		return NewMemStore(), nil
	case BackendNeo4j, BackendMemgraph:
		s, err := NewNeo4jStore(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendKuzu:
		s, err := OpenKuzu(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, cfg.Backend)
}

// RunBatch executes stmts in order through exec, using a single session
// when exec supports it. decide is called before each statement; returning
// false skips it. report receives the outcome of every executed statement.
func RunBatch(ctx context.Context, exec Executor, stmts []graph.Statement,
	decide func(i int) bool, report func(i int, err error)) error {
	if b, ok := exec.(BatchExecutor); ok {
		return b.Batch(ctx, func(run RunFunc) error {
			for i, stmt := range stmts {
				if err := ctx.Err(); err != nil {
					return err
				}
				if !decide(i) {
					continue
				}
				report(i, run(stmt))
			}
			return nil
		})
	}
	for i, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !decide(i) {
			continue
		}
		_, err := exec.Execute(ctx, stmt)
		report(i, err)
	}
	return nil
}
