package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/dusk-indust/codegraph/internal/graph"
)

// Neo4jStore executes statements over bolt. It serves Neo4j and Memgraph;
// the two differ only in schema DDL.
type Neo4jStore struct {
	driver  neo4j.DriverWithContext
	cfg     Config
	dialect graph.Dialect
}

var (
	_ Executor      = (*Neo4jStore)(nil)
	_ BatchExecutor = (*Neo4jStore)(nil)
)

// NewNeo4jStore creates a driver for cfg. No connection is made until the
// first statement or Ping.
func NewNeo4jStore(cfg Config) (*Neo4jStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("%w: bolt uri not set", ErrMissingCredentials)
	}
	var auth neo4j.AuthToken
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	} else {
		auth = neo4j.NoAuth()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("neo4j: create driver: %w", err)
	}

	dialect := graph.DialectNeo4j
	if cfg.Backend == BackendMemgraph {
		dialect = graph.DialectMemgraph
	}
	return &Neo4jStore{driver: driver, cfg: cfg, dialect: dialect}, nil
}

func (s *Neo4jStore) Dialect() graph.Dialect { return s.dialect }

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.cfg.Database,
	})
}

// Execute runs a read query in a read session and anything else in a write
// session.
func (s *Neo4jStore) Execute(ctx context.Context, stmt graph.Statement) ([]Row, error) {
	mode := neo4j.AccessModeWrite
	if stmt.Op == graph.OpQuery {
		mode = neo4j.AccessModeRead
	}
	session := s.session(ctx, mode)
	defer session.Close(ctx)
	return run(ctx, session, stmt)
}

// Batch runs every statement fn submits in one write session, in order.
func (s *Neo4jStore) Batch(ctx context.Context, fn func(run RunFunc) error) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	return fn(func(stmt graph.Statement) error {
		_, err := run(ctx, session, stmt)
		return err
	})
}

func run(ctx context.Context, session neo4j.SessionWithContext, stmt graph.Statement) ([]Row, error) {
	result, err := session.Run(ctx, stmt.Text, stmt.Params)
	if err != nil {
		return nil, fmt.Errorf("neo4j: run: %w", err)
	}
	var rows []Row
	for result.Next(ctx) {
		rec := result.Record()
		row := make(Row, len(rec.Keys))
		for i, key := range rec.Keys {
			row[key] = rec.Values[i]
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("neo4j: read results: %w", err)
	}
	return rows, nil
}

// InitSchema creates the id index of every registered label. Indexes that
// already exist are not an error.
func (s *Neo4jStore) InitSchema(ctx context.Context, reg *graph.Registry) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	for _, stmt := range reg.RenderSchema(s.dialect) {
		if _, err := run(ctx, session, stmt); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "already exists") {
				continue
			}
			return fmt.Errorf("neo4j: init schema %s: %w", stmt.Label, err)
		}
	}
	return nil
}

// Ping verifies connectivity, bounded by the configured connect timeout.
func (s *Neo4jStore) Ping(ctx context.Context) error {
	timeout := s.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotConnected, s.cfg.URI, err)
	}
	return nil
}

func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}
