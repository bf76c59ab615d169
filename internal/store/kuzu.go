//go:build cgo

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	kuzu "github.com/kuzudb/go-kuzu"

	"github.com/dusk-indust/codegraph/internal/graph"
)

// MemoryPath opens an in-memory Kuzu database.
const MemoryPath = ":memory:"

// KuzuStore executes statements against an embedded KuzuDB. It requires
// CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	mu   sync.Mutex
	db   *kuzu.Database
	conn *kuzu.Connection
}

var _ Executor = (*KuzuStore)(nil)

// OpenKuzu opens the database at path, or an in-memory database for
// MemoryPath. KuzuDB creates the leaf directory of a new database itself.
func OpenKuzu(_ context.Context, path string) (*KuzuStore, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
		}
	}
	db, err := kuzu.OpenDatabase(path, kuzu.DefaultSystemConfig())
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

func (s *KuzuStore) Dialect() graph.Dialect { return graph.DialectKuzu }

// Close releases the connection and database.
func (s *KuzuStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	return nil
}

// InitSchema creates a node table per registered kind followed by one
// multi-pair relationship table per relationship kind.
func (s *KuzuStore) InitSchema(ctx context.Context, reg *graph.Registry) error {
	for _, stmt := range reg.RenderSchema(graph.DialectKuzu) {
		if _, err := s.Execute(ctx, stmt); err != nil {
			return fmt.Errorf("kuzu: init schema %s: %w", stmt.Label, err)
		}
	}
	return nil
}

// Ping runs a trivial query.
func (s *KuzuStore) Ping(ctx context.Context) error {
	_, err := s.Execute(ctx, graph.Statement{Op: graph.OpQuery, Text: "RETURN 1 AS ok"})
	return err
}

// Execute runs stmt and collects its rows keyed by column name.
func (s *KuzuStore) Execute(ctx context.Context, stmt graph.Statement) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, ErrNotConnected
	}

	var res *kuzu.QueryResult
	var err error
	if len(stmt.Params) == 0 {
		res, err = s.conn.Query(stmt.Text)
	} else {
		var prepared *kuzu.PreparedStatement
		prepared, err = s.conn.Prepare(stmt.Text)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer prepared.Close()
		res, err = s.conn.Execute(prepared, stmt.Params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	cols := res.GetColumnNames()
	var rows []Row
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		tuple.Close()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if i < len(vals) {
				row[c] = vals[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
