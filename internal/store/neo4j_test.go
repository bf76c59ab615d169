package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codegraph/internal/graph"
)

func TestNewNeo4jStore_RequiresURI(t *testing.T) {
	_, err := NewNeo4jStore(Config{Backend: BackendNeo4j})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestNeo4jStore_Dialect(t *testing.T) {
	s, err := NewNeo4jStore(Config{Backend: BackendMemgraph, URI: "bolt://127.0.0.1:1"})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, graph.DialectMemgraph, s.Dialect())
}

func TestNeo4jStore_PingUnreachable(t *testing.T) {
	s, err := NewNeo4jStore(Config{
		Backend:        BackendNeo4j,
		URI:            "bolt://127.0.0.1:1",
		ConnectTimeout: 500 * time.Millisecond,
	})
	require.NoError(t, err)
	defer s.Close()

	err = s.Ping(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

// TestNeo4jStore_Live runs against a real server when CKG_TEST_NEO4J_URI is
// set, e.g. bolt://localhost:7687.
func TestNeo4jStore_Live(t *testing.T) {
	uri := os.Getenv("CKG_TEST_NEO4J_URI")
	if uri == "" {
		t.Skip("CKG_TEST_NEO4J_URI not set")
	}
	cfg := Config{
		Backend:  BackendNeo4j,
		URI:      uri,
		Username: os.Getenv("CKG_TEST_NEO4J_USER"),
		Password: os.Getenv("CKG_TEST_NEO4J_PASSWORD"),
	}
	ctx := context.Background()
	s, err := NewNeo4jStore(cfg)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.InitSchema(ctx, graph.DefaultRegistry()))

	f := newGraphFixture(t, s)
	path := "ckg-live-test-" + time.Now().Format("150405.000000") + ".py"
	f.file(path)
	t.Cleanup(func() {
		_, _ = s.Execute(ctx, graph.Statement{
			Op:     graph.OpCreateNode,
			Text:   "MATCH (n {file_path: $path}) DETACH DELETE n",
			Params: map[string]any{"path": path},
		})
	})

	rows, err := s.Execute(ctx, graph.NewQuery("", "MATCH (n:File {path: $path}) RETURN n.name AS name", map[string]any{"path": path}))
	require.NoError(t, err)
	assert.Equal(t, []string{path}, names(rows))
}
