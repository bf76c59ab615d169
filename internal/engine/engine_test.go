package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codegraph/internal/analysis"
	"github.com/dusk-indust/codegraph/internal/config"
	"github.com/dusk-indust/codegraph/internal/graph"
	"github.com/dusk-indust/codegraph/internal/parse"
	"github.com/dusk-indust/codegraph/internal/store"
	"github.com/dusk-indust/codegraph/internal/syntax"
)

var goProject = filepath.Join("..", "..", "testdata", "fixtures", "go_project")

func newEngine(t *testing.T, mutate func(*config.Config), opts ...Option) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = 2
	if mutate != nil {
		mutate(cfg)
	}
	e, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func memoryBackend(c *config.Config) { c.Store.Backend = store.BackendMemory }

func TestEngine_Pipeline(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, memoryBackend)
	require.True(t, e.IsAvailable())

	pr := e.ParseProject(ctx, goProject)
	require.True(t, pr.Success, pr.Error)
	assert.Equal(t, syntax.Go, pr.Language)
	assert.Equal(t, 2, pr.SuccessfulFiles)

	built := e.BuildGraph(ctx, pr)
	require.True(t, built.Report.Success, built.Report.Error)
	assert.False(t, built.Report.DryRun)
	assert.Positive(t, built.Report.TotalNodes)

	found := e.Search(ctx, "USER", 0)
	require.True(t, found.Success, found.Error)
	names := make([]string, 0, len(found.Results))
	for _, row := range found.Results {
		names = append(names, store.GetString(row, "name"))
	}
	assert.Contains(t, names, "UserService")
	assert.Contains(t, names, "newUser")

	callers := e.NamedQuery(ctx, graph.QueryCallersOf, map[string]any{graph.ParamName: "newUser"})
	require.True(t, callers.Success, callers.Error)
	require.Len(t, callers.Results, 1)
	assert.Equal(t, "CreateUser", store.GetString(callers.Results[0], "name"))

	res := e.AnalyzeArchitecture(ctx, goProject)
	require.True(t, res.Success, res.Error)
	assert.Empty(t, res.Cycles)
	assert.Empty(t, res.Warnings)
	var unused []string
	for _, is := range res.Issues {
		if is.Kind == analysis.KindUnusedPublicElement {
			unused = append(unused, is.Elements...)
		}
	}
	assert.Contains(t, unused, "service.go:NewUserService")
	assert.NotContains(t, unused, "model.go:newUser", "unexported functions are never reported")

	st := e.Status(ctx)
	assert.True(t, st.Available)
	assert.True(t, st.Store.Connected)
	assert.Equal(t, graph.DialectMemory, st.Store.Dialect)
	assert.Equal(t, ModeLive, st.Builder.Mode)
	assert.Equal(t, analysis.StateSucceeded, st.Analyzer.State)
	assert.NotEmpty(t, st.Parsers)
}

func TestEngine_RebuildIssuesFreshIDs(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, memoryBackend)
	pr := e.ParseProject(ctx, goProject)
	require.True(t, pr.Success, pr.Error)

	first := e.BuildGraph(ctx, pr)
	require.True(t, first.Report.Success, first.Report.Error)
	second := e.BuildGraph(ctx, pr)
	require.True(t, second.Report.Success, second.Report.Error)

	assert.Zero(t, second.Report.StatementsFailed)
	assert.Zero(t, second.Report.StatementsSkipped)
	assert.Equal(t, first.Report.TotalNodes, second.Report.TotalNodes)

	seen := make(map[string]bool, len(first.Nodes))
	for _, n := range first.Nodes {
		seen[n.ID] = true
	}
	require.NotEmpty(t, second.Nodes)
	for _, n := range second.Nodes {
		assert.False(t, seen[n.ID], "id %s reused across builds", n.ID)
	}
}

func TestEngine_NoStoreRunsDry(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	assert.False(t, e.IsAvailable())

	pr := e.ParseProjectLanguage(ctx, goProject, "go")
	require.True(t, pr.Success, pr.Error)

	built := e.BuildGraph(ctx, pr)
	require.True(t, built.Report.Success, built.Report.Error)
	assert.True(t, built.Report.DryRun)
	assert.NotEmpty(t, built.Statements)

	out := e.Query(ctx, "MATCH (n) RETURN n", nil)
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Error)
	assert.Empty(t, out.Results)

	// Analysis degrades to an empty, successful result.
	res := e.AnalyzeArchitecture(ctx, goProject)
	assert.True(t, res.Success)
	assert.Empty(t, res.Issues)
	assert.NotEmpty(t, res.Warnings)
	assert.NotEmpty(t, res.Limitations)

	st := e.Status(ctx)
	assert.False(t, st.Available)
	assert.Equal(t, store.BackendNone, st.Store.Backend)
	assert.Equal(t, ModeDryRun, st.Builder.Mode)
	assert.Contains(t, st.Store.Error, "no graph store configured")
}

func TestEngine_UnsupportedLanguage(t *testing.T) {
	e := newEngine(t, nil)
	pr := e.ParseProjectLanguage(context.Background(), goProject, "cobol")
	assert.False(t, pr.Success)
	assert.Contains(t, pr.Error, parse.ErrUnsupportedLanguage.Error())
	assert.Empty(t, pr.Files)
	assert.Zero(t, pr.TotalFiles)
}

func TestEngine_MissingProject(t *testing.T) {
	e := newEngine(t, nil)
	pr := e.ParseProject(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.False(t, pr.Success)
	assert.NotEmpty(t, pr.Error)
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
	}{
		{"unknown backend", func(c *config.Config) { c.Store.Backend = "oracle" }, store.ErrUnsupportedBackend},
		{"unknown language", func(c *config.Config) { c.Language = "cobol" }, parse.ErrUnsupportedLanguage},
		{"neo4j without uri", func(c *config.Config) { c.Store.Backend = store.BackendNeo4j }, store.ErrMissingCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			e, err := New(context.Background(), cfg)
			assert.Nil(t, e)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	e, err := New(context.Background(), nil)
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, store.BackendNone, e.Status(context.Background()).Store.Backend)
}

// closeCounter records Close calls on a memory store.
type closeCounter struct {
	*store.MemStore
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

func TestEngine_InjectedExecutorIsNotClosed(t *testing.T) {
	exec := &closeCounter{MemStore: store.NewMemStore()}
	e, err := New(context.Background(), nil, WithExecutor(exec))
	require.NoError(t, err)
	assert.True(t, e.IsAvailable())
	assert.Equal(t, store.BackendMemory, e.Status(context.Background()).Store.Backend)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Zero(t, exec.closed)
	assert.False(t, e.IsAvailable())
}

func TestEngine_CloseIsIdempotent(t *testing.T) {
	e := newEngine(t, memoryBackend)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.False(t, e.IsAvailable())

	_, err := e.connect(context.Background())
	assert.True(t, errors.Is(err, store.ErrNotConnected))
}
