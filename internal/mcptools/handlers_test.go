package mcptools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codegraph/internal/analysis"
	"github.com/dusk-indust/codegraph/internal/config"
	"github.com/dusk-indust/codegraph/internal/engine"
	"github.com/dusk-indust/codegraph/internal/graph"
	"github.com/dusk-indust/codegraph/internal/store"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// fixtureAbsPath returns the absolute path of the go_project fixture.
func fixtureAbsPath(t *testing.T) string {
	t.Helper()
	abs, err := filepath.Abs("../../testdata/fixtures/go_project")
	require.NoError(t, err)
	return abs
}

// newTestEngine returns an engine backed by the in-memory store.
func newTestEngine(t *testing.T, backend store.Backend) *engine.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Backend = backend
	cfg.Workers = 2
	e, err := engine.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func newTestService(t *testing.T) *CodeGraphService {
	t.Helper()
	return NewCodeGraphService(newTestEngine(t, store.BackendMemory), "", nil)
}

// builtService returns a service whose graph holds the go_project fixture.
func builtService(t *testing.T) *CodeGraphService {
	t.Helper()
	svc := newTestService(t)
	_, out, err := svc.BuildGraph(context.Background(), nil, BuildGraphInput{Path: fixtureAbsPath(t)})
	require.NoError(t, err)
	require.NotNil(t, out.Build)
	require.True(t, out.Build.Success, out.Build.Error)
	return svc
}

// ---------------------------------------------------------------------------
// TestParseProject
// ---------------------------------------------------------------------------

func TestParseProject(t *testing.T) {
	t.Run("summarizes go_project fixture", func(t *testing.T) {
		svc := newTestService(t)
		_, out, err := svc.ParseProject(context.Background(), nil, ParseProjectInput{Path: fixtureAbsPath(t)})
		require.NoError(t, err)

		assert.True(t, out.Success, out.Error)
		assert.Equal(t, "go", out.Language)
		assert.Equal(t, 2, out.TotalFiles)
		assert.Equal(t, 2, out.SuccessfulFiles)
		assert.Empty(t, out.Failures)
		assert.Equal(t, 2, out.PerLanguage["go"].Files)
	})

	t.Run("unsupported language is reported, not raised", func(t *testing.T) {
		svc := newTestService(t)
		_, out, err := svc.ParseProject(context.Background(), nil, ParseProjectInput{
			Path:     fixtureAbsPath(t),
			Language: "cobol",
		})
		require.NoError(t, err)
		assert.False(t, out.Success)
		assert.Contains(t, out.Error, "unsupported language")
		assert.Zero(t, out.TotalFiles)
	})

	t.Run("falls back to project root", func(t *testing.T) {
		svc := NewCodeGraphService(newTestEngine(t, store.BackendNone), fixtureAbsPath(t), nil)
		_, out, err := svc.ParseProject(context.Background(), nil, ParseProjectInput{})
		require.NoError(t, err)
		assert.True(t, out.Success)
	})

	t.Run("missing path returns error", func(t *testing.T) {
		svc := newTestService(t)
		_, _, err := svc.ParseProject(context.Background(), nil, ParseProjectInput{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "path is required")
	})

	t.Run("non-existent path returns error", func(t *testing.T) {
		svc := newTestService(t)
		_, _, err := svc.ParseProject(context.Background(), nil, ParseProjectInput{
			Path: filepath.Join(t.TempDir(), "missing"),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot access path")
	})

	t.Run("file path returns error", func(t *testing.T) {
		svc := newTestService(t)
		_, _, err := svc.ParseProject(context.Background(), nil, ParseProjectInput{
			Path: filepath.Join(fixtureAbsPath(t), "model.go"),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a directory")
	})
}

// ---------------------------------------------------------------------------
// TestBuildGraph
// ---------------------------------------------------------------------------

func TestBuildGraph(t *testing.T) {
	t.Run("writes go_project fixture to the store", func(t *testing.T) {
		svc := newTestService(t)
		_, out, err := svc.BuildGraph(context.Background(), nil, BuildGraphInput{Path: fixtureAbsPath(t)})
		require.NoError(t, err)

		require.NotNil(t, out.Build)
		assert.True(t, out.Parse.Success)
		assert.False(t, out.Build.DryRun)
		assert.Greater(t, out.Build.TotalNodes, 0)
		assert.Greater(t, out.Build.TotalRelationships, 0)
		assert.Equal(t, 2, out.Build.FilesProcessed)
	})

	t.Run("no store runs dry", func(t *testing.T) {
		svc := NewCodeGraphService(newTestEngine(t, store.BackendNone), "", nil)
		_, out, err := svc.BuildGraph(context.Background(), nil, BuildGraphInput{Path: fixtureAbsPath(t)})
		require.NoError(t, err)
		require.NotNil(t, out.Build)
		assert.True(t, out.Build.DryRun)
		assert.Greater(t, out.Build.StatementsGenerated, 0)
	})

	t.Run("parse failure returns error with the summary", func(t *testing.T) {
		svc := newTestService(t)
		_, out, err := svc.BuildGraph(context.Background(), nil, BuildGraphInput{
			Path:     fixtureAbsPath(t),
			Language: "cobol",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse failed")
		assert.False(t, out.Parse.Success)
		assert.Nil(t, out.Build)
	})
}

// ---------------------------------------------------------------------------
// TestQueryGraph
// ---------------------------------------------------------------------------

func TestQueryGraph(t *testing.T) {
	svc := builtService(t)
	ctx := context.Background()

	t.Run("named query", func(t *testing.T) {
		_, out, err := svc.QueryGraph(ctx, nil, QueryGraphInput{
			Name:   graph.QueryFunctionsInFile,
			Params: map[string]any{graph.ParamPath: "model.go"},
		})
		require.NoError(t, err)
		require.True(t, out.Success, out.Error)
		require.Len(t, out.Results, 1)
		assert.Equal(t, "newUser", store.GetString(out.Results[0], "name"))
		assert.Equal(t, out.TotalCount, len(out.Results))
	})

	t.Run("unknown named query fails in the outcome", func(t *testing.T) {
		_, out, err := svc.QueryGraph(ctx, nil, QueryGraphInput{Name: "nope"})
		require.NoError(t, err)
		assert.False(t, out.Success)
		assert.Contains(t, out.Error, "unknown named query")
	})

	t.Run("ad-hoc text is forwarded", func(t *testing.T) {
		_, out, err := svc.QueryGraph(ctx, nil, QueryGraphInput{Query: "MATCH (n) RETURN count(n)"})
		require.NoError(t, err)
		// The memory store answers named queries only.
		assert.False(t, out.Success)
		assert.Equal(t, "MATCH (n) RETURN count(n)", out.Query)
	})

	t.Run("both or neither is an error", func(t *testing.T) {
		_, _, err := svc.QueryGraph(ctx, nil, QueryGraphInput{Query: "MATCH (n) RETURN n", Name: graph.QueryProjectStats})
		assert.Error(t, err)
		_, _, err = svc.QueryGraph(ctx, nil, QueryGraphInput{})
		assert.Error(t, err)
	})
}

// ---------------------------------------------------------------------------
// TestSearchSymbols
// ---------------------------------------------------------------------------

func TestSearchSymbols(t *testing.T) {
	svc := builtService(t)
	ctx := context.Background()

	t.Run("substring match ignores case", func(t *testing.T) {
		_, out, err := svc.SearchSymbols(ctx, nil, SearchSymbolsInput{Pattern: "userserv"})
		require.NoError(t, err)
		require.True(t, out.Success, out.Error)

		names := make([]string, len(out.Results))
		for i, r := range out.Results {
			names[i] = store.GetString(r, "name")
		}
		assert.Contains(t, names, "UserService")
		assert.Contains(t, names, "NewUserService")
	})

	t.Run("limit bounds results", func(t *testing.T) {
		_, out, err := svc.SearchSymbols(ctx, nil, SearchSymbolsInput{Pattern: "user", Limit: 1})
		require.NoError(t, err)
		assert.Len(t, out.Results, 1)
	})

	t.Run("empty pattern returns error", func(t *testing.T) {
		_, _, err := svc.SearchSymbols(ctx, nil, SearchSymbolsInput{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pattern is required")
	})

	t.Run("negative limit returns error", func(t *testing.T) {
		_, _, err := svc.SearchSymbols(ctx, nil, SearchSymbolsInput{Pattern: "x", Limit: -1})
		assert.Error(t, err)
	})
}

// ---------------------------------------------------------------------------
// TestAnalyzeArchitecture and TestStatus
// ---------------------------------------------------------------------------

func TestAnalyzeArchitecture(t *testing.T) {
	svc := builtService(t)
	_, out, err := svc.AnalyzeArchitecture(context.Background(), nil, AnalyzeInput{Path: fixtureAbsPath(t)})
	require.NoError(t, err)

	assert.True(t, out.Success, out.Error)
	assert.Equal(t, analysis.StateSucceeded, out.State)
	assert.Empty(t, out.Cycles)
	assert.NotEmpty(t, out.Limitations)
	assert.Equal(t, len(out.Issues), out.Summary.Total)
}

func TestStatus(t *testing.T) {
	t.Run("memory store is live", func(t *testing.T) {
		_, out, err := newTestService(t).Status(context.Background(), nil, StatusInput{})
		require.NoError(t, err)
		assert.True(t, out.Available)
		assert.Equal(t, engine.ModeLive, out.Builder.Mode)
		assert.NotEmpty(t, out.Parsers)
	})

	t.Run("no store is dry-run", func(t *testing.T) {
		svc := NewCodeGraphService(newTestEngine(t, store.BackendNone), "", nil)
		_, out, err := svc.Status(context.Background(), nil, StatusInput{})
		require.NoError(t, err)
		assert.False(t, out.Available)
		assert.Equal(t, engine.ModeDryRun, out.Builder.Mode)
		assert.NotEmpty(t, out.Store.Error)
	})
}
