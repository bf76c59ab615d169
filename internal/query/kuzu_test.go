//go:build cgo

package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codegraph/internal/graph"
	"github.com/dusk-indust/codegraph/internal/store"
)

// queryParams are the caller parameters of each named query. Kuzu rejects
// parameters a query does not reference, so each query gets only its own.
var queryParams = map[string]map[string]any{
	graph.QueryFunctionsInFile:       {graph.ParamPath: "a.py"},
	graph.QueryClassesInFile:         {graph.ParamPath: "a.py"},
	graph.QueryMethodsInClass:        {graph.ParamName: "Shape"},
	graph.QueryImportsInFile:         {graph.ParamPath: "b.py"},
	graph.QueryCallersOf:             {graph.ParamName: "Helper_Util"},
	graph.QueryCalleesOf:             {graph.ParamName: "run"},
	graph.QueryClassHierarchyOf:      {graph.ParamName: "Shape"},
	graph.QueryFileDependenciesOf:    {graph.ParamPath: "a.py"},
	graph.QueryUnusedPublicFunctions: nil,
	graph.QueryUnusedPublicClasses:   nil,
	graph.QueryComplexFunctions:      {graph.ParamThreshold: 10},
	graph.QueryCircularDependencies:  nil,
	graph.QuerySearchByName:          {graph.ParamPattern: "helper", graph.ParamLimit: 5},
	graph.QueryFileDependencyEdges:   nil,
	graph.QueryProjectStats:          nil,
	graph.QueryProjectFiles:          nil,
}

func openKuzu(t *testing.T) *store.KuzuStore {
	t.Helper()
	s, err := store.OpenKuzu(context.Background(), store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKuzu_EveryNamedQueryRuns(t *testing.T) {
	ctx := context.Background()
	s := openKuzu(t)
	seed(t, s)
	c := New(ctx, Static(s))

	require.Len(t, queryParams, len(Names()))
	for _, name := range Names() {
		params, ok := queryParams[name]
		require.True(t, ok, "no parameters listed for %s", name)
		o := c.Named(ctx, name, params)
		assert.True(t, o.Success, "%s: %s", name, o.Error)
		assert.Equal(t, len(o.Results), o.TotalCount, name)
	}

	assert.Equal(t, []string{"run"}, column(c.CallersOf(ctx, "Helper_Util"), "name"))
	assert.Equal(t, []string{"Helper_Util"}, column(c.SearchByName(ctx, "HELPER", 0), "name"))
	assert.Equal(t, []string{"run"}, column(c.ComplexFunctions(ctx, 10), "name"))
	assert.Equal(t, []string{"a.py", "b.py"}, column(c.ProjectFiles(ctx), "path"))
}

func TestKuzu_SearchLimit(t *testing.T) {
	ctx := context.Background()
	s := openKuzu(t)
	seed(t, s)
	o := New(ctx, Static(s)).SearchByName(ctx, "a", 1)
	require.True(t, o.Success, o.Error)
	assert.Len(t, o.Results, 1)
}

func TestKuzu_ProjectStatsEmptyGraph(t *testing.T) {
	ctx := context.Background()
	s := openKuzu(t)
	require.NoError(t, s.InitSchema(ctx, graph.DefaultRegistry()))

	o := New(ctx, Static(s)).ProjectStats(ctx)
	require.True(t, o.Success, o.Error)
	require.Len(t, o.Results, 1)
	for _, key := range []string{"nodes", "relationships", "files", "functions", "classes"} {
		assert.Equal(t, 0, store.GetInt(o.Results[0], key), key)
	}
}
