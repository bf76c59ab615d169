package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graphOf(edges ...[2]string) *DependencyGraph {
	g := NewDependencyGraph()
	for _, e := range edges {
		g.AddEdge(e[0], e[1])
	}
	return g
}

func TestCycles(t *testing.T) {
	tests := []struct {
		name  string
		graph *DependencyGraph
		want  [][]string
	}{
		{"empty", NewDependencyGraph(), nil},
		{"chain", graphOf([2]string{"A", "B"}, [2]string{"B", "C"}), nil},
		{"triangle", graphOf([2]string{"A", "B"}, [2]string{"B", "C"}, [2]string{"C", "A"}),
			[][]string{{"A", "B", "C"}}},
		{"two disjoint cycles",
			graphOf([2]string{"A", "B"}, [2]string{"B", "A"}, [2]string{"X", "Y"}, [2]string{"Y", "Z"}, [2]string{"Z", "X"}),
			[][]string{{"A", "B"}, {"X", "Y", "Z"}}},
		{"self edge ignored", graphOf([2]string{"A", "A"}), nil},
		{"cycle below the root",
			graphOf([2]string{"root", "m"}, [2]string{"m", "n"}, [2]string{"n", "m"}),
			[][]string{{"m", "n"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.graph.Cycles()
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCycles_SharedNodes(t *testing.T) {
	// A->B->A and A->C->A share A; both are reported.
	g := graphOf([2]string{"A", "B"}, [2]string{"B", "A"}, [2]string{"A", "C"}, [2]string{"C", "A"})
	assert.Equal(t, [][]string{{"A", "B"}, {"A", "C"}}, g.Cycles())
}

func TestDedupeCycles(t *testing.T) {
	in := [][]string{
		{"b", "c", "a"},
		{"a", "b", "c"},
		{"c", "a", "b"},
		{"a", "c", "b"},
	}
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"a", "c", "b"}}, DedupeCycles(in),
		"rotations collapse while the reverse direction stays distinct")
	assert.Empty(t, DedupeCycles(nil))
}

func TestDependencyGraph_Counts(t *testing.T) {
	g := graphOf([2]string{"a", "b"}, [2]string{"a", "b"}, [2]string{"a", "c"}, [2]string{"c", "b"})
	g.AddNode("lonely")

	assert.Equal(t, 3, g.EdgeCount(), "duplicate edges collapse")
	assert.Equal(t, []string{"a", "b", "c", "lonely"}, g.Nodes())
	assert.Equal(t, []string{"b", "c"}, g.Successors("a"))
	assert.Equal(t, 2, g.FanOut("a"))
	assert.Equal(t, 2, g.FanIn("b"))
	assert.Zero(t, g.FanIn("lonely"))
	assert.Equal(t, map[string][]string{"a": {"b", "c"}, "c": {"b"}}, g.Edges())
}

func TestClusters(t *testing.T) {
	g := graphOf(
		[2]string{"src/api/a.go", "src/api/b.go"},
		[2]string{"src/api/b.go", "src/api/a.go"},
		[2]string{"src/db/x.go", "lib/y.go"},
	)
	g.AddNode("src/solo.go")

	clusters := g.Clusters()
	require.Len(t, clusters, 2)

	assert.Equal(t, "", clusters[0].Name, "lib/ and src/db/ share no directory")
	assert.Equal(t, []string{"lib/y.go", "src/db/x.go"}, clusters[0].Members)
	assert.InDelta(t, 0.5, clusters[0].Density, 1e-9)

	assert.Equal(t, "src/api/", clusters[1].Name)
	assert.Equal(t, []string{"src/api/a.go", "src/api/b.go"}, clusters[1].Members)
	assert.InDelta(t, 1.0, clusters[1].Density, 1e-9)
}

func TestCommonDir(t *testing.T) {
	tests := []struct {
		paths []string
		want  string
	}{
		{nil, ""},
		{[]string{"a.go"}, ""},
		{[]string{"pkg/a.go"}, "pkg/"},
		{[]string{"pkg/x/a.go", "pkg/x/b.go"}, "pkg/x/"},
		{[]string{"pkg/x/a.go", "pkg/y/b.go"}, "pkg/"},
		{[]string{"pkg/xa/a.go", "pkg/xb/b.go"}, "pkg/"},
		{[]string{"a/b.go", "c/d.go"}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, commonDir(tt.paths), "%v", tt.paths)
	}
}
