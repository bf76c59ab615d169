package analysis

import (
	"slices"
	"strings"
)

// DependencyGraph is a directed graph of file labels. Successor sets are
// deduplicated; self edges are ignored.
type DependencyGraph struct {
	succ  map[string]map[string]bool
	edges int
}

// NewDependencyGraph returns an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{succ: make(map[string]map[string]bool)}
}

// AddNode records a label with no edges.
func (g *DependencyGraph) AddNode(label string) {
	if label == "" {
		return
	}
	if g.succ[label] == nil {
		g.succ[label] = make(map[string]bool)
	}
}

// AddEdge records from -> to.
func (g *DependencyGraph) AddEdge(from, to string) {
	if from == "" || to == "" || from == to {
		return
	}
	g.AddNode(from)
	g.AddNode(to)
	if !g.succ[from][to] {
		g.succ[from][to] = true
		g.edges++
	}
}

// Nodes returns every label in sorted order.
func (g *DependencyGraph) Nodes() []string {
	out := make([]string, 0, len(g.succ))
	for n := range g.succ {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Successors returns the labels label depends on, sorted.
func (g *DependencyGraph) Successors(label string) []string {
	out := make([]string, 0, len(g.succ[label]))
	for n := range g.succ[label] {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

func (g *DependencyGraph) EdgeCount() int { return g.edges }

// FanOut is the number of distinct labels label depends on.
func (g *DependencyGraph) FanOut(label string) int { return len(g.succ[label]) }

// FanIn counts the labels depending on label.
func (g *DependencyGraph) FanIn(label string) int {
	n := 0
	for _, s := range g.succ {
		if s[label] {
			n++
		}
	}
	return n
}

// Edges returns the adjacency as sorted lists, for encoders.
func (g *DependencyGraph) Edges() map[string][]string {
	out := make(map[string][]string, len(g.succ))
	for n, s := range g.succ {
		if len(s) > 0 {
			out[n] = g.Successors(n)
		}
	}
	return out
}

// Cycles runs a depth-first traversal from every unvisited root, keeping
// a recursion stack and the current path. Reaching a label already on
// the stack emits the path from that label's position through the current
// label. Roots and successors are visited in sorted order so the result
// is deterministic.
func (g *DependencyGraph) Cycles() [][]string {
	var (
		cycles  [][]string
		visited = make(map[string]bool, len(g.succ))
		onStack = make(map[string]int, len(g.succ))
		path    []string
	)

	var visit func(n string)
	visit = func(n string) {
		visited[n] = true
		onStack[n] = len(path)
		path = append(path, n)
		for _, next := range g.Successors(n) {
			if at, ok := onStack[next]; ok {
				cycles = append(cycles, slices.Clone(path[at:]))
				continue
			}
			if !visited[next] {
				visit(next)
			}
		}
		path = path[:len(path)-1]
		delete(onStack, n)
	}

	for _, n := range g.Nodes() {
		if !visited[n] {
			visit(n)
		}
	}
	return cycles
}

// DedupeCycles drops cycles that are rotations of an earlier one. Direction
// is preserved, so a->b->c and a->c->b stay distinct.
func DedupeCycles(cycles [][]string) [][]string {
	seen := make(map[string]bool, len(cycles))
	out := make([][]string, 0, len(cycles))
	for _, c := range cycles {
		canon := canonicalRotation(c)
		key := strings.Join(canon, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, canon)
	}
	return out
}

// canonicalRotation rotates c so its smallest label leads.
func canonicalRotation(c []string) []string {
	if len(c) == 0 {
		return nil
	}
	start := 0
	for i, n := range c {
		if n < c[start] {
			start = i
		}
	}
	out := make([]string, 0, len(c))
	out = append(out, c[start:]...)
	return append(out, c[:start]...)
}

// Cluster is a weakly connected group of at least two files.
type Cluster struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
	// Density is internal edges over the n*(n-1) possible directed edges.
	Density float64 `json:"density"`
}

// Clusters finds weakly connected components by breadth-first search and
// returns those with two or more members, named by their common directory.
func (g *DependencyGraph) Clusters() []Cluster {
	adj := make(map[string]map[string]bool, len(g.succ))
	for n := range g.succ {
		adj[n] = make(map[string]bool)
	}
	for n, s := range g.succ {
		for m := range s {
			adj[n][m] = true
			adj[m][n] = true
		}
	}

	visited := make(map[string]bool, len(adj))
	var clusters []Cluster
	for _, n := range g.Nodes() {
		if visited[n] {
			continue
		}
		component := bfsComponent(n, adj, visited)
		if len(component) < 2 {
			continue
		}
		slices.Sort(component)
		clusters = append(clusters, Cluster{
			Name:    commonDir(component),
			Members: component,
			Density: g.density(component),
		})
	}
	return clusters
}

func bfsComponent(start string, adj map[string]map[string]bool, visited map[string]bool) []string {
	var component []string
	queue := []string{start}
	visited[start] = true

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		component = append(component, node)
		for neighbor := range adj[node] {
			if !visited[neighbor] {
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}
	return component
}

func (g *DependencyGraph) density(members []string) float64 {
	internal := 0
	for _, m := range members {
		internal += len(g.succ[m])
	}
	n := len(members)
	return float64(internal) / float64(n*(n-1))
}

// commonDir returns the longest directory prefix shared by paths, with a
// trailing slash, or "" when they share none.
func commonDir(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	prefix := paths[0]
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		prefix = prefix[:i+1]
	} else {
		return ""
	}
	for _, p := range paths[1:] {
		for !strings.HasPrefix(p, prefix) {
			trimmed := strings.TrimSuffix(prefix, "/")
			i := strings.LastIndex(trimmed, "/")
			if i < 0 {
				return ""
			}
			prefix = trimmed[:i+1]
		}
	}
	return prefix
}
