package export

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/dusk-indust/codegraph/internal/analysis"
)

// Mermaid renders the file dependency graph of res as a Mermaid graph LR
// diagram. Clusters become subgraphs and import edges that belong to a
// cycle are drawn thick and red.
func Mermaid(res *analysis.Result) string {
	return MermaidGraph(res.Dependencies, res.Cycles, res.Clusters)
}

// MermaidGraph renders deps (file to imported files) with the given cycles
// and clusters.
func MermaidGraph(deps map[string][]string, cycles [][]string, clusters []analysis.Cluster) string {
	// Node ids are assigned in sorted path order so output is stable.
	set := make(map[string]bool)
	for src, dsts := range deps {
		set[src] = true
		for _, d := range dsts {
			set[d] = true
		}
	}
	for _, c := range clusters {
		for _, m := range c.Members {
			set[m] = true
		}
	}
	nodes := make([]string, 0, len(set))
	for n := range set {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	ids := make(map[string]string, len(nodes))
	for i, n := range nodes {
		ids[n] = fmt.Sprintf("N%d", i)
	}

	inCycle := make(map[[2]string]bool)
	cycleNodes := make(map[string]bool)
	for _, c := range cycles {
		for i, n := range c {
			inCycle[[2]string{n, c[(i+1)%len(c)]}] = true
			cycleNodes[n] = true
		}
	}

	var sb strings.Builder
	sb.WriteString("graph LR\n")

	clustered := make(map[string]bool)
	for i, c := range clusters {
		if len(c.Members) == 0 {
			continue
		}
		name := c.Name
		if name == "" {
			name = "."
		}
		fmt.Fprintf(&sb, "  subgraph C%d[\"%s\"]\n", i, escape(name))
		for _, m := range c.Members {
			clustered[m] = true
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", ids[m], escape(shortPath(m)))
		}
		sb.WriteString("  end\n")
	}
	for _, n := range nodes {
		if !clustered[n] {
			fmt.Fprintf(&sb, "  %s[\"%s\"]\n", ids[n], escape(shortPath(n)))
		}
	}

	sources := make([]string, 0, len(deps))
	for src := range deps {
		sources = append(sources, src)
	}
	slices.Sort(sources)

	var highlighted []int
	edge := 0
	for _, src := range sources {
		dsts := slices.Clone(deps[src])
		slices.Sort(dsts)
		for _, dst := range dsts {
			arrow := "-->"
			if inCycle[[2]string{src, dst}] {
				arrow = "==>"
				highlighted = append(highlighted, edge)
			}
			fmt.Fprintf(&sb, "  %s %s %s\n", ids[src], arrow, ids[dst])
			edge++
		}
	}

	if len(highlighted) > 0 {
		idx := make([]string, len(highlighted))
		for i, h := range highlighted {
			idx[i] = fmt.Sprint(h)
		}
		fmt.Fprintf(&sb, "  linkStyle %s stroke:#d62728,stroke-width:3px\n", strings.Join(idx, ","))

		members := make([]string, 0, len(cycleNodes))
		for _, n := range nodes {
			if cycleNodes[n] {
				members = append(members, ids[n])
			}
		}
		sb.WriteString("  classDef cycle fill:#fde0e0,stroke:#d62728\n")
		fmt.Fprintf(&sb, "  class %s cycle\n", strings.Join(members, ","))
	}
	return sb.String()
}

// shortPath returns the last two path segments.
func shortPath(p string) string {
	dir, file := path.Split(p)
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" {
		return p
	}
	return path.Base(dir) + "/" + file
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
