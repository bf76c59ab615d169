package query

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dusk-indust/codegraph/internal/graph"
)

// namedQuery renders one convenience query for a dialect. Defaults fill
// parameters the caller did not supply. Inline parameters are written into
// the text and only sent to the memory store, which answers by name.
type namedQuery struct {
	render   func(d graph.Dialect, p map[string]any) string
	defaults map[string]any
	inline   []string
}

const (
	defaultComplexity  = 10
	defaultSearchLimit = 50
)

var (
	classKinds    = graph.KindNames(graph.ClassLikeKinds)
	callableKinds = graph.KindNames(graph.CallableKinds)
)

// hierarchyRels are the supertype relationships, in every dialect's
// alternation syntax.
const hierarchyRels = "INHERITS_FROM|EXTENDS|IMPLEMENTS|MIXES_IN"

var namedQueries = map[string]namedQuery{
	graph.QueryFunctionsInFile: {render: func(d graph.Dialect, _ map[string]any) string {
		return `MATCH (n:Function) WHERE n.file_path = $path
RETURN ` + symbolColumns(d, "n") + `, n.end_line AS end_line, n.signature AS signature, n.complexity AS complexity
ORDER BY start_line`
	}},

	graph.QueryClassesInFile: {
		render: func(d graph.Dialect, _ map[string]any) string {
			return `MATCH (n) WHERE n.file_path = $path AND ` + d.LabelOf("n") + ` IN $kinds
RETURN ` + symbolColumns(d, "n") + `, n.end_line AS end_line
ORDER BY start_line`
		},
		defaults: map[string]any{graph.ParamKinds: classKinds},
	},

	graph.QueryMethodsInClass: {render: func(d graph.Dialect, _ map[string]any) string {
		return `MATCH (c)-[:DEFINES_METHOD]->(n) WHERE c.name = $name
RETURN ` + symbolColumns(d, "n") + `, c.name AS class
ORDER BY file_path, start_line`
	}},

	graph.QueryImportsInFile: {render: func(graph.Dialect, map[string]any) string {
		return `MATCH (f:File)-[:IMPORTS]->(i:Import) WHERE f.path = $path
RETURN i.source AS source, i.names AS names, i.alias AS alias, i.start_line AS line
ORDER BY line`
	}},

	graph.QueryCallersOf: {render: func(d graph.Dialect, _ map[string]any) string {
		return `MATCH (n)-[:CALLS]->(callee) WHERE callee.name = $name
RETURN DISTINCT ` + symbolColumns(d, "n") + `
ORDER BY file_path, start_line`
	}},

	graph.QueryCalleesOf: {render: func(d graph.Dialect, _ map[string]any) string {
		return `MATCH (caller)-[:CALLS]->(n) WHERE caller.name = $name
RETURN DISTINCT ` + symbolColumns(d, "n") + `
ORDER BY file_path, start_line`
	}},

	graph.QueryClassHierarchyOf: {render: func(d graph.Dialect, _ map[string]any) string {
		return `MATCH (c)-[r:` + hierarchyRels + `]->(p) WHERE c.name = $name OR p.name = $name
RETURN DISTINCT c.name AS child, ` + d.TypeOf("r") + ` AS relation, p.name AS parent
ORDER BY child, relation, parent`
	}},

	graph.QueryFileDependenciesOf: {render: func(graph.Dialect, map[string]any) string {
		return `MATCH (a:File)-[:IMPORTS]->(b:File) WHERE a.path = $path
RETURN DISTINCT b.path AS path
ORDER BY path`
	}},

	// A function nobody calls, and that is not a conventional entry point.
	graph.QueryUnusedPublicFunctions: {
		render: func(d graph.Dialect, _ map[string]any) string {
			return `MATCH (n:Function) WHERE n.exported = true AND NOT n.name IN $entrypoints
OPTIONAL MATCH (caller)-[:CALLS]->(n)
WITH n, count(caller) AS callers
WHERE callers = 0
RETURN ` + symbolColumns(d, "n") + `
ORDER BY file_path, start_line`
		},
		defaults: map[string]any{graph.ParamEntryPoints: graph.EntryPoints},
	},

	// A type that is neither imported, called, nor extended.
	graph.QueryUnusedPublicClasses: {
		render: func(d graph.Dialect, _ map[string]any) string {
			return `MATCH (n) WHERE ` + d.LabelOf("n") + ` IN $kinds AND n.exported = true
OPTIONAL MATCH (ref)-[:IMPORTS|CALLS|` + hierarchyRels + `]->(n)
WITH n, count(ref) AS refs
WHERE refs = 0
RETURN ` + symbolColumns(d, "n") + `
ORDER BY file_path, start_line`
		},
		defaults: map[string]any{graph.ParamKinds: classKinds},
	},

	graph.QueryComplexFunctions: {
		render: func(d graph.Dialect, _ map[string]any) string {
			return `MATCH (n) WHERE ` + d.LabelOf("n") + ` IN $callables AND n.complexity > $threshold
RETURN ` + symbolColumns(d, "n") + `, n.complexity AS complexity
ORDER BY complexity DESC, file_path, start_line`
		},
		defaults: map[string]any{graph.ParamCallables: callableKinds, graph.ParamThreshold: defaultComplexity},
	},

	// Two files importing each other; longer cycles are the analyzer's job.
	graph.QueryCircularDependencies: {render: func(graph.Dialect, map[string]any) string {
		return `MATCH (a:File)-[:IMPORTS]->(b:File)-[:IMPORTS]->(a) WHERE a.path < b.path
RETURN DISTINCT a.path AS a, b.path AS b
ORDER BY a, b`
	}},

	graph.QuerySearchByName: {
		render: func(d graph.Dialect, p map[string]any) string {
			return `MATCH (n) WHERE ` + d.LowerFunc() + `(n.name) CONTAINS $pattern
RETURN ` + symbolColumns(d, "n") + `
ORDER BY name, file_path
LIMIT ` + strconv.Itoa(intParam(p, graph.ParamLimit, defaultSearchLimit))
		},
		defaults: map[string]any{graph.ParamLimit: defaultSearchLimit},
		inline:   []string{graph.ParamLimit},
	},

	graph.QueryFileDependencyEdges: {render: func(graph.Dialect, map[string]any) string {
		return `MATCH (a:File)-[:IMPORTS]->(b:File)
RETURN DISTINCT a.path AS source, b.path AS target
ORDER BY source, target`
	}},

	graph.QueryProjectFiles: {render: func(graph.Dialect, map[string]any) string {
		return `MATCH (f:File)
RETURN f.path AS path, f.language AS language
ORDER BY path`
	}},

	// One round trip; the leading aggregate always yields a row, so an
	// empty graph reports zeros.
	graph.QueryProjectStats: {
		render: func(d graph.Dialect, _ map[string]any) string {
			return `MATCH (n) WITH count(n) AS nodes
OPTIONAL MATCH ()-[r]->() WITH nodes, count(r) AS relationships
OPTIONAL MATCH (f:File) WITH nodes, relationships, count(f) AS files
OPTIONAL MATCH (fn) WHERE ` + d.LabelOf("fn") + ` IN $callables
WITH nodes, relationships, files, count(fn) AS functions
OPTIONAL MATCH (c) WHERE ` + d.LabelOf("c") + ` IN $kinds
RETURN nodes, relationships, files, functions, count(c) AS classes`
		},
		defaults: map[string]any{graph.ParamKinds: classKinds, graph.ParamCallables: callableKinds},
	},
}

// Names lists the named queries in sorted order.
func Names() []string {
	out := make([]string, 0, len(namedQueries))
	for name := range namedQueries {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Render returns the statement for a named query in dialect d, with
// defaults applied. The memory dialect receives the same text; the
// in-process store answers by name. Cypher dialects never receive a
// parameter the text does not reference.
func Render(d graph.Dialect, name string, params map[string]any) (graph.Statement, error) {
	q, ok := namedQueries[name]
	if !ok {
		return graph.Statement{}, fmt.Errorf("%w: %q", ErrUnknownQuery, name)
	}
	p := make(map[string]any, len(q.defaults)+len(params))
	for k, v := range q.defaults {
		p[k] = v
	}
	for k, v := range params {
		p[k] = v
	}
	if name == graph.QuerySearchByName {
		pattern, _ := p[graph.ParamPattern].(string)
		p[graph.ParamPattern] = strings.ToLower(strings.TrimSpace(pattern))
	}
	text := q.render(d, p)
	if d != graph.DialectMemory {
		for _, k := range q.inline {
			delete(p, k)
		}
	}
	return graph.NewQuery(name, text, p), nil
}

func symbolColumns(d graph.Dialect, v string) string {
	return fmt.Sprintf("%[1]s.id AS id, %[1]s.name AS name, %[2]s AS kind, %[1]s.file_path AS file_path, %[1]s.start_line AS start_line",
		v, d.LabelOf(v))
}

func intParam(p map[string]any, key string, def int) int {
	switch v := p[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case int64:
		if v > 0 {
			return int(v)
		}
	}
	return def
}
