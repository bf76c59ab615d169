package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dusk-indust/codegraph/internal/graph"
)

// MemStore keeps the graph in Go maps. It applies create statements and
// answers every named query in Go; ad-hoc query text is rejected with
// ErrUnsupportedQuery. Safe for concurrent use.
type MemStore struct {
	mu    sync.RWMutex
	nodes map[string]*memNode
	order []string
	edges []memEdge
}

type memNode struct {
	label string
	props map[string]any
}

type memEdge struct {
	kind graph.RelKind
	src  string
	dst  string
}

var _ Executor = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{nodes: make(map[string]*memNode)}
}

func (m *MemStore) Dialect() graph.Dialect { return graph.DialectMemory }

func (m *MemStore) InitSchema(context.Context, *graph.Registry) error { return nil }

func (m *MemStore) Ping(context.Context) error { return nil }

func (m *MemStore) Close() error { return nil }

// NodeCount returns the number of stored nodes.
func (m *MemStore) NodeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// EdgeCount returns the number of stored relationships.
func (m *MemStore) EdgeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.edges)
}

// Execute applies a mutation or evaluates a named query.
func (m *MemStore) Execute(ctx context.Context, stmt graph.Statement) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch stmt.Op {
	case graph.OpSchema:
		return nil, nil
	case graph.OpCreateNode:
		return nil, m.createNode(stmt)
	case graph.OpCreateRel:
		return nil, m.createRel(stmt)
	case graph.OpQuery:
		return m.query(stmt)
	default:
		return nil, fmt.Errorf("%w: statement op %q", ErrUnsupportedQuery, stmt.Op)
	}
}

func (m *MemStore) createNode(stmt graph.Statement) error {
	id, _ := stmt.Params[graph.PropID].(string)
	if id == "" {
		return fmt.Errorf("memstore: %s node without id", stmt.Label)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.nodes[id]; dup {
		return fmt.Errorf("memstore: duplicate node id %q", id)
	}
	props := make(map[string]any, len(stmt.Params))
	for k, v := range stmt.Params {
		props[k] = v
	}
	m.nodes[id] = &memNode{label: stmt.Label, props: props}
	m.order = append(m.order, id)
	return nil
}

func (m *MemStore) createRel(stmt graph.Statement) error {
	src, _ := stmt.Params[graph.ParamSource].(string)
	dst, _ := stmt.Params[graph.ParamTarget].(string)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range []string{src, dst} {
		if _, ok := m.nodes[id]; !ok {
			return fmt.Errorf("%w: %s %q", ErrDanglingEndpoint, stmt.Label, id)
		}
	}
	m.edges = append(m.edges, memEdge{kind: graph.RelKind(stmt.Label), src: src, dst: dst})
	return nil
}

// --- Named queries ---

func (m *MemStore) query(stmt graph.Statement) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p := stmt.Params
	switch stmt.Name {
	case graph.QueryFunctionsInFile:
		rows := m.collect(func(n *memNode) bool {
			return n.label == string(graph.NodeKindFunction) && n.getStr(graph.PropFilePath) == str(p, graph.ParamPath)
		}, func(n *memNode) Row {
			r := n.symbolRow()
			r["end_line"] = n.getInt(graph.PropEndLine)
			r["signature"] = n.getStr(graph.PropSignature)
			r["complexity"] = n.getInt(graph.PropComplexity)
			return r
		})
		sortRows(rows, "start_line")
		return rows, nil

	case graph.QueryClassesInFile:
		kinds := set(strs(p, graph.ParamKinds))
		rows := m.collect(func(n *memNode) bool {
			return kinds[n.label] && n.getStr(graph.PropFilePath) == str(p, graph.ParamPath)
		}, func(n *memNode) Row {
			r := n.symbolRow()
			r["end_line"] = n.getInt(graph.PropEndLine)
			return r
		})
		sortRows(rows, "start_line")
		return rows, nil

	case graph.QueryMethodsInClass:
		var rows []Row
		for _, e := range m.edges {
			if e.kind != graph.RelDefinesMethod {
				continue
			}
			owner := m.nodes[e.src]
			if owner.getStr(graph.PropName) != str(p, graph.ParamName) {
				continue
			}
			r := m.nodes[e.dst].symbolRow()
			r["class"] = owner.getStr(graph.PropName)
			rows = append(rows, r)
		}
		sortRows(rows, "file_path", "start_line")
		return rows, nil

	case graph.QueryImportsInFile:
		var rows []Row
		for _, e := range m.edges {
			src, dst := m.nodes[e.src], m.nodes[e.dst]
			if e.kind != graph.RelImports || src.label != string(graph.NodeKindFile) ||
				dst.label != string(graph.NodeKindImport) || src.getStr(graph.PropPath) != str(p, graph.ParamPath) {
				continue
			}
			rows = append(rows, Row{
				"source": dst.getStr(graph.PropSource),
				"names":  dst.getList(graph.PropNames),
				"alias":  dst.getStr(graph.PropAlias),
				"line":   dst.getInt(graph.PropStartLine),
			})
		}
		sortRows(rows, "line")
		return rows, nil

	case graph.QueryCallersOf, graph.QueryCalleesOf:
		callers := stmt.Name == graph.QueryCallersOf
		seen := make(map[string]bool)
		var rows []Row
		for _, e := range m.edges {
			if e.kind != graph.RelCalls {
				continue
			}
			match, other := e.dst, e.src
			if !callers {
				match, other = e.src, e.dst
			}
			if m.nodes[match].getStr(graph.PropName) != str(p, graph.ParamName) || seen[other] {
				continue
			}
			seen[other] = true
			rows = append(rows, m.nodes[other].symbolRow())
		}
		sortRows(rows, "file_path", "start_line")
		return rows, nil

	case graph.QueryClassHierarchyOf:
		name := str(p, graph.ParamName)
		seen := make(map[string]bool)
		var rows []Row
		for _, e := range m.edges {
			if !isHierarchy(e.kind) {
				continue
			}
			child, parent := m.nodes[e.src].getStr(graph.PropName), m.nodes[e.dst].getStr(graph.PropName)
			if child != name && parent != name {
				continue
			}
			key := child + "|" + string(e.kind) + "|" + parent
			if seen[key] {
				continue
			}
			seen[key] = true
			rows = append(rows, Row{"child": child, "relation": string(e.kind), "parent": parent})
		}
		sortRows(rows, "child", "relation", "parent")
		return rows, nil

	case graph.QueryFileDependenciesOf:
		seen := make(map[string]bool)
		var rows []Row
		for _, pair := range m.fileImports() {
			src, dst := pair[0], pair[1]
			if src == str(p, graph.ParamPath) && !seen[dst] {
				seen[dst] = true
				rows = append(rows, Row{"path": dst})
			}
		}
		sortRows(rows, "path")
		return rows, nil

	case graph.QueryUnusedPublicFunctions:
		entry := set(strs(p, graph.ParamEntryPoints))
		called := m.targets(graph.RelCalls)
		rows := m.collect(func(n *memNode) bool {
			return n.label == string(graph.NodeKindFunction) && n.getBool(graph.PropExported) &&
				!entry[n.getStr(graph.PropName)] && !called[n.getStr(graph.PropID)]
		}, (*memNode).symbolRow)
		sortRows(rows, "file_path", "start_line")
		return rows, nil

	case graph.QueryUnusedPublicClasses:
		kinds := set(strs(p, graph.ParamKinds))
		referenced := m.targets(graph.RelImports, graph.RelCalls,
			graph.RelInheritsFrom, graph.RelExtends, graph.RelImplements, graph.RelMixesIn)
		rows := m.collect(func(n *memNode) bool {
			return kinds[n.label] && n.getBool(graph.PropExported) && !referenced[n.getStr(graph.PropID)]
		}, (*memNode).symbolRow)
		sortRows(rows, "file_path", "start_line")
		return rows, nil

	case graph.QueryComplexFunctions:
		threshold := num(p, graph.ParamThreshold)
		callables := set(graph.KindNames(graph.CallableKinds))
		rows := m.collect(func(n *memNode) bool {
			return callables[n.label] && n.getInt(graph.PropComplexity) > int64(threshold)
		}, func(n *memNode) Row {
			r := n.symbolRow()
			r["complexity"] = n.getInt(graph.PropComplexity)
			return r
		})
		sortRows(rows, "file_path", "start_line")
		sort.SliceStable(rows, func(i, j int) bool {
			return GetInt(rows[i], "complexity") > GetInt(rows[j], "complexity")
		})
		return rows, nil

	case graph.QueryCircularDependencies:
		pairs := make(map[[2]string]bool)
		for _, pair := range m.fileImports() {
			pairs[pair] = true
		}
		var rows []Row
		for pair := range pairs {
			if pair[0] < pair[1] && pairs[[2]string{pair[1], pair[0]}] {
				rows = append(rows, Row{"a": pair[0], "b": pair[1]})
			}
		}
		sortRows(rows, "a", "b")
		return rows, nil

	case graph.QuerySearchByName:
		pattern := strings.ToLower(str(p, graph.ParamPattern))
		rows := m.collect(func(n *memNode) bool {
			return strings.Contains(strings.ToLower(n.getStr(graph.PropName)), pattern)
		}, (*memNode).symbolRow)
		sortRows(rows, "name", "file_path")
		if limit := num(p, graph.ParamLimit); limit > 0 && len(rows) > limit {
			rows = rows[:limit]
		}
		return rows, nil

	case graph.QueryFileDependencyEdges:
		seen := make(map[[2]string]bool)
		var rows []Row
		for _, pair := range m.fileImports() {
			if !seen[pair] {
				seen[pair] = true
				rows = append(rows, Row{"source": pair[0], "target": pair[1]})
			}
		}
		sortRows(rows, "source", "target")
		return rows, nil

	case graph.QueryProjectFiles:
		rows := m.collect(func(n *memNode) bool {
			return n.label == string(graph.NodeKindFile)
		}, func(n *memNode) Row {
			return Row{"path": n.getStr(graph.PropPath), "language": n.getStr(graph.PropLanguage)}
		})
		sortRows(rows, "path")
		return rows, nil

	case graph.QueryProjectStats:
		kinds := set(strs(p, graph.ParamKinds))
		callables := set(strs(p, graph.ParamCallables))
		stats := Row{"nodes": int64(len(m.nodes)), "relationships": int64(len(m.edges))}
		var files, functions, classes int64
		for _, n := range m.nodes {
			switch {
			case n.label == string(graph.NodeKindFile):
				files++
			case callables[n.label]:
				functions++
			case kinds[n.label]:
				classes++
			}
		}
		stats["files"], stats["functions"], stats["classes"] = files, functions, classes
		return []Row{stats}, nil
	}

	if stmt.Name == "" {
		return nil, fmt.Errorf("%w: the memory store only answers named queries", ErrUnsupportedQuery)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedQuery, stmt.Name)
}

// collect returns one row per node accepted by keep, in insertion order.
func (m *MemStore) collect(keep func(*memNode) bool, row func(*memNode) Row) []Row {
	var rows []Row
	for _, id := range m.order {
		if n := m.nodes[id]; keep(n) {
			rows = append(rows, row(n))
		}
	}
	return rows
}

// fileImports returns the (source path, target path) of every File to File
// IMPORTS edge in insertion order.
func (m *MemStore) fileImports() [][2]string {
	file := string(graph.NodeKindFile)
	var out [][2]string
	for _, e := range m.edges {
		src, dst := m.nodes[e.src], m.nodes[e.dst]
		if e.kind == graph.RelImports && src.label == file && dst.label == file {
			out = append(out, [2]string{src.getStr(graph.PropPath), dst.getStr(graph.PropPath)})
		}
	}
	return out
}

// targets returns the ids that are the target of any edge of the given kinds.
func (m *MemStore) targets(kinds ...graph.RelKind) map[string]bool {
	want := make(map[graph.RelKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	out := make(map[string]bool)
	for _, e := range m.edges {
		if want[e.kind] {
			out[e.dst] = true
		}
	}
	return out
}

func isHierarchy(k graph.RelKind) bool {
	switch k {
	case graph.RelInheritsFrom, graph.RelExtends, graph.RelImplements, graph.RelMixesIn:
		return true
	}
	return false
}

// --- Property access ---

func (n *memNode) symbolRow() Row {
	return Row{
		"id":         n.getStr(graph.PropID),
		"name":       n.getStr(graph.PropName),
		"kind":       n.label,
		"file_path":  n.getStr(graph.PropFilePath),
		"start_line": n.getInt(graph.PropStartLine),
	}
}

func (n *memNode) getStr(key string) string    { return GetString(Row(n.props), key) }
func (n *memNode) getBool(key string) bool     { return GetBool(Row(n.props), key) }
func (n *memNode) getList(key string) []string { return GetStrings(Row(n.props), key) }
func (n *memNode) getInt(key string) int64     { return int64(GetInt(Row(n.props), key)) }

func str(p map[string]any, key string) string { return GetString(Row(p), key) }
func num(p map[string]any, key string) int    { return GetInt(Row(p), key) }
func strs(p map[string]any, key string) []string {
	return GetStrings(Row(p), key)
}

func set(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, s := range items {
		out[s] = true
	}
	return out
}

// sortRows orders rows by the given columns, comparing ints numerically and
// everything else as strings.
func sortRows(rows []Row, keys ...string) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			a, b := rows[i][k], rows[j][k]
			if ai, ok := a.(int64); ok {
				bi, _ := b.(int64)
				if ai != bi {
					return ai < bi
				}
				continue
			}
			as, bs := fmt.Sprint(a), fmt.Sprint(b)
			if as != bs {
				return as < bs
			}
		}
		return false
	})
}
