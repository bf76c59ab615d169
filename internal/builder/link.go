package builder

import (
	"path"
	"sort"
	"strings"

	"github.com/dusk-indust/codegraph/internal/graph"
	"github.com/dusk-indust/codegraph/internal/syntax"
)

// linker resolves cross-references once every file has been mapped. It only
// ever connects nodes that were created, so its output never dangles.
type linker struct {
	reg      *graph.Registry
	resolver *Resolver
	files    []*fileGraph

	fileIDs  map[string]string            // rel path -> File node id
	byName   map[string][]symbol          // definitions by name
	byID     map[string]symbol            // definitions by node id
	ctors    map[string]symbol            // class-like id -> constructor
	deps     map[string][]string          // rel path -> imported project files
	imported map[string]map[string]symbol // rel path -> local name -> symbol

	links      []step
	edges      []graph.Edge
	seen       map[string]bool
	unresolved int
	errs       []string
}

func newLinker(reg *graph.Registry, root string, files []*fileGraph) *linker {
	l := &linker{
		reg:      reg,
		files:    files,
		fileIDs:  make(map[string]string, len(files)),
		byName:   make(map[string][]symbol),
		byID:     make(map[string]symbol),
		ctors:    make(map[string]symbol),
		deps:     make(map[string][]string),
		imported: make(map[string]map[string]symbol),
		seen:     make(map[string]bool),
	}
	paths := make([]string, 0, len(files))
	for _, fg := range files {
		l.fileIDs[fg.rel] = fg.fileID
		paths = append(paths, fg.rel)
		for _, s := range fg.symbols {
			l.byName[s.name] = append(l.byName[s.name], s)
			l.byID[s.id] = s
			if s.kind == graph.NodeKindCtor && s.owner != "" {
				if _, dup := l.ctors[s.owner]; !dup {
					l.ctors[s.owner] = s
				}
			}
		}
	}
	l.resolver = NewResolver(root, paths)
	for _, fg := range files {
		if fg.lang != syntax.Java && fg.lang != syntax.Kotlin {
			continue
		}
		l.resolver.IndexPackage(fg.pkg, fg.rel)
		for _, t := range fg.types {
			if t.sym.owner == "" {
				l.resolver.IndexType(fg.pkg+"."+t.sym.name, fg.rel)
			}
		}
	}
	return l
}

// run resolves imports first since call and supertype lookups consult the
// import tables.
func (l *linker) run() {
	for _, fg := range l.files {
		l.linkImports(fg)
	}
	for _, fg := range l.files {
		for _, c := range fg.calls {
			l.linkCall(fg, c)
		}
		table := tableFor(fg.lang)
		for _, t := range fg.types {
			l.linkSupertypes(fg, table, t)
		}
	}
}

// --- Imports ---

func (l *linker) linkImports(fg *fileGraph) {
	locals := make(map[string]symbol)
	l.imported[fg.rel] = locals
	seenDep := make(map[string]bool)

	for _, imp := range fg.imports {
		targets := l.resolver.Resolve(fg.lang, imp.source, imp.names, fg.rel)
		if len(targets) == 0 {
			l.unresolved++
			continue
		}
		for _, t := range targets {
			dstID, ok := l.fileIDs[t]
			if !ok || t == fg.rel {
				continue
			}
			if !seenDep[t] {
				seenDep[t] = true
				l.deps[fg.rel] = append(l.deps[fg.rel], t)
				l.add(graph.RelImports,
					anchor{id: fg.fileID, kind: graph.NodeKindFile},
					anchor{id: dstID, kind: graph.NodeKindFile},
					graph.Props{}.Set(graph.PropLine, graph.Int(imp.line)))
			}
		}

		for _, name := range imp.names {
			if name == "" || name == "*" {
				continue
			}
			sym, ok := l.topLevelIn(targets, name)
			if !ok {
				continue
			}
			l.add(graph.RelImports, anchor{id: imp.id, kind: graph.NodeKindImport}, anchorOf(sym), nil)
			locals[name] = sym
			if imp.alias != "" && len(imp.names) == 1 {
				locals[imp.alias] = sym
			}
		}
	}
}

// topLevelIn finds an importable definition named name in one of files.
func (l *linker) topLevelIn(files []string, name string) (symbol, bool) {
	for _, s := range l.byName[name] {
		if s.owner != "" || !(s.kind.IsClassLike() || s.kind == graph.NodeKindFunction) {
			continue
		}
		for _, f := range files {
			if s.file == f {
				return s, true
			}
		}
	}
	return symbol{}, false
}

// --- Calls ---

var selfReceivers = map[string]bool{"self": true, "this": true, "cls": true, "super": true}

// splitCallee returns the qualifier and final name of a callee expression
// such as "self.save", "pkg.New" or "Type::new".
func splitCallee(callee string) (qualifier, name string) {
	callee = strings.TrimSpace(callee)
	if i := strings.IndexByte(callee, '<'); i > 0 {
		callee = callee[:i]
	}
	cut := -1
	for _, sep := range []string{"?.", "->", "::", "."} {
		if i := strings.LastIndex(callee, sep); i >= 0 && i+len(sep) > cut {
			cut = i + len(sep)
			qualifier = callee[:i]
		}
	}
	if cut < 0 {
		return "", callee
	}
	return qualifier, callee[cut:]
}

func (l *linker) linkCall(fg *fileGraph, c callRef) {
	qualifier, name := splitCallee(c.callee)
	if name == "" {
		return
	}
	caller, ok := l.byID[c.caller]
	if !ok {
		return
	}

	target, found := symbol{}, false
	if selfReceivers[qualifier] && c.owner != "" {
		target, found = l.member(c.owner, name, c.caller)
	}
	if !found {
		target, found = l.lookup(fg, name, c.caller, func(s symbol) bool {
			return s.kind.IsCallable() || s.kind.IsClassLike()
		})
	}
	if !found {
		return
	}
	if target.kind.IsClassLike() {
		// Instantiation: prefer the constructor when the type declares one.
		if ctor, ok := l.ctors[target.id]; ok && ctor.id != c.caller {
			target = ctor
		}
	}
	l.add(graph.RelCalls, anchorOf(caller), anchorOf(target),
		graph.Props{}.Set(graph.PropLine, graph.Int(c.line)))
}

// member finds a callable member of the type owner by name.
func (l *linker) member(owner, name, exclude string) (symbol, bool) {
	for _, s := range l.byName[name] {
		if s.owner == owner && s.id != exclude && s.kind.IsCallable() {
			return s, true
		}
	}
	return symbol{}, false
}

// lookup resolves a bare name seen in fg. Candidates are tried in order of
// proximity: the same file, names bound by imports, files fg imports, the
// same directory, and finally a definition that is unique project-wide.
// Callables win over types within a tier, and exclude (the caller) is never
// returned.
func (l *linker) lookup(fg *fileGraph, name, exclude string, accept func(symbol) bool) (symbol, bool) {
	var cands []symbol
	for _, s := range l.byName[name] {
		if s.id != exclude && accept(s) {
			cands = append(cands, s)
		}
	}
	if len(cands) == 0 {
		return symbol{}, false
	}

	if s, ok := pick(cands, func(s symbol) bool { return s.file == fg.rel }); ok {
		return s, true
	}
	if s, ok := l.imported[fg.rel][name]; ok && s.id != exclude && accept(s) {
		return s, true
	}
	deps := l.deps[fg.rel]
	if s, ok := pick(cands, func(s symbol) bool { return contains(deps, s.file) }); ok {
		return s, true
	}
	dir := path.Dir(fg.rel)
	if s, ok := pick(cands, func(s symbol) bool { return path.Dir(s.file) == dir }); ok {
		return s, true
	}
	if len(cands) == 1 {
		return cands[0], true
	}
	return symbol{}, false
}

// pick returns the first candidate matching in, preferring callables and
// then top-level definitions.
func pick(cands []symbol, in func(symbol) bool) (symbol, bool) {
	var best symbol
	found := false
	rank := func(s symbol) int {
		r := 0
		if !s.kind.IsCallable() {
			r += 2
		}
		if s.owner != "" {
			r++
		}
		return r
	}
	for _, s := range cands {
		if !in(s) {
			continue
		}
		if !found || rank(s) < rank(best) {
			best, found = s, true
		}
	}
	return best, found
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// --- Supertypes ---

func (l *linker) linkSupertypes(fg *fileGraph, table kindTable, t typeRef) {
	relate := func(names []string, rel, alt graph.RelKind) {
		for _, raw := range names {
			name := typeName(raw)
			if name == "" {
				continue
			}
			target, ok := l.lookup(fg, name, t.sym.id, func(s symbol) bool { return s.kind.IsClassLike() })
			if !ok {
				continue
			}
			switch {
			case rel != "" && l.reg.Allows(rel, t.sym.kind, target.kind):
				l.add(rel, anchorOf(t.sym), anchorOf(target), nil)
			case alt != "" && l.reg.Allows(alt, t.sym.kind, target.kind):
				l.add(alt, anchorOf(t.sym), anchorOf(target), nil)
			}
		}
	}
	relate(t.bases, table.baseRel, table.implRel)
	relate(t.implements, table.implRel, table.baseRel)
	relate(t.mixins, graph.RelMixesIn, "")
}

// typeName strips generics, pointers and qualifiers from a type reference:
// "*pkg.Base[T]" and "models.Base<T>" both become "Base".
func typeName(raw string) string {
	s := strings.TrimSpace(raw)
	for _, open := range []string{"<", "[", "("} {
		if i := strings.Index(s, open); i > 0 {
			s = s[:i]
		}
	}
	s = strings.TrimLeft(s, "*&")
	_, name := splitCallee(s)
	return strings.TrimSpace(name)
}

// --- Emission ---

func anchorOf(s symbol) anchor { return anchor{id: s.id, kind: s.kind, name: s.name} }

func (l *linker) add(rel graph.RelKind, src, dst anchor, props graph.Props) {
	key := string(rel) + "|" + src.id + "|" + dst.id
	if l.seen[key] {
		return
	}
	l.seen[key] = true
	edge := graph.Edge{Kind: rel, SourceID: src.id, TargetID: dst.id, Props: props}
	stmt, err := l.reg.RenderCreateRelationship(edge, src.kind, dst.kind)
	if err != nil {
		l.errs = append(l.errs, err.Error())
		return
	}
	l.edges = append(l.edges, edge)
	l.links = append(l.links, step{stmt: stmt, src: src.id, dst: dst.id, rel: rel, isEdge: true})
}

// dependencies returns the resolved file dependency map with sorted targets.
func (l *linker) dependencies() map[string][]string {
	out := make(map[string][]string, len(l.deps))
	for k, v := range l.deps {
		cp := append([]string(nil), v...)
		sort.Strings(cp)
		out[k] = cp
	}
	return out
}
