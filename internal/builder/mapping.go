package builder

import (
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/dusk-indust/codegraph/internal/graph"
	"github.com/dusk-indust/codegraph/internal/parse"
	"github.com/dusk-indust/codegraph/internal/syntax"
)

// kindTable describes how one language's type declarations map onto graph
// kinds and which relationship its supertype lists produce.
type kindTable struct {
	types map[syntax.Kind]graph.NodeKind
	// baseRel applies to Bases, implRel to Implements. Mixins always use
	// MIXES_IN.
	baseRel graph.RelKind
	implRel graph.RelKind
}

var genericTypes = map[syntax.Kind]graph.NodeKind{
	syntax.KindClass:     graph.NodeKindClass,
	syntax.KindInterface: graph.NodeKindInterface,
	syntax.KindEnum:      graph.NodeKindEnum,
	syntax.KindStruct:    graph.NodeKindStruct,
	syntax.KindTrait:     graph.NodeKindTrait,
}

var kindTables = map[syntax.Language]kindTable{
	syntax.Python:     {types: genericTypes, baseRel: graph.RelInheritsFrom},
	syntax.Go:         {types: genericTypes, baseRel: graph.RelInheritsFrom},
	syntax.TypeScript: {types: genericTypes, baseRel: graph.RelInheritsFrom, implRel: graph.RelImplements},
	syntax.JavaScript: {types: genericTypes, baseRel: graph.RelInheritsFrom, implRel: graph.RelImplements},
	syntax.Rust:       {types: genericTypes, baseRel: graph.RelInheritsFrom, implRel: graph.RelImplements},
	syntax.Java: {
		types: map[syntax.Kind]graph.NodeKind{
			syntax.KindClass:     graph.NodeKindJavaClass,
			syntax.KindInterface: graph.NodeKindJavaInterface,
			syntax.KindEnum:      graph.NodeKindJavaEnum,
		},
		baseRel: graph.RelExtends,
		implRel: graph.RelImplements,
	},
	syntax.Kotlin: {
		types: map[syntax.Kind]graph.NodeKind{
			syntax.KindClass:     graph.NodeKindKotlinClass,
			syntax.KindEnum:      graph.NodeKindKotlinClass,
			syntax.KindObject:    graph.NodeKindKotlinObject,
			syntax.KindInterface: graph.NodeKindKotlinInterface,
		},
		baseRel: graph.RelExtends,
		implRel: graph.RelImplements,
	},
	syntax.Dart: {
		types: map[syntax.Kind]graph.NodeKind{
			syntax.KindClass:     graph.NodeKindDartClass,
			syntax.KindMixin:     graph.NodeKindDartMixin,
			syntax.KindExtension: graph.NodeKindDartExtension,
			syntax.KindEnum:      graph.NodeKindDartEnum,
		},
		baseRel: graph.RelExtends,
		implRel: graph.RelImplements,
	},
}

func tableFor(lang syntax.Language) kindTable {
	if t, ok := kindTables[lang]; ok {
		return t
	}
	return kindTable{types: genericTypes, baseRel: graph.RelInheritsFrom}
}

// typeKind maps a type-like syntax kind. Kinds a language does not declare
// become Class.
func (t kindTable) typeKind(k syntax.Kind) graph.NodeKind {
	if nk, ok := t.types[k]; ok {
		return nk
	}
	return graph.NodeKindClass
}

var rootKinds = map[syntax.Kind]graph.NodeKind{
	syntax.KindModule:  graph.NodeKindModule,
	syntax.KindPackage: graph.NodeKindPackage,
	syntax.KindLibrary: graph.NodeKindLibrary,
}

// --- Per-file output ---

// step is one generated statement plus the node ids it creates or joins.
type step struct {
	stmt   graph.Statement
	node   string // created node id, for node statements
	src    string // endpoints, for relationship statements
	dst    string
	kind   graph.NodeKind
	rel    graph.RelKind
	isEdge bool
}

// symbol is a definition that imports, calls and base lists can resolve to.
type symbol struct {
	id    string
	name  string
	kind  graph.NodeKind
	file  string
	owner string // enclosing class-like node id, if any
}

type importRef struct {
	id     string
	source string
	names  []string
	alias  string
	line   int
}

type callRef struct {
	caller string
	owner  string
	callee string
	line   int
}

type typeRef struct {
	sym        symbol
	bases      []string
	implements []string
	mixins     []string
}

// fileGraph is everything generated for one file. Workers fill fileGraphs
// independently; the only shared state is the id generator.
type fileGraph struct {
	rel     string
	lang    syntax.Language
	pkg     string
	fileID  string
	nodes   []graph.Node
	edges   []graph.Edge
	steps   []step // node steps
	links   []step // relationship steps
	symbols []symbol
	imports []importRef
	calls   []callRef
	types   []typeRef
	errs    []string
}

// anchor is a created node that children can attach to.
type anchor struct {
	id   string
	kind graph.NodeKind
	name string
}

type fileBuilder struct {
	reg    *graph.Registry
	ids    *graph.IDGenerator
	logger *slog.Logger
	table  kindTable
	out    *fileGraph
}

// buildFile maps one parsed unit. A panic escaping the per-subtree guards
// aborts the file.
func (b *Builder) buildFile(pu parse.ParsedUnit) (fg *fileGraph, err error) {
	rel := pu.Source.RelPath
	if rel == "" {
		rel = path.Base(filepath.ToSlash(pu.Source.Path))
	}
	fb := &fileBuilder{
		reg:    b.registry,
		ids:    b.ids,
		logger: b.logger.With(slog.String("file", rel)),
		table:  tableFor(pu.Source.Language),
		out:    &fileGraph{rel: rel, lang: pu.Source.Language},
	}
	defer func() {
		if r := recover(); r != nil {
			fg, err = nil, fmt.Errorf("build %s: panic: %v", rel, r)
		}
	}()
	if err := fb.file(pu); err != nil {
		return nil, err
	}
	return fb.out, nil
}

func (fb *fileBuilder) file(pu parse.ParsedUnit) error {
	rel, lang := fb.out.rel, pu.Source.Language

	props := graph.Props{}.
		Set(graph.PropPath, graph.String(rel)).
		Set(graph.PropLanguage, graph.String(string(lang))).
		Set(graph.PropLineCount, graph.Int(pu.LineCount)).
		Set(graph.PropSizeBytes, graph.Int(int(pu.Source.SizeBytes)))
	if pu.ContentHash != "" {
		props.Set(graph.PropContentHash, graph.String(pu.ContentHash))
	}
	file, ok := fb.emit(graph.NodeKindFile, path.Base(rel), 1, pu.LineCount, props)
	if !ok {
		return fmt.Errorf("build %s: file node rejected", rel)
	}
	fb.out.fileID = file.id

	tree := pu.Tree
	rootKind, isRoot := rootKinds[tree.Kind]
	var children []*syntax.Node
	var rootNode *syntax.Node
	if isRoot {
		rootNode, children = tree, tree.Children
	} else {
		// A tree without a container gets a synthetic module around it.
		rootNode = &syntax.Node{Kind: syntax.KindModule, Name: rel, StartLine: 1}
		rootKind, children = graph.NodeKindModule, []*syntax.Node{tree}
	}

	rprops := graph.Props{}.Set(graph.PropLanguage, graph.String(string(lang)))
	if rootNode.Docstring != "" {
		rprops.Set(graph.PropDocstring, graph.String(rootNode.Docstring))
	}
	name := rootNode.Name
	if name == "" {
		name = rel
	}
	root, ok := fb.emit(rootKind, name, 1, pu.LineCount, rprops)
	if !ok {
		return fmt.Errorf("build %s: %s node rejected", rel, rootKind)
	}
	fb.out.pkg = name
	fb.link(graph.RelContains, file, root, nil)

	fb.children(children, []anchor{root}, 1)
	return nil
}

// children visits each child under its own panic guard so one bad subtree
// never takes its siblings down.
func (fb *fileBuilder) children(nodes []*syntax.Node, stack []anchor, depth int) {
	position := 0
	for _, n := range nodes {
		if n == nil {
			continue
		}
		pos := -1
		if n.Kind == syntax.KindParameter {
			pos = position
			position++
		}
		fb.guarded(n, stack, depth, pos)
	}
}

func (fb *fileBuilder) guarded(n *syntax.Node, stack []anchor, depth, pos int) {
	defer func() {
		if r := recover(); r != nil {
			fb.errorf("%s %q at line %d: panic: %v", n.Kind, n.Name, n.StartLine, r)
		}
	}()
	fb.visit(n, stack, depth, pos)
}

func (fb *fileBuilder) visit(n *syntax.Node, stack []anchor, depth, pos int) {
	if depth > syntax.MaxDepth {
		fb.errorf("%s %q at line %d: nesting exceeds %d", n.Kind, n.Name, n.StartLine, syntax.MaxDepth)
		return
	}
	top := stack[len(stack)-1]

	switch {
	case rootKinds[n.Kind] != "":
		// Nested containers (Kotlin companions, TS namespaces) flatten into
		// the enclosing scope.
		fb.children(n.Children, stack, depth+1)

	case n.Kind.IsTypeLike():
		kind := fb.table.typeKind(n.Kind)
		parent, ok := fb.attach(stack, graph.RelDefinesClass, kind)
		if !ok {
			fb.skip(n, kind)
			return
		}
		a, ok := fb.emitSyntax(kind, n, stack)
		if !ok {
			return
		}
		fb.link(graph.RelDefinesClass, parent, a, nil)
		sym := fb.define(a, stack)
		fb.out.types = append(fb.out.types, typeRef{sym: sym, bases: n.Bases, implements: n.Implements, mixins: n.Mixins})
		fb.children(n.Children, append(stack, a), depth+1)

	case n.Kind == syntax.KindMethod || n.Kind == syntax.KindConstructor:
		kind := graph.NodeKindMethod
		if n.Kind == syntax.KindConstructor {
			kind = graph.NodeKindCtor
		}
		if top.kind.IsClassLike() {
			fb.callable(n, kind, graph.RelDefinesMethod, top, stack, depth)
			return
		}
		// A method outside any type body (Go receivers declared elsewhere,
		// impl blocks for foreign types) is modeled as a function.
		fb.function(n, stack, depth)

	case n.Kind == syntax.KindFunction:
		fb.function(n, stack, depth)

	case n.Kind == syntax.KindField || n.Kind == syntax.KindVariable:
		if top.kind.IsClassLike() {
			a, ok := fb.emitSyntax(graph.NodeKindField, n, stack)
			if !ok {
				return
			}
			fb.link(graph.RelHasField, top, a, nil)
			fb.link(graph.RelBelongsTo, a, top, nil)
			return
		}
		parent, ok := fb.attach(stack, graph.RelDefinesVariable, graph.NodeKindVariable)
		if !ok {
			fb.skip(n, graph.NodeKindVariable)
			return
		}
		if a, ok := fb.emitSyntax(graph.NodeKindVariable, n, stack); ok {
			fb.link(graph.RelDefinesVariable, parent, a, nil)
		}

	case n.Kind == syntax.KindParameter:
		if !fb.reg.Allows(graph.RelHasParameter, top.kind, graph.NodeKindParameter) {
			fb.skip(n, graph.NodeKindParameter)
			return
		}
		a, ok := fb.emitSyntax(graph.NodeKindParameter, n, stack, func(p graph.Props) {
			if pos >= 0 {
				p.Set(graph.PropPosition, graph.Int(pos))
			}
		})
		if ok {
			fb.link(graph.RelHasParameter, top, a, nil)
		}

	case n.Kind == syntax.KindImport:
		a, ok := fb.emitSyntax(graph.NodeKindImport, n, stack)
		if !ok {
			return
		}
		file := anchor{id: fb.out.fileID, kind: graph.NodeKindFile}
		fb.link(graph.RelImports, file, a, graph.Props{}.Set(graph.PropLine, graph.Int(n.StartLine)))
		fb.out.imports = append(fb.out.imports, importRef{
			id: a.id, source: importSource(n), names: n.Names, alias: n.Alias, line: n.StartLine,
		})

	case n.Kind == syntax.KindExport:
		parent, ok := fb.attach(stack, graph.RelExports, graph.NodeKindExport)
		if !ok {
			fb.skip(n, graph.NodeKindExport)
			return
		}
		if a, ok := fb.emitSyntax(graph.NodeKindExport, n, stack); ok {
			fb.link(graph.RelExports, parent, a, nil)
		}

	case n.Kind == syntax.KindDecorator:
		// Decorators bind to the node they annotate, never an ancestor.
		if !fb.reg.Allows(graph.RelDecoratedBy, top.kind, graph.NodeKindDecorator) {
			fb.skip(n, graph.NodeKindDecorator)
			return
		}
		if a, ok := fb.emitSyntax(graph.NodeKindDecorator, n, stack); ok {
			fb.link(graph.RelDecoratedBy, top, a, nil)
		}

	case n.Kind == syntax.KindCall:
		caller, ok := nearest(stack, graph.NodeKind.IsCallable)
		if !ok {
			return
		}
		owner, _ := nearest(stack, graph.NodeKind.IsClassLike)
		fb.out.calls = append(fb.out.calls, callRef{caller: caller.id, owner: owner.id, callee: n.Name, line: n.StartLine})

	default:
		fb.logger.Debug("unmapped syntax node", slog.String("kind", string(n.Kind)), slog.Int("line", n.StartLine))
	}
}

func (fb *fileBuilder) function(n *syntax.Node, stack []anchor, depth int) {
	parent, ok := fb.attach(stack, graph.RelDefinesFunction, graph.NodeKindFunction)
	if !ok {
		fb.skip(n, graph.NodeKindFunction)
		return
	}
	fb.callable(n, graph.NodeKindFunction, graph.RelDefinesFunction, parent, stack, depth)
}

func (fb *fileBuilder) callable(n *syntax.Node, kind graph.NodeKind, rel graph.RelKind, parent anchor, stack []anchor, depth int) {
	a, ok := fb.emitSyntax(kind, n, stack)
	if !ok {
		return
	}
	fb.link(rel, parent, a, nil)
	fb.define(a, stack)
	fb.children(n.Children, append(stack, a), depth+1)
}

// attach climbs the scope stack to the nearest node that rel may connect
// to a child of kind.
func (fb *fileBuilder) attach(stack []anchor, rel graph.RelKind, kind graph.NodeKind) (anchor, bool) {
	for i := len(stack) - 1; i >= 0; i-- {
		if fb.reg.Allows(rel, stack[i].kind, kind) {
			return stack[i], true
		}
	}
	return anchor{}, false
}

func nearest(stack []anchor, match func(graph.NodeKind) bool) (anchor, bool) {
	for i := len(stack) - 1; i >= 0; i-- {
		if match(stack[i].kind) {
			return stack[i], true
		}
	}
	return anchor{}, false
}

// define registers a created node as a resolvable symbol.
func (fb *fileBuilder) define(a anchor, stack []anchor) symbol {
	owner, _ := nearest(stack, graph.NodeKind.IsClassLike)
	sym := symbol{id: a.id, name: a.name, kind: a.kind, file: fb.out.rel, owner: owner.id}
	fb.out.symbols = append(fb.out.symbols, sym)
	return sym
}

func (fb *fileBuilder) skip(n *syntax.Node, kind graph.NodeKind) {
	fb.logger.Debug("no legal parent for node",
		slog.String("kind", string(kind)),
		slog.String("name", n.Name),
		slog.Int("line", n.StartLine))
}

func (fb *fileBuilder) errorf(format string, args ...any) {
	msg := fmt.Sprintf("%s: %s", fb.out.rel, fmt.Sprintf(format, args...))
	fb.logger.Warn("node construction failed", slog.String("error", msg))
	fb.out.errs = append(fb.out.errs, msg)
}

// --- Emission ---

// emitSyntax creates a node for a syntax element, copying every property
// its kind declares. extra may add computed properties.
func (fb *fileBuilder) emitSyntax(kind graph.NodeKind, n *syntax.Node, stack []anchor, extra ...func(graph.Props)) (anchor, bool) {
	spec, _ := fb.reg.NodeSpec(kind)
	props := syntaxProps(spec, n, qualify(stack, n.Name))
	for _, fn := range extra {
		fn(props)
	}
	return fb.emit(kind, displayName(n), n.StartLine, n.EndLine, props)
}

func (fb *fileBuilder) emit(kind graph.NodeKind, name string, line, end int, props graph.Props) (anchor, bool) {
	if end < line {
		end = 0
	}
	node := graph.Node{
		ID:        fb.ids.Next(kind, fb.out.rel, line, name),
		Kind:      kind,
		Name:      name,
		FilePath:  fb.out.rel,
		StartLine: line,
		EndLine:   end,
		Props:     props,
	}
	stmt, err := fb.reg.RenderCreateNode(node)
	if err != nil {
		fb.errorf("%v", err)
		return anchor{}, false
	}
	fb.out.nodes = append(fb.out.nodes, node)
	fb.out.steps = append(fb.out.steps, step{stmt: stmt, node: node.ID, kind: kind})
	return anchor{id: node.ID, kind: kind, name: name}, true
}

func (fb *fileBuilder) link(rel graph.RelKind, src, dst anchor, props graph.Props) {
	edge := graph.Edge{Kind: rel, SourceID: src.id, TargetID: dst.id, Props: props}
	stmt, err := fb.reg.RenderCreateRelationship(edge, src.kind, dst.kind)
	if err != nil {
		fb.errorf("%v", err)
		return
	}
	fb.out.edges = append(fb.out.edges, edge)
	fb.out.links = append(fb.out.links, step{stmt: stmt, src: src.id, dst: dst.id, rel: rel, isEdge: true})
}

// displayName names nodes whose syntax element may be anonymous.
func displayName(n *syntax.Node) string {
	switch {
	case n.Name != "":
		return n.Name
	case len(n.Names) > 0:
		return strings.Join(n.Names, ",")
	case n.Source != "":
		return n.Source
	}
	return "<anonymous " + string(n.Kind) + ">"
}

func importSource(n *syntax.Node) string {
	if n.Source != "" {
		return n.Source
	}
	return n.Name
}

// qualify joins the names of enclosing definitions below the root.
func qualify(stack []anchor, name string) string {
	parts := make([]string, 0, len(stack))
	for _, a := range stack {
		if a.kind.IsRoot() || a.kind == graph.NodeKindFile {
			continue
		}
		parts = append(parts, a.name)
	}
	return strings.Join(append(parts, name), ".")
}

// syntaxProps copies the properties of n that spec declares.
func syntaxProps(spec graph.NodeSpec, n *syntax.Node, qualified string) graph.Props {
	p := graph.Props{}
	set := func(key string, v graph.Value) {
		if spec.Props[key] == v.Type() {
			p[key] = v
		}
	}
	str := func(key, s string) {
		if s != "" {
			set(key, graph.String(s))
		}
	}
	list := func(key string, l []string) {
		if len(l) > 0 {
			set(key, graph.Strings(l))
		}
	}
	flag := func(key string, b bool) {
		if b {
			set(key, graph.Bool(true))
		}
	}

	set(graph.PropExported, graph.Bool(n.Exported))
	str(graph.PropVisibility, n.Visibility)
	str(graph.PropSignature, n.Signature)
	if n.Complexity > 0 {
		set(graph.PropComplexity, graph.Int(n.Complexity))
	}
	list(graph.PropBases, n.Bases)
	list(graph.PropInterfaces, n.Implements)
	list(graph.PropMixins, n.Mixins)
	list(graph.PropModifiers, n.Modifiers)
	list(graph.PropDecorators, decoratorNames(n))
	str(graph.PropReceiver, n.Receiver)
	flag(graph.PropIsAsync, n.IsAsync)
	flag(graph.PropIsStatic, n.IsStatic)
	flag(graph.PropIsAbstract, n.IsAbstract)
	str(graph.PropDefaultValue, n.DefaultValue)
	str(graph.PropTypeAnnotation, n.TypeAnnotation)
	str(graph.PropDocstring, n.Docstring)
	str(graph.PropAlias, n.Alias)
	list(graph.PropNames, n.Names)
	if n.Kind == syntax.KindImport {
		str(graph.PropSource, importSource(n))
	} else {
		str(graph.PropSource, n.Source)
	}
	if qualified != "" && qualified != n.Name {
		str(graph.PropQualifiedName, qualified)
	}
	return p
}

func decoratorNames(n *syntax.Node) []string {
	var out []string
	for _, c := range n.Children {
		if c != nil && c.Kind == syntax.KindDecorator {
			out = append(out, c.Name)
		}
	}
	return out
}
