package parse

import (
	"path"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"

	"github.com/dusk-indust/codegraph/internal/syntax"
)

// NewRustPlugin returns the tree-sitter Rust plugin.
func NewRustPlugin() Plugin {
	return &treeSitterPlugin{
		lang:     syntax.Rust,
		fallback: tree_sitter.NewLanguage(tree_sitter_rust.Language()),
		ext:      &rsExtractor{},
	}
}

var (
	rsStop = map[string]bool{
		"function_item": true,
		"impl_item":     true,
		"trait_item":    true,
		"mod_item":      true,
	}
	rsCalls    = map[string]string{"call_expression": "function"}
	rsBranches = map[string]bool{
		"if_expression":    true,
		"match_arm":        true,
		"for_expression":   true,
		"while_expression": true,
		"loop_expression":  true,
		"try_expression":   true,
	}
)

// rsExtractor maps the tree-sitter Rust grammar onto syntax nodes. Types are
// collected before impl blocks are attached, so an impl may precede its type
// in the file.
type rsExtractor struct{}

type rsState struct {
	types map[string]*syntax.Node
	impls []*tree_sitter.Node
}

func (e *rsExtractor) Extract(w *tsWalker, root *tree_sitter.Node, filePath string) *syntax.Node {
	name := strings.TrimSuffix(filePath, path.Ext(filePath))
	mod := newNode(syntax.KindModule, strings.ReplaceAll(name, "/", "::"), root)
	mod.StartLine = 1
	w.root = mod

	st := &rsState{types: make(map[string]*syntax.Node)}
	e.items(w, st, root, mod, 1)
	for _, impl := range st.impls {
		e.impl(w, st, impl)
	}
	return mod
}

// items handles a declaration list: the source file or an inline module.
func (e *rsExtractor) items(w *tsWalker, st *rsState, list *tree_sitter.Node, parent *syntax.Node, depth int) {
	if w.tooDeep(depth) {
		return
	}
	var attrs []*syntax.Node
	for _, c := range namedChildren(list) {
		switch c.Kind() {
		case "attribute_item":
			attrs = append(attrs, e.attribute(w, c))
			continue

		case "function_item":
			fn := e.function(w, c, syntax.KindFunction, depth+1)
			if fn != nil {
				fn.Add(attrs...)
			}
			parent.Add(fn)

		case "struct_item", "enum_item", "trait_item", "union_item":
			t := e.typeItem(w, c, depth+1)
			if t != nil {
				t.Add(attrs...)
				st.types[t.Name] = t
			}
			parent.Add(t)

		case "impl_item":
			st.impls = append(st.impls, c)

		case "use_declaration":
			w.root.Add(e.use(w, c))

		case "const_item", "static_item":
			name := w.field(c, "name")
			if name == "" {
				break
			}
			v := newNode(syntax.KindVariable, name, c)
			e.visibility(w, v, c)
			v.TypeAnnotation = w.field(c, "type")
			v.DefaultValue = firstLine(w.field(c, "value"))
			v.IsStatic = c.Kind() == "static_item"
			v.Modifiers = []string{strings.TrimSuffix(c.Kind(), "_item")}
			parent.Add(v)

		case "mod_item":
			if body := c.ChildByFieldName("body"); body != nil {
				e.items(w, st, body, parent, depth+1)
			}
		}
		attrs = nil
	}
}

func (e *rsExtractor) function(w *tsWalker, n *tree_sitter.Node, kind syntax.Kind, depth int) *syntax.Node {
	name := w.field(n, "name")
	if name == "" {
		return nil
	}
	fn := newNode(kind, name, n)
	e.visibility(w, fn, n)
	for _, c := range namedChildren(n) {
		if c.Kind() == "function_modifiers" {
			mods := strings.Fields(w.text(c))
			fn.Modifiers = append(fn.Modifiers, mods...)
			for _, m := range mods {
				if m == "async" {
					fn.IsAsync = true
				}
			}
		}
	}

	params := n.ChildByFieldName("parameters")
	fn.Signature = "fn " + name + w.text(params)
	if ret := w.field(n, "return_type"); ret != "" {
		fn.Signature += " -> " + ret
	}
	hasSelf := false
	for _, p := range namedChildren(params) {
		switch p.Kind() {
		case "self_parameter":
			hasSelf = true
		case "parameter":
			param := newNode(syntax.KindParameter, w.field(p, "pattern"), p)
			param.TypeAnnotation = w.field(p, "type")
			fn.Add(param)
		}
	}
	if kind == syntax.KindMethod && !hasSelf {
		fn.IsStatic = true
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		// Trait method without a default body.
		fn.IsAbstract = kind == syntax.KindMethod
		return fn
	}
	fn.Complexity = complexity(body, rsStop, func(c *tree_sitter.Node) bool {
		if rsBranches[c.Kind()] {
			return true
		}
		return c.Kind() == "binary_expression" && w.operatorIs(c, "&&", "||")
	})
	fn.Add(w.collectCalls(body, rsStop, rsCalls)...)
	return fn
}

func (e *rsExtractor) typeItem(w *tsWalker, n *tree_sitter.Node, depth int) *syntax.Node {
	name := w.field(n, "name")
	if name == "" {
		return nil
	}
	var kind syntax.Kind
	switch n.Kind() {
	case "enum_item":
		kind = syntax.KindEnum
	case "trait_item":
		kind = syntax.KindTrait
	default:
		kind = syntax.KindStruct
	}
	t := newNode(kind, name, n)
	e.visibility(w, t, n)

	body := n.ChildByFieldName("body")
	switch n.Kind() {
	case "struct_item", "union_item":
		for _, f := range namedChildren(body) {
			if f.Kind() != "field_declaration" {
				continue
			}
			field := newNode(syntax.KindField, w.field(f, "name"), f)
			e.visibility(w, field, f)
			field.TypeAnnotation = w.field(f, "type")
			t.Add(field)
		}

	case "enum_item":
		for _, v := range namedChildren(body) {
			if v.Kind() == "enum_variant" {
				variant := newNode(syntax.KindField, w.field(v, "name"), v)
				variant.Exported = t.Exported
				t.Add(variant)
			}
		}

	case "trait_item":
		for _, b := range namedChildren(n.ChildByFieldName("bounds")) {
			t.Bases = append(t.Bases, stripTypeArgs(w.text(b)))
		}
		for _, m := range namedChildren(body) {
			switch m.Kind() {
			case "function_signature_item", "function_item":
				meth := e.function(w, m, syntax.KindMethod, depth+1)
				if meth != nil {
					meth.Exported = t.Exported
				}
				t.Add(meth)
			}
		}
	}
	return t
}

// impl attaches the methods of an impl block to its type when the type is
// declared in the same file, and otherwise to the module with a receiver.
func (e *rsExtractor) impl(w *tsWalker, st *rsState, n *tree_sitter.Node) {
	typeName := stripTypeArgs(w.field(n, "type"))
	if typeName == "" {
		return
	}
	owner, local := st.types[typeName]
	if trait := stripTypeArgs(w.field(n, "trait")); trait != "" && local {
		owner.Implements = append(owner.Implements, trait)
	}

	for _, c := range namedChildren(n.ChildByFieldName("body")) {
		if c.Kind() != "function_item" {
			continue
		}
		meth := e.function(w, c, syntax.KindMethod, 2)
		if meth == nil {
			continue
		}
		if local {
			owner.Add(meth)
			continue
		}
		meth.Receiver = typeName
		w.root.Add(meth)
	}
}

// use maps a use declaration. The Source is the path prefix and Names are
// the bound items: `use a::b::{C, D}` imports C and D from a::b.
func (e *rsExtractor) use(w *tsWalker, n *tree_sitter.Node) *syntax.Node {
	arg := n.ChildByFieldName("argument")
	if arg == nil {
		return nil
	}
	imp := newNode(syntax.KindImport, firstLine(w.text(arg)), n)

	switch arg.Kind() {
	case "scoped_use_list":
		imp.Source = w.field(arg, "path")
		for _, item := range namedChildren(arg.ChildByFieldName("list")) {
			switch item.Kind() {
			case "use_as_clause":
				imp.Names = append(imp.Names, lastSegment(w.field(item, "path")))
			case "self":
				imp.Names = append(imp.Names, lastSegment(imp.Source))
			default:
				imp.Names = append(imp.Names, lastSegment(w.text(item)))
			}
		}
	case "use_as_clause":
		p := w.field(arg, "path")
		imp.Source, imp.Names = splitPath(p)
		imp.Alias = w.field(arg, "alias")
	case "use_wildcard":
		imp.Source = strings.TrimSuffix(w.text(arg), "::*")
		imp.Names = []string{"*"}
	default:
		imp.Source, imp.Names = splitPath(w.text(arg))
	}
	if imp.Source == "" {
		imp.Source = imp.Name
	}
	return imp
}

func (e *rsExtractor) attribute(w *tsWalker, n *tree_sitter.Node) *syntax.Node {
	kids := namedChildren(n)
	if len(kids) == 0 {
		return nil
	}
	name, _, _ := strings.Cut(w.text(kids[0]), "(")
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return newNode(syntax.KindDecorator, name, n)
}

func (e *rsExtractor) visibility(w *tsWalker, node *syntax.Node, n *tree_sitter.Node) {
	node.Visibility = "private"
	for _, c := range namedChildren(n) {
		if c.Kind() == "visibility_modifier" {
			node.Visibility = w.text(c)
			node.Exported = true
			return
		}
	}
}

// splitPath turns "a::b::C" into ("a::b", ["C"]). A single segment is its
// own source.
func splitPath(p string) (string, []string) {
	i := strings.LastIndex(p, "::")
	if i < 0 {
		return p, nil
	}
	return p[:i], []string{p[i+2:]}
}

func lastSegment(p string) string {
	if i := strings.LastIndex(p, "::"); i >= 0 {
		return p[i+2:]
	}
	return p
}
