package parse

import (
	"path"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/dusk-indust/codegraph/internal/syntax"
)

// NewTypeScriptPlugin returns the tree-sitter TypeScript plugin. .tsx files
// use the TSX grammar.
func NewTypeScriptPlugin() Plugin {
	ts := tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	return &treeSitterPlugin{
		lang: syntax.TypeScript,
		grammars: map[string]*tree_sitter.Language{
			".ts":  ts,
			".tsx": tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()),
		},
		fallback: ts,
		ext:      &ecmaExtractor{},
	}
}

// NewJavaScriptPlugin returns the tree-sitter JavaScript plugin, which also
// serves .jsx, .mjs and .cjs files.
func NewJavaScriptPlugin() Plugin {
	return &treeSitterPlugin{
		lang:     syntax.JavaScript,
		fallback: tree_sitter.NewLanguage(tree_sitter_javascript.Language()),
		ext:      &ecmaExtractor{},
	}
}

var (
	ecmaStop = map[string]bool{
		"function_declaration":           true,
		"generator_function_declaration": true,
		"class_declaration":              true,
		"abstract_class_declaration":     true,
		"class":                          true,
		"method_definition":              true,
	}
	ecmaCalls = map[string]string{
		"call_expression": "function",
		"new_expression":  "constructor",
	}
	ecmaBranches = map[string]bool{
		"if_statement":       true,
		"for_statement":      true,
		"for_in_statement":   true,
		"while_statement":    true,
		"do_statement":       true,
		"switch_case":        true,
		"catch_clause":       true,
		"ternary_expression": true,
	}
)

// ecmaExtractor maps the TypeScript, TSX and JavaScript grammars onto
// syntax nodes. The JavaScript grammar is a subset of the TypeScript one for
// every construct handled here.
type ecmaExtractor struct{}

func (e *ecmaExtractor) Extract(w *tsWalker, root *tree_sitter.Node, filePath string) *syntax.Node {
	mod := newNode(syntax.KindModule, strings.TrimSuffix(filePath, path.Ext(filePath)), root)
	mod.StartLine = 1
	w.root = mod
	for _, c := range namedChildren(root) {
		e.statement(w, c, mod, false, nil, 1)
	}
	return mod
}

func (e *ecmaExtractor) statement(w *tsWalker, n *tree_sitter.Node, parent *syntax.Node, exported bool, decos []*syntax.Node, depth int) {
	if w.tooDeep(depth) {
		return
	}
	top := parent == w.root

	switch n.Kind() {
	case "export_statement":
		decos := e.decorators(w, n)
		if decl := n.ChildByFieldName("declaration"); decl != nil {
			e.statement(w, decl, parent, true, decos, depth+1)
			if names := e.declaredNames(w, decl); len(names) > 0 {
				exp := newNode(syntax.KindExport, strings.Join(names, ","), n)
				exp.Names = names
				w.root.Add(exp)
			}
			return
		}
		w.root.Add(e.exportClause(w, n))

	case "import_statement":
		w.root.Add(e.importNode(w, n))

	case "function_declaration", "generator_function_declaration":
		parent.Add(e.function(w, n, w.field(n, "name"), n, exported, depth+1))

	case "class_declaration", "abstract_class_declaration":
		parent.Add(e.class(w, n, exported, decos, depth+1))

	case "interface_declaration":
		parent.Add(e.iface(w, n, exported))

	case "enum_declaration":
		parent.Add(e.enum(w, n, exported))

	case "lexical_declaration", "variable_declaration":
		parent.Add(e.variables(w, n, exported, top, depth+1)...)
	}
}

func (e *ecmaExtractor) function(w *tsWalker, n *tree_sitter.Node, name string, span *tree_sitter.Node, exported bool, depth int) *syntax.Node {
	if name == "" {
		return nil
	}
	fn := newNode(syntax.KindFunction, name, span)
	fn.Exported = exported
	fn.IsAsync = hasChild(n, "async")
	e.callable(w, fn, n, depth)
	return fn
}

// callable fills the parameters, signature, complexity, calls and nested
// declarations shared by functions and methods.
func (e *ecmaExtractor) callable(w *tsWalker, fn *syntax.Node, n *tree_sitter.Node, depth int) {
	params := n.ChildByFieldName("parameters")
	if params == nil {
		// Single-identifier arrow function: x => ...
		params = n.ChildByFieldName("parameter")
	}
	fn.Signature = fn.Name + w.text(params) + w.field(n, "return_type")
	fn.Add(e.parameters(w, params)...)

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	fn.Complexity = complexity(body, ecmaStop, func(c *tree_sitter.Node) bool {
		if ecmaBranches[c.Kind()] {
			return true
		}
		return c.Kind() == "binary_expression" && w.operatorIs(c, "&&", "||", "??")
	})
	fn.Add(w.collectCalls(body, ecmaStop, ecmaCalls)...)
	if body.Kind() == "statement_block" {
		for _, c := range namedChildren(body) {
			switch c.Kind() {
			case "function_declaration", "generator_function_declaration",
				"class_declaration", "abstract_class_declaration":
				e.statement(w, c, fn, false, nil, depth+1)
			}
		}
	}
}

func (e *ecmaExtractor) parameters(w *tsWalker, params *tree_sitter.Node) []*syntax.Node {
	if params == nil {
		return nil
	}
	if params.Kind() == "identifier" {
		return []*syntax.Node{newNode(syntax.KindParameter, w.text(params), params)}
	}
	var out []*syntax.Node
	for _, p := range namedChildren(params) {
		var name, typ, def string
		switch p.Kind() {
		case "required_parameter", "optional_parameter":
			name = w.field(p, "pattern")
			typ = strings.TrimSpace(strings.TrimPrefix(w.field(p, "type"), ":"))
			def = w.field(p, "value")
		case "identifier", "rest_pattern", "object_pattern", "array_pattern":
			name = w.text(p)
		case "assignment_pattern":
			name, def = w.field(p, "left"), w.field(p, "right")
		default:
			continue
		}
		if name == "" || name == "this" {
			continue
		}
		param := newNode(syntax.KindParameter, firstLine(name), p)
		param.TypeAnnotation = typ
		param.DefaultValue = firstLine(def)
		out = append(out, param)
	}
	return out
}

func (e *ecmaExtractor) class(w *tsWalker, n *tree_sitter.Node, exported bool, decos []*syntax.Node, depth int) *syntax.Node {
	name := w.field(n, "name")
	if name == "" {
		return nil
	}
	cls := newNode(syntax.KindClass, name, n)
	cls.Exported = exported
	cls.IsAbstract = n.Kind() == "abstract_class_declaration"
	cls.Add(decos...)
	cls.Add(e.decorators(w, n)...)

	for _, c := range namedChildren(n) {
		if c.Kind() != "class_heritage" {
			continue
		}
		for _, h := range namedChildren(c) {
			switch h.Kind() {
			case "extends_clause":
				if v := h.ChildByFieldName("value"); v != nil {
					cls.Bases = append(cls.Bases, stripTypeArgs(w.text(v)))
				} else if kids := namedChildren(h); len(kids) > 0 {
					cls.Bases = append(cls.Bases, stripTypeArgs(w.text(kids[0])))
				}
			case "implements_clause":
				for _, t := range namedChildren(h) {
					cls.Implements = append(cls.Implements, stripTypeArgs(w.text(t)))
				}
			default:
				// JavaScript: class_heritage holds the base expression directly.
				cls.Bases = append(cls.Bases, stripTypeArgs(w.text(h)))
			}
		}
	}

	var pending []*syntax.Node
	for _, m := range namedChildren(n.ChildByFieldName("body")) {
		switch m.Kind() {
		case "decorator":
			pending = append(pending, e.decorator(w, m))
			continue

		case "method_definition", "method_signature", "abstract_method_signature":
			mname := w.field(m, "name")
			if mname == "" {
				continue
			}
			kind := syntax.KindMethod
			if mname == "constructor" {
				kind = syntax.KindConstructor
			}
			meth := newNode(kind, mname, m)
			e.memberModifiers(w, meth, m)
			meth.IsAbstract = meth.IsAbstract || m.Kind() == "abstract_method_signature"
			meth.Add(pending...)
			meth.Add(e.decorators(w, m)...)
			e.callable(w, meth, m, depth+1)
			cls.Add(meth)

		case "public_field_definition", "field_definition":
			fname := w.field(m, "name")
			if fname == "" {
				fname = w.field(m, "property")
			}
			if fname == "" {
				continue
			}
			f := newNode(syntax.KindField, fname, m)
			e.memberModifiers(w, f, m)
			f.TypeAnnotation = strings.TrimSpace(strings.TrimPrefix(w.field(m, "type"), ":"))
			f.DefaultValue = firstLine(w.field(m, "value"))
			f.Add(pending...)
			cls.Add(f)
		}
		pending = nil
	}
	return cls
}

// memberModifiers copies accessibility and static/async/abstract/readonly
// keywords from a class member onto node.
func (e *ecmaExtractor) memberModifiers(w *tsWalker, node *syntax.Node, m *tree_sitter.Node) {
	node.Visibility = "public"
	for i := uint(0); i < m.ChildCount(); i++ {
		c := m.Child(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "accessibility_modifier":
			node.Visibility = w.text(c)
		case "static":
			node.IsStatic = true
			node.Modifiers = append(node.Modifiers, "static")
		case "async":
			node.IsAsync = true
			node.Modifiers = append(node.Modifiers, "async")
		case "abstract":
			node.IsAbstract = true
			node.Modifiers = append(node.Modifiers, "abstract")
		case "readonly":
			node.Modifiers = append(node.Modifiers, "readonly")
		case "private_property_identifier":
			node.Visibility = "private"
		}
	}
	node.Exported = node.Visibility == "public"
}

func (e *ecmaExtractor) iface(w *tsWalker, n *tree_sitter.Node, exported bool) *syntax.Node {
	name := w.field(n, "name")
	if name == "" {
		return nil
	}
	it := newNode(syntax.KindInterface, name, n)
	it.Exported = exported
	for _, c := range namedChildren(n) {
		if c.Kind() != "extends_type_clause" {
			continue
		}
		for _, t := range namedChildren(c) {
			it.Bases = append(it.Bases, stripTypeArgs(w.text(t)))
		}
	}
	for _, m := range namedChildren(n.ChildByFieldName("body")) {
		mname := w.field(m, "name")
		if mname == "" {
			continue
		}
		switch m.Kind() {
		case "property_signature":
			f := newNode(syntax.KindField, mname, m)
			f.TypeAnnotation = strings.TrimSpace(strings.TrimPrefix(w.field(m, "type"), ":"))
			f.Exported = true
			it.Add(f)
		case "method_signature":
			meth := newNode(syntax.KindMethod, mname, m)
			meth.Exported = true
			meth.IsAbstract = true
			e.callable(w, meth, m, 0)
			it.Add(meth)
		}
	}
	return it
}

func (e *ecmaExtractor) enum(w *tsWalker, n *tree_sitter.Node, exported bool) *syntax.Node {
	name := w.field(n, "name")
	if name == "" {
		return nil
	}
	en := newNode(syntax.KindEnum, name, n)
	en.Exported = exported
	for _, m := range namedChildren(n.ChildByFieldName("body")) {
		var mname string
		switch m.Kind() {
		case "property_identifier":
			mname = w.text(m)
		case "enum_assignment":
			mname = w.field(m, "name")
		}
		if mname != "" {
			f := newNode(syntax.KindField, mname, m)
			f.Exported = exported
			f.IsStatic = true
			en.Add(f)
		}
	}
	return en
}

// variables maps declarators: function-valued ones become functions,
// require() calls become imports, and the rest become top-level variables.
func (e *ecmaExtractor) variables(w *tsWalker, n *tree_sitter.Node, exported, top bool, depth int) []*syntax.Node {
	var out []*syntax.Node
	keyword := ""
	if first := n.Child(0); first != nil {
		keyword = first.Kind()
	}
	for _, d := range namedChildren(n) {
		if d.Kind() != "variable_declarator" {
			continue
		}
		nameNode := d.ChildByFieldName("name")
		if nameNode == nil || nameNode.Kind() != "identifier" {
			continue
		}
		name := w.text(nameNode)
		value := d.ChildByFieldName("value")

		if value != nil {
			switch value.Kind() {
			case "arrow_function", "function_expression", "function", "generator_function":
				fn := e.function(w, value, name, d, exported, depth)
				if fn != nil {
					fn.IsAsync = hasChild(value, "async")
				}
				out = append(out, fn)
				continue
			case "call_expression":
				if imp := e.requireCall(w, value, name); imp != nil {
					w.root.Add(imp)
					continue
				}
			}
		}
		if !top {
			continue
		}
		v := newNode(syntax.KindVariable, name, d)
		v.Exported = exported
		v.TypeAnnotation = strings.TrimSpace(strings.TrimPrefix(w.field(d, "type"), ":"))
		v.DefaultValue = firstLine(w.text(value))
		if keyword != "" {
			v.Modifiers = []string{keyword}
		}
		out = append(out, v)
	}
	return out
}

// requireCall recognizes `const x = require("mod")`.
func (e *ecmaExtractor) requireCall(w *tsWalker, call *tree_sitter.Node, local string) *syntax.Node {
	if w.field(call, "function") != "require" {
		return nil
	}
	args := namedChildren(call.ChildByFieldName("arguments"))
	if len(args) != 1 || args[0].Kind() != "string" {
		return nil
	}
	src := unquote(w.text(args[0]))
	imp := newNode(syntax.KindImport, src, call)
	imp.Source = src
	imp.Alias = local
	return imp
}

func (e *ecmaExtractor) importNode(w *tsWalker, n *tree_sitter.Node) *syntax.Node {
	src := unquote(w.field(n, "source"))
	if src == "" {
		return nil
	}
	imp := newNode(syntax.KindImport, src, n)
	imp.Source = src
	for _, c := range namedChildren(n) {
		if c.Kind() != "import_clause" {
			continue
		}
		for _, ic := range namedChildren(c) {
			switch ic.Kind() {
			case "identifier":
				imp.Names = append(imp.Names, w.text(ic))
			case "namespace_import":
				imp.Names = append(imp.Names, "*")
				if kids := namedChildren(ic); len(kids) > 0 {
					imp.Alias = w.text(kids[0])
				}
			case "named_imports":
				for _, spec := range namedChildren(ic) {
					if spec.Kind() == "import_specifier" {
						imp.Names = append(imp.Names, w.field(spec, "name"))
					}
				}
			}
		}
	}
	return imp
}

func (e *ecmaExtractor) exportClause(w *tsWalker, n *tree_sitter.Node) *syntax.Node {
	exp := newNode(syntax.KindExport, "", n)
	exp.Source = unquote(w.field(n, "source"))
	for _, c := range namedChildren(n) {
		switch c.Kind() {
		case "export_clause":
			for _, spec := range namedChildren(c) {
				if spec.Kind() == "export_specifier" {
					exp.Names = append(exp.Names, w.field(spec, "name"))
				}
			}
		case "namespace_export":
			exp.Names = append(exp.Names, "*")
		case "identifier":
			exp.Names = append(exp.Names, w.text(c))
		}
	}
	if hasChild(n, "default") && len(exp.Names) == 0 {
		exp.Names = []string{"default"}
	}
	if hasChild(n, "*") && len(exp.Names) == 0 {
		exp.Names = []string{"*"}
	}
	exp.Name = strings.Join(exp.Names, ",")
	if exp.Name == "" {
		exp.Name = exp.Source
	}
	return exp
}

func (e *ecmaExtractor) decorators(w *tsWalker, n *tree_sitter.Node) []*syntax.Node {
	var out []*syntax.Node
	for _, c := range namedChildren(n) {
		if c.Kind() == "decorator" {
			out = append(out, e.decorator(w, c))
		}
	}
	return out
}

func (e *ecmaExtractor) decorator(w *tsWalker, d *tree_sitter.Node) *syntax.Node {
	kids := namedChildren(d)
	if len(kids) == 0 {
		return nil
	}
	expr := kids[0]
	if expr.Kind() == "call_expression" {
		expr = expr.ChildByFieldName("function")
	}
	name := w.text(expr)
	if name == "" {
		return nil
	}
	return newNode(syntax.KindDecorator, name, d)
}

// declaredNames returns the names a declaration binds.
func (e *ecmaExtractor) declaredNames(w *tsWalker, decl *tree_sitter.Node) []string {
	switch decl.Kind() {
	case "lexical_declaration", "variable_declaration":
		var names []string
		for _, d := range namedChildren(decl) {
			if d.Kind() == "variable_declarator" {
				if nm := d.ChildByFieldName("name"); nm != nil && nm.Kind() == "identifier" {
					names = append(names, w.text(nm))
				}
			}
		}
		return names
	default:
		if name := w.field(decl, "name"); name != "" {
			return []string{name}
		}
		return nil
	}
}

func unquote(s string) string {
	return strings.Trim(s, "\"'`")
}

// stripTypeArgs turns "Base<T>" into "Base".
func stripTypeArgs(s string) string {
	if i := strings.IndexByte(s, '<'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
