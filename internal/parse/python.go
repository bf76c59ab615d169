package parse

import (
	"path"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/dusk-indust/codegraph/internal/syntax"
)

// NewPythonPlugin returns the tree-sitter Python plugin.
func NewPythonPlugin() Plugin {
	return &treeSitterPlugin{
		lang:     syntax.Python,
		fallback: tree_sitter.NewLanguage(tree_sitter_python.Language()),
		ext:      &pyExtractor{},
	}
}

type pyScope int

const (
	pyModuleScope pyScope = iota
	pyClassScope
	pyFunctionScope
)

var (
	pyStop = map[string]bool{
		"function_definition":  true,
		"class_definition":     true,
		"decorated_definition": true,
	}
	pyCalls    = map[string]string{"call": "function"}
	pyBranches = map[string]bool{
		"if_statement":           true,
		"elif_clause":            true,
		"for_statement":          true,
		"while_statement":        true,
		"except_clause":          true,
		"conditional_expression": true,
		"for_in_clause":          true,
		"if_clause":              true,
		"case_clause":            true,
		"boolean_operator":       true,
	}
	// Compound statements whose blocks may hold definitions or imports.
	pyCompound = map[string]bool{
		"if_statement":    true,
		"elif_clause":     true,
		"else_clause":     true,
		"try_statement":   true,
		"except_clause":   true,
		"finally_clause":  true,
		"with_statement":  true,
		"for_statement":   true,
		"while_statement": true,
		"block":           true,
		"match_statement": true,
		"case_clause":     true,
	}
)

// pyExtractor maps the tree-sitter Python grammar onto syntax nodes.
type pyExtractor struct{}

func (e *pyExtractor) Extract(w *tsWalker, root *tree_sitter.Node, filePath string) *syntax.Node {
	mod := newNode(syntax.KindModule, pyModuleName(filePath), root)
	mod.StartLine = 1
	mod.Docstring = w.pyDocstring(root)
	w.root = mod
	e.block(w, root, mod, pyModuleScope, 0)
	return mod
}

func (e *pyExtractor) block(w *tsWalker, node *tree_sitter.Node, parent *syntax.Node, scope pyScope, depth int) {
	if w.tooDeep(depth) {
		return
	}
	for _, c := range namedChildren(node) {
		switch c.Kind() {
		case "function_definition":
			parent.Add(e.function(w, c, nil, scope, depth+1))

		case "class_definition":
			parent.Add(e.class(w, c, nil, depth+1))

		case "decorated_definition":
			def := c.ChildByFieldName("definition")
			if def == nil {
				continue
			}
			decos := e.decorators(w, c)
			switch def.Kind() {
			case "function_definition":
				parent.Add(e.function(w, def, decos, scope, depth+1))
			case "class_definition":
				parent.Add(e.class(w, def, decos, depth+1))
			}

		case "import_statement", "import_from_statement":
			w.root.Add(e.imports(w, c)...)

		case "expression_statement":
			if scope != pyFunctionScope {
				parent.Add(e.assignments(w, c, scope)...)
			}

		default:
			if pyCompound[c.Kind()] {
				e.block(w, c, parent, scope, depth+1)
			}
		}
	}
}

func (e *pyExtractor) function(w *tsWalker, n *tree_sitter.Node, decos []*syntax.Node, scope pyScope, depth int) *syntax.Node {
	name := w.field(n, "name")
	if name == "" {
		return nil
	}
	kind := syntax.KindFunction
	if scope == pyClassScope {
		kind = syntax.KindMethod
		if name == "__init__" {
			kind = syntax.KindConstructor
		}
	}

	fn := newNode(kind, name, n)
	fn.Exported = isPyExported(name)
	fn.Visibility = pyVisibility(name)
	fn.IsAsync = hasChild(n, "async")

	params := n.ChildByFieldName("parameters")
	fn.Signature = name + w.text(params)
	if ret := w.field(n, "return_type"); ret != "" {
		fn.Signature += " -> " + ret
	}
	fn.Add(e.parameters(w, params)...)

	for _, d := range decos {
		switch d.Name {
		case "staticmethod":
			fn.IsStatic = true
		case "abstractmethod", "abc.abstractmethod":
			fn.IsAbstract = true
		}
		fn.Add(d)
	}

	body := n.ChildByFieldName("body")
	fn.Docstring = w.pyDocstring(body)
	fn.Complexity = complexity(body, pyStop, func(c *tree_sitter.Node) bool { return pyBranches[c.Kind()] })
	fn.Add(w.collectCalls(body, pyStop, pyCalls)...)
	if body != nil {
		e.block(w, body, fn, pyFunctionScope, depth+1)
	}
	return fn
}

func (e *pyExtractor) class(w *tsWalker, n *tree_sitter.Node, decos []*syntax.Node, depth int) *syntax.Node {
	name := w.field(n, "name")
	if name == "" {
		return nil
	}
	cls := newNode(syntax.KindClass, name, n)
	cls.Exported = isPyExported(name)
	cls.Visibility = pyVisibility(name)

	for _, arg := range namedChildren(n.ChildByFieldName("superclasses")) {
		switch arg.Kind() {
		case "identifier", "attribute":
			base := w.text(arg)
			cls.Bases = append(cls.Bases, base)
			if base == "ABC" || base == "abc.ABC" {
				cls.IsAbstract = true
			}
		}
	}
	cls.Add(decos...)

	body := n.ChildByFieldName("body")
	cls.Docstring = w.pyDocstring(body)
	if body != nil {
		e.block(w, body, cls, pyClassScope, depth+1)
	}
	return cls
}

func (e *pyExtractor) decorators(w *tsWalker, n *tree_sitter.Node) []*syntax.Node {
	var out []*syntax.Node
	for _, c := range namedChildren(n) {
		if c.Kind() != "decorator" {
			continue
		}
		kids := namedChildren(c)
		if len(kids) == 0 {
			continue
		}
		expr := kids[0]
		if expr.Kind() == "call" {
			expr = expr.ChildByFieldName("function")
		}
		if name := w.text(expr); name != "" {
			out = append(out, newNode(syntax.KindDecorator, name, c))
		}
	}
	return out
}

func (e *pyExtractor) parameters(w *tsWalker, params *tree_sitter.Node) []*syntax.Node {
	var out []*syntax.Node
	for _, p := range namedChildren(params) {
		var name, typ, def string
		switch p.Kind() {
		case "identifier":
			name = w.text(p)
		case "typed_parameter":
			if kids := namedChildren(p); len(kids) > 0 {
				name = w.text(kids[0])
			}
			typ = w.field(p, "type")
		case "default_parameter":
			name, def = w.field(p, "name"), w.field(p, "value")
		case "typed_default_parameter":
			name, typ, def = w.field(p, "name"), w.field(p, "type"), w.field(p, "value")
		case "list_splat_pattern", "dictionary_splat_pattern":
			name = w.text(p)
		default:
			continue
		}
		if name == "" || name == "self" || name == "cls" {
			continue
		}
		param := newNode(syntax.KindParameter, name, p)
		param.TypeAnnotation = typ
		param.DefaultValue = def
		out = append(out, param)
	}
	return out
}

func (e *pyExtractor) imports(w *tsWalker, n *tree_sitter.Node) []*syntax.Node {
	var out []*syntax.Node
	switch n.Kind() {
	case "import_statement":
		for _, c := range namedChildren(n) {
			switch c.Kind() {
			case "dotted_name":
				mod := w.text(c)
				imp := newNode(syntax.KindImport, mod, n)
				imp.Source = mod
				out = append(out, imp)
			case "aliased_import":
				mod, alias := w.field(c, "name"), w.field(c, "alias")
				imp := newNode(syntax.KindImport, mod, n)
				imp.Source, imp.Alias = mod, alias
				out = append(out, imp)
			}
		}

	case "import_from_statement":
		kids := namedChildren(n)
		if len(kids) == 0 {
			return nil
		}
		mod := w.text(kids[0])
		if mod == "" {
			return nil
		}
		imp := newNode(syntax.KindImport, mod, n)
		imp.Source = mod
		for _, c := range kids[1:] {
			switch c.Kind() {
			case "dotted_name":
				imp.Names = append(imp.Names, w.text(c))
			case "aliased_import":
				imp.Names = append(imp.Names, w.field(c, "name"))
			case "wildcard_import":
				imp.Names = append(imp.Names, "*")
			}
		}
		out = append(out, imp)
	}
	return out
}

// assignments maps module-level assignments to variables and class-level
// assignments to fields.
func (e *pyExtractor) assignments(w *tsWalker, n *tree_sitter.Node, scope pyScope) []*syntax.Node {
	var out []*syntax.Node
	for _, c := range namedChildren(n) {
		if c.Kind() != "assignment" {
			continue
		}
		left := c.ChildByFieldName("left")
		if left == nil || left.Kind() != "identifier" {
			continue
		}
		name := w.text(left)
		kind := syntax.KindVariable
		if scope == pyClassScope {
			kind = syntax.KindField
		}
		v := newNode(kind, name, c)
		v.Exported = isPyExported(name)
		v.TypeAnnotation = w.field(c, "type")
		v.DefaultValue = firstLine(w.field(c, "right"))
		out = append(out, v)
	}
	return out
}

// pyDocstring returns the first line of a leading string statement in body.
func (w *tsWalker) pyDocstring(body *tree_sitter.Node) string {
	kids := namedChildren(body)
	if len(kids) == 0 || kids[0].Kind() != "expression_statement" {
		return ""
	}
	inner := namedChildren(kids[0])
	if len(inner) == 0 || inner[0].Kind() != "string" {
		return ""
	}
	return firstLine(strings.Trim(w.text(inner[0]), "\"'rbuRBU"))
}

// pyModuleName converts a project-relative path into a dotted module name.
func pyModuleName(filePath string) string {
	p := strings.TrimSuffix(filePath, path.Ext(filePath))
	p = strings.TrimSuffix(p, "/__init__")
	return strings.ReplaceAll(strings.Trim(p, "/"), "/", ".")
}

// isPyExported returns true if the name does not start with an underscore.
func isPyExported(name string) bool {
	return !strings.HasPrefix(name, "_")
}

func pyVisibility(name string) string {
	switch {
	case strings.HasPrefix(name, "__") && !strings.HasSuffix(name, "__"):
		return "private"
	case strings.HasPrefix(name, "_"):
		return "protected"
	default:
		return "public"
	}
}
