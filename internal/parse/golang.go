package parse

import (
	"context"
	"errors"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"go/types"
	"strconv"
	"strings"

	"github.com/dusk-indust/codegraph/internal/syntax"
)

// goPlugin parses Go in process with go/parser.
type goPlugin struct{}

var _ Plugin = (*goPlugin)(nil)

// NewGoPlugin returns the native Go plugin.
func NewGoPlugin() Plugin { return &goPlugin{} }

func (p *goPlugin) Language() syntax.Language { return syntax.Go }

func (p *goPlugin) CanParse(path string) bool {
	lang, ok := syntax.LanguageForPath(path)
	return ok && lang == syntax.Go
}

func (p *goPlugin) Parse(ctx context.Context, src SourceUnit) ParsedUnit {
	if err := ctx.Err(); err != nil {
		return failed(src, "parse cancelled: %v", err)
	}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, src.RelPath, src.Content, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		var list scanner.ErrorList
		if errors.As(err, &list) && len(list) > 0 {
			return failed(src, "syntax error at line %d: %s", list[0].Pos.Line, list[0].Msg)
		}
		return failed(src, "syntax error: %v", err)
	}
	g := &goExtractor{fset: fset}
	return succeeded(src, g.file(f))
}

type goExtractor struct {
	fset *token.FileSet
}

func (g *goExtractor) node(kind syntax.Kind, name string, n ast.Node) *syntax.Node {
	return &syntax.Node{
		Kind:      kind,
		Name:      name,
		StartLine: g.fset.Position(n.Pos()).Line,
		EndLine:   g.fset.Position(n.End()).Line,
	}
}

func (g *goExtractor) file(f *ast.File) *syntax.Node {
	pkg := g.node(syntax.KindPackage, f.Name.Name, f)
	pkg.StartLine = 1
	pkg.Docstring = docLine(f.Doc)

	for _, spec := range f.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		imp := g.node(syntax.KindImport, path, spec)
		imp.Source = path
		if spec.Name != nil {
			imp.Alias = spec.Name.Name
		}
		pkg.Add(imp)
	}

	// Types first so methods declared before their receiver still attach.
	owners := make(map[string]*syntax.Node)
	for _, decl := range f.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts := spec.(*ast.TypeSpec)
			t := g.typeSpec(ts, gd.Doc)
			owners[t.Name] = t
			pkg.Add(t)
		}
	}

	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			fn := g.funcDecl(d)
			if fn.Receiver == "" {
				pkg.Add(fn)
			} else if owner, ok := owners[fn.Receiver]; ok {
				owner.Add(fn)
			} else {
				pkg.Add(fn)
			}
		case *ast.GenDecl:
			if d.Tok == token.VAR || d.Tok == token.CONST {
				pkg.Add(g.values(d)...)
			}
		}
	}
	return pkg
}

func (g *goExtractor) typeSpec(ts *ast.TypeSpec, groupDoc *ast.CommentGroup) *syntax.Node {
	doc := ts.Doc
	if doc == nil {
		doc = groupDoc
	}
	var t *syntax.Node
	switch typ := ts.Type.(type) {
	case *ast.StructType:
		t = g.node(syntax.KindStruct, ts.Name.Name, ts)
		for _, field := range typ.Fields.List {
			typeStr := types.ExprString(field.Type)
			if len(field.Names) == 0 {
				t.Bases = append(t.Bases, strings.TrimPrefix(typeStr, "*"))
				continue
			}
			for _, name := range field.Names {
				f := g.node(syntax.KindField, name.Name, field)
				f.TypeAnnotation = typeStr
				setGoVisibility(f)
				t.Add(f)
			}
		}

	case *ast.InterfaceType:
		t = g.node(syntax.KindInterface, ts.Name.Name, ts)
		for _, m := range typ.Methods.List {
			ft, isFunc := m.Type.(*ast.FuncType)
			if !isFunc || len(m.Names) == 0 {
				t.Bases = append(t.Bases, types.ExprString(m.Type))
				continue
			}
			for _, name := range m.Names {
				meth := g.node(syntax.KindMethod, name.Name, m)
				meth.Signature = name.Name + strings.TrimPrefix(types.ExprString(ft), "func")
				meth.IsAbstract = true
				meth.Docstring = docLine(m.Doc)
				setGoVisibility(meth)
				meth.Add(g.params(ft.Params)...)
				t.Add(meth)
			}
		}

	default:
		// Defined types and aliases can own methods, so they are modeled as
		// structs carrying the underlying type.
		t = g.node(syntax.KindStruct, ts.Name.Name, ts)
		t.TypeAnnotation = types.ExprString(ts.Type)
		if ts.Assign.IsValid() {
			t.Modifiers = []string{"alias"}
		} else {
			t.Modifiers = []string{"defined"}
		}
	}
	t.Docstring = docLine(doc)
	setGoVisibility(t)
	return t
}

func (g *goExtractor) funcDecl(d *ast.FuncDecl) *syntax.Node {
	fn := g.node(syntax.KindFunction, d.Name.Name, d)
	if d.Recv != nil && len(d.Recv.List) > 0 {
		fn.Kind = syntax.KindMethod
		fn.Receiver = receiverType(d.Recv.List[0].Type)
	}
	fn.Signature = d.Name.Name + strings.TrimPrefix(types.ExprString(d.Type), "func")
	fn.Docstring = docLine(d.Doc)
	setGoVisibility(fn)
	fn.Add(g.params(d.Type.Params)...)
	if d.Body == nil {
		return fn
	}

	fn.Complexity = 1
	ast.Inspect(d.Body, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.IfStmt, *ast.ForStmt, *ast.RangeStmt:
			fn.Complexity++
		case *ast.CaseClause:
			if x.List != nil {
				fn.Complexity++
			}
		case *ast.CommClause:
			if x.Comm != nil {
				fn.Complexity++
			}
		case *ast.BinaryExpr:
			if x.Op == token.LAND || x.Op == token.LOR {
				fn.Complexity++
			}
		case *ast.CallExpr:
			if name := callName(x.Fun); name != "" {
				fn.Add(g.node(syntax.KindCall, name, x))
			}
		}
		return true
	})
	return fn
}

func (g *goExtractor) params(fields *ast.FieldList) []*syntax.Node {
	if fields == nil {
		return nil
	}
	var out []*syntax.Node
	for _, field := range fields.List {
		typeStr := types.ExprString(field.Type)
		for _, name := range field.Names {
			if name.Name == "_" {
				continue
			}
			p := g.node(syntax.KindParameter, name.Name, field)
			p.TypeAnnotation = typeStr
			out = append(out, p)
		}
	}
	return out
}

func (g *goExtractor) values(d *ast.GenDecl) []*syntax.Node {
	var out []*syntax.Node
	for _, spec := range d.Specs {
		vs := spec.(*ast.ValueSpec)
		for i, name := range vs.Names {
			if name.Name == "_" {
				continue
			}
			v := g.node(syntax.KindVariable, name.Name, vs)
			v.Modifiers = []string{d.Tok.String()}
			if vs.Type != nil {
				v.TypeAnnotation = types.ExprString(vs.Type)
			}
			if i < len(vs.Values) {
				v.DefaultValue = firstLine(types.ExprString(vs.Values[i]))
			}
			doc := vs.Doc
			if doc == nil {
				doc = d.Doc
			}
			v.Docstring = docLine(doc)
			setGoVisibility(v)
			out = append(out, v)
		}
	}
	return out
}

func setGoVisibility(n *syntax.Node) {
	n.Exported = ast.IsExported(n.Name)
	if n.Exported {
		n.Visibility = "public"
	} else {
		n.Visibility = "package"
	}
}

// receiverType returns the base type name of a method receiver, without
// pointer or type parameters.
func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverType(t.X)
	case *ast.IndexExpr:
		return receiverType(t.X)
	case *ast.IndexListExpr:
		return receiverType(t.X)
	}
	return ""
}

// callName renders a callee as written, e.g. "fmt.Println" or "s.store.Get".
// Calls of function literals and call results are skipped.
func callName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.SelectorExpr:
		if x := callName(e.X); x != "" {
			return x + "." + e.Sel.Name
		}
		return ""
	case *ast.IndexExpr:
		return callName(e.X)
	case *ast.IndexListExpr:
		return callName(e.X)
	case *ast.ParenExpr:
		return callName(e.X)
	}
	return ""
}

func docLine(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	return firstLine(doc.Text())
}
