package parse

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codegraph/internal/syntax"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const fixtures = "../../testdata/fixtures"

// parseFixture runs plugin over a fixture file. rel is relative to the
// fixture project directory.
func parseFixture(t *testing.T, plugin Plugin, project, rel string) ParsedUnit {
	t.Helper()
	path := filepath.Join(fixtures, project, rel)
	content, err := os.ReadFile(path)
	require.NoError(t, err, "reading fixture %s", path)
	src := SourceUnit{
		Path:      path,
		RelPath:   rel,
		Language:  plugin.Language(),
		SizeBytes: int64(len(content)),
		LineCount: countLines(content),
		Content:   content,
	}
	pu := plugin.Parse(context.Background(), src)
	require.True(t, pu.Success, "parse %s: %s", rel, pu.Diagnostic)
	require.NotNil(t, pu.Tree)
	return pu
}

func parseSource(plugin Plugin, rel, content string) ParsedUnit {
	return plugin.Parse(context.Background(), SourceUnit{
		Path:     rel,
		RelPath:  rel,
		Language: plugin.Language(),
		Content:  []byte(content),
	})
}

// find returns the first node of kind named name anywhere under root.
func find(root *syntax.Node, kind syntax.Kind, name string) *syntax.Node {
	var out *syntax.Node
	_ = syntax.Walk(root, func(n, _ *syntax.Node) bool {
		if out == nil && n.Kind == kind && n.Name == name {
			out = n
		}
		return out == nil
	})
	return out
}

// childrenOf returns the direct children of n with the given kind.
func childrenOf(n *syntax.Node, kind syntax.Kind) []*syntax.Node {
	var out []*syntax.Node
	for _, c := range n.Children {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func names(nodes []*syntax.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}

func assertSpan(t *testing.T, n *syntax.Node) {
	t.Helper()
	assert.Greater(t, n.StartLine, 0, "StartLine should be > 0 for %s", n.Name)
	assert.LessOrEqual(t, n.StartLine, n.EndLine, "StartLine <= EndLine for %s", n.Name)
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestDefaultRegistry_Languages(t *testing.T) {
	r := DefaultRegistry(ToolOptions{})
	assert.ElementsMatch(t, syntax.Languages(), r.Languages())

	_, err := r.Lookup("cobol")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	for _, st := range r.Status() {
		switch st.Language {
		case syntax.Java, syntax.Kotlin, syntax.Dart:
			assert.False(t, st.Available, "%s has no tool configured", st.Language)
			assert.Contains(t, st.Error, "no "+string(st.Language)+" parser command configured")
		default:
			assert.True(t, st.Available, st.Language)
		}
	}
}

func TestPlugins_CanParse(t *testing.T) {
	tests := []struct {
		plugin Plugin
		path   string
		want   bool
	}{
		{NewPythonPlugin(), "a/b.py", true},
		{NewPythonPlugin(), "a/b.go", false},
		{NewTypeScriptPlugin(), "x.tsx", true},
		{NewTypeScriptPlugin(), "x.d.ts", false},
		{NewJavaScriptPlugin(), "x.mjs", true},
		{NewRustPlugin(), "lib.rs", true},
		{NewGoPlugin(), "main.go", true},
		{NewExternalPlugin(syntax.Kotlin, ToolCommand{}, 0, false), "build.gradle.kts", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.plugin.Language())+"/"+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.plugin.CanParse(tt.path))
		})
	}
}

// ---------------------------------------------------------------------------
// Python
// ---------------------------------------------------------------------------

func TestPythonPlugin_Models(t *testing.T) {
	pu := parseFixture(t, NewPythonPlugin(), "python_project", "app/models.py")
	root := pu.Tree

	assert.Equal(t, syntax.KindModule, root.Kind)
	assert.Equal(t, "app.models", root.Name)
	assert.Equal(t, "Domain models.", root.Docstring)
	assert.Equal(t, syntax.Count(root), pu.NodeCount)

	imp := find(root, syntax.KindImport, "abc")
	require.NotNil(t, imp)
	assert.Equal(t, "abc", imp.Source)
	assert.Equal(t, []string{"ABC", "abstractmethod"}, imp.Names)

	v := find(root, syntax.KindVariable, "DEFAULT_QUANTITY")
	require.NotNil(t, v)
	assert.Equal(t, "1", v.DefaultValue)

	item := find(root, syntax.KindClass, "Item")
	require.NotNil(t, item)
	assertSpan(t, item)
	assert.Equal(t, []string{"ABC"}, item.Bases)
	assert.True(t, item.IsAbstract)
	assert.Equal(t, "Base inventory item.", item.Docstring)
	assert.Equal(t, []string{"kind"}, names(childrenOf(item, syntax.KindField)))

	ctor := childrenOf(item, syntax.KindConstructor)
	require.Len(t, ctor, 1)
	params := childrenOf(ctor[0], syntax.KindParameter)
	assert.Equal(t, []string{"name", "quantity"}, names(params))
	assert.Equal(t, "DEFAULT_QUANTITY", params[1].DefaultValue)

	price := find(item, syntax.KindMethod, "price")
	require.NotNil(t, price)
	assert.True(t, price.IsAbstract)
	assert.Equal(t, []string{"abstractmethod"}, names(childrenOf(price, syntax.KindDecorator)))
	assert.Equal(t, "price(self) -> float", price.Signature)

	audit := find(item, syntax.KindMethod, "_audit")
	require.NotNil(t, audit)
	assert.False(t, audit.Exported)
	assert.Equal(t, "protected", audit.Visibility)

	widget := find(root, syntax.KindClass, "Widget")
	require.NotNil(t, widget)
	assert.Equal(t, []string{"Item"}, widget.Bases)
	wprice := find(widget, syntax.KindMethod, "price")
	require.NotNil(t, wprice)
	assert.Equal(t, 3, wprice.Complexity, "if + boolean operator")
}

func TestPythonPlugin_Service(t *testing.T) {
	pu := parseFixture(t, NewPythonPlugin(), "python_project", "app/service.py")
	root := pu.Tree

	models := find(root, syntax.KindImport, "app.models")
	require.NotNil(t, models)
	assert.Equal(t, []string{"Item", "Widget"}, models.Names)
	assert.NotNil(t, find(root, syntax.KindImport, "logging"))

	load := find(root, syntax.KindFunction, "load")
	require.NotNil(t, load)
	assert.True(t, load.IsAsync)
	p := childrenOf(load, syntax.KindParameter)
	require.Len(t, p, 1)
	assert.Equal(t, "list", p[0].TypeAnnotation)

	total := find(root, syntax.KindFunction, "total")
	require.NotNil(t, total)
	assert.Equal(t, 2, total.Complexity)
	assert.ElementsMatch(t, []string{"item.price", "logging.info"}, names(childrenOf(total, syntax.KindCall)))

	helper := find(root, syntax.KindFunction, "helper")
	require.NotNil(t, helper)
	assert.True(t, helper.IsStatic)
	assert.Equal(t, []string{"total"}, names(childrenOf(helper, syntax.KindCall)))
}

func TestPythonPlugin_SyntaxError(t *testing.T) {
	path := filepath.Join(fixtures, "python_project", "app", "broken.py")
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	pu := parseSource(NewPythonPlugin(), "app/broken.py", string(content))
	assert.False(t, pu.Success)
	assert.Nil(t, pu.Tree)
	assert.Contains(t, pu.Diagnostic, "syntax error at line 1")
}

// ---------------------------------------------------------------------------
// TypeScript / JavaScript
// ---------------------------------------------------------------------------

func TestTypeScriptPlugin_Models(t *testing.T) {
	pu := parseFixture(t, NewTypeScriptPlugin(), "ts_project", "src/models.ts")
	root := pu.Tree
	assert.Equal(t, "src/models", root.Name)

	shape := find(root, syntax.KindInterface, "Shape")
	require.NotNil(t, shape)
	assert.True(t, shape.Exported)
	assert.Equal(t, []string{"area"}, names(childrenOf(shape, syntax.KindMethod)))
	assert.Equal(t, []string{"name"}, names(childrenOf(shape, syntax.KindField)))

	color := find(root, syntax.KindEnum, "Color")
	require.NotNil(t, color)
	assert.Equal(t, []string{"Red", "Green"}, names(childrenOf(color, syntax.KindField)))

	base := find(root, syntax.KindClass, "Base")
	require.NotNil(t, base)
	assert.True(t, base.IsAbstract)
	assert.Equal(t, []string{"Shape"}, base.Implements)

	circle := find(root, syntax.KindClass, "Circle")
	require.NotNil(t, circle)
	assertSpan(t, circle)
	assert.Equal(t, []string{"Base"}, circle.Bases)

	radius := find(circle, syntax.KindField, "radius")
	require.NotNil(t, radius)
	assert.Equal(t, "private", radius.Visibility)
	assert.Equal(t, "number", radius.TypeAnnotation)

	ctor := childrenOf(circle, syntax.KindConstructor)
	require.Len(t, ctor, 1)
	assert.Equal(t, []string{"radius"}, names(childrenOf(ctor[0], syntax.KindParameter)))

	unit := find(circle, syntax.KindMethod, "unit")
	require.NotNil(t, unit)
	assert.True(t, unit.IsStatic)
	assert.Equal(t, []string{"Circle"}, names(childrenOf(unit, syntax.KindCall)))

	var exported []string
	for _, e := range childrenOf(root, syntax.KindExport) {
		exported = append(exported, e.Names...)
	}
	assert.ElementsMatch(t, []string{"Shape", "Color", "Base", "Circle"}, exported)
}

func TestTypeScriptPlugin_Service(t *testing.T) {
	pu := parseFixture(t, NewTypeScriptPlugin(), "ts_project", "src/service.ts")
	root := pu.Tree

	models := find(root, syntax.KindImport, "./models")
	require.NotNil(t, models)
	assert.Equal(t, []string{"Circle", "Shape"}, models.Names)

	pathImp := find(root, syntax.KindImport, "path")
	require.NotNil(t, pathImp)
	assert.Equal(t, "path", pathImp.Alias)
	assert.Equal(t, []string{"*"}, pathImp.Names)

	describe := find(root, syntax.KindFunction, "describe")
	require.NotNil(t, describe, "arrow function bound to a const")
	assert.True(t, describe.Exported)

	total := find(root, syntax.KindFunction, "totalArea")
	require.NotNil(t, total)
	assert.True(t, total.IsAsync)
	params := childrenOf(total, syntax.KindParameter)
	require.Len(t, params, 2)
	assert.Equal(t, "Shape[]", params[0].TypeAnnotation)
	assert.Equal(t, "1", params[1].DefaultValue)
	assert.Equal(t, 3, total.Complexity, "for-of + ternary")

	mk := find(root, syntax.KindFunction, "makeCircles")
	require.NotNil(t, mk)
	assert.False(t, mk.Exported)
	assert.Contains(t, names(childrenOf(mk, syntax.KindCall)), "Circle.unit")

	clause := find(root, syntax.KindExport, "makeCircles")
	require.NotNil(t, clause)
	assert.Equal(t, []string{"makeCircles"}, clause.Names)
}

func TestJavaScriptPlugin(t *testing.T) {
	plugin := NewJavaScriptPlugin()

	t.Run("util.js", func(t *testing.T) {
		root := parseFixture(t, plugin, "js_project", "util.js").Tree

		clamp := find(root, syntax.KindFunction, "clamp")
		require.NotNil(t, clamp)
		assert.Equal(t, []string{"value", "min", "max"}, names(childrenOf(clamp, syntax.KindParameter)))
		assert.Equal(t, 3, clamp.Complexity)

		counter := find(root, syntax.KindClass, "Counter")
		require.NotNil(t, counter)
		assert.Len(t, childrenOf(counter, syntax.KindConstructor), 1)
		inc := find(counter, syntax.KindMethod, "increment")
		require.NotNil(t, inc)
		assert.Equal(t, []string{"clamp"}, names(childrenOf(inc, syntax.KindCall)))
	})

	t.Run("index.js", func(t *testing.T) {
		root := parseFixture(t, plugin, "js_project", "index.js").Tree

		req := find(root, syntax.KindImport, "./util")
		require.NotNil(t, req, "require() call")
		assert.Equal(t, "util", req.Alias)

		helpers := find(root, syntax.KindImport, "./helpers.js")
		require.NotNil(t, helpers)
		assert.Equal(t, []string{"Default", "helper"}, helpers.Names)

		assert.NotNil(t, find(root, syntax.KindVariable, "counter"))

		run := find(root, syntax.KindFunction, "run")
		require.NotNil(t, run)
		assert.True(t, run.Exported)
		p := childrenOf(run, syntax.KindParameter)
		require.Len(t, p, 1)
		assert.Equal(t, "times", p[0].Name)
		assert.Equal(t, "1", p[0].DefaultValue)
	})
}

// ---------------------------------------------------------------------------
// Rust
// ---------------------------------------------------------------------------

func TestRustPlugin(t *testing.T) {
	plugin := NewRustPlugin()

	t.Run("shape.rs", func(t *testing.T) {
		root := parseFixture(t, plugin, "rust_project", "src/shape.rs").Tree
		assert.Equal(t, "src::shape", root.Name)

		use := find(root, syntax.KindImport, "std::fmt::{self, Display}")
		require.NotNil(t, use)
		assert.Equal(t, "std::fmt", use.Source)
		assert.Contains(t, use.Names, "Display")

		trait := find(root, syntax.KindTrait, "Shape")
		require.NotNil(t, trait)
		assert.Equal(t, []string{"Display"}, trait.Bases)
		area := find(trait, syntax.KindMethod, "area")
		require.NotNil(t, area)
		assert.True(t, area.IsAbstract)
		name := find(trait, syntax.KindMethod, "name")
		require.NotNil(t, name)
		assert.False(t, name.IsAbstract)

		circle := find(root, syntax.KindStruct, "Circle")
		require.NotNil(t, circle)
		assert.True(t, circle.Exported)
		assert.Equal(t, []string{"derive"}, names(childrenOf(circle, syntax.KindDecorator)))
		fields := childrenOf(circle, syntax.KindField)
		require.Len(t, fields, 2)
		assert.True(t, fields[0].Exported)
		assert.False(t, fields[1].Exported)
		assert.ElementsMatch(t, []string{"Shape", "Display"}, circle.Implements)

		methods := childrenOf(circle, syntax.KindMethod)
		assert.ElementsMatch(t, []string{"new", "area", "fmt"}, names(methods))
		newFn := find(circle, syntax.KindMethod, "new")
		require.NotNil(t, newFn)
		assert.True(t, newFn.IsStatic)
		implArea := find(circle, syntax.KindMethod, "area")
		require.NotNil(t, implArea)
		assert.Equal(t, 3, implArea.Complexity)

		kind := find(root, syntax.KindEnum, "Kind")
		require.NotNil(t, kind)
		assert.Equal(t, []string{"Round", "Square"}, names(childrenOf(kind, syntax.KindField)))
	})

	t.Run("lib.rs", func(t *testing.T) {
		root := parseFixture(t, plugin, "rust_project", "src/lib.rs").Tree

		use := find(root, syntax.KindImport, "crate::shape::Circle")
		require.NotNil(t, use)
		assert.Equal(t, "crate::shape", use.Source)
		assert.Equal(t, []string{"Circle"}, use.Names)

		assert.NotNil(t, find(root, syntax.KindVariable, "MAX_SHAPES"))

		total := find(root, syntax.KindFunction, "total")
		require.NotNil(t, total)
		assert.True(t, total.Exported)
		assert.Equal(t, []string{"helper"}, names(childrenOf(total, syntax.KindCall)))

		helper := find(root, syntax.KindFunction, "helper")
		require.NotNil(t, helper)
		assert.False(t, helper.Exported)
		assert.GreaterOrEqual(t, helper.Complexity, 3)
	})

	t.Run("impl for foreign type", func(t *testing.T) {
		pu := parseSource(plugin, "ext.rs", "impl Widget {\n    pub fn draw(&self) {}\n}\n")
		require.True(t, pu.Success, pu.Diagnostic)
		draw := find(pu.Tree, syntax.KindMethod, "draw")
		require.NotNil(t, draw)
		assert.Equal(t, "Widget", draw.Receiver)
	})
}

// ---------------------------------------------------------------------------
// Go
// ---------------------------------------------------------------------------

func TestGoPlugin(t *testing.T) {
	plugin := NewGoPlugin()

	t.Run("model.go", func(t *testing.T) {
		root := parseFixture(t, plugin, "go_project", "model.go").Tree
		assert.Equal(t, syntax.KindPackage, root.Kind)
		assert.Equal(t, "project", root.Name)

		user := find(root, syntax.KindStruct, "User")
		require.NotNil(t, user)
		assertSpan(t, user)
		assert.True(t, user.Exported)
		assert.Equal(t, "User represents a system user.", user.Docstring)
		assert.Equal(t, []string{"ID", "Name", "Email"}, names(childrenOf(user, syntax.KindField)))

		repo := find(root, syntax.KindInterface, "Repository")
		require.NotNil(t, repo)
		assert.Equal(t, []string{"FindByID", "Save"}, names(childrenOf(repo, syntax.KindMethod)))

		nu := find(root, syntax.KindFunction, "newUser")
		require.NotNil(t, nu)
		assert.False(t, nu.Exported)
		assert.Equal(t, "package", nu.Visibility)
		assert.Equal(t, []string{"name", "email"}, names(childrenOf(nu, syntax.KindParameter)))
	})

	t.Run("service.go", func(t *testing.T) {
		root := parseFixture(t, plugin, "go_project", "service.go").Tree

		imp := find(root, syntax.KindImport, "fmt")
		require.NotNil(t, imp)
		assert.Equal(t, "fmt", imp.Source)

		svc := find(root, syntax.KindStruct, "UserService")
		require.NotNil(t, svc)
		assert.ElementsMatch(t, []string{"GetUser", "CreateUser"}, names(childrenOf(svc, syntax.KindMethod)))

		get := find(svc, syntax.KindMethod, "GetUser")
		require.NotNil(t, get)
		assert.Equal(t, "UserService", get.Receiver)
		assert.Equal(t, 2, get.Complexity)
		assert.ElementsMatch(t, []string{"s.repo.FindByID", "fmt.Errorf"}, names(childrenOf(get, syntax.KindCall)))

		ctor := find(root, syntax.KindFunction, "NewUserService")
		require.NotNil(t, ctor)
		assert.Equal(t, "NewUserService(repo Repository) *UserService", ctor.Signature)
	})

	t.Run("syntax error", func(t *testing.T) {
		pu := parseSource(plugin, "bad.go", "package bad\n\nfunc {\n")
		assert.False(t, pu.Success)
		assert.Contains(t, pu.Diagnostic, "syntax error at line 3")
	})

	t.Run("method on foreign receiver", func(t *testing.T) {
		pu := parseSource(plugin, "m.go", "package m\n\nfunc (t *Thing) Do() {}\n")
		require.True(t, pu.Success)
		do := find(pu.Tree, syntax.KindMethod, "Do")
		require.NotNil(t, do)
		assert.Equal(t, "Thing", do.Receiver)
	})
}

func TestPlugins_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, p := range []Plugin{NewPythonPlugin(), NewGoPlugin()} {
		pu := p.Parse(ctx, SourceUnit{Path: "x", RelPath: "x", Content: []byte("x = 1\n")})
		assert.False(t, pu.Success)
		assert.Contains(t, pu.Diagnostic, "cancelled")
	}
}
