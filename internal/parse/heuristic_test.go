package parse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codegraph/internal/syntax"
)

func scanFixture(t *testing.T, lang syntax.Language, project, rel string) *syntax.Node {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(fixtures, project, rel))
	require.NoError(t, err)
	root := ScanHeuristic(lang, rel, content)
	require.NotNil(t, root)
	require.NoError(t, syntax.Validate(root))
	return root
}

func TestScanHeuristic_Java(t *testing.T) {
	root := scanFixture(t, syntax.Java, "java_project", "src/com/example/Circle.java")

	assert.Equal(t, syntax.KindPackage, root.Kind)
	assert.Equal(t, "com.example", root.Name)

	imports := childrenOf(root, syntax.KindImport)
	require.Len(t, imports, 2)
	assert.Equal(t, "java.util.List", imports[0].Source)
	assert.Equal(t, []string{"List"}, imports[0].Names)
	assert.Equal(t, "java.util", imports[1].Source)
	assert.Equal(t, []string{"*"}, imports[1].Names)

	circle := find(root, syntax.KindClass, "Circle")
	require.NotNil(t, circle)
	assert.Equal(t, []string{"Base"}, circle.Bases)
	assert.Equal(t, []string{"Shape", "Cloneable"}, circle.Implements)
	assert.True(t, circle.Exported)
	assert.Greater(t, circle.EndLine, circle.StartLine)

	fields := childrenOf(circle, syntax.KindField)
	assert.Equal(t, []string{"radius", "count"}, names(fields))
	assert.Equal(t, "private", fields[0].Visibility)
	assert.True(t, fields[1].IsStatic)

	ctor := childrenOf(circle, syntax.KindConstructor)
	require.Len(t, ctor, 1)
	p := childrenOf(ctor[0], syntax.KindParameter)
	require.Len(t, p, 1)
	assert.Equal(t, "radius", p[0].Name)
	assert.Equal(t, "double", p[0].TypeAnnotation)

	methods := childrenOf(circle, syntax.KindMethod)
	assert.Equal(t, []string{"area", "split"}, names(methods))
	assert.Equal(t, []string{"Override"}, names(childrenOf(methods[0], syntax.KindDecorator)))
	assert.Equal(t, []string{"parts", "label"}, names(childrenOf(methods[1], syntax.KindParameter)))
	assert.Equal(t, "protected", methods[1].Visibility)
}

func TestScanHeuristic_JavaInterface(t *testing.T) {
	root := scanFixture(t, syntax.Java, "java_project", "src/com/example/Shape.java")

	shape := find(root, syntax.KindInterface, "Shape")
	require.NotNil(t, shape)
	assert.Equal(t, []string{"Comparable"}, shape.Bases)
	area := find(shape, syntax.KindMethod, "area")
	require.NotNil(t, area)
	assert.True(t, area.IsAbstract)
}

func TestScanHeuristic_Kotlin(t *testing.T) {
	root := scanFixture(t, syntax.Kotlin, "kotlin_project", "Repo.kt")

	assert.Equal(t, "com.example.repo", root.Name)
	imports := childrenOf(root, syntax.KindImport)
	require.Len(t, imports, 2)
	assert.Equal(t, "Person", imports[1].Alias)

	limit := find(root, syntax.KindVariable, "LIMIT")
	require.NotNil(t, limit)
	assert.Equal(t, "10", limit.DefaultValue)

	repo := find(root, syntax.KindInterface, "Repository")
	require.NotNil(t, repo)
	find1 := find(repo, syntax.KindMethod, "find")
	require.NotNil(t, find1)
	assert.True(t, find1.IsAbstract)

	user := find(root, syntax.KindClass, "User")
	require.NotNil(t, user)
	assert.Contains(t, user.Modifiers, "data")
	assert.Equal(t, []string{"Entity"}, user.Bases)
	assert.Equal(t, []string{"Comparable"}, user.Implements)
	ctor := childrenOf(user, syntax.KindConstructor)
	require.Len(t, ctor, 1)
	assert.Equal(t, []string{"id", "name"}, names(childrenOf(ctor[0], syntax.KindParameter)))
	assert.NotNil(t, find(user, syntax.KindMethod, "compareTo"))

	registry := find(root, syntax.KindObject, "Registry")
	require.NotNil(t, registry)
	assert.Equal(t, []string{"users"}, names(childrenOf(registry, syntax.KindField)))
	assert.Equal(t, []string{"register"}, names(childrenOf(registry, syntax.KindMethod)))

	mem := find(root, syntax.KindClass, "InMemoryRepository")
	require.NotNil(t, mem)
	assert.Equal(t, []string{"Repository"}, mem.Implements)
	assert.Len(t, childrenOf(mem, syntax.KindConstructor), 1)
	assert.Equal(t, []string{"find"}, names(childrenOf(mem, syntax.KindMethod)))

	load := find(root, syntax.KindFunction, "loadAll")
	require.NotNil(t, load)
	assert.True(t, load.IsAsync)
}

func TestScanHeuristic_Dart(t *testing.T) {
	root := scanFixture(t, syntax.Dart, "dart_project", "lib/models.dart")

	assert.Equal(t, syntax.KindLibrary, root.Kind)
	assert.Equal(t, "models", root.Name)

	widgets := find(root, syntax.KindImport, "package:flutter/widgets.dart")
	require.NotNil(t, widgets)
	assert.Equal(t, []string{"Widget", "State"}, widgets.Names)
	math := find(root, syntax.KindImport, "dart:math")
	require.NotNil(t, math)
	assert.Equal(t, "math", math.Alias)
	exports := childrenOf(root, syntax.KindExport)
	require.Len(t, exports, 1)
	assert.Equal(t, "src/helpers.dart", exports[0].Source)

	assert.NotNil(t, find(root, syntax.KindVariable, "maxItems"))

	mixin := find(root, syntax.KindMixin, "Loggable")
	require.NotNil(t, mixin)
	assert.Equal(t, []string{"Object"}, mixin.Bases)
	assert.Equal(t, []string{"log"}, names(childrenOf(mixin, syntax.KindMethod)))

	shape := find(root, syntax.KindClass, "Shape")
	require.NotNil(t, shape)
	assert.True(t, shape.IsAbstract)

	circle := find(root, syntax.KindClass, "Circle")
	require.NotNil(t, circle)
	assert.Equal(t, []string{"Shape"}, circle.Bases)
	assert.Equal(t, []string{"Loggable"}, circle.Mixins)
	assert.Equal(t, []string{"Comparable"}, circle.Implements)

	fields := childrenOf(circle, syntax.KindField)
	assert.Equal(t, []string{"radius", "_label"}, names(fields))
	assert.Equal(t, "private", fields[1].Visibility)
	assert.Equal(t, []string{"Circle", "Circle.unit"}, names(childrenOf(circle, syntax.KindConstructor)))
	assert.Equal(t, []string{"area", "compareTo"}, names(childrenOf(circle, syntax.KindMethod)))

	ext := find(root, syntax.KindExtension, "CircleX")
	require.NotNil(t, ext)
	assert.Equal(t, "Circle", ext.TypeAnnotation)

	assert.NotNil(t, find(root, syntax.KindEnum, "Kind"))

	main := find(root, syntax.KindFunction, "main")
	require.NotNil(t, main)
	assert.True(t, main.IsAsync)
}

func TestScanHeuristic_IgnoresCommentsAndBodies(t *testing.T) {
	src := `package demo;

/*
public class Hidden {
}
*/
public class Visible {
    // public void commented() {}
    public void run() {
        class Local {
        }
        String s = "public class InString {";
    }
}
`
	root := ScanHeuristic(syntax.Java, "demo/Visible.java", []byte(src))
	assert.Nil(t, find(root, syntax.KindClass, "Hidden"))
	assert.Nil(t, find(root, syntax.KindClass, "Local"))
	assert.Nil(t, find(root, syntax.KindClass, "InString"))
	assert.Nil(t, find(root, syntax.KindMethod, "commented"))

	visible := find(root, syntax.KindClass, "Visible")
	require.NotNil(t, visible)
	assert.Equal(t, 7, visible.StartLine)
	assert.Equal(t, 14, visible.EndLine)
	run := find(visible, syntax.KindMethod, "run")
	require.NotNil(t, run)
	assert.Equal(t, 13, run.EndLine)
}

func TestScanHeuristic_AllmanBraces(t *testing.T) {
	src := "class A\n{\n    void f()\n    {\n    }\n}\n"
	root := ScanHeuristic(syntax.Java, "A.java", []byte(src))
	a := find(root, syntax.KindClass, "A")
	require.NotNil(t, a)
	assert.Equal(t, 6, a.EndLine)
	assert.Equal(t, []string{"f"}, names(childrenOf(a, syntax.KindMethod)))
}

func TestScanHeuristic_DefaultRootName(t *testing.T) {
	root := ScanHeuristic(syntax.Kotlin, "src/main/App.kt", []byte("fun main() {}\n"))
	assert.Equal(t, "src.main", root.Name)
	assert.NotNil(t, find(root, syntax.KindFunction, "main"))
	assert.True(t, HasHeuristic(syntax.Kotlin))
	assert.False(t, HasHeuristic(syntax.Python))
}
