package parse

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codegraph/internal/syntax"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func relPaths(units []ParsedUnit) []string {
	out := make([]string, len(units))
	for i, pu := range units {
		out[i] = pu.Source.RelPath
	}
	return out
}

func TestParseProject_Python(t *testing.T) {
	c := NewCoordinator(DefaultRegistry(ToolOptions{}), WithWorkers(2))
	rep := c.ParseProject(context.Background(), filepath.Join(fixtures, "python_project"), syntax.Python)

	require.True(t, rep.Success, rep.Error)
	assert.Equal(t, []string{
		"app/__init__.py", "app/broken.py", "app/models.py", "app/service.py",
	}, relPaths(rep.Files))
	assert.Equal(t, 4, rep.TotalFiles)
	assert.Equal(t, 3, rep.SuccessfulFiles)
	assert.Equal(t, 1, rep.FailedFiles)
	assert.Equal(t, rep.TotalFiles, rep.SuccessfulFiles+rep.FailedFiles)
	assert.Equal(t, 4, rep.EligibleFiles)
	assert.InDelta(t, 1.0, rep.Coverage, 1e-9)
	assert.InDelta(t, 0.75, rep.SuccessRate, 1e-9)
	assert.Greater(t, rep.AvgNodesPerFile, 0.0)

	broken := rep.Files[1]
	assert.False(t, broken.Success)
	assert.Contains(t, broken.Diagnostic, "syntax error at line 1")
	assert.Nil(t, broken.Tree)

	for _, pu := range rep.Files {
		assert.Len(t, pu.ContentHash, 16, pu.Source.RelPath)
		assert.Nil(t, pu.Source.Content)
		assert.True(t, filepath.IsAbs(pu.Source.Path))
	}
	assert.Len(t, rep.Successful(), 3)
	assert.Len(t, rep.Failures(), 1)

	py := rep.PerLanguage[syntax.Python]
	assert.Equal(t, 4, py.Files)
	assert.Equal(t, 1, py.Failed)
}

func TestParseProject_Unsupported(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewPythonPlugin())
	c := NewCoordinator(reg)

	rep := c.ParseProject(context.Background(), filepath.Join(fixtures, "go_project"), syntax.Go)
	assert.False(t, rep.Success)
	assert.Contains(t, rep.Error, ErrUnsupportedLanguage.Error())
	assert.Empty(t, rep.Files)
	assert.Zero(t, rep.TotalFiles)
}

func TestParseProject_BadRoot(t *testing.T) {
	c := NewCoordinator(DefaultRegistry(ToolOptions{}))

	rep := c.ParseProject(context.Background(), filepath.Join(t.TempDir(), "missing"), syntax.Go)
	assert.False(t, rep.Success)
	assert.NotEmpty(t, rep.Error)

	file := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0o644))
	rep = c.ParseProject(context.Background(), file, syntax.Go)
	assert.False(t, rep.Success)
	assert.Contains(t, rep.Error, "not a directory")
}

func TestParseProject_Filters(t *testing.T) {
	big := "package big\n" + strings.Repeat("// padding\n", 40)
	root := writeTree(t, map[string]string{
		"main.go":                 "package main\n\nfunc main() {}\n",
		"pkg/util.go":             "package pkg\n\nfunc Util() int { return 1 }\n",
		"pkg/util_test.go":        "package pkg\n",
		"pkg/big.go":              big,
		"pkg/gen/zz_generated.go": "package gen\n",
		"node_modules/dep/dep.go": "package dep\n",
		".hidden/secret.go":       "package hidden\n",
		"ignored/skip.go":         "package ignored\n",
		"custom/skip.go":          "package custom\n",
		"notes.txt":               "not source\n",
		"pkg/latin1.go":           "package pkg\n// caf\xe9\n",
		".gitignore":              "ignored/\n",
	})

	c := NewCoordinator(DefaultRegistry(ToolOptions{}),
		WithMaxFileSize(200),
		WithExcludeDirs("custom"),
		WithExcludeGlobs("**/*_test.go", "**/zz_*.go"),
	)
	rep := c.ParseProject(context.Background(), root, syntax.Go)
	require.True(t, rep.Success, rep.Error)

	assert.Equal(t, []string{"main.go", "pkg/latin1.go", "pkg/util.go"}, relPaths(rep.Files))
	assert.Equal(t, 1, rep.SkippedFiles)
	assert.Equal(t, 4, rep.EligibleFiles)
	assert.InDelta(t, 0.75, rep.Coverage, 1e-9)

	latin1 := rep.Files[1]
	assert.False(t, latin1.Success)
	assert.Contains(t, latin1.Diagnostic, "not valid UTF-8")
	assert.Equal(t, 2, latin1.LineCount)

	// Without gitignore handling the ignored directory is parsed too.
	c = NewCoordinator(DefaultRegistry(ToolOptions{}), WithGitignore(false), WithExcludeGlobs("**/*_test.go"))
	rep = c.ParseProject(context.Background(), root, syntax.Go)
	require.True(t, rep.Success)
	assert.Contains(t, relPaths(rep.Files), "ignored/skip.go")
	assert.Contains(t, relPaths(rep.Files), "custom/skip.go")
	assert.NotContains(t, relPaths(rep.Files), "node_modules/dep/dep.go")
	assert.NotContains(t, relPaths(rep.Files), ".hidden/secret.go")
}

func TestParseProject_Empty(t *testing.T) {
	root := writeTree(t, map[string]string{"README.md": "# nothing\n"})
	c := NewCoordinator(DefaultRegistry(ToolOptions{}))

	rep := c.ParseProject(context.Background(), root, syntax.Rust)
	require.True(t, rep.Success)
	assert.Zero(t, rep.TotalFiles)
	assert.Zero(t, rep.Coverage)
	assert.Zero(t, rep.SuccessRate)
}

func TestDetectLanguage(t *testing.T) {
	c := NewCoordinator(DefaultRegistry(ToolOptions{}))

	lang, err := c.DetectLanguage(filepath.Join(fixtures, "rust_project"))
	require.NoError(t, err)
	assert.Equal(t, syntax.Rust, lang)

	root := writeTree(t, map[string]string{
		"a.py": "x = 1\n", "b.py": "y = 2\n", "c.go": "package c\n",
	})
	lang, err = c.DetectLanguage(root)
	require.NoError(t, err)
	assert.Equal(t, syntax.Python, lang)

	_, err = c.DetectLanguage(writeTree(t, map[string]string{"a.txt": "x"}))
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

type panicPlugin struct{}

func (panicPlugin) Language() syntax.Language { return syntax.Python }
func (panicPlugin) CanParse(string) bool      { return true }
func (panicPlugin) Parse(context.Context, SourceUnit) ParsedUnit {
	panic("boom")
}

func TestParseProject_PluginPanic(t *testing.T) {
	reg := NewRegistry()
	reg.Register(panicPlugin{})
	c := NewCoordinator(reg)

	rep := c.ParseProject(context.Background(), filepath.Join(fixtures, "python_project"), syntax.Python)
	require.True(t, rep.Success)
	require.Equal(t, 4, rep.TotalFiles)
	assert.Equal(t, 4, rep.FailedFiles)
	for _, pu := range rep.Files {
		assert.Contains(t, pu.Diagnostic, "python parser crashed: boom")
	}
}

func TestParseProject_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewCoordinator(DefaultRegistry(ToolOptions{}))

	rep := c.ParseProject(ctx, filepath.Join(fixtures, "go_project"), syntax.Go)
	require.True(t, rep.Success)
	assert.Equal(t, rep.TotalFiles, rep.FailedFiles)
	for _, pu := range rep.Files {
		assert.Contains(t, pu.Diagnostic, "cancelled")
	}
}
