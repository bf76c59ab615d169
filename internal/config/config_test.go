package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codegraph/internal/parse"
	"github.com/dusk-indust/codegraph/internal/store"
	"github.com/dusk-indust/codegraph/internal/syntax"
)

// clearEnv unsets every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, o := range envOverrides {
		for _, name := range o.names {
			t.Setenv(name, "")
		}
	}
}

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.RespectGitignore)
	assert.Equal(t, store.BackendNone, cfg.Store.Backend)
	assert.Empty(t, cfg.Source)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ReadsYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	content := `language: ts
maxFileSizeBytes: 2048
excludeDirs: [generated]
excludeGlobs: ["**/*.spec.ts"]
respectGitignore: false
workers: 3
store:
  backend: kuzu
  path: .ckg/graph.kuzu
  connectTimeout: 2s
parsers:
  timeout: 10s
  fallback: false
  tools:
    java:
      command: java-ast
      args: ["--json"]
analysis:
  couplingThreshold: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ckg.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ckg.yaml"), cfg.Source)
	assert.Equal(t, int64(2048), cfg.MaxFileSizeBytes)
	assert.Equal(t, []string{"generated"}, cfg.ExcludeDirs)
	assert.Equal(t, []string{"**/*.spec.ts"}, cfg.ExcludeGlobs)
	assert.False(t, cfg.RespectGitignore)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, store.BackendKuzu, cfg.Store.Backend)
	assert.Equal(t, 2*time.Second, cfg.Store.ConnectTimeout)
	assert.Equal(t, 10*time.Second, cfg.Parsers.Timeout)
	assert.False(t, cfg.Parsers.Fallback)
	assert.Equal(t, 8, cfg.Analysis.CouplingThreshold)
	assert.True(t, cfg.Analysis.DedupeCycles, "unset keys keep their defaults")
	assert.True(t, cfg.Analysis.DetectOrphans)

	lang, ok, err := cfg.PrimaryLanguage()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, syntax.TypeScript, lang)

	tools, err := cfg.ToolCommands()
	require.NoError(t, err)
	assert.Equal(t, parse.ToolCommand{Command: "java-ast", Args: []string{"--json"}}, tools[syntax.Java])
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PrefersYml(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ckg.yml"), []byte("workers: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ckg.yaml"), []byte("workers: 2\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Workers)
}

func TestLoad_MalformedYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ckg.yml"), []byte("workers: [\n"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ckg.yml")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ckg.yml"), []byte("store:\n  backend: memory\n"), 0o644))
	t.Setenv("CKG_STORE_BACKEND", "memgraph")
	t.Setenv("CKG_STORE_URI", "bolt://graph:7687")
	t.Setenv("NEO4J_URI", "bolt://ignored:7687")
	t.Setenv("NEO4J_USER", "neo4j")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("CKG_LANGUAGE", "rust")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, store.BackendMemgraph, cfg.Store.Backend)
	assert.Equal(t, "bolt://graph:7687", cfg.Store.URI, "CKG_ variables win over NEO4J_ fallbacks")
	assert.Equal(t, "neo4j", cfg.Store.Username)
	assert.Equal(t, "secret", cfg.Store.Password)
	assert.Equal(t, "rust", cfg.Language)
}

func TestApplyEnv_URIImpliesNeo4j(t *testing.T) {
	cfg := Default()
	env := map[string]string{"NEO4J_URI": "bolt://localhost:7687"}
	applyEnv(cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, store.BackendNeo4j, cfg.Store.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"defaults", func(*Config) {}, nil},
		{"unknown language", func(c *Config) { c.Language = "cobol" }, parse.ErrUnsupportedLanguage},
		{"unknown tool language", func(c *Config) {
			c.Parsers.Tools = map[string]parse.ToolCommand{"cobol": {Command: "x"}}
		}, parse.ErrUnsupportedLanguage},
		{"unknown backend", func(c *Config) { c.Store.Backend = "oracle" }, store.ErrUnsupportedBackend},
		{"neo4j without uri", func(c *Config) { c.Store.Backend = store.BackendNeo4j }, store.ErrMissingCredentials},
		{"user without password", func(c *Config) {
			c.Store = store.Config{Backend: store.BackendNeo4j, URI: "bolt://x", Username: "u"}
		}, store.ErrMissingCredentials},
		{"kuzu without path", func(c *Config) { c.Store.Backend = store.BackendKuzu }, store.ErrMissingCredentials},
		{"negative size", func(c *Config) { c.MaxFileSizeBytes = -1 }, ErrInvalidConfig},
		{"negative workers", func(c *Config) { c.Workers = -2 }, ErrInvalidConfig},
		{"negative timeout", func(c *Config) { c.Parsers.Timeout = -time.Second }, ErrInvalidConfig},
		{"negative connect timeout", func(c *Config) { c.Store.ConnectTimeout = -time.Second }, ErrInvalidConfig},
		{"negative coupling", func(c *Config) { c.Analysis.CouplingThreshold = -1 }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
