// Package config loads ckg settings from a project's ckg.yml and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/codegraph/internal/analysis"
	"github.com/dusk-indust/codegraph/internal/parse"
	"github.com/dusk-indust/codegraph/internal/store"
	"github.com/dusk-indust/codegraph/internal/syntax"
)

// FileNames are the project config files tried in order.
var FileNames = []string{"ckg.yml", "ckg.yaml"}

// ErrInvalidConfig is returned by Validate for out-of-range settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every setting. Zero values in a loaded file keep the
// defaults from Default.
type Config struct {
	// Language is the primary language; empty means detect.
	Language         string   `yaml:"language,omitempty"`
	MaxFileSizeBytes int64    `yaml:"maxFileSizeBytes,omitempty"`
	ExcludeDirs      []string `yaml:"excludeDirs,omitempty"`
	ExcludeGlobs     []string `yaml:"excludeGlobs,omitempty"`
	RespectGitignore bool     `yaml:"respectGitignore"`
	Workers          int      `yaml:"workers,omitempty"`

	Store    store.Config   `yaml:"store"`
	Parsers  ParsersConfig  `yaml:"parsers"`
	Analysis AnalysisConfig `yaml:"analysis"`

	// Source is the file the config was read from, if any.
	Source string `yaml:"-"`
}

// ParsersConfig configures the external-tool parser plugins.
type ParsersConfig struct {
	Timeout  time.Duration                `yaml:"timeout,omitempty"`
	Fallback bool                         `yaml:"fallback"`
	Tools    map[string]parse.ToolCommand `yaml:"tools,omitempty"`
}

type AnalysisConfig struct {
	DetectOrphans     bool `yaml:"detectOrphans"`
	CouplingThreshold int  `yaml:"couplingThreshold"`
	DedupeCycles      bool `yaml:"dedupeCycles"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		MaxFileSizeBytes: parse.DefaultMaxFileSize,
		RespectGitignore: true,
		Workers:          runtime.NumCPU(),
		Store:            store.Config{Backend: store.BackendNone},
		Parsers: ParsersConfig{
			Timeout:  parse.DefaultToolTimeout,
			Fallback: true,
		},
		Analysis: AnalysisConfig{
			DetectOrphans:     true,
			CouplingThreshold: analysis.DefaultCouplingThreshold,
			DedupeCycles:      true,
		},
	}
}

// Load reads ckg.yml or ckg.yaml from dir, falling back to defaults when
// neither exists, then applies environment overrides.
func Load(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return LoadFile(path)
	}
	cfg := Default()
	applyEnv(cfg, os.LookupEnv)
	return cfg, nil
}

// LoadFile reads one config file, then applies environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Source = path
	applyEnv(cfg, os.LookupEnv)
	return cfg, nil
}

// envOverrides maps variables to the field they set; the first variable
// set in each entry wins.
var envOverrides = []struct {
	names []string
	set   func(c *Config, v string)
}{
	{[]string{"CKG_LANGUAGE"}, func(c *Config, v string) { c.Language = v }},
	{[]string{"CKG_STORE_BACKEND"}, func(c *Config, v string) { c.Store.Backend = store.Backend(v) }},
	{[]string{"CKG_STORE_URI", "NEO4J_URI"}, func(c *Config, v string) { c.Store.URI = v }},
	{[]string{"CKG_STORE_USER", "NEO4J_USER"}, func(c *Config, v string) { c.Store.Username = v }},
	{[]string{"CKG_STORE_PASSWORD", "NEO4J_PASSWORD"}, func(c *Config, v string) { c.Store.Password = v }},
	{[]string{"CKG_STORE_DATABASE"}, func(c *Config, v string) { c.Store.Database = v }},
	{[]string{"CKG_STORE_PATH"}, func(c *Config, v string) { c.Store.Path = v }},
}

func applyEnv(c *Config, lookup func(string) (string, bool)) {
	for _, o := range envOverrides {
		for _, name := range o.names {
			if v, ok := lookup(name); ok && v != "" {
				o.set(c, v)
				break
			}
		}
	}
	// A URI with no backend means the default bolt store.
	if c.Store.Backend == store.BackendNone && c.Store.URI != "" {
		if v, ok := lookup("CKG_STORE_BACKEND"); !ok || v == "" {
			c.Store.Backend = store.BackendNeo4j
		}
	}
}

// PrimaryLanguage parses Language. ok is false when it is empty.
func (c *Config) PrimaryLanguage() (lang syntax.Language, ok bool, err error) {
	if c.Language == "" {
		return "", false, nil
	}
	lang, ok = syntax.ParseLanguage(c.Language)
	if !ok {
		return "", false, fmt.Errorf("%w: %s", parse.ErrUnsupportedLanguage, c.Language)
	}
	return lang, true, nil
}

// ToolCommands converts the configured tools to per-language commands.
func (c *Config) ToolCommands() (map[syntax.Language]parse.ToolCommand, error) {
	out := make(map[syntax.Language]parse.ToolCommand, len(c.Parsers.Tools))
	for name, tool := range c.Parsers.Tools {
		lang, ok := syntax.ParseLanguage(name)
		if !ok {
			return nil, fmt.Errorf("%w: parser tool for %q", parse.ErrUnsupportedLanguage, name)
		}
		out[lang] = tool
	}
	return out, nil
}

// Validate reports configuration errors. They are never retried.
func (c *Config) Validate() error {
	if _, _, err := c.PrimaryLanguage(); err != nil {
		return err
	}
	if _, err := c.ToolCommands(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	switch {
	case c.MaxFileSizeBytes < 0:
		return fmt.Errorf("%w: maxFileSizeBytes is negative", ErrInvalidConfig)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers is negative", ErrInvalidConfig)
	case c.Parsers.Timeout < 0:
		return fmt.Errorf("%w: parsers.timeout is negative", ErrInvalidConfig)
	case c.Store.ConnectTimeout < 0:
		return fmt.Errorf("%w: store.connectTimeout is negative", ErrInvalidConfig)
	case c.Analysis.CouplingThreshold < 0:
		return fmt.Errorf("%w: analysis.couplingThreshold is negative", ErrInvalidConfig)
	}
	return nil
}
