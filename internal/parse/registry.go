package parse

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dusk-indust/codegraph/internal/syntax"
)

// Registry maps languages to plugins. New languages are added by
// registering a plugin; dispatch never switches on language.
type Registry struct {
	mu      sync.RWMutex
	plugins map[syntax.Language]Plugin
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[syntax.Language]Plugin)}
}

// Register adds p, replacing any plugin for the same language.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Language()] = p
}

// Lookup returns the plugin for lang.
func (r *Registry) Lookup(lang syntax.Language) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	return p, nil
}

// Languages returns the registered languages in sorted order.
func (r *Registry) Languages() []syntax.Language {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]syntax.Language, 0, len(r.plugins))
	for l := range r.plugins {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PluginStatus reports one plugin's health.
type PluginStatus struct {
	Language  syntax.Language `json:"language"`
	Available bool            `json:"available"`
	Error     string          `json:"error,omitempty"`
}

// Status reports the availability of every registered plugin. Plugins that
// run in process are always available.
func (r *Registry) Status() []PluginStatus {
	var out []PluginStatus
	for _, lang := range r.Languages() {
		p, _ := r.Lookup(lang)
		st := PluginStatus{Language: lang, Available: true}
		if a, ok := p.(Availability); ok {
			if err := a.Available(); err != nil {
				st.Available = false
				st.Error = err.Error()
			}
		}
		out = append(out, st)
	}
	return out
}

// ToolOptions configures the external-tool plugins.
type ToolOptions struct {
	// Tools maps a language to the command that converts one file into a
	// JSON syntax tree.
	Tools map[syntax.Language]ToolCommand
	// Timeout bounds each tool invocation. Zero uses DefaultToolTimeout.
	Timeout time.Duration
	// Heuristic enables the line-scanning fallback when a tool is missing or
	// times out.
	Heuristic bool
}

// DefaultRegistry returns a Registry with every built-in plugin: the native
// Go parser, tree-sitter parsers for Python, TypeScript, JavaScript and Rust,
// and external-tool parsers for Java, Kotlin and Dart.
func DefaultRegistry(opts ToolOptions) *Registry {
	r := NewRegistry()
	r.Register(NewGoPlugin())
	r.Register(NewPythonPlugin())
	r.Register(NewTypeScriptPlugin())
	r.Register(NewJavaScriptPlugin())
	r.Register(NewRustPlugin())
	for _, lang := range []syntax.Language{syntax.Java, syntax.Kotlin, syntax.Dart} {
		r.Register(NewExternalPlugin(lang, opts.Tools[lang], opts.Timeout, opts.Heuristic))
	}
	return r
}
