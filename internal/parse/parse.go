// Package parse turns project files into normalized syntax trees. Plugins
// handle one language each; the Coordinator enumerates a project, dispatches
// files to plugins under size and exclusion limits, and aggregates the
// outcomes into a Report.
package parse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dusk-indust/codegraph/internal/syntax"
)

var (
	// ErrUnsupportedLanguage is returned when no plugin serves a language.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrToolMissing is returned when an external parser binary is not found.
	ErrToolMissing = errors.New("parser tool not found")

	// ErrToolTimeout is returned when an external parser exceeds its deadline.
	ErrToolTimeout = errors.New("parser tool timed out")

	// ErrToolExit is returned when an external parser exits non-zero.
	ErrToolExit = errors.New("parser tool failed")

	// ErrMalformedOutput is returned when an external parser emits output
	// that does not decode into a syntax tree.
	ErrMalformedOutput = errors.New("malformed parser output")
)

// SourceUnit is one file selected for parsing.
type SourceUnit struct {
	Path      string          `json:"path"`
	RelPath   string          `json:"relPath"`
	Language  syntax.Language `json:"language"`
	SizeBytes int64           `json:"sizeBytes"`
	LineCount int             `json:"lineCount"`

	// Content is loaded by the Coordinator right before dispatch and is not
	// retained in reports.
	Content []byte `json:"-"`
}

// ParsedUnit is the outcome of parsing one SourceUnit.
type ParsedUnit struct {
	Source      SourceUnit    `json:"source"`
	Tree        *syntax.Node  `json:"tree,omitempty"`
	Success     bool          `json:"success"`
	Diagnostic  string        `json:"diagnostic,omitempty"`
	NodeCount   int           `json:"nodeCount"`
	LineCount   int           `json:"lineCount"`
	ContentHash string        `json:"contentHash,omitempty"`
	Heuristic   bool          `json:"heuristic,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Plugin parses the files of one language.
type Plugin interface {
	Language() syntax.Language
	CanParse(path string) bool
	// Parse never panics across its boundary for malformed input; failures
	// come back as a ParsedUnit with Success false and a Diagnostic.
	Parse(ctx context.Context, src SourceUnit) ParsedUnit
}

// Availability is implemented by plugins that depend on something outside
// the process and can report whether it is usable.
type Availability interface {
	Available() error
}

// succeeded builds a successful ParsedUnit around tree.
func succeeded(src SourceUnit, tree *syntax.Node) ParsedUnit {
	return ParsedUnit{
		Source:    src,
		Tree:      tree,
		Success:   true,
		NodeCount: syntax.Count(tree),
		LineCount: src.LineCount,
	}
}

// failed builds a failed ParsedUnit carrying a diagnostic.
func failed(src SourceUnit, format string, args ...any) ParsedUnit {
	return ParsedUnit{
		Source:     src,
		Diagnostic: fmt.Sprintf(format, args...),
		LineCount:  src.LineCount,
	}
}

// safeParse invokes p.Parse and converts a panic into a failed unit.
func safeParse(ctx context.Context, p Plugin, src SourceUnit) (pu ParsedUnit) {
	defer func() {
		if r := recover(); r != nil {
			pu = failed(src, "%s parser crashed: %v", p.Language(), r)
		}
	}()
	return p.Parse(ctx, src)
}
