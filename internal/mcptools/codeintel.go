package mcptools

import (
	"github.com/dusk-indust/codegraph/internal/builder"
	"github.com/dusk-indust/codegraph/internal/parse"
)

// --- MCP Tool Input Types ---
// The SDK derives each tool's JSON schema from these struct tags.

// ParseProjectInput is the input for the parse_project tool.
type ParseProjectInput struct {
	Path     string `json:"path,omitempty" jsonschema:"absolute path of the project root"`
	Language string `json:"language,omitempty" jsonschema:"primary language (python, go, typescript, javascript, rust, java, kotlin, dart); detected when empty"`
}

// ParseProjectOutput summarizes a parse run. Syntax trees are not returned.
type ParseProjectOutput struct {
	Root            string                         `json:"root"`
	Language        string                         `json:"language"`
	TotalFiles      int                            `json:"totalFiles"`
	SuccessfulFiles int                            `json:"successfulFiles"`
	FailedFiles     int                            `json:"failedFiles"`
	SkippedFiles    int                            `json:"skippedFiles"`
	Coverage        float64                        `json:"coverage"`
	SuccessRate     float64                        `json:"successRate"`
	PerLanguage     map[string]parse.LanguageStats `json:"perLanguage,omitempty"`
	Failures        []FileFailure                  `json:"failures,omitempty"`
	Success         bool                           `json:"success"`
	Error           string                         `json:"error,omitempty"`
}

// FileFailure names a file that did not parse.
type FileFailure struct {
	Path       string `json:"path"`
	Diagnostic string `json:"diagnostic"`
}

// BuildGraphInput is the input for the build_graph tool.
type BuildGraphInput struct {
	Path     string `json:"path,omitempty" jsonschema:"absolute path of the project root"`
	Language string `json:"language,omitempty" jsonschema:"primary language; detected when empty"`
}

// BuildGraphOutput carries the parse summary and the build report.
type BuildGraphOutput struct {
	Parse ParseProjectOutput `json:"parse"`
	Build *builder.Report    `json:"build,omitempty"`
}

// QueryGraphInput is the input for the query_graph tool. Exactly one of
// Query and Name is set.
type QueryGraphInput struct {
	Query  string         `json:"query,omitempty" jsonschema:"Cypher query text"`
	Name   string         `json:"name,omitempty" jsonschema:"named query, e.g. callers_of, functions_in_file, project_stats"`
	Params map[string]any `json:"params,omitempty" jsonschema:"query parameters"`
}

// SearchSymbolsInput is the input for the search_symbols tool.
type SearchSymbolsInput struct {
	Pattern string `json:"pattern" jsonschema:"case-insensitive substring of the symbol name"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 50)"`
}

// AnalyzeInput is the input for the analyze_architecture tool.
type AnalyzeInput struct {
	Path string `json:"path,omitempty" jsonschema:"project the graph was built from"`
}

// StatusInput is the input for the status tool.
type StatusInput struct{}

func summarizeParse(r *parse.Report) ParseProjectOutput {
	out := ParseProjectOutput{
		Root:            r.Root,
		Language:        string(r.Language),
		TotalFiles:      r.TotalFiles,
		SuccessfulFiles: r.SuccessfulFiles,
		FailedFiles:     r.FailedFiles,
		SkippedFiles:    r.SkippedFiles,
		Coverage:        r.Coverage,
		SuccessRate:     r.SuccessRate,
		Success:         r.Success,
		Error:           r.Error,
	}
	if len(r.PerLanguage) > 0 {
		out.PerLanguage = make(map[string]parse.LanguageStats, len(r.PerLanguage))
		for lang, st := range r.PerLanguage {
			out.PerLanguage[string(lang)] = st
		}
	}
	for _, pu := range r.Failures() {
		out.Failures = append(out.Failures, FileFailure{Path: pu.Source.RelPath, Diagnostic: pu.Diagnostic})
	}
	return out
}
