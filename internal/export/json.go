// Package export renders parse reports, build results and analysis results
// for output: JSON documents and Mermaid dependency diagrams.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dusk-indust/codegraph/internal/analysis"
	"github.com/dusk-indust/codegraph/internal/builder"
	"github.com/dusk-indust/codegraph/internal/graph"
	"github.com/dusk-indust/codegraph/internal/parse"
)

// ParseExport is the JSON form of a parse report. Syntax trees are only
// included on request.
type ParseExport struct {
	ExportedAt string `json:"exportedAt"`
	*parse.Report
	Files []FileExport `json:"files"`
}

// FileExport describes one parsed file.
type FileExport struct {
	Path       string `json:"path"`
	Language   string `json:"language"`
	Success    bool   `json:"success"`
	Diagnostic string `json:"diagnostic,omitempty"`
	Nodes      int    `json:"nodes"`
	Lines      int    `json:"lines"`
	Heuristic  bool   `json:"heuristic,omitempty"`
	Hash       string `json:"hash,omitempty"`
	Tree       any    `json:"tree,omitempty"`
}

// ParseReport builds the export of r.
func ParseReport(r *parse.Report, withTrees bool) *ParseExport {
	out := &ParseExport{ExportedAt: now(), Report: r, Files: make([]FileExport, 0, len(r.Files))}
	for _, pu := range r.Files {
		f := FileExport{
			Path:       pu.Source.RelPath,
			Language:   string(pu.Source.Language),
			Success:    pu.Success,
			Diagnostic: pu.Diagnostic,
			Nodes:      pu.NodeCount,
			Lines:      pu.LineCount,
			Heuristic:  pu.Heuristic,
			Hash:       pu.ContentHash,
		}
		if withTrees && pu.Tree != nil {
			f.Tree = pu.Tree
		}
		out.Files = append(out.Files, f)
	}
	return out
}

// BuildExport is the JSON form of a build result.
type BuildExport struct {
	ExportedAt string            `json:"exportedAt"`
	Report     *builder.Report   `json:"report"`
	Statements []graph.Statement `json:"statements,omitempty"`
}

// BuildResult builds the export of res. Statements are included on
// request, which is how dry-run builds are inspected.
func BuildResult(res *builder.Result, withStatements bool) *BuildExport {
	out := &BuildExport{ExportedAt: now(), Report: res.Report}
	if withStatements {
		out.Statements = res.Statements
	}
	return out
}

// AnalysisExport is the JSON form of an analysis result.
type AnalysisExport struct {
	ExportedAt string `json:"exportedAt"`
	*analysis.Result
}

func Analysis(res *analysis.Result) *AnalysisExport {
	return &AnalysisExport{ExportedAt: now(), Result: res}
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }
