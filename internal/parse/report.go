package parse

import (
	"time"

	"github.com/dusk-indust/codegraph/internal/syntax"
)

// LanguageStats aggregates the parse outcomes of one language.
type LanguageStats struct {
	Files      int `json:"files"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Nodes      int `json:"nodes"`
	Lines      int `json:"lines"`
}

// Report is the outcome of parsing a project. Files keeps enumeration order
// and SuccessfulFiles + FailedFiles == TotalFiles == len(Files).
type Report struct {
	Root     string          `json:"root"`
	Language syntax.Language `json:"language"`
	Files    []ParsedUnit    `json:"files"`

	TotalFiles      int `json:"totalFiles"`
	SuccessfulFiles int `json:"successfulFiles"`
	FailedFiles     int `json:"failedFiles"`
	EligibleFiles   int `json:"eligibleFiles"`
	SkippedFiles    int `json:"skippedFiles"`
	HeuristicFiles  int `json:"heuristicFiles,omitempty"`

	PerLanguage map[syntax.Language]LanguageStats `json:"perLanguage"`

	// Coverage is attempted / eligible, 0 when nothing is eligible.
	Coverage        float64 `json:"coverage"`
	SuccessRate     float64 `json:"successRate"`
	AvgNodesPerFile float64 `json:"avgNodesPerFile"`

	LargestFile      string `json:"largestFile,omitempty"`
	LargestFileLines int    `json:"largestFileLines,omitempty"`

	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
}

// Successful returns the units that produced a syntax tree.
func (r *Report) Successful() []ParsedUnit {
	var out []ParsedUnit
	for _, pu := range r.Files {
		if pu.Success && pu.Tree != nil {
			out = append(out, pu)
		}
	}
	return out
}

// Failures returns the units that did not parse.
func (r *Report) Failures() []ParsedUnit {
	var out []ParsedUnit
	for _, pu := range r.Files {
		if !pu.Success {
			out = append(out, pu)
		}
	}
	return out
}

// summarize derives every count and ratio from Files.
func (r *Report) summarize() {
	r.TotalFiles = len(r.Files)
	r.SuccessfulFiles, r.FailedFiles, r.HeuristicFiles = 0, 0, 0
	r.PerLanguage = make(map[syntax.Language]LanguageStats)
	r.LargestFile, r.LargestFileLines = "", 0

	nodes := 0
	for _, pu := range r.Files {
		st := r.PerLanguage[pu.Source.Language]
		st.Files++
		st.Lines += pu.LineCount
		if pu.Success {
			r.SuccessfulFiles++
			st.Successful++
			st.Nodes += pu.NodeCount
			nodes += pu.NodeCount
		} else {
			r.FailedFiles++
			st.Failed++
		}
		if pu.Heuristic {
			r.HeuristicFiles++
		}
		r.PerLanguage[pu.Source.Language] = st

		if pu.LineCount > r.LargestFileLines {
			r.LargestFile, r.LargestFileLines = pu.Source.RelPath, pu.LineCount
		}
	}

	r.Coverage, r.SuccessRate, r.AvgNodesPerFile = 0, 0, 0
	if r.EligibleFiles > 0 {
		r.Coverage = float64(r.TotalFiles) / float64(r.EligibleFiles)
	}
	if r.TotalFiles > 0 {
		r.SuccessRate = float64(r.SuccessfulFiles) / float64(r.TotalFiles)
	}
	if r.SuccessfulFiles > 0 {
		r.AvgNodesPerFile = float64(nodes) / float64(r.SuccessfulFiles)
	}
}
