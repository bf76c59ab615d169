package main

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/dusk-indust/codegraph/internal/analysis"
	"github.com/dusk-indust/codegraph/internal/builder"
	"github.com/dusk-indust/codegraph/internal/engine"
	"github.com/dusk-indust/codegraph/internal/parse"
	"github.com/dusk-indust/codegraph/internal/store"
)

func printParseReport(w io.Writer, pr *parse.Report) {
	if !pr.Success {
		fmt.Fprintf(w, "%s %s\n", color.RedString("✗"), pr.Error)
		return
	}
	fmt.Fprintf(w, "%s parsed %d/%d %s files in %s (coverage %.0f%%)\n",
		color.GreenString("✓"), pr.SuccessfulFiles, pr.TotalFiles, pr.Language,
		pr.Duration.Round(time.Millisecond), pr.Coverage*100)
	if pr.SkippedFiles > 0 {
		fmt.Fprintf(w, "  skipped: %d\n", pr.SkippedFiles)
	}
	if pr.HeuristicFiles > 0 {
		fmt.Fprintf(w, "  heuristic fallback: %d\n", pr.HeuristicFiles)
	}
	for _, pu := range pr.Failures() {
		fmt.Fprintf(w, "  %s %s: %s\n", color.RedString("✗"), pu.Source.RelPath, pu.Diagnostic)
	}
}

func printBuildReport(w io.Writer, pr *parse.Report, res *builder.Result) {
	r := res.Report
	mode := "live"
	if r.DryRun {
		mode = color.YellowString("dry-run")
	}
	marker := color.GreenString("✓")
	if !r.Success {
		marker = color.RedString("✗")
	}
	fmt.Fprintf(w, "%s built graph for %d files [%s]\n", marker, pr.SuccessfulFiles, mode)
	fmt.Fprintf(w, "  nodes:         %d\n", r.TotalNodes)
	fmt.Fprintf(w, "  relationships: %d\n", r.TotalRelationships)
	fmt.Fprintf(w, "  statements:    %d generated, %d executed, %d failed\n",
		r.StatementsGenerated, r.StatementsExecuted, r.StatementsFailed)
	if r.UnresolvedImports > 0 {
		fmt.Fprintf(w, "  unresolved imports: %d\n", r.UnresolvedImports)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", color.RedString("%s", e))
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  %s\n", color.RedString("%s", r.Error))
	}
}

// printRows writes rows as a table with columns in sorted order.
func printRows(w io.Writer, rows []store.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, color.HiBlackString("(no results)"))
		return
	}
	seen := make(map[string]bool)
	var cols []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(cols, "\t")))
	for _, r := range rows {
		vals := make([]string, len(cols))
		for i, c := range cols {
			if v, ok := r[c]; ok && v != nil {
				vals[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(vals, "\t"))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d row(s)\n", len(rows))
}

// severityOrder ranks severities, most severe first.
var severityOrder = map[analysis.Severity]int{
	analysis.SeverityCritical: 0,
	analysis.SeverityHigh:     1,
	analysis.SeverityMedium:   2,
	analysis.SeverityLow:      3,
}

func severityLabel(s analysis.Severity) string {
	switch s {
	case analysis.SeverityCritical:
		return color.New(color.FgHiRed, color.Bold).Sprint(s)
	case analysis.SeverityHigh:
		return color.RedString("%s", s)
	case analysis.SeverityMedium:
		return color.YellowString("%s", s)
	}
	return color.CyanString("%s", s)
}

func printAnalysis(w io.Writer, res *analysis.Result) {
	if !res.Success {
		fmt.Fprintf(w, "%s analysis failed: %s\n", color.RedString("✗"), res.Error)
		return
	}
	issues := slices.Clone(res.Issues)
	sort.SliceStable(issues, func(i, j int) bool {
		return severityOrder[issues[i].Severity] < severityOrder[issues[j].Severity]
	})

	fmt.Fprintln(w, color.CyanString("Architecture analysis"))
	fmt.Fprintf(w, "  files with dependencies: %d\n", len(res.Dependencies))
	fmt.Fprintf(w, "  import cycles:           %d\n", len(res.Cycles))
	fmt.Fprintf(w, "  issues:                  %d\n\n", res.Summary.Total)

	for _, is := range issues {
		fmt.Fprintf(w, "[%s] %s\n", severityLabel(is.Severity), is.Title)
		if is.Description != "" {
			fmt.Fprintf(w, "    %s\n", is.Description)
		}
		if is.Suggestion != "" {
			fmt.Fprintf(w, "    %s %s\n", color.HiBlackString("suggestion:"), is.Suggestion)
		}
	}
	if len(issues) == 0 {
		fmt.Fprintf(w, "%s no issues found\n", color.GreenString("✓"))
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "%s %s\n", color.YellowString("warning:"), warn)
	}
	if len(res.Limitations) > 0 {
		fmt.Fprintln(w, color.HiBlackString("\nLimitations:"))
		for _, l := range res.Limitations {
			fmt.Fprintf(w, "  %s\n", color.HiBlackString("- %s", l))
		}
	}
}

func printStatus(w io.Writer, st engine.Status) {
	fmt.Fprintln(w, color.CyanString("ckg status"))
	if st.Store.Connected {
		fmt.Fprintf(w, "  Store:    %s (%s)\n", color.GreenString("connected"), st.Store.Backend)
	} else {
		fmt.Fprintf(w, "  Store:    %s (%s) %s\n", color.RedString("disconnected"), st.Store.Backend,
			color.HiBlackString("%s", st.Store.Error))
	}
	fmt.Fprintf(w, "  Builder:  %s\n", st.Builder.Mode)
	fmt.Fprintf(w, "  Analyzer: %s\n", st.Analyzer.State)
	if st.Config != "" {
		fmt.Fprintf(w, "  Config:   %s\n", st.Config)
	}
	fmt.Fprintln(w, "  Parsers:")
	for _, p := range st.Parsers {
		if p.Available {
			fmt.Fprintf(w, "    %s %s\n", color.GreenString("✓"), p.Language)
		} else {
			fmt.Fprintf(w, "    %s %s %s\n", color.RedString("✗"), p.Language, color.HiBlackString("%s", p.Error))
		}
	}
}
