package analysis

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/codegraph/internal/store"
)

// IssueKind classifies a finding.
type IssueKind string

const (
	KindCircularDependency  IssueKind = "CircularDependency"
	KindUnusedPublicElement IssueKind = "UnusedPublicElement"
	KindOrphanedModule      IssueKind = "OrphanedModule"
	KindExcessiveCoupling   IssueKind = "ExcessiveCoupling"
)

type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Severities lists every severity from least to most severe.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Limitation accompanies every issue.
const Limitation = "Static analysis limitation: usages through reflection, dependency injection, " +
	"dynamic loading, or files outside the analyzed project are not visible, so this finding may be a false positive."

// limitations are reported on every result, including failed and empty ones.
var limitations = []string{
	"Reflection and dynamic dispatch are not resolved; calls made through them are invisible.",
	"Dependency injection and framework wiring are not modeled; injected usages are invisible.",
	"Dynamically loaded modules and plugins are not detected.",
	"Files outside the analyzed project, and unparsed files, are not part of the graph.",
	"Only file-level import edges are used for cycle detection.",
}

// Limitations returns the fixed list of analysis limitations.
func Limitations() []string { return append([]string(nil), limitations...) }

// Issue is one architectural finding.
type Issue struct {
	Kind        IssueKind `json:"kind"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Elements    []string  `json:"elements"`
	Suggestion  string    `json:"suggestion,omitempty"`
	Limitation  string    `json:"limitation"`
}

// cycleIssue spans more than three elements at High, otherwise Medium.
func cycleIssue(cycle []string) Issue {
	sev := SeverityMedium
	if len(cycle) > 3 {
		sev = SeverityHigh
	}
	loop := append(append([]string(nil), cycle...), cycle[0])
	return Issue{
		Kind:        KindCircularDependency,
		Severity:    sev,
		Title:       fmt.Sprintf("Circular dependency between %d files", len(cycle)),
		Description: "Import cycle: " + strings.Join(loop, " -> "),
		Elements:    append([]string(nil), cycle...),
		Suggestion:  "Extract the shared declarations into a module that none of the files in the cycle import, or invert one dependency behind an interface.",
		Limitation:  Limitation,
	}
}

func unusedIssue(row store.Row) Issue {
	name, kind := store.GetString(row, "name"), store.GetString(row, "kind")
	path, line := store.GetString(row, "file_path"), store.GetInt(row, "start_line")
	return Issue{
		Kind:        KindUnusedPublicElement,
		Severity:    SeverityLow,
		Title:       fmt.Sprintf("Unused public %s %s", strings.ToLower(kind), name),
		Description: fmt.Sprintf("%s %s at %s:%d is public but has no references in the project.", kind, name, path, line),
		Elements:    []string{elementLabel(path, name)},
		Suggestion:  "Remove it, or reduce its visibility if it is only used internally.",
		Limitation:  Limitation,
	}
}

func orphanIssue(path string) Issue {
	return Issue{
		Kind:        KindOrphanedModule,
		Severity:    SeverityLow,
		Title:       "Orphaned module " + path,
		Description: fmt.Sprintf("%s neither imports nor is imported by any other project file.", path),
		Elements:    []string{path},
		Suggestion:  "Check whether the file is still needed, or wire it into the module that should use it.",
		Limitation:  Limitation,
	}
}

// couplingIssue is High at twice the threshold, otherwise Medium.
func couplingIssue(path string, fanOut, threshold int) Issue {
	sev := SeverityMedium
	if fanOut >= 2*threshold {
		sev = SeverityHigh
	}
	return Issue{
		Kind:        KindExcessiveCoupling,
		Severity:    sev,
		Title:       "Excessive coupling in " + path,
		Description: fmt.Sprintf("%s depends on %d project files (threshold %d).", path, fanOut, threshold),
		Elements:    []string{path},
		Suggestion:  "Split the file by responsibility or introduce a facade for related dependencies.",
		Limitation:  Limitation,
	}
}

func elementLabel(path, name string) string {
	if path == "" {
		return name
	}
	return path + ":" + name
}

// Summary counts issues.
type Summary struct {
	Total      int               `json:"total"`
	ByKind     map[IssueKind]int `json:"byKind"`
	BySeverity map[Severity]int  `json:"bySeverity"`
}

func summarize(issues []Issue) Summary {
	s := Summary{
		Total:      len(issues),
		ByKind:     make(map[IssueKind]int),
		BySeverity: make(map[Severity]int),
	}
	for _, is := range issues {
		s.ByKind[is.Kind]++
		s.BySeverity[is.Severity]++
	}
	return s
}
