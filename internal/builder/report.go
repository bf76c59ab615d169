package builder

import (
	"fmt"
	"time"

	"github.com/dusk-indust/codegraph/internal/graph"
)

// maxReportedErrors bounds Report.Errors; further errors are only counted.
const maxReportedErrors = 50

// Report summarizes one Build. In dry-run mode the totals count generated
// statements; against a store they count statements that executed, so an
// edge whose endpoint failed to write is never included.
type Report struct {
	RunID string `json:"runId"`

	TotalNodes         int `json:"totalNodes"`
	TotalRelationships int `json:"totalRelationships"`

	StatementsGenerated int `json:"statementsGenerated"`
	StatementsExecuted  int `json:"statementsExecuted"`
	StatementsFailed    int `json:"statementsFailed"`
	StatementsSkipped   int `json:"statementsSkipped"`

	NodesByKind         map[graph.NodeKind]int `json:"nodesByKind"`
	RelationshipsByKind map[graph.RelKind]int  `json:"relationshipsByKind"`

	FilesProcessed int `json:"filesProcessed"`
	FilesFailed    int `json:"filesFailed"`

	// UnresolvedImports counts import statements that did not map to a
	// project file (external or standard library modules included).
	UnresolvedImports int `json:"unresolvedImports"`

	DryRun bool `json:"dryRun"`
	// Density is edges / (n·(n−1)); zero unless more than one node exists.
	Density float64 `json:"density"`

	Duration time.Duration `json:"duration"`
	Errors   []string      `json:"errors,omitempty"`
	// ErrorCount includes errors beyond the Errors bound.
	ErrorCount int `json:"errorCount"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func newReport(runID string, dryRun bool) *Report {
	return &Report{
		RunID:               runID,
		DryRun:              dryRun,
		NodesByKind:         make(map[graph.NodeKind]int),
		RelationshipsByKind: make(map[graph.RelKind]int),
	}
}

func (r *Report) addError(format string, args ...any) {
	r.ErrorCount++
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	}
}

func (r *Report) countNode(kind graph.NodeKind) {
	r.TotalNodes++
	r.NodesByKind[kind]++
}

func (r *Report) countRel(kind graph.RelKind) {
	r.TotalRelationships++
	r.RelationshipsByKind[kind]++
}

func (r *Report) finish(elapsed time.Duration) {
	r.Duration = elapsed
	r.Density = 0
	if n := r.TotalNodes; n > 1 {
		r.Density = float64(r.TotalRelationships) / (float64(n) * float64(n-1))
	}
}
