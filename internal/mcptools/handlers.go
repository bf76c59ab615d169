package mcptools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/codegraph/internal/analysis"
	"github.com/dusk-indust/codegraph/internal/builder"
	"github.com/dusk-indust/codegraph/internal/engine"
	"github.com/dusk-indust/codegraph/internal/parse"
	"github.com/dusk-indust/codegraph/internal/query"
)

// Engine is the subset of *engine.Engine the tools call.
type Engine interface {
	ParseProjectLanguage(ctx context.Context, path, language string) *parse.Report
	BuildGraph(ctx context.Context, report *parse.Report) *builder.Result
	Query(ctx context.Context, text string, params map[string]any) query.Outcome
	NamedQuery(ctx context.Context, name string, params map[string]any) query.Outcome
	Search(ctx context.Context, pattern string, limit int) query.Outcome
	AnalyzeArchitecture(ctx context.Context, path string) *analysis.Result
	Status(ctx context.Context) engine.Status
}

// CodeGraphService holds the engine behind the MCP tool handlers.
type CodeGraphService struct {
	engine      Engine
	projectRoot string
	logger      *slog.Logger
}

// NewCodeGraphService creates a service. projectRoot is used when a tool
// call names no path.
func NewCodeGraphService(e Engine, projectRoot string, logger *slog.Logger) *CodeGraphService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CodeGraphService{engine: e, projectRoot: projectRoot, logger: logger}
}

func (s *CodeGraphService) projectPath(p string) (string, error) {
	if p == "" {
		p = s.projectRoot
	}
	if p == "" {
		return "", errors.New("path is required")
	}
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("cannot access path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", p)
	}
	return p, nil
}

// ParseProject parses a project and returns the summary.
func (s *CodeGraphService) ParseProject(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ParseProjectInput,
) (*mcp.CallToolResult, ParseProjectOutput, error) {
	path, err := s.projectPath(input.Path)
	if err != nil {
		return nil, ParseProjectOutput{}, err
	}
	rep := s.engine.ParseProjectLanguage(ctx, path, input.Language)
	return nil, summarizeParse(rep), nil
}

// BuildGraph parses a project and builds its graph.
func (s *CodeGraphService) BuildGraph(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input BuildGraphInput,
) (*mcp.CallToolResult, BuildGraphOutput, error) {
	path, err := s.projectPath(input.Path)
	if err != nil {
		return nil, BuildGraphOutput{}, err
	}
	rep := s.engine.ParseProjectLanguage(ctx, path, input.Language)
	out := BuildGraphOutput{Parse: summarizeParse(rep)}
	if !rep.Success {
		return nil, out, fmt.Errorf("parse failed: %s", rep.Error)
	}
	res := s.engine.BuildGraph(ctx, rep)
	out.Build = res.Report
	s.logger.Info("graph built via mcp",
		slog.String("path", path),
		slog.Int("nodes", res.Report.TotalNodes),
		slog.Int("relationships", res.Report.TotalRelationships),
		slog.Bool("dry_run", res.Report.DryRun))
	return nil, out, nil
}

// QueryGraph runs an ad-hoc or named query.
func (s *CodeGraphService) QueryGraph(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryGraphInput,
) (*mcp.CallToolResult, query.Outcome, error) {
	switch {
	case input.Query != "" && input.Name != "":
		return nil, query.Outcome{}, errors.New("set either query or name, not both")
	case input.Name != "":
		return nil, s.engine.NamedQuery(ctx, input.Name, input.Params), nil
	case input.Query != "":
		return nil, s.engine.Query(ctx, input.Query, input.Params), nil
	}
	return nil, query.Outcome{}, errors.New("query or name is required")
}

// SearchSymbols finds symbols by name substring.
func (s *CodeGraphService) SearchSymbols(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchSymbolsInput,
) (*mcp.CallToolResult, query.Outcome, error) {
	if input.Pattern == "" {
		return nil, query.Outcome{}, errors.New("pattern is required")
	}
	if input.Limit < 0 {
		return nil, query.Outcome{}, fmt.Errorf("limit must not be negative, got %d", input.Limit)
	}
	return nil, s.engine.Search(ctx, input.Pattern, input.Limit), nil
}

// AnalyzeArchitecture runs the architecture analysis.
func (s *CodeGraphService) AnalyzeArchitecture(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnalyzeInput,
) (*mcp.CallToolResult, analysis.Result, error) {
	path := input.Path
	if path == "" {
		path = s.projectRoot
	}
	res := s.engine.AnalyzeArchitecture(ctx, path)
	return nil, *res, nil
}

// Status reports component health.
func (s *CodeGraphService) Status(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatusInput,
) (*mcp.CallToolResult, engine.Status, error) {
	return nil, s.engine.Status(ctx), nil
}
