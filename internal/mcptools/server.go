// Package mcptools exposes the code graph engine as Model Context Protocol
// tools.
package mcptools

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

const shutdownTimeout = 5 * time.Second

// NewCodeGraphMCPServer creates an MCP server with every code graph tool
// registered.
func NewCodeGraphMCPServer(svc *CodeGraphService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "ckg",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "parse_project",
		Description: "Parse every source file of a project into syntax trees and report per-file success, coverage and failures.",
	}, svc.ParseProject)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "build_graph",
		Description: "Parse a project and write its code knowledge graph (files, symbols, imports, calls, inheritance) to the configured store. Without a store the build runs dry.",
	}, svc.BuildGraph)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_graph",
		Description: "Run a Cypher query, or a named query such as callers_of, functions_in_file or project_stats, against the graph.",
	}, svc.QueryGraph)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_symbols",
		Description: "Find functions, classes and other symbols whose name contains a pattern, ignoring case.",
	}, svc.SearchSymbols)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_architecture",
		Description: "Detect import cycles, unused public elements, orphaned modules and excessive coupling in the built graph.",
	}, svc.AnalyzeArchitecture)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "status",
		Description: "Report parser plugin availability, graph store connectivity, builder mode and analyzer state.",
	}, svc.Status)

	return server
}

// RunMCPServer serves the tools over streamable HTTP on addr until ctx is
// cancelled.
func RunMCPServer(ctx context.Context, svc *CodeGraphService, addr string) error {
	server := NewCodeGraphMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			svc.logger.Warn("mcp server shutdown", slog.String("error", err.Error()))
		}
	}()

	svc.logger.Info("mcp server listening", slog.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RunMCPServerStdio serves the tools on stdin/stdout until the input closes
// or ctx is cancelled.
func RunMCPServerStdio(ctx context.Context, svc *CodeGraphService) error {
	return NewCodeGraphMCPServer(svc).Run(ctx, &mcp.StdioTransport{})
}
