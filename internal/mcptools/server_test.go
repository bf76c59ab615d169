package mcptools

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codegraph/internal/query"
	"github.com/dusk-indust/codegraph/internal/store"
)

// setupServerClient connects an MCP client to the server over in-memory
// transports.
func setupServerClient(t *testing.T) *mcp.ClientSession {
	t.Helper()

	server := NewCodeGraphMCPServer(newTestService(t))
	st, ct := mcp.NewInMemoryTransports()
	ctx := context.Background()

	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)
	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = session.Close() })
	return session
}

// decode re-marshals structured tool output into out.
func decode(t *testing.T, res *mcp.CallToolResult, out any) {
	t.Helper()
	require.NotNil(t, res.StructuredContent, "expected structured content")
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestMCPListTools(t *testing.T) {
	session := setupServerClient(t)

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"analyze_architecture",
		"build_graph",
		"parse_project",
		"query_graph",
		"search_symbols",
		"status",
	}, names)
}

// TestMCPBuildThenSearch builds the fixture graph through the client and
// searches it in the same session.
func TestMCPBuildThenSearch(t *testing.T) {
	session := setupServerClient(t)
	ctx := context.Background()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "build_graph",
		Arguments: BuildGraphInput{Path: fixtureAbsPath(t)},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, "build_graph should succeed")

	var built BuildGraphOutput
	decode(t, result, &built)
	require.NotNil(t, built.Build)
	assert.Equal(t, 2, built.Parse.TotalFiles)
	assert.Greater(t, built.Build.TotalNodes, 0)

	result, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "search_symbols",
		Arguments: SearchSymbolsInput{Pattern: "newuser", Limit: 10},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var found query.Outcome
	decode(t, result, &found)
	assert.True(t, found.Success)
	names := make([]string, len(found.Results))
	for i, r := range found.Results {
		names[i] = store.GetString(r, "name")
	}
	assert.ElementsMatch(t, []string{"newUser", "NewUserService"}, names)
}

func TestMCPValidationErrorSetsIsError(t *testing.T) {
	session := setupServerClient(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "search_symbols",
		Arguments: map[string]any{"pattern": ""},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMCPCallUnknownTool(t *testing.T) {
	session := setupServerClient(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "nonexistent_tool",
		Arguments: map[string]any{},
	})
	// The SDK reports unknown tools either at the protocol level or as a
	// tool error.
	if err != nil {
		return
	}
	require.NotNil(t, result)
	assert.True(t, result.IsError, "calling an unknown tool should set IsError")
}
