package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/app"
)

// registerCrawlTools mirrors every registry tool onto the MCP server. The
// registry already carries JSON-schema input descriptions, so tools register
// with their raw schemas.
func registerCrawlTools(mcpServer *server.MCPServer, application *app.App, logger arbor.ILogger) {
	for _, schema := range application.ToolRegistry.GetAll() {
		rawSchema, err := json.Marshal(schema.InputSchema)
		if err != nil {
			logger.Warn().Err(err).Str("tool", schema.Name).Msg("Skipping tool with unserializable schema")
			continue
		}

		tool := mcp.NewToolWithRawSchema(schema.Name, schema.Description, rawSchema)
		mcpServer.AddTool(tool, makeHandler(application, schema.Name, logger))
	}
}

// makeHandler adapts one registry tool to the MCP handler contract. Executor
// failures come back as error envelopes, so they render as tool output
// rather than protocol errors.
func makeHandler(application *app.App, name string, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		result, err := application.ToolRegistry.Execute(ctx, name, args)
		if err != nil {
			logger.Error().Err(err).Str("tool", name).Msg("Tool execution failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Error: %v", err)),
				},
			}, nil
		}

		rendered, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			rendered = []byte(fmt.Sprintf("%v", result))
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(string(rendered)),
			},
		}, nil
	}
}
