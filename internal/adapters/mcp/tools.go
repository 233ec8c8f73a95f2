// Package mcp exposes the analysis lifecycle as Model Context Protocol tools.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/collision-fault-assistant/internal/core/ports"
)

const (
	serverName    = "collision-fault-assistant"
	serverVersion = "1.0.0"
)

// NewServer builds an MCP server with every analysis tool registered.
func NewServer(svc ports.EvaluationService, reader ports.AnalysisReader) *mcpserver.MCPServer {
	server := mcpserver.NewMCPServer(serverName, serverVersion, mcpserver.WithToolCapabilities(false))
	RegisterTools(server, NewHandlers(svc, reader))
	return server
}

func RegisterTools(server *mcpserver.MCPServer, h *Handlers) {
	server.AddTool(mcp.Tool{
		Name:        "init_analysis",
		Description: "Create an empty fault analysis for a road type. Returns the new analysis as JSON.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"road_type": map[string]any{
					"type":        "string",
					"description": "Road context of the collision, e.g. 교차로",
				},
			},
			Required: []string{"road_type"},
		},
	}, h.InitAnalysis)

	server.AddTool(mcp.Tool{
		Name:        "get_analysis",
		Description: "Fetch an analysis with its detected labels and completion flag.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"analysis_id": map[string]any{
					"type":        "string",
					"description": "Analysis identifier",
				},
			},
			Required: []string{"analysis_id"},
		},
	}, h.GetAnalysis)

	server.AddTool(mcp.Tool{
		Name:        "re_evaluate",
		Description: "Answer the pending clarification question and refine the analysis.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"user_id":     map[string]any{"type": "string", "description": "Requesting user"},
				"analysis_id": map[string]any{"type": "string", "description": "Analysis identifier"},
				"user_answer": map[string]any{"type": "string", "description": "Answer to the pending question"},
			},
			Required: []string{"user_id", "analysis_id", "user_answer"},
		},
	}, h.ReEvaluate)

	server.AddTool(mcp.Tool{
		Name:        "ask_followup",
		Description: "Ask a free-form question about an analysis. Prior questions on the same analysis are sent as conversation history.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"user_id":     map[string]any{"type": "string", "description": "Requesting user"},
				"analysis_id": map[string]any{"type": "string", "description": "Analysis identifier"},
				"message":     map[string]any{"type": "string", "description": "Question text"},
			},
			Required: []string{"user_id", "analysis_id", "message"},
		},
	}, h.AskFollowup)

	server.AddTool(mcp.Tool{
		Name:        "list_queries",
		Description: "List the follow-up thread of a user on an analysis in creation order.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"user_id":     map[string]any{"type": "string", "description": "Requesting user"},
				"analysis_id": map[string]any{"type": "string", "description": "Analysis identifier"},
			},
			Required: []string{"user_id", "analysis_id"},
		},
	}, h.ListQueries)
}
