package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/collision-fault-assistant/internal/core/ports"
)

type Handlers struct {
	svc    ports.EvaluationService
	reader ports.AnalysisReader
}

func NewHandlers(svc ports.EvaluationService, reader ports.AnalysisReader) *Handlers {
	return &Handlers{svc: svc, reader: reader}
}

func (h *Handlers) InitAnalysis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roadType, err := request.RequireString("road_type")
	if err != nil {
		return mcp.NewToolResultError("road_type argument is required and must be a string"), nil
	}
	analysis, err := h.svc.Initialize(ctx, roadType)
	return respond("init_analysis", analysis, err)
}

func (h *Handlers) GetAnalysis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	analysisID, err := request.RequireString("analysis_id")
	if err != nil {
		return mcp.NewToolResultError("analysis_id argument is required and must be a string"), nil
	}
	analysis, err := h.reader.GetAnalysis(ctx, analysisID)
	return respond("get_analysis", analysis, err)
}

func (h *Handlers) ReEvaluate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, errResult := requireStrings(request, "user_id", "analysis_id", "user_answer")
	if errResult != nil {
		return errResult, nil
	}
	result, err := h.svc.ReEvaluate(ctx, args[0], args[1], args[2])
	return respond("re_evaluate", result, err)
}

func (h *Handlers) AskFollowup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, errResult := requireStrings(request, "user_id", "analysis_id", "message")
	if errResult != nil {
		return errResult, nil
	}
	query, err := h.svc.AskFollowup(ctx, args[0], args[1], args[2])
	return respond("ask_followup", query, err)
}

func (h *Handlers) ListQueries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, errResult := requireStrings(request, "user_id", "analysis_id")
	if errResult != nil {
		return errResult, nil
	}
	queries, err := h.reader.ListQueries(ctx, args[0], args[1])
	return respond("list_queries", queries, err)
}

func requireStrings(request mcp.CallToolRequest, names ...string) ([]string, *mcp.CallToolResult) {
	values := make([]string, 0, len(names))
	for _, name := range names {
		value, err := request.RequireString(name)
		if err != nil {
			return nil, mcp.NewToolResultError(fmt.Sprintf("%s argument is required and must be a string", name))
		}
		values = append(values, value)
	}
	return values, nil
}

// respond turns domain failures into tool errors so the calling agent sees the message.
func respond(tool string, payload any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		slog.Warn("mcp_tool_failed", "tool", tool, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", tool, err)), nil
	}
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s result: %w", tool, err)
	}
	return mcp.NewToolResultText(string(body)), nil
}
