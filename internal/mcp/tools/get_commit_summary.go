package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dferrero/diffscope/internal/mcp/tools/types"
)

type CommitSummaryService interface {
	GetCommitSummary(ctx context.Context, repoID, sha string) (*types.CommitSummaryResult, error)
}

type GetCommitSummaryHandler struct {
	Service CommitSummaryService
}

func (h *GetCommitSummaryHandler) ToolAdapter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	repoID, _ := args["repo"].(string)
	if repoID == "" {
		return mcp.NewToolResultError("repo parameter is required"), nil
	}
	sha, _ := args["sha"].(string)
	if sha == "" {
		return mcp.NewToolResultError("sha parameter is required"), nil
	}

	result, err := h.Service.GetCommitSummary(ctx, repoID, sha)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return mcp.NewToolResultError("commit not found"), nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultJSON(payload)
}
