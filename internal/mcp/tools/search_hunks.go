package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dferrero/diffscope/internal/mcp/tools/types"
)

type HunkSearchService interface {
	SearchHunks(ctx context.Context, query, repoID string, commitSHA *string, limit int) ([]types.HunkResult, error)
}

type SearchHunksHandler struct {
	Service HunkSearchService
}

func (h *SearchHunksHandler) ToolAdapter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}
	repoID, _ := args["repo"].(string)
	if repoID == "" {
		return mcp.NewToolResultError("repo parameter is required"), nil
	}
	limit := 10
	if raw, ok := args["limit"].(float64); ok && int(raw) > 0 {
		limit = int(raw)
	}
	var commitSHA *string
	if v, ok := args["commit_sha"].(string); ok && v != "" {
		commitSHA = &v
	}

	results, err := h.Service.SearchHunks(ctx, query, repoID, commitSHA, limit)
	if err != nil {
		return nil, err
	}

	response := struct {
		Query   string             `json:"query"`
		Repo    string             `json:"repo"`
		Results []types.HunkResult `json:"results"`
		Total   int                `json:"total_found"`
	}{Query: query, Repo: repoID, Results: results, Total: len(results)}

	return mcp.NewToolResultText(string(mustMarshal(response))), nil
}
