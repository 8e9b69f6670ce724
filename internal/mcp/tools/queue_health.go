package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dferrero/diffscope/internal/queue"
)

type HealthService interface {
	Health(ctx context.Context) (*queue.Health, error)
}

type QueueHealthHandler struct {
	Service HealthService
}

func (h *QueueHealthHandler) ToolAdapter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	health, err := h.Service.Health(ctx)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(mustMarshal(health))), nil
}
