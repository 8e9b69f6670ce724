package mcp

import (
	"context"
	"log"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dferrero/diffscope/internal/db"
)

type ToolAdapter interface {
	ToolAdapter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

type Server struct {
	MCP     *server.MCPServer
	HTTP    *server.StreamableHTTPServer
	Handler http.Handler
	DB      *db.Database
}

func New(cfg Config) *Server {
	mcpServer := server.NewMCPServer(
		"diffscope-server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	toolDefinitions := map[string]mcp.Tool{
		"search_hunks": mcp.NewTool("search_hunks",
			mcp.WithDescription("Semantic search across indexed diff hunks using embeddings. Returns matching hunks with their change summaries and similarity scores."),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Natural language search query (e.g., 'retry logic around database writes')"),
			),
			mcp.WithString("repo",
				mcp.Required(),
				mcp.Description("Repository to search, as owner/name (e.g., 'acme/payments')"),
			),
			mcp.WithString("commit_sha",
				mcp.Description("Optional: restrict results to hunks from a single commit"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results to return (default: 10)"),
			),
		),
		"get_commit_summary": mcp.NewTool("get_commit_summary",
			mcp.WithDescription("Retrieve the stored summary for a commit: message, author and the generated change bullets."),
			mcp.WithString("repo",
				mcp.Required(),
				mcp.Description("Repository the commit belongs to, as owner/name"),
			),
			mcp.WithString("sha",
				mcp.Required(),
				mcp.Description("Full commit SHA"),
			),
		),
		"queue_health": mcp.NewTool("queue_health",
			mcp.WithDescription("Report ingestion queue health: per-status counts, stuck items, recent throughput and any active issues."),
		),
	}

	for name, adapter := range cfg.ToolAdapters {
		tool := toolDefinitions[name]
		mcpServer.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return adapter.ToolAdapter(ctx, req)
		})
	}

	httpServer := server.NewStreamableHTTPServer(mcpServer, cfg.Options...)

	return &Server{
		MCP:     mcpServer,
		HTTP:    httpServer,
		Handler: httpServer,
		DB:      cfg.Database,
	}
}

func (s *Server) Close() {
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Printf("error closing database: %v", err)
		}
	}
}
