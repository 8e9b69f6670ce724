package mcp

import (
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dferrero/diffscope/internal/config"
	"github.com/dferrero/diffscope/internal/db"
	"github.com/dferrero/diffscope/internal/ingest/embeddings"
	"github.com/dferrero/diffscope/internal/logging"
	"github.com/dferrero/diffscope/internal/mcp/tools"
	"github.com/dferrero/diffscope/internal/queue"
)

type Config struct {
	ToolAdapters map[string]ToolAdapter
	Options      []server.StreamableHTTPOption
	Database     *db.Database
}

func DefaultConfig() Config {
	database, err := db.NewDatabase(db.Config{DSN: config.PostgresURL(), Debug: config.DBDebug()})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	baseLogger := logging.New(logging.DefaultLogger(config.LogLevel()))

	searchRepo := db.NewSearchRepository(database)
	embedClient, err := embeddings.NewClient(config.OllamaURL(), config.EmbeddingModel(), config.LLMCallTimeoutDuration(), baseLogger.WithName("embeddings"))
	if err != nil {
		log.Fatalf("failed to init embeddings client: %v", err)
	}
	searchService := tools.NewDBSearchService(searchRepo, embedClient)
	queueService := queue.NewService(db.NewQueueRepository(database), baseLogger.WithName("queue"))

	return Config{
		ToolAdapters: map[string]ToolAdapter{
			"search_hunks":       &tools.SearchHunksHandler{Service: searchService},
			"get_commit_summary": &tools.GetCommitSummaryHandler{Service: searchService},
			"queue_health":       &tools.QueueHealthHandler{Service: queueService},
		},
		Options: []server.StreamableHTTPOption{
			server.WithEndpointPath("/mcp/jsonrpc"),
			server.WithStateLess(true),
		},
		Database: database,
	}
}
