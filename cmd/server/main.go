package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dferrero/diffscope/internal/config"
	"github.com/dferrero/diffscope/internal/db"
	dbmigrate "github.com/dferrero/diffscope/internal/db/migrate"
	"github.com/dferrero/diffscope/internal/ingest"
	"github.com/dferrero/diffscope/internal/ingest/embeddings"
	"github.com/dferrero/diffscope/internal/ingest/summarize"
	"github.com/dferrero/diffscope/internal/logging"
	"github.com/dferrero/diffscope/internal/metrics"
	"github.com/dferrero/diffscope/internal/queue"
	"github.com/dferrero/diffscope/internal/webhook"
)

func main() {
	root := &cobra.Command{
		Use:   "server",
		Short: "diffscope ingestion server: webhook intake plus queue worker",
		RunE:  run,
	}

	root.PersistentFlags().String("postgres-url", "", "Postgres connection URL")
	root.PersistentFlags().String("ollama-url", "", "Ollama base URL")
	root.PersistentFlags().Int("port", 8080, "HTTP port")
	root.PersistentFlags().String("host", "0.0.0.0", "HTTP host")

	config.Init(root)

	if err := root.Execute(); err != nil {
		log.Fatalf("command failed: %v", err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if config.PostgresURL() == "" {
		return errors.New("POSTGRES_URL must be set")
	}
	if config.WebhookSecret() == "" {
		return errors.New("WEBHOOK_SECRET must be set")
	}

	logger := logging.New(logging.DefaultLogger(config.LogLevel()))

	database, err := db.NewDatabase(db.Config{DSN: config.PostgresURL(), Debug: config.DBDebug()})
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := dbmigrate.EnsureCurrent(ctx, database.Bun(), config.MigrationsDir(), config.AutoMigrate()); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ingestRepo := db.NewIngestRepository(database, config.EmbeddingDimensions())
	queueSvc := queue.NewService(db.NewQueueRepository(database), logger.WithName("queue"))
	gateway := webhook.NewGateway(config.WebhookSecret(), ingestRepo, queueSvc, m, logger)

	summaryClient, err := summarize.NewClient(summarize.Config{
		ModelName:        config.SummaryModel(),
		OllamaURL:        config.OllamaURL(),
		MaxContextTokens: config.SummaryContextTokens(),
		CallTimeout:      config.LLMCallTimeoutDuration(),
	}, logger)
	if err != nil {
		return err
	}
	embedClient, err := embeddings.NewClient(config.OllamaURL(), config.EmbeddingModel(), config.LLMCallTimeoutDuration(), logger.WithName("embeddings"))
	if err != nil {
		return err
	}
	filter, err := ingest.NewPathFilter(config.IgnoreRulesFile())
	if err != nil {
		return err
	}

	fetcher := ingest.NewGitHubFetcher(ingest.NewGitHubClient(config.GitHubToken()))
	indexer := ingest.NewIndexer(summaryClient, embedClient, ingestRepo, logger.WithName("indexer"))
	worker := ingest.NewWorker(queueSvc, fetcher, indexer, ingestRepo, filter, m, logger, config.DrainBatchSize())

	mux := http.NewServeMux()
	gateway.Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		health, err := queueSvc.Health(r.Context())
		if err != nil {
			http.Error(w, "queue health unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if !health.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(health)
	})

	go drainLoop(ctx, worker, queueSvc, m, logger, config.DrainIntervalDuration())
	go cleanupLoop(ctx, queueSvc, logger, config.CleanupIntervalDuration())

	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	addr := host + ":" + strconv.Itoa(port)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ingestion server listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// drainLoop periodically drains the queue and refreshes health gauges.
func drainLoop(ctx context.Context, worker *ingest.Worker, queueSvc *queue.Service, m *metrics.Metrics, logger logging.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := worker.Drain(ctx); err != nil {
				logger.Error(err, "queue drain failed")
			}
			health, err := queueSvc.Health(ctx)
			if err != nil {
				logger.Error(err, "queue health check failed")
				continue
			}
			m.ObserveQueueHealth(health)
			for _, issue := range health.Issues {
				logger.Info("queue health issue", "issue", issue)
			}
		}
	}
}

func cleanupLoop(ctx context.Context, queueSvc *queue.Service, logger logging.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := queueSvc.Cleanup(ctx)
			if err != nil {
				logger.Error(err, "queue cleanup failed")
				continue
			}
			if result.Completed > 0 || result.Failed > 0 {
				logger.Info("queue cleanup", "completed_removed", result.Completed, "failed_removed", result.Failed)
			}
		}
	}
}
