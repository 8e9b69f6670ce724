package config

const (
	KeyPostgresURL       = "postgres_url"
	KeyOllamaURL         = "ollama_url"
	KeyLogLevel          = "log_level"
	KeyEmbeddingModel    = "embedding_model_name"
	KeyEmbeddingDim      = "embedding_dimensions"
	KeySummaryModel      = "summary_model_name"
	KeyWebhookSecret     = "github_webhook_secret"
	KeyGitHubToken       = "github_token"
	KeyDrainInterval     = "queue_drain_interval"
	KeyDrainBatchSize    = "queue_drain_batch_size"
	KeyCleanupInterval   = "queue_cleanup_interval"
	KeySummaryContext    = "summary_context_tokens"
	KeyLLMCallTimeout    = "llm_call_timeout"
	KeyIgnoreRulesFile   = "ignore_rules_file"
	KeyAutoMigrate       = "auto_migrate"
	KeyDBMigrationsDir   = "db_migrations_dir"
	KeyDBDebug           = "db_debug"
	KeyBackfillCommitMax = "backfill_commit_max"
)
