package config

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func Init(root *cobra.Command) {
	viper.AutomaticEnv()
	_ = godotenv.Load(".env")
	if root != nil {
		_ = viper.BindPFlags(root.PersistentFlags())
	}
	setDefaults()
}

func setDefaults() {
	viper.SetDefault(KeyOllamaURL, "http://localhost:11434")
	viper.SetDefault(KeyLogLevel, "info")
	viper.SetDefault(KeyEmbeddingModel, "nomic-embed-text")
	viper.SetDefault(KeyEmbeddingDim, 768)
	viper.SetDefault(KeySummaryModel, "phi3")
	viper.SetDefault(KeyDrainInterval, "30s")
	viper.SetDefault(KeyDrainBatchSize, 5)
	viper.SetDefault(KeyCleanupInterval, "1h")
	viper.SetDefault(KeySummaryContext, 4096)
	viper.SetDefault(KeyLLMCallTimeout, "2m")
	viper.SetDefault(KeyDBMigrationsDir, "internal/db/migrations")
	viper.SetDefault(KeyBackfillCommitMax, 100)
}

func PostgresURL() string          { return viper.GetString(KeyPostgresURL) }
func LogLevel() string             { return viper.GetString(KeyLogLevel) }
func OllamaURL() string            { return viper.GetString(KeyOllamaURL) }
func EmbeddingModel() string       { return viper.GetString(KeyEmbeddingModel) }
func EmbeddingDimensions() int     { return viper.GetInt(KeyEmbeddingDim) }
func SummaryModel() string         { return viper.GetString(KeySummaryModel) }
func WebhookSecret() string        { return viper.GetString(KeyWebhookSecret) }
func GitHubToken() string          { return viper.GetString(KeyGitHubToken) }
func DrainInterval() string        { return viper.GetString(KeyDrainInterval) }
func DrainBatchSize() int          { return viper.GetInt(KeyDrainBatchSize) }
func CleanupInterval() string      { return viper.GetString(KeyCleanupInterval) }
func SummaryContextTokens() int    { return viper.GetInt(KeySummaryContext) }
func LLMCallTimeout() string       { return viper.GetString(KeyLLMCallTimeout) }
func IgnoreRulesFile() string      { return viper.GetString(KeyIgnoreRulesFile) }
func AutoMigrate() bool            { return viper.GetBool(KeyAutoMigrate) }
func MigrationsDir() string        { return viper.GetString(KeyDBMigrationsDir) }
func DBDebug() bool                { return viper.GetBool(KeyDBDebug) }
func BackfillCommitMax() int       { return viper.GetInt(KeyBackfillCommitMax) }
