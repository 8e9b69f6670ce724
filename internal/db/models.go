package db

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
)

// WebhookEvent is a raw delivery received on the webhook endpoint. Rows are
// kept after processing for audit purposes and are never cleaned up
// automatically.
type WebhookEvent struct {
	bun.BaseModel `bun:"table:webhook_events"`

	ID               int64      `bun:"id,pk,autoincrement"`
	DeliveryID       string     `bun:"delivery_id,unique"`
	EventType        string     `bun:"event_type"`
	RepoID           string     `bun:"repo_id"`
	EventID          string     `bun:"event_id"`
	RawPayload       []byte     `bun:"raw_payload"`
	Processed        bool       `bun:"processed"`
	ProcessingStatus string     `bun:"processing_status"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,default:now()"`
	ProcessedAt      *time.Time `bun:"processed_at"`
}

// QueueItem is one unit of ingestion work keyed by (repo, target type,
// target id). At most one non-terminal row may exist per key.
type QueueItem struct {
	bun.BaseModel `bun:"table:queue_items"`

	ID          int64             `bun:"id,pk,autoincrement"`
	RepoID      string            `bun:"repo_id"`
	TargetType  string            `bun:"target_type"`
	TargetID    string            `bun:"target_id"`
	Priority    int               `bun:"priority"`
	Status      string            `bun:"status"`
	Attempts    int               `bun:"attempts"`
	MaxAttempts int               `bun:"max_attempts"`
	Metadata    map[string]string `bun:"metadata,type:jsonb,nullzero"`
	Error       *string           `bun:"error"`
	CreatedAt   time.Time         `bun:"created_at,nullzero,default:now()"`
	StartedAt   *time.Time        `bun:"started_at"`
	CompletedAt *time.Time        `bun:"completed_at"`
	NextRetryAt *time.Time        `bun:"next_retry_at"`
}

type Commit struct {
	bun.BaseModel `bun:"table:commits"`

	ID          int64     `bun:"id,pk,autoincrement"`
	RepoID      string    `bun:"repo_id"`
	SHA         string    `bun:"sha"`
	Message     string    `bun:"message"`
	Author      string    `bun:"author"`
	Committer   string    `bun:"committer"`
	CommittedAt time.Time `bun:"committed_at,nullzero"`
	CreatedAt   time.Time `bun:"created_at,nullzero,default:now()"`
}

// CommitFile is one changed path within a commit.
type CommitFile struct {
	bun.BaseModel `bun:"table:commit_files"`

	ID        int64   `bun:"id,pk,autoincrement"`
	CommitID  int64   `bun:"commit_id"`
	Path      string  `bun:"path"`
	Status    string  `bun:"status"` // modified|added|deleted|renamed
	Additions int     `bun:"additions"`
	Deletions int     `bun:"deletions"`
	Changes   int     `bun:"changes"`
	OldPath   *string `bun:"old_path"`
}

// Hunk is one contiguous block of changed lines, immutable once created.
// Snippets are capped at parse time to bound document size.
type Hunk struct {
	bun.BaseModel `bun:"table:hunks"`

	ID            int64  `bun:"id,pk,autoincrement"`
	FileID        int64  `bun:"file_id"`
	HunkNo        int    `bun:"hunk_no"`
	OldStart      int    `bun:"old_start"`
	OldLines      int    `bun:"old_lines"`
	NewStart      int    `bun:"new_start"`
	NewLines      int    `bun:"new_lines"`
	Header        string `bun:"header"`
	BeforeSnippet string `bun:"before_snippet"`
	AfterSnippet  string `bun:"after_snippet"`
	LinesAdded    int    `bun:"lines_added"`
	LinesRemoved  int    `bun:"lines_removed"`
}

// HunkSummary holds the current "why did this change" summary for a hunk.
// Re-ingestion overwrites it; summaries are not versioned.
type HunkSummary struct {
	bun.BaseModel `bun:"table:hunk_summaries"`

	ID         int64     `bun:"id,pk,autoincrement"`
	HunkID     int64     `bun:"hunk_id,unique"`
	WhySummary string    `bun:"why_summary"`
	RiskTags   []string  `bun:"risk_tags,type:jsonb,nullzero"`
	ModelID    string    `bun:"model_id"`
	CreatedAt  time.Time `bun:"created_at,nullzero,default:now()"`
}

type HunkEmbedding struct {
	bun.BaseModel `bun:"table:hunk_embeddings"`

	ID        int64           `bun:"id,pk,autoincrement"`
	RepoID    string          `bun:"repo_id"`
	CommitSHA string          `bun:"commit_sha"`
	FilePath  string          `bun:"file_path"`
	HunkID    int64           `bun:"hunk_id,unique"`
	Embedding pgvector.Vector `bun:"embedding"`
}

type CommitSummary struct {
	bun.BaseModel `bun:"table:commit_summaries"`

	ID        int64     `bun:"id,pk,autoincrement"`
	CommitID  int64     `bun:"commit_id,unique"`
	Bullets   []string  `bun:"bullets,type:jsonb,nullzero"`
	ModelID   string    `bun:"model_id"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:now()"`
}

// CommitProcessingStatus tracks the pipeline phase for one commit. Phases
// only move forward; the row is patched in place as the worker advances.
type CommitProcessingStatus struct {
	bun.BaseModel `bun:"table:commit_processing_status"`

	ID               int64     `bun:"id,pk,autoincrement"`
	RepoID           string    `bun:"repo_id"`
	SHA              string    `bun:"sha"`
	Status           string    `bun:"status"`
	HunkCount        int       `bun:"hunk_count"`
	EmbeddingCount   int       `bun:"embedding_count"`
	ProcessingTimeMs int64     `bun:"processing_time_ms"`
	Error            *string   `bun:"error"`
	CreatedAt        time.Time `bun:"created_at,nullzero,default:now()"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,default:now()"`
}

type PRProcessingStatus struct {
	bun.BaseModel `bun:"table:pr_processing_status"`

	ID               int64     `bun:"id,pk,autoincrement"`
	RepoID           string    `bun:"repo_id"`
	Number           int       `bun:"number"`
	Status           string    `bun:"status"`
	CommitCount      int       `bun:"commit_count"`
	HunkCount        int       `bun:"hunk_count"`
	EmbeddingCount   int       `bun:"embedding_count"`
	ProcessingTimeMs int64     `bun:"processing_time_ms"`
	Error            *string   `bun:"error"`
	CreatedAt        time.Time `bun:"created_at,nullzero,default:now()"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,default:now()"`
}
