package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// IngestRepository persists everything the ingestion pipeline produces:
// webhook events, commits, files, hunks, summaries and embeddings.
type IngestRepository struct {
	db           *Database
	embeddingDim int
}

func NewIngestRepository(database *Database, embeddingDim int) *IngestRepository {
	return &IngestRepository{db: database, embeddingDim: embeddingDim}
}

// HasDelivery reports whether a webhook delivery id has been seen before.
func (r *IngestRepository) HasDelivery(ctx context.Context, deliveryID string) (bool, error) {
	count, err := r.db.Bun().NewSelect().Model((*WebhookEvent)(nil)).
		Where("delivery_id = ?", deliveryID).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *IngestRepository) StoreWebhookEvent(ctx context.Context, event *WebhookEvent) error {
	_, err := r.db.Bun().NewInsert().Model(event).
		On("CONFLICT (delivery_id) DO NOTHING").
		Exec(ctx)
	return err
}

func (r *IngestRepository) MarkEventProcessed(ctx context.Context, deliveryID, status string) error {
	now := time.Now()
	_, err := r.db.Bun().NewUpdate().Model((*WebhookEvent)(nil)).
		Set("processed = ?", true).
		Set("processing_status = ?", status).
		Set("processed_at = ?", now).
		Where("delivery_id = ?", deliveryID).
		Exec(ctx)
	return err
}

// UpsertCommit stores commit metadata, returning the row id. Re-ingestion of
// the same (repo, sha) refreshes the metadata in place.
func (r *IngestRepository) UpsertCommit(ctx context.Context, commit *Commit) (int64, error) {
	_, err := r.db.Bun().NewInsert().Model(commit).
		On("CONFLICT (repo_id, sha) DO UPDATE").
		Set("message = EXCLUDED.message").
		Set("author = EXCLUDED.author").
		Set("committer = EXCLUDED.committer").
		Set("committed_at = EXCLUDED.committed_at").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return commit.ID, nil
}

// DeleteCommitFiles removes the files (and, by cascade, hunks) previously
// stored for a commit so re-ingestion starts clean.
func (r *IngestRepository) DeleteCommitFiles(ctx context.Context, commitID int64) error {
	_, err := r.db.Bun().NewDelete().Model((*CommitFile)(nil)).
		Where("commit_id = ?", commitID).
		Exec(ctx)
	return err
}

func (r *IngestRepository) InsertFile(ctx context.Context, file *CommitFile) (int64, error) {
	_, err := r.db.Bun().NewInsert().Model(file).Returning("id").Exec(ctx)
	if err != nil {
		return 0, err
	}
	return file.ID, nil
}

func (r *IngestRepository) InsertHunks(ctx context.Context, hunks []*Hunk) error {
	if len(hunks) == 0 {
		return nil
	}
	_, err := r.db.Bun().NewInsert().Model(&hunks).Exec(ctx)
	return err
}

func (r *IngestRepository) UpsertHunkSummary(ctx context.Context, summary *HunkSummary) error {
	_, err := r.db.Bun().NewInsert().Model(summary).
		On("CONFLICT (hunk_id) DO UPDATE").
		Set("why_summary = EXCLUDED.why_summary").
		Set("risk_tags = EXCLUDED.risk_tags").
		Set("model_id = EXCLUDED.model_id").
		Set("created_at = now()").
		Exec(ctx)
	return err
}

// UpsertHunkEmbedding stores one vector. The vector length must match the
// deployment dimension; a mismatch is a hard error, never coerced.
func (r *IngestRepository) UpsertHunkEmbedding(ctx context.Context, embedding *HunkEmbedding) error {
	if got := len(embedding.Embedding.Slice()); got != r.embeddingDim {
		return fmt.Errorf("embedding dimension mismatch: got %d, deployment uses %d", got, r.embeddingDim)
	}
	_, err := r.db.Bun().NewInsert().Model(embedding).
		On("CONFLICT (hunk_id) DO UPDATE").
		Set("embedding = EXCLUDED.embedding").
		Set("repo_id = EXCLUDED.repo_id").
		Set("commit_sha = EXCLUDED.commit_sha").
		Set("file_path = EXCLUDED.file_path").
		Exec(ctx)
	return err
}

func (r *IngestRepository) UpsertCommitSummary(ctx context.Context, summary *CommitSummary) error {
	_, err := r.db.Bun().NewInsert().Model(summary).
		On("CONFLICT (commit_id) DO UPDATE").
		Set("bullets = EXCLUDED.bullets").
		Set("model_id = EXCLUDED.model_id").
		Set("created_at = now()").
		Exec(ctx)
	return err
}

func (r *IngestRepository) GetCommitStatus(ctx context.Context, repoID, sha string) (*CommitProcessingStatus, error) {
	status := new(CommitProcessingStatus)
	err := r.db.Bun().NewSelect().Model(status).
		Where("repo_id = ?", repoID).
		Where("sha = ?", sha).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return status, nil
}

func (r *IngestRepository) UpsertCommitStatus(ctx context.Context, status *CommitProcessingStatus) error {
	status.UpdatedAt = time.Now()
	_, err := r.db.Bun().NewInsert().Model(status).
		On("CONFLICT (repo_id, sha) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("hunk_count = EXCLUDED.hunk_count").
		Set("embedding_count = EXCLUDED.embedding_count").
		Set("processing_time_ms = EXCLUDED.processing_time_ms").
		Set("error = EXCLUDED.error").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (r *IngestRepository) GetPRStatus(ctx context.Context, repoID string, number int) (*PRProcessingStatus, error) {
	status := new(PRProcessingStatus)
	err := r.db.Bun().NewSelect().Model(status).
		Where("repo_id = ?", repoID).
		Where("number = ?", number).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return status, nil
}

func (r *IngestRepository) UpsertPRStatus(ctx context.Context, status *PRProcessingStatus) error {
	status.UpdatedAt = time.Now()
	_, err := r.db.Bun().NewInsert().Model(status).
		On("CONFLICT (repo_id, number) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("commit_count = EXCLUDED.commit_count").
		Set("hunk_count = EXCLUDED.hunk_count").
		Set("embedding_count = EXCLUDED.embedding_count").
		Set("processing_time_ms = EXCLUDED.processing_time_ms").
		Set("error = EXCLUDED.error").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
