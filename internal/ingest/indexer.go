package ingest

import (
	"context"
	"fmt"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/dferrero/diffscope/internal/db"
	"github.com/dferrero/diffscope/internal/ingest/embeddings"
	"github.com/dferrero/diffscope/internal/ingest/summarize"
	"github.com/dferrero/diffscope/internal/logging"
)

// Summarizer is the LLM collaborator boundary for the indexer.
type Summarizer interface {
	SummarizeHunks(ctx context.Context, inputs []summarize.HunkInput, commitMessage string) []summarize.Result
	SummarizeCommit(ctx context.Context, hunkSummaries []string, commitMessage string) ([]string, error)
	ModelID() string
}

// Embedder is the embedding collaborator boundary.
type Embedder interface {
	EmbedTexts(ctx context.Context, inputs []string) ([][]float32, error)
}

// IndexStore is the persistence surface the indexer writes to.
type IndexStore interface {
	UpsertHunkSummary(ctx context.Context, summary *db.HunkSummary) error
	UpsertHunkEmbedding(ctx context.Context, embedding *db.HunkEmbedding) error
	UpsertCommitSummary(ctx context.Context, summary *db.CommitSummary) error
}

// IndexedCommit carries the commit context the indexer needs.
type IndexedCommit struct {
	RepoID   string
	CommitID int64
	SHA      string
	Message  string
}

// IndexedHunk pairs a persisted hunk with the path it belongs to.
type IndexedHunk struct {
	Hunk *db.Hunk
	Path string
}

// IndexResult reports what one indexing pass produced. Errors is a
// side-channel of per-hunk degradations; it does not imply the pass failed.
type IndexResult struct {
	Summaries  int
	Embeddings int
	Errors     []string
}

// Indexer turns persisted hunks into summaries and embedding vectors and is
// the only writer of hunk_summaries, hunk_embeddings and commit_summaries.
type Indexer struct {
	summarizer Summarizer
	embedder   Embedder
	store      IndexStore
	log        logging.Logger
}

func NewIndexer(summarizer Summarizer, embedder Embedder, store IndexStore, log logging.Logger) *Indexer {
	return &Indexer{summarizer: summarizer, embedder: embedder, store: store, log: log.WithName("indexer")}
}

// IndexCommit summarizes and embeds every hunk of one commit. A per-hunk
// summarization failure degrades that hunk to its deterministic fallback and
// is recorded; an embedding failure aborts the pass because the batch is
// all-or-nothing.
func (ix *Indexer) IndexCommit(ctx context.Context, commit IndexedCommit, hunks []IndexedHunk) (IndexResult, error) {
	result := IndexResult{}
	if len(hunks) == 0 {
		return result, nil
	}

	inputs := make([]summarize.HunkInput, 0, len(hunks))
	for _, h := range hunks {
		inputs = append(inputs, summarize.HunkInput{
			HunkID:       h.Hunk.ID,
			Path:         h.Path,
			Header:       h.Hunk.Header,
			AfterSnippet: h.Hunk.AfterSnippet,
			LinesAdded:   h.Hunk.LinesAdded,
			LinesRemoved: h.Hunk.LinesRemoved,
		})
	}

	summaries := ix.summarizer.SummarizeHunks(ctx, inputs, commit.Message)
	summaryTexts := make([]string, 0, len(summaries))
	for _, s := range summaries {
		if s.Err != nil {
			reason, category := summarize.FailureDetails(s.Err)
			result.Errors = append(result.Errors, fmt.Sprintf("hunk %d [%s]: %s", s.HunkID, category, reason))
		}
		if err := ix.store.UpsertHunkSummary(ctx, &db.HunkSummary{
			HunkID:     s.HunkID,
			WhySummary: s.Summary,
			RiskTags:   s.Labels,
			ModelID:    ix.summarizer.ModelID(),
		}); err != nil {
			return result, fmt.Errorf("store summary for hunk %d: %w", s.HunkID, err)
		}
		result.Summaries++
		summaryTexts = append(summaryTexts, s.Summary)
	}

	texts := make([]string, 0, len(hunks))
	for i, h := range hunks {
		texts = append(texts, embeddings.BuildEmbeddingText(
			h.Path, h.Hunk.Header, summaries[i].Summary, h.Hunk.AfterSnippet, commit.Message))
	}

	vectors, err := ix.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return result, fmt.Errorf("embed %d hunks: %w", len(texts), err)
	}

	for i, h := range hunks {
		if err := ix.store.UpsertHunkEmbedding(ctx, &db.HunkEmbedding{
			RepoID:    commit.RepoID,
			CommitSHA: commit.SHA,
			FilePath:  h.Path,
			HunkID:    h.Hunk.ID,
			Embedding: pgvector.NewVector(vectors[i]),
		}); err != nil {
			return result, fmt.Errorf("store embedding for hunk %d: %w", h.Hunk.ID, err)
		}
		result.Embeddings++
	}

	bullets, err := ix.summarizer.SummarizeCommit(ctx, summaryTexts, commit.Message)
	if err != nil {
		// Commit-level bullets are an enrichment; their failure must not
		// fail the hunks already indexed.
		ix.log.Error(err, "commit summary failed", "repo", commit.RepoID, "sha", commit.SHA)
		result.Errors = append(result.Errors, fmt.Sprintf("commit summary: %s", err.Error()))
		return result, nil
	}
	if err := ix.store.UpsertCommitSummary(ctx, &db.CommitSummary{
		CommitID: commit.CommitID,
		Bullets:  bullets,
		ModelID:  ix.summarizer.ModelID(),
	}); err != nil {
		return result, fmt.Errorf("store commit summary: %w", err)
	}

	return result, nil
}
