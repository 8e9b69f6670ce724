package db

import (
	"context"
	"database/sql"
	"errors"

	pgvector "github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
)

// SearchRepository answers nearest-neighbor queries over stored hunk
// embeddings and serves the read side of the retrieval tools.
type SearchRepository struct {
	db *bun.DB
}

func NewSearchRepository(database *Database) *SearchRepository {
	return &SearchRepository{db: database.Bun()}
}

// HunkSearchRow is one similarity-search result: the embedding row joined
// with the hunk it indexes and that hunk's current summary, if any.
type HunkSearchRow struct {
	HunkEmbedding `bun:",extend"`

	Header       string   `bun:"header"`
	HunkNo       int      `bun:"hunk_no"`
	AfterSnippet string   `bun:"after_snippet"`
	WhySummary   *string  `bun:"why_summary"`
	RiskTags     []string `bun:"risk_tags,type:jsonb"`
	Distance     float64  `bun:"distance"`
}

// SearchHunks returns up to limit hunks nearest to the query vector, scoped
// to a repository and optionally a single commit. Ordered by distance.
func (r *SearchRepository) SearchHunks(ctx context.Context, embedding []float32, repoID string, commitSHA *string, limit int) ([]HunkSearchRow, error) {
	if limit <= 0 {
		limit = 10
	}
	var results []HunkSearchRow
	q := r.db.NewSelect().Model(&results).
		Column("id", "repo_id", "commit_sha", "file_path", "hunk_id").
		ColumnExpr("h.header AS header").
		ColumnExpr("h.hunk_no AS hunk_no").
		ColumnExpr("h.after_snippet AS after_snippet").
		ColumnExpr("hs.why_summary AS why_summary").
		ColumnExpr("hs.risk_tags AS risk_tags").
		ColumnExpr("embedding <=> ? AS distance", pgvector.NewVector(embedding)).
		Join("JOIN hunks AS h ON h.id = ?TableAlias.hunk_id").
		Join("LEFT JOIN hunk_summaries AS hs ON hs.hunk_id = ?TableAlias.hunk_id").
		Where("?TableAlias.repo_id = ?", repoID).
		OrderExpr("distance").
		Limit(limit)
	if commitSHA != nil && *commitSHA != "" {
		q = q.Where("?TableAlias.commit_sha = ?", *commitSHA)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *SearchRepository) GetCommit(ctx context.Context, repoID, sha string) (*Commit, error) {
	commit := new(Commit)
	err := r.db.NewSelect().Model(commit).
		Where("repo_id = ?", repoID).
		Where("sha = ?", sha).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return commit, nil
}

func (r *SearchRepository) GetCommitSummary(ctx context.Context, commitID int64) (*CommitSummary, error) {
	summary := new(CommitSummary)
	err := r.db.NewSelect().Model(summary).
		Where("commit_id = ?", commitID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return summary, nil
}
