package tools

import (
	"context"
	"fmt"
	"strings"

	vcsurl "github.com/gitsight/go-vcsurl"

	"github.com/dferrero/diffscope/internal/db"
	"github.com/dferrero/diffscope/internal/ingest/embeddings"
	"github.com/dferrero/diffscope/internal/mcp/tools/types"
)

// DBSearchService backs the retrieval tools with the embeddings store: it
// embeds the query text and delegates nearest-neighbor search to Postgres.
type DBSearchService struct {
	Repository  *db.SearchRepository
	EmbedClient *embeddings.Client
}

func NewDBSearchService(repo *db.SearchRepository, embed *embeddings.Client) *DBSearchService {
	return &DBSearchService{Repository: repo, EmbedClient: embed}
}

func (s *DBSearchService) SearchHunks(ctx context.Context, query, repoID string, commitSHA *string, limit int) ([]types.HunkResult, error) {
	if strings.TrimSpace(query) == "" {
		return []types.HunkResult{}, nil
	}

	vectors, err := s.EmbedClient.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return []types.HunkResult{}, nil
	}

	rows, err := s.Repository.SearchHunks(ctx, vectors[0], repoID, commitSHA, limit)
	if err != nil {
		return nil, fmt.Errorf("search embeddings: %w", err)
	}

	results := make([]types.HunkResult, 0, len(rows))
	for _, row := range rows {
		similarity := 1 - (row.Distance / 2.0)
		results = append(results, types.HunkResult{
			HunkID:          row.HunkID,
			RepoID:          row.RepoID,
			CommitSHA:       row.CommitSHA,
			FilePath:        row.FilePath,
			HunkNo:          row.HunkNo,
			Header:          row.Header,
			Snippet:         row.AfterSnippet,
			WhySummary:      row.WhySummary,
			RiskTags:        row.RiskTags,
			CommitURL:       commitURL(row.RepoID, row.CommitSHA),
			SimilarityScore: &similarity,
		})
	}
	return results, nil
}

func (s *DBSearchService) GetCommitSummary(ctx context.Context, repoID, sha string) (*types.CommitSummaryResult, error) {
	commit, err := s.Repository.GetCommit(ctx, repoID, sha)
	if err != nil {
		return nil, err
	}
	if commit == nil {
		return nil, nil
	}

	result := &types.CommitSummaryResult{
		RepoID:    commit.RepoID,
		SHA:       commit.SHA,
		Message:   commit.Message,
		Author:    commit.Author,
		CommitURL: commitURL(commit.RepoID, commit.SHA),
	}
	if !commit.CommittedAt.IsZero() {
		result.CommittedAt = commit.CommittedAt.UTC().Format("2006-01-02T15:04:05Z")
	}

	summary, err := s.Repository.GetCommitSummary(ctx, commit.ID)
	if err != nil {
		return nil, err
	}
	if summary != nil {
		result.Bullets = summary.Bullets
		result.ModelID = summary.ModelID
	}
	return result, nil
}

// commitURL builds a browsable link for a commit. Repository ids are
// "owner/name", so the canonical host form goes through vcsurl to keep the
// link construction consistent with other surfaces.
func commitURL(repoID, sha string) string {
	if !strings.Contains(repoID, "/") {
		return ""
	}
	info, err := vcsurl.Parse("https://github.com/" + repoID)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("https://%s/%s/%s/commit/%s", info.Host, info.Username, info.Name, sha)
}
