package types

// HunkResult is one similarity-search hit returned to MCP clients.
type HunkResult struct {
	HunkID          int64    `json:"hunk_id"`
	RepoID          string   `json:"repo_id"`
	CommitSHA       string   `json:"commit_sha"`
	FilePath        string   `json:"file_path"`
	HunkNo          int      `json:"hunk_no"`
	Header          string   `json:"header"`
	Snippet         string   `json:"snippet"`
	WhySummary      *string  `json:"why_summary,omitempty"`
	RiskTags        []string `json:"risk_tags,omitempty"`
	CommitURL       string   `json:"commit_url,omitempty"`
	SimilarityScore *float64 `json:"similarity_score,omitempty"`
}

// CommitSummaryResult is the get_commit_summary payload.
type CommitSummaryResult struct {
	RepoID      string   `json:"repo_id"`
	SHA         string   `json:"sha"`
	Message     string   `json:"message"`
	Author      string   `json:"author"`
	CommittedAt string   `json:"committed_at,omitempty"`
	Bullets     []string `json:"bullets,omitempty"`
	ModelID     string   `json:"model_id,omitempty"`
	CommitURL   string   `json:"commit_url,omitempty"`
}
