package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

func NewGitHubClient(token string) *github.Client {
	if token == "" {
		return github.NewClient(&http.Client{Timeout: 30 * time.Second})
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = 30 * time.Second
	return github.NewClient(tc)
}

// FileChange is one changed path in a commit or pull request.
type FileChange struct {
	Path         string
	Status       string
	Additions    int
	Deletions    int
	Changes      int
	PreviousPath string
}

// CommitDetail is everything the pipeline consumes about one commit: the
// metadata, per-file stats and a consolidated unified diff covering all
// changed files.
type CommitDetail struct {
	SHA         string
	Message     string
	Author      string
	Committer   string
	CommittedAt time.Time
	Files       []FileChange
	PatchText   string
}

// PullRequestDetail is the PR shape the pipeline consumes.
type PullRequestDetail struct {
	Number     int
	Title      string
	Body       string
	HeadSHA    string
	CommitSHAs []string
	Files      []FileChange
	Comments   []string
}

// Fetcher is the source-control collaborator boundary. Tests substitute a
// fake; production uses GitHubFetcher.
type Fetcher interface {
	FetchCommit(ctx context.Context, repoID, sha string) (*CommitDetail, error)
	FetchPullRequest(ctx context.Context, repoID string, number int) (*PullRequestDetail, error)
}

type GitHubFetcher struct {
	client *github.Client
}

func NewGitHubFetcher(client *github.Client) *GitHubFetcher {
	return &GitHubFetcher{client: client}
}

// SplitRepoID splits an "owner/name" repository id.
func SplitRepoID(repoID string) (owner, repo string, err error) {
	parts := strings.SplitN(repoID, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo id %q, want owner/name", repoID)
	}
	return parts[0], parts[1], nil
}

// FetchCommit retrieves full commit detail. The per-file patches GitHub
// returns are stitched into one unified diff with synthesized `diff --git`
// section headers so a single parser pass can scope hunks per file.
func (f *GitHubFetcher) FetchCommit(ctx context.Context, repoID, sha string) (*CommitDetail, error) {
	owner, repo, err := SplitRepoID(repoID)
	if err != nil {
		return nil, err
	}

	commit, _, err := f.client.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch commit %s: %w", sha, err)
	}
	if commit == nil {
		return nil, fmt.Errorf("commit %s not found in %s", sha, repoID)
	}

	detail := &CommitDetail{
		SHA:         commit.GetSHA(),
		Message:     commit.GetCommit().GetMessage(),
		Author:      commit.GetCommit().GetAuthor().GetName(),
		Committer:   commit.GetCommit().GetCommitter().GetName(),
		CommittedAt: commit.GetCommit().GetCommitter().GetDate().Time,
	}

	var patch strings.Builder
	for _, file := range commit.Files {
		change := buildFileChange(file)
		detail.Files = append(detail.Files, change)
		appendFilePatch(&patch, change, file.GetPatch())
	}
	detail.PatchText = patch.String()
	return detail, nil
}

// FetchPullRequest retrieves PR metadata plus its files, review comments and
// commit shas.
func (f *GitHubFetcher) FetchPullRequest(ctx context.Context, repoID string, number int) (*PullRequestDetail, error) {
	owner, repo, err := SplitRepoID(repoID)
	if err != nil {
		return nil, err
	}

	pr, _, err := f.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetch pull request #%d: %w", number, err)
	}
	if pr == nil {
		return nil, fmt.Errorf("pull request #%d not found in %s", number, repoID)
	}

	detail := &PullRequestDetail{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		Body:    pr.GetBody(),
		HeadSHA: pr.GetHead().GetSHA(),
	}

	listOpts := github.ListOptions{PerPage: 100}
	for {
		commits, resp, err := f.client.PullRequests.ListCommits(ctx, owner, repo, number, &listOpts)
		if err != nil {
			return nil, fmt.Errorf("list pull request commits #%d: %w", number, err)
		}
		for _, c := range commits {
			detail.CommitSHAs = append(detail.CommitSHAs, c.GetSHA())
		}
		if resp.NextPage == 0 {
			break
		}
		listOpts.Page = resp.NextPage
	}

	files, _, err := f.client.PullRequests.ListFiles(ctx, owner, repo, number, &github.ListOptions{PerPage: 100})
	if err != nil {
		return nil, fmt.Errorf("list pull request files #%d: %w", number, err)
	}
	for _, file := range files {
		detail.Files = append(detail.Files, buildFileChange(file))
	}

	comments, _, err := f.client.PullRequests.ListComments(ctx, owner, repo, number, &github.PullRequestListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, fmt.Errorf("list pull request comments #%d: %w", number, err)
	}
	for _, comment := range comments {
		detail.Comments = append(detail.Comments, comment.GetBody())
	}

	return detail, nil
}

func buildFileChange(file *github.CommitFile) FileChange {
	return FileChange{
		Path:         file.GetFilename(),
		Status:       file.GetStatus(),
		Additions:    file.GetAdditions(),
		Deletions:    file.GetDeletions(),
		Changes:      file.GetChanges(),
		PreviousPath: file.GetPreviousFilename(),
	}
}

// appendFilePatch writes one file section in `git diff` format. Renames keep
// the old path on the `a/` side so hunks scope to the path being parsed.
func appendFilePatch(builder *strings.Builder, change FileChange, patch string) {
	if patch == "" {
		return
	}
	oldPath := change.Path
	if change.PreviousPath != "" {
		oldPath = change.PreviousPath
	}
	fmt.Fprintf(builder, "diff --git a/%s b/%s\n", oldPath, change.Path)
	builder.WriteString(patch)
	if !strings.HasSuffix(patch, "\n") {
		builder.WriteString("\n")
	}
}
