package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/dferrero/diffscope/internal/db"
	"github.com/dferrero/diffscope/internal/ingest/summarize"
	"github.com/dferrero/diffscope/internal/logging"
	"github.com/dferrero/diffscope/internal/queue"
)

// in-memory queue store

type memQueueStore struct {
	items  []*db.QueueItem
	nextID int64
}

func (m *memQueueStore) FindActive(ctx context.Context, repoID, targetType, targetID string) (*db.QueueItem, error) {
	for _, item := range m.items {
		if item.RepoID == repoID && item.TargetType == targetType && item.TargetID == targetID && !queue.Status(item.Status).Terminal() {
			copied := *item
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memQueueStore) Insert(ctx context.Context, item *db.QueueItem) error {
	m.nextID++
	item.ID = m.nextID
	copied := *item
	m.items = append(m.items, &copied)
	return nil
}

func (m *memQueueStore) DequeueBatch(ctx context.Context, now time.Time, limit int) ([]db.QueueItem, error) {
	var out []db.QueueItem
	for _, item := range m.items {
		if len(out) >= limit {
			break
		}
		switch queue.Status(item.Status) {
		case queue.StatusQueued:
			out = append(out, *item)
		case queue.StatusRetry:
			if item.NextRetryAt != nil && !item.NextRetryAt.After(now) {
				out = append(out, *item)
			}
		}
	}
	return out, nil
}

func (m *memQueueStore) Update(ctx context.Context, item *db.QueueItem, columns ...string) error {
	for i, existing := range m.items {
		if existing.ID == item.ID {
			copied := *item
			m.items[i] = &copied
			return nil
		}
	}
	return errors.New("item not found")
}

func (m *memQueueStore) StatusCounts(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{}
	for _, item := range m.items {
		counts[item.Status]++
	}
	return counts, nil
}

func (m *memQueueStore) CountStuck(ctx context.Context, cutoff time.Time) (int, error) { return 0, nil }

func (m *memQueueStore) CountStartedSince(ctx context.Context, since time.Time) (int, error) {
	return 0, nil
}

func (m *memQueueStore) AvgCompletionMs(ctx context.Context) (float64, error) { return 0, nil }

func (m *memQueueStore) DeleteTerminalBefore(ctx context.Context, status string, cutoff time.Time) (int, error) {
	return 0, nil
}

func (m *memQueueStore) get(id int64) *db.QueueItem {
	for _, item := range m.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// in-memory ingest store covering StateStore and IndexStore

type memIngestStore struct {
	commits        map[string]*db.Commit
	files          []*db.CommitFile
	hunks          []*db.Hunk
	summaries      map[int64]*db.HunkSummary
	embeddings     map[int64]*db.HunkEmbedding
	commitSummary  map[int64]*db.CommitSummary
	commitStatuses map[string]*db.CommitProcessingStatus
	prStatuses     map[string]*db.PRProcessingStatus
	nextID         int64
}

func newMemIngestStore() *memIngestStore {
	return &memIngestStore{
		commits:        map[string]*db.Commit{},
		summaries:      map[int64]*db.HunkSummary{},
		embeddings:     map[int64]*db.HunkEmbedding{},
		commitSummary:  map[int64]*db.CommitSummary{},
		commitStatuses: map[string]*db.CommitProcessingStatus{},
		prStatuses:     map[string]*db.PRProcessingStatus{},
	}
}

func (m *memIngestStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memIngestStore) UpsertCommit(ctx context.Context, commit *db.Commit) (int64, error) {
	key := commit.RepoID + "@" + commit.SHA
	if existing, ok := m.commits[key]; ok {
		commit.ID = existing.ID
	} else {
		commit.ID = m.id()
	}
	copied := *commit
	m.commits[key] = &copied
	return commit.ID, nil
}

func (m *memIngestStore) DeleteCommitFiles(ctx context.Context, commitID int64) error {
	kept := m.files[:0]
	for _, f := range m.files {
		if f.CommitID != commitID {
			kept = append(kept, f)
		}
	}
	m.files = kept
	return nil
}

func (m *memIngestStore) InsertFile(ctx context.Context, file *db.CommitFile) (int64, error) {
	file.ID = m.id()
	copied := *file
	m.files = append(m.files, &copied)
	return file.ID, nil
}

func (m *memIngestStore) InsertHunks(ctx context.Context, hunks []*db.Hunk) error {
	for _, h := range hunks {
		h.ID = m.id()
		copied := *h
		m.hunks = append(m.hunks, &copied)
	}
	return nil
}

func (m *memIngestStore) UpsertHunkSummary(ctx context.Context, summary *db.HunkSummary) error {
	copied := *summary
	m.summaries[summary.HunkID] = &copied
	return nil
}

func (m *memIngestStore) UpsertHunkEmbedding(ctx context.Context, embedding *db.HunkEmbedding) error {
	copied := *embedding
	m.embeddings[embedding.HunkID] = &copied
	return nil
}

func (m *memIngestStore) UpsertCommitSummary(ctx context.Context, summary *db.CommitSummary) error {
	copied := *summary
	m.commitSummary[summary.CommitID] = &copied
	return nil
}

func (m *memIngestStore) GetCommitStatus(ctx context.Context, repoID, sha string) (*db.CommitProcessingStatus, error) {
	if status, ok := m.commitStatuses[repoID+"@"+sha]; ok {
		copied := *status
		return &copied, nil
	}
	return nil, nil
}

func (m *memIngestStore) UpsertCommitStatus(ctx context.Context, status *db.CommitProcessingStatus) error {
	copied := *status
	m.commitStatuses[status.RepoID+"@"+status.SHA] = &copied
	return nil
}

func (m *memIngestStore) GetPRStatus(ctx context.Context, repoID string, number int) (*db.PRProcessingStatus, error) {
	if status, ok := m.prStatuses[fmt.Sprintf("%s#%d", repoID, number)]; ok {
		copied := *status
		return &copied, nil
	}
	return nil, nil
}

func (m *memIngestStore) UpsertPRStatus(ctx context.Context, status *db.PRProcessingStatus) error {
	copied := *status
	m.prStatuses[fmt.Sprintf("%s#%d", status.RepoID, status.Number)] = &copied
	return nil
}

// collaborator fakes

type fakeFetcher struct {
	commits map[string]*CommitDetail
	prs     map[int]*PullRequestDetail
	err     error
}

func (f *fakeFetcher) FetchCommit(ctx context.Context, repoID, sha string) (*CommitDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	detail, ok := f.commits[sha]
	if !ok {
		return nil, fmt.Errorf("commit %s not found in %s", sha, repoID)
	}
	return detail, nil
}

func (f *fakeFetcher) FetchPullRequest(ctx context.Context, repoID string, number int) (*PullRequestDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	detail, ok := f.prs[number]
	if !ok {
		return nil, fmt.Errorf("pull request %d not found in %s", number, repoID)
	}
	return detail, nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) SummarizeHunks(ctx context.Context, inputs []summarize.HunkInput, commitMessage string) []summarize.Result {
	results := make([]summarize.Result, len(inputs))
	for i, input := range inputs {
		results[i] = summarize.Result{
			HunkID:  input.HunkID,
			Summary: "Adjusts " + input.Path,
			Labels:  []string{"fix"},
		}
	}
	return results
}

func (fakeSummarizer) SummarizeCommit(ctx context.Context, hunkSummaries []string, commitMessage string) ([]string, error) {
	return []string{"Did the thing"}, nil
}

func (fakeSummarizer) ModelID() string { return "fake-model" }

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, inputs []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(inputs))
	for i := range inputs {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

const commitPatch = `diff --git a/internal/api/server.go b/internal/api/server.go
--- a/internal/api/server.go
+++ b/internal/api/server.go
@@ -5,3 +5,4 @@
 func serve() {
+	registerRoutes()
 	listen()
 }
diff --git a/package-lock.json b/package-lock.json
--- a/package-lock.json
+++ b/package-lock.json
@@ -1,2 +1,3 @@
 {
+  "lockfileVersion": 3,
 }
`

func testCommitDetail(sha string) *CommitDetail {
	return &CommitDetail{
		SHA:         sha,
		Message:     "fix routing\n\nregister routes before listen",
		Author:      "dev",
		Committer:   "dev",
		CommittedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		Files: []FileChange{
			{Path: "internal/api/server.go", Status: "modified", Additions: 1, Changes: 1},
			{Path: "package-lock.json", Status: "modified", Additions: 1, Changes: 1},
		},
		PatchText: commitPatch,
	}
}

func newTestWorker(t *testing.T, fetcher Fetcher, store *memIngestStore, qstore *memQueueStore) (*Worker, *queue.Service) {
	t.Helper()
	log := logging.New(logr.Discard())
	filter, err := NewPathFilter("")
	if err != nil {
		t.Fatalf("new filter: %v", err)
	}
	indexer := NewIndexer(fakeSummarizer{}, &fakeEmbedder{}, store, log)
	qsvc := queue.NewService(qstore, log)
	worker := NewWorker(qsvc, fetcher, indexer, store, filter, nil, log, 5)
	return worker, qsvc
}

func TestDrainProcessesCommit(t *testing.T) {
	ctx := context.Background()
	store := newMemIngestStore()
	qstore := &memQueueStore{}
	fetcher := &fakeFetcher{commits: map[string]*CommitDetail{"abc123": testCommitDetail("abc123")}}
	worker, qsvc := newTestWorker(t, fetcher, store, qstore)

	id, err := qsvc.Enqueue(ctx, queue.EnqueueRequest{RepoID: "acme/payments", TargetType: queue.TargetCommit, TargetID: "abc123"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := worker.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	item := qstore.get(id)
	if item.Status != string(queue.StatusCompleted) {
		t.Fatalf("expected completed queue item, got %s (err=%v)", item.Status, item.Error)
	}

	if len(store.files) != 2 {
		t.Fatalf("expected 2 persisted files, got %d", len(store.files))
	}
	if len(store.hunks) != 2 {
		t.Fatalf("expected 2 persisted hunks, got %d", len(store.hunks))
	}

	// The lockfile hunk is persisted but never summarized or embedded.
	if len(store.summaries) != 1 || len(store.embeddings) != 1 {
		t.Fatalf("expected 1 summary and 1 embedding, got %d/%d", len(store.summaries), len(store.embeddings))
	}
	for _, emb := range store.embeddings {
		if emb.FilePath != "internal/api/server.go" {
			t.Fatalf("embedded the wrong file: %s", emb.FilePath)
		}
		if emb.RepoID != "acme/payments" || emb.CommitSHA != "abc123" {
			t.Fatalf("embedding missing denormalized keys: %+v", emb)
		}
	}
	if len(store.commitSummary) != 1 {
		t.Fatalf("expected a commit summary")
	}

	status := store.commitStatuses["acme/payments@abc123"]
	if status == nil || status.Status != "completed" {
		t.Fatalf("unexpected commit status: %+v", status)
	}
	if status.HunkCount != 2 || status.EmbeddingCount != 1 {
		t.Fatalf("unexpected counts: hunks=%d embeddings=%d", status.HunkCount, status.EmbeddingCount)
	}
}

func TestDrainFetchFailureSchedulesRetry(t *testing.T) {
	ctx := context.Background()
	store := newMemIngestStore()
	qstore := &memQueueStore{}
	fetcher := &fakeFetcher{err: errors.New("github unavailable")}
	worker, qsvc := newTestWorker(t, fetcher, store, qstore)

	id, err := qsvc.Enqueue(ctx, queue.EnqueueRequest{RepoID: "acme/payments", TargetType: queue.TargetCommit, TargetID: "abc123"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := worker.Drain(ctx); err != nil {
		t.Fatalf("drain must contain per-item failures: %v", err)
	}

	item := qstore.get(id)
	if item.Status != string(queue.StatusRetry) {
		t.Fatalf("expected retry after first failure, got %s", item.Status)
	}
	if item.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", item.Attempts)
	}
	if item.Error == nil || *item.Error != "github unavailable" {
		t.Fatalf("error must be preserved verbatim, got %v", item.Error)
	}

	status := store.commitStatuses["acme/payments@abc123"]
	if status == nil || status.Status != "failed" {
		t.Fatalf("commit status must record the failure: %+v", status)
	}
	if status.Error == nil {
		t.Fatalf("failed status must carry the error message")
	}
}

func TestDrainProcessesPullRequest(t *testing.T) {
	ctx := context.Background()
	store := newMemIngestStore()
	qstore := &memQueueStore{}
	fetcher := &fakeFetcher{
		commits: map[string]*CommitDetail{
			"sha-one": testCommitDetail("sha-one"),
			"sha-two": testCommitDetail("sha-two"),
		},
		prs: map[int]*PullRequestDetail{
			42: {Number: 42, Title: "Add retries", HeadSHA: "sha-two", CommitSHAs: []string{"sha-one", "sha-two"}},
		},
	}
	worker, qsvc := newTestWorker(t, fetcher, store, qstore)

	id, err := qsvc.Enqueue(ctx, queue.EnqueueRequest{RepoID: "acme/payments", TargetType: queue.TargetPullRequest, TargetID: "42", Priority: queue.PriorityHigh})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := worker.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if item := qstore.get(id); item.Status != string(queue.StatusCompleted) {
		t.Fatalf("expected completed, got %s (err=%v)", item.Status, item.Error)
	}

	prStatus := store.prStatuses["acme/payments#42"]
	if prStatus == nil || prStatus.Status != "completed" {
		t.Fatalf("unexpected pr status: %+v", prStatus)
	}
	if prStatus.CommitCount != 2 {
		t.Fatalf("expected 2 commits counted, got %d", prStatus.CommitCount)
	}
	if prStatus.HunkCount != 4 || prStatus.EmbeddingCount != 2 {
		t.Fatalf("unexpected aggregate counts: %+v", prStatus)
	}

	for _, sha := range []string{"sha-one", "sha-two"} {
		status := store.commitStatuses["acme/payments@"+sha]
		if status == nil || status.Status != "completed" {
			t.Fatalf("commit %s status: %+v", sha, status)
		}
	}
}

func TestReingestResetsTerminalStatus(t *testing.T) {
	ctx := context.Background()
	store := newMemIngestStore()
	qstore := &memQueueStore{}
	fetcher := &fakeFetcher{commits: map[string]*CommitDetail{"abc123": testCommitDetail("abc123")}}
	worker, qsvc := newTestWorker(t, fetcher, store, qstore)

	if _, err := qsvc.Enqueue(ctx, queue.EnqueueRequest{RepoID: "acme/payments", TargetType: queue.TargetCommit, TargetID: "abc123"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := worker.Drain(ctx); err != nil {
		t.Fatalf("first drain: %v", err)
	}

	// A second push of the same commit re-enqueues and reprocesses cleanly.
	if _, err := qsvc.Enqueue(ctx, queue.EnqueueRequest{RepoID: "acme/payments", TargetType: queue.TargetCommit, TargetID: "abc123"}); err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	if err := worker.Drain(ctx); err != nil {
		t.Fatalf("second drain: %v", err)
	}

	status := store.commitStatuses["acme/payments@abc123"]
	if status == nil || status.Status != "completed" {
		t.Fatalf("re-ingestion must complete again: %+v", status)
	}
	if len(store.files) != 2 {
		t.Fatalf("re-ingestion must replace files, not duplicate them: %d", len(store.files))
	}
}
