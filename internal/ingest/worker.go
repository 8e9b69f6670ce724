package ingest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dferrero/diffscope/internal/db"
	"github.com/dferrero/diffscope/internal/ingest/patch"
	"github.com/dferrero/diffscope/internal/logging"
	"github.com/dferrero/diffscope/internal/metrics"
	"github.com/dferrero/diffscope/internal/queue"
)

// StateStore is the persistence surface the worker needs beyond the indexer:
// commits, files, hunks and processing-status rows.
type StateStore interface {
	UpsertCommit(ctx context.Context, commit *db.Commit) (int64, error)
	DeleteCommitFiles(ctx context.Context, commitID int64) error
	InsertFile(ctx context.Context, file *db.CommitFile) (int64, error)
	InsertHunks(ctx context.Context, hunks []*db.Hunk) error
	GetCommitStatus(ctx context.Context, repoID, sha string) (*db.CommitProcessingStatus, error)
	UpsertCommitStatus(ctx context.Context, status *db.CommitProcessingStatus) error
	GetPRStatus(ctx context.Context, repoID string, number int) (*db.PRProcessingStatus, error)
	UpsertPRStatus(ctx context.Context, status *db.PRProcessingStatus) error
}

// HunkIndexer is the summarize+embed stage boundary.
type HunkIndexer interface {
	IndexCommit(ctx context.Context, commit IndexedCommit, hunks []IndexedHunk) (IndexResult, error)
}

// Worker drains the queue and runs the ingestion pipeline for each item:
// fetch, parse, persist, summarize+embed. Items in one drain pass run
// sequentially; the worker never lets a per-item error escape past the
// queue's retry/fail decision.
type Worker struct {
	queue     *queue.Service
	fetcher   Fetcher
	indexer   HunkIndexer
	store     StateStore
	filter    *PathFilter
	metrics   *metrics.Metrics
	log       logging.Logger
	batchSize int
}

func NewWorker(q *queue.Service, fetcher Fetcher, indexer HunkIndexer, store StateStore, filter *PathFilter, m *metrics.Metrics, log logging.Logger, batchSize int) *Worker {
	if batchSize <= 0 {
		batchSize = 5
	}
	return &Worker{
		queue:     q,
		fetcher:   fetcher,
		indexer:   indexer,
		store:     store,
		filter:    filter,
		metrics:   m,
		log:       log.WithName("worker"),
		batchSize: batchSize,
	}
}

// Drain pops one batch and processes it sequentially. The queue service is
// the single point deciding retry versus terminal failure.
func (w *Worker) Drain(ctx context.Context) error {
	items, err := w.queue.Dequeue(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("dequeue: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	w.log.Info("draining queue", "items", len(items))

	for i := range items {
		item := &items[i]
		if err := w.processItem(ctx, item); err != nil {
			w.log.Error(err, "item processing failed", "id", item.ID, "repo", item.RepoID, "target", item.TargetID)
			w.countItem("failed")
			if failErr := w.queue.Fail(ctx, item, err); failErr != nil {
				return failErr
			}
			continue
		}
		w.countItem("completed")
		if err := w.queue.Complete(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) processItem(ctx context.Context, item *db.QueueItem) error {
	switch queue.TargetType(item.TargetType) {
	case queue.TargetCommit:
		_, _, err := w.ingestCommit(ctx, item.RepoID, item.TargetID)
		return err
	case queue.TargetPullRequest:
		number, err := strconv.Atoi(item.TargetID)
		if err != nil {
			return fmt.Errorf("invalid pull request number %q: %w", item.TargetID, err)
		}
		return w.ingestPullRequest(ctx, item.RepoID, number)
	default:
		return fmt.Errorf("unknown target type %q", item.TargetType)
	}
}

// ingestCommit runs the full pipeline for one commit and returns the hunk
// and embedding counts it produced.
func (w *Worker) ingestCommit(ctx context.Context, repoID, sha string) (int, int, error) {
	start := time.Now()

	status, err := w.resetCommitStatus(ctx, repoID, sha)
	if err != nil {
		return 0, 0, err
	}

	if err := w.advanceCommitPhase(ctx, status, queue.PhaseFetching); err != nil {
		return 0, 0, err
	}
	detail, err := w.fetcher.FetchCommit(ctx, repoID, sha)
	if err != nil {
		w.failCommitStatus(ctx, status, start, err)
		return 0, 0, err
	}

	if err := w.advanceCommitPhase(ctx, status, queue.PhaseParsing); err != nil {
		return 0, 0, err
	}
	commitID, indexed, hunkCount, err := w.persistCommit(ctx, repoID, detail)
	if err != nil {
		w.failCommitStatus(ctx, status, start, err)
		return 0, 0, err
	}

	if err := w.advanceCommitPhase(ctx, status, queue.PhaseEmbedding); err != nil {
		return 0, 0, err
	}
	result, err := w.indexer.IndexCommit(ctx, IndexedCommit{
		RepoID:   repoID,
		CommitID: commitID,
		SHA:      detail.SHA,
		Message:  detail.Message,
	}, indexed)
	if err != nil {
		w.failCommitStatus(ctx, status, start, err)
		return 0, 0, err
	}
	for _, issue := range result.Errors {
		w.log.Info("indexing degraded", "repo", repoID, "sha", sha, "issue", issue)
	}
	if w.metrics != nil {
		w.metrics.HunksIndexed.Add(float64(result.Embeddings))
	}

	status.Status = string(queue.PhaseCompleted)
	status.HunkCount = hunkCount
	status.EmbeddingCount = result.Embeddings
	status.ProcessingTimeMs = time.Since(start).Milliseconds()
	status.Error = nil
	if err := w.store.UpsertCommitStatus(ctx, status); err != nil {
		return 0, 0, fmt.Errorf("finalize commit status: %w", err)
	}

	w.log.Info("commit ingested", "repo", repoID, "sha", sha,
		"files", len(detail.Files), "hunks", hunkCount, "embeddings", result.Embeddings,
		"elapsed_ms", status.ProcessingTimeMs)
	return hunkCount, result.Embeddings, nil
}

// persistCommit stores the commit, its files and hunks, and returns the
// hunks eligible for indexing (generated paths are persisted but skipped).
func (w *Worker) persistCommit(ctx context.Context, repoID string, detail *CommitDetail) (int64, []IndexedHunk, int, error) {
	commitID, err := w.store.UpsertCommit(ctx, &db.Commit{
		RepoID:      repoID,
		SHA:         detail.SHA,
		Message:     detail.Message,
		Author:      detail.Author,
		Committer:   detail.Committer,
		CommittedAt: detail.CommittedAt,
	})
	if err != nil {
		return 0, nil, 0, fmt.Errorf("store commit %s: %w", detail.SHA, err)
	}
	if err := w.store.DeleteCommitFiles(ctx, commitID); err != nil {
		return 0, nil, 0, fmt.Errorf("clear files for commit %s: %w", detail.SHA, err)
	}

	var indexed []IndexedHunk
	hunkCount := 0
	for _, file := range detail.Files {
		fileRow := &db.CommitFile{
			CommitID:  commitID,
			Path:      file.Path,
			Status:    file.Status,
			Additions: file.Additions,
			Deletions: file.Deletions,
			Changes:   file.Changes,
		}
		if file.PreviousPath != "" {
			prev := file.PreviousPath
			fileRow.OldPath = &prev
		}
		fileID, err := w.store.InsertFile(ctx, fileRow)
		if err != nil {
			return 0, nil, 0, fmt.Errorf("store file %s: %w", file.Path, err)
		}

		// Hunks are scoped by the a/ side of the diff header, which for
		// renames is the previous path.
		parsePath := file.Path
		if file.PreviousPath != "" {
			parsePath = file.PreviousPath
		}
		parsed := patch.Parse(detail.PatchText, parsePath)

		rows := make([]*db.Hunk, 0, len(parsed))
		for _, h := range parsed {
			rows = append(rows, &db.Hunk{
				FileID:        fileID,
				HunkNo:        h.HunkNo,
				OldStart:      h.OldStart,
				OldLines:      h.OldLines,
				NewStart:      h.NewStart,
				NewLines:      h.NewLines,
				Header:        h.Header,
				BeforeSnippet: h.BeforeSnippet,
				AfterSnippet:  h.AfterSnippet,
				LinesAdded:    h.LinesAdded,
				LinesRemoved:  h.LinesRemoved,
			})
		}
		if err := w.store.InsertHunks(ctx, rows); err != nil {
			return 0, nil, 0, fmt.Errorf("store hunks for %s: %w", file.Path, err)
		}
		hunkCount += len(rows)

		if w.filter != nil {
			if skip, reason := w.filter.ShouldIgnore(file.Path); skip {
				w.log.Debug("skipping generated file", "path", file.Path, "reason", reason)
				continue
			}
		}
		for _, row := range rows {
			indexed = append(indexed, IndexedHunk{Hunk: row, Path: file.Path})
		}
	}
	return commitID, indexed, hunkCount, nil
}

func (w *Worker) ingestPullRequest(ctx context.Context, repoID string, number int) error {
	start := time.Now()

	status, err := w.resetPRStatus(ctx, repoID, number)
	if err != nil {
		return err
	}

	if err := w.advancePRPhase(ctx, status, queue.PhaseFetching); err != nil {
		return err
	}
	detail, err := w.fetcher.FetchPullRequest(ctx, repoID, number)
	if err != nil {
		w.failPRStatus(ctx, status, start, err)
		return err
	}

	if err := w.advancePRPhase(ctx, status, queue.PhaseParsing); err != nil {
		return err
	}
	totalHunks, totalEmbeddings := 0, 0
	for _, sha := range detail.CommitSHAs {
		hunks, embeds, err := w.ingestCommit(ctx, repoID, sha)
		if err != nil {
			w.failPRStatus(ctx, status, start, fmt.Errorf("commit %s: %w", sha, err))
			return err
		}
		totalHunks += hunks
		totalEmbeddings += embeds
	}

	if err := w.advancePRPhase(ctx, status, queue.PhaseEmbedding); err != nil {
		return err
	}

	status.Status = string(queue.PhaseCompleted)
	status.CommitCount = len(detail.CommitSHAs)
	status.HunkCount = totalHunks
	status.EmbeddingCount = totalEmbeddings
	status.ProcessingTimeMs = time.Since(start).Milliseconds()
	status.Error = nil
	if err := w.store.UpsertPRStatus(ctx, status); err != nil {
		return fmt.Errorf("finalize pull request status: %w", err)
	}

	w.log.Info("pull request ingested", "repo", repoID, "number", number,
		"commits", status.CommitCount, "hunks", totalHunks, "embeddings", totalEmbeddings)
	return nil
}

// resetCommitStatus returns the status row a fresh run starts from. A prior
// terminal row is reset to pending; phases only move forward within a run.
func (w *Worker) resetCommitStatus(ctx context.Context, repoID, sha string) (*db.CommitProcessingStatus, error) {
	status, err := w.store.GetCommitStatus(ctx, repoID, sha)
	if err != nil {
		return nil, fmt.Errorf("load commit status: %w", err)
	}
	if status == nil {
		status = &db.CommitProcessingStatus{RepoID: repoID, SHA: sha}
	}
	status.Status = string(queue.PhasePending)
	status.HunkCount = 0
	status.EmbeddingCount = 0
	status.ProcessingTimeMs = 0
	status.Error = nil
	if err := w.store.UpsertCommitStatus(ctx, status); err != nil {
		return nil, fmt.Errorf("reset commit status: %w", err)
	}
	return status, nil
}

func (w *Worker) advanceCommitPhase(ctx context.Context, status *db.CommitProcessingStatus, phase queue.Phase) error {
	if err := queue.AdvancePhase(queue.Phase(status.Status), phase); err != nil {
		return err
	}
	status.Status = string(phase)
	return w.store.UpsertCommitStatus(ctx, status)
}

func (w *Worker) failCommitStatus(ctx context.Context, status *db.CommitProcessingStatus, start time.Time, cause error) {
	msg := cause.Error()
	status.Status = string(queue.PhaseFailed)
	status.Error = &msg
	status.ProcessingTimeMs = time.Since(start).Milliseconds()
	if err := w.store.UpsertCommitStatus(ctx, status); err != nil {
		w.log.Error(err, "failed to record commit failure", "repo", status.RepoID, "sha", status.SHA)
	}
}

func (w *Worker) resetPRStatus(ctx context.Context, repoID string, number int) (*db.PRProcessingStatus, error) {
	status, err := w.store.GetPRStatus(ctx, repoID, number)
	if err != nil {
		return nil, fmt.Errorf("load pull request status: %w", err)
	}
	if status == nil {
		status = &db.PRProcessingStatus{RepoID: repoID, Number: number}
	}
	status.Status = string(queue.PhasePending)
	status.CommitCount = 0
	status.HunkCount = 0
	status.EmbeddingCount = 0
	status.ProcessingTimeMs = 0
	status.Error = nil
	if err := w.store.UpsertPRStatus(ctx, status); err != nil {
		return nil, fmt.Errorf("reset pull request status: %w", err)
	}
	return status, nil
}

func (w *Worker) advancePRPhase(ctx context.Context, status *db.PRProcessingStatus, phase queue.Phase) error {
	if err := queue.AdvancePhase(queue.Phase(status.Status), phase); err != nil {
		return err
	}
	status.Status = string(phase)
	return w.store.UpsertPRStatus(ctx, status)
}

func (w *Worker) failPRStatus(ctx context.Context, status *db.PRProcessingStatus, start time.Time, cause error) {
	msg := cause.Error()
	status.Status = string(queue.PhaseFailed)
	status.Error = &msg
	status.ProcessingTimeMs = time.Since(start).Milliseconds()
	if err := w.store.UpsertPRStatus(ctx, status); err != nil {
		w.log.Error(err, "failed to record pull request failure", "repo", status.RepoID, "number", status.Number)
	}
}

func (w *Worker) countItem(outcome string) {
	if w.metrics != nil {
		w.metrics.ItemsProcessed.WithLabelValues(outcome).Inc()
	}
}
