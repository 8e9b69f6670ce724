package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/dferrero/diffscope/internal/db"
	"github.com/dferrero/diffscope/internal/logging"
)

const (
	DefaultMaxAttempts = 3

	retryBackoffUnit = time.Minute
)

// Store is the persistence surface the queue service needs. Satisfied by
// db.QueueRepository; tests substitute an in-memory fake.
type Store interface {
	FindActive(ctx context.Context, repoID, targetType, targetID string) (*db.QueueItem, error)
	Insert(ctx context.Context, item *db.QueueItem) error
	DequeueBatch(ctx context.Context, now time.Time, limit int) ([]db.QueueItem, error)
	Update(ctx context.Context, item *db.QueueItem, columns ...string) error
	StatusCounts(ctx context.Context) (map[string]int, error)
	CountStuck(ctx context.Context, cutoff time.Time) (int, error)
	CountStartedSince(ctx context.Context, since time.Time) (int, error)
	AvgCompletionMs(ctx context.Context) (float64, error)
	DeleteTerminalBefore(ctx context.Context, status string, cutoff time.Time) (int, error)
}

// Service owns the queue item lifecycle: idempotent enqueue, dequeue with
// linear retry backoff, health reporting and terminal-item cleanup.
type Service struct {
	store Store
	log   logging.Logger
	now   func() time.Time
}

func NewService(store Store, log logging.Logger) *Service {
	return &Service{store: store, log: log.WithName("queue"), now: time.Now}
}

type EnqueueRequest struct {
	RepoID     string
	TargetType TargetType
	TargetID   string
	Priority   int
	Metadata   map[string]string
}

// Enqueue inserts a work item unless a non-terminal item for the same
// (repo, target type, target id) already exists, in which case the existing
// item's id is returned and nothing changes.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (int64, error) {
	if req.RepoID == "" || req.TargetID == "" {
		return 0, fmt.Errorf("enqueue requires repo and target ids")
	}
	existing, err := s.store.FindActive(ctx, req.RepoID, string(req.TargetType), req.TargetID)
	if err != nil {
		return 0, fmt.Errorf("lookup active item: %w", err)
	}
	if existing != nil {
		s.log.Debug("enqueue deduplicated", "repo", req.RepoID, "target", req.TargetID, "existing_id", existing.ID)
		return existing.ID, nil
	}

	priority := req.Priority
	if priority <= 0 {
		priority = PriorityNormal
	}
	item := &db.QueueItem{
		RepoID:      req.RepoID,
		TargetType:  string(req.TargetType),
		TargetID:    req.TargetID,
		Priority:    priority,
		Status:      string(StatusQueued),
		MaxAttempts: DefaultMaxAttempts,
		Metadata:    req.Metadata,
		CreatedAt:   s.now(),
	}
	if err := s.store.Insert(ctx, item); err != nil {
		return 0, fmt.Errorf("insert queue item: %w", err)
	}
	s.log.Info("enqueued", "repo", req.RepoID, "type", req.TargetType, "target", req.TargetID, "priority", priority)
	return item.ID, nil
}

// Dequeue pops up to limit ready items, marking each processing before it is
// handed to the caller. Served priority ascending, FIFO within a tier.
func (s *Service) Dequeue(ctx context.Context, limit int) ([]db.QueueItem, error) {
	now := s.now()
	candidates, err := s.store.DequeueBatch(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue batch: %w", err)
	}

	items := make([]db.QueueItem, 0, len(candidates))
	for _, item := range candidates {
		if err := Transition(Status(item.Status), StatusProcessing); err != nil {
			return nil, err
		}
		started := now
		item.Status = string(StatusProcessing)
		item.StartedAt = &started
		if err := s.store.Update(ctx, &item, "status", "started_at"); err != nil {
			return nil, fmt.Errorf("mark item %d processing: %w", item.ID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Complete moves a processing item to completed.
func (s *Service) Complete(ctx context.Context, item *db.QueueItem) error {
	if err := Transition(Status(item.Status), StatusCompleted); err != nil {
		return err
	}
	done := s.now()
	item.Status = string(StatusCompleted)
	item.CompletedAt = &done
	item.Error = nil
	if err := s.store.Update(ctx, item, "status", "completed_at", "error"); err != nil {
		return fmt.Errorf("mark item %d completed: %w", item.ID, err)
	}
	return nil
}

// Fail records a processing failure. The attempt counter increases; while
// budget remains the item moves to retry with nextRetryAt = now + attempts
// minutes, otherwise it is terminally failed. The triggering error message
// is preserved verbatim for operators.
func (s *Service) Fail(ctx context.Context, item *db.QueueItem, cause error) error {
	item.Attempts++
	msg := cause.Error()
	item.Error = &msg

	maxAttempts := item.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	if item.Attempts >= maxAttempts {
		if err := Transition(Status(item.Status), StatusFailed); err != nil {
			return err
		}
		done := s.now()
		item.Status = string(StatusFailed)
		item.CompletedAt = &done
		item.NextRetryAt = nil
		if err := s.store.Update(ctx, item, "status", "attempts", "error", "completed_at", "next_retry_at"); err != nil {
			return fmt.Errorf("mark item %d failed: %w", item.ID, err)
		}
		s.log.Info("item failed terminally", "id", item.ID, "attempts", item.Attempts, "error", msg)
		return nil
	}

	if err := Transition(Status(item.Status), StatusRetry); err != nil {
		return err
	}
	next := s.now().Add(time.Duration(item.Attempts) * retryBackoffUnit)
	item.Status = string(StatusRetry)
	item.NextRetryAt = &next
	if err := s.store.Update(ctx, item, "status", "attempts", "error", "next_retry_at"); err != nil {
		return fmt.Errorf("mark item %d for retry: %w", item.ID, err)
	}
	s.log.Info("item scheduled for retry", "id", item.ID, "attempts", item.Attempts, "next_retry_at", next)
	return nil
}
