package queue

import (
	"context"
	"fmt"
	"time"
)

const (
	stuckThreshold = 10 * time.Minute
	recentWindow   = 5 * time.Minute

	unhealthyFailed = 10
	unhealthyQueued = 50

	completedRetention = 24 * time.Hour
	failedRetention    = 7 * 24 * time.Hour
)

// Health is an advisory snapshot of queue state. Thresholds flag conditions
// an operator should look at; nothing here mutates the queue.
type Health struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"by_status"`
	Stuck           int            `json:"stuck"`
	RecentActivity  int            `json:"recent_activity"`
	AvgCompletionMs float64        `json:"avg_completion_ms"`
	Healthy         bool           `json:"healthy"`
	Issues          []string       `json:"issues"`
}

// Health computes status counts, stuck-item detection (processing items whose
// worker went silent), recent activity and average completion latency.
func (s *Service) Health(ctx context.Context) (*Health, error) {
	counts, err := s.store.StatusCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	total := 0
	for _, c := range counts {
		total += c
	}

	now := s.now()
	stuck, err := s.store.CountStuck(ctx, now.Add(-stuckThreshold))
	if err != nil {
		return nil, fmt.Errorf("stuck count: %w", err)
	}
	recent, err := s.store.CountStartedSince(ctx, now.Add(-recentWindow))
	if err != nil {
		return nil, fmt.Errorf("recent count: %w", err)
	}
	avgMs, err := s.store.AvgCompletionMs(ctx)
	if err != nil {
		return nil, fmt.Errorf("avg completion: %w", err)
	}

	health := &Health{
		Total:           total,
		ByStatus:        counts,
		Stuck:           stuck,
		RecentActivity:  recent,
		AvgCompletionMs: avgMs,
		Healthy:         true,
		Issues:          []string{},
	}

	if stuck > 0 {
		health.Healthy = false
		health.Issues = append(health.Issues, fmt.Sprintf("%d item(s) stuck in processing for over %s; operator requeue needed", stuck, stuckThreshold))
	}
	if failed := counts[string(StatusFailed)]; failed > unhealthyFailed {
		health.Healthy = false
		health.Issues = append(health.Issues, fmt.Sprintf("high failure count: %d items failed terminally", failed))
	}
	if queued := counts[string(StatusQueued)]; queued > unhealthyQueued {
		health.Healthy = false
		health.Issues = append(health.Issues, fmt.Sprintf("large backlog: %d items queued", queued))
	}

	return health, nil
}

// CleanupResult reports how many terminal items a cleanup pass removed.
type CleanupResult struct {
	Completed int
	Failed    int
}

// Cleanup deletes completed items older than 24h and failed items older than
// 7 days. Queued, processing and retry items are never removed here.
func (s *Service) Cleanup(ctx context.Context) (CleanupResult, error) {
	now := s.now()
	completed, err := s.store.DeleteTerminalBefore(ctx, string(StatusCompleted), now.Add(-completedRetention))
	if err != nil {
		return CleanupResult{}, fmt.Errorf("cleanup completed items: %w", err)
	}
	failed, err := s.store.DeleteTerminalBefore(ctx, string(StatusFailed), now.Add(-failedRetention))
	if err != nil {
		return CleanupResult{Completed: completed}, fmt.Errorf("cleanup failed items: %w", err)
	}
	if completed+failed > 0 {
		s.log.Info("queue cleanup", "completed_removed", completed, "failed_removed", failed)
	}
	return CleanupResult{Completed: completed, Failed: failed}, nil
}
