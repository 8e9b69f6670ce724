package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// QueueRepository persists queue items. Lifecycle decisions (which status an
// item moves to and when) belong to the queue service; this layer only runs
// the keyed reads and single-row patches it is told to.
type QueueRepository struct {
	db *bun.DB
}

func NewQueueRepository(database *Database) *QueueRepository {
	return &QueueRepository{db: database.Bun()}
}

// FindActive returns the non-terminal item for the given work key, or nil
// when none exists. Non-terminal means queued, processing or retry.
func (r *QueueRepository) FindActive(ctx context.Context, repoID, targetType, targetID string) (*QueueItem, error) {
	item := new(QueueItem)
	err := r.db.NewSelect().Model(item).
		Where("repo_id = ?", repoID).
		Where("target_type = ?", targetType).
		Where("target_id = ?", targetID).
		Where("status IN (?)", bun.In([]string{"queued", "processing", "retry"})).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

func (r *QueueRepository) Insert(ctx context.Context, item *QueueItem) error {
	_, err := r.db.NewInsert().Model(item).Exec(ctx)
	return err
}

func (r *QueueRepository) Get(ctx context.Context, id int64) (*QueueItem, error) {
	item := new(QueueItem)
	err := r.db.NewSelect().Model(item).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

// DequeueBatch returns up to limit items ready for processing: queued items
// plus retry items whose backoff window has elapsed. Priority ascending,
// FIFO within a priority tier.
func (r *QueueRepository) DequeueBatch(ctx context.Context, now time.Time, limit int) ([]QueueItem, error) {
	var items []QueueItem
	err := r.db.NewSelect().Model(&items).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("status = ?", "queued").
				WhereOr("status = ? AND next_retry_at <= ?", "retry", now)
		}).
		OrderExpr("priority ASC, created_at ASC").
		Limit(limit).
		Scan(ctx)
	return items, err
}

func (r *QueueRepository) Update(ctx context.Context, item *QueueItem, columns ...string) error {
	q := r.db.NewUpdate().Model(item).WherePK()
	if len(columns) > 0 {
		q = q.Column(columns...)
	}
	_, err := q.Exec(ctx)
	return err
}

// StatusCounts returns the number of items per status.
func (r *QueueRepository) StatusCounts(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string `bun:"status"`
		Count  int    `bun:"count"`
	}
	err := r.db.NewSelect().Model((*QueueItem)(nil)).
		Column("status").
		ColumnExpr("count(*) AS count").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CountStuck counts processing items whose worker has not reported back
// since the cutoff.
func (r *QueueRepository) CountStuck(ctx context.Context, cutoff time.Time) (int, error) {
	return r.db.NewSelect().Model((*QueueItem)(nil)).
		Where("status = ?", "processing").
		Where("started_at < ?", cutoff).
		Count(ctx)
}

func (r *QueueRepository) CountStartedSince(ctx context.Context, since time.Time) (int, error) {
	return r.db.NewSelect().Model((*QueueItem)(nil)).
		Where("started_at >= ?", since).
		Count(ctx)
}

// AvgCompletionMs averages started-to-completed latency over completed items.
// Returns 0 when nothing has completed yet.
func (r *QueueRepository) AvgCompletionMs(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	err := r.db.NewSelect().Model((*QueueItem)(nil)).
		ColumnExpr("avg(extract(epoch FROM (completed_at - started_at)) * 1000)").
		Where("status = ?", "completed").
		Where("started_at IS NOT NULL AND completed_at IS NOT NULL").
		Scan(ctx, &avg)
	if err != nil {
		return 0, err
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

// DeleteTerminalBefore removes items in the given terminal status completed
// before the cutoff. It never touches non-terminal items.
func (r *QueueRepository) DeleteTerminalBefore(ctx context.Context, status string, cutoff time.Time) (int, error) {
	if status != "completed" && status != "failed" {
		return 0, errors.New("cleanup only applies to terminal statuses")
	}
	res, err := r.db.NewDelete().Model((*QueueItem)(nil)).
		Where("status = ?", status).
		Where("COALESCE(completed_at, created_at) < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}
