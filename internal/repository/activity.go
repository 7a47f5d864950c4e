package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/taskflow/taskflow/internal/model"
)

// ActivityFilter narrows ListActivity. SubjectID matches events about a user.
type ActivityFilter struct {
	SubjectID string
	Types     []model.ActivityType
	Since     *time.Time
	Limit     int
}

// InsertActivityEvents writes a batch of activity events. Events whose
// event_id is already stored are skipped, so redelivered stream entries
// are harmless.
func (r *Repository) InsertActivityEvents(ctx context.Context, events []*model.ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO activity_events (id, event_id, type, actor_id, subject_id, ip, detail, occurred_at, created_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9)
			ON CONFLICT (event_id) DO NOTHING
		`, e.ID, e.EventID, e.Type, e.ActorID, e.SubjectID, e.IP, e.Detail, e.OccurredAt, e.CreatedAt)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert activity events: %w", err)
	}
	return nil
}

// ListActivity returns the most recent events matching filter.
func (r *Repository) ListActivity(ctx context.Context, filter ActivityFilter) ([]*model.ActivityEvent, error) {
	var where whereClause
	if filter.SubjectID != "" {
		where.add("subject_id = ?", filter.SubjectID)
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		where.add("type = ANY(?)", pq.Array(types))
	}
	if filter.Since != nil {
		where.add("occurred_at >= ?", *filter.Since)
	}
	limit := where.next(filter.Limit)

	query := `
		SELECT id, event_id, type, COALESCE(actor_id, ''), COALESCE(subject_id, ''),
		       COALESCE(ip, ''), COALESCE(detail, ''), occurred_at, created_at
		FROM activity_events` + where.String() + `
		ORDER BY occurred_at DESC, id DESC
		LIMIT ` + limit

	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var events []*model.ActivityEvent
	for rows.Next() {
		var e model.ActivityEvent
		if err := rows.Scan(&e.ID, &e.EventID, &e.Type, &e.ActorID, &e.SubjectID, &e.IP, &e.Detail, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity: %w", err)
	}
	return events, nil
}
