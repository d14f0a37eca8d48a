// Package audit exposes the audit_logs trail written by the other modules as
// an admin-gated read API.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one audit trail record.
type Entry struct {
	ID         int64
	ActorID    int64
	Action     string
	Entity     string
	EntityID   string
	Meta       map[string]any
	OccurredAt time.Time
}

// Filters narrows the audit trail listing.
type Filters struct {
	Entity   string
	EntityID string
	ActorID  int64
}

// Repository reads audit_logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns audit entries, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int, filters Filters) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, actor_id, action, entity, entity_id, meta, occurred_at
		FROM audit_logs
		WHERE ($1 = '' OR entity = $1)
		  AND ($2 = '' OR entity_id = $2)
		  AND ($3 = 0 OR actor_id = $3)
		ORDER BY id DESC
		LIMIT $4 OFFSET $5`,
		filters.Entity, filters.EntityID, filters.ActorID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &meta, &e.OccurredAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Meta)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
