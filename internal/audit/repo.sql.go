package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides persistence against the audit database. The pool
// it wraps must authenticate as the audit principal, which is granted
// INSERT and SELECT on audit_log and nothing else.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one entry.
func (r *Repository) Insert(ctx context.Context, entry Entry) error {
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO audit_log (occurred_at, actor_id, action, resource_type, resource_id, decision, meta)
VALUES (COALESCE($1, NOW()), $2, $3, $4, $5, $6, $7)`,
		toPgTime(entry.OccurredAt), entry.ActorID, entry.Action, entry.ResourceType, entry.ResourceID, entry.Decision, metaJSON)
	return err
}

// TimelineWindow returns one page of entries matching the filters,
// newest first. It fetches limit rows; callers over-fetch by one to
// detect a next page.
func (r *Repository) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	return r.query(ctx, filters, offset, limit)
}

// TimelineAll returns every entry matching the filters.
func (r *Repository) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	return r.query(ctx, filters, 0, 0)
}

func (r *Repository) query(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	query := `SELECT occurred_at, actor_id, action, resource_type, resource_id, decision, meta
FROM audit_log
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at <= $2)
  AND ($3::bigint = 0 OR actor_id = $3)
  AND ($4::text IS NULL OR resource_type = $4)
  AND ($5::text IS NULL OR resource_id = $5)
  AND ($6::text IS NULL OR action = $6)
ORDER BY occurred_at DESC, id DESC`
	args := []any{
		toPgTime(filters.From),
		toPgTime(filters.To),
		filters.ActorID,
		optionalText(filters.ResourceType),
		optionalText(filters.ResourceID),
		optionalText(filters.Action),
	}
	if limit > 0 {
		query += ` OFFSET $7 LIMIT $8`
		args = append(args, offset, limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		var at pgtype.Timestamptz
		var metaJSON []byte
		if err := rows.Scan(&at, &row.ActorID, &row.Action, &row.ResourceType, &row.ResourceID, &row.Decision, &metaJSON); err != nil {
			return nil, err
		}
		if at.Valid {
			row.At = at.Time
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &row.Meta)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
