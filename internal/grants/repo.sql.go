package grants

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert creates or refreshes the grant for (user, subject). The
// unique constraint makes concurrent duplicate requests converge on a
// single row instead of racing to insert two.
func (r *Repository) Upsert(ctx context.Context, grant Grant) (Grant, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO access_grants (id, user_id, subject_id, reason_code, justification, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, subject_id) DO UPDATE
SET reason_code = EXCLUDED.reason_code,
    justification = EXCLUDED.justification,
    created_at = EXCLUDED.created_at,
    expires_at = EXCLUDED.expires_at
RETURNING id`, grant.ID, grant.UserID, grant.SubjectID, grant.ReasonCode, grant.Justification, grant.CreatedAt, grant.ExpiresAt).Scan(&grant.ID)
	if err != nil {
		return Grant{}, err
	}
	return grant, nil
}

// Find returns the grant row for (user, subject) regardless of expiry.
func (r *Repository) Find(ctx context.Context, userID int64, subjectID uuid.UUID) (Grant, bool, error) {
	var g Grant
	err := r.pool.QueryRow(ctx, `SELECT id, user_id, subject_id, reason_code, justification, created_at, expires_at
FROM access_grants WHERE user_id = $1 AND subject_id = $2`, userID, subjectID).
		Scan(&g.ID, &g.UserID, &g.SubjectID, &g.ReasonCode, &g.Justification, &g.CreatedAt, &g.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Grant{}, false, nil
	}
	if err != nil {
		return Grant{}, false, err
	}
	return g, true, nil
}

// DeleteExpired reclaims rows whose expiry passed before the cutoff.
// Correctness never depends on this; expiry is evaluated at read time.
func (r *Repository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM access_grants WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
