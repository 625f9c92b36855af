package blocks

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborlight-hq/harborlight/internal/platform/httpx"
	"github.com/harborlight-hq/harborlight/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert creates a block record.
func (r *Repository) Insert(ctx context.Context, block Block) (Block, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO access_blocks (id, user_id, subject_id, reason, created_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`, block.ID, block.UserID, block.SubjectID, block.Reason, block.CreatedBy).Scan(&block.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Block{}, httpx.ErrDuplicate
		}
		return Block{}, err
	}
	return block, nil
}

// Lift marks the active block for (user, subject) as removed.
func (r *Repository) Lift(ctx context.Context, userID int64, subjectID uuid.UUID, liftedBy int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE access_blocks SET lifted_at = NOW(), lifted_by = $3
WHERE user_id = $1 AND subject_id = $2 AND lifted_at IS NULL`, userID, subjectID, liftedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ActiveExists reports whether an unlifted block exists for the pair.
func (r *Repository) ActiveExists(ctx context.Context, userID int64, subjectID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT true FROM access_blocks
WHERE user_id = $1 AND subject_id = $2 AND lifted_at IS NULL LIMIT 1`, userID, subjectID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ListForSubject returns every block recorded against a subject,
// including lifted ones, newest first.
func (r *Repository) ListForSubject(ctx context.Context, subjectID uuid.UUID) ([]Block, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, subject_id, reason, created_by, created_at, lifted_at, lifted_by
FROM access_blocks WHERE subject_id = $1 ORDER BY created_at DESC`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Block
	for rows.Next() {
		var b Block
		if err := rows.Scan(&b.ID, &b.UserID, &b.SubjectID, &b.Reason, &b.CreatedBy, &b.CreatedAt, &b.LiftedAt, &b.LiftedBy); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
