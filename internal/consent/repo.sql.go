package consent

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence. consent_events is
// append-only: this repository exposes no update or delete.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append records one consent event.
func (r *Repository) Append(ctx context.Context, rec Record) (Record, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO consent_events (id, subject_id, from_program_id, to_program_id, consent_type, granted_at, withdrawn_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at`,
		rec.ID, rec.SubjectID, rec.Scope.FromProgram, rec.Scope.ToProgram, rec.ConsentType, rec.GrantedAt, rec.WithdrawnAt).Scan(&rec.CreatedAt)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// HistoryFor returns a subject's full consent history in insertion
// order.
func (r *Repository) HistoryFor(ctx context.Context, subjectID uuid.UUID) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, subject_id, from_program_id, to_program_id, consent_type, granted_at, withdrawn_at, created_at
FROM consent_events WHERE subject_id = $1 ORDER BY created_at, id`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.Scope.FromProgram, &rec.Scope.ToProgram, &rec.ConsentType, &rec.GrantedAt, &rec.WithdrawnAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
