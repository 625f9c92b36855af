package notes

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborlight-hq/harborlight/internal/fieldcrypt"
)

// Repository provides PostgreSQL backed persistence. Bodies are
// encrypted at rest.
type Repository struct {
	pool *pgxpool.Pool
	enc  *fieldcrypt.Encryptor
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, enc *fieldcrypt.Encryptor) *Repository {
	return &Repository{pool: pool, enc: enc}
}

// RotationTarget describes this table for the key-rotation pass.
func RotationTarget() fieldcrypt.Target {
	return fieldcrypt.Target{Table: "progress_notes", IDColumn: "id", Columns: []string{"body_enc"}}
}

// Insert creates a note, sealing the body.
func (r *Repository) Insert(ctx context.Context, n Note) (Note, error) {
	body, err := r.enc.Encrypt(n.Body)
	if err != nil {
		return Note{}, err
	}
	err = r.pool.QueryRow(ctx, `INSERT INTO progress_notes (id, subject_id, program_id, category, author_id, body_enc)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at`, n.ID, n.SubjectID, n.ProgramID, n.Category, n.AuthorID, body).Scan(&n.CreatedAt)
	if err != nil {
		return Note{}, err
	}
	return n, nil
}

// ListForSubject returns every note for a subject across all
// programs, oldest first. Bodies are opened here; a body no key can
// open fails the read with *fieldcrypt.DecryptionError.
func (r *Repository) ListForSubject(ctx context.Context, subjectID uuid.UUID) ([]Note, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, subject_id, program_id, category, author_id, body_enc, created_at
FROM progress_notes WHERE subject_id = $1 ORDER BY created_at, id`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Note
	for rows.Next() {
		var n Note
		var body string
		if err := rows.Scan(&n.ID, &n.SubjectID, &n.ProgramID, &n.Category, &n.AuthorID, &body, &n.CreatedAt); err != nil {
			return nil, err
		}
		if n.Body, err = r.enc.Decrypt(body); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountForSubject returns the number of notes for a subject without
// touching any content.
func (r *Repository) CountForSubject(ctx context.Context, subjectID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM progress_notes WHERE subject_id = $1`, subjectID).Scan(&count)
	return count, err
}
