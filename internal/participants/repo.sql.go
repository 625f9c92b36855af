package participants

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborlight-hq/harborlight/internal/fieldcrypt"
	"github.com/harborlight-hq/harborlight/internal/shared"
)

// Repository provides PostgreSQL backed persistence. Contact fields
// cross this boundary as plaintext and live in the table as
// ciphertext.
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
	return fieldcrypt.Target{
		Table:    "participants",
		IDColumn: "id",
		Columns:  []string{"phone_enc", "email_enc", "address_enc"},
	}
}

// Insert creates a participant, sealing contact fields.
func (r *Repository) Insert(ctx context.Context, p Participant) (Participant, error) {
	phone, err := r.sealOptional(p.Phone)
	if err != nil {
		return Participant{}, err
	}
	email, err := r.sealOptional(p.Email)
	if err != nil {
		return Participant{}, err
	}
	address, err := r.sealOptional(p.Address)
	if err != nil {
		return Participant{}, err
	}
	err = r.pool.QueryRow(ctx, `INSERT INTO participants (id, program_id, first_name, last_name, phone_enc, email_enc, address_enc)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at`, p.ID, p.ProgramID, p.FirstName, p.LastName, phone, email, address).Scan(&p.CreatedAt)
	if err != nil {
		return Participant{}, err
	}
	return p, nil
}

// Get fetches a participant, opening contact fields. A value no
// configured key can open surfaces as *fieldcrypt.DecryptionError; the
// read fails rather than silently dropping the field.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Participant, error) {
	var p Participant
	var phone, email, address *string
	err := r.pool.QueryRow(ctx, `SELECT id, program_id, first_name, last_name, phone_enc, email_enc, address_enc, created_at
FROM participants WHERE id = $1`, id).
		Scan(&p.ID, &p.ProgramID, &p.FirstName, &p.LastName, &phone, &email, &address, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Participant{}, shared.ErrNotFound
	}
	if err != nil {
		return Participant{}, err
	}
	if p.Phone, err = r.openOptional(phone); err != nil {
		return Participant{}, err
	}
	if p.Email, err = r.openOptional(email); err != nil {
		return Participant{}, err
	}
	if p.Address, err = r.openOptional(address); err != nil {
		return Participant{}, err
	}
	return p, nil
}

// IsAssigned reports whether the user is the participant's assigned
// case worker. Scoped permission outcomes resolve through this.
func (r *Repository) IsAssigned(ctx context.Context, userID int64, subjectID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT true FROM participant_assignments
WHERE user_id = $1 AND subject_id = $2 LIMIT 1`, userID, subjectID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Assign records a case-worker assignment; duplicates are ignored.
func (r *Repository) Assign(ctx context.Context, userID int64, subjectID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO participant_assignments (user_id, subject_id)
VALUES ($1, $2)
ON CONFLICT (user_id, subject_id) DO NOTHING`, userID, subjectID)
	return err
}

func (r *Repository) sealOptional(value string) (*string, error) {
	if value == "" {
		return nil, nil
	}
	sealed, err := r.enc.Encrypt(value)
	if err != nil {
		return nil, err
	}
	return &sealed, nil
}

func (r *Repository) openOptional(value *string) (string, error) {
	if value == nil || *value == "" {
		return "", nil
	}
	return r.enc.Decrypt(*value)
}
