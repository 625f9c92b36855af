package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

// RolesFor returns the role names a user holds within one program.
func (r *Repository) RolesFor(ctx context.Context, userID, programID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_name FROM role_assignments WHERE user_id = $1 AND program_id = $2 ORDER BY role_name`, userID, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// ProgramsFor returns the program ids a user is assigned to.
func (r *Repository) ProgramsFor(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT program_id FROM role_assignments WHERE user_id = $1 ORDER BY program_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var programs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		programs = append(programs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return programs, nil
}

// FindUser fetches a user by id.
func (r *Repository) FindUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT id, email, name, token_hash, is_admin, is_active, created_at
FROM users WHERE id = $1`, id).Scan(&u.ID, &u.Email, &u.Name, &u.TokenHash, &u.SystemAdmin, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// Assign adds a role assignment; duplicates are ignored.
func (r *Repository) Assign(ctx context.Context, userID, programID int64, role string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO role_assignments (user_id, program_id, role_name)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, program_id, role_name) DO NOTHING`, userID, programID, role)
	return err
}

// Remove deletes a role assignment.
func (r *Repository) Remove(ctx context.Context, userID, programID int64, role string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_assignments WHERE user_id = $1 AND program_id = $2 AND role_name = $3`, userID, programID, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListPrograms returns all programs ordered by id.
func (r *Repository) ListPrograms(ctx context.Context) ([]Program, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM programs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var programs []Program
	for rows.Next() {
		var p Program
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return programs, nil
}
