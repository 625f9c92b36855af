package alerts

import (
	"context"
	"errors"

	"github.com/google/uuid"
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

// Insert creates an active alert.
func (r *Repository) Insert(ctx context.Context, alert Alert) (Alert, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO safety_alerts (id, subject_id, status, detail, created_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at`, alert.ID, alert.SubjectID, alert.Status, alert.Detail, alert.CreatedBy).
		Scan(&alert.CreatedAt, &alert.UpdatedAt)
	if err != nil {
		return Alert{}, err
	}
	return alert, nil
}

// Get fetches one alert.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Alert, error) {
	var a Alert
	err := r.pool.QueryRow(ctx, `SELECT id, subject_id, status, detail, created_by, created_at, cancel_recommended_by, cancel_approved_by, updated_at
FROM safety_alerts WHERE id = $1`, id).
		Scan(&a.ID, &a.SubjectID, &a.Status, &a.Detail, &a.CreatedBy, &a.CreatedAt, &a.CancelRecommendedBy, &a.CancelApprovedBy, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Alert{}, shared.ErrNotFound
	}
	if err != nil {
		return Alert{}, err
	}
	return a, nil
}

// Transition moves an alert between statuses with an optimistic guard
// on the expected current status. It reports whether a row changed.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from, to string, recommendedBy, approvedBy *int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE safety_alerts
SET status = $3,
    cancel_recommended_by = $4,
    cancel_approved_by = $5,
    updated_at = NOW()
WHERE id = $1 AND status = $2`, id, from, to, recommendedBy, approvedBy)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListForSubject returns a subject's alerts, newest first.
func (r *Repository) ListForSubject(ctx context.Context, subjectID uuid.UUID) ([]Alert, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, subject_id, status, detail, created_by, created_at, cancel_recommended_by, cancel_approved_by, updated_at
FROM safety_alerts WHERE subject_id = $1 ORDER BY created_at DESC`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.SubjectID, &a.Status, &a.Detail, &a.CreatedBy, &a.CreatedAt, &a.CancelRecommendedBy, &a.CancelApprovedBy, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
