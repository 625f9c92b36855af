package fieldcrypt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore provides PostgreSQL backed persistence for the rotation pass.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Checkpoint returns the last processed row id for a table, empty when
// the table has not been started yet.
func (s *PGStore) Checkpoint(ctx context.Context, table string) (string, error) {
	var lastID string
	err := s.pool.QueryRow(ctx, `SELECT last_id FROM key_rotation_progress WHERE table_name = $1`, table).Scan(&lastID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return lastID, nil
}

// SaveCheckpoint upserts rotation progress for a table.
func (s *PGStore) SaveCheckpoint(ctx context.Context, table, lastID string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO key_rotation_progress (table_name, last_id, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (table_name) DO UPDATE SET last_id = EXCLUDED.last_id, updated_at = NOW()`, table, lastID)
	return err
}

// ClearCheckpoint removes progress once a table is fully rewritten.
func (s *PGStore) ClearCheckpoint(ctx context.Context, table string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM key_rotation_progress WHERE table_name = $1`, table)
	return err
}

// Batch reads the next window of rows ordered by id.
func (s *PGStore) Batch(ctx context.Context, target Target, afterID string, limit int) ([]Row, error) {
	cols := make([]string, 0, len(target.Columns))
	for _, c := range target.Columns {
		cols = append(cols, quoteIdent(c))
	}
	query := fmt.Sprintf(`SELECT %s::text, %s FROM %s WHERE %s::text > $1 ORDER BY %s::text LIMIT $2`,
		quoteIdent(target.IDColumn), strings.Join(cols, ", "), quoteIdent(target.Table),
		quoteIdent(target.IDColumn), quoteIdent(target.IDColumn))
	rows, err := s.pool.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		values := make([]*string, len(target.Columns))
		dest := make([]any, 0, len(target.Columns)+1)
		var id string
		dest = append(dest, &id)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := Row{ID: id, Values: make(map[string]string, len(target.Columns))}
		for i, column := range target.Columns {
			if values[i] != nil {
				row.Values[column] = *values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateRow rewrites the given columns for a single record.
func (s *PGStore) UpdateRow(ctx context.Context, target Target, row Row) error {
	sets := make([]string, 0, len(row.Values))
	args := make([]any, 0, len(row.Values)+1)
	args = append(args, row.ID)
	for column, value := range row.Values {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdent(column), len(args)))
	}
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s::text = $1`,
		quoteIdent(target.Table), strings.Join(sets, ", "), quoteIdent(target.IDColumn))
	_, err := s.pool.Exec(ctx, query, args...)
	return err
}

// quoteIdent guards table and column names interpolated into SQL.
// Targets come from code, never from request input, but the quoting
// keeps a typo from turning into something worse.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, ``) + `"`
}
