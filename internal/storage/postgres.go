package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "placement-engine/internal/common/errors"
)

// PostgresStore keeps each record as a jsonb document in its own table
// (id TEXT PRIMARY KEY, data JSONB, updated_at TIMESTAMPTZ). Update locks the
// row with SELECT ... FOR UPDATE for the duration of the read-modify-write.
type PostgresStore[T Record[T]] struct {
	db    *sql.DB
	table string
	kind  string
}

// NewPostgresStore binds a store to a table created by database.EnsureSchema.
func NewPostgresStore[T Record[T]](db *sql.DB, table, kind string) *PostgresStore[T] {
	return &PostgresStore[T]{db: db, table: table, kind: kind}
}

func (s *PostgresStore[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	var zero T
	var data []byte

	query := fmt.Sprintf("SELECT data FROM %s WHERE id = $1", s.table)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, apperrors.NewStorageError("find "+s.kind, err)
	}

	rec, err := s.decode(data)
	if err != nil {
		return zero, false, err
	}
	return rec, true, nil
}

func (s *PostgresStore[T]) FindAll(ctx context.Context, filter func(T) bool) ([]T, error) {
	query := fmt.Sprintf("SELECT data FROM %s ORDER BY id", s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewStorageError("list "+s.kind, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, apperrors.NewStorageError("scan "+s.kind, err)
		}
		rec, err := s.decode(data)
		if err != nil {
			return nil, err
		}
		if filter == nil || filter(rec) {
			out = append(out, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list "+s.kind, err)
	}
	return out, nil
}

func (s *PostgresStore[T]) Save(ctx context.Context, rec T) (T, error) {
	var zero T
	if rec.RecordID() == "" {
		rec = rec.WithID(NewID())
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return zero, apperrors.NewStorageError("encode "+s.kind, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, data, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`, s.table)
	if _, err := s.db.ExecContext(ctx, query, rec.RecordID(), data); err != nil {
		return zero, apperrors.NewStorageError("save "+s.kind, err)
	}
	return rec, nil
}

func (s *PostgresStore[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, apperrors.NewStorageError("delete "+s.kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStorageError("delete "+s.kind, err)
	}
	return n > 0, nil
}

func (s *PostgresStore[T]) Update(ctx context.Context, id string, fn func(*T) error) (T, error) {
	var zero T

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return zero, apperrors.NewStorageError("begin update "+s.kind, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var data []byte
	query := fmt.Sprintf("SELECT data FROM %s WHERE id = $1 FOR UPDATE", s.table)
	err = tx.QueryRowContext(ctx, query, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, apperrors.NewNotFoundError(s.kind, id)
	}
	if err != nil {
		return zero, apperrors.NewStorageError("lock "+s.kind, err)
	}

	rec, err := s.decode(data)
	if err != nil {
		return zero, err
	}
	if err := fn(&rec); err != nil {
		return zero, err
	}
	rec = rec.WithID(id)

	updated, err := json.Marshal(rec)
	if err != nil {
		return zero, apperrors.NewStorageError("encode "+s.kind, err)
	}

	stmt := fmt.Sprintf("UPDATE %s SET data = $2, updated_at = NOW() WHERE id = $1", s.table)
	if _, err := tx.ExecContext(ctx, stmt, id, updated); err != nil {
		return zero, apperrors.NewStorageError("update "+s.kind, err)
	}
	if err := tx.Commit(); err != nil {
		return zero, apperrors.NewStorageError("commit "+s.kind, err)
	}
	return rec, nil
}

func (s *PostgresStore[T]) decode(data []byte) (T, error) {
	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, apperrors.NewStorageError("decode "+s.kind, err)
	}
	return rec, nil
}
