// Package postgres stores workbook versions and calculation history in
// PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/xlcalc/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Store implements core.ModelStore and core.HistoryStore.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ core.ModelStore   = (*Store)(nil)
	_ core.HistoryStore = (*Store)(nil)
)

// New wraps pool. The caller owns the pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) FindVersions(ctx context.Context, name string) ([]core.FileVersion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, version, created_at
		   FROM model_files
		  WHERE name = $1
		  ORDER BY version DESC`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]core.FileVersion, 0)
	for rows.Next() {
		fv, err := scanFileVersion(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, fv)
	}
	return files, rows.Err()
}

func (s *Store) LoadModel(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var model []byte
	err := s.pool.QueryRow(ctx,
		`SELECT model FROM model_files WHERE id = $1`, toPgUUID(id),
	).Scan(&model)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", id, err)
	}
	return model, nil
}

// CreateVersion assigns max(version)+1 inside a transaction holding an
// advisory lock on the name, so concurrent uploads of the same file get
// distinct versions.
func (s *Store) CreateVersion(ctx context.Context, name string, model []byte) (core.FileVersion, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.FileVersion{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, name); err != nil {
		return core.FileVersion{}, fmt.Errorf("lock %q: %w", name, err)
	}

	var next int32
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM model_files WHERE name = $1`, name,
	).Scan(&next); err != nil {
		return core.FileVersion{}, fmt.Errorf("next version of %q: %w", name, err)
	}

	id := uuid.New()
	var createdAt pgtype.Timestamptz
	if err := tx.QueryRow(ctx,
		`INSERT INTO model_files (id, name, version, model)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		toPgUUID(id), name, next, model,
	).Scan(&createdAt); err != nil {
		return core.FileVersion{}, fmt.Errorf("insert %q version %d: %w", name, next, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return core.FileVersion{}, fmt.Errorf("commit: %w", err)
	}

	return core.FileVersion{
		ID:        id,
		Name:      name,
		Version:   int(next),
		CreatedAt: createdAt.Time,
	}, nil
}

// DeleteAll removes every version of name. History rows go with them
// through the foreign key cascade.
func (s *Store) DeleteAll(ctx context.Context, name string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM model_files WHERE name = $1`, name)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ListFiles(ctx context.Context) ([]core.FileVersion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, version, created_at
		   FROM model_files
		  ORDER BY name, version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]core.FileVersion, 0)
	for rows.Next() {
		fv, err := scanFileVersion(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, fv)
	}
	return files, rows.Err()
}

func (s *Store) RecordCalculation(ctx context.Context, rec core.HistoryRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO calc_history (id, file_id, input, output, client_ip, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		toPgUUID(rec.ID), toPgUUID(rec.FileID), rec.Input, rec.Output,
		toPgText(rec.ClientIP), toPgText(rec.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("record calculation: %w", err)
	}
	return nil
}

func (s *Store) ListHistory(ctx context.Context, fileID uuid.UUID) ([]core.HistoryRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, file_id, input, output, client_ip, user_agent, created_at
		   FROM calc_history
		  WHERE file_id = $1
		  ORDER BY created_at, id`, toPgUUID(fileID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]core.HistoryRecord, 0)
	for rows.Next() {
		var (
			id, file            pgtype.UUID
			input, output       string
			clientIP, userAgent pgtype.Text
			createdAt           pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &file, &input, &output, &clientIP, &userAgent, &createdAt); err != nil {
			return nil, err
		}
		records = append(records, core.HistoryRecord{
			ID:        fromPgUUID(id),
			FileID:    fromPgUUID(file),
			Input:     input,
			Output:    output,
			ClientIP:  clientIP.String,
			UserAgent: userAgent.String,
			CreatedAt: createdAt.Time,
		})
	}
	return records, rows.Err()
}

func (s *Store) PruneHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM calc_history WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanFileVersion(rows pgx.Rows) (core.FileVersion, error) {
	var (
		id        pgtype.UUID
		name      string
		version   int32
		createdAt pgtype.Timestamptz
	)
	if err := rows.Scan(&id, &name, &version, &createdAt); err != nil {
		return core.FileVersion{}, err
	}
	return core.FileVersion{
		ID:        fromPgUUID(id),
		Name:      name,
		Version:   int(version),
		CreatedAt: createdAt.Time,
	}, nil
}
