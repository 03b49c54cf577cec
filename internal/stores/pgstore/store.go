// Package pgstore implements the secret key-value store and the submission
// ledger on PostgreSQL through the pgx database/sql driver.
//
// Once a valid row exists for (user, module) every further insert for the
// pair is refused. The insert is guarded by NOT EXISTS, and racing valid
// inserts are caught by the partial unique index flag_submissions_one_solve.
// Both cases report stores.ErrAlreadySolved and write nothing.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrEthical07/goFlag/internal/stores"
	"github.com/MrEthical07/goFlag/internal/stores/pgstore/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const (
	uniqueViolation  = "23505"
	oneSolveIndex    = "flag_submissions_one_solve"
	submissionFields = "id, user_id, module_id, flag, submitted_at, valid"
)

// Store is a PostgreSQL-backed stores.KeyValue and stores.Ledger.
type Store struct {
	db *sql.DB
}

// Open opens a pgx-backed *sql.DB for dsn.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM flag_secrets WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, stores.ErrKeyNotFound
		}
		return nil, fmt.Errorf("%w: %v", stores.ErrBackendUnavailable, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (s *Store) SetIfAbsent(ctx context.Context, key string, value []byte) ([]byte, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO flag_secrets (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
		key, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stores.ErrBackendUnavailable, err)
	}
	return s.Get(ctx, key)
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO flag_secrets (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("%w: %v", stores.ErrBackendUnavailable, err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, sub stores.Submission) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO flag_submissions (`+submissionFields+`)
		 SELECT $1, $2, $3, $4, $5, $6
		 WHERE NOT EXISTS (
		     SELECT 1 FROM flag_submissions WHERE user_id = $2 AND module_id = $3 AND valid
		 )`,
		sub.ID, sub.UserID, sub.ModuleID, sub.Flag, sub.SubmittedAt, sub.Valid)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == oneSolveIndex {
			return stores.ErrAlreadySolved
		}
		return fmt.Errorf("%w: %v", stores.ErrBackendUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", stores.ErrBackendUnavailable, err)
	}
	if n == 0 {
		return stores.ErrAlreadySolved
	}
	return nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]stores.Submission, error) {
	return s.query(ctx,
		`SELECT `+submissionFields+` FROM flag_submissions WHERE user_id = $1 ORDER BY submitted_at, id`,
		userID)
}

func (s *Store) ListByModule(ctx context.Context, moduleID string) ([]stores.Submission, error) {
	return s.query(ctx,
		`SELECT `+submissionFields+` FROM flag_submissions WHERE module_id = $1 ORDER BY submitted_at, id`,
		moduleID)
}

func (s *Store) HasValid(ctx context.Context, userID, moduleID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM flag_submissions WHERE user_id = $1 AND module_id = $2 AND valid)`,
		userID, moduleID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: %v", stores.ErrBackendUnavailable, err)
	}
	return exists, nil
}

func (s *Store) SolvedModules(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT module_id FROM flag_submissions WHERE user_id = $1 AND valid ORDER BY module_id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stores.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", stores.ErrBackendUnavailable, err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", stores.ErrBackendUnavailable, err)
	}
	return out, nil
}

func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM flag_submissions`)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", stores.ErrBackendUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", stores.ErrBackendUnavailable, err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]stores.Submission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stores.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var out []stores.Submission
	for rows.Next() {
		var sub stores.Submission
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.ModuleID, &sub.Flag, &sub.SubmittedAt, &sub.Valid); err != nil {
			return nil, fmt.Errorf("%w: %v", stores.ErrBackendUnavailable, err)
		}
		sub.SubmittedAt = sub.SubmittedAt.UTC()
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", stores.ErrBackendUnavailable, err)
	}
	return out, nil
}
