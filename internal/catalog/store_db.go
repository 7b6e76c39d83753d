package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second

	pgUndefinedTable = "42P01"
)

// PostgresStore keeps the serialized collection as a single row keyed by name.
type PostgresStore struct {
	db   *sql.DB
	name string
}

func NewPostgresStore(db *sql.DB, name string) *PostgresStore {
	return &PostgresStore{db: db, name: name}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS catalog_documents (
				name       TEXT PRIMARY KEY,
				body       TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)
		`)
		return err
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresStore) Read(ctx context.Context) ([]byte, error) {
	var body string

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `
			SELECT body
			FROM catalog_documents
			WHERE name = $1
		`, s.name).Scan(&body)
	})

	if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (s *PostgresStore) Write(ctx context.Context, data []byte) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO catalog_documents (name, body, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (name) DO UPDATE
			SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
		`, s.name, string(data))
		return err
	})
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}
