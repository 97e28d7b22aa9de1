package dictionary

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists entries in PostgreSQL, for dictionaries shared by
// several machines.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS dictionary_entries (
		keyword TEXT PRIMARY KEY,
		replacement TEXT NOT NULL,
		kind TEXT NOT NULL,
		usage_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init dictionary schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT keyword, replacement, kind, usage_count, created_at, updated_at
		 FROM dictionary_entries ORDER BY keyword ASC`)
	if err != nil {
		return nil, fmt.Errorf("query dictionary entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			kind string
		)
		if err := rows.Scan(&e.Keyword, &e.Replacement, &kind, &e.UsageCount, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan dictionary entry: %w", err)
		}
		e.Kind = Kind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dictionary entries: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, entry Entry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dictionary_entries (keyword, replacement, kind, usage_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (keyword) DO UPDATE SET
			replacement = EXCLUDED.replacement,
			kind = EXCLUDED.kind,
			updated_at = EXCLUDED.updated_at`,
		entry.Keyword,
		entry.Replacement,
		string(entry.Kind),
		entry.UsageCount,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert dictionary entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, keyword string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dictionary_entries WHERE keyword = $1`, keyword)
	if err != nil {
		return fmt.Errorf("delete dictionary entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) IncrementUsage(ctx context.Context, keyword string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dictionary_entries SET usage_count = usage_count + 1, updated_at = $2 WHERE keyword = $1`,
		keyword, at)
	if err != nil {
		return fmt.Errorf("increment dictionary usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
