package dictionary

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS dictionary_entries (
	keyword     TEXT PRIMARY KEY,
	replacement TEXT NOT NULL,
	kind        TEXT NOT NULL,
	usage_count INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
)`

// SQLiteStore persists entries in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. The special
// path ":memory:" keeps a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	if path == ":memory:" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite dictionary: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite dictionary: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite dictionary schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT keyword, replacement, kind, usage_count, created_at, updated_at
		FROM dictionary_entries
		ORDER BY keyword ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query dictionary entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                Entry
			kind             string
			created, updated int64
		)
		if err := rows.Scan(&e.Keyword, &e.Replacement, &kind, &e.UsageCount, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan dictionary entry: %w", err)
		}
		e.Kind = Kind(kind)
		e.CreatedAt = time.UnixMilli(created)
		e.UpdatedAt = time.UnixMilli(updated)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Upsert(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dictionary_entries (keyword, replacement, kind, usage_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(keyword) DO UPDATE SET
			replacement = excluded.replacement,
			kind = excluded.kind,
			updated_at = excluded.updated_at
	`, entry.Keyword, entry.Replacement, string(entry.Kind), entry.UsageCount,
		entry.CreatedAt.UnixMilli(), entry.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert dictionary entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, keyword string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dictionary_entries WHERE keyword = ?`, keyword)
	if err != nil {
		return fmt.Errorf("delete dictionary entry: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) IncrementUsage(ctx context.Context, keyword string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE dictionary_entries
		SET usage_count = usage_count + 1, updated_at = ?
		WHERE keyword = ?
	`, at.UnixMilli(), keyword)
	if err != nil {
		return fmt.Errorf("increment dictionary usage: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
