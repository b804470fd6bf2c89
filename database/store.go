// Package database is the durable store for pages, links, crawl jobs, the
// crawl queue, sessions and the action log, grounded on the teacher's
// database/postgres.go (PostgresDB → Store, createTables → migrate) and
// widened per spec §6.1's full schema.
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Store wraps a Postgres connection pool and implements every persistence
// operation the crawl engine needs.
type Store struct {
	DB *sql.DB
}

// Open opens the database and runs migrations.
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &Store{DB: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return store, nil
}

const schemaVersion = "1"

// migrate idempotently creates every table and index spec §6.1 requires,
// then records the schema version under db_schema_version.
func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pages (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			canonical_url TEXT,
			title TEXT,
			fetched_at TIMESTAMPTZ NOT NULL,
			content_hash TEXT,
			extractor_version TEXT NOT NULL,
			mode TEXT NOT NULL,
			source TEXT NOT NULL,
			page_json JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_fetched_at ON pages(fetched_at DESC)`,
		`CREATE TABLE IF NOT EXISTS links (
			from_page_id TEXT NOT NULL REFERENCES pages(id),
			to_url TEXT NOT NULL,
			text TEXT,
			rel TEXT,
			is_internal SMALLINT NOT NULL DEFAULT 0,
			PRIMARY KEY (from_page_id, to_url)
		)`,
		`CREATE TABLE IF NOT EXISTS crawl_jobs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			seed_url_json JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			options_json JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS crawl_queue (
			id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL REFERENCES crawl_jobs(id),
			url TEXT NOT NULL,
			depth INTEGER NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			next_fetch_at TIMESTAMPTZ NOT NULL,
			domain TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			retries INTEGER NOT NULL DEFAULT 0,
			last_error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_crawl_queue_claim ON crawl_queue(job_id, status, next_fetch_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_crawl_queue_job_url ON crawl_queue(job_id, url)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			name TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			storage_state_path TEXT,
			notes TEXT,
			headed SMALLINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS actions_log (
			id TEXT PRIMARY KEY,
			session_name TEXT NOT NULL,
			url TEXT NOT NULL,
			action_json JSONB NOT NULL,
			result_json JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.DB.Exec(stmt); err != nil {
			return fmt.Errorf("executing %s: %w", stmt, err)
		}
	}

	_, err := s.DB.Exec(`
		INSERT INTO schema_meta (key, value) VALUES ('db_schema_version', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, schemaVersion)
	return err
}

// touchLastSuccess stores the current UTC time (RFC3339) under key in
// schema_meta, ignoring errors. Neither migrate nor the crawl engine calls it.
func (s *Store) touchLastSuccess(key string) {
	_, _ = s.DB.Exec(`
		INSERT INTO schema_meta (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, time.Now().UTC().Format(time.RFC3339))
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.DB.Close()
}

func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}
