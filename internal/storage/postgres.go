package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/deusflow/dailyletter/internal/logger"
)

// PostgresStore archives digests and shares the summary cache between runs.
type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
}

// ArchivedDigest is a row of the digests table.
type ArchivedDigest struct {
	RunID       string
	GeneratedAt time.Time
	EntryCount  int
	CreatedAt   time.Time
}

// NewPostgresStore connects, pings and initializes the schema.
func NewPostgresStore(ctx context.Context, connectionString string, ttl time.Duration) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &PostgresStore{db: db, ttl: ttl}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logger.Info("PostgreSQL store connected")
	return store, nil
}

func (ps *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS summary_cache (
		id SERIAL PRIMARY KEY,
		cache_key VARCHAR(64) UNIQUE NOT NULL,
		title TEXT NOT NULL,
		summary TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		last_used_at TIMESTAMP NOT NULL DEFAULT NOW(),
		use_count INTEGER DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_summary_cache_created_at ON summary_cache(created_at);

	CREATE TABLE IF NOT EXISTS digests (
		id SERIAL PRIMARY KEY,
		run_id VARCHAR(36) UNIQUE NOT NULL,
		generated_at TIMESTAMP NOT NULL,
		entry_count INTEGER NOT NULL,
		html TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_digests_generated_at ON digests(generated_at);
	`

	if _, err := ps.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	logger.Debug("Database schema initialized")
	return nil
}

// GetSummary returns a cached summary younger than the store TTL.
func (ps *PostgresStore) GetSummary(ctx context.Context, key string) (string, bool, error) {
	cutoff := time.Now().Add(-ps.ttl)

	var summary string
	err := ps.db.QueryRowContext(ctx,
		`UPDATE summary_cache
		 SET last_used_at = NOW(), use_count = use_count + 1
		 WHERE cache_key = $1 AND created_at > $2
		 RETURNING summary`,
		key, cutoff,
	).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get summary: %w", err)
	}
	return summary, true, nil
}

func (ps *PostgresStore) PutSummary(ctx context.Context, key, title, summary string) error {
	query := `
		INSERT INTO summary_cache (cache_key, title, summary, created_at, last_used_at, use_count)
		VALUES ($1, $2, $3, NOW(), NOW(), 1)
		ON CONFLICT (cache_key) DO UPDATE SET
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			created_at = NOW(),
			last_used_at = NOW()
	`
	if _, err := ps.db.ExecContext(ctx, query, key, title, summary); err != nil {
		return fmt.Errorf("put summary: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Name() string { return "postgres" }

// SaveDigest archives a rendered digest. Saving the same run twice is a
// no-op so delivery retries are safe.
func (ps *PostgresStore) SaveDigest(ctx context.Context, d Digest) error {
	query := `
		INSERT INTO digests (run_id, generated_at, entry_count, html)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id) DO NOTHING
	`
	if _, err := ps.db.ExecContext(ctx, query, d.RunID, d.GeneratedAt.UTC(), d.EntryCount, string(d.HTML)); err != nil {
		return fmt.Errorf("save digest: %w", err)
	}
	return nil
}

// RecentDigests lists archived runs, newest first.
func (ps *PostgresStore) RecentDigests(ctx context.Context, limit int) ([]ArchivedDigest, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := ps.db.QueryContext(ctx, `
		SELECT run_id, generated_at, entry_count, created_at
		FROM digests
		ORDER BY generated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list digests: %w", err)
	}
	defer rows.Close()

	var out []ArchivedDigest
	for rows.Next() {
		var d ArchivedDigest
		if err := rows.Scan(&d.RunID, &d.GeneratedAt, &d.EntryCount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Cleanup removes expired summaries.
func (ps *PostgresStore) Cleanup(ctx context.Context) error {
	cutoff := time.Now().Add(-ps.ttl)

	result, err := ps.db.ExecContext(ctx, `DELETE FROM summary_cache WHERE created_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup summaries: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows > 0 {
		logger.Info("Cleaned up expired summaries", "rows", rows)
	}
	return nil
}

func (ps *PostgresStore) Close() error {
	if ps.db != nil {
		return ps.db.Close()
	}
	return nil
}
