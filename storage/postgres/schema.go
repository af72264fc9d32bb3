package postgres

import (
	"context"
	"fmt"
)

// migrations are applied in order on every start. Each statement is
// idempotent so repeated runs leave the schema unchanged.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS emails (
		id TEXT PRIMARY KEY,
		thread_id TEXT,
		subject TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		from_name TEXT NOT NULL DEFAULT '',
		from_email TEXT NOT NULL DEFAULT '',
		to_name TEXT NOT NULL DEFAULT '',
		to_email TEXT NOT NULL DEFAULT '',
		date BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS etl_jobs (
		id BIGSERIAL PRIMARY KEY,
		job_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		records_processed INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_emails_thread_id ON emails(thread_id)`,
	`CREATE INDEX IF NOT EXISTS idx_emails_from_email ON emails(from_email)`,
	`CREATE INDEX IF NOT EXISTS idx_emails_to_email ON emails(to_email)`,
	`CREATE INDEX IF NOT EXISTS idx_emails_date ON emails(date)`,
	`CREATE INDEX IF NOT EXISTS idx_emails_created_at ON emails(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_etl_jobs_status ON etl_jobs(status)`,
	`CREATE INDEX IF NOT EXISTS idx_etl_jobs_started_at ON etl_jobs(started_at)`,
}

// Migrate creates the tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	pool, err := s.acquire()
	if err != nil {
		return err
	}
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i, err)
		}
	}
	s.logger.Info("database schema ready", "statements", len(migrations))
	return nil
}
