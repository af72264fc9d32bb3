package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/poiesic/mailrecall/core"
	"github.com/poiesic/mailrecall/storage"
)

const emailColumns = `id, thread_id, subject, body, from_name, from_email, to_name, to_email,
	date, created_at, updated_at, processed_at`

const insertIgnoreEmailSQL = `INSERT INTO emails
	(id, thread_id, subject, body, from_name, from_email, to_name, to_email, date, processed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO NOTHING`

const upsertEmailSQL = `INSERT INTO emails
	(id, thread_id, subject, body, from_name, from_email, to_name, to_email, date, processed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		thread_id = EXCLUDED.thread_id,
		subject = EXCLUDED.subject,
		body = EXCLUDED.body,
		from_name = EXCLUDED.from_name,
		from_email = EXCLUDED.from_email,
		to_name = EXCLUDED.to_name,
		to_email = EXCLUDED.to_email,
		date = EXCLUDED.date,
		processed_at = EXCLUDED.processed_at,
		updated_at = NOW()`

func emailArgs(e *core.Email) []any {
	return []any{e.ID, e.ThreadID, e.Subject, e.Body, e.FromName, e.FromEmail,
		e.ToName, e.ToEmail, e.Date, e.ProcessedAt}
}

// SaveEmail inserts or replaces a single email.
func (s *Store) SaveEmail(ctx context.Context, email *core.Email) error {
	pool, err := s.acquire()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, upsertEmailSQL, emailArgs(email)...); err != nil {
		return fmt.Errorf("failed to save email %s: %w", email.ID, err)
	}
	return nil
}

// SaveEmails inserts emails in a single transaction, ignoring ids that are
// already stored. The whole batch is rolled back on the first failure.
func (s *Store) SaveEmails(ctx context.Context, emails []*core.Email) (int, error) {
	if len(emails) == 0 {
		return 0, nil
	}
	pool, err := s.acquire()
	if err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	inserted := 0
	for _, email := range emails {
		tag, err := tx.Exec(ctx, insertIgnoreEmailSQL, emailArgs(email)...)
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error("failed to roll back email batch", "err", rbErr)
			}
			return 0, fmt.Errorf("failed to insert email %s: %w", email.ID, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: failed to commit email batch: %w", storage.ErrTransactionFailed, err)
	}

	s.logger.Debug("saved email batch", "received", len(emails), "inserted", inserted)
	return inserted, nil
}

// GetEmail retrieves an email by id. Returns nil, nil when missing.
func (s *Store) GetEmail(ctx context.Context, id string) (*core.Email, error) {
	pool, err := s.acquire()
	if err != nil {
		return nil, err
	}
	row := pool.QueryRow(ctx, `SELECT `+emailColumns+` FROM emails WHERE id = $1`, id)
	email, err := scanEmail(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email %s: %w", id, err)
	}
	return email, nil
}

// GetRecentEmails returns the newest emails by provider date.
func (s *Store) GetRecentEmails(ctx context.Context, limit int) ([]*core.Email, error) {
	return s.queryEmails(ctx, "recent emails",
		`SELECT `+emailColumns+` FROM emails ORDER BY date DESC NULLS LAST, id LIMIT $1`, limitArg(limit))
}

// ListEmails pages through all emails ordered by id.
func (s *Store) ListEmails(ctx context.Context, offset, limit int) ([]*core.Email, error) {
	return s.queryEmails(ctx, "list emails",
		`SELECT `+emailColumns+` FROM emails ORDER BY id LIMIT $1 OFFSET $2`, limitArg(limit), max(offset, 0))
}

// limitArg maps a non-positive limit to NULL, which PostgreSQL reads as LIMIT ALL.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

// EmailExists reports whether the id is stored.
func (s *Store) EmailExists(ctx context.Context, id string) (bool, error) {
	pool, err := s.acquire()
	if err != nil {
		return false, err
	}
	var exists bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM emails WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check email %s: %w", id, err)
	}
	return exists, nil
}

// CountEmails returns the number of stored emails.
func (s *Store) CountEmails(ctx context.Context) (int, error) {
	pool, err := s.acquire()
	if err != nil {
		return 0, err
	}
	var count int64
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM emails`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count emails: %w", err)
	}
	return int(count), nil
}

func (s *Store) queryEmails(ctx context.Context, op, sql string, args ...any) ([]*core.Email, error) {
	pool, err := s.acquire()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", op, err)
	}
	defer rows.Close()

	var emails []*core.Email
	for rows.Next() {
		email, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", op, err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", op, err)
	}
	return emails, nil
}

func scanEmail(row pgx.Row) (*core.Email, error) {
	var (
		e           core.Email
		threadID    *string
		date        *int64
		processedAt *time.Time
	)
	err := row.Scan(&e.ID, &threadID, &e.Subject, &e.Body, &e.FromName, &e.FromEmail,
		&e.ToName, &e.ToEmail, &date, &e.CreatedAt, &e.UpdatedAt, &processedAt)
	if err != nil {
		return nil, err
	}
	e.ThreadID = threadID
	e.Date = date
	e.ProcessedAt = processedAt
	return &e, nil
}
