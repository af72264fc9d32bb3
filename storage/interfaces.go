package storage

import (
	"context"

	"github.com/poiesic/mailrecall/core"
)

// DefaultRecentJobs is the GetRecentJobs limit used for a non-positive limit.
const DefaultRecentJobs = 20

// EmailRepository provides operations for canonical email records.
type EmailRepository interface {
	// SaveEmail inserts or fully replaces a single email (upsert-replace).
	// UpdatedAt is refreshed by the store.
	SaveEmail(ctx context.Context, email *core.Email) error

	// SaveEmails inserts a batch of emails in one atomic unit, silently
	// skipping ids that already exist (insert-or-ignore).
	// Returns the number of rows actually inserted. An empty batch is a no-op.
	// On any failure nothing from the batch is persisted.
	SaveEmails(ctx context.Context, emails []*core.Email) (int, error)

	// GetEmail retrieves an email by provider id.
	// Returns nil, nil when the email doesn't exist.
	GetEmail(ctx context.Context, id string) (*core.Email, error)

	// GetRecentEmails returns up to limit emails ordered by Date descending.
	// A non-positive limit returns every email.
	GetRecentEmails(ctx context.Context, limit int) ([]*core.Email, error)

	// EmailExists reports whether an email with the id is stored.
	EmailExists(ctx context.Context, id string) (bool, error)

	// CountEmails returns the number of stored emails.
	CountEmails(ctx context.Context) (int, error)

	// ListEmails pages through all emails ordered by id.
	// A non-positive limit returns everything after offset.
	ListEmails(ctx context.Context, offset, limit int) ([]*core.Email, error)
}

// JobRepository records pipeline executions.
type JobRepository interface {
	// StartJob creates a job in the running state and returns it with its
	// store-assigned ID and StartedAt populated.
	StartJob(ctx context.Context, jobType string) (*core.Job, error)

	// CompleteJob moves a running job to completed.
	// Returns core.ErrInvalidTransition if the job is not running.
	CompleteJob(ctx context.Context, id int64, recordsProcessed int) error

	// FailJob moves a running job to failed and records the message.
	// Returns core.ErrInvalidTransition if the job is not running.
	FailJob(ctx context.Context, id int64, message string) error

	// GetJob retrieves a job by id.
	// Returns nil, nil when the job doesn't exist.
	GetJob(ctx context.Context, id int64) (*core.Job, error)

	// GetRecentJobs returns up to limit jobs ordered by StartedAt descending.
	// A non-positive limit uses DefaultRecentJobs.
	GetRecentJobs(ctx context.Context, limit int) ([]*core.Job, error)
}

// RecordStore is the relational system of record.
type RecordStore interface {
	EmailRepository
	JobRepository

	// Close releases the connection pool. Safe to call more than once.
	Close() error
}

// Collection describes the named search index collection.
type Collection struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Document is a unit of text added to the search index.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// DocumentFor derives the search index document for an email.
func DocumentFor(email *core.Email) Document {
	return Document{
		ID:       email.ID,
		Text:     core.DocumentText(email),
		Metadata: core.DocumentMetadata(email),
	}
}

// SearchIndex is the semantic retrieval projection of the record store.
// It embeds document text on write and query.
type SearchIndex interface {
	// Init opens the index and creates the collection if needed.
	// Calling Init on an already initialized index is a no-op.
	Init(ctx context.Context) error

	// Collection returns the collection descriptor.
	Collection() Collection

	// Add upserts a single document.
	Add(ctx context.Context, doc Document) error

	// AddBatch upserts documents. An empty batch is a no-op.
	AddBatch(ctx context.Context, docs []Document) error

	// Query returns up to limit documents nearest to text, restricted to
	// documents whose metadata matches every pair in filter.
	// Results are ordered by Distance ascending.
	Query(ctx context.Context, text string, limit int, filter map[string]string) ([]*core.IndexHit, error)

	// Exists reports whether a document with the id is indexed.
	Exists(ctx context.Context, id string) (bool, error)

	// Count returns the number of indexed documents.
	Count(ctx context.Context) (int, error)

	// Delete removes a document. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases the index. Safe to call more than once.
	Close() error
}
