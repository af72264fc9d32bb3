package mock

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/mailrecall/core"
	"github.com/poiesic/mailrecall/storage"
)

// RecordStore is an in-memory storage.RecordStore.
type RecordStore struct {
	// SaveEmailsErr, when set, is returned by SaveEmails without storing anything.
	SaveEmailsErr error

	// GetEmailErr, when set, is returned by GetEmail.
	GetEmailErr error

	// ListEmailsErr, when set, is returned by ListEmails.
	ListEmailsErr error

	// StartJobErr, when set, is returned by StartJob.
	StartJobErr error

	// FinishJobErr, when set, is returned by CompleteJob and FailJob.
	FinishJobErr error

	mu        sync.Mutex
	emails    map[string]*core.Email
	jobs      map[int64]*core.Job
	nextJobID int64
	closed    bool
	now       func() time.Time
}

var _ storage.RecordStore = (*RecordStore)(nil)

// NewRecordStore creates an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		emails: make(map[string]*core.Email),
		jobs:   make(map[int64]*core.Job),
		now:    time.Now,
	}
}

// SaveEmail upserts an email.
func (s *RecordStore) SaveEmail(ctx context.Context, email *core.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}

	stored := *email
	now := s.now()
	if existing, ok := s.emails[email.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.emails[email.ID] = &stored
	return nil
}

// SaveEmails inserts emails whose id is not stored yet.
func (s *RecordStore) SaveEmails(ctx context.Context, emails []*core.Email) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, storage.ErrStorageClosed
	}
	if s.SaveEmailsErr != nil {
		return 0, s.SaveEmailsErr
	}

	inserted := 0
	now := s.now()
	for _, email := range emails {
		if _, ok := s.emails[email.ID]; ok {
			continue
		}
		stored := *email
		stored.CreatedAt = now
		stored.UpdatedAt = now
		s.emails[email.ID] = &stored
		inserted++
	}
	return inserted, nil
}

// GetEmail returns a copy of the stored email or nil.
func (s *RecordStore) GetEmail(ctx context.Context, id string) (*core.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}
	if s.GetEmailErr != nil {
		return nil, s.GetEmailErr
	}

	email, ok := s.emails[id]
	if !ok {
		return nil, nil
	}
	out := *email
	return &out, nil
}

// GetRecentEmails orders by date descending with undated emails last.
func (s *RecordStore) GetRecentEmails(ctx context.Context, limit int) ([]*core.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}

	all := s.sortedLocked(func(a, b *core.Email) int {
		switch {
		case a.Date == nil && b.Date == nil:
		case a.Date == nil:
			return 1
		case b.Date == nil:
			return -1
		case *a.Date != *b.Date:
			return cmp.Compare(*b.Date, *a.Date)
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// EmailExists reports whether id is stored.
func (s *RecordStore) EmailExists(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, storage.ErrStorageClosed
	}
	_, ok := s.emails[id]
	return ok, nil
}

// CountEmails returns the number of stored emails.
func (s *RecordStore) CountEmails(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, storage.ErrStorageClosed
	}
	return len(s.emails), nil
}

// ListEmails pages through emails ordered by id.
func (s *RecordStore) ListEmails(ctx context.Context, offset, limit int) ([]*core.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}
	if s.ListEmailsErr != nil {
		return nil, s.ListEmailsErr
	}

	all := s.sortedLocked(func(a, b *core.Email) int { return cmp.Compare(a.ID, b.ID) })
	offset = max(offset, 0)
	if offset >= len(all) {
		return []*core.Email{}, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *RecordStore) sortedLocked(compare func(a, b *core.Email) int) []*core.Email {
	out := make([]*core.Email, 0, len(s.emails))
	for _, email := range s.emails {
		c := *email
		out = append(out, &c)
	}
	slices.SortFunc(out, compare)
	return out
}

// StartJob creates a running job.
func (s *RecordStore) StartJob(ctx context.Context, jobType string) (*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}
	if s.StartJobErr != nil {
		return nil, s.StartJobErr
	}

	s.nextJobID++
	job := &core.Job{
		ID:        s.nextJobID,
		JobType:   jobType,
		Status:    core.JobStatusRunning,
		StartedAt: s.now(),
	}
	s.jobs[job.ID] = job
	out := *job
	return &out, nil
}

// CompleteJob moves a running job to completed.
func (s *RecordStore) CompleteJob(ctx context.Context, id int64, recordsProcessed int) error {
	return s.finish(id, core.JobStatusCompleted, func(job *core.Job) {
		job.RecordsProcessed = recordsProcessed
	})
}

// FailJob moves a running job to failed.
func (s *RecordStore) FailJob(ctx context.Context, id int64, message string) error {
	return s.finish(id, core.JobStatusFailed, func(job *core.Job) {
		job.ErrorMessage = core.StringPtr(message)
	})
}

func (s *RecordStore) finish(id int64, to core.JobStatus, apply func(*core.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	if s.FinishJobErr != nil {
		return s.FinishJobErr
	}

	job, ok := s.jobs[id]
	if !ok {
		return core.ErrInvalidTransition
	}
	if err := core.ValidateTransition(job.Status, to); err != nil {
		return err
	}
	job.Status = to
	completed := s.now()
	job.CompletedAt = &completed
	apply(job)
	return nil
}

// GetJob returns a copy of the job or nil.
func (s *RecordStore) GetJob(ctx context.Context, id int64) (*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	out := *job
	return &out, nil
}

// GetRecentJobs returns jobs newest first.
func (s *RecordStore) GetRecentJobs(ctx context.Context, limit int) ([]*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}

	if limit <= 0 {
		limit = storage.DefaultRecentJobs
	}

	out := make([]*core.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		c := *job
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *core.Job) int { return cmp.Compare(b.ID, a.ID) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Jobs returns all jobs ordered by id.
func (s *RecordStore) Jobs() []*core.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		c := *job
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *core.Job) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Close marks the store closed. Safe to call more than once.
func (s *RecordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
