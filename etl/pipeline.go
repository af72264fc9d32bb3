// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package etl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/mailrecall/core"
	"github.com/poiesic/mailrecall/storage"
)

// Routing keys for job events.
const (
	EventJobCompleted = "etl.job.completed"
	EventJobFailed    = "etl.job.failed"
)

// Record counter stages.
const (
	StageFetched     = "fetched"
	StageTransformed = "transformed"
	StageStored      = "stored"
	StageIndexed     = "indexed"
)

// Fetcher retrieves raw message records for an account.
type Fetcher interface {
	Fetch(ctx context.Context, accountRef string, maxCount, pageSize int) ([]json.RawMessage, error)
}

// Metrics receives run measurements.
type Metrics interface {
	ObserveRun(status core.JobStatus, elapsed time.Duration)
	AddRecords(stage string, n int)
	IncIndexFailure()
}

// EventPublisher publishes job lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// RunLocker provides a mutual exclusion lease per key.
// Acquire reports ok=false when the key is held elsewhere.
type RunLocker interface {
	Acquire(ctx context.Context, key string) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// JobEvent is published after a job reaches a terminal state.
type JobEvent struct {
	JobID            int64          `json:"job_id"`
	AccountRef       string         `json:"account_ref"`
	Status           core.JobStatus `json:"status"`
	RecordsProcessed int            `json:"records_processed"`
	Error            string         `json:"error,omitempty"`
}

// Result describes a completed run.
type Result struct {
	JobID int64

	// Fetched is the number of raw records returned by the provider.
	Fetched int

	// EmailsProcessed is the number of records that survived transformation,
	// which is also the job's records_processed.
	EmailsProcessed int

	// Stored is the number of emails newly inserted into the record store.
	Stored int

	// Indexed is the number of documents newly added to the search index.
	Indexed int

	// IndexErr is set when the search index load failed. The job still
	// completes because the record store holds the data.
	IndexErr error
}

// Pipeline runs ETL jobs.
type Pipeline struct {
	fetcher     Fetcher
	jobs        storage.JobRepository
	records     Loader
	index       Loader
	transformer *Transformer

	maxEmails int
	pageSize  int
	now       func() time.Time

	metrics   Metrics
	publisher EventPublisher
	locker    RunLocker
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithMetrics records run measurements.
func WithMetrics(m Metrics) Option {
	return func(p *Pipeline) error {
		if m != nil {
			p.metrics = m
		}
		return nil
	}
}

// WithEventPublisher publishes a JobEvent after every terminal transition.
func WithEventPublisher(publisher EventPublisher) Option {
	return func(p *Pipeline) error {
		p.publisher = publisher
		return nil
	}
}

// WithRunLock serializes runs for the same account across processes.
func WithRunLock(locker RunLocker) Option {
	return func(p *Pipeline) error {
		p.locker = locker
		return nil
	}
}

// WithFetchLimits sets the per-run message cap and the page size.
// Non-positive values keep the fetcher defaults.
func WithFetchLimits(maxEmails, pageSize int) Option {
	return func(p *Pipeline) error {
		p.maxEmails = maxEmails
		p.pageSize = pageSize
		return nil
	}
}

// WithClock overrides the clock used for ProcessedAt and run timing.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}
		p.now = now
		return nil
	}
}

// NewPipeline creates an ETL pipeline loading into store and index.
func NewPipeline(fetcher Fetcher, store storage.RecordStore, index storage.SearchIndex, opts ...Option) (*Pipeline, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if store == nil {
		return nil, ErrRecordStoreRequired
	}
	if index == nil {
		return nil, ErrSearchIndexRequired
	}

	p := &Pipeline{
		fetcher: fetcher,
		jobs:    store,
		now:     time.Now,
		metrics: noopMetrics{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	p.transformer = NewTransformer(WithTransformClock(p.now), WithTransformLogger(p.logger))
	p.records = NewRecordLoader(store)
	p.index = NewIndexLoader(index, p.logger)
	return p, nil
}

// Run executes one ETL job for accountRef.
//
// The job is created running before anything is fetched. A failure after
// that point marks the job failed and returns the error; an index failure
// alone does not. With a run lock configured, a run already holding the
// account returns ErrRunInProgress without creating a job.
func (p *Pipeline) Run(ctx context.Context, accountRef string) (*Result, error) {
	if p.locker != nil {
		release, err := p.lock(ctx, accountRef)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	started := p.now()
	job, err := p.jobs.StartJob(ctx, core.JobTypeEmailExtraction)
	if err != nil {
		return nil, fmt.Errorf("failed to start job: %w", err)
	}
	logger := p.logger.With("job_id", job.ID, "account", accountRef)
	logger.Info("etl job started")

	result := &Result{JobID: job.ID}
	if err := p.execute(ctx, accountRef, result, logger); err != nil {
		return result, p.fail(ctx, job.ID, accountRef, started, err, logger)
	}

	// Both stores are loaded; a cancellation from here on must not turn the
	// run into a failure.
	finishCtx := context.WithoutCancel(ctx)
	if err := p.jobs.CompleteJob(finishCtx, job.ID, result.EmailsProcessed); err != nil {
		err = fmt.Errorf("failed to complete job: %w", err)
		return result, p.fail(ctx, job.ID, accountRef, started, err, logger)
	}

	p.metrics.ObserveRun(core.JobStatusCompleted, p.now().Sub(started))
	p.publish(finishCtx, EventJobCompleted, JobEvent{
		JobID:            job.ID,
		AccountRef:       accountRef,
		Status:           core.JobStatusCompleted,
		RecordsProcessed: result.EmailsProcessed,
	}, logger)
	logger.Info("etl job completed",
		"fetched", result.Fetched,
		"processed", result.EmailsProcessed,
		"stored", result.Stored,
		"indexed", result.Indexed,
	)
	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, accountRef string, result *Result, logger *slog.Logger) error {
	raw, err := p.fetcher.Fetch(ctx, accountRef, p.maxEmails, p.pageSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtract, err)
	}
	result.Fetched = len(raw)
	p.metrics.AddRecords(StageFetched, len(raw))
	logger.Info("transforming emails", "count", len(raw))

	emails := p.transformer.Transform(raw)
	result.EmailsProcessed = len(emails)
	p.metrics.AddRecords(StageTransformed, len(emails))

	logger.Info("loading emails", "count", len(emails), "loader", p.records.Name())
	stored, err := p.records.Load(ctx, emails)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadRecords, err)
	}
	result.Stored = stored
	p.metrics.AddRecords(StageStored, stored)

	indexed, err := p.index.Load(ctx, emails)
	if err != nil {
		result.IndexErr = fmt.Errorf("%w: %w", ErrLoadIndex, err)
		p.metrics.IncIndexFailure()
		logger.Error("search index load failed, records remain stored", "loader", p.index.Name(), "err", err)
		return nil
	}
	result.Indexed = indexed
	p.metrics.AddRecords(StageIndexed, indexed)
	return nil
}

// fail records the failure on the job and returns cause, joined with the
// recording error if that write fails too.
func (p *Pipeline) fail(ctx context.Context, jobID int64, accountRef string, started time.Time, cause error, logger *slog.Logger) error {
	logger.Error("etl job failed", "err", cause)

	// The run context may be what failed; the failure must still be recorded.
	recordCtx := context.WithoutCancel(ctx)
	if err := p.jobs.FailJob(recordCtx, jobID, cause.Error()); err != nil {
		logger.Error("failed to record job failure", "err", err)
		cause = errors.Join(cause, fmt.Errorf("failed to record job failure: %w", err))
	}

	p.metrics.ObserveRun(core.JobStatusFailed, p.now().Sub(started))
	p.publish(recordCtx, EventJobFailed, JobEvent{
		JobID:      jobID,
		AccountRef: accountRef,
		Status:     core.JobStatusFailed,
		Error:      cause.Error(),
	}, logger)
	return cause
}

func (p *Pipeline) publish(ctx context.Context, routingKey string, event JobEvent, logger *slog.Logger) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, routingKey, event); err != nil {
		logger.Warn("failed to publish job event", "routing_key", routingKey, "err", err)
	}
}

// lock acquires the account lease. Backend errors fail open.
func (p *Pipeline) lock(ctx context.Context, accountRef string) (func(), error) {
	key := lockKey(accountRef)
	token, ok, err := p.locker.Acquire(ctx, key)
	if err != nil {
		p.logger.Warn("run lock unavailable, proceeding without it", "account", accountRef, "err", err)
		return func() {}, nil
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	return func() {
		if err := p.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			p.logger.Warn("failed to release run lock", "account", accountRef, "err", err)
		}
	}, nil
}

func lockKey(accountRef string) string {
	return "mailrecall:etl:" + accountRef
}

type noopMetrics struct{}

func (noopMetrics) ObserveRun(core.JobStatus, time.Duration) {}
func (noopMetrics) AddRecords(string, int)                   {}
func (noopMetrics) IncIndexFailure()                         {}
