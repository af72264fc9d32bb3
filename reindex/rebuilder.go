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


package reindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/mailrecall/core"
	"github.com/poiesic/mailrecall/storage"
)

// Config holds configuration for a rebuild.
type Config struct {
	// BatchSize is the number of emails read and indexed together
	BatchSize int

	// ReportInterval is how often to report progress (number of emails)
	ReportInterval int

	// MaxRetries is the number of attempts for each batch upsert
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Workers is the number of batches indexed concurrently
	Workers int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		Workers:        1,
	}
}

// Rebuilder re-derives every search index document from the record store.
type Rebuilder struct {
	store    storage.RecordStore
	index    storage.SearchIndex
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// NewRebuilder creates a rebuilder. A nil config uses DefaultConfig.
// progress receives human-readable progress output (typically os.Stderr).
func NewRebuilder(store storage.RecordStore, index storage.SearchIndex, config *Config, progress io.Writer) (*Rebuilder, error) {
	if store == nil {
		return nil, ErrRecordStoreRequired
	}
	if index == nil {
		return nil, ErrSearchIndexRequired
	}
	cfg := DefaultConfig()
	if config != nil {
		c := *config
		cfg = &c
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Rebuilder{
		store:    store,
		index:    index,
		config:   cfg,
		progress: progress,
		logger:   slog.Default().With("component", "reindex"),
	}, nil
}

// Run rebuilds the index and records the run as an index_rebuild job.
// It returns the number of emails indexed. A failed batch stops the rebuild;
// documents upserted before the failure stay in the index.
func (r *Rebuilder) Run(ctx context.Context) (int, error) {
	job, err := r.store.StartJob(ctx, core.JobTypeIndexRebuild)
	if err != nil {
		return 0, fmt.Errorf("failed to start rebuild job: %w", err)
	}
	logger := r.logger.With("job_id", job.ID)

	indexed, err := r.rebuild(ctx, logger)
	if err != nil {
		logger.Error("index rebuild failed", "indexed", indexed, "err", err)
		if ferr := r.store.FailJob(context.WithoutCancel(ctx), job.ID, err.Error()); ferr != nil {
			err = errors.Join(err, fmt.Errorf("failed to record job failure: %w", ferr))
		}
		return indexed, err
	}

	if err := r.store.CompleteJob(ctx, job.ID, indexed); err != nil {
		return indexed, fmt.Errorf("failed to complete rebuild job: %w", err)
	}
	logger.Info("index rebuild complete", "indexed", indexed)
	return indexed, nil
}

func (r *Rebuilder) rebuild(ctx context.Context, logger *slog.Logger) (int, error) {
	total, err := r.store.CountEmails(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count emails: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No emails found in record store (0 records)\n")
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Starting index rebuild of %d emails (batch size: %d, workers: %d)\n",
		total, r.config.BatchSize, r.config.Workers)

	pool, err := ants.NewPool(r.config.Workers)
	if err != nil {
		return 0, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tracker := NewProgress(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		batchErr error
		indexed  int
	)
	setErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if batchErr == nil {
			batchErr = err
			cancel()
		}
	}
	firstErr := func() error {
		mu.Lock()
		defer mu.Unlock()
		return batchErr
	}

	iterator := NewEmailIterator(r.store, r.config.BatchSize)
	iterErr := iterator.ForEach(runCtx, func(emails []*core.Email) error {
		if err := firstErr(); err != nil {
			return err
		}
		docs := make([]storage.Document, len(emails))
		for i, email := range emails {
			docs[i] = storage.DocumentFor(email)
		}

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			err := RetryWithBackoff(runCtx, func(ctx context.Context) error {
				return r.index.AddBatch(ctx, docs)
			}, r.config.MaxRetries, r.config.RetryDelay)
			if err != nil {
				setErr(fmt.Errorf("failed to index batch starting at %s: %w", docs[0].ID, err))
				return
			}
			mu.Lock()
			indexed += len(docs)
			mu.Unlock()
			tracker.Add(len(docs))
			logger.Debug("indexed batch", "size", len(docs))
		})
		if submitErr != nil {
			wg.Done()
			return fmt.Errorf("failed to submit batch: %w", submitErr)
		}
		return nil
	})
	wg.Wait()

	if err := firstErr(); err != nil {
		return indexed, err
	}
	if iterErr != nil {
		return indexed, fmt.Errorf("failed to read emails: %w", iterErr)
	}

	tracker.Finish()
	elapsed := tracker.Elapsed()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(indexed) / elapsed.Seconds()
	}
	fmt.Fprintf(r.progress, "Index rebuild complete. Indexed %d emails in %v (%.1f emails/sec)\n",
		indexed, elapsed.Round(time.Second), rate)
	return indexed, nil
}
