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
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// DefaultInterval is the time between scheduled rounds.
const DefaultInterval = 15 * time.Minute

// Runner runs one ETL job for an account. *Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, accountRef string) (*Result, error)
}

// Outcome is the result of one account's run within a round.
type Outcome struct {
	AccountRef string
	Result     *Result
	Err        error
}

// Scheduler runs a Runner for a fixed set of accounts on an interval.
// Each account appears at most once per round; different accounts may run
// concurrently, bounded by the pool size.
type Scheduler struct {
	runner   Runner
	accounts []string
	interval time.Duration
	pool     *ants.Pool
	logger   *slog.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler) error

// WithPoolSize sets how many accounts may run at once.
// Default is 1.
func WithPoolSize(size int) SchedulerOption {
	return func(s *Scheduler) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if s.pool != nil {
			s.pool.Release()
		}
		s.pool = pool
		return nil
	}
}

// WithSchedulerLogger sets a custom logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewScheduler creates a scheduler. Duplicate and empty account references
// are dropped. A non-positive interval uses DefaultInterval.
func NewScheduler(runner Runner, accounts []string, interval time.Duration, opts ...SchedulerOption) (*Scheduler, error) {
	if runner == nil {
		return nil, ErrRunnerRequired
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		runner:   runner,
		accounts: uniqueAccounts(accounts),
		interval: interval,
		pool:     pool,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.Release()
			return nil, err
		}
	}
	return s, nil
}

func uniqueAccounts(accounts []string) []string {
	seen := make(map[string]struct{}, len(accounts))
	out := make([]string, 0, len(accounts))
	for _, account := range accounts {
		if account == "" {
			continue
		}
		if _, ok := seen[account]; ok {
			continue
		}
		seen[account] = struct{}{}
		out = append(out, account)
	}
	return out
}

// Accounts returns the scheduled account references.
func (s *Scheduler) Accounts() []string {
	return append([]string(nil), s.accounts...)
}

// RunOnce runs every account and waits for all of them.
// Outcomes are returned in account order. Failures are logged, not returned.
func (s *Scheduler) RunOnce(ctx context.Context) []Outcome {
	outcomes := make([]Outcome, len(s.accounts))

	var wg sync.WaitGroup
	for i, account := range s.accounts {
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			result, err := s.runner.Run(ctx, account)
			outcomes[i] = Outcome{AccountRef: account, Result: result, Err: err}
			if err != nil {
				s.logger.Error("scheduled etl run failed", "account", account, "err", err)
			}
		})
		if err != nil {
			wg.Done()
			outcomes[i] = Outcome{AccountRef: account, Err: err}
			s.logger.Error("failed to submit etl run", "account", account, "err", err)
		}
	}
	wg.Wait()
	return outcomes
}

// Start runs a round immediately and then once per interval until ctx is
// cancelled. It returns nil on cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "accounts", len(s.accounts), "interval", s.interval)
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Release releases the worker pool.
// The scheduler should not be used after calling Release.
func (s *Scheduler) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}
