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


package search

import (
	"context"
	"log/slog"

	"github.com/poiesic/mailrecall/core"
	"github.com/poiesic/mailrecall/storage"
)

// DefaultLimit is used when a query asks for no more than zero results.
const DefaultLimit = 5

// senderQuery stands in for a missing content query when searching by sender.
const senderQuery = "email"

// Searcher answers search and listing queries over stored email.
type Searcher struct {
	index   storage.SearchIndex
	emails  storage.EmailRepository
	monitor SearchMonitor
	logger  *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMonitor observes every query made through the Searcher.
func WithMonitor(monitor SearchMonitor) Option {
	return func(s *Searcher) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		s.monitor = monitor
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(index storage.SearchIndex, emails storage.EmailRepository, opts ...Option) (*Searcher, error) {
	if index == nil {
		return nil, ErrSearchIndexRequired
	}
	if emails == nil {
		return nil, ErrEmailRepositoryRequired
	}

	s := &Searcher{
		index:   index,
		emails:  emails,
		monitor: &noopMonitor{},
		logger:  slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search returns up to limit emails semantically closest to query, closest
// first, each carrying a relevance score.
func (s *Searcher) Search(ctx context.Context, query string, limit int) []Summary {
	limit = normalizeLimit(limit)
	s.monitor.Start(query, nil)

	hits, err := s.index.Query(ctx, query, limit, nil)
	if err != nil {
		s.logger.Error("error searching emails", "query", query, "err", err)
		s.monitor.Finish(nil)
		return []Summary{}
	}
	s.monitor.AfterIndexQuery(hits)

	results := s.hydrate(ctx, hits, true)
	s.logger.Info("searched emails", "query", query, "found", len(results))
	s.monitor.Finish(results)
	return results
}

// SearchBySender returns up to limit emails from sender, matched first on
// sender address and, when that finds nothing, on sender display name.
// An empty query matches any content.
func (s *Searcher) SearchBySender(ctx context.Context, sender, query string, limit int) []Summary {
	limit = normalizeLimit(limit)
	if query == "" {
		query = senderQuery
	}

	hits, err := s.querySender(ctx, core.MetaFromEmail, sender, query, limit)
	if err == nil && len(hits) == 0 {
		hits, err = s.querySender(ctx, core.MetaFromName, sender, query, limit)
	}
	if err != nil {
		s.logger.Error("error searching emails by sender", "sender", sender, "err", err)
		s.monitor.Finish(nil)
		return []Summary{}
	}

	results := s.hydrate(ctx, hits, false)
	s.logger.Info("searched emails by sender", "sender", sender, "found", len(results))
	s.monitor.Finish(results)
	return results
}

func (s *Searcher) querySender(ctx context.Context, key, sender, query string, limit int) ([]*core.IndexHit, error) {
	filter := map[string]string{key: sender}
	s.monitor.Start(query, filter)

	hits, err := s.index.Query(ctx, query, limit, filter)
	if err != nil {
		return nil, err
	}
	s.monitor.AfterIndexQuery(hits)
	return hits, nil
}

// Recent returns up to limit emails, newest first.
func (s *Searcher) Recent(ctx context.Context, limit int) []Summary {
	limit = normalizeLimit(limit)

	emails, err := s.emails.GetRecentEmails(ctx, limit)
	if err != nil {
		s.logger.Error("error getting recent emails", "err", err)
		return []Summary{}
	}

	results := make([]Summary, 0, len(emails))
	for _, email := range emails {
		results = append(results, summarize(email))
	}
	s.logger.Info("retrieved recent emails", "count", len(results))
	return results
}

// hydrate loads each hit from the record store in hit order. Missing rows
// and lookup errors drop the hit.
func (s *Searcher) hydrate(ctx context.Context, hits []*core.IndexHit, scored bool) []Summary {
	results := make([]Summary, 0, len(hits))
	for _, hit := range hits {
		email, err := s.emails.GetEmail(ctx, hit.ID)
		if err != nil {
			s.logger.Warn("failed to load indexed email", "id", hit.ID, "err", err)
			s.monitor.Skipped(hit.ID, err)
			continue
		}
		if email == nil {
			s.logger.Debug("indexed email missing from record store", "id", hit.ID)
			s.monitor.Skipped(hit.ID, nil)
			continue
		}

		summary := summarize(email)
		if scored {
			summary.RelevanceScore = relevance(hit.Distance)
		}
		results = append(results, summary)
	}
	return results
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
