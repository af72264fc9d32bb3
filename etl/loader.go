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
	"fmt"
	"log/slog"

	"github.com/poiesic/mailrecall/core"
	"github.com/poiesic/mailrecall/storage"
)

// Loader writes transformed emails to one store.
// Load returns the number of emails the store did not already hold.
type Loader interface {
	Name() string
	Load(ctx context.Context, emails []*core.Email) (int, error)
}

// RecordLoader loads into the record store with insert-or-ignore semantics,
// so rerunning over the same emails leaves the store unchanged.
type RecordLoader struct {
	emails storage.EmailRepository
}

// NewRecordLoader creates a RecordLoader.
func NewRecordLoader(emails storage.EmailRepository) *RecordLoader {
	return &RecordLoader{emails: emails}
}

// Name implements Loader.
func (l *RecordLoader) Name() string { return "records" }

// Load implements Loader. The batch is atomic.
func (l *RecordLoader) Load(ctx context.Context, emails []*core.Email) (int, error) {
	if len(emails) == 0 {
		return 0, nil
	}
	return l.emails.SaveEmails(ctx, emails)
}

// IndexLoader loads into the search index, adding only the emails whose id
// is not already indexed. Repeated ids within a batch are added once. The existence check and the add are not atomic;
// two concurrent runs may both add the same document, which the index
// treats as an upsert.
type IndexLoader struct {
	index  storage.SearchIndex
	logger *slog.Logger
}

// NewIndexLoader creates an IndexLoader.
func NewIndexLoader(index storage.SearchIndex, logger *slog.Logger) *IndexLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexLoader{index: index, logger: logger}
}

// Name implements Loader.
func (l *IndexLoader) Name() string { return "index" }

// Load implements Loader.
func (l *IndexLoader) Load(ctx context.Context, emails []*core.Email) (int, error) {
	if len(emails) == 0 {
		return 0, nil
	}

	missing := make([]storage.Document, 0, len(emails))
	seen := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		if _, dup := seen[email.ID]; dup {
			continue
		}
		seen[email.ID] = struct{}{}

		exists, err := l.index.Exists(ctx, email.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to check index for %s: %w", email.ID, err)
		}
		if exists {
			continue
		}
		missing = append(missing, storage.DocumentFor(email))
	}

	if len(missing) == 0 {
		l.logger.Debug("all emails already indexed", "count", len(emails))
		return 0, nil
	}

	if err := l.index.AddBatch(ctx, missing); err != nil {
		return 0, fmt.Errorf("failed to add %d documents: %w", len(missing), err)
	}
	l.logger.Debug("indexed emails", "added", len(missing), "skipped", len(emails)-len(missing))
	return len(missing), nil
}
