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

	"github.com/poiesic/mailrecall/core"
	"github.com/poiesic/mailrecall/storage"
)

// DefaultBatchSize is the number of emails read from the store per page.
const DefaultBatchSize = 100

// EmailIterator pages through every stored email in id order.
type EmailIterator struct {
	emails    storage.EmailRepository
	batchSize int
}

// NewEmailIterator creates an iterator. A non-positive batchSize uses
// DefaultBatchSize.
func NewEmailIterator(emails storage.EmailRepository, batchSize int) *EmailIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &EmailIterator{emails: emails, batchSize: batchSize}
}

// ForEach calls fn with each page of emails until the store is exhausted,
// fn returns an error, or ctx is cancelled. Context is checked between pages.
func (it *EmailIterator) ForEach(ctx context.Context, fn func([]*core.Email) error) error {
	for offset := 0; ; offset += it.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := it.emails.ListEmails(ctx, offset, it.batchSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < it.batchSize {
			return nil
		}
	}
}
