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


package badger

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/mailrecall/ai"
	"github.com/poiesic/mailrecall/core"
	"github.com/poiesic/mailrecall/storage"
)

const (
	// CollectionName is the single collection holding email documents.
	CollectionName = "emails"

	// CollectionDescription is stored with the collection on first Init.
	CollectionDescription = "Email content embeddings for semantic search"

	// DefaultQueryLimit is used when Query is called with a non-positive limit.
	DefaultQueryLimit = 5
)

// entry is the persisted form of an indexed document.
type entry struct {
	ID       string            `json:"id"`
	Document string            `json:"document"`
	Metadata map[string]string `json:"metadata"`
	Vector   []float32         `json:"vector"`
}

// Index implements storage.SearchIndex with brute-force cosine search over
// documents stored in BadgerDB.
type Index struct {
	mu         sync.RWMutex
	path       string
	inMemory   bool
	embedder   ai.Embedder
	backend    *Backend
	collection storage.Collection
	logger     *slog.Logger
}

var _ storage.SearchIndex = (*Index)(nil)

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithIndexLogger sets a custom logger.
func WithIndexLogger(logger *slog.Logger) IndexOption {
	return func(ix *Index) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

// NewIndex returns an index persisted under dirPath. Nothing is opened
// until Init.
func NewIndex(dirPath string, embedder ai.Embedder, opts ...IndexOption) *Index {
	ix := &Index{
		path:     dirPath,
		embedder: embedder,
		logger:   slog.Default().With("component", "search-index"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Init opens the backend and creates the collection descriptor if absent.
func (ix *Index) Init(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.backend != nil {
		return nil
	}
	if ix.embedder == nil {
		return errors.New("search index: embedder is required")
	}

	backend, err := OpenBackend(ix.path, ix.inMemory)
	if err != nil {
		return fmt.Errorf("failed to open search index: %w", err)
	}

	collection, err := ensureCollection(backend)
	if err != nil {
		backend.Close()
		return err
	}

	ix.backend = backend
	ix.collection = collection
	ix.logger.Info("search index ready", "collection", collection.Name, "path", ix.path, "in_memory", ix.inMemory)
	return nil
}

func ensureCollection(backend *Backend) (storage.Collection, error) {
	var collection storage.Collection
	err := backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(collectionKey))
		if err == nil {
			return item.Value(func(val []byte) error {
				return json.Unmarshal(val, &collection)
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		collection = storage.Collection{Name: CollectionName, Description: CollectionDescription}
		data, err := json.Marshal(collection)
		if err != nil {
			return err
		}
		if err := tx.Set([]byte(collectionKey), data); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return storage.Collection{}, fmt.Errorf("failed to load collection: %w", err)
	}
	return collection, nil
}

// Collection returns the collection descriptor. Zero before Init.
func (ix *Index) Collection() storage.Collection {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.collection
}

// Close closes the backend. Safe to call repeatedly or before Init.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.backend == nil {
		return nil
	}
	err := ix.backend.Close()
	ix.backend = nil
	if err != nil {
		ix.logger.Error("error closing search index", "err", err)
	}
	return err
}

func (ix *Index) acquire() (*Backend, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.backend == nil || ix.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	return ix.backend, nil
}

// Add embeds and upserts a single document.
func (ix *Index) Add(ctx context.Context, doc storage.Document) error {
	return ix.AddBatch(ctx, []storage.Document{doc})
}

// AddBatch embeds all documents in one call and upserts them in one transaction.
func (ix *Index) AddBatch(ctx context.Context, docs []storage.Document) error {
	backend, err := ix.acquire()
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}
	vectors, err := ix.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(docs), len(vectors))
	}

	err = backend.WithTx(func(tx *badger.Txn) error {
		for i, doc := range docs {
			data, err := json.Marshal(entry{
				ID:       doc.ID,
				Document: doc.Text,
				Metadata: doc.Metadata,
				Vector:   vectors[i],
			})
			if err != nil {
				return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
			}
			if err := tx.Set(makeDocumentKey(doc.ID), data); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}

	ix.logger.Debug("indexed documents", "count", len(docs))
	return nil
}

// Query embeds text and returns the nearest documents that match filter.
func (ix *Index) Query(ctx context.Context, text string, limit int, filter map[string]string) ([]*core.IndexHit, error) {
	backend, err := ix.acquire()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	query, err := ix.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var hits []*core.IndexHit
	err = backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var e entry
			if err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
			}

			if !matches(e.Metadata, filter) {
				continue
			}

			hits = append(hits, &core.IndexHit{
				ID:       e.ID,
				Distance: cosineDistance(query, e.Vector),
				Document: e.Document,
				Metadata: e.Metadata,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Nearest first, id breaks ties so results are stable.
	slices.SortFunc(hits, func(a, b *core.IndexHit) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func matches(metadata, filter map[string]string) bool {
	for key, want := range filter {
		if got, ok := metadata[key]; !ok || got != want {
			return false
		}
	}
	return true
}

// Exists reports whether id is indexed.
func (ix *Index) Exists(ctx context.Context, id string) (bool, error) {
	backend, err := ix.acquire()
	if err != nil {
		return false, err
	}
	found := false
	err = backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeDocumentKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	}, false)
	return found, err
}

// Count returns the number of indexed documents.
func (ix *Index) Count(ctx context.Context) (int, error) {
	backend, err := ix.acquire()
	if err != nil {
		return 0, err
	}
	count := 0
	err = backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Delete removes id from the index.
func (ix *Index) Delete(ctx context.Context, id string) error {
	backend, err := ix.acquire()
	if err != nil {
		return err
	}
	return backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeDocumentKey(id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
