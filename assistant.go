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


package mailrecall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/poiesic/mailrecall/ai"
	"github.com/poiesic/mailrecall/ai/openai"
	"github.com/poiesic/mailrecall/config"
	"github.com/poiesic/mailrecall/etl"
	"github.com/poiesic/mailrecall/fetch"
	"github.com/poiesic/mailrecall/mailer"
	"github.com/poiesic/mailrecall/reindex"
	"github.com/poiesic/mailrecall/search"
	"github.com/poiesic/mailrecall/storage"
	"github.com/poiesic/mailrecall/storage/badger"
	"github.com/poiesic/mailrecall/storage/postgres"
	"github.com/poiesic/mailrecall/tools"
)

// Assistant owns the record store, the search index and the embedding
// provider, and builds the components that use them.
type Assistant struct {
	cfg      *config.Config
	store    storage.RecordStore
	index    storage.SearchIndex
	provider ai.AIProvider
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Option configures an Assistant.
type Option func(*options)

type options struct {
	store    storage.RecordStore
	index    storage.SearchIndex
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithRecordStore uses store instead of connecting to PostgreSQL.
func WithRecordStore(store storage.RecordStore) Option {
	return func(o *options) { o.store = store }
}

// WithSearchIndex uses index instead of opening the badger index.
func WithSearchIndex(index storage.SearchIndex) Option {
	return func(o *options) { o.index = index }
}

// WithAIProvider uses provider instead of the OpenAI-compatible one.
func WithAIProvider(provider ai.AIProvider) Option {
	return func(o *options) { o.provider = provider }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Open connects everything cfg describes. A nil cfg uses config.Default.
// The returned Assistant owns injected components too and closes them.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Assistant, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	a := &Assistant{cfg: cfg, logger: o.logger}

	a.provider = o.provider
	if a.provider == nil {
		provider, err := openai.NewProvider(ai.NewConfig(
			ai.WithEmbeddingHost(cfg.Embedding.Host),
			ai.WithEmbeddingModel(cfg.Embedding.Model),
			ai.WithAPIKey(cfg.Embedding.APIKey),
		))
		if err != nil {
			return nil, fmt.Errorf("failed to create AI provider: %w", err)
		}
		a.provider = provider
	}

	a.store = o.store
	if a.store == nil {
		store, err := postgres.Connect(ctx, cfg.Database.URL, postgres.WithLogger(a.logger))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
	}

	a.index = o.index
	if a.index == nil {
		a.index = badger.NewIndex(cfg.Index.Path, a.provider.Embedder(), badger.WithIndexLogger(a.logger))
	}
	if err := a.index.Init(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open search index: %w", err)
	}

	return a, nil
}

// Config returns the configuration the assistant was opened with.
func (a *Assistant) Config() *config.Config {
	return a.cfg
}

func (a *Assistant) RecordStore() storage.RecordStore {
	return a.store
}

func (a *Assistant) SearchIndex() storage.SearchIndex {
	return a.index
}

// NewFetcher creates a provider API client from the configuration.
func (a *Assistant) NewFetcher() (*fetch.Client, error) {
	return fetch.NewClient(&fetch.Options{
		BaseURL: a.cfg.Provider.BaseURL,
		APIKey:  a.cfg.Provider.APIKey,
		Timeout: a.cfg.Provider.Timeout,
		Logger:  a.logger.With("component", "fetcher"),
	})
}

// NewPipeline creates an ETL pipeline over the assistant's stores. The
// configured fetch limits apply unless opts override them.
func (a *Assistant) NewPipeline(fetcher etl.Fetcher, opts ...etl.Option) (*etl.Pipeline, error) {
	base := []etl.Option{
		etl.WithLogger(a.logger),
		etl.WithFetchLimits(a.cfg.Provider.MaxEmails, a.cfg.Provider.PageSize),
	}
	return etl.NewPipeline(fetcher, a.store, a.index, append(base, opts...)...)
}

func (a *Assistant) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(a.index, a.store, append([]search.Option{search.WithLogger(a.logger)}, opts...)...)
}

// NewRebuilder creates an index rebuilder. A nil cfg uses reindex.DefaultConfig.
func (a *Assistant) NewRebuilder(cfg *reindex.Config, progress io.Writer) (*reindex.Rebuilder, error) {
	return reindex.NewRebuilder(a.store, a.index, cfg, progress)
}

// NewMailer creates the email service with the transport the configured
// mode selects.
func (a *Assistant) NewMailer() (*mailer.Service, error) {
	smtp := mailer.NewSMTPTransport(mailer.SMTPConfig{
		Host:      a.cfg.Email.SMTPHost,
		Port:      a.cfg.Email.SMTPPort,
		FromEmail: a.cfg.Email.FromEmail,
	}, a.logger)

	var provider *mailer.ProviderTransport
	if a.cfg.Email.Mode == mailer.ModeProduction {
		p, err := mailer.NewProviderTransport(mailer.ProviderConfig{
			BaseURL: a.cfg.Provider.BaseURL,
			APIKey:  a.cfg.Provider.APIKey,
			GrantID: a.cfg.Provider.GrantID,
			Timeout: a.cfg.Provider.Timeout,
		}, a.logger)
		if err != nil && !errors.Is(err, mailer.ErrProviderNotConfigured) {
			return nil, err
		}
		provider = p
	}

	return mailer.NewService(mailer.SelectTransport(a.cfg.Email.Mode, smtp, provider, a.logger), a.logger)
}

// NewToolRegistry creates the tool registry over a new searcher. Pass
// tools.WithSender to expose send_email.
func (a *Assistant) NewToolRegistry(opts ...tools.Option) (*tools.Registry, error) {
	searcher, err := a.NewSearcher()
	if err != nil {
		return nil, err
	}
	return tools.NewRegistry(searcher, append([]tools.Option{tools.WithLogger(a.logger)}, opts...)...)
}

// Close releases the provider, the index and the store. It is safe to call
// more than once; later calls return the first result.
func (a *Assistant) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if a.provider != nil {
			if err := a.provider.Close(); err != nil {
				a.logger.Error("error closing AI provider", "err", err)
				errs = append(errs, err)
			}
		}
		if a.index != nil {
			if err := a.index.Close(); err != nil {
				a.logger.Error("error closing search index", "err", err)
				errs = append(errs, err)
			}
		}
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				a.logger.Error("error closing record store", "err", err)
				errs = append(errs, err)
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}
