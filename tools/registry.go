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


package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/mailrecall/mailer"
	"github.com/poiesic/mailrecall/search"
	"github.com/xeipuuv/gojsonschema"
)

// Tool names.
const (
	SearchEmails         = "search_emails"
	SearchEmailsBySender = "search_emails_by_sender"
	GetRecentEmails      = "get_recent_emails"
	SendEmail            = "send_email"
)

var (
	// ErrUnknownTool is returned by Call for a name that is not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments is returned by Call when arguments fail validation.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrSearcherRequired is returned when a registry has no searcher.
	ErrSearcherRequired = errors.New("searcher required")
)

// EmailSearcher answers search tools. *search.Searcher implements it.
type EmailSearcher interface {
	Search(ctx context.Context, query string, limit int) []search.Summary
	SearchBySender(ctx context.Context, sender, query string, limit int) []search.Summary
	Recent(ctx context.Context, limit int) []search.Summary
}

// EmailSender answers send_email. *mailer.Service implements it.
type EmailSender interface {
	SendEmail(ctx context.Context, toEmail, subject, message, recipientName string) (*mailer.Result, error)
}

// Definition describes a tool to a language model.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// SendOutcome is the result of send_email.
type SendOutcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type handler func(ctx context.Context, args json.RawMessage) (any, error)

type tool struct {
	definition Definition
	schema     *gojsonschema.Schema
	handle     handler
}

// Registry holds the available tools.
type Registry struct {
	searcher EmailSearcher
	sender   EmailSender
	tools    map[string]*tool
	order    []string
	logger   *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry) error

// WithSender enables send_email.
func WithSender(sender EmailSender) Option {
	return func(r *Registry) error {
		r.sender = sender
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRegistry creates a registry with the search tools and, when a sender
// is configured, send_email.
func NewRegistry(searcher EmailSearcher, opts ...Option) (*Registry, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}

	r := &Registry{
		searcher: searcher,
		tools:    make(map[string]*tool),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if err := r.register(searchEmailsDefinition, r.searchEmails); err != nil {
		return nil, err
	}
	if err := r.register(searchBySenderDefinition, r.searchBySender); err != nil {
		return nil, err
	}
	if err := r.register(recentEmailsDefinition, r.recentEmails); err != nil {
		return nil, err
	}
	if r.sender != nil {
		if err := r.register(sendEmailDefinition, r.sendEmail); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(def Definition, handle handler) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.Parameters))
	if err != nil {
		return fmt.Errorf("invalid schema for %s: %w", def.Name, err)
	}
	r.tools[def.Name] = &tool{definition: def, schema: schema, handle: handle}
	r.order = append(r.order, def.Name)
	return nil
}

// Definitions returns the registered tool definitions in registration order.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].definition)
	}
	return defs
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Call validates args against the tool's schema and runs it. Search tools
// return a string; send_email returns a SendOutcome. Empty args are treated
// as an empty object.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if len(strings.TrimSpace(string(args))) == 0 {
		args = json.RawMessage("{}")
	}

	if err := validate(t.schema, args); err != nil {
		r.logger.Warn("rejected tool call", "tool", name, "err", err)
		return nil, err
	}

	r.logger.Info("calling tool", "tool", name)
	return t.handle(ctx, args)
}

func validate(schema *gojsonschema.Schema, args json.RawMessage) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidArguments, strings.Join(problems, "; "))
}
