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
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/mailrecall/core"
)

var (
	errMissingID     = errors.New("missing id")
	errMissingSender = errors.New("missing sender")
)

// participant is one entry of a provider from/to list.
type participant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// providerMessage is the subset of a provider message record we keep.
type providerMessage struct {
	ID       string        `json:"id"`
	ThreadID *string       `json:"thread_id"`
	Subject  string        `json:"subject"`
	Body     string        `json:"body"`
	From     []participant `json:"from"`
	To       []participant `json:"to"`
	Date     *int64        `json:"date"`
}

// Transformer converts raw provider records into canonical emails.
type Transformer struct {
	now    func() time.Time
	logger *slog.Logger
}

// TransformerOption configures a Transformer.
type TransformerOption func(*Transformer)

// WithTransformClock overrides the clock used to stamp ProcessedAt.
func WithTransformClock(now func() time.Time) TransformerOption {
	return func(t *Transformer) {
		if now != nil {
			t.now = now
		}
	}
}

// WithTransformLogger sets the logger used to report dropped records.
func WithTransformLogger(logger *slog.Logger) TransformerOption {
	return func(t *Transformer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTransformer creates a Transformer.
func NewTransformer(opts ...TransformerOption) *Transformer {
	t := &Transformer{
		now:    time.Now,
		logger: slog.Default().With("component", "transformer"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform decodes each raw record independently. Records that cannot be
// decoded, have no id, have no sender or fail validation are logged and
// dropped; the rest are returned in input order.
func (t *Transformer) Transform(raw []json.RawMessage) []*core.Email {
	processedAt := t.now().UTC()
	emails := make([]*core.Email, 0, len(raw))

	for i, record := range raw {
		email, err := t.transformOne(record, processedAt)
		if err != nil {
			t.logger.Warn("dropping message record", "index", i, "err", err)
			continue
		}
		emails = append(emails, email)
	}

	if dropped := len(raw) - len(emails); dropped > 0 {
		t.logger.Info("transformed messages", "kept", len(emails), "dropped", dropped)
	}
	return emails
}

func (t *Transformer) transformOne(record json.RawMessage, processedAt time.Time) (*core.Email, error) {
	var msg providerMessage
	if err := json.Unmarshal(record, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errMissingID
	}
	if len(msg.From) == 0 {
		return nil, errMissingSender
	}

	email := &core.Email{
		ID:          msg.ID,
		ThreadID:    msg.ThreadID,
		Subject:     msg.Subject,
		Body:        msg.Body,
		FromName:    msg.From[0].Name,
		FromEmail:   msg.From[0].Email,
		Date:        msg.Date,
		ProcessedAt: &processedAt,
	}
	if len(msg.To) > 0 {
		email.ToName = msg.To[0].Name
		email.ToEmail = msg.To[0].Email
	}

	if err := core.ValidateEmail(email); err != nil {
		return nil, err
	}
	return email, nil
}
