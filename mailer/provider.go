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


package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrProviderNotConfigured is returned when the provider transport lacks
// credentials.
var ErrProviderNotConfigured = errors.New("provider transport requires an API key and grant")

// ProviderConfig configures a ProviderTransport.
type ProviderConfig struct {
	BaseURL    string
	APIKey     string
	GrantID    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Configured reports whether the config carries credentials.
func (c ProviderConfig) Configured() bool {
	return c.APIKey != "" && c.GrantID != ""
}

// ProviderTransport sends through the mail provider's send endpoint.
type ProviderTransport struct {
	endpoint string
	apiKey   string
	grantID  string
	http     *http.Client
	logger   *slog.Logger
}

var _ Transport = (*ProviderTransport)(nil)

type sendRecipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendPayload struct {
	To      []sendRecipient `json:"to"`
	Subject string          `json:"subject"`
	Body    string          `json:"body"`
}

type sendResponse struct {
	RequestID string `json:"request_id"`
	Data      struct {
		ID       string `json:"id"`
		ThreadID string `json:"thread_id"`
	} `json:"data"`
}

// NewProviderTransport creates a provider transport.
func NewProviderTransport(cfg ProviderConfig, logger *slog.Logger) (*ProviderTransport, error) {
	if !cfg.Configured() {
		return nil, ErrProviderNotConfigured
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.us.nylas.com/v3"
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ProviderTransport{
		endpoint: fmt.Sprintf("%s/grants/%s/messages/send", strings.TrimSuffix(baseURL, "/"), url.PathEscape(cfg.GrantID)),
		apiKey:   cfg.APIKey,
		grantID:  cfg.GrantID,
		http:     client,
		logger:   logger,
	}, nil
}

// Name implements Transport.
func (t *ProviderTransport) Name() string { return "provider" }

// Send implements Transport. The sender is always the grant's own address,
// so Request.FromEmail is ignored.
func (t *ProviderTransport) Send(ctx context.Context, req *Request) (*Result, error) {
	if req.ToEmail == "" {
		return failure(t.Name(), "", ErrMissingRecipient), ErrMissingRecipient
	}

	body, err := json.Marshal(sendPayload{
		To:      []sendRecipient{{Email: req.ToEmail, Name: req.RecipientName}},
		Subject: req.Subject,
		Body:    req.HTMLBody,
	})
	if err != nil {
		return failure(t.Name(), "", err), err
	}

	resp, err := t.post(ctx, body)
	if err != nil {
		t.logger.Error("failed to send email through provider", "to", req.ToEmail, "err", err)
		return failure(t.Name(), "", err), err
	}

	t.logger.Info("email sent", "transport", t.Name(), "to", req.ToEmail, "subject", req.Subject)
	metadata := map[string]string{
		"transport": t.Name(),
		"grant_id":  t.grantID,
	}
	if resp.RequestID != "" {
		metadata["request_id"] = resp.RequestID
	}
	if resp.Data.ThreadID != "" {
		metadata["thread_id"] = resp.Data.ThreadID
	}
	return &Result{
		Success:           true,
		ExternalMessageID: resp.Data.ID,
		Metadata:          metadata,
	}, nil
}

func (t *ProviderTransport) post(ctx context.Context, body []byte) (*sendResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := t.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("send failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode send response: %w", err)
	}
	return &out, nil
}
