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


// Package fetch retrieves raw message records from the mail provider API.
//
// Records are returned undecoded so one malformed message cannot fail a page;
// decoding and validation belong to the transformer.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the provider API root.
	DefaultBaseURL = "https://api.us.nylas.com/v3"

	// DefaultPageSize is the number of messages requested per page.
	DefaultPageSize = 5

	// DefaultMaxMessages caps a single fetch.
	DefaultMaxMessages = 10

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 512
)

// ErrMissingAPIKey is returned by NewClient without an API key.
var ErrMissingAPIKey = errors.New("provider API key is required")

// ErrMissingAccount is returned by Fetch without an account reference.
var ErrMissingAccount = errors.New("account reference is required")

// Error represents a failed provider request.
type Error struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the client.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// DefaultOptions returns sensible defaults for fetching. APIKey must still be set.
func DefaultOptions() *Options {
	return &Options{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// Client pages through a grant's messages.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// page is the provider's list envelope.
type page struct {
	Data       []json.RawMessage `json:"data"`
	NextCursor *string           `json:"next_cursor"`
}

// NewClient builds a client from opts. A nil opts uses DefaultOptions.
func NewClient(opts *Options) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "fetcher")
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  opts.APIKey,
		http:    httpClient,
		logger:  logger,
	}, nil
}

// Fetch returns up to maxCount raw message records for accountRef in
// provider order. Paging stops when the provider returns no cursor, an
// empty page, or the cap is reached. Non-positive arguments use the defaults.
// There is no retry: any failed page fails the whole fetch.
func (c *Client) Fetch(ctx context.Context, accountRef string, maxCount, pageSize int) ([]json.RawMessage, error) {
	if accountRef == "" {
		return nil, ErrMissingAccount
	}
	if maxCount <= 0 {
		maxCount = DefaultMaxMessages
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	endpoint := fmt.Sprintf("%s/grants/%s/messages", c.baseURL, url.PathEscape(accountRef))
	records := make([]json.RawMessage, 0, maxCount)
	cursor := ""

	for len(records) < maxCount {
		limit := min(pageSize, maxCount-len(records))
		c.logger.Debug("fetching messages page", "account", accountRef, "limit", limit, "have", len(records))

		p, err := c.fetchPage(ctx, endpoint, limit, cursor)
		if err != nil {
			return nil, err
		}
		records = append(records, p.Data...)
		c.logger.Info("retrieved messages", "page", len(p.Data), "total", len(records))

		if p.NextCursor == nil || *p.NextCursor == "" {
			c.logger.Debug("no more pages available")
			break
		}
		if len(p.Data) == 0 {
			c.logger.Warn("provider returned an empty page with a cursor, stopping")
			break
		}
		cursor = *p.NextCursor
	}

	if len(records) > maxCount {
		records = records[:maxCount]
	}
	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, endpoint string, limit int, cursor string) (*page, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		query.Set("page_token", cursor)
	}
	pageURL := endpoint + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &Error{URL: endpoint, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{URL: endpoint, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace("unexpected status " + string(body)),
		}
	}

	var p page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, &Error{URL: endpoint, StatusCode: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}
	return &p, nil
}
