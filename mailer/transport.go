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
	"context"
	"errors"
)

var (
	// ErrMissingRecipient is returned when a request has no recipient address.
	ErrMissingRecipient = errors.New("recipient address is required")

	// ErrTransportRequired is returned when a Service has no transport.
	ErrTransportRequired = errors.New("transport required")
)

// Request is one outbound message.
type Request struct {
	ToEmail       string
	Subject       string
	HTMLBody      string
	FromEmail     string // optional, transport default when empty
	RecipientName string // optional
}

// Result reports the outcome of a send. Failed sends still return a Result
// with Success false and the error recorded under Metadata["error"].
type Result struct {
	Success           bool              `json:"success"`
	ExternalMessageID string            `json:"external_message_id,omitempty"`
	SenderEmail       string            `json:"sender_email,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Transport delivers messages.
type Transport interface {
	// Name identifies the transport in logs and result metadata.
	Name() string

	// Send delivers req. On failure both a Result and the error are returned.
	Send(ctx context.Context, req *Request) (*Result, error)
}

// SendBatch sends requests one at a time in order and returns one Result
// per request. A failed send does not stop the batch.
func SendBatch(ctx context.Context, transport Transport, requests []*Request) []*Result {
	results := make([]*Result, 0, len(requests))
	for _, req := range requests {
		result, err := transport.Send(ctx, req)
		if result == nil {
			result = failure(transport.Name(), "", err)
		}
		results = append(results, result)
	}
	return results
}

func failure(transport, sender string, err error) *Result {
	metadata := map[string]string{"transport": transport}
	if err != nil {
		metadata["error"] = err.Error()
	}
	return &Result{Success: false, SenderEmail: sender, Metadata: metadata}
}
