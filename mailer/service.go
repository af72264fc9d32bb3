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
	"log/slog"
	"strings"
)

// Service formats the assistant's plain-text messages and sends them.
type Service struct {
	transport Transport
	logger    *slog.Logger
}

// NewService creates a Service sending through transport.
func NewService(transport Transport, logger *slog.Logger) (*Service, error) {
	if transport == nil {
		return nil, ErrTransportRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{transport: transport, logger: logger}, nil
}

// Transport returns the transport in use.
func (s *Service) Transport() Transport {
	return s.transport
}

// SendEmail formats message as HTML and sends it from the transport's
// default sender. recipientName may be empty.
func (s *Service) SendEmail(ctx context.Context, toEmail, subject, message, recipientName string) (*Result, error) {
	result, err := s.transport.Send(ctx, &Request{
		ToEmail:       toEmail,
		Subject:       subject,
		HTMLBody:      FormatHTML(message),
		RecipientName: recipientName,
	})
	if err != nil {
		s.logger.Error("email send failed", "to", toEmail, "transport", s.transport.Name(), "err", err)
		return result, err
	}
	s.logger.Info("email sent", "to", toEmail, "subject", subject)
	return result, nil
}

// FormatHTML renders plain text as an HTML fragment. Blank-line separated
// paragraphs are joined with a double break and lines within a paragraph
// with a single break.
func FormatHTML(message string) string {
	paragraphs := strings.Split(message, "\n\n")
	for i, paragraph := range paragraphs {
		paragraphs[i] = strings.ReplaceAll(paragraph, "\n", "<br>")
	}
	return `<div dir="ltr">` + strings.Join(paragraphs, "<br><br>") + `</div>`
}
