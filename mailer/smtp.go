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
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"github.com/poiesic/mailrecall/htmltext"
)

const (
	// DefaultSMTPHost is the Mailpit SMTP host.
	DefaultSMTPHost = "127.0.0.1"

	// DefaultSMTPPort is the Mailpit SMTP port.
	DefaultSMTPPort = 1025

	// DefaultFromEmail is the sender used when a request has none.
	DefaultFromEmail = "alice@voiceagent.local"
)

// SMTPConfig configures an SMTPTransport.
type SMTPConfig struct {
	Host      string
	Port      int
	FromEmail string
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPTransport delivers over plain SMTP without authentication or TLS,
// as Mailpit expects.
type SMTPTransport struct {
	host   string
	port   int
	from   string
	send   sendFunc
	now    func() time.Time
	logger *slog.Logger
}

var _ Transport = (*SMTPTransport)(nil)

// NewSMTPTransport creates an SMTP transport. Zero config fields use the
// Mailpit defaults.
func NewSMTPTransport(cfg SMTPConfig, logger *slog.Logger) *SMTPTransport {
	if cfg.Host == "" {
		cfg.Host = DefaultSMTPHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}
	if cfg.FromEmail == "" {
		cfg.FromEmail = DefaultFromEmail
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPTransport{
		host:   cfg.Host,
		port:   cfg.Port,
		from:   cfg.FromEmail,
		send:   smtp.SendMail,
		now:    time.Now,
		logger: logger,
	}
}

// Name implements Transport.
func (t *SMTPTransport) Name() string { return "mailpit" }

// Addr returns host:port.
func (t *SMTPTransport) Addr() string {
	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

// Send implements Transport.
func (t *SMTPTransport) Send(ctx context.Context, req *Request) (*Result, error) {
	sender := req.FromEmail
	if sender == "" {
		sender = t.from
	}
	if req.ToEmail == "" {
		return failure(t.Name(), sender, ErrMissingRecipient), ErrMissingRecipient
	}
	if err := ctx.Err(); err != nil {
		return failure(t.Name(), sender, err), err
	}

	messageID := newMessageID(t.now())
	var buf bytes.Buffer
	if err := writeMessage(&buf, req, sender, messageID, t.now()); err != nil {
		err = fmt.Errorf("failed to compose message: %w", err)
		return failure(t.Name(), sender, err), err
	}

	if err := t.send(t.Addr(), nil, sender, []string{req.ToEmail}, buf.Bytes()); err != nil {
		t.logger.Error("failed to send email over smtp", "to", req.ToEmail, "addr", t.Addr(), "err", err)
		err = fmt.Errorf("failed to send email to %s: %w", req.ToEmail, err)
		return failure(t.Name(), sender, err), err
	}

	t.logger.Info("email sent", "transport", t.Name(), "to", req.ToEmail, "subject", req.Subject)
	return &Result{
		Success:           true,
		ExternalMessageID: "<" + messageID + ">",
		SenderEmail:       sender,
		Metadata: map[string]string{
			"transport": t.Name(),
			"smtp_host": t.host,
			"smtp_port": strconv.Itoa(t.port),
		},
	}, nil
}

// newMessageID returns a message identifier without angle brackets.
func newMessageID(now time.Time) string {
	return uuid.NewString() + "@" + strconv.FormatInt(now.Unix(), 10)
}

// writeMessage writes a multipart/alternative message with a plain text part
// derived from the HTML body followed by the HTML part.
func writeMessage(w io.Writer, req *Request, sender, messageID string, now time.Time) error {
	var h mail.Header
	h.SetDate(now)
	h.SetSubject(req.Subject)
	h.SetMessageID(messageID)
	h.SetAddressList("From", []*mail.Address{{Address: sender}})
	h.SetAddressList("To", []*mail.Address{{Name: req.RecipientName, Address: req.ToEmail}})

	mw, err := mail.CreateInlineWriter(w, h)
	if err != nil {
		return err
	}

	if err := writePart(mw, "text/plain", htmltext.ToText(req.HTMLBody)); err != nil {
		return err
	}
	if err := writePart(mw, "text/html", req.HTMLBody); err != nil {
		return err
	}
	return mw.Close()
}

func writePart(mw *mail.InlineWriter, contentType, body string) error {
	var h mail.InlineHeader
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})

	pw, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(pw, body); err != nil {
		pw.Close()
		return err
	}
	return pw.Close()
}
