package core

import (
	"strconv"
	"strings"
	"time"
)

// EmptyDocumentText is indexed for emails with neither subject nor body.
const EmptyDocumentText = "Empty email"

// Metadata keys stored alongside every indexed document.
const (
	MetaEmailID     = "email_id"
	MetaThreadID    = "thread_id"
	MetaFromEmail   = "from_email"
	MetaFromName    = "from_name"
	MetaToEmail     = "to_email"
	MetaToName      = "to_name"
	MetaSubject     = "subject"
	MetaDate        = "date"
	MetaProcessedAt = "processed_at"
)

// DocumentText builds the searchable text for an email.
func DocumentText(email *Email) string {
	parts := make([]string, 0, 2)
	if subject := strings.TrimSpace(email.Subject); subject != "" {
		parts = append(parts, "Subject: "+subject)
	}
	if body := strings.TrimSpace(email.Body); body != "" {
		parts = append(parts, "Body: "+body)
	}
	if len(parts) == 0 {
		return EmptyDocumentText
	}
	return strings.Join(parts, "\n\n")
}

// DocumentMetadata builds the flat metadata map for an email. Missing string
// fields become "", date and processed_at are only present when set.
func DocumentMetadata(email *Email) map[string]string {
	meta := map[string]string{
		MetaEmailID:   email.ID,
		MetaThreadID:  "",
		MetaFromEmail: email.FromEmail,
		MetaFromName:  email.FromName,
		MetaToEmail:   email.ToEmail,
		MetaToName:    email.ToName,
		MetaSubject:   email.Subject,
	}
	if email.ThreadID != nil {
		meta[MetaThreadID] = *email.ThreadID
	}
	if email.Date != nil {
		meta[MetaDate] = strconv.FormatInt(*email.Date, 10)
	}
	if email.ProcessedAt != nil {
		meta[MetaProcessedAt] = email.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return meta
}
