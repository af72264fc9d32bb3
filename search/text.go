package search

import (
	"math"
	"strconv"
	"strings"

	"github.com/poiesic/mailrecall/core"
	"github.com/poiesic/mailrecall/htmltext"
)

// PreviewLength is the number of characters kept in a body preview.
const PreviewLength = 200

const (
	noSubject   = "No subject"
	unknownName = "Unknown"
	unknownDate = "Unknown date"
	noContent   = "No content"
)

// Summary is the caller-facing view of one email.
type Summary struct {
	Subject     string `json:"subject"`
	FromName    string `json:"from_name"`
	FromEmail   string `json:"from_email"`
	Date        string `json:"date"`
	BodyPreview string `json:"body_preview"`

	// RelevanceScore is the index distance rounded to two places; lower is
	// closer. Only semantic search sets it.
	RelevanceScore *float64 `json:"relevance_score,omitempty"`
}

func summarize(email *core.Email) Summary {
	s := Summary{
		Subject:     email.Subject,
		FromName:    email.FromName,
		FromEmail:   email.FromEmail,
		Date:        unknownDate,
		BodyPreview: preview(email.Body),
	}
	if s.Subject == "" {
		s.Subject = noSubject
	}
	if s.FromName == "" {
		s.FromName = unknownName
	}
	if email.Date != nil && *email.Date != 0 {
		s.Date = strconv.FormatInt(*email.Date, 10)
	}
	return s
}

func preview(body string) string {
	if htmltext.LooksLikeHTML(body) {
		body = htmltext.ToText(body)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return noContent
	}
	return htmltext.Preview(body, PreviewLength)
}

func relevance(distance float64) *float64 {
	score := math.Round(distance*100) / 100
	return &score
}
