package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/poiesic/mailrecall/search"
)

func limitProperty(description string) map[string]any {
	return map[string]any{
		"type":        "integer",
		"minimum":     1,
		"description": description,
	}
}

var searchEmailsDefinition = Definition{
	Name:        SearchEmails,
	Description: "Search for emails using natural language. Use this when the user asks about specific topics, keywords, or content in their emails.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Natural language search query (e.g., 'budget meetings', 'project updates', 'from my manager')",
			},
			"limit": limitProperty("Maximum number of results to return (default 5)"),
		},
		"required": []string{"query"},
	},
}

var searchBySenderDefinition = Definition{
	Name:        SearchEmailsBySender,
	Description: "Search for emails from a specific person or email address",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sender": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Name or email address of the sender",
			},
			"query": map[string]any{
				"type":        "string",
				"description": "Optional: specific content to search for from this sender",
			},
			"limit": limitProperty("Maximum number of results to return (default 5)"),
		},
		"required": []string{"sender"},
	},
}

var recentEmailsDefinition = Definition{
	Name:        GetRecentEmails,
	Description: "Get the most recent emails in the inbox",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"limit": limitProperty("Number of recent emails to retrieve (default 5)"),
		},
	},
}

var sendEmailDefinition = Definition{
	Name:        SendEmail,
	Description: "Send an email to a recipient. Use this when the user asks to send an email, draft an email, or compose a message to someone.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to_email": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Email address of the recipient",
			},
			"subject": map[string]any{
				"type":        "string",
				"description": "Subject line of the email",
			},
			"message": map[string]any{
				"type":        "string",
				"description": "Body content of the email (plain text)",
			},
			"recipient_name": map[string]any{
				"type":        "string",
				"description": "Name of the recipient (optional)",
			},
		},
		"required": []string{"to_email", "subject", "message"},
	},
}

type searchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type senderArgs struct {
	Sender string `json:"sender"`
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
}

type sendArgs struct {
	ToEmail       string `json:"to_email"`
	Subject       string `json:"subject"`
	Message       string `json:"message"`
	RecipientName string `json:"recipient_name"`
}

func (r *Registry) searchEmails(ctx context.Context, raw json.RawMessage) (any, error) {
	var args searchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	return FormatForLLM(r.searcher.Search(ctx, args.Query, args.Limit)), nil
}

func (r *Registry) searchBySender(ctx context.Context, raw json.RawMessage) (any, error) {
	var args senderArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	return FormatForLLM(r.searcher.SearchBySender(ctx, args.Sender, args.Query, args.Limit)), nil
}

func (r *Registry) recentEmails(ctx context.Context, raw json.RawMessage) (any, error) {
	var args searchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	return FormatForLLM(r.searcher.Recent(ctx, args.Limit)), nil
}

func (r *Registry) sendEmail(ctx context.Context, raw json.RawMessage) (any, error) {
	var args sendArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}

	result, err := r.sender.SendEmail(ctx, args.ToEmail, args.Subject, args.Message, args.RecipientName)
	if err != nil || result == nil || !result.Success {
		r.logger.Error("send_email failed", "to", args.ToEmail, "err", err)
		return SendOutcome{Success: false, Message: "Failed to send email to " + args.ToEmail}, nil
	}
	return SendOutcome{Success: true, Message: "Email sent successfully to " + args.ToEmail}, nil
}

// FormatForLLM renders summaries as a numbered plain-text list.
func FormatForLLM(summaries []search.Summary) string {
	if len(summaries) == 0 {
		return "No emails found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d email(s):\n\n", len(summaries))
	for i, s := range summaries {
		fmt.Fprintf(&b, "%d. Subject: %s\n", i+1, s.Subject)
		fmt.Fprintf(&b, "   From: %s <%s>\n", s.FromName, s.FromEmail)
		fmt.Fprintf(&b, "   Date: %s\n", s.Date)
		fmt.Fprintf(&b, "   Preview: %s...\n\n", s.BodyPreview)
	}
	return b.String()
}
