package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/poiesic/mailrecall/etl"
	"github.com/urfave/cli/v2"
)

// seedAccount is the account reference recorded for seeded runs.
const seedAccount = "seed"

var sampleMessages = []string{
	`{"id":"seed-001","thread_id":"t-100","subject":"Invoice #4821 for March","body":"Hi, please find attached the invoice for March services. Payment is due within 30 days.","from":[{"name":"Acme Billing","email":"billing@acme.com"}],"to":[{"name":"Alice","email":"alice@voiceagent.local"}],"date":1709280000}`,
	`{"id":"seed-002","thread_id":"t-101","subject":"Lunch on Friday?","body":"Are you free for lunch on Friday? There is a new ramen place near the office.","from":[{"name":"Bob Chen","email":"bob@example.com"}],"to":[{"name":"Alice","email":"alice@voiceagent.local"}],"date":1709366400}`,
	`{"id":"seed-003","thread_id":"t-102","subject":"Your flight itinerary","body":"<html><body><p>Your flight <b>UA 882</b> departs SFO at 10:45.</p><p>Check in opens 24 hours before departure.</p></body></html>","from":[{"name":"United Airlines","email":"noreply@united.com"}],"to":[{"email":"alice@voiceagent.local"}],"date":1709452800}`,
	`{"id":"seed-004","thread_id":"t-100","subject":"Re: Invoice #4821 for March","body":"Thanks, the payment has been scheduled for next week.","from":[{"name":"Alice","email":"alice@voiceagent.local"}],"to":[{"name":"Acme Billing","email":"billing@acme.com"}],"date":1709539200}`,
	`{"id":"seed-005","thread_id":"t-103","subject":"Quarterly planning notes","body":"Attached are the notes from today's planning session. Key themes: hiring, the search relaunch and the Q3 budget.","from":[{"name":"Dana Ruiz","email":"dana@example.com"}],"to":[{"name":"Team","email":"team@example.com"}],"date":1709625600}`,
	`{"id":"seed-006","subject":"Password reset requested","body":"Someone requested a password reset for your account. If this was not you, ignore this email.","from":[{"email":"security@service.io"}],"to":[{"email":"alice@voiceagent.local"}]}`,
}

// staticFetcher serves a fixed set of raw records.
type staticFetcher struct {
	records []json.RawMessage
}

func (f *staticFetcher) Fetch(ctx context.Context, accountRef string, maxCount, pageSize int) ([]json.RawMessage, error) {
	if maxCount <= 0 || maxCount > len(f.records) {
		maxCount = len(f.records)
	}
	return f.records[:maxCount], nil
}

// loadSeedRecords reads a JSON array of provider messages from path, or
// returns the built-in samples when path is empty.
func loadSeedRecords(path string) ([]json.RawMessage, error) {
	if path == "" {
		records := make([]json.RawMessage, len(sampleMessages))
		for i, msg := range sampleMessages {
			records[i] = json.RawMessage(msg)
		}
		return records, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("seed file must hold a JSON array of messages: %w", err)
	}
	return records, nil
}

func seedCommand(c *cli.Context) error {
	records, err := loadSeedRecords(c.String("file"))
	if err != nil {
		return err
	}

	_, a, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer a.Close()

	pipeline, err := a.NewPipeline(&staticFetcher{records: records},
		etl.WithFetchLimits(len(records), len(records)))
	if err != nil {
		return err
	}

	result, err := pipeline.Run(c.Context, seedAccount)
	if err != nil {
		return err
	}
	printResult(c.App.Writer, seedAccount, result)
	printCounts(c.Context, c.App.Writer, a)
	return nil
}
