package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/mailrecall/config"
	"github.com/poiesic/mailrecall/core"
	"github.com/poiesic/mailrecall/etl"
	"github.com/poiesic/mailrecall/reindex"
	"github.com/poiesic/mailrecall/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %s not found", name)
	return nil
}

func intFlag(t *testing.T, cmd *cli.Command, name string) *cli.IntFlag {
	t.Helper()
	for _, flag := range cmd.Flags {
		if f, ok := flag.(*cli.IntFlag); ok && f.Name == name {
			return f
		}
	}
	t.Fatalf("flag %s not found on %s", name, cmd.Name)
	return nil
}

// isolate runs the CLI with no config file and no provider credentials.
func isolate(t *testing.T) {
	t.Helper()
	for _, key := range []string{"NYLAS_API_KEY", "NYLAS_GRANT_ID", "DATABASE_URL"} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

func TestCommands(t *testing.T) {
	app := newApp()
	names := make([]string, 0, len(app.Commands))
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"etl", "reindex", "search", "recent", "jobs", "send", "seed", "serve"}, names)
}

func TestReindexCommandFlags(t *testing.T) {
	cmd := findCommand(t, newApp(), "reindex")

	assert.Equal(t, reindex.DefaultBatchSize, intFlag(t, cmd, "batch-size").Value)
	assert.Equal(t, 100, intFlag(t, cmd, "report-interval").Value)
	assert.Equal(t, 3, intFlag(t, cmd, "max-retries").Value)
	assert.Equal(t, 1, intFlag(t, cmd, "workers").Value)
}

func TestSearchCommandFlags(t *testing.T) {
	cmd := findCommand(t, newApp(), "search")
	assert.Equal(t, 5, intFlag(t, cmd, "limit").Value)
}

func TestSetupLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "WARN", "error"} {
		t.Run(level, func(t *testing.T) {
			app := newApp()
			app.Action = func(*cli.Context) error { return nil }
			assert.NoError(t, app.Run([]string{"mailrecall", "--log-level", level}))
		})
	}

	t.Run("invalid", func(t *testing.T) {
		app := newApp()
		err := app.Run([]string{"mailrecall", "-l", "verbose", "jobs"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestCommandValidation(t *testing.T) {
	t.Run("send requires recipient", func(t *testing.T) {
		err := newApp().Run([]string{"mailrecall", "send", "--subject", "s", "--message", "m"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "to")
	})

	t.Run("search requires a query", func(t *testing.T) {
		err := newApp().Run([]string{"mailrecall", "search"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "a query or --sender is required")
	})

	t.Run("reindex rejects zero workers", func(t *testing.T) {
		err := newApp().Run([]string{"mailrecall", "reindex", "--workers", "0"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "workers")
	})

	t.Run("etl requires provider credentials", func(t *testing.T) {
		isolate(t)
		err := newApp().Run([]string{"mailrecall", "etl"})
		assert.True(t, errors.Is(err, config.ErrProviderNotConfigured), "got %v", err)
	})
}

func TestValidateReindexConfig(t *testing.T) {
	require.NoError(t, validateReindexConfig(reindex.DefaultConfig()))

	cfg := reindex.DefaultConfig()
	cfg.BatchSize = 0
	assert.ErrorContains(t, validateReindexConfig(cfg), "batch-size")

	cfg = reindex.DefaultConfig()
	cfg.MaxRetries = 0
	assert.ErrorContains(t, validateReindexConfig(cfg), "max-retries")

	cfg = reindex.DefaultConfig()
	cfg.RetryDelay = -time.Second
	assert.ErrorContains(t, validateReindexConfig(cfg), "retry-delay")
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, "grant-1", &etl.Result{
		JobID:           7,
		Fetched:         3,
		EmailsProcessed: 2,
		Stored:          2,
		Indexed:         0,
		IndexErr:        errors.New("embedding service down"),
	})

	out := buf.String()
	assert.Contains(t, out, "ETL job 7 for grant-1 completed")
	assert.Contains(t, out, "fetched:   3")
	assert.Contains(t, out, "processed: 2")
	assert.Contains(t, out, "warning: search index not updated: embedding service down")
}

func TestPrintJobs(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printJobs(&buf, nil))
		assert.Equal(t, "No jobs recorded.\n", buf.String())
	})

	t.Run("table", func(t *testing.T) {
		started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		completed := started.Add(1500 * time.Millisecond)
		jobs := []*core.Job{
			{ID: 2, JobType: core.JobTypeEmailExtraction, Status: core.JobStatusFailed, StartedAt: started, CompletedAt: &completed, ErrorMessage: core.StringPtr("provider timeout")},
			{ID: 1, JobType: core.JobTypeIndexRebuild, Status: core.JobStatusRunning, StartedAt: started},
		}

		var buf bytes.Buffer
		require.NoError(t, printJobs(&buf, jobs))
		out := buf.String()
		assert.Contains(t, out, "ID")
		assert.Contains(t, out, "email_extraction")
		assert.Contains(t, out, "1.5s")
		assert.Contains(t, out, "provider timeout")
		assert.Contains(t, out, "2025-03-01T12:00:00Z")
		assert.Contains(t, out, "index_rebuild")
	})
}

func TestExplainMonitor(t *testing.T) {
	var buf bytes.Buffer
	m := newExplainMonitor(&buf)

	m.Start("invoice", map[string]string{"from_email": "billing@acme.com"})
	m.AfterIndexQuery([]*core.IndexHit{{ID: "m1", Distance: 0.1234}})
	m.Skipped("m2", nil)
	m.Skipped("m3", errors.New("db down"))
	m.Finish([]search.Summary{{Subject: "Invoice"}})

	out := buf.String()
	assert.Contains(t, out, `query: "invoice" filter: map[from_email:billing@acme.com]`)
	assert.Contains(t, out, "index returned 1 hit(s)")
	assert.Contains(t, out, "1. m1 distance=0.1234")
	assert.Contains(t, out, "skipped m2: not in record store")
	assert.Contains(t, out, "skipped m3: db down")
	assert.Contains(t, out, "returning 1 result(s)")
}
