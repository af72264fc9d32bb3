package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/poiesic/mailrecall"
	"github.com/poiesic/mailrecall/config"
	"github.com/poiesic/mailrecall/core"
	"github.com/poiesic/mailrecall/etl"
	"github.com/poiesic/mailrecall/events"
	"github.com/poiesic/mailrecall/lock"
	"github.com/poiesic/mailrecall/reindex"
	"github.com/poiesic/mailrecall/search"
	"github.com/poiesic/mailrecall/tools"
	"github.com/urfave/cli/v2"
)

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func openAssistant(c *cli.Context) (*config.Config, *mailrecall.Assistant, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	a, err := mailrecall.Open(c.Context, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open assistant: %w", err)
	}
	return cfg, a, nil
}

// pipelineOptions connects the optional run lock and event publisher.
// Either being unreachable only disables it.
func pipelineOptions(ctx context.Context, cfg *config.Config) ([]etl.Option, func()) {
	var (
		opts    []etl.Option
		closers []func() error
	)

	if cfg.Redis.Addr != "" {
		rdb, err := lock.Dial(ctx, cfg.Redis.Addr)
		if err != nil {
			slog.Warn("run lock disabled", "err", err)
		} else {
			opts = append(opts, etl.WithRunLock(lock.NewRedisLocker(rdb, cfg.Redis.LockTTL)))
			closers = append(closers, rdb.Close)
		}
	}

	if cfg.AMQP.URL != "" {
		publisher, err := events.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange, slog.Default())
		if err != nil {
			slog.Warn("job events disabled", "err", err)
		} else {
			opts = append(opts, etl.WithEventPublisher(publisher))
			closers = append(closers, publisher.Close)
		}
	}

	return opts, func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				slog.Warn("error closing pipeline dependency", "err", err)
			}
		}
	}
}

func etlCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.RequireProvider(); err != nil {
		return err
	}

	accounts := cfg.AccountRefs()
	if account := c.String("account"); account != "" {
		accounts = []string{account}
	}

	a, err := mailrecall.Open(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("failed to open assistant: %w", err)
	}
	defer a.Close()

	fetcher, err := a.NewFetcher()
	if err != nil {
		return err
	}

	opts, closeDeps := pipelineOptions(c.Context, cfg)
	defer closeDeps()

	maxEmails, pageSize := cfg.Provider.MaxEmails, cfg.Provider.PageSize
	if n := c.Int("max-emails"); n > 0 {
		maxEmails = n
	}
	if n := c.Int("page-size"); n > 0 {
		pageSize = n
	}
	opts = append(opts, etl.WithFetchLimits(maxEmails, pageSize))

	pipeline, err := a.NewPipeline(fetcher, opts...)
	if err != nil {
		return err
	}

	out := c.App.Writer
	var failed error
	for _, account := range accounts {
		result, err := pipeline.Run(c.Context, account)
		if err != nil {
			fmt.Fprintf(out, "ETL failed for %s: %v\n", account, err)
			failed = errors.Join(failed, fmt.Errorf("account %s: %w", account, err))
			continue
		}
		printResult(out, account, result)
	}

	printCounts(c.Context, out, a)
	return failed
}

func printResult(w io.Writer, account string, result *etl.Result) {
	fmt.Fprintf(w, "ETL job %d for %s completed\n", result.JobID, account)
	fmt.Fprintf(w, "  fetched:   %d\n", result.Fetched)
	fmt.Fprintf(w, "  processed: %d\n", result.EmailsProcessed)
	fmt.Fprintf(w, "  stored:    %d new\n", result.Stored)
	fmt.Fprintf(w, "  indexed:   %d new\n", result.Indexed)
	if result.IndexErr != nil {
		fmt.Fprintf(w, "  warning: search index not updated: %v\n", result.IndexErr)
	}
}

func printCounts(ctx context.Context, w io.Writer, a *mailrecall.Assistant) {
	if n, err := a.RecordStore().CountEmails(ctx); err == nil {
		fmt.Fprintf(w, "Record store: %d emails\n", n)
	} else {
		fmt.Fprintf(w, "Record store: count unavailable (%v)\n", err)
	}
	if n, err := a.SearchIndex().Count(ctx); err == nil {
		fmt.Fprintf(w, "Search index: %d documents\n", n)
	} else {
		fmt.Fprintf(w, "Search index: count unavailable (%v)\n", err)
	}
}

func reindexCommand(c *cli.Context) error {
	cfg := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		Workers:        c.Int("workers"),
	}
	if err := validateReindexConfig(cfg); err != nil {
		return err
	}

	_, a, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer a.Close()

	rebuilder, err := a.NewRebuilder(cfg, c.App.ErrWriter)
	if err != nil {
		return err
	}
	_, err = rebuilder.Run(c.Context)
	return err
}

func validateReindexConfig(cfg *reindex.Config) error {
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if cfg.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if cfg.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}
	if cfg.RetryDelay < 0 {
		return fmt.Errorf("retry-delay must not be negative")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0")
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	sender := c.String("sender")
	if query == "" && sender == "" {
		return fmt.Errorf("a query or --sender is required")
	}

	_, a, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer a.Close()

	var opts []search.Option
	if c.Bool("explain") {
		opts = append(opts, search.WithMonitor(newExplainMonitor(c.App.ErrWriter)))
	}
	searcher, err := a.NewSearcher(opts...)
	if err != nil {
		return err
	}

	var results []search.Summary
	if sender != "" {
		results = searcher.SearchBySender(c.Context, sender, query, c.Int("limit"))
	} else {
		results = searcher.Search(c.Context, query, c.Int("limit"))
	}
	fmt.Fprint(c.App.Writer, tools.FormatForLLM(results))
	return nil
}

func recentCommand(c *cli.Context) error {
	_, a, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer a.Close()

	searcher, err := a.NewSearcher()
	if err != nil {
		return err
	}
	fmt.Fprint(c.App.Writer, tools.FormatForLLM(searcher.Recent(c.Context, c.Int("limit"))))
	return nil
}

func jobsCommand(c *cli.Context) error {
	_, a, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.RecordStore().GetRecentJobs(c.Context, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	return printJobs(c.App.Writer, jobs)
}

func printJobs(w io.Writer, jobs []*core.Job) error {
	if len(jobs) == 0 {
		_, err := fmt.Fprintln(w, "No jobs recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tRECORDS\tSTARTED\tDURATION\tERROR")
	for _, job := range jobs {
		duration := "-"
		if job.CompletedAt != nil {
			duration = job.CompletedAt.Sub(job.StartedAt).Round(time.Millisecond).String()
		}
		errMsg := ""
		if job.ErrorMessage != nil {
			errMsg = *job.ErrorMessage
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			job.ID, job.JobType, job.Status, job.RecordsProcessed,
			job.StartedAt.Format(time.RFC3339), duration, errMsg)
	}
	return tw.Flush()
}

func sendCommand(c *cli.Context) error {
	_, a, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer a.Close()

	service, err := a.NewMailer()
	if err != nil {
		return err
	}

	to := c.String("to")
	result, err := service.SendEmail(c.Context, to, c.String("subject"), c.String("message"), c.String("name"))
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	fmt.Fprintf(c.App.Writer, "Email sent successfully to %s via %s (message id %s)\n",
		to, service.Transport().Name(), result.ExternalMessageID)
	return nil
}
