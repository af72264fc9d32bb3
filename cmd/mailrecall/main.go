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


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/mailrecall/config"
	"github.com/poiesic/mailrecall/reindex"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "mailrecall",
		Usage: "Email sync, search and sending for a voice assistant",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				Value:   config.DefaultPath,
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "etl",
				Usage:  "Fetch recent emails and load them into the record store and search index",
				Action: etlCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "account",
						Usage: "Account (grant) to sync; defaults to every configured account",
					},
					&cli.IntFlag{
						Name:  "max-emails",
						Usage: "Maximum emails to fetch (0 uses the configured value)",
					},
					&cli.IntFlag{
						Name:  "page-size",
						Usage: "Emails requested per page (0 uses the configured value)",
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild the search index from the record store",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of emails to index in each batch",
						Value: reindex.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N emails",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for each batch",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of batches indexed concurrently",
						Value: 1,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Semantic search over synced emails",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 5,
					},
					&cli.StringFlag{
						Name:  "sender",
						Usage: "Restrict results to a sender email address or name",
					},
					&cli.BoolFlag{
						Name:  "explain",
						Usage: "Print index hits and hydration details to stderr",
					},
				},
			},
			{
				Name:   "recent",
				Usage:  "List the most recent emails",
				Action: recentCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of emails",
						Value: 5,
					},
				},
			},
			{
				Name:   "jobs",
				Usage:  "List recent ETL and rebuild jobs",
				Action: jobsCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of jobs",
						Value: 10,
					},
				},
			},
			{
				Name:   "send",
				Usage:  "Send an email",
				Action: sendCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "to",
						Usage:    "Recipient email address",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "subject",
						Usage:    "Subject line",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "message",
						Usage:    "Plain text body",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Recipient display name",
					},
				},
			},
			{
				Name:   "seed",
				Usage:  "Load sample emails through the ETL pipeline",
				Action: seedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "JSON file with an array of provider messages (defaults to built-in samples)",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the tool API and run scheduled syncs",
				Action: serveCommand,
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
