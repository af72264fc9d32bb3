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
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/poiesic/mailrecall"
	"github.com/poiesic/mailrecall/config"
	"github.com/poiesic/mailrecall/etl"
	"github.com/poiesic/mailrecall/metrics"
	"github.com/poiesic/mailrecall/server"
	"github.com/poiesic/mailrecall/tools"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, a, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer a.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	service, err := a.NewMailer()
	if err != nil {
		return err
	}
	registry, err := a.NewToolRegistry(tools.WithSender(service))
	if err != nil {
		return err
	}
	srv := server.New(registry, server.WithGatherer(reg))

	scheduler, closeDeps, err := newScheduler(ctx, cfg, a, metrics.NewETL(reg))
	if err != nil {
		return err
	}
	defer closeDeps()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if gctx.Err() != nil {
			return nil
		}
		return srv.Listen(cfg.Server.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		slog.Info("shutting down tool server")
		return srv.Shutdown(shutdownCtx)
	})
	if scheduler != nil {
		defer scheduler.Release()
		g.Go(func() error {
			return scheduler.Start(gctx)
		})
	}

	return g.Wait()
}

// newScheduler returns nil when no provider account is configured; the
// server then answers from the data already synced.
func newScheduler(ctx context.Context, cfg *config.Config, a *mailrecall.Assistant, m etl.Metrics) (*etl.Scheduler, func(), error) {
	if err := cfg.RequireProvider(); err != nil {
		slog.Warn("scheduled sync disabled", "reason", err)
		return nil, func() {}, nil
	}

	fetcher, err := a.NewFetcher()
	if err != nil {
		return nil, nil, err
	}
	opts, closeDeps := pipelineOptions(ctx, cfg)
	pipeline, err := a.NewPipeline(fetcher, append(opts, etl.WithMetrics(m))...)
	if err != nil {
		closeDeps()
		return nil, nil, err
	}

	scheduler, err := etl.NewScheduler(pipeline, cfg.AccountRefs(), cfg.Scheduler.Interval,
		etl.WithPoolSize(cfg.Scheduler.Workers),
		etl.WithSchedulerLogger(slog.Default()),
	)
	if err != nil {
		closeDeps()
		return nil, nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return scheduler, closeDeps, nil
}
