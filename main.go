package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jamesruggles/reportsuite/internal/completeness"
	"github.com/jamesruggles/reportsuite/internal/config"
	"github.com/jamesruggles/reportsuite/internal/database"
	"github.com/jamesruggles/reportsuite/internal/metrics"
	"github.com/jamesruggles/reportsuite/internal/notify"
	"github.com/jamesruggles/reportsuite/internal/queue"
	"github.com/jamesruggles/reportsuite/internal/renderer"
	"github.com/jamesruggles/reportsuite/internal/server"
	"github.com/jamesruggles/reportsuite/internal/tracing"
	"github.com/jamesruggles/reportsuite/internal/version"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("flushing traces", "error", err)
		}
	}()

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	broker, err := queue.New(ctx, cfg.Queue)
	if err != nil {
		return err
	}
	defer broker.Close()

	m := metrics.New()
	checker, err := completeness.New(cfg.Completeness.RequiredFields)
	if err != nil {
		return err
	}

	// Notifications go through the queue so whichever instance holds the
	// user's websocket delivers them. If the queue is down they go straight
	// to this instance's connections.
	registry := notify.NewRegistry(m)
	notifier := notify.NewPublisher(broker, cfg.Queue.NotifyChannel, registry)

	versions := version.NewDispatcher(db, checker, broker, notifier, m, version.Options{
		Channel:        cfg.Queue.ReportChannel,
		PublishTimeout: cfg.Queue.PublishTimeout,
	})
	defer versions.Wait()

	var wg sync.WaitGroup
	background := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				slog.Error("background task stopped", "task", name, "error", err)
			}
		}()
	}

	background("notify listener", notify.NewListener(broker, cfg.Queue.NotifyChannel, registry).Run)
	background("stale render reaper", func(ctx context.Context) error {
		version.NewReaper(db, notifier, m, cfg.Render.Timeout, cfg.Render.SweepInterval).Run(ctx)
		return nil
	})
	if cfg.Render.Embedded {
		background("embedded renderer", renderer.NewWorker(db, broker, cfg.Queue.ReportChannel, notifier).Run)
	}

	srv := server.New(cfg, server.Deps{
		DB:       db,
		Checker:  checker,
		Versions: versions,
		Registry: registry,
		Metrics:  m,
	})
	err = srv.ListenAndServe(ctx)
	stop()
	wg.Wait()
	return err
}
