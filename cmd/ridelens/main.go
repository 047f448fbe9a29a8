// RideLens - Ride Pickup/Drop Pair Recommendation Engine
// Copyright 2026 RideLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ridelens/ridelens

// Package main is the RideLens entry point.
//
// RideLens turns a stream of completed ride-hailing trips into per-user
// top-K pickup/drop pair recommendations, bucketed by ride period (commute,
// nightlife, weekend leisure, ...). Counts accumulate across a daily batch
// run; each run merges one day's partition into the cumulative aggregate
// and atomically publishes a fresh recommendation set.
//
// Two modes:
//
//	ridelens serve             long-running process: ingest + scheduler + API
//	ridelens run --date=DATE   one-shot run for a single partition (YYYY-MM-DD)
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): RIDELENS_* environment variables, config.yaml, built-in
// defaults. See internal/config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/ridelens/ridelens/internal/api"
	"github.com/ridelens/ridelens/internal/config"
	"github.com/ridelens/ridelens/internal/engine"
	"github.com/ridelens/ridelens/internal/ingest"
	"github.com/ridelens/ridelens/internal/logging"
	"github.com/ridelens/ridelens/internal/scheduler"
	"github.com/ridelens/ridelens/internal/store"
	"github.com/ridelens/ridelens/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	mode := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		mode = args[0]
		args = args[1:]
	}

	switch mode {
	case "serve":
		if err := serve(cfg); err != nil && !errors.Is(err, context.Canceled) {
			logging.Fatal().Err(err).Msg("Server exited with error")
		}
	case "run":
		if err := runOnce(cfg, args); err != nil {
			logging.Fatal().Err(err).Msg("Run failed")
		}
	default:
		fmt.Fprintf(os.Stderr, "usage: ridelens [serve|run --date=YYYY-MM-DD]\n")
		os.Exit(2)
	}
}

// runOnce executes the pipeline for one partition and exits. Intended for
// backfills and manual reruns; it bypasses the scheduler's retry policy.
func runOnce(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	date := fs.String("date", "", "partition date (YYYY-MM-DD), default yesterday")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loc := cfg.Location()
	partition := *date
	if partition == "" {
		partition = engine.YesterdayPartition(time.Now().In(loc))
	}
	if _, err := time.ParseInLocation("2006-01-02", partition, loc); err != nil {
		return fmt.Errorf("invalid --date %q: %w", partition, err)
	}

	st, err := store.New(&cfg.Database, loc)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := engine.NewRunner(st, loc, cfg.Engine.TopK, cfg.Engine.Workers)
	result, err := runner.Run(ctx, partition)
	if err != nil {
		return err
	}

	logging.Info().
		Str("partition", result.Partition).
		Int64("version", result.Version).
		Int("events_read", result.EventsRead).
		Int("merged_keys", result.MergedKeys).
		Int("entries", result.Entries).
		Dur("elapsed", result.Elapsed).
		Msg("Run complete")
	return nil
}

// serve runs the full supervised process: ingest pipeline, daily
// scheduler, retention housekeeping, and the HTTP API.
func serve(cfg *config.Config) error {
	loc := cfg.Location()

	st, err := store.New(&cfg.Database, loc)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("timezone", cfg.Engine.Timezone).
		Int("top_k", cfg.Engine.TopK).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	// Ingest layer.
	if cfg.NATS.Enabled {
		closeIngest, err := setupIngest(ctx, cfg, st, tree)
		if err != nil {
			return fmt.Errorf("setup ingest: %w", err)
		}
		defer closeIngest()
	} else {
		logging.Info().Msg("NATS disabled, events must be loaded into the store externally")
	}

	// Batch layer.
	runner := engine.NewRunner(st, loc, cfg.Engine.TopK, cfg.Engine.Workers)
	tree.AddBatchService(scheduler.New(runner, loc, cfg.Engine))
	tree.AddBatchService(scheduler.NewHousekeeper(st, loc, cfg.Retention))

	// API layer.
	handler := api.NewHandler(st, &cfg.Server)
	router := api.NewRouter(handler, &cfg.Server)
	tree.AddAPIService(api.NewServer(&cfg.Server, router.Setup()))

	logging.Info().Msg("Starting RideLens supervisor tree")
	err = tree.Serve(ctx)

	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}
	return err
}

// setupIngest wires the broker side: optional embedded NATS server, the
// ride-events stream, the dedup index, and the consumer service. The
// returned closer releases broker resources after the tree stops.
func setupIngest(ctx context.Context, cfg *config.Config, st *store.Store, tree *supervisor.Tree) (func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var connOpts []natsgo.Option
	if cfg.NATS.EmbeddedServer {
		embedded, err := ingest.NewEmbeddedServer(&cfg.NATS)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := embedded.Shutdown(shutdownCtx); err != nil {
				logging.Error().Err(err).Msg("Error stopping embedded NATS server")
			}
		})
		connOpts = append(connOpts, natsgo.InProcessServer(embedded.InProcessServer()))
	}

	nc, err := natsgo.Connect(cfg.NATS.URL, connOpts...)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	closers = append(closers, nc.Close)

	streams, err := ingest.NewStreamManager(nc, &cfg.NATS)
	if err != nil {
		closeAll()
		return nil, err
	}
	if _, err := streams.EnsureStream(ctx, cfg.Ingest.DedupWindow); err != nil {
		closeAll()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	var index ingest.DedupIndex
	if cfg.Ingest.DedupPath != "" {
		badgerIndex, err := ingest.NewBadgerDedupIndex(cfg.Ingest.DedupPath, cfg.Ingest.DedupWindow)
		if err != nil {
			closeAll()
			return nil, err
		}
		index = badgerIndex
	} else {
		index = ingest.NewMemoryDedupIndex(cfg.Ingest.DedupWindow)
	}
	closers = append(closers, func() {
		if err := index.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing dedup index")
		}
	})

	sub, err := ingest.NewSubscriber(&cfg.NATS, &cfg.Ingest, ingest.NewWatermillLogger(), connOpts...)
	if err != nil {
		closeAll()
		return nil, err
	}
	closers = append(closers, func() {
		if err := sub.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing subscriber")
		}
	})

	tree.AddIngestService(ingest.NewConsumer(sub, st, index, cfg.Ingest))
	return closeAll, nil
}
