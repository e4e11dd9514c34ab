package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"

	"github.com/rackside/pool-league/internal/app"
	"github.com/rackside/pool-league/internal/config"
	"github.com/rackside/pool-league/internal/observability"
	"github.com/rackside/pool-league/internal/platform/logging"
	"github.com/rackside/pool-league/internal/usecase"
)

func main() {
	leagueID := flag.String("league", "", "league to reconcile (required)")
	workers := flag.Int("workers", 0, "max concurrent reconcile tasks (0 = RECONCILE_MAX_WORKERS)")
	dryRun := flag.Bool("dry-run", false, "report missing stats without applying them")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	flag.Parse()

	if *leagueID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	shutdownTracing, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init uptrace", "error", err)
		os.Exit(1)
	}

	stopProfiler, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init pyroscope", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := stopProfiler(); err != nil {
			logger.Error("stop pyroscope", "error", err)
		}
	}()

	pprofSrv, err := observability.StartPprofServer(cfg, logger)
	if err != nil {
		logger.Error("start pprof", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := observability.StopPprofServer(pprofSrv, logger, 5*time.Second); err != nil {
			logger.Error("stop pprof", "error", err)
		}
	}()

	engine, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := engine.Reconciler.Reconcile(ctx, usecase.ReconcileInput{
		LeagueID:   *leagueID,
		MaxWorkers: *workers,
		DryRun:     *dryRun,
	})
	if err != nil {
		logger.Error("reconcile failed", "league_id", *leagueID, "error", err)
		shutdown(engine, shutdownTracing, logger)
		os.Exit(1)
	}

	out, err := sonic.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Error("encode result", "error", err)
		shutdown(engine, shutdownTracing, logger)
		os.Exit(1)
	}
	fmt.Println(string(out))

	shutdown(engine, shutdownTracing, logger)
	if result.FailedCount > 0 {
		os.Exit(1)
	}
}

func shutdown(engine *app.App, shutdownTracing func(context.Context) error, logger *logging.Logger) {
	if err := engine.Close(); err != nil {
		logger.Error("close app", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdownTracing(ctx); err != nil {
		logger.Error("shutdown tracing", "error", err)
	}
}
