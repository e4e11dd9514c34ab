package app

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"

	"github.com/rackside/pool-league/internal/config"
	"github.com/rackside/pool-league/internal/domain/leaguestats"
	"github.com/rackside/pool-league/internal/domain/match"
	"github.com/rackside/pool-league/internal/domain/reschedule"
	"github.com/rackside/pool-league/internal/infrastructure/eventqueue"
	"github.com/rackside/pool-league/internal/infrastructure/repository/memory"
	"github.com/rackside/pool-league/internal/infrastructure/repository/postgres"
	idgen "github.com/rackside/pool-league/internal/platform/id"
	"github.com/rackside/pool-league/internal/platform/logging"
	"github.com/rackside/pool-league/internal/platform/resilience"
	"github.com/rackside/pool-league/internal/usecase"
)

// App wires repositories, event sinks, and the use case services. An empty
// DB_URL selects the in-memory repositories so the engine can run without a
// database, e.g. for local trials.
type App struct {
	Matches     *usecase.MatchService
	Reschedules *usecase.RescheduleService
	Stats       *usecase.StatsService
	Reconciler  *usecase.StatsReconcileService

	logger *logging.Logger
	db     *sqlx.DB
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	var (
		db             *sqlx.DB
		matchRepo      match.Repository
		rescheduleRepo reschedule.Repository
		statsRepo      leaguestats.Repository
	)

	if strings.TrimSpace(cfg.DBURL) == "" {
		logger.Info("using in-memory repositories", "reason", "DB_URL empty")
		memMatches := memory.NewMatchRepository()
		matchRepo = memMatches
		rescheduleRepo = memory.NewRescheduleRepository(memMatches)
		statsRepo = memory.NewStatsRepository()
	} else {
		dbURL := normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary)
		conn, err := otelsqlx.Connect("postgres", dbURL,
			otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
			otelsql.WithDBName(dbNameFromURL(dbURL)),
			otelsql.WithQueryFormatter(formatDBQueryForTrace),
		)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		db = conn
		matchRepo = postgres.NewMatchRepository(db)
		rescheduleRepo = postgres.NewRescheduleRepository(db)
		statsRepo = postgres.NewStatsRepository(db)
	}

	statsSvc := usecase.NewStatsService(statsRepo, logger)

	sinks := []usecase.FinalizedSink{statsSvc}
	if cfg.WebhookEnabled {
		publisher, err := eventqueue.NewWebhookPublisher(eventqueue.WebhookPublisherConfig{
			TargetURL: cfg.WebhookTargetURL,
			AuthToken: cfg.WebhookAuthToken,
			Timeout:   cfg.WebhookTimeout,
			Breaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.WebhookCircuitEnabled,
				FailureThreshold: cfg.WebhookCircuitFailureCount,
				OpenTimeout:      cfg.WebhookCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.WebhookCircuitHalfOpenReq,
			},
		}, logger)
		if err != nil {
			closeDB(db, logger)
			return nil, fmt.Errorf("build webhook publisher: %w", err)
		}
		sinks = append(sinks, publisher)
	}

	generator := idgen.NewUUIDGenerator()
	matchSvc := usecase.NewMatchService(matchRepo, cfg.Handicap, generator, logger, sinks...)
	rescheduleSvc := usecase.NewRescheduleService(matchRepo, rescheduleRepo, generator, logger)
	reconcileSvc := usecase.NewStatsReconcileService(matchRepo, statsRepo, statsSvc, cfg.ReconcileMaxWorkers, logger)

	return &App{
		Matches:     matchSvc,
		Reschedules: rescheduleSvc,
		Stats:       statsSvc,
		Reconciler:  reconcileSvc,
		logger:      logger,
		db:          db,
	}, nil
}

func (a *App) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func closeDB(db *sqlx.DB, logger *logging.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Error("close database", "error", err)
	}
}
