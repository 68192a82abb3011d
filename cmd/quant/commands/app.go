package commands

import (
	"fmt"
	"net/http"

	"github.com/wonny/factorscore/internal/api"
	"github.com/wonny/factorscore/internal/api/handlers"
	"github.com/wonny/factorscore/internal/brain"
	"github.com/wonny/factorscore/internal/s1_universe"
	"github.com/wonny/factorscore/internal/scheduler"
	"github.com/wonny/factorscore/internal/selection"
	"github.com/wonny/factorscore/internal/strategyconfig"
	"github.com/wonny/factorscore/pkg/config"
	"github.com/wonny/factorscore/pkg/database"
	"github.com/wonny/factorscore/pkg/logger"
	"github.com/wonny/factorscore/pkg/metrics"
	"github.com/wonny/factorscore/pkg/redis"
)

// cachePrefix namespaces every Redis key of this service
const cachePrefix = "factorscore"

// appOptions selects how dependencies are wired
type appOptions struct {
	fixturePath string // JSON fixture instead of Postgres (dry run only)
	dryRun      bool
}

// app holds wired dependencies shared by commands
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg      *config.Config
	scoring  *strategyconfig.Config
	log      *logger.Logger
	db       *database.DB // nil when running from a fixture
	redis    *redis.Client
	rejects  *selection.RejectLog
	scores   *selection.Repository   // nil when running from a fixture
	universe *s1_universe.Repository // nil when running from a fixture
	metrics  *metrics.Manager
	orch     *brain.Orchestrator
}

// loadBase reads process config, logger and scoring config
func loadBase() (*config.Config, *logger.Logger, *strategyconfig.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	path := cfg.Scoring.ConfigPath
	if scoringConfigPath != "" {
		path = scoringConfigPath
	}
	scoring, _, err := strategyconfig.LoadOrDefault(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load scoring config: %w", err)
	}
	for _, w := range strategyconfig.Warn(scoring) {
		log.WithFields(map[string]interface{}{
			"code": w.Code,
		}).Warn(w.Message)
	}

	return cfg, log, scoring, nil
}

// resolveScoringPath returns --config, then SCORING_CONFIG, then "" (built-in)
func resolveScoringPath() string {
	if scoringConfigPath != "" {
		return scoringConfigPath
	}
	if cfg, err := config.Load(); err == nil {
		return cfg.Scoring.ConfigPath
	}
	return ""
}

// newApp wires the orchestrator and its collaborators
func newApp(opts appOptions) (*app, error) {
	if opts.fixturePath != "" && !opts.dryRun {
		return nil, fmt.Errorf("--input requires --dry-run")
	}

	cfg, log, scoring, err := loadBase()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		scoring: scoring,
		log:     log,
		redis:   redis.Disabled(),
		metrics: metrics.NewManager(),
	}

	deps := brain.Dependencies{
		Config: scoring,
		Prom:   a.metrics,
		Logger: log,
	}

	if opts.fixturePath != "" {
		repo, err := s1_universe.LoadFixture(opts.fixturePath)
		if err != nil {
			return nil, err
		}
		deps.Metrics = repo
		a.rejects = selection.NewRejectLog("", 0, 0)
	} else {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db

		rc, err := redis.New(cfg)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, prior lookups go to Postgres")
		} else {
			a.redis = rc
		}

		universeRepo := s1_universe.NewRepository(db.Pool)
		a.scores = selection.NewRepository(db.Pool)
		a.universe = universeRepo

		deps.Metrics = universeRepo
		deps.Snapshots = universeRepo
		deps.Runs = a.scores
		deps.Store = selection.NewCachedStore(a.scores, redis.NewCache(a.redis, cachePrefix), log)

		rejectPath := cfg.Scoring.RejectLogPath
		if opts.dryRun {
			rejectPath = ""
		}
		a.rejects = selection.NewRejectLog(rejectPath, cfg.Scoring.RejectLogMaxSizeMB, cfg.Scoring.RejectLogMaxBackups,
			selection.WithCompress(cfg.Scoring.RejectLogCompress))
	}
	deps.Rejects = a.rejects

	orch, err := brain.NewOrchestrator(deps)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}
	a.orch = orch

	return a, nil
}

// locker returns the run lock manager
func (a *app) locker() *redis.Locker {
	return redis.NewLocker(a.redis, cachePrefix)
}

// opsRouter builds the ops HTTP router. Interfaces stay nil when the backing store is absent.
func (a *app) opsRouter(sched *scheduler.Scheduler) http.Handler {
	var (
		runs handlers.RunReader
		db   handlers.HealthChecker
	)
	if a.scores != nil {
		runs = a.scores
	}
	if a.db != nil {
		db = a.db
	}
	ops := handlers.NewOpsHandler(runs, db, sched, a.log)
	return api.NewRouter(ops, a.metrics.Handler(), a.log)
}

// Close releases every opened resource
func (a *app) Close() {
	if a.rejects != nil {
		if err := a.rejects.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close reject log")
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
