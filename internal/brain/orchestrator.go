package brain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/internal/s1_universe"
	"github.com/wonny/factorscore/internal/s2_signals"
	"github.com/wonny/factorscore/internal/selection"
	"github.com/wonny/factorscore/internal/strategyconfig"
	"github.com/wonny/factorscore/pkg/logger"
	"github.com/wonny/factorscore/pkg/metrics"
)

// DefaultWorkers bounds Phase 2 parallelism when RunConfig.Workers is unset
const DefaultWorkers = 8

// RejectSink receives records the validator rejected
type RejectSink interface {
	Append(snapshotID string, cs *contracts.CompositeScore, err error)
}

// SnapshotRecorder stores the snapshot reference of a run
type SnapshotRecorder interface {
	SaveSnapshot(ctx context.Context, runID string, snapshot *contracts.UniverseSnapshot, metrics []string) error
}

// Orchestrator coordinates one scoring run
// ⭐ SSOT: 파이프라인 조율은 여기서만
//
//	Phase 1 (collect):  S1 universe snapshot → S2 normalization tables   ── barrier ──
//	Phase 2 (compute):  S3 factors → S4 composite → S5 validate → S6 write  [per entity, bounded]
type Orchestrator struct {
	cfg        *strategyconfig.Config
	configHash string

	universeBuilder *s1_universe.Builder
	registry        *s2_signals.Registry
	aggregator      *selection.Aggregator
	validator       *selection.Validator

	store     selection.ScoreStore  // nil: no prior lookup, no writes
	runs      contracts.RunRecorder // optional
	snapshots SnapshotRecorder      // optional
	rejects   RejectSink            // optional
	metrics   *metrics.Manager      // optional

	logger *logger.Logger
}

// Dependencies groups the collaborators of an Orchestrator
type Dependencies struct {
	Config    *strategyconfig.Config
	Metrics   contracts.MetricsRepository
	Store     selection.ScoreStore
	Runs      contracts.RunRecorder
	Snapshots SnapshotRecorder
	Rejects   RejectSink
	Prom      *metrics.Manager
	Logger    *logger.Logger
}

// RunConfig holds configuration for a scoring run
type RunConfig struct {
	Date    time.Time
	Period  contracts.PeriodType
	RunID   string
	Workers int
	DryRun  bool // If true, compute and validate but write nothing
}

// RunResult holds the results of a scoring run
type RunResult struct {
	RunID           string
	Success         bool
	Error           error
	CompletedStages []string
	Snapshot        *contracts.UniverseSnapshot
	Summary         *contracts.RunSummary
	Scores          []*contracts.CompositeScore // validated records sorted by entity
	Duration        time.Duration
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(deps Dependencies) (*Orchestrator, error) {
	if deps.Config == nil {
		return nil, errors.New("orchestrator: config required")
	}
	if deps.Metrics == nil {
		return nil, errors.New("orchestrator: metrics repository required")
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	hash, err := strategyconfig.Hash(deps.Config)
	if err != nil {
		return nil, fmt.Errorf("hash config: %w", err)
	}

	registry, err := s2_signals.NewRegistry(deps.Config, log)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:             deps.Config,
		configHash:      hash,
		universeBuilder: s1_universe.NewBuilder(deps.Metrics, deps.Config, log),
		registry:        registry,
		aggregator:      selection.NewAggregator(deps.Config, log),
		validator:       selection.NewValidator(deps.Config),
		store:           deps.Store,
		runs:            deps.Runs,
		snapshots:       deps.Snapshots,
		rejects:         deps.Rejects,
		metrics:         deps.Prom,
		logger:          log,
	}, nil
}

// ConfigHash returns the hash recorded on every run
func (o *Orchestrator) ConfigHash() string {
	return o.configHash
}

// Run executes one two-phase scoring run.
// Only Phase 1 failures return an error; per-entity failures are counted.
func (o *Orchestrator) Run(ctx context.Context, rc RunConfig) (*RunResult, error) {
	startTime := time.Now()
	if rc.Workers <= 0 {
		rc.Workers = DefaultWorkers
	}

	result := &RunResult{
		RunID:           rc.RunID,
		CompletedStages: make([]string, 0, len(contracts.AllStages())),
	}

	log := o.logger.WithFields(map[string]interface{}{
		"run_id":      rc.RunID,
		"period_type": string(rc.Period),
	})
	log.WithFields(map[string]interface{}{
		"date":        rc.Date.Format("2006-01-02"),
		"workers":     rc.Workers,
		"dry_run":     rc.DryRun,
		"config_hash": o.configHash,
	}).Info("Starting scoring run")

	// === Phase 1: collect ===
	phaseStart := time.Now()

	snapshot, err := o.universeBuilder.Build(ctx, contracts.SnapshotIDForRun(rc.RunID), rc.Date, rc.Period)
	if err != nil {
		return o.fail(result, rc, startTime, contracts.StageUniverse, err)
	}
	result.Snapshot = snapshot
	result.CompletedStages = append(result.CompletedStages, contracts.StageUniverse.String())

	summary := &contracts.RunSummary{
		RunID:        rc.RunID,
		AsOfDate:     snapshot.AsOfDate,
		PeriodType:   rc.Period,
		ConfigHash:   o.configHash,
		UniverseSize: snapshot.Count(),
		StartedAt:    startTime,
	}
	result.Summary = summary

	if !rc.DryRun && o.snapshots != nil {
		if err := o.snapshots.SaveSnapshot(ctx, rc.RunID, snapshot, o.cfg.MetricNames()); err != nil {
			return o.fail(result, rc, startTime, contracts.StageUniverse, fmt.Errorf("%w: save snapshot: %v", contracts.ErrRepository, err))
		}
	}

	tables := s2_signals.PrepareTables(snapshot, o.cfg)
	summary.IssueCounts = tables.IssueCounts()
	result.CompletedStages = append(result.CompletedStages, contracts.StageNormalize.String())

	o.metrics.RecordPhase("collect", time.Since(phaseStart))
	o.metrics.SetUniverseSize(string(rc.Period), snapshot.Count())
	o.metrics.RecordIssues(summary.IssueCounts)

	log.WithFields(map[string]interface{}{
		"entity_count": snapshot.Count(),
		"tables":       len(tables.Keys()),
		"issues":       summary.IssueCounts,
		"duration_ms":  time.Since(phaseStart).Milliseconds(),
	}).Info("Phase 1 complete: normalization tables frozen")

	// === Phase 2: compute (bounded fan-out) ===
	phaseStart = time.Now()
	w := &worker{
		o:        o,
		rc:       rc,
		snapshot: snapshot,
		tables:   tables,
		log:      log,
		summary:  summary,
	}

	var g errgroup.Group
	g.SetLimit(rc.Workers)

	entities := snapshot.Entities()
	for i, id := range entities {
		// 취소 시 새 엔티티 스케줄링만 중단 (진행 중 작업은 완료)
		if ctx.Err() != nil {
			w.skip(len(entities) - i)
			break
		}
		entityID := id
		g.Go(func() error {
			// 슬롯 대기 중 취소된 엔티티는 시작하지 않음
			if ctx.Err() != nil {
				w.skip(1)
				return nil
			}
			w.process(ctx, entityID)
			return nil
		})
	}
	_ = g.Wait()

	result.CompletedStages = append(result.CompletedStages,
		contracts.StageFactors.String(),
		contracts.StageComposite.String(),
		contracts.StageValidate.String(),
		contracts.StageWrite.String(),
	)
	o.metrics.RecordPhase("compute", time.Since(phaseStart))

	sort.Slice(w.scores, func(i, j int) bool { return w.scores[i].EntityID < w.scores[j].EntityID })
	result.Scores = w.scores

	summary.FinishedAt = time.Now()
	result.Duration = summary.Duration()
	result.Success = ctx.Err() == nil

	status := "success"
	if !result.Success {
		status = "cancelled"
		result.Error = ctx.Err()
	}

	if !rc.DryRun && o.runs != nil {
		// 취소된 run도 감사 기록은 남김
		if err := o.runs.SaveRun(context.WithoutCancel(ctx), summary); err != nil {
			log.WithError(err).Error("Failed to save run summary")
		}
	}
	o.metrics.RecordRun(string(rc.Period), status, result.Duration)

	log.WithFields(map[string]interface{}{
		"status":         status,
		"as_of_date":     summary.AsOfDate.Format("2006-01-02"),
		"universe_size":  summary.UniverseSize,
		"written":        summary.Written,
		"null_composite": summary.NullComposite,
		"rejected":       summary.Rejected,
		"write_failed":   summary.WriteFailed,
		"skipped":        summary.Skipped,
		"duration_ms":    result.Duration.Milliseconds(),
	}).Info("Scoring run finished")

	return result, result.Error
}

// fail ends a run on a Phase 1 error
func (o *Orchestrator) fail(result *RunResult, rc RunConfig, start time.Time, stage contracts.Stage, err error) (*RunResult, error) {
	result.Error = fmt.Errorf("%s failed: %w", stage.ShortName(), err)
	result.Duration = time.Since(start)

	o.metrics.RecordRun(string(rc.Period), "failed", result.Duration)
	o.logger.WithError(err).WithFields(map[string]interface{}{
		"run_id": rc.RunID,
		"stage":  stage.String(),
	}).Error("Scoring run aborted")

	return result, result.Error
}

// worker carries the frozen per-run state shared by Phase 2 goroutines
type worker struct {
	o        *Orchestrator
	rc       RunConfig
	snapshot *contracts.UniverseSnapshot
	tables   *s2_signals.Tables
	log      *logger.Logger

	mu      sync.Mutex
	summary *contracts.RunSummary
	scores  []*contracts.CompositeScore
}

// process scores one entity. Failures (panics included) stay inside this entity.
func (w *worker) process(ctx context.Context, entityID string) {
	// 진행 중 엔티티는 취소와 무관하게 끝까지 처리
	ctx = context.WithoutCancel(ctx)
	log := w.log.WithField("entity_id", entityID)

	defer func() {
		if err := recover(); err != nil {
			log.WithField("error", err).Error("Panic recovered while scoring entity")
			w.record(nil, metrics.OutcomeWriteFailed)
		}
	}()

	for _, issue := range w.tables.Issues(entityID) {
		fields := map[string]interface{}{
			"kind":   issue.KindName(),
			"factor": string(issue.Factor),
			"metric": issue.Metric,
		}
		if issue.RawValue != nil {
			fields["raw_value"] = *issue.RawValue
		}
		if issue.Detail != "" {
			fields["detail"] = issue.Detail
		}
		log.WithFields(fields).Debug("Data issue")
	}

	factors := w.o.registry.ComputeAll(entityID, w.tables)

	var prior *contracts.CompositeScore
	if w.o.store != nil {
		p, err := w.o.store.Prior(ctx, entityID, w.rc.Period, w.snapshot.AsOfDate)
		if err != nil {
			log.WithError(err).Error("Prior score lookup failed")
			w.record(nil, metrics.OutcomeWriteFailed)
			return
		}
		prior = p
	}

	cs := w.o.aggregator.Aggregate(entityID, factors, prior)
	cs.RunID = w.rc.RunID
	cs.AsOfDate = w.snapshot.AsOfDate
	cs.PeriodType = w.rc.Period

	validated, err := w.o.validator.Validate(cs)
	if err != nil {
		log.WithError(err).WithField("snapshot_id", w.snapshot.SnapshotID).Warn("Score rejected")
		if w.o.rejects != nil {
			w.o.rejects.Append(w.snapshot.SnapshotID, cs, err)
		}
		w.record(nil, metrics.OutcomeRejected)
		return
	}

	if !w.rc.DryRun && w.o.store != nil {
		if err := w.o.store.Write(ctx, validated); err != nil {
			log.WithError(err).Error("Failed to write score")
			w.record(nil, metrics.OutcomeWriteFailed)
			return
		}
	}

	if validated.Composite == nil {
		log.WithField("present_factors", validated.PresentFactors).Debug("Composite NULL: insufficient factors")
		w.record(validated, metrics.OutcomeNullComposite)
		return
	}
	w.record(validated, metrics.OutcomeWritten)
}

// record updates counters; written and null-composite records are both persisted
func (w *worker) record(cs *contracts.CompositeScore, outcome string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch outcome {
	case metrics.OutcomeWritten:
		w.summary.Written++
	case metrics.OutcomeNullComposite:
		w.summary.Written++
		w.summary.NullComposite++
	case metrics.OutcomeRejected:
		w.summary.Rejected++
	case metrics.OutcomeWriteFailed:
		w.summary.WriteFailed++
	}
	if cs != nil {
		w.scores = append(w.scores, cs)
	}

	w.o.metrics.RecordEntity(string(w.rc.Period), outcome)
}

// skip counts entities never started because the run was cancelled
func (w *worker) skip(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.summary.Skipped += n
	w.o.metrics.AddEntities(string(w.rc.Period), metrics.OutcomeSkipped, n)
}
