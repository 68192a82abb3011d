package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/factorscore/internal/brain"
	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/internal/scheduler"
	"github.com/wonny/factorscore/pkg/logger"
	"github.com/wonny/factorscore/pkg/redis"
)

// runLockTTL bounds how long a crashed run can block the same (period, date)
const runLockTTL = 2 * time.Hour

// Runner executes one scoring run
type Runner interface {
	Run(ctx context.Context, rc brain.RunConfig) (*brain.RunResult, error)
}

// ScoringJob runs the scoring engine for one period type
// ⭐ SSOT: 스코어링 스케줄은 이 Job에서만
type ScoringJob struct {
	runner  Runner
	locker  *redis.Locker // nil: 잠금 없이 실행
	period  contracts.PeriodType
	workers int
	loc     *time.Location
	now     func() time.Time
	logger  *logger.Logger
}

// NewScoringJob creates a new scoring job
func NewScoringJob(runner Runner, locker *redis.Locker, period contracts.PeriodType, workers int, loc *time.Location, log *logger.Logger) *ScoringJob {
	if loc == nil {
		loc = time.UTC
	}
	return &ScoringJob{
		runner:  runner,
		locker:  locker,
		period:  period,
		workers: workers,
		loc:     loc,
		now:     time.Now,
		logger:  log,
	}
}

// Name returns the job name
func (j *ScoringJob) Name() string {
	return "scoring_" + string(j.period)
}

// Schedule returns the cron schedule for the period (with seconds)
func (j *ScoringJob) Schedule() string {
	switch j.period {
	case contracts.PeriodWeekly:
		return "0 30 19 * * 5" // Friday 7:30 PM, after the daily run
	case contracts.PeriodMonthly:
		return "0 0 6 1 * *" // 1st of month 6 AM: anchors to previous month-end
	default:
		return "0 0 19 * * 1-5" // weekdays 7 PM
	}
}

// Run executes one scoring run for today's date in the job's time zone
func (j *ScoringJob) Run(ctx context.Context) error {
	date := j.now().In(j.loc)
	asOf := j.period.AnchorDate(date)
	runID := uuid.NewString()

	log := j.logger.WithFields(map[string]interface{}{
		"job":        j.Name(),
		"run_id":     runID,
		"as_of_date": asOf.Format("2006-01-02"),
	})
	log.Info("Starting scheduled scoring run")

	if j.locker != nil {
		lock, err := j.locker.Acquire(ctx, redis.RunLockKey(string(j.period), asOf.Format("2006-01-02")), runID, runLockTTL)
		if err != nil {
			if errors.Is(err, redis.ErrLockHeld) {
				return scheduler.Permanent(err)
			}
			return fmt.Errorf("acquire run lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				log.WithError(err).Warn("Failed to release run lock")
			}
		}()
	}

	result, err := j.runner.Run(ctx, brain.RunConfig{
		Date:    date,
		Period:  j.period,
		RunID:   runID,
		Workers: j.workers,
	})
	if err != nil {
		// 취소된 run은 재시도하지 않음 (다음 스케줄에서 다시 실행)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return scheduler.Permanent(fmt.Errorf("scoring run %s: %w", runID, err))
		}
		return fmt.Errorf("scoring run %s: %w", runID, err)
	}

	if result.Summary != nil {
		log.WithFields(map[string]interface{}{
			"written":      result.Summary.Written,
			"rejected":     result.Summary.Rejected,
			"write_failed": result.Summary.WriteFailed,
		}).Info("Scheduled scoring run completed")
	}

	return nil
}
