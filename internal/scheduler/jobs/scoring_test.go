package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/factorscore/internal/brain"
	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/internal/scheduler"
	"github.com/wonny/factorscore/internal/selection"
	"github.com/wonny/factorscore/pkg/config"
	"github.com/wonny/factorscore/pkg/logger"
	"github.com/wonny/factorscore/pkg/redis"
)

type fakeRunner struct {
	got []brain.RunConfig
	err error
}

func (f *fakeRunner) Run(_ context.Context, rc brain.RunConfig) (*brain.RunResult, error) {
	f.got = append(f.got, rc)
	if f.err != nil {
		return &brain.RunResult{RunID: rc.RunID, Error: f.err}, f.err
	}
	return &brain.RunResult{
		RunID:   rc.RunID,
		Success: true,
		Summary: &contracts.RunSummary{RunID: rc.RunID, Written: 3},
	}, nil
}

func disabledLocker(t *testing.T) *redis.Locker {
	t.Helper()
	client, err := redis.New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	return redis.NewLocker(client, "factorscore")
}

func TestScoringJobRun(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	runner := &fakeRunner{}
	job := NewScoringJob(runner, disabledLocker(t), contracts.PeriodWeekly, 4, kst, logger.Nop())
	job.now = func() time.Time { return time.Date(2024, 6, 12, 11, 0, 0, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, runner.got, 1)

	rc := runner.got[0]
	assert.Equal(t, contracts.PeriodWeekly, rc.Period)
	assert.Equal(t, 4, rc.Workers)
	assert.NotEmpty(t, rc.RunID)
	assert.Equal(t, 12, rc.Date.Day())
	assert.Equal(t, kst, rc.Date.Location())
	assert.False(t, rc.DryRun)
}

func TestScoringJobRunIDsAreUnique(t *testing.T) {
	runner := &fakeRunner{}
	job := NewScoringJob(runner, nil, contracts.PeriodDaily, 1, nil, logger.Nop())

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))
	require.Len(t, runner.got, 2)
	assert.NotEqual(t, runner.got[0].RunID, runner.got[1].RunID)
}

func TestScoringJobErrors(t *testing.T) {
	runner := &fakeRunner{err: errors.New("S1 failed: repository error")}
	job := NewScoringJob(runner, nil, contracts.PeriodDaily, 1, time.UTC, logger.Nop())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.False(t, scheduler.IsPermanent(err), "repository failures are retried")

	runner.err = context.Canceled
	err = job.Run(context.Background())
	require.Error(t, err)
	assert.True(t, scheduler.IsPermanent(err))
}

func TestScoringJobNamesAndSchedules(t *testing.T) {
	for _, period := range []contracts.PeriodType{contracts.PeriodDaily, contracts.PeriodWeekly, contracts.PeriodMonthly} {
		job := NewScoringJob(&fakeRunner{}, nil, period, 1, nil, logger.Nop())
		assert.Equal(t, "scoring_"+string(period), job.Name())

		s := scheduler.New(logger.Nop())
		assert.NoError(t, s.AddJob(job), "schedule %q must parse", job.Schedule())
	}
}

func TestRejectLogRotateJob(t *testing.T) {
	rl := selection.NewRejectLog(filepath.Join(t.TempDir(), "rejects.jsonl"), 10, 2, selection.WithCompress(false))
	defer rl.Close()

	job := NewRejectLogRotateJob(rl, logger.Nop())
	assert.Equal(t, "reject_log_rotate", job.Name())
	assert.NoError(t, job.Run(context.Background()))

	s := scheduler.New(logger.Nop())
	assert.NoError(t, s.AddJob(job))
}
