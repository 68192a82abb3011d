package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/factorscore/pkg/logger"
)

// Rotator starts a new log file
type Rotator interface {
	Rotate() error
}

// RejectLogRotateJob rotates the reject log once a day so each file covers one day
type RejectLogRotateJob struct {
	log    Rotator
	logger *logger.Logger
}

// NewRejectLogRotateJob creates a new reject log rotation job
func NewRejectLogRotateJob(log Rotator, l *logger.Logger) *RejectLogRotateJob {
	return &RejectLogRotateJob{
		log:    log,
		logger: l,
	}
}

// Name returns the job name
func (j *RejectLogRotateJob) Name() string {
	return "reject_log_rotate"
}

// Schedule returns the cron schedule (every day at midnight)
func (j *RejectLogRotateJob) Schedule() string {
	return "0 0 0 * * *"
}

// Run rotates the reject log
func (j *RejectLogRotateJob) Run(ctx context.Context) error {
	if err := j.log.Rotate(); err != nil {
		return fmt.Errorf("rotate reject log: %w", err)
	}

	j.logger.Debug("Reject log rotated")
	return nil
}
