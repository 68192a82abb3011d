package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/factorscore/internal/api"
	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/internal/scheduler"
	"github.com/wonny/factorscore/internal/scheduler/jobs"
	"github.com/wonny/factorscore/internal/selection"
	"github.com/wonny/factorscore/pkg/config"
	"github.com/wonny/factorscore/pkg/logger"
	"github.com/wonny/factorscore/pkg/redis"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스코어링 스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작 (+ /health, /metrics, /api 노출)
  list    - 등록된 작업과 스케줄
  run     - 특정 작업 즉시 실행 (재시도 포함, 완료까지 대기)

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler list
  go run ./cmd/quant scheduler run scoring_weekly`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업 (SCORING_TIMEZONE 기준):
- scoring_daily: 평일 오후 7시
- scoring_weekly: 금요일 오후 7시 30분
- scoring_monthly: 매월 1일 오전 6시 (전월 말일 기준)
- reject_log_rotate: 매일 자정

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== factorscore Scheduler ===")

	a, err := newApp(appOptions{})
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	sched, err := initScheduler(a.cfg, a.orch, a.locker(), a.rejects, a.log)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ops *api.Server
	if a.cfg.MetricsEnabled {
		ops = api.New(a.cfg, a.log, a.opsRouter(sched))
		go func() {
			if err := ops.Start(); err != nil {
				a.log.WithError(err).Error("Ops server failed")
			}
		}()
	}

	sched.Start()

	PrintSuccess("Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s (next: %s)\n", jobName, sched.NextRun(jobName).Format(time.RFC3339))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()

	if ops != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ops.Shutdown(shutdownCtx); err != nil {
			a.log.WithError(err).Warn("Ops server shutdown failed")
		}
	}

	for jobName, stat := range sched.GetJobStats() {
		fmt.Printf("📊 %s: %d runs, %d failed\n", jobName, stat.TotalRuns, stat.FailureCount)
	}
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 목록 조회는 DB 연결 없이 스케줄만 확인
	sched, err := initScheduler(cfg, nil, nil, selection.NewRejectLog("", 0, 0), logger.Nop())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	columns := []string{"Job", "Schedule"}
	widths := []int{20, 20}
	PrintTableHeader(columns, widths)
	stats := sched.GetJobStats()
	for _, jobName := range sched.GetAllJobs() {
		PrintTableRow([]string{jobName, stats[jobName].Schedule}, widths)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	a, err := newApp(appOptions{})
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	sched, err := initScheduler(a.cfg, a.orch, a.locker(), a.rejects, a.log)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := sched.RunJobNow(ctx, jobName)
	if err != nil {
		PrintError(fmt.Sprintf("Job failed after %d attempt(s): %v", result.Attempts, err))
		return err
	}

	PrintSuccess(fmt.Sprintf("Job completed in %.2fs", result.Duration.Seconds()))
	return nil
}

// initScheduler registers every scoring job
func initScheduler(cfg *config.Config, runner jobs.Runner, locker *redis.Locker, rejects *selection.RejectLog, log *logger.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.New(log,
		scheduler.WithLocation(cfg.Location()),
		scheduler.WithRetry(2, 5*time.Minute),
	)

	periods := []contracts.PeriodType{contracts.PeriodDaily, contracts.PeriodWeekly, contracts.PeriodMonthly}
	for _, period := range periods {
		job := jobs.NewScoringJob(runner, locker, period, cfg.Scoring.Workers, cfg.Location(), log)
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}

	if err := sched.AddJob(jobs.NewRejectLogRotateJob(rejects, log)); err != nil {
		return nil, err
	}

	return sched, nil
}
