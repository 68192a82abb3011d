package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wonny/factorscore/internal/brain"
	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/internal/strategyconfig"
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "스코어링 실행 및 설정 관리",
	Long: `유니버스 스냅샷을 기준으로 팩터/종합 점수를 산출합니다.

Subcommands:
  run       - 스코어링 run 실행
  config    - 스코어링 설정 검증/출력
  run-info  - 저장된 run 감사 기록 조회
  snapshot  - run이 사용한 유니버스 스냅샷 조회

Example:
  go run ./cmd/quant score run --period weekly
  go run ./cmd/quant score run --input config/fixtures/sample_universe.json --dry-run
  go run ./cmd/quant score config validate --config config/scoring/default.yaml`,
}

var (
	scoreRunCmd = &cobra.Command{
		Use:   "run",
		Short: "스코어링 run 실행",
		Long: `Phase 1 (유니버스 스냅샷 + 정규화 테이블) 후 Phase 2 (엔티티별 병렬 계산)를 실행합니다.

Flags:
  --date      평가 기준일 (기본: 오늘, period에 맞게 anchor)
  --period    daily | weekly | monthly
  --workers   Phase 2 병렬도 (기본: SCORING_WORKERS)
  --input     JSON fixture 파일 (--dry-run 필수, DB 미사용)
  --dry-run   계산/검증만 수행, 저장하지 않음
  --top       출력할 상위 엔티티 수
  --json      결과를 JSON으로 출력`,
		RunE: runScore,
	}

	scoreConfigCmd = &cobra.Command{
		Use:   "config",
		Short: "스코어링 설정 관리",
	}

	scoreConfigValidateCmd = &cobra.Command{
		Use:   "validate",
		Short: "스코어링 설정 검증",
		RunE:  validateScoringConfig,
	}

	scoreConfigShowCmd = &cobra.Command{
		Use:   "show",
		Short: "적용될 스코어링 설정 출력 (YAML + hash)",
		RunE:  showScoringConfig,
	}

	scoreRunInfoCmd = &cobra.Command{
		Use:   "run-info [run_id]",
		Short: "run 감사 기록 조회",
		Args:  cobra.ExactArgs(1),
		RunE:  showRunInfo,
	}

	scoreSnapshotCmd = &cobra.Command{
		Use:   "snapshot [run_id]",
		Short: "run이 사용한 유니버스 스냅샷 조회 (지표별 커버리지)",
		Args:  cobra.ExactArgs(1),
		RunE:  showSnapshot,
	}

	// Flags
	scoreDate    string
	scorePeriod  string
	scoreWorkers int
	scoreInput   string
	scoreDryRun  bool
	scoreTop     int
	scoreJSON    bool
)

func init() {
	rootCmd.AddCommand(scoreCmd)
	scoreCmd.AddCommand(scoreRunCmd)
	scoreCmd.AddCommand(scoreConfigCmd)
	scoreCmd.AddCommand(scoreRunInfoCmd)
	scoreCmd.AddCommand(scoreSnapshotCmd)
	scoreConfigCmd.AddCommand(scoreConfigValidateCmd)
	scoreConfigCmd.AddCommand(scoreConfigShowCmd)

	scoreRunCmd.Flags().StringVar(&scoreDate, "date", "", "평가 기준일 (YYYY-MM-DD, 기본: 오늘)")
	scoreRunCmd.Flags().StringVar(&scorePeriod, "period", "daily", "daily | weekly | monthly")
	scoreRunCmd.Flags().IntVar(&scoreWorkers, "workers", 0, "Phase 2 병렬도 (기본: SCORING_WORKERS)")
	scoreRunCmd.Flags().StringVar(&scoreInput, "input", "", "JSON fixture 파일 (--dry-run 필수)")
	scoreRunCmd.Flags().BoolVar(&scoreDryRun, "dry-run", false, "저장 없이 계산만 수행")
	scoreRunCmd.Flags().IntVar(&scoreTop, "top", 20, "출력할 상위 엔티티 수 (0: 전체)")
	scoreRunCmd.Flags().BoolVar(&scoreJSON, "json", false, "결과를 JSON으로 출력")
}

func runScore(cmd *cobra.Command, args []string) error {
	runDate, err := parseRunDate(scoreDate, time.Now())
	if err != nil {
		return err
	}

	period, err := contracts.ParsePeriodType(scorePeriod)
	if err != nil {
		return err
	}

	a, err := newApp(appOptions{fixturePath: scoreInput, dryRun: scoreDryRun})
	if err != nil {
		return err
	}
	defer a.Close()

	workers := scoreWorkers
	if workers <= 0 {
		workers = a.cfg.Scoring.Workers
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc := brain.RunConfig{
		Date:    runDate,
		Period:  period,
		RunID:   uuid.NewString(),
		Workers: workers,
		DryRun:  scoreDryRun,
	}

	if !scoreJSON {
		PrintDoubleSeparator()
		fmt.Printf("  Scoring Run %s\n", rc.RunID)
		PrintSeparator()
		PrintKeyValue("Date", period.AnchorDate(runDate).Format("2006-01-02"), 10)
		PrintKeyValue("Period", string(period), 10)
		PrintKeyValue("Workers", fmt.Sprintf("%d", workers), 10)
		PrintKeyValue("Dry Run", fmt.Sprintf("%v", scoreDryRun), 10)
		PrintKeyValue("Config", a.orch.ConfigHash()[:12], 10)
		PrintSeparator()
	}

	result, err := a.orch.Run(ctx, rc)
	if err != nil && !errors.Is(err, context.Canceled) {
		PrintError(fmt.Sprintf("Run failed: %v", err))
		return err
	}

	if scoreJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(struct {
			Summary *contracts.RunSummary       `json:"summary"`
			Scores  []*contracts.CompositeScore `json:"scores"`
		}{result.Summary, result.Scores}); encErr != nil {
			return encErr
		}
		return err
	}

	printRunResult(result, scoreTop)

	if err != nil {
		PrintWarning(fmt.Sprintf("Run cancelled: %d entities not scheduled", result.Summary.Skipped))
		return err
	}
	return nil
}

func validateScoringConfig(cmd *cobra.Command, args []string) error {
	path := resolveScoringPath()

	cfg, _, err := strategyconfig.LoadOrDefault(path)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	hash, err := strategyconfig.Hash(cfg)
	if err != nil {
		return err
	}

	source := path
	if source == "" {
		source = "(built-in default)"
	}
	PrintSuccess(fmt.Sprintf("Config valid: %s", source))
	PrintKeyValue("Strategy", fmt.Sprintf("%s v%s", cfg.Meta.StrategyID, cfg.Meta.Version), 10)
	PrintKeyValue("Factors", fmt.Sprintf("%d (%d sub-metrics)", len(cfg.Factors), cfg.TotalComponents()), 10)
	PrintKeyValue("Hash", hash, 10)

	for _, w := range strategyconfig.Warn(cfg) {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
	return nil
}

func showScoringConfig(cmd *cobra.Command, args []string) error {
	path := resolveScoringPath()

	cfg, data, err := strategyconfig.LoadOrDefault(path)
	if err != nil {
		return err
	}

	snap, err := strategyconfig.NewRunSnapshot(cfg, data)
	if err != nil {
		return err
	}

	fmt.Printf("# strategy: %s v%s\n# hash: %s\n", snap.StrategyID, snap.Version, snap.ConfigHash)
	fmt.Print(snap.ConfigYAML)
	return nil
}

func showRunInfo(cmd *cobra.Command, args []string) error {
	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.scores.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	printSummary(summary)
	return nil
}

func showSnapshot(cmd *cobra.Command, args []string) error {
	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	snapshot, err := a.universe.LoadSnapshot(cmd.Context(), contracts.SnapshotIDForRun(args[0]))
	if err != nil {
		return err
	}

	PrintDoubleSeparator()
	fmt.Printf("  Universe Snapshot %s\n", snapshot.SnapshotID)
	PrintSeparator()
	PrintKeyValue("Date", snapshot.AsOfDate.Format("2006-01-02"), 10)
	PrintKeyValue("Period", string(snapshot.PeriodType), 10)
	PrintKeyValue("Entities", fmt.Sprintf("%d", snapshot.Count()), 10)
	PrintSeparator()

	widths := []int{24, 10}
	PrintTableHeader([]string{"Metric", "Coverage"}, widths)
	for _, metric := range a.scoring.MetricNames() {
		PrintTableRow([]string{metric, fmt.Sprintf("%.1f%%", snapshot.Coverage(metric)*100)}, widths)
	}
	return nil
}

// parseRunDate parses YYYY-MM-DD, defaulting to now
func parseRunDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format %q (YYYY-MM-DD): %w", s, err)
	}
	return parsed, nil
}
