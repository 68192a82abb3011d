package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	scoringConfigPath string
	verbose           bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "factorscore - 횡단면 멀티팩터 스코어링 엔진",
	Long: `factorscore Unified CLI

유니버스 전체를 6개 팩터(momentum, value, quality, growth, stability, positioning)로
횡단면 정규화하여 종합 점수, 신뢰도, 추세, 추천 라벨을 산출합니다.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant score run --period weekly
  go run ./cmd/quant score run --input config/fixtures/sample_universe.json --dry-run
  go run ./cmd/quant score config validate
  go run ./cmd/quant scheduler start
  go run ./cmd/quant migrate
  go run ./cmd/quant test-db`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&scoringConfigPath, "config", "", "scoring config YAML (default: $SCORING_CONFIG or built-in)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs)")
}
