package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/factorscore/pkg/config"
	"github.com/wonny/factorscore/pkg/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "스키마 생성 (data.*, scoring.*)",
	Long: `내장된 SQL 마이그레이션을 순서대로 적용합니다.
모든 문장은 IF NOT EXISTS 이므로 반복 실행해도 안전합니다.

Example:
  go run ./cmd/quant migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	applied, err := db.Migrate(ctx)
	for _, name := range applied {
		PrintSuccess(fmt.Sprintf("Applied %s", name))
	}
	if err != nil {
		PrintError(err.Error())
		return err
	}
	return nil
}
