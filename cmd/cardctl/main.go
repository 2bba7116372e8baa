// Command cardctl runs catalog maintenance jobs: card import, price sync,
// user management and legacy migration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/padraicbc/mtgvault/config"
	"github.com/padraicbc/mtgvault/db"
	applog "github.com/padraicbc/mtgvault/logger"
)

var (
	cfg    *config.Config
	logger *zap.Logger
	bdb    *bun.DB
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "cardctl",
	Short:         "cardctl maintains the card catalog",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		var err error
		if logger, err = applog.New(cfg.Debug, "cardctl"); err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		bdb = db.Setup(cfg)
		if err := db.CreateTables(cmd.Context(), bdb); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logger != nil {
			_ = logger.Sync()
		}
		if bdb != nil {
			return bdb.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(pricesCmd)
	rootCmd.AddCommand(addUserCmd)
	rootCmd.AddCommand(migrateCmd)
}
