package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sur-analytics/opiniones-etl/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "opiniones-etl",
	Short: "Customer opinions warehouse loader",
	Long:  "Extracts customer opinions from CSV files, a relational database, and a REST API, and loads them into a dimensional Postgres warehouse.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
