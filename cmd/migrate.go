package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sur-analytics/opiniones-etl/internal/warehouse"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the warehouse star schema",
	Long:  "Creates the dimension, fact, and etl schemas with all tables and indexes. Safe to re-run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Warehouse.DatabaseURL == "" {
			return eris.New("migrate: no warehouse.database_url configured")
		}

		wh, err := warehouse.NewPostgres(ctx, cfg.Warehouse.DatabaseURL, &cfg.Warehouse.Pool)
		if err != nil {
			return err
		}
		defer wh.Close()

		if err := wh.Migrate(ctx); err != nil {
			return err
		}

		zap.L().Info("warehouse schema created")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
