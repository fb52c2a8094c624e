package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sur-analytics/opiniones-etl/internal/etl"
	"github.com/sur-analytics/opiniones-etl/internal/extract"
	"github.com/sur-analytics/opiniones-etl/internal/loadlog"
	"github.com/sur-analytics/opiniones-etl/internal/warehouse"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one full warehouse load",
	Long:  "Extracts all sources, loads the conformed dimensions in dependency order, then merges opinion facts from every origin.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Warehouse.DatabaseURL == "" {
			return eris.New("run: no warehouse.database_url configured")
		}
		if cfg.Relational.DatabaseURL == "" {
			return eris.New("run: no relational.database_url configured")
		}

		wh, err := warehouse.NewPostgres(ctx, cfg.Warehouse.DatabaseURL, &cfg.Warehouse.Pool)
		if err != nil {
			return err
		}
		defer wh.Close()

		relPool, err := pgxpool.New(ctx, cfg.Relational.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "run: create relational pool")
		}
		defer relPool.Close()
		if err := relPool.Ping(ctx); err != nil {
			return eris.Wrap(err, "run: ping relational database")
		}

		orch := etl.New(
			extract.NewCSVExtractor(cfg.CSV),
			extract.NewRelationalExtractor(relPool),
			extract.NewAPIExtractor(cfg.API),
			wh,
			loadlog.New(wh.Pool()),
		)

		runID := uuid.New().String()
		summary, err := orch.Run(ctx, runID)
		if err != nil {
			return eris.Wrap(err, "run: warehouse load")
		}

		zap.L().Info("run finished",
			zap.String("run_id", runID),
			zap.Int("products", summary.Products),
			zap.Int("clients", summary.Clients),
			zap.Int("data_sources", summary.DataSources),
			zap.Int("classifications", summary.Classifications),
			zap.Int("social_networks", summary.SocialNetworks),
			zap.Int("time_rows", summary.TimeRows),
			zap.Int("facts_loaded", summary.FactsLoaded()),
			zap.Int("facts_skipped", summary.FactsSkipped()),
		)

		fmt.Printf("Loaded %d facts (%d skipped) across %d origins\n",
			summary.FactsLoaded(), summary.FactsSkipped(), len(summary.Facts))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
