package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sur-analytics/opiniones-etl/internal/loadlog"
	"github.com/sur-analytics/opiniones-etl/internal/warehouse"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent load runs",
	Long:  "Displays the most recent phase entries from the warehouse load log.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Warehouse.DatabaseURL == "" {
			return eris.New("status: no warehouse.database_url configured")
		}

		wh, err := warehouse.NewPostgres(ctx, cfg.Warehouse.DatabaseURL, &cfg.Warehouse.Pool)
		if err != nil {
			return err
		}
		defer wh.Close()

		entries, err := loadlog.New(wh.Pool()).Recent(ctx, statusLimit)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		if len(entries) == 0 {
			zap.L().Info("no load entries found, run 'opiniones-etl run' to load the warehouse")
			return nil
		}

		formatStatusEntries(os.Stdout, entries)
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 50, "maximum entries to show")
	rootCmd.AddCommand(statusCmd)
}

// formatStatusEntries writes a tabular representation of load entries to w.
func formatStatusEntries(out io.Writer, entries []loadlog.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tRUN\tPHASE\tSTATUS\tSTARTED\tDURATION\tLOADED\tSKIPPED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t---\t-----\t------\t-------\t--------\t------\t-------\t-----")

	for _, e := range entries {
		dur := "-"
		if e.FinishedAt != nil {
			d := e.FinishedAt.Sub(e.StartedAt).Round(time.Second)
			dur = d.String()
		}

		errMsg := ""
		if e.Error != "" {
			errMsg = truncate(e.Error, 60)
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			e.ID,
			truncate(e.RunID, 8),
			e.Phase,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			e.Loaded,
			e.Skipped,
			errMsg,
		)
	}
	_ = w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
