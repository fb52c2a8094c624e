package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sur-analytics/opiniones-etl/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the embedded comments API",
	Long:  "Serves an in-memory opinions API compatible with the REST source, useful for local end-to-end runs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := server.New(cfg.Server.Port)
		if err := srv.Start(ctx); err != nil {
			return eris.Wrap(err, "serve")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
