package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the scheduling sweeps without the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		a.logger.Info("worker started",
			zap.Duration("interval", a.cfg.SweepInterval),
			zap.Int("batch_size", a.cfg.SweepBatchSize),
		)
		return a.worker.Start(ctx)
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run both sweeps once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		return a.worker.RunOnce(cmd.Context())
	},
}
