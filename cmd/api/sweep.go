package main

import (
	"context"

	"github.com/spf13/cobra"
)

var sweepLimit int

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one reconciliation sweep over open gaps and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		if sweepLimit > 0 {
			a.cfg.SweepBatchSize = sweepLimit
		}
		report, err := a.sweep(ctx)
		if err != nil {
			return err
		}
		if report == nil {
			a.logger.Info().Msg("Another replica holds the sweep lock")
			return nil
		}
		cmd.Printf("scanned=%d resolved=%d skipped=%d failed=%d\n",
			report.Scanned, report.Resolved, report.Skipped, report.Failed)
		return nil
	},
}

func init() {
	sweepCmd.Flags().IntVar(&sweepLimit, "limit", 0, "maximum number of gaps to examine (defaults to SWEEP_BATCH_SIZE)")
}
