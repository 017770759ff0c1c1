package main

import (
	"context"
	"fmt"
	"os"

	"sectionhub-shopify-layer/internal/infrastructure/report"

	"github.com/spf13/cobra"
)

var (
	gapsOut   string
	gapsLimit int
)

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Inspect open reconciliation gaps",
}

var gapsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export open reconciliation gaps to an xlsx workbook",
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

		gaps, err := a.store.ListOpenGaps(ctx, gapsLimit)
		if err != nil {
			return fmt.Errorf("failed to list open gaps: %w", err)
		}

		f, err := os.Create(gapsOut)
		if err != nil {
			return err
		}
		if err := report.WriteGaps(f, gaps); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		cmd.Printf("exported %d open gaps to %s\n", len(gaps), gapsOut)
		return nil
	},
}

func init() {
	gapsExportCmd.Flags().StringVar(&gapsOut, "out", "gaps.xlsx", "output workbook path")
	gapsExportCmd.Flags().IntVar(&gapsLimit, "limit", 1000, "maximum number of gaps to export")
	gapsCmd.AddCommand(gapsExportCmd)
}
