package report

import (
	"fmt"
	"io"
	"time"

	"sectionhub-shopify-layer/internal/domain"

	"github.com/xuri/excelize/v2"
)

// GapSheet is the worksheet the gap report is written to
const GapSheet = "Sheet1"

var gapHeader = []interface{}{
	"Gap ID", "External charge", "Reason", "Shop", "Kind", "Amount",
	"Section", "Plan", "Occurrences", "Detected at", "Detail",
}

// WriteGaps writes open reconciliation gaps as an xlsx workbook for operators
func WriteGaps(w io.Writer, gaps []*domain.ReconciliationGap) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(GapSheet, "A1", &gapHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, gap := range gaps {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			gap.ID,
			gap.ExternalID,
			string(gap.Reason),
			gap.ShopDomain,
			string(gap.Kind),
			gap.Amount.StringFixed(2),
			gap.SectionID,
			gap.PlanID,
			gap.Occurrences,
			gap.DetectedAt.UTC().Format(time.RFC3339),
			gap.Detail,
		}
		if err := f.SetSheetRow(GapSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write gap %s: %w", gap.ID, err)
		}
	}

	if err := f.SetColWidth(GapSheet, "A", "K", 20); err != nil {
		return err
	}
	return f.Write(w)
}
