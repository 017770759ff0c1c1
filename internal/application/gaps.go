package application

import (
	"context"
	"fmt"
	"time"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/infrastructure/metrics"
	"sectionhub-shopify-layer/internal/ports"

	"github.com/rs/zerolog"
)

// GapRecorder writes reconciliation gaps to the ledger and alerts operators.
// Alerting still happens when the ledger write fails.
type GapRecorder struct {
	gaps    ports.GapRepository
	alerter ports.GapAlerter
	logger  zerolog.Logger
	now     func() time.Time
}

// NewGapRecorder creates a new gap recorder
func NewGapRecorder(gaps ports.GapRepository, alerter ports.GapAlerter, logger zerolog.Logger) *GapRecorder {
	return &GapRecorder{
		gaps:    gaps,
		alerter: alerter,
		logger:  logger,
		now:     time.Now,
	}
}

// Record stores and alerts gap and returns it as an ErrReconciliationGap error
func (r *GapRecorder) Record(ctx context.Context, gap *domain.ReconciliationGap) error {
	if gap.DetectedAt.IsZero() {
		gap.DetectedAt = r.now()
	}
	if gap.Occurrences == 0 {
		gap.Occurrences = 1
	}

	metrics.ReconciliationGapsTotal.WithLabelValues(string(gap.Reason)).Inc()

	r.logger.Error().
		Str("event", "reconciliation_gap").
		Str("externalId", gap.ExternalID).
		Str("reason", string(gap.Reason)).
		Str("shop", gap.ShopDomain).
		Str("detail", gap.Detail).
		Msg("Billing ledger out of sync with platform")

	if err := r.gaps.RecordGap(ctx, gap); err != nil {
		r.logger.Error().
			Err(err).
			Str("externalId", gap.ExternalID).
			Msg("Failed to write reconciliation gap to ledger")
	}

	if err := r.alerter.Alert(ctx, gap); err != nil {
		r.logger.Error().
			Err(err).
			Str("externalId", gap.ExternalID).
			Msg("Failed to alert reconciliation gap")
	}

	return fmt.Errorf("%w: %s for charge %s", domain.ErrReconciliationGap, gap.Reason, gap.ExternalID)
}
