package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/infrastructure/metrics"
	"sectionhub-shopify-layer/internal/ports"

	"github.com/rs/zerolog"
)

// Reconciler moves local charges to the state the platform reports and keeps
// shop subscriptions in line with them. Every transition is idempotent.
type Reconciler struct {
	shops    ports.ShopRepository
	charges  ports.ChargeRepository
	catalog  ports.CatalogRepository
	gateway  ports.BillingGateway
	tokens   ports.TokenVault
	gaps     ports.GapRepository
	recorder *GapRecorder
	logger   zerolog.Logger
	now      func() time.Time
}

// NewReconciler creates the billing reconciler
func NewReconciler(
	shops ports.ShopRepository,
	charges ports.ChargeRepository,
	catalog ports.CatalogRepository,
	gateway ports.BillingGateway,
	tokens ports.TokenVault,
	gaps ports.GapRepository,
	recorder *GapRecorder,
	logger zerolog.Logger,
) *Reconciler {
	return &Reconciler{
		shops:    shops,
		charges:  charges,
		catalog:  catalog,
		gateway:  gateway,
		tokens:   tokens,
		gaps:     gaps,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// ConfirmCharge settles the charge named by the billing return URL. The URL is
// not signed, so the transition follows the status the platform reports, never
// the callback itself. A charge the platform has not activated stays pending.
func (r *Reconciler) ConfirmCharge(ctx context.Context, externalID string) error {
	charge, err := r.charges.GetChargeByExternalID(ctx, externalID)
	if errors.Is(err, domain.ErrNotFound) {
		return r.recorder.Record(ctx, &domain.ReconciliationGap{
			ExternalID: externalID,
			Reason:     domain.GapUnknownCharge,
			Detail:     "billing callback for a charge with no local record",
		})
	}
	if err != nil {
		return fmt.Errorf("failed to load charge %s: %w", externalID, err)
	}
	if charge.Status == domain.ChargeActive {
		r.logger.Debug().Str("externalId", externalID).Msg("Charge already active")
		return nil
	}

	status, err := r.platformStatus(ctx, charge.ShopDomain, charge.Kind, externalID)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("shop", charge.ShopDomain).
			Str("externalId", externalID).
			Msg("Could not read charge status from platform")
		return r.recorder.Record(ctx, gapFromCharge(charge, domain.GapUnconfirmedCharge,
			"platform status unavailable: "+err.Error()))
	}

	switch status {
	case ports.PlatformChargeActive:
		return r.ResolveCharge(ctx, externalID)
	case ports.PlatformChargeDeclined, ports.PlatformChargeCancelled, ports.PlatformChargeExpired:
		return r.DeclineCharge(ctx, externalID)
	default:
		return r.recorder.Record(ctx, gapFromCharge(charge, domain.GapUnconfirmedCharge,
			fmt.Sprintf("billing callback while platform reports %s", status)))
	}
}

func (r *Reconciler) platformStatus(ctx context.Context, shopDomain string, kind domain.ChargeKind, externalID string) (ports.PlatformChargeStatus, error) {
	shop, err := r.shops.GetShop(ctx, shopDomain)
	if err != nil {
		return "", err
	}
	token, err := r.tokens.ShopToken(shop)
	if err != nil {
		return "", err
	}
	return r.gateway.GetChargeStatus(ctx, shop.Domain, token, kind, externalID)
}

// ResolveCharge activates a pending charge. Resolving an already active charge
// is a no-op; an unknown or declined charge is a reconciliation gap.
func (r *Reconciler) ResolveCharge(ctx context.Context, externalID string) error {
	charge, moved, err := r.charges.TransitionCharge(ctx, externalID, domain.ChargeActive, r.now())
	if errors.Is(err, domain.ErrNotFound) {
		return r.recorder.Record(ctx, &domain.ReconciliationGap{
			ExternalID: externalID,
			Reason:     domain.GapUnknownCharge,
			Detail:     "activation for a charge with no local record",
		})
	}
	if err != nil {
		return fmt.Errorf("failed to resolve charge %s: %w", externalID, err)
	}

	metrics.ChargesReconciledTotal.WithLabelValues(string(domain.ChargeActive), strconv.FormatBool(moved)).Inc()

	if !moved {
		if charge.Status == domain.ChargeActive {
			r.logger.Debug().Str("externalId", externalID).Msg("Charge already active")
			return nil
		}
		return r.recorder.Record(ctx, gapFromCharge(charge, domain.GapTerminalState,
			fmt.Sprintf("activation for a charge in status %s", charge.Status)))
	}

	r.logger.Info().
		Str("shop", charge.ShopDomain).
		Str("externalId", externalID).
		Str("kind", string(charge.Kind)).
		Msg("Charge activated")

	if charge.Kind == domain.ChargeSubscription {
		return r.activateSubscription(ctx, charge)
	}
	return nil
}

// DeclineCharge marks a pending charge declined. An active charge is left alone.
func (r *Reconciler) DeclineCharge(ctx context.Context, externalID string) error {
	charge, moved, err := r.charges.TransitionCharge(ctx, externalID, domain.ChargeDeclined, r.now())
	if errors.Is(err, domain.ErrNotFound) {
		return r.recorder.Record(ctx, &domain.ReconciliationGap{
			ExternalID: externalID,
			Reason:     domain.GapUnknownCharge,
			Detail:     "decline for a charge with no local record",
		})
	}
	if err != nil {
		return fmt.Errorf("failed to decline charge %s: %w", externalID, err)
	}

	metrics.ChargesReconciledTotal.WithLabelValues(string(domain.ChargeDeclined), strconv.FormatBool(moved)).Inc()

	if !moved && charge.Status == domain.ChargeActive {
		r.logger.Warn().
			Str("shop", charge.ShopDomain).
			Str("externalId", externalID).
			Msg("Decline received for an active charge, ignoring")
	}
	return nil
}

// CancelSubscription revokes the shop subscription bound to externalID.
// A pending charge is declined first.
func (r *Reconciler) CancelSubscription(ctx context.Context, externalID string) error {
	charge, err := r.charges.GetChargeByExternalID(ctx, externalID)
	if errors.Is(err, domain.ErrNotFound) {
		return r.recorder.Record(ctx, &domain.ReconciliationGap{
			ExternalID: externalID,
			Reason:     domain.GapUnknownCharge,
			Detail:     "cancellation for a subscription with no local record",
			Kind:       domain.ChargeSubscription,
		})
	}
	if err != nil {
		return err
	}
	if charge.Status == domain.ChargePending {
		if err := r.DeclineCharge(ctx, externalID); err != nil {
			return err
		}
	}

	shop, err := r.shops.GetShop(ctx, charge.ShopDomain)
	if err != nil {
		return err
	}
	if shop.SubscriptionChargeID != externalID {
		r.logger.Debug().
			Str("shop", shop.Domain).
			Str("externalId", externalID).
			Msg("Cancelled charge is not the shop's current subscription")
		return nil
	}
	if shop.SubscriptionStatus == domain.SubscriptionCancelled {
		return nil
	}

	if err := r.shops.UpdateSubscription(ctx, shop.Domain, domain.SubscriptionCancelled,
		shop.SubscriptionPlan, externalID, shop.SubscriptionExpiresAt); err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}

	r.logger.Info().
		Str("shop", shop.Domain).
		Str("externalId", externalID).
		Msg("Subscription cancelled")
	return nil
}

// ApplySubscriptionStatus applies a status reported by the subscription webhook
func (r *Reconciler) ApplySubscriptionStatus(ctx context.Context, externalID string, status ports.PlatformChargeStatus) error {
	switch status {
	case ports.PlatformChargeActive:
		return r.ResolveCharge(ctx, externalID)
	case ports.PlatformChargeCancelled, ports.PlatformChargeDeclined, ports.PlatformChargeExpired:
		return r.CancelSubscription(ctx, externalID)
	default:
		r.logger.Debug().
			Str("externalId", externalID).
			Str("status", string(status)).
			Msg("Subscription status needs no action")
		return nil
	}
}

// activateSubscription extends the shop from the charge's activation time, so
// applying it twice lands on the same expiry.
func (r *Reconciler) activateSubscription(ctx context.Context, charge *domain.Charge) error {
	interval := domain.IntervalMonthly
	if plan, err := r.catalog.GetPlan(ctx, charge.PlanID); err == nil {
		interval = plan.Interval
	} else {
		r.logger.Warn().
			Err(err).
			Str("planId", charge.PlanID).
			Msg("Plan lookup failed, using monthly period")
	}

	activatedAt := r.now()
	if charge.ActivatedAt != nil {
		activatedAt = *charge.ActivatedAt
	}
	expiresAt := activatedAt.Add(interval.Period())

	err := r.shops.UpdateSubscription(ctx, charge.ShopDomain, domain.SubscriptionActive, charge.PlanID, charge.ExternalID, &expiresAt)
	if err != nil {
		return r.recorder.Record(ctx, gapFromCharge(charge, domain.GapShopUpdateFailed, err.Error()))
	}

	r.logger.Info().
		Str("shop", charge.ShopDomain).
		Str("planId", charge.PlanID).
		Time("expiresAt", expiresAt).
		Msg("Subscription activated")
	return nil
}

func gapFromCharge(charge *domain.Charge, reason domain.GapReason, detail string) *domain.ReconciliationGap {
	return &domain.ReconciliationGap{
		ExternalID:      charge.ExternalID,
		Reason:          reason,
		Detail:          detail,
		ShopDomain:      charge.ShopDomain,
		Kind:            charge.Kind,
		Amount:          charge.Amount,
		SectionID:       charge.SectionID,
		PlanID:          charge.PlanID,
		ConfirmationURL: charge.ConfirmationURL,
	}
}

// SweepReport summarises one pass over the open gaps
type SweepReport struct {
	Scanned  int `json:"scanned"`
	Resolved int `json:"resolved"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Sweep works through open gaps and repairs the ones the platform can settle.
// Terminal-state gaps are left to operators.
func (r *Reconciler) Sweep(ctx context.Context, limit int) (*SweepReport, error) {
	open, err := r.gaps.ListOpenGaps(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list open gaps: %w", err)
	}

	report := &SweepReport{Scanned: len(open)}
	for _, gap := range open {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		var settled bool
		switch gap.Reason {
		case domain.GapUnknownCharge, domain.GapOrphanExternalCharge, domain.GapUnconfirmedCharge:
			settled, err = r.settleMissingCharge(ctx, gap)
		case domain.GapShopUpdateFailed:
			settled, err = r.settleShopUpdate(ctx, gap)
		default:
			settled = false
		}

		if err != nil {
			report.Failed++
			r.logger.Warn().
				Err(err).
				Str("gapId", gap.ID).
				Str("externalId", gap.ExternalID).
				Str("reason", string(gap.Reason)).
				Msg("Sweep could not settle gap")
			continue
		}
		if !settled {
			report.Skipped++
			continue
		}

		if err := r.gaps.ResolveGap(ctx, gap.ID, r.now()); err != nil {
			report.Failed++
			r.logger.Error().Err(err).Str("gapId", gap.ID).Msg("Failed to resolve gap")
			continue
		}
		report.Resolved++
		metrics.SweepResolvedTotal.Inc()
	}

	r.logger.Info().
		Int("scanned", report.Scanned).
		Int("resolved", report.Resolved).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("Reconciliation sweep finished")
	return report, nil
}

func (r *Reconciler) settleMissingCharge(ctx context.Context, gap *domain.ReconciliationGap) (bool, error) {
	charge, err := r.charges.GetChargeByExternalID(ctx, gap.ExternalID)
	missing := errors.Is(err, domain.ErrNotFound)
	if err != nil && !missing {
		return false, err
	}
	if missing && !gap.CanRebuildCharge() {
		return false, nil
	}

	shopDomain, kind := gap.ShopDomain, gap.Kind
	if !missing {
		shopDomain, kind = charge.ShopDomain, charge.Kind
	}

	status, err := r.platformStatus(ctx, shopDomain, kind, gap.ExternalID)
	if err != nil {
		return false, err
	}
	// still awaiting the merchant; check again next pass
	if !missing && status == ports.PlatformChargePending && charge.Status == domain.ChargePending {
		return false, nil
	}

	if missing {
		rebuilt := &domain.Charge{
			ShopDomain:      gap.ShopDomain,
			Kind:            gap.Kind,
			Amount:          gap.Amount,
			Status:          domain.ChargePending,
			SectionID:       gap.SectionID,
			PlanID:          gap.PlanID,
			ExternalID:      gap.ExternalID,
			ConfirmationURL: gap.ConfirmationURL,
		}
		if err := r.charges.CreateCharge(ctx, rebuilt); err != nil {
			return false, fmt.Errorf("failed to rebuild charge: %w", err)
		}
		r.logger.Info().
			Str("shop", rebuilt.ShopDomain).
			Str("externalId", rebuilt.ExternalID).
			Msg("Rebuilt missing charge record")
	}

	switch status {
	case ports.PlatformChargeActive:
		err = r.ResolveCharge(ctx, gap.ExternalID)
	case ports.PlatformChargeDeclined, ports.PlatformChargeCancelled, ports.PlatformChargeExpired:
		err = r.DeclineCharge(ctx, gap.ExternalID)
	}
	// a follow-up gap is recorded on its own; this one is settled
	if err != nil && !errors.Is(err, domain.ErrReconciliationGap) {
		return false, err
	}
	return true, nil
}

func (r *Reconciler) settleShopUpdate(ctx context.Context, gap *domain.ReconciliationGap) (bool, error) {
	charge, err := r.charges.GetChargeByExternalID(ctx, gap.ExternalID)
	if err != nil {
		return false, err
	}
	if charge.Status != domain.ChargeActive || charge.Kind != domain.ChargeSubscription {
		return false, nil
	}
	if err := r.activateSubscription(ctx, charge); err != nil {
		return false, err
	}
	return true, nil
}
