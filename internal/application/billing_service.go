package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/infrastructure/metrics"
	"sectionhub-shopify-layer/internal/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// DefaultTrialDays applies to plans that do not set their own trial
	DefaultTrialDays = 7
	persistTimeout   = 5 * time.Second
)

// BillingService creates platform charges and mirrors them in the local ledger
type BillingService struct {
	shops     ports.ShopRepository
	charges   ports.ChargeRepository
	catalog   ports.CatalogRepository
	gateway   ports.BillingGateway
	tokens    ports.TokenVault
	guard     ports.ChargeGuard
	gaps      *GapRecorder
	returnURL string
	logger    zerolog.Logger
}

// NewBillingService creates the charge orchestrator. returnURL is where the
// platform sends the merchant after checkout.
func NewBillingService(
	shops ports.ShopRepository,
	charges ports.ChargeRepository,
	catalog ports.CatalogRepository,
	gateway ports.BillingGateway,
	tokens ports.TokenVault,
	guard ports.ChargeGuard,
	gaps *GapRecorder,
	returnURL string,
	logger zerolog.Logger,
) *BillingService {
	return &BillingService{
		shops:     shops,
		charges:   charges,
		catalog:   catalog,
		gateway:   gateway,
		tokens:    tokens,
		guard:     guard,
		gaps:      gaps,
		returnURL: returnURL,
		logger:    logger,
	}
}

// PurchaseSection starts a one-time purchase of a paid section
func (s *BillingService) PurchaseSection(ctx context.Context, shopDomain string, sectionID string) (string, error) {
	section, err := s.catalog.GetSection(ctx, sectionID)
	if err != nil {
		return "", err
	}
	if !section.IsPaid() {
		return "", fmt.Errorf("%w: %s", domain.ErrNothingToPurchase, sectionID)
	}
	return s.CreateOneTimeCharge(ctx, shopDomain, section.Price, section.Name, section.ID, s.returnURL)
}

// SubscribePlan starts a recurring subscription to an active plan
func (s *BillingService) SubscribePlan(ctx context.Context, shopDomain string, planID string) (string, error) {
	plan, err := s.catalog.GetPlan(ctx, planID)
	if err != nil {
		return "", err
	}
	if !plan.IsActive {
		return "", fmt.Errorf("plan %s is not active: %w", planID, domain.ErrNotFound)
	}
	trialDays := plan.TrialDays
	if trialDays <= 0 {
		trialDays = DefaultTrialDays
	}
	return s.CreateSubscriptionCharge(ctx, shopDomain, plan, trialDays, s.returnURL)
}

// CreateOneTimeCharge creates a one-time platform charge and records it pending
func (s *BillingService) CreateOneTimeCharge(ctx context.Context, shopDomain string, amount decimal.Decimal, label string, sectionID string, returnURL string) (string, error) {
	shop, token, err := s.loadShop(ctx, shopDomain)
	if err != nil {
		return "", err
	}

	release, err := s.acquire(ctx, shop.Domain+":section:"+sectionID)
	if err != nil {
		return "", err
	}
	defer release()

	created, err := s.gateway.CreateOneTimeCharge(ctx, shop.Domain, token, ports.OneTimeChargeRequest{
		Name:      label,
		Price:     amount,
		ReturnURL: returnURL,
	})
	if err != nil {
		return "", s.creationFailed(domain.ChargeOneTime, shop.Domain, err)
	}

	charge := &domain.Charge{
		ShopDomain:      shop.Domain,
		Kind:            domain.ChargeOneTime,
		Amount:          amount,
		Status:          domain.ChargePending,
		SectionID:       sectionID,
		ExternalID:      created.ExternalID,
		ConfirmationURL: created.ConfirmationURL,
	}
	s.persist(ctx, charge)
	return created.ConfirmationURL, nil
}

// CreateSubscriptionCharge creates a recurring platform charge and records it pending
func (s *BillingService) CreateSubscriptionCharge(ctx context.Context, shopDomain string, plan *domain.Plan, trialDays int, returnURL string) (string, error) {
	shop, token, err := s.loadShop(ctx, shopDomain)
	if err != nil {
		return "", err
	}

	release, err := s.acquire(ctx, shop.Domain+":plan:"+plan.ID)
	if err != nil {
		return "", err
	}
	defer release()

	created, err := s.gateway.CreateSubscriptionCharge(ctx, shop.Domain, token, ports.SubscriptionChargeRequest{
		Name:      plan.Name,
		Price:     plan.Price,
		Interval:  plan.Interval,
		TrialDays: trialDays,
		ReturnURL: returnURL,
	})
	if err != nil {
		return "", s.creationFailed(domain.ChargeSubscription, shop.Domain, err)
	}

	charge := &domain.Charge{
		ShopDomain:      shop.Domain,
		Kind:            domain.ChargeSubscription,
		Amount:          plan.Price,
		Status:          domain.ChargePending,
		PlanID:          plan.ID,
		ExternalID:      created.ExternalID,
		ConfirmationURL: created.ConfirmationURL,
	}
	s.persist(ctx, charge)
	return created.ConfirmationURL, nil
}

func (s *BillingService) loadShop(ctx context.Context, shopDomain string) (*domain.Shop, string, error) {
	if !domain.ValidShopDomain(shopDomain) {
		return nil, "", fmt.Errorf("%w: %q", domain.ErrInvalidShopDomain, shopDomain)
	}
	shop, err := s.shops.GetShop(ctx, domain.CanonicalDomain(shopDomain))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, "", fmt.Errorf("%w: %s", domain.ErrShopNotFound, shopDomain)
	}
	if err != nil {
		return nil, "", err
	}
	if !shop.Installed {
		return nil, "", fmt.Errorf("%w: %s is uninstalled", domain.ErrShopNotFound, shop.Domain)
	}
	token, err := s.tokens.ShopToken(shop)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, "", fmt.Errorf("%w: %s has no access token", domain.ErrShopNotFound, shop.Domain)
	}
	if err != nil {
		return nil, "", err
	}
	return shop, token, nil
}

// acquire takes the in-flight guard for key. A guard outage fails the request
// rather than risking a duplicate platform charge.
func (s *BillingService) acquire(ctx context.Context, key string) (func(), error) {
	ok, err := s.guard.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrChargeInFlight, key)
	}
	return func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to release charge guard")
		}
	}, nil
}

func (s *BillingService) creationFailed(kind domain.ChargeKind, shop string, err error) error {
	outcome := "failed"
	if _, ok := domain.IsBillingRejected(err); ok {
		outcome = "rejected"
	} else if errors.Is(err, domain.ErrTransientUpstream) {
		outcome = "transient"
	}
	metrics.ChargesCreatedTotal.WithLabelValues(string(kind), outcome).Inc()

	s.logger.Warn().
		Err(err).
		Str("shop", shop).
		Str("kind", string(kind)).
		Msg("Charge creation failed")
	return err
}

// persist writes the pending charge. The platform charge already exists, so the
// write is detached from the request and a failure becomes a gap instead of an error.
func (s *BillingService) persist(ctx context.Context, charge *domain.Charge) {
	metrics.ChargesCreatedTotal.WithLabelValues(string(charge.Kind), "created").Inc()

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.charges.CreateCharge(writeCtx, charge); err != nil {
		s.logger.Error().
			Err(err).
			Str("shop", charge.ShopDomain).
			Str("externalId", charge.ExternalID).
			Msg("Failed to record charge created on platform")
		_ = s.gaps.Record(writeCtx, &domain.ReconciliationGap{
			ExternalID:      charge.ExternalID,
			Reason:          domain.GapOrphanExternalCharge,
			Detail:          err.Error(),
			ShopDomain:      charge.ShopDomain,
			Kind:            charge.Kind,
			Amount:          charge.Amount,
			SectionID:       charge.SectionID,
			PlanID:          charge.PlanID,
			ConfirmationURL: charge.ConfirmationURL,
		})
		return
	}

	s.logger.Info().
		Str("shop", charge.ShopDomain).
		Str("externalId", charge.ExternalID).
		Str("kind", string(charge.Kind)).
		Str("amount", charge.Amount.String()).
		Msg("Charge created")
}

// ListPlans returns the active plans ordered by price
func (s *BillingService) ListPlans(ctx context.Context) ([]*domain.Plan, error) {
	return s.catalog.ListActivePlans(ctx)
}

// BillingSummary is a merchant's subscription state and charge history
type BillingSummary struct {
	Shop    string                    `json:"shop"`
	Status  domain.SubscriptionStatus `json:"subscription_status"`
	PlanID  string                    `json:"subscription_plan,omitempty"`
	Expires *time.Time                `json:"subscription_expires_at,omitempty"`
	Active  bool                      `json:"has_active_subscription"`
	Charges []*domain.Charge          `json:"charges"`
}

// Summary returns the merchant billing overview
func (s *BillingService) Summary(ctx context.Context, shopDomain string) (*BillingSummary, error) {
	if !domain.ValidShopDomain(shopDomain) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidShopDomain, shopDomain)
	}
	shop, err := s.shops.GetShop(ctx, domain.CanonicalDomain(shopDomain))
	if err != nil {
		return nil, err
	}
	charges, err := s.charges.ListChargesByShop(ctx, shop.Domain)
	if err != nil {
		return nil, err
	}
	if charges == nil {
		charges = []*domain.Charge{}
	}
	return &BillingSummary{
		Shop:    shop.Domain,
		Status:  shop.SubscriptionStatus,
		PlanID:  shop.SubscriptionPlan,
		Expires: shop.SubscriptionExpiresAt,
		Active:  shop.HasActiveSubscription(time.Now()),
		Charges: charges,
	}, nil
}
