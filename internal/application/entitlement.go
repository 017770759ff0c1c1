package application

import (
	"context"
	"fmt"
	"time"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/ports"
)

// EntitlementGuard decides whether a shop may install a section. A live
// subscription and a paid one-time charge each grant entitlement on their own.
type EntitlementGuard struct {
	charges ports.ChargeRepository
	now     func() time.Time
}

// NewEntitlementGuard creates a new entitlement guard
func NewEntitlementGuard(charges ports.ChargeRepository) *EntitlementGuard {
	return &EntitlementGuard{charges: charges, now: time.Now}
}

// CanInstall returns nil when shop is entitled to section and a
// *domain.PaymentRequiredError carrying the price when it is not
func (g *EntitlementGuard) CanInstall(ctx context.Context, shop *domain.Shop, section *domain.Section) error {
	if !section.IsPaid() {
		return nil
	}
	if shop.HasActiveSubscription(g.now()) {
		return nil
	}

	paid, err := g.charges.HasActiveOneTimeCharge(ctx, shop.Domain, section.ID)
	if err != nil {
		return fmt.Errorf("failed to check section purchase: %w", err)
	}
	if paid {
		return nil
	}

	return &domain.PaymentRequiredError{SectionID: section.ID, Price: section.Price}
}
