package ports

import (
	"context"
	"time"

	"sectionhub-shopify-layer/internal/domain"
)

// ShopRepository is the shop identity store. Domains are canonical on entry.
type ShopRepository interface {
	// UpsertShop is a single atomic insert-or-update keyed on the unique domain.
	// Subscription fields are never touched.
	UpsertShop(ctx context.Context, domain string, encryptedToken string, scopes []string) (*domain.Shop, error)
	GetShop(ctx context.Context, domain string) (*domain.Shop, error)
	UpdateSubscription(ctx context.Context, domain string, status domain.SubscriptionStatus, planID string, chargeID string, expiresAt *time.Time) error
	MarkUninstalled(ctx context.Context, domain string, at time.Time) error
}

// ChargeRepository is the local billing ledger
type ChargeRepository interface {
	CreateCharge(ctx context.Context, charge *domain.Charge) error
	GetChargeByExternalID(ctx context.Context, externalID string) (*domain.Charge, error)
	// TransitionCharge atomically moves a charge out of pending. It returns the charge
	// as stored after the call and whether this call performed the transition.
	TransitionCharge(ctx context.Context, externalID string, to domain.ChargeStatus, at time.Time) (*domain.Charge, bool, error)
	HasActiveOneTimeCharge(ctx context.Context, shopDomain string, sectionID string) (bool, error)
	ListChargesByShop(ctx context.Context, shopDomain string) ([]*domain.Charge, error)
}

// InstallationRepository tracks sections present in merchants' themes
type InstallationRepository interface {
	// UpsertInstallation is keyed on (shop, section) so concurrent installs converge
	UpsertInstallation(ctx context.Context, installation *domain.Installation) error
	DeleteInstallation(ctx context.Context, shopDomain string, sectionID string) error
	ListInstallations(ctx context.Context, shopDomain string) ([]*domain.Installation, error)
}

// CatalogRepository reads sections and plans owned by the admin surface
type CatalogRepository interface {
	GetSection(ctx context.Context, id string) (*domain.Section, error)
	GetSections(ctx context.Context, ids []string) ([]*domain.Section, error)
	IncrementDownloads(ctx context.Context, id string) error
	GetPlan(ctx context.Context, id string) (*domain.Plan, error)
	ListActivePlans(ctx context.Context) ([]*domain.Plan, error)
}

// GapRepository is the operator ledger of reconciliation gaps
type GapRepository interface {
	// RecordGap inserts an open gap or bumps the occurrence count of an existing one
	RecordGap(ctx context.Context, gap *domain.ReconciliationGap) error
	ListOpenGaps(ctx context.Context, limit int) ([]*domain.ReconciliationGap, error)
	ResolveGap(ctx context.Context, id string, at time.Time) error
}

// Store bundles every repository a backend provides
type Store interface {
	ShopRepository
	ChargeRepository
	InstallationRepository
	CatalogRepository
	GapRepository
	Close(ctx context.Context) error
}
