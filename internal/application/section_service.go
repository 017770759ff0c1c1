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
)

// SectionService installs catalog sections into merchants' themes
type SectionService struct {
	shops         ports.ShopRepository
	catalog       ports.CatalogRepository
	installations ports.InstallationRepository
	assets        ports.ThemeAssetService
	tokens        ports.TokenVault
	guard         *EntitlementGuard
	logger        zerolog.Logger
	now           func() time.Time
}

// NewSectionService creates a new section service
func NewSectionService(
	shops ports.ShopRepository,
	catalog ports.CatalogRepository,
	installations ports.InstallationRepository,
	assets ports.ThemeAssetService,
	tokens ports.TokenVault,
	guard *EntitlementGuard,
	logger zerolog.Logger,
) *SectionService {
	return &SectionService{
		shops:         shops,
		catalog:       catalog,
		installations: installations,
		assets:        assets,
		tokens:        tokens,
		guard:         guard,
		logger:        logger,
		now:           time.Now,
	}
}

// Install writes the section into the shop's main theme. Entitlement is checked
// right before the asset write; repeating an install converges on one record.
func (s *SectionService) Install(ctx context.Context, shopDomain string, sectionID string) (*domain.Installation, error) {
	shop, token, err := s.installedShop(ctx, shopDomain)
	if err != nil {
		return nil, s.failed("shop_not_found", err)
	}
	section, err := s.catalog.GetSection(ctx, sectionID)
	if err != nil {
		return nil, s.failed("section_not_found", err)
	}

	if err := s.guard.CanInstall(ctx, shop, section); err != nil {
		if pr, ok := domain.IsPaymentRequired(err); ok {
			s.logger.Info().
				Str("shop", shop.Domain).
				Str("sectionId", section.ID).
				Str("price", pr.Price.String()).
				Msg("Section install requires payment")
			return nil, s.failed("payment_required", err)
		}
		return nil, s.failed("error", err)
	}

	if err := s.assets.PutAsset(ctx, shop.Domain, token, section.AssetKey(), section.LiquidCode); err != nil {
		s.logger.Error().Err(err).Str("shop", shop.Domain).Str("sectionId", section.ID).Msg("Failed to write theme asset")
		return nil, s.failed("error", fmt.Errorf("failed to write theme asset: %w", err))
	}

	installation := &domain.Installation{
		ShopDomain:  shop.Domain,
		SectionID:   section.ID,
		InstalledAt: s.now(),
	}
	if err := s.installations.UpsertInstallation(ctx, installation); err != nil {
		s.logger.Error().Err(err).Str("shop", shop.Domain).Str("sectionId", section.ID).Msg("Failed to record installation")
		return nil, s.failed("error", fmt.Errorf("failed to record installation: %w", err))
	}

	if err := s.catalog.IncrementDownloads(ctx, section.ID); err != nil {
		s.logger.Warn().Err(err).Str("sectionId", section.ID).Msg("Failed to increment download count")
	}

	metrics.SectionInstallsTotal.WithLabelValues("installed").Inc()
	s.logger.Info().
		Str("shop", shop.Domain).
		Str("sectionId", section.ID).
		Str("assetKey", section.AssetKey()).
		Msg("Section installed")
	return installation, nil
}

// Uninstall removes the section file from the theme and drops the installation
func (s *SectionService) Uninstall(ctx context.Context, shopDomain string, sectionID string) error {
	shop, token, err := s.installedShop(ctx, shopDomain)
	if err != nil {
		return err
	}
	section, err := s.catalog.GetSection(ctx, sectionID)
	if err != nil {
		return err
	}

	if err := s.assets.DeleteAsset(ctx, shop.Domain, token, section.AssetKey()); err != nil {
		return fmt.Errorf("failed to delete theme asset: %w", err)
	}
	if err := s.installations.DeleteInstallation(ctx, shop.Domain, section.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to delete installation: %w", err)
	}

	s.logger.Info().
		Str("shop", shop.Domain).
		Str("sectionId", section.ID).
		Msg("Section uninstalled")
	return nil
}

// ListInstalled returns the catalog sections currently installed in the shop
func (s *SectionService) ListInstalled(ctx context.Context, shopDomain string) ([]*domain.Section, error) {
	if !domain.ValidShopDomain(shopDomain) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidShopDomain, shopDomain)
	}
	installs, err := s.installations.ListInstallations(ctx, domain.CanonicalDomain(shopDomain))
	if err != nil {
		return nil, err
	}
	if len(installs) == 0 {
		return []*domain.Section{}, nil
	}

	ids := make([]string, 0, len(installs))
	for _, in := range installs {
		ids = append(ids, in.SectionID)
	}
	return s.catalog.GetSections(ctx, ids)
}

// installedShop loads an installed shop and its token. Anything short of that
// means the merchant has to authenticate again.
func (s *SectionService) installedShop(ctx context.Context, shopDomain string) (*domain.Shop, string, error) {
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

func (s *SectionService) failed(outcome string, err error) error {
	metrics.SectionInstallsTotal.WithLabelValues(outcome).Inc()
	return err
}
