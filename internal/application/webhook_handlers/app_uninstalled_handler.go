package webhook_handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/ports"

	"github.com/rs/zerolog"
)

// AppUninstalledHandler handles app uninstalled webhook events
type AppUninstalledHandler struct {
	logger zerolog.Logger
	shops  ports.ShopRepository
	now    func() time.Time
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler
func NewAppUninstalledHandler(logger zerolog.Logger, shops ports.ShopRepository) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		logger: logger,
		shops:  shops,
		now:    time.Now,
	}
}

type uninstalledPayload struct {
	Domain          string `json:"domain"`
	MyshopifyDomain string `json:"myshopify_domain"`
}

// CanHandle returns true if this handler can process the given topic
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == domain.TopicAppUninstalled
}

// Handle marks the shop uninstalled. The record and its subscription history
// are kept; a reinstall overwrites the token.
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var payload uninstalledPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse app uninstalled webhook payload: %w", err)
	}

	shopDomain := event.Shop
	if shopDomain == "" {
		shopDomain = payload.MyshopifyDomain
	}
	if shopDomain == "" {
		shopDomain = payload.Domain
	}
	if !domain.ValidShopDomain(shopDomain) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidShopDomain, shopDomain)
	}
	shopDomain = domain.CanonicalDomain(shopDomain)

	if err := h.shops.MarkUninstalled(ctx, shopDomain, h.now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.logger.Warn().Str("shop", shopDomain).Msg("Uninstall webhook for unknown shop")
			return nil
		}
		return fmt.Errorf("failed to mark shop uninstalled: %w", err)
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", shopDomain).
		Msg("App uninstalled")
	return nil
}
