package application

import (
	"context"
	"fmt"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/infrastructure/metrics"
	"sectionhub-shopify-layer/internal/ports"

	"github.com/rs/zerolog"
)

// DefaultWebhookTopics are subscribed for every shop on install
var DefaultWebhookTopics = []string{
	domain.TopicAppUninstalled,
	domain.TopicAppSubscriptionsUpdate,
}

// OAuthService runs the install handshake. The callback checks run in a fixed
// order (state, then HMAC, then code exchange) because the code is single use.
type OAuthService struct {
	shops      ports.ShopRepository
	authorizer ports.Authorizer
	state      ports.StateValidator
	verify     QueryVerifier
	exchanger  ports.CredentialExchanger
	tokens     ports.TokenVault
	webhooks   ports.WebhookRegistrar
	apiSecret  string
	scopes     []string
	logger     zerolog.Logger
}

// NewOAuthService creates the OAuth application service. webhooks may be nil.
func NewOAuthService(
	shops ports.ShopRepository,
	authorizer ports.Authorizer,
	state ports.StateValidator,
	verify QueryVerifier,
	exchanger ports.CredentialExchanger,
	tokens ports.TokenVault,
	webhooks ports.WebhookRegistrar,
	apiSecret string,
	scopes []string,
	logger zerolog.Logger,
) *OAuthService {
	return &OAuthService{
		shops:      shops,
		authorizer: authorizer,
		state:      state,
		verify:     verify,
		exchanger:  exchanger,
		tokens:     tokens,
		webhooks:   webhooks,
		apiSecret:  apiSecret,
		scopes:     scopes,
		logger:     logger,
	}
}

// QueryVerifier checks the platform HMAC over callback query parameters
type QueryVerifier func(params map[string]string, secret string) bool

// CallbackInput is everything the OAuth callback carries. The stored state is
// passed explicitly, read from the cookie by the transport layer.
type CallbackInput struct {
	Query       map[string]string
	StoredState string
}

// BeginInstall validates the shop and returns the authorize URL carrying state
func (s *OAuthService) BeginInstall(ctx context.Context, rawShop string, state string) (string, error) {
	if !domain.ValidShopDomain(rawShop) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidShopDomain, rawShop)
	}
	shop := domain.CanonicalDomain(rawShop)

	authURL, err := s.authorizer.AuthorizeURL(shop, state)
	if err != nil {
		return "", err
	}

	s.logger.Info().
		Str("shop", shop).
		Msg("Starting OAuth install")
	return authURL, nil
}

// CompleteInstall verifies the callback, exchanges the code and upserts the shop
func (s *OAuthService) CompleteInstall(ctx context.Context, in CallbackInput) (*domain.Shop, error) {
	rawShop := in.Query["shop"]

	if !s.state.Validate(in.Query["state"], in.StoredState) {
		return nil, s.securityFailure("state", rawShop)
	}
	if !s.verify(in.Query, s.apiSecret) {
		return nil, s.securityFailure("hmac", rawShop)
	}
	if !domain.ValidShopDomain(rawShop) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidShopDomain, rawShop)
	}
	shopDomain := domain.CanonicalDomain(rawShop)

	code := in.Query["code"]
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", domain.ErrExchangeFailed)
	}

	accessToken, err := s.exchanger.Exchange(ctx, shopDomain, code)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to exchange authorization code")
		return nil, err
	}

	encryptedToken, err := s.tokens.EncryptToken(accessToken)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to encrypt access token")
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	shop, err := s.shops.UpsertShop(ctx, shopDomain, encryptedToken, s.scopes)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to save shop")
		return nil, fmt.Errorf("failed to save shop: %w", err)
	}

	metrics.InstallsTotal.Inc()
	s.logger.Info().
		Str("shop", shopDomain).
		Strs("scopes", s.scopes).
		Msg("OAuth install completed")

	if s.webhooks != nil {
		if err := s.webhooks.Register(ctx, shopDomain, accessToken, DefaultWebhookTopics); err != nil {
			s.logger.Warn().Err(err).Str("shop", shopDomain).Msg("Failed to register webhooks")
		}
	}

	return shop, nil
}

func (s *OAuthService) securityFailure(check string, shop string) error {
	metrics.AuthFailuresTotal.WithLabelValues(check).Inc()
	s.logger.Warn().
		Str("event", "security").
		Str("check", check).
		Str("shop", shop).
		Msg("OAuth callback rejected")
	return fmt.Errorf("%w: %s check failed", domain.ErrAuthenticationFailure, check)
}
