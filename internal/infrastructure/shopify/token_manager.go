package shopify

import (
	"errors"
	"fmt"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/ports"

	"github.com/rs/zerolog"
)

var errEmptyToken = errors.New("token cannot be empty")

// TokenManager seals shop access tokens before storage and opens them for platform calls
type TokenManager struct {
	encryptionSvc ports.EncryptionService
	logger        zerolog.Logger
}

// NewTokenManager creates a new token manager
func NewTokenManager(encryptionSvc ports.EncryptionService, logger zerolog.Logger) *TokenManager {
	return &TokenManager{
		encryptionSvc: encryptionSvc,
		logger:        logger,
	}
}

// EncryptToken encrypts an access token before storage
func (tm *TokenManager) EncryptToken(token string) (string, error) {
	if token == "" {
		return "", errEmptyToken
	}
	return tm.encryptionSvc.Encrypt(token)
}

// DecryptToken decrypts an access token after retrieval
func (tm *TokenManager) DecryptToken(encryptedToken string) (string, error) {
	if encryptedToken == "" {
		return "", errEmptyToken
	}
	return tm.encryptionSvc.Decrypt(encryptedToken)
}

// ShopToken returns the usable access token of an installed shop.
// A shop without a stored token must go through OAuth again.
func (tm *TokenManager) ShopToken(shop *domain.Shop) (string, error) {
	if shop == nil || shop.AccessToken == "" {
		return "", fmt.Errorf("shop has no access token: %w", domain.ErrNotFound)
	}
	token, err := tm.DecryptToken(shop.AccessToken)
	if err != nil {
		tm.logger.Error().
			Err(err).
			Str("shop", shop.Domain).
			Msg("Failed to decrypt stored access token")
		return "", fmt.Errorf("failed to decrypt access token: %w", err)
	}
	return token, nil
}
