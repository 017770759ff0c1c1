package ports

import "sectionhub-shopify-layer/internal/domain"

// Authorizer builds the platform authorize redirect for a shop
type Authorizer interface {
	AuthorizeURL(shop string, state string) (string, error)
}

// StateValidator checks the OAuth state echoed by the platform against the cookie value
type StateValidator interface {
	Validate(received, stored string) bool
}

// TokenVault seals access tokens for storage and opens a shop's stored token
type TokenVault interface {
	EncryptToken(token string) (string, error)
	ShopToken(shop *domain.Shop) (string, error)
}
