package ports

import (
	"context"

	"sectionhub-shopify-layer/internal/domain"

	"github.com/shopspring/decimal"
)

// CredentialExchanger trades an authorization code for a durable access token
type CredentialExchanger interface {
	Exchange(ctx context.Context, shop string, code string) (string, error)
}

// OneTimeChargeRequest describes a one-time purchase to create on the platform
type OneTimeChargeRequest struct {
	Name      string
	Price     decimal.Decimal
	ReturnURL string
}

// SubscriptionChargeRequest describes a recurring charge to create on the platform
type SubscriptionChargeRequest struct {
	Name      string
	Price     decimal.Decimal
	Interval  domain.PlanInterval
	TrialDays int
	ReturnURL string
}

// CreatedCharge is what the platform returns for a successfully created charge
type CreatedCharge struct {
	ExternalID      string
	ConfirmationURL string
}

// PlatformChargeStatus is the platform's view of a charge, used by the sweep
type PlatformChargeStatus string

const (
	PlatformChargePending   PlatformChargeStatus = "PENDING"
	PlatformChargeActive    PlatformChargeStatus = "ACTIVE"
	PlatformChargeDeclined  PlatformChargeStatus = "DECLINED"
	PlatformChargeCancelled PlatformChargeStatus = "CANCELLED"
	PlatformChargeExpired   PlatformChargeStatus = "EXPIRED"
)

// BillingGateway talks to the platform billing API on behalf of a shop.
// A platform user error is returned as *domain.BillingRejectedError.
type BillingGateway interface {
	CreateOneTimeCharge(ctx context.Context, shop, accessToken string, req OneTimeChargeRequest) (*CreatedCharge, error)
	CreateSubscriptionCharge(ctx context.Context, shop, accessToken string, req SubscriptionChargeRequest) (*CreatedCharge, error)
	GetChargeStatus(ctx context.Context, shop, accessToken string, kind domain.ChargeKind, externalID string) (PlatformChargeStatus, error)
}

// ThemeAssetService puts and deletes theme assets by key in the shop's main theme.
// Both operations are idempotent per key.
type ThemeAssetService interface {
	PutAsset(ctx context.Context, shop, accessToken, key, value string) error
	DeleteAsset(ctx context.Context, shop, accessToken, key string) error
}

// ChargeGuard prevents concurrent duplicate charge creation for the same target
type ChargeGuard interface {
	// Acquire returns false when another request already holds the key
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// GapAlerter surfaces reconciliation gaps to operators
type GapAlerter interface {
	Alert(ctx context.Context, gap *domain.ReconciliationGap) error
}

// EncryptionService encrypts credentials at rest
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// WebhookRegistrar subscribes a shop to webhook topics. Idempotent per topic.
type WebhookRegistrar interface {
	Register(ctx context.Context, shop, accessToken string, topics []string) error
}
