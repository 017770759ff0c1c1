package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrAuthenticationFailure is a bad or missing HMAC or state token. Never retried.
	ErrAuthenticationFailure = errors.New("authentication failure")

	// ErrExchangeFailed means the token endpoint rejected the authorization code
	ErrExchangeFailed = errors.New("credential exchange failed")

	// ErrNotFound is returned when a shop, section, plan or charge is absent
	ErrNotFound = errors.New("not found")

	// ErrShopNotFound is a missing, uninstalled or tokenless shop; the merchant must reauthenticate
	ErrShopNotFound = fmt.Errorf("shop %w", ErrNotFound)

	// ErrReconciliationGap marks a mismatch between the platform billing ledger and ours
	ErrReconciliationGap = errors.New("reconciliation gap")

	// ErrTransientUpstream is a network or timeout failure talking to the platform
	ErrTransientUpstream = errors.New("transient upstream failure")

	// ErrChargeInFlight rejects a duplicate charge request while one is being created
	ErrChargeInFlight = errors.New("charge creation already in progress")

	ErrInvalidShopDomain = errors.New("invalid shop domain")
	ErrNothingToPurchase = errors.New("section is free")
)

// PaymentRequiredError is returned by the entitlement guard for unpaid sections
type PaymentRequiredError struct {
	SectionID string
	Price     decimal.Decimal
}

func (e *PaymentRequiredError) Error() string {
	return fmt.Sprintf("payment required for section %s: %s", e.SectionID, e.Price.String())
}

// BillingRejectedError carries the platform's user-facing validation message
type BillingRejectedError struct {
	Field   string
	Message string
}

func (e *BillingRejectedError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("billing request rejected: %s: %s", e.Field, e.Message)
	}
	return "billing request rejected: " + e.Message
}

// IsPaymentRequired unwraps err into a PaymentRequiredError
func IsPaymentRequired(err error) (*PaymentRequiredError, bool) {
	var pr *PaymentRequiredError
	if errors.As(err, &pr) {
		return pr, true
	}
	return nil, false
}

// IsBillingRejected unwraps err into a BillingRejectedError
func IsBillingRejected(err error) (*BillingRejectedError, bool) {
	var br *BillingRejectedError
	if errors.As(err, &br) {
		return br, true
	}
	return nil, false
}
