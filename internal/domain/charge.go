package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChargeKind distinguishes one-time purchases from recurring subscriptions
type ChargeKind string

const (
	ChargeOneTime      ChargeKind = "one_time"
	ChargeSubscription ChargeKind = "subscription"
)

// ChargeStatus is the local lifecycle state of a billing attempt
type ChargeStatus string

const (
	ChargePending  ChargeStatus = "pending"
	ChargeActive   ChargeStatus = "active"
	ChargeDeclined ChargeStatus = "declined"
)

// Charge represents one billing attempt mirrored from the platform billing ledger
type Charge struct {
	ID              string          `json:"id"`
	ShopDomain      string          `json:"shop_domain"`
	Kind            ChargeKind      `json:"charge_type"`
	Amount          decimal.Decimal `json:"amount"`
	Status          ChargeStatus    `json:"status"`
	SectionID       string          `json:"section_id,omitempty"`
	PlanID          string          `json:"plan_id,omitempty"`
	ExternalID      string          `json:"external_id"`
	ConfirmationURL string          `json:"confirmation_url"`
	CreatedAt       time.Time       `json:"created_at"`
	ActivatedAt     *time.Time      `json:"activated_at,omitempty"`
}

// CanTransition reports whether a charge may move from one status to another.
// The only legal moves are out of pending.
func CanTransition(from, to ChargeStatus) bool {
	return from == ChargePending && (to == ChargeActive || to == ChargeDeclined)
}
