package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GapReason classifies why the local ledger disagrees with the platform
type GapReason string

const (
	// GapUnknownCharge: a billing callback named an external charge we have no row for
	GapUnknownCharge GapReason = "unknown_charge"
	// GapOrphanExternalCharge: the platform created a charge but our write failed
	GapOrphanExternalCharge GapReason = "orphan_external_charge"
	// GapTerminalState: a callback tried to activate a charge that is already declined
	GapTerminalState GapReason = "terminal_state"
	// GapShopUpdateFailed: the charge activated but the shop subscription write failed
	GapShopUpdateFailed GapReason = "shop_update_failed"
	// GapUnconfirmedCharge: a billing callback arrived but the platform did not report the charge active
	GapUnconfirmedCharge GapReason = "unconfirmed_charge"
)

// ReconciliationGap is an operator-facing record of a ledger mismatch.
// The charge fields are filled when known so the sweep can rebuild a missing row.
type ReconciliationGap struct {
	ID              string          `json:"id"`
	ExternalID      string          `json:"external_id"`
	Reason          GapReason       `json:"reason"`
	Detail          string          `json:"detail"`
	ShopDomain      string          `json:"shop_domain,omitempty"`
	Kind            ChargeKind      `json:"kind,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	SectionID       string          `json:"section_id,omitempty"`
	PlanID          string          `json:"plan_id,omitempty"`
	ConfirmationURL string          `json:"confirmation_url,omitempty"`
	Occurrences     int             `json:"occurrences"`
	DetectedAt      time.Time       `json:"detected_at"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
}

// CanRebuildCharge reports whether the gap carries enough to recreate the local row
func (g *ReconciliationGap) CanRebuildCharge() bool {
	return g.ShopDomain != "" && g.Kind != "" && g.ExternalID != ""
}
