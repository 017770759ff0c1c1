package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PlanInterval is the billing interval of a subscription plan
type PlanInterval string

const (
	IntervalMonthly PlanInterval = "monthly"
	IntervalAnnual  PlanInterval = "annual"
)

// Period returns how far a successful charge extends the subscription
func (i PlanInterval) Period() time.Duration {
	if i == IntervalAnnual {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

// Plan is a subscription offer. Owned by the admin surface, read-only here.
type Plan struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Interval  PlanInterval    `json:"interval"`
	TrialDays int             `json:"trial_days"`
	IsActive  bool            `json:"is_active"`
}

// Section is an installable theme snippet, the unit of sale
type Section struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	LiquidCode     string          `json:"-"`
	Price          decimal.Decimal `json:"price"`
	IsFree         bool            `json:"is_free"`
	DownloadsCount int64           `json:"downloads_count"`
}

// IsPaid reports whether installing the section requires entitlement
func (s *Section) IsPaid() bool {
	return !s.IsFree && s.Price.Sign() > 0
}

// Handle is the theme-safe file stem derived from the section name
func (s *Section) Handle() string {
	return strings.Join(strings.Fields(strings.ToLower(s.Name)), "-")
}

// AssetKey is the theme asset key the section is stored under
func (s *Section) AssetKey() string {
	return "sections/" + s.Handle() + ".liquid"
}

// Installation marks a section as currently present in a shop's theme
type Installation struct {
	ShopDomain  string    `json:"shop_domain"`
	SectionID   string    `json:"section_id"`
	InstalledAt time.Time `json:"installed_at"`
}
