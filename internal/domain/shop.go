package domain

import (
	"strings"
	"time"
)

// ShopDomainSuffix is the tenant-domain suffix every shop must carry
const ShopDomainSuffix = ".myshopify.com"

// SubscriptionStatus is the entitlement state of a shop's recurring plan
type SubscriptionStatus string

const (
	SubscriptionNone      SubscriptionStatus = "none"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Shop represents a tenant installation of the app
type Shop struct {
	ID                    string             `json:"id"`
	Domain                string             `json:"domain"`
	AccessToken           string             `json:"-"`
	Scopes                []string           `json:"scopes"`
	Installed             bool               `json:"installed"`
	SubscriptionStatus    SubscriptionStatus `json:"subscription_status"`
	SubscriptionPlan      string             `json:"subscription_plan,omitempty"`
	SubscriptionChargeID  string             `json:"-"`
	SubscriptionExpiresAt *time.Time         `json:"subscription_expires_at,omitempty"`
	UninstalledAt         *time.Time         `json:"uninstalled_at,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// HasActiveSubscription reports whether the subscription grants entitlement at now.
// A missing expiry is treated as open-ended.
func (s *Shop) HasActiveSubscription(now time.Time) bool {
	if s == nil || s.SubscriptionStatus != SubscriptionActive {
		return false
	}
	if s.SubscriptionExpiresAt == nil {
		return true
	}
	return now.Before(*s.SubscriptionExpiresAt)
}

// CanonicalDomain reduces a shop identifier to its canonical form: lowercase,
// no protocol, no path and no trailing slash. It is idempotent.
func CanonicalDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	for {
		trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(d, "https://"), "http://"))
		if trimmed == d {
			break
		}
		d = trimmed
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSpace(d)
}

// ValidShopDomain reports whether the canonical form of raw is a platform tenant domain
func ValidShopDomain(raw string) bool {
	d := CanonicalDomain(raw)
	if !strings.HasSuffix(d, ShopDomainSuffix) {
		return false
	}
	name := strings.TrimSuffix(d, ShopDomainSuffix)
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}
