package sqlstore

import (
	"strings"
	"time"

	"sectionhub-shopify-layer/internal/domain"

	"github.com/shopspring/decimal"
)

type shopRow struct {
	ID                    string    `gorm:"type:uuid;primaryKey"`
	Domain                string    `gorm:"size:255;uniqueIndex;not null"`
	AccessToken           string    `gorm:"type:text"`
	Scopes                string    `gorm:"type:text"`
	Installed             bool      `gorm:"not null;default:true"`
	SubscriptionStatus    string    `gorm:"size:20;not null;default:none"`
	SubscriptionPlan      string    `gorm:"size:64"`
	SubscriptionChargeID  string    `gorm:"size:64"`
	SubscriptionExpiresAt *time.Time
	UninstalledAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (shopRow) TableName() string { return "shops" }

func (r *shopRow) toDomain() *domain.Shop {
	var scopes []string
	if r.Scopes != "" {
		scopes = strings.Split(r.Scopes, ",")
	}
	status := domain.SubscriptionStatus(r.SubscriptionStatus)
	if status == "" {
		status = domain.SubscriptionNone
	}
	return &domain.Shop{
		ID:                    r.ID,
		Domain:                r.Domain,
		AccessToken:           r.AccessToken,
		Scopes:                scopes,
		Installed:             r.Installed,
		SubscriptionStatus:    status,
		SubscriptionPlan:      r.SubscriptionPlan,
		SubscriptionChargeID:  r.SubscriptionChargeID,
		SubscriptionExpiresAt: r.SubscriptionExpiresAt,
		UninstalledAt:         r.UninstalledAt,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

type chargeRow struct {
	ID              string          `gorm:"type:uuid;primaryKey"`
	ShopDomain      string          `gorm:"size:255;not null;index:idx_charge_entitlement,priority:1"`
	Kind            string          `gorm:"size:20;not null;index:idx_charge_entitlement,priority:3"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Status          string          `gorm:"size:20;not null;index:idx_charge_entitlement,priority:4"`
	SectionID       string          `gorm:"size:64;index:idx_charge_entitlement,priority:2"`
	PlanID          string          `gorm:"size:64"`
	ExternalID      string          `gorm:"size:128;uniqueIndex;not null"`
	ConfirmationURL string          `gorm:"type:text"`
	CreatedAt       time.Time
	ActivatedAt     *time.Time
}

func (chargeRow) TableName() string { return "charges" }

func (r *chargeRow) toDomain() *domain.Charge {
	return &domain.Charge{
		ID:              r.ID,
		ShopDomain:      r.ShopDomain,
		Kind:            domain.ChargeKind(r.Kind),
		Amount:          r.Amount,
		Status:          domain.ChargeStatus(r.Status),
		SectionID:       r.SectionID,
		PlanID:          r.PlanID,
		ExternalID:      r.ExternalID,
		ConfirmationURL: r.ConfirmationURL,
		CreatedAt:       r.CreatedAt,
		ActivatedAt:     r.ActivatedAt,
	}
}

func chargeRowFromDomain(c *domain.Charge) *chargeRow {
	return &chargeRow{
		ID:              c.ID,
		ShopDomain:      c.ShopDomain,
		Kind:            string(c.Kind),
		Amount:          c.Amount,
		Status:          string(c.Status),
		SectionID:       c.SectionID,
		PlanID:          c.PlanID,
		ExternalID:      c.ExternalID,
		ConfirmationURL: c.ConfirmationURL,
		CreatedAt:       c.CreatedAt,
		ActivatedAt:     c.ActivatedAt,
	}
}

type installationRow struct {
	ShopDomain  string `gorm:"size:255;primaryKey"`
	SectionID   string `gorm:"size:64;primaryKey"`
	InstalledAt time.Time
}

func (installationRow) TableName() string { return "installations" }

type sectionRow struct {
	ID             string          `gorm:"size:64;primaryKey"`
	Name           string          `gorm:"size:255;not null"`
	LiquidCode     string          `gorm:"type:text"`
	Price          decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	IsFree         bool            `gorm:"not null;default:false"`
	DownloadsCount int64           `gorm:"not null;default:0"`
}

func (sectionRow) TableName() string { return "sections" }

func (r *sectionRow) toDomain() *domain.Section {
	return &domain.Section{
		ID:             r.ID,
		Name:           r.Name,
		LiquidCode:     r.LiquidCode,
		Price:          r.Price,
		IsFree:         r.IsFree,
		DownloadsCount: r.DownloadsCount,
	}
}

type planRow struct {
	ID        string          `gorm:"size:64;primaryKey"`
	Name      string          `gorm:"size:255;not null"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Interval  string          `gorm:"size:20;not null"`
	TrialDays int             `gorm:"not null;default:0"`
	IsActive  bool            `gorm:"not null;default:true"`
}

func (planRow) TableName() string { return "plans" }

func (r *planRow) toDomain() *domain.Plan {
	return &domain.Plan{
		ID:        r.ID,
		Name:      r.Name,
		Price:     r.Price,
		Interval:  domain.PlanInterval(r.Interval),
		TrialDays: r.TrialDays,
		IsActive:  r.IsActive,
	}
}

// gapRow keeps at most one open gap per (external id, reason) through a partial unique index
type gapRow struct {
	ID              string          `gorm:"type:uuid;primaryKey"`
	ExternalID      string          `gorm:"size:128;not null;uniqueIndex:idx_open_gap,where:open"`
	Reason          string          `gorm:"size:40;not null;uniqueIndex:idx_open_gap,where:open"`
	Detail          string          `gorm:"type:text"`
	ShopDomain      string          `gorm:"size:255"`
	Kind            string          `gorm:"size:20"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	SectionID       string          `gorm:"size:64"`
	PlanID          string          `gorm:"size:64"`
	ConfirmationURL string          `gorm:"type:text"`
	Occurrences     int             `gorm:"not null;default:1"`
	Open            bool            `gorm:"not null;default:true;index"`
	DetectedAt      time.Time
	ResolvedAt      *time.Time
}

func (gapRow) TableName() string { return "reconciliation_gaps" }

func (r *gapRow) toDomain() *domain.ReconciliationGap {
	return &domain.ReconciliationGap{
		ID:              r.ID,
		ExternalID:      r.ExternalID,
		Reason:          domain.GapReason(r.Reason),
		Detail:          r.Detail,
		ShopDomain:      r.ShopDomain,
		Kind:            domain.ChargeKind(r.Kind),
		Amount:          r.Amount,
		SectionID:       r.SectionID,
		PlanID:          r.PlanID,
		ConfirmationURL: r.ConfirmationURL,
		Occurrences:     r.Occurrences,
		DetectedAt:      r.DetectedAt,
		ResolvedAt:      r.ResolvedAt,
	}
}
