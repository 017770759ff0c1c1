package sqlstore

import (
	"testing"
	"time"

	"sectionhub-shopify-layer/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestShopRowToDomain(t *testing.T) {
	row := shopRow{
		ID:     "5b0e2c7e-8d6f-4c1e-9a59-3f1d2b4c6a10",
		Domain: "foo.myshopify.com",
		Scopes: "write_themes,read_themes",
	}

	shop := row.toDomain()

	assert.Equal(t, []string{"write_themes", "read_themes"}, shop.Scopes)
	assert.Equal(t, domain.SubscriptionNone, shop.SubscriptionStatus)
}

func TestShopRowWithoutScopes(t *testing.T) {
	row := shopRow{Domain: "foo.myshopify.com", SubscriptionStatus: "active"}

	shop := row.toDomain()

	assert.Nil(t, shop.Scopes)
	assert.Equal(t, domain.SubscriptionActive, shop.SubscriptionStatus)
}

func TestChargeRowConversion(t *testing.T) {
	activated := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	charge := &domain.Charge{
		ID:          "id",
		ShopDomain:  "foo.myshopify.com",
		Kind:        domain.ChargeSubscription,
		Amount:      decimal.RequireFromString("19.99"),
		Status:      domain.ChargeActive,
		PlanID:      "pro",
		ExternalID:  "2002",
		ActivatedAt: &activated,
	}

	back := chargeRowFromDomain(charge).toDomain()

	assert.Equal(t, charge.Kind, back.Kind)
	assert.True(t, charge.Amount.Equal(back.Amount))
	assert.Equal(t, charge.ExternalID, back.ExternalID)
	assert.Equal(t, &activated, back.ActivatedAt)
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "shops", shopRow{}.TableName())
	assert.Equal(t, "charges", chargeRow{}.TableName())
	assert.Equal(t, "installations", installationRow{}.TableName())
	assert.Equal(t, "sections", sectionRow{}.TableName())
	assert.Equal(t, "plans", planRow{}.TableName())
	assert.Equal(t, "reconciliation_gaps", gapRow{}.TableName())
}
