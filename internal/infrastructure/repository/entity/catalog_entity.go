package entity

import (
	"sectionhub-shopify-layer/internal/domain"
)

// MongoSectionDoc represents a catalog section. Ids are assigned by the admin surface.
type MongoSectionDoc struct {
	ID             string `bson:"_id"`
	Name           string `bson:"name"`
	LiquidCode     string `bson:"liquidCode"`
	Price          string `bson:"price"`
	IsFree         bool   `bson:"isFree"`
	DownloadsCount int64  `bson:"downloadsCount"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoSectionDoc) ToDomain() *domain.Section {
	return &domain.Section{
		ID:             d.ID,
		Name:           d.Name,
		LiquidCode:     d.LiquidCode,
		Price:          parseDecimal(d.Price),
		IsFree:         d.IsFree,
		DownloadsCount: d.DownloadsCount,
	}
}

// MongoPlanDoc represents a subscription plan
type MongoPlanDoc struct {
	ID        string `bson:"_id"`
	Name      string `bson:"name"`
	Price     string `bson:"price"`
	Interval  string `bson:"interval"`
	TrialDays int    `bson:"trialDays"`
	IsActive  bool   `bson:"isActive"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoPlanDoc) ToDomain() *domain.Plan {
	return &domain.Plan{
		ID:        d.ID,
		Name:      d.Name,
		Price:     parseDecimal(d.Price),
		Interval:  domain.PlanInterval(d.Interval),
		TrialDays: d.TrialDays,
		IsActive:  d.IsActive,
	}
}
