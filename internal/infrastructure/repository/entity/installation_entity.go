package entity

import (
	"time"

	"sectionhub-shopify-layer/internal/domain"
)

// MongoInstallationDoc represents a section installed in a shop's theme
type MongoInstallationDoc struct {
	ShopDomain  string    `bson:"shopDomain"`
	SectionID   string    `bson:"sectionId"`
	InstalledAt time.Time `bson:"installedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoInstallationDoc) ToDomain() *domain.Installation {
	return &domain.Installation{
		ShopDomain:  d.ShopDomain,
		SectionID:   d.SectionID,
		InstalledAt: d.InstalledAt,
	}
}
