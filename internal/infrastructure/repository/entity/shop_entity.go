package entity

import (
	"time"

	"sectionhub-shopify-layer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoShopDoc represents a shop in MongoDB
type MongoShopDoc struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty"`
	Domain                string             `bson:"domain"`
	AccessToken           string             `bson:"accessToken"`
	Scopes                []string           `bson:"scopes"`
	Installed             bool               `bson:"installed"`
	SubscriptionStatus    string             `bson:"subscriptionStatus"`
	SubscriptionPlan      string             `bson:"subscriptionPlan,omitempty"`
	SubscriptionChargeID  string             `bson:"subscriptionChargeId,omitempty"`
	SubscriptionExpiresAt *time.Time         `bson:"subscriptionExpiresAt,omitempty"`
	UninstalledAt         *time.Time         `bson:"uninstalledAt,omitempty"`
	CreatedAt             time.Time          `bson:"createdAt"`
	UpdatedAt             time.Time          `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoShopDoc) ToDomain() *domain.Shop {
	status := domain.SubscriptionStatus(d.SubscriptionStatus)
	if status == "" {
		status = domain.SubscriptionNone
	}
	return &domain.Shop{
		ID:                    d.ID.Hex(),
		Domain:                d.Domain,
		AccessToken:           d.AccessToken,
		Scopes:                d.Scopes,
		Installed:             d.Installed,
		SubscriptionStatus:    status,
		SubscriptionPlan:      d.SubscriptionPlan,
		SubscriptionChargeID:  d.SubscriptionChargeID,
		SubscriptionExpiresAt: d.SubscriptionExpiresAt,
		UninstalledAt:         d.UninstalledAt,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
}
