package entity

import (
	"time"

	"sectionhub-shopify-layer/internal/domain"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoChargeDoc represents a billing charge in MongoDB. Amounts are stored as
// decimal strings so no precision is lost through float64.
type MongoChargeDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	ShopDomain      string             `bson:"shopDomain"`
	Kind            string             `bson:"kind"`
	Amount          string             `bson:"amount"`
	Status          string             `bson:"status"`
	SectionID       string             `bson:"sectionId,omitempty"`
	PlanID          string             `bson:"planId,omitempty"`
	ExternalID      string             `bson:"externalId"`
	ConfirmationURL string             `bson:"confirmationUrl"`
	CreatedAt       time.Time          `bson:"createdAt"`
	ActivatedAt     *time.Time         `bson:"activatedAt,omitempty"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoChargeDoc) ToDomain() *domain.Charge {
	return &domain.Charge{
		ID:              d.ID.Hex(),
		ShopDomain:      d.ShopDomain,
		Kind:            domain.ChargeKind(d.Kind),
		Amount:          parseDecimal(d.Amount),
		Status:          domain.ChargeStatus(d.Status),
		SectionID:       d.SectionID,
		PlanID:          d.PlanID,
		ExternalID:      d.ExternalID,
		ConfirmationURL: d.ConfirmationURL,
		CreatedAt:       d.CreatedAt,
		ActivatedAt:     d.ActivatedAt,
	}
}

// MongoChargeDocFromDomain converts a domain entity to a MongoDB document
func MongoChargeDocFromDomain(charge *domain.Charge) *MongoChargeDoc {
	doc := &MongoChargeDoc{
		ShopDomain:      charge.ShopDomain,
		Kind:            string(charge.Kind),
		Amount:          charge.Amount.String(),
		Status:          string(charge.Status),
		SectionID:       charge.SectionID,
		PlanID:          charge.PlanID,
		ExternalID:      charge.ExternalID,
		ConfirmationURL: charge.ConfirmationURL,
		CreatedAt:       charge.CreatedAt,
		ActivatedAt:     charge.ActivatedAt,
	}

	if charge.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(charge.ID); err == nil {
			doc.ID = objID
		}
	}

	return doc
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
