package entity

import (
	"time"

	"sectionhub-shopify-layer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoGapDoc represents a reconciliation gap. Open is kept alongside ResolvedAt
// so the partial unique index can key on it.
type MongoGapDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	ExternalID      string             `bson:"externalId"`
	Reason          string             `bson:"reason"`
	Detail          string             `bson:"detail"`
	ShopDomain      string             `bson:"shopDomain,omitempty"`
	Kind            string             `bson:"kind,omitempty"`
	Amount          string             `bson:"amount,omitempty"`
	SectionID       string             `bson:"sectionId,omitempty"`
	PlanID          string             `bson:"planId,omitempty"`
	ConfirmationURL string             `bson:"confirmationUrl,omitempty"`
	Occurrences     int                `bson:"occurrences"`
	Open            bool               `bson:"open"`
	DetectedAt      time.Time          `bson:"detectedAt"`
	ResolvedAt      *time.Time         `bson:"resolvedAt,omitempty"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoGapDoc) ToDomain() *domain.ReconciliationGap {
	return &domain.ReconciliationGap{
		ID:              d.ID.Hex(),
		ExternalID:      d.ExternalID,
		Reason:          domain.GapReason(d.Reason),
		Detail:          d.Detail,
		ShopDomain:      d.ShopDomain,
		Kind:            domain.ChargeKind(d.Kind),
		Amount:          parseDecimal(d.Amount),
		SectionID:       d.SectionID,
		PlanID:          d.PlanID,
		ConfirmationURL: d.ConfirmationURL,
		Occurrences:     d.Occurrences,
		DetectedAt:      d.DetectedAt,
		ResolvedAt:      d.ResolvedAt,
	}
}
