package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/infrastructure/repository/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateCharge inserts a new charge row
func (r *MongoRepository) CreateCharge(ctx context.Context, charge *domain.Charge) error {
	doc := entity.MongoChargeDocFromDomain(charge)
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = r.now()
	}

	if _, err := r.chargesCollection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create charge: %w", err)
	}

	charge.ID = doc.ID.Hex()
	charge.CreatedAt = doc.CreatedAt
	return nil
}

// GetChargeByExternalID retrieves a charge by the platform charge id
func (r *MongoRepository) GetChargeByExternalID(ctx context.Context, externalID string) (*domain.Charge, error) {
	var doc entity.MongoChargeDoc
	err := r.chargesCollection.FindOne(ctx, bson.M{"externalId": externalID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("charge %s: %w", externalID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get charge: %w", err)
	}
	return doc.ToDomain(), nil
}

// TransitionCharge moves a pending charge to its terminal status with a single
// conditional update. When the charge is no longer pending the stored row is
// returned unchanged with moved=false.
func (r *MongoRepository) TransitionCharge(ctx context.Context, externalID string, to domain.ChargeStatus, at time.Time) (*domain.Charge, bool, error) {
	if !domain.CanTransition(domain.ChargePending, to) {
		return nil, false, fmt.Errorf("invalid charge transition to %s", to)
	}

	set := bson.M{"status": string(to)}
	if to == domain.ChargeActive {
		set["activatedAt"] = at
	}
	filter := bson.M{"externalId": externalID, "status": string(domain.ChargePending)}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc entity.MongoChargeDoc
	err := r.chargesCollection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc)
	if err == nil {
		return doc.ToDomain(), true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to transition charge: %w", err)
	}

	current, err := r.GetChargeByExternalID(ctx, externalID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

// HasActiveOneTimeCharge reports whether the shop paid for the section
func (r *MongoRepository) HasActiveOneTimeCharge(ctx context.Context, shopDomain string, sectionID string) (bool, error) {
	filter := bson.M{
		"shopDomain": shopDomain,
		"sectionId":  sectionID,
		"kind":       string(domain.ChargeOneTime),
		"status":     string(domain.ChargeActive),
	}
	n, err := r.chargesCollection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count charges: %w", err)
	}
	return n > 0, nil
}

// ListChargesByShop returns the shop's charges, newest first
func (r *MongoRepository) ListChargesByShop(ctx context.Context, shopDomain string) ([]*domain.Charge, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.chargesCollection.Find(ctx, bson.M{"shopDomain": shopDomain}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list charges: %w", err)
	}
	defer cursor.Close(ctx)

	var charges []*domain.Charge
	for cursor.Next(ctx) {
		var doc entity.MongoChargeDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode charge: %w", err)
		}
		charges = append(charges, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return charges, nil
}
