package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/infrastructure/repository/entity"
	"sectionhub-shopify-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository implements ports.Store using MongoDB
type MongoRepository struct {
	client                  *mongo.Client
	shopsCollection         *mongo.Collection
	chargesCollection       *mongo.Collection
	installationsCollection *mongo.Collection
	sectionsCollection      *mongo.Collection
	plansCollection         *mongo.Collection
	gapsCollection          *mongo.Collection
	now                     func() time.Time
}

var _ ports.Store = (*MongoRepository)(nil)

// NewMongoRepository creates a new MongoDB repository
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		client:                  db.Client(),
		shopsCollection:         db.Collection("shops"),
		chargesCollection:       db.Collection("charges"),
		installationsCollection: db.Collection("installations"),
		sectionsCollection:      db.Collection("sections"),
		plansCollection:         db.Collection("plans"),
		gapsCollection:          db.Collection("reconciliation_gaps"),
		now:                     time.Now,
	}
}

// EnsureIndexes creates the unique keys the atomic upserts and transitions rely on
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		collection *mongo.Collection
		model      mongo.IndexModel
	}{
		{r.shopsCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "domain", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{r.chargesCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "externalId", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{r.chargesCollection, mongo.IndexModel{
			Keys: bson.D{{Key: "shopDomain", Value: 1}, {Key: "sectionId", Value: 1}, {Key: "kind", Value: 1}, {Key: "status", Value: 1}},
		}},
		{r.installationsCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "shopDomain", Value: 1}, {Key: "sectionId", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{r.gapsCollection, mongo.IndexModel{
			Keys: bson.D{{Key: "externalId", Value: 1}, {Key: "reason", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"open": true}),
		}},
	}

	for _, idx := range indexes {
		if _, err := idx.collection.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.collection.Name(), err)
		}
	}
	return nil
}

// Close disconnects the underlying client
func (r *MongoRepository) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}

// UpsertShop inserts the shop or refreshes its credential in one atomic operation.
// Subscription fields are only written on insert.
func (r *MongoRepository) UpsertShop(ctx context.Context, shopDomain string, encryptedToken string, scopes []string) (*domain.Shop, error) {
	now := r.now()
	filter := bson.M{"domain": shopDomain}
	update := bson.M{
		"$set": bson.M{
			"accessToken": encryptedToken,
			"scopes":      scopes,
			"installed":   true,
			"updatedAt":   now,
		},
		"$unset": bson.M{"uninstalledAt": ""},
		"$setOnInsert": bson.M{
			"domain":             shopDomain,
			"subscriptionStatus": string(domain.SubscriptionNone),
			"createdAt":          now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc entity.MongoShopDoc
	if err := r.shopsCollection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to upsert shop: %w", err)
	}

	return doc.ToDomain(), nil
}

// GetShop retrieves a shop by domain
func (r *MongoRepository) GetShop(ctx context.Context, shopDomain string) (*domain.Shop, error) {
	var doc entity.MongoShopDoc
	filter := bson.M{"domain": shopDomain}

	err := r.shopsCollection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("shop %s: %w", shopDomain, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}

	return doc.ToDomain(), nil
}

// UpdateSubscription records the subscription state of a shop
func (r *MongoRepository) UpdateSubscription(ctx context.Context, shopDomain string, status domain.SubscriptionStatus, planID string, chargeID string, expiresAt *time.Time) error {
	set := bson.M{
		"subscriptionStatus": string(status),
		"updatedAt":          r.now(),
	}
	if planID != "" {
		set["subscriptionPlan"] = planID
	}
	if chargeID != "" {
		set["subscriptionChargeId"] = chargeID
	}
	if expiresAt != nil {
		set["subscriptionExpiresAt"] = *expiresAt
	}

	result, err := r.shopsCollection.UpdateOne(ctx, bson.M{"domain": shopDomain}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("shop %s: %w", shopDomain, domain.ErrNotFound)
	}
	return nil
}

// MarkUninstalled flags the shop as uninstalled. The record is kept.
func (r *MongoRepository) MarkUninstalled(ctx context.Context, shopDomain string, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"installed":     false,
		"uninstalledAt": at,
		"updatedAt":     at,
	}}
	result, err := r.shopsCollection.UpdateOne(ctx, bson.M{"domain": shopDomain}, update)
	if err != nil {
		return fmt.Errorf("failed to mark shop uninstalled: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("shop %s: %w", shopDomain, domain.ErrNotFound)
	}
	return nil
}
