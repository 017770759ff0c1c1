package repository

import (
	"context"
	"fmt"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/infrastructure/repository/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UpsertInstallation records a section as installed. Keyed on (shop, section).
func (r *MongoRepository) UpsertInstallation(ctx context.Context, installation *domain.Installation) error {
	installedAt := installation.InstalledAt
	if installedAt.IsZero() {
		installedAt = r.now()
	}

	filter := bson.M{"shopDomain": installation.ShopDomain, "sectionId": installation.SectionID}
	update := bson.M{"$set": bson.M{
		"shopDomain":  installation.ShopDomain,
		"sectionId":   installation.SectionID,
		"installedAt": installedAt,
	}}

	if _, err := r.installationsCollection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to upsert installation: %w", err)
	}
	return nil
}

// DeleteInstallation removes an installation. Removing an absent one is not an error.
func (r *MongoRepository) DeleteInstallation(ctx context.Context, shopDomain string, sectionID string) error {
	filter := bson.M{"shopDomain": shopDomain, "sectionId": sectionID}
	if _, err := r.installationsCollection.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete installation: %w", err)
	}
	return nil
}

// ListInstallations returns the shop's installations, newest first
func (r *MongoRepository) ListInstallations(ctx context.Context, shopDomain string) ([]*domain.Installation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "installedAt", Value: -1}})
	cursor, err := r.installationsCollection.Find(ctx, bson.M{"shopDomain": shopDomain}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", err)
	}
	defer cursor.Close(ctx)

	var installations []*domain.Installation
	for cursor.Next(ctx) {
		var doc entity.MongoInstallationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode installation: %w", err)
		}
		installations = append(installations, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return installations, nil
}
