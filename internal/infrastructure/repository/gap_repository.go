package repository

import (
	"context"
	"fmt"
	"time"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/infrastructure/repository/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RecordGap opens a gap for (external id, reason) or bumps the occurrence count
// of the one already open.
func (r *MongoRepository) RecordGap(ctx context.Context, gap *domain.ReconciliationGap) error {
	detectedAt := gap.DetectedAt
	if detectedAt.IsZero() {
		detectedAt = r.now()
	}

	onInsert := bson.M{
		"externalId": gap.ExternalID,
		"reason":     string(gap.Reason),
		"open":       true,
		"detectedAt": detectedAt,
	}
	if gap.ShopDomain != "" {
		onInsert["shopDomain"] = gap.ShopDomain
	}
	if gap.Kind != "" {
		onInsert["kind"] = string(gap.Kind)
	}
	if !gap.Amount.IsZero() {
		onInsert["amount"] = gap.Amount.String()
	}
	if gap.SectionID != "" {
		onInsert["sectionId"] = gap.SectionID
	}
	if gap.PlanID != "" {
		onInsert["planId"] = gap.PlanID
	}
	if gap.ConfirmationURL != "" {
		onInsert["confirmationUrl"] = gap.ConfirmationURL
	}

	filter := bson.M{"externalId": gap.ExternalID, "reason": string(gap.Reason), "open": true}
	update := bson.M{
		"$setOnInsert": onInsert,
		"$set":         bson.M{"detail": gap.Detail},
		"$inc":         bson.M{"occurrences": 1},
	}

	if _, err := r.gapsCollection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to record gap: %w", err)
	}
	return nil
}

// ListOpenGaps returns unresolved gaps, oldest first. limit <= 0 returns all.
func (r *MongoRepository) ListOpenGaps(ctx context.Context, limit int) ([]*domain.ReconciliationGap, error) {
	opts := options.Find().SetSort(bson.D{{Key: "detectedAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.gapsCollection.Find(ctx, bson.M{"open": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list gaps: %w", err)
	}
	defer cursor.Close(ctx)

	var gaps []*domain.ReconciliationGap
	for cursor.Next(ctx) {
		var doc entity.MongoGapDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode gap: %w", err)
		}
		gaps = append(gaps, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return gaps, nil
}

// ResolveGap closes an open gap
func (r *MongoRepository) ResolveGap(ctx context.Context, id string, at time.Time) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid gap id %q: %w", id, err)
	}
	update := bson.M{"$set": bson.M{"open": false, "resolvedAt": at}}
	if _, err := r.gapsCollection.UpdateOne(ctx, bson.M{"_id": objID, "open": true}, update); err != nil {
		return fmt.Errorf("failed to resolve gap: %w", err)
	}
	return nil
}
