package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/infrastructure/repository/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// GetSection retrieves a catalog section by id
func (r *MongoRepository) GetSection(ctx context.Context, id string) (*domain.Section, error) {
	var doc entity.MongoSectionDoc
	err := r.sectionsCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("section %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get section: %w", err)
	}
	return doc.ToDomain(), nil
}

// GetSections retrieves the sections with the given ids. Unknown ids are skipped.
func (r *MongoRepository) GetSections(ctx context.Context, ids []string) ([]*domain.Section, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := r.sectionsCollection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer cursor.Close(ctx)

	var sections []*domain.Section
	for cursor.Next(ctx) {
		var doc entity.MongoSectionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode section: %w", err)
		}
		sections = append(sections, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return sections, nil
}

// IncrementDownloads bumps the section's download counter
func (r *MongoRepository) IncrementDownloads(ctx context.Context, id string) error {
	if _, err := r.sectionsCollection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"downloadsCount": 1}}); err != nil {
		return fmt.Errorf("failed to increment downloads: %w", err)
	}
	return nil
}

// GetPlan retrieves a plan by id
func (r *MongoRepository) GetPlan(ctx context.Context, id string) (*domain.Plan, error) {
	var doc entity.MongoPlanDoc
	err := r.plansCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("plan %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return doc.ToDomain(), nil
}

// ListActivePlans returns active plans ordered by price. Prices are stored as
// strings so the ordering is done after decoding.
func (r *MongoRepository) ListActivePlans(ctx context.Context) ([]*domain.Plan, error) {
	cursor, err := r.plansCollection.Find(ctx, bson.M{"isActive": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer cursor.Close(ctx)

	var plans []*domain.Plan
	for cursor.Next(ctx) {
		var doc entity.MongoPlanDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode plan: %w", err)
		}
		plans = append(plans, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].Price.LessThan(plans[j].Price)
	})
	return plans, nil
}
