package repository

import (
	"context"
	"testing"
	"time"

	"sectionhub-shopify-layer/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRepository(mt *mtest.T) *MongoRepository {
	repo := NewMongoRepository(mt.DB)
	repo.now = func() time.Time { return fixedNow }
	return repo
}

func TestUpsertShop(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns stored shop", func(mt *mtest.T) {
		repo := newTestRepository(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "domain", Value: "foo.myshopify.com"},
			{Key: "accessToken", Value: "sealed"},
			{Key: "scopes", Value: bson.A{"write_themes"}},
			{Key: "installed", Value: true},
			{Key: "subscriptionStatus", Value: "active"},
			{Key: "subscriptionPlan", Value: "pro"},
		}}))

		shop, err := repo.UpsertShop(context.Background(), "foo.myshopify.com", "sealed", []string{"write_themes"})
		require.NoError(mt, err)
		assert.Equal(mt, id.Hex(), shop.ID)
		assert.Equal(mt, "foo.myshopify.com", shop.Domain)
		assert.True(mt, shop.Installed)
		assert.Equal(mt, domain.SubscriptionActive, shop.SubscriptionStatus)
		assert.Equal(mt, "pro", shop.SubscriptionPlan)
	})

	mt.Run("propagates write errors", func(mt *mtest.T) {
		repo := newTestRepository(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 11000, Name: "DuplicateKey", Message: "duplicate key",
		}))

		_, err := repo.UpsertShop(context.Background(), "foo.myshopify.com", "sealed", nil)
		assert.Error(mt, err)
	})
}

func TestGetShop(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		repo := newTestRepository(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.shops", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "domain", Value: "foo.myshopify.com"},
			{Key: "installed", Value: true},
		}))

		shop, err := repo.GetShop(context.Background(), "foo.myshopify.com")
		require.NoError(mt, err)
		assert.Equal(mt, domain.SubscriptionNone, shop.SubscriptionStatus)
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := newTestRepository(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.shops", mtest.FirstBatch))

		_, err := repo.GetShop(context.Background(), "missing.myshopify.com")
		assert.ErrorIs(mt, err, domain.ErrNotFound)
	})
}

func TestUpdateSubscriptionUnknownShop(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("no match", func(mt *mtest.T) {
		repo := newTestRepository(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := repo.UpdateSubscription(context.Background(), "missing.myshopify.com", domain.SubscriptionActive, "pro", "1", nil)
		assert.ErrorIs(mt, err, domain.ErrNotFound)
	})
}

func TestTransitionCharge(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	chargeDoc := func(status string) bson.D {
		return bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "shopDomain", Value: "foo.myshopify.com"},
			{Key: "kind", Value: "one_time"},
			{Key: "amount", Value: "10.00"},
			{Key: "status", Value: status},
			{Key: "sectionId", Value: "hero"},
			{Key: "externalId", Value: "1001"},
		}
	}

	mt.Run("moves pending charge", func(mt *mtest.T) {
		repo := newTestRepository(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: chargeDoc("active")}))

		charge, moved, err := repo.TransitionCharge(context.Background(), "1001", domain.ChargeActive, fixedNow)
		require.NoError(mt, err)
		assert.True(mt, moved)
		assert.Equal(mt, domain.ChargeActive, charge.Status)
		assert.True(mt, decimal.RequireFromString("10").Equal(charge.Amount))
	})

	mt.Run("already active is not moved", func(mt *mtest.T) {
		repo := newTestRepository(mt)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "test.charges", mtest.FirstBatch, chargeDoc("active")),
		)

		charge, moved, err := repo.TransitionCharge(context.Background(), "1001", domain.ChargeActive, fixedNow)
		require.NoError(mt, err)
		assert.False(mt, moved)
		assert.Equal(mt, domain.ChargeActive, charge.Status)
	})

	mt.Run("unknown charge", func(mt *mtest.T) {
		repo := newTestRepository(mt)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "test.charges", mtest.FirstBatch),
		)

		_, _, err := repo.TransitionCharge(context.Background(), "404", domain.ChargeActive, fixedNow)
		assert.ErrorIs(mt, err, domain.ErrNotFound)
	})

	mt.Run("rejects regression", func(mt *mtest.T) {
		repo := newTestRepository(mt)

		_, _, err := repo.TransitionCharge(context.Background(), "1001", domain.ChargePending, fixedNow)
		assert.Error(mt, err)
	})
}

func TestHasActiveOneTimeCharge(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("counts active charge", func(mt *mtest.T) {
		repo := newTestRepository(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.charges", mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}))

		ok, err := repo.HasActiveOneTimeCharge(context.Background(), "foo.myshopify.com", "hero")
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("none", func(mt *mtest.T) {
		repo := newTestRepository(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.charges", mtest.FirstBatch))

		ok, err := repo.HasActiveOneTimeCharge(context.Background(), "foo.myshopify.com", "hero")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})
}

func TestCreateChargeAssignsID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert", func(mt *mtest.T) {
		repo := newTestRepository(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		charge := &domain.Charge{
			ShopDomain: "foo.myshopify.com",
			Kind:       domain.ChargeOneTime,
			Amount:     decimal.RequireFromString("10"),
			Status:     domain.ChargePending,
			ExternalID: "1001",
		}
		require.NoError(mt, repo.CreateCharge(context.Background(), charge))
		assert.NotEmpty(mt, charge.ID)
		assert.Equal(mt, fixedNow, charge.CreatedAt)
	})
}

func TestListActivePlansOrdersByPrice(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("sorted", func(mt *mtest.T) {
		repo := newTestRepository(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.plans", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "annual"}, {Key: "price", Value: "99.00"}, {Key: "interval", Value: "annual"}, {Key: "isActive", Value: true}},
			bson.D{{Key: "_id", Value: "monthly"}, {Key: "price", Value: "9.99"}, {Key: "interval", Value: "monthly"}, {Key: "isActive", Value: true}},
		))

		plans, err := repo.ListActivePlans(context.Background())
		require.NoError(mt, err)
		require.Len(mt, plans, 2)
		assert.Equal(mt, "monthly", plans[0].ID)
		assert.Equal(mt, domain.IntervalAnnual, plans[1].Interval)
	})
}

func TestListOpenGaps(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes gaps", func(mt *mtest.T) {
		repo := newTestRepository(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.reconciliation_gaps", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "externalId", Value: "1001"},
			{Key: "reason", Value: "orphan_external_charge"},
			{Key: "shopDomain", Value: "foo.myshopify.com"},
			{Key: "kind", Value: "one_time"},
			{Key: "amount", Value: "10"},
			{Key: "occurrences", Value: 2},
			{Key: "open", Value: true},
		}))

		gaps, err := repo.ListOpenGaps(context.Background(), 10)
		require.NoError(mt, err)
		require.Len(mt, gaps, 1)
		assert.Equal(mt, domain.GapOrphanExternalCharge, gaps[0].Reason)
		assert.Equal(mt, 2, gaps[0].Occurrences)
		assert.True(mt, gaps[0].CanRebuildCharge())
	})
}

func TestResolveGapRejectsBadID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("bad id", func(mt *mtest.T) {
		repo := newTestRepository(mt)
		assert.Error(mt, repo.ResolveGap(context.Background(), "not-an-id", fixedNow))
	})
}
