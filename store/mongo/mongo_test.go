package mongostore_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/warp/incentive-engine/generic"
	mongostore "github.com/warp/incentive-engine/store/mongo"
)

var (
	tenant = generic.TenantID("salon-1")
	day    = generic.NewDay(2025, time.March, 5)
)

func sampleSale() generic.DailySale {
	return generic.DailySale{
		TenantID:      tenant,
		StaffID:       "S1",
		Date:          day,
		ServiceSale:   decimal.NewFromInt(500),
		PackageSale:   decimal.NewFromInt(1000),
		CustomerCount: 2,
		AppliedRule:   generic.DefaultRuleSnapshot(),
	}
}

// =============================================================================
// QUERY DOCUMENTS
// =============================================================================

func TestDailySaleUpdate_NeverSetsReviewsOnUpdate(t *testing.T) {
	raw, err := bson.MarshalWithRegistry(mongostore.NewRegistry(), mongostore.DailySaleUpdate(sampleSale()))
	require.NoError(t, err)
	doc := bson.Raw(raw)

	// $set carries the pipeline-owned fields
	assert.Equal(t, bsontype.Decimal128, doc.Lookup("$set", "serviceSale").Type)
	assert.Equal(t, int64(2), doc.Lookup("$set", "customerCount").AsInt64())
	_, err = doc.LookupErr("$set", "appliedRule", "incentive", "rate")
	assert.NoError(t, err)

	// reviews are only initialized on insert
	_, err = doc.LookupErr("$set", "reviewsWithName")
	assert.Error(t, err)
	_, err = doc.LookupErr("$set", "reviewsWithPhoto")
	assert.Error(t, err)
	assert.Equal(t, int64(0), doc.Lookup("$setOnInsert", "reviewsWithName").AsInt64())
	assert.Equal(t, int64(0), doc.Lookup("$setOnInsert", "reviewsWithPhoto").AsInt64())
}

func TestRunFilters_AreTenantScoped(t *testing.T) {
	run := generic.BackfillRun{ID: "run-1", TenantID: tenant}
	assert.Equal(t, bson.M{"_id": "run-1", "tenantId": "salon-1"}, mongostore.RunFilter(run))

	f := mongostore.SettledRunFilter(tenant, day)
	assert.Equal(t, "salon-1", f["tenantId"])
	assert.Equal(t, string(generic.RunCompleted), f["status"])
	assert.Equal(t, bson.M{"$gte": day.AddDays(1).Start()}, f["startedAt"])
}

// =============================================================================
// DRIVER ROUND TRIPS (mock deployment, no server)
// =============================================================================

func newMockTest(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().
		ClientType(mtest.Mock).
		ClientOptions(options.Client().SetRegistry(mongostore.NewRegistry())))
}

func TestUpsertDailySale_MockDeployment(t *testing.T) {
	mt := newMockTest(t)

	mt.Run("success", func(mt *mtest.T) {
		store := mongostore.New(mt.Client, mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		require.NoError(mt, store.UpsertDailySale(context.Background(), sampleSale()))
	})

	mt.Run("retries once after a concurrent insert", func(mt *mtest.T) {
		store := mongostore.New(mt.Client, mt.DB)
		mt.AddMockResponses(
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		require.NoError(mt, store.UpsertDailySale(context.Background(), sampleSale()))
	})

	mt.Run("other write errors surface", func(mt *mtest.T) {
		store := mongostore.New(mt.Client, mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 2, Message: "bad value"}))

		assert.Error(mt, store.UpsertDailySale(context.Background(), sampleSale()))
	})
}

func TestGetDailySale_MockDeploymentNotFound(t *testing.T) {
	mt := newMockTest(t)

	mt.Run("empty cursor", func(mt *mtest.T) {
		store := mongostore.New(mt.Client, mt.DB)
		ns := mt.DB.Name() + ".daily_sales"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := store.GetDailySale(context.Background(), tenant, "S1", day)
		assert.ErrorIs(mt, err, generic.ErrNotFound)
	})
}

func TestHasCompletedRun_MockDeployment(t *testing.T) {
	mt := newMockTest(t)

	mt.Run("count", func(mt *mtest.T) {
		store := mongostore.New(mt.Client, mt.DB)
		ns := mt.DB.Name() + ".backfill_runs"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}))

		covered, err := store.HasCompletedRun(context.Background(), tenant, day)
		require.NoError(mt, err)
		assert.True(mt, covered)
	})
}
