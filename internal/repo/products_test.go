package repo

import (
	"context"
	"testing"
	"time"

	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/Skotchmaster/jewelry_shop/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecrementStock(t *testing.T) {
	db := testutil.NewDB(t)
	r := New(db)
	ctx := context.Background()
	now := time.Now().UTC()

	p := testutil.SeedProduct(t, db, "Ring", 500000, 3)

	ok, err := r.DecrementStock(ctx, p.ID, 2, now)
	require.NoError(t, err)
	assert.True(t, ok)
	got := testutil.ReloadProduct(t, db, p.ID)
	assert.Equal(t, 1, got.Quantity)
	assert.Equal(t, models.ProductStatusActive, got.Status)
	assert.Nil(t, got.CompletedAt)

	ok, err = r.DecrementStock(ctx, p.ID, 2, now)
	require.NoError(t, err)
	assert.False(t, ok, "must not go negative")
	assert.Equal(t, 1, testutil.ReloadProduct(t, db, p.ID).Quantity)

	ok, err = r.DecrementStock(ctx, p.ID, 1, now)
	require.NoError(t, err)
	assert.True(t, ok)
	got = testutil.ReloadProduct(t, db, p.ID)
	assert.Equal(t, 0, got.Quantity)
	assert.Equal(t, models.ProductStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestRestock(t *testing.T) {
	db := testutil.NewDB(t)
	r := New(db)
	ctx := context.Background()

	p := testutil.SeedProduct(t, db, "Necklace", 900000, 1)
	ok, err := r.DecrementStock(ctx, p.ID, 1, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.Restock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	got := testutil.ReloadProduct(t, db, p.ID)
	assert.Equal(t, 2, got.Quantity)
	assert.Equal(t, models.ProductStatusActive, got.Status)
	assert.Nil(t, got.CompletedAt)

	ok, err = r.Restock(ctx, testutil.SeedUser(t, db, "customer").ID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "unknown product")
}

func TestCouponUsage(t *testing.T) {
	db := testutil.NewDB(t)
	r := New(db)
	ctx := context.Background()

	c := testutil.SeedCoupon(t, db, models.Coupon{Code: "ONCE", Type: models.CouponFixed, Value: 1000, UsageLimit: 1, Active: true})

	ok, err := r.IncrementCouponUsage(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.IncrementCouponUsage(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, ok, "limit reached")
	assert.Equal(t, 1, testutil.ReloadCoupon(t, db, c.ID).UsedCount)

	require.NoError(t, r.ReleaseCouponUsage(ctx, "once"))
	require.NoError(t, r.ReleaseCouponUsage(ctx, "once"))
	assert.Equal(t, 0, testutil.ReloadCoupon(t, db, c.ID).UsedCount)
}
