package order

import (
	"context"
	"sync"
	"testing"

	"github.com/Skotchmaster/jewelry_shop/internal/domain"
	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/Skotchmaster/jewelry_shop/internal/repo"
	"github.com/Skotchmaster/jewelry_shop/internal/service/cart"
	"github.com/Skotchmaster/jewelry_shop/internal/testutil"
	"github.com/Skotchmaster/jewelry_shop/internal/transport"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) PublishEvent(_ context.Context, _ string, ev any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev.(Event))
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	carts    *cart.Service
	events   *recorder
	customer models.User
	staff    models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	r := repo.New(db)
	ev := &recorder{}
	return &fixture{
		db:       db,
		svc:      New(r, ev, 0),
		carts:    cart.New(r),
		events:   ev,
		customer: testutil.SeedUser(t, db, domain.RoleCustomer),
		staff:    testutil.SeedUser(t, db, domain.RoleStaff),
	}
}

func (f *fixture) addToCart(t *testing.T, user models.User, productID uuid.UUID, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), user.ID, transport.CartItemRequest{ProductID: productID, Quantity: qty})
	require.NoError(t, err)
}

func (f *fixture) setStatus(t *testing.T, id uuid.UUID, status string) {
	t.Helper()
	require.NoError(t, f.db.Model(&models.Order{}).Where("id = ?", id).Update("status", status).Error)
}

func checkoutReq(coupon string) transport.CreateOrderRequest {
	return transport.CreateOrderRequest{
		Shipping: models.Shipping{
			FullName: "Nguyen Van A",
			Phone:    "0901 234 567",
			Address:  "12 Le Loi, District 1, HCMC",
		},
		PaymentMethod: "cod",
		CouponCode:    coupon,
	}
}

func TestCheckoutAndCancel_RestoresStockAndCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ring := testutil.SeedProduct(t, f.db, "Ring", 500000, 5)
	sale := testutil.SeedCoupon(t, f.db, models.Coupon{Code: "SALE10", Type: models.CouponPercent, Value: 10, UsageLimit: 10, Active: true})
	f.addToCart(t, f.customer, ring.ID, 2)

	o, err := f.svc.Checkout(ctx, testutil.Actor(f.customer), checkoutReq("sale10"))
	require.NoError(t, err)

	assert.Equal(t, int64(1000000), o.Subtotal)
	assert.Equal(t, int64(100000), o.Discount)
	assert.Equal(t, int64(0), o.ShippingFee)
	assert.Equal(t, int64(900000), o.Total)
	assert.Equal(t, models.OrderStatusProcessing, o.Status)
	assert.Equal(t, models.OrderSourceOnline, o.Source)
	assert.Equal(t, "SALE10", o.CouponCode)
	assert.Equal(t, "0901234567", o.Shipping.Phone)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Ring", o.Items[0].Name)
	assert.Equal(t, int64(500000), o.Items[0].Price)

	assert.Equal(t, 3, testutil.ReloadProduct(t, f.db, ring.ID).Quantity)
	assert.Equal(t, 1, testutil.ReloadCoupon(t, f.db, sale.ID).UsedCount)

	c, err := f.carts.Get(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Empty(t, c.Items, "cart is cleared after checkout")

	cancelled, err := f.svc.Cancel(ctx, testutil.Actor(f.customer), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 5, testutil.ReloadProduct(t, f.db, ring.ID).Quantity)
	assert.Equal(t, 0, testutil.ReloadCoupon(t, f.db, sale.ID).UsedCount)

	_, err = f.svc.Cancel(ctx, testutil.Actor(f.customer), o.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 5, testutil.ReloadProduct(t, f.db, ring.ID).Quantity, "second cancel must not restock")

	assert.Equal(t, []string{EventOrderCreated, EventOrderCancelled}, f.events.types())
}

func TestCheckout_ShortStockWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ring := testutil.SeedProduct(t, f.db, "Ring", 500000, 5)
	bracelet := testutil.SeedProduct(t, f.db, "Bracelet", 300000, 1)
	sale := testutil.SeedCoupon(t, f.db, models.Coupon{Code: "SALE10", Type: models.CouponPercent, Value: 10, Active: true})
	f.addToCart(t, f.customer, ring.ID, 2)
	f.addToCart(t, f.customer, bracelet.ID, 1)

	// someone else bought the last bracelet in the meantime
	require.NoError(t, f.db.Model(&models.Product{}).Where("id = ?", bracelet.ID).Update("quantity", 0).Error)

	_, err := f.svc.Checkout(ctx, testutil.Actor(f.customer), checkoutReq("SALE10"))
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, domain.Message(err), "Bracelet")
	assert.Contains(t, domain.Message(err), "only 0 left")

	assert.Equal(t, 5, testutil.ReloadProduct(t, f.db, ring.ID).Quantity)
	assert.Equal(t, 0, testutil.ReloadCoupon(t, f.db, sale.ID).UsedCount)

	var orders int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)

	c, err := f.carts.Get(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Len(t, c.Items, 2, "cart survives a failed checkout")
	assert.Empty(t, f.events.types())
}

func TestCheckout_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := testutil.Actor(f.customer)

	tests := []struct {
		name   string
		mutate func(*transport.CreateOrderRequest)
	}{
		{name: "missing name", mutate: func(r *transport.CreateOrderRequest) { r.Shipping.FullName = " " }},
		{name: "missing phone", mutate: func(r *transport.CreateOrderRequest) { r.Shipping.Phone = "" }},
		{name: "bad phone", mutate: func(r *transport.CreateOrderRequest) { r.Shipping.Phone = "12345" }},
		{name: "missing address", mutate: func(r *transport.CreateOrderRequest) { r.Shipping.Address = "" }},
		{name: "bad method", mutate: func(r *transport.CreateOrderRequest) { r.PaymentMethod = "card" }},
		{name: "empty cart", mutate: func(r *transport.CreateOrderRequest) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := checkoutReq("")
			tt.mutate(&req)
			_, err := f.svc.Checkout(ctx, actor, req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCheckout_CouponRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ring := testutil.SeedProduct(t, f.db, "Ring", 500000, 5)
	testutil.SeedCoupon(t, f.db, models.Coupon{Code: "BIG", Type: models.CouponFixed, Value: 50000, MinOrder: 2000000, Active: true})
	testutil.SeedCoupon(t, f.db, models.Coupon{Code: "USED", Type: models.CouponFixed, Value: 50000, UsageLimit: 1, UsedCount: 1, Active: true})
	f.addToCart(t, f.customer, ring.ID, 1)

	for _, code := range []string{"BIG", "USED"} {
		_, err := f.svc.Checkout(ctx, testutil.Actor(f.customer), checkoutReq(code))
		assert.ErrorIs(t, err, domain.ErrConflict, code)
	}
	_, err := f.svc.Checkout(ctx, testutil.Actor(f.customer), checkoutReq("MISSING"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, 5, testutil.ReloadProduct(t, f.db, ring.ID).Quantity)
}

func TestCheckout_ShippingFeeAndSoldOut(t *testing.T) {
	f := newFixture(t)
	f.svc.ShippingFee = 30000
	ctx := context.Background()

	pendant := testutil.SeedProduct(t, f.db, "Pendant", 200000, 2)
	fixed := testutil.SeedCoupon(t, f.db, models.Coupon{Code: "BIGFIX", Type: models.CouponFixed, Value: 1000000, Active: true})
	f.addToCart(t, f.customer, pendant.ID, 2)

	o, err := f.svc.Checkout(ctx, testutil.Actor(f.customer), checkoutReq("BIGFIX"))
	require.NoError(t, err)
	assert.Equal(t, int64(400000), o.Subtotal)
	assert.Equal(t, int64(400000), o.Discount, "discount never exceeds subtotal")
	assert.Equal(t, int64(30000), o.Total)
	assert.Equal(t, 1, testutil.ReloadCoupon(t, f.db, fixed.ID).UsedCount)

	p := testutil.ReloadProduct(t, f.db, pendant.ID)
	assert.Equal(t, 0, p.Quantity)
	assert.Equal(t, models.ProductStatusCompleted, p.Status)

	_, err = f.svc.Cancel(ctx, testutil.Actor(f.staff), o.ID)
	require.NoError(t, err)
	p = testutil.ReloadProduct(t, f.db, pendant.ID)
	assert.Equal(t, 2, p.Quantity)
	assert.Equal(t, models.ProductStatusActive, p.Status)
}

func TestCheckout_UsesCartPriceSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ring := testutil.SeedProduct(t, f.db, "Ring", 500000, 5)
	f.addToCart(t, f.customer, ring.ID, 2)
	require.NoError(t, f.db.Model(&models.Product{}).Where("id = ?", ring.ID).Update("price", 800000).Error)

	c, err := f.carts.Get(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(500000), c.Items[0].Price)

	o, err := f.svc.Checkout(ctx, testutil.Actor(f.customer), checkoutReq(""))
	require.NoError(t, err)
	assert.Equal(t, int64(1000000), o.Subtotal)
	assert.Equal(t, int64(1000000), o.Total)
	require.Len(t, o.Items, 1)
	assert.Equal(t, int64(500000), o.Items[0].Price)
	assert.Equal(t, 3, testutil.ReloadProduct(t, f.db, ring.ID).Quantity)
}

func TestCancel_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ring := testutil.SeedProduct(t, f.db, "Ring", 500000, 10)
	f.addToCart(t, f.customer, ring.ID, 1)
	o, err := f.svc.Checkout(ctx, testutil.Actor(f.customer), checkoutReq(""))
	require.NoError(t, err)

	stranger := testutil.SeedUser(t, f.db, domain.RoleCustomer)
	_, err = f.svc.Cancel(ctx, testutil.Actor(stranger), o.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Cancel(ctx, testutil.Actor(f.customer), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for _, status := range []string{models.OrderStatusShipped, models.OrderStatusCompleted, models.OrderStatusPaid} {
		f.setStatus(t, o.ID, status)
		_, err := f.svc.Cancel(ctx, testutil.Actor(f.customer), o.ID)
		assert.ErrorIs(t, err, domain.ErrConflict, status)

		got, err := f.svc.Get(ctx, testutil.Actor(f.customer), o.ID)
		require.NoError(t, err)
		assert.Equal(t, status, got.Status)
		assert.Equal(t, 9, testutil.ReloadProduct(t, f.db, ring.ID).Quantity)
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	staff := testutil.Actor(f.staff)

	ring := testutil.SeedProduct(t, f.db, "Ring", 500000, 10)
	f.addToCart(t, f.customer, ring.ID, 3)
	o, err := f.svc.Checkout(ctx, testutil.Actor(f.customer), checkoutReq(""))
	require.NoError(t, err)
	before := len(f.events.types())

	same, err := f.svc.UpdateStatus(ctx, staff, o.ID, "pending")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, same.Status)
	assert.Len(t, f.events.types(), before, "no-op emits nothing")

	_, err = f.svc.UpdateStatus(ctx, testutil.Actor(f.customer), o.ID, "shipped")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.UpdateStatus(ctx, staff, o.ID, "refunded")
	assert.ErrorIs(t, err, domain.ErrValidation)

	paid, err := f.svc.UpdateStatus(ctx, staff, o.ID, "paid")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)

	shipped, err := f.svc.UpdateStatus(ctx, staff, o.ID, "shipped")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, shipped.Status)

	_, err = f.svc.UpdateStatus(ctx, staff, o.ID, "cancelled")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 7, testutil.ReloadProduct(t, f.db, ring.ID).Quantity)

	for _, back := range []string{"processing", "pending", "paid"} {
		_, err = f.svc.UpdateStatus(ctx, staff, o.ID, back)
		assert.ErrorIs(t, err, domain.ErrConflict, back)
	}
	got, err := f.svc.Get(ctx, staff, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, got.Status)

	f.setStatus(t, o.ID, models.OrderStatusProcessing)
	cancelled, err := f.svc.UpdateStatus(ctx, staff, o.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, testutil.ReloadProduct(t, f.db, ring.ID).Quantity)

	_, err = f.svc.UpdateStatus(ctx, staff, o.ID, "processing")
	assert.ErrorIs(t, err, domain.ErrConflict)

	again, err := f.svc.UpdateStatus(ctx, staff, o.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, again.Status)
	assert.Equal(t, 10, testutil.ReloadProduct(t, f.db, ring.ID).Quantity, "no double restock")
}

func TestUpdateStatus_CompletedIsFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	staff := testutil.Actor(f.staff)

	ring := testutil.SeedProduct(t, f.db, "Ring", 500000, 3)
	f.addToCart(t, f.customer, ring.ID, 2)
	o, err := f.svc.Checkout(ctx, testutil.Actor(f.customer), checkoutReq(""))
	require.NoError(t, err)

	completed, err := f.svc.UpdateStatus(ctx, staff, o.ID, "completed")
	require.NoError(t, err, "forward skips are allowed")
	assert.Equal(t, models.OrderStatusCompleted, completed.Status)

	for _, back := range []string{"processing", "paid", "shipped", "cancelled"} {
		_, err = f.svc.UpdateStatus(ctx, staff, o.ID, back)
		assert.ErrorIs(t, err, domain.ErrConflict, back)
	}

	_, err = f.svc.Cancel(ctx, testutil.Actor(f.customer), o.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := f.svc.Get(ctx, staff, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, got.Status)
	assert.Equal(t, 1, testutil.ReloadProduct(t, f.db, ring.ID).Quantity)
}

func TestUpdateStatus_PaidCannotGoBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	staff := testutil.Actor(f.staff)

	ring := testutil.SeedProduct(t, f.db, "Ring", 500000, 3)
	f.addToCart(t, f.customer, ring.ID, 1)
	o, err := f.svc.Checkout(ctx, testutil.Actor(f.customer), checkoutReq(""))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, staff, o.ID, "paid")
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, staff, o.ID, "processing")
	assert.ErrorIs(t, err, domain.ErrConflict)

	cancelled, err := f.svc.UpdateStatus(ctx, staff, o.ID, "cancelled")
	require.NoError(t, err, "staff may still cancel a paid order")
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 3, testutil.ReloadProduct(t, f.db, ring.ID).Quantity)
}

func TestLegacyPendingStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ring := testutil.SeedProduct(t, f.db, "Ring", 500000, 4)
	f.addToCart(t, f.customer, ring.ID, 1)
	o, err := f.svc.Checkout(ctx, testutil.Actor(f.customer), checkoutReq(""))
	require.NoError(t, err)
	f.setStatus(t, o.ID, models.OrderStatusPending)

	got, err := f.svc.Get(ctx, testutil.Actor(f.customer), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, got.Status)

	items, total, err := f.svc.List(ctx, testutil.Actor(f.staff), repo.OrderFilter{Status: "processing", Page: repo.Page{Limit: 10}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)

	_, err = f.svc.Cancel(ctx, testutil.Actor(f.customer), o.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, testutil.ReloadProduct(t, f.db, ring.ID).Quantity)

	n, err := f.svc.Repo.NormalizeLegacyStatuses(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreatePOS(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ring := testutil.SeedProduct(t, f.db, "Ring", 500000, 5)
	earring := testutil.SeedProduct(t, f.db, "Earring", 150000, 5)

	req := transport.POSOrderRequest{
		Items: []transport.POSItem{
			{ProductID: ring.ID, Quantity: 1},
			{ProductID: earring.ID, Quantity: 2},
			{ProductID: ring.ID, Quantity: 1},
		},
		PaymentMethod: "cod",
	}

	_, err := f.svc.CreatePOS(ctx, testutil.Actor(f.customer), req)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	o, err := f.svc.CreatePOS(ctx, testutil.Actor(f.staff), req)
	require.NoError(t, err)
	assert.Equal(t, models.OrderSourcePOS, o.Source)
	assert.Equal(t, models.OrderStatusCompleted, o.Status)
	assert.NotNil(t, o.PaidAt)
	assert.Equal(t, int64(1300000), o.Subtotal)
	assert.Equal(t, int64(1300000), o.Total)
	assert.Len(t, o.Items, 2, "duplicate lines are merged")
	assert.Equal(t, 3, testutil.ReloadProduct(t, f.db, ring.ID).Quantity)
	assert.Equal(t, 3, testutil.ReloadProduct(t, f.db, earring.ID).Quantity)

	req.PaymentMethod = "online"
	req.CustomerID = f.customer.ID
	req.Items = []transport.POSItem{{ProductID: earring.ID, Quantity: 1}}
	online, err := f.svc.CreatePOS(ctx, testutil.Actor(f.staff), req)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, online.Status)
	assert.Equal(t, f.customer.ID, online.UserID)
	assert.Nil(t, online.PaidAt)

	req.Items = []transport.POSItem{{ProductID: earring.ID, Quantity: 10}}
	_, err = f.svc.CreatePOS(ctx, testutil.Actor(f.staff), req)
	assert.ErrorIs(t, err, domain.ErrConflict)

	req.Items = nil
	_, err = f.svc.CreatePOS(ctx, testutil.Actor(f.staff), req)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ring := testutil.SeedProduct(t, f.db, "Ring", 100000, 10)
	for range 3 {
		f.addToCart(t, f.customer, ring.ID, 1)
		_, err := f.svc.Checkout(ctx, testutil.Actor(f.customer), checkoutReq(""))
		require.NoError(t, err)
	}

	items, total, err := f.svc.ListMine(ctx, testutil.Actor(f.customer), repo.Page{Offset: 0, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 2)
	assert.Len(t, items[0].Items, 1)

	other := testutil.SeedUser(t, f.db, domain.RoleCustomer)
	_, total, err = f.svc.ListMine(ctx, testutil.Actor(other), repo.Page{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, _, err = f.svc.List(ctx, testutil.Actor(f.customer), repo.OrderFilter{Page: repo.Page{Limit: 10}})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
