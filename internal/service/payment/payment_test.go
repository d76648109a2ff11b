package payment

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Skotchmaster/jewelry_shop/internal/domain"
	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/Skotchmaster/jewelry_shop/internal/repo"
	"github.com/Skotchmaster/jewelry_shop/internal/service/order"
	"github.com/Skotchmaster/jewelry_shop/internal/testutil"
	"github.com/Skotchmaster/jewelry_shop/internal/vnpay"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const secret = "SECRETKEY"

type recorder struct {
	mu    sync.Mutex
	types []string
}

func (r *recorder) PublishEvent(_ context.Context, _ string, ev any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, ev.(order.Event).Type)
	return nil
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	events   *recorder
	customer models.User
}

func newFixture(t *testing.T, cfg vnpay.Config) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	ev := &recorder{}
	return &fixture{
		db:       db,
		svc:      New(repo.New(db), vnpay.New(cfg), ev, "http://shop.test/"),
		events:   ev,
		customer: testutil.SeedUser(t, db, domain.RoleCustomer),
	}
}

func configured() vnpay.Config {
	return vnpay.Config{
		TmnCode:    "TESTTMN",
		HashSecret: secret,
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "http://localhost:8080/api/v1/payments/vnpay/return",
	}
}

func (f *fixture) seedOrder(t *testing.T, status string, total int64) *models.Order {
	t.Helper()

	o := &models.Order{
		UserID:        f.customer.ID,
		Source:        models.OrderSourceOnline,
		PaymentMethod: models.PaymentCOD,
		Subtotal:      total,
		Total:         total,
		Status:        status,
		Items:         []models.OrderItem{{ProductID: uuid.New(), Name: "Ring", Price: total, Quantity: 1}},
	}
	require.NoError(t, f.db.Create(o).Error)
	return o
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	o, err := f.svc.Repo.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func callback(orderID uuid.UUID, amount int64, code string) url.Values {
	q := url.Values{}
	q.Set("vnp_TxnRef", vnpay.TxnRef(orderID, time.Now()))
	q.Set("vnp_Amount", strconv.FormatInt(amount*100, 10))
	q.Set("vnp_ResponseCode", code)
	q.Set("vnp_TransactionStatus", code)
	q.Set("vnp_TransactionNo", "14000001")
	q.Set("vnp_BankCode", "NCB")
	q.Set("vnp_SecureHash", vnpay.Sign(secret, q))
	return q
}

func TestCreatePayment(t *testing.T) {
	f := newFixture(t, configured())
	ctx := context.Background()
	owner := testutil.Actor(f.customer)

	o := f.seedOrder(t, models.OrderStatusProcessing, 900000)
	payURL, err := f.svc.CreatePayment(ctx, owner, o.ID, "10.1.1.1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(payURL, "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html?"))
	assert.Contains(t, payURL, "vnp_Amount=90000000")
	assert.Contains(t, payURL, "vnp_SecureHash=")

	got := f.reload(t, o.ID)
	assert.Equal(t, models.PaymentOnline, got.PaymentMethod)
	assert.Equal(t, "pending", got.PaymentInfo["state"])
	assert.NotEmpty(t, got.PaymentInfo["txnRef"])

	stranger := testutil.SeedUser(t, f.db, domain.RoleCustomer)
	_, err = f.svc.CreatePayment(ctx, testutil.Actor(stranger), o.ID, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.CreatePayment(ctx, owner, uuid.New(), "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	tests := []struct {
		status string
		total  int64
		want   error
		reason string
	}{
		{status: models.OrderStatusPaid, total: 1000, want: domain.ErrConflict, reason: "already paid"},
		{status: models.OrderStatusShipped, total: 1000, want: domain.ErrConflict, reason: "already finalized"},
		{status: models.OrderStatusCancelled, total: 1000, want: domain.ErrConflict, reason: "already finalized"},
		{status: models.OrderStatusProcessing, total: 0, want: domain.ErrValidation, reason: "positive"},
	}
	for _, tt := range tests {
		t.Run(tt.status+"_"+tt.reason, func(t *testing.T) {
			o := f.seedOrder(t, tt.status, tt.total)
			_, err := f.svc.CreatePayment(ctx, owner, o.ID, "")
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, domain.Message(err), tt.reason)
		})
	}
}

func TestPaymentURLFor_StampsOrderInPlace(t *testing.T) {
	f := newFixture(t, configured())
	o := f.seedOrder(t, models.OrderStatusProcessing, 900000)
	o.PaymentMethod = models.PaymentCOD

	_, err := f.svc.PaymentURLFor(context.Background(), o, "10.1.1.1")
	require.NoError(t, err)

	got := f.reload(t, o.ID)
	assert.Equal(t, models.PaymentOnline, o.PaymentMethod)
	assert.Equal(t, got.PaymentInfo, o.PaymentInfo)
	assert.Equal(t, "pending", o.PaymentInfo["state"])
}

func TestCreatePayment_NotConfigured(t *testing.T) {
	f := newFixture(t, vnpay.Config{})
	o := f.seedOrder(t, models.OrderStatusProcessing, 1000)

	_, err := f.svc.CreatePayment(context.Background(), testutil.Actor(f.customer), o.ID, "")
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestReconcile_Success(t *testing.T) {
	f := newFixture(t, configured())
	ctx := context.Background()
	o := f.seedOrder(t, models.OrderStatusProcessing, 900000)

	out := f.svc.Reconcile(ctx, callback(o.ID, 900000, "00"))
	assert.True(t, out.Paid)
	assert.Equal(t, RspConfirmed, out.RspCode)
	assert.Equal(t, "http://shop.test/orders/"+o.ID.String()+"?payStatus=success", f.svc.RedirectURL(out))

	got := f.reload(t, o.ID)
	assert.Equal(t, models.OrderStatusPaid, got.Status)
	assert.NotNil(t, got.PaidAt)
	assert.Equal(t, "00", got.PaymentInfo["vnp_ResponseCode"])
	assert.Equal(t, "true", got.PaymentInfo["verified"])
	assert.Equal(t, []string{order.EventOrderPaid}, f.events.types)

	again := f.svc.Reconcile(ctx, callback(o.ID, 900000, "00"))
	assert.Equal(t, RspAlreadyConfirmed, again.RspCode)
	assert.True(t, again.Paid)
	assert.Len(t, f.events.types, 1)
}

func TestReconcile_Failures(t *testing.T) {
	f := newFixture(t, configured())
	ctx := context.Background()

	t.Run("tampered", func(t *testing.T) {
		o := f.seedOrder(t, models.OrderStatusProcessing, 900000)
		q := callback(o.ID, 900000, "00")
		q.Set("vnp_Amount", "100")

		out := f.svc.Reconcile(ctx, q)
		assert.False(t, out.Paid)
		assert.Equal(t, RspBadChecksum, out.RspCode)
		assert.Equal(t, "http://shop.test/orders/"+o.ID.String()+"?payStatus=fail", f.svc.RedirectURL(out))

		got := f.reload(t, o.ID)
		assert.Equal(t, models.OrderStatusProcessing, got.Status)
		assert.Equal(t, "false", got.PaymentInfo["verified"], "payload is stored even when rejected")
	})

	t.Run("declined", func(t *testing.T) {
		o := f.seedOrder(t, models.OrderStatusProcessing, 500000)
		out := f.svc.Reconcile(ctx, callback(o.ID, 500000, "24"))
		assert.False(t, out.Paid)
		assert.Equal(t, RspConfirmed, out.RspCode)

		got := f.reload(t, o.ID)
		assert.Equal(t, models.OrderStatusProcessing, got.Status)
		assert.Equal(t, "24", got.PaymentInfo["vnp_ResponseCode"])
	})

	t.Run("amount mismatch", func(t *testing.T) {
		o := f.seedOrder(t, models.OrderStatusProcessing, 500000)
		out := f.svc.Reconcile(ctx, callback(o.ID, 400000, "00"))
		assert.False(t, out.Paid)
		assert.Equal(t, RspInvalidAmount, out.RspCode)
		assert.Equal(t, models.OrderStatusProcessing, f.reload(t, o.ID).Status)
	})

	t.Run("fractional amount", func(t *testing.T) {
		o := f.seedOrder(t, models.OrderStatusProcessing, 500000)
		q := callback(o.ID, 500000, "00")
		q.Set("vnp_Amount", "50000050")
		q.Set("vnp_SecureHash", vnpay.Sign(secret, q))

		out := f.svc.Reconcile(ctx, q)
		assert.False(t, out.Paid)
		assert.Equal(t, RspInvalidAmount, out.RspCode)
		assert.Equal(t, models.OrderStatusProcessing, f.reload(t, o.ID).Status)
	})

	t.Run("cancelled order", func(t *testing.T) {
		o := f.seedOrder(t, models.OrderStatusCancelled, 500000)
		out := f.svc.Reconcile(ctx, callback(o.ID, 500000, "00"))
		assert.False(t, out.Paid)
		assert.Equal(t, RspAlreadyConfirmed, out.RspCode)
		assert.Equal(t, models.OrderStatusCancelled, f.reload(t, o.ID).Status)
	})

	t.Run("unknown order", func(t *testing.T) {
		out := f.svc.Reconcile(ctx, callback(uuid.New(), 500000, "00"))
		assert.False(t, out.Paid)
		assert.Equal(t, RspOrderNotFound, out.RspCode)
		assert.Equal(t, "http://shop.test/orders?payStatus=fail", f.svc.RedirectURL(out))
	})

	t.Run("garbage", func(t *testing.T) {
		out := f.svc.Reconcile(ctx, url.Values{"vnp_TxnRef": {"x"}})
		assert.Equal(t, RspBadChecksum, out.RspCode)
		assert.Equal(t, "http://shop.test/orders?payStatus=fail", f.svc.RedirectURL(out))
	})

	assert.Empty(t, f.events.types)
}
