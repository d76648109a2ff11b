package order

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/Skotchmaster/jewelry_shop/internal/domain"
	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/Skotchmaster/jewelry_shop/internal/repo"
	"github.com/Skotchmaster/jewelry_shop/internal/service/coupon"
	"github.com/Skotchmaster/jewelry_shop/internal/transport"
	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
	"github.com/google/uuid"
)

var phoneRe = regexp.MustCompile(`^(\+84|84|0)\d{9,10}$`)

type Service struct {
	Repo        *repo.GormRepo
	Events      Publisher
	ShippingFee int64
	Now         func() time.Time
}

func New(r *repo.GormRepo, events Publisher, shippingFee int64) *Service {
	return &Service{Repo: r, Events: events, ShippingFee: shippingFee, Now: time.Now}
}

func (s *Service) now() time.Time {
	return s.Now().UTC()
}

type line struct {
	ProductID uuid.UUID
	Quantity  int
	// set for cart lines: price and name come from here, the live product only gates stock
	Snapshot *models.OrderItem
}

var statusRank = map[string]int{
	models.OrderStatusProcessing: 0,
	models.OrderStatusPaid:       1,
	models.OrderStatusShipped:    2,
	models.OrderStatusCompleted:  3,
}

// Checkout turns the customer's cart into an order, taking stock and consuming the coupon
// in the same transaction.
func (s *Service) Checkout(ctx context.Context, actor domain.Actor, req transport.CreateOrderRequest) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.checkout", "user_id", actor.UserID)

	shipping, err := validateShipping(req.Shipping)
	if err != nil {
		return nil, err
	}
	method, err := validateMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &models.Order{
		UserID:        actor.UserID,
		Source:        models.OrderSourceOnline,
		Shipping:      shipping,
		PaymentMethod: method,
		ShippingFee:   s.ShippingFee,
		Status:        models.OrderStatusProcessing,
	}

	err = s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		cart, err := tx.GetOrCreateCart(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return fmt.Errorf("%w: cart is empty", domain.ErrValidation)
		}

		lines := make([]line, 0, len(cart.Items))
		for _, it := range cart.Items {
			lines = append(lines, line{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Snapshot: &models.OrderItem{
					Name:     it.Name,
					Price:    it.Price,
					Image:    it.Image,
					Material: it.Material,
				},
			})
		}
		items, subtotal, err := reserve(ctx, tx, lines, now)
		if err != nil {
			return err
		}
		order.Items = items
		order.Subtotal = subtotal

		if code := repo.NormalizeCode(req.CouponCode); code != "" {
			if err := applyCoupon(ctx, tx, order, code, now); err != nil {
				return err
			}
		}
		order.Total = max(0, order.Subtotal+order.ShippingFee-order.Discount)

		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		return tx.ClearCart(ctx, cart.ID)
	})
	if err != nil {
		return nil, err
	}

	l.Info("order_created", "order_id", order.ID, "total", order.Total)
	Emit(ctx, s.Events, EventOrderCreated, order, "")
	return order, nil
}

// CreatePOS records an in-store sale. Cash sales complete immediately, online ones wait for payment.
func (s *Service) CreatePOS(ctx context.Context, actor domain.Actor, req transport.POSOrderRequest) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.pos", "staff_id", actor.UserID)

	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: not allowed", domain.ErrForbidden)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: items required", domain.ErrValidation)
	}
	lines := make([]line, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: productId required", domain.ErrValidation)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be > 0", domain.ErrValidation)
		}
		lines = append(lines, line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	method, err := validateMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if req.ShippingFee < 0 {
		return nil, fmt.Errorf("%w: shippingFee must be >= 0", domain.ErrValidation)
	}

	now := s.now()
	order := &models.Order{
		UserID:        actor.UserID,
		Source:        models.OrderSourcePOS,
		Shipping:      trimShipping(req.Shipping),
		PaymentMethod: method,
		ShippingFee:   req.ShippingFee,
		Status:        models.OrderStatusProcessing,
	}
	if method == models.PaymentCOD {
		order.Status = models.OrderStatusCompleted
		order.PaidAt = &now
	}

	err = s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		if req.CustomerID != uuid.Nil {
			if _, err := tx.GetUser(ctx, req.CustomerID); err != nil {
				return err
			}
			order.UserID = req.CustomerID
		}

		items, subtotal, err := reserve(ctx, tx, lines, now)
		if err != nil {
			return err
		}
		order.Items = items
		order.Subtotal = subtotal
		order.Total = max(0, order.Subtotal+order.ShippingFee)
		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	l.Info("pos_order_created", "order_id", order.ID, "status", order.Status, "total", order.Total)
	Emit(ctx, s.Events, EventOrderCreated, order, "")
	return order, nil
}

// Cancel lets the owner or staff cancel an order that is still processing.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.cancel", "order_id", id)

	var prev string
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanAccess(o.UserID) {
			return fmt.Errorf("%w: not allowed", domain.ErrForbidden)
		}

		switch o.Status {
		case models.OrderStatusProcessing:
		case models.OrderStatusCancelled:
			return fmt.Errorf("%w: order is already cancelled", domain.ErrConflict)
		case models.OrderStatusShipped, models.OrderStatusCompleted:
			return fmt.Errorf("%w: order has been %s and can no longer be cancelled", domain.ErrConflict, o.Status)
		default:
			return fmt.Errorf("%w: only processing orders can be cancelled, this one is %s", domain.ErrConflict, o.Status)
		}

		prev = o.Status
		return s.cancelInTx(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}

	o, err := s.Repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	l.Info("order_cancelled", "by", actor.UserID)
	Emit(ctx, s.Events, EventOrderCancelled, o, prev)
	return o, nil
}

// UpdateStatus is the staff transition. Setting the current status again changes nothing.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, requested string) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.update_status", "order_id", id)

	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: not allowed", domain.ErrForbidden)
	}
	next, ok := models.NormalizeOrderStatus(requested)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, requested)
	}

	var (
		prev    string
		changed bool
	)
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		prev = o.Status
		if o.Status == next {
			return nil
		}
		if o.Status == models.OrderStatusCancelled {
			return fmt.Errorf("%w: cancelled orders cannot be reopened", domain.ErrConflict)
		}

		if next == models.OrderStatusCancelled {
			if o.Status == models.OrderStatusShipped || o.Status == models.OrderStatusCompleted {
				return fmt.Errorf("%w: order has been %s and can no longer be cancelled", domain.ErrConflict, o.Status)
			}
			changed = true
			return s.cancelInTx(ctx, tx, o)
		}
		if statusRank[next] < statusRank[o.Status] {
			return fmt.Errorf("%w: order is %s and cannot move back to %s", domain.ErrConflict, o.Status, next)
		}
		changed = true

		fields := map[string]any{"status": next}
		if next == models.OrderStatusPaid && o.PaidAt == nil {
			fields["paid_at"] = s.now()
		}
		ok, err := tx.TransitionOrder(ctx, o.ID, fromStatuses(o.Status), fields)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order status changed concurrently, retry", domain.ErrConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o, err := s.Repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		return o, nil
	}

	l.Info("order_status_changed", "from", prev, "to", o.Status, "by", actor.UserID)
	typ := EventOrderStatusChanged
	if o.Status == models.OrderStatusCancelled {
		typ = EventOrderCancelled
	}
	Emit(ctx, s.Events, typ, o, prev)
	return o, nil
}

func (s *Service) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*models.Order, error) {
	o, err := s.Repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(o.UserID) {
		return nil, fmt.Errorf("%w: not allowed", domain.ErrForbidden)
	}
	return o, nil
}

func (s *Service) ListMine(ctx context.Context, actor domain.Actor, p repo.Page) ([]models.Order, int64, error) {
	return s.Repo.ListOrders(ctx, repo.OrderFilter{UserID: actor.UserID, Page: p})
}

func (s *Service) List(ctx context.Context, actor domain.Actor, f repo.OrderFilter) ([]models.Order, int64, error) {
	if !actor.IsStaff() {
		return nil, 0, fmt.Errorf("%w: not allowed", domain.ErrForbidden)
	}
	if f.Status != "" {
		st, ok := models.NormalizeOrderStatus(f.Status)
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, f.Status)
		}
		f.Status = st
	}
	return s.Repo.ListOrders(ctx, f)
}

// cancelInTx flips the order to cancelled, returns its stock and gives the coupon use back.
// The conditional transition makes sure this runs once per order.
func (s *Service) cancelInTx(ctx context.Context, tx *repo.GormRepo, o *models.Order) error {
	l := logging.FromContext(ctx)
	now := s.now()

	ok, err := tx.TransitionOrder(ctx, o.ID, fromStatuses(o.Status), map[string]any{
		"status":       models.OrderStatusCancelled,
		"cancelled_at": now,
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: order status changed concurrently, retry", domain.ErrConflict)
	}

	for _, it := range o.Items {
		found, err := tx.Restock(ctx, it.ProductID, it.Quantity)
		if err != nil {
			return err
		}
		if !found {
			l.Warn("restock_skipped", "reason", "product removed", "product_id", it.ProductID, "order_id", o.ID)
		}
	}

	if o.CouponCode != "" && o.Discount > 0 {
		if err := tx.ReleaseCouponUsage(ctx, o.CouponCode); err != nil {
			return err
		}
	}
	return nil
}

// reserve checks every line first so nothing is written when any line is short,
// then takes the stock with conditional updates.
func reserve(ctx context.Context, tx *repo.GormRepo, lines []line, now time.Time) ([]models.OrderItem, int64, error) {
	merged := make(map[uuid.UUID]int, len(lines))
	snapshots := make(map[uuid.UUID]*models.OrderItem, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, ln := range lines {
		if _, ok := merged[ln.ProductID]; !ok {
			ids = append(ids, ln.ProductID)
			snapshots[ln.ProductID] = ln.Snapshot
		}
		merged[ln.ProductID] += ln.Quantity
	}
	// fixed lock order across concurrent checkouts
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })

	products := make([]*models.Product, 0, len(ids))
	for _, id := range ids {
		p, err := tx.GetProduct(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, 0, fmt.Errorf("%w: a product in this order is no longer available", domain.ErrConflict)
		}
		if err != nil {
			return nil, 0, err
		}
		if p.Quantity < merged[id] {
			return nil, 0, fmt.Errorf("%w: not enough stock for %s, only %d left", domain.ErrConflict, p.Title, p.Quantity)
		}
		products = append(products, p)
	}

	items := make([]models.OrderItem, 0, len(products))
	var subtotal int64
	for _, p := range products {
		qty := merged[p.ID]
		ok, err := tx.DecrementStock(ctx, p.ID, qty, now)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			return nil, 0, fmt.Errorf("%w: not enough stock for %s", domain.ErrConflict, p.Title)
		}
		item := models.OrderItem{
			ProductID: p.ID,
			Name:      p.Title,
			Price:     p.Price,
			Quantity:  qty,
			Image:     p.Image,
			Material:  p.Material,
		}
		if snap := snapshots[p.ID]; snap != nil {
			item.Name, item.Price, item.Image, item.Material = snap.Name, snap.Price, snap.Image, snap.Material
		}
		items = append(items, item)
		subtotal += item.Price * int64(qty)
	}
	return items, subtotal, nil
}

func applyCoupon(ctx context.Context, tx *repo.GormRepo, o *models.Order, code string, now time.Time) error {
	c, err := tx.GetCouponByCode(ctx, code)
	if err != nil {
		return err
	}
	if err := coupon.Validate(c, o.Subtotal, now); err != nil {
		return err
	}

	o.CouponCode = c.Code
	o.Discount = coupon.ComputeDiscount(c, o.Subtotal)
	if o.Discount == 0 {
		return nil
	}
	ok, err := tx.IncrementCouponUsage(ctx, c.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: coupon %s usage limit reached", domain.ErrConflict, c.Code)
	}
	return nil
}

func fromStatuses(current string) []string {
	if current == models.OrderStatusProcessing {
		return []string{models.OrderStatusProcessing, models.OrderStatusPending}
	}
	return []string{current}
}

func trimShipping(in models.Shipping) models.Shipping {
	return models.Shipping{
		FullName: strings.TrimSpace(in.FullName),
		Phone:    strings.TrimSpace(in.Phone),
		Address:  strings.TrimSpace(in.Address),
		Note:     strings.TrimSpace(in.Note),
	}
}

func validateShipping(in models.Shipping) (models.Shipping, error) {
	sh := trimShipping(in)
	switch {
	case sh.FullName == "":
		return sh, fmt.Errorf("%w: fullName required", domain.ErrValidation)
	case sh.Phone == "":
		return sh, fmt.Errorf("%w: phone required", domain.ErrValidation)
	case sh.Address == "":
		return sh, fmt.Errorf("%w: address required", domain.ErrValidation)
	}
	phone := strings.NewReplacer(" ", "", ".", "", "-", "").Replace(sh.Phone)
	if !phoneRe.MatchString(phone) {
		return sh, fmt.Errorf("%w: invalid phone number", domain.ErrValidation)
	}
	sh.Phone = phone
	return sh, nil
}

func validateMethod(m string) (string, error) {
	m = strings.ToLower(strings.TrimSpace(m))
	if m != models.PaymentCOD && m != models.PaymentOnline {
		return "", fmt.Errorf("%w: paymentMethod must be cod or online", domain.ErrValidation)
	}
	return m, nil
}
