package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/jewelry_shop/internal/domain"
	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/Skotchmaster/jewelry_shop/internal/repo"
	"github.com/Skotchmaster/jewelry_shop/internal/service/order"
	"github.com/Skotchmaster/jewelry_shop/internal/vnpay"
	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
	"github.com/google/uuid"
)

// IPN response codes expected by the gateway.
const (
	RspConfirmed        = "00"
	RspOrderNotFound    = "01"
	RspAlreadyConfirmed = "02"
	RspInvalidAmount    = "04"
	RspBadChecksum      = "97"
	RspUnknown          = "99"
)

type Service struct {
	Repo      *repo.GormRepo
	Gateway   *vnpay.Client
	Events    order.Publisher
	ClientURL string
	Now       func() time.Time
}

func New(r *repo.GormRepo, gw *vnpay.Client, events order.Publisher, clientURL string) *Service {
	return &Service{
		Repo:      r,
		Gateway:   gw,
		Events:    events,
		ClientURL: strings.TrimRight(clientURL, "/"),
		Now:       time.Now,
	}
}

// CreatePayment builds the gateway redirect for an order that still awaits payment.
func (s *Service) CreatePayment(ctx context.Context, actor domain.Actor, orderID uuid.UUID, ip string) (string, error) {
	l := logging.FromContext(ctx).With("svc", "payment.create", "order_id", orderID)

	o, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if !actor.CanAccess(o.UserID) {
		return "", fmt.Errorf("%w: not allowed", domain.ErrForbidden)
	}
	return s.paymentURL(ctx, l, o, ip)
}

// PaymentURLFor is used right after an order is created by staff, so no ownership check is repeated.
func (s *Service) PaymentURLFor(ctx context.Context, o *models.Order, ip string) (string, error) {
	l := logging.FromContext(ctx).With("svc", "payment.create", "order_id", o.ID)
	return s.paymentURL(ctx, l, o, ip)
}

func (s *Service) paymentURL(ctx context.Context, l *slog.Logger, o *models.Order, ip string) (string, error) {
	switch o.Status {
	case models.OrderStatusPaid:
		return "", fmt.Errorf("%w: order is already paid", domain.ErrConflict)
	case models.OrderStatusShipped, models.OrderStatusCancelled, models.OrderStatusCompleted:
		return "", fmt.Errorf("%w: order is already finalized", domain.ErrConflict)
	}
	if o.Total <= 0 {
		return "", fmt.Errorf("%w: amount must be a positive integer", domain.ErrValidation)
	}
	if !s.Gateway.Configured() {
		return "", fmt.Errorf("%w: payment gateway is not configured", domain.ErrUpstream)
	}

	payURL, params, err := s.Gateway.BuildPaymentURL(vnpay.PaymentRequest{
		OrderID: o.ID,
		Amount:  o.Total,
		IPAddr:  ip,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}

	info := models.PaymentInfo{
		"provider":  "vnpay",
		"state":     "pending",
		"txnRef":    params.Get("vnp_TxnRef"),
		"createdAt": s.Now().UTC().Format(time.RFC3339),
	}
	if err := s.Repo.UpdateOrder(ctx, o.ID, map[string]any{
		"payment_method": models.PaymentOnline,
		"payment_info":   info,
	}); err != nil {
		return "", err
	}
	o.PaymentMethod = models.PaymentOnline
	o.PaymentInfo = info

	l.Info("payment_url_created", "txn_ref", info["txnRef"])
	return payURL, nil
}

type Outcome struct {
	OrderID uuid.UUID
	// Paid is true when the order ends up paid by this transaction.
	Paid    bool
	RspCode string
	Message string
}

// Reconcile applies a gateway callback. Both the browser return and the IPN call land here.
func (s *Service) Reconcile(ctx context.Context, params url.Values) Outcome {
	l := logging.FromContext(ctx).With("svc", "payment.reconcile")

	res := s.Gateway.ParseCallback(params)
	out := Outcome{OrderID: res.OrderID}
	if res.OrderID == uuid.Nil {
		l.Warn("reconcile_error", "reason", "unreadable txn ref", "txn_ref", res.TxnRef)
		out.RspCode, out.Message = RspOrderNotFound, "Order not found"
		if !res.ValidSignature {
			out.RspCode, out.Message = RspBadChecksum, "Invalid signature"
		}
		return out
	}

	payload := models.PaymentInfo{}
	for k := range params {
		payload[k] = params.Get(k)
	}
	payload["provider"] = "vnpay"
	payload["verified"] = strconv.FormatBool(res.ValidSignature)

	var paidOrder *models.Order
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		o, err := tx.GetOrder(ctx, res.OrderID)
		if err != nil {
			return err
		}

		switch {
		case !res.ValidSignature:
			out.RspCode, out.Message = RspBadChecksum, "Invalid signature"
		case res.Amount != o.Total:
			out.RspCode, out.Message = RspInvalidAmount, "Invalid amount"
		case o.Status == models.OrderStatusPaid:
			out.Paid = res.Success()
			out.RspCode, out.Message = RspAlreadyConfirmed, "Order already confirmed"
		case o.Status != models.OrderStatusProcessing:
			out.RspCode, out.Message = RspAlreadyConfirmed, "Order already finalized"
		case res.Success():
			now := s.Now().UTC()
			ok, err := tx.TransitionOrder(ctx, o.ID, []string{models.OrderStatusProcessing, models.OrderStatusPending}, map[string]any{
				"status":         models.OrderStatusPaid,
				"paid_at":        now,
				"payment_method": models.PaymentOnline,
				"payment_info":   payload,
			})
			if err != nil {
				return err
			}
			if !ok {
				out.RspCode, out.Message = RspAlreadyConfirmed, "Order already finalized"
				return nil
			}
			o.Status, o.PaidAt = models.OrderStatusPaid, &now
			paidOrder = o
			out.Paid = true
			out.RspCode, out.Message = RspConfirmed, "Confirm Success"
			return nil
		default:
			// the customer gave up or the bank declined, the callback is still acknowledged
			out.RspCode, out.Message = RspConfirmed, "Confirm Success"
		}

		if o.Status == models.OrderStatusPaid {
			// keep the payload that confirmed the payment
			return nil
		}
		return tx.UpdateOrder(ctx, o.ID, map[string]any{"payment_info": payload})
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			out.RspCode, out.Message = RspOrderNotFound, "Order not found"
			if !res.ValidSignature {
				out.RspCode, out.Message = RspBadChecksum, "Invalid signature"
			}
			return out
		}
		l.Error("reconcile_error", "order_id", res.OrderID, "error", err)
		out.Paid = false
		out.RspCode, out.Message = RspUnknown, "Unknown error"
		return out
	}

	l.Info("payment_reconciled", "order_id", res.OrderID, "paid", out.Paid, "rsp_code", out.RspCode, "response_code", res.ResponseCode)
	if paidOrder != nil {
		order.Emit(ctx, s.Events, order.EventOrderPaid, paidOrder, models.OrderStatusProcessing)
	}
	return out
}

// RedirectURL is where the customer's browser goes after the gateway return.
func (s *Service) RedirectURL(out Outcome) string {
	status := "fail"
	if out.Paid {
		status = "success"
	}
	if out.OrderID == uuid.Nil || out.RspCode == RspOrderNotFound {
		return s.ClientURL + "/orders?payStatus=fail"
	}
	return s.ClientURL + "/orders/" + out.OrderID.String() + "?payStatus=" + status
}
