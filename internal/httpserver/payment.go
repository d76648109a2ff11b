package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/jewelry_shop/internal/service/payment"
	"github.com/Skotchmaster/jewelry_shop/internal/transport"
	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type PaymentHTTP struct {
	Svc *payment.Service
}

func (h *PaymentHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.create")

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req transport.CreatePaymentRequest
	if err := c.Bind(&req); err != nil || req.OrderID == uuid.Nil {
		return badRequest(l, "create_payment", "orderId required", err)
	}

	link, err := h.Svc.CreatePayment(ctx, actor, req.OrderID, c.RealIP())
	if err != nil {
		return toHTTPError(l, "create_payment", err)
	}

	l.Info("create_payment_success", "order_id", req.OrderID)
	return c.JSON(http.StatusOK, transport.PaymentURLResponse{PaymentURL: link})
}

// Return is where the gateway sends the customer's browser. It always redirects to the storefront.
func (h *PaymentHTTP) Return(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.return")

	out := h.Svc.Reconcile(ctx, c.QueryParams())
	l.Info("payment_return", "order_id", out.OrderID, "paid", out.Paid, "rsp_code", out.RspCode)
	return c.Redirect(http.StatusFound, h.Svc.RedirectURL(out))
}

// IPN answers the gateway's server to server notification.
func (h *PaymentHTTP) IPN(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.ipn")

	out := h.Svc.Reconcile(ctx, c.QueryParams())
	l.Info("payment_ipn", "order_id", out.OrderID, "rsp_code", out.RspCode)
	return c.JSON(http.StatusOK, transport.IPNResponse{RspCode: out.RspCode, Message: out.Message})
}
