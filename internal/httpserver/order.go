package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/Skotchmaster/jewelry_shop/internal/repo"
	"github.com/Skotchmaster/jewelry_shop/internal/service/order"
	"github.com/Skotchmaster/jewelry_shop/internal/service/payment"
	"github.com/Skotchmaster/jewelry_shop/internal/transport"
	"github.com/Skotchmaster/jewelry_shop/internal/util"
	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
	"github.com/labstack/echo/v4"
)

type OrderHTTP struct {
	Svc      *order.Service
	Payments *payment.Service
}

// withPaymentURL attaches a gateway link to an online order that awaits payment.
// A gateway failure leaves the order as created; the client can ask for a link later.
func (h *OrderHTTP) withPaymentURL(c echo.Context, o *models.Order) transport.OrderResponse {
	res := transport.OrderResponse{Order: o}
	if h.Payments == nil || o.PaymentMethod != models.PaymentOnline || o.Status != models.OrderStatusProcessing {
		return res
	}

	ctx := c.Request().Context()
	link, err := h.Payments.PaymentURLFor(ctx, o, c.RealIP())
	if err != nil {
		logging.FromContext(ctx).Warn("payment_url_error", "order_id", o.ID, "error", err)
		return res
	}
	res.PaymentURL = link
	return res
}

func (h *OrderHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create")

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_order", "invalid body", err)
	}

	o, err := h.Svc.Checkout(ctx, actor, req)
	if err != nil {
		return toHTTPError(l, "create_order", err)
	}

	l.Info("create_order_success", "order_id", o.ID, "total", o.Total)
	return c.JSON(http.StatusCreated, h.withPaymentURL(c, o))
}

func (h *OrderHTTP) CreatePOS(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_pos")

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req transport.POSOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_pos_order", "invalid body", err)
	}

	o, err := h.Svc.CreatePOS(ctx, actor, req)
	if err != nil {
		return toHTTPError(l, "create_pos_order", err)
	}

	l.Info("create_pos_order_success", "order_id", o.ID, "status", o.Status)
	return c.JSON(http.StatusCreated, h.withPaymentURL(c, o))
}

func (h *OrderHTTP) Cancel(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel")

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(l, "cancel_order", "invalid order id", err)
	}

	o, err := h.Svc.Cancel(ctx, actor, id)
	if err != nil {
		return toHTTPError(l, "cancel_order", err)
	}

	l.Info("cancel_order_success", "order_id", o.ID)
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(l, "update_status", "invalid order id", err)
	}
	var req transport.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_status", "invalid body", err)
	}

	o, err := h.Svc.UpdateStatus(ctx, actor, id, req.Status)
	if err != nil {
		return toHTTPError(l, "update_status", err)
	}

	l.Info("update_status_success", "order_id", o.ID, "status", o.Status)
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(l, "get_order", "invalid order id", err)
	}

	o, err := h.Svc.Get(ctx, actor, id)
	if err != nil {
		return toHTTPError(l, "get_order", err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHTTP) ListMine(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_mine")

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	page, limit, err := pageQuery(c)
	if err != nil {
		return badRequest(l, "list_orders", "invalid page or limit", err)
	}
	page, limit, offset := util.Calculate(page, limit)

	items, total, err := h.Svc.ListMine(ctx, actor, repo.Page{Offset: offset, Limit: limit})
	if err != nil {
		return toHTTPError(l, "list_orders", err)
	}
	return c.JSON(http.StatusOK, transport.PageResponse[models.Order]{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *OrderHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list")

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	page, limit, err := pageQuery(c)
	if err != nil {
		return badRequest(l, "list_orders", "invalid page or limit", err)
	}
	userID, err := queryUUID(c, "userId")
	if err != nil {
		return badRequest(l, "list_orders", "invalid userId", err)
	}
	page, limit, offset := util.Calculate(page, limit)

	items, total, err := h.Svc.List(ctx, actor, repo.OrderFilter{
		UserID: userID,
		Status: c.QueryParam("status"),
		Page:   repo.Page{Offset: offset, Limit: limit},
	})
	if err != nil {
		return toHTTPError(l, "list_orders", err)
	}
	return c.JSON(http.StatusOK, transport.PageResponse[models.Order]{Items: items, Page: page, Limit: limit, Total: total})
}
