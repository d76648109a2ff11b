package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/jewelry_shop/internal/service/cart"
	"github.com/Skotchmaster/jewelry_shop/internal/transport"
	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
	"github.com/labstack/echo/v4"
)

type CartHTTP struct {
	Svc *cart.Service
}

func (h *CartHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	res, err := h.Svc.Get(ctx, actor.UserID)
	if err != nil {
		return toHTTPError(l, "get_cart", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req transport.CartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "add_item", "invalid body", err)
	}

	res, err := h.Svc.AddItem(ctx, actor.UserID, req)
	if err != nil {
		return toHTTPError(l, "add_item", err)
	}

	l.Info("add_item_success", "product_id", req.ProductID, "quantity", req.Quantity)
	return c.JSON(http.StatusOK, res)
}

func (h *CartHTTP) SetItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.set_item")

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	productID, err := paramID(c, "productId")
	if err != nil {
		return badRequest(l, "set_item", "invalid product id", err)
	}
	var req transport.CartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "set_item", "invalid body", err)
	}

	res, err := h.Svc.SetItem(ctx, actor.UserID, productID, req.Quantity)
	if err != nil {
		return toHTTPError(l, "set_item", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	productID, err := paramID(c, "productId")
	if err != nil {
		return badRequest(l, "remove_item", "invalid product id", err)
	}

	res, err := h.Svc.RemoveItem(ctx, actor.UserID, productID)
	if err != nil {
		return toHTTPError(l, "remove_item", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *CartHTTP) Clear(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.Svc.Clear(ctx, actor.UserID); err != nil {
		return toHTTPError(l, "clear_cart", err)
	}
	return c.NoContent(http.StatusNoContent)
}
