package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/Skotchmaster/jewelry_shop/internal/repo"
	"github.com/Skotchmaster/jewelry_shop/internal/service/coupon"
	"github.com/Skotchmaster/jewelry_shop/internal/transport"
	"github.com/Skotchmaster/jewelry_shop/internal/util"
	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
	"github.com/labstack/echo/v4"
)

type CouponHTTP struct {
	Svc *coupon.Service
}

func (h *CouponHTTP) Validate(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.validate")

	var req transport.ValidateCouponRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "validate_coupon", "invalid body", err)
	}

	quote, err := h.Svc.Quote(ctx, req.Code, req.Subtotal)
	if err != nil {
		return toHTTPError(l, "validate_coupon", err)
	}
	return c.JSON(http.StatusOK, quote)
}

func (h *CouponHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.create")

	var req transport.CreateCouponRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_coupon", "invalid body", err)
	}

	cp, err := h.Svc.Create(ctx, req)
	if err != nil {
		return toHTTPError(l, "create_coupon", err)
	}
	return c.JSON(http.StatusCreated, cp)
}

func (h *CouponHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.list")

	page, limit, err := pageQuery(c)
	if err != nil {
		return badRequest(l, "list_coupons", "invalid page or limit", err)
	}
	page, limit, offset := util.Calculate(page, limit)

	items, total, err := h.Svc.List(ctx, repo.Page{Offset: offset, Limit: limit})
	if err != nil {
		return toHTTPError(l, "list_coupons", err)
	}
	return c.JSON(http.StatusOK, transport.PageResponse[models.Coupon]{Items: items, Page: page, Limit: limit, Total: total})
}
