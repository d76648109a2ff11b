package httpserver

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/jewelry_shop/internal/domain"
	"github.com/Skotchmaster/jewelry_shop/internal/realtime"
	middleware "github.com/Skotchmaster/jewelry_shop/pkg/middleware/auth"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

type Deps struct {
	Auth *middleware.Authenticator

	AuthHandler    *AuthHTTP
	CartHandler    *CartHTTP
	OrderHandler   *OrderHTTP
	CouponHandler  *CouponHTTP
	PaymentHandler *PaymentHTTP
	ChatHandler    *ChatHTTP
	Socket         *realtime.Handler

	// Ready reports whether the database answers; nil means always ready.
	Ready func(ctx context.Context) error
	// CouponRate limits coupon validation per client ip, per second.
	CouponRate float64
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	e.GET("/ws", d.Socket.Serve)

	api := e.Group("/api/v1")
	api.POST("/auth/login", d.AuthHandler.Login)

	// the gateway calls back without a token
	api.GET("/payments/vnpay/return", d.PaymentHandler.Return)
	api.GET("/payments/vnpay/ipn", d.PaymentHandler.IPN)

	authed := api.Group("", d.Auth.RequireAuth)
	staff := middleware.RequireRole(domain.StaffRoles...)
	admin := middleware.RequireRole(domain.RoleAdmin)

	cart := authed.Group("/cart")
	cart.GET("", d.CartHandler.Get)
	cart.POST("/items", d.CartHandler.AddItem)
	cart.PUT("/items/:productId", d.CartHandler.SetItem)
	cart.DELETE("/items/:productId", d.CartHandler.RemoveItem)
	cart.DELETE("", d.CartHandler.Clear)

	orders := authed.Group("/orders")
	orders.POST("", d.OrderHandler.Create)
	orders.POST("/pos", d.OrderHandler.CreatePOS, staff)
	orders.GET("/my", d.OrderHandler.ListMine)
	orders.GET("", d.OrderHandler.List, staff)
	orders.GET("/:id", d.OrderHandler.Get)
	orders.PUT("/:id/cancel", d.OrderHandler.Cancel)
	orders.PUT("/:id/status", d.OrderHandler.UpdateStatus, staff)

	couponRate := d.CouponRate
	if couponRate <= 0 {
		couponRate = 5
	}
	coupons := authed.Group("/coupons")
	coupons.POST("/validate", d.CouponHandler.Validate,
		echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(rate.Limit(couponRate))))
	coupons.POST("", d.CouponHandler.Create, admin)
	coupons.GET("", d.CouponHandler.List, staff)

	authed.POST("/payments/vnpay/create", d.PaymentHandler.Create)

	chat := authed.Group("/chat")
	chat.POST("/messages", d.ChatHandler.Send)
	chat.GET("/conversations", d.ChatHandler.Conversations)
	chat.GET("/conversations/:id/messages", d.ChatHandler.Messages)
	chat.PUT("/conversations/:id/close", d.ChatHandler.Close, staff)
}
