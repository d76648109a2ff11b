package httpserver

import (
	"errors"
	"net/http"

	"github.com/Skotchmaster/jewelry_shop/internal/service/auth"
	"github.com/Skotchmaster/jewelry_shop/internal/transport"
	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
	"github.com/labstack/echo/v4"
)

type AuthHTTP struct {
	Svc *auth.Service
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "login", "invalid body", err)
	}

	res, err := h.Svc.Login(ctx, req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			l.Warn("login_error", "status", http.StatusUnauthorized, "reason", "invalid credentials")
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return toHTTPError(l, "login", err)
	}

	l.Info("login_success", "user_id", res.User.ID)
	return c.JSON(http.StatusOK, res)
}
