package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
	"github.com/Skotchmaster/jewelry_shop/pkg/tokens"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

var ErrUnauthorized = errors.New("unauthorized")

// UserSource resolves a token subject to the current role of an active account.
type UserSource interface {
	ActiveUserRole(ctx context.Context, id uuid.UUID) (string, error)
}

type Authenticator struct {
	Secret []byte
	Users  UserSource
}

func NewAuthenticator(secret []byte, users UserSource) *Authenticator {
	return &Authenticator{Secret: secret, Users: users}
}

// Authenticate verifies the token and returns the user id and role stored for that user.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (uuid.UUID, string, error) {
	if token == "" {
		return uuid.Nil, "", ErrUnauthorized
	}
	claims, err := tokens.AccessClaimsFromToken(token, a.Secret)
	if err != nil {
		return uuid.Nil, "", errors.Join(ErrUnauthorized, err)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", errors.Join(ErrUnauthorized, err)
	}
	role, err := a.Users.ActiveUserRole(ctx, userID)
	if err != nil {
		return uuid.Nil, "", errors.Join(ErrUnauthorized, err)
	}
	return userID, role, nil
}

func (a *Authenticator) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		userID, role, err := a.Authenticate(ctx, BearerToken(c.Request()))
		if err != nil {
			logging.FromContext(ctx).Warn("auth_error", "status", 401, "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}

		c.Set(CtxUserID, userID.String())
		c.Set(CtxRole, role)
		return next(c)
	}
}

func RequireRole(required ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(string)
			if role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing role")
			}
			if !slices.Contains(required, role) {
				return echo.NewHTTPError(http.StatusForbidden, "not allowed")
			}
			return next(c)
		}
	}
}

func BearerToken(r *http.Request) string {
	h := r.Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
