package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Skotchmaster/jewelry_shop/internal/domain"
	middleware "github.com/Skotchmaster/jewelry_shop/pkg/middleware/auth"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// toHTTPError logs a failed operation once and maps the domain kind to a status.
func toHTTPError(l *slog.Logger, op string, err error) error {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, domain.ErrValidation):
		status, msg = http.StatusBadRequest, domain.Message(err)
	case errors.Is(err, domain.ErrConflict):
		status, msg = http.StatusBadRequest, domain.Message(err)
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, domain.Message(err)
	case errors.Is(err, domain.ErrForbidden):
		status, msg = http.StatusForbidden, "not allowed"
	case errors.Is(err, domain.ErrUpstream):
		msg = domain.Message(err)
	}

	if status >= http.StatusInternalServerError {
		l.Error(op+"_error", "status", status, "reason", msg, "error", err)
	} else {
		l.Warn(op+"_error", "status", status, "reason", msg, "error", err)
	}
	return echo.NewHTTPError(status, msg)
}

func badRequest(l *slog.Logger, op, reason string, err error) error {
	l.Warn(op+"_error", "status", http.StatusBadRequest, "reason", reason, "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, reason)
}

func actorFrom(c echo.Context) (domain.Actor, error) {
	s, _ := c.Get(middleware.CtxUserID).(string)
	id, err := uuid.Parse(s)
	if err != nil {
		return domain.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	role, _ := c.Get(middleware.CtxRole).(string)
	return domain.Actor{UserID: id, Role: role}, nil
}

func paramID(c echo.Context, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Param(name))
}

// queryUUID treats a missing value as uuid.Nil.
func queryUUID(c echo.Context, name string) (uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(v)
}

// pageQuery reads page and limit; missing values are zero and get defaults later.
func pageQuery(c echo.Context) (page, limit int, err error) {
	if v := c.QueryParam("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			return 0, 0, err
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, err
		}
	}
	return page, limit, nil
}
