package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/jewelry_shop/internal/service/chat"
	"github.com/Skotchmaster/jewelry_shop/internal/transport"
	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
	"github.com/labstack/echo/v4"
)

type ChatHTTP struct {
	Svc *chat.Service
}

func (h *ChatHTTP) Send(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "chat.send")

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req transport.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "send_message", "invalid body", err)
	}

	res, err := h.Svc.Append(ctx, actor, req)
	if err != nil {
		return toHTTPError(l, "send_message", err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *ChatHTTP) Conversations(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "chat.conversations")

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	page, limit, err := pageQuery(c)
	if err != nil {
		return badRequest(l, "list_conversations", "invalid page or limit", err)
	}
	userID, err := queryUUID(c, "userId")
	if err != nil {
		return badRequest(l, "list_conversations", "invalid userId", err)
	}

	res, err := h.Svc.List(ctx, actor, userID, page, limit)
	if err != nil {
		return toHTTPError(l, "list_conversations", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ChatHTTP) Messages(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "chat.messages")

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	convID, err := paramID(c, "id")
	if err != nil {
		return badRequest(l, "fetch_messages", "invalid conversation id", err)
	}
	page, limit, err := pageQuery(c)
	if err != nil {
		return badRequest(l, "fetch_messages", "invalid page or limit", err)
	}
	userID, err := queryUUID(c, "userId")
	if err != nil {
		return badRequest(l, "fetch_messages", "invalid userId", err)
	}
	from, to, err := chat.ParseRange(c.QueryParam("date"), c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return toHTTPError(l, "fetch_messages", err)
	}

	res, err := h.Svc.Fetch(ctx, actor, convID, chat.FetchQuery{
		UserID: userID,
		Page:   page,
		Limit:  limit,
		From:   from,
		To:     to,
	})
	if err != nil {
		return toHTTPError(l, "fetch_messages", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ChatHTTP) Close(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "chat.close")

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	convID, err := paramID(c, "id")
	if err != nil {
		return badRequest(l, "close_conversation", "invalid conversation id", err)
	}

	conv, err := h.Svc.Close(ctx, actor, convID)
	if err != nil {
		return toHTTPError(l, "close_conversation", err)
	}

	l.Info("close_conversation_success", "conversation_id", conv.ID)
	return c.JSON(http.StatusOK, conv)
}
