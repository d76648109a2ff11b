package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Skotchmaster/jewelry_shop/internal/domain"
	"github.com/Skotchmaster/jewelry_shop/internal/transport"
	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
	middleware "github.com/Skotchmaster/jewelry_shop/pkg/middleware/auth"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const (
	EventClientMessage = "client:message"
	EventServerMessage = "server:message"
	EventAck           = "ack"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendBuffer     = 64
)

// Frame is the envelope of every socket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	ID    *int64          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ackData struct {
	OK             bool   `json:"ok"`
	ConversationID string `json:"conversationId,omitempty"`
	Message        any    `json:"message,omitempty"`
}

func encodeFrame(event string, id *int64, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("frame data: %w", err)
	}
	return json.Marshal(Frame{Event: event, ID: id, Data: raw})
}

// Appender stores a chat message; the chat service implements it.
type Appender interface {
	Append(ctx context.Context, actor domain.Actor, req transport.SendMessageRequest) (*transport.AppendResult, error)
}

type Handler struct {
	Hub   *Hub
	Auth  *middleware.Authenticator
	Chat  Appender
	Rate  rate.Limit
	Burst int

	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, auth *middleware.Authenticator, chat Appender, perSecond float64, burst int) *Handler {
	return &Handler{
		Hub:   hub,
		Auth:  auth,
		Chat:  chat,
		Rate:  rate.Limit(perSecond),
		Burst: burst,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// sockets authenticate with a bearer token, not cookies
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve authenticates the handshake, upgrades and then reads the socket until it closes.
func (h *Handler) Serve(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "realtime.Serve")

	token := c.QueryParam("token")
	if token == "" {
		token = middleware.BearerToken(c.Request())
	}
	userID, role, err := h.Auth.Authenticate(ctx, token)
	if err != nil {
		l.Warn("ws_auth_error", "status", http.StatusUnauthorized, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already answered the client
		l.Warn("ws_upgrade_error", "error", err)
		return nil
	}

	actor := domain.Actor{UserID: userID, Role: role}
	client := newClient(conn, actor, rate.NewLimiter(h.Rate, h.Burst))
	l = l.With("user_id", userID, "role", role)

	h.Hub.Register(client)
	l.Info("ws_connected", "online", h.Hub.Online())

	go h.writePump(client)
	h.readPump(logging.IntoContext(ctx, l), client)

	l.Info("ws_disconnected")
	return nil
}

func (h *Handler) readPump(ctx context.Context, c *Client) {
	l := logging.FromContext(ctx)
	defer func() {
		h.Hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				l.Warn("ws_read_error", "error", err)
			}
			return
		}

		var in Frame
		if err := json.Unmarshal(raw, &in); err != nil {
			l.Debug("ws_bad_frame", "error", err)
			continue
		}

		switch in.Event {
		case EventClientMessage:
			h.handleMessage(ctx, c, in)
		default:
			l.Debug("ws_unknown_event", "event", in.Event)
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *Client, in Frame) {
	l := logging.FromContext(ctx)

	if !c.limiter.Allow() {
		l.Warn("ws_rate_limited")
		h.ack(ctx, c, in.ID, ackData{OK: false, Message: "too many messages"})
		return
	}

	var req transport.SendMessageRequest
	if err := json.Unmarshal(in.Data, &req); err != nil {
		h.ack(ctx, c, in.ID, ackData{OK: false, Message: "invalid payload"})
		return
	}

	res, err := h.Chat.Append(ctx, c.actor, req)
	if err != nil {
		reason := "internal error"
		if domain.Known(err) {
			reason = domain.Message(err)
			l.Warn("ws_message_rejected", "reason", reason)
		} else {
			l.Error("ws_message_error", "error", err)
		}
		h.ack(ctx, c, in.ID, ackData{OK: false, Message: reason})
		return
	}

	h.ack(ctx, c, in.ID, ackData{
		OK:             true,
		ConversationID: res.Conversation.ID.String(),
		Message:        res.Message,
	})
}

func (h *Handler) ack(ctx context.Context, c *Client, id *int64, data ackData) {
	frame, err := encodeFrame(EventAck, id, data)
	if err != nil {
		logging.FromContext(ctx).Error("ws_encode_error", "error", err)
		return
	}
	if !c.enqueue(frame) {
		logging.FromContext(ctx).Warn("ws_ack_dropped")
	}
}

func (h *Handler) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
