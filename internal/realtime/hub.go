package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Skotchmaster/jewelry_shop/internal/domain"
	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// AdminRoom is joined by every staff socket.
const AdminRoom = "admin"

type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	actor   domain.Actor
	rooms   []string
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, actor domain.Actor, limiter *rate.Limiter) *Client {
	rooms := []string{actor.UserID.String()}
	if actor.IsStaff() {
		rooms = append(rooms, AdminRoom)
	}
	return &Client{
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		actor:   actor,
		rooms:   rooms,
		limiter: limiter,
	}
}

// enqueue never blocks; false means the client is gone or not keeping up.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

type broadcastMsg struct {
	rooms []string
	data  []byte
}

// Hub tracks the sockets of this instance by room. Only Run touches the room map.
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	done       chan struct{}
	online     atomic.Int64

	Relay *RedisRelay
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMsg, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.rooms {
				for c := range conns {
					c.close()
				}
			}
			h.rooms = map[string]map[*Client]bool{}
			h.online.Store(0)
			return

		case c := <-h.register:
			for _, room := range c.rooms {
				if h.rooms[room] == nil {
					h.rooms[room] = make(map[*Client]bool)
				}
				h.rooms[room][c] = true
			}
			h.online.Add(1)

		case c := <-h.unregister:
			h.remove(c)

		case m := <-h.broadcast:
			seen := make(map[*Client]bool)
			for _, room := range m.rooms {
				for c := range h.rooms[room] {
					if seen[c] {
						continue
					}
					seen[c] = true
					if !c.enqueue(m.data) {
						h.remove(c)
					}
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	found := false
	for _, room := range c.rooms {
		conns := h.rooms[room]
		if !conns[c] {
			continue
		}
		found = true
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
	if found {
		h.online.Add(-1)
	}
	c.close()
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.close()
	}
}

// Online is the number of sockets connected to this instance.
func (h *Hub) Online() int {
	return int(h.online.Load())
}

// Publish sends data to every local socket in rooms, then to other instances through the relay
// when one is configured. Local delivery does not depend on the relay subscription.
func (h *Hub) Publish(ctx context.Context, rooms []string, data []byte) {
	h.deliver(rooms, data)
	if h.Relay == nil {
		return
	}
	if err := h.Relay.Publish(ctx, rooms, data); err != nil {
		logging.FromContext(ctx).Warn("relay_publish_error", "error", err)
	}
}

// deliver fans out to local sockets only.
func (h *Hub) deliver(rooms []string, data []byte) {
	select {
	case h.broadcast <- broadcastMsg{rooms: rooms, data: data}:
	case <-h.done:
	}
}

// RunRelay feeds relayed broadcasts into this instance until ctx is done.
func (h *Hub) RunRelay(ctx context.Context) error {
	if h.Relay == nil {
		return nil
	}
	return h.Relay.Subscribe(ctx, h.deliver)
}

type serverMessage struct {
	ConversationID uuid.UUID       `json:"conversationId"`
	Message        *models.Message `json:"message"`
}

// MessageAppended emits server:message to the customer's room and the staff room.
func (h *Hub) MessageAppended(ctx context.Context, conv *models.Conversation, msg *models.Message) {
	data, err := encodeFrame(EventServerMessage, nil, serverMessage{ConversationID: conv.ID, Message: msg})
	if err != nil {
		logging.FromContext(ctx).Error("ws_encode_error", "error", err)
		return
	}
	h.Publish(ctx, []string{conv.UserID.String(), AdminRoom}, data)
}
