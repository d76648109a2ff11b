package order

import (
	"context"
	"time"

	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
	"github.com/google/uuid"
)

const (
	EventOrderCreated       = "order_created"
	EventOrderCancelled     = "order_cancelled"
	EventOrderStatusChanged = "order_status_changed"
	EventOrderPaid          = "order_paid"
)

type Publisher interface {
	PublishEvent(ctx context.Context, key string, event any) error
}

type Event struct {
	Type           string    `json:"type"`
	OrderID        uuid.UUID `json:"orderId"`
	UserID         uuid.UUID `json:"userId"`
	Source         string    `json:"source"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	Total          int64     `json:"total"`
	At             time.Time `json:"at"`
}

// Emit publishes an order event after the change is committed. Failures are logged, not returned.
func Emit(ctx context.Context, p Publisher, typ string, o *models.Order, prev string) {
	if p == nil || o == nil {
		return
	}
	ev := Event{
		Type:           typ,
		OrderID:        o.ID,
		UserID:         o.UserID,
		Source:         o.Source,
		Status:         o.Status,
		PreviousStatus: prev,
		Total:          o.Total,
		At:             time.Now().UTC(),
	}
	if err := p.PublishEvent(ctx, o.ID.String(), ev); err != nil {
		logging.FromContext(ctx).Warn("publish_event_error", "event", typ, "order_id", o.ID, "error", err)
	}
}
