package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	OrderStatusProcessing = "processing"
	OrderStatusPaid       = "paid"
	OrderStatusShipped    = "shipped"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"

	// legacy alias of processing, still present in old rows and clients
	OrderStatusPending = "pending"
)

const (
	OrderSourceOnline = "online"
	OrderSourcePOS    = "pos"

	PaymentCOD    = "cod"
	PaymentOnline = "online"
)

// NormalizeOrderStatus maps the legacy alias and reports whether s is a known status.
func NormalizeOrderStatus(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case OrderStatusPending, OrderStatusProcessing:
		return OrderStatusProcessing, true
	case OrderStatusPaid, OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled:
		return s, true
	}
	return s, false
}

type Shipping struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Note     string `json:"note"`
}

// PaymentInfo holds whatever the gateway sent back, stored as a JSON object.
type PaymentInfo map[string]string

func (p PaymentInfo) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *PaymentInfo) Scan(v any) error {
	var raw []byte
	switch t := v.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		raw = t
	case string:
		raw = []byte(t)
	default:
		return fmt.Errorf("payment info: unsupported type %T", v)
	}
	if len(raw) == 0 {
		*p = nil
		return nil
	}
	return json.Unmarshal(raw, p)
}

func (PaymentInfo) GormDataType() string {
	return "text"
}

type Order struct {
	ID            uuid.UUID   `gorm:"primaryKey"                      json:"id"`
	UserID        uuid.UUID   `gorm:"index;not null"                  json:"userId"`
	Source        string      `gorm:"not null;default:online"         json:"source"`
	Items         []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Shipping      Shipping    `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping"`
	PaymentMethod string      `gorm:"not null"                        json:"paymentMethod"`
	CouponCode    string      `gorm:"index"                           json:"couponCode,omitempty"`
	Subtotal      int64       `gorm:"not null"                        json:"subtotal"`
	ShippingFee   int64       `gorm:"not null;default:0"              json:"shippingFee"`
	Discount      int64       `gorm:"not null;default:0"              json:"discount"`
	Total         int64       `gorm:"not null;check:total >= 0"       json:"total"`
	Status        string      `gorm:"not null;index"                  json:"status"`
	PaymentInfo   PaymentInfo `json:"paymentInfo,omitempty"`
	PaidAt        *time.Time  `json:"paidAt,omitempty"`
	CancelledAt   *time.Time  `json:"cancelledAt,omitempty"`
	CreatedAt     time.Time   `gorm:"index"                           json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

type OrderItem struct {
	ID        uuid.UUID `gorm:"primaryKey"                  json:"id"`
	OrderID   uuid.UUID `gorm:"index;not null"              json:"-"`
	ProductID uuid.UUID `gorm:"not null"                    json:"productId"`
	Name      string    `json:"name"`
	Price     int64     `gorm:"not null"                    json:"price"`
	Quantity  int       `gorm:"not null;check:quantity > 0" json:"quantity"`
	Image     string    `json:"image"`
	Material  string    `json:"material"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// AfterFind keeps rows written before the status rename readable as processing.
func (o *Order) AfterFind(tx *gorm.DB) error {
	if o.Status == OrderStatusPending {
		o.Status = OrderStatusProcessing
	}
	return nil
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
