package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Cart struct {
	ID        uuid.UUID  `gorm:"primaryKey"          json:"id"`
	UserID    uuid.UUID  `gorm:"uniqueIndex;not null" json:"userId"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// CartItem keeps a snapshot of the product taken when the line was added or updated.
type CartItem struct {
	ID        uuid.UUID `gorm:"primaryKey"                              json:"id"`
	CartID    uuid.UUID `gorm:"uniqueIndex:idx_cart_product;not null"   json:"-"`
	ProductID uuid.UUID `gorm:"uniqueIndex:idx_cart_product;not null"   json:"productId"`
	Name      string    `json:"name"`
	Price     int64     `gorm:"not null"                                json:"price"`
	Image     string    `json:"image"`
	Material  string    `json:"material"`
	Quantity  int       `gorm:"not null;check:quantity > 0"             json:"quantity"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

func (Cart) TableName() string {
	return "carts"
}

func (CartItem) TableName() string {
	return "cart_items"
}

func (c *Cart) Subtotal() int64 {
	var sum int64
	for _, it := range c.Items {
		sum += it.Price * int64(it.Quantity)
	}
	return sum
}
