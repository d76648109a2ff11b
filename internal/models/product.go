package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ProductStatusActive    = "active"
	ProductStatusCompleted = "completed"
)

// Product is owned by the catalog. Orders only touch Quantity, Status and CompletedAt.
type Product struct {
	ID          uuid.UUID  `gorm:"primaryKey"                        json:"id"`
	Title       string     `gorm:"not null"                          json:"title"`
	Category    string     `gorm:"index"                             json:"category"`
	Description string     `json:"description"`
	Material    string     `json:"material"`
	Price       int64      `gorm:"not null;check:price >= 0"         json:"price"`
	Quantity    int        `gorm:"not null;check:quantity >= 0"      json:"quantity"`
	Image       string     `json:"image"`
	Status      string     `gorm:"not null;default:active;index"     json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
