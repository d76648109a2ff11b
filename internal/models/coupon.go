package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CouponPercent = "percent"
	CouponFixed   = "fixed"
)

// Coupon: MaxDiscount 0 means uncapped, UsageLimit 0 means unlimited.
type Coupon struct {
	ID          uuid.UUID  `gorm:"primaryKey"                  json:"id"`
	Code        string     `gorm:"uniqueIndex;size:64;not null" json:"code"`
	Type        string     `gorm:"not null"                    json:"type"`
	Value       float64    `gorm:"not null;check:value >= 0"   json:"value"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	MinOrder    int64      `gorm:"not null;default:0"          json:"minOrder"`
	MaxDiscount int64      `gorm:"not null;default:0"          json:"maxDiscount"`
	UsageLimit  int        `gorm:"not null;default:0"          json:"usageLimit"`
	UsedCount   int        `gorm:"not null;default:0;check:used_count >= 0" json:"usedCount"`
	Active      bool       `gorm:"not null"                    json:"active"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (c *Coupon) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
