package repo

import (
	"context"
	"strings"

	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *GormRepo) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	if err := r.DB.WithContext(ctx).Where("code = ?", NormalizeCode(code)).First(&c).Error; err != nil {
		return nil, notFound(err, "coupon")
	}
	return &c, nil
}

func (r *GormRepo) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	c.Code = NormalizeCode(c.Code)
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *GormRepo) ListCoupons(ctx context.Context, p Page) ([]models.Coupon, int64, error) {
	var (
		items []models.Coupon
		total int64
	)
	db := r.DB.WithContext(ctx).Model(&models.Coupon{})
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at DESC").Offset(p.Offset).Limit(p.Limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// IncrementCouponUsage consumes one use unless the usage limit is already reached.
func (r *GormRepo) IncrementCouponUsage(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Coupon{}).
		Where("id = ? AND (usage_limit = 0 OR used_count < usage_limit)", id).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseCouponUsage gives one use back, never going below zero.
func (r *GormRepo) ReleaseCouponUsage(ctx context.Context, code string) error {
	return r.DB.WithContext(ctx).Model(&models.Coupon{}).
		Where("code = ? AND used_count > 0", NormalizeCode(code)).
		Update("used_count", gorm.Expr("used_count - 1")).Error
}
