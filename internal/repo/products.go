package repo

import (
	"context"
	"time"

	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (r *GormRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.DB.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "product")
	}
	return &p, nil
}

// DecrementStock takes n units only if that many are left and retires the
// product when it runs out. It reports false when the stock was insufficient.
func (r *GormRepo) DecrementStock(ctx context.Context, id uuid.UUID, n int, now time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND quantity >= ?", id, n).
		Updates(map[string]any{
			"quantity":     gorm.Expr("quantity - ?", n),
			"status":       gorm.Expr("CASE WHEN quantity - ? <= 0 THEN ? ELSE status END", n, models.ProductStatusCompleted),
			"completed_at": gorm.Expr("CASE WHEN quantity - ? <= 0 THEN ? ELSE completed_at END", n, now),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Restock returns n units and reactivates a sold out product.
// It reports false when the product no longer exists.
func (r *GormRepo) Restock(ctx context.Context, id uuid.UUID, n int) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity":     gorm.Expr("quantity + ?", n),
			"status":       gorm.Expr("CASE WHEN status = ? AND quantity + ? > 0 THEN ? ELSE status END", models.ProductStatusCompleted, n, models.ProductStatusActive),
			"completed_at": gorm.Expr("CASE WHEN status = ? AND quantity + ? > 0 THEN NULL ELSE completed_at END", models.ProductStatusCompleted, n),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
