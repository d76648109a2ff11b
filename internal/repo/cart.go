package repo

import (
	"context"

	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetOrCreateCart returns the user's cart with its lines, creating an empty one on first use.
func (r *GormRepo) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.DB.WithContext(ctx).
		Where(models.Cart{UserID: userID}).
		FirstOrCreate(&cart).Error
	if err != nil {
		return nil, err
	}
	if err := r.DB.WithContext(ctx).Where("cart_id = ?", cart.ID).Order("name").Find(&cart.Items).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// UpsertCartItem adds qty to an existing line or creates it, refreshing the snapshot.
func (r *GormRepo) UpsertCartItem(ctx context.Context, item *models.CartItem) error {
	db := r.DB.WithContext(ctx)
	res := db.Model(&models.CartItem{}).
		Where("cart_id = ? AND product_id = ?", item.CartID, item.ProductID).
		Updates(map[string]any{
			"quantity": gorm.Expr("quantity + ?", item.Quantity),
			"name":     item.Name,
			"price":    item.Price,
			"image":    item.Image,
			"material": item.Material,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return db.Where("cart_id = ? AND product_id = ?", item.CartID, item.ProductID).First(item).Error
	}
	return db.Create(item).Error
}

func (r *GormRepo) SetCartItem(ctx context.Context, item *models.CartItem) error {
	db := r.DB.WithContext(ctx)
	res := db.Model(&models.CartItem{}).
		Where("cart_id = ? AND product_id = ?", item.CartID, item.ProductID).
		Updates(map[string]any{
			"quantity": item.Quantity,
			"name":     item.Name,
			"price":    item.Price,
			"image":    item.Image,
			"material": item.Material,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "cart item")
	}
	return db.Where("cart_id = ? AND product_id = ?", item.CartID, item.ProductID).First(item).Error
}

func (r *GormRepo) RemoveCartItem(ctx context.Context, cartID, productID uuid.UUID) error {
	res := r.DB.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "cart item")
	}
	return nil
}

func (r *GormRepo) ClearCart(ctx context.Context, cartID uuid.UUID) error {
	return r.DB.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}
