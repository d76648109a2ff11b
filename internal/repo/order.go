package repo

import (
	"context"

	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderFilter struct {
	UserID uuid.UUID
	Status string
	Page
}

func (r *GormRepo) CreateOrder(ctx context.Context, o *models.Order) error {
	return r.DB.WithContext(ctx).Create(o).Error
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := r.DB.WithContext(ctx).Preload("Items").First(&o, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "order")
	}
	return &o, nil
}

// TransitionOrder moves the order to a new status only while it is still in one of from.
// It reports false when another writer changed the status first.
func (r *GormRepo) TransitionOrder(ctx context.Context, id uuid.UUID, from []string, fields map[string]any) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) UpdateOrder(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.DB.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(fields).Error
}

func (r *GormRepo) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	var (
		items []models.Order
		total int64
	)
	db := r.DB.WithContext(ctx).Model(&models.Order{})
	if f.UserID != uuid.Nil {
		db = db.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		statuses := []string{f.Status}
		if f.Status == models.OrderStatusProcessing {
			statuses = append(statuses, models.OrderStatusPending)
		}
		db = db.Where("status IN ?", statuses)
	}
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Preload("Items").
		Order("created_at DESC").
		Offset(f.Offset).Limit(f.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// NormalizeLegacyStatuses rewrites rows still carrying the pending alias.
func (r *GormRepo) NormalizeLegacyStatuses(ctx context.Context) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("status = ?", models.OrderStatusPending).
		Update("status", models.OrderStatusProcessing)
	return res.RowsAffected, res.Error
}
