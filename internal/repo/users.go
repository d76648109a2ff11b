package repo

import (
	"context"
	"strings"

	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/google/uuid"
)

func (r *GormRepo) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (r *GormRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.DB.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

// ActiveUserRole returns the role of an active user.
func (r *GormRepo) ActiveUserRole(ctx context.Context, id uuid.UUID) (string, error) {
	var u models.User
	err := r.DB.WithContext(ctx).
		Select("id", "role").
		Where("id = ? AND active = ?", id, true).
		First(&u).Error
	if err != nil {
		return "", notFound(err, "user")
	}
	return u.Role, nil
}

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return r.DB.WithContext(ctx).Create(u).Error
}
