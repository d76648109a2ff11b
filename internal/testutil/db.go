// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/Skotchmaster/jewelry_shop/internal/domain"
	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory database with every table migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to connect to in-memory db")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every new connection would see an empty :memory: database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.Migrate(db), "failed to migrate tables")
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func SeedUser(t *testing.T, db *gorm.DB, role string) models.User {
	t.Helper()

	u := models.User{
		Email:        uuid.NewString() + "@example.com",
		Name:         role + " user",
		PasswordHash: "x",
		Role:         role,
		Active:       true,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func SeedProduct(t *testing.T, db *gorm.DB, title string, price int64, qty int) models.Product {
	t.Helper()

	p := models.Product{
		Title:    title,
		Category: "ring",
		Material: "gold",
		Price:    price,
		Quantity: qty,
		Image:    "/img/" + title + ".jpg",
		Status:   models.ProductStatusActive,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func SeedCoupon(t *testing.T, db *gorm.DB, c models.Coupon) models.Coupon {
	t.Helper()

	require.NoError(t, db.Create(&c).Error)
	return c
}

func ReloadProduct(t *testing.T, db *gorm.DB, id uuid.UUID) models.Product {
	t.Helper()

	var p models.Product
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return p
}

func ReloadCoupon(t *testing.T, db *gorm.DB, id uuid.UUID) models.Coupon {
	t.Helper()

	var c models.Coupon
	require.NoError(t, db.First(&c, "id = ?", id).Error)
	return c
}

func Actor(u models.User) domain.Actor {
	return domain.Actor{UserID: u.ID, Role: u.Role}
}
