package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/Skotchmaster/jewelry_shop/internal/domain"
	"github.com/Skotchmaster/jewelry_shop/internal/models"
	"github.com/Skotchmaster/jewelry_shop/internal/repo"
	"github.com/Skotchmaster/jewelry_shop/internal/service/auth"
	"github.com/Skotchmaster/jewelry_shop/pkg/config"
	"github.com/Skotchmaster/jewelry_shop/pkg/db"
	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
)

// migrate creates the schema, rewrites legacy order statuses and seeds the first admin.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName, "cmd", "migrate")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer func() { _ = db.Close(gdb) }()

	if err := models.Migrate(gdb.WithContext(ctx)); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	logger.Info("schema_migrated")

	r := repo.New(gdb)
	n, err := r.NormalizeLegacyStatuses(ctx)
	if err != nil {
		log.Fatalf("normalize statuses: %v", err)
	}
	logger.Info("legacy_statuses_rewritten", "rows", n)

	email, password := os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		logger.Info("admin_seed_skipped", "reason", "ADMIN_EMAIL or ADMIN_PASSWORD not set")
		return
	}
	svc := auth.New(r, cfg.AccessSecret(), cfg.AccessTokenTTL)
	u, created, err := svc.EnsureUser(ctx, email, password, "Administrator", domain.RoleAdmin)
	if err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	logger.Info("admin_seeded", "user_id", u.ID, "created", created)
}
