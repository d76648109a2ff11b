package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Skotchmaster/jewelry_shop/internal/httpserver"
	"github.com/Skotchmaster/jewelry_shop/internal/mykafka"
	"github.com/Skotchmaster/jewelry_shop/internal/realtime"
	"github.com/Skotchmaster/jewelry_shop/internal/repo"
	"github.com/Skotchmaster/jewelry_shop/internal/service/auth"
	"github.com/Skotchmaster/jewelry_shop/internal/service/cart"
	"github.com/Skotchmaster/jewelry_shop/internal/service/chat"
	"github.com/Skotchmaster/jewelry_shop/internal/service/coupon"
	"github.com/Skotchmaster/jewelry_shop/internal/service/order"
	"github.com/Skotchmaster/jewelry_shop/internal/service/payment"
	"github.com/Skotchmaster/jewelry_shop/internal/vnpay"
	"github.com/Skotchmaster/jewelry_shop/pkg/config"
	"github.com/Skotchmaster/jewelry_shop/pkg/db"
	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
	authmw "github.com/Skotchmaster/jewelry_shop/pkg/middleware/auth"
	loggingmw "github.com/Skotchmaster/jewelry_shop/pkg/middleware/logging"
)

type eventSink interface {
	order.Publisher
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	r := repo.New(gdb)

	var events eventSink = mykafka.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		events = mykafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
		logger.Info("kafka_enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaOrderTopic)
	}

	hub := realtime.NewHub()
	rdb := openRedis(ctx, logger, cfg.RedisURL)
	if rdb != nil {
		hub.Relay = realtime.NewRedisRelay(rdb, "")
		go func() {
			if err := hub.RunRelay(logging.IntoContext(ctx, logger)); err != nil {
				logger.Error("relay_stopped", "error", err)
			}
		}()
	}
	go hub.Run(ctx)

	authenticator := authmw.NewAuthenticator(cfg.AccessSecret(), r)
	gateway := vnpay.New(vnpay.Config{
		TmnCode:    cfg.VNPay.TmnCode,
		HashSecret: cfg.VNPay.HashSecret,
		PayURL:     cfg.VNPay.PayURL,
		ReturnURL:  cfg.VNPay.ReturnURL,
	})
	if !gateway.Configured() {
		logger.Warn("vnpay_disabled", "reason", "VNPAY_TMN_CODE or VNPAY_HASH_SECRET missing")
	}

	chatSvc := chat.New(r, hub)
	payments := payment.New(r, gateway, events, cfg.ClientURL)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.ClientURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		Auth:           authenticator,
		AuthHandler:    &httpserver.AuthHTTP{Svc: auth.New(r, cfg.AccessSecret(), cfg.AccessTokenTTL)},
		CartHandler:    &httpserver.CartHTTP{Svc: cart.New(r)},
		OrderHandler:   &httpserver.OrderHTTP{Svc: order.New(r, events, cfg.ShippingFee), Payments: payments},
		CouponHandler:  &httpserver.CouponHTTP{Svc: coupon.New(r)},
		PaymentHandler: &httpserver.PaymentHTTP{Svc: payments},
		ChatHandler:    &httpserver.ChatHTTP{Svc: chatSvc},
		Socket:         realtime.NewHandler(hub, authenticator, chatSvc, cfg.ChatRatePerSec, cfg.ChatRateBurst),
		Ready:          func(ctx context.Context) error { return db.Ping(ctx, gdb) },
	})

	go func() {
		logger.Info("server_starting", "addr", cfg.Addr())
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}
	closeAll(logger, gdb, events, rdb)
	logger.Info("shutdown_complete")
}

// openRedis returns nil when no relay is configured or the server is unreachable;
// the hub then delivers to local sockets only.
func openRedis(ctx context.Context, logger *slog.Logger, url string) *redis.Client {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Error("redis_url_invalid", "error", err)
		return nil
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("redis_unreachable", "error", err)
		_ = client.Close()
		return nil
	}
	logger.Info("redis_relay_enabled", "addr", opts.Addr)
	return client
}

func closeAll(logger *slog.Logger, gdb *gorm.DB, events eventSink, rdb *redis.Client) {
	if err := db.Close(gdb); err != nil {
		logger.Error("db_close_error", "error", err)
	}
	if err := events.Close(); err != nil {
		logger.Error("kafka_close_error", "error", err)
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("redis_close_error", "error", err)
		}
	}
}
