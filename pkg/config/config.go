package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"jewelry-shop"`
	ServerPort  int    `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	JWTAccessSecret string        `env:"JWT_SECRET,required,notEmpty"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"24h"`

	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaOrderTopic string   `env:"KAFKA_ORDER_TOPIC" envDefault:"order_events"`

	RedisURL string `env:"REDIS_URL"`

	ClientURL   string `env:"CLIENT_URL" envDefault:"http://localhost:3000"`
	ShippingFee int64  `env:"SHIPPING_FEE" envDefault:"0"`

	VNPay VNPay

	ChatRatePerSec float64 `env:"CHAT_RATE_PER_SEC" envDefault:"5"`
	ChatRateBurst  int     `env:"CHAT_RATE_BURST" envDefault:"10"`
}

type VNPay struct {
	TmnCode    string `env:"VNPAY_TMN_CODE"`
	HashSecret string `env:"VNPAY_HASH_SECRET"`
	PayURL     string `env:"VNPAY_PAY_URL" envDefault:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
	ReturnURL  string `env:"VNPAY_RETURN_URL"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) AccessSecret() []byte {
	return []byte(c.JWTAccessSecret)
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}
