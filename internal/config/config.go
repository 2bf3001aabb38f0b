// Package config содержит логику чтения конфигурации витрины.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации витрины.
type Config struct {
	RunAddress             string        `env:"RUN_ADDRESS"`
	DatabaseURI            string        `env:"DATABASE_URI"`
	RedisAddress           string        `env:"REDIS_ADDRESS"`
	LoyaltySystemAddress   string        `env:"LOYALTY_SYSTEM_ADDRESS"`
	DiscountServiceAddress string        `env:"DISCOUNT_SERVICE_ADDRESS"`
	SessionSecret          string        `env:"SESSION_SECRET"`
	DiscountTimeout        time.Duration `env:"DISCOUNT_TIMEOUT"`
	DeliveryFee            int64         `env:"DELIVERY_FEE"`
	FreeDeliveryFrom       int64         `env:"FREE_DELIVERY_FROM"`
	StrictCart             bool          `env:"STRICT_CART"`
	CartCacheSize          int           `env:"CART_CACHE_SIZE"`
	CartCacheTTL           time.Duration `env:"CART_CACHE_TTL"`
	LogLevel               string        `env:"LOG_LEVEL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for cart sessions")
	flag.StringVar(&cfg.LoyaltySystemAddress, "l", "", "loyalty system address")
	flag.StringVar(&cfg.DiscountServiceAddress, "D", "", "discount validation service address")
	flag.StringVar(&cfg.SessionSecret, "s", "", "session cookie signing secret")
	flag.DurationVar(&cfg.DiscountTimeout, "discount-timeout", 3*time.Second, "discount code validation timeout")
	flag.Int64Var(&cfg.DeliveryFee, "delivery-fee", 500, "delivery fee")
	flag.Int64Var(&cfg.FreeDeliveryFrom, "free-delivery-from", 15000, "order total with free delivery, 0 disables")
	flag.BoolVar(&cfg.StrictCart, "strict-cart", false, "report unknown cart lines as errors")
	flag.IntVar(&cfg.CartCacheSize, "cart-cache-size", 10000, "carts kept in memory")
	flag.DurationVar(&cfg.CartCacheTTL, "cart-cache-ttl", 30*time.Minute, "idle time before a cart is dropped from memory")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "log level")

	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DiscountTimeout <= 0:
		return errors.New("discount timeout must be positive")
	case c.DeliveryFee < 0:
		return errors.New("delivery fee must not be negative")
	case c.FreeDeliveryFrom < 0:
		return errors.New("free delivery threshold must not be negative")
	case c.CartCacheSize <= 0:
		return errors.New("cart cache size must be positive")
	case c.CartCacheTTL <= 0:
		return errors.New("cart cache ttl must be positive")
	}
	return nil
}
