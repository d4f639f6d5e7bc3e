// Package config loads storefront settings from an optional config file and
// STOREFRONT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/grpcserver"
	httpapi "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/provider"
	"github.com/fjod/storefront/internal/reconcile"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/spf13/viper"
)

const envPrefix = "STOREFRONT"

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SyncConfig struct {
	catalog.SyncConfig `mapstructure:",squash"`
	// Worker runs the periodic catalog sync inside this process.
	Worker bool `mapstructure:"worker"`
}

type Config struct {
	Log      logger.Config      `mapstructure:"log"`
	HTTP     httpapi.Config     `mapstructure:"http"`
	GRPC     grpcserver.Config  `mapstructure:"grpc"`
	Provider provider.Config    `mapstructure:"provider"`
	Checkout reconcile.Policy   `mapstructure:"checkout"`
	Sync     SyncConfig         `mapstructure:"sync"`
	Mongo    cart.MongoConfig   `mapstructure:"mongo"`
	Redis    RedisConfig        `mapstructure:"redis"`
	Kafka    events.KafkaConfig `mapstructure:"kafka"`
	SQL      checkout.SQLConfig `mapstructure:"sql"`
}

// Load reads path when given, or ./storefront.{yaml,toml,json} when present,
// then applies environment overrides such as STOREFRONT_HTTP_ADDR.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("storefront")
		v.AddConfigPath(".")
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	// The catalog is synced in the shop currency.
	cfg.Sync.Currency = strings.ToLower(cfg.Checkout.Currency)
	cfg.Checkout.Currency = cfg.Sync.Currency

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Provider.SecretKey == "" {
		return errors.New("provider.secret_key is required")
	}
	if c.Checkout.Currency == "" {
		return errors.New("checkout.currency is required")
	}
	if c.Checkout.PerItemLimit == 0 {
		return errors.New("checkout.per_item_limit must be positive")
	}
	if c.Checkout.FreeShippingThreshold < 0 {
		return errors.New("checkout.free_shipping_threshold must not be negative")
	}
	if c.Checkout.AdjustableMin < 1 || c.Checkout.AdjustableMax < c.Checkout.AdjustableMin {
		return fmt.Errorf("invalid adjustable quantity bounds %d..%d",
			c.Checkout.AdjustableMin, c.Checkout.AdjustableMax)
	}
	if c.Checkout.AdjustableMax < int64(c.Checkout.PerItemLimit) {
		return fmt.Errorf("checkout.adjustable_max %d is below checkout.per_item_limit %d",
			c.Checkout.AdjustableMax, c.Checkout.PerItemLimit)
	}
	if c.Checkout.CancelURL == "" || c.Checkout.SuccessURL == "" {
		return errors.New("checkout.cancel_url and checkout.success_url are required")
	}
	switch c.SQL.Driver {
	case checkout.DriverPostgres, checkout.DriverSQLite:
	default:
		return fmt.Errorf("unsupported sql.driver %q", c.SQL.Driver)
	}
	if c.SQL.DSN == "" {
		return errors.New("sql.dsn is required")
	}
	if c.Sync.Interval <= 0 {
		return errors.New("sync.interval must be positive")
	}
	// Without Kafka nothing outside the process can refresh its snapshot.
	if !c.Sync.Worker && !c.Kafka.Enabled() {
		return errors.New("sync.worker=false requires kafka.brokers")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.sync_token", "")
	v.SetDefault("http.secure_cookies", false)

	v.SetDefault("grpc.addr", ":50052")

	v.SetDefault("provider.base_url", provider.DefaultBaseURL)
	v.SetDefault("provider.secret_key", "")
	v.SetDefault("provider.timeout", 30*time.Second)
	v.SetDefault("provider.max_retries", 3)
	v.SetDefault("provider.retry_interval", 500*time.Millisecond)
	v.SetDefault("provider.max_elapsed", 20*time.Second)
	v.SetDefault("provider.page_size", 100)
	v.SetDefault("provider.breaker.max_requests", 1)
	v.SetDefault("provider.breaker.interval", time.Minute)
	v.SetDefault("provider.breaker.timeout", 30*time.Second)
	v.SetDefault("provider.breaker.consecutive_failures", 5)

	policy := reconcile.DefaultPolicy()
	v.SetDefault("checkout.currency", policy.Currency)
	v.SetDefault("checkout.per_item_limit", policy.PerItemLimit)
	v.SetDefault("checkout.free_shipping_threshold", policy.FreeShippingThreshold)
	v.SetDefault("checkout.adjustable_min", policy.AdjustableMin)
	v.SetDefault("checkout.adjustable_max", policy.AdjustableMax)
	v.SetDefault("checkout.require_billing_address", policy.RequireBillingAddress)
	v.SetDefault("checkout.collect_phone_number", policy.CollectPhoneNumber)
	v.SetDefault("checkout.allowed_countries", policy.AllowedCountries)
	v.SetDefault("checkout.shipping_message", policy.ShippingMessage)
	v.SetDefault("checkout.cancel_url", policy.CancelURL)
	v.SetDefault("checkout.success_url", policy.SuccessURL)
	v.SetDefault("checkout.idempotent_create", policy.IdempotentCreate)

	sync := catalog.DefaultSyncConfig()
	v.SetDefault("sync.worker", true)
	v.SetDefault("sync.session_window", sync.SessionWindow)
	v.SetDefault("sync.interval", sync.Interval)
	v.SetDefault("sync.timeout", sync.Timeout)
	v.SetDefault("sync.paid_shipping.display_name", sync.PaidShipping.DisplayName)
	v.SetDefault("sync.paid_shipping.amount", sync.PaidShipping.Amount)
	v.SetDefault("sync.paid_shipping.min_delivery_days", sync.PaidShipping.MinDeliveryDays)
	v.SetDefault("sync.paid_shipping.max_delivery_days", sync.PaidShipping.MaxDeliveryDays)
	v.SetDefault("sync.free_shipping.display_name", sync.FreeShipping.DisplayName)
	v.SetDefault("sync.free_shipping.amount", sync.FreeShipping.Amount)
	v.SetDefault("sync.free_shipping.min_delivery_days", sync.FreeShipping.MinDeliveryDays)
	v.SetDefault("sync.free_shipping.max_delivery_days", sync.FreeShipping.MaxDeliveryDays)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "storefront")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.group_id", "storefront")
	v.SetDefault("kafka.async", true)

	v.SetDefault("sql.driver", checkout.DriverSQLite)
	v.SetDefault("sql.dsn", "file:storefront.db?_pragma=busy_timeout(5000)")
}
