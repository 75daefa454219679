package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

const (
	CatalogHTTP  = "http"
	CatalogMySQL = "mysql"

	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

type Config struct {
	HTTPAddr string `env:"CART_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"CART_GRPC_ADDR" envDefault:":50051"`

	CatalogBackend string        `env:"CART_CATALOG_BACKEND" envDefault:"http"`
	CatalogURL     string        `env:"CART_CATALOG_URL" envDefault:"http://localhost:3333"`
	CatalogTimeout time.Duration `env:"CART_CATALOG_TIMEOUT" envDefault:"5s"`
	MySQLDSN       string        `env:"CART_MYSQL_DSN" envDefault:"root:root@tcp(localhost:3306)/storefront?parseTime=true"`

	// Redis caches catalog lookups when StockCache is set and backs the
	// redis storage backend.
	RedisAddr       string        `env:"CART_REDIS_ADDR" envDefault:"localhost:6379"`
	StockCache      bool          `env:"CART_STOCK_CACHE" envDefault:"false"`
	StockCacheTTL   time.Duration `env:"CART_STOCK_CACHE_TTL" envDefault:"5s"`
	ProductCacheTTL time.Duration `env:"CART_PRODUCT_CACHE_TTL" envDefault:"10m"`

	StorageBackend string `env:"CART_STORAGE_BACKEND" envDefault:"sqlite"`
	SQLitePath     string `env:"CART_SQLITE_PATH" envDefault:"cart.db"`
	StorageKey     string `env:"CART_STORAGE_KEY" envDefault:"@storefront:cart"`
	NoticeBuffer   int    `env:"CART_NOTICE_BUFFER" envDefault:"50"`

	LogLevel     string `env:"CART_LOG_LEVEL" envDefault:"info"`
	OTLPEndpoint string `env:"CART_OTLP_ENDPOINT"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.CatalogBackend {
	case CatalogHTTP, CatalogMySQL:
	default:
		return fmt.Errorf("unknown catalog backend %q", c.CatalogBackend)
	}
	switch c.StorageBackend {
	case StorageSQLite, StorageRedis, StorageMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if c.StorageKey == "" {
		return fmt.Errorf("storage key is required")
	}
	if c.CatalogTimeout <= 0 {
		return fmt.Errorf("catalog timeout must be positive, got %s", c.CatalogTimeout)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis connection.
func (c Config) UsesRedis() bool {
	return c.StockCache || c.StorageBackend == StorageRedis
}
