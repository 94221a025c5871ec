package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

type Config struct {
	Env      string
	HTTPAddr string

	DBHost string
	DBPort string
	DBUser string
	DBPass string
	DBName string

	RedisAddr    string
	ProductTTL   time.Duration
	JWTSecret    string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// RestockOnCancel returns the quantity of a cancelled order to the product.
	RestockOnCancel bool
}

// Load reads the service configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Env:          getEnv("ENV", "development"),
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		DBHost:       getEnv("DB_HOST", "127.0.0.1"),
		DBPort:       getEnv("DB_PORT", "3306"),
		DBUser:       getEnv("DB_USER", "root"),
		DBPass:       os.Getenv("DB_PASS"),
		DBName:       getEnv("DB_NAME", "marketplace"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		KafkaBrokers: getKafkaBrokerURLs(),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "order-topic"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "marketplace-group"),
	}

	ttl, err := time.ParseDuration(getEnv("PRODUCT_CACHE_TTL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid PRODUCT_CACHE_TTL: %w", err)
	}
	cfg.ProductTTL = ttl

	if v := os.Getenv("RESTOCK_ON_CANCEL"); v != "" {
		restock, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RESTOCK_ON_CANCEL: %w", err)
		}
		cfg.RestockOnCancel = restock
	}

	if cfg.JWTSecret == "" {
		if cfg.Env == "production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "secret"
	}

	return cfg, nil
}

// DSN builds the MySQL connection string. clientFoundRows makes conditional
// updates report matched rows even when no column value changes.
func (c *Config) DSN() string {
	mc := mysql.NewConfig()
	mc.User = c.DBUser
	mc.Passwd = c.DBPass
	mc.Net = "tcp"
	mc.Addr = c.DBHost + ":" + c.DBPort
	mc.DBName = c.DBName
	mc.ParseTime = true
	mc.ClientFoundRows = true
	return mc.FormatDSN()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
