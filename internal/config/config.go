package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ServiceName    = "storefront-ledger"
	ServiceVersion = "0.1.0"
)

const (
	LogsPath      = "/otlp/v1/logs"
	TracesPath    = "/otlp/v1/traces"
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	MySQLDSN       string
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBConnLifetime time.Duration
	LedgerTimeout  time.Duration
	RedisAddr      string
	IdempotencyTTL time.Duration

	KafkaBrokers  []string
	OrdersTopic   string
	RelayWorkers  int
	RelayInterval time.Duration
	RelayBatch    int

	RateRPS   float64
	RateBurst int

	OtelEndpoint   string
	OtelAuthHeader string
}

// Load reads the configuration from the environment. Unset variables take their
// defaults; set but malformed values are errors.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:       getenv("GRPC_ADDR", ":50051"),
		MySQLDSN:       getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/storefront?parseTime=true"),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:   splitList(getenv("KAFKA_BROKERS", "localhost:9092")),
		OrdersTopic:    getenv("ORDERS_TOPIC", "storefront.orders"),
		OtelEndpoint:   os.Getenv("OTEL_ENDPOINT"),
		OtelAuthHeader: os.Getenv("OTEL_AUTH_HEADER"),
		DBConnLifetime: 5 * time.Minute,
	}

	var err error
	if cfg.DBMaxOpenConns, err = getenvInt("DB_MAX_OPEN_CONNS", 50); err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConns, err = getenvInt("DB_MAX_IDLE_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.LedgerTimeout, err = getenvDuration("LEDGER_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = getenvDuration("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RelayWorkers, err = getenvInt("RELAY_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.RelayInterval, err = getenvDuration("RELAY_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.RelayBatch, err = getenvInt("RELAY_BATCH_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = getenvInt("RATE_BURST", 200); err != nil {
		return nil, err
	}
	if cfg.RateRPS, err = getenvFloat("RATE_RPS", 100); err != nil {
		return nil, err
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must list at least one broker")
	}
	if cfg.OtelEndpoint != "" && cfg.OtelAuthHeader == "" {
		return nil, fmt.Errorf("OTEL_AUTH_HEADER environment variable is required when OTEL_ENDPOINT is set")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func getenvFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", key, v)
	}
	return f, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
