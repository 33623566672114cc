package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration for the custodia server.
type Config struct {
	Addr string

	// PostgresURL enables the durable registry/ledger/audit stores. When empty
	// the server runs on in-memory stores (dev mode).
	PostgresURL string

	// Redis backs the treasury balance. When empty an in-memory treasury with
	// DevBalance is used.
	Redis RedisConfig

	// Kafka fans audit events out to a broker topic. When no brokers are
	// configured the fan-out sink is skipped.
	KafkaBrokers []string
	KafkaTopic   string

	JWTSigningKey string

	// DevSigners seeds the registry in memory mode: comma-separated principal
	// UUIDs. DevQuorum defaults to a majority of the seeded set.
	DevSigners []string
	DevQuorum  int
	DevBalance int64

	ShutdownTimeout time.Duration
}

// RedisConfig captures Redis connection tuning.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("CUSTODIA_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	kafkaTopic := os.Getenv("CUSTODIA_KAFKA_TOPIC")
	if kafkaTopic == "" {
		kafkaTopic = "custodia.vault.audit"
	}

	return Config{
		Addr:            addr,
		PostgresURL:     os.Getenv("CUSTODIA_POSTGRES_URL"),
		Redis:           redisFromEnv(),
		KafkaBrokers:    splitNonEmpty(os.Getenv("CUSTODIA_KAFKA_BROKERS")),
		KafkaTopic:      kafkaTopic,
		JWTSigningKey:   jwtSigningKey,
		DevSigners:      splitNonEmpty(os.Getenv("CUSTODIA_DEV_SIGNERS")),
		DevQuorum:       envInt("CUSTODIA_DEV_QUORUM", 0),
		DevBalance:      int64(envInt("CUSTODIA_DEV_BALANCE", 0)),
		ShutdownTimeout: 10 * time.Second,
	}
}

func redisFromEnv() RedisConfig {
	return RedisConfig{
		URL:          os.Getenv("CUSTODIA_REDIS_URL"),
		PoolSize:     envInt("CUSTODIA_REDIS_POOL_SIZE", 10),
		MinIdleConns: envInt("CUSTODIA_REDIS_MIN_IDLE", 2),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
