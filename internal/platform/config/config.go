// Package config builds process configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr     string
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig

	// AuditBuffer sizes the in-process audit inbox between the request path
	// and the sink worker.
	AuditBuffer int
}

// PostgresConfig configures the primary relational store. An empty URL means
// Postgres is not configured.
type PostgresConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig configures the Redis-backed proxy store. An empty URL means
// Redis is not configured.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit event sink. Empty brokers mean audit
// events stay in process.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("IDENTITY_PROXY_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return Server{
		Addr: addr,
		Postgres: PostgresConfig{
			URL:          os.Getenv("IDENTITY_PROXY_POSTGRES_URL"),
			MaxOpenConns: envInt("IDENTITY_PROXY_POSTGRES_MAX_OPEN", 25),
			MaxIdleConns: envInt("IDENTITY_PROXY_POSTGRES_MAX_IDLE", 5),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("IDENTITY_PROXY_REDIS_URL"),
			PoolSize:     envInt("IDENTITY_PROXY_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("IDENTITY_PROXY_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: envList("IDENTITY_PROXY_KAFKA_BROKERS"),
			Topic:   envDefault("IDENTITY_PROXY_KAFKA_TOPIC", "identity-proxy.audit"),
		},
		AuditBuffer: envInt("IDENTITY_PROXY_AUDIT_BUFFER", 1024),
	}
}

func envDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func envList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}
