package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr string

	// DatabaseURL enables the Postgres request store when set; empty keeps
	// the in-memory store.
	DatabaseURL string

	Redis RedisConfig
	Kafka KafkaConfig

	// PendingTTL bounds how long a request may sit unanswered before the
	// sweep expires it.
	PendingTTL time.Duration
	// SweepInterval is the expiry sweep cadence.
	SweepInterval time.Duration

	// RegistrySeedPath points at a JSON seed for the static name registry.
	RegistrySeedPath string
}

// RedisConfig covers the reveal-window cache. Empty URL disables Redis and
// falls back to the in-memory cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig covers the audit event sink. No brokers disables Kafka.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:             envOr("ASKME_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("ASKME_DATABASE_URL"),
		PendingTTL:       envDuration("ASKME_PENDING_TTL", 24*time.Hour),
		SweepInterval:    envDuration("ASKME_SWEEP_INTERVAL", time.Minute),
		RegistrySeedPath: os.Getenv("ASKME_REGISTRY_SEED"),
		Redis: RedisConfig{
			URL:          os.Getenv("ASKME_REDIS_URL"),
			PoolSize:     envInt("ASKME_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("ASKME_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("ASKME_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("ASKME_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("ASKME_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Topic: envOr("ASKME_KAFKA_TOPIC", "askme.audit"),
		},
	}
	if brokers := os.Getenv("ASKME_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitCommas(brokers)
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitCommas(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if part := s[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
