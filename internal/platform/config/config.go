package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// Loads a .env file when present; real environment variables win.
	_ "github.com/joho/godotenv/autoload"
)

// Server captures process-level configuration.
type Server struct {
	Addr           string
	AdminToken     string
	StoreTimeout   time.Duration
	MaxUploadBytes int64
	PolicyFile     string
	JWT            JWTConfig
	Database       DatabaseConfig
	MinIO          MinIOConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	Outbox         OutboxConfig
	SeedTenants    []SeedTenant
}

// JWTConfig validates bearer tokens minted by the upstream identity provider.
type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
}

// DatabaseConfig holds PostgreSQL settings. An empty URL runs the process on
// in-memory stores.
type DatabaseConfig struct {
	URL                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds attachment object storage settings. An empty endpoint
// keeps attachment bytes in memory.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// RedisConfig configures the distributed entity lock. An empty URL falls back
// to an in-process lock, which is only correct for a single replica.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
}

// KafkaConfig configures notification publishing. Without brokers the relay
// logs notifications instead.
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	Partitions int32
}

// OutboxConfig tunes the relay and the purge of published rows.
type OutboxConfig struct {
	Interval      time.Duration
	BatchSize     int
	PurgeSchedule string
	Retention     time.Duration
}

// SeedTenant is a tenant created at startup when absent.
type SeedTenant struct {
	ID   string
	Name string
	Mode string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	seeds, err := parseSeedTenants(os.Getenv("SEED_TENANTS"))
	if err != nil {
		return Server{}, err
	}
	cfg := Server{
		Addr:           getEnv("EVIDENTIA_ADDR", ":8080"),
		AdminToken:     os.Getenv("ADMIN_API_TOKEN"),
		StoreTimeout:   getEnvDuration("STORE_TIMEOUT", 2*time.Second),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 64<<20)),
		PolicyFile:     os.Getenv("POLICY_FILE"),
		JWT: JWTConfig{
			SigningKey: os.Getenv("JWT_SIGNING_KEY"),
			Issuer:     os.Getenv("JWT_ISSUER"),
			Audience:   os.Getenv("JWT_AUDIENCE"),
		},
		Database: DatabaseConfig{
			URL:                os.Getenv("DATABASE_URL"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    getEnv("MINIO_BUCKET", "evidence-attachments"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			LockTTL:      getEnvDuration("LOCK_TTL", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:      getEnv("KAFKA_TOPIC", "evidence.events"),
			Partitions: int32(getEnvInt("KAFKA_PARTITIONS", 3)),
		},
		Outbox: OutboxConfig{
			Interval:      getEnvDuration("OUTBOX_INTERVAL", time.Second),
			BatchSize:     getEnvInt("OUTBOX_BATCH_SIZE", 100),
			PurgeSchedule: getEnv("OUTBOX_PURGE_SCHEDULE", "@hourly"),
			Retention:     getEnvDuration("OUTBOX_RETENTION", 72*time.Hour),
		},
		SeedTenants: seeds,
	}
	if cfg.JWT.SigningKey == "" {
		return Server{}, fmt.Errorf("JWT_SIGNING_KEY is required")
	}
	return cfg, nil
}

// parseSeedTenants reads "id:name:MODE" entries separated by commas.
func parseSeedTenants(raw string) ([]SeedTenant, error) {
	var out []SeedTenant
	for _, entry := range splitList(raw) {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("SEED_TENANTS entry %q must be id:name:MODE", entry)
		}
		out = append(out, SeedTenant{
			ID:   strings.TrimSpace(parts[0]),
			Name: strings.TrimSpace(parts[1]),
			Mode: strings.ToUpper(strings.TrimSpace(parts[2])),
		})
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
