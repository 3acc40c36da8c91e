package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	strutil "selfid/pkg/platform/strings"
)

// DefaultSeed is the demo identity used when no wallet seed is configured.
const DefaultSeed = "08b2e655d239e24e3ca9aa17bc1d05c1dee289d6ebf0b3542fd9536912d51ee0"

// Index backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendRemote   = "remote"
)

// Server captures process level configuration.
type Server struct {
	Addr           string        `yaml:"addr"`
	Environment    string        `yaml:"environment"`
	LogLevel       string        `yaml:"log_level"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// SessionIdleTTL closes editor sessions not touched for this long.
	SessionIdleTTL       time.Duration `yaml:"session_idle_ttl"`
	SessionSweepInterval time.Duration `yaml:"session_sweep_interval"`

	Auth     AuthConfig     `yaml:"auth"`
	Index    IndexConfig    `yaml:"index"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

// AuthConfig configures the keyring the viewer authenticates with.
type AuthConfig struct {
	WalletSeeds   []string      `yaml:"wallet_seeds"`
	TokenAudience string        `yaml:"token_audience"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
}

// IndexConfig selects and tunes the identity index document store.
type IndexConfig struct {
	Backend          string        `yaml:"backend"`
	RemoteURL        string        `yaml:"remote_url"`
	RemoteTimeout    time.Duration `yaml:"remote_timeout"`
	KeyPrefix        string        `yaml:"key_prefix"`
	BreakerFailures  int           `yaml:"breaker_failures"`
	BreakerSuccesses int           `yaml:"breaker_successes"`
}

type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type PostgresConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// KafkaConfig configures the document update stream. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// FromEnv builds a Server config from the environment (and .env if present),
// then applies the YAML file named by SELFID_CONFIG_FILE on top.
func FromEnv() (Server, error) {
	_ = godotenv.Load()

	cfg := Server{
		Addr:           getEnv("SELFID_ADDR", ":8080"),
		Environment:    getEnv("SELFID_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		CORSOrigins:    strutil.SplitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),

		SessionIdleTTL:       getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		Auth: AuthConfig{
			WalletSeeds:   strutil.SplitList(getEnv("WALLET_SEEDS", DefaultSeed)),
			TokenAudience: getEnv("TOKEN_AUDIENCE", "selfid-index"),
			TokenTTL:      getEnvDuration("TOKEN_TTL", 15*time.Minute),
		},
		Index: IndexConfig{
			Backend:          getEnv("INDEX_BACKEND", BackendMemory),
			RemoteURL:        getEnv("INDEX_REMOTE_URL", "http://localhost:7007"),
			RemoteTimeout:    getEnvDuration("INDEX_REMOTE_TIMEOUT", 5*time.Second),
			KeyPrefix:        getEnv("INDEX_KEY_PREFIX", "idx:doc:"),
			BreakerFailures:  getEnvInt("INDEX_BREAKER_FAILURES", 5),
			BreakerSuccesses: getEnvInt("INDEX_BREAKER_SUCCESSES", 3),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: strutil.SplitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_DOCUMENT_TOPIC", "selfid.documents"),
		},
	}

	if path := os.Getenv("SELFID_CONFIG_FILE"); path != "" {
		if err := overlayFile(path, &cfg); err != nil {
			return Server{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Server{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that the selected backend has what it needs.
func (c Server) Validate() error {
	switch c.Index.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis index backend")
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres index backend")
		}
	case BackendRemote:
		if c.Index.RemoteURL == "" {
			return fmt.Errorf("INDEX_REMOTE_URL is required for the remote index backend")
		}
	default:
		return fmt.Errorf("unknown index backend %q", c.Index.Backend)
	}
	if len(c.Auth.WalletSeeds) == 0 {
		return fmt.Errorf("at least one wallet seed is required")
	}
	if c.SessionIdleTTL <= 0 || c.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL and SESSION_SWEEP_INTERVAL must be positive")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	return nil
}

// overlayFile decodes a YAML file over cfg. Keys absent from the file keep
// their environment values.
func overlayFile(path string, cfg *Server) error {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 - path comes from the operator
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
