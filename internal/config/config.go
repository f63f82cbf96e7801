package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	JWT       JWTConfig
	App       AppConfig
	Redis     RedisConfig
	PubSub    PubSubConfig
	Statutory StatutoryConfig
	Compute   ComputeConfig
	Archive   ArchiveConfig
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory". The memory driver keeps everything
	// in-process and is meant for local development only.
	Driver      string
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	SSLMode     string
	MaxConns    int32
	AutoMigrate bool
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration time.Duration
}

// AppConfig holds application configuration
type AppConfig struct {
	Name           string
	Version        string
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type RedisConfig struct {
	// Addr empty means runs are locked in-process.
	Addr     string
	Password string
	DB       int
}

type PubSubConfig struct {
	ProjectID       string
	TopicID         string
	CredentialsJSON string
	// PushToken must match the ?token= of the push subscription URL.
	PushToken string
}

type StatutoryConfig struct {
	Source   string // file | database
	Dir      string
	Watch    bool
	Region   string
	CacheTTL time.Duration
}

type ComputeConfig struct {
	Dispatcher    string // local | pubsub
	Workers       int
	QueueWorkers  int
	MaxAttempts   int
	LockTTL       time.Duration
	SweepInterval time.Duration
	SweepAge      time.Duration
}

type ArchiveConfig struct {
	Driver          string // none | local | gcs
	Dir             string
	Bucket          string
	Prefix          string
	CredentialsJSON string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := &Config{}
	var errs []error

	config.Database = DatabaseConfig{
		Driver:      getEnv("DB_DRIVER", "postgres"),
		Host:        getEnv("DB_HOST", "localhost"),
		Port:        getEnvInt("DB_PORT", 5432, &errs),
		User:        getEnv("DB_USER", "postgres"),
		Password:    getEnv("DB_PASSWORD", ""),
		Name:        getEnv("DB_NAME", "payroll"),
		SSLMode:     getEnv("DB_SSL_MODE", "disable"),
		MaxConns:    int32(getEnvInt("DB_MAX_CONNS", 25, &errs)),
		AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", false, &errs),
	}

	config.App = AppConfig{
		Name:           getEnv("APP_NAME", "payroll-engine"),
		Version:        getEnv("APP_VERSION", "dev"),
		Port:           getEnvInt("APP_PORT", 8080, &errs),
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnvDuration("JWT_ACCESS_EXPIRATION_TIME", time.Hour, &errs),
	}

	config.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0, &errs),
	}

	config.PubSub = PubSubConfig{
		ProjectID:       getEnv("PUBSUB_PROJECT_ID", ""),
		TopicID:         getEnv("PUBSUB_TOPIC_ID", "payroll-compute"),
		CredentialsJSON: getEnv("PUBSUB_CREDENTIALS_JSON", ""),
		PushToken:       getEnv("PUBSUB_PUSH_TOKEN", ""),
	}

	config.Statutory = StatutoryConfig{
		Source:   getEnv("STATUTORY_SOURCE", "file"),
		Dir:      getEnv("STATUTORY_DIR", "configs/statutory"),
		Watch:    getEnvBool("STATUTORY_WATCH", true, &errs),
		Region:   getEnv("STATUTORY_REGION", "PH"),
		CacheTTL: getEnvDuration("STATUTORY_CACHE_TTL", 5*time.Minute, &errs),
	}

	config.Compute = ComputeConfig{
		Dispatcher:    getEnv("COMPUTE_DISPATCHER", "local"),
		Workers:       getEnvInt("COMPUTE_WORKERS", 8, &errs),
		QueueWorkers:  getEnvInt("COMPUTE_QUEUE_WORKERS", 2, &errs),
		MaxAttempts:   getEnvInt("COMPUTE_MAX_ATTEMPTS", 5, &errs),
		LockTTL:       getEnvDuration("COMPUTE_LOCK_TTL", 5*time.Minute, &errs),
		SweepInterval: getEnvDuration("COMPUTE_SWEEP_INTERVAL", time.Minute, &errs),
		SweepAge:      getEnvDuration("COMPUTE_SWEEP_AGE", 10*time.Minute, &errs),
	}

	config.Archive = ArchiveConfig{
		Driver:          getEnv("ARCHIVE_DRIVER", "none"),
		Dir:             getEnv("ARCHIVE_DIR", "./var/archive"),
		Bucket:          getEnv("ARCHIVE_GCS_BUCKET", ""),
		Prefix:          getEnv("ARCHIVE_GCS_PREFIX", ""),
		CredentialsJSON: getEnv("ARCHIVE_GCS_CREDENTIALS_JSON", ""),
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case "memory":
		if c.App.Env == "production" {
			return fmt.Errorf("DB_DRIVER=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or memory, got %q", c.Database.Driver)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}

	switch c.Statutory.Source {
	case "file":
		if c.Statutory.Dir == "" {
			return fmt.Errorf("STATUTORY_DIR is required when STATUTORY_SOURCE=file")
		}
	case "database":
		if c.Database.Driver != "postgres" {
			return fmt.Errorf("STATUTORY_SOURCE=database requires DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("STATUTORY_SOURCE must be file or database, got %q", c.Statutory.Source)
	}

	switch c.Compute.Dispatcher {
	case "local":
	case "pubsub":
		if c.PubSub.ProjectID == "" || c.PubSub.TopicID == "" {
			return fmt.Errorf("PUBSUB_PROJECT_ID and PUBSUB_TOPIC_ID are required when COMPUTE_DISPATCHER=pubsub")
		}
	default:
		return fmt.Errorf("COMPUTE_DISPATCHER must be local or pubsub, got %q", c.Compute.Dispatcher)
	}
	if c.Compute.Workers < 1 {
		return fmt.Errorf("COMPUTE_WORKERS must be at least 1")
	}

	switch c.Archive.Driver {
	case "none", "local":
	case "gcs":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("ARCHIVE_GCS_BUCKET is required when ARCHIVE_DRIVER=gcs")
		}
	default:
		return fmt.Errorf("ARCHIVE_DRIVER must be none, local or gcs, got %q", c.Archive.Driver)
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// SlogLevel maps LOG_LEVEL onto slog; unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.App.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return d
}

func getEnvSlice(key string, fallback []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
