package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"vibesnap/pkg/sharetoken"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port     string
	LogLevel string
	Store    string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	DBSSLMode  string

	JWTSecret string

	// PublicBaseURL prefixes share links, e.g. https://vibesnap.app
	PublicBaseURL    string
	ShareTokenMaxLen int
	AutosaveInterval time.Duration
}

// Load reads the configuration from the environment. Call godotenv.Load
// first if a .env file should be honoured.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          envOr("PORT", "8080"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		Store:         strings.ToLower(envOr("STORE", StorePostgres)),
		DBUser:        env("user"),
		DBPassword:    env("password"),
		DBHost:        env("host"),
		DBPort:        envOr("port", "5432"),
		DBName:        env("dbname"),
		DBSSLMode:     envOr("DB_SSLMODE", "require"),
		JWTSecret:     envOr("JWT_SECRET", env("SUPABASE_JWT_SECRET")),
		PublicBaseURL: strings.TrimRight(envOr("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
	}

	maxLen, err := strconv.Atoi(envOr("SHARE_TOKEN_MAX_LEN", strconv.Itoa(sharetoken.DefaultMaxLen)))
	if err != nil || maxLen <= 0 {
		return nil, fmt.Errorf("invalid SHARE_TOKEN_MAX_LEN %q", env("SHARE_TOKEN_MAX_LEN"))
	}
	cfg.ShareTokenMaxLen = maxLen

	interval, err := time.ParseDuration(envOr("AUTOSAVE_INTERVAL", "10s"))
	if err != nil || interval <= 0 {
		return nil, fmt.Errorf("invalid AUTOSAVE_INTERVAL %q", env("AUTOSAVE_INTERVAL"))
	}
	cfg.AutosaveInterval = interval

	switch cfg.Store {
	case StorePostgres:
		if cfg.DBHost == "" || cfg.DBName == "" {
			return nil, fmt.Errorf("postgres store needs host and dbname")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("unknown STORE %q", cfg.Store)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET (or SUPABASE_JWT_SECRET) is not set")
	}
	return cfg, nil
}

// DSN is the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envOr(key, fallback string) string {
	if v := env(key); v != "" {
		return v
	}
	return fallback
}
