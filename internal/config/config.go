package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Auth   AuthConfig
	Upload UploadConfig
}

type ServerConfig struct {
	Port     int
	LogLevel string
	// CORSOrigins lists allowed browser origins. Credentials are allowed, so
	// this is never a wildcard.
	CORSOrigins []string
	// RateLimit is the number of requests per IP per RateWindow.
	RateLimit     int
	AuthRateLimit int
	RateWindow    time.Duration
	MaxBodyBytes  int64
}

type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxConns int
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

type UploadConfig struct {
	Dir      string
	TempDir  string
	MaxBytes int64
}

func (d DBConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

// MigrateURL is the DSN in the form expected by the golang-migrate pgx/v5 driver.
func (d DBConfig) MigrateURL() string {
	return "pgx5" + strings.TrimPrefix(d.DSN(), "postgres")
}

func Load() (*Config, error) {
	// Load .env.local first (local development), then .env as fallback
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := &Config{}

	// Server config
	cfg.Server.Port = getEnvAsInt("SERVER_PORT", 5000)
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.Server.CORSOrigins = getEnvAsList("CORS_ORIGINS", nil)
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = DefaultCORSOrigins(getEnv("FRONTEND_URL", ""))
	}
	cfg.Server.RateLimit = getEnvAsInt("RATE_LIMIT_PER_WINDOW", 1000)
	cfg.Server.AuthRateLimit = getEnvAsInt("AUTH_RATE_LIMIT_PER_WINDOW", 50)
	cfg.Server.RateWindow = getEnvAsDuration("RATE_LIMIT_WINDOW", 15*time.Minute)
	cfg.Server.MaxBodyBytes = int64(getEnvAsInt("MAX_BODY_BYTES", 10<<20))

	// DB config
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.DB.Name = getEnv("DB_NAME", "school_db")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.DB.MaxConns = getEnvAsInt("DB_MAX_CONNS", 20)

	// Auth config
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.Auth.TokenTTL = time.Duration(getEnvAsInt("JWT_TTL_HOURS", 24)) * time.Hour
	cfg.Auth.AdminUsername = getEnv("ADMIN_USERNAME", "admin")
	cfg.Auth.AdminEmail = getEnv("ADMIN_EMAIL", "admin@school.local")
	cfg.Auth.AdminPassword = getEnv("ADMIN_PASSWORD", "admin123")

	// Upload config
	cfg.Upload.Dir = getEnv("UPLOAD_DIR", "uploads/news")
	cfg.Upload.TempDir = getEnv("UPLOAD_TEMP_DIR", "uploads/temp")
	cfg.Upload.MaxBytes = int64(getEnvAsInt("UPLOAD_MAX_BYTES", 5<<20))

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Server.RateWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}

	return cfg, nil
}

// DefaultCORSOrigins returns the local frontend dev servers plus frontendURL
func DefaultCORSOrigins(frontendURL string) []string {
	origins := []string{"http://localhost:3000", "http://localhost:3001"}
	frontendURL = strings.TrimRight(strings.TrimSpace(frontendURL), "/")
	if frontendURL != "" && !slices.Contains(origins, frontendURL) {
		origins = append(origins, frontendURL)
	}
	return origins
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
