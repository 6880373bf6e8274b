package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled       bool
	AuthRequests  int
	AuthWindow    time.Duration
	WriteRequests int
	WriteWindow   time.Duration
	ReadRequests  int
	ReadWindow    time.Duration
}

// SecurityHeadersConfig holds security header configuration.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	ReferrerPolicy     string
}

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Tenant routing
	PrimaryDomain      string
	PreviewSuffixes    []string
	ReservedSubdomains []string
	ResolverCacheTTL   time.Duration
	ResolverTimeout    time.Duration

	// Redis (optional; shares the resolver cache across replicas)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration

	// HTTP limits
	MaxRequestBodySize int64
	RateLimit          RateLimitConfig
	SecurityHeaders    SecurityHeadersConfig
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "crmcore"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Tenant routing
		PrimaryDomain:      getEnv("PRIMARY_DOMAIN", ""),
		PreviewSuffixes:    getEnvList("PREVIEW_SUFFIXES", nil),
		ReservedSubdomains: getEnvList("RESERVED_SUBDOMAINS", nil),
		ResolverCacheTTL:   getEnvDuration("RESOLVER_CACHE_TTL", 2*time.Minute),
		ResolverTimeout:    getEnvDuration("RESOLVER_TIMEOUT", 3*time.Second),

		// Redis (optional)
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// JWT defaults
		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", "crmcore"),
		AccessTokenTTL: getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),

		// HTTP limits
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		RateLimit: RateLimitConfig{
			Enabled:       getEnvBool("RATE_LIMIT_ENABLED", true),
			AuthRequests:  getEnvInt("RATE_LIMIT_AUTH_REQUESTS", 10),
			AuthWindow:    getEnvDuration("RATE_LIMIT_AUTH_WINDOW", time.Minute),
			WriteRequests: getEnvInt("RATE_LIMIT_WRITE_REQUESTS", 30),
			WriteWindow:   getEnvDuration("RATE_LIMIT_WRITE_WINDOW", time.Minute),
			ReadRequests:  getEnvInt("RATE_LIMIT_READ_REQUESTS", 300),
			ReadWindow:    getEnvDuration("RATE_LIMIT_READ_WINDOW", time.Minute),
		},
		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'self'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 31536000),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", "nosniff"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "strict-origin-when-cross-origin"),
		},
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.PrimaryDomain == "" {
		return nil, fmt.Errorf("PRIMARY_DOMAIN is required")
	}

	return cfg, nil
}

// HasRedis returns true if a redis-backed resolver cache is configured.
func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
