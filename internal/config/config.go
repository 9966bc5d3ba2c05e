package config

import (
	"os"
	"strings"
	"time"

	"github.com/fedtaxi/hojaruta/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Cookie    CookieConfig
	RateLimit RateLimitConfig
	MinIO     MinIOConfig
	Client    ClientConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// AdminIdentifier/AdminPassword seed an approved admin account at startup when both are set.
	AdminIdentifier string
	AdminPassword   string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return r.Host + ":" + port
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// CookieConfig controls the httpOnly refresh cookie issued to web clients.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite string
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// Client variants.
const (
	VariantWeb    = "web"
	VariantMobile = "mobile"
)

// ClientConfig configures the embedded client core (hojactl, tests, BFFs).
type ClientConfig struct {
	BaseURL        string
	Variant        string
	Timeout        time.Duration
	RefreshTimeout time.Duration
	// TokenBackend selects where mobile credentials live: memory | redis | mongo.
	TokenBackend   string
	TokenKeyPrefix string
	DeviceID       string
	Breaker        bool
	PDFCacheSize   int
	LogLevel       string
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5001")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("MONGODB_DATABASE", "hojaruta")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	v.SetDefault("JWT_REFRESH_TOKEN_TTL", 10080)
	v.SetDefault("COOKIE_NAME", "refresh_token")
	v.SetDefault("COOKIE_PATH", "/auth")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("COOKIE_SAMESITE", "strict")
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("MINIO_BUCKET", "hojaruta-pdf")
	v.SetDefault("CLIENT_BASE_URL", "http://localhost:5001")
	v.SetDefault("CLIENT_VARIANT", VariantMobile)
	v.SetDefault("CLIENT_TIMEOUT", "15s")
	v.SetDefault("CLIENT_REFRESH_TIMEOUT", "10s")
	v.SetDefault("CLIENT_TOKEN_BACKEND", "memory")
	v.SetDefault("CLIENT_TOKEN_KEY_PREFIX", "hojaruta:")
	v.SetDefault("CLIENT_DEVICE_ID", "default")
	v.SetDefault("CLIENT_BREAKER", true)
	v.SetDefault("CLIENT_PDF_CACHE_SIZE", 20)
	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("SERVER_PORT"),
			Host:            v.GetString("SERVER_HOST"),
			Environment:     v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			AdminIdentifier: v.GetString("ADMIN_IDENTIFIER"),
			AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:          os.Getenv("JWT_SECRET"),
			AccessTokenTTL:  time.Duration(v.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTokenTTL: time.Duration(v.GetInt("JWT_REFRESH_TOKEN_TTL")) * time.Minute,
		},
		Cookie: CookieConfig{
			Name:     v.GetString("COOKIE_NAME"),
			Path:     v.GetString("COOKIE_PATH"),
			Domain:   v.GetString("COOKIE_DOMAIN"),
			Secure:   v.GetBool("COOKIE_SECURE"),
			SameSite: v.GetString("COOKIE_SAMESITE"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
		},
		Client: ClientConfig{
			BaseURL:        strings.TrimRight(v.GetString("CLIENT_BASE_URL"), "/"),
			Variant:        strings.ToLower(v.GetString("CLIENT_VARIANT")),
			Timeout:        v.GetDuration("CLIENT_TIMEOUT"),
			RefreshTimeout: v.GetDuration("CLIENT_REFRESH_TIMEOUT"),
			TokenBackend:   strings.ToLower(v.GetString("CLIENT_TOKEN_BACKEND")),
			TokenKeyPrefix: v.GetString("CLIENT_TOKEN_KEY_PREFIX"),
			DeviceID:       v.GetString("CLIENT_DEVICE_ID"),
			Breaker:        v.GetBool("CLIENT_BREAKER"),
			PDFCacheSize:   v.GetInt("CLIENT_PDF_CACHE_SIZE"),
			LogLevel:       v.GetString("LOG_LEVEL"),
		},
	}

	if cfg.Client.Variant != VariantWeb && cfg.Client.Variant != VariantMobile {
		logger.Warnf("unknown CLIENT_VARIANT %q; falling back to %s", cfg.Client.Variant, VariantMobile)
		cfg.Client.Variant = VariantMobile
	}

	// Basic validation
	if cfg.JWT.Secret == "" {
		logger.Warn("JWT_SECRET is not set; set a secure value in production")
	}

	return cfg, nil
}
