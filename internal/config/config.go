package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Xero      XeroConfig
	Session   SessionConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// XeroConfig describes the OIDC client registration with the identity provider.
type XeroConfig struct {
	Issuer          string
	ClientID        string
	ClientSecret    string
	RedirectURI     string
	ConnectionsURL  string
	ExchangeTimeout time.Duration
	PendingTTL      time.Duration
}

type SessionConfig struct {
	// Secret signs the recentSession cookie. Process-wide, read-only after startup.
	Secret    string
	CookieTTL time.Duration
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

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and .env file.
// Missing identity-provider credentials or signing secrets are an error;
// the caller must treat that as fatal before serving.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5000")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("XERO_ISSUER", "https://identity.xero.com")
	viper.SetDefault("XERO_CONNECTIONS_URL", "https://api.xero.com/connections")
	viper.SetDefault("XERO_EXCHANGE_TIMEOUT", 10)
	viper.SetDefault("XERO_PENDING_TTL", 600)
	viper.SetDefault("SESSION_COOKIE_TTL", 3600)
	viper.SetDefault("MONGODB_DATABASE", "xero_signup")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("RATE_LIMIT_RPS", 5.0)
	viper.SetDefault("RATE_LIMIT_BURST", 10)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Xero: XeroConfig{
			Issuer:          viper.GetString("XERO_ISSUER"),
			ClientID:        viper.GetString("XERO_CLIENT_ID"),
			ClientSecret:    os.Getenv("XERO_CLIENT_SECRET"),
			RedirectURI:     viper.GetString("XERO_REDIRECT_URI"),
			ConnectionsURL:  viper.GetString("XERO_CONNECTIONS_URL"),
			ExchangeTimeout: time.Duration(viper.GetInt("XERO_EXCHANGE_TIMEOUT")) * time.Second,
			PendingTTL:      time.Duration(viper.GetInt("XERO_PENDING_TTL")) * time.Second,
		},
		Session: SessionConfig{
			Secret:    os.Getenv("SESSION_SECRET"),
			CookieTTL: time.Duration(viper.GetInt("SESSION_COOKIE_TTL")) * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	// Startup validation: without provider credentials or a cookie secret the
	// service must not begin serving.
	for _, req := range []struct{ key, val string }{
		{"XERO_CLIENT_ID", cfg.Xero.ClientID},
		{"XERO_CLIENT_SECRET", cfg.Xero.ClientSecret},
		{"XERO_REDIRECT_URI", cfg.Xero.RedirectURI},
		{"SESSION_SECRET", cfg.Session.Secret},
		{"MONGODB_URI", cfg.MongoDB.URI},
	} {
		if req.val == "" {
			return nil, fmt.Errorf("environment variable %s is required", req.key)
		}
	}

	return cfg, nil
}
