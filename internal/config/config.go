package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	LogLevel string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string
	RateLimit     RateLimitConfig

	// Shared secret used to verify inbound payment webhook signatures.
	PaymentWebhookSecret string

	Email EmailConfig
	DNS   DNSConfig

	SessionTTLHours  int
	AuthCookieSecure bool

	Bootstrap BootstrapConfig
}

type EmailConfig struct {
	Enabled      bool
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type DNSConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
}

type RateLimitConfig struct {
	ValidateRate  float64
	ValidateBurst int
}

type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "steadfast"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		LogLevel: strings.ToLower(getenv("LOG_LEVEL", "info")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "steadfast"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME_MIN", 30),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RateLimit: RateLimitConfig{
			ValidateRate:  getenvFloat("RATE_LIMIT_VALIDATE_RATE", 1),
			ValidateBurst: getenvInt("RATE_LIMIT_VALIDATE_BURST", 10),
		},

		PaymentWebhookSecret: strings.TrimSpace(getenv("PAYMENT_WEBHOOK_SECRET", "")),

		Email: EmailConfig{
			Enabled:      getenvBool("EMAIL_ENABLED", false),
			SMTPHost:     getenv("SMTP_HOST", "localhost"),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "no-reply@steadfast.app"),
		},
		DNS: DNSConfig{
			Enabled: getenvBool("DNS_PROVIDER_ENABLED", false),
			BaseURL: strings.TrimRight(getenv("DNS_PROVIDER_BASE_URL", "https://api.nextdns.io"), "/"),
			APIKey:  strings.TrimSpace(getenv("DNS_PROVIDER_API_KEY", "")),
		},

		SessionTTLHours:  getenvInt("SESSION_TTL_HOURS", 24*30),
		AuthCookieSecure: getenvBool("AUTH_COOKIE_SECURE", true),

		Bootstrap: BootstrapConfig{
			AdminEmail:    strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_EMAIL", "")),
			AdminPassword: getenv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
	}
}

// Module wires application configuration.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewPolicyHolder),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
