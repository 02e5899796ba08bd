package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env                string
	Port               string
	MongoURI           string
	MongoDatabase      string
	JWTSecret          string
	JWTExpiresIn       time.Duration
	JWTCookieExpiresIn int // days
	CORSOrigins        []string
	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	SMTPFrom           string
	RedisAddr          string
	RedisUsername      string
	RedisPassword      string
	RateLimitMax       int64
	RateLimitWindow    time.Duration
	QueryMaxLimit      int
	SlotLockTTL        time.Duration
	ShutdownTimeout    time.Duration
}

var keys = []string{
	"ENV", "API_PORT", "MONGO_URI", "MONGO_DATABASE",
	"JWT_SECRET", "JWT_EXPIRES_IN", "JWT_COOKIE_EXPIRES_IN", "CORS_ORIGINS",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM",
	"REDIS_ADDR", "REDIS_USERNAME", "REDIS_PASSWORD",
	"RATE_LIMIT_MAX", "RATE_LIMIT_WINDOW", "QUERY_MAX_LIMIT",
	"SLOT_LOCK_TTL", "SHUTDOWN_TIMEOUT",
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("API_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "clinic")
	v.SetDefault("JWT_EXPIRES_IN", "90d")
	v.SetDefault("JWT_COOKIE_EXPIRES_IN", 90)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:5174")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM", "E-medical team <no-reply@emedical.local>")
	v.SetDefault("RATE_LIMIT_MAX", 10000)
	v.SetDefault("RATE_LIMIT_WINDOW", "1h")
	v.SetDefault("QUERY_MAX_LIMIT", 0)
	v.SetDefault("SLOT_LOCK_TTL", "5s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{
		Env:                v.GetString("ENV"),
		Port:               v.GetString("API_PORT"),
		MongoURI:           v.GetString("MONGO_URI"),
		MongoDatabase:      v.GetString("MONGO_DATABASE"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTCookieExpiresIn: v.GetInt("JWT_COOKIE_EXPIRES_IN"),
		CORSOrigins:        splitList(v.GetString("CORS_ORIGINS")),
		SMTPHost:           v.GetString("SMTP_HOST"),
		SMTPPort:           v.GetInt("SMTP_PORT"),
		SMTPUsername:       v.GetString("SMTP_USERNAME"),
		SMTPPassword:       v.GetString("SMTP_PASSWORD"),
		SMTPFrom:           v.GetString("SMTP_FROM"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisUsername:      v.GetString("REDIS_USERNAME"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RateLimitMax:       v.GetInt64("RATE_LIMIT_MAX"),
		RateLimitWindow:    v.GetDuration("RATE_LIMIT_WINDOW"),
		QueryMaxLimit:      v.GetInt("QUERY_MAX_LIMIT"),
		SlotLockTTL:        v.GetDuration("SLOT_LOCK_TTL"),
		ShutdownTimeout:    v.GetDuration("SHUTDOWN_TIMEOUT"),
	}

	ttl, err := ParseDuration(v.GetString("JWT_EXPIRES_IN"))
	if err != nil {
		return nil, err
	}
	cfg.JWTExpiresIn = ttl

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) CookieTTL() time.Duration {
	return time.Duration(c.JWTCookieExpiresIn) * 24 * time.Hour
}

// ParseDuration accepts Go durations plus a trailing "d" for days ("90d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		d, err := time.ParseDuration(days + "h")
		if err != nil {
			return 0, errors.New("invalid duration " + s)
		}
		return d * 24, nil
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
