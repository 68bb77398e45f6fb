package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	Port        string
	LogLevel    string

	DatabaseURL string

	AccessTokenSecret  []byte
	AccessTokenExpiry  time.Duration
	RefreshTokenSecret []byte
	RefreshTokenExpiry time.Duration

	CORSOrigin   string
	CookieSecure bool
	CSRFEnabled  bool

	KafkaBrokers []string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
}

// LoadDotEnv loads .env files into the process environment. A missing file is not an error.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			log.Printf("notice: %s not loaded: %v, using process environment", p, err)
		}
	}
}

func Load() (*Config, error) {
	accessExpiry, err := ParseExpiry(EnvDefault("ACCESS_TOKEN_EXPIRY", "1d"))
	if err != nil {
		return nil, fmt.Errorf("ACCESS_TOKEN_EXPIRY: %w", err)
	}
	refreshExpiry, err := ParseExpiry(EnvDefault("REFRESH_TOKEN_EXPIRY", "10d"))
	if err != nil {
		return nil, fmt.Errorf("REFRESH_TOKEN_EXPIRY: %w", err)
	}

	cfg := &Config{
		ServiceName: EnvDefault("SERVICE_NAME", "streamhub-auth"),
		Port:        EnvDefault("PORT", "8000"),
		LogLevel:    os.Getenv("LOG_LEVEL"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		AccessTokenSecret:  []byte(os.Getenv("ACCESS_TOKEN_SECRET")),
		AccessTokenExpiry:  accessExpiry,
		RefreshTokenSecret: []byte(os.Getenv("REFRESH_TOKEN_SECRET")),
		RefreshTokenExpiry: refreshExpiry,

		CORSOrigin:   EnvDefault("CORS_ORIGIN", "*"),
		CookieSecure: EnvBoolDefault("COOKIE_SECURE", true),
		CSRFEnabled:  EnvBoolDefault("CSRF_ENABLED", false),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3Region:    EnvDefault("S3_REGION", "us-east-1"),
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3PublicURL: os.Getenv("S3_PUBLIC_URL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing required env DATABASE_URL"))
	}
	if len(c.AccessTokenSecret) == 0 {
		errs = append(errs, errors.New("missing required env ACCESS_TOKEN_SECRET"))
	}
	if len(c.RefreshTokenSecret) == 0 {
		errs = append(errs, errors.New("missing required env REFRESH_TOKEN_SECRET"))
	}
	if len(c.AccessTokenSecret) > 0 && string(c.AccessTokenSecret) == string(c.RefreshTokenSecret) {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}
	if c.AccessTokenExpiry <= 0 || c.RefreshTokenExpiry <= 0 {
		errs = append(errs, errors.New("token expiries must be positive"))
	}
	return errors.Join(errs...)
}

// MediaEnabled reports whether an object store is configured for uploads.
func (c *Config) MediaEnabled() bool {
	return c.S3Bucket != ""
}

// ParseExpiry accepts Go durations ("15m", "1h30m") and a day suffix ("1d", "10d").
func ParseExpiry(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", v)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(v)
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
