package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAccessTTL        = "15m"
	defaultRefreshTTL       = "720h"
	defaultInvitationTTL    = "8h"
	defaultCodeTTL          = "5m"
	defaultSweepInterval    = "15m"
	defaultPushChunkSize    = "100"
	defaultPushAPIURL       = "https://exp.host/--/api/v2/push"
	defaultInviteBaseURL    = "http://localhost:3000/register"
	defaultJWTSecret        = "change-me-jwt-secret"
	defaultRefreshPepper    = "change-me-refresh-pepper"
	defaultSignInRateLimit  = "10"
	defaultRateLimitWindow  = "1m"
)

type Config struct {
	AppEnv string

	DatabaseURL string
	RedisAddr   string // empty disables rate limiting

	JWTSecret          string
	RefreshTokenPepper string

	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	InvitationTTL time.Duration
	CodeTTL       time.Duration

	SweepInterval time.Duration
	PushChunkSize int
	PushAPIURL    string

	InviteBaseURL string

	RateLimitMax    int
	RateLimitWindow time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.RefreshTokenPepper = strings.TrimSpace(getEnv("REFRESH_TOKEN_PEPPER", defaultRefreshPepper))
	cfg.PushAPIURL = strings.TrimSpace(getEnv("PUSH_API_URL", defaultPushAPIURL))
	cfg.InviteBaseURL = strings.TrimSpace(getEnv("INVITE_BASE_URL", defaultInviteBaseURL))

	var err error
	if cfg.AccessTTL, err = parseDurationEnv("ACCESS_TTL", defaultAccessTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL, err = parseDurationEnv("REFRESH_TTL", defaultRefreshTTL); err != nil {
		return nil, err
	}
	if cfg.InvitationTTL, err = parseDurationEnv("INVITATION_TTL", defaultInvitationTTL); err != nil {
		return nil, err
	}
	if cfg.CodeTTL, err = parseDurationEnv("CODE_TTL", defaultCodeTTL); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = parseDurationEnv("RECEIPT_SWEEP_INTERVAL", defaultSweepInterval); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = parseDurationEnv("RATE_LIMIT_WINDOW", defaultRateLimitWindow); err != nil {
		return nil, err
	}
	if cfg.PushChunkSize, err = parseIntEnv("PUSH_CHUNK_SIZE", defaultPushChunkSize); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = parseIntEnv("RATE_LIMIT_MAX", defaultSignInRateLimit); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.AccessTTL <= 0 {
		return fmt.Errorf("ACCESS_TTL must be > 0")
	}
	if cfg.RefreshTTL <= 0 {
		return fmt.Errorf("REFRESH_TTL must be > 0")
	}
	if cfg.InvitationTTL <= 0 {
		return fmt.Errorf("INVITATION_TTL must be > 0")
	}
	if cfg.CodeTTL <= 0 {
		return fmt.Errorf("CODE_TTL must be > 0")
	}
	if cfg.SweepInterval <= 0 {
		return fmt.Errorf("RECEIPT_SWEEP_INTERVAL must be > 0")
	}
	if cfg.PushChunkSize <= 0 || cfg.PushChunkSize > 100 {
		return fmt.Errorf("PUSH_CHUNK_SIZE must be in 1..100")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.RefreshTokenPepper, defaultRefreshPepper) {
			return fmt.Errorf("in prod/release REFRESH_TOKEN_PEPPER must be set and not default")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
