package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Profile  string
	HTTPAddr string

	DBDriver string // sqlite or postgres
	DBDSN    string

	JWTIssuer   string
	JWTAudience string
	JWTSecret   string

	SessionTTL       time.Duration
	SweepInterval    time.Duration
	LockoutThreshold int
	LockoutDuration  time.Duration

	LoginLimitEnabled bool
	LoginLimitMax     int
	LoginLimitWindow  time.Duration
	RedisAddr         string
	RedisPassword     string

	GeoIPDatabasePath string

	LogLevelName              string
	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
}

func Load(ctx context.Context) (*Config, error) {
	cfg := &Config{
		Profile:  envString("APP_PROFILE", "dev"),
		HTTPAddr: envString("HTTP_ADDR", ":8080"),

		DBDriver: envString("DB_DRIVER", "sqlite"),
		DBDSN:    envString("DB_DSN", "file:modvault.db?_busy_timeout=5000"),

		JWTIssuer:   envString("JWT_ISSUER", "modvault"),
		JWTAudience: envString("JWT_AUDIENCE", "modvault-web"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		GeoIPDatabasePath: os.Getenv("GEOIP_DB_PATH"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		LogLevelName:             envString("LOG_LEVEL", "info"),
		OTELServiceName:          envString("OTEL_SERVICE_NAME", "modvault-session-security"),
		OTELEnvironment:          envString("OTEL_ENVIRONMENT", "dev"),
		OTELExporterOTLPEndpoint: envString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.SessionTTL, err = envDuration("SESSION_TTL", 30*24*time.Hour); err != nil {
		return loadFailed(ctx, cfg, err)
	}
	if cfg.SweepInterval, err = envDuration("SESSION_SWEEP_INTERVAL", time.Hour); err != nil {
		return loadFailed(ctx, cfg, err)
	}
	if cfg.LockoutThreshold, err = envInt("LOCKOUT_THRESHOLD", 5); err != nil {
		return loadFailed(ctx, cfg, err)
	}
	if cfg.LockoutDuration, err = envDuration("LOCKOUT_DURATION", 30*time.Second); err != nil {
		return loadFailed(ctx, cfg, err)
	}
	if cfg.LoginLimitEnabled, err = envBool("LOGIN_LIMIT_ENABLED", cfg.RedisAddr != ""); err != nil {
		return loadFailed(ctx, cfg, err)
	}
	if cfg.LoginLimitMax, err = envInt("LOGIN_LIMIT_MAX", 20); err != nil {
		return loadFailed(ctx, cfg, err)
	}
	if cfg.LoginLimitWindow, err = envDuration("LOGIN_LIMIT_WINDOW", time.Minute); err != nil {
		return loadFailed(ctx, cfg, err)
	}
	if cfg.OTELExporterOTLPInsecure, err = envBool("OTEL_EXPORTER_OTLP_INSECURE", true); err != nil {
		return loadFailed(ctx, cfg, err)
	}
	if cfg.OTELMetricsEnabled, err = envBool("OTEL_METRICS_ENABLED", false); err != nil {
		return loadFailed(ctx, cfg, err)
	}
	if cfg.OTELTracesEnabled, err = envBool("OTEL_TRACES_ENABLED", false); err != nil {
		return loadFailed(ctx, cfg, err)
	}
	if cfg.OTELLogsEnabled, err = envBool("OTEL_LOGS_ENABLED", false); err != nil {
		return loadFailed(ctx, cfg, err)
	}
	if cfg.OTELMetricsExportInterval, err = envDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second); err != nil {
		return loadFailed(ctx, cfg, err)
	}

	if err := cfg.Validate(); err != nil {
		recordConfigValidationEvent(ctx, cfg, "invalid", classifyConfigLoadError(err))
		return nil, err
	}
	recordConfigValidationEvent(ctx, cfg, "valid", "none")
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("validate config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		if c.Profile != "dev" {
			return fmt.Errorf("validate config: JWT_SECRET is required outside the dev profile")
		}
		c.JWTSecret = "dev-insecure-secret"
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("validate config: SESSION_TTL must be positive")
	}
	if c.LockoutThreshold < 1 {
		return fmt.Errorf("validate config: LOCKOUT_THRESHOLD must be at least 1")
	}
	if c.LockoutDuration <= 0 {
		return fmt.Errorf("validate config: LOCKOUT_DURATION must be positive")
	}
	if c.LoginLimitEnabled && c.RedisAddr == "" {
		return fmt.Errorf("validate config: LOGIN_LIMIT_ENABLED requires REDIS_ADDR")
	}
	return nil
}

func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.LogLevelName) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadFailed(ctx context.Context, cfg *Config, err error) (*Config, error) {
	recordConfigValidationEvent(ctx, cfg, "invalid", classifyConfigLoadError(err))
	return nil, err
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
