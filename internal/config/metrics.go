package config

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	configMetricsOnce sync.Once
	configCounter     metric.Int64Counter
)

// recordConfigValidationEvent counts config load outcomes. The limiter
// dimension distinguishes deployments running with the redis pre-auth gate
// from ones relying on the account lockout alone.
func recordConfigValidationEvent(ctx context.Context, cfg *Config, outcome, errorClass string) {
	configMetricsOnce.Do(func() {
		counter, err := otel.Meter("modvault-session-security").Int64Counter("config.validation.events")
		if err == nil {
			configCounter = counter
		}
	})
	if configCounter == nil {
		return
	}
	limiter := "off"
	if cfg.LoginLimitEnabled {
		limiter = "on"
	}
	configCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", normalizeConfigProfile(cfg.Profile)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", errorClass),
		attribute.String("db_driver", cfg.DBDriver),
		attribute.String("login_limiter", limiter),
	))
}

func normalizeConfigProfile(profile string) string {
	v := strings.TrimSpace(strings.ToLower(profile))
	if v == "" {
		return "unknown"
	}
	return v
}

func classifyConfigLoadError(err error) string {
	if err == nil {
		return "none"
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "validate config:"):
		return "validation"
	case strings.Contains(msg, "parse "):
		return "parse"
	default:
		return "load"
	}
}
