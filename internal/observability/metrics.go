package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/modvault/session-security/internal/config"
)

const meterName = "modvault-session-security"

type AppMetrics struct {
	loginAttemptCounter metric.Int64Counter
	lockoutCounter      metric.Int64Counter
	suspiciousCounter   metric.Int64Counter
	sessionEndCounter   metric.Int64Counter
	sweepCounter        metric.Int64Counter
	repoOpCounter       metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter(meterName)
	loginCounter, err := meter.Int64Counter("auth.login.attempts")
	if err != nil {
		return nil, err
	}
	lockoutCounter, err := meter.Int64Counter("auth.throttle.lockouts")
	if err != nil {
		return nil, err
	}
	suspiciousCounter, err := meter.Int64Counter("auth.login.suspicious")
	if err != nil {
		return nil, err
	}
	sessionEndCounter, err := meter.Int64Counter("session.terminations")
	if err != nil {
		return nil, err
	}
	sweepCounter, err := meter.Int64Counter("session.sweep.expired")
	if err != nil {
		return nil, err
	}
	repoOpCounter, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		loginAttemptCounter: loginCounter,
		lockoutCounter:      lockoutCounter,
		suspiciousCounter:   suspiciousCounter,
		sessionEndCounter:   sessionEndCounter,
		sweepCounter:        sweepCounter,
		repoOpCounter:       repoOpCounter,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordLoginAttempt(status string) {
	m := current()
	if m == nil {
		return
	}
	m.loginAttemptCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("status", status)))
}

func RecordLockout() {
	m := current()
	if m == nil {
		return
	}
	m.lockoutCounter.Add(context.Background(), 1)
}

func RecordSuspiciousLogin(reasonCount int) {
	m := current()
	if m == nil {
		return
	}
	m.suspiciousCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Int("reason_count", reasonCount)))
}

func RecordSessionTermination(reason string) {
	m := current()
	if m == nil {
		return
	}
	m.sessionEndCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", reason)))
}

func RecordSweep(expired int64) {
	m := current()
	if m == nil {
		return
	}
	m.sweepCounter.Add(context.Background(), expired)
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.repoOpCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		),
	)
}
