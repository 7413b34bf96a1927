package observability

import (
	"context"
	"errors"
	"log/slog"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/modvault/session-security/internal/config"
)

// Runtime owns the telemetry providers for the process. Any of the three
// may be nil when the corresponding export is disabled.
type Runtime struct {
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	loggerProvider *sdklog.LoggerProvider
}

// InitRuntime brings up metric and trace export. The logger provider is
// created earlier by InitLogging (logging has to exist before anything else
// can report a failure) and is handed over here so shutdown drains all three.
func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, logProvider *sdklog.LoggerProvider) (*Runtime, error) {
	mp, err := InitMetrics(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	tp, err := InitTracing(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Runtime{meterProvider: mp, tracerProvider: tp, loggerProvider: logProvider}, nil
}

// Shutdown flushes and stops every provider, collecting all errors so a
// failed metric flush does not skip the trace drain.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.meterProvider != nil {
		if err := r.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if r.tracerProvider != nil {
		if err := r.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if r.loggerProvider != nil {
		if err := r.loggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
