// Package telemetry provides OpenTelemetry integration for logs collection.
// This file implements the Zap -> OpenTelemetry log bridge.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogsConfig holds logs bridge configuration.
type LogsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
}

// LoggerProvider wraps the OpenTelemetry LoggerProvider with lifecycle management.
type LoggerProvider struct {
	provider *sdklog.LoggerProvider
	logger   *zap.Logger
	config   LogsConfig
}

// NewLoggerProvider creates and configures a new OpenTelemetry LoggerProvider.
// If logs export is disabled the provider is inert and ZapCore returns a no-op.
func NewLoggerProvider(ctx context.Context, cfg LogsConfig, logger *zap.Logger) (*LoggerProvider, error) {
	lp := &LoggerProvider{
		logger: logger,
		config: cfg,
	}

	if !cfg.Enabled {
		logger.Info("OTEL logs disabled, using no-op logger provider")
		return lp, nil
	}

	exporterOpts := []otlploggrpc.Option{
		otlploggrpc.WithEndpoint(cfg.CollectorEndpoint),
	}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP logs exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	lp.provider = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(lp.provider)

	logger.Info("OpenTelemetry LoggerProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.String("service_name", cfg.ServiceName),
	)

	return lp, nil
}

// Shutdown gracefully shuts down the logger provider, flushing any pending logs.
func (lp *LoggerProvider) Shutdown(ctx context.Context) error {
	if lp.provider == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := lp.provider.Shutdown(shutdownCtx); err != nil {
		lp.logger.Error("Error shutting down logger provider", zap.Error(err))
		return fmt.Errorf("failed to shutdown logger provider: %w", err)
	}
	return nil
}

// IsEnabled returns whether OTEL logs export is enabled.
func (lp *LoggerProvider) IsEnabled() bool {
	return lp.config.Enabled && lp.provider != nil
}

// ZapCore returns a zapcore.Core that mirrors log entries at or above the
// given level to the OTEL Collector. Tee it with the base core so entries
// still reach stdout:
//
//	log = log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
//	    return zapcore.NewTee(core, logsProvider.ZapCore("info"))
//	}))
func (lp *LoggerProvider) ZapCore(level string) zapcore.Core {
	if !lp.IsEnabled() {
		return zapcore.NewNopCore()
	}

	core := otelzap.NewCore(lp.config.ServiceName, otelzap.WithLoggerProvider(lp.provider))

	minLevel := parseLogLevel(level)
	if minLevel == zapcore.DebugLevel {
		return core
	}
	return &levelFilterCore{Core: core, minLevel: minLevel}
}

// levelFilterCore wraps a zapcore.Core with level filtering. The otelzap
// core has no minimum level of its own.
type levelFilterCore struct {
	zapcore.Core
	minLevel zapcore.Level
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.minLevel && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(entry.Level) {
		return ce
	}
	return c.Core.Check(entry, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{
		Core:     c.Core.With(fields),
		minLevel: c.minLevel,
	}
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
