package telemetry

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // Include query variables in spans (dev only)
	SlowQueryThresh time.Duration
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:         false,
		LogFullSQL:      false,
		SlowQueryThresh: 200 * time.Millisecond,
	}
}

// RegisterDBTracing registers the otelgorm plugin plus a slow-query
// callback on the given GORM instance. Query variables are excluded from
// spans unless LogFullSQL is set.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName("postgres"),
	}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	cb := &slowQueryCallback{thresh: cfg.SlowQueryThresh}
	if err := cb.register(db); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

// queryStartTimeKey is the context key for storing query start time.
type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"

// slowQueryCallback annotates the otelgorm span with row counts, error
// status, and a slow-query marker when the operation exceeds the threshold.
type slowQueryCallback struct {
	thresh time.Duration
}

func (c *slowQueryCallback) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

func (c *slowQueryCallback) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	// ErrRecordNotFound is an expected outcome, not a failure
	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if startTime, ok := ctx.Value(queryStartTimeKey).(time.Time); ok {
		elapsed := time.Since(startTime)
		if elapsed > c.thresh {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", c.thresh.Milliseconds()),
			))
		}
	}
}

func (c *slowQueryCallback) register(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("otel_timing:before_create", c.before); err != nil {
		return err
	}
	if err := db.Callback().Query().Before("gorm:query").Register("otel_timing:before_query", c.before); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("otel_timing:before_update", c.before); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("otel_timing:before_delete", c.before); err != nil {
		return err
	}

	if err := db.Callback().Create().After("gorm:create").Register("otel_timing:after_create", c.after); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register("otel_timing:after_query", c.after); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("otel_timing:after_update", c.after); err != nil {
		return err
	}
	return db.Callback().Delete().After("gorm:delete").Register("otel_timing:after_delete", c.after)
}
