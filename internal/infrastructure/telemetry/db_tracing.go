package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include bound variables in spans; dev only
	SlowQueryThresh time.Duration // default 200ms
	DBSystem        string
}

// DefaultDBTracingConfig returns tracing disabled with a 200ms slow query threshold
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"

// RegisterDBTracing installs otelgorm on db plus a callback pair that flags
// slow statements on the active span
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartTimeKey, time.Now())
		}
	}
	after := func(tx *gorm.DB) { markSlowQuery(tx, cfg.SlowQueryThresh) }

	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("ledger_timing:before_create", before); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("ledger_slow_query:create", after); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("ledger_timing:before_query", before); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("ledger_slow_query:query", after); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("ledger_timing:before_update", before); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("ledger_slow_query:update", after); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("ledger_timing:before_raw", before); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("ledger_slow_query:raw", after); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func markSlowQuery(tx *gorm.DB, threshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		RecordError(span, tx.Error)
	}
	start, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > threshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}
