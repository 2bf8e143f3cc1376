package logger

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey      contextKey = "logger"
	tenantIDKey    contextKey = "tenant_id"
	userIDKey      contextKey = "user_id"
	aggregateIDKey contextKey = "aggregate_id"
)

// WithContext attaches logger to ctx
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the attached logger or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.NewNop()
}

// WithCommandScope stores the tenant, user and target aggregate of a command.
// Empty values are not stored.
func WithCommandScope(ctx context.Context, tenantID uuid.UUID, userID, aggregateID string) context.Context {
	if tenantID != uuid.Nil {
		ctx = context.WithValue(ctx, tenantIDKey, tenantID.String())
	}
	if userID != "" {
		ctx = context.WithValue(ctx, userIDKey, userID)
	}
	if aggregateID != "" {
		ctx = context.WithValue(ctx, aggregateIDKey, aggregateID)
	}
	return ctx
}

// GetTenantID returns the tenant stored by WithCommandScope
func GetTenantID(ctx context.Context) string {
	return stringValue(ctx, tenantIDKey)
}

// GetUserID returns the user stored by WithCommandScope
func GetUserID(ctx context.Context) string {
	return stringValue(ctx, userIDKey)
}

// GetAggregateID returns the aggregate stored by WithCommandScope
func GetAggregateID(ctx context.Context) string {
	return stringValue(ctx, aggregateIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// ContextLogger writes entries enriched with the trace and command scope held in ctx
type ContextLogger struct {
	ctx    context.Context
	logger *zap.Logger
}

// L returns a ContextLogger using the logger attached to ctx.
//
//	logger.L(ctx).Info("invoice approved", zap.String("invoice_number", n))
func L(ctx context.Context) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: FromContext(ctx)}
}

// WithLogger returns a ContextLogger over an explicit logger
func WithLogger(ctx context.Context, logger *zap.Logger) *ContextLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextLogger{ctx: ctx, logger: logger}
}

// Fields returns the correlation fields present in ctx
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if v := GetTenantID(ctx); v != "" {
		fields = append(fields, zap.String("tenant_id", v))
	}
	if v := GetUserID(ctx); v != "" {
		fields = append(fields, zap.String("user_id", v))
	}
	if v := GetAggregateID(ctx); v != "" {
		fields = append(fields, zap.String("aggregate_id", v))
	}
	return fields
}

func (cl *ContextLogger) enriched() *zap.Logger {
	return cl.logger.With(Fields(cl.ctx)...)
}

// With creates a child ContextLogger with additional fields
func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	return &ContextLogger{ctx: cl.ctx, logger: cl.logger.With(fields...)}
}

func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) {
	cl.enriched().Debug(msg, fields...)
}

func (cl *ContextLogger) Info(msg string, fields ...zap.Field) {
	cl.enriched().Info(msg, fields...)
}

func (cl *ContextLogger) Warn(msg string, fields ...zap.Field) {
	cl.enriched().Warn(msg, fields...)
}

func (cl *ContextLogger) Error(msg string, fields ...zap.Field) {
	cl.enriched().Error(msg, fields...)
}

// Zap returns the enriched logger for APIs that take a *zap.Logger
func (cl *ContextLogger) Zap() *zap.Logger {
	return cl.enriched()
}
