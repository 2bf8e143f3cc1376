package finance

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// HandlerDeps are the collaborators shared by the command handlers
type HandlerDeps struct {
	Sequence  shared.SequenceGenerator
	Tax       *finance.TaxCalculationService
	Validator *validator.Validate
	Retry     RetryConfig
	Metrics   Metrics
	Logger    *zap.Logger
	// Window is the open accounting period used for journal dates
	Window valueobject.OpenPeriodWindow
	// Currency is used when a command leaves its currency empty
	Currency valueobject.Currency
}

func (d HandlerDeps) withDefaults() HandlerDeps {
	if d.Tax == nil {
		d.Tax = finance.NewTaxCalculationService(finance.TaxConfig{})
	}
	if d.Validator == nil {
		d.Validator = NewValidator()
	}
	if d.Retry.MaxAttempts == 0 {
		d.Retry = DefaultRetryConfig()
	}
	if d.Metrics == nil {
		d.Metrics = noopMetrics{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Currency == "" {
		d.Currency = valueobject.DefaultCurrency
	}
	return d
}

// commandRunner carries the cross-cutting steps every command goes through:
// span, validation, conflict retry, metrics and logging
type commandRunner struct {
	service       string
	aggregateType string
	validate      *validator.Validate
	retry         RetryConfig
	metrics       Metrics
	currency      valueobject.Currency
	logger        *zap.Logger
}

func newCommandRunner(service, aggregateType string, deps HandlerDeps) commandRunner {
	return commandRunner{
		service:       service,
		aggregateType: aggregateType,
		validate:      deps.Validator,
		retry:         deps.Retry,
		metrics:       deps.Metrics,
		currency:      deps.Currency,
		logger:        deps.Logger.With(zap.String("aggregate_type", aggregateType)),
	}
}

func (r commandRunner) currencyOr(code string) valueobject.Currency {
	if code == "" {
		return r.currency
	}
	return valueobject.Currency(code)
}

// begin starts the span and validates cmd. finish must be called with the final error.
func (r commandRunner) begin(ctx context.Context, name string, cmd any, meta CommandMeta, id string) (context.Context, func(error) error, error) {
	start := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, r.service, name,
		telemetry.WithAttribute("tenant_id", meta.TenantID.String()),
		telemetry.WithAttribute("aggregate_id", id))
	finish := func(err error) error {
		r.metrics.RecordCommand(ctx, name, time.Since(start), err)
		r.end(span, name, meta, id, err)
		return err
	}
	if err := validateCommand(r.validate, cmd); err != nil {
		return ctx, finish, finish(err)
	}
	return ctx, finish, nil
}

func (r commandRunner) end(span trace.Span, name string, meta CommandMeta, id string, err error) {
	defer span.End()
	if err != nil {
		telemetry.RecordError(span, err)
		r.logger.Warn("command rejected",
			zap.String("command", name),
			zap.String("aggregate_id", id),
			zap.String("tenant_id", meta.TenantID.String()),
			zap.Error(err),
		)
		return
	}
	telemetry.SetOK(span)
	r.logger.Info("command applied",
		zap.String("command", name),
		zap.String("aggregate_id", id),
		zap.String("tenant_id", meta.TenantID.String()),
		zap.String("user_id", meta.UserID),
	)
}

func (r commandRunner) onConflict(ctx context.Context, id string) func(error) {
	return func(err error) {
		r.metrics.RecordConflictRetry(ctx, r.aggregateType)
		r.logger.Debug("version conflict, reloading",
			zap.String("aggregate_id", id),
			zap.Error(err),
		)
	}
}

// mutateAggregate validates cmd, then loads, changes and saves one aggregate,
// reloading and reapplying change on version conflicts
func mutateAggregate[T shared.Snapshottable](
	ctx context.Context,
	r commandRunner,
	repo *AggregateRepository[T],
	name string,
	cmd any,
	meta CommandMeta,
	id string,
	change func(context.Context, T) error,
) error {
	ctx, finish, err := r.begin(ctx, name, cmd, meta, id)
	if err != nil {
		return err
	}
	return finish(retryOnConflict(ctx, r.retry, r.onConflict(ctx, id), func(ctx context.Context) error {
		agg, err := repo.Load(ctx, meta.TenantID, id)
		if err != nil {
			return err
		}
		if err := change(ctx, agg); err != nil {
			return err
		}
		return repo.Save(ctx, agg)
	}))
}
