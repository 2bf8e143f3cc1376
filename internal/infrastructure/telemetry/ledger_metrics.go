package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a metrics constructor receives no meter
var ErrMeterNil = errors.New("NewLedgerMetrics: meter cannot be nil")

// Metric attribute keys
const (
	AttrCommand       = attribute.Key("command")
	AttrOutcome       = attribute.Key("outcome")
	AttrAggregateType = attribute.Key("aggregate_type")
	AttrIssueKind     = attribute.Key("issue_kind")
)

// LedgerMetrics counts commands, appended events, optimistic concurrency
// retries and reconciliation issues
type LedgerMetrics struct {
	logger *zap.Logger

	commandTotal             *Counter
	commandDuration          *Histogram
	eventsAppendedTotal      *Counter
	conflictRetryTotal       *Counter
	reconciliationIssueTotal *Counter
}

// NewLedgerMetrics registers the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter, logger *zap.Logger) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &LedgerMetrics{logger: logger}

	var err error
	if m.commandTotal, err = NewCounter(meter,
		"ledger_command_total", "Commands handled, by outcome", "{commands}"); err != nil {
		return nil, err
	}
	if m.commandDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_command_duration_seconds",
		Description: "Command handling latency",
		Unit:        "s",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}); err != nil {
		return nil, err
	}
	if m.eventsAppendedTotal, err = NewCounter(meter,
		"ledger_events_appended_total", "Events appended to aggregate streams", "{events}"); err != nil {
		return nil, err
	}
	if m.conflictRetryTotal, err = NewCounter(meter,
		"ledger_concurrency_conflict_total", "Optimistic concurrency conflicts that triggered a reload", "{conflicts}"); err != nil {
		return nil, err
	}
	if m.reconciliationIssueTotal, err = NewCounter(meter,
		"ledger_reconciliation_issue_total", "Payments that could not be applied to their invoice", "{issues}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordCommand counts one handled command and its latency
func (m *LedgerMetrics) RecordCommand(ctx context.Context, command string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.commandTotal.Inc(ctx, AttrCommand.String(command), AttrOutcome.String(outcome))
	m.commandDuration.RecordDuration(ctx, duration, AttrCommand.String(command))
}

func (m *LedgerMetrics) RecordConflictRetry(ctx context.Context, aggregateType string) {
	m.conflictRetryTotal.Inc(ctx, AttrAggregateType.String(aggregateType))
}

func (m *LedgerMetrics) RecordReconciliationIssue(ctx context.Context, kind string) {
	m.reconciliationIssueTotal.Inc(ctx, AttrIssueKind.String(kind))
}

// RecordEventsAppended counts events written by one append
func (m *LedgerMetrics) RecordEventsAppended(ctx context.Context, aggregateType string, n int) {
	if n <= 0 {
		return
	}
	m.eventsAppendedTotal.Add(ctx, int64(n), AttrAggregateType.String(aggregateType))
}
