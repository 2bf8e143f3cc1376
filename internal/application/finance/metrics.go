package finance

import (
	"context"
	"time"
)

// Metrics receives command outcomes. telemetry.LedgerMetrics implements it.
type Metrics interface {
	RecordCommand(ctx context.Context, command string, duration time.Duration, err error)
	RecordConflictRetry(ctx context.Context, aggregateType string)
	RecordReconciliationIssue(ctx context.Context, kind string)
}

type noopMetrics struct{}

func (noopMetrics) RecordCommand(context.Context, string, time.Duration, error) {}
func (noopMetrics) RecordConflictRetry(context.Context, string)                 {}
func (noopMetrics) RecordReconciliationIssue(context.Context, string)           {}
