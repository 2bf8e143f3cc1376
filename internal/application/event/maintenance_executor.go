package event

import (
	"context"
	"fmt"

	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/scheduler"
	"go.uber.org/zap"
)

// MaintenanceConfig tunes the outbox maintenance jobs
type MaintenanceConfig struct {
	// BacklogWarnThreshold logs a warning when pending plus failed entries reach it; 0 disables
	BacklogWarnThreshold int64
	// AutoRequeueDead lets DEAD_LETTER_REQUEUE jobs reset dead entries. When false the
	// job only reports them and an operator decides.
	AutoRequeueDead bool
}

// MaintenanceExecutor runs scheduled outbox maintenance on top of OutboxService
type MaintenanceExecutor struct {
	outbox *OutboxService
	config MaintenanceConfig
	logger *zap.Logger
}

// NewMaintenanceExecutor creates a new maintenance executor
func NewMaintenanceExecutor(outbox *OutboxService, config MaintenanceConfig, logger *zap.Logger) *MaintenanceExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceExecutor{
		outbox: outbox,
		config: config,
		logger: logger.Named("outbox-maintenance"),
	}
}

// Execute implements scheduler.JobExecutor
func (e *MaintenanceExecutor) Execute(ctx context.Context, job *scheduler.Job) error {
	switch job.Kind {
	case scheduler.JobKindOutboxHealth:
		_, err := e.CheckHealth(ctx)
		return err
	case scheduler.JobKindDeadLetterRequeue:
		_, err := e.RequeueDead(ctx)
		return err
	default:
		return fmt.Errorf("%w: %s", scheduler.ErrUnsupportedJobKind, job.Kind)
	}
}

// CheckHealth reads the outbox counters and warns about dead letters and backlog
func (e *MaintenanceExecutor) CheckHealth(ctx context.Context) (OutboxStatsDTO, error) {
	stats, err := e.outbox.GetStats(ctx)
	if err != nil {
		return OutboxStatsDTO{}, err
	}

	fields := []zap.Field{
		zap.Int64("pending", stats.Pending),
		zap.Int64("processing", stats.Processing),
		zap.Int64("failed", stats.Failed),
		zap.Int64("dead", stats.Dead),
	}
	backlog := stats.Pending + stats.Failed
	switch {
	case stats.Dead > 0:
		e.logger.Warn("outbox has dead letter entries", fields...)
	case e.config.BacklogWarnThreshold > 0 && backlog >= e.config.BacklogWarnThreshold:
		e.logger.Warn("outbox backlog above threshold",
			append(fields, zap.Int64("threshold", e.config.BacklogWarnThreshold))...)
	default:
		e.logger.Debug("outbox healthy", fields...)
	}
	return stats, nil
}

// RequeueDead resets dead entries when AutoRequeueDead is set and returns how many were reset
func (e *MaintenanceExecutor) RequeueDead(ctx context.Context) (int64, error) {
	if !e.config.AutoRequeueDead {
		stats, err := e.outbox.GetStats(ctx)
		if err != nil {
			return 0, err
		}
		if stats.Dead > 0 {
			e.logger.Info("dead letter entries left for operator review", zap.Int64("dead", stats.Dead))
		}
		return 0, nil
	}
	return e.outbox.RetryAllDeadEntries(ctx)
}

var _ scheduler.JobExecutor = (*MaintenanceExecutor)(nil)
