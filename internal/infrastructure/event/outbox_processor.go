package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"go.uber.org/zap"
)

// OutboxProcessorConfig holds configuration for the outbox processor
type OutboxProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultOutboxProcessorConfig returns default configuration
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// OutboxProcessor relays outbox entries to the event bus. Delivery is at
// least once; consumers deduplicate through IdempotentHandler.
type OutboxProcessor struct {
	repo   shared.OutboxRepository
	bus    shared.EventPublisher
	codec  shared.EventCodec
	config OutboxProcessorConfig
	logger *zap.Logger
}

// NewOutboxProcessor creates a new outbox processor
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	bus shared.EventPublisher,
	codec shared.EventCodec,
	config OutboxProcessorConfig,
	logger *zap.Logger,
) *OutboxProcessor {
	defaults := DefaultOutboxProcessorConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.CleanupRetention <= 0 {
		config.CleanupRetention = defaults.CleanupRetention
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxProcessor{
		repo:   repo,
		bus:    bus,
		codec:  codec,
		config: config,
		logger: logger.Named("outbox"),
	}
}

// Run polls the outbox until ctx is cancelled. It returns nil on cancellation.
func (p *OutboxProcessor) Run(ctx context.Context) error {
	poll := time.NewTicker(p.config.PollInterval)
	defer poll.Stop()

	var cleanup <-chan time.Time
	if p.config.CleanupEnabled {
		t := time.NewTicker(p.config.CleanupInterval)
		defer t.Stop()
		cleanup = t.C
	}

	p.logger.Info("outbox processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
	)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox processor stopped")
			return nil
		case <-poll.C:
			p.ProcessBatch(ctx)
		case <-cleanup:
			p.Cleanup(ctx)
		}
	}
}

// ProcessBatch delivers one batch of pending and retryable entries and returns
// how many were sent
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) int {
	pending, err := p.repo.FindPending(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.Error("failed to find pending entries", zap.Error(err))
		return 0
	}
	sent := p.processEntries(ctx, pending)

	retryable, err := p.repo.FindRetryable(ctx, time.Now(), p.config.BatchSize)
	if err != nil {
		p.logger.Error("failed to find retryable entries", zap.Error(err))
		return sent
	}
	return sent + p.processEntries(ctx, retryable)
}

func (p *OutboxProcessor) processEntries(ctx context.Context, entries []*shared.OutboxEntry) int {
	if len(entries) == 0 {
		return 0
	}
	ids := lo.Map(entries, func(e *shared.OutboxEntry, _ int) uuid.UUID { return e.ID })
	claimed, err := p.repo.MarkProcessing(ctx, ids)
	if err != nil {
		p.logger.Error("failed to claim outbox entries", zap.Error(err))
		return 0
	}
	sent := 0
	for _, entry := range claimed {
		if p.processEntry(ctx, entry) {
			sent++
		}
	}
	return sent
}

func (p *OutboxProcessor) processEntry(ctx context.Context, entry *shared.OutboxEntry) bool {
	event, err := p.codec.Decode(entry.Envelope())
	if err == nil {
		err = p.bus.Publish(ctx, event)
	}
	if err != nil {
		p.fail(ctx, entry, err)
		return false
	}

	entry.MarkSent()
	if err := p.repo.Update(ctx, entry); err != nil {
		p.logger.Error("failed to mark entry as sent",
			zap.String("event_id", entry.EventID.String()),
			zap.Error(err),
		)
		return false
	}
	p.logger.Debug("event delivered",
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.String("aggregate_id", entry.AggregateID),
		zap.Int("stream_version", entry.StreamVersion),
	)
	return true
}

func (p *OutboxProcessor) fail(ctx context.Context, entry *shared.OutboxEntry, cause error) {
	entry.MarkFailed(cause.Error())
	fields := []zap.Field{
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.String("aggregate_type", entry.AggregateType),
		zap.String("aggregate_id", entry.AggregateID),
		zap.Int("retry_count", entry.RetryCount),
		zap.Error(cause),
	}
	if entry.IsDead() {
		p.logger.Warn("event moved to dead letter queue", fields...)
	} else {
		p.logger.Warn("event delivery failed, will retry", append(fields, zap.Timep("next_retry_at", entry.NextRetryAt))...)
	}
	if err := p.repo.Update(ctx, entry); err != nil {
		p.logger.Error("failed to update outbox entry", zap.String("event_id", entry.EventID.String()), zap.Error(err))
	}
}

// Cleanup removes sent entries older than the retention period
func (p *OutboxProcessor) Cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to clean up outbox", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("cleaned up outbox entries",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
