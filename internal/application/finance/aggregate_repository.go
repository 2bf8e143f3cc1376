package finance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultSnapshotEvery is the stream length between snapshots
const DefaultSnapshotEvery = 20

// AggregateRepository loads and saves one aggregate type through the event store,
// using the latest snapshot plus the events after it.
type AggregateRepository[T shared.Snapshottable] struct {
	events        shared.EventStore
	snapshots     shared.SnapshotStore
	codec         shared.EventCodec
	newAggregate  func() T
	aggregateType string
	snapshotEvery int
	logger        *zap.Logger
}

// RepositoryOption configures an AggregateRepository
type RepositoryOption func(*repositoryOptions)

type repositoryOptions struct {
	snapshots     shared.SnapshotStore
	snapshotEvery int
	logger        *zap.Logger
}

// WithSnapshots enables snapshotting every n events. n <= 0 uses DefaultSnapshotEvery.
func WithSnapshots(store shared.SnapshotStore, n int) RepositoryOption {
	return func(o *repositoryOptions) {
		o.snapshots = store
		if n <= 0 {
			n = DefaultSnapshotEvery
		}
		o.snapshotEvery = n
	}
}

// WithRepositoryLogger sets the logger
func WithRepositoryLogger(logger *zap.Logger) RepositoryOption {
	return func(o *repositoryOptions) {
		o.logger = logger
	}
}

// NewAggregateRepository creates a repository for the aggregate built by newAggregate
func NewAggregateRepository[T shared.Snapshottable](
	events shared.EventStore,
	codec shared.EventCodec,
	aggregateType string,
	newAggregate func() T,
	opts ...RepositoryOption,
) *AggregateRepository[T] {
	o := repositoryOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &AggregateRepository[T]{
		events:        events,
		snapshots:     o.snapshots,
		codec:         codec,
		newAggregate:  newAggregate,
		aggregateType: aggregateType,
		snapshotEvery: o.snapshotEvery,
		logger:        o.logger,
	}
}

// Load rebuilds an aggregate. An aggregate owned by another tenant is reported
// as not found.
func (r *AggregateRepository[T]) Load(ctx context.Context, tenantID uuid.UUID, id string) (T, error) {
	var zero T
	agg := r.newAggregate()
	after := r.restoreSnapshot(ctx, agg, id)
	if after == 0 {
		// a failed restore may have left partial state behind
		agg = r.newAggregate()
	}

	envelopes, err := r.events.Load(ctx, id, after)
	if err != nil {
		return zero, fmt.Errorf("failed to load %s %s: %w", r.aggregateType, id, err)
	}
	if after == 0 && len(envelopes) == 0 {
		return zero, r.notFound(id)
	}
	for _, env := range envelopes {
		event, err := r.codec.Decode(env)
		if err != nil {
			return zero, fmt.Errorf("failed to decode %s v%d of %s: %w", env.EventType, env.Version, id, err)
		}
		if err := agg.ReplayEvent(event); err != nil {
			return zero, fmt.Errorf("failed to replay %s v%d of %s: %w", env.EventType, env.Version, id, err)
		}
	}
	if agg.AggregateType() != r.aggregateType || agg.AggregateTenantID() != tenantID {
		return zero, r.notFound(id)
	}
	return agg, nil
}

// restoreSnapshot returns the version restored, or 0 when replay must start from scratch
func (r *AggregateRepository[T]) restoreSnapshot(ctx context.Context, agg T, id string) int {
	if r.snapshots == nil {
		return 0
	}
	snap, err := r.snapshots.GetLatest(ctx, id)
	if err != nil {
		r.logger.Warn("snapshot lookup failed, replaying full stream",
			zap.String("aggregate_id", id),
			zap.Error(err),
		)
		return 0
	}
	if snap == nil {
		return 0
	}
	if err := agg.RestoreSnapshot(snap.State, snap.Version); err != nil {
		r.logger.Warn("snapshot restore failed, replaying full stream",
			zap.String("aggregate_id", id),
			zap.Int("snapshot_version", snap.Version),
			zap.Error(err),
		)
		return 0
	}
	return snap.Version
}

func (r *AggregateRepository[T]) notFound(id string) error {
	return shared.NewNotFoundError(
		fmt.Sprintf("%s_NOT_FOUND", upperSnake(r.aggregateType)),
		fmt.Sprintf("%s %s not found", r.aggregateType, id),
	).WithDetail("aggregate_id", id)
}

// Save appends the uncommitted events with the loaded version as the expected
// version. On a conflict nothing is written and the aggregate keeps its buffer.
func (r *AggregateRepository[T]) Save(ctx context.Context, agg T) error {
	pending := agg.GetUncommittedEvents()
	if len(pending) == 0 {
		return nil
	}
	envelopes := make([]shared.EventEnvelope, 0, len(pending))
	for _, e := range pending {
		env, err := r.codec.Encode(e)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", e.EventType(), err)
		}
		envelopes = append(envelopes, env)
	}

	expected := agg.PersistedVersion()
	if err := r.events.Append(ctx, agg.AggregateID(), expected, envelopes...); err != nil {
		return err
	}
	agg.MarkEventsCommitted()

	r.logger.Debug("events appended",
		zap.String("aggregate_type", r.aggregateType),
		zap.String("aggregate_id", agg.AggregateID()),
		zap.Int("from_version", expected+1),
		zap.Int("to_version", agg.GetVersion()),
	)

	if r.snapshotDue(expected, agg.GetVersion()) {
		r.saveSnapshot(ctx, agg)
	}
	return nil
}

// snapshotDue reports whether the append crossed a multiple of snapshotEvery
func (r *AggregateRepository[T]) snapshotDue(from, to int) bool {
	if r.snapshots == nil || r.snapshotEvery <= 0 {
		return false
	}
	return to/r.snapshotEvery > from/r.snapshotEvery
}

// saveSnapshot is best effort; the event stream stays authoritative
func (r *AggregateRepository[T]) saveSnapshot(ctx context.Context, agg T) {
	state, err := agg.ToSnapshot()
	if err == nil {
		err = r.snapshots.Save(ctx, shared.Snapshot{
			AggregateID:   agg.AggregateID(),
			AggregateType: r.aggregateType,
			TenantID:      agg.AggregateTenantID(),
			Version:       agg.GetVersion(),
			State:         state,
		})
	}
	if err != nil {
		r.logger.Warn("failed to save snapshot",
			zap.String("aggregate_id", agg.AggregateID()),
			zap.Int("version", agg.GetVersion()),
			zap.Error(err),
		)
		return
	}
	r.logger.Debug("snapshot saved",
		zap.String("aggregate_id", agg.AggregateID()),
		zap.Int("version", agg.GetVersion()),
	)
}

func upperSnake(s string) string {
	out := make([]byte, 0, len(s)+4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			out = append(out, c)
			continue
		}
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
