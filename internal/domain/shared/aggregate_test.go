package shared

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterEvent interface {
	DomainEvent
	isCounterEvent()
}

type counterIncremented struct {
	BaseDomainEvent
	By int `json:"by"`
}

func (*counterIncremented) isCounterEvent() {}

type counterReset struct {
	BaseDomainEvent
}

func (*counterReset) isCounterEvent() {}

type counter struct {
	AggregateRoot[counterEvent]
	value int
}

func (c *counter) when(e counterEvent) error {
	switch ev := e.(type) {
	case *counterIncremented:
		c.value += ev.By
	case *counterReset:
		c.value = 0
	default:
		return errors.New("unhandled event " + e.EventType())
	}
	return nil
}

func newCounter(tenantID uuid.UUID) *counter {
	c := &counter{}
	c.SetIdentity("CNT-1", "Counter", tenantID)
	return c
}

func increment(by int) *counterIncremented {
	return &counterIncremented{
		BaseDomainEvent: NewBaseDomainEvent("CounterIncremented", "", "", uuid.Nil, "user-1"),
		By:              by,
	}
}

func TestAggregateRoot_Raise(t *testing.T) {
	tenantID := uuid.New()
	c := newCounter(tenantID)

	require.NoError(t, c.Raise(increment(2), c.when))
	require.NoError(t, c.Raise(increment(3), c.when))

	assert.Equal(t, 5, c.value)
	assert.Equal(t, 2, c.GetVersion())
	assert.Equal(t, 0, c.PersistedVersion())

	events := c.GetUncommittedEvents()
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].StreamVersion())
	assert.Equal(t, 2, events[1].StreamVersion())
	assert.Equal(t, "CNT-1", events[0].AggregateID())
	assert.Equal(t, "Counter", events[0].AggregateType())
	assert.Equal(t, tenantID, events[0].TenantID())
	assert.Equal(t, "user-1", events[0].CausationUserID())

	// the buffer is kept until the caller confirms persistence
	assert.Len(t, c.GetUncommittedEvents(), 2)
	c.MarkEventsCommitted()
	assert.Empty(t, c.GetUncommittedEvents())
	assert.Equal(t, 2, c.PersistedVersion())
}

func TestAggregateRoot_Raise_UnhandledEventLeavesStateUntouched(t *testing.T) {
	c := newCounter(uuid.New())
	bad := &struct {
		counterReset
	}{}
	bad.BaseDomainEvent = NewBaseDomainEvent("Unknown", "", "", uuid.Nil, "")

	err := c.Raise(bad, c.when)

	assert.Error(t, err)
	assert.Equal(t, 0, c.GetVersion())
	assert.Empty(t, c.GetUncommittedEvents())
}

func TestAggregateRoot_Replay(t *testing.T) {
	source := newCounter(uuid.New())
	require.NoError(t, source.Raise(increment(4), source.when))
	require.NoError(t, source.Raise(&counterReset{BaseDomainEvent: NewBaseDomainEvent("CounterReset", "", "", uuid.Nil, "")}, source.when))
	require.NoError(t, source.Raise(increment(7), source.when))

	t.Run("replays events in order", func(t *testing.T) {
		replayed := newCounter(source.AggregateTenantID())
		for _, e := range source.GetUncommittedEvents() {
			require.NoError(t, replayed.Replay(e.(counterEvent), replayed.when))
		}
		assert.Equal(t, source.value, replayed.value)
		assert.Equal(t, 3, replayed.GetVersion())
		assert.Empty(t, replayed.GetUncommittedEvents())
	})

	t.Run("rejects version gaps", func(t *testing.T) {
		replayed := newCounter(source.AggregateTenantID())
		events := source.GetUncommittedEvents()
		err := replayed.Replay(events[1].(counterEvent), replayed.when)
		assert.True(t, IsKind(err, KindInvalidState))
	})

	t.Run("continues after restored version", func(t *testing.T) {
		replayed := newCounter(source.AggregateTenantID())
		replayed.value = 0
		replayed.RestoreVersion(2)
		require.NoError(t, replayed.Replay(source.GetUncommittedEvents()[2].(counterEvent), replayed.when))
		assert.Equal(t, 7, replayed.value)
		assert.Equal(t, 3, replayed.GetVersion())
	})
}
