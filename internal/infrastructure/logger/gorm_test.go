package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func stmt(sql string) func() (string, int64) {
	return func() (string, int64) { return sql, 1 }
}

var _ gormlogger.Interface = (*GormLogger)(nil)

func TestGormLogger_LogModeCopies(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info)
	quieter, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Info, gl.logLevel)
	assert.Equal(t, gormlogger.Warn, quieter.logLevel)
}

func TestGormLogger_TraceError(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Warn)
	ctx := WithCommandScope(context.Background(), uuid.New(), "", "INV-1-ABC")

	gl.Trace(ctx, time.Now(), stmt("INSERT INTO ledger_events"), errors.New("duplicate key"))

	entries := recorded.FilterMessage("sql error").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "INV-1-ABC", entries[0].ContextMap()["aggregate_id"])
}

func TestGormLogger_TraceRecordNotFound(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Warn)
	gl.Trace(context.Background(), time.Now(), stmt("SELECT"), gormlogger.ErrRecordNotFound)
	assert.Zero(t, recorded.Len())

	gl, recorded = newObservedGormLogger(gormlogger.Warn, WithIgnoreRecordNotFoundError(false))
	gl.Trace(context.Background(), time.Now(), stmt("SELECT"), gormlogger.ErrRecordNotFound)
	assert.Equal(t, 1, recorded.Len())
}

func TestGormLogger_TraceSlow(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(time.Millisecond))
	gl.Trace(context.Background(), time.Now().Add(-time.Second), stmt("SELECT"), nil)
	assert.Equal(t, 1, recorded.FilterMessage("slow sql").Len())
}

func TestGormLogger_TraceLevels(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Warn)
	gl.Trace(context.Background(), time.Now(), stmt("SELECT 1"), nil)
	assert.Zero(t, recorded.Len())

	gl, recorded = newObservedGormLogger(gormlogger.Info)
	gl.Trace(context.Background(), time.Now(), stmt("SELECT 1"), nil)
	assert.Equal(t, 1, recorded.FilterMessage("sql").Len())

	gl, recorded = newObservedGormLogger(gormlogger.Silent)
	gl.Trace(context.Background(), time.Now(), stmt("SELECT 1"), errors.New("boom"))
	assert.Zero(t, recorded.Len())
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("info"))
}
