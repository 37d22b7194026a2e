package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGorm(cfg GormConfig) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), cfg), recorded
}

func sqlFn() (string, int64) { return "SELECT * FROM orders", 3 }

func TestDefaultGormConfig(t *testing.T) {
	cfg := DefaultGormConfig()

	assert.Equal(t, gormlogger.Warn, cfg.Level)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowThreshold)
	assert.True(t, cfg.IgnoreRecordNotFound)
}

func TestGormLogger_LogMode(t *testing.T) {
	gl, _ := newObservedGorm(DefaultGormConfig())

	changed, ok := gl.LogMode(gormlogger.Info).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Info, changed.cfg.Level)
	assert.Equal(t, gormlogger.Warn, gl.cfg.Level)
}

func TestGormLogger_Messages(t *testing.T) {
	gl, recorded := newObservedGorm(GormConfig{Level: gormlogger.Warn})
	ctx := context.Background()

	gl.Info(ctx, "suppressed %d", 1)
	gl.Warn(ctx, "warned %d", 2)
	gl.Error(ctx, "failed %d", 3)

	logs := recorded.All()
	require.Len(t, logs, 2)
	assert.Equal(t, "warned 2", logs[0].Message)
	assert.Equal(t, "failed 3", logs[1].Message)
}

func TestGormLogger_Trace(t *testing.T) {
	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-9")

	tests := []struct {
		name    string
		cfg     GormConfig
		begin   time.Time
		err     error
		message string
	}{
		{"error", GormConfig{Level: gormlogger.Error}, time.Now(), errors.New("db down"), "SQL Error"},
		{"not found ignored", GormConfig{Level: gormlogger.Error, IgnoreRecordNotFound: true}, time.Now(), gormlogger.ErrRecordNotFound, ""},
		{"not found logged", GormConfig{Level: gormlogger.Error}, time.Now(), gormlogger.ErrRecordNotFound, "SQL Error"},
		{"slow", GormConfig{Level: gormlogger.Warn, SlowThreshold: time.Millisecond}, time.Now().Add(-time.Second), nil, "SLOW SQL >= 1ms"},
		{"normal at info", GormConfig{Level: gormlogger.Info}, time.Now(), nil, "SQL Query"},
		{"normal at warn", GormConfig{Level: gormlogger.Warn, SlowThreshold: time.Hour}, time.Now(), nil, ""},
		{"silent", GormConfig{Level: gormlogger.Silent}, time.Now(), errors.New("x"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gl, recorded := newObservedGorm(tt.cfg)
			gl.Trace(ctx, tt.begin, sqlFn, tt.err)

			if tt.message == "" {
				assert.Zero(t, recorded.Len())
				return
			}
			require.Equal(t, 1, recorded.Len())
			entry := recorded.All()[0]
			assert.Equal(t, tt.message, entry.Message)
			assert.Equal(t, "req-9", entry.ContextMap()["request_id"])
			assert.Equal(t, int64(3), entry.ContextMap()["rows"])
		})
	}
}

func TestParseGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, ParseGormLevel("silent"))
	assert.Equal(t, gormlogger.Error, ParseGormLevel("error"))
	assert.Equal(t, gormlogger.Info, ParseGormLevel("debug"))
	assert.Equal(t, gormlogger.Warn, ParseGormLevel("warn"))
	assert.Equal(t, gormlogger.Warn, ParseGormLevel("unknown"))
}
