package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"compact-connect-backend/internal/config"
)

func TestMetrics_Observe(t *testing.T) {
	m := NewTestMetrics()

	m.ObserveNotification("license.opened", "state", nil)
	m.ObserveNotification("license.opened", "state", nil)
	m.ObserveNotification("license.opened", "provider", errors.New("ses down"))
	m.ObserveMessage("license-investigation", nil)
	m.ObserveDB("Query", time.Now(), errors.New("throttled"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues("license.opened", "state")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsFailed.WithLabelValues("license.opened", "provider")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesProcessed.WithLabelValues("license-investigation", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBOperations.WithLabelValues("Query", "error")))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDB("GetItem", time.Now(), nil)
		m.ObserveNotification("k", "state", nil)
		m.ObserveMessage("l", errors.New("x"))
	})
	assert.Nil(t, m.Registry())
}

func TestNewMetrics_Singleton(t *testing.T) {
	assert.Same(t, NewMetrics("compact_connect"), NewMetrics("other"))
}

func TestNewLogger(t *testing.T) {
	cfg := &config.Config{Environment: config.Production, ServiceName: "svc"}
	cfg.Observability.LogLevel = "warn"

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestInitTracing_Disabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.NoError(t, tp.ForceFlush(context.Background()))
	assert.NoError(t, tp.Shutdown(context.Background()))
	assert.NotNil(t, Tracer("test"))
}
