package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "warn", Format: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = NewLogger(LogConfig{})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger(LogConfig{Format: "xml"})
	assert.Error(t, err)

	_, err = NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNewMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()
	m.SendsTotal.WithLabelValues("sms", "sent").Inc()
	m.SendsTotal.WithLabelValues("sms", "sent").Inc()
	m.ThreatLevel.Set(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SendsTotal.WithLabelValues("sms", "sent")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ThreatLevel))

	// A second instance must not collide with the first.
	assert.NotPanics(t, func() { NewMetricsForTesting() })
}
