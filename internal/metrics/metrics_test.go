package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveFrame(2 * time.Millisecond)
	m.ObserveFrame(3 * time.Millisecond)
	m.SkipFrame("invalid_input")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesRendered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesSkipped.WithLabelValues("invalid_input")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FrameDuration))
}

func TestSetExposure(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetExposure(12, 200, 5.6, 0.004, 0.25)

	assert.Equal(t, 12.0, testutil.ToFloat64(m.ExposureValue))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.Exposure.WithLabelValues("iso")))
	assert.InDelta(t, 5.6, testutil.ToFloat64(m.Exposure.WithLabelValues("aperture")), 1e-6)
	assert.InDelta(t, 0.25, testutil.ToFloat64(m.AverageLuminance), 1e-6)
}

func TestShaderReloads(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ShaderReloaded(true)
	m.ShaderReloaded(false)
	m.ShaderReloaded(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShaderReloads.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ShaderReloads.WithLabelValues("error")))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	require.Panics(t, func() { New(reg) })
}
