// Package metrics exposes the camera's frame and exposure statistics to
// prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "physicam"

// Metrics holds the collectors registered for one camera.
type Metrics struct {
	FramesRendered   prometheus.Counter
	FramesSkipped    *prometheus.CounterVec
	FrameDuration    prometheus.Histogram
	AverageLuminance prometheus.Gauge
	ExposureValue    prometheus.Gauge
	Exposure         *prometheus.GaugeVec
	ShaderReloads    *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		FramesRendered: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_rendered_total",
				Help:      "Total number of post-processed frames",
			},
		),
		FramesSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_skipped_total",
				Help:      "Frames skipped before rendering, by reason",
			},
			[]string{"reason"},
		),
		FrameDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "frame_duration_seconds",
				Help:      "Post-processing time per frame in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
		),
		AverageLuminance: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "average_luminance",
				Help:      "Smoothed average scene luminance",
			},
		),
		ExposureValue: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "exposure_value",
				Help:      "Current exposure value (EV100)",
			},
		),
		Exposure: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "exposure_setting",
				Help:      "Current ISO, aperture and shutter speed",
			},
			[]string{"control"},
		),
		ShaderReloads: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shader_reloads_total",
				Help:      "Shader hot reloads, by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveFrame records one rendered frame.
func (m *Metrics) ObserveFrame(d time.Duration) {
	m.FramesRendered.Inc()
	m.FrameDuration.Observe(d.Seconds())
}

// SkipFrame records a frame dropped for reason.
func (m *Metrics) SkipFrame(reason string) {
	m.FramesSkipped.WithLabelValues(reason).Inc()
}

// SetExposure publishes the camera state after an exposure update.
func (m *Metrics) SetExposure(ev, iso, aperture, shutter, luminance float32) {
	m.ExposureValue.Set(float64(ev))
	m.Exposure.WithLabelValues("iso").Set(float64(iso))
	m.Exposure.WithLabelValues("aperture").Set(float64(aperture))
	m.Exposure.WithLabelValues("shutter").Set(float64(shutter))
	m.AverageLuminance.Set(float64(luminance))
}

// ShaderReloaded records the outcome of a hot reload.
func (m *Metrics) ShaderReloaded(ok bool) {
	if ok {
		m.ShaderReloads.WithLabelValues("ok").Inc()
		return
	}
	m.ShaderReloads.WithLabelValues("error").Inc()
}
