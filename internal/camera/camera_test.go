package camera

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/physicam/internal/exposure"
	"github.com/normanking/physicam/internal/gpu"
	"github.com/normanking/physicam/internal/gpu/soft"
	"github.com/normanking/physicam/internal/logging"
	"github.com/normanking/physicam/internal/metrics"
	"github.com/normanking/physicam/internal/postfx"
)

type renderCall struct {
	exposure float32
	in       postfx.Input
	out      uint32
	snap     postfx.Snapshot
}

type fakeProcessor struct {
	luminance []float32
	invalid   bool
	resizeErr error

	measured int
	renders  []renderCall
	sizes    [][2]int
}

func (f *fakeProcessor) Render(exposure float32, in postfx.Input, out uint32, snap postfx.Snapshot) error {
	f.renders = append(f.renders, renderCall{exposure, in, out, snap})
	return nil
}

func (f *fakeProcessor) Resize(w, h int) error {
	if f.resizeErr != nil {
		return f.resizeErr
	}
	f.sizes = append(f.sizes, [2]int{w, h})
	return nil
}

func (f *fakeProcessor) MeasureLuminance(uint32) (float32, error) {
	if f.measured >= len(f.luminance) {
		return 0, errors.New("no luminance queued")
	}
	v := f.luminance[f.measured]
	f.measured++
	return v, nil
}

func (f *fakeProcessor) Validate(in postfx.Input) error {
	if f.invalid {
		return fmt.Errorf("%w: color texture %d", postfx.ErrInvalidInput, in.Color)
	}
	return nil
}

var testInput = postfx.Input{Framebuffer: 1, Color: 2, Depth: 3}

func newTestCamera(t *testing.T, mode exposure.Mode, proc Processor) (*Camera, *logging.Logger) {
	t.Helper()
	log := logging.NewNop()
	cfg := DefaultConfig()
	cfg.Mode = mode
	c, err := New(cfg, proc, log)
	require.NoError(t, err)
	return c, log
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"near zero", func(c *Config) { c.ClipNear = 0 }},
		{"far before near", func(c *Config) { c.ClipFar = 0.1 }},
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"bad bounds", func(c *Config) { c.Bounds.ISO = exposure.Range{Min: 800, Max: 100} }},
		{"no focal length", func(c *Config) { c.Settings.FocalLength = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, &fakeProcessor{}, nil)
			assert.Error(t, err)
		})
	}

	_, err := New(DefaultConfig(), nil, nil)
	assert.Error(t, err)
}

func TestInvalidInputSkipsFrame(t *testing.T) {
	proc := &fakeProcessor{invalid: true, luminance: []float32{1}}
	c, log := newTestCamera(t, exposure.Auto, proc)
	m := metrics.New(prometheus.NewRegistry())
	c.SetMetrics(m)
	before := c.Settings()

	err := c.RenderPostProcessing(postfx.Input{Framebuffer: 1, Color: -1, Depth: 3}, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	assert.Empty(t, proc.renders)
	assert.Zero(t, proc.measured)
	assert.Equal(t, before, c.Settings())
	assert.Equal(t, 1, log.CountLevel(logging.LevelError))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesSkipped.WithLabelValues("invalid_input")))
	assert.Zero(t, testutil.ToFloat64(m.FramesRendered))
}

func TestManualModeDoesNotMeter(t *testing.T) {
	proc := &fakeProcessor{}
	c, _ := newTestCamera(t, exposure.Manual, proc)
	c.SetISO(400)
	c.SetAperture(2.8)
	c.SetShutter(1.0 / 125)

	require.NoError(t, c.RenderPostProcessing(testInput, 7))

	assert.Zero(t, proc.measured)
	require.Len(t, proc.renders, 1)
	call := proc.renders[0]
	assert.Equal(t, testInput, call.in)
	assert.Equal(t, uint32(7), call.out)

	s := c.Settings()
	want := 0.18 / ((1000.0 / 65.0) * s.Aperture * s.Aperture / (s.ISO * s.Shutter))
	assert.InDelta(t, want, call.exposure, 1e-9)
	assert.Equal(t, float32(400), call.snap.ISO)
}

func TestAutoModeMetersAndSmooths(t *testing.T) {
	proc := &fakeProcessor{luminance: []float32{1, 3}}
	c, _ := newTestCamera(t, exposure.Auto, proc)

	require.NoError(t, c.RenderPostProcessing(testInput, 0))
	assert.Equal(t, float32(1), c.AverageLuminance())

	ref, err := exposure.NewModel(exposure.DefaultSettings(), exposure.DefaultBounds())
	require.NoError(t, err)
	ref.Update(1)
	assert.Equal(t, ref.Settings(), c.Settings())
	assert.InDelta(t, ref.StandardOutputBasedExposure(0.18), proc.renders[0].exposure, 1e-9)

	c.Update(0.25)
	require.NoError(t, c.RenderPostProcessing(testInput, 0))
	assert.InDelta(t, 2, c.AverageLuminance(), 1e-6)
	assert.Equal(t, 2, proc.measured)
	assert.Equal(t, float32(0.25), proc.renders[1].snap.DeltaTime)
}

func TestSmoothingRateIsClamped(t *testing.T) {
	proc := &fakeProcessor{luminance: []float32{1, 5}}
	c, _ := newTestCamera(t, exposure.Auto, proc)
	require.NoError(t, c.RenderPostProcessing(testInput, 0))

	c.Update(3)
	require.NoError(t, c.RenderPostProcessing(testInput, 0))
	assert.Equal(t, float32(5), c.AverageLuminance())
}

func TestSmoothingContinuesAfterBlackFrame(t *testing.T) {
	proc := &fakeProcessor{luminance: []float32{0, 4}}
	c, _ := newTestCamera(t, exposure.Auto, proc)
	require.NoError(t, c.RenderPostProcessing(testInput, 0))
	assert.Equal(t, float32(0), c.AverageLuminance())

	c.Update(0.25)
	require.NoError(t, c.RenderPostProcessing(testInput, 0))
	assert.InDelta(t, 2, c.AverageLuminance(), 1e-6)
}

func TestViewMatrixForObjectSpaceTransform(t *testing.T) {
	c, _ := newTestCamera(t, exposure.Manual, &fakeProcessor{})
	tr := Identity()
	tr.Position = mgl32.Vec3{0, 0, 5}
	c.SetTransform(tr)

	got := c.ViewMatrix().Mul4x1(mgl32.Vec4{0, 0, 0, 1}).Vec3()
	assertVec3(t, mgl32.Vec3{0, 0, -5}, got)
}

func TestMeterErrorIsReturned(t *testing.T) {
	proc := &fakeProcessor{}
	c, _ := newTestCamera(t, exposure.Auto, proc)
	assert.Error(t, c.RenderPostProcessing(testInput, 0))
	assert.Empty(t, proc.renders)
}

func TestRenderRecordsMetrics(t *testing.T) {
	proc := &fakeProcessor{luminance: []float32{0.5}}
	c, _ := newTestCamera(t, exposure.Auto, proc)
	m := metrics.New(prometheus.NewRegistry())
	c.SetMetrics(m)

	require.NoError(t, c.RenderPostProcessing(testInput, 0))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesRendered))
	assert.InDelta(t, 0.5, testutil.ToFloat64(m.AverageLuminance), 1e-6)
	assert.InDelta(t, float64(c.Model().ComputeCurrentEV()), testutil.ToFloat64(m.ExposureValue), 1e-5)
}

func TestSetScreenSize(t *testing.T) {
	proc := &fakeProcessor{}
	c, _ := newTestCamera(t, exposure.Manual, proc)

	require.NoError(t, c.SetScreenSize(800, 400))
	assert.Equal(t, [][2]int{{800, 400}}, proc.sizes)
	assert.Equal(t, float32(2), c.AspectRatio())

	assert.Error(t, c.SetScreenSize(0, 400))

	proc.resizeErr = errors.New("out of memory")
	assert.Error(t, c.SetScreenSize(640, 480))
	w, h := c.ScreenSize()
	assert.Equal(t, 800, w)
	assert.Equal(t, 400, h)
}

func TestSnapshot(t *testing.T) {
	c, _ := newTestCamera(t, exposure.Manual, &fakeProcessor{})
	c.SetSensor(exposure.MediumFormat)
	c.Update(0.02)
	require.NoError(t, c.SetClipPlanes(0.1, 50))

	snap := c.Snapshot()
	assert.Equal(t, float32(0.05), snap.CoC)
	assert.Equal(t, float32(6400), snap.MaxISO)
	assert.Equal(t, float32(36), snap.FocalLength)
	assert.Equal(t, float32(0.1), snap.ClipNear)
	assert.Equal(t, float32(50), snap.ClipFar)
	assert.Equal(t, float32(0.02), snap.DeltaTime)

	assert.Error(t, c.SetClipPlanes(5, 1))
}

func TestProjectionMatrix(t *testing.T) {
	c, _ := newTestCamera(t, exposure.Manual, &fakeProcessor{})
	want := mgl32.Perspective(mgl32.DegToRad(c.FOV()), 1280.0/720.0, 0.5, 1000)
	assert.True(t, want.ApproxEqualThreshold(c.ProjectionMatrix(), 1e-6))

	c.SetFocalLength(72)
	assert.Less(t, c.FOV(), c.Model().ComputeFOV(36))
}

func TestRenderThroughSoftPipeline(t *testing.T) {
	const w, h = 8, 6
	dev := soft.NewDevice(w, h, postfx.SoftKernels())
	s := postfx.DefaultSettings()
	s.Bloom.Enabled = false
	s.DoF.Enabled = false
	s.Tonemap.Enabled = false
	s.Lens.Distortion = 0
	s.Lens.Dispersion = 0
	s.Lens.Scale = 1
	p, err := postfx.New(dev, s, w, h, nil)
	require.NoError(t, err)
	t.Cleanup(p.Destroy)

	cfg := DefaultConfig()
	cfg.Mode = exposure.Manual
	cfg.Width, cfg.Height = w, h
	c, err := New(cfg, p, nil)
	require.NoError(t, err)

	rgba := make([]float32, 0, w*h*4)
	depth := make([]float32, 0, w*h*4)
	for i := 0; i < w*h; i++ {
		rgba = append(rgba, 1000, 2000, 4000, 1)
		depth = append(depth, 0.5, 0, 0, 1)
	}
	color, err := dev.NewTexture(w, h, gpu.FormatRGB32F, rgba)
	require.NoError(t, err)
	z, err := dev.NewTexture(w, h, gpu.FormatDepth32F, depth)
	require.NoError(t, err)
	fb, err := dev.CreateFramebuffer()
	require.NoError(t, err)
	require.Equal(t, gpu.FramebufferComplete, dev.FramebufferTexture(fb, gpu.ColorAttachment0, color))

	in := postfx.Input{Framebuffer: int32(fb), Color: int32(color), Depth: int32(z)}
	require.NoError(t, c.RenderPostProcessing(in, 0))

	e := c.Exposure()
	_, _, px := dev.Screen()
	for i := 0; i < w*h; i++ {
		assert.InDelta(t, 1000*e, px[i*4], 1e-4)
		assert.InDelta(t, 2000*e, px[i*4+1], 1e-4)
		assert.InDelta(t, 4000*e, px[i*4+2], 1e-4)
	}

	err = c.RenderPostProcessing(postfx.Input{Framebuffer: int32(fb), Color: 9999, Depth: int32(z)}, 0)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
