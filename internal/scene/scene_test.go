package scene

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/physicam/internal/camera"
	"github.com/normanking/physicam/internal/exposure"
	"github.com/normanking/physicam/internal/gpu/soft"
	"github.com/normanking/physicam/internal/postfx"
)

const testW, testH = 16, 12

func kernels() map[string]soft.Kernel {
	k := postfx.SoftKernels()
	for name, fn := range SoftKernels() {
		k[name] = fn
	}
	return k
}

func newTestCamera(t *testing.T, proc camera.Processor) *camera.Camera {
	t.Helper()
	cfg := camera.DefaultConfig()
	cfg.Mode = exposure.Manual
	cfg.Width, cfg.Height = testW, testH
	c, err := camera.New(cfg, proc, nil)
	require.NoError(t, err)
	c.SetTransform(camera.LookAt(mgl32.Vec3{0, 1, 6}, mgl32.Vec3{0, 1, -8}, mgl32.Vec3{0, 1, 0}))
	return c
}

type nopProcessor struct{}

func (nopProcessor) Render(float32, postfx.Input, uint32, postfx.Snapshot) error { return nil }
func (nopProcessor) Resize(int, int) error                                       { return nil }
func (nopProcessor) MeasureLuminance(uint32) (float32, error)                    { return 0, nil }
func (nopProcessor) Validate(postfx.Input) error                                 { return nil }

func texel(px []float32, w, x, y int) [4]float32 {
	i := (y*w + x) * 4
	return [4]float32{px[i], px[i+1], px[i+2], px[i+3]}
}

func TestViewFrom(t *testing.T) {
	c := newTestCamera(t, nopProcessor{})
	v := ViewFrom(c, 2)

	assert.InDelta(t, 0, v.Forward.Sub(mgl32.Vec3{0, 0, -1}).Len(), 1e-5)
	assert.InDelta(t, 0, v.Right.Sub(mgl32.Vec3{1, 0, 0}).Len(), 1e-5)
	assert.InDelta(t, 0, v.Up.Sub(mgl32.Vec3{0, 1, 0}).Len(), 1e-5)
	assert.InDelta(t, math32.Tan(mgl32.DegToRad(c.FOV())/2), v.TanHalfFov, 1e-6)
	assert.InDelta(t, float32(testW)/testH, v.Aspect, 1e-6)
	assert.Equal(t, float32(2), v.TimeSeconds)
}

func TestDrawWritesColorAndDepth(t *testing.T) {
	dev := soft.NewDevice(testW, testH, kernels())
	s, err := New(dev, testW, testH, nil)
	require.NoError(t, err)
	t.Cleanup(s.Destroy)

	c := newTestCamera(t, nopProcessor{})
	s.Draw(ViewFrom(c, 0))
	assert.Equal(t, 1, dev.DrawCount(ProgramName))

	in := s.Input()
	_, _, color, err := dev.ReadTexels(uint32(in.Color), 0)
	require.NoError(t, err)
	_, _, z, err := dev.ReadTexels(uint32(in.Depth), 0)
	require.NoError(t, err)

	// The center pixel looks at the middle sphere, 13 units away.
	near, far := c.ClipPlanes()
	center := texel(z, testW, testW/2, testH/2)
	assert.Less(t, center[0], float32(1))
	assert.InDelta(t, depth(13, near, far), center[0], 2e-3)
	assert.Greater(t, texel(color, testW, testW/2, testH/2)[0], float32(0))

	// The top left corner sees only sky.
	corner := texel(z, testW, 0, testH-1)
	assert.InDelta(t, 1, corner[0], 1e-5)
	sky := texel(color, testW, 0, testH-1)
	assert.Greater(t, sky[2], sky[0])
}

func TestResizeReallocatesTargets(t *testing.T) {
	dev := soft.NewDevice(testW, testH, kernels())
	s, err := New(dev, testW, testH, nil)
	require.NoError(t, err)
	t.Cleanup(s.Destroy)

	old := s.Input()
	require.NoError(t, s.Resize(8, 4))
	in := s.Input()
	assert.Equal(t, old.Framebuffer, in.Framebuffer)
	assert.False(t, dev.IsTexture(uint32(old.Color)))

	w, h, _, err := dev.ReadTexels(uint32(in.Color), 0)
	require.NoError(t, err)
	assert.Equal(t, [2]int{8, 4}, [2]int{w, h})
}

func TestLampMoves(t *testing.T) {
	assert.InDelta(t, 0, lampCenter(0).X(), 1e-6)
	assert.InDelta(t, 3, lampCenter(math32.Pi/0.6).X(), 1e-4)
}

func TestFloorChecker(t *testing.T) {
	tests := []struct {
		p    mgl32.Vec3
		want float32
	}{
		{mgl32.Vec3{0.5, 0, 0.5}, 0.6},
		{mgl32.Vec3{1.5, 0, 0.5}, 0.3},
		{mgl32.Vec3{-0.5, 0, 0.5}, 0.3},
		{mgl32.Vec3{-0.5, 0, -0.5}, 0.6},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, albedo(tt.p, materialFloor).X(), 1e-6, "%v", tt.p)
	}
}

func TestSceneThroughCamera(t *testing.T) {
	dev := soft.NewDevice(testW, testH, kernels())
	ps := postfx.DefaultSettings()
	ps.Bloom.Enabled = false
	ps.Grain.Enabled = false
	p, err := postfx.New(dev, ps, testW, testH, nil)
	require.NoError(t, err)
	t.Cleanup(p.Destroy)

	c := newTestCamera(t, p)
	c.SetMode(exposure.Auto)
	c.Update(0.016)

	s, err := New(dev, testW, testH, nil)
	require.NoError(t, err)
	t.Cleanup(s.Destroy)

	s.Draw(ViewFrom(c, 0))
	require.NoError(t, c.RenderPostProcessing(s.Input(), 0))
	assert.Greater(t, c.AverageLuminance(), float32(0))

	_, _, px := dev.Screen()
	for i, v := range px {
		require.False(t, math32.IsNaN(v), "component %d", i)
		require.GreaterOrEqual(t, v, float32(0), "component %d", i)
	}
	assert.Equal(t, 1, dev.DrawCount(ProgramName))
	assert.NotZero(t, dev.DrawCount("tonemap"))
}
