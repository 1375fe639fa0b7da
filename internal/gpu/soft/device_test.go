package soft

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/physicam/internal/gpu"
)

func fill(w, h int, c [4]float32) []float32 {
	out := make([]float32, 0, w*h*4)
	for i := 0; i < w*h; i++ {
		out = append(out, c[:]...)
	}
	return out
}

func testKernels() map[string]Kernel {
	return map[string]Kernel{
		"copy": func(u *Uniforms) FragmentFunc {
			src := u.Texture("src")
			scale := u.Float("scale")
			return func(uv mgl32.Vec2, out []mgl32.Vec4) {
				c := src.Sample(uv)
				out[0] = c.Mul(scale)
				out[1] = mgl32.Vec4{uv[0], uv[1], 0, 1}
			}
		},
	}
}

func TestSamplerUniformTextureIsExact(t *testing.T) {
	d := NewDevice(4, 4, nil)
	id, err := d.NewTexture(3, 5, gpu.FormatRGBA32F, fill(3, 5, [4]float32{0.3, 0.6, 0.9, 1}))
	require.NoError(t, err)
	d.BindTexture(0, id)

	s := Sampler{lv: &d.textures[id].levels[0]}
	for _, uv := range []mgl32.Vec2{{0, 0}, {0.5, 0.5}, {1, 1}, {0.17, 0.93}} {
		c := s.Sample(uv)
		assert.Equal(t, float32(0.3), c[0])
		assert.Equal(t, float32(0.6), c[1])
		assert.Equal(t, float32(0.9), c[2])
	}
}

func TestNewTextureThroughDevice(t *testing.T) {
	var dev gpu.Device = NewDevice(2, 2, nil)
	id, err := dev.NewTexture(2, 1, gpu.FormatRGBA16F, []float32{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	assert.True(t, dev.IsTexture(id))

	w, h, px, err := dev.ReadTexels(id, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, w)
	assert.Equal(t, 1, h)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, px)

	_, err = dev.NewTexture(2, 2, gpu.FormatRGBA16F, []float32{1})
	assert.Error(t, err)
}

func TestUnboundSamplerIsBlack(t *testing.T) {
	var s Sampler
	assert.False(t, s.Bound())
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, s.Sample(mgl32.Vec2{0.5, 0.5}))
}

func TestStoreMasksChannels(t *testing.T) {
	d := NewDevice(1, 1, nil)
	id, err := d.NewTexture(1, 1, gpu.FormatR32F, []float32{2, 3, 4, 5})
	require.NoError(t, err)

	_, _, px, err := d.ReadTexels(id, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 0, 0, 1}, px)
}

func TestGenerateMipmapsAverages(t *testing.T) {
	d := NewDevice(1, 1, nil)
	data := []float32{
		0, 0, 0, 1, 1, 1, 1, 1,
		2, 2, 2, 1, 5, 5, 5, 1,
	}
	id, err := d.NewTexture(2, 2, gpu.FormatRGBA32F, data)
	require.NoError(t, err)
	d.GenerateMipmaps(id)

	w, h, px, err := d.ReadTexels(id, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
	assert.InDelta(t, 2.0, px[0], 1e-6)

	_, _, _, err = d.ReadTexels(id, 2)
	assert.Error(t, err)
}

func TestFramebufferCompleteness(t *testing.T) {
	d := NewDevice(1, 1, nil)
	fb, err := d.CreateFramebuffer()
	require.NoError(t, err)

	color, _ := d.CreateTexture(gpu.TextureDesc{Format: gpu.FormatRGB32F, Width: 2, Height: 2})
	depth, _ := d.CreateTexture(gpu.TextureDesc{Format: gpu.FormatDepth32F, Width: 2, Height: 2})

	tests := []struct {
		name string
		att  gpu.Attachment
		tex  uint32
		want gpu.FramebufferStatus
	}{
		{"color ok", gpu.ColorAttachment0, color, gpu.FramebufferComplete},
		{"depth ok", gpu.DepthAttachment, depth, gpu.FramebufferComplete},
		{"depth as color", gpu.ColorAttachment(1), depth, gpu.FramebufferIncompleteAttachment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.FramebufferTexture(fb, tt.att, tt.tex))
			if tt.want != gpu.FramebufferComplete {
				d.FramebufferTexture(fb, tt.att, 0)
			}
		})
	}
}

func TestDrawFullscreenWritesDrawBuffers(t *testing.T) {
	d := NewDevice(2, 2, testKernels())
	src, err := d.NewTexture(2, 2, gpu.FormatRGBA32F, fill(2, 2, [4]float32{1, 2, 3, 1}))
	require.NoError(t, err)

	fb, _ := d.CreateFramebuffer()
	a, _ := d.CreateTexture(gpu.TextureDesc{Format: gpu.FormatRGB32F, Width: 2, Height: 2})
	b, _ := d.CreateTexture(gpu.TextureDesc{Format: gpu.FormatRG32F, Width: 2, Height: 2})
	d.FramebufferTexture(fb, gpu.ColorAttachment0, a)
	d.FramebufferTexture(fb, gpu.ColorAttachment(1), b)

	prog, err := d.CreateProgram("copy", "v", "f")
	require.NoError(t, err)
	d.UseProgram(prog)
	d.Uniform1i(d.UniformLocation(prog, "src"), 0)
	d.Uniform1f(d.UniformLocation(prog, "scale"), 2)
	d.BindTexture(0, src)

	d.BindFramebuffer(gpu.FramebufferBoth, fb)
	d.DrawBuffers([]gpu.Attachment{gpu.ColorAttachment0, gpu.ColorAttachment(1)})
	d.Viewport(0, 0, 2, 2)
	d.DrawFullscreen()

	_, _, px, _ := d.ReadTexels(a, 0)
	assert.Equal(t, []float32{2, 4, 6, 1}, px[:4])

	_, _, uv, _ := d.ReadTexels(b, 0)
	assert.Equal(t, []float32{0.25, 0.25, 0, 1}, uv[:4])
	assert.Equal(t, []float32{0.75, 0.75, 0, 1}, uv[12:16])
	assert.Equal(t, 1, d.DrawCount("copy"))
}

func TestViewportLimitsWrites(t *testing.T) {
	d := NewDevice(4, 4, testKernels())
	src, _ := d.NewTexture(1, 1, gpu.FormatRGBA32F, []float32{1, 1, 1, 1})
	prog, _ := d.CreateProgram("copy", "v", "f")
	d.UseProgram(prog)
	d.Uniform1f(d.UniformLocation(prog, "scale"), 1)
	d.BindTexture(0, src)

	d.BindFramebuffer(gpu.FramebufferBoth, 0)
	d.Viewport(0, 0, 2, 2)
	d.DrawFullscreen()

	w, _, px := d.Screen()
	assert.Equal(t, float32(1), px[0])
	assert.Equal(t, float32(0), px[(3*w+3)*4])
}

func TestUnknownProgram(t *testing.T) {
	d := NewDevice(1, 1, nil)
	_, err := d.CreateProgram("missing", "v", "f")
	assert.Error(t, err)
}
