package gpu_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/physicam/internal/gpu"
	"github.com/normanking/physicam/internal/gpu/soft"
	"github.com/normanking/physicam/internal/logging"
)

func passKernels() map[string]soft.Kernel {
	return map[string]soft.Kernel{
		"pass": func(u *soft.Uniforms) soft.FragmentFunc {
			gain := u.Float("gain")
			return func(uv mgl32.Vec2, out []mgl32.Vec4) {
				out[0] = mgl32.Vec4{gain, gain, gain, 1}
			}
		},
	}
}

func TestFormatProperties(t *testing.T) {
	tests := []struct {
		format   gpu.Format
		base     uint32
		channels int
		depth    bool
	}{
		{gpu.FormatR32F, gpu.BaseRed, 1, false},
		{gpu.FormatRG16F, gpu.BaseRG, 2, false},
		{gpu.FormatRGB32F, gpu.BaseRGB, 3, false},
		{gpu.FormatRGBA16F, gpu.BaseRGBA, 4, false},
		{gpu.FormatRGBA8, gpu.BaseRGBA, 4, false},
		{gpu.FormatDepth32F, gpu.BaseDepth, 1, true},
		{gpu.FormatDepth24Stencil8, gpu.BaseDepthStencil, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			assert.Equal(t, tt.base, tt.format.BaseFormat())
			assert.Equal(t, tt.channels, tt.format.Channels())
			assert.Equal(t, tt.depth, tt.format.IsDepth())
		})
	}
}

func TestAttachmentIndex(t *testing.T) {
	assert.Equal(t, gpu.ColorAttachment0, gpu.ColorAttachment(0))
	assert.Equal(t, 3, gpu.ColorAttachment(3).ColorIndex())
	assert.True(t, gpu.ColorAttachment(2).IsColor())
	assert.False(t, gpu.DepthAttachment.IsColor())
}

func TestSamplerFor(t *testing.T) {
	plain := gpu.SamplerFor(gpu.Caps{}, false)
	assert.Equal(t, gpu.FilterLinear, plain.MinFilter)
	assert.Zero(t, plain.Anisotropy)

	mipped := gpu.SamplerFor(gpu.Caps{AnisotropicFilter: true, MaxAnisotropy: 8}, true)
	assert.Equal(t, gpu.FilterLinearMipmapLinear, mipped.MinFilter)
	assert.Equal(t, float32(8), mipped.Anisotropy)

	disabled := gpu.Caps{AnisotropicFilter: true, MaxAnisotropy: 8}.Without(gpu.ExtAnisotropicFilter)
	assert.Zero(t, gpu.SamplerFor(disabled, true).Anisotropy)
}

func TestFromExtensions(t *testing.T) {
	c := gpu.FromExtensions([]string{gpu.ExtTextureStorage, "GL_KHR_debug", gpu.ExtDirectStateAccess})
	assert.True(t, c.TextureStorage)
	assert.True(t, c.DirectStateAccess)
	assert.False(t, c.InternalFormatQuery)
}

func TestMipLevels(t *testing.T) {
	assert.Equal(t, 1, gpu.MipLevels(1, 1))
	assert.Equal(t, 10, gpu.MipLevels(640, 360))
	assert.Equal(t, 11, gpu.MipLevels(1024, 16))
}

func TestRenderTargetLifetime(t *testing.T) {
	dev := soft.NewDevice(8, 8, nil)
	rt, err := gpu.NewRenderTarget(dev, gpu.TextureDesc{Format: gpu.FormatRGB32F, Width: 4, Height: 4})
	require.NoError(t, err)
	id := rt.ID()
	assert.True(t, dev.IsTexture(id))
	assert.Equal(t, gpu.Texture2D, rt.Desc().Type)

	rt.Retain()
	rt.Release()
	assert.True(t, dev.IsTexture(id))
	rt.Release()
	assert.False(t, dev.IsTexture(id))
	assert.Zero(t, rt.ID())

	_, err = gpu.NewRenderTarget(dev, gpu.TextureDesc{Format: gpu.FormatRGB32F})
	assert.Error(t, err)
}

func TestFrameBufferDrawOrder(t *testing.T) {
	dev := soft.NewDevice(8, 8, nil)
	fb, err := gpu.NewFrameBuffer(dev, 4, 4, nil)
	require.NoError(t, err)
	defer fb.Destroy()

	_, err = fb.CreateAndAttach(gpu.ColorAttachment(1), gpu.Texture2D, gpu.FormatRGB32F, false)
	require.NoError(t, err)
	_, err = fb.CreateAndAttach(gpu.DepthAttachment, gpu.Texture2D, gpu.FormatDepth32F, false)
	require.NoError(t, err)
	_, err = fb.CreateAndAttach(gpu.ColorAttachment0, gpu.Texture2D, gpu.FormatR32F, false)
	require.NoError(t, err)

	assert.Equal(t, []gpu.Attachment{gpu.ColorAttachment(1), gpu.ColorAttachment0}, fb.DrawBuffers())

	// Replacing an attachment keeps its slot.
	_, err = fb.CreateAndAttach(gpu.ColorAttachment(1), gpu.Texture2D, gpu.FormatRGBA16F, false)
	require.NoError(t, err)
	assert.Len(t, fb.DrawBuffers(), 2)
	assert.Equal(t, gpu.FormatRGBA16F, fb.Target(gpu.ColorAttachment(1)).Format())
}

func TestFrameBufferIncompleteAttach(t *testing.T) {
	dev := soft.NewDevice(8, 8, nil)
	log := logging.NewWithWriter(io.Discard, logging.LevelDebug)
	fb, err := gpu.NewFrameBuffer(dev, 4, 4, log)
	require.NoError(t, err)

	color, err := fb.CreateAndAttach(gpu.ColorAttachment0, gpu.Texture2D, gpu.FormatRGB32F, false)
	require.NoError(t, err)

	depth, err := gpu.NewRenderTarget(dev, gpu.TextureDesc{Format: gpu.FormatDepth32F, Width: 4, Height: 4})
	require.NoError(t, err)

	err = fb.Attach(gpu.ColorAttachment0, depth)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gpu.ErrIncomplete))
	assert.Same(t, color, fb.Target(gpu.ColorAttachment0))
	assert.Equal(t, 1, depth.Refs())
	assert.Equal(t, 1, log.CountLevel(logging.LevelError))
}

func TestFrameBufferSizeMismatchWarns(t *testing.T) {
	dev := soft.NewDevice(8, 8, nil)
	log := logging.NewWithWriter(io.Discard, logging.LevelDebug)
	fb, err := gpu.NewFrameBuffer(dev, 4, 4, log)
	require.NoError(t, err)

	rt, err := gpu.NewRenderTarget(dev, gpu.TextureDesc{Format: gpu.FormatRGB32F, Width: 2, Height: 2})
	require.NoError(t, err)
	require.NoError(t, fb.Attach(gpu.ColorAttachment0, rt))

	assert.Equal(t, 1, log.CountLevel(logging.LevelWarn))
	assert.Equal(t, 2, rt.Refs())
}

func TestFrameBufferSharedTarget(t *testing.T) {
	dev := soft.NewDevice(8, 8, nil)
	a, _ := gpu.NewFrameBuffer(dev, 4, 4, nil)
	b, _ := gpu.NewFrameBuffer(dev, 4, 4, nil)

	rt, err := a.CreateAndAttach(gpu.ColorAttachment0, gpu.Texture2D, gpu.FormatRGB32F, false)
	require.NoError(t, err)
	require.NoError(t, b.Attach(gpu.ColorAttachment0, rt))
	assert.Equal(t, 3, rt.Refs())

	a.Destroy()
	rt.Release()
	assert.True(t, dev.IsTexture(rt.ID()))

	b.Detach(gpu.ColorAttachment0)
	assert.Zero(t, rt.ID())
	assert.Empty(t, b.DrawBuffers())
}

func TestProgramUniformsAndReload(t *testing.T) {
	dev := soft.NewDevice(2, 2, passKernels())

	_, err := gpu.NewProgram(dev, "missing", "vert", "frag")
	assert.True(t, errors.Is(err, gpu.ErrCompile))

	p, err := gpu.NewProgram(dev, "pass", "vert", "frag")
	require.NoError(t, err)
	assert.Equal(t, "pass", p.Name())

	p.Use()
	p.SetFloat("gain", 0.5)
	dev.BindFramebuffer(gpu.FramebufferBoth, 0)
	dev.DrawFullscreen()
	_, _, px := dev.Screen()
	assert.Equal(t, float32(0.5), px[0])

	old := p.ID()
	require.NoError(t, p.Reload("frag2"))
	assert.NotEqual(t, old, p.ID())

	assert.Error(t, p.Reload(""))
	assert.NotZero(t, p.ID())
	p.Delete()
	assert.Zero(t, p.ID())
}

func TestProgramWatcher(t *testing.T) {
	dev := soft.NewDevice(2, 2, passKernels())
	p, err := gpu.NewProgram(dev, "pass", "vert", "frag")
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "pass.frag")
	require.NoError(t, os.WriteFile(path, []byte("void main() {}"), 0o644))

	pw, err := gpu.NewProgramWatcher(dir, nil)
	require.NoError(t, err)
	defer pw.Close()

	var reports []string
	pw.OnReload(func(name string, err error) {
		assert.NoError(t, err)
		reports = append(reports, name)
	})

	pw.Watch(p)
	assert.Equal(t, 1, pw.Pending())
	first := p.ID()
	assert.Equal(t, 1, pw.ApplyPending())
	assert.NotEqual(t, first, p.ID())
	assert.Equal(t, []string{"pass"}, reports)

	require.NoError(t, os.WriteFile(path, []byte("void main() { }"), 0o644))
	require.Eventually(t, func() bool { return pw.Pending() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, pw.ApplyPending())
	assert.Zero(t, pw.Pending())
}
