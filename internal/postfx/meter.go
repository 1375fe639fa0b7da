package postfx

import (
	"fmt"

	"github.com/normanking/physicam/internal/gpu"
	"github.com/normanking/physicam/internal/logging"
)

// LuminanceMeter measures the average relative luminance of a texture by
// downsampling it to half size and reading back the last mip level.
type LuminanceMeter struct {
	dev  gpu.Device
	fb   *gpu.FrameBuffer
	prog *gpu.Program
}

// NewLuminanceMeter creates a meter for images of the given screen size.
func NewLuminanceMeter(dev gpu.Device, width, height int, log *logging.Logger) (*LuminanceMeter, error) {
	prog, err := gpu.NewProgram(dev, progDownsample, fullscreenVertSrc, downsampleFragSrc)
	if err != nil {
		return nil, err
	}
	fb, err := gpu.NewFrameBuffer(dev, half(width), half(height), log)
	if err != nil {
		prog.Delete()
		return nil, err
	}
	m := &LuminanceMeter{dev: dev, fb: fb, prog: prog}
	if err := m.populate(); err != nil {
		m.Destroy()
		return nil, err
	}
	return m, nil
}

func (m *LuminanceMeter) populate() error {
	rt, err := m.fb.CreateAndAttach(gpu.ColorAttachment0, gpu.Texture2D, gpu.FormatRGB32F, true)
	if err != nil {
		return fmt.Errorf("downsample target: %w", err)
	}
	rt.Release()
	return nil
}

// Measure returns 0.2126R + 0.7152G + 0.0722B of the mean color of tex.
// It blocks until the result has been read back.
func (m *LuminanceMeter) Measure(tex uint32) (float32, error) {
	m.fb.Bind()
	m.dev.BindTexture(0, tex)
	m.prog.Use()
	m.prog.SetInt("uTex", 0)
	m.dev.DrawFullscreen()

	rt := colorOf(m.fb)
	rt.GenerateMipmaps()

	_, _, px, err := m.dev.ReadTexels(rt.ID(), rt.Levels()-1)
	if err != nil {
		return 0, fmt.Errorf("read luminance: %w", err)
	}
	if len(px) < 3 {
		return 0, fmt.Errorf("read luminance: got %d values", len(px))
	}
	return luminance709(px[0], px[1], px[2]), nil
}

// Resize reallocates the downsample target for a new screen size.
func (m *LuminanceMeter) Resize(width, height int) error {
	m.fb.Resize(half(width), half(height))
	return m.populate()
}

// Program returns the downsample program.
func (m *LuminanceMeter) Program() *gpu.Program { return m.prog }

// Destroy releases the meter's resources.
func (m *LuminanceMeter) Destroy() {
	m.fb.Destroy()
	m.prog.Delete()
}

func luminance709(r, g, b float32) float32 {
	return 0.2126*r + 0.7152*g + 0.0722*b
}
