package postfx

import (
	"fmt"

	"github.com/normanking/physicam/internal/gpu"
	"github.com/normanking/physicam/internal/logging"
)

// targets holds every framebuffer the pipeline renders into. Each render
// target is owned by its framebuffer; repopulating an attachment releases
// the previous texture.
type targets struct {
	dev gpu.Device
	log *logging.Logger

	lens  *gpu.FrameBuffer // COLOR0 distorted color, COLOR1 distorted depth
	scene [2]*gpu.FrameBuffer

	bright *gpu.FrameBuffer // COLOR0 bloom source, COLOR1 flare source
	blurH  [BloomLevels]*gpu.FrameBuffer
	blurV  [BloomLevels]*gpu.FrameBuffer
	bloom  *gpu.FrameBuffer
	flare  *gpu.FrameBuffer
}

func half(v int) int { return max(v/2, 1) }

// levelSize returns the size of bloom level i, 0.5^(i+1) of the screen.
func levelSize(w, h, i int) (int, int) {
	for n := 0; n <= i; n++ {
		w, h = half(w), half(h)
	}
	return w, h
}

func newTargets(dev gpu.Device, w, h int, log *logging.Logger) (*targets, error) {
	t := &targets{dev: dev, log: log}

	var err error
	newFB := func(w, h int) *gpu.FrameBuffer {
		if err != nil {
			return nil
		}
		var fb *gpu.FrameBuffer
		fb, err = gpu.NewFrameBuffer(dev, w, h, log)
		return fb
	}

	t.lens = newFB(w, h)
	t.scene[0] = newFB(w, h)
	t.scene[1] = newFB(w, h)
	t.bright = newFB(half(w), half(h))
	for i := 0; i < BloomLevels; i++ {
		lw, lh := levelSize(w, h, i)
		t.blurH[i] = newFB(lw, lh)
		t.blurV[i] = newFB(lw, lh)
	}
	t.bloom = newFB(half(w), half(h))
	t.flare = newFB(half(w), half(h))
	if err != nil {
		t.destroy()
		return nil, err
	}

	if err := t.populate(); err != nil {
		t.destroy()
		return nil, err
	}
	return t, nil
}

func (t *targets) all() []*gpu.FrameBuffer {
	fbs := []*gpu.FrameBuffer{t.lens, t.scene[0], t.scene[1], t.bright, t.bloom, t.flare}
	fbs = append(fbs, t.blurH[:]...)
	return append(fbs, t.blurV[:]...)
}

// populate (re)creates every render target at its framebuffer's size.
func (t *targets) populate() error {
	type slot struct {
		fb     *gpu.FrameBuffer
		att    gpu.Attachment
		format gpu.Format
	}
	slots := []slot{
		{t.lens, gpu.ColorAttachment0, gpu.FormatRGB32F},
		{t.lens, gpu.ColorAttachment(1), gpu.FormatR32F},
		{t.scene[0], gpu.ColorAttachment0, gpu.FormatRGB32F},
		{t.scene[1], gpu.ColorAttachment0, gpu.FormatRGB32F},
		{t.bright, gpu.ColorAttachment0, gpu.FormatRGB32F},
		{t.bright, gpu.ColorAttachment(1), gpu.FormatRGB16F},
		{t.bloom, gpu.ColorAttachment0, gpu.FormatRGB32F},
		{t.flare, gpu.ColorAttachment0, gpu.FormatRGB32F},
	}
	for i := 0; i < BloomLevels; i++ {
		slots = append(slots,
			slot{t.blurH[i], gpu.ColorAttachment0, gpu.FormatRGB32F},
			slot{t.blurV[i], gpu.ColorAttachment0, gpu.FormatRGB32F})
	}

	for _, s := range slots {
		rt, err := s.fb.CreateAndAttach(s.att, gpu.Texture2D, s.format, false)
		if err != nil {
			return fmt.Errorf("framebuffer %d %s: %w", s.fb.ID(), s.att, err)
		}
		rt.Release()
	}
	return nil
}

func (t *targets) resize(w, h int) error {
	t.lens.Resize(w, h)
	t.scene[0].Resize(w, h)
	t.scene[1].Resize(w, h)
	t.bright.Resize(half(w), half(h))
	for i := 0; i < BloomLevels; i++ {
		lw, lh := levelSize(w, h, i)
		t.blurH[i].Resize(lw, lh)
		t.blurV[i].Resize(lw, lh)
	}
	t.bloom.Resize(half(w), half(h))
	t.flare.Resize(half(w), half(h))
	return t.populate()
}

func (t *targets) destroy() {
	for _, fb := range t.all() {
		if fb != nil {
			fb.Destroy()
		}
	}
}

func colorOf(fb *gpu.FrameBuffer) *gpu.RenderTarget {
	return fb.Target(gpu.ColorAttachment0)
}
