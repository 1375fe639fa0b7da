// Package postfx is the physically based post-processing chain: lens
// distortion, exposure, bloom with lens flare, depth of field, tonemapping
// and film grain, plus the luminance meter driving auto exposure.
package postfx

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/normanking/physicam/internal/gpu"
	"github.com/normanking/physicam/internal/logging"
)

// ErrInvalidInput is returned for an input descriptor the device does not
// recognize.
var ErrInvalidInput = errors.New("invalid input descriptor")

const (
	haloWidth            = 0.4
	flareThresholdFactor = 10
	grainTimeScale       = 0.001
)

// Input names the rendered scene: the framebuffer it was drawn into and its
// color and depth textures.
type Input struct {
	Framebuffer int32
	Color       int32
	Depth       int32
}

// Snapshot is the camera state a frame is rendered with.
type Snapshot struct {
	Aperture    float32
	ISO         float32
	MaxISO      float32
	Shutter     float32
	FocalLength float32 // mm
	CoC         float32 // mm
	ClipNear    float32
	ClipFar     float32
	DeltaTime   float32 // seconds
}

// Pipeline runs the effect chain. It must be used from the thread owning
// the device.
type Pipeline struct {
	dev      gpu.Device
	log      *logging.Logger
	settings Settings
	width    int
	height   int

	programs map[string]*gpu.Program
	blur     blurStrategy
	targets  *targets
	meter    *LuminanceMeter

	grainTimer float32
}

// New compiles the stage programs and allocates the render targets for a
// width x height output. Any compile failure fails construction.
func New(dev gpu.Device, s Settings, width, height int, log *logging.Logger) (*Pipeline, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("pipeline size %dx%d must be positive", width, height)
	}
	if log == nil {
		log = logging.NewNop()
	}

	p := &Pipeline{
		dev:      dev,
		log:      log,
		settings: s,
		width:    width,
		height:   height,
		programs: make(map[string]*gpu.Program),
		blur:     newBlurStrategy(s.Bloom.Blur),
	}

	stages := []string{
		progBlit, progLensDistortion, progBrightPass, p.blur.program(),
		progBloomCompose, progLensFlare, progBloomFinal, progDoF, progTonemap,
	}
	for _, name := range stages {
		prog, err := gpu.NewProgram(dev, name, fullscreenVertSrc, fragmentSources[name])
		if err != nil {
			p.Destroy()
			log.Error("postfx", "stage program failed", err, map[string]interface{}{"stage": name})
			return nil, fmt.Errorf("%s stage: %w", name, err)
		}
		p.programs[name] = prog
	}

	var err error
	if p.targets, err = newTargets(dev, width, height, log); err != nil {
		p.Destroy()
		return nil, err
	}
	if p.meter, err = NewLuminanceMeter(dev, width, height, log); err != nil {
		p.Destroy()
		return nil, fmt.Errorf("luminance meter: %w", err)
	}

	log.Info("postfx", "pipeline created", map[string]interface{}{
		"width":  width,
		"height": height,
		"blur":   s.Bloom.Blur.String(),
	})
	return p, nil
}

// Settings returns the live settings; changes apply to the next frame.
func (p *Pipeline) Settings() *Settings { return &p.settings }

// Size returns the output size.
func (p *Pipeline) Size() (int, int) { return p.width, p.height }

// Programs returns every program the pipeline owns, for hot reloading.
func (p *Pipeline) Programs() []*gpu.Program {
	out := make([]*gpu.Program, 0, len(p.programs)+1)
	for _, prog := range p.programs {
		out = append(out, prog)
	}
	if p.meter != nil {
		out = append(out, p.meter.Program())
	}
	return out
}

// Validate checks that the descriptor names live device objects.
func (p *Pipeline) Validate(in Input) error {
	switch {
	case in.Framebuffer < 0:
		return fmt.Errorf("%w: framebuffer %d", ErrInvalidInput, in.Framebuffer)
	case in.Color < 0:
		return fmt.Errorf("%w: color texture %d", ErrInvalidInput, in.Color)
	case in.Depth < 0:
		return fmt.Errorf("%w: depth texture %d", ErrInvalidInput, in.Depth)
	case !p.dev.IsFramebuffer(uint32(in.Framebuffer)):
		return fmt.Errorf("%w: framebuffer %d does not exist", ErrInvalidInput, in.Framebuffer)
	case !p.dev.IsTexture(uint32(in.Color)):
		return fmt.Errorf("%w: color texture %d does not exist", ErrInvalidInput, in.Color)
	case !p.dev.IsTexture(uint32(in.Depth)):
		return fmt.Errorf("%w: depth texture %d does not exist", ErrInvalidInput, in.Depth)
	}
	return nil
}

// MeasureLuminance returns the average luminance of a texture.
func (p *Pipeline) MeasureLuminance(tex uint32) (float32, error) {
	return p.meter.Measure(tex)
}

// Resize recreates every render target for a new output size.
func (p *Pipeline) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("pipeline size %dx%d must be positive", width, height)
	}
	if width == p.width && height == p.height {
		return nil
	}
	p.width, p.height = width, height
	if err := p.targets.resize(width, height); err != nil {
		return err
	}
	if err := p.meter.Resize(width, height); err != nil {
		return err
	}
	p.log.Debug("postfx", "pipeline resized", map[string]interface{}{"width": width, "height": height})
	return nil
}

// Render runs the chain on in and writes the result into the framebuffer
// out (0 is the default framebuffer).
func (p *Pipeline) Render(exposure float32, in Input, out uint32, snap Snapshot) error {
	if err := p.Validate(in); err != nil {
		return err
	}
	s := &p.settings

	p.lensDistortion(uint32(in.Color), uint32(in.Depth))
	p.blit(colorOf(p.targets.lens), p.targets.scene[0], exposure)

	idx := 0
	if s.Bloom.Enabled {
		p.bloom(idx, 1-idx)
		idx = 1 - idx
	}
	if s.DoF.Enabled {
		p.depthOfField(idx, 1-idx, snap)
		idx = 1 - idx
	}

	p.dev.BindFramebuffer(gpu.FramebufferBoth, out)
	p.dev.Viewport(0, 0, p.width, p.height)
	if s.Tonemap.Enabled {
		p.tonemap(colorOf(p.targets.scene[idx]), snap)
	} else {
		p.drawBlit(colorOf(p.targets.scene[idx]), 1)
	}
	return nil
}

func (p *Pipeline) lensDistortion(color, depth uint32) {
	p.targets.lens.Bind()
	p.dev.BindTexture(0, color)
	p.dev.BindTexture(1, depth)

	prog := p.programs[progLensDistortion]
	prog.Use()
	prog.SetInt("uColor", 0)
	prog.SetInt("uDepth", 1)
	prog.SetFloat("uK", p.settings.Lens.Distortion)
	prog.SetFloat("uScale", p.settings.Lens.Scale)
	prog.SetFloat("uDispersion", p.settings.Lens.Dispersion)
	p.dev.DrawFullscreen()
}

func (p *Pipeline) blit(src *gpu.RenderTarget, dst *gpu.FrameBuffer, exposure float32) {
	dst.Bind()
	p.drawBlit(src, exposure)
}

func (p *Pipeline) drawBlit(src *gpu.RenderTarget, exposure float32) {
	src.Bind(0)
	prog := p.programs[progBlit]
	prog.Use()
	prog.SetInt("uTex", 0)
	prog.SetFloat("uExposure", exposure)
	p.dev.DrawFullscreen()
}

func (p *Pipeline) bloom(src, dst int) {
	t := p.targets
	b := &p.settings.Bloom
	base := colorOf(t.scene[src])

	// bright pass
	t.bright.Bind()
	base.Bind(0)
	prog := p.programs[progBrightPass]
	prog.Use()
	prog.SetInt("uTex", 0)
	prog.SetFloat("uThreshold", b.Threshold)
	prog.SetFloat("uFlareThreshold", b.Threshold*flareThresholdFactor)
	p.dev.DrawFullscreen()

	// separable blur per level, each level reading the previous one
	blur := p.programs[p.blur.program()]
	screen := [2]int{p.width, p.height}
	input := t.bright.Target(gpu.ColorAttachment0)
	for i := 0; i < BloomLevels; i++ {
		lw, lh := t.blurH[i].Size()
		level := [2]int{lw, lh}

		t.blurH[i].Bind()
		input.Bind(0)
		blur.Use()
		blur.SetInt("uTex", 0)
		p.blur.setUniforms(blur, b.Spreads[i], blurHorizontal, level, screen)
		p.dev.DrawFullscreen()

		t.blurV[i].Bind()
		colorOf(t.blurH[i]).Bind(0)
		p.blur.setUniforms(blur, b.Spreads[i], blurVertical, level, screen)
		p.dev.DrawFullscreen()

		input = colorOf(t.blurV[i])
	}

	// weighted sum of the levels
	t.bloom.Bind()
	units := make([]int32, BloomLevels)
	for i := 0; i < BloomLevels; i++ {
		colorOf(t.blurV[i]).Bind(i)
		units[i] = int32(i)
	}
	prog = p.programs[progBloomCompose]
	prog.Use()
	prog.SetIntArray("uLevels", units)
	prog.SetFloatArray("uStrengths", b.Strengths[:])
	prog.SetFloat("uIntensity", b.Intensity)
	p.dev.DrawFullscreen()

	flareStrength := float32(0)
	if b.LensFlare {
		t.flare.Bind()
		t.bright.Target(gpu.ColorAttachment(1)).Bind(0)
		prog = p.programs[progLensFlare]
		prog.Use()
		prog.SetInt("uTex", 0)
		prog.SetFloat("uHaloWidth", haloWidth)
		prog.SetVec2("uScreenSize", mgl32.Vec2{float32(p.width), float32(p.height)})
		p.dev.DrawFullscreen()
		flareStrength = b.Intensity
	}

	// bloom + flare + base into the other scene buffer
	t.scene[dst].Bind()
	colorOf(t.bloom).Bind(0)
	colorOf(t.flare).Bind(1)
	base.Bind(2)
	hasDirt := b.DirtTexture >= 0
	if hasDirt {
		p.dev.BindTexture(3, uint32(b.DirtTexture))
	}
	prog = p.programs[progBloomFinal]
	prog.Use()
	prog.SetInt("uBloom", 0)
	prog.SetInt("uFlare", 1)
	prog.SetInt("uBase", 2)
	prog.SetInt("uDirt", 3)
	prog.SetBool("uHasDirt", hasDirt)
	prog.SetFloat("uFlareStrength", flareStrength)
	p.dev.DrawFullscreen()
}

func (p *Pipeline) depthOfField(src, dst int, snap Snapshot) {
	d := &p.settings.DoF

	p.targets.scene[dst].Bind()
	colorOf(p.targets.scene[src]).Bind(0)
	p.targets.lens.Target(gpu.ColorAttachment(1)).Bind(1)

	prog := p.programs[progDoF]
	prog.Use()
	prog.SetInt("uColor", 0)
	prog.SetInt("uDepth", 1)
	prog.SetBool("uShowFocus", d.ShowFocus)
	prog.SetBool("uVignetting", d.Vignetting)
	prog.SetBool("uAutofocus", d.Autofocus)
	prog.SetBool("uPentagon", d.Pentagon)
	prog.SetBool("uDepthBlur", d.DepthBlur)
	prog.SetFloat("uFringe", d.Aberration)
	prog.SetFloat("uFocalDepth", d.FocalDistance)
	prog.SetFloat("uMaxBlur", d.MaxBlur)
	prog.SetFloat("uFocalLength", snap.FocalLength)
	prog.SetFloat("uFStop", snap.Aperture)
	prog.SetFloat("uCoC", snap.CoC)
	prog.SetVec2("uScreenSize", mgl32.Vec2{float32(p.width), float32(p.height)})
	prog.SetVec2("uClips", mgl32.Vec2{snap.ClipNear, snap.ClipFar})
	p.dev.DrawFullscreen()
}

func (p *Pipeline) tonemap(src *gpu.RenderTarget, snap Snapshot) {
	p.grainTimer += snap.DeltaTime * grainTimeScale
	g := &p.settings.Grain

	src.Bind(0)
	prog := p.programs[progTonemap]
	prog.Use()
	prog.SetInt("uHDR", 0)
	prog.SetBool("uTonemap", true)
	prog.SetInt("uMethod", int32(p.settings.Tonemap.Method))
	prog.SetBool("uGrain", g.Enabled)
	prog.SetFloat("uGrainAmount", GrainAmount(snap.ISO, snap.MaxISO, g.MinNoise, g.MaxNoise))
	prog.SetFloat("uTimer", p.grainTimer)
	prog.SetVec2("uScreenSize", mgl32.Vec2{float32(p.width), float32(p.height)})
	p.dev.DrawFullscreen()
}

// Destroy releases every program and render target.
func (p *Pipeline) Destroy() {
	for name, prog := range p.programs {
		prog.Delete()
		delete(p.programs, name)
	}
	if p.targets != nil {
		p.targets.destroy()
		p.targets = nil
	}
	if p.meter != nil {
		p.meter.Destroy()
		p.meter = nil
	}
}
