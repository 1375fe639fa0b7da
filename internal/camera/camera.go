// Package camera is the physically based camera: it owns the exposure
// model, meters the rendered scene and drives the post-processing chain
// once per frame.
package camera

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/normanking/physicam/internal/exposure"
	"github.com/normanking/physicam/internal/logging"
	"github.com/normanking/physicam/internal/metrics"
	"github.com/normanking/physicam/internal/postfx"
)

const component = "camera"

// ErrInvalidInput is returned when a frame is skipped because the input
// descriptor does not name live device objects.
var ErrInvalidInput = postfx.ErrInvalidInput

// Processor is the effect chain a camera renders through. *postfx.Pipeline
// implements it.
type Processor interface {
	Render(exposure float32, in postfx.Input, out uint32, snap postfx.Snapshot) error
	Resize(width, height int) error
	MeasureLuminance(tex uint32) (float32, error)
	Validate(in postfx.Input) error
}

// Config is the initial camera state.
type Config struct {
	Settings exposure.Settings
	Bounds   exposure.Bounds
	Mode     exposure.Mode
	ClipNear float32
	ClipFar  float32
	Width    int
	Height   int
}

// DefaultConfig returns an auto exposing 36mm full frame camera with clip
// planes at 0.5 and 1000.
func DefaultConfig() Config {
	return Config{
		Settings: exposure.DefaultSettings(),
		Bounds:   exposure.DefaultBounds(),
		Mode:     exposure.Auto,
		ClipNear: 0.5,
		ClipFar:  1000,
		Width:    1280,
		Height:   720,
	}
}

// Camera couples an exposure model with a post-processing chain. It must be
// used from the render thread.
type Camera struct {
	model *exposure.Model
	proc  Processor
	log   *logging.Logger
	stats *metrics.Metrics

	transform Transform
	clipNear  float32
	clipFar   float32
	width     int
	height    int
	aspect    float32

	deltaTime    float32 // seconds
	avgLuminance float32
	metered      bool
	lastExposure float32
}

// New creates a camera rendering through proc.
func New(cfg Config, proc Processor, log *logging.Logger) (*Camera, error) {
	if proc == nil {
		return nil, fmt.Errorf("camera needs a processor")
	}
	if log == nil {
		log = logging.NewNop()
	}
	if cfg.ClipNear <= 0 || cfg.ClipFar <= cfg.ClipNear {
		return nil, fmt.Errorf("invalid clip planes %g..%g", cfg.ClipNear, cfg.ClipFar)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid screen size %dx%d", cfg.Width, cfg.Height)
	}

	model, err := exposure.NewModel(cfg.Settings, cfg.Bounds)
	if err != nil {
		return nil, err
	}
	model.SetMode(cfg.Mode)

	c := &Camera{
		model:     model,
		proc:      proc,
		log:       log,
		transform: Identity(),
		clipNear:  cfg.ClipNear,
		clipFar:   cfg.ClipFar,
		width:     cfg.Width,
		height:    cfg.Height,
		aspect:    float32(cfg.Width) / float32(cfg.Height),
	}
	c.lastExposure = model.StandardOutputBasedExposure(exposure.DefaultMiddleGrey)
	return c, nil
}

// SetMetrics attaches collectors updated on every frame. Nil detaches.
func (c *Camera) SetMetrics(m *metrics.Metrics) { c.stats = m }

// Model exposes the exposure model.
func (c *Camera) Model() *exposure.Model { return c.model }

// Settings returns the current exposure settings.
func (c *Camera) Settings() exposure.Settings { return c.model.Settings() }

// Bounds returns the current exposure bounds.
func (c *Camera) Bounds() exposure.Bounds { return c.model.Bounds() }

// Mode reports whether exposure is manual or automatic.
func (c *Camera) Mode() exposure.Mode { return c.model.Mode() }

// SetMode switches between manual and automatic exposure.
func (c *Camera) SetMode(m exposure.Mode) { c.model.SetMode(m) }

// SetISO sets the sensitivity, clamped to the ISO bounds.
func (c *Camera) SetISO(v float32) { c.model.SetISO(v) }

// SetAperture sets the f-number, clamped to the aperture bounds.
func (c *Camera) SetAperture(v float32) { c.model.SetAperture(v) }

// SetShutter sets the shutter time in seconds, clamped to the shutter bounds.
func (c *Camera) SetShutter(v float32) { c.model.SetShutter(v) }

// SetFocalLength sets the focal length in millimetres.
func (c *Camera) SetFocalLength(v float32) { c.model.SetFocalLength(v) }

// SetSensor selects the sensor format.
func (c *Camera) SetSensor(p exposure.SensorPreset) { c.model.SetSensor(p) }

// SetCompensation offsets the auto exposure target by ev stops.
func (c *Camera) SetCompensation(ev float32) { c.model.SetCompensation(ev) }

// SetMinISO sets the lowest ISO auto exposure may pick.
func (c *Camera) SetMinISO(v float32) error { return c.model.SetMinISO(v) }

// SetMaxISO sets the highest ISO auto exposure may pick.
func (c *Camera) SetMaxISO(v float32) error { return c.model.SetMaxISO(v) }

// SetMinAperture sets the widest f-number.
func (c *Camera) SetMinAperture(v float32) error { return c.model.SetMinAperture(v) }

// SetMaxAperture sets the narrowest f-number.
func (c *Camera) SetMaxAperture(v float32) error { return c.model.SetMaxAperture(v) }

// SetFastestShutter sets the shortest shutter time.
func (c *Camera) SetFastestShutter(v float32) error { return c.model.SetFastestShutter(v) }

// SetSlowestShutter sets the longest shutter time.
func (c *Camera) SetSlowestShutter(v float32) error { return c.model.SetSlowestShutter(v) }

// ClipPlanes returns the near and far clip distances.
func (c *Camera) ClipPlanes() (near, far float32) { return c.clipNear, c.clipFar }

// SetClipPlanes sets the clip distances. far must exceed near > 0.
func (c *Camera) SetClipPlanes(near, far float32) error {
	if near <= 0 || far <= near {
		return fmt.Errorf("invalid clip planes %g..%g", near, far)
	}
	c.clipNear, c.clipFar = near, far
	return nil
}

// Transform returns the camera placement.
func (c *Camera) Transform() Transform { return c.transform }

// SetTransform moves the camera.
func (c *Camera) SetTransform(t Transform) { c.transform = t }

// ScreenSize returns the output size in pixels.
func (c *Camera) ScreenSize() (int, int) { return c.width, c.height }

// AspectRatio is width/height of the output.
func (c *Camera) AspectRatio() float32 { return c.aspect }

// SetScreenSize updates the aspect ratio and resizes the effect targets.
func (c *Camera) SetScreenSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid screen size %dx%d", width, height)
	}
	if err := c.proc.Resize(width, height); err != nil {
		return err
	}
	c.width, c.height = width, height
	c.aspect = float32(width) / float32(height)
	c.log.Debug(component, "Screen resized", map[string]interface{}{
		"width":  width,
		"height": height,
	})
	return nil
}

// Update stores the frame delta time in seconds.
func (c *Camera) Update(deltaTime float32) { c.deltaTime = deltaTime }

// FOV is the vertical field of view in degrees for the current lens and sensor.
func (c *Camera) FOV() float32 {
	return c.model.ComputeFOV(c.model.Settings().FocalLength)
}

// ProjectionMatrix is the perspective projection for the current lens.
func (c *Camera) ProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FOV()), c.aspect, c.clipNear, c.clipFar)
}

// ViewMatrix maps the world into the camera's view space.
func (c *Camera) ViewMatrix() mgl32.Mat4 {
	t := c.transform
	t.Kind = ViewSpace
	return Matrix(t)
}

// AverageLuminance is the smoothed luminance of the last metered frame.
func (c *Camera) AverageLuminance() float32 { return c.avgLuminance }

// Exposure is the factor applied to the last rendered frame.
func (c *Camera) Exposure() float32 { return c.lastExposure }

// Snapshot captures the state the effect chain needs for one frame.
func (c *Camera) Snapshot() postfx.Snapshot {
	s := c.model.Settings()
	return postfx.Snapshot{
		Aperture:    s.Aperture,
		ISO:         s.ISO,
		MaxISO:      c.model.Bounds().ISO.Max,
		Shutter:     s.Shutter,
		FocalLength: s.FocalLength,
		CoC:         s.Sensor.Sensor().CoC,
		ClipNear:    c.clipNear,
		ClipFar:     c.clipFar,
		DeltaTime:   c.deltaTime,
	}
}

// RenderPostProcessing meters in (auto mode only), updates the exposure and
// renders in through the effect chain into framebuffer out. An invalid
// descriptor is logged and the frame is skipped without touching out.
func (c *Camera) RenderPostProcessing(in postfx.Input, out uint32) error {
	start := time.Now()

	if err := c.proc.Validate(in); err != nil {
		c.log.Error(component, "Skipping frame", err, map[string]interface{}{
			"framebuffer": in.Framebuffer,
			"color":       in.Color,
			"depth":       in.Depth,
		})
		if c.stats != nil {
			c.stats.SkipFrame("invalid_input")
		}
		return err
	}

	if c.model.Mode() == exposure.Auto {
		lum, err := c.proc.MeasureLuminance(uint32(in.Color))
		if err != nil {
			return fmt.Errorf("meter: %w", err)
		}
		c.avgLuminance = c.smooth(lum)
		c.model.Update(c.avgLuminance)
	}

	c.lastExposure = c.model.StandardOutputBasedExposure(exposure.DefaultMiddleGrey)
	if err := c.proc.Render(c.lastExposure, in, out, c.Snapshot()); err != nil {
		return err
	}

	if c.stats != nil {
		s := c.model.Settings()
		c.stats.SetExposure(c.model.ComputeCurrentEV(), s.ISO, s.Aperture, s.Shutter, c.avgLuminance)
		c.stats.ObserveFrame(time.Since(start))
	}
	return nil
}

// smooth eases the running average toward lum at a rate of two per second.
// The first measurement is taken as is.
func (c *Camera) smooth(lum float32) float32 {
	if !c.metered {
		c.metered = true
		return lum
	}
	t := mgl32.Clamp(2*c.deltaTime, 0, 1)
	return c.avgLuminance + (lum-c.avgLuminance)*t
}
