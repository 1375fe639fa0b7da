package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/normanking/physicam/internal/camera"
	"github.com/normanking/physicam/internal/exposure"
	"github.com/normanking/physicam/internal/logging"
	"github.com/normanking/physicam/internal/postfx"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks every value that cannot be clamped at runtime.
func (c *Config) Validate() error {
	if _, err := c.Camera.mode(); err != nil {
		return invalid("camera.mode: %v", err)
	}
	if _, err := exposure.ParseSensorPreset(c.Camera.Sensor); err != nil {
		return invalid("camera.sensor: %v", err)
	}
	if c.Camera.FocalLength <= 0 {
		return invalid("camera.focal_length must be positive, got %g", c.Camera.FocalLength)
	}
	if c.Camera.ClipNear <= 0 || c.Camera.ClipFar <= c.Camera.ClipNear {
		return invalid("camera clip planes %g..%g", c.Camera.ClipNear, c.Camera.ClipFar)
	}
	if err := c.Camera.Bounds().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	b := c.PostFX.Bloom
	if _, err := postfx.ParseBlurMode(b.BlurMode); err != nil {
		return invalid("postfx.bloom.blur_mode: %v", err)
	}
	if n := len(b.Spreads); n != 0 && n != postfx.BloomLevels {
		return invalid("postfx.bloom.spreads needs %d values, got %d", postfx.BloomLevels, n)
	}
	if n := len(b.Strengths); n != 0 && n != postfx.BloomLevels {
		return invalid("postfx.bloom.strengths needs %d values, got %d", postfx.BloomLevels, n)
	}
	if _, err := postfx.ParseTonemapMethod(c.PostFX.Tonemap.Method); err != nil {
		return invalid("postfx.tonemap.method: %v", err)
	}
	if c.PostFX.LensScale <= 0 {
		return invalid("postfx.lens_scale must be positive, got %g", c.PostFX.LensScale)
	}
	if g := c.PostFX.Grain; g.MinNoise < 0 || g.MaxNoise < g.MinNoise {
		return invalid("postfx.grain noise range %g..%g", g.MinNoise, g.MaxNoise)
	}

	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return invalid("window size %dx%d", c.Window.Width, c.Window.Height)
	}
	switch logging.LogLevel(strings.ToLower(c.Logging.Level)) {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return invalid("logging.level %q", c.Logging.Level)
	}
	return nil
}

func (c CameraConfig) mode() (exposure.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(c.Mode)) {
	case "auto", "":
		return exposure.Auto, nil
	case "manual":
		return exposure.Manual, nil
	}
	return exposure.Auto, fmt.Errorf("unknown mode %q", c.Mode)
}

// Bounds returns the configured exposure limits.
func (c CameraConfig) Bounds() exposure.Bounds {
	return exposure.Bounds{ISO: c.ISORange, Aperture: c.ApertureRange, Shutter: c.ShutterRange}
}

// ToExposureSettings converts the camera section.
func (c *Config) ToExposureSettings() (exposure.Settings, error) {
	sensor, err := exposure.ParseSensorPreset(c.Camera.Sensor)
	if err != nil {
		return exposure.Settings{}, err
	}
	return exposure.Settings{
		ISO:          c.Camera.ISO,
		Aperture:     c.Camera.Aperture,
		Shutter:      c.Camera.Shutter,
		FocalLength:  c.Camera.FocalLength,
		Sensor:       sensor,
		Compensation: c.Camera.Compensation,
	}, nil
}

// ToCameraConfig converts the camera section for a width x height output.
func (c *Config) ToCameraConfig(width, height int) (camera.Config, error) {
	s, err := c.ToExposureSettings()
	if err != nil {
		return camera.Config{}, err
	}
	mode, err := c.Camera.mode()
	if err != nil {
		return camera.Config{}, err
	}
	return camera.Config{
		Settings: s,
		Bounds:   c.Camera.Bounds(),
		Mode:     mode,
		ClipNear: c.Camera.ClipNear,
		ClipFar:  c.Camera.ClipFar,
		Width:    width,
		Height:   height,
	}, nil
}

// ToPostFXSettings converts the postfx section. The dirt texture is a file
// path, so DirtTexture stays -1 until the caller uploads it.
func (c *Config) ToPostFXSettings() (postfx.Settings, error) {
	p := c.PostFX
	blur, err := postfx.ParseBlurMode(p.Bloom.BlurMode)
	if err != nil {
		return postfx.Settings{}, err
	}
	method, err := postfx.ParseTonemapMethod(p.Tonemap.Method)
	if err != nil {
		return postfx.Settings{}, err
	}

	s := postfx.DefaultSettings()
	s.Lens = postfx.LensSettings{
		Distortion: p.LensDistortion,
		Dispersion: p.LensDispersion,
		Scale:      p.LensScale,
	}

	s.Bloom.Enabled = p.Bloom.Enabled
	s.Bloom.Threshold = p.Bloom.Threshold
	s.Bloom.Intensity = p.Bloom.Intensity
	s.Bloom.LensFlare = p.Bloom.LensFlare
	s.Bloom.Blur = blur
	s.Bloom.DirtTexture = -1
	s.Bloom.Spreads, s.Bloom.Strengths = postfx.DefaultBloomLevels(blur)
	copy(s.Bloom.Spreads[:], p.Bloom.Spreads)
	copy(s.Bloom.Strengths[:], p.Bloom.Strengths)

	s.DoF = postfx.DoFSettings{
		Enabled:       p.DoF.Enabled,
		Aberration:    p.DoF.Aberration,
		FocalDistance: p.DoF.FocalDistance,
		Autofocus:     p.DoF.Autofocus,
		Vignetting:    p.DoF.Vignetting,
		ShowFocus:     p.DoF.ShowFocus,
		MaxBlur:       p.DoF.MaxBlur,
		Pentagon:      p.DoF.Pentagon,
		DepthBlur:     p.DoF.DepthBlur,
	}
	s.Tonemap = postfx.TonemapSettings{Enabled: p.Tonemap.Enabled, Method: method}
	s.Grain = postfx.GrainSettings{
		Enabled:  p.Grain.Enabled,
		MinNoise: p.Grain.MinNoise,
		MaxNoise: p.Grain.MaxNoise,
	}
	return s, nil
}

// ToLoggingConfig converts the logging section.
func (c *Config) ToLoggingConfig() *logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(strings.ToLower(c.Logging.Level))
	cfg.LogDir = c.Logging.Dir
	cfg.Console = c.Logging.Console
	return cfg
}
