// Package exposure implements the photographic exposure model: EV from
// ISO, aperture and shutter speed, program auto exposure driven by the
// metered scene luminance, and the exposure factor applied to HDR color.
//
// All quantities follow the usual photographic conventions: aperture is an
// f-number, shutter speed is in seconds, focal length and sensor sizes are
// in millimetres.
package exposure

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Light meter calibration constant K.
const meterCalibration = 12.5

// DefaultMiddleGrey is the scene reflectance mapped to the middle of the output range.
const DefaultMiddleGrey = 0.18

// Mode selects who owns the exposure controls.
type Mode int

const (
	// Manual keeps the settings the caller provides.
	Manual Mode = iota
	// Auto recomputes ISO, aperture and shutter from metered luminance every frame.
	Auto
)

func (m Mode) String() string {
	switch m {
	case Manual:
		return "manual"
	case Auto:
		return "auto"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Settings are the user facing camera controls.
type Settings struct {
	ISO         float32
	Aperture    float32
	Shutter     float32
	FocalLength float32
	Sensor      SensorPreset
	// Compensation is added to the metered target EV in auto mode.
	Compensation float32
}

// DefaultSettings returns a 36mm lens on a 35mm sensor at ISO 100, f/7.5, 1/400s.
func DefaultSettings() Settings {
	return Settings{
		ISO:         100,
		Aperture:    7.5,
		Shutter:     0.0025,
		FocalLength: 36,
		Sensor:      FullFrame,
	}
}

// Model holds camera settings, their bounds and the exposure mode.
// It is not safe for concurrent use.
type Model struct {
	settings Settings
	bounds   Bounds
	mode     Mode
}

// NewModel creates a model in auto mode. Settings are clamped to bounds.
func NewModel(s Settings, b Bounds) (*Model, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if s.FocalLength <= 0 {
		return nil, fmt.Errorf("focal length must be positive, got %g", s.FocalLength)
	}
	m := &Model{settings: s, bounds: b, mode: Auto}
	m.settings.ISO = b.ISO.Clamp(s.ISO)
	m.settings.Aperture = b.Aperture.Clamp(s.Aperture)
	m.settings.Shutter = b.Shutter.Clamp(s.Shutter)
	return m, nil
}

// Settings returns a copy of the current settings.
func (m *Model) Settings() Settings { return m.settings }

// Bounds returns a copy of the current bounds.
func (m *Model) Bounds() Bounds { return m.bounds }

// Mode returns the current exposure mode.
func (m *Model) Mode() Mode { return m.mode }

// SetMode switches between manual and auto exposure.
func (m *Model) SetMode(mode Mode) { m.mode = mode }

// ComputeCurrentEV returns EV = log2(N²·100 / (t·ISO)) for the current settings.
func (m *Model) ComputeCurrentEV() float32 {
	s := m.settings
	return math32.Log2((s.Aperture * s.Aperture * 100) / (s.Shutter * s.ISO))
}

// ComputeTargetEV returns the EV a reflected light meter would choose for
// the given average scene luminance.
func ComputeTargetEV(avgLuminance float32) float32 {
	return math32.Log2(avgLuminance * 100 / meterCalibration)
}

// ComputeISO solves the EV equation for ISO.
func ComputeISO(aperture, shutter, ev float32) float32 {
	return (aperture * aperture * 100) / (shutter * math32.Exp2(ev))
}

// ApplyProgramAuto picks settings for targetEV. Starting from f/4 and a
// shutter of 1/focal length it solves for ISO, then moves half of the
// remaining EV error into the aperture and the rest into the shutter.
// Each control is clamped to its bounds after its step.
func (m *Model) ApplyProgramAuto(targetEV float32) {
	s := &m.settings
	b := m.bounds

	s.Aperture = 4.0
	s.Shutter = 1.0 / s.FocalLength

	s.ISO = b.ISO.Clamp(ComputeISO(s.Aperture, s.Shutter, targetEV))

	evDiff := targetEV - m.ComputeCurrentEV()
	s.Aperture = b.Aperture.Clamp(s.Aperture * math32.Pow(math32.Sqrt(2), evDiff*0.5))

	evDiff = targetEV - m.ComputeCurrentEV()
	s.Shutter = b.Shutter.Clamp(s.Shutter * math32.Pow(2, -evDiff))
}

// Update runs one auto exposure step for the metered luminance. It does
// nothing in manual mode.
func (m *Model) Update(avgLuminance float32) {
	if m.mode != Auto {
		return
	}
	m.ApplyProgramAuto(ComputeTargetEV(avgLuminance) + m.settings.Compensation)
}

// StandardOutputBasedExposure returns the factor that maps middleGrey
// reflectance to the standard output sensitivity (ISO 12232 SOS).
func (m *Model) StandardOutputBasedExposure(middleGrey float32) float32 {
	s := m.settings
	avg := (1000.0 / 65.0) * (s.Aperture * s.Aperture) / (s.ISO * s.Shutter)
	return middleGrey / avg
}

// SaturationBasedExposure returns 1/Lmax using the saturation based
// sensitivity (ISO 12232 SBS).
func (m *Model) SaturationBasedExposure() float32 {
	s := m.settings
	lmax := (7800.0 / 65.0) * (s.Aperture * s.Aperture) / (s.ISO * s.Shutter)
	return 1.0 / lmax
}

// ComputeFOV returns the vertical field of view in degrees for focalLength
// on the current sensor.
func (m *Model) ComputeFOV(focalLength float32) float32 {
	h := m.settings.Sensor.Sensor().Height
	return 57.3 * 2 * math32.Atan(h/(2*focalLength))
}

// SetISO sets the ISO, clamped to its bounds.
func (m *Model) SetISO(v float32) { m.settings.ISO = m.bounds.ISO.Clamp(v) }

// SetAperture sets the f-number, clamped to its bounds.
func (m *Model) SetAperture(v float32) { m.settings.Aperture = m.bounds.Aperture.Clamp(v) }

// SetShutter sets the shutter speed in seconds, clamped to its bounds.
func (m *Model) SetShutter(v float32) { m.settings.Shutter = m.bounds.Shutter.Clamp(v) }

// SetFocalLength sets the focal length in mm. Non-positive values are ignored.
func (m *Model) SetFocalLength(v float32) {
	if v > 0 {
		m.settings.FocalLength = v
	}
}

// SetSensor selects the sensor preset.
func (m *Model) SetSensor(p SensorPreset) { m.settings.Sensor = p }

// SetCompensation sets the exposure compensation in EV.
func (m *Model) SetCompensation(ev float32) { m.settings.Compensation = ev }

// SetMinISO moves the lower ISO bound. The current ISO is re-clamped.
func (m *Model) SetMinISO(v float32) error {
	return m.setBound(setMin(&m.bounds.ISO, HardwareLimits.ISO, "iso", v))
}

// SetMaxISO moves the upper ISO bound.
func (m *Model) SetMaxISO(v float32) error {
	return m.setBound(setMax(&m.bounds.ISO, HardwareLimits.ISO, "iso", v))
}

// SetMinAperture moves the widest allowed f-number.
func (m *Model) SetMinAperture(v float32) error {
	return m.setBound(setMin(&m.bounds.Aperture, HardwareLimits.Aperture, "aperture", v))
}

// SetMaxAperture moves the narrowest allowed f-number.
func (m *Model) SetMaxAperture(v float32) error {
	return m.setBound(setMax(&m.bounds.Aperture, HardwareLimits.Aperture, "aperture", v))
}

// SetFastestShutter moves the lower shutter bound.
func (m *Model) SetFastestShutter(v float32) error {
	return m.setBound(setMin(&m.bounds.Shutter, HardwareLimits.Shutter, "shutter", v))
}

// SetSlowestShutter moves the upper shutter bound.
func (m *Model) SetSlowestShutter(v float32) error {
	return m.setBound(setMax(&m.bounds.Shutter, HardwareLimits.Shutter, "shutter", v))
}

func (m *Model) setBound(err error) error {
	if err != nil {
		return err
	}
	m.SetISO(m.settings.ISO)
	m.SetAperture(m.settings.Aperture)
	m.SetShutter(m.settings.Shutter)
	return nil
}
