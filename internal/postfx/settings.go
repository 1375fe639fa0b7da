package postfx

import (
	"fmt"
	"strings"
)

// BloomLevels is the number of blur levels in the bloom chain.
const BloomLevels = 5

// BlurMode selects the separable blur used by the bloom chain.
type BlurMode int

const (
	// BlurIncremental is a Gaussian whose tap count follows the radius.
	BlurIncremental BlurMode = iota
	// BlurNineTap is a fixed 9-tap Gaussian stretched by the radius.
	BlurNineTap
)

func (m BlurMode) String() string {
	switch m {
	case BlurIncremental:
		return "incremental"
	case BlurNineTap:
		return "ninetap"
	default:
		return fmt.Sprintf("BlurMode(%d)", int(m))
	}
}

// ParseBlurMode parses a blur mode name.
func ParseBlurMode(s string) (BlurMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "incremental", "gaussian":
		return BlurIncremental, nil
	case "ninetap", "9tap", "nine-tap":
		return BlurNineTap, nil
	}
	return 0, fmt.Errorf("unknown blur mode %q", s)
}

// TonemapMethod is the tone curve applied by the tonemapping stage.
type TonemapMethod int32

const (
	Reinhard TonemapMethod = iota
	Filmic
	Uncharted2
)

func (m TonemapMethod) String() string {
	switch m {
	case Reinhard:
		return "reinhard"
	case Filmic:
		return "filmic"
	case Uncharted2:
		return "uncharted2"
	default:
		return fmt.Sprintf("TonemapMethod(%d)", int32(m))
	}
}

// ParseTonemapMethod parses a tone curve name.
func ParseTonemapMethod(s string) (TonemapMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reinhard":
		return Reinhard, nil
	case "filmic":
		return Filmic, nil
	case "uncharted2", "uncharted":
		return Uncharted2, nil
	}
	return 0, fmt.Errorf("unknown tonemap method %q", s)
}

// LensSettings control the lens distortion stage, which always runs.
type LensSettings struct {
	Distortion float32 // radial k
	Dispersion float32
	Scale      float32
}

// BloomSettings control the bloom stage.
type BloomSettings struct {
	Enabled   bool
	Threshold float32
	Intensity float32
	Spreads   [BloomLevels]float32 // blur radius per level
	Strengths [BloomLevels]float32 // composite weight per level
	// DirtTexture is a texture id masking bloom and flare, negative for none.
	DirtTexture int32
	LensFlare   bool
	Blur        BlurMode
}

// DoFSettings control the depth of field stage.
type DoFSettings struct {
	Enabled       bool
	Aberration    float32 // chromatic fringe
	FocalDistance float32 // meters, when autofocus is off
	Autofocus     bool
	Vignetting    bool
	ShowFocus     bool
	MaxBlur       float32
	Pentagon      bool
	DepthBlur     bool
}

// TonemapSettings control the tone curve.
type TonemapSettings struct {
	Enabled bool
	Method  TonemapMethod
}

// GrainSettings control film grain, applied with tonemapping.
type GrainSettings struct {
	Enabled  bool
	MinNoise float32
	MaxNoise float32
}

// Settings is the runtime-mutable configuration of the pipeline. Changes
// take effect on the next Render, except Bloom.Blur which is fixed at New.
type Settings struct {
	Lens    LensSettings
	Bloom   BloomSettings
	DoF     DoFSettings
	Tonemap TonemapSettings
	Grain   GrainSettings
}

// DefaultBloomLevels returns the radii and weights tuned for a blur mode.
func DefaultBloomLevels(mode BlurMode) (spreads, strengths [BloomLevels]float32) {
	if mode == BlurNineTap {
		return [BloomLevels]float32{1, 4, 8, 16, 32}, [BloomLevels]float32{0.2, 0.3, 0.5, 0.6, 0.8}
	}
	return [BloomLevels]float32{16, 16, 24, 24, 32}, [BloomLevels]float32{0.75, 0.75, 1, 1, 1}
}

// DefaultSettings returns the default effect configuration.
func DefaultSettings() Settings {
	spreads, strengths := DefaultBloomLevels(BlurIncremental)
	return Settings{
		Lens: LensSettings{Distortion: 0.1, Dispersion: 0.01, Scale: 0.9},
		Bloom: BloomSettings{
			Enabled:     true,
			Threshold:   1,
			Intensity:   0.5,
			Spreads:     spreads,
			Strengths:   strengths,
			DirtTexture: -1,
			LensFlare:   true,
			Blur:        BlurIncremental,
		},
		DoF: DoFSettings{
			Enabled:       true,
			Aberration:    0.6,
			FocalDistance: 3,
			Autofocus:     true,
			Vignetting:    true,
			MaxBlur:       3,
		},
		Tonemap: TonemapSettings{Enabled: true, Method: Filmic},
		Grain:   GrainSettings{Enabled: true, MinNoise: 0.015, MaxNoise: 0.45},
	}
}
