package exposure

import (
	"errors"
	"fmt"
)

// ErrInvalidBounds is returned for empty, inverted or non-positive ranges.
var ErrInvalidBounds = errors.New("invalid exposure bounds")

// Range is a closed interval [Min, Max].
type Range struct {
	Min float32 `mapstructure:"min" yaml:"min"`
	Max float32 `mapstructure:"max" yaml:"max"`
}

// Clamp limits v to the range.
func (r Range) Clamp(v float32) float32 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float32) bool {
	return v >= r.Min && v <= r.Max
}

// Bounds holds the adjustable limits of the three exposure controls.
// Shutter.Min is the fastest speed and Shutter.Max the slowest, in seconds.
type Bounds struct {
	ISO      Range `mapstructure:"iso" yaml:"iso"`
	Aperture Range `mapstructure:"aperture" yaml:"aperture"`
	Shutter  Range `mapstructure:"shutter" yaml:"shutter"`
}

// DefaultBounds returns the limits of a typical consumer camera.
func DefaultBounds() Bounds {
	return Bounds{
		ISO:      Range{Min: 100, Max: 6400},
		Aperture: Range{Min: 1.8, Max: 22},
		Shutter:  Range{Min: 1.0 / 4000, Max: 1.0 / 30},
	}
}

// HardwareLimits are the absolute limits any bound may be set to.
var HardwareLimits = Bounds{
	ISO:      Range{Min: 50, Max: 204800},
	Aperture: Range{Min: 0.7, Max: 64},
	Shutter:  Range{Min: 1.0 / 8000, Max: 30},
}

// Validate checks that every range is positive and ordered.
func (b Bounds) Validate() error {
	check := func(name string, r Range) error {
		if r.Min <= 0 || r.Max <= 0 {
			return fmt.Errorf("%w: %s range [%g, %g] must be positive", ErrInvalidBounds, name, r.Min, r.Max)
		}
		if r.Min > r.Max {
			return fmt.Errorf("%w: %s min %g above max %g", ErrInvalidBounds, name, r.Min, r.Max)
		}
		return nil
	}
	if err := check("iso", b.ISO); err != nil {
		return err
	}
	if err := check("aperture", b.Aperture); err != nil {
		return err
	}
	return check("shutter", b.Shutter)
}

// setMin moves r.Min to v, clamped to the hardware limit. A value above
// the current maximum is rejected.
func setMin(r *Range, limit Range, name string, v float32) error {
	v = limit.Clamp(v)
	if v > r.Max {
		return fmt.Errorf("%w: %s min %g above max %g", ErrInvalidBounds, name, v, r.Max)
	}
	r.Min = v
	return nil
}

func setMax(r *Range, limit Range, name string, v float32) error {
	v = limit.Clamp(v)
	if v < r.Min {
		return fmt.Errorf("%w: %s max %g below min %g", ErrInvalidBounds, name, v, r.Min)
	}
	r.Max = v
	return nil
}
