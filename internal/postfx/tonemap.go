package postfx

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const displayGamma = 2.2

// Uncharted 2 filmic curve parameters.
const (
	u2A     = 0.15
	u2B     = 0.50
	u2C     = 0.10
	u2D     = 0.20
	u2E     = 0.02
	u2F     = 0.30
	u2White = 11.2
	u2Bias  = 2.0
)

// Apply maps an HDR color to display range with the method's curve.
func (m TonemapMethod) Apply(c mgl32.Vec3) mgl32.Vec3 {
	switch m {
	case Reinhard:
		return ReinhardCurve(c)
	case Uncharted2:
		return Uncharted2Curve(c)
	default:
		return FilmicCurve(c)
	}
}

// ReinhardCurve is x/(x+1) followed by gamma correction.
func ReinhardCurve(c mgl32.Vec3) mgl32.Vec3 {
	return mapVec3(c, func(x float32) float32 {
		return math32.Pow(x/(x+1), 1/displayGamma)
	})
}

// FilmicCurve is the Hejl-Burgess-Dawson fit; gamma is baked in.
func FilmicCurve(c mgl32.Vec3) mgl32.Vec3 {
	return mapVec3(c, func(x float32) float32 {
		x = math32.Max(0, x-0.004)
		return (x * (6.2*x + 0.5)) / (x*(6.2*x+1.7) + 0.06)
	})
}

func uncharted2(x float32) float32 {
	return ((x*(u2A*x+u2C*u2B) + u2D*u2E) / (x*(u2A*x+u2B) + u2D*u2F)) - u2E/u2F
}

// Uncharted2Curve applies the curve with an exposure bias of 2, normalized
// to the white point, then gamma correction.
func Uncharted2Curve(c mgl32.Vec3) mgl32.Vec3 {
	white := 1 / uncharted2(u2White)
	return mapVec3(c, func(x float32) float32 {
		return math32.Pow(math32.Max(0, uncharted2(u2Bias*x)*white), 1/displayGamma)
	})
}

// GrainAmount scales film grain linearly with ISO between minNoise at ISO 1
// and maxNoise at maxISO.
func GrainAmount(iso, maxISO, minNoise, maxNoise float32) float32 {
	if maxISO <= 1 {
		return minNoise
	}
	return minNoise + ((maxNoise-minNoise)/(maxISO-1))*(iso-1)
}

func mapVec3(c mgl32.Vec3, f func(float32) float32) mgl32.Vec3 {
	return mgl32.Vec3{f(c[0]), f(c[1]), f(c[2])}
}
