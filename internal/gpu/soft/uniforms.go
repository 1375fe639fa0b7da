package soft

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/normanking/physicam/internal/gpu"
)

// Uniforms gives a kernel read access to the uniforms of the current program
// and to the textures bound to sampling units.
type Uniforms struct {
	dev  *Device
	prog *program
}

func (u *Uniforms) floats(name string) []float32 {
	loc, ok := u.prog.locs[name]
	if !ok {
		return nil
	}
	return u.prog.floats[loc]
}

func (u *Uniforms) ints(name string) []int32 {
	loc, ok := u.prog.locs[name]
	if !ok {
		return nil
	}
	return u.prog.ints[loc]
}

// Float returns a float uniform, 0 when unset.
func (u *Uniforms) Float(name string) float32 {
	if v := u.floats(name); len(v) > 0 {
		return v[0]
	}
	return 0
}

// Floats returns a float array uniform padded to n elements.
func (u *Uniforms) Floats(name string, n int) []float32 {
	out := make([]float32, n)
	copy(out, u.floats(name))
	return out
}

// Vec2 returns a vec2 uniform.
func (u *Uniforms) Vec2(name string) mgl32.Vec2 {
	var v mgl32.Vec2
	copy(v[:], u.floats(name))
	return v
}

// Vec3 returns a vec3 uniform.
func (u *Uniforms) Vec3(name string) mgl32.Vec3 {
	var v mgl32.Vec3
	copy(v[:], u.floats(name))
	return v
}

// Int returns an int uniform, 0 when unset.
func (u *Uniforms) Int(name string) int32 {
	if v := u.ints(name); len(v) > 0 {
		return v[0]
	}
	return 0
}

// Bool returns a bool uniform.
func (u *Uniforms) Bool(name string) bool { return u.Int(name) != 0 }

// Texture returns a sampler for the texture on the unit the named sampler
// uniform points at.
func (u *Uniforms) Texture(name string) Sampler {
	return u.TextureAt(name, 0)
}

// TextureAt is Texture for element i of a sampler array.
func (u *Uniforms) TextureAt(name string, i int) Sampler {
	units := u.ints(name)
	unit := int32(i)
	if i < len(units) {
		unit = units[i]
	} else if len(units) > 0 {
		unit = units[0] + int32(i)
	}
	t, ok := u.dev.textures[u.dev.units[int(unit)]]
	if !ok {
		return Sampler{}
	}
	return Sampler{lv: &t.levels[0], nearest: t.sampler.MagFilter == gpu.FilterNearest}
}

// Sampler reads level 0 of a texture with clamp-to-edge wrapping. The zero
// Sampler behaves like an unbound unit and returns opaque black.
type Sampler struct {
	lv      *level
	nearest bool
}

// Bound reports whether a texture is attached.
func (s Sampler) Bound() bool { return s.lv != nil }

// Size returns the texture size.
func (s Sampler) Size() (int, int) {
	if s.lv == nil {
		return 0, 0
	}
	return s.lv.w, s.lv.h
}

func (s Sampler) texel(x, y int) mgl32.Vec4 {
	x = clampInt(x, 0, s.lv.w-1)
	y = clampInt(y, 0, s.lv.h-1)
	p := s.lv.data[(y*s.lv.w+x)*4:]
	return mgl32.Vec4{p[0], p[1], p[2], p[3]}
}

// Sample filters the texture at uv.
func (s Sampler) Sample(uv mgl32.Vec2) mgl32.Vec4 {
	if s.lv == nil {
		return mgl32.Vec4{0, 0, 0, 1}
	}
	tx := uv[0]*float32(s.lv.w) - 0.5
	ty := uv[1]*float32(s.lv.h) - 0.5
	if s.nearest {
		return s.texel(int(floor(tx+0.5)), int(floor(ty+0.5)))
	}
	x0, y0 := floor(tx), floor(ty)
	fx, fy := tx-x0, ty-y0
	ix, iy := int(x0), int(y0)

	a := lerp4(s.texel(ix, iy), s.texel(ix+1, iy), fx)
	b := lerp4(s.texel(ix, iy+1), s.texel(ix+1, iy+1), fx)
	return lerp4(a, b, fy)
}

func lerp4(a, b mgl32.Vec4, t float32) mgl32.Vec4 {
	return a.Add(b.Sub(a).Mul(t))
}

func floor(v float32) float32 {
	i := float32(int(v))
	if i > v {
		i--
	}
	return i
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
