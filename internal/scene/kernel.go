package scene

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/normanking/physicam/internal/gpu/soft"
)

const (
	sunIlluminance = 20000
	skyIlluminance = 2000
	lampRadiance   = 200000

	materialFloor = 0
	materialLamp  = 10
	missed        = -1
)

var (
	sunDir  = mgl32.Vec3{0.4, 0.8, 0.3}.Normalize()
	palette = [5]mgl32.Vec3{
		{0.8, 0.2, 0.2},
		{0.2, 0.8, 0.2},
		{0.2, 0.3, 0.8},
		{0.9, 0.9, 0.9},
		{0.9, 0.6, 0.1},
	}
	lampColor = mgl32.Vec3{1, 0.9, 0.7}
)

// SoftKernels returns the CPU version of the scene program for the soft
// device.
func SoftKernels() map[string]soft.Kernel {
	return map[string]soft.Kernel{ProgramName: kernel}
}

func tanHalf(fovDegrees float32) float32 {
	return math32.Tan(mgl32.DegToRad(fovDegrees) / 2)
}

func sphereCenter(i int) mgl32.Vec3 {
	return mgl32.Vec3{float32(i)*2.5 - 5, 1, -float32(i) * 4}
}

func lampCenter(time float32) mgl32.Vec3 {
	return mgl32.Vec3{3 * math32.Sin(time*0.3), 2.5, -6}
}

type world struct {
	lamp mgl32.Vec3
}

// sdf returns the distance to the closest surface and its material.
func (w world) sdf(p mgl32.Vec3) (float32, int) {
	dist, mat := p.Y(), materialFloor
	for i := 0; i < len(palette); i++ {
		if d := p.Sub(sphereCenter(i)).Len() - 1; d < dist {
			dist, mat = d, i+1
		}
	}
	if d := p.Sub(w.lamp).Len() - 0.3; d < dist {
		dist, mat = d, materialLamp
	}
	return dist, mat
}

func (w world) dist(p mgl32.Vec3) float32 {
	d, _ := w.sdf(p)
	return d
}

func (w world) normal(p mgl32.Vec3) mgl32.Vec3 {
	const e = 0.001
	return mgl32.Vec3{
		w.dist(p.Add(mgl32.Vec3{e, 0, 0})) - w.dist(p.Sub(mgl32.Vec3{e, 0, 0})),
		w.dist(p.Add(mgl32.Vec3{0, e, 0})) - w.dist(p.Sub(mgl32.Vec3{0, e, 0})),
		w.dist(p.Add(mgl32.Vec3{0, 0, e})) - w.dist(p.Sub(mgl32.Vec3{0, 0, e})),
	}.Normalize()
}

func (w world) shadow(p mgl32.Vec3) float32 {
	t := float32(0.02)
	for i := 0; i < 48; i++ {
		d := w.dist(p.Add(sunDir.Mul(t)))
		if d < 0.001 {
			return 0
		}
		t += d
		if t > 50 {
			break
		}
	}
	return 1
}

// march returns the ray distance to the first hit and its material, or
// missed when nothing is hit before far.
func (w world) march(eye, rd mgl32.Vec3, near, far float32) (float32, int) {
	t := near
	for i := 0; i < 160; i++ {
		d, mat := w.sdf(eye.Add(rd.Mul(t)))
		if d < 0.0005*t {
			return t, mat
		}
		t += d
		if t > far {
			break
		}
	}
	return t, missed
}

func sky(rd mgl32.Vec3) mgl32.Vec3 {
	if rd.Dot(sunDir) > 0.9995 {
		return mgl32.Vec3{1e6, 1e6, 1e6}
	}
	h := math32.Min(math32.Max(rd.Y(), 0), 1)
	horizon := mgl32.Vec3{0.8, 0.85, 1}.Mul(4000)
	zenith := mgl32.Vec3{0.3, 0.5, 1}.Mul(1500)
	return horizon.Add(zenith.Sub(horizon).Mul(h))
}

func albedo(p mgl32.Vec3, mat int) mgl32.Vec3 {
	if mat == materialFloor {
		c := math32.Mod(math32.Floor(p.X())+math32.Floor(p.Z()), 2)
		if c < 0 {
			c += 2
		}
		g := 0.6 + (0.3-0.6)*c
		return mgl32.Vec3{g, g, g}
	}
	return palette[mat-1]
}

func (w world) shade(p mgl32.Vec3, mat int) mgl32.Vec3 {
	if mat == materialLamp {
		return lampColor.Mul(lampRadiance)
	}
	n := w.normal(p)
	sun := math32.Max(n.Dot(sunDir), 0) * w.shadow(p.Add(n.Mul(0.01)))
	toLamp := w.lamp.Sub(p)
	falloff := math32.Max(n.Dot(toLamp.Normalize()), 0) / math32.Max(toLamp.Dot(toLamp), 0.01)
	light := sunIlluminance*sun + skyIlluminance*(0.5+0.5*n.Y()) + lampRadiance*0.09*falloff
	return albedo(p, mat).Mul(light / math32.Pi)
}

// depth maps a view space distance to [0,1] window depth.
func depth(viewZ, near, far float32) float32 {
	ndc := (far+near)/(far-near) - 2*far*near/((far-near)*viewZ)
	return math32.Min(math32.Max(ndc*0.5+0.5, 0), 1)
}

func kernel(u *soft.Uniforms) soft.FragmentFunc {
	eye := u.Vec3("uEye")
	forward := u.Vec3("uForward")
	right := u.Vec3("uRight")
	up := u.Vec3("uUp")
	tanHalfFov := u.Float("uTanHalfFov")
	aspect := u.Float("uAspect")
	near, far := u.Float("uNear"), u.Float("uFar")
	w := world{lamp: lampCenter(u.Float("uTime"))}

	return func(uv mgl32.Vec2, out []mgl32.Vec4) {
		nx, ny := uv.X()*2-1, uv.Y()*2-1
		rd := forward.
			Add(right.Mul(nx * tanHalfFov * aspect)).
			Add(up.Mul(ny * tanHalfFov)).
			Normalize()

		viewZ := far
		var color mgl32.Vec3
		t, mat := w.march(eye, rd, near, far)
		if mat == missed {
			color = sky(rd)
		} else {
			viewZ = t * rd.Dot(forward)
			color = w.shade(eye.Add(rd.Mul(t)), mat)
		}
		out[0] = color.Vec4(1)
		out[1] = mgl32.Vec4{depth(viewZ, near, far), 0, 0, 1}
	}
}
