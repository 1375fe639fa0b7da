package camera

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Space says which matrix a Transform stands for.
type Space int

const (
	// ObjectSpace transforms map local coordinates into the world.
	ObjectSpace Space = iota
	// ViewSpace transforms place an eye; their matrix maps the world into it.
	ViewSpace
)

// Transform places an object or an eye in world space.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
	Kind     Space
}

// Identity is the transform at the origin with unit scale.
func Identity() Transform {
	return Transform{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
}

// LookAt returns a view space transform at eye facing target. The camera
// looks down its local -Z axis.
func LookAt(eye, target, up mgl32.Vec3) Transform {
	t := Identity()
	t.Position = eye
	t.Rotation = mgl32.Mat4ToQuat(mgl32.LookAtV(eye, target, up)).Inverse().Normalize()
	t.Kind = ViewSpace
	return t
}

// ModelMatrix is translation * rotation * scale.
func ModelMatrix(t Transform) mgl32.Mat4 {
	return mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z()).
		Mul4(t.Rotation.Mat4()).
		Mul4(mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z()))
}

// ViewMatrix is the inverse of the rigid part of t. Scale is ignored.
func ViewMatrix(t Transform) mgl32.Mat4 {
	return t.Rotation.Inverse().Mat4().
		Mul4(mgl32.Translate3D(-t.Position.X(), -t.Position.Y(), -t.Position.Z()))
}

// Matrix returns ViewMatrix for view space transforms and ModelMatrix
// otherwise.
func Matrix(t Transform) mgl32.Mat4 {
	if t.Kind == ViewSpace {
		return ViewMatrix(t)
	}
	return ModelMatrix(t)
}

// Forward is the direction the transform faces.
func Forward(t Transform) mgl32.Vec3 {
	return t.Rotation.Rotate(mgl32.Vec3{0, 0, -1})
}

// Orbit rotates t around target by yaw and pitch degrees, keeping its
// distance and facing the target. Pitch is kept away from the poles.
func Orbit(t Transform, target mgl32.Vec3, yaw, pitch float32) Transform {
	rel := t.Position.Sub(target)
	dist := rel.Len()
	if dist == 0 {
		return t
	}

	theta := math32.Atan2(rel.X(), rel.Z()) + mgl32.DegToRad(yaw)
	phi := math32.Acos(mgl32.Clamp(rel.Y()/dist, -1, 1)) + mgl32.DegToRad(pitch)
	phi = mgl32.Clamp(phi, 0.1, math32.Pi-0.1)

	sinPhi, cosPhi := math32.Sincos(phi)
	sinTheta, cosTheta := math32.Sincos(theta)
	eye := target.Add(mgl32.Vec3{sinPhi * sinTheta, cosPhi, sinPhi * cosTheta}.Mul(dist))

	out := LookAt(eye, target, mgl32.Vec3{0, 1, 0})
	out.Scale = t.Scale
	out.Kind = t.Kind
	return out
}

// Dolly moves t toward target by delta, stopping 0.1 short of it.
func Dolly(t Transform, target mgl32.Vec3, delta float32) Transform {
	toTarget := target.Sub(t.Position)
	dist := toTarget.Len()
	if dist == 0 {
		return t
	}
	if delta > dist-0.1 {
		delta = dist - 0.1
	}
	t.Position = t.Position.Add(toTarget.Mul(delta / dist))
	return t
}
