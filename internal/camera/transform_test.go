package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func assertVec3(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4, "component %d of %v", i, got)
	}
}

func TestLookAt(t *testing.T) {
	tr := LookAt(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	assertVec3(t, mgl32.Vec3{0, 0, -1}, Forward(tr))

	view := ViewMatrix(tr)
	assertVec3(t, mgl32.Vec3{0, 0, -5}, view.Mul4x1(mgl32.Vec4{0, 0, 0, 1}).Vec3())

	side := LookAt(mgl32.Vec3{3, 0, 0}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	assertVec3(t, mgl32.Vec3{-1, 0, 0}, Forward(side))
	assertVec3(t, mgl32.Vec3{0, 0, -3}, ViewMatrix(side).Mul4x1(mgl32.Vec4{0, 0, 0, 1}).Vec3())

	eye := mgl32.Vec3{1, 2, 3}
	above := LookAt(eye, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	assertVec3(t, eye.Mul(-1).Normalize(), Forward(above))
	assertVec3(t, mgl32.Vec3{0, 0, -eye.Len()}, ViewMatrix(above).Mul4x1(mgl32.Vec4{0, 0, 0, 1}).Vec3())
	assert.InDelta(t, 0, above.Rotation.Rotate(mgl32.Vec3{1, 0, 0}).Y(), 1e-5, "camera stays level")
	assert.Equal(t, ViewSpace, above.Kind)
}

func TestMatrixDispatchesOnKind(t *testing.T) {
	tr := LookAt(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{-1, 0, 2}, mgl32.Vec3{0, 1, 0})
	assert.Equal(t, ViewMatrix(tr), Matrix(tr))

	tr.Kind = ObjectSpace
	assert.Equal(t, ModelMatrix(tr), Matrix(tr))
	assert.Equal(t, ObjectSpace, Identity().Kind)
}

func TestViewInvertsModel(t *testing.T) {
	tr := LookAt(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{-1, 0, 2}, mgl32.Vec3{0, 1, 0})
	m := ViewMatrix(tr).Mul4(ModelMatrix(tr))
	assert.True(t, m.ApproxEqualThreshold(mgl32.Ident4(), 1e-5), "%v", m)
}

func TestModelMatrixScales(t *testing.T) {
	tr := Identity()
	tr.Position = mgl32.Vec3{1, 0, 0}
	tr.Scale = mgl32.Vec3{2, 2, 2}
	got := ModelMatrix(tr).Mul4x1(mgl32.Vec4{1, 1, 1, 1}).Vec3()
	assertVec3(t, mgl32.Vec3{3, 2, 2}, got)
}

func TestOrbitKeepsDistance(t *testing.T) {
	target := mgl32.Vec3{0, 1, 0}
	tr := LookAt(mgl32.Vec3{0, 1, 4}, target, mgl32.Vec3{0, 1, 0})

	for _, step := range []struct{ yaw, pitch float32 }{{90, 0}, {45, -30}, {0, 400}} {
		tr = Orbit(tr, target, step.yaw, step.pitch)
		assert.InDelta(t, 4, tr.Position.Sub(target).Len(), 1e-4)
		assertVec3(t, target.Sub(tr.Position).Normalize(), Forward(tr))
		assert.Equal(t, ViewSpace, tr.Kind)
	}
	same := Transform{Position: target}
	assert.Equal(t, same, Orbit(same, target, 10, 10))
}

func TestDollyStopsShortOfTarget(t *testing.T) {
	tr := LookAt(mgl32.Vec3{0, 0, 2}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	tr = Dolly(tr, mgl32.Vec3{}, 1.5)
	assert.InDelta(t, 0.5, tr.Position.Z(), 1e-6)

	tr = Dolly(tr, mgl32.Vec3{}, 5)
	assert.InDelta(t, 0.1, tr.Position.Len(), 1e-6)
}
