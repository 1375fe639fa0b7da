package postfx

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/normanking/physicam/internal/gpu"
)

var (
	blurHorizontal = mgl32.Vec2{1, 0}
	blurVertical   = mgl32.Vec2{0, 1}
)

// blurStrategy is one of the separable blurs of the bloom chain. It is
// chosen when the pipeline is built.
type blurStrategy interface {
	program() string
	// setUniforms prepares one pass. target is the size of the level being
	// written, screen the pipeline output size.
	setUniforms(p *gpu.Program, radius float32, dir mgl32.Vec2, target, screen [2]int)
}

func newBlurStrategy(mode BlurMode) blurStrategy {
	if mode == BlurNineTap {
		return nineTapBlur{}
	}
	return incrementalBlur{}
}

// incrementalBlur samples radius/2 taps on each side of the texel, so its
// cost follows the radius. Offsets are in texels of the level.
type incrementalBlur struct{}

func (incrementalBlur) program() string { return progBlurIncremental }

func (incrementalBlur) setUniforms(p *gpu.Program, radius float32, dir mgl32.Vec2, target, _ [2]int) {
	p.SetFloat("uRadius", radius)
	p.SetVec2("uResolution", mgl32.Vec2{float32(target[0]), float32(target[1])})
	p.SetVec2("uDirection", dir)
}

// nineTapBlur always takes nine samples spaced radius screen pixels apart.
type nineTapBlur struct{}

func (nineTapBlur) program() string { return progBlurNineTap }

func (nineTapBlur) setUniforms(p *gpu.Program, radius float32, dir mgl32.Vec2, _, screen [2]int) {
	res := float32(screen[0])
	if dir[1] != 0 {
		res = float32(screen[1])
	}
	p.SetFloat("uRadius", radius)
	p.SetFloat("uResolution", res)
	p.SetVec2("uDirection", dir)
}
