package postfx

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/normanking/physicam/internal/gpu/soft"
)

// SoftKernels returns CPU versions of every stage program, keyed by program
// name, for the soft device.
func SoftKernels() map[string]soft.Kernel {
	return map[string]soft.Kernel{
		progBlit:            blitKernel,
		progLensDistortion:  lensDistortionKernel,
		progDownsample:      downsampleKernel,
		progBrightPass:      brightPassKernel,
		progBlurIncremental: incrementalBlurKernel,
		progBlurNineTap:     nineTapBlurKernel,
		progBloomCompose:    bloomComposeKernel,
		progLensFlare:       lensFlareKernel,
		progBloomFinal:      bloomFinalKernel,
		progDoF:             dofKernel,
		progTonemap:         tonemapKernel,
	}
}

var (
	center = mgl32.Vec2{0.5, 0.5}
	black  = mgl32.Vec4{0, 0, 0, 1}
)

func opaque(c mgl32.Vec3) mgl32.Vec4 { return c.Vec4(1) }

func fract(x float32) float32 { return x - math32.Floor(x) }

func clampf(x, lo, hi float32) float32 { return math32.Min(math32.Max(x, lo), hi) }

func mix(a, b, t float32) float32 { return a + (b-a)*t }

func mix3(a, b mgl32.Vec3, t float32) mgl32.Vec3 { return a.Add(b.Sub(a).Mul(t)) }

func smoothstep(e0, e1, x float32) float32 {
	if e0 == e1 {
		if x < e0 {
			return 0
		}
		return 1
	}
	t := clampf((x-e0)/(e1-e0), 0, 1)
	return t * t * (3 - 2*t)
}

func mulElem3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func blitKernel(u *soft.Uniforms) soft.FragmentFunc {
	tex := u.Texture("uTex")
	exposure := u.Float("uExposure")
	return func(uv mgl32.Vec2, out []mgl32.Vec4) {
		out[0] = opaque(tex.Sample(uv).Vec3().Mul(exposure))
	}
}

func lensDistortionKernel(u *soft.Uniforms) soft.FragmentFunc {
	color := u.Texture("uColor")
	depth := u.Texture("uDepth")
	k := u.Float("uK")
	scale := u.Float("uScale")
	disp := u.Float("uDispersion")
	eta := [3]float32{1 + disp*0.9, 1 + disp*0.6, 1 + disp*0.3}

	return func(uv mgl32.Vec2, out []mgl32.Vec4) {
		d := uv.Sub(center)
		f := 1 + d.Dot(d)*k

		var c mgl32.Vec3
		var rCoords mgl32.Vec2
		for i := 0; i < 3; i++ {
			coords := d.Mul(f * eta[i] * scale).Add(center)
			if i == 0 {
				rCoords = coords
			}
			c[i] = color.Sample(coords)[i]
		}
		out[0] = opaque(c)
		z := depth.Sample(rCoords)[0]
		out[1] = mgl32.Vec4{z, z, z, z}
	}
}

func downsampleKernel(u *soft.Uniforms) soft.FragmentFunc {
	tex := u.Texture("uTex")
	return func(uv mgl32.Vec2, out []mgl32.Vec4) {
		out[0] = opaque(tex.Sample(uv).Vec3())
	}
}

func brightPassKernel(u *soft.Uniforms) soft.FragmentFunc {
	tex := u.Texture("uTex")
	threshold := u.Float("uThreshold")
	flareThreshold := u.Float("uFlareThreshold")
	return func(uv mgl32.Vec2, out []mgl32.Vec4) {
		c := opaque(tex.Sample(uv).Vec3())
		lum := luminance709(c[0], c[1], c[2])

		out[0], out[1] = black, black
		if lum > threshold {
			out[0] = c
		}
		if lum > flareThreshold {
			out[1] = c.Mul(1 / (flareThreshold - 1))
		}
	}
}

func incrementalBlurKernel(u *soft.Uniforms) soft.FragmentFunc {
	tex := u.Texture("uTex")
	radius := u.Float("uRadius")
	res := u.Vec2("uResolution")
	dir := u.Vec2("uDirection")

	n := int(radius)
	if n < 1 {
		n = 1
	} else if n > 4096 {
		n = 4096
	}
	n /= 2
	step := mgl32.Vec2{dir[0] / res[0], dir[1] / res[1]}
	sigma := radius / 8

	return func(uv mgl32.Vec2, out []mgl32.Vec4) {
		if n == 0 {
			out[0] = tex.Sample(uv)
			return
		}
		gx := 1 / (math32.Sqrt(2*math32.Pi) * sigma)
		gy := math32.Exp(-0.5 / (sigma * sigma))
		gz := gy * gy

		result := tex.Sample(uv).Mul(gx)
		for i := 1; i < n; i++ {
			gx *= gy
			gy *= gz
			off := step.Mul(float32(i))
			result = result.Add(tex.Sample(uv.Sub(off)).Mul(gx))
			result = result.Add(tex.Sample(uv.Add(off)).Mul(gx))
		}
		out[0] = result
	}
}

var nineTapWeights = [5]float32{0.2270270270, 0.1945945946, 0.1216216216, 0.0540540541, 0.0162162162}

func nineTapBlurKernel(u *soft.Uniforms) soft.FragmentFunc {
	tex := u.Texture("uTex")
	step := u.Vec2("uDirection").Mul(u.Float("uRadius") / u.Float("uResolution"))
	return func(uv mgl32.Vec2, out []mgl32.Vec4) {
		sum := tex.Sample(uv).Mul(nineTapWeights[0])
		for i := 1; i < 5; i++ {
			off := step.Mul(float32(i))
			sum = sum.Add(tex.Sample(uv.Sub(off)).Mul(nineTapWeights[i]))
			sum = sum.Add(tex.Sample(uv.Add(off)).Mul(nineTapWeights[i]))
		}
		out[0] = opaque(sum.Vec3())
	}
}

func bloomComposeKernel(u *soft.Uniforms) soft.FragmentFunc {
	var levels [BloomLevels]soft.Sampler
	for i := range levels {
		levels[i] = u.TextureAt("uLevels", i)
	}
	strengths := u.Floats("uStrengths", BloomLevels)
	intensity := u.Float("uIntensity")
	return func(uv mgl32.Vec2, out []mgl32.Vec4) {
		var sum mgl32.Vec3
		for i, s := range levels {
			sum = sum.Add(s.Sample(uv).Vec3().Mul(strengths[i]))
		}
		out[0] = opaque(sum.Mul(intensity))
	}
}

func lensFlareKernel(u *soft.Uniforms) soft.FragmentFunc {
	tex := u.Texture("uTex")
	screen := u.Vec2("uScreenSize")
	halo := u.Float("uHaloWidth")
	distortion := mgl32.Vec3{-1 / screen[0], 0, 1 / screen[0]}
	maxLen := center.Len()

	weight := func(off mgl32.Vec2) float32 {
		return math32.Pow(1-center.Sub(off).Len()/maxLen, 10)
	}
	distorted := func(tc, dir mgl32.Vec2) mgl32.Vec3 {
		return mgl32.Vec3{
			tex.Sample(tc.Add(dir.Mul(distortion[0])))[0],
			tex.Sample(tc.Add(dir.Mul(distortion[1])))[1],
			tex.Sample(tc.Add(dir.Mul(distortion[2])))[2],
		}
	}
	fract2 := func(v mgl32.Vec2) mgl32.Vec2 { return mgl32.Vec2{fract(v[0]), fract(v[1])} }

	return func(uv mgl32.Vec2, out []mgl32.Vec4) {
		tc := mgl32.Vec2{1 - uv[0], 1 - uv[1]}
		ghost := center.Sub(tc).Mul(0.3)
		var dir mgl32.Vec2
		if l := ghost.Len(); l > 0 {
			dir = ghost.Mul(1 / l)
		}

		var result mgl32.Vec3
		for i := 0; i < 8; i++ {
			off := fract2(tc.Add(ghost.Mul(float32(i))))
			result = result.Add(distorted(off, dir).Mul(weight(off)))
		}
		h := fract2(tc.Add(dir.Mul(halo)))
		result = result.Add(distorted(h, dir).Mul(weight(h)))
		out[0] = opaque(result)
	}
}

func bloomFinalKernel(u *soft.Uniforms) soft.FragmentFunc {
	bloom := u.Texture("uBloom")
	flare := u.Texture("uFlare")
	base := u.Texture("uBase")
	dirt := u.Texture("uDirt")
	hasDirt := u.Bool("uHasDirt")
	strength := u.Float("uFlareStrength")
	return func(uv mgl32.Vec2, out []mgl32.Vec4) {
		b := bloom.Sample(uv).Vec3()
		f := flare.Sample(uv).Vec3().Mul(strength)
		if hasDirt {
			d := dirt.Sample(uv).Vec3()
			b = mulElem3(b, d)
			f = mulElem3(f, d)
		}
		out[0] = opaque(b.Add(f).Add(base.Sample(uv).Vec3()))
	}
}

const (
	dofRings      = 3
	dofSamples    = 6
	dofThreshold  = 1.0
	dofGain       = 1.8
	dofBias       = 0.5
	dofNoise      = 0.0001
	dofDepthBlur  = 1.25
	dofFeather    = 0.4
	vignetteOuter = 1.3
	vignetteInner = 0.0
	vignetteFade  = 22.0
)

var (
	lumCoeff      = mgl32.Vec3{0.299, 0.587, 0.114}
	focusColor    = mgl32.Vec3{1, 0.5, 0}
	focusRange    = mgl32.Vec3{0, 0.5, 1}
	pentaPlanes   = [5]mgl32.Vec4{{1, 0, 0, 1}, {0.309016994, 0.951056516, 0, 1}, {-0.809016994, 0.587785252, 0, 1}, {-0.809016994, -0.587785252, 0, 1}, {0.309016994, -0.951056516, 0, 1}}
	depthKernel   = [9]float32{1, 2, 1, 2, 4, 2, 1, 2, 1}
	fringeOffsets = [3]mgl32.Vec2{{0, 1}, {-0.866, -0.5}, {0.866, -0.5}}
)

func dofRand(uv mgl32.Vec2) (float32, float32) {
	x := clampf(fract(math32.Sin(uv.Dot(mgl32.Vec2{12.9898, 78.233}))*43758.5453), 0, 1)*2 - 1
	y := clampf(fract(math32.Sin(uv.Dot(mgl32.Vec2{12.9898 * 2, 78.233 * 2}))*43758.5453), 0, 1)*2 - 1
	return x, y
}

func penta(x, y float32) float32 {
	scale := float32(dofRings) - 1.3
	p := mgl32.Vec4{x, y, scale, scale}
	inorout := float32(-4)
	for i := 0; i < 4; i++ {
		inorout += smoothstep(-dofFeather, dofFeather, p.Dot(pentaPlanes[i]))
	}
	inorout += smoothstep(-dofFeather, dofFeather, p.Dot(pentaPlanes[4]))
	return clampf(inorout, 0, 1)
}

func debugFocus(col mgl32.Vec3, blur, depth float32) mgl32.Vec3 {
	edge := 0.002 * depth
	m := clampf(smoothstep(0, edge, blur), 0, 1)
	e := clampf(smoothstep(1-edge, 1, blur), 0, 1)
	col = mix3(col, focusColor, (1-m)*0.6)
	return mix3(col, focusRange, ((1-e)-(1-m))*0.2)
}

func dofKernel(u *soft.Uniforms) soft.FragmentFunc {
	color := u.Texture("uColor")
	depthTex := u.Texture("uDepth")
	screen := u.Vec2("uScreenSize")
	clips := u.Vec2("uClips")
	autofocus := u.Bool("uAutofocus")
	focalDepth := u.Float("uFocalDepth")
	focalLength := u.Float("uFocalLength")
	fstop := u.Float("uFStop")
	coc := u.Float("uCoC")
	fringe := u.Float("uFringe")
	maxBlur := u.Float("uMaxBlur")
	vignetting := u.Bool("uVignetting")
	showFocus := u.Bool("uShowFocus")
	pentagon := u.Bool("uPentagon")
	depthBlur := u.Bool("uDepthBlur")

	texel := mgl32.Vec2{1 / screen[0], 1 / screen[1]}
	near, far := clips[0], clips[1]
	linearize := func(d float32) float32 {
		return -far * near / (d*(far-near) - far)
	}
	blurredDepth := func(uv mgl32.Vec2) float32 {
		var d float32
		k := 0
		for y := -1; y <= 1; y++ {
			for x := -1; x <= 1; x++ {
				off := mgl32.Vec2{float32(x) * texel[0] * dofDepthBlur, float32(y) * texel[1] * dofDepthBlur}
				d += depthTex.Sample(uv.Add(off))[0] * depthKernel[k] / 16
				k++
			}
		}
		return d
	}
	sample := func(uv mgl32.Vec2, blur float32) mgl32.Vec3 {
		var col mgl32.Vec3
		for c, o := range fringeOffsets {
			off := mgl32.Vec2{o[0] * texel[0], o[1] * texel[1]}.Mul(fringe * blur)
			col[c] = color.Sample(uv.Add(off))[c]
		}
		thresh := math32.Max((col.Dot(lumCoeff)-dofThreshold)*dofGain, 0)
		return col.Add(col.Mul(thresh * blur))
	}

	if autofocus {
		focalDepth = linearize(depthTex.Sample(center)[0])
	}
	f := focalLength
	dmm := focalDepth * 1000

	return func(uv mgl32.Vec2, out []mgl32.Vec4) {
		var depth float32
		if depthBlur {
			depth = linearize(blurredDepth(uv))
		} else {
			depth = linearize(depthTex.Sample(uv)[0])
		}
		o := depth * 1000

		a := (o * f) / (o - f)
		b := (dmm * f) / (dmm - f)
		c := (dmm - f) / (dmm * fstop * coc)
		blur := clampf(math32.Abs(a-b)*c, 0, 1)

		nx, ny := dofRand(uv)
		w := texel[0]*blur*maxBlur + nx*dofNoise*blur
		h := texel[1]*blur*maxBlur + ny*dofNoise*blur

		col := color.Sample(uv).Vec3()
		if blur >= 0.05 {
			s := float32(1)
			for i := 1; i <= dofRings; i++ {
				ringSamples := i * dofSamples
				step := 2 * math32.Pi / float32(ringSamples)
				for j := 0; j < ringSamples; j++ {
					pw := math32.Cos(float32(j)*step) * float32(i)
					ph := math32.Sin(float32(j)*step) * float32(i)
					p := float32(1)
					if pentagon {
						p = penta(pw, ph)
					}
					weight := mix(1, float32(i)/dofRings, dofBias) * p
					col = col.Add(sample(uv.Add(mgl32.Vec2{pw * w, ph * h}), blur).Mul(weight))
					s += weight
				}
			}
			col = col.Mul(1 / s)
		}

		if showFocus {
			col = debugFocus(col, blur, depth)
		}
		if vignetting {
			dist := uv.Sub(center).Len()
			col = col.Mul(clampf(smoothstep(vignetteOuter+fstop/vignetteFade, vignetteInner+fstop/vignetteFade, dist), 0, 1))
		}
		out[0] = opaque(col)
	}
}

const (
	permTexUnit     = 1.0 / 256.0
	permTexUnitHalf = 0.5 / 256.0
	grainSize       = 1.6
	grainRotation   = 1.425
)

// grainNoise is the procedural Perlin grain of the tonemapping stage.
type grainNoise struct {
	timer  float32
	screen mgl32.Vec2
}

func (g grainNoise) rnm(tc mgl32.Vec2) mgl32.Vec4 {
	n := math32.Sin((tc[0]+g.timer)*12.9898+(tc[1]+g.timer)*78.233) * 43758.5453
	return mgl32.Vec4{
		fract(n)*2 - 1,
		fract(n*1.2154)*2 - 1,
		fract(n*1.3453)*2 - 1,
		fract(n*1.3647)*2 - 1,
	}
}

func fade(t float32) float32 { return t * t * t * (t*(t*6-15) + 10) }

func (g grainNoise) grad(perm, z float32, pf mgl32.Vec3, corner mgl32.Vec3) float32 {
	r := g.rnm(mgl32.Vec2{perm, z})
	grad := mgl32.Vec3{r[0]*4 - 1, r[1]*4 - 1, r[2]*4 - 1}
	return grad.Dot(pf.Sub(corner))
}

func (g grainNoise) pnoise3D(p mgl32.Vec3) float32 {
	pi := mgl32.Vec3{
		permTexUnit*math32.Floor(p[0]) + permTexUnitHalf,
		permTexUnit*math32.Floor(p[1]) + permTexUnitHalf,
		permTexUnit*math32.Floor(p[2]) + permTexUnitHalf,
	}
	pf := mgl32.Vec3{fract(p[0]), fract(p[1]), fract(p[2])}

	var n [8]float32 // n000 n001 n010 n011 n100 n101 n110 n111
	for i, c := range [4]mgl32.Vec2{{0, 0}, {0, 1}, {1, 0}, {1, 1}} {
		perm := g.rnm(mgl32.Vec2{pi[0] + c[0]*permTexUnit, pi[1] + c[1]*permTexUnit})[3]
		n[i*2] = g.grad(perm, pi[2], pf, mgl32.Vec3{c[0], c[1], 0})
		n[i*2+1] = g.grad(perm, pi[2]+permTexUnit, pf, mgl32.Vec3{c[0], c[1], 1})
	}

	fx := fade(pf[0])
	nx := [4]float32{mix(n[0], n[4], fx), mix(n[1], n[5], fx), mix(n[2], n[6], fx), mix(n[3], n[7], fx)}
	fy := fade(pf[1])
	nxy0, nxy1 := mix(nx[0], nx[2], fy), mix(nx[1], nx[3], fy)
	return mix(nxy0, nxy1, fade(pf[2]))
}

func (g grainNoise) coordRot(tc mgl32.Vec2, angle float32) mgl32.Vec2 {
	aspect := g.screen[0] / g.screen[1]
	sin, cos := math32.Sincos(angle)
	x := (tc[0]*2 - 1) * aspect
	y := tc[1]*2 - 1
	rotX := x*cos - y*sin
	rotY := y*cos + x*sin
	return mgl32.Vec2{(rotX/aspect)*0.5 + 0.5, rotY*0.5 + 0.5}
}

// at returns the grain for a pixel, faded out by the pixel's luminance.
func (g grainNoise) at(uv mgl32.Vec2, col mgl32.Vec3) float32 {
	rot := g.coordRot(uv, g.timer+grainRotation)
	n := g.pnoise3D(mgl32.Vec3{rot[0] * g.screen[0] / grainSize, rot[1] * g.screen[1] / grainSize, 0})
	return mix(n, 0, col.Dot(lumCoeff))
}

func tonemapKernel(u *soft.Uniforms) soft.FragmentFunc {
	hdr := u.Texture("uHDR")
	method := TonemapMethod(u.Int("uMethod"))
	tonemap := u.Bool("uTonemap")
	grain := u.Bool("uGrain")
	amount := u.Float("uGrainAmount")
	noise := grainNoise{timer: u.Float("uTimer"), screen: u.Vec2("uScreenSize")}

	return func(uv mgl32.Vec2, out []mgl32.Vec4) {
		c := hdr.Sample(uv).Vec3()
		if tonemap {
			c = method.Apply(c)
		}
		if grain {
			n := noise.at(uv, c) * amount
			c = c.Add(mgl32.Vec3{n, n, n})
		}
		out[0] = opaque(c)
	}
}
