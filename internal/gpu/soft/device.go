// Package soft is a CPU implementation of gpu.Device. Textures are float32
// RGBA images and programs are Go kernels looked up by program name, so the
// post-processing chain can run headless and be inspected texel by texel.
//
// Like a GL context, a Device must only be used from one goroutine.
package soft

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/normanking/physicam/internal/gpu"
)

// FragmentFunc shades one pixel. uv is the pixel center in viewport space;
// out[i] is written to the i-th draw buffer.
type FragmentFunc func(uv mgl32.Vec2, out []mgl32.Vec4)

// Kernel prepares a FragmentFunc from the program uniforms. It is called
// once per draw.
type Kernel func(u *Uniforms) FragmentFunc

const maxOutputs = 4

type level struct {
	w, h int
	data []float32 // RGBA
}

type texture struct {
	desc    gpu.TextureDesc
	levels  []level
	sampler gpu.SamplerState
}

type framebuffer struct {
	attachments map[gpu.Attachment]uint32
	draw        []gpu.Attachment
}

type program struct {
	name   string
	kernel Kernel
	locs   map[string]int32
	ints   map[int32][]int32
	floats map[int32][]float32
}

// Device is the CPU device.
type Device struct {
	caps    gpu.Caps
	kernels map[string]Kernel

	nextID       uint32
	textures     map[uint32]*texture
	framebuffers map[uint32]*framebuffer
	programs     map[uint32]*program

	units    map[int]uint32
	drawFB   uint32
	readFB   uint32
	viewport [4]int
	current  *program
	screen   uint32

	draws     map[string]int
	readbacks int
}

// Option configures a Device.
type Option func(*Device)

// WithCaps overrides the reported capabilities.
func WithCaps(c gpu.Caps) Option {
	return func(d *Device) { d.caps = c }
}

// NewDevice creates a device whose default framebuffer is width x height.
func NewDevice(width, height int, kernels map[string]Kernel, opts ...Option) *Device {
	d := &Device{
		caps: gpu.Caps{
			DirectStateAccess:   true,
			TextureStorage:      true,
			InternalFormatQuery: true,
			AnisotropicFilter:   true,
			MaxAnisotropy:       16,
		},
		kernels:      kernels,
		textures:     make(map[uint32]*texture),
		framebuffers: make(map[uint32]*framebuffer),
		programs:     make(map[uint32]*program),
		units:        make(map[int]uint32),
		draws:        make(map[string]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.ResizeScreen(width, height)
	return d
}

func (d *Device) newID() uint32 {
	d.nextID++
	return d.nextID
}

// ResizeScreen reallocates the default framebuffer.
func (d *Device) ResizeScreen(width, height int) {
	if d.screen != 0 {
		delete(d.textures, d.screen)
	}
	d.screen = d.newID()
	d.textures[d.screen] = &texture{
		desc:   gpu.TextureDesc{Type: gpu.Texture2D, Format: gpu.FormatRGBA32F, Width: width, Height: height},
		levels: []level{newLevel(width, height)},
	}
	d.framebuffers[0] = &framebuffer{
		attachments: map[gpu.Attachment]uint32{gpu.ColorAttachment0: d.screen},
		draw:        []gpu.Attachment{gpu.ColorAttachment0},
	}
	d.viewport = [4]int{0, 0, width, height}
}

// Screen returns the default framebuffer contents.
func (d *Device) Screen() (w, h int, rgba []float32) {
	lv := d.textures[d.screen].levels[0]
	return lv.w, lv.h, append([]float32(nil), lv.data...)
}

// DrawCount returns how many draws the named program issued.
func (d *Device) DrawCount(program string) int { return d.draws[program] }

// Readbacks returns the number of ReadTexels calls.
func (d *Device) Readbacks() int { return d.readbacks }

// ResetStats clears the draw and readback counters.
func (d *Device) ResetStats() {
	d.draws = make(map[string]int)
	d.readbacks = 0
}

func newLevel(w, h int) level {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	data := make([]float32, w*h*4)
	for i := 3; i < len(data); i += 4 {
		data[i] = 1
	}
	return level{w: w, h: h, data: data}
}

// Caps implements gpu.Device.
func (d *Device) Caps() gpu.Caps { return d.caps }

// CreateTexture implements gpu.Device. 3D textures keep only their first slice.
func (d *Device) CreateTexture(desc gpu.TextureDesc) (uint32, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return 0, fmt.Errorf("invalid texture size %dx%d", desc.Width, desc.Height)
	}
	if desc.Type == gpu.Texture1D {
		desc.Height = 1
	}
	t := &texture{
		desc:    desc,
		sampler: gpu.SamplerState{MinFilter: gpu.FilterLinear, MagFilter: gpu.FilterLinear},
	}
	w, h := desc.Width, desc.Height
	for i := 0; i < desc.Levels(); i++ {
		t.levels = append(t.levels, newLevel(w, h))
		w, h = max(w/2, 1), max(h/2, 1)
	}
	id := d.newID()
	d.textures[id] = t
	return id, nil
}

// NewTexture creates a texture and fills level 0 with rgba, row by row.
func (d *Device) NewTexture(width, height int, format gpu.Format, rgba []float32) (uint32, error) {
	if len(rgba) != width*height*4 {
		return 0, fmt.Errorf("texel data has %d floats, want %d", len(rgba), width*height*4)
	}
	id, err := d.CreateTexture(gpu.TextureDesc{Type: gpu.Texture2D, Format: format, Width: width, Height: height})
	if err != nil {
		return 0, err
	}
	t := d.textures[id]
	for i := 0; i < width*height; i++ {
		t.store(&t.levels[0], i, mgl32.Vec4{rgba[i*4], rgba[i*4+1], rgba[i*4+2], rgba[i*4+3]})
	}
	return id, nil
}

func (t *texture) store(lv *level, i int, c mgl32.Vec4) {
	n := t.desc.Format.Channels()
	p := lv.data[i*4 : i*4+4]
	p[0] = c[0]
	p[1], p[2], p[3] = 0, 0, 1
	if n >= 2 {
		p[1] = c[1]
	}
	if n >= 3 {
		p[2] = c[2]
	}
	if n >= 4 {
		p[3] = c[3]
	}
}

// DeleteTexture implements gpu.Device.
func (d *Device) DeleteTexture(id uint32) {
	if id != d.screen {
		delete(d.textures, id)
	}
}

// IsTexture implements gpu.Device.
func (d *Device) IsTexture(id uint32) bool {
	_, ok := d.textures[id]
	return ok && id != 0
}

// SetSampler implements gpu.Device.
func (d *Device) SetSampler(id uint32, s gpu.SamplerState) {
	if t, ok := d.textures[id]; ok {
		t.sampler = s
	}
}

// BindTexture implements gpu.Device.
func (d *Device) BindTexture(unit int, id uint32) {
	d.units[unit] = id
}

// GenerateMipmaps implements gpu.Device with a 2x2 box filter.
func (d *Device) GenerateMipmaps(id uint32) {
	t, ok := d.textures[id]
	if !ok {
		return
	}
	base := t.levels[0]
	t.levels = t.levels[:1]
	for prev := base; prev.w > 1 || prev.h > 1; {
		next := newLevel(max(prev.w/2, 1), max(prev.h/2, 1))
		for y := 0; y < next.h; y++ {
			for x := 0; x < next.w; x++ {
				var sum [4]float32
				for _, o := range [4][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
					sx := min(2*x+o[0], prev.w-1)
					sy := min(2*y+o[1], prev.h-1)
					p := prev.data[(sy*prev.w+sx)*4:]
					for c := 0; c < 4; c++ {
						sum[c] += p[c]
					}
				}
				q := next.data[(y*next.w+x)*4:]
				for c := 0; c < 4; c++ {
					q[c] = sum[c] * 0.25
				}
			}
		}
		t.levels = append(t.levels, next)
		prev = next
	}
}

// ReadTexels implements gpu.Device.
func (d *Device) ReadTexels(id uint32, lvl int) (int, int, []float32, error) {
	t, ok := d.textures[id]
	if !ok {
		return 0, 0, nil, fmt.Errorf("texture %d does not exist", id)
	}
	if lvl < 0 || lvl >= len(t.levels) {
		return 0, 0, nil, fmt.Errorf("texture %d has no level %d", id, lvl)
	}
	d.readbacks++
	lv := t.levels[lvl]
	return lv.w, lv.h, append([]float32(nil), lv.data...), nil
}

// CreateFramebuffer implements gpu.Device.
func (d *Device) CreateFramebuffer() (uint32, error) {
	id := d.newID()
	d.framebuffers[id] = &framebuffer{
		attachments: make(map[gpu.Attachment]uint32),
		draw:        []gpu.Attachment{gpu.ColorAttachment0},
	}
	return id, nil
}

// DeleteFramebuffer implements gpu.Device.
func (d *Device) DeleteFramebuffer(id uint32) {
	if id != 0 {
		delete(d.framebuffers, id)
	}
}

// IsFramebuffer implements gpu.Device. The default framebuffer counts.
func (d *Device) IsFramebuffer(id uint32) bool {
	_, ok := d.framebuffers[id]
	return ok
}

// FramebufferTexture implements gpu.Device. Texture 0 detaches.
func (d *Device) FramebufferTexture(fbID uint32, att gpu.Attachment, tex uint32) gpu.FramebufferStatus {
	fb, ok := d.framebuffers[fbID]
	if !ok || fbID == 0 {
		return gpu.FramebufferUnsupported
	}
	if tex == 0 {
		delete(fb.attachments, att)
	} else {
		fb.attachments[att] = tex
	}
	return d.status(fb)
}

func (d *Device) status(fb *framebuffer) gpu.FramebufferStatus {
	if len(fb.attachments) == 0 {
		return gpu.FramebufferIncompleteMissingAttachment
	}
	for att, id := range fb.attachments {
		t, ok := d.textures[id]
		if !ok {
			return gpu.FramebufferIncompleteAttachment
		}
		f := t.desc.Format
		switch {
		case f.IsCompressed():
			return gpu.FramebufferIncompleteAttachment
		case att.IsColor() && f.IsDepth():
			return gpu.FramebufferIncompleteAttachment
		case att == gpu.DepthAttachment && !f.IsDepth():
			return gpu.FramebufferIncompleteAttachment
		case (att == gpu.StencilAttachment || att == gpu.DepthStencilAttachment) && !f.IsStencil():
			return gpu.FramebufferIncompleteAttachment
		}
	}
	return gpu.FramebufferComplete
}

// BindFramebuffer implements gpu.Device.
func (d *Device) BindFramebuffer(target gpu.FramebufferTarget, fb uint32) {
	if target == gpu.FramebufferBoth || target == gpu.FramebufferDraw {
		d.drawFB = fb
	}
	if target == gpu.FramebufferBoth || target == gpu.FramebufferRead {
		d.readFB = fb
	}
}

// DrawBuffers implements gpu.Device.
func (d *Device) DrawBuffers(atts []gpu.Attachment) {
	if fb, ok := d.framebuffers[d.drawFB]; ok && d.drawFB != 0 {
		fb.draw = append(fb.draw[:0], atts...)
	}
}

// Viewport implements gpu.Device.
func (d *Device) Viewport(x, y, w, h int) {
	d.viewport = [4]int{x, y, w, h}
}

// CreateProgram implements gpu.Device. The sources are not parsed; the
// kernel registered under name is used instead.
func (d *Device) CreateProgram(name, vertexSrc, fragmentSrc string) (uint32, error) {
	if vertexSrc == "" || fragmentSrc == "" {
		return 0, fmt.Errorf("program %q: empty shader source", name)
	}
	k, ok := d.kernels[name]
	if !ok {
		return 0, fmt.Errorf("program %q: no kernel registered", name)
	}
	id := d.newID()
	d.programs[id] = &program{
		name:   name,
		kernel: k,
		locs:   make(map[string]int32),
		ints:   make(map[int32][]int32),
		floats: make(map[int32][]float32),
	}
	return id, nil
}

// DeleteProgram implements gpu.Device.
func (d *Device) DeleteProgram(id uint32) {
	if p, ok := d.programs[id]; ok && p == d.current {
		d.current = nil
	}
	delete(d.programs, id)
}

// UseProgram implements gpu.Device.
func (d *Device) UseProgram(id uint32) {
	d.current = d.programs[id]
}

// UniformLocation implements gpu.Device.
func (d *Device) UniformLocation(prog uint32, name string) int32 {
	p, ok := d.programs[prog]
	if !ok {
		return -1
	}
	if loc, ok := p.locs[name]; ok {
		return loc
	}
	loc := int32(len(p.locs))
	p.locs[name] = loc
	return loc
}

// Uniform1i implements gpu.Device.
func (d *Device) Uniform1i(loc int32, v int32) { d.setInts(loc, []int32{v}) }

// Uniform1iv implements gpu.Device.
func (d *Device) Uniform1iv(loc int32, v []int32) { d.setInts(loc, v) }

// Uniform1f implements gpu.Device.
func (d *Device) Uniform1f(loc int32, v float32) { d.setFloats(loc, []float32{v}) }

// Uniform1fv implements gpu.Device.
func (d *Device) Uniform1fv(loc int32, v []float32) { d.setFloats(loc, v) }

// Uniform2f implements gpu.Device.
func (d *Device) Uniform2f(loc int32, x, y float32) { d.setFloats(loc, []float32{x, y}) }

// Uniform3f implements gpu.Device.
func (d *Device) Uniform3f(loc int32, x, y, z float32) { d.setFloats(loc, []float32{x, y, z}) }

func (d *Device) setInts(loc int32, v []int32) {
	if d.current == nil || loc < 0 {
		return
	}
	d.current.ints[loc] = append([]int32(nil), v...)
}

func (d *Device) setFloats(loc int32, v []float32) {
	if d.current == nil || loc < 0 {
		return
	}
	d.current.floats[loc] = append([]float32(nil), v...)
}

// DrawFullscreen implements gpu.Device.
func (d *Device) DrawFullscreen() {
	if d.current == nil {
		return
	}
	fb, ok := d.framebuffers[d.drawFB]
	if !ok {
		return
	}
	d.draws[d.current.name]++

	type output struct {
		tex *texture
		lv  *level
	}
	outputs := make([]output, 0, len(fb.draw))
	for _, att := range fb.draw {
		t := d.textures[fb.attachments[att]]
		if t == nil {
			outputs = append(outputs, output{})
			continue
		}
		outputs = append(outputs, output{tex: t, lv: &t.levels[0]})
	}

	shade := d.current.kernel(&Uniforms{dev: d, prog: d.current})
	vx, vy, vw, vh := d.viewport[0], d.viewport[1], d.viewport[2], d.viewport[3]
	if vw <= 0 || vh <= 0 {
		return
	}

	var out [maxOutputs]mgl32.Vec4
	for y := vy; y < vy+vh; y++ {
		for x := vx; x < vx+vw; x++ {
			uv := mgl32.Vec2{(float32(x-vx) + 0.5) / float32(vw), (float32(y-vy) + 0.5) / float32(vh)}
			out = [maxOutputs]mgl32.Vec4{}
			shade(uv, out[:])
			for i, o := range outputs {
				if o.lv == nil || i >= maxOutputs || x < 0 || y < 0 || x >= o.lv.w || y >= o.lv.h {
					continue
				}
				o.tex.store(o.lv, y*o.lv.w+x, out[i])
			}
		}
	}
}

var _ gpu.Device = (*Device)(nil)
