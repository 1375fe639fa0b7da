// Package glbackend implements gpu.Device on OpenGL 4.1 core.
//
// Optional extensions are detected at startup. Direct state access, texture
// storage, internal format queries and anisotropic filtering each have a
// fallback, so the device runs on a bare 4.1 context. Without direct state
// access every object edit binds the object, makes the change and restores
// the previous binding.
//
// A Device must be created and used on the thread owning the GL context.
package glbackend

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/normanking/physicam/internal/gpu"
	"github.com/normanking/physicam/internal/logging"
)

const component = "glbackend"

// ExtARBDirectStateAccess provides the named object entry points the direct
// state access path calls.
const ExtARBDirectStateAccess = "GL_ARB_direct_state_access"

// Enums missing from the 4.1 core bindings.
const (
	textureMaxAnisotropy    = 0x84FE
	maxTextureMaxAnisotropy = 0x84FF
	textureImageFormat      = 0x828F
	textureImageType        = 0x8290
)

// Device is the OpenGL device.
type Device struct {
	caps     gpu.Caps
	log      *logging.Logger
	vao      uint32
	textures map[uint32]gpu.TextureDesc
	version  [2]int32
}

// Option configures a Device.
type Option func(*options)

type options struct {
	disabled []string
}

// WithoutExtensions forces the fallback path for the named extensions.
func WithoutExtensions(exts ...string) Option {
	return func(o *options) { o.disabled = append(o.disabled, exts...) }
}

// New initializes the GL bindings for the current context and probes the
// optional extensions.
func New(log *logging.Logger, opts ...Option) (*Device, error) {
	if log == nil {
		log = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gl init: %w", err)
	}

	d := &Device{
		log:      log,
		textures: make(map[uint32]gpu.TextureDesc),
	}
	gl.GetIntegerv(gl.MAJOR_VERSION, &d.version[0])
	gl.GetIntegerv(gl.MINOR_VERSION, &d.version[1])

	exts := Extensions()
	d.caps = gpu.FromExtensions(exts)
	d.caps.DirectStateAccess = d.caps.DirectStateAccess && d.hasNamedObjects(exts)
	if d.caps.AnisotropicFilter {
		gl.GetFloatv(maxTextureMaxAnisotropy, &d.caps.MaxAnisotropy)
	}
	d.caps = d.caps.Without(o.disabled...)

	gl.GenVertexArrays(1, &d.vao)

	log.Info(component, "OpenGL device ready", map[string]interface{}{
		"version":        fmt.Sprintf("%d.%d", d.version[0], d.version[1]),
		"renderer":       gl.GoStr(gl.GetString(gl.RENDERER)),
		"dsa":            d.caps.DirectStateAccess,
		"textureStorage": d.caps.TextureStorage,
		"formatQuery":    d.caps.InternalFormatQuery,
		"anisotropy":     d.caps.MaxAnisotropy,
	})
	return d, nil
}

// hasNamedObjects reports whether the ARB named object functions are loaded,
// either as an extension or through a 4.5 context.
func (d *Device) hasNamedObjects(exts []string) bool {
	if d.version[0] > 4 || (d.version[0] == 4 && d.version[1] >= 5) {
		return true
	}
	for _, e := range exts {
		if e == ExtARBDirectStateAccess {
			return true
		}
	}
	return false
}

// Extensions lists the extensions of the current context.
func Extensions() []string {
	var n int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &n)
	exts := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		exts = append(exts, gl.GoStr(gl.GetStringi(gl.EXTENSIONS, uint32(i))))
	}
	return exts
}

// Caps returns the detected capabilities.
func (d *Device) Caps() gpu.Caps { return d.caps }

// Destroy releases the vertex array used for fullscreen draws.
func (d *Device) Destroy() {
	gl.DeleteVertexArrays(1, &d.vao)
}

func bindingFor(target uint32) uint32 {
	switch target {
	case gl.TEXTURE_1D:
		return gl.TEXTURE_BINDING_1D
	case gl.TEXTURE_3D:
		return gl.TEXTURE_BINDING_3D
	default:
		return gl.TEXTURE_BINDING_2D
	}
}

func (d *Device) target(id uint32) uint32 {
	if desc, ok := d.textures[id]; ok {
		return uint32(desc.Type)
	}
	return gl.TEXTURE_2D
}

// withTexture binds id on the active unit for fn and restores the previous
// binding afterwards.
func (d *Device) withTexture(id uint32, fn func(target uint32)) {
	target := d.target(id)
	var prev int32
	gl.GetIntegerv(bindingFor(target), &prev)
	gl.BindTexture(target, id)
	fn(target)
	gl.BindTexture(target, uint32(prev))
}

func (d *Device) texParameteri(id uint32, pname uint32, v int32) {
	if d.caps.DirectStateAccess {
		gl.TextureParameteri(id, pname, v)
		return
	}
	d.withTexture(id, func(target uint32) { gl.TexParameteri(target, pname, v) })
}

func (d *Device) texParameterf(id uint32, pname uint32, v float32) {
	if d.caps.DirectStateAccess {
		gl.TextureParameterf(id, pname, v)
		return
	}
	d.withTexture(id, func(target uint32) { gl.TexParameterf(target, pname, v) })
}

// CreateTexture allocates an immutable mip chain with texture storage, or
// one TexImage call per level without it.
func (d *Device) CreateTexture(desc gpu.TextureDesc) (uint32, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return 0, fmt.Errorf("texture size %dx%d must be positive", desc.Width, desc.Height)
	}
	if desc.Type == gpu.Texture1D {
		desc.Height = 1
	}
	if desc.Type == gpu.Texture3D && desc.Depth <= 0 {
		desc.Depth = 1
	}

	target := uint32(desc.Type)
	var id uint32
	if d.caps.DirectStateAccess {
		gl.CreateTextures(target, 1, &id)
	} else {
		gl.GenTextures(1, &id)
	}
	if id == 0 {
		return 0, fmt.Errorf("create %s texture failed", desc.Type)
	}
	d.textures[id] = desc

	levels := int32(desc.Levels())
	w, h, depth := int32(desc.Width), int32(desc.Height), int32(desc.Depth)
	format := uint32(desc.Format)

	switch {
	case d.caps.DirectStateAccess && d.caps.TextureStorage:
		switch desc.Type {
		case gpu.Texture1D:
			gl.TextureStorage1D(id, levels, format, w)
		case gpu.Texture3D:
			gl.TextureStorage3D(id, levels, format, w, h, depth)
		default:
			gl.TextureStorage2D(id, levels, format, w, h)
		}
	case d.caps.TextureStorage:
		d.withTexture(id, func(target uint32) {
			switch desc.Type {
			case gpu.Texture1D:
				gl.TexStorage1D(target, levels, format, w)
			case gpu.Texture3D:
				gl.TexStorage3D(target, levels, format, w, h, depth)
			default:
				gl.TexStorage2D(target, levels, format, w, h)
			}
		})
	default:
		base, typ := d.transferFormat(target, desc.Format)
		d.withTexture(id, func(target uint32) {
			for l := int32(0); l < levels; l++ {
				lw, lh, ld := max32(w>>l, 1), max32(h>>l, 1), max32(depth>>l, 1)
				switch desc.Type {
				case gpu.Texture1D:
					gl.TexImage1D(target, l, int32(format), lw, 0, base, typ, nil)
				case gpu.Texture3D:
					gl.TexImage3D(target, l, int32(format), lw, lh, ld, 0, base, typ, nil)
				default:
					gl.TexImage2D(target, l, int32(format), lw, lh, 0, base, typ, nil)
				}
			}
		})
	}

	wrap := int32(gpu.WrapClampToEdge)
	d.texParameteri(id, gl.TEXTURE_WRAP_S, wrap)
	d.texParameteri(id, gl.TEXTURE_WRAP_T, wrap)
	d.texParameteri(id, gl.TEXTURE_WRAP_R, wrap)
	d.texParameteri(id, gl.TEXTURE_MAX_LEVEL, levels-1)
	d.SetSampler(id, gpu.SamplerFor(d.caps, desc.Mipmaps))

	if errCode := gl.GetError(); errCode != gl.NO_ERROR {
		d.DeleteTexture(id)
		return 0, fmt.Errorf("allocate %s %s texture %dx%d: gl error 0x%04X", desc.Format, desc.Type, w, h, errCode)
	}
	return id, nil
}

// transferFormat picks the pixel format and type for TexImage allocation.
// The driver is asked when it supports internal format queries.
func (d *Device) transferFormat(target uint32, f gpu.Format) (uint32, uint32) {
	base, typ := f.BaseFormat(), f.PixelType()
	if !d.caps.InternalFormatQuery {
		return base, typ
	}
	var qf, qt int32
	gl.GetInternalformativ(target, uint32(f), textureImageFormat, 1, &qf)
	gl.GetInternalformativ(target, uint32(f), textureImageType, 1, &qt)
	if qf != 0 {
		base = uint32(qf)
	}
	if qt != 0 {
		typ = uint32(qt)
	}
	return base, typ
}

// NewTexture creates a 2D texture without mipmaps and uploads rgba into it.
func (d *Device) NewTexture(width, height int, format gpu.Format, rgba []float32) (uint32, error) {
	if len(rgba) != width*height*4 {
		return 0, fmt.Errorf("texture data has %d values, want %d", len(rgba), width*height*4)
	}
	id, err := d.CreateTexture(gpu.TextureDesc{Type: gpu.Texture2D, Format: format, Width: width, Height: height})
	if err != nil {
		return 0, err
	}
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	if d.caps.DirectStateAccess {
		gl.TextureSubImage2D(id, 0, 0, 0, int32(width), int32(height), gl.RGBA, gl.FLOAT, gl.Ptr(rgba))
	} else {
		d.withTexture(id, func(target uint32) {
			gl.TexSubImage2D(target, 0, 0, 0, int32(width), int32(height), gl.RGBA, gl.FLOAT, gl.Ptr(rgba))
		})
	}
	return id, nil
}

// DeleteTexture deletes the texture.
func (d *Device) DeleteTexture(id uint32) {
	gl.DeleteTextures(1, &id)
	delete(d.textures, id)
}

// IsTexture reports whether id names a texture.
func (d *Device) IsTexture(id uint32) bool {
	return id != 0 && gl.IsTexture(id)
}

// SetSampler sets the filtering of a texture.
func (d *Device) SetSampler(id uint32, s gpu.SamplerState) {
	d.texParameteri(id, gl.TEXTURE_MIN_FILTER, int32(s.MinFilter))
	d.texParameteri(id, gl.TEXTURE_MAG_FILTER, int32(s.MagFilter))
	if s.Anisotropy > 0 && d.caps.AnisotropicFilter {
		d.texParameterf(id, textureMaxAnisotropy, s.Anisotropy)
	}
}

// BindTexture binds id to a texture unit.
func (d *Device) BindTexture(unit int, id uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(d.target(id), id)
}

// GenerateMipmaps fills the mip chain from level 0.
func (d *Device) GenerateMipmaps(id uint32) {
	if d.caps.DirectStateAccess {
		gl.GenerateTextureMipmap(id)
		return
	}
	d.withTexture(id, func(target uint32) { gl.GenerateMipmap(target) })
}

// ReadTexels reads a texture level back as RGBA floats. Depth textures
// are returned in the red channel. For 3D textures the first slice is
// returned.
func (d *Device) ReadTexels(id uint32, level int) (int, int, []float32, error) {
	desc, ok := d.textures[id]
	if !ok {
		return 0, 0, nil, fmt.Errorf("unknown texture %d", id)
	}
	if level < 0 || level >= desc.Levels() {
		return 0, 0, nil, fmt.Errorf("texture %d has no level %d", id, level)
	}
	w := max32(int32(desc.Width)>>level, 1)
	h := max32(int32(desc.Height)>>level, 1)
	depth := int32(1)
	if desc.Type == gpu.Texture3D {
		depth = max32(int32(desc.Depth)>>level, 1)
	}

	format, channels := uint32(gl.RGBA), int32(4)
	if desc.Format.IsDepth() {
		format, channels = gl.DEPTH_COMPONENT, 1
	}
	buf := make([]float32, w*h*depth*channels)

	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	if d.caps.DirectStateAccess {
		gl.GetTextureImage(id, int32(level), format, gl.FLOAT, int32(len(buf)*4), unsafe.Pointer(&buf[0]))
	} else {
		d.withTexture(id, func(target uint32) {
			gl.GetTexImage(target, int32(level), format, gl.FLOAT, unsafe.Pointer(&buf[0]))
		})
	}
	if errCode := gl.GetError(); errCode != gl.NO_ERROR {
		return 0, 0, nil, fmt.Errorf("read texture %d level %d: gl error 0x%04X", id, level, errCode)
	}

	n := int(w * h)
	if channels == 4 {
		return int(w), int(h), buf[:n*4], nil
	}
	rgba := make([]float32, n*4)
	for i := 0; i < n; i++ {
		rgba[i*4] = buf[i]
		rgba[i*4+3] = 1
	}
	return int(w), int(h), rgba, nil
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

var _ gpu.Device = (*Device)(nil)
