package gpu

import "fmt"

// RenderTarget is a texture that passes render into and later stages
// sample from. It is reference counted: the creator holds the first
// reference and every additional holder calls Retain.
type RenderTarget struct {
	dev  Device
	id   uint32
	desc TextureDesc
	refs int
}

// NewRenderTarget allocates a texture with clamp-to-edge wrapping and
// linear filtering (trilinear when mipmapped).
func NewRenderTarget(dev Device, desc TextureDesc) (*RenderTarget, error) {
	if desc.Type == 0 {
		desc.Type = Texture2D
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("render target size %dx%d must be positive", desc.Width, desc.Height)
	}
	if desc.Type == Texture3D && desc.Depth <= 0 {
		desc.Depth = 1
	}

	id, err := dev.CreateTexture(desc)
	if err != nil {
		return nil, fmt.Errorf("create %s %s texture: %w", desc.Type, desc.Format, err)
	}
	dev.SetSampler(id, SamplerFor(dev.Caps(), desc.Mipmaps))

	return &RenderTarget{dev: dev, id: id, desc: desc, refs: 1}, nil
}

// ID returns the texture handle, 0 once released.
func (rt *RenderTarget) ID() uint32 { return rt.id }

// Size returns width and height of level 0.
func (rt *RenderTarget) Size() (int, int) { return rt.desc.Width, rt.desc.Height }

// Desc returns the allocation parameters.
func (rt *RenderTarget) Desc() TextureDesc { return rt.desc }

// Format returns the internal format.
func (rt *RenderTarget) Format() Format { return rt.desc.Format }

// Levels returns the mip chain length.
func (rt *RenderTarget) Levels() int { return rt.desc.Levels() }

// Bind binds the texture to a sampling unit.
func (rt *RenderTarget) Bind(unit int) {
	rt.dev.BindTexture(unit, rt.id)
}

// GenerateMipmaps rebuilds levels 1..n from level 0.
func (rt *RenderTarget) GenerateMipmaps() {
	rt.dev.GenerateMipmaps(rt.id)
}

// Retain adds a holder.
func (rt *RenderTarget) Retain() *RenderTarget {
	rt.refs++
	return rt
}

// Release drops a holder and deletes the texture with the last one.
func (rt *RenderTarget) Release() {
	if rt == nil || rt.refs == 0 {
		return
	}
	rt.refs--
	if rt.refs == 0 {
		rt.dev.DeleteTexture(rt.id)
		rt.id = 0
	}
}

// Refs returns the number of holders.
func (rt *RenderTarget) Refs() int { return rt.refs }
