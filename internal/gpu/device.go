// Package gpu is the thin graphics layer the post-processing chain is built
// on: render targets, framebuffers and programs over a Device.
//
// A Device is bound to the thread owning the graphics context. None of the
// types in this package synchronize; callers submit from one thread.
package gpu

import (
	"errors"
	"strings"
)

var (
	// ErrIncomplete is returned when a framebuffer fails its completeness check.
	ErrIncomplete = errors.New("framebuffer incomplete")
	// ErrCompile is returned when a program fails to compile or link.
	ErrCompile = errors.New("program compile failed")
)

// Optional extensions the backends know about.
const (
	ExtDirectStateAccess   = "GL_EXT_direct_state_access"
	ExtTextureStorage      = "GL_ARB_texture_storage"
	ExtInternalFormatQuery = "GL_ARB_internalformat_query2"
	ExtAnisotropicFilter   = "GL_EXT_texture_filter_anisotropic"
)

// Caps records which optional features the device can use. Every feature
// has a fallback path.
type Caps struct {
	DirectStateAccess   bool
	TextureStorage      bool
	InternalFormatQuery bool
	AnisotropicFilter   bool
	MaxAnisotropy       float32
}

// FromExtensions builds Caps from an extension list.
func FromExtensions(exts []string) Caps {
	var c Caps
	for _, e := range exts {
		switch strings.TrimSpace(e) {
		case ExtDirectStateAccess:
			c.DirectStateAccess = true
		case ExtTextureStorage:
			c.TextureStorage = true
		case ExtInternalFormatQuery:
			c.InternalFormatQuery = true
		case ExtAnisotropicFilter:
			c.AnisotropicFilter = true
		}
	}
	return c
}

// Without returns c with the named extensions switched off.
func (c Caps) Without(exts ...string) Caps {
	for _, e := range exts {
		switch e {
		case ExtDirectStateAccess:
			c.DirectStateAccess = false
		case ExtTextureStorage:
			c.TextureStorage = false
		case ExtInternalFormatQuery:
			c.InternalFormatQuery = false
		case ExtAnisotropicFilter:
			c.AnisotropicFilter = false
			c.MaxAnisotropy = 0
		}
	}
	return c
}

// Filter is a texture filtering mode.
type Filter uint32

const (
	FilterNearest            Filter = 0x2600
	FilterLinear             Filter = 0x2601
	FilterLinearMipmapLinear Filter = 0x2703
)

// WrapClampToEdge is the only wrap mode render targets use.
const WrapClampToEdge uint32 = 0x812F

// SamplerState is the filtering applied to a texture.
type SamplerState struct {
	MinFilter Filter
	MagFilter Filter
	// Anisotropy is used instead of plain linear filtering when non-zero.
	Anisotropy float32
}

// SamplerFor chooses the filtering for a render target. Anisotropic
// filtering is used when available, plain linear filtering otherwise.
func SamplerFor(c Caps, mipmaps bool) SamplerState {
	s := SamplerState{MinFilter: FilterLinear, MagFilter: FilterLinear}
	if mipmaps {
		s.MinFilter = FilterLinearMipmapLinear
	}
	if c.AnisotropicFilter && c.MaxAnisotropy > 1 {
		s.Anisotropy = c.MaxAnisotropy
	}
	return s
}

// TextureDesc describes a texture allocation.
type TextureDesc struct {
	Type    TextureType
	Format  Format
	Width   int
	Height  int
	Depth   int
	Mipmaps bool
}

// Levels returns the length of the mip chain.
func (d TextureDesc) Levels() int {
	if !d.Mipmaps {
		return 1
	}
	return MipLevels(d.Width, d.Height)
}

// MipLevels returns floor(log2(max(w,h)))+1.
func MipLevels(w, h int) int {
	m := w
	if h > m {
		m = h
	}
	n := 1
	for m > 1 {
		m >>= 1
		n++
	}
	return n
}

// Device is the set of graphics operations the render targets, framebuffers
// and programs are built on. Object ids are backend handles, 0 is never a
// valid texture or program and names the default framebuffer.
type Device interface {
	Caps() Caps

	CreateTexture(desc TextureDesc) (uint32, error)
	DeleteTexture(id uint32)
	IsTexture(id uint32) bool
	SetSampler(id uint32, s SamplerState)
	BindTexture(unit int, id uint32)
	GenerateMipmaps(id uint32)
	// NewTexture creates a 2D texture without mipmaps and fills level 0
	// with rgba, row by row.
	NewTexture(width, height int, format Format, rgba []float32) (uint32, error)
	// ReadTexels blocks until the texture level is available and returns
	// its RGBA texels row by row.
	ReadTexels(id uint32, level int) (w, h int, rgba []float32, err error)

	CreateFramebuffer() (uint32, error)
	DeleteFramebuffer(id uint32)
	IsFramebuffer(id uint32) bool
	FramebufferTexture(fb uint32, att Attachment, tex uint32) FramebufferStatus
	BindFramebuffer(target FramebufferTarget, fb uint32)
	// DrawBuffers sets the color outputs of the bound draw framebuffer.
	DrawBuffers(atts []Attachment)
	Viewport(x, y, w, h int)

	CreateProgram(name, vertexSrc, fragmentSrc string) (uint32, error)
	DeleteProgram(id uint32)
	UseProgram(id uint32)
	UniformLocation(program uint32, name string) int32
	Uniform1i(loc int32, v int32)
	Uniform1iv(loc int32, v []int32)
	Uniform1f(loc int32, v float32)
	Uniform1fv(loc int32, v []float32)
	Uniform2f(loc int32, x, y float32)
	Uniform3f(loc int32, x, y, z float32)

	// DrawFullscreen runs the bound program over the viewport.
	DrawFullscreen()
}
