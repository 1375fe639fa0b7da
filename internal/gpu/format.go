package gpu

import "fmt"

// Format is a sized internal texture format. Values match the OpenGL enums.
type Format uint32

const (
	FormatR3G3B2       Format = 0x2A10
	FormatRGB4         Format = 0x804F
	FormatRGB5         Format = 0x8050
	FormatRGB8         Format = 0x8051
	FormatRGB10        Format = 0x8052
	FormatRGB12        Format = 0x8053
	FormatRGB16        Format = 0x8054
	FormatRGBA2        Format = 0x8055
	FormatRGBA4        Format = 0x8056
	FormatRGB5A1       Format = 0x8057
	FormatRGBA8        Format = 0x8058
	FormatRGB10A2      Format = 0x8059
	FormatRGBA12       Format = 0x805A
	FormatRGBA16       Format = 0x805B
	FormatR8           Format = 0x8229
	FormatR16          Format = 0x822A
	FormatRG8          Format = 0x822B
	FormatRG16         Format = 0x822C
	FormatR16F         Format = 0x822D
	FormatR32F         Format = 0x822E
	FormatRG16F        Format = 0x822F
	FormatRG32F        Format = 0x8230
	FormatR8I          Format = 0x8231
	FormatR8UI         Format = 0x8232
	FormatR16I         Format = 0x8233
	FormatR16UI        Format = 0x8234
	FormatR32I         Format = 0x8235
	FormatR32UI        Format = 0x8236
	FormatRG8I         Format = 0x8237
	FormatRG8UI        Format = 0x8238
	FormatRG16I        Format = 0x8239
	FormatRG16UI       Format = 0x823A
	FormatRG32I        Format = 0x823B
	FormatRG32UI       Format = 0x823C
	FormatRGBA32UI     Format = 0x8D70
	FormatRGB32UI      Format = 0x8D71
	FormatRGBA16UI     Format = 0x8D76
	FormatRGB16UI      Format = 0x8D77
	FormatRGBA8UI      Format = 0x8D7C
	FormatRGB8UI       Format = 0x8D7D
	FormatRGBA32I      Format = 0x8D82
	FormatRGB32I       Format = 0x8D83
	FormatRGBA16I      Format = 0x8D88
	FormatRGB16I       Format = 0x8D89
	FormatRGBA8I       Format = 0x8D8E
	FormatRGB8I        Format = 0x8D8F
	FormatRGB16F       Format = 0x881B
	FormatRGB32F       Format = 0x8815
	FormatRGBA16F      Format = 0x881A
	FormatRGBA32F      Format = 0x8814
	FormatR8SNorm      Format = 0x8F94
	FormatRG8SNorm     Format = 0x8F95
	FormatRGB8SNorm    Format = 0x8F96
	FormatRGBA8SNorm   Format = 0x8F97
	FormatR16SNorm     Format = 0x8F98
	FormatRG16SNorm    Format = 0x8F99
	FormatRGB16SNorm   Format = 0x8F9A
	FormatRGBA16SNorm  Format = 0x8F9B
	FormatRGB10A2UI    Format = 0x906F
	FormatSRGB8        Format = 0x8C41
	FormatR11FG11FB10F Format = 0x8C3A
	FormatRGB9E5       Format = 0x8C3D

	FormatDepth16          Format = 0x81A5
	FormatDepth24          Format = 0x81A6
	FormatDepth32F         Format = 0x8CAC
	FormatDepth24Stencil8  Format = 0x88F0
	FormatDepth32FStencil8 Format = 0x8CAD

	FormatCompressedRed  Format = 0x8225
	FormatCompressedRG   Format = 0x8226
	FormatCompressedRGB  Format = 0x84ED
	FormatCompressedRGBA Format = 0x84EE
)

// Unsized pixel transfer formats used for legacy allocation.
const (
	BaseRed          uint32 = 0x1903
	BaseRG           uint32 = 0x8227
	BaseRGB          uint32 = 0x1907
	BaseRGBA         uint32 = 0x1908
	BaseDepth        uint32 = 0x1902
	BaseDepthStencil uint32 = 0x84F9
)

// Pixel transfer types.
const (
	TypeUnsignedByte uint32 = 0x1401
	TypeFloat        uint32 = 0x1406
	TypeHalfFloat    uint32 = 0x140B
	TypeInt          uint32 = 0x1404
	TypeUnsignedInt  uint32 = 0x1405
	TypeUInt24_8     uint32 = 0x84FA
)

// BaseFormat returns the unsized format used when the texture is allocated
// without texture storage and the driver cannot be queried for it.
func (f Format) BaseFormat() uint32 {
	switch f {
	case FormatR8, FormatR8SNorm, FormatR16, FormatR16SNorm, FormatR16F, FormatR32F,
		FormatR8I, FormatR8UI, FormatR16I, FormatR16UI, FormatR32I, FormatR32UI, FormatCompressedRed:
		return BaseRed
	case FormatRG8, FormatRG8SNorm, FormatRG16, FormatRG16SNorm, FormatRG16F, FormatRG32F,
		FormatRG8I, FormatRG8UI, FormatRG16I, FormatRG16UI, FormatRG32I, FormatRG32UI, FormatCompressedRG:
		return BaseRG
	case FormatRGB5A1, FormatRGBA2, FormatRGBA4, FormatRGBA8, FormatRGBA8SNorm, FormatRGB10A2,
		FormatRGB10A2UI, FormatRGBA12, FormatRGBA16, FormatRGBA16SNorm, FormatRGBA16F, FormatRGBA32F,
		FormatRGBA8I, FormatRGBA8UI, FormatRGBA16I, FormatRGBA16UI, FormatRGBA32I, FormatRGBA32UI,
		FormatCompressedRGBA:
		return BaseRGBA
	case FormatDepth16, FormatDepth24, FormatDepth32F:
		return BaseDepth
	case FormatDepth24Stencil8, FormatDepth32FStencil8:
		return BaseDepthStencil
	default:
		return BaseRGB
	}
}

// PixelType returns the transfer type matching the format's storage.
func (f Format) PixelType() uint32 {
	switch f {
	case FormatR16F, FormatRG16F, FormatRGB16F, FormatRGBA16F:
		return TypeHalfFloat
	case FormatR32F, FormatRG32F, FormatRGB32F, FormatRGBA32F, FormatDepth32F,
		FormatR11FG11FB10F, FormatRGB9E5:
		return TypeFloat
	case FormatR8I, FormatR16I, FormatR32I, FormatRG8I, FormatRG16I, FormatRG32I,
		FormatRGB8I, FormatRGB16I, FormatRGB32I, FormatRGBA8I, FormatRGBA16I, FormatRGBA32I:
		return TypeInt
	case FormatR8UI, FormatR16UI, FormatR32UI, FormatRG8UI, FormatRG16UI, FormatRG32UI,
		FormatRGB8UI, FormatRGB16UI, FormatRGB32UI, FormatRGBA8UI, FormatRGBA16UI, FormatRGBA32UI,
		FormatRGB10A2UI, FormatDepth24:
		return TypeUnsignedInt
	case FormatDepth24Stencil8:
		return TypeUInt24_8
	default:
		return TypeUnsignedByte
	}
}

// Channels returns the number of components stored per texel.
func (f Format) Channels() int {
	switch f.BaseFormat() {
	case BaseRed, BaseDepth:
		return 1
	case BaseRG, BaseDepthStencil:
		return 2
	case BaseRGBA:
		return 4
	default:
		return 3
	}
}

// IsDepth reports whether the format has a depth component.
func (f Format) IsDepth() bool {
	b := f.BaseFormat()
	return b == BaseDepth || b == BaseDepthStencil
}

// IsStencil reports whether the format has a stencil component.
func (f Format) IsStencil() bool {
	return f.BaseFormat() == BaseDepthStencil
}

// IsCompressed reports whether the format is one of the generic compressed formats.
func (f Format) IsCompressed() bool {
	switch f {
	case FormatCompressedRed, FormatCompressedRG, FormatCompressedRGB, FormatCompressedRGBA:
		return true
	}
	return false
}

var formatNames = map[Format]string{
	FormatR8: "R8", FormatR16F: "R16F", FormatR32F: "R32F",
	FormatRG8: "RG8", FormatRG16F: "RG16F", FormatRG32F: "RG32F",
	FormatRGB8: "RGB8", FormatRGB16F: "RGB16F", FormatRGB32F: "RGB32F",
	FormatRGBA8: "RGBA8", FormatRGBA16F: "RGBA16F", FormatRGBA32F: "RGBA32F",
	FormatDepth16: "DEPTH16", FormatDepth24: "DEPTH24", FormatDepth32F: "DEPTH32F",
	FormatDepth24Stencil8: "DEPTH24_STENCIL8", FormatDepth32FStencil8: "DEPTH32F_STENCIL8",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("Format(0x%04X)", uint32(f))
}

// TextureType is the texture target.
type TextureType uint32

const (
	Texture1D TextureType = 0x0DE0
	Texture2D TextureType = 0x0DE1
	Texture3D TextureType = 0x806F
)

func (t TextureType) String() string {
	switch t {
	case Texture1D:
		return "1D"
	case Texture2D:
		return "2D"
	case Texture3D:
		return "3D"
	}
	return fmt.Sprintf("TextureType(0x%04X)", uint32(t))
}

// Attachment is a framebuffer attachment point.
type Attachment uint32

const (
	ColorAttachment0       Attachment = 0x8CE0
	DepthAttachment        Attachment = 0x8D00
	StencilAttachment      Attachment = 0x8D20
	DepthStencilAttachment Attachment = 0x821A
)

// MaxColorAttachments is the number of color attachment points.
const MaxColorAttachments = 16

// ColorAttachment returns the i-th color attachment point.
func ColorAttachment(i int) Attachment {
	return ColorAttachment0 + Attachment(i)
}

// IsColor reports whether a is one of the color attachment points.
func (a Attachment) IsColor() bool {
	return a >= ColorAttachment0 && a < ColorAttachment0+MaxColorAttachments
}

// ColorIndex returns i for ColorAttachment(i), or -1.
func (a Attachment) ColorIndex() int {
	if !a.IsColor() {
		return -1
	}
	return int(a - ColorAttachment0)
}

func (a Attachment) String() string {
	switch {
	case a.IsColor():
		return fmt.Sprintf("COLOR%d", a.ColorIndex())
	case a == DepthAttachment:
		return "DEPTH"
	case a == StencilAttachment:
		return "STENCIL"
	case a == DepthStencilAttachment:
		return "DEPTH_STENCIL"
	}
	return fmt.Sprintf("Attachment(0x%04X)", uint32(a))
}

// FramebufferStatus is the result of a completeness check.
type FramebufferStatus uint32

const (
	FramebufferComplete                    FramebufferStatus = 0x8CD5
	FramebufferIncompleteAttachment        FramebufferStatus = 0x8CD6
	FramebufferIncompleteMissingAttachment FramebufferStatus = 0x8CD7
	FramebufferIncompleteDrawBuffer        FramebufferStatus = 0x8CDB
	FramebufferUnsupported                 FramebufferStatus = 0x8CDD
)

func (s FramebufferStatus) String() string {
	switch s {
	case FramebufferComplete:
		return "complete"
	case FramebufferIncompleteAttachment:
		return "incomplete attachment"
	case FramebufferIncompleteMissingAttachment:
		return "missing attachment"
	case FramebufferIncompleteDrawBuffer:
		return "incomplete draw buffer"
	case FramebufferUnsupported:
		return "unsupported"
	}
	return fmt.Sprintf("FramebufferStatus(0x%04X)", uint32(s))
}

// FramebufferTarget selects which binding point a framebuffer is bound to.
type FramebufferTarget uint32

const (
	FramebufferBoth FramebufferTarget = 0x8D40
	FramebufferRead FramebufferTarget = 0x8CA8
	FramebufferDraw FramebufferTarget = 0x8CA9
)
