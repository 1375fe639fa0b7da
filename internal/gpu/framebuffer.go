package gpu

import (
	"fmt"

	"github.com/normanking/physicam/internal/logging"
)

// FrameBuffer is an off-screen render destination made of render targets
// at attachment points. Color attachments are written in the order they
// were attached: the first attached color target receives fragment output
// location 0, the next location 1 and so on.
type FrameBuffer struct {
	dev    Device
	log    *logging.Logger
	id     uint32
	width  int
	height int

	targets   map[Attachment]*RenderTarget
	drawOrder []Attachment
}

// NewFrameBuffer creates an empty framebuffer of the given size.
func NewFrameBuffer(dev Device, width, height int, log *logging.Logger) (*FrameBuffer, error) {
	if log == nil {
		log = logging.NewNop()
	}
	id, err := dev.CreateFramebuffer()
	if err != nil {
		return nil, fmt.Errorf("create framebuffer: %w", err)
	}
	return &FrameBuffer{
		dev:     dev,
		log:     log,
		id:      id,
		width:   width,
		height:  height,
		targets: make(map[Attachment]*RenderTarget),
	}, nil
}

// ID returns the framebuffer handle.
func (fb *FrameBuffer) ID() uint32 { return fb.id }

// Size returns the framebuffer size.
func (fb *FrameBuffer) Size() (int, int) { return fb.width, fb.height }

// Resize changes the size used for the viewport and for new attachments.
// Existing attachments are kept; callers re-populate them.
func (fb *FrameBuffer) Resize(width, height int) {
	fb.width, fb.height = width, height
}

// Attach binds rt at att and takes a reference to it. A target whose size
// differs from the framebuffer is attached with a warning. If the
// framebuffer is incomplete afterwards the previous attachment is restored
// and an error wrapping ErrIncomplete is returned.
func (fb *FrameBuffer) Attach(att Attachment, rt *RenderTarget) error {
	if rt == nil {
		return fmt.Errorf("attach %s: nil render target", att)
	}

	if w, h := rt.Size(); w != fb.width || h != fb.height {
		fb.log.Warn("framebuffer", "render target does not match framebuffer size", map[string]interface{}{
			"framebuffer": fb.id,
			"texture":     rt.ID(),
			"attachment":  att.String(),
			"fbSize":      fmt.Sprintf("%dx%d", fb.width, fb.height),
			"texSize":     fmt.Sprintf("%dx%d", w, h),
		})
	}

	status := fb.dev.FramebufferTexture(fb.id, att, rt.ID())
	if status != FramebufferComplete {
		var prev uint32
		if old := fb.targets[att]; old != nil {
			prev = old.ID()
		}
		fb.dev.FramebufferTexture(fb.id, att, prev)

		err := fmt.Errorf("%w: %s at %s (%s)", ErrIncomplete, rt.Format(), att, status)
		fb.log.Error("framebuffer", "framebuffer incomplete, cannot use it", err, map[string]interface{}{
			"framebuffer": fb.id,
			"texture":     rt.ID(),
		})
		return err
	}

	if old, ok := fb.targets[att]; ok {
		if old != rt {
			old.Release()
			rt.Retain()
		}
	} else {
		rt.Retain()
		if att.IsColor() {
			fb.drawOrder = append(fb.drawOrder, att)
		}
	}
	fb.targets[att] = rt
	return nil
}

// Detach removes the target at att and releases it.
func (fb *FrameBuffer) Detach(att Attachment) {
	rt, ok := fb.targets[att]
	if !ok {
		return
	}
	fb.dev.FramebufferTexture(fb.id, att, 0)
	delete(fb.targets, att)
	for i, a := range fb.drawOrder {
		if a == att {
			fb.drawOrder = append(fb.drawOrder[:i], fb.drawOrder[i+1:]...)
			break
		}
	}
	rt.Release()
}

// CreateAndAttach allocates a framebuffer sized target and attaches it.
// The returned target is owned by the caller (the framebuffer holds its
// own reference).
func (fb *FrameBuffer) CreateAndAttach(att Attachment, typ TextureType, format Format, mipmaps bool) (*RenderTarget, error) {
	rt, err := NewRenderTarget(fb.dev, TextureDesc{
		Type:    typ,
		Format:  format,
		Width:   fb.width,
		Height:  fb.height,
		Mipmaps: mipmaps,
	})
	if err != nil {
		return nil, err
	}
	if err := fb.Attach(att, rt); err != nil {
		rt.Release()
		return nil, err
	}
	return rt, nil
}

// Target returns the render target at att, or nil.
func (fb *FrameBuffer) Target(att Attachment) *RenderTarget {
	return fb.targets[att]
}

// DrawBuffers returns the color attachments in output order.
func (fb *FrameBuffer) DrawBuffers() []Attachment {
	return append([]Attachment(nil), fb.drawOrder...)
}

// Bind binds the framebuffer for reading and drawing and sets the draw
// buffers and the viewport.
func (fb *FrameBuffer) Bind() {
	fb.dev.BindFramebuffer(FramebufferBoth, fb.id)
	fb.applyDrawState()
}

// BindWrite binds the framebuffer for drawing only.
func (fb *FrameBuffer) BindWrite() {
	fb.dev.BindFramebuffer(FramebufferDraw, fb.id)
	fb.applyDrawState()
}

// BindRead binds the framebuffer for reading only.
func (fb *FrameBuffer) BindRead() {
	fb.dev.BindFramebuffer(FramebufferRead, fb.id)
}

func (fb *FrameBuffer) applyDrawState() {
	if len(fb.drawOrder) > 0 {
		fb.dev.DrawBuffers(fb.drawOrder)
	}
	fb.dev.Viewport(0, 0, fb.width, fb.height)
}

// Destroy releases all attachments and deletes the framebuffer.
func (fb *FrameBuffer) Destroy() {
	for att, rt := range fb.targets {
		rt.Release()
		delete(fb.targets, att)
	}
	fb.drawOrder = nil
	if fb.id != 0 {
		fb.dev.DeleteFramebuffer(fb.id)
		fb.id = 0
	}
}
