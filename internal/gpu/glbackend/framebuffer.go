package glbackend

import (
	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/normanking/physicam/internal/gpu"
)

// CreateFramebuffer creates a framebuffer object with no attachments.
func (d *Device) CreateFramebuffer() (uint32, error) {
	var id uint32
	if d.caps.DirectStateAccess {
		gl.CreateFramebuffers(1, &id)
		return id, nil
	}
	gl.GenFramebuffers(1, &id)
	// The object only exists once it has been bound.
	d.withFramebuffer(id, func() {})
	return id, nil
}

// DeleteFramebuffer deletes the framebuffer.
func (d *Device) DeleteFramebuffer(id uint32) {
	gl.DeleteFramebuffers(1, &id)
}

// IsFramebuffer reports whether id names a framebuffer object.
func (d *Device) IsFramebuffer(id uint32) bool {
	return id != 0 && gl.IsFramebuffer(id)
}

// withFramebuffer binds fb to both targets for fn and restores the previous
// draw and read bindings afterwards.
func (d *Device) withFramebuffer(fb uint32, fn func()) {
	var draw, read int32
	gl.GetIntegerv(gl.DRAW_FRAMEBUFFER_BINDING, &draw)
	gl.GetIntegerv(gl.READ_FRAMEBUFFER_BINDING, &read)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb)
	fn()
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, uint32(draw))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, uint32(read))
}

// FramebufferTexture attaches level 0 of tex, or detaches when tex is 0,
// and returns the completeness status.
func (d *Device) FramebufferTexture(fb uint32, att gpu.Attachment, tex uint32) gpu.FramebufferStatus {
	if fb == 0 {
		return gpu.FramebufferUnsupported
	}
	if d.caps.DirectStateAccess {
		gl.NamedFramebufferTexture(fb, uint32(att), tex, 0)
		return gpu.FramebufferStatus(gl.CheckNamedFramebufferStatus(fb, gl.FRAMEBUFFER))
	}
	var status uint32
	d.withFramebuffer(fb, func() {
		gl.FramebufferTexture(gl.FRAMEBUFFER, uint32(att), tex, 0)
		status = gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	})
	return gpu.FramebufferStatus(status)
}

// BindFramebuffer binds fb to target.
func (d *Device) BindFramebuffer(target gpu.FramebufferTarget, fb uint32) {
	gl.BindFramebuffer(uint32(target), fb)
}

// DrawBuffers sets the color outputs of the bound draw framebuffer.
func (d *Device) DrawBuffers(atts []gpu.Attachment) {
	if len(atts) == 0 {
		gl.DrawBuffer(gl.NONE)
		return
	}
	bufs := make([]uint32, len(atts))
	for i, a := range atts {
		bufs[i] = uint32(a)
	}
	gl.DrawBuffers(int32(len(bufs)), &bufs[0])
}

// Viewport sets the viewport.
func (d *Device) Viewport(x, y, w, h int) {
	gl.Viewport(int32(x), int32(y), int32(w), int32(h))
}

// DrawFullscreen draws one triangle covering the viewport. The vertex
// shader derives positions from gl_VertexID, so the vertex array is empty.
func (d *Device) DrawFullscreen() {
	gl.BindVertexArray(d.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
}
