package backend

import (
	"fmt"
	"time"

	"github.com/zsolt-donca/scanout/internal/drm"
	"github.com/zsolt-donca/scanout/internal/logger"
)

// Frame is the drawing target handed out between BeginFrame and
// EndFrame: the back buffer's pixels in 32-bit packed XRGB, rows
// spaced Pitch bytes apart.
type Frame struct {
	Pix    []byte
	Pitch  int
	Width  int
	Height int
}

// Fill paints the whole frame one color.
func (f *Frame) Fill(r, g, b uint8) {
	for y := 0; y < f.Height; y++ {
		row := f.Pix[y*f.Pitch:]
		for x := 0; x < f.Width; x++ {
			row[x*4+0] = b
			row[x*4+1] = g
			row[x*4+2] = r
			row[x*4+3] = 0
		}
	}
}

// BeginFrame makes the output's back buffer the active render target.
// The caller draws into the returned frame, then submits it with
// EndFrame.
func (b *Backend) BeginFrame(d *Display) (*Frame, error) {
	if d.state != StateConnected {
		return nil, fmt.Errorf("begin frame %s: %w", d.name, ErrNotConnected)
	}
	buf := d.surf.backBuffer()
	return &Frame{
		Pix:    buf.data,
		Pitch:  int(buf.pitch),
		Width:  int(d.surf.width),
		Height: int(d.surf.height),
	}, nil
}

// EndFrame submits the rendered back buffer: it resolves the buffer's
// framebuffer id (registering one on first use), schedules an
// asynchronous page flip tagged with the display's slot id, and flags
// the flip as pending. At most one flip may be in flight per output.
func (b *Backend) EndFrame(d *Display) error {
	if d.state != StateConnected {
		return fmt.Errorf("end frame %s: %w", d.name, ErrNotConnected)
	}
	if d.flipPending {
		return fmt.Errorf("end frame %s: %w", d.name, ErrFlipPending)
	}

	buf := d.surf.backBuffer()
	fb, err := b.renderer.fbFor(buf, d.surf.width, d.surf.height)
	if err != nil {
		return fmt.Errorf("end frame %s: %w", d.name, err)
	}

	if err := b.card.PageFlip(d.crtcID, fb, uint64(d.id)); err != nil {
		return fmt.Errorf("end frame %s: %w", d.name, err)
	}

	d.flipPending = true
	d.surf.swap()
	return nil
}

// showFirstFrame points the freshly claimed pipeline at a cleared
// buffer and primes the flip loop.
func (b *Backend) showFirstFrame(d *Display) error {
	frame, err := b.BeginFrame(d)
	if err != nil {
		return err
	}
	frame.Fill(0, 0, 0)

	buf := d.surf.backBuffer()
	fb, err := b.renderer.fbFor(buf, d.surf.width, d.surf.height)
	if err != nil {
		return err
	}
	if err := b.card.SetCrtc(d.crtcID, fb, 0, 0, []uint32{d.connID}, d.activeMode); err != nil {
		return err
	}
	return b.EndFrame(d)
}

// handleFlip is the page-flip completion callback, invoked only from
// inside the event pump. It resolves the display through the slot
// table by id. It must never submit a new flip itself; it only toggles
// state and queues a render request for the host.
func (b *Backend) handleFlip(userData uint64) {
	id := int(userData)
	if id < 0 || id >= len(b.displays) {
		logger.Warn("flip completion for unknown display", "id", userData)
		return
	}
	d := b.displays[id]
	d.flipPending = false
	if !d.cleanup && d.state == StateConnected {
		b.pushEvent(d, EventRender)
	}
}

// freeDisplay tears down a connected output: it waits (bounded) for
// the pending flip so the completion cannot race the teardown, puts
// the pipeline back to its pre-existing configuration, and releases
// the surface, mode list and CRTC. No-op unless the display is
// connected. The caller moves the state machine afterwards.
func (b *Backend) freeDisplay(d *Display) error {
	if d == nil || d.state != StateConnected {
		return nil
	}

	var waitErr error

	// Suppress render events while draining the in-flight flip.
	d.cleanup = true
	deadline := time.Now().Add(b.FlipTimeout)
	for d.flipPending {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			logger.Error("pending page flip never completed, releasing output anyway",
				"output", d.name, "waited", b.FlipTimeout)
			d.flipPending = false
			waitErr = fmt.Errorf("free %s: %w", d.name, ErrFlipTimeout)
			break
		}
		if err := b.card.WaitEvents(remaining, b.handleFlip); err != nil {
			logger.Error("waiting for page flip", "output", d.name, "err", err)
			d.flipPending = false
			waitErr = fmt.Errorf("free %s: %w", d.name, err)
			break
		}
	}

	// Best-effort restore of whatever was scanned out before the
	// modeset.
	if c := d.savedCrtc; c != nil {
		var mode *drm.ModeInfo
		if c.ModeValid {
			mode = &c.Mode
		}
		_ = b.card.SetCrtc(c.ID, c.BufferID, c.X, c.Y, []uint32{d.connID}, mode)
	}

	b.renderer.destroySurface(d.surf)
	d.surf = nil
	b.releaseCrtc(d)
	d.clearConfig()

	return waitErr
}
