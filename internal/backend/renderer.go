package backend

import (
	"errors"
	"fmt"
)

// Pixel layout for scanout surfaces: 32-bit packed XRGB.
const (
	surfaceBPP   = 32
	surfaceDepth = 24
)

// Renderer allocates the CPU-mapped, double-buffered surfaces outputs
// render into. One per backend; every display shares it.
type Renderer struct {
	card Card
}

// newRenderer verifies the card can back surfaces at all before
// anything else is acquired.
func newRenderer(card Card) (*Renderer, error) {
	if !card.SupportsDumbBuffers() {
		return nil, errors.New("device does not support dumb buffers")
	}
	return &Renderer{card: card}, nil
}

// Free releases the renderer. Safe on a nil or never-initialized
// renderer.
func (r *Renderer) Free() {
	if r == nil {
		return
	}
	r.card = nil
}

// buffer is one half of a surface's double buffering. fb is the
// card-catalog framebuffer id, registered lazily on first present and
// removed when the buffer is destroyed.
type buffer struct {
	handle uint32
	pitch  uint32
	data   []byte
	fb     uint32
}

// surface is an off-screen drawable: two scanout-capable buffers
// swapped on every present.
type surface struct {
	width, height uint16
	bufs          [2]*buffer
	back          int
}

// createSurface builds a double-buffered drawable. On any failure
// everything acquired so far is released, in reverse order, before
// returning.
func (r *Renderer) createSurface(width, height uint16) (*surface, error) {
	s := &surface{width: width, height: height}
	for i := range s.bufs {
		buf, err := r.createBuffer(width, height)
		if err != nil {
			r.destroySurface(s)
			return nil, fmt.Errorf("create surface %dx%d: %w", width, height, err)
		}
		s.bufs[i] = buf
	}
	return s, nil
}

func (r *Renderer) createBuffer(width, height uint16) (*buffer, error) {
	db, err := r.card.CreateDumb(width, height, surfaceBPP)
	if err != nil {
		return nil, err
	}
	data, err := r.card.MapDumb(db.Handle, db.Size)
	if err != nil {
		if derr := r.card.DestroyDumb(db.Handle); derr != nil {
			err = errors.Join(err, derr)
		}
		return nil, err
	}
	return &buffer{
		handle: db.Handle,
		pitch:  db.Pitch,
		data:   data,
	}, nil
}

// destroySurface releases both buffers. Partially built surfaces are
// fine; nil buffers are skipped.
func (r *Renderer) destroySurface(s *surface) {
	if s == nil {
		return
	}
	for i, buf := range s.bufs {
		if buf == nil {
			continue
		}
		r.destroyBuffer(buf)
		s.bufs[i] = nil
	}
}

// destroyBuffer unwinds one buffer in reverse acquisition order: the
// cached framebuffer registration goes away with the buffer itself.
func (r *Renderer) destroyBuffer(buf *buffer) {
	if buf.fb != 0 {
		_ = r.card.RmFB(buf.fb)
		buf.fb = 0
	}
	if buf.data != nil {
		_ = r.card.UnmapDumb(buf.data)
		buf.data = nil
	}
	_ = r.card.DestroyDumb(buf.handle)
}

// fbFor resolves the framebuffer id for a buffer, registering one on
// first use. The id lives on the buffer until the buffer is destroyed.
func (r *Renderer) fbFor(buf *buffer, width, height uint16) (uint32, error) {
	if buf.fb != 0 {
		return buf.fb, nil
	}
	id, err := r.card.AddFB(width, height, surfaceDepth, surfaceBPP, buf.pitch, buf.handle)
	if err != nil {
		return 0, err
	}
	buf.fb = id
	return id, nil
}

// backBuffer returns the buffer the next frame renders into.
func (s *surface) backBuffer() *buffer {
	return s.bufs[s.back]
}

// swap makes the just-rendered buffer the front buffer.
func (s *surface) swap() {
	s.back ^= 1
}
