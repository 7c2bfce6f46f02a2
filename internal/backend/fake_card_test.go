package backend

import (
	"errors"
	"time"

	"github.com/zsolt-donca/scanout/internal/drm"
)

// fakeCard scripts the hardware surface for tests. Page flips queue a
// completion that is delivered by the next PumpEvents/WaitEvents call,
// unless dropFlips is set.
type fakeCard struct {
	crtcs      []uint32
	connectors []*drm.Connector
	encoders   map[uint32]*drm.Encoder
	crtcState  map[uint32]*drm.Crtc

	failResources  bool
	failConnector  map[uint32]bool
	failCreateDumb bool
	noDumb         bool
	dropFlips      bool

	nextHandle uint32
	nextFB     uint32
	buffers    map[uint32]uint64 // live dumb handles -> size
	fbs        map[uint32]uint32 // live fb ids -> handle

	flips       []fakeFlip
	setCrtcs    []fakeSetCrtc
	completions []uint64
}

type fakeFlip struct {
	crtcID   uint32
	fbID     uint32
	userData uint64
}

type fakeSetCrtc struct {
	crtcID     uint32
	fbID       uint32
	x, y       uint32
	connectors []uint32
	mode       *drm.ModeInfo
}

func newFakeCard(crtcs ...uint32) *fakeCard {
	return &fakeCard{
		crtcs:         crtcs,
		encoders:      map[uint32]*drm.Encoder{},
		crtcState:     map[uint32]*drm.Crtc{},
		failConnector: map[uint32]bool{},
		buffers:       map[uint32]uint64{},
		fbs:           map[uint32]uint32{},
	}
}

func mkMode(w, h uint16, rate uint32) drm.ModeInfo {
	return drm.ModeInfo{Hdisplay: w, Vdisplay: h, Vrefresh: rate}
}

func (c *fakeCard) addConnector(conn *drm.Connector) {
	c.connectors = append(c.connectors, conn)
}

func (c *fakeCard) plug(conn *drm.Connector)   { conn.Connection = drm.Connected }
func (c *fakeCard) unplug(conn *drm.Connector) { conn.Connection = drm.Disconnected }

func (c *fakeCard) Resources() (*drm.Resources, error) {
	if c.failResources {
		return nil, errors.New("fake: resources unavailable")
	}
	res := &drm.Resources{Crtcs: c.crtcs}
	for _, conn := range c.connectors {
		res.Connectors = append(res.Connectors, conn.ID)
	}
	return res, nil
}

func (c *fakeCard) Connector(id uint32) (*drm.Connector, error) {
	if c.failConnector[id] {
		return nil, errors.New("fake: connector query failed")
	}
	for _, conn := range c.connectors {
		if conn.ID == id {
			cp := *conn
			cp.Modes = append([]drm.ModeInfo(nil), conn.Modes...)
			return &cp, nil
		}
	}
	return nil, errors.New("fake: no such connector")
}

func (c *fakeCard) Encoder(id uint32) (*drm.Encoder, error) {
	enc, ok := c.encoders[id]
	if !ok {
		return nil, errors.New("fake: no such encoder")
	}
	cp := *enc
	return &cp, nil
}

func (c *fakeCard) Crtc(id uint32) (*drm.Crtc, error) {
	crtc, ok := c.crtcState[id]
	if !ok {
		return nil, errors.New("fake: no such crtc")
	}
	cp := *crtc
	return &cp, nil
}

func (c *fakeCard) SetCrtc(crtcID, fbID, x, y uint32, connectors []uint32, mode *drm.ModeInfo) error {
	c.setCrtcs = append(c.setCrtcs, fakeSetCrtc{
		crtcID:     crtcID,
		fbID:       fbID,
		x:          x,
		y:          y,
		connectors: append([]uint32(nil), connectors...),
		mode:       mode,
	})
	return nil
}

func (c *fakeCard) AddFB(width, height uint16, depth, bpp uint8, pitch, handle uint32) (uint32, error) {
	c.nextFB++
	c.fbs[c.nextFB] = handle
	return c.nextFB, nil
}

func (c *fakeCard) RmFB(id uint32) error {
	if _, ok := c.fbs[id]; !ok {
		return errors.New("fake: no such framebuffer")
	}
	delete(c.fbs, id)
	return nil
}

func (c *fakeCard) PageFlip(crtcID, fbID uint32, userData uint64) error {
	c.flips = append(c.flips, fakeFlip{crtcID: crtcID, fbID: fbID, userData: userData})
	if !c.dropFlips {
		c.completions = append(c.completions, userData)
	}
	return nil
}

func (c *fakeCard) CreateDumb(width, height uint16, bpp uint32) (*drm.DumbBuffer, error) {
	if c.failCreateDumb {
		return nil, errors.New("fake: out of buffer memory")
	}
	c.nextHandle++
	pitch := uint32(width) * (bpp / 8)
	size := uint64(pitch) * uint64(height)
	c.buffers[c.nextHandle] = size
	return &drm.DumbBuffer{
		Handle: c.nextHandle,
		Pitch:  pitch,
		Size:   size,
		Width:  width,
		Height: height,
	}, nil
}

func (c *fakeCard) MapDumb(handle uint32, size uint64) ([]byte, error) {
	if _, ok := c.buffers[handle]; !ok {
		return nil, errors.New("fake: no such buffer")
	}
	return make([]byte, size), nil
}

func (c *fakeCard) UnmapDumb(data []byte) error { return nil }

func (c *fakeCard) DestroyDumb(handle uint32) error {
	if _, ok := c.buffers[handle]; !ok {
		return errors.New("fake: no such buffer")
	}
	delete(c.buffers, handle)
	return nil
}

func (c *fakeCard) SupportsDumbBuffers() bool { return !c.noDumb }

func (c *fakeCard) PumpEvents(onFlip drm.FlipHandler) error {
	for _, userData := range c.completions {
		onFlip(userData)
	}
	c.completions = nil
	return nil
}

func (c *fakeCard) WaitEvents(timeout time.Duration, onFlip drm.FlipHandler) error {
	return c.PumpEvents(onFlip)
}

// hdmiConnector builds a plugged-in connector wired to one encoder
// that can reach the CRTCs in possible.
func hdmiConnector(id, typeID, encID uint32, possible uint32, card *fakeCard, modes ...drm.ModeInfo) *drm.Connector {
	card.encoders[encID] = &drm.Encoder{ID: encID, PossibleCrtcs: possible}
	conn := &drm.Connector{
		ID:         id,
		Type:       drm.ConnectorHDMIA,
		TypeID:     typeID,
		Connection: drm.Disconnected,
		Encoders:   []uint32{encID},
		Modes:      modes,
	}
	card.addConnector(conn)
	return conn
}

func defaultModes() []drm.ModeInfo {
	return []drm.ModeInfo{
		mkMode(1920, 1080, 60),
		mkMode(1920, 1080, 75),
		mkMode(1280, 720, 60),
	}
}

// drainEvents empties the backend queue and returns the kinds seen.
func drainEvents(b *Backend) []EventKind {
	var kinds []EventKind
	for {
		ev, ok := b.NextEvent()
		if !ok {
			return kinds
		}
		kinds = append(kinds, ev.Kind)
	}
}
