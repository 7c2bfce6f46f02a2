package drm

import (
	"fmt"
	"runtime"
	"unsafe"
)

const displayModeLen = 32

// Connection status values reported by the kernel for a connector.
const (
	Connected         = 1
	Disconnected      = 2
	UnknownConnection = 3
)

// ModeInfo mirrors struct drm_mode_modeinfo. Immutable once read from
// the kernel; comparable, so a saved CRTC mode can be matched
// structurally against a connector's mode list.
type ModeInfo struct {
	Clock uint32

	Hdisplay, HsyncStart, HsyncEnd, Htotal, Hskew uint16
	Vdisplay, VsyncStart, VsyncEnd, Vtotal, Vscan uint16

	Vrefresh uint32

	Flags uint32
	Type  uint32
	Name  [displayModeLen]byte
}

func (m ModeInfo) String() string {
	return fmt.Sprintf("%dx%d@%d", m.Hdisplay, m.Vdisplay, m.Vrefresh)
}

// Resources is the card-wide object id inventory.
type Resources struct {
	Fbs        []uint32
	Crtcs      []uint32
	Connectors []uint32
	Encoders   []uint32

	MinWidth, MaxWidth   uint32
	MinHeight, MaxHeight uint32
}

// Connector describes one physical output port.
type Connector struct {
	ID             uint32
	CurrentEncoder uint32
	Type           uint32
	TypeID         uint32
	Connection     uint32
	PhysWidth      uint32 // millimeters
	PhysHeight     uint32
	Subpixel       uint32

	Modes      []ModeInfo
	Encoders   []uint32
	Props      []uint32
	PropValues []uint64
}

// Name derives the canonical connector name, e.g. "HDMI-A-1".
func (c *Connector) Name() string {
	return fmt.Sprintf("%s-%d", ConnectorTypeName(c.Type), c.TypeID)
}

// Encoder routes one connector to the CRTCs it can be driven by.
type Encoder struct {
	ID             uint32
	Type           uint32
	CrtcID         uint32
	PossibleCrtcs  uint32
	PossibleClones uint32
}

// Crtc is one output pipeline's current configuration.
type Crtc struct {
	ID       uint32
	BufferID uint32 // scanned-out framebuffer; 0 = disabled

	X, Y          uint32 // position on the framebuffer
	Width, Height uint32
	GammaSize     uint32

	ModeValid bool
	Mode      ModeInfo
}

// Kernel ABI structs. Field order and sizes must match
// include/uapi/drm/drm_mode.h exactly.
type (
	sysResources struct {
		fbIDPtr        uint64
		crtcIDPtr      uint64
		connectorIDPtr uint64
		encoderIDPtr   uint64

		countFbs        uint32
		countCrtcs      uint32
		countConnectors uint32
		countEncoders   uint32

		minWidth, maxWidth   uint32
		minHeight, maxHeight uint32
	}

	sysGetConnector struct {
		encodersPtr   uint64
		modesPtr      uint64
		propsPtr      uint64
		propValuesPtr uint64

		countModes    uint32
		countProps    uint32
		countEncoders uint32

		encoderID       uint32
		connectorID     uint32
		connectorType   uint32
		connectorTypeID uint32

		connection        uint32
		mmWidth, mmHeight uint32
		subpixel          uint32
		pad               uint32
	}

	sysGetEncoder struct {
		id  uint32
		typ uint32

		crtcID uint32

		possibleCrtcs  uint32
		possibleClones uint32
	}

	sysCrtc struct {
		setConnectorsPtr uint64
		countConnectors  uint32

		id   uint32
		fbID uint32

		x, y uint32

		gammaSize uint32
		modeValid uint32
		mode      ModeInfo
	}

	sysFBCmd struct {
		fbID          uint32
		width, height uint32
		pitch         uint32
		bpp           uint32
		depth         uint32
		handle        uint32
	}

	sysPageFlip struct {
		crtcID   uint32
		fbID     uint32
		flags    uint32
		reserved uint32
		userData uint64
	}
)

var (
	// DRM_IOWR(0xA0, struct drm_mode_card_res)
	ioctlModeResources = iowr(unsafe.Sizeof(sysResources{}), 0xA0)

	// DRM_IOWR(0xA1, struct drm_mode_crtc)
	ioctlModeGetCrtc = iowr(unsafe.Sizeof(sysCrtc{}), 0xA1)

	// DRM_IOWR(0xA2, struct drm_mode_crtc)
	ioctlModeSetCrtc = iowr(unsafe.Sizeof(sysCrtc{}), 0xA2)

	// DRM_IOWR(0xA6, struct drm_mode_get_encoder)
	ioctlModeGetEncoder = iowr(unsafe.Sizeof(sysGetEncoder{}), 0xA6)

	// DRM_IOWR(0xA7, struct drm_mode_get_connector)
	ioctlModeGetConnector = iowr(unsafe.Sizeof(sysGetConnector{}), 0xA7)

	// DRM_IOWR(0xAE, struct drm_mode_fb_cmd)
	ioctlModeAddFB = iowr(unsafe.Sizeof(sysFBCmd{}), 0xAE)

	// DRM_IOWR(0xAF, unsigned int)
	ioctlModeRmFB = iowr(unsafe.Sizeof(uint32(0)), 0xAF)

	// DRM_IOWR(0xB0, struct drm_mode_crtc_page_flip)
	ioctlModePageFlip = iowr(unsafe.Sizeof(sysPageFlip{}), 0xB0)
)

// Resources queries the card's resource inventory. Array queries are
// two-phase: the first ioctl reports counts, the second fills buffers
// we allocate for them.
func (d *Device) Resources() (*Resources, error) {
	mres := &sysResources{}
	if err := ioctl(d.fd(), ioctlModeResources, uintptr(unsafe.Pointer(mres))); err != nil {
		return nil, fmt.Errorf("get card resources: %w", err)
	}

	var fbs, crtcs, connectors, encoders []uint32

	if mres.countFbs > 0 {
		fbs = make([]uint32, mres.countFbs)
		mres.fbIDPtr = uint64(uintptr(unsafe.Pointer(&fbs[0])))
	}
	if mres.countCrtcs > 0 {
		crtcs = make([]uint32, mres.countCrtcs)
		mres.crtcIDPtr = uint64(uintptr(unsafe.Pointer(&crtcs[0])))
	}
	if mres.countConnectors > 0 {
		connectors = make([]uint32, mres.countConnectors)
		mres.connectorIDPtr = uint64(uintptr(unsafe.Pointer(&connectors[0])))
	}
	if mres.countEncoders > 0 {
		encoders = make([]uint32, mres.countEncoders)
		mres.encoderIDPtr = uint64(uintptr(unsafe.Pointer(&encoders[0])))
	}

	if err := ioctl(d.fd(), ioctlModeResources, uintptr(unsafe.Pointer(mres))); err != nil {
		return nil, fmt.Errorf("get card resources: %w", err)
	}

	return &Resources{
		Fbs:        fbs,
		Crtcs:      crtcs,
		Connectors: connectors,
		Encoders:   encoders,
		MinWidth:   mres.minWidth,
		MaxWidth:   mres.maxWidth,
		MinHeight:  mres.minHeight,
		MaxHeight:  mres.maxHeight,
	}, nil
}

// Connector fetches one connector by id, including its mode list.
func (d *Device) Connector(id uint32) (*Connector, error) {
	conn := &sysGetConnector{connectorID: id}
	if err := ioctl(d.fd(), ioctlModeGetConnector, uintptr(unsafe.Pointer(conn))); err != nil {
		return nil, fmt.Errorf("get connector %d: %w", id, err)
	}

	var (
		encoders, props []uint32
		propValues      []uint64
	)

	// The kernel updates the mode list between the two calls; always
	// hand it at least one slot.
	if conn.countModes == 0 {
		conn.countModes = 1
	}
	modes := make([]ModeInfo, conn.countModes)
	conn.modesPtr = uint64(uintptr(unsafe.Pointer(&modes[0])))

	if conn.countProps > 0 {
		props = make([]uint32, conn.countProps)
		conn.propsPtr = uint64(uintptr(unsafe.Pointer(&props[0])))

		propValues = make([]uint64, conn.countProps)
		conn.propValuesPtr = uint64(uintptr(unsafe.Pointer(&propValues[0])))
	}

	if conn.countEncoders > 0 {
		encoders = make([]uint32, conn.countEncoders)
		conn.encodersPtr = uint64(uintptr(unsafe.Pointer(&encoders[0])))
	}

	if err := ioctl(d.fd(), ioctlModeGetConnector, uintptr(unsafe.Pointer(conn))); err != nil {
		return nil, fmt.Errorf("get connector %d: %w", id, err)
	}

	return &Connector{
		ID:             conn.connectorID,
		CurrentEncoder: conn.encoderID,
		Type:           conn.connectorType,
		TypeID:         conn.connectorTypeID,
		Connection:     conn.connection,
		PhysWidth:      conn.mmWidth,
		PhysHeight:     conn.mmHeight,
		Subpixel:       conn.subpixel,
		Modes:          modes[:min(int(conn.countModes), len(modes))],
		Encoders:       encoders,
		Props:          props,
		PropValues:     propValues,
	}, nil
}

// Encoder fetches one encoder by id.
func (d *Device) Encoder(id uint32) (*Encoder, error) {
	enc := &sysGetEncoder{id: id}
	if err := ioctl(d.fd(), ioctlModeGetEncoder, uintptr(unsafe.Pointer(enc))); err != nil {
		return nil, fmt.Errorf("get encoder %d: %w", id, err)
	}
	return &Encoder{
		ID:             enc.id,
		Type:           enc.typ,
		CrtcID:         enc.crtcID,
		PossibleCrtcs:  enc.possibleCrtcs,
		PossibleClones: enc.possibleClones,
	}, nil
}

// Crtc fetches one CRTC's current configuration, used to snapshot the
// pre-existing setup before taking a pipeline over.
func (d *Device) Crtc(id uint32) (*Crtc, error) {
	crtc := &sysCrtc{id: id}
	if err := ioctl(d.fd(), ioctlModeGetCrtc, uintptr(unsafe.Pointer(crtc))); err != nil {
		return nil, fmt.Errorf("get crtc %d: %w", id, err)
	}
	return &Crtc{
		ID:        crtc.id,
		BufferID:  crtc.fbID,
		X:         crtc.x,
		Y:         crtc.y,
		Width:     uint32(crtc.mode.Hdisplay),
		Height:    uint32(crtc.mode.Vdisplay),
		GammaSize: crtc.gammaSize,
		ModeValid: crtc.modeValid != 0,
		Mode:      crtc.mode,
	}, nil
}

// SetCrtc points a CRTC at a framebuffer and drives the given
// connectors with the mode. A nil mode disables the pipeline.
func (d *Device) SetCrtc(crtcID, fbID, x, y uint32, connectors []uint32, mode *ModeInfo) error {
	crtc := &sysCrtc{
		id:   crtcID,
		fbID: fbID,
		x:    x,
		y:    y,
	}
	if len(connectors) > 0 {
		crtc.setConnectorsPtr = uint64(uintptr(unsafe.Pointer(&connectors[0])))
		crtc.countConnectors = uint32(len(connectors))
	}
	if mode != nil {
		crtc.mode = *mode
		crtc.modeValid = 1
	}
	err := ioctl(d.fd(), ioctlModeSetCrtc, uintptr(unsafe.Pointer(crtc)))
	runtime.KeepAlive(connectors)
	if err != nil {
		return fmt.Errorf("set crtc %d: %w", crtcID, err)
	}
	return nil
}

// AddFB registers a framebuffer for the buffer object so a CRTC can
// scan it out, returning its catalog id.
func (d *Device) AddFB(width, height uint16, depth, bpp uint8, pitch, handle uint32) (uint32, error) {
	fb := &sysFBCmd{
		width:  uint32(width),
		height: uint32(height),
		pitch:  pitch,
		bpp:    uint32(bpp),
		depth:  uint32(depth),
		handle: handle,
	}
	if err := ioctl(d.fd(), ioctlModeAddFB, uintptr(unsafe.Pointer(fb))); err != nil {
		return 0, fmt.Errorf("add framebuffer: %w", err)
	}
	return fb.fbID, nil
}

// RmFB removes a framebuffer from the card's catalog.
func (d *Device) RmFB(id uint32) error {
	if err := ioctl(d.fd(), ioctlModeRmFB, uintptr(unsafe.Pointer(&id))); err != nil {
		return fmt.Errorf("remove framebuffer %d: %w", id, err)
	}
	return nil
}

// PageFlip schedules an asynchronous flip of the CRTC to the given
// framebuffer. Completion is reported as an event on the card fd
// carrying userData back.
func (d *Device) PageFlip(crtcID, fbID uint32, userData uint64) error {
	flip := &sysPageFlip{
		crtcID:   crtcID,
		fbID:     fbID,
		flags:    pageFlipEvent,
		userData: userData,
	}
	if err := ioctl(d.fd(), ioctlModePageFlip, uintptr(unsafe.Pointer(flip))); err != nil {
		return fmt.Errorf("page flip crtc %d: %w", crtcID, err)
	}
	return nil
}
