package backend

import (
	"time"

	"github.com/zsolt-donca/scanout/internal/drm"
)

// Card is the hardware surface the backend drives. *drm.Device is the
// real implementation; tests substitute a fake.
type Card interface {
	Resources() (*drm.Resources, error)
	Connector(id uint32) (*drm.Connector, error)
	Encoder(id uint32) (*drm.Encoder, error)
	Crtc(id uint32) (*drm.Crtc, error)
	SetCrtc(crtcID, fbID, x, y uint32, connectors []uint32, mode *drm.ModeInfo) error

	AddFB(width, height uint16, depth, bpp uint8, pitch, handle uint32) (uint32, error)
	RmFB(id uint32) error
	PageFlip(crtcID, fbID uint32, userData uint64) error

	CreateDumb(width, height uint16, bpp uint32) (*drm.DumbBuffer, error)
	MapDumb(handle uint32, size uint64) ([]byte, error)
	UnmapDumb(data []byte) error
	DestroyDumb(handle uint32) error
	SupportsDumbBuffers() bool

	PumpEvents(onFlip drm.FlipHandler) error
	WaitEvents(timeout time.Duration, onFlip drm.FlipHandler) error
}

var _ Card = (*drm.Device)(nil)
