package backend

import (
	"fmt"

	"github.com/zsolt-donca/scanout/internal/drm"
	"github.com/zsolt-donca/scanout/internal/logger"
)

// Modeset configures an output that is awaiting its modeset: it picks
// a timing mode per request, claims a free CRTC, builds the render
// surface and shows the first frame. Any failure rolls the display
// back to disconnected and queues a rem event, so the next hotplug
// scan (or a corrected request) can retry cleanly.
func (b *Backend) Modeset(d *Display, request string) error {
	if err := b.modeset(d, request); err != nil {
		d.clearConfig()
		if d.state == StateNeedsModeset {
			d.transition(StateDisconnected)
		}
		b.pushEvent(d, EventDisplayRem)
		return fmt.Errorf("modeset %s: %w", d.name, err)
	}
	return nil
}

func (b *Backend) modeset(d *Display, request string) error {
	conn, err := b.card.Connector(d.connID)
	if err != nil {
		return err
	}
	if conn.Connection != drm.Connected || len(conn.Modes) == 0 {
		return fmt.Errorf("connector reports no usable modes")
	}

	d.modes = append([]drm.ModeInfo(nil), conn.Modes...)

	// Snapshot whatever pipeline currently drives this connector so
	// teardown can put it back.
	if conn.CurrentEncoder != 0 {
		if enc, err := b.card.Encoder(conn.CurrentEncoder); err == nil && enc.CrtcID != 0 {
			d.savedCrtc, _ = b.card.Crtc(enc.CrtcID)
		}
	}

	mode, err := selectMode(d.modes, d.savedCrtc, request)
	if err != nil {
		return err
	}

	res, err := b.card.Resources()
	if err != nil {
		return err
	}
	if err := b.allocCrtc(d, conn, res); err != nil {
		return err
	}

	surf, err := b.renderer.createSurface(mode.Hdisplay, mode.Vdisplay)
	if err != nil {
		b.releaseCrtc(d)
		return err
	}

	d.activeMode = mode
	d.surf = surf
	d.transition(StateConnected)

	logger.Info("configured output", "output", d.name, "mode", mode, "crtc", d.crtcID)

	if err := b.showFirstFrame(d); err != nil {
		logger.Error("initial frame", "output", d.name, "err", err)
	}
	return nil
}

// allocCrtc assigns a free CRTC compatible with one of the connector's
// encoders. CRTC compatibility is a per-encoder bitmask over the
// card's CRTC list; the shared taken mask arbitrates between outputs.
func (b *Backend) allocCrtc(d *Display, conn *drm.Connector, res *drm.Resources) error {
	for _, encID := range conn.Encoders {
		enc, err := b.card.Encoder(encID)
		if err != nil {
			logger.Debug("skipping encoder", "id", encID, "err", err)
			continue
		}

		for i := range res.Crtcs {
			bit := uint32(1) << uint(i)
			if enc.PossibleCrtcs&bit == 0 || b.takenCrtcs&bit != 0 {
				continue
			}
			b.takenCrtcs |= bit
			d.crtcID = res.Crtcs[i]
			d.crtcBit = i
			return nil
		}
	}
	return fmt.Errorf("%w (%d encoders tried)", ErrNoFreeCrtc, len(conn.Encoders))
}

// releaseCrtc returns the display's CRTC to the free pool.
func (b *Backend) releaseCrtc(d *Display) {
	if d.crtcBit < 0 {
		return
	}
	b.takenCrtcs &^= uint32(1) << uint(d.crtcBit)
	d.crtcBit = -1
	d.crtcID = 0
}
