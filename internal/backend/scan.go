package backend

import (
	"fmt"

	"github.com/zsolt-donca/scanout/internal/drm"
	"github.com/zsolt-donca/scanout/internal/logger"
)

// ScanConnectors polls the card's connectors and drives each output
// slot's lifecycle, queueing add/rem events on plug edges. A failed
// resource query aborts without touching state; a failed query for an
// individual connector only skips that slot.
func (b *Backend) ScanConnectors() error {
	res, err := b.card.Resources()
	if err != nil {
		return fmt.Errorf("scan connectors: %w", err)
	}

	// Grow the slot table to the largest connector count seen. Slots
	// are never removed so ids held by in-flight completions stay
	// valid.
	for len(b.displays) < len(res.Connectors) {
		b.displays = append(b.displays, &Display{
			id:       len(b.displays),
			state:    StateInvalid,
			crtcBit:  -1,
			renderer: b.renderer,
		})
	}

	for i, connID := range res.Connectors {
		d := b.displays[i]

		conn, err := b.card.Connector(connID)
		if err != nil {
			logger.Warn("skipping connector", "id", connID, "err", err)
			continue
		}

		if d.state == StateInvalid {
			d.transition(StateDisconnected)
			d.connID = connID
			d.name = conn.Name()
			logger.Debug("found connector", "output", d.name, "id", connID)
		}

		plugged := conn.Connection == drm.Connected
		switch {
		case d.state == StateDisconnected && plugged:
			d.transition(StateNeedsModeset)
			b.pushEvent(d, EventDisplayAdd)

		case d.state == StateConnected && !plugged:
			b.pushEvent(d, EventDisplayRem)
			if err := b.freeDisplay(d); err != nil {
				logger.Error("releasing output", "output", d.name, "err", err)
			}
			d.transition(StateDisconnected)
		}
	}

	return nil
}
