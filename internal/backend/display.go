package backend

import (
	"fmt"

	"github.com/zsolt-donca/scanout/internal/drm"
)

// State is one output slot's lifecycle position.
type State int

const (
	// StateInvalid marks a slot that has never been observed.
	StateInvalid State = iota
	// StateDisconnected marks a known, unplugged connector.
	StateDisconnected
	// StateNeedsModeset marks a plugged connector awaiting
	// configuration.
	StateNeedsModeset
	// StateConnected marks an output actively driving a pipeline.
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateInvalid:
		return "invalid"
	case StateDisconnected:
		return "disconnected"
	case StateNeedsModeset:
		return "needs-modeset"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// legalTransitions is the full lifecycle graph. Anything not listed
// here is a logic defect, not a runtime condition.
var legalTransitions = map[State][]State{
	StateInvalid:      {StateDisconnected},
	StateDisconnected: {StateNeedsModeset},
	StateNeedsModeset: {StateConnected, StateDisconnected},
	StateConnected:    {StateDisconnected},
}

// Display is one physical connector slot. Slots are created on first
// observation and persist for the backend's lifetime; the table only
// grows, so the integer id stays a stable reference for completion
// callbacks.
type Display struct {
	id    int
	state State

	connID uint32
	name   string

	crtcID  uint32
	crtcBit int // index into the card's CRTC list, -1 when none held

	modes      []drm.ModeInfo
	activeMode *drm.ModeInfo
	savedCrtc  *drm.Crtc // pre-existing pipeline config, restored on teardown

	surf *surface

	flipPending bool
	cleanup     bool

	renderer *Renderer
}

// ID returns the display's stable slot id.
func (d *Display) ID() int { return d.id }

// State returns the display's lifecycle state.
func (d *Display) State() State { return d.state }

// Name returns the connector-derived name, e.g. "HDMI-A-1". Empty
// until the slot has been observed by a scan.
func (d *Display) Name() string { return d.name }

// ConnectorID returns the hardware connector id.
func (d *Display) ConnectorID() uint32 { return d.connID }

// CrtcID returns the assigned pipeline id, 0 when none is held.
func (d *Display) CrtcID() uint32 { return d.crtcID }

// Modes returns the hardware-reported mode list from the last modeset.
func (d *Display) Modes() []drm.ModeInfo { return d.modes }

// ActiveMode returns the currently driven mode, nil when not
// connected.
func (d *Display) ActiveMode() *drm.ModeInfo { return d.activeMode }

// transition moves the display along the lifecycle graph and panics on
// an illegal edge.
func (d *Display) transition(to State) {
	for _, s := range legalTransitions[d.state] {
		if s == to {
			d.state = to
			return
		}
	}
	panic(fmt.Sprintf("display %q: illegal state transition %s -> %s", d.name, d.state, to))
}

// clearConfig drops everything acquired by a modeset attempt. The
// connector identity and name survive; they belong to the slot.
func (d *Display) clearConfig() {
	d.modes = nil
	d.activeMode = nil
	d.savedCrtc = nil
	d.crtcID = 0
	d.flipPending = false
	d.cleanup = false
}
