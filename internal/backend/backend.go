// Package backend drives physical display outputs over the kernel
// mode-setting interface: it discovers connectors, negotiates timing
// modes, assigns the card's scarce CRTC pool, and runs a
// double-buffered present loop synchronized to page-flip completion
// events.
package backend

import (
	"errors"
	"time"

	"github.com/zsolt-donca/scanout/internal/logger"
)

// EventKind classifies backend events.
type EventKind int

const (
	// EventDisplayAdd reports a newly plugged output awaiting a
	// modeset.
	EventDisplayAdd EventKind = iota
	// EventDisplayRem reports an output that stopped being driven,
	// either by unplug or by a failed modeset.
	EventDisplayRem
	// EventRender asks the host to produce the next frame for an
	// output whose previous flip completed.
	EventRender
)

func (k EventKind) String() string {
	switch k {
	case EventDisplayAdd:
		return "display-add"
	case EventDisplayRem:
		return "display-rem"
	case EventRender:
		return "render"
	default:
		return "unknown"
	}
}

// Event pairs a display with what happened to it.
type Event struct {
	Display *Display
	Kind    EventKind
}

// DefaultFlipTimeout bounds how long teardown waits for a pending
// page-flip completion before force-releasing the output.
const DefaultFlipTimeout = 2 * time.Second

// Backend owns one card's output state. It is single-threaded and
// event-driven: the host calls PumpEvents when the card fd is
// readable and drains the event queue in between.
type Backend struct {
	card     Card
	renderer *Renderer

	// displays is a grow-only arena; a display's index is its stable
	// id, carried as page-flip user data instead of a raw reference.
	displays []*Display

	// takenCrtcs has bit i set iff the CRTC at index i of the card's
	// CRTC list is owned by a connected display.
	takenCrtcs uint32

	events []Event

	// FlipTimeout bounds the teardown wait for pending flips.
	FlipTimeout time.Duration
}

// New creates a backend over a borrowed card. The card descriptor is
// never closed by the backend.
func New(card Card) (*Backend, error) {
	renderer, err := newRenderer(card)
	if err != nil {
		return nil, err
	}
	return &Backend{
		card:        card,
		renderer:    renderer,
		FlipTimeout: DefaultFlipTimeout,
	}, nil
}

// Displays returns the output slot table. Slots persist once observed;
// check State to tell live outputs apart.
func (b *Backend) Displays() []*Display {
	return b.displays
}

// NextEvent pops the oldest pending event.
func (b *Backend) NextEvent() (Event, bool) {
	if len(b.events) == 0 {
		return Event{}, false
	}
	ev := b.events[0]
	b.events = b.events[1:]
	return ev, true
}

func (b *Backend) pushEvent(d *Display, kind EventKind) {
	logger.Debug("queueing event", "output", d.name, "kind", kind)
	b.events = append(b.events, Event{Display: d, Kind: kind})
}

// PumpEvents is the event-pump entry point. The host must call it
// whenever the card fd is readable; completion handling happens
// synchronously inside.
func (b *Backend) PumpEvents() error {
	return b.card.PumpEvents(b.handleFlip)
}

// WaitEvents waits up to timeout for completion events and pumps them.
func (b *Backend) WaitEvents(timeout time.Duration) error {
	return b.card.WaitEvents(timeout, b.handleFlip)
}

// Close tears down every connected output and releases the renderer.
// The card descriptor stays open; it belongs to the caller.
func (b *Backend) Close() error {
	var errs []error
	for _, d := range b.displays {
		if d.state != StateConnected {
			continue
		}
		if err := b.freeDisplay(d); err != nil {
			errs = append(errs, err)
		}
		d.transition(StateDisconnected)
	}
	b.renderer.Free()
	b.renderer = nil
	return errors.Join(errs...)
}
