package backend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zsolt-donca/scanout/internal/drm"
)

func TestScanFirstObservation(t *testing.T) {
	card := newFakeCard(100)
	hdmiConnector(1, 1, 200, 0b1, card, defaultModes()...)

	b, err := New(card)
	require.NoError(t, err)

	require.NoError(t, b.ScanConnectors())

	displays := b.Displays()
	require.Len(t, displays, 1)
	require.Equal(t, StateDisconnected, displays[0].State())
	require.Equal(t, "HDMI-A-1", displays[0].Name())
	require.Equal(t, uint32(1), displays[0].ConnectorID())
	require.Empty(t, drainEvents(b), "observing an unplugged connector must not emit events")
}

func TestScanNoChangeProducesNoEvents(t *testing.T) {
	card := newFakeCard(100)
	conn := hdmiConnector(1, 1, 200, 0b1, card, defaultModes()...)
	card.plug(conn)

	b, err := New(card)
	require.NoError(t, err)

	require.NoError(t, b.ScanConnectors())
	require.Equal(t, []EventKind{EventDisplayAdd}, drainEvents(b))

	// Nothing changed; two more scans stay silent.
	require.NoError(t, b.ScanConnectors())
	require.NoError(t, b.ScanConnectors())
	require.Empty(t, drainEvents(b))
}

func TestScanPlugThenUnplug(t *testing.T) {
	card := newFakeCard(100)
	conn := hdmiConnector(1, 1, 200, 0b1, card, defaultModes()...)

	b, err := New(card)
	require.NoError(t, err)

	require.NoError(t, b.ScanConnectors())
	d := b.Displays()[0]

	card.plug(conn)
	require.NoError(t, b.ScanConnectors())
	require.Equal(t, StateNeedsModeset, d.State())
	require.Equal(t, []EventKind{EventDisplayAdd}, drainEvents(b))

	require.NoError(t, b.Modeset(d, "preferred"))
	require.Equal(t, StateConnected, d.State())

	card.unplug(conn)
	require.NoError(t, b.ScanConnectors())
	require.Equal(t, StateDisconnected, d.State())
	require.Equal(t, []EventKind{EventDisplayRem}, drainEvents(b))
}

func TestScanGrowsTableMonotonically(t *testing.T) {
	card := newFakeCard(100, 101, 102)
	hdmiConnector(1, 1, 200, 0b1, card, defaultModes()...)

	b, err := New(card)
	require.NoError(t, err)

	require.NoError(t, b.ScanConnectors())
	require.Len(t, b.Displays(), 1)

	hdmiConnector(2, 2, 201, 0b10, card, defaultModes()...)
	hdmiConnector(3, 3, 202, 0b100, card, defaultModes()...)
	require.NoError(t, b.ScanConnectors())
	require.Len(t, b.Displays(), 3)

	// Fewer reported connectors never shrink the table.
	card.connectors = card.connectors[:1]
	require.NoError(t, b.ScanConnectors())
	require.Len(t, b.Displays(), 3)
}

func TestScanSkipsFailingConnector(t *testing.T) {
	card := newFakeCard(100, 101)
	conn1 := hdmiConnector(1, 1, 200, 0b1, card, defaultModes()...)
	conn2 := hdmiConnector(2, 2, 201, 0b10, card, defaultModes()...)
	card.plug(conn1)
	card.plug(conn2)
	card.failConnector[1] = true

	b, err := New(card)
	require.NoError(t, err)

	require.NoError(t, b.ScanConnectors())

	displays := b.Displays()
	require.Len(t, displays, 2)
	require.Equal(t, StateInvalid, displays[0].State(), "failing connector's slot stays untouched")
	require.Equal(t, StateNeedsModeset, displays[1].State())
	require.Equal(t, []EventKind{EventDisplayAdd}, drainEvents(b))
}

func TestScanAbortsOnResourceFailure(t *testing.T) {
	card := newFakeCard(100)
	conn := hdmiConnector(1, 1, 200, 0b1, card, defaultModes()...)
	card.plug(conn)

	b, err := New(card)
	require.NoError(t, err)

	card.failResources = true
	require.Error(t, b.ScanConnectors())
	require.Empty(t, b.Displays(), "failed scan must not mutate state")
	require.Empty(t, drainEvents(b))
}

func TestIllegalTransitionPanics(t *testing.T) {
	d := &Display{state: StateInvalid}
	require.Panics(t, func() { d.transition(StateConnected) })

	d2 := &Display{state: StateDisconnected}
	require.Panics(t, func() { d2.transition(StateDisconnected) })
}

func TestConnectorNameStamping(t *testing.T) {
	card := newFakeCard(100)
	card.encoders[200] = &drm.Encoder{ID: 200, PossibleCrtcs: 0b1}
	card.addConnector(&drm.Connector{
		ID:       7,
		Type:     drm.ConnectorEDP,
		TypeID:   1,
		Encoders: []uint32{200},
		Modes:    defaultModes(),
	})

	b, err := New(card)
	require.NoError(t, err)
	require.NoError(t, b.ScanConnectors())
	require.Equal(t, "eDP-1", b.Displays()[0].Name())
}
