package drm

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func flipEventBytes(userData uint64) []byte {
	ev := sysEventVblank{
		typ:      eventFlipComplete,
		length:   uint32(unsafe.Sizeof(sysEventVblank{})),
		userData: userData,
	}
	return append([]byte(nil), (*[unsafe.Sizeof(sysEventVblank{})]byte)(unsafe.Pointer(&ev))[:]...)
}

func TestParseEventsDispatchesFlips(t *testing.T) {
	buf := append(flipEventBytes(7), flipEventBytes(9)...)

	var got []uint64
	parseEvents(buf, func(userData uint64) { got = append(got, userData) })
	require.Equal(t, []uint64{7, 9}, got)
}

func TestParseEventsSkipsUnknownTypes(t *testing.T) {
	unknown := sysEventVblank{
		typ:    0x7F,
		length: uint32(unsafe.Sizeof(sysEventVblank{})),
	}
	buf := (*[unsafe.Sizeof(sysEventVblank{})]byte)(unsafe.Pointer(&unknown))[:]
	buf = append(append([]byte(nil), buf...), flipEventBytes(3)...)

	var got []uint64
	parseEvents(buf, func(userData uint64) { got = append(got, userData) })
	require.Equal(t, []uint64{3}, got)
}

func TestParseEventsStopsOnTruncatedRecord(t *testing.T) {
	buf := flipEventBytes(5)
	// Claim a longer record than the buffer holds.
	(*sysEvent)(unsafe.Pointer(&buf[0])).length = uint32(len(buf)) + 8

	called := false
	parseEvents(buf, func(uint64) { called = true })
	require.False(t, called)
}

func TestParseEventsIgnoresGarbageLength(t *testing.T) {
	buf := flipEventBytes(5)
	(*sysEvent)(unsafe.Pointer(&buf[0])).length = 0

	called := false
	parseEvents(buf, func(uint64) { called = true })
	require.False(t, called)
}
