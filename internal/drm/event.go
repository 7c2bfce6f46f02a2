package drm

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Page flip flags.
const pageFlipEvent = 0x01

// Completion event types read from the card fd (DRM_EVENT_*).
const (
	eventVblank       = 0x01
	eventFlipComplete = 0x02
)

type (
	// struct drm_event
	sysEvent struct {
		typ    uint32
		length uint32
	}

	// struct drm_event_vblank; also carries flip completions
	sysEventVblank struct {
		typ    uint32
		length uint32

		userData      uint64
		tvSec, tvUsec uint32
		sequence      uint32
		crtcID        uint32
	}
)

const sysEventSize = int(unsafe.Sizeof(sysEvent{}))

// FlipHandler receives the user data attached to a completed page
// flip.
type FlipHandler func(userData uint64)

// PumpEvents reads and dispatches pending completion events. It blocks
// if nothing is queued, so call it only when the fd is readable (or go
// through WaitEvents).
func (d *Device) PumpEvents(onFlip FlipHandler) error {
	var buf [1024]byte
	n, err := d.file.Read(buf[:])
	if err != nil {
		return fmt.Errorf("read drm events: %w", err)
	}
	parseEvents(buf[:n], onFlip)
	return nil
}

// WaitEvents waits up to timeout for the card fd to become readable
// and pumps the events that arrived. Returns nil if the timeout
// elapses with no events.
func (d *Device) WaitEvents(timeout time.Duration, onFlip FlipHandler) error {
	ms := int(timeout.Milliseconds())
	if ms <= 0 {
		ms = 1
	}

	fds := []unix.PollFd{{Fd: int32(d.fd()), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("poll drm fd: %w", err)
	}
	if n == 0 || fds[0].Revents&unix.POLLIN == 0 {
		return nil
	}
	return d.PumpEvents(onFlip)
}

// parseEvents walks the packed event records in buf. Records the core
// does not care about (vblank without user data consumers, etc.) are
// skipped by length.
func parseEvents(buf []byte, onFlip FlipHandler) {
	for off := 0; off+sysEventSize <= len(buf); {
		ev := (*sysEvent)(unsafe.Pointer(&buf[off]))
		length := int(ev.length)
		if length < sysEventSize || off+length > len(buf) {
			return
		}

		switch ev.typ {
		case eventFlipComplete, eventVblank:
			if length >= int(unsafe.Sizeof(sysEventVblank{})) && onFlip != nil {
				vb := (*sysEventVblank)(unsafe.Pointer(&buf[off]))
				onFlip(vb.userData)
			}
		}

		off += length
	}
}
