// Package drm is a pure-Go wire layer for the kernel mode-setting
// interface: resource enumeration, CRTC configuration, dumb buffers,
// framebuffer registration, page flips and their completion events.
package drm

import (
	"fmt"
	"os"
	"unsafe"
)

// Device capabilities (DRM_CAP_*).
const (
	capDumbBuffer = 0x1
)

type sysGetCap struct {
	capability uint64
	value      uint64
}

// DRM_IOWR(0x0C, struct drm_get_cap)
var ioctlGetCap = iowr(unsafe.Sizeof(sysGetCap{}), 0x0C)

// Device wraps an open DRM card node. A Device constructed with
// NewDevice borrows the file and never closes it.
type Device struct {
	file  *os.File
	owned bool
}

// Open opens the card node at path.
func Open(path string) (*Device, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open drm device: %w", err)
	}
	return &Device{file: file, owned: true}, nil
}

// OpenCard opens /dev/dri/card<n>.
func OpenCard(n int) (*Device, error) {
	return Open(fmt.Sprintf("/dev/dri/card%d", n))
}

// NewDevice wraps an already-open card file. The caller keeps
// ownership of the descriptor.
func NewDevice(file *os.File) *Device {
	return &Device{file: file}
}

// Close releases the card node if this Device opened it; borrowed
// descriptors are left alone.
func (d *Device) Close() error {
	if !d.owned {
		return nil
	}
	return d.file.Close()
}

// Path returns the underlying device path.
func (d *Device) Path() string {
	return d.file.Name()
}

func (d *Device) fd() uintptr {
	return d.file.Fd()
}

func (d *Device) cap(id uint64) (uint64, error) {
	arg := &sysGetCap{capability: id}
	if err := ioctl(d.fd(), ioctlGetCap, uintptr(unsafe.Pointer(arg))); err != nil {
		return 0, fmt.Errorf("get capability %#x: %w", id, err)
	}
	return arg.value, nil
}

// SupportsDumbBuffers reports whether the card can allocate
// CPU-mappable scanout buffers.
func (d *Device) SupportsDumbBuffers() bool {
	value, err := d.cap(capDumbBuffer)
	return err == nil && value != 0
}
