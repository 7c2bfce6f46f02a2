package drm

import (
	"fmt"
	"unsafe"

	"launchpad.net/gommap"
)

// DumbBuffer is a CPU-mappable buffer object suitable for scanout.
type DumbBuffer struct {
	Handle uint32
	Pitch  uint32
	Size   uint64

	Width, Height uint16
}

type (
	sysCreateDumb struct {
		height, width uint32
		bpp           uint32
		flags         uint32

		// returned values
		handle uint32
		pitch  uint32
		size   uint64
	}

	sysMapDumb struct {
		handle uint32
		pad    uint32

		// fake offset for the subsequent mmap call
		offset uint64
	}

	sysDestroyDumb struct {
		handle uint32
	}
)

var (
	// DRM_IOWR(0xB2, struct drm_mode_create_dumb)
	ioctlModeCreateDumb = iowr(unsafe.Sizeof(sysCreateDumb{}), 0xB2)

	// DRM_IOWR(0xB3, struct drm_mode_map_dumb)
	ioctlModeMapDumb = iowr(unsafe.Sizeof(sysMapDumb{}), 0xB3)

	// DRM_IOWR(0xB4, struct drm_mode_destroy_dumb)
	ioctlModeDestroyDumb = iowr(unsafe.Sizeof(sysDestroyDumb{}), 0xB4)
)

// CreateDumb allocates a dumb buffer of the given geometry.
func (d *Device) CreateDumb(width, height uint16, bpp uint32) (*DumbBuffer, error) {
	create := &sysCreateDumb{
		width:  uint32(width),
		height: uint32(height),
		bpp:    bpp,
	}
	if err := ioctl(d.fd(), ioctlModeCreateDumb, uintptr(unsafe.Pointer(create))); err != nil {
		return nil, fmt.Errorf("create dumb buffer %dx%d: %w", width, height, err)
	}
	return &DumbBuffer{
		Handle: create.handle,
		Pitch:  create.pitch,
		Size:   create.size,
		Width:  width,
		Height: height,
	}, nil
}

// MapDumb maps a dumb buffer into the process, returning the pixel
// storage as a byte slice.
func (d *Device) MapDumb(handle uint32, size uint64) ([]byte, error) {
	mreq := &sysMapDumb{handle: handle}
	if err := ioctl(d.fd(), ioctlModeMapDumb, uintptr(unsafe.Pointer(mreq))); err != nil {
		return nil, fmt.Errorf("map dumb buffer: %w", err)
	}

	data, err := gommap.MapAt(0, d.fd(), int64(mreq.offset), int64(size),
		gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap dumb buffer: %w", err)
	}
	return data, nil
}

// UnmapDumb releases a mapping returned by MapDumb.
func (d *Device) UnmapDumb(data []byte) error {
	if err := gommap.MMap(data).UnsafeUnmap(); err != nil {
		return fmt.Errorf("munmap dumb buffer: %w", err)
	}
	return nil
}

// DestroyDumb frees a dumb buffer object.
func (d *Device) DestroyDumb(handle uint32) error {
	if err := ioctl(d.fd(), ioctlModeDestroyDumb, uintptr(unsafe.Pointer(&sysDestroyDumb{handle}))); err != nil {
		return fmt.Errorf("destroy dumb buffer: %w", err)
	}
	return nil
}
