package drm

import (
	"golang.org/x/sys/unix"
)

// ioctl code layout (include/uapi/asm-generic/ioctl.h):
//
//  bits 31-30  direction (00 none, 01 write, 10 read, 11 read/write)
//  bits 29-16  size of the argument struct
//  bits 15-8   driver magic ('d' for DRM)
//  bits 7-0    function number

const (
	iocWrite = 0x1
	iocRead  = 0x2

	// DRM ioctl magic
	iocBase = 'd'
)

func ioc(dir, size uint32, nr uint8) uint32 {
	return dir<<30 | size<<16 | uint32(iocBase)<<8 | uint32(nr)
}

func iowr(size uintptr, nr uint8) uint32 {
	return ioc(iocRead|iocWrite, uint32(size), nr)
}

// ioctl issues the request, retrying on EINTR and EAGAIN the way
// libdrm's drmIoctl does.
func ioctl(fd uintptr, request uint32, arg uintptr) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(request), arg)
		switch errno {
		case 0:
			return nil
		case unix.EINTR, unix.EAGAIN:
			continue
		default:
			return errno
		}
	}
}
