// Package fb provides pixel-surface access to a memory-mapped Linux
// framebuffer device, plus an in-memory surface for tests. There is no back
// buffer: every DrawPixel store is immediately visible in the mapped region,
// so a display refresh mid-frame can tear. That is accepted here in exchange
// for not compositing.
package fb

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/srg/fbshell/internal/emu"
)

// <linux/fb.h> ioctls
const (
	fbioGetVScreenInfo = 0x4600
	fbioGetFScreenInfo = 0x4602
)

type fbBitfield struct {
	Offset   uint32
	Length   uint32
	MSBRight uint32
}

// fbVarScreenInfo mirrors struct fb_var_screeninfo.
type fbVarScreenInfo struct {
	XRes         uint32
	YRes         uint32
	XResVirtual  uint32
	YResVirtual  uint32
	XOffset      uint32
	YOffset      uint32
	BitsPerPixel uint32
	Grayscale    uint32
	Red          fbBitfield
	Green        fbBitfield
	Blue         fbBitfield
	Transp       fbBitfield
	NonStd       uint32
	Activate     uint32
	Height       uint32
	Width        uint32
	AccelFlags   uint32
	Pixclock     uint32
	LeftMargin   uint32
	RightMargin  uint32
	UpperMargin  uint32
	LowerMargin  uint32
	HsyncLen     uint32
	VsyncLen     uint32
	Sync         uint32
	Vmode        uint32
	Rotate       uint32
	Colorspace   uint32
	Reserved     [4]uint32
}

// fbFixScreenInfo mirrors struct fb_fix_screeninfo.
type fbFixScreenInfo struct {
	ID           [16]byte
	SmemStart    uint64
	SmemLen      uint32
	Type         uint32
	TypeAux      uint32
	Visual       uint32
	XPanStep     uint16
	YPanStep     uint16
	YWrapStep    uint16
	LineLength   uint32
	MmioStart    uint64
	MmioLen      uint32
	Accel        uint32
	Capabilities uint16
	Reserved     [2]uint16
}

// Surface owns a memory-mapped framebuffer. Implements emu.DrawTarget.
// Concurrent writers must serialize externally; the surface itself provides
// no synchronization beyond the mapping.
type Surface struct {
	file   *os.File
	mem    []byte
	width  int
	height int
	stride int // bytes per row, from the device's line_length
	format PixelFormat
}

// Open maps the framebuffer device at path. Fails if the device cannot be
// opened, queried, or mapped, or if it is not a 32-bit-per-pixel display.
func Open(path string, logger *logrus.Logger) (*Surface, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open framebuffer %s: %w", path, err)
	}

	var vinfo fbVarScreenInfo
	if err := ioctl(f.Fd(), fbioGetVScreenInfo, unsafe.Pointer(&vinfo)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("query framebuffer geometry on %s: %w", path, err)
	}

	var finfo fbFixScreenInfo
	if err := ioctl(f.Fd(), fbioGetFScreenInfo, unsafe.Pointer(&finfo)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("query framebuffer layout on %s: %w", path, err)
	}

	if vinfo.BitsPerPixel != 32 {
		_ = f.Close()
		return nil, fmt.Errorf("framebuffer %s reports %d bpp, want 32", path, vinfo.BitsPerPixel)
	}

	width := int(vinfo.XRes)
	height := int(vinfo.YRes)
	stride := int(finfo.LineLength)
	if stride == 0 {
		stride = width * 4
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, int(finfo.SmemLen), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap framebuffer %s (%d bytes): %w", path, finfo.SmemLen, err)
	}

	format := PixelFormat{
		RedShift:   uint8(vinfo.Red.Offset),
		GreenShift: uint8(vinfo.Green.Offset),
		BlueShift:  uint8(vinfo.Blue.Offset),
	}

	logger.WithFields(logrus.Fields{
		"device": path,
		"width":  width,
		"height": height,
		"stride": stride,
		"format": fmt.Sprintf("r@%d g@%d b@%d", format.RedShift, format.GreenShift, format.BlueShift),
	}).Info("Framebuffer mapped")

	return &Surface{
		file:   f,
		mem:    mem,
		width:  width,
		height: height,
		stride: stride,
		format: format,
	}, nil
}

// Size returns the display dimensions in pixels.
func (s *Surface) Size() (int, int) {
	return s.width, s.height
}

// Format returns the queried channel layout.
func (s *Surface) Format() PixelFormat {
	return s.format
}

// DrawPixel stores one pixel. The caller guarantees bounds; this is the
// unchecked fast path on the engine's render loop.
func (s *Surface) DrawPixel(x, y int, c emu.Color) {
	off := y*s.stride + x*4
	binary.LittleEndian.PutUint32(s.mem[off:off+4], s.format.Pack(c))
}

// Close unmaps the region and closes the device.
func (s *Surface) Close() error {
	var first error
	if s.mem != nil {
		if err := unix.Munmap(s.mem); err != nil {
			first = fmt.Errorf("munmap framebuffer: %w", err)
		}
		s.mem = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil && first == nil {
			first = fmt.Errorf("close framebuffer: %w", err)
		}
		s.file = nil
	}
	return first
}

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
