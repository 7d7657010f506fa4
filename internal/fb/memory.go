package fb

import (
	"encoding/binary"

	"github.com/srg/fbshell/internal/emu"
)

// Memory is a surface backed by an ordinary byte slice, laid out exactly
// like a packed 32bpp framebuffer (stride == width*4). It stands in for the
// device in tests.
type Memory struct {
	width  int
	height int
	format PixelFormat
	buf    []byte
}

// NewMemory allocates a width x height in-memory surface with the given
// channel layout.
func NewMemory(width, height int, format PixelFormat) *Memory {
	return &Memory{
		width:  width,
		height: height,
		format: format,
		buf:    make([]byte, width*height*4),
	}
}

func (m *Memory) Size() (int, int) {
	return m.width, m.height
}

func (m *Memory) DrawPixel(x, y int, c emu.Color) {
	off := (y*m.width + x) * 4
	binary.LittleEndian.PutUint32(m.buf[off:off+4], m.format.Pack(c))
}

// PixelAt returns the raw 32-bit word at (x, y).
func (m *Memory) PixelAt(x, y int) uint32 {
	off := (y*m.width + x) * 4
	return binary.LittleEndian.Uint32(m.buf[off : off+4])
}

// Bytes exposes the backing buffer for offset-level assertions.
func (m *Memory) Bytes() []byte {
	return m.buf
}
