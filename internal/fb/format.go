package fb

import "github.com/srg/fbshell/internal/emu"

// PixelFormat describes where each color channel lives inside a 32-bit
// pixel. The offsets come from the framebuffer's reported bitfield layout;
// hard-coding an order silently swaps channels on devices that differ, so
// the format is always queried (or explicitly constructed in tests).
type PixelFormat struct {
	RedShift   uint8
	GreenShift uint8
	BlueShift  uint8
}

// BGRA is the layout most PC framebuffers report: blue in the lowest byte
// of a little-endian 0xAARRGGBB word.
var BGRA = PixelFormat{RedShift: 16, GreenShift: 8, BlueShift: 0}

// RGBA has red in the lowest byte. Seen on some ARM display controllers.
var RGBA = PixelFormat{RedShift: 0, GreenShift: 8, BlueShift: 16}

// Pack encodes a color as the 32-bit word the device expects. The word is
// stored little-endian into the mapped region.
func (f PixelFormat) Pack(c emu.Color) uint32 {
	return uint32(c.R)<<f.RedShift | uint32(c.G)<<f.GreenShift | uint32(c.B)<<f.BlueShift
}
