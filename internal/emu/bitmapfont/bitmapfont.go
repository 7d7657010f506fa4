// Package bitmapfont renders glyph cells through a golang.org/x/image
// font face. The default face is Inconsolata 8x16, a bitmap font that
// needs no TrueType rasterization at runtime.
package bitmapfont

import (
	"image"

	"github.com/cornelk/hashmap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"

	"github.com/srg/fbshell/internal/emu"
)

const replacementGlyph = '?'

// Manager implements emu.FontManager over a monospaced font.Face.
// Foreground/background blends for antialiased glyph edges are memoized in
// a bounded cache keyed by the (fg, bg, alpha) triple.
type Manager struct {
	face   font.Face
	width  int
	height int
	ascent int

	blends   *hashmap.Map[uint64, uint32]
	cacheCap int
}

// New returns a manager over the default Inconsolata regular face.
func New() *Manager {
	return NewWithFace(inconsolata.Regular8x16, 8, 16)
}

// NewWithFace wraps an arbitrary monospaced face with an explicit cell
// geometry (face metrics round unevenly for some bitmap fonts).
func NewWithFace(face font.Face, cellWidth, cellHeight int) *Manager {
	return &Manager{
		face:   face,
		width:  cellWidth,
		height: cellHeight,
		ascent: face.Metrics().Ascent.Ceil(),
		blends: hashmap.New[uint64, uint32](),
	}
}

// CellSize returns the glyph cell geometry in pixels.
func (m *Manager) CellSize() (int, int) {
	return m.width, m.height
}

// SetCacheSize bounds the blend cache. Zero disables caching.
func (m *Manager) SetCacheSize(size int) {
	m.cacheCap = size
}

// DrawGlyph paints one cell: background fill, then the glyph mask blended
// over it. Pixels are clipped to the cell so a misbehaving face cannot
// write outside the caller-guaranteed bounds.
func (m *Manager) DrawGlyph(target emu.DrawTarget, x, y int, r rune, fg, bg emu.Color) {
	for dy := 0; dy < m.height; dy++ {
		for dx := 0; dx < m.width; dx++ {
			target.DrawPixel(x+dx, y+dy, bg)
		}
	}

	dot := fixed.P(x, y+m.ascent)
	dr, mask, maskp, _, ok := m.face.Glyph(dot, r)
	if !ok {
		if dr, mask, maskp, _, ok = m.face.Glyph(dot, replacementGlyph); !ok {
			return
		}
	}

	cell := image.Rect(x, y, x+m.width, y+m.height)
	clipped := dr.Intersect(cell)

	for py := clipped.Min.Y; py < clipped.Max.Y; py++ {
		for px := clipped.Min.X; px < clipped.Max.X; px++ {
			_, _, _, a := mask.At(maskp.X+px-dr.Min.X, maskp.Y+py-dr.Min.Y).RGBA()
			switch {
			case a == 0:
				// background already painted
			case a >= 0xFFFF:
				target.DrawPixel(px, py, fg)
			default:
				target.DrawPixel(px, py, m.blend(fg, bg, uint8(a>>8)))
			}
		}
	}
}

// blend mixes fg over bg at the given alpha, memoized.
func (m *Manager) blend(fg, bg emu.Color, alpha uint8) emu.Color {
	key := uint64(pack(fg))<<32 | uint64(pack(bg))<<8 | uint64(alpha)
	if m.cacheCap > 0 {
		if packed, ok := m.blends.Get(key); ok {
			return unpack(packed)
		}
	}

	a := uint32(alpha)
	mix := func(f, b uint8) uint8 {
		return uint8((uint32(f)*a + uint32(b)*(255-a)) / 255)
	}
	out := emu.Color{R: mix(fg.R, bg.R), G: mix(fg.G, bg.G), B: mix(fg.B, bg.B)}

	if m.cacheCap > 0 {
		if m.blends.Len() >= m.cacheCap {
			// Cheap eviction: drop the whole cache when it outgrows the
			// budget. Steady-state palettes are tiny.
			m.blends = hashmap.New[uint64, uint32]()
		}
		m.blends.Set(key, pack(out))
	}
	return out
}

func pack(c emu.Color) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

func unpack(v uint32) emu.Color {
	return emu.Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}
