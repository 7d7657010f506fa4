// Package emu defines the boundary between the console host and the
// terminal-emulation engine. The host feeds the engine raw PTY bytes and
// translated input, and decides when the engine flushes pixels to the
// display; everything behind this interface (escape handling, glyph layout)
// is the engine's business.
//
// Engines are NOT safe for concurrent use. The host serializes every call
// behind a single mutex with per-call critical sections.
package emu

// Color is a device-independent RGB value. The pixel surface decides how it
// is packed into framebuffer memory.
type Color struct {
	R, G, B uint8
}

// DrawTarget is the pixel sink an engine renders into during Flush.
// Coordinates outside [0,width)x[0,height) are the caller's bug; DrawPixel
// does not bounds-check.
type DrawTarget interface {
	// Size returns the target dimensions in pixels. Constant after creation.
	Size() (width, height int)
	// DrawPixel stores one pixel. Single 4-byte store on real hardware.
	DrawPixel(x, y int, c Color)
}

// FontManager rasterizes one glyph cell at a time. Implementations decide
// cell geometry; the engine derives its row/column grid from CellSize.
type FontManager interface {
	CellSize() (width, height int)
	DrawGlyph(target DrawTarget, x, y int, r rune, fg, bg Color)
}

// MouseInput carries the one pointer event this host forwards: wheel motion.
// Scroll preserves the sign and magnitude of the device delta (positive is
// away from the user).
type MouseInput struct {
	Scroll int
}

// PtyWriter accepts engine-generated bytes destined for the shell: status
// report replies and encoded keyboard input. Delivery is best-effort; the
// engine never learns about write failures.
type PtyWriter func(data []byte)

// Engine is the terminal-emulation contract the console session drives.
type Engine interface {
	// Process applies a chunk of PTY output. Chunk boundaries carry no
	// meaning: the engine must produce identical state whether a byte
	// sequence arrives whole or split arbitrarily.
	Process(data []byte)

	// HandleKeyboard consumes one byte of a legacy scancode stream
	// (set-1 make/break codes, 0xE0-prefixed for extended keys).
	HandleKeyboard(scancode byte)

	// HandleMouse consumes a pointer event.
	HandleMouse(input MouseInput)

	// Flush renders all pending changes to the draw target.
	Flush()

	// Rows and Columns report the cell grid, valid once a font manager is
	// installed. Used for the kernel window-size negotiation.
	Rows() int
	Columns() int

	// Configuration. Called once during session construction, before any
	// of the methods above.
	SetAutoFlush(auto bool)
	SetScrollSpeed(speed int)
	SetColorCacheSize(size int)
	SetHistorySize(lines int)
	SetPtyWriter(w PtyWriter)
	SetFontManager(fm FontManager)
}
