// Package grid is the default emulation engine behind the emu.Engine
// boundary: a glyph-cell grid with scrollback, rendered through a
// FontManager onto a DrawTarget.
//
// It is deliberately small. Printable runes, the basic control characters,
// autowrap, wheel scrollback, and a cursor-position report are handled;
// every other escape sequence is consumed and ignored rather than applied.
// Hosts that need full ANSI semantics plug a different engine into the same
// interface.
//
// Not safe for concurrent use; the console session serializes all calls.
package grid

import (
	"fmt"
	"unicode/utf8"

	"github.com/srg/fbshell/internal/emu"
)

var (
	defaultFg = emu.Color{R: 0xC8, G: 0xC8, B: 0xC8}
	defaultBg = emu.Color{R: 0x00, G: 0x00, B: 0x00}
)

const tabWidth = 8

type cell struct {
	r      rune
	fg, bg emu.Color
}

func blankCell() cell {
	return cell{r: ' ', fg: defaultFg, bg: defaultBg}
}

// Engine implements emu.Engine over a cell grid.
type Engine struct {
	target emu.DrawTarget
	font   emu.FontManager

	cellW, cellH int
	cols, rows   int

	screen   [][]cell
	dirty    [][]bool
	allDirty bool

	curX, curY           int
	wrapNext             bool // autowrap deferred until the next glyph
	drawnCurX, drawnCurY int  // cursor cell rendered during the last flush

	history    [][]cell
	historyCap int
	viewOffset int // lines scrolled back into history; 0 = live

	scrollSpeed    int
	autoFlush      bool
	colorCacheSize int
	ptyWriter      emu.PtyWriter

	// byte-stream state that must survive chunk boundaries
	pending    [utf8.UTFMax]byte
	pendingLen int
	parser     parserState

	kbd keyboardState
}

var _ emu.Engine = (*Engine)(nil)

// New creates an engine over the given draw target. The grid stays empty
// (zero rows and columns) until SetFontManager installs cell geometry.
func New(target emu.DrawTarget) *Engine {
	return &Engine{
		target:      target,
		scrollSpeed: 1,
		autoFlush:   true,
		historyCap:  0,
	}
}

// SetFontManager installs the rasterizer and sizes the cell grid to fill
// the target.
func (e *Engine) SetFontManager(fm emu.FontManager) {
	e.font = fm
	e.cellW, e.cellH = fm.CellSize()

	w, h := e.target.Size()
	e.cols = w / e.cellW
	e.rows = h / e.cellH

	e.screen = make([][]cell, e.rows)
	e.dirty = make([][]bool, e.rows)
	for y := range e.screen {
		e.screen[y] = blankRow(e.cols)
		e.dirty[y] = make([]bool, e.cols)
	}
	e.curX, e.curY = 0, 0
	e.allDirty = true
	e.applyColorCacheSize()
}

func blankRow(cols int) []cell {
	row := make([]cell, cols)
	for i := range row {
		row[i] = blankCell()
	}
	return row
}

func (e *Engine) Rows() int    { return e.rows }
func (e *Engine) Columns() int { return e.cols }

func (e *Engine) SetAutoFlush(auto bool)       { e.autoFlush = auto }
func (e *Engine) SetPtyWriter(w emu.PtyWriter) { e.ptyWriter = w }

func (e *Engine) SetScrollSpeed(speed int) {
	if speed > 0 {
		e.scrollSpeed = speed
	}
}

func (e *Engine) SetHistorySize(lines int) {
	if lines >= 0 {
		e.historyCap = lines
	}
}

// SetColorCacheSize forwards the budget to the font manager when it keeps a
// blend cache. A font manager without one just renders uncached. The value
// is remembered so setter order against SetFontManager does not matter.
func (e *Engine) SetColorCacheSize(size int) {
	e.colorCacheSize = size
	e.applyColorCacheSize()
}

func (e *Engine) applyColorCacheSize() {
	if e.colorCacheSize <= 0 {
		return
	}
	if sizer, ok := e.font.(interface{ SetCacheSize(int) }); ok {
		sizer.SetCacheSize(e.colorCacheSize)
	}
}

// Cursor returns the cursor cell position (column, row).
func (e *Engine) Cursor() (int, int) {
	return e.curX, e.curY
}

// ViewOffset reports how many history lines the view is scrolled back.
func (e *Engine) ViewOffset() int {
	return e.viewOffset
}

// HistoryLen reports the number of lines in scrollback.
func (e *Engine) HistoryLen() int {
	return len(e.history)
}

// Text returns the live screen contents, one string per row with trailing
// blanks trimmed. Test and debugging accessor.
func (e *Engine) Text() []string {
	lines := make([]string, e.rows)
	for y, row := range e.screen {
		end := len(row)
		for end > 0 && row[end-1].r == ' ' {
			end--
		}
		runes := make([]rune, end)
		for x := 0; x < end; x++ {
			runes[x] = row[x].r
		}
		lines[y] = string(runes)
	}
	return lines
}

// Process applies one chunk of PTY output. Chunk boundaries are invisible:
// escape-sequence and UTF-8 state persist across calls.
func (e *Engine) Process(data []byte) {
	if e.rows == 0 {
		return
	}

	// Fresh output snaps a scrolled-back view to the live screen.
	if e.viewOffset != 0 {
		e.viewOffset = 0
		e.allDirty = true
	}

	for _, b := range data {
		e.feed(b)
	}

	if e.autoFlush {
		e.Flush()
	}
}

func (e *Engine) feed(b byte) {
	if e.parser.consume(e, b) {
		e.pendingLen = 0
		return
	}

	if b < 0x20 || b == 0x7F {
		e.pendingLen = 0
		e.control(b)
		return
	}

	// UTF-8 assembly across chunk boundaries.
	e.pending[e.pendingLen] = b
	e.pendingLen++
	r, size := utf8.DecodeRune(e.pending[:e.pendingLen])
	if r == utf8.RuneError && size <= 1 {
		if e.pendingLen < utf8.UTFMax && !utf8.FullRune(e.pending[:e.pendingLen]) {
			return // wait for continuation bytes
		}
		// Malformed sequence: drop it.
		e.pendingLen = 0
		return
	}
	e.pendingLen = 0
	e.putRune(r)
}

func (e *Engine) control(b byte) {
	switch b {
	case '\n':
		e.lineFeed()
	case '\r':
		e.moveCursor(0, e.curY)
	case '\b':
		if e.curX > 0 {
			e.moveCursor(e.curX-1, e.curY)
		}
	case '\t':
		next := (e.curX/tabWidth + 1) * tabWidth
		if next >= e.cols {
			next = e.cols - 1
		}
		e.moveCursor(next, e.curY)
	case 0x07: // BEL: no bell on a framebuffer
	default:
		// Remaining C0 bytes (and DEL) carry no meaning here.
	}
}

func (e *Engine) putRune(r rune) {
	if e.wrapNext {
		e.moveCursor(0, e.curY)
		e.lineFeed()
	}

	e.screen[e.curY][e.curX] = cell{r: r, fg: defaultFg, bg: defaultBg}
	e.dirty[e.curY][e.curX] = true

	if e.curX+1 < e.cols {
		e.moveCursor(e.curX+1, e.curY)
	} else {
		// Deferred autowrap: stay on the last column until the next glyph
		// actually needs the following line.
		e.wrapNext = true
	}
}

func (e *Engine) lineFeed() {
	if e.curY+1 < e.rows {
		e.moveCursor(e.curX, e.curY+1)
		return
	}
	e.scrollUp()
}

// scrollUp pushes the top line into history and shifts the screen.
func (e *Engine) scrollUp() {
	if e.historyCap > 0 {
		e.history = append(e.history, e.screen[0])
		if len(e.history) > e.historyCap {
			e.history = e.history[1:]
		}
	}

	copy(e.screen, e.screen[1:])
	e.screen[e.rows-1] = blankRow(e.cols)
	e.allDirty = true
}

func (e *Engine) moveCursor(x, y int) {
	e.wrapNext = false
	e.dirty[e.curY][e.curX] = true
	e.curX, e.curY = clamp(x, 0, e.cols-1), clamp(y, 0, e.rows-1)
	e.dirty[e.curY][e.curX] = true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// HandleMouse applies wheel motion to the scrollback view.
func (e *Engine) HandleMouse(input emu.MouseInput) {
	if input.Scroll == 0 || e.rows == 0 {
		return
	}
	offset := clamp(e.viewOffset+input.Scroll*e.scrollSpeed, 0, len(e.history))
	if offset != e.viewOffset {
		e.viewOffset = offset
		e.allDirty = true
	}
}

// Flush renders pending changes. With a scrolled-back view every row is
// redrawn from the history window; live view redraws only dirty cells.
func (e *Engine) Flush() {
	if e.font == nil || e.rows == 0 {
		return
	}

	// Un-draw the previously rendered cursor if it moved.
	if e.drawnCurX != e.curX || e.drawnCurY != e.curY {
		e.dirty[e.drawnCurY][e.drawnCurX] = true
		e.dirty[e.curY][e.curX] = true
	}

	for y := 0; y < e.rows; y++ {
		row := e.visibleRow(y)
		for x := 0; x < e.cols; x++ {
			if !e.allDirty && !e.dirty[y][x] {
				continue
			}
			c := row[x]
			fg, bg := c.fg, c.bg
			if e.viewOffset == 0 && x == e.curX && y == e.curY {
				fg, bg = bg, fg // block cursor by inversion
			}
			e.font.DrawGlyph(e.target, x*e.cellW, y*e.cellH, c.r, fg, bg)
			e.dirty[y][x] = false
		}
	}

	e.allDirty = false
	e.drawnCurX, e.drawnCurY = e.curX, e.curY
}

// visibleRow maps a display row to the history window when scrolled back.
func (e *Engine) visibleRow(y int) []cell {
	if e.viewOffset == 0 {
		return e.screen[y]
	}
	idx := len(e.history) - e.viewOffset + y
	if idx < len(e.history) {
		return e.history[idx]
	}
	return e.screen[idx-len(e.history)]
}

// reply sends engine-generated bytes back toward the shell. Best-effort:
// without a writer the report is dropped.
func (e *Engine) reply(format string, args ...interface{}) {
	if e.ptyWriter == nil {
		return
	}
	e.ptyWriter([]byte(fmt.Sprintf(format, args...)))
}
