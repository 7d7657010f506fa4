package grid

import (
	"strconv"
	"strings"
)

// parserState swallows escape sequences byte by byte so they never reach
// the glyph grid, applying the few this engine understands. State persists
// across Process calls, so sequences split over chunk boundaries behave the
// same as contiguous ones.
type parserState struct {
	mode    parserMode
	private bool
	params  strings.Builder
	oscEsc  bool // saw ESC inside an OSC, waiting for the ST backslash
}

type parserMode int

const (
	modeGround parserMode = iota
	modeEscape
	modeCSI
	modeOSC
)

const maxParamBytes = 64

// consume feeds one byte through the escape parser. Returns true when the
// byte belonged to a sequence (including the opening ESC) and must not be
// rendered.
func (p *parserState) consume(e *Engine, b byte) bool {
	switch p.mode {
	case modeGround:
		if b == 0x1B {
			p.mode = modeEscape
			return true
		}
		return false

	case modeEscape:
		switch b {
		case '[':
			p.mode = modeCSI
			p.private = false
			p.params.Reset()
		case ']':
			p.mode = modeOSC
			p.oscEsc = false
		default:
			// Single-character escapes (ESC 7, ESC M, ...) are ignored.
			p.mode = modeGround
		}
		return true

	case modeCSI:
		switch {
		case b >= '0' && b <= '9' || b == ';' || b == ':':
			if p.params.Len() < maxParamBytes {
				p.params.WriteByte(b)
			}
		case b >= 0x3C && b <= 0x3F:
			// Private-parameter prefix (e.g. CSI ? for DEC modes).
			p.private = true
		case b >= 0x20 && b <= 0x2F:
			// Intermediate bytes: keep consuming.
		case b >= 0x40 && b <= 0x7E:
			if !p.private {
				e.dispatchCSI(b, p.params.String())
			}
			p.mode = modeGround
		default:
			// Malformed sequence: bail out.
			p.mode = modeGround
		}
		return true

	case modeOSC:
		switch {
		case b == 0x07: // BEL terminator
			p.mode = modeGround
		case b == 0x1B:
			p.oscEsc = true
		case p.oscEsc && b == '\\': // ESC \ (ST) terminator
			p.mode = modeGround
		default:
			p.oscEsc = false
		}
		return true
	}

	return false
}

// dispatchCSI applies the handful of sequences this engine supports;
// everything else has been consumed and is dropped here.
func (e *Engine) dispatchCSI(final byte, rawParams string) {
	params := parseParams(rawParams)

	switch final {
	case 'A':
		e.moveCursor(e.curX, e.curY-param(params, 0, 1))
	case 'B':
		e.moveCursor(e.curX, e.curY+param(params, 0, 1))
	case 'C':
		e.moveCursor(e.curX+param(params, 0, 1), e.curY)
	case 'D':
		e.moveCursor(e.curX-param(params, 0, 1), e.curY)
	case 'H', 'f':
		row := param(params, 0, 1)
		col := param(params, 1, 1)
		e.moveCursor(col-1, row-1)
	case 'J':
		e.eraseDisplay(param(params, 0, 0))
	case 'K':
		e.eraseLine(param(params, 0, 0))
	case 'n':
		if param(params, 0, 0) == 6 {
			// DSR: cursor position report, 1-based.
			e.reply("\x1b[%d;%dR", e.curY+1, e.curX+1)
		}
	default:
		// SGR and friends: consumed, not applied.
	}
}

func parseParams(raw string) []int {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			n = 0
		}
		out[i] = n
	}
	return out
}

// param returns params[i], or def when missing or zero.
func param(params []int, i, def int) int {
	if i >= len(params) || params[i] == 0 {
		return def
	}
	return params[i]
}

func (e *Engine) eraseDisplay(mode int) {
	switch mode {
	case 0: // cursor to end of screen
		e.eraseLine(0)
		for y := e.curY + 1; y < e.rows; y++ {
			e.clearRow(y)
		}
	case 1: // start of screen to cursor
		for y := 0; y < e.curY; y++ {
			e.clearRow(y)
		}
		e.eraseLine(1)
	case 2, 3: // whole screen
		for y := 0; y < e.rows; y++ {
			e.clearRow(y)
		}
	}
}

func (e *Engine) eraseLine(mode int) {
	from, to := 0, e.cols
	switch mode {
	case 0:
		from = e.curX
	case 1:
		to = e.curX + 1
	case 2:
	default:
		return
	}
	row := e.screen[e.curY]
	for x := from; x < to; x++ {
		row[x] = blankCell()
		e.dirty[e.curY][x] = true
	}
}

func (e *Engine) clearRow(y int) {
	row := e.screen[y]
	for x := range row {
		row[x] = blankCell()
		e.dirty[y][x] = true
	}
}
