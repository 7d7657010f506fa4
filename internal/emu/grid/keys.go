package grid

// Scancode decoding: the host feeds set-1 make/break codes one byte at a
// time (0xE0 prefix for extended keys); the engine tracks modifier state
// and emits encoded bytes for the shell through the pty writer.

type keyboardState struct {
	extended bool
	shift    bool
	ctrl     bool
	alt      bool
}

const (
	scLeftShift  = 0x2A
	scRightShift = 0x36
	scCtrl       = 0x1D
	scAlt        = 0x38
	scKPEnter    = 0x1C // extended
	scKPSlash    = 0x35 // extended
)

// US layout, set-1 make code to byte. Zero entries have no direct encoding.
var normalKeys = [0x60]byte{
	0x01: 0x1B, // esc
	0x02: '1', 0x03: '2', 0x04: '3', 0x05: '4', 0x06: '5',
	0x07: '6', 0x08: '7', 0x09: '8', 0x0A: '9', 0x0B: '0',
	0x0C: '-', 0x0D: '=',
	0x0E: 0x7F, // backspace sends DEL
	0x0F: '\t',
	0x10: 'q', 0x11: 'w', 0x12: 'e', 0x13: 'r', 0x14: 't',
	0x15: 'y', 0x16: 'u', 0x17: 'i', 0x18: 'o', 0x19: 'p',
	0x1A: '[', 0x1B: ']',
	0x1C: '\r',
	0x1E: 'a', 0x1F: 's', 0x20: 'd', 0x21: 'f', 0x22: 'g',
	0x23: 'h', 0x24: 'j', 0x25: 'k', 0x26: 'l',
	0x27: ';', 0x28: '\'', 0x29: '`',
	0x2B: '\\',
	0x2C: 'z', 0x2D: 'x', 0x2E: 'c', 0x2F: 'v', 0x30: 'b',
	0x31: 'n', 0x32: 'm',
	0x33: ',', 0x34: '.', 0x35: '/',
	0x37: '*',
	0x39: ' ',
}

var shiftedKeys = [0x60]byte{
	0x01: 0x1B,
	0x02: '!', 0x03: '@', 0x04: '#', 0x05: '$', 0x06: '%',
	0x07: '^', 0x08: '&', 0x09: '*', 0x0A: '(', 0x0B: ')',
	0x0C: '_', 0x0D: '+',
	0x0E: 0x7F,
	0x0F: '\t',
	0x10: 'Q', 0x11: 'W', 0x12: 'E', 0x13: 'R', 0x14: 'T',
	0x15: 'Y', 0x16: 'U', 0x17: 'I', 0x18: 'O', 0x19: 'P',
	0x1A: '{', 0x1B: '}',
	0x1C: '\r',
	0x1E: 'A', 0x1F: 'S', 0x20: 'D', 0x21: 'F', 0x22: 'G',
	0x23: 'H', 0x24: 'J', 0x25: 'K', 0x26: 'L',
	0x27: ':', 0x28: '"', 0x29: '~',
	0x2B: '|',
	0x2C: 'Z', 0x2D: 'X', 0x2E: 'C', 0x2F: 'V', 0x30: 'B',
	0x31: 'N', 0x32: 'M',
	0x33: '<', 0x34: '>', 0x35: '?',
	0x37: '*',
	0x39: ' ',
}

// ECMA-48 sequences for the extended navigation block, by make code.
var extendedKeys = map[byte]string{
	0x48: "\x1b[A",  // up
	0x50: "\x1b[B",  // down
	0x4D: "\x1b[C",  // right
	0x4B: "\x1b[D",  // left
	0x47: "\x1b[H",  // home
	0x4F: "\x1b[F",  // end
	0x49: "\x1b[5~", // page up
	0x51: "\x1b[6~", // page down
	0x52: "\x1b[2~", // insert
	0x53: "\x1b[3~", // delete
}

// HandleKeyboard consumes one scancode byte.
func (e *Engine) HandleKeyboard(scancode byte) {
	if scancode == 0xE0 {
		e.kbd.extended = true
		return
	}

	extended := e.kbd.extended
	e.kbd.extended = false

	pressed := scancode&0x80 == 0
	base := scancode & 0x7F

	if extended {
		e.handleExtendedKey(base, pressed)
		return
	}

	switch base {
	case scLeftShift, scRightShift:
		e.kbd.shift = pressed
		return
	case scCtrl:
		e.kbd.ctrl = pressed
		return
	case scAlt:
		e.kbd.alt = pressed
		return
	}

	if !pressed {
		return
	}

	var b byte
	if int(base) < len(normalKeys) {
		if e.kbd.shift {
			b = shiftedKeys[base]
		} else {
			b = normalKeys[base]
		}
	}
	if b == 0 {
		return // no encoding for this key
	}

	if e.kbd.ctrl {
		if c, ok := ctrlByte(b); ok {
			b = c
		} else {
			return
		}
	}

	if e.kbd.alt {
		e.sendKey([]byte{0x1B, b})
		return
	}
	e.sendKey([]byte{b})
}

func (e *Engine) handleExtendedKey(base byte, pressed bool) {
	switch base {
	case scCtrl: // right ctrl
		e.kbd.ctrl = pressed
		return
	case scAlt: // altgr
		e.kbd.alt = pressed
		return
	}

	if !pressed {
		return
	}

	switch base {
	case scKPEnter:
		e.sendKey([]byte{'\r'})
	case scKPSlash:
		e.sendKey([]byte{'/'})
	default:
		if seq, ok := extendedKeys[base]; ok {
			e.sendKey([]byte(seq))
		}
	}
}

// ctrlByte maps a printable byte to its control code.
func ctrlByte(b byte) (byte, bool) {
	switch {
	case b >= 'a' && b <= 'z':
		return b & 0x1F, true
	case b >= 'A' && b <= 'Z':
		return b & 0x1F, true
	case b >= '@' && b <= '_': // ^@ ^[ ^\ ^] ^^ ^_
		return b & 0x1F, true
	case b == ' ':
		return 0x00, true
	case b == '?':
		return 0x7F, true
	}
	return 0, false
}

func (e *Engine) sendKey(data []byte) {
	if e.ptyWriter != nil {
		e.ptyWriter(data)
	}
}
