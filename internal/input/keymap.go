package input

// Legacy PC (set-1) scancodes by evdev key code.
//
// The base block is an identity mapping: Linux key codes 1..83 were chosen
// to equal the XT scancodes of the same physical keys. Keys added after the
// original XT layout carry an 0xE0-prefixed code, recorded here with an
// 0xE000 bias; the translator peels the prefix off.
//
// Keys without an entry have no legacy scancode and are dropped.

// evdev key codes referenced outside the base identity block.
const (
	key102nd     = 86
	keyF11       = 87
	keyF12       = 88
	keyKPEnter   = 96
	keyRightCtrl = 97
	keyKPSlash   = 98
	keySysRq     = 99
	keyRightAlt  = 100
	keyHome      = 102
	keyUp        = 103
	keyPageUp    = 104
	keyLeft      = 105
	keyRight     = 106
	keyEnd       = 107
	keyDown      = 108
	keyPageDown  = 109
	keyInsert    = 110
	keyDelete    = 111
	keyLeftMeta  = 125
	keyRightMeta = 126
	keyCompose   = 127
)

var scancodes = buildKeymap()

func buildKeymap() map[uint16]uint16 {
	m := make(map[uint16]uint16, 128)

	// XT block: evdev code == set-1 make code.
	for code := uint16(1); code <= 83; code++ {
		m[code] = code
	}
	m[key102nd] = 0x56
	m[keyF11] = 0x57
	m[keyF12] = 0x58

	// Extended (0xE0-prefixed) keys.
	ext := map[uint16]uint16{
		keyKPEnter:   0x1C,
		keyRightCtrl: 0x1D,
		keyKPSlash:   0x35,
		keySysRq:     0x37,
		keyRightAlt:  0x38,
		keyHome:      0x47,
		keyUp:        0x48,
		keyPageUp:    0x49,
		keyLeft:      0x4B,
		keyRight:     0x4D,
		keyEnd:       0x4F,
		keyDown:      0x50,
		keyPageDown:  0x51,
		keyInsert:    0x52,
		keyDelete:    0x53,
		keyLeftMeta:  0x5B,
		keyRightMeta: 0x5C,
		keyCompose:   0x5D,
	}
	for code, sc := range ext {
		m[code] = 0xE000 | sc
	}

	// Pause (evdev 119) has no single set-1 code; that multi-byte oddity
	// is not reproduced, so it takes the no-mapping path and is dropped.

	return m
}
