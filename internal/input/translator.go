package input

// ScancodeEvent is one translated key transition, ready to feed the engine.
// Code already carries the +0x80 break adjustment; for extended keys it is
// the low byte that follows the 0xE0 prefix.
type ScancodeEvent struct {
	Code     uint8
	Extended bool
	Pressed  bool
}

// Bytes returns the byte sequence to deliver to the engine, in order:
// the 0xE0 prefix first for extended keys, then the adjusted code.
func (e ScancodeEvent) Bytes() []byte {
	if e.Extended {
		return []byte{0xE0, e.Code}
	}
	return []byte{e.Code}
}

// Translate maps an evdev key code and press state to a scancode event.
// Returns ok=false when the physical key has no legacy scancode; such
// events are dropped silently, never surfaced as errors.
func Translate(code uint16, pressed bool) (ScancodeEvent, bool) {
	sc, ok := scancodes[code]
	if !ok {
		return ScancodeEvent{}, false
	}

	if !pressed {
		sc += 0x80
	}

	if sc >= 0xE000 {
		return ScancodeEvent{Code: uint8(sc - 0xE000), Extended: true, Pressed: pressed}, true
	}
	return ScancodeEvent{Code: uint8(sc), Pressed: pressed}, true
}
