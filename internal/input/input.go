// Package input reads raw Linux input-device events and translates key
// presses into the legacy PC scancode stream the emulation engine consumes.
//
// Key events follow the set-1 make/break convention: the make code is
// emitted as-is on press, and 0x80 is added on release. Extended keys
// (codes >= 0xE000 in the table) decompose into an 0xE0 prefix byte
// followed by the low byte. Wheel motion is passed through as a signed
// scroll delta; every other axis or button event is ignored.
package input

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Event type/code constants from <linux/input-event-codes.h>, limited to
// what this host consumes.
const (
	EvKey = 0x01
	EvRel = 0x02

	RelWheel = 0x08
)

// eventSize is sizeof(struct input_event) on 64-bit Linux:
// two 8-byte timestamp words, type, code, value.
const eventSize = 24

// Event is one decoded input_event. The timestamp is dropped; this host
// reacts to events as they arrive.
type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

// Pressed reports whether a key event is a press or auto-repeat. Only a
// value of zero is a release.
func (e Event) Pressed() bool {
	return e.Value != 0
}

// Reader decodes events from one input character device. Reads block
// between events; one Reader is driven by one polling goroutine.
type Reader struct {
	path   string
	file   *os.File
	logger *logrus.Logger

	buf     [eventSize * 64]byte
	pending []byte
}

// OpenReader opens an input device such as /dev/input/event0.
func OpenReader(path string, logger *logrus.Logger) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input device %s: %w", path, err)
	}
	logger.WithField("device", path).Debug("Input device opened")
	return &Reader{path: path, file: f, logger: logger}, nil
}

// Next returns the next event, blocking until one arrives. Errors are
// OS-level read failures and are fatal to the session.
func (r *Reader) Next() (Event, error) {
	for len(r.pending) < eventSize {
		n, err := r.file.Read(r.buf[:])
		if err != nil {
			return Event{}, fmt.Errorf("read input device %s: %w", r.path, err)
		}
		r.pending = append(r.pending, r.buf[:n]...)
	}

	ev := decodeEvent(r.pending[:eventSize])
	r.pending = r.pending[eventSize:]
	return ev, nil
}

// Path returns the device path this reader was opened on.
func (r *Reader) Path() string {
	return r.path
}

// Close releases the device.
func (r *Reader) Close() error {
	return r.file.Close()
}

func decodeEvent(raw []byte) Event {
	// Skip the 16-byte timeval; type/code/value follow.
	return Event{
		Type:  binary.LittleEndian.Uint16(raw[16:18]),
		Code:  binary.LittleEndian.Uint16(raw[18:20]),
		Value: int32(binary.LittleEndian.Uint32(raw[20:24])),
	}
}
