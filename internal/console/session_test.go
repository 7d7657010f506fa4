package console

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/fbshell/internal/emu"
	"github.com/srg/fbshell/internal/emu/bitmapfont"
	"github.com/srg/fbshell/internal/emu/grid"
	"github.com/srg/fbshell/internal/fb"
	"github.com/srg/fbshell/internal/input"
	"github.com/srg/fbshell/internal/ptychan"
	"github.com/srg/fbshell/internal/testutils"
)

// fakePTY scripts shell output and records everything the session sends
// or negotiates.
type fakePTY struct {
	chunks chan []byte
	err    error // returned after chunks drain (io.EOF for a clean close)

	mu      sync.Mutex
	written [][]byte
	resizes [][4]uint16
}

func newFakePTY() *fakePTY {
	return &fakePTY{chunks: make(chan []byte, 16), err: io.EOF}
}

func (p *fakePTY) ReadChunk(buf []byte) (int, error) {
	chunk, ok := <-p.chunks
	if !ok {
		return 0, p.err
	}
	return copy(buf, chunk), nil
}

func (p *fakePTY) WriteBytes(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, append([]byte(nil), data...))
}

func (p *fakePTY) Resize(rows, cols, pw, ph uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resizes = append(p.resizes, [4]uint16{rows, cols, pw, ph})
	return nil
}

func (p *fakePTY) resizeCalls() [][4]uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][4]uint16(nil), p.resizes...)
}

// scriptedEvents feeds canned input events; closing the channel ends the
// source with errClosed.
type scriptedEvents struct {
	events chan input.Event
}

var errSourceClosed = errors.New("event source closed")

func newScriptedEvents() *scriptedEvents {
	return &scriptedEvents{events: make(chan input.Event, 16)}
}

func (s *scriptedEvents) Next() (input.Event, error) {
	ev, ok := <-s.events
	if !ok {
		return input.Event{}, errSourceClosed
	}
	return ev, nil
}

// fakeEngine records calls behind its own lock so tests can poll while
// the session is live.
type fakeEngine struct {
	mu        sync.Mutex
	processed []byte
	scancodes []byte
	scrolls   []int
	flushes   int

	autoFlush   bool
	scrollSpeed int
	cacheSize   int
	history     int
	writer      emu.PtyWriter
	font        emu.FontManager
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{autoFlush: true}
}

func (f *fakeEngine) Process(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, data...)
}

func (f *fakeEngine) HandleKeyboard(sc byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scancodes = append(f.scancodes, sc)
}

func (f *fakeEngine) HandleMouse(in emu.MouseInput) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls = append(f.scrolls, in.Scroll)
}

func (f *fakeEngine) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

func (f *fakeEngine) Rows() int {
	if f.font == nil {
		return 0
	}
	return 4
}

func (f *fakeEngine) Columns() int {
	if f.font == nil {
		return 0
	}
	return 10
}

func (f *fakeEngine) SetAutoFlush(auto bool)            { f.autoFlush = auto }
func (f *fakeEngine) SetScrollSpeed(speed int)          { f.scrollSpeed = speed }
func (f *fakeEngine) SetColorCacheSize(size int)        { f.cacheSize = size }
func (f *fakeEngine) SetHistorySize(lines int)          { f.history = lines }
func (f *fakeEngine) SetPtyWriter(w emu.PtyWriter)      { f.writer = w }
func (f *fakeEngine) SetFontManager(fm emu.FontManager) { f.font = fm }

func (f *fakeEngine) snapshotProcessed() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.processed...)
}

func (f *fakeEngine) snapshotScancodes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.scancodes...)
}

func (f *fakeEngine) snapshotScrolls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.scrolls...)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fixture struct {
	engine   *fakeEngine
	pty      *fakePTY
	keyboard *scriptedEvents
	mouse    *scriptedEvents
	session  *Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		engine:   newFakeEngine(),
		pty:      newFakePTY(),
		keyboard: newScriptedEvents(),
		mouse:    newScriptedEvents(),
	}
	session, err := New(Options{
		Logger:         quietLogger(),
		Engine:         f.engine,
		Surface:        fb.NewMemory(80, 64, fb.BGRA),
		Font:           bitmapfont.New(),
		PTY:            f.pty,
		Keyboard:       f.keyboard,
		Mouse:          f.mouse,
		FrameInterval:  time.Millisecond,
		ScrollSpeed:    5,
		HistorySize:    1000,
		ColorCacheSize: 4096,
	})
	require.NoError(t, err)
	f.session = session
	return f
}

func (f *fixture) run(t *testing.T) chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- f.session.Run(context.Background())
	}()
	return done
}

func TestNew_RequiredOptions(t *testing.T) {
	base := func() Options {
		return Options{
			Logger:   quietLogger(),
			Engine:   newFakeEngine(),
			Surface:  fb.NewMemory(80, 64, fb.BGRA),
			Font:     bitmapfont.New(),
			PTY:      newFakePTY(),
			Keyboard: newScriptedEvents(),
		}
	}

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"missing engine", func(o *Options) { o.Engine = nil }},
		{"missing surface", func(o *Options) { o.Surface = nil }},
		{"missing font", func(o *Options) { o.Font = nil }},
		{"missing pty", func(o *Options) { o.PTY = nil }},
		{"missing keyboard", func(o *Options) { o.Keyboard = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := base()
			tt.mutate(&opts)
			_, err := New(opts)
			assert.Error(t, err)
		})
	}

	t.Run("mouse is optional", func(t *testing.T) {
		opts := base()
		opts.Mouse = nil
		_, err := New(opts)
		assert.NoError(t, err)
	})
}

func TestNew_ConfiguresEngineAndGeometry(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.engine.autoFlush, "scheduler must own flushing")
	assert.Equal(t, 5, f.engine.scrollSpeed)
	assert.Equal(t, 4096, f.engine.cacheSize)
	assert.Equal(t, 1000, f.engine.history)
	assert.NotNil(t, f.engine.writer)
	assert.NotNil(t, f.engine.font)

	resizes := f.pty.resizeCalls()
	require.Len(t, resizes, 1, "window size is negotiated exactly once")
	assert.Equal(t, [4]uint16{4, 10, 80, 64}, resizes[0])

	assert.Equal(t, StateStarting, f.session.State())
}

func TestRun_ShellOutputReachesEngine(t *testing.T) {
	f := newFixture(t)
	done := f.run(t)

	f.pty.chunks <- []byte("hello")
	assert.Eventually(t, func() bool {
		return string(f.engine.snapshotProcessed()) == "hello"
	}, time.Second, time.Millisecond)

	close(f.pty.chunks)
	require.NoError(t, <-done)
	assert.Equal(t, StateTerminated, f.session.State())
}

func TestRun_CleanPeerCloseIsGraceful(t *testing.T) {
	for _, cause := range []error{io.EOF, ptychan.ErrPeerClosed} {
		f := newFixture(t)
		f.pty.err = cause
		done := f.run(t)

		close(f.pty.chunks)
		assert.NoError(t, <-done)
		assert.Equal(t, StateTerminated, f.session.State())
	}
}

func TestRun_ReadFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.pty.err = errors.New("input/output error")
	done := f.run(t)

	close(f.pty.chunks)
	err := <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pty read failed")
	assert.Equal(t, StateFailed, f.session.State())
}

func TestRun_KeyboardTranslation(t *testing.T) {
	f := newFixture(t)
	done := f.run(t)

	// 'a' press+release, then an extended key (cursor up) press.
	f.keyboard.events <- input.Event{Type: input.EvKey, Code: 30, Value: 1}
	f.keyboard.events <- input.Event{Type: input.EvKey, Code: 30, Value: 0}
	f.keyboard.events <- input.Event{Type: input.EvKey, Code: 103, Value: 1}
	// Non-key events on the keyboard device are ignored.
	f.keyboard.events <- input.Event{Type: input.EvRel, Code: input.RelWheel, Value: 1}

	assert.Eventually(t, func() bool {
		return len(f.engine.snapshotScancodes()) == 4
	}, time.Second, time.Millisecond)
	assert.Equal(t, []byte{0x1E, 0x9E, 0xE0, 0x48}, f.engine.snapshotScancodes())

	close(f.pty.chunks)
	require.NoError(t, <-done)
}

func TestRun_MouseWheelScrolls(t *testing.T) {
	f := newFixture(t)
	done := f.run(t)

	f.mouse.events <- input.Event{Type: input.EvRel, Code: input.RelWheel, Value: 1}
	f.mouse.events <- input.Event{Type: input.EvRel, Code: input.RelWheel, Value: -1}
	// Other relative axes are ignored.
	f.mouse.events <- input.Event{Type: input.EvRel, Code: 0x00, Value: 7}

	assert.Eventually(t, func() bool {
		return len(f.engine.snapshotScrolls()) == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, []int{1, -1}, f.engine.snapshotScrolls())

	close(f.pty.chunks)
	require.NoError(t, <-done)
}

func TestRun_BurstCoalescesFlushes(t *testing.T) {
	f := newFixture(t)
	done := f.run(t)

	for i := 0; i < 20; i++ {
		f.pty.chunks <- []byte("x")
	}
	assert.Eventually(t, func() bool {
		return len(f.engine.snapshotProcessed()) == 20
	}, time.Second, time.Millisecond)

	// Give the scheduler a couple of intervals to settle.
	time.Sleep(10 * time.Millisecond)

	f.engine.mu.Lock()
	flushes := f.engine.flushes
	f.engine.mu.Unlock()
	assert.Greater(t, flushes, 0, "output must reach the display")
	assert.Less(t, flushes, 20, "flushes must coalesce below one per chunk")

	close(f.pty.chunks)
	require.NoError(t, <-done)
}

func TestRun_ContextCancelShutsDown(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.session.Run(ctx)
	}()

	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, StateTerminated, f.session.State())
}

func TestRun_KeyboardFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	done := f.run(t)

	close(f.keyboard.events)
	err := <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyboard read failed")
	assert.Equal(t, StateFailed, f.session.State())
}

// End-to-end through the real engine stack: PTY bytes in, grid text out.
func TestRun_RendersShellOutput(t *testing.T) {
	font := bitmapfont.New()
	cellW, cellH := font.CellSize()
	surface := fb.NewMemory(cellW*10, cellH*4, fb.BGRA)
	engine := grid.New(surface)

	pty := newFakePTY()
	keyboard := newScriptedEvents()

	session, err := New(Options{
		Logger:        quietLogger(),
		Engine:        engine,
		Surface:       surface,
		Font:          font,
		PTY:           pty,
		Keyboard:      keyboard,
		FrameInterval: time.Millisecond,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- session.Run(context.Background())
	}()

	pty.chunks <- []byte("$ echo hi\r\n")
	pty.chunks <- []byte("hi\r\n")
	close(pty.chunks)
	require.NoError(t, <-done)

	testutils.NewScreenAsserter(t).Assert(engine.Text(), "$ echo hi\nhi")
}
