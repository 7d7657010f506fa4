// Package vtcon negotiates exclusive virtual-console ownership with the
// kernel. Switching the VT to process-controlled mode means console-switch
// requests arrive as signals to this process instead of being handled
// transparently by the kernel console driver underneath the framebuffer.
package vtcon

import (
	"fmt"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// <linux/vt.h>
const (
	vtGetMode = 0x5601
	vtSetMode = 0x5602

	vtModeAuto    = 0x00
	vtModeProcess = 0x01
)

// vtMode mirrors struct vt_mode.
type vtMode struct {
	Mode   int8
	Waitv  int8
	Relsig int16
	Acqsig int16
	Frsig  int16
}

// Controller holds the saved VT switching mode so it can be restored when
// the session ends.
type Controller struct {
	fd     int
	saved  vtMode
	active bool
	logger *logrus.Logger
}

// TakeControl queries the current VT mode on fd and switches it to
// process-controlled switching. When fd is not a terminal (tests, nested
// sessions) the controller is a no-op rather than an error: there is no VT
// to own.
func TakeControl(fd int, logger *logrus.Logger) (*Controller, error) {
	c := &Controller{fd: fd, logger: logger}

	if !term.IsTerminal(fd) {
		logger.WithField("fd", fd).Debug("Not a terminal, skipping VT takeover")
		return c, nil
	}

	if err := ioctlVT(fd, vtGetMode, &c.saved); err != nil {
		return nil, fmt.Errorf("query VT mode: %w", err)
	}

	mode := c.saved
	mode.Mode = vtModeProcess
	if err := ioctlVT(fd, vtSetMode, &mode); err != nil {
		return nil, fmt.Errorf("set VT process mode: %w", err)
	}

	c.active = true
	logger.WithField("fd", fd).Info("VT switching taken over")
	return c, nil
}

// Release restores the VT mode saved by TakeControl. Safe to call on a
// no-op controller.
func (c *Controller) Release() {
	if !c.active {
		return
	}
	c.active = false

	restored := c.saved
	if restored.Mode == vtModeProcess {
		// Never hand a stale process-mode back; fall back to kernel-handled
		// switching so the console is usable after we exit.
		restored.Mode = vtModeAuto
	}
	if err := ioctlVT(c.fd, vtSetMode, &restored); err != nil {
		c.logger.WithError(err).Warn("Failed to restore VT mode")
		return
	}
	c.logger.Debug("VT mode restored")
}

func ioctlVT(fd int, req uintptr, mode *vtMode) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(mode)))
	if errno != 0 {
		return errno
	}
	return nil
}
