package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
)

// FormatUserError turns an error chain into a message a user at a dead
// console can act on. Permission and missing-device failures dominate in
// practice, so those get explicit hints.
func FormatUserError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, os.ErrPermission):
		return err.Error() + " (are you running as root, or in the video/input groups?)"
	case errors.Is(err, fs.ErrNotExist):
		return err.Error() + " (check the device paths in your config or flags)"
	case errors.Is(err, context.DeadlineExceeded):
		return err.Error() + " (timed out)"
	default:
		return err.Error()
	}
}
