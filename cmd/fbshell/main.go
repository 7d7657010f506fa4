package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command; fbshell is single-purpose, so the
// root runs the console directly instead of dispatching subcommands.
var rootCmd = &cobra.Command{
	Use:   "fbshell",
	Short: "Framebuffer console shell host",
	Long: `Runs a login shell on the Linux framebuffer without a display server.

fbshell spawns a shell on a pseudoterminal, renders its output straight
into /dev/fb0, and feeds it keyboard input read from the evdev device.
Mouse wheel motion scrolls through the output history.

Intended for minimal systems: initramfs rescue shells, kiosk appliances,
and headless boxes where a full getty/console stack is unwanted.

Example:
  fbshell
  fbshell --shell /bin/bash --fb /dev/fb1
  fbshell --config /etc/fbshell.yaml`,
	Version: formatVersion(version),
	Args:    cobra.NoArgs,
	RunE:    runConsole,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		// Print user-friendly error message
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
