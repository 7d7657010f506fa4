package testutils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"
)

// TestingT matches the methods we need from testing.T
type TestingT interface {
	Errorf(format string, args ...interface{})
}

// ScreenAssertOptions controls how rendered screen lines are normalized
// before comparison. Grid rows are space padded to the full column count,
// so trailing whitespace is ignored by default.
type ScreenAssertOptions struct {
	IgnoreTrailingWhitespace bool `default:"true"`
	IgnoreBlankTail          bool `default:"true"`
	EnableColors             bool `default:"false"`
}

// ScreenOption is a functional option for configuring ScreenAsserter
type ScreenOption func(*ScreenAssertOptions)

// ScreenAsserter compares terminal screen contents line by line and
// reports mismatches as unified diffs.
type ScreenAsserter struct {
	t       TestingT
	options ScreenAssertOptions
}

// NewScreenAsserter creates a new ScreenAsserter with default options
func NewScreenAsserter(t *testing.T) *ScreenAsserter {
	return NewScreenAsserterWithInterface(t)
}

// NewScreenAsserterWithInterface creates a new ScreenAsserter with default options using the TestingT interface
func NewScreenAsserterWithInterface(t TestingT) *ScreenAsserter {
	opts := ScreenAssertOptions{}
	defaults.SetDefaults(&opts)
	return &ScreenAsserter{
		t:       t,
		options: opts,
	}
}

// WithOptions applies functional options to the ScreenAsserter
func (sa *ScreenAsserter) WithOptions(opts ...ScreenOption) *ScreenAsserter {
	for _, opt := range opts {
		opt(&sa.options)
	}
	return sa
}

// GetOptions returns a copy of the current options (for testing)
func (sa *ScreenAsserter) GetOptions() ScreenAssertOptions {
	return sa.options
}

// Assert compares the actual screen lines against an expected multiline
// string (one line per screen row).
func (sa *ScreenAsserter) Assert(actual []string, expected string) {
	diff := sa.diff(actual, expected)
	if diff != "" {
		sa.t.Errorf("Screen assertion failed:\n%s", diff)
	}
}

func (sa *ScreenAsserter) diff(actual []string, expected string) string {
	normalizedActual := sa.normalize(actual)
	normalizedExpected := sa.normalize(strings.Split(expected, "\n"))

	if normalizedActual == normalizedExpected {
		return ""
	}

	edits := myers.ComputeEdits("", normalizedExpected, normalizedActual)
	unified := gotextdiff.ToUnified("expected", "actual", normalizedExpected, edits)

	return sa.colorizeUnifiedDiff(fmt.Sprint(unified))
}

// colorizeUnifiedDiff applies colors to unified diff output
func (sa *ScreenAsserter) colorizeUnifiedDiff(diff string) string {
	if !sa.options.EnableColors {
		return diff
	}

	lines := strings.Split(diff, "\n")
	var colorized []string

	red := color.New(color.FgRed)
	red.EnableColor()
	green := color.New(color.FgGreen)
	green.EnableColor()
	cyan := color.New(color.FgCyan)
	cyan.EnableColor()
	yellow := color.New(color.FgYellow)
	yellow.EnableColor()

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++"):
			colorized = append(colorized, yellow.Sprint(line))
		case strings.HasPrefix(line, "@@"):
			colorized = append(colorized, cyan.Sprint(line))
		case strings.HasPrefix(line, "-"):
			colorized = append(colorized, red.Sprint(sa.highlightWhitespace(line)))
		case strings.HasPrefix(line, "+"):
			colorized = append(colorized, green.Sprint(sa.highlightWhitespace(line)))
		default:
			colorized = append(colorized, line)
		}
	}

	return strings.Join(colorized, "\n")
}

// highlightWhitespace makes whitespace visible by replacing spaces and tabs with visible characters
func (sa *ScreenAsserter) highlightWhitespace(line string) string {
	result := strings.ReplaceAll(line, " ", "·")
	return strings.ReplaceAll(result, "\t", "→")
}

func (sa *ScreenAsserter) normalize(lines []string) string {
	var result []string
	for _, line := range lines {
		if sa.options.IgnoreTrailingWhitespace {
			line = strings.TrimRight(line, " \t")
		}
		result = append(result, line)
	}

	if sa.options.IgnoreBlankTail {
		for len(result) > 0 && strings.TrimSpace(result[len(result)-1]) == "" {
			result = result[:len(result)-1]
		}
	}

	return strings.Join(result, "\n")
}

// Functional option constructors

// WithIgnoreTrailingWhitespace sets whether trailing whitespace on each row is ignored
func WithIgnoreTrailingWhitespace(ignore bool) ScreenOption {
	return func(opts *ScreenAssertOptions) {
		opts.IgnoreTrailingWhitespace = ignore
	}
}

// WithIgnoreBlankTail sets whether trailing all-blank rows are ignored
func WithIgnoreBlankTail(ignore bool) ScreenOption {
	return func(opts *ScreenAssertOptions) {
		opts.IgnoreBlankTail = ignore
	}
}

// WithEnableColors sets whether to enable colored diff output
func WithEnableColors(enable bool) ScreenOption {
	return func(opts *ScreenAssertOptions) {
		opts.EnableColors = enable
	}
}
