//go:build test

package testutils

import (
	"fmt"
	"strings"
	"testing"
)

// errorCapture records Errorf calls for asserting on asserter behavior.
type errorCapture struct {
	messages []string
}

func (e *errorCapture) Errorf(format string, args ...interface{}) {
	e.messages = append(e.messages, fmt.Sprintf(format, args...))
}

func TestScreenAsserter_DefaultOptions(t *testing.T) {
	sa := NewScreenAsserter(t)

	opts := sa.GetOptions()
	if !opts.IgnoreTrailingWhitespace {
		t.Errorf("Expected IgnoreTrailingWhitespace to be true by default, got %v", opts.IgnoreTrailingWhitespace)
	}
	if !opts.IgnoreBlankTail {
		t.Errorf("Expected IgnoreBlankTail to be true by default, got %v", opts.IgnoreBlankTail)
	}
	if opts.EnableColors {
		t.Errorf("Expected EnableColors to be false by default, got %v", opts.EnableColors)
	}
}

func TestScreenAsserter_FunctionalOptions(t *testing.T) {
	t.Run("WithIgnoreTrailingWhitespace", func(t *testing.T) {
		sa := NewScreenAsserter(t).WithOptions(
			WithIgnoreTrailingWhitespace(false),
		)

		opts := sa.GetOptions()
		if opts.IgnoreTrailingWhitespace {
			t.Error("Expected IgnoreTrailingWhitespace to be false")
		}
		if !opts.IgnoreBlankTail {
			t.Error("Expected IgnoreBlankTail to remain true")
		}
	})

	t.Run("WithIgnoreBlankTail", func(t *testing.T) {
		sa := NewScreenAsserter(t).WithOptions(
			WithIgnoreBlankTail(false),
		)

		opts := sa.GetOptions()
		if opts.IgnoreBlankTail {
			t.Error("Expected IgnoreBlankTail to be false")
		}
	})

	t.Run("WithEnableColors", func(t *testing.T) {
		sa := NewScreenAsserter(t).WithOptions(
			WithEnableColors(true),
		)

		opts := sa.GetOptions()
		if !opts.EnableColors {
			t.Error("Expected EnableColors to be true")
		}
	})
}

func TestScreenAsserter_MatchingScreens(t *testing.T) {
	capture := &errorCapture{}
	sa := NewScreenAsserterWithInterface(capture)

	sa.Assert([]string{"$ ls   ", "a.txt  ", "       ", "       "}, "$ ls\na.txt")

	if len(capture.messages) != 0 {
		t.Errorf("Expected no error for matching screens, got %v", capture.messages)
	}
}

func TestScreenAsserter_MismatchReportsDiff(t *testing.T) {
	capture := &errorCapture{}
	sa := NewScreenAsserterWithInterface(capture)

	sa.Assert([]string{"hello", "world"}, "hello\nthere")

	if len(capture.messages) != 1 {
		t.Fatalf("Expected exactly one error, got %d", len(capture.messages))
	}
	msg := capture.messages[0]
	if !strings.Contains(msg, "-there") {
		t.Errorf("Expected diff to show removed expected line, got:\n%s", msg)
	}
	if !strings.Contains(msg, "+world") {
		t.Errorf("Expected diff to show added actual line, got:\n%s", msg)
	}
}

func TestScreenAsserter_StrictWhitespace(t *testing.T) {
	capture := &errorCapture{}
	sa := NewScreenAsserterWithInterface(capture).WithOptions(
		WithIgnoreTrailingWhitespace(false),
		WithIgnoreBlankTail(false),
	)

	sa.Assert([]string{"hello  "}, "hello")

	if len(capture.messages) != 1 {
		t.Errorf("Expected strict comparison to flag trailing padding, got %d errors", len(capture.messages))
	}
}
