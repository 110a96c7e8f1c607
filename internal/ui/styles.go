package ui

import (
	"fmt"
	"sync/atomic"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorName   = 179 // amber
	colorMuted  = 245 // medium gray
	colorError  = 203 // red
)

var noColor atomic.Bool

func paint(code int, s string) string {
	if noColor.Load() {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderName returns s styled as a comment author.
func RenderName(s string) string { return paint(colorName, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderError returns s in the error (red) color.
func RenderError(s string) string { return paint(colorError, s) }

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor.Store(true)
}
