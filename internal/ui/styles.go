// Package ui renders colored terminal output for the cadence CLI.
package ui

import (
	"fmt"

	"github.com/alfredjeanlab/cadence/internal/model"
)

// ANSI256 color codes.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorOpen   = 71  // green
	colorClosed = 179 // amber
	colorError  = 167 // red
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderError returns s in red.
func RenderError(s string) string { return paint(colorError, s) }

// RenderStatus colors an occurrence status: open green, closed amber,
// completed gray.
func RenderStatus(st model.OccurrenceStatus) string {
	switch st {
	case model.OccurrenceOpen:
		return paint(colorOpen, string(st))
	case model.OccurrenceClosed:
		return paint(colorClosed, string(st))
	default:
		return paint(colorMuted, string(st))
	}
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// Configure disables color unless ShouldUseColor allows it.
func Configure() {
	if !ShouldUseColor() {
		ForceNoColor()
	}
}
