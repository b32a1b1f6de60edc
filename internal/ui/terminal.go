package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// EnvColor selects the color mode: "always", "never", or "auto" (default).
const EnvColor = "CADENCE_COLOR"

// ShouldUseColor reports whether stdout gets ANSI colors. CADENCE_COLOR wins,
// then NO_COLOR, CLICOLOR_FORCE and CLICOLOR, then TTY detection.
func ShouldUseColor() bool {
	return colorEnabled(os.Getenv, func() bool { return term.IsTerminal(int(os.Stdout.Fd())) })
}

func colorEnabled(getenv func(string) string, isTTY func() bool) bool {
	switch strings.ToLower(strings.TrimSpace(getenv(EnvColor))) {
	case "always":
		return true
	case "never":
		return false
	}
	if getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(getenv("CLICOLOR")) == "0" {
		return false
	}
	return isTTY()
}
