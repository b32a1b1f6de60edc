package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/cadence/internal/ui"
)

// helpRule recolors every match of re in cobra's help text.
type helpRule struct {
	re    *regexp.Regexp
	paint func(groups []string) string
}

var helpRules = []helpRule{
	// Group headers ("Events:", "Flags:").
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)\s*$`), func(g []string) string {
		return ui.RenderAccent(strings.TrimSpace(g[0]))
	}},
	// Command names in the command listing.
	{regexp.MustCompile(`(?m)^(  )(\S+)(  )`), func(g []string) string {
		return g[1] + ui.RenderCommand(g[2]) + g[3]
	}},
	// Flag value types ("--url string").
	{regexp.MustCompile(`(--?\S+\s+)(string|int64|int|duration|bool)\b`), func(g []string) string {
		return g[1] + ui.RenderMuted(g[2])
	}},
	{regexp.MustCompile(`\(default [^)]*\)`), func(g []string) string {
		return ui.RenderMuted(g[0])
	}},
}

// colorizedHelpFunc returns a cobra help function that colors the default
// usage text when stdout supports it.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelpOutput(buf.String()))
	}
}

func colorizeHelpOutput(s string) string {
	for _, rule := range helpRules {
		s = rule.re.ReplaceAllStringFunc(s, func(match string) string {
			return rule.paint(rule.re.FindStringSubmatch(match))
		})
	}
	return s
}
