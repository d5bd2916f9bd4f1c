// Package cmdutils holds terminal output helpers shared by the CLI commands.
package cmdutils

import (
	"fmt"
	"io"
	"strings"
)

const Logo = "🔎"

// PrintResponse prints a finished answer under the researchflow banner.
func PrintResponse(w io.Writer, text string) {
	if text == "" {
		return
	}
	fmt.Fprintf(w, "\n%s researchflow\n%s\n\n", Logo, text)
}

// PrintProgress prints one progress line, indented under the prompt.
func PrintProgress(w io.Writer, text string) {
	fmt.Fprintf(w, "  ↳ %s\n", text)
}

// Truncate shortens s to max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

// Rule returns a horizontal separator n characters wide.
func Rule(n int) string {
	return strings.Repeat("-", n)
}
