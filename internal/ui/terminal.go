package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether ANSI colors belong on stdout. NO_COLOR
// wins over everything, CLICOLOR_FORCE=1 overrides TTY detection, and
// CLICOLOR=0 opts out explicitly (see https://no-color.org).
func ShouldUseColor() bool {
	switch {
	case os.Getenv("NO_COLOR") != "":
		return false
	case strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1":
		return true
	case strings.TrimSpace(os.Getenv("CLICOLOR")) == "0":
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
