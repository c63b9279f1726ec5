package ui

import "fmt"

// ANSI256 color codes for the knot CLI.
const (
	colorAccent = 74  // blue, section headers
	colorCmd    = 250 // light gray, command names
	colorMuted  = 245 // medium gray, hints and flags
	colorAlert  = 203 // soft red, redactions and offline senders
)

var noColor bool

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string {
	return render(colorAccent, s)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	return render(colorMuted, s)
}

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string {
	return render(colorCmd, s)
}

// RenderAlert returns s in the alert (red) color.
func RenderAlert(s string) string {
	return render(colorAlert, s)
}

func render(color int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", color, s)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
