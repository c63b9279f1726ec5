package main

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/knotline/knot/internal/ui"
	"github.com/spf13/cobra"
)

// helpRule rewrites one syntactic element of Cobra's plain help text.
type helpRule struct {
	re      *regexp.Regexp
	rewrite func(groups []string) string
}

// helpRules run in order over the rendered help text. groups[0] is the
// whole match.
var helpRules = []helpRule{
	// Section headers: unindented "Events:", "Flags:", etc. "Usage:" is
	// skipped so the opening line keeps cobra's default look.
	{
		re: regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`),
		rewrite: func(g []string) string {
			if g[1] == "Usage:" {
				return g[0]
			}
			return ui.RenderAccent(g[1])
		},
	},
	// Command names: two-space indent, name, at least two more spaces
	// before the description.
	{
		re:      regexp.MustCompile(`(?m)^(  )(\S+)(  )`),
		rewrite: func(g []string) string { return g[1] + ui.RenderCommand(g[2]) + g[3] },
	},
	// Flag type annotations, e.g. "--url string", "--limit int".
	{
		re:      regexp.MustCompile(`(--?\S+\s+)(string|int|duration)\b`),
		rewrite: func(g []string) string { return g[1] + ui.RenderMuted(g[2]) },
	},
	// Default values, e.g. (default "http://localhost:8008").
	{
		re:      regexp.MustCompile(`\(default "[^"]*"\)`),
		rewrite: func(g []string) string { return ui.RenderMuted(g[0]) },
	},
}

func colorizeHelp(s string) string {
	for _, rule := range helpRules {
		s = rule.re.ReplaceAllStringFunc(s, func(match string) string {
			return rule.rewrite(rule.re.FindStringSubmatch(match))
		})
	}
	return s
}

// colorizedHelpFunc returns a Cobra help function that renders the default
// help into a buffer and recolors it when stdout supports ANSI.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		orig := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			cmd.SetOut(orig)
			_ = cmd.Usage()
			return
		}

		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(orig)

		fmt.Fprint(orig, colorizeHelp(buf.String()))
	}
}
