package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/knotline/knot/internal/client"
	"github.com/knotline/knot/internal/ui"
	"github.com/spf13/cobra"
)

var (
	serverURL  string
	authToken  string
	roomID     string
	sender     string
	jsonOutput bool
	noColor    bool

	knotClient client.KnotClient
)

// defaultSender builds a sender ID from KNOT_SENDER, falling back to the
// git user name in @name:local form.
func defaultSender() string {
	if s := os.Getenv("KNOT_SENDER"); s != "" {
		return s
	}
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return "@" + strings.ToLower(strings.ReplaceAll(name, " ", ".")) + ":local"
		}
	}
	return "@unknown:local"
}

func defaultServerURL() string {
	if s := os.Getenv("KNOT_URL"); s != "" {
		return s
	}
	if u := activeRemote().URL; u != "" {
		return u
	}
	return "http://localhost:8008"
}

func defaultToken() string {
	if t := os.Getenv("KNOT_TOKEN"); t != "" {
		return t
	}
	return activeRemote().Token
}

func defaultRoom() string {
	return os.Getenv("KNOT_ROOM")
}

var rootCmd = &cobra.Command{
	Use:   "knot <command>",
	Short: "CLI client for the knot relation server",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		knotClient = client.NewHTTPClient(serverURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if knotClient != nil {
			knotClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", defaultServerURL(), "knot server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token for authentication")
	rootCmd.PersistentFlags().StringVarP(&roomID, "room", "r", defaultRoom(), "room ID (default: $KNOT_ROOM)")
	rootCmd.PersistentFlags().StringVar(&sender, "sender", defaultSender(), "sender ID for created events")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable ANSI colors")

	rootCmd.AddGroup(
		&cobra.Group{ID: "events", Title: "Events:"},
		&cobra.Group{ID: "relations", Title: "Relations:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Events
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(redactCmd)

	// Relations
	rootCmd.AddCommand(reactCmd)
	rootCmd.AddCommand(replyCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(relateCmd)
	rootCmd.AddCommand(relationsCmd)
	rootCmd.AddCommand(aggregationsCmd)
	rootCmd.AddCommand(groupCmd)

	// Views
	rootCmd.AddCommand(presenceCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func requireRoom() error {
	if roomID == "" {
		return fmt.Errorf("--room is required (or set KNOT_ROOM)")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
