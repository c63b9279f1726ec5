package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var remoteCmd = &cobra.Command{
	Use:     "remote",
	Short:   "Manage named server remotes",
	GroupID: "system",
	// All remote subcommands are local file operations; skip client setup.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

func lookupRemote(cfg RemotesConfig, name string) (Remote, error) {
	r, ok := cfg.Remotes[name]
	if !ok {
		return Remote{}, fmt.Errorf("remote %q not found", name)
	}
	return r, nil
}

// shortToken keeps the first 8 characters for table output.
func shortToken(tok string) string {
	if len(tok) > 8 {
		return tok[:8] + "..."
	}
	return tok
}

// maskToken keeps the first 8 characters and stars the rest.
func maskToken(tok string) string {
	if len(tok) > 8 {
		return tok[:8] + strings.Repeat("*", len(tok)-8)
	}
	return tok
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add or update a named remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, url := args[0], args[1]
		token, _ := cmd.Flags().GetString("token")
		natsURL, _ := cmd.Flags().GetString("nats")

		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		cfg.Remotes[name] = Remote{URL: url, Token: token, NATSURL: natsURL}
		if err := saveRemotesConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("saved remote %q (%s)\n", name, url)
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a named remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		if _, err := lookupRemote(cfg, name); err != nil {
			return err
		}
		delete(cfg.Remotes, name)
		if cfg.Active == name {
			cfg.Active = ""
		}
		if err := saveRemotesConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("removed remote %q\n", name)
		return nil
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		if _, err := lookupRemote(cfg, name); err != nil {
			return err
		}
		cfg.Active = name
		if err := saveRemotesConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("switched active remote to %q\n", name)
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all remotes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		if len(cfg.Remotes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no remotes configured")
			return nil
		}

		names := make([]string, 0, len(cfg.Remotes))
		for name := range cfg.Remotes {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tNATS\tTOKEN")
		for _, name := range names {
			r := cfg.Remotes[name]
			marker := "  "
			if name == cfg.Active {
				marker = "* "
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", marker, name, r.URL, r.NATSURL, shortToken(r.Token))
		}
		return w.Flush()
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [<name>]",
	Short: "Show details for a remote (defaults to active)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}

		name := cfg.Active
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("no active remote; specify a name or run 'knot remote use <name>'")
		}

		r, err := lookupRemote(cfg, name)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		suffix := ""
		if name == cfg.Active {
			suffix = " (active)"
		}
		fmt.Fprintf(out, "Name:  %s%s\n", name, suffix)
		fmt.Fprintf(out, "URL:   %s\n", r.URL)
		if r.Token != "" {
			fmt.Fprintf(out, "Token: %s\n", maskToken(r.Token))
		}
		if r.NATSURL != "" {
			fmt.Fprintf(out, "NATS:  %s\n", r.NATSURL)
		}
		return nil
	},
}

func init() {
	remoteAddCmd.Flags().String("token", "", "bearer token for authentication")
	remoteAddCmd.Flags().String("nats", "", "NATS URL for event streaming")

	remoteCmd.AddCommand(remoteAddCmd)
	remoteCmd.AddCommand(remoteRemoveCmd)
	remoteCmd.AddCommand(remoteListCmd)
	remoteCmd.AddCommand(remoteUseCmd)
	remoteCmd.AddCommand(remoteShowCmd)
}
