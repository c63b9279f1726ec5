package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the knot server",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		status, err := knotClient.Health(context.Background())
		rtt := time.Since(start).Round(time.Millisecond)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			printJSON(map[string]any{"status": status, "rtt_ms": rtt.Milliseconds()})
		} else {
			fmt.Printf("Health: %s (%s, %s)\n", status, serverURL, rtt)
		}

		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}
