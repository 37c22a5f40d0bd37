// Package main is the entry point for the sensorsync CLI.
//
// sensorsync can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	sensorsync serve -c config.yaml    # Poll the sensor and serve the dashboard
//	sensorsync validate -c config.yaml # Validate configuration
//	sensorsync probe -c config.yaml    # Fetch and reconcile once, print the result
//	sensorsync version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "sensorsync",
	Short: "Keep a trustworthy current reading from an unreliable sensor feed",
	Long: `sensorsync polls a sensor endpoint on a fixed interval and keeps the
reading a dashboard should display.

When the endpoint fails, or keeps returning the same values for longer than
the stale threshold, the fallback reading is shown instead of frozen data.

Quick start:
  1. Create a config file (sensorsync.yaml)
  2. Run: sensorsync serve -c sensorsync.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  endpoint_url: http://localhost:8000/sensores
  poll_interval: 5s
  stale_threshold: 20s`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this sensorsync binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "sensorsync %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
