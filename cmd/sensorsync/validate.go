package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the engine.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a sensorsync configuration file without starting the engine.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  sensorsync validate -c config.yaml
  sensorsync validate --config /etc/sensorsync/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addConfigFlags(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	fetchTimeout := "80% of poll interval"
	if cfg.FetchTimeout != 0 {
		fetchTimeout = cfg.FetchTimeout.Duration().String()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Endpoint:        %s\n", cfg.EndpointURL)
	fmt.Fprintf(out, "  Port:            %d\n", cfg.Port)
	fmt.Fprintf(out, "  Poll interval:   %s\n", cfg.PollInterval.Duration())
	fmt.Fprintf(out, "  Stale threshold: %s\n", cfg.StaleThreshold.Duration())
	fmt.Fprintf(out, "  Fetch timeout:   %s\n", fetchTimeout)
	fmt.Fprintf(out, "  Tolerance:       %g\n", cfg.Tolerance)
	fmt.Fprintf(out, "  Sinks:           %s\n", sinkSummary(cfg.Journal != "", cfg.MQTT != nil, cfg.Kafka != nil))

	return nil
}

func sinkSummary(journal, mqtt, kafka bool) string {
	var s string
	for _, sink := range []struct {
		name string
		on   bool
	}{{"journal", journal}, {"mqtt", mqtt}, {"kafka", kafka}} {
		if !sink.on {
			continue
		}
		if s != "" {
			s += ", "
		}
		s += sink.name
	}
	if s == "" {
		return "none"
	}
	return s
}
