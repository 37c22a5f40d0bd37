package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/sensorsync"
	"github.com/jpalmerr/sensorsync/config"
	"github.com/jpalmerr/sensorsync/reading"
)

// probeCmd performs one fetch-and-reconcile cycle and prints the result.
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Fetch the sensor endpoint once and print the reconciled reading",
	Long: `Fetch the sensor endpoint once, normalize the payload and reconcile it
against a fresh engine, then print the result as JSON.

Nothing is journaled or published. The command exits non-zero when the
fetch or the payload failed, so it can be used as a smoke test.

Example:
  sensorsync probe -c config.yaml
  sensorsync probe --url http://localhost:8000/sensores`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringP("config", "c", "", "path to config file")
	probeCmd.Flags().String("env-file", "", "load environment variables from this file before expanding the config")
	probeCmd.Flags().String("url", "", "sensor endpoint URL (overrides the config file)")
	probeCmd.MarkFlagsOneRequired("config", "url")
}

// probeResult is the JSON document printed by probe.
type probeResult struct {
	Endpoint  string              `json:"endpoint"`
	Decision  sensorsync.Decision `json:"decision"`
	State     sensorsync.Mode     `json:"state"`
	Reading   reading.Reading     `json:"reading"`
	Candidate reading.Reading     `json:"candidate"`
	LatencyMS int64               `json:"latency_ms"`
	Error     string              `json:"error,omitempty"`
	ErrorKind string              `json:"error_kind,omitempty"`
}

func runProbe(cmd *cobra.Command, args []string) error {
	// a failed probe is not a usage error
	cmd.SilenceUsage = true

	logger, logCloser := newLogger(config.LogConfig{Level: "warn"})
	defer logCloser.Close()

	opts := []sensorsync.Option{}
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		opts = config.BuildOptions(cfg, logger)
	} else {
		opts = append(opts, sensorsync.WithLogger(logger))
	}
	if url, _ := cmd.Flags().GetString("url"); url != "" {
		opts = append(opts, sensorsync.WithEndpointURL(url))
	}
	opts = append(opts, sensorsync.WithoutServer())

	eng, err := sensorsync.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), eng.PollInterval()+time.Second)
	defer cancel()

	c, ok := eng.Tick(ctx)
	if !ok {
		return errors.New("probe cancelled before the fetch completed")
	}

	res := probeResult{
		Endpoint:  eng.EndpointURL(),
		Decision:  c.Decision,
		State:     c.To,
		Reading:   c.Reading,
		Candidate: c.Candidate,
		LatencyMS: c.Latency.Milliseconds(),
	}
	if c.Err != nil {
		res.Error = c.Err.Error()
		res.ErrorKind = reading.FailureKind(c.Err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	if c.Err != nil {
		return fmt.Errorf("probe failed: %w", c.Err)
	}
	return nil
}
