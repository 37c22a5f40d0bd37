package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/sensorsync"
	"github.com/jpalmerr/sensorsync/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts polling and the dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the sensor endpoint and serve the dashboard",
	Long: `Start polling the configured sensor endpoint.

The server will:
  - Load configuration from the specified YAML file
  - Poll the endpoint immediately, then every poll interval
  - Journal and publish every change of the displayed reading, if configured
  - Serve the dashboard UI, API and metrics on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  sensorsync serve -c config.yaml
  sensorsync serve -c config.yaml --env-file .env`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addConfigFlags(serveCmd)
}

// addConfigFlags registers the flags shared by commands that read a config file.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "path to config file (required)")
	cmd.Flags().String("env-file", "", "load environment variables from this file before expanding the config")
	_ = cmd.MarkFlagRequired("config")
}

// loadConfig loads the optional env file, then the config file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	configFile, _ := cmd.Flags().GetString("config")
	return config.Load(configFile)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, logCloser := newLogger(cfg.Log)
	defer logCloser.Close()

	logger.Info("config loaded",
		"endpoint", cfg.EndpointURL,
		"journal", cfg.Journal != "",
		"mqtt", cfg.MQTT != nil,
		"kafka", cfg.Kafka != nil,
	)

	eng, err := sensorsync.New(config.BuildOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start engine - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- eng.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("engine error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("engine error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
