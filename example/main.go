package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/sensorsync"
)

func main() {
	// start mock sensor (see mock_server.go)
	go StartMockSensorServer(":8000")
	time.Sleep(100 * time.Millisecond)

	eng, err := sensorsync.New(
		sensorsync.WithEndpointURL("http://localhost:8000/sensores"),
		sensorsync.WithPollInterval(5*time.Second),
		sensorsync.WithStaleThreshold(20*time.Second),
		sensorsync.WithPort(8080),
		sensorsync.WithTitle("sensorsync demo"),
		sensorsync.WithReadingCallback(func(c sensorsync.Change) {
			if c.Transition() {
				fmt.Printf("  %s -> %s (%s)\n", c.From, c.To, c.Decision)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  sensorsync demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println()
	fmt.Println("  The mock sensor drifts, then freezes, then fails,")
	fmt.Println("  switching every 30-60 seconds.")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		slog.Error("sensorsync error", "error", err)
		os.Exit(1)
	}
}
