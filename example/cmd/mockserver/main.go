// Standalone mock sensor for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver -mode frozen
//
// Then in another terminal:
//
//	go run ./cmd/sensorsync serve -c example/config.yaml
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
)

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	mode := flag.String("mode", "live", "initial mode: live, frozen or failing")
	flag.Parse()

	var (
		mu          sync.Mutex
		current     = *mode
		temperature = 22.0
	)

	fmt.Printf("Mock sensor starting on %s in %s mode\n", *addr, current)
	fmt.Println("Switch modes with: curl -X POST localhost:8000/mode?set=frozen")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	http.HandleFunc("/sensores", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		m := current
		if m == "live" {
			temperature += rand.Float64() - 0.5
		}
		t := temperature
		mu.Unlock()

		if m == "failing" {
			http.Error(w, "sensor offline", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"temperatura":  t,
			"luminosidade": 300,
			"som":          40,
			"status":       "ok",
		})
	})

	http.HandleFunc("/mode", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next := r.URL.Query().Get("set")
		switch next {
		case "live", "frozen", "failing":
		default:
			http.Error(w, "mode must be live, frozen or failing", http.StatusBadRequest)
			return
		}
		mu.Lock()
		slog.Info("sensor mode change", "from", current, "to", next)
		current = next
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	if err := http.ListenAndServe(*addr, nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
