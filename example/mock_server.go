package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// feedMode is how the mock sensor currently behaves.
type feedMode string

const (
	feedLive    feedMode = "live"    // values drift every request
	feedFrozen  feedMode = "frozen"  // values stop changing
	feedFailing feedMode = "failing" // requests fail with 503
)

// mockSensor produces readings that drift, freeze and fail in turn.
type mockSensor struct {
	mu           sync.Mutex
	mode         feedMode
	nextChangeAt time.Time
	temperature  float64
	luminosity   float64
	sound        float64
}

func newMockSensor() *mockSensor {
	return &mockSensor{
		mode:         feedLive,
		nextChangeAt: time.Now().Add(time.Duration(30+rand.Intn(31)) * time.Second),
		temperature:  22,
		luminosity:   300,
		sound:        40,
	}
}

// advance moves to the next mode when its time has come and drifts the
// values while live.
func (m *mockSensor) advance(now time.Time) {
	if now.After(m.nextChangeAt) {
		old := m.mode
		switch m.mode {
		case feedLive:
			m.mode = feedFrozen
		case feedFrozen:
			m.mode = feedFailing
		default:
			m.mode = feedLive
		}
		// schedule next change in 30-60 seconds
		m.nextChangeAt = now.Add(time.Duration(30+rand.Intn(31)) * time.Second)
		slog.Info("sensor mode change", "from", old, "to", m.mode)
	}

	if m.mode == feedLive {
		m.temperature += rand.Float64() - 0.5
		m.luminosity += float64(rand.Intn(41) - 20)
		m.sound += float64(rand.Intn(7) - 3)
	}
}

// ServeHTTP answers with the Portuguese field names real sensors use.
func (m *mockSensor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// simulate small latency variance
	time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

	m.mu.Lock()
	m.advance(time.Now())
	mode := m.mode
	resp := map[string]any{
		"temperatura":  m.temperature,
		"luminosidade": m.luminosity,
		"som":          m.sound,
		"status":       "ok",
	}
	m.mu.Unlock()

	if mode == feedFailing {
		http.Error(w, "sensor offline", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// StartMockSensorServer runs the mock sensor at addr under /sensores.
// Call this in a goroutine before starting the engine.
func StartMockSensorServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/sensores", newMockSensor())

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
