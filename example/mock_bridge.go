package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// mockPhase is one step of the simulated wearer's session.
type mockPhase struct {
	status   int
	duration time.Duration
}

// a wearer finds the sensor, puts it on, waits for a lock, then is measured
var mockSession = []mockPhase{
	{status: -1, duration: 4 * time.Second},
	{status: 0, duration: 6 * time.Second},
	{status: 1, duration: 5 * time.Second},
	{status: 2, duration: 30 * time.Second},
}

// StartMockBridge runs a mock sensor bridge on addr that cycles through the
// device states and serves them at /api/heartrate/ in the "hr" layout.
// Call this in a goroutine before starting HeartBoard.
func StartMockBridge(addr string) {
	var (
		mu      sync.Mutex
		phase   int
		since   = time.Now()
		bpm     = 72
		handler = http.NewServeMux()
	)

	handler.HandleFunc("/api/heartrate/", func(w http.ResponseWriter, r *http.Request) {
		// bridges answer in tens of milliseconds
		time.Sleep(time.Duration(10+rand.Intn(40)) * time.Millisecond)

		mu.Lock()
		if time.Since(since) > mockSession[phase].duration {
			from := mockSession[phase].status
			phase = (phase + 1) % len(mockSession)
			since = time.Now()
			slog.Info("device state change", "from", from, "to", mockSession[phase].status)
		}
		status := mockSession[phase].status
		bpm = min(max(bpm+rand.Intn(5)-2, 55), 120)
		current := bpm
		mu.Unlock()

		body := map[string]int{"status": status}
		if status == 1 || status == 2 {
			body["hr"] = current
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("mock bridge error", "error", err)
	}
}
