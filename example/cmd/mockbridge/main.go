// Standalone mock sensor bridge for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockbridge
//
// Then in another terminal:
//
//	go run ./cmd/heartboard serve -c example/config.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/heartboard/telemetry"
)

// phases of a simulated session, in device status codes
var phases = []struct {
	status   telemetry.Status
	duration time.Duration
}{
	{telemetry.SensorAbsent, 4 * time.Second},
	{telemetry.SourceAbsent, 6 * time.Second},
	{telemetry.CollectingData, 5 * time.Second},
	{telemetry.ReportingData, 30 * time.Second},
}

func main() {
	var (
		addr       string
		schemaName string
		failEvery  int
	)

	cmd := &cobra.Command{
		Use:   "mockbridge",
		Short: "Serve a simulated heart-rate sensor bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := telemetry.SchemaByName(schemaName)
			if err != nil {
				return err
			}
			fmt.Printf("Mock bridge starting on %s (schema %s)\n", addr, schema.Name())
			fmt.Println("States cycle through: sensor_absent → source_absent → collecting_data → reporting_data")
			fmt.Println("Press Ctrl+C to stop")
			fmt.Println()
			return http.ListenAndServe(addr, newBridge(schema, failEvery))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9999", "listen address")
	cmd.Flags().StringVar(&schemaName, "schema", "hr", "payload layout: hr or period_rate")
	cmd.Flags().IntVar(&failEvery, "fail-every", 0, "answer every Nth request with 503 (0 disables)")

	if err := cmd.Execute(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newBridge(schema telemetry.Schema, failEvery int) http.Handler {
	var (
		mu       sync.Mutex
		phase    int
		since    = time.Now()
		bpm      = 72
		requests int
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/heartrate/", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(10+rand.Intn(40)) * time.Millisecond)

		mu.Lock()
		requests++
		if failEvery > 0 && requests%failEvery == 0 {
			mu.Unlock()
			http.Error(w, "bridge busy", http.StatusServiceUnavailable)
			return
		}
		if time.Since(since) > phases[phase].duration {
			from := phases[phase].status
			phase = (phase + 1) % len(phases)
			since = time.Now()
			slog.Info("device state change", "from", from.String(), "to", phases[phase].status.String())
		}
		status := phases[phase].status
		bpm = min(max(bpm+rand.Intn(5)-2, 55), 120)
		current := bpm
		mu.Unlock()

		body := map[string]int{"status": int(status)}
		if status.Attached() {
			for _, field := range schema.RateFields() {
				body[field] = current
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	return mux
}
