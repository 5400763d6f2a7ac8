package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/heartboard"
	"github.com/jpalmerr/heartboard/telemetry"
)

func main() {
	// start mock bridge (see mock_bridge.go)
	go StartMockBridge(":9999")
	time.Sleep(100 * time.Millisecond)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	hb, err := heartboard.New(
		heartboard.WithSourceHost("localhost", 9999),
		heartboard.WithPollInterval(time.Second),
		heartboard.WithPort(8080),
		heartboard.WithTitle("HeartBoard Demo"),
		heartboard.WithLogger(logger),
		heartboard.WithErrorReporter(func(kind telemetry.ErrorKind, message string) {
			logger.Warn("bridge read failed", "kind", string(kind), "error", message)
		}),
		heartboard.WithTransitionCallback(func(u heartboard.Update) {
			fmt.Printf("  %-26s -> %s\n", u.Hint, stateOf(u.Current))
		}),
	)
	if err != nil {
		slog.Error("failed to create heartboard", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   HeartBoard Demo                                     ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   The mock bridge cycles through every sensor state   ║")
	fmt.Println("  ║   about once every 45 seconds.                        ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := hb.Start(ctx); err != nil {
		slog.Error("heartboard error", "error", err)
		os.Exit(1)
	}
}

func stateOf(r *telemetry.Reading) string {
	if r == nil {
		return "disconnected"
	}
	return r.String()
}
