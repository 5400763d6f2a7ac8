// Package heartboard turns a heart-rate sensor bridge into a live display.
//
// A HeartBoard polls GET {base}/api/heartrate/ on a fixed interval, classifies
// each response into a device state (see package telemetry), and exposes the
// latest reading to a web dashboard, an optional actuator, Prometheus metrics
// and registered callbacks.
//
// # Quick Start
//
//	hb, _ := heartboard.New(
//	    heartboard.WithSourceURL("http://192.168.240.1"),
//	    heartboard.WithPollInterval(time.Second),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	hb.Start(ctx) // blocks until ctx is cancelled
//
// # Acquisition
//
// Start runs a host loop at the display frame rate. Each frame ticks the
// poller; a request is dispatched only when the poll interval has elapsed
// since the previous dispatch, and the dispatch time is stamped before the
// request resolves, so a hung bridge never causes a request storm. Every
// completion replaces the current reading: a classified response becomes
// the reading, any failure makes it absent (nil). Failures are reported once
// through [WithErrorReporter] and never stop the loop.
//
// If the request timeout is configured close to the poll interval two
// requests can overlap; the last one to complete wins even if it was sent
// first. The timeout must be shorter than the interval to bound that window.
//
// # Consumers
//
//   - [HeartBoard.CurrentReading]: latest reading, nil when absent
//   - [WithReadingCallback]: every completed poll
//   - [WithTransitionCallback]: device state changes only
//   - [WithActuator], [WithModbusActuator]: external output on change
//   - HTTP: "/" dashboard, "/api/reading", "/api/sse", "/api/display", "/metrics"
//
// The internal packages (internal/poller, internal/store, internal/server,
// internal/actuator, internal/metrics) are not part of the public API.
package heartboard
