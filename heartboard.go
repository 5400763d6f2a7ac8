package heartboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpalmerr/heartboard/dashboard"
	"github.com/jpalmerr/heartboard/internal/actuator"
	"github.com/jpalmerr/heartboard/internal/metrics"
	"github.com/jpalmerr/heartboard/internal/poller"
	"github.com/jpalmerr/heartboard/internal/server"
	"github.com/jpalmerr/heartboard/internal/store"
	"github.com/jpalmerr/heartboard/telemetry"
)

const (
	// HeartRatePath is appended to the bridge base URL.
	HeartRatePath = "/api/heartrate/"

	defaultPollInterval = time.Second
	defaultPort         = 8080
	minPollInterval     = 10 * time.Millisecond

	// actuateTimeout bounds one actuator call from the update loop.
	actuateTimeout = 5 * time.Second
)

// ErrorReporter receives acquisition failures.
type ErrorReporter func(kind telemetry.ErrorKind, message string)

// Actuator drives an external output from the device state.
//
// Actuate receives nil when the bridge could not be read. It is called from
// a single goroutine, only when the actuated output changes. Errors are
// logged and never stop acquisition.
type Actuator interface {
	Actuate(ctx context.Context, reading *telemetry.Reading) error
	Close() error
}

// HeartBoard polls a sensor bridge, classifies its readings, and serves them
// to a dashboard, an optional actuator, and registered callbacks.
//
//	hb, err := heartboard.New(heartboard.WithSourceURL("http://192.168.240.1"))
//	if err != nil {
//	    slog.Error("failed to create heartboard", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	hb.Start(ctx) // blocks until ctx is cancelled
type HeartBoard struct {
	title               string
	sourceURL           string
	pollInterval        time.Duration
	requestTimeout      time.Duration
	schema              telemetry.Schema
	port                int
	allowedOrigins      []string
	display             Display
	logger              *slog.Logger
	reporter            ErrorReporter
	actuator            Actuator
	readingCallbacks    []func(Update)
	transitionCallbacks []func(Update)

	running atomic.Bool
	poller  atomic.Pointer[poller.Poller]
}

// New creates a [HeartBoard].
//
// A source must be configured with [WithSourceURL] or [WithSourceHost].
// Defaults: 1s poll interval, request timeout 80% of the interval, "hr"
// schema, port 8080, [DefaultDisplay].
//
// Returns an error if an option is invalid or the request timeout is not
// shorter than the poll interval.
func New(opts ...Option) (*HeartBoard, error) {
	cfg := &hbConfig{
		pollInterval: defaultPollInterval,
		schema:       telemetry.HeartRateSchema,
		port:         defaultPort,
		display:      DefaultDisplay(),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.sourceURL == "" {
		return nil, errors.New("a source url is required")
	}

	if cfg.requestTimeout == 0 {
		cfg.requestTimeout = cfg.pollInterval * 4 / 5
	}
	if cfg.requestTimeout >= cfg.pollInterval {
		return nil, fmt.Errorf("request timeout (%s) must be shorter than poll interval (%s)",
			cfg.requestTimeout, cfg.pollInterval)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	act := cfg.actuator
	if cfg.modbus != nil {
		m, err := actuator.NewModbus(*cfg.modbus, logger)
		if err != nil {
			return nil, err
		}
		act = m
	}

	return &HeartBoard{
		title:               cfg.title,
		sourceURL:           cfg.sourceURL,
		pollInterval:        cfg.pollInterval,
		requestTimeout:      cfg.requestTimeout,
		schema:              cfg.schema,
		port:                cfg.port,
		allowedOrigins:      cfg.allowedOrigins,
		display:             cfg.display,
		logger:              logger,
		reporter:            cfg.reporter,
		actuator:            act,
		readingCallbacks:    cfg.readingCallbacks,
		transitionCallbacks: cfg.transitionCallbacks,
	}, nil
}

// Start polls the bridge and serves the dashboard until ctx is cancelled.
//
// Every frame (see [WithFrameRate]) ticks the poller, which dispatches a
// request only once the poll interval has elapsed. On cancellation the
// in-flight request is abandoned, pending updates are drained, and the
// transport and actuator are released.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails
// to start, if Start is already running, or if releasing resources fails.
func (hb *HeartBoard) Start(ctx context.Context) error {
	if !hb.running.CompareAndSwap(false, true) {
		return errors.New("heartboard already started")
	}
	defer hb.running.Store(false)

	hb.logger.Info("heartboard starting",
		"source", hb.sourceURL,
		"schema", hb.schema.Name(),
		"poll_interval", hb.pollInterval.String(),
		"request_timeout", hb.requestTimeout.String(),
	)
	hb.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", hb.port))

	if ctx.Err() != nil {
		return nil
	}

	p, err := poller.New(poller.Config{
		URL:      hb.sourceURL,
		Schema:   hb.schema,
		Interval: hb.pollInterval,
		Timeout:  hb.requestTimeout,
		Report:   hb.reportFunc(),
	}, poller.NewClient(), hb.logger)
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}
	hb.poller.Store(p)

	readings := store.NewMemoryStore()
	m := metrics.New()

	// updates consumer; exits when Stop closes the channel
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hb.consume(ctx, p.Updates(), readings, m)
	}()

	cleanup := func() error {
		stopErr := p.Stop()
		wg.Wait()
		var closeErr error
		if hb.actuator != nil {
			if err := hb.actuator.Close(); err != nil {
				closeErr = fmt.Errorf("close actuator: %w", err)
			}
		}
		return errors.Join(stopErr, closeErr)
	}

	httpServer := server.NewServer(readings, server.Config{
		Port:           hb.port,
		Title:          hb.title,
		Assets:         dashboard.Assets,
		Display:        hb.display,
		Metrics:        m.Handler(),
		AllowedOrigins: hb.allowedOrigins,
	}, hb.logger)
	if err := httpServer.Start(ctx); err != nil {
		_ = cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	ticker := time.NewTicker(hb.display.FrameInterval())
	defer ticker.Stop()

	hb.tick(p, time.Now())
	for {
		select {
		case <-ctx.Done():
			if err := cleanup(); err != nil {
				hb.logger.Error("heartboard shutdown failed", "error", err)
				return err
			}
			hb.logger.Info("heartboard stopped")
			return nil
		case now := <-ticker.C:
			hb.tick(p, now)
		}
	}
}

func (hb *HeartBoard) tick(p *poller.Poller, now time.Time) {
	if _, err := p.Tick(now); err != nil && !errors.Is(err, poller.ErrStopped) {
		hb.logger.Error("poller tick failed", "error", err)
	}
}

// consume applies every poll outcome to the consumers, in order.
func (hb *HeartBoard) consume(ctx context.Context, updates <-chan poller.Snapshot, readings store.Store, m *metrics.Metrics) {
	var out actuated

	for snap := range updates {
		readings.Update(snapshotToView(snap))
		m.ObservePoll(snap.Current, snap.Err, snap.Latency)

		u := snapshotToUpdate(snap)

		if hb.actuator != nil {
			next := actuatedOf(snap.Current)
			if next != out {
				err := hb.actuate(ctx, snap.Current)
				m.ObserveActuation(err)
				if err == nil {
					out = next
				}
			}
		}

		if u.Changed() {
			m.ObserveTransition()
			hb.logger.Info("device state changed",
				"from", stateName(u.Previous),
				"to", stateName(u.Current),
				"hint", u.Hint,
			)
			for _, cb := range hb.transitionCallbacks {
				invokeCallbackSafe(cb, u, hb.logger)
			}
		}

		for _, cb := range hb.readingCallbacks {
			invokeCallbackSafe(cb, u, hb.logger)
		}
	}

	// leave the output showing disconnected rather than a stale state
	if hb.actuator != nil && out.connected {
		m.ObserveActuation(hb.actuate(ctx, nil))
	}
}

func (hb *HeartBoard) actuate(ctx context.Context, r *telemetry.Reading) error {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), actuateTimeout)
	defer cancel()

	if err := hb.actuator.Actuate(actx, r); err != nil {
		hb.logger.Warn("actuation failed", "state", stateName(r), "error", err.Error())
		return err
	}
	hb.logger.Debug("actuated", "state", stateName(r))
	return nil
}

// actuated is the output an actuator last acknowledged.
type actuated struct {
	connected bool
	status    telemetry.Status
	bpm       int
}

func actuatedOf(r *telemetry.Reading) actuated {
	if r == nil {
		return actuated{}
	}
	bpm, _ := r.Value()
	return actuated{connected: true, status: r.Status(), bpm: bpm}
}

func stateName(r *telemetry.Reading) string {
	if r == nil {
		return "disconnected"
	}
	return r.Status().String()
}

// reportFunc adapts the user reporter with panic recovery.
// nil lets the poller log failures itself.
func (hb *HeartBoard) reportFunc() poller.Reporter {
	if hb.reporter == nil {
		return nil
	}
	return func(kind telemetry.ErrorKind, message string) {
		defer func() {
			if r := recover(); r != nil {
				hb.logger.Error("error reporter panicked", "panic", r, "kind", string(kind))
			}
		}()
		hb.reporter(kind, message)
	}
}

// CurrentReading returns the latest classified reading, or nil when the
// bridge could not be read or no poll has completed.
func (hb *HeartBoard) CurrentReading() *telemetry.Reading {
	if p := hb.poller.Load(); p != nil {
		return p.Current()
	}
	return nil
}

// SourceURL returns the full telemetry URL that is polled.
func (hb *HeartBoard) SourceURL() string {
	return hb.sourceURL
}

// PollInterval returns the minimum time between requests.
func (hb *HeartBoard) PollInterval() time.Duration {
	return hb.pollInterval
}

// RequestTimeout returns the per-request timeout.
func (hb *HeartBoard) RequestTimeout() time.Duration {
	return hb.requestTimeout
}

// Schema returns the configured payload schema.
func (hb *HeartBoard) Schema() telemetry.Schema {
	return hb.schema
}

// Port returns the dashboard HTTP port.
func (hb *HeartBoard) Port() int {
	return hb.port
}

// Display returns the rendering parameters.
func (hb *HeartBoard) Display() Display {
	return hb.display
}

// invokeCallbackSafe calls cb with panic recovery.
func invokeCallbackSafe(cb func(Update), u Update, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("callback panicked",
				"panic", r,
				"seq", u.Seq,
			)
		}
	}()
	cb(u)
}
