package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/heartboard/telemetry"
)

// updatesBuffer bounds how many completed polls may wait for a consumer.
const updatesBuffer = 16

// ErrStopped is returned by [Poller.Tick] after [Poller.Stop].
var ErrStopped = errors.New("poller: stopped")

// Reporter receives every acquisition failure exactly once.
type Reporter func(kind telemetry.ErrorKind, message string)

// Config is the runtime configuration of a [Poller].
type Config struct {
	// URL is the full telemetry URL, e.g. http://bridge/api/heartrate/.
	URL string

	// Schema selects the payload layout of the bridge.
	Schema telemetry.Schema

	// Interval is the minimum time between request dispatches.
	Interval time.Duration

	// Timeout bounds a single request. Must be shorter than Interval.
	Timeout time.Duration

	// Report receives failures. If nil, failures are logged at WARN.
	Report Reporter
}

// Snapshot is the state of the poller after one completed request.
//
// Snapshots are values; a new one replaces the old one atomically, so a
// reader always sees a consistent Current/Previous pair.
type Snapshot struct {
	// Current is the latest classified reading, nil when absent.
	Current *telemetry.Reading

	// Previous is the Current of the preceding snapshot.
	Previous *telemetry.Reading

	// Err is the failure that produced an absent Current, if any.
	Err error

	// RequestID is the correlation ID of the request that produced this snapshot.
	RequestID string

	// Latency is the duration of that request.
	Latency time.Duration

	// UpdatedAt is when the snapshot was applied.
	UpdatedAt time.Time

	// Seq increases by one with every applied snapshot, starting at 1.
	Seq uint64
}

// Changed reports whether the device state differs from the previous snapshot.
func (s Snapshot) Changed() bool {
	return telemetry.Changed(s.Previous, s.Current)
}

// Poller dispatches telemetry requests when its interval has elapsed and
// folds their outcomes into a [Snapshot].
//
// TIMING SEMANTIC: lastPolledAt is stamped when a request is DISPATCHED, not
// when it completes. A slow or hung request therefore cannot cause a request
// storm. If Interval is shorter than request latency two requests may
// overlap; their outcomes are applied in completion order, so a late stale
// response can overwrite a fresher one (last completion wins). Timeout must
// be shorter than Interval to bound that window.
//
// Tick, Stop, Current and Snapshot are safe for concurrent use.
type Poller struct {
	cfg     Config
	client  Fetcher
	logger  *slog.Logger
	updates chan Snapshot

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	polled       bool
	lastPolledAt time.Time
	stopped      bool
	closeOnce    sync.Once

	// applyMu serializes completions; it is the single writer of snapshot.
	applyMu  sync.Mutex
	seq      uint64
	snapshot atomic.Pointer[Snapshot]
}

// New creates a [Poller].
//
// Returns an error if the URL or schema is missing, if the interval is not
// positive, or if the timeout is not strictly between zero and the interval.
func New(cfg Config, client Fetcher, logger *slog.Logger) (*Poller, error) {
	if cfg.URL == "" {
		return nil, errors.New("poller: url is required")
	}
	if cfg.Schema == nil {
		return nil, errors.New("poller: schema is required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.Timeout <= 0 || cfg.Timeout >= cfg.Interval {
		return nil, fmt.Errorf("poller: timeout must be > 0 and < interval (%s), got %s", cfg.Interval, cfg.Timeout)
	}
	if client == nil {
		return nil, errors.New("poller: client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		updates: make(chan Snapshot, updatesBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Updates returns a channel that emits every applied [Snapshot].
//
// The channel is closed by [Poller.Stop]. Consumers must drain it; a full
// channel holds back the request goroutines until Stop.
func (p *Poller) Updates() <-chan Snapshot {
	return p.updates
}

// Tick dispatches a request if the poll interval has elapsed since the last
// dispatch, and is a no-op otherwise.
//
// The first Tick always dispatches. Tick never waits for the network; the
// request runs on its own goroutine. It reports whether a request was
// dispatched, and returns [ErrStopped] once the poller has been stopped.
func (p *Poller) Tick(now time.Time) (bool, error) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false, ErrStopped
	}
	if p.polled && now.Sub(p.lastPolledAt) < p.cfg.Interval {
		p.mu.Unlock()
		return false, nil
	}
	p.polled = true
	p.lastPolledAt = now
	p.wg.Add(1)
	ctx := p.ctx // capture under lock to avoid race with Stop
	p.mu.Unlock()

	go p.poll(ctx)
	return true, nil
}

// Current returns the latest classified reading, or nil when absent.
func (p *Poller) Current() *telemetry.Reading {
	return p.Snapshot().Current
}

// Snapshot returns the latest applied [Snapshot].
// Before the first completion it returns the zero Snapshot.
func (p *Poller) Snapshot() Snapshot {
	if s := p.snapshot.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

// Stop cancels any in-flight request, waits for request goroutines to exit,
// and releases the transport's idle connections.
//
// Cancelled requests are not reported as failures. Stop is idempotent; only
// the first call can return an error, which comes from releasing the
// transport.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()

	err := p.client.Close()
	p.closeOnce.Do(func() { close(p.updates) })
	if err != nil {
		return fmt.Errorf("poller: release transport: %w", err)
	}
	return nil
}

// poll performs one request and applies its outcome.
func (p *Poller) poll(ctx context.Context) {
	defer p.wg.Done()

	resp := p.client.Fetch(ctx, p.cfg.URL, p.cfg.Timeout)

	// stopped mid-flight: the outcome belongs to nobody
	if ctx.Err() != nil {
		p.logger.Debug("poll cancelled", "request_id", resp.RequestID)
		return
	}

	var (
		reading *telemetry.Reading
		err     error
	)
	if resp.Error != nil {
		err = telemetry.TransportError(resp.Error)
	} else {
		r, cerr := p.safeClassify(resp)
		if cerr != nil {
			err = cerr
		} else {
			reading = &r
		}
	}

	p.apply(ctx, reading, err, resp)

	if err != nil {
		p.report(err, resp)
		return
	}
	p.logger.Debug("poll completed",
		"reading", reading.String(),
		"request_id", resp.RequestID,
		"latency_ms", resp.Latency.Milliseconds(),
	)
}

// apply is the single update step: previous = current; current = reading.
//
// The snapshot is published on Updates before applyMu is released, so
// consumers receive snapshots in Seq order and the last one delivered is the
// one Snapshot returns.
func (p *Poller) apply(ctx context.Context, reading *telemetry.Reading, err error, resp Response) {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	p.seq++
	next := Snapshot{
		Current:   reading,
		Err:       err,
		RequestID: resp.RequestID,
		Latency:   resp.Latency,
		UpdatedAt: time.Now(),
		Seq:       p.seq,
	}
	if prev := p.snapshot.Load(); prev != nil {
		next.Previous = prev.Current
	}
	p.snapshot.Store(&next)

	select {
	case p.updates <- next:
	case <-ctx.Done():
	}
}

// report hands a failure to the configured reporter exactly once.
func (p *Poller) report(err error, resp Response) {
	kind := telemetry.KindOf(err)
	if p.cfg.Report != nil {
		p.cfg.Report(kind, err.Error())
		return
	}
	p.logger.Warn("poll failed",
		"kind", string(kind),
		"error", err.Error(),
		"status_code", resp.StatusCode,
		"request_id", resp.RequestID,
	)
}

// safeClassify calls the classifier with panic recovery.
// A schema that panics yields an invalid-root error carrying a correlation
// ID; the full stack trace is logged.
func (p *Poller) safeClassify(resp Response) (reading telemetry.Reading, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			p.logger.Error("classifier panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = telemetry.InvalidField(telemetry.RootField,
				fmt.Errorf("classifier panic (correlation_id: %s)", correlationID))
		}
	}()
	return telemetry.Classify(resp.StatusCode, resp.Body, p.cfg.Schema)
}
