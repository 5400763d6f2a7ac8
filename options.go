package heartboard

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jpalmerr/heartboard/internal/actuator"
	"github.com/jpalmerr/heartboard/telemetry"
)

// hbConfig holds mutable state during HeartBoard construction.
type hbConfig struct {
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
	modbus              *actuator.Config
	readingCallbacks    []func(Update)
	transitionCallbacks []func(Update)
}

// Option configures a [HeartBoard] during construction.
// Options return an error if validation fails.
type Option func(*hbConfig) error

// WithSourceURL sets the base URL of the sensor bridge, e.g.
// "http://192.168.240.1:80". Readings are fetched from {base}/api/heartrate/.
//
// Required unless [WithSourceHost] is used.
func WithSourceURL(base string) Option {
	return func(cfg *hbConfig) error {
		u, err := url.Parse(base)
		if err != nil {
			return fmt.Errorf("invalid source url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("source url must use http or https, got %q", u.Scheme)
		}
		if u.Host == "" {
			return errors.New("source url must have a host")
		}
		cfg.sourceURL = strings.TrimRight(u.String(), "/") + HeartRatePath
		return nil
	}
}

// WithSourceHost sets the bridge address as host and port over plain HTTP.
func WithSourceHost(host string, port int) Option {
	return func(cfg *hbConfig) error {
		if host == "" {
			return errors.New("source host cannot be empty")
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("source port must be between 1 and 65535, got %d", port)
		}
		return WithSourceURL("http://" + net.JoinHostPort(host, strconv.Itoa(port)))(cfg)
	}
}

// WithPollInterval sets the minimum time between bridge requests.
// Defaults to 1s. Returns an error if the interval is below 10ms.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *hbConfig) error {
		if d < minPollInterval {
			return fmt.Errorf("poll interval must be at least %s, got %s", minPollInterval, d)
		}
		cfg.pollInterval = d
		return nil
	}
}

// WithRequestTimeout bounds each bridge request. It must be shorter than the
// poll interval, which [New] checks. Defaults to 80% of the poll interval.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *hbConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithSchema selects the bridge payload layout. Defaults to
// [telemetry.HeartRateSchema].
func WithSchema(s telemetry.Schema) Option {
	return func(cfg *hbConfig) error {
		if s == nil {
			return errors.New("schema cannot be nil")
		}
		cfg.schema = s
		return nil
	}
}

// WithPort sets the HTTP port of the dashboard. Defaults to 8080.
func WithPort(port int) Option {
	return func(cfg *hbConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithAllowedOrigins restricts CORS on the HTTP API. By default any origin
// may read it.
func WithAllowedOrigins(origins ...string) Option {
	return func(cfg *hbConfig) error {
		cfg.allowedOrigins = append(cfg.allowedOrigins, origins...)
		return nil
	}
}

// WithTitle sets the dashboard title. Defaults to "HeartBoard".
func WithTitle(title string) Option {
	return func(cfg *hbConfig) error {
		cfg.title = title
		return nil
	}
}

// WithDisplay replaces the rendering parameters served to the dashboard.
func WithDisplay(d Display) Option {
	return func(cfg *hbConfig) error {
		if err := d.validate(); err != nil {
			return err
		}
		cfg.display = d
		return nil
	}
}

// WithFrameRate sets how many host frames run per second. Every frame ticks
// the poller. Defaults to 60.
func WithFrameRate(fps int) Option {
	return func(cfg *hbConfig) error {
		if fps <= 0 || fps > 1000 {
			return fmt.Errorf("frame rate must be between 1 and 1000, got %d", fps)
		}
		cfg.display.FrameRate = fps
		return nil
	}
}

// WithLogger sets the [slog.Logger]. Defaults to [slog.Default].
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *hbConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithErrorReporter receives every acquisition failure exactly once. Without
// it failures are logged at WARN.
//
// The reporter runs on request goroutines and must be safe for concurrent
// use. Panics are recovered and logged.
func WithErrorReporter(r ErrorReporter) Option {
	return func(cfg *hbConfig) error {
		if r == nil {
			return errors.New("error reporter cannot be nil")
		}
		cfg.reporter = r
		return nil
	}
}

// WithActuator drives a custom [Actuator] whenever its output changes.
func WithActuator(a Actuator) Option {
	return func(cfg *hbConfig) error {
		if a == nil {
			return errors.New("actuator cannot be nil")
		}
		if cfg.actuator != nil || cfg.modbus != nil {
			return errors.New("only one actuator may be configured")
		}
		cfg.actuator = a
		return nil
	}
}

// ModbusConfig addresses the built-in Modbus TCP actuator.
type ModbusConfig struct {
	// Endpoint is host:port of the Modbus TCP server.
	Endpoint string

	// UnitID is the Modbus slave ID.
	UnitID uint8

	// Coil is set ON while a heart rate is being reported.
	Coil uint16

	// Register receives the device-state code; Register+1 receives the bpm.
	Register uint16

	// Timeout bounds connect and each write. Defaults to 1s.
	Timeout time.Duration
}

// WithModbusActuator mirrors the device state onto a Modbus TCP server.
//
// The state register holds 0 (disconnected), 1 (sensor absent), 2 (source
// absent), 3 (collecting) or 4 (reporting). The connection is opened lazily
// and re-established after a failed write.
func WithModbusActuator(mc ModbusConfig) Option {
	return func(cfg *hbConfig) error {
		if mc.Endpoint == "" {
			return errors.New("modbus endpoint cannot be empty")
		}
		if cfg.actuator != nil || cfg.modbus != nil {
			return errors.New("only one actuator may be configured")
		}
		cfg.modbus = &actuator.Config{
			Endpoint: mc.Endpoint,
			UnitID:   mc.UnitID,
			Coil:     mc.Coil,
			Register: mc.Register,
			Timeout:  mc.Timeout,
		}
		return nil
	}
}

// WithReadingCallback registers a function called after every completed poll,
// successful or not.
//
// Callbacks run synchronously on one goroutine in registration order and
// must not block. Panics are recovered and logged. Nil callbacks are ignored.
func WithReadingCallback(cb func(Update)) Option {
	return func(cfg *hbConfig) error {
		if cb == nil {
			return nil
		}
		cfg.readingCallbacks = append(cfg.readingCallbacks, cb)
		return nil
	}
}

// WithTransitionCallback registers a function called when the device state
// changes, including to and from disconnected.
//
// Same execution rules as [WithReadingCallback].
func WithTransitionCallback(cb func(Update)) Option {
	return func(cfg *hbConfig) error {
		if cb == nil {
			return nil
		}
		cfg.transitionCallbacks = append(cfg.transitionCallbacks, cb)
		return nil
	}
}
