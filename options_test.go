package heartboard

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jpalmerr/heartboard/telemetry"
)

func TestNew_Defaults(t *testing.T) {
	hb, err := New(WithSourceURL("http://192.168.240.1:80"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got, want := hb.SourceURL(), "http://192.168.240.1:80/api/heartrate/"; got != want {
		t.Errorf("SourceURL() = %q, want %q", got, want)
	}
	if hb.PollInterval() != time.Second {
		t.Errorf("PollInterval() = %v, want 1s", hb.PollInterval())
	}
	if hb.RequestTimeout() != 800*time.Millisecond {
		t.Errorf("RequestTimeout() = %v, want 800ms", hb.RequestTimeout())
	}
	if hb.Schema().Name() != "hr" {
		t.Errorf("Schema() = %q, want hr", hb.Schema().Name())
	}
	if hb.Port() != 8080 {
		t.Errorf("Port() = %d, want 8080", hb.Port())
	}
	if hb.Display() != DefaultDisplay() {
		t.Errorf("Display() = %+v, want defaults", hb.Display())
	}
}

func TestNew_RequiresSource(t *testing.T) {
	if _, err := New(); err == nil {
		t.Error("New() without source expected error, got nil")
	}
}

func TestNew_TimeoutMustBeShorterThanInterval(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		wantErr bool
	}{
		{"shorter", 500 * time.Millisecond, false},
		{"equal", time.Second, true},
		{"longer", 2 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(
				WithSourceURL("http://bridge.local"),
				WithPollInterval(time.Second),
				WithRequestTimeout(tt.timeout),
			)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWithSourceURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		want    string
		wantErr bool
	}{
		{"plain host", "http://192.168.240.1", "http://192.168.240.1/api/heartrate/", false},
		{"trailing slash", "http://bridge.local:8080/", "http://bridge.local:8080/api/heartrate/", false},
		{"https", "https://bridge.example.com", "https://bridge.example.com/api/heartrate/", false},
		{"no scheme", "bridge.local", "", true},
		{"ftp scheme", "ftp://bridge.local", "", true},
		{"no host", "http://", "", true},
		{"unparseable", "http://bad host", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &hbConfig{}
			err := WithSourceURL(tt.base)(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("WithSourceURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && cfg.sourceURL != tt.want {
				t.Errorf("sourceURL = %q, want %q", cfg.sourceURL, tt.want)
			}
		})
	}
}

func TestWithSourceHost(t *testing.T) {
	cfg := &hbConfig{}
	if err := WithSourceHost("192.168.240.1", 80)(cfg); err != nil {
		t.Fatalf("WithSourceHost() error = %v", err)
	}
	if want := "http://192.168.240.1:80/api/heartrate/"; cfg.sourceURL != want {
		t.Errorf("sourceURL = %q, want %q", cfg.sourceURL, want)
	}

	if err := WithSourceHost("", 80)(&hbConfig{}); err == nil {
		t.Error("WithSourceHost() with empty host expected error")
	}
	if err := WithSourceHost("bridge", 0)(&hbConfig{}); err == nil {
		t.Error("WithSourceHost() with port 0 expected error")
	}
}

func TestWithPollInterval(t *testing.T) {
	tests := []struct {
		name    string
		d       time.Duration
		wantErr bool
	}{
		{"one second", time.Second, false},
		{"minimum", minPollInterval, false},
		{"below minimum", time.Millisecond, true},
		{"zero", 0, true},
		{"negative", -time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &hbConfig{}
			err := WithPollInterval(tt.d)(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("WithPollInterval() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWithRequestTimeout_Invalid(t *testing.T) {
	if err := WithRequestTimeout(0)(&hbConfig{}); err == nil {
		t.Error("WithRequestTimeout(0) expected error")
	}
}

func TestWithSchema(t *testing.T) {
	cfg := &hbConfig{}
	if err := WithSchema(telemetry.PeriodRateSchema)(cfg); err != nil {
		t.Fatalf("WithSchema() error = %v", err)
	}
	if cfg.schema.Name() != "period_rate" {
		t.Errorf("schema = %q, want period_rate", cfg.schema.Name())
	}
	if err := WithSchema(nil)(&hbConfig{}); err == nil {
		t.Error("WithSchema(nil) expected error")
	}
}

func TestWithPort(t *testing.T) {
	tests := []struct {
		port    int
		wantErr bool
	}{
		{8080, false},
		{1, false},
		{65535, false},
		{0, true},
		{65536, true},
		{-1, true},
	}

	for _, tt := range tests {
		err := WithPort(tt.port)(&hbConfig{})
		if (err != nil) != tt.wantErr {
			t.Errorf("WithPort(%d) error = %v, wantErr %v", tt.port, err, tt.wantErr)
		}
	}
}

func TestWithFrameRate(t *testing.T) {
	cfg := &hbConfig{display: DefaultDisplay()}
	if err := WithFrameRate(30)(cfg); err != nil {
		t.Fatalf("WithFrameRate() error = %v", err)
	}
	if cfg.display.FrameInterval() != time.Second/30 {
		t.Errorf("FrameInterval() = %v, want %v", cfg.display.FrameInterval(), time.Second/30)
	}
	if err := WithFrameRate(0)(cfg); err == nil {
		t.Error("WithFrameRate(0) expected error")
	}
}

func TestWithDisplay_Validates(t *testing.T) {
	d := DefaultDisplay()
	d.Width = 0
	if err := WithDisplay(d)(&hbConfig{}); err == nil {
		t.Error("WithDisplay() with zero width expected error")
	}

	d = DefaultDisplay()
	d.LoadingCircle.Period = 0
	if err := WithDisplay(d)(&hbConfig{}); err == nil {
		t.Error("WithDisplay() with zero period expected error")
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	hb, err := New(WithSourceURL("http://bridge.local"), WithLogger(logger))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if hb.logger != logger {
		t.Error("logger not applied")
	}

	if err := WithLogger(nil)(&hbConfig{}); err == nil {
		t.Error("WithLogger(nil) expected error")
	}
}

func TestWithErrorReporter_Nil(t *testing.T) {
	if err := WithErrorReporter(nil)(&hbConfig{}); err == nil {
		t.Error("WithErrorReporter(nil) expected error")
	}
}

func TestWithActuator_OnlyOne(t *testing.T) {
	_, err := New(
		WithSourceURL("http://bridge.local"),
		WithActuator(&recordingActuator{}),
		WithModbusActuator(ModbusConfig{Endpoint: "127.0.0.1:502"}),
	)
	if err == nil || !strings.Contains(err.Error(), "only one actuator") {
		t.Errorf("New() error = %v, want only-one-actuator error", err)
	}

	if err := WithActuator(nil)(&hbConfig{}); err == nil {
		t.Error("WithActuator(nil) expected error")
	}
	if err := WithModbusActuator(ModbusConfig{})(&hbConfig{}); err == nil {
		t.Error("WithModbusActuator() without endpoint expected error")
	}
}

func TestWithModbusActuator_BuildsActuator(t *testing.T) {
	hb, err := New(
		WithSourceURL("http://bridge.local"),
		WithModbusActuator(ModbusConfig{Endpoint: "127.0.0.1:502", UnitID: 3, Register: 100}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if hb.actuator == nil {
		t.Fatal("actuator not configured")
	}
	// no connection is attempted until the first actuation
	if err := hb.actuator.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestWithCallbacks_NilIgnored(t *testing.T) {
	cfg := &hbConfig{}
	if err := WithReadingCallback(nil)(cfg); err != nil {
		t.Errorf("WithReadingCallback(nil) error = %v", err)
	}
	if err := WithTransitionCallback(nil)(cfg); err != nil {
		t.Errorf("WithTransitionCallback(nil) error = %v", err)
	}
	if len(cfg.readingCallbacks)+len(cfg.transitionCallbacks) != 0 {
		t.Error("nil callbacks should not be registered")
	}
}

func TestCurrentReading_BeforeStart(t *testing.T) {
	hb, err := New(WithSourceURL("http://bridge.local"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if hb.CurrentReading() != nil {
		t.Error("CurrentReading() before Start should be nil")
	}
}

// recordingActuator records every actuation.
type recordingActuator struct {
	mu     sync.Mutex
	calls  []*telemetry.Reading
	closed int
	err    error
}

func (a *recordingActuator) Actuate(ctx context.Context, r *telemetry.Reading) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, r)
	return a.err
}

func (a *recordingActuator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed++
	return nil
}

func (a *recordingActuator) snapshot() ([]*telemetry.Reading, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*telemetry.Reading(nil), a.calls...), a.closed
}
