package heartboard

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jpalmerr/heartboard/internal/poller"
	"github.com/jpalmerr/heartboard/telemetry"
)

func mustReading(t *testing.T, status telemetry.Status, value int) *telemetry.Reading {
	t.Helper()
	r, err := telemetry.NewReading(status, value, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewReading() error = %v", err)
	}
	return &r
}

func TestHint(t *testing.T) {
	tests := []struct {
		name    string
		reading *telemetry.Reading
		want    string
	}{
		{"absent", nil, "connecting to the sensor"},
		{"source absent", mustReading(t, telemetry.SourceAbsent, 0), "please put the sensor on"},
		{"sensor absent", mustReading(t, telemetry.SensorAbsent, 0), "sensor not detected"},
		{"collecting", mustReading(t, telemetry.CollectingData, 0), "collecting data"},
		{"reporting", mustReading(t, telemetry.ReportingData, 72), "heart rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Hint(tt.reading); got != tt.want {
				t.Errorf("Hint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisplay_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(DefaultDisplay())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if got["width"] != float64(720) || got["frame_rate"] != float64(60) {
		t.Errorf("display = %s", data)
	}
	if got["heart_rate_font"] != "DIN Light" || got["hint_font"] != "DIN" {
		t.Errorf("fonts = %v / %v", got["heart_rate_font"], got["hint_font"])
	}
	circle, ok := got["loading_circle"].(map[string]any)
	if !ok {
		t.Fatalf("loading_circle missing: %s", data)
	}
	if circle["period_ms"] != float64(3000) || circle["radius"] != float64(175) {
		t.Errorf("loading_circle = %v", circle)
	}
}

func TestDisplay_FrameInterval(t *testing.T) {
	d := DefaultDisplay()
	if got := d.FrameInterval(); got != time.Second/60 {
		t.Errorf("FrameInterval() = %v, want %v", got, time.Second/60)
	}
}

func TestSnapshotToView_Reporting(t *testing.T) {
	snap := poller.Snapshot{
		Current:   mustReading(t, telemetry.ReportingData, 72),
		RequestID: "req-1",
		Latency:   42 * time.Millisecond,
		Seq:       5,
	}

	view := snapshotToView(snap)

	if !view.Connected {
		t.Error("Connected = false, want true")
	}
	if view.Status != "reporting_data" {
		t.Errorf("Status = %q, want reporting_data", view.Status)
	}
	if view.Code == nil || *view.Code != 2 {
		t.Errorf("Code = %v, want 2", view.Code)
	}
	if view.Value == nil || *view.Value != 72 {
		t.Errorf("Value = %v, want 72", view.Value)
	}
	if view.Hint != HintHeartRate {
		t.Errorf("Hint = %q, want %q", view.Hint, HintHeartRate)
	}
	if view.CheckedAt == nil {
		t.Error("CheckedAt = nil")
	}
	if view.ResponseTimeMs != 42 || view.RequestID != "req-1" || view.Seq != 5 {
		t.Errorf("view = %+v", view)
	}
	if view.Error != nil || view.ErrorKind != nil {
		t.Errorf("Error = %v, want nil", view.Error)
	}
}

func TestSnapshotToView_Failure(t *testing.T) {
	snap := poller.Snapshot{
		Previous: mustReading(t, telemetry.CollectingData, 0),
		Err:      telemetry.MissingField("hr"),
		Seq:      2,
	}

	view := snapshotToView(snap)

	if view.Connected || view.Code != nil || view.Value != nil || view.Status != "" {
		t.Errorf("view = %+v, want disconnected", view)
	}
	if view.Hint != HintConnecting {
		t.Errorf("Hint = %q, want %q", view.Hint, HintConnecting)
	}
	if view.ErrorKind == nil || *view.ErrorKind != "missing_field" {
		t.Errorf("ErrorKind = %v, want missing_field", view.ErrorKind)
	}
	if view.Error == nil || *view.Error == "" {
		t.Error("Error message missing")
	}
}

func TestSnapshotToView_CollectingHasNoValue(t *testing.T) {
	view := snapshotToView(poller.Snapshot{Current: mustReading(t, telemetry.CollectingData, 0)})
	if view.Value != nil {
		t.Errorf("Value = %v, want nil while collecting", *view.Value)
	}
}

func TestUpdate_Changed(t *testing.T) {
	reporting70 := mustReading(t, telemetry.ReportingData, 70)
	reporting75 := mustReading(t, telemetry.ReportingData, 75)
	collecting := mustReading(t, telemetry.CollectingData, 0)

	tests := []struct {
		name     string
		previous *telemetry.Reading
		current  *telemetry.Reading
		want     bool
	}{
		{"absent to absent", nil, nil, false},
		{"absent to reading", nil, collecting, true},
		{"reading to absent", collecting, nil, true},
		{"status change", collecting, reporting70, true},
		{"bpm change only", reporting70, reporting75, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := snapshotToUpdate(poller.Snapshot{Previous: tt.previous, Current: tt.current})
			if got := u.Changed(); got != tt.want {
				t.Errorf("Changed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshotToUpdate_CarriesError(t *testing.T) {
	cause := telemetry.TransportError(errors.New("connection refused"))
	u := snapshotToUpdate(poller.Snapshot{Err: cause, Seq: 9})

	if !errors.Is(u.Err, telemetry.ErrTransport) {
		t.Errorf("Err = %v, want transport", u.Err)
	}
	if u.Hint != HintConnecting || u.Seq != 9 {
		t.Errorf("update = %+v", u)
	}
}

func TestActuatedOf(t *testing.T) {
	if actuatedOf(nil).connected {
		t.Error("actuatedOf(nil).connected = true")
	}
	a := actuatedOf(mustReading(t, telemetry.ReportingData, 70))
	b := actuatedOf(mustReading(t, telemetry.ReportingData, 71))
	if a == b {
		t.Error("bpm change should change actuated output")
	}
	c := actuatedOf(mustReading(t, telemetry.ReportingData, 70))
	if a != c {
		t.Error("identical readings should give identical output")
	}
}
