package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reading is one classified telemetry sample.
//
// Reading is immutable after creation. The heart-rate value is present only
// when the status is [ReportingData], and is never negative. Readings are
// safe to share between goroutines without synchronization.
type Reading struct {
	status    Status
	value     int
	hasValue  bool
	checkedAt time.Time
}

// NewReading creates a [Reading] with the given status.
//
// value is only meaningful for [ReportingData] and is ignored otherwise.
// Returns an error if status is not a known state or if a reporting value
// is negative.
func NewReading(status Status, value int, checkedAt time.Time) (Reading, error) {
	if !status.Known() {
		return Reading{}, UnknownStatus(int(status))
	}
	if status != ReportingData {
		return Reading{status: status, checkedAt: checkedAt}, nil
	}
	if value < 0 {
		return Reading{}, InvalidField("value", fmt.Errorf("negative rate %d", value))
	}
	return Reading{status: status, value: value, hasValue: true, checkedAt: checkedAt}, nil
}

// Status returns the device state of the reading.
func (r Reading) Status() Status {
	return r.status
}

// Value returns the heart rate in beats per minute.
// ok is false for every status other than [ReportingData].
func (r Reading) Value() (bpm int, ok bool) {
	return r.value, r.hasValue
}

// CheckedAt returns the time the reading was classified.
func (r Reading) CheckedAt() time.Time {
	return r.checkedAt
}

// String implements fmt.Stringer.
func (r Reading) String() string {
	if r.hasValue {
		return fmt.Sprintf("%s (%d bpm)", r.status, r.value)
	}
	return r.status.String()
}

// MarshalJSON encodes the reading as {"status", "code", "value", "checked_at"}.
// value is null when absent.
func (r Reading) MarshalJSON() ([]byte, error) {
	var value *int
	if r.hasValue {
		v := r.value
		value = &v
	}
	return json.Marshal(struct {
		Status    string    `json:"status"`
		Code      int       `json:"code"`
		Value     *int      `json:"value"`
		CheckedAt time.Time `json:"checked_at"`
	}{
		Status:    r.status.String(),
		Code:      int(r.status),
		Value:     value,
		CheckedAt: r.checkedAt,
	})
}

// Changed reports whether two consecutive readings differ in status.
//
// A nil reading stands for "no reading" (disconnected) and is a state of its
// own: nil to nil is not a change, nil to any reading is. Value changes
// within [ReportingData] are not transitions.
func Changed(prev, cur *Reading) bool {
	if prev == nil || cur == nil {
		return (prev == nil) != (cur == nil)
	}
	return prev.status != cur.status
}
