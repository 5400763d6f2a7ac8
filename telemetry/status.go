package telemetry

import "strconv"

// Status is the device state reported by the sensor bridge.
//
// The integer values are the wire codes sent in the "status" field.
type Status int

const (
	// SensorAbsent indicates the bridge cannot find the heart-rate sensor.
	SensorAbsent Status = -1

	// SourceAbsent indicates the sensor is attached but nobody is wearing it.
	SourceAbsent Status = 0

	// CollectingData indicates the sensor is measuring but has no rate yet.
	CollectingData Status = 1

	// ReportingData indicates the bridge is reporting a valid heart rate.
	ReportingData Status = 2
)

// Known reports whether s is one of the defined device states.
func (s Status) Known() bool {
	switch s {
	case SensorAbsent, SourceAbsent, CollectingData, ReportingData:
		return true
	default:
		return false
	}
}

// Attached reports whether the sensor is on and measuring, in which case the
// bridge must send its rate fields.
func (s Status) Attached() bool {
	return s == CollectingData || s == ReportingData
}

// String returns the snake_case name of the status.
// Unknown codes render as "status(<code>)".
func (s Status) String() string {
	switch s {
	case SensorAbsent:
		return "sensor_absent"
	case SourceAbsent:
		return "source_absent"
	case CollectingData:
		return "collecting_data"
	case ReportingData:
		return "reporting_data"
	default:
		return "status(" + strconv.Itoa(int(s)) + ")"
	}
}
