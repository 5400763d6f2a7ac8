package heartboard

import "github.com/jpalmerr/heartboard/telemetry"

// Display hints shown under the heart rate.
const (
	HintConnecting   = "connecting to the sensor"
	HintPutSensorOn  = "please put the sensor on"
	HintSensorAbsent = "sensor not detected"
	HintCollecting   = "collecting data"
	HintHeartRate    = "heart rate"
)

// Hint returns the display text for a reading. A nil reading means the
// bridge could not be read.
func Hint(r *telemetry.Reading) string {
	if r == nil {
		return HintConnecting
	}
	switch r.Status() {
	case telemetry.SourceAbsent:
		return HintPutSensorOn
	case telemetry.SensorAbsent:
		return HintSensorAbsent
	case telemetry.CollectingData:
		return HintCollecting
	case telemetry.ReportingData:
		return HintHeartRate
	default:
		return HintConnecting
	}
}
