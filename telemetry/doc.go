// Package telemetry classifies heart-rate bridge responses into typed readings.
//
// A sensor bridge answers GET /api/heartrate/ with a small JSON object. This
// package turns that response into either an immutable [Reading] or a typed
// [*Error] describing why the response could not be used.
//
// The main components are:
//
//   - [Status]: the closed set of device states reported by the bridge
//   - [Reading]: one classified telemetry sample (status plus optional bpm)
//   - [Schema]: pluggable field layout of the deployed bridge firmware
//   - [Classify]: HTTP status + body + schema → Reading or Error
//   - [Changed]: transition detection between two consecutive readings
//
// Two schema variants exist in deployed bridges and are selected by
// configuration, never by inspecting the payload:
//
//	{"status": 2, "hr": 72}                                            // HeartRateSchema
//	{"status": 2, "micro_period_rate": 70, "report_period_rate": 72}   // PeriodRateSchema
//
// Classify never panics on malformed input; every failure is returned as an
// error whose [ErrorKind] can be inspected with [KindOf].
package telemetry
