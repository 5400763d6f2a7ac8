// Package actuator drives external outputs from device state transitions.
//
// The Modbus actuator mirrors the heart-rate state onto a Modbus TCP device:
// a coil that is ON while a heart rate is being reported, a holding register
// with the device-state code, and the following register with the bpm.
package actuator
