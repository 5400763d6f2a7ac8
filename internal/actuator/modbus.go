package actuator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/jpalmerr/heartboard/telemetry"
)

const (
	coilOn  uint16 = 0xFF00
	coilOff uint16 = 0x0000

	defaultTimeout = time.Second
)

// Device-state codes written to the state register.
const (
	CodeDisconnected uint16 = iota
	CodeSensorAbsent
	CodeSourceAbsent
	CodeCollecting
	CodeReporting
)

// StateCode maps a reading to its register code. A nil reading is
// [CodeDisconnected].
func StateCode(r *telemetry.Reading) uint16 {
	if r == nil {
		return CodeDisconnected
	}
	switch r.Status() {
	case telemetry.SensorAbsent:
		return CodeSensorAbsent
	case telemetry.SourceAbsent:
		return CodeSourceAbsent
	case telemetry.CollectingData:
		return CodeCollecting
	case telemetry.ReportingData:
		return CodeReporting
	default:
		return CodeDisconnected
	}
}

// Config describes the Modbus TCP target.
type Config struct {
	// Endpoint is host:port of the Modbus TCP server.
	Endpoint string

	// UnitID is the Modbus slave ID.
	UnitID uint8

	// Coil is the address of the reporting indicator coil.
	Coil uint16

	// Register is the address of the state register; the bpm is written
	// to Register+1.
	Register uint16

	// Timeout bounds connect and each write. Defaults to 1s.
	Timeout time.Duration
}

// conn is the subset of a Modbus client the actuator writes through.
type conn interface {
	WriteSingleCoil(address, value uint16) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
	Close() error
}

type dialFunc func(cfg Config) (conn, error)

// tcpConn pairs a goburrow client with the handler that owns the socket.
type tcpConn struct {
	modbus.Client
	handler *modbus.TCPClientHandler
}

func (c *tcpConn) Close() error {
	return c.handler.Close()
}

func dialTCP(cfg Config) (conn, error) {
	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, err
	}
	return &tcpConn{Client: modbus.NewClient(h), handler: h}, nil
}

// Modbus writes device state to a Modbus TCP server.
//
// The connection is opened on the first write. A failed write discards it
// and the next Actuate reconnects. Writes are serialized.
type Modbus struct {
	cfg    Config
	dial   dialFunc
	logger *slog.Logger

	mu     sync.Mutex
	conn   conn
	closed bool
}

// NewModbus creates a Modbus actuator. No connection is made until the first
// [Modbus.Actuate].
func NewModbus(cfg Config, logger *slog.Logger) (*Modbus, error) {
	return newModbus(cfg, dialTCP, logger)
}

func newModbus(cfg Config, dial dialFunc, logger *slog.Logger) (*Modbus, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("actuator modbus: endpoint required")
	}
	if cfg.Register == 0xFFFF {
		return nil, errors.New("actuator modbus: register must leave room for the bpm register")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Modbus{cfg: cfg, dial: dial, logger: logger}, nil
}

// Actuate writes the coil and the state/bpm registers for reading.
func (m *Modbus) Actuate(ctx context.Context, reading *telemetry.Reading) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New("actuator modbus: closed")
	}

	if m.conn == nil {
		c, err := m.dial(m.cfg)
		if err != nil {
			return fmt.Errorf("actuator modbus: connect %s: %w", m.cfg.Endpoint, err)
		}
		m.conn = c
		m.logger.Debug("modbus connected", "endpoint", m.cfg.Endpoint, "unit_id", m.cfg.UnitID)
	}

	if err := m.write(reading); err != nil {
		m.discard()
		return fmt.Errorf("actuator modbus: %w", err)
	}
	return nil
}

func (m *Modbus) write(reading *telemetry.Reading) error {
	coil := coilOff
	var bpm uint16
	if reading != nil {
		if v, ok := reading.Value(); ok {
			coil = coilOn
			bpm = clampUint16(v)
		}
	}

	if _, err := m.conn.WriteSingleCoil(m.cfg.Coil, coil); err != nil {
		return fmt.Errorf("write coil %d: %w", m.cfg.Coil, err)
	}

	regs := packRegisters([]uint16{StateCode(reading), bpm})
	if _, err := m.conn.WriteMultipleRegisters(m.cfg.Register, 2, regs); err != nil {
		return fmt.Errorf("write registers %d-%d: %w", m.cfg.Register, m.cfg.Register+1, err)
	}
	return nil
}

// discard drops a broken connection; must hold mu.
func (m *Modbus) discard() {
	if m.conn == nil {
		return
	}
	if err := m.conn.Close(); err != nil {
		m.logger.Debug("modbus close after failure", "error", err.Error())
	}
	m.conn = nil
}

// Close releases the connection. Idempotent.
func (m *Modbus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}

func clampUint16(v int) uint16 {
	switch {
	case v < 0:
		return 0
	case v > 0xFFFF:
		return 0xFFFF
	default:
		return uint16(v)
	}
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
