package device

import (
	"fmt"
	"log/slog"
	"sync"

)

// bus is a connection to one I2C peripheral.
type bus interface {
	Read(buf []byte) error
	Write(buf []byte) error
	Close() error
}

// Expander drives a PCF8574 8-bit I/O expander. Its lines are
// quasi-bidirectional: a line is read as an input while its output latch is
// high, so every line not used as an output is kept high.
type Expander struct {
	mu    sync.Mutex
	conn  bus
	latch byte
	// outputs marks lines driven by a Relay.
	outputs byte
}

// OpenExpander opens the expander at addr on the bus device dev, e.g.
// OpenExpander("/dev/i2c-1", 0x20).
func OpenExpander(dev string, addr int) (*Expander, error) {
	conn, err := openBus(dev, addr)
	if err != nil {
		return nil, fmt.Errorf("open i2c expander 0x%02x: %w", addr, err)
	}
	e, err := newExpander(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	slog.Info("i2c expander opened", "dev", dev, "addr", fmt.Sprintf("0x%02x", addr))
	return e, nil
}

func newExpander(conn bus) (*Expander, error) {
	e := &Expander{conn: conn, latch: 0xFF}
	if err := conn.Write([]byte{e.latch}); err != nil {
		return nil, fmt.Errorf("init expander: %w", err)
	}
	return e, nil
}

// Close releases the bus.
func (e *Expander) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.Close()
}

func (e *Expander) read() (byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var buf [1]byte
	if err := e.conn.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("read expander: %w", err)
	}
	return buf[0], nil
}

func (e *Expander) set(line uint, high bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	latch := e.latch
	if high {
		latch |= 1 << line
	} else {
		latch &^= 1 << line
	}
	if latch == e.latch {
		return nil
	}
	if err := e.conn.Write([]byte{latch}); err != nil {
		return fmt.Errorf("write expander: %w", err)
	}
	e.latch = latch
	return nil
}

// Input returns line as a logical input. With activeLow a low level reads as
// asserted.
func (e *Expander) Input(line int, activeLow bool) (*InputLine, error) {
	if line < 0 || line > 7 {
		return nil, fmt.Errorf("expander line %d out of range", line)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.outputs&(1<<line) != 0 {
		return nil, fmt.Errorf("expander line %d is an output", line)
	}
	return &InputLine{exp: e, mask: 1 << line, activeLow: activeLow}, nil
}

// Relay returns line as a relay output, released.
func (e *Expander) Relay(line int, activeLow bool) (*Relay, error) {
	if line < 0 || line > 7 {
		return nil, fmt.Errorf("expander line %d out of range", line)
	}
	e.mu.Lock()
	e.outputs |= 1 << line
	e.mu.Unlock()
	r := &Relay{exp: e, line: uint(line), activeLow: activeLow}
	if err := r.Energize(false); err != nil {
		return nil, err
	}
	return r, nil
}

// InputLine is one expander line read as a logical level.
type InputLine struct {
	exp       *Expander
	mask      byte
	activeLow bool
}

// Read reports whether the input is asserted.
func (l *InputLine) Read() (bool, error) {
	v, err := l.exp.read()
	if err != nil {
		return false, err
	}
	high := v&l.mask != 0
	return high != l.activeLow, nil
}

// Relay is one expander line driving the horn relay.
type Relay struct {
	exp       *Expander
	line      uint
	activeLow bool
}

// Energize switches the relay.
func (r *Relay) Energize(on bool) error {
	return r.exp.set(r.line, on != r.activeLow)
}
