//go:build !wasm

package serial

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// NativePort wraps the tarm/serial implementation. tarm/serial cannot change
// the rate of an open port, so SetBaud reopens it.
type NativePort struct {
	mu   sync.Mutex
	port *serial.Port
	cfg  Config
}

// Open opens a native serial port
func Open(cfg *Config) (*NativePort, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	p := &NativePort{cfg: *cfg}
	if err := p.open(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *NativePort) open() error {
	port, err := serial.OpenPort(&serial.Config{
		Name:        p.cfg.Device,
		Baud:        p.cfg.Baud,
		ReadTimeout: time.Duration(p.cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", p.cfg.Device, err)
	}
	p.port = port
	return nil
}

func (p *NativePort) current() (*serial.Port, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port == nil {
		return nil, fmt.Errorf("serial port %s is closed", p.cfg.Device)
	}
	return p.port, nil
}

// Read reads data from the serial port
func (p *NativePort) Read(b []byte) (int, error) {
	port, err := p.current()
	if err != nil {
		return 0, err
	}
	return port.Read(b)
}

// Write writes data to the serial port
func (p *NativePort) Write(b []byte) (int, error) {
	port, err := p.current()
	if err != nil {
		return 0, err
	}
	return port.Write(b)
}

// SetBaud reopens the port at the new rate.
func (p *NativePort) SetBaud(baud uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port != nil {
		if err := p.port.Close(); err != nil {
			return fmt.Errorf("close %s: %w", p.cfg.Device, err)
		}
		p.port = nil
	}
	p.cfg.Baud = int(baud)
	return p.open()
}

// Baud returns the current line rate.
func (p *NativePort) Baud() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Baud
}

// Close closes the serial port
func (p *NativePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port != nil {
		err := p.port.Close()
		p.port = nil
		return err
	}
	return nil
}

// Flush is a no-op: Write returns once the data is queued, and tarm's
// Flush discards pending output instead of draining it.
func (p *NativePort) Flush() error {
	return nil
}
