package serial

import (
	"io"

	"tofnode/core"
)

// Port is the node's serial line. Implementations:
// - native serial (github.com/tarm/serial)
// - in-memory pipes (tests)
type Port interface {
	io.ReadWriteCloser

	// SetBaud changes the line rate. It is called after a committed write
	// to the baudrate register.
	SetBaud(baud uint32) error

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyAMA0", "COM3")
	Device string

	// Baud rate in bits per second
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the configuration matching the factory baudrate
// register.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        int(core.BaudFromCode(core.Schema[core.RegBaudrate].Default)), // 400000
		ReadTimeout: 100,
	}
}
