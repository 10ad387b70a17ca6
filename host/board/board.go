// Package board binds the node to a Linux single-board computer through
// periph: the I2C bus carrying both sensors, their XSHUT lines and their
// data-ready interrupts.
package board

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Init loads the periph host drivers.
func Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}
	return nil
}

// OpenI2C opens the named bus ("" selects the first one).
func OpenI2C(name string) (i2c.BusCloser, error) {
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", name, err)
	}
	return bus, nil
}

// XShut drives a sensor's XSHUT line.
type XShut struct {
	pin gpio.PinOut
}

// NewXShut wraps pin.
func NewXShut(pin gpio.PinOut) *XShut {
	return &XShut{pin: pin}
}

// Set drives the line.
func (x *XShut) Set(high bool) error {
	return x.pin.Out(gpio.Level(high))
}

// PinByName looks up a GPIO.
func PinByName(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	return p, nil
}

// edgePoll bounds each WaitForEdge so cancellation is noticed.
const edgePoll = 100 * time.Millisecond

// WatchReady calls mark on every falling edge of the sensor's GPIO1 line
// (active low, interrupt on new measurement) until ctx is done.
func WatchReady(ctx context.Context, pin gpio.PinIn, mark func()) error {
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return fmt.Errorf("configure %s: %w", pin.Name(), err)
	}
	defer pin.In(gpio.PullNoChange, gpio.NoEdge)

	for ctx.Err() == nil {
		if pin.WaitForEdge(edgePoll) {
			mark()
		}
	}
	return ctx.Err()
}
