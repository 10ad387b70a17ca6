// Package ranger adapts the VL53L1X time-of-flight driver to core.Ranger.
package ranger

import (
	"errors"
	"fmt"

	"tofnode/core"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/vl53l1x"
)

// DefaultAddress is the sensor's I2C address after power-up.
const DefaultAddress = 0x29

// Timing budget bounds in microseconds. The default applies when the period
// register is 0; the driver rejects budgets outside (TIMING_GUARD, max].
const (
	defaultTimingBudget = 50000
	minTimingBudget     = vl53l1x.TIMING_GUARD + 1
	maxTimingBudget     = 1100000
)

// Bus is the I2C transaction interface of the driver.
type Bus = drivers.I2C

// Shutdown drives a sensor's XSHUT line. Low keeps the sensor in hardware
// standby.
type Shutdown interface {
	Set(high bool) error
}

// VL53L1X is a core.Ranger backed by the TinyGo VL53L1X driver. It works on
// any drivers.I2C, so the same adapter runs on a microcontroller bus and on
// a Linux bus opened through periph.
type VL53L1X struct {
	bus     Bus
	dev     vl53l1x.Device
	address uint8
	xshut   Shutdown

	minMM     uint16
	maxMM     uint16
	threshold uint16
}

// New creates an adapter for the sensor on bus. address is the address the
// sensor is moved to at power-on, which lets two sensors share one bus when
// their XSHUT lines are released one after the other. xshut may be nil.
func New(bus Bus, address uint8, xshut Shutdown) *VL53L1X {
	return &VL53L1X{
		bus:     bus,
		dev:     vl53l1x.New(bus),
		address: address,
		xshut:   xshut,
		maxMM:   0xFFFF,
	}
}

// PowerOn releases XSHUT, checks the model ID and loads the default
// configuration. Without XSHUT the sensor keeps the address it was moved to
// until it loses power, so that address is tried before the default one.
func (s *VL53L1X) PowerOn() error {
	if s.xshut != nil {
		if err := s.xshut.Set(true); err != nil {
			return fmt.Errorf("%w: xshut: %v", core.ErrProbe, err)
		}
	}

	if !s.connect() {
		return fmt.Errorf("%w: no answer at 0x%02X", core.ErrProbe, DefaultAddress)
	}
	if !s.dev.Configure(true) {
		return fmt.Errorf("%w: configuration timed out", core.ErrProbe)
	}
	if s.dev.Address != uint16(s.address) {
		s.dev.SetAddress(s.address)
	}
	return nil
}

// connect points the driver at whichever address the sensor answers on.
func (s *VL53L1X) connect() bool {
	if s.xshut == nil && s.address != DefaultAddress {
		s.dev.Address = uint16(s.address)
		if s.dev.Connected() {
			return true
		}
	}
	s.dev.Address = DefaultAddress
	return s.dev.Connected()
}

// Standby holds the sensor in hardware standby when XSHUT is wired.
func (s *VL53L1X) Standby() {
	if s.xshut != nil {
		_ = s.xshut.Set(false)
	}
}

// StartContinuous starts free-running ranging. A zero period ranges back to
// back with the default timing budget.
func (s *VL53L1X) StartContinuous(periodMs uint32) error {
	budget := timingBudget(periodMs)
	if !s.dev.SetMeasurementTimingBudget(budget) {
		return fmt.Errorf("vl53l1x: timing budget %d us rejected", budget)
	}
	if periodMs == 0 {
		periodMs = budget / 1000
	}
	s.dev.StartContinuous(periodMs)
	return nil
}

// timingBudget fits the ranging time into the measurement period.
func timingBudget(periodMs uint32) uint32 {
	budget := uint64(defaultTimingBudget)
	if periodMs != 0 {
		budget = min(budget, uint64(periodMs)*1000)
	}
	return uint32(min(max(budget, minTimingBudget), maxTimingBudget))
}

// StopContinuous stops ranging.
func (s *VL53L1X) StopContinuous() error {
	s.dev.StopContinuous()
	return nil
}

// SetRange sets the distance window applied by FullMeasure.
func (s *VL53L1X) SetRange(minMM, maxMM uint16) {
	s.minMM = minMM
	s.maxMM = maxMM
}

// SetQualityThreshold sets the minimum signal rate of a valid reading.
func (s *VL53L1X) SetQualityThreshold(q uint16) {
	s.threshold = q
}

// FullMeasure fetches the latest reading without blocking.
func (s *VL53L1X) FullMeasure() (core.Measurement, error) {
	ready, err := s.dataReady()
	if err != nil {
		return core.Measurement{}, err
	}
	if !ready {
		return core.Measurement{}, errNotReady
	}
	s.dev.Read(false)

	raw := clampMM(s.dev.Distance())
	quality := qualityOf(s.dev.Status(), s.dev.SignalRate())

	return core.Measurement{
		Range:    core.ClassifyRange(raw, s.minMM, s.maxMM, quality, s.threshold),
		RawRange: raw,
		Quality:  quality,
	}, nil
}

var errNotReady = errors.New("vl53l1x: no new measurement")

// dataReady reads the interrupt status the way the driver's blocking read
// does. The non-blocking driver read skips this check.
func (s *VL53L1X) dataReady() (bool, error) {
	var status [1]byte
	reg := []byte{vl53l1x.GPIO_TIO_HV_STATUS >> 8, vl53l1x.GPIO_TIO_HV_STATUS & 0xFF}
	if err := s.bus.Tx(s.dev.Address, reg, status[:]); err != nil {
		return false, fmt.Errorf("vl53l1x: read interrupt status: %w", err)
	}
	return status[0]&0x01 == 0, nil
}

func clampMM(d int32) uint16 {
	switch {
	case d < 0:
		return 0
	case d > 0xFFFF:
		return 0xFFFF
	}
	return uint16(d)
}

// qualityOf scales the driver's signal rate down to the 16-bit quality
// register. Readings the sensor itself flags as invalid get quality 0.
func qualityOf(status vl53l1x.RangeStatus, signalRate int32) uint16 {
	if status != vl53l1x.RangeValid {
		return 0
	}
	q := signalRate >> 8
	switch {
	case q < 0:
		return 0
	case q > 0xFFFF:
		return 0xFFFF
	}
	return uint16(q)
}
