// Distance sensor acquisition: one SensorChannel per physical sensor
package core

import "sync/atomic"

// A measurement cycle is declared faulty when no valid reading arrived for
// max(PeriodFaultTimer * period, MinimalFaultTimer) milliseconds.
const (
	PeriodFaultTimer  = 3
	MinimalFaultTimer = 100 // ms
)

// MaxMeasureCount is the saturation value of the measure counter.
const MaxMeasureCount = 254

// ChannelRegisters maps a channel onto its sub-range of the register table.
type ChannelRegisters struct {
	Name             string
	Index            uint8 // bit index in the wiring and status bytes
	Enabled          uint8
	MinRange         uint8
	MaxRange         uint8
	QualityThreshold uint8
	Period           uint8
	Polling          uint8
	MeasureCount     uint8
	Range            uint8
	RawRange         uint8
	Quality          uint8
}

// MainChannel and AuxChannel are the register layouts of the two sensors.
var (
	MainChannel = ChannelRegisters{
		Name:             "main",
		Index:            0,
		Enabled:          RegMainEnabled,
		MinRange:         RegMainMinRange,
		MaxRange:         RegMainMaxRange,
		QualityThreshold: RegMainQualityThreshold,
		Period:           RegMainPeriod,
		Polling:          RegMainPolling,
		MeasureCount:     RegMainMCSLR,
		Range:            RegMainRange,
		RawRange:         RegMainRawRange,
		Quality:          RegMainQuality,
	}
	AuxChannel = ChannelRegisters{
		Name:             "aux",
		Index:            1,
		Enabled:          RegAuxEnabled,
		MinRange:         RegAuxMinRange,
		MaxRange:         RegAuxMaxRange,
		QualityThreshold: RegAuxQualityThreshold,
		Period:           RegAuxPeriod,
		Polling:          RegAuxPolling,
		MeasureCount:     RegAuxMCSLR,
		Range:            RegAuxRange,
		RawRange:         RegAuxRawRange,
		Quality:          RegAuxQuality,
	}
)

// ChannelState is the externally visible state of a SensorChannel.
type ChannelState uint8

const (
	ChannelDisabled  ChannelState = iota // not wired
	ChannelArmed                         // wired, no measurement cycle
	ChannelMeasuring                     // wired, free-running cycle active
	ChannelFaulted                       // disarmed after a missed deadline
)

func (s ChannelState) String() string {
	switch s {
	case ChannelDisabled:
		return "disabled"
	case ChannelArmed:
		return "armed"
	case ChannelMeasuring:
		return "measuring"
	case ChannelFaulted:
		return "faulted"
	}
	return "unknown"
}

// SensorChannel drives one Ranger from its configuration registers and
// publishes the readings back into the table.
//
// Only MarkReady may be called concurrently with the other methods.
type SensorChannel struct {
	regs   *RegisterTable
	sensor Ranger
	layout ChannelRegisters

	status          uint8
	wired           bool
	measuring       bool
	polling         bool
	measureCount    uint8
	lastMeasureTime uint32

	// Set from the sensor's interrupt callback, cleared by Tick.
	ready atomic.Bool
}

// NewSensorChannel creates an unwired channel. It does not touch the sensor
// or the table.
func NewSensorChannel(regs *RegisterTable, sensor Ranger, layout ChannelRegisters) *SensorChannel {
	return &SensorChannel{
		regs:   regs,
		sensor: sensor,
		layout: layout,
	}
}

func (c *SensorChannel) bit() uint8 {
	return 1 << c.layout.Index
}

// Start probes the sensor. On success the channel is wired, its wiring bit
// is set and the enable register is seeded from the auto-start register.
// On failure the channel stays unwired and Tick does nothing.
func (c *SensorChannel) Start() error {
	if c.wired {
		c.Stop()
	}
	c.status = 0

	if err := c.sensor.PowerOn(); err != nil {
		return err
	}
	c.wired = true
	c.regs.PutByteInternal(RegWiringStatus, c.regs.Byte(RegWiringStatus)|c.bit())
	c.regs.PutByteInternal(c.layout.Enabled, c.regs.Byte(RegAutoStart))
	c.polling = c.regs.Byte(c.layout.Polling) != 0
	return nil
}

// Stop puts the sensor in standby, clears the live registers and the wiring
// bit. The fault status is kept until the next Start.
func (c *SensorChannel) Stop() {
	if c.measuring {
		_ = c.sensor.StopContinuous()
	}
	c.sensor.Standby()

	c.wired = false
	c.measuring = false
	c.polling = false
	c.measureCount = 0
	c.lastMeasureTime = 0
	c.ready.Store(false)

	c.regs.PutByteInternal(c.layout.Enabled, 0)
	c.regs.PutByteInternal(c.layout.MeasureCount, 0)
	c.regs.PutU16Internal(c.layout.Range, RangeSensorDead)
	c.regs.PutU16Internal(c.layout.RawRange, 0)
	c.regs.PutU16Internal(c.layout.Quality, 0)
	c.regs.PutByteInternal(RegWiringStatus, c.regs.Byte(RegWiringStatus)&^c.bit())
}

// Tick advances the acquisition state machine. now is in milliseconds and
// may wrap around.
func (c *SensorChannel) Tick(now uint32) {
	if !c.wired {
		return
	}

	enabled := c.regs.Byte(c.layout.Enabled) != 0
	period := c.regs.U32(c.layout.Period)

	if c.measuring {
		if !enabled {
			_ = c.sensor.StopContinuous()
			c.measuring = false
		}
	} else if enabled {
		// A sensor that fails to start is caught by the fault timer.
		_ = c.sensor.StartContinuous(period)
		c.measuring = true
		c.ready.Store(false)
		c.lastMeasureTime = now
	}

	if !c.measuring {
		return
	}

	if uint64(now-c.lastMeasureTime) >= faultTimeout(period) {
		c.status = c.bit()
		c.Stop()
		return
	}

	ready := c.ready.Swap(false)
	if !c.polling && !ready {
		return
	}

	c.sensor.SetRange(c.regs.U16(c.layout.MinRange), c.regs.U16(c.layout.MaxRange))
	c.sensor.SetQualityThreshold(c.regs.U16(c.layout.QualityThreshold))

	m, err := c.sensor.FullMeasure()
	if err != nil {
		return
	}
	if c.measureCount < MaxMeasureCount {
		c.measureCount++
	}
	c.lastMeasureTime = now

	c.regs.PutByteInternal(c.layout.MeasureCount, c.measureCount)
	c.regs.PutU16Internal(c.layout.Range, m.Range)
	c.regs.PutU16Internal(c.layout.RawRange, m.RawRange)
	c.regs.PutU16Internal(c.layout.Quality, m.Quality)
}

func faultTimeout(period uint32) uint64 {
	return max(PeriodFaultTimer*uint64(period), MinimalFaultTimer)
}

// MarkReady signals that the sensor has a measurement available. It is safe
// to call from an interrupt or edge callback.
func (c *SensorChannel) MarkReady() {
	c.ready.Store(true)
}

// ResetSampleCount zeroes the measure counter and publishes it.
func (c *SensorChannel) ResetSampleCount() {
	c.measureCount = 0
	c.regs.PutByteInternal(c.layout.MeasureCount, 0)
}

// Status returns the channel's fault bit, or 0.
func (c *SensorChannel) Status() uint8 {
	return c.status
}

// Wired reports whether the sensor answered the last Start.
func (c *SensorChannel) Wired() bool {
	return c.wired
}

// Measuring reports whether a free-running cycle is active.
func (c *SensorChannel) Measuring() bool {
	return c.measuring
}

// State summarises the channel for diagnostics.
func (c *SensorChannel) State() ChannelState {
	switch {
	case c.wired && c.measuring:
		return ChannelMeasuring
	case c.wired:
		return ChannelArmed
	case c.status != 0:
		return ChannelFaulted
	}
	return ChannelDisabled
}

// Layout returns the channel's register layout.
func (c *SensorChannel) Layout() ChannelRegisters {
	return c.layout
}
