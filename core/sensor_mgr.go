package core

import (
	"errors"
	"fmt"
)

// ChannelSet owns the main and aux sensor channels sharing one register
// table. Lifecycle calls always reach both channels, main first.
type ChannelSet struct {
	main *SensorChannel
	aux  *SensorChannel
}

// NewChannelSet builds the two channels on top of regs.
func NewChannelSet(regs *RegisterTable, main, aux Ranger) *ChannelSet {
	return &ChannelSet{
		main: NewSensorChannel(regs, main, MainChannel),
		aux:  NewSensorChannel(regs, aux, AuxChannel),
	}
}

// Start arms both channels. Probe failures do not prevent the other
// channel from starting; they are returned together.
func (s *ChannelSet) Start() error {
	var errs []error
	for _, c := range s.channels() {
		if err := c.Start(); err != nil {
			errs = append(errs, fmt.Errorf("%s sensor: %w", c.layout.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Stop disarms both channels.
func (s *ChannelSet) Stop() {
	for _, c := range s.channels() {
		c.Stop()
	}
}

// Restart stops then starts both channels, clearing any sensor fault.
func (s *ChannelSet) Restart() error {
	s.Stop()
	return s.Start()
}

// Tick advances both channels.
func (s *ChannelSet) Tick(now uint32) {
	for _, c := range s.channels() {
		c.Tick(now)
	}
}

// Status returns the union of the channel fault bits
// (StatusMainSensorError, StatusAuxSensorError).
func (s *ChannelSet) Status() uint8 {
	return s.main.Status() | s.aux.Status()
}

// Main returns the primary channel.
func (s *ChannelSet) Main() *SensorChannel { return s.main }

// Aux returns the secondary channel.
func (s *ChannelSet) Aux() *SensorChannel { return s.aux }

func (s *ChannelSet) channels() [2]*SensorChannel {
	return [2]*SensorChannel{s.main, s.aux}
}
