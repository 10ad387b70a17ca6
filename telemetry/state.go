// Package telemetry mirrors the node over MQTT: it publishes the live
// registers and feeds register requests from the broker into the node.
package telemetry

import "tofnode/core"

// ChannelState is the published view of one sensor channel.
type ChannelState struct {
	State        string `json:"state"`
	Enabled      bool   `json:"enabled"`
	MeasureCount uint8  `json:"measure_count"`
	Range        uint16 `json:"range"` // mm or range code
	RawRange     uint16 `json:"raw_range"`
	Quality      uint16 `json:"quality"`
}

// State is the JSON document published on <topic>/state.
type State struct {
	ID        uint8        `json:"id"`
	Status    uint8        `json:"status"`
	Wiring    uint8        `json:"wiring"`
	Locked    bool         `json:"locked"`
	InputMV   uint32       `json:"input_mv"`
	Main      ChannelState `json:"main"`
	Aux       ChannelState `json:"aux"`
	Timestamp uint32       `json:"t_ms"`
}

// Capture reads the table and channels. It must run on the goroutine that
// owns them.
func Capture(regs *core.RegisterTable, channels *core.ChannelSet, status uint8, now uint32) State {
	return State{
		ID:        regs.Byte(core.RegID),
		Status:    status,
		Wiring:    regs.Byte(core.RegWiringStatus),
		Locked:    regs.Locked(),
		InputMV:   uint32(regs.Byte(core.RegInputVoltage)) * 40,
		Main:      captureChannel(regs, channels.Main()),
		Aux:       captureChannel(regs, channels.Aux()),
		Timestamp: now,
	}
}

func captureChannel(regs *core.RegisterTable, ch *core.SensorChannel) ChannelState {
	l := ch.Layout()
	return ChannelState{
		State:        ch.State().String(),
		Enabled:      regs.Byte(l.Enabled) != 0,
		MeasureCount: regs.Byte(l.MeasureCount),
		Range:        regs.U16(l.Range),
		RawRange:     regs.U16(l.RawRange),
		Quality:      regs.U16(l.Quality),
	}
}
