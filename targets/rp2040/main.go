//go:build rp2040

// Firmware for the RP2040 sensor node: two VL53L1X sensors on I2C0, the
// persisted registers in flash and the register bus on UART0.
package main

import (
	"machine"
	"time"

	"tofnode/bus"
	"tofnode/core"
	"tofnode/ranger"
)

// Board wiring
const (
	pinMainXShut = machine.GP2
	pinAuxXShut  = machine.GP3
	pinMainReady = machine.GP6
	pinAuxReady  = machine.GP7

	mainAddress = 0x30
	auxAddress  = 0x31

	tickMs         = 1
	supplyPeriodMs = 1000
	minSupplyMV    = 4500
)

func main() {
	// Clear any watchdog state left from a previous reset
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	err = machine.I2C0.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.GP4,
		SCL:       machine.GP5,
	})
	if err != nil {
		return
	}

	mainSensor := ranger.New(machine.I2C0, mainAddress, newXShut(pinMainXShut))
	auxSensor := ranger.New(machine.I2C0, auxAddress, newXShut(pinAuxXShut))
	mainSensor.Standby()
	auxSensor.Standby()

	regs := core.NewRegisterTable(newFlashStore())
	if err := regs.Init(); err != nil {
		// Flash unusable: run from RAM with factory defaults.
		regs = core.NewRegisterTable(core.NewMemoryStore(core.PersistentStoreSize))
		regs.Init()
	}

	channels := core.NewChannelSet(regs, mainSensor, auxSensor)
	channels.Start()

	watchReady(pinMainReady, channels.Main())
	watchReady(pinAuxReady, channels.Aux())

	supply := core.NewSupplyMonitor(regs, newSupplyADC(machine.ADC0), minSupplyMV)

	link := newUARTLink(machine.UART0, machine.UART0_TX_PIN, machine.UART0_RX_PIN)
	link.SetBaud(core.BaudFromCode(regs.Byte(core.RegBaudrate)))

	handler := bus.NewHandler(regs, channels, link, supply)

	clock := core.NewSystemClock()
	var sched core.Scheduler
	sched.ScheduleTimer(core.NewPeriodicTimer(0, tickMs, channels.Tick))
	sched.ScheduleTimer(core.NewPeriodicTimer(0, supplyPeriodMs, func(uint32) {
		supply.Sample()
	}))

	for {
		link.Poll(handler)
		sched.Dispatch(clock.Millis())
		time.Sleep(100 * time.Microsecond)
	}
}

// pinOut drives an XSHUT line.
type pinOut machine.Pin

func newXShut(p machine.Pin) ranger.Shutdown {
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return pinOut(p)
}

func (p pinOut) Set(high bool) error {
	machine.Pin(p).Set(high)
	return nil
}

// watchReady marks the channel ready on every falling edge of the sensor's
// GPIO1 line.
func watchReady(p machine.Pin, ch *core.SensorChannel) {
	p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	p.SetInterrupt(machine.PinFalling, func(machine.Pin) {
		ch.MarkReady()
	})
}
