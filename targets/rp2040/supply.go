//go:build rp2040

package main

import "machine"

// The supply reaches the ADC through a 1:2 divider.
const (
	adcReferenceMV = 3300
	supplyDivider  = 2
)

// supplyADC reads the module supply on one ADC pin.
type supplyADC struct {
	adc machine.ADC
}

func newSupplyADC(pin machine.Pin) *supplyADC {
	machine.InitADC()
	adc := machine.ADC{Pin: pin}
	adc.Configure(machine.ADCConfig{})
	return &supplyADC{adc: adc}
}

// Millivolts implements core.VoltageSource. TinyGo scales readings to
// 16 bits.
func (s *supplyADC) Millivolts() (uint32, error) {
	raw := uint32(s.adc.Get())
	return raw * adcReferenceMV * supplyDivider / 0xFFFF, nil
}
