package core

// VoltageSource reads the module's supply voltage.
type VoltageSource interface {
	Millivolts() (uint32, error)
}

// FixedVoltage is a VoltageSource for boards without a supply divider.
type FixedVoltage uint32

// Millivolts returns the fixed value.
func (v FixedVoltage) Millivolts() (uint32, error) {
	return uint32(v), nil
}

// SupplyMonitor publishes the supply voltage into RegInputVoltage and flags
// StatusInputVoltageError while it is below the configured minimum or
// cannot be read.
type SupplyMonitor struct {
	regs  *RegisterTable
	src   VoltageSource
	minMV uint32
	fault bool
}

// NewSupplyMonitor creates a monitor. minMV = 0 disables the undervoltage
// check.
func NewSupplyMonitor(regs *RegisterTable, src VoltageSource, minMV uint32) *SupplyMonitor {
	return &SupplyMonitor{regs: regs, src: src, minMV: minMV}
}

// Sample reads the source once.
func (m *SupplyMonitor) Sample() {
	mv, err := m.src.Millivolts()
	if err != nil {
		m.fault = true
		m.regs.PutByteInternal(RegInputVoltage, 0)
		return
	}
	m.fault = mv < m.minMV
	m.regs.PutByteInternal(RegInputVoltage, MillivoltsToRegister(mv))
}

// Status returns StatusInputVoltageError or 0.
func (m *SupplyMonitor) Status() uint8 {
	if m.fault {
		return StatusInputVoltageError
	}
	return 0
}
