package core

// Register address map. Multi-byte registers are little-endian and the
// constant names the lowest address.
const (
	/* Persisted area */
	RegModelNumber     = 0x00 // 2 bytes
	RegFirmwareVersion = 0x02

	RegID                = 0x03
	RegBaudrate          = 0x04
	RegReturnDelayTime   = 0x05
	RegStatusReturnLevel = 0x06

	RegMainMinRange         = 0x07 // 2 bytes
	RegMainMaxRange         = 0x09 // 2 bytes
	RegMainQualityThreshold = 0x0B // 2 bytes
	RegMainPeriod           = 0x0D // 4 bytes

	RegAuxMinRange         = 0x11 // 2 bytes
	RegAuxMaxRange         = 0x13 // 2 bytes
	RegAuxQualityThreshold = 0x15 // 2 bytes
	RegAuxPeriod           = 0x17 // 4 bytes

	RegAutoStart   = 0x1B
	RegMainPolling = 0x1C
	RegAuxPolling  = 0x1D

	/* Volatile area */
	RegMainEnabled  = 0x20
	RegAuxEnabled   = 0x21
	RegWiringStatus = 0x22
	RegMainMCSLR    = 0x23 // measure count since last read
	RegMainRange    = 0x24 // 2 bytes
	RegMainRawRange = 0x26 // 2 bytes
	RegMainQuality  = 0x28 // 2 bytes
	RegAuxMCSLR     = 0x2A
	RegAuxRange     = 0x2B // 2 bytes
	RegAuxRawRange  = 0x2D // 2 bytes
	RegAuxQuality   = 0x2F // 2 bytes
	RegInputVoltage = 0x31 // units of 40 mV
	RegLock         = 0x32

	// RegisterSize is the number of addressable registers.
	RegisterSize = 0x33

	// PersistedAreaSize covers the low addresses mirrored in the store.
	PersistedAreaSize = 0x20
)

// Device identity written at factory reset.
const (
	ModelNumber     uint16 = 0x14B5
	FirmwareVersion byte   = 1 // one digit main, two digits sub: v0.01
)

// Status bits reported to the bus controller.
const (
	StatusOK                = 0x00
	StatusMainSensorError   = 0x01
	StatusAuxSensorError    = 0x02
	StatusInputVoltageError = 0x04
	StatusRangeError        = 0x08
	StatusChecksumError     = 0x10
	StatusInstructionError  = 0x40
)

// Range register codes. Distances below RangeCodeLimit never reach the
// range register, they are replaced by one of these.
const (
	RangeSensorDead uint16 = 0x00
	RangeNotUpdated uint16 = 0x01
	RangeTooClose   uint16 = 0x02
	RangeNoObstacle uint16 = 0x03
	RangeCodeLimit  uint16 = 0x04
)

// Magic marker proving the persisted area was initialised at least once.
// It lives outside the register address space.
const MagicOffset = 60

var magic = [4]byte{35, 78, 149, 39}

// PersistentStoreSize is the smallest store able to hold the persisted area
// and the magic marker.
const PersistentStoreSize = MagicOffset + len(magic)

// BaudFromCode converts a baudrate register value to bits per second.
func BaudFromCode(code byte) uint32 {
	return 2000000 / (uint32(code) + 1)
}

// MillivoltsToRegister converts a supply reading to the input voltage
// register unit, saturating at 255.
func MillivoltsToRegister(mv uint32) byte {
	v := mv / 40
	if v > 255 {
		return 255
	}
	return byte(v)
}
