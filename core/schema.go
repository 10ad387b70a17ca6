package core

// RegisterSpec describes one address of the register table. The schema is
// fixed at build time.
type RegisterSpec struct {
	Writable  bool // writable through the external path
	Min       byte
	Max       byte
	Persisted bool // mirrored in the persistent store
	Default   byte // factory value, only meaningful when Persisted
}

func persisted(writable bool, lo, hi, def byte) RegisterSpec {
	return RegisterSpec{Writable: writable, Min: lo, Max: hi, Persisted: true, Default: def}
}

func volatile(writable bool, lo, hi byte) RegisterSpec {
	return RegisterSpec{Writable: writable, Min: lo, Max: hi}
}

// Schema holds the metadata of every register, indexed by address.
var Schema = [RegisterSize]RegisterSpec{
	RegModelNumber:     persisted(false, 0, 255, byte(ModelNumber&0xFF)),
	RegModelNumber + 1: persisted(false, 0, 255, byte(ModelNumber>>8)),
	RegFirmwareVersion: persisted(false, 0, 255, FirmwareVersion),

	RegID:                persisted(true, 0, 253, 1),
	RegBaudrate:          persisted(true, 1, 207, 4),
	RegReturnDelayTime:   persisted(true, 0, 254, 250),
	RegStatusReturnLevel: persisted(true, 0, 2, 2),

	// 30 mm .. 700 mm, quality 250, free-running period
	RegMainMinRange:             persisted(true, 4, 255, 0x1E),
	RegMainMinRange + 1:         persisted(true, 0, 255, 0x00),
	RegMainMaxRange:             persisted(true, 4, 255, 0xBC),
	RegMainMaxRange + 1:         persisted(true, 0, 255, 0x02),
	RegMainQualityThreshold:     persisted(true, 0, 255, 0xFA),
	RegMainQualityThreshold + 1: persisted(true, 0, 255, 0x00),
	RegMainPeriod:               persisted(true, 0, 255, 0),
	RegMainPeriod + 1:           persisted(true, 0, 255, 0),
	RegMainPeriod + 2:           persisted(true, 0, 255, 0),
	RegMainPeriod + 3:           persisted(true, 0, 255, 0),

	RegAuxMinRange:             persisted(true, 4, 255, 0x1E),
	RegAuxMinRange + 1:         persisted(true, 0, 255, 0x00),
	RegAuxMaxRange:             persisted(true, 4, 255, 0xBC),
	RegAuxMaxRange + 1:         persisted(true, 0, 255, 0x02),
	RegAuxQualityThreshold:     persisted(true, 0, 255, 0xFA),
	RegAuxQualityThreshold + 1: persisted(true, 0, 255, 0x00),
	RegAuxPeriod:               persisted(true, 0, 255, 0),
	RegAuxPeriod + 1:           persisted(true, 0, 255, 0),
	RegAuxPeriod + 2:           persisted(true, 0, 255, 0),
	RegAuxPeriod + 3:           persisted(true, 0, 255, 0),

	RegAutoStart:   persisted(true, 0, 1, 1),
	RegMainPolling: persisted(true, 0, 1, 0),
	RegAuxPolling:  persisted(true, 0, 1, 0),

	// Reserved
	0x1E: persisted(false, 0, 255, 0),
	0x1F: persisted(false, 0, 255, 0),

	RegMainEnabled:  volatile(true, 0, 1),
	RegAuxEnabled:   volatile(true, 0, 1),
	RegWiringStatus: volatile(false, 0, 3),

	RegMainMCSLR:        volatile(false, 0, 254),
	RegMainRange:        volatile(false, 0, 255),
	RegMainRange + 1:    volatile(false, 0, 255),
	RegMainRawRange:     volatile(false, 0, 255),
	RegMainRawRange + 1: volatile(false, 0, 255),
	RegMainQuality:      volatile(false, 0, 255),
	RegMainQuality + 1:  volatile(false, 0, 255),

	RegAuxMCSLR:        volatile(false, 0, 254),
	RegAuxRange:        volatile(false, 0, 255),
	RegAuxRange + 1:    volatile(false, 0, 255),
	RegAuxRawRange:     volatile(false, 0, 255),
	RegAuxRawRange + 1: volatile(false, 0, 255),
	RegAuxQuality:      volatile(false, 0, 255),
	RegAuxQuality + 1:  volatile(false, 0, 255),

	RegInputVoltage: volatile(false, 0, 255),
	// Lives in RAM like the live block: a reboot or factory reset unlocks.
	RegLock: volatile(true, 0, 1),
}
