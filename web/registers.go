package web

import (
	"fmt"

	"tofnode/core"
)

// RegisterInfo describes one address for the console.
type RegisterInfo struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	Access    string `json:"access"` // "R" or "RW"
	Persisted bool   `json:"persisted"`
	Min       uint8  `json:"min"`
	Max       uint8  `json:"max"`
	Default   string `json:"default,omitempty"`
}

var registerNames = map[int]string{
	core.RegModelNumber:          "model_number",
	core.RegFirmwareVersion:      "firmware_version",
	core.RegID:                   "id",
	core.RegBaudrate:             "baudrate",
	core.RegReturnDelayTime:      "return_delay_time",
	core.RegStatusReturnLevel:    "status_return_level",
	core.RegMainMinRange:         "main_min_range",
	core.RegMainMaxRange:         "main_max_range",
	core.RegMainQualityThreshold: "main_quality_threshold",
	core.RegMainPeriod:           "main_period",
	core.RegAuxMinRange:          "aux_min_range",
	core.RegAuxMaxRange:          "aux_max_range",
	core.RegAuxQualityThreshold:  "aux_quality_threshold",
	core.RegAuxPeriod:            "aux_period",
	core.RegAutoStart:            "auto_start",
	core.RegMainPolling:          "main_polling",
	core.RegAuxPolling:           "aux_polling",
	core.RegMainEnabled:          "main_enabled",
	core.RegAuxEnabled:           "aux_enabled",
	core.RegWiringStatus:         "wiring_status",
	core.RegMainMCSLR:            "main_measure_count",
	core.RegMainRange:            "main_range",
	core.RegMainRawRange:         "main_raw_range",
	core.RegMainQuality:          "main_quality",
	core.RegAuxMCSLR:             "aux_measure_count",
	core.RegAuxRange:             "aux_range",
	core.RegAuxRawRange:          "aux_raw_range",
	core.RegAuxQuality:           "aux_quality",
	core.RegInputVoltage:         "input_voltage",
	core.RegLock:                 "lock",
}

// RegisterMap lists every address of the table. Bytes of multi-byte
// registers are named after their base register with a byte suffix.
func RegisterMap() []RegisterInfo {
	out := make([]RegisterInfo, 0, core.RegisterSize)
	name := "reserved"
	base := 0
	for addr, spec := range core.Schema {
		if n, ok := registerNames[addr]; ok {
			name, base = n, addr
		} else if addr > core.RegAutoStart && addr < core.PersistedAreaSize {
			name, base = "reserved", addr
		}

		info := RegisterInfo{
			Address:   fmt.Sprintf("0x%02X", addr),
			Name:      name,
			Access:    "R",
			Persisted: spec.Persisted,
			Min:       spec.Min,
			Max:       spec.Max,
		}
		if addr != base {
			info.Name = fmt.Sprintf("%s[%d]", name, addr-base)
		}
		if spec.Writable {
			info.Access = "RW"
		}
		if spec.Persisted {
			info.Default = fmt.Sprintf("0x%02X", spec.Default)
		}
		out = append(out, info)
	}
	return out
}
