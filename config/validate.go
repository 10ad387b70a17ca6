package config

import (
	"errors"
	"fmt"
)

// Validate checks configuration correctness. It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if cfg.Node.TickMs < 1 || cfg.Node.TickMs > 100 {
		return fmt.Errorf("node.tick_ms must be in 1..100, got %d", cfg.Node.TickMs)
	}

	for _, s := range []struct {
		name string
		cfg  SensorConfig
	}{
		{"main", cfg.Sensors.Main},
		{"aux", cfg.Sensors.Aux},
	} {
		// 7-bit addresses outside the reserved ranges
		if s.cfg.Address < 0x08 || s.cfg.Address > 0x77 {
			return fmt.Errorf("sensors.%s.address 0x%02X is not a valid 7-bit address", s.name, s.cfg.Address)
		}
	}
	if cfg.Sensors.Main.Address == cfg.Sensors.Aux.Address {
		return fmt.Errorf("sensors.main and sensors.aux share address 0x%02X", cfg.Sensors.Main.Address)
	}
	if cfg.Sensors.Main.XShut == "" || cfg.Sensors.Aux.XShut == "" {
		// Without XSHUT both sensors wake at 0x29 and cannot be told apart.
		if cfg.Sensors.Main.XShut != cfg.Sensors.Aux.XShut {
			return errors.New("sensors: xshut must be set for both sensors or for neither")
		}
	}

	if cfg.Supply.IntervalMs < 0 {
		return fmt.Errorf("supply.interval_ms must be positive, got %d", cfg.Supply.IntervalMs)
	}

	if cfg.MQTT.Broker != "" && cfg.MQTT.IntervalMs < 10 {
		return fmt.Errorf("mqtt.interval_ms must be at least 10, got %d", cfg.MQTT.IntervalMs)
	}

	return nil
}
