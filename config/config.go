// Package config loads the node daemon configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Node    NodeConfig    `yaml:"node"`
	Serial  SerialConfig  `yaml:"serial"`
	I2C     I2CConfig     `yaml:"i2c"`
	Sensors SensorsConfig `yaml:"sensors"`
	Supply  SupplyConfig  `yaml:"supply"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Web     WebConfig     `yaml:"web"`
}

// ---- NODE ----

type NodeConfig struct {
	TickMs     int    `yaml:"tick_ms"`     // scheduler resolution
	EEPROMPath string `yaml:"eeprom_path"` // file backing the persisted registers
}

// ---- SERIAL (optional) ----

type SerialConfig struct {
	Device        string `yaml:"device"` // empty disables the serial link
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
}

// ---- I2C ----

type I2CConfig struct {
	Bus string `yaml:"bus"` // periph bus name, "" = first bus
}

// ---- SENSORS ----

type SensorsConfig struct {
	Main SensorConfig `yaml:"main"`
	Aux  SensorConfig `yaml:"aux"`
}

type SensorConfig struct {
	Address uint8  `yaml:"address"`
	XShut   string `yaml:"xshut"` // GPIO name, optional
	Ready   string `yaml:"ready"` // GPIO1 interrupt line, optional
}

// ---- SUPPLY ----

type SupplyConfig struct {
	FixedMV    uint32 `yaml:"fixed_mv"`    // reported supply without an ADC
	MinMV      uint32 `yaml:"min_mv"`      // undervoltage threshold, 0 disables
	IntervalMs int    `yaml:"interval_ms"` // sampling period
}

// ---- MQTT (optional) ----

type MQTTConfig struct {
	Broker     string `yaml:"broker"` // empty disables MQTT
	ClientID   string `yaml:"client_id"`
	Topic      string `yaml:"topic"` // prefix: <topic>/state, <topic>/request, <topic>/reply
	IntervalMs int    `yaml:"interval_ms"`
}

// ---- WEB (optional) ----

type WebConfig struct {
	Listen string `yaml:"listen"` // empty disables the register console
}

// Load reads, defaults and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data, fills in defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in missing configuration values
func applyDefaults(cfg *Config) {
	if cfg.Node.TickMs == 0 {
		cfg.Node.TickMs = 1
	}
	if cfg.Node.EEPROMPath == "" {
		cfg.Node.EEPROMPath = "tofnode.eeprom"
	}

	if cfg.Serial.ReadTimeoutMs == 0 {
		cfg.Serial.ReadTimeoutMs = 100
	}

	if cfg.Sensors.Main.Address == 0 {
		cfg.Sensors.Main.Address = 0x30
	}
	if cfg.Sensors.Aux.Address == 0 {
		cfg.Sensors.Aux.Address = 0x31
	}

	if cfg.Supply.FixedMV == 0 {
		cfg.Supply.FixedMV = 5000
	}
	if cfg.Supply.IntervalMs == 0 {
		cfg.Supply.IntervalMs = 1000
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "tofnode"
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "tofnode"
	}
	if cfg.MQTT.IntervalMs == 0 {
		cfg.MQTT.IntervalMs = 200
	}
}
