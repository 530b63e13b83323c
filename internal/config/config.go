package config

// Configuration loading and validation for s7dip

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tturner/s7dip/internal/errors"
	"github.com/tturner/s7dip/internal/s7"
)

// DeviceConfig identifies the PLC to talk to
type DeviceConfig struct {
	IP        string `yaml:"ip"`
	Port      int    `yaml:"port"`
	Rack      uint8  `yaml:"rack"`
	Slot      uint8  `yaml:"slot"`
	PDUSize   uint16 `yaml:"pdu_size"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// Target represents a named address range on the PLC
type Target struct {
	Name     string   `yaml:"name"`
	Area     string   `yaml:"area"`      // "inputs", "outputs", "merkers", "db", "counters", "timers"
	DBNumber uint16   `yaml:"db,omitempty"`
	Start    uint32   `yaml:"start"`
	DataType string   `yaml:"data_type"` // "bit", "byte", "char", "word", "int", "dword", "dint", "real"
	Count    uint32   `yaml:"count"`
	Tags     []string `yaml:"tags,omitempty"`
}

// PollConfig controls the periodic collector
type PollConfig struct {
	IntervalMs int      `yaml:"interval_ms"`
	Database   string   `yaml:"database"`
	Targets    []string `yaml:"targets,omitempty"` // target names; empty means all
}

// LoggingConfig controls log verbosity and output
type LoggingConfig struct {
	Level   string `yaml:"level,omitempty"` // "silent","error","info","verbose","debug"
	LogFile string `yaml:"log_file,omitempty"`
}

// Config represents the client configuration
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Targets []Target      `yaml:"targets"`
	Poll    PollConfig    `yaml:"poll,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// CreateDefaultConfig returns a configuration with sensible defaults
func CreateDefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			IP:        "192.168.0.1",
			Port:      102,
			Rack:      0,
			Slot:      2,
			PDUSize:   480,
			TimeoutMs: 5000,
		},
		Targets: []Target{
			{
				Name:     "scratch_merkers",
				Area:     "merkers",
				Start:    0,
				DataType: "byte",
				Count:    8,
			},
			{
				Name:     "process_values",
				Area:     "db",
				DBNumber: 1,
				Start:    0,
				DataType: "word",
				Count:    4,
			},
		},
		Poll: PollConfig{
			IntervalMs: 1000,
			Database:   "s7dip.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// WriteDefaultConfig writes a default configuration file to the given path
func WriteDefaultConfig(path string) error {
	cfg := CreateDefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadConfig loads a configuration from a YAML file
// If the file doesn't exist and autoCreate is true, it will create a default config file
func LoadConfig(path string, autoCreate bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if autoCreate {
				// Create default config
				if err := WriteDefaultConfig(path); err != nil {
					return nil, fmt.Errorf("create default config: %w", err)
				}
				// Read the newly created file
				data, err = os.ReadFile(path)
				if err != nil {
					return nil, errors.WrapConfigError(
						fmt.Errorf("read created config file: %w", err),
						path,
					)
				}
			} else {
				// Return user-friendly error
				return nil, errors.WrapConfigError(
					fmt.Errorf("config file not found: %s", path),
					path,
				)
			}
		} else {
			return nil, errors.WrapConfigError(
				fmt.Errorf("read config file: %w", err),
				path,
			)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	// Apply defaults
	if cfg.Device.Port == 0 {
		cfg.Device.Port = 102
	}
	if cfg.Device.PDUSize == 0 {
		cfg.Device.PDUSize = 480
	}
	if cfg.Device.TimeoutMs == 0 {
		cfg.Device.TimeoutMs = 5000
	}
	if cfg.Poll.IntervalMs == 0 {
		cfg.Poll.IntervalMs = 1000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	// Validate
	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// ValidateConfig validates a configuration
func ValidateConfig(cfg *Config) error {
	if cfg.Device.IP == "" {
		return fmt.Errorf("device.ip is required")
	}
	if cfg.Device.Port <= 0 || cfg.Device.Port > 65535 {
		return fmt.Errorf("device.port must be in 1..65535, got %d", cfg.Device.Port)
	}
	if cfg.Device.Rack > 7 {
		return fmt.Errorf("device.rack must be in 0..7, got %d", cfg.Device.Rack)
	}
	if cfg.Device.Slot > 31 {
		return fmt.Errorf("device.slot must be in 0..31, got %d", cfg.Device.Slot)
	}
	if cfg.Device.TimeoutMs < 0 {
		return fmt.Errorf("device.timeout_ms must be >= 0")
	}

	if len(cfg.Targets) == 0 {
		return fmt.Errorf("at least one target must be configured")
	}

	names := make(map[string]bool, len(cfg.Targets))
	for i, target := range cfg.Targets {
		if err := validateTarget(target, i); err != nil {
			return err
		}
		if names[target.Name] {
			return fmt.Errorf("targets[%d]: duplicate target name '%s'", i, target.Name)
		}
		names[target.Name] = true
	}

	if cfg.Poll.IntervalMs < 0 {
		return fmt.Errorf("poll.interval_ms must be >= 0")
	}
	for i, name := range cfg.Poll.Targets {
		if !names[name] {
			return fmt.Errorf("poll.targets[%d]: unknown target '%s'", i, name)
		}
	}

	if err := validateLogLevel(cfg.Logging.Level); err != nil {
		return err
	}

	return nil
}

// validateTarget validates a single target
func validateTarget(target Target, index int) error {
	if target.Name == "" {
		return fmt.Errorf("targets[%d]: name is required", index)
	}

	area, err := ParseArea(target.Area)
	if err != nil {
		return fmt.Errorf("targets[%d]: %w", index, err)
	}
	if area == s7.AreaDataBlocks && target.DBNumber == 0 {
		return fmt.Errorf("targets[%d]: db is required for data block targets", index)
	}
	if area != s7.AreaDataBlocks && target.DBNumber != 0 {
		return fmt.Errorf("targets[%d]: db is only valid for data block targets", index)
	}

	if _, err := ParseDataType(target.DataType); err != nil {
		return fmt.Errorf("targets[%d]: %w", index, err)
	}

	if target.Count == 0 {
		return fmt.Errorf("targets[%d]: count must be > 0", index)
	}

	return nil
}

func validateLogLevel(level string) error {
	switch level {
	case "", "silent", "error", "info", "verbose", "debug":
		return nil
	}
	return fmt.Errorf("logging.level must be one of silent, error, info, verbose, debug; got '%s'", level)
}

// ParseArea converts a config area name into its protocol code
func ParseArea(name string) (s7.Area, error) {
	switch strings.ToLower(name) {
	case "inputs", "pe":
		return s7.AreaInputs, nil
	case "outputs", "pa":
		return s7.AreaOutputs, nil
	case "merkers", "flags", "m":
		return s7.AreaMerkers, nil
	case "db", "datablocks":
		return s7.AreaDataBlocks, nil
	case "counters", "c":
		return s7.AreaCounters, nil
	case "timers", "t":
		return s7.AreaTimers, nil
	}
	return 0, fmt.Errorf("invalid area '%s'", name)
}

// ParseDataType converts a config data type name into its protocol code
func ParseDataType(name string) (s7.DataType, error) {
	switch strings.ToLower(name) {
	case "bit", "bool":
		return s7.DataTypeBit, nil
	case "byte":
		return s7.DataTypeByte, nil
	case "char":
		return s7.DataTypeChar, nil
	case "word":
		return s7.DataTypeWord, nil
	case "int":
		return s7.DataTypeInt, nil
	case "dword":
		return s7.DataTypeDWord, nil
	case "dint":
		return s7.DataTypeDInt, nil
	case "real":
		return s7.DataTypeReal, nil
	}
	return 0, fmt.Errorf("invalid data type '%s'", name)
}

// ParseLogLevel converts a config log level name into a numeric level
// Returns info for unknown values
func ParseLogLevel(level string) int {
	switch strings.ToLower(level) {
	case "silent":
		return 0
	case "error":
		return 1
	case "info":
		return 2
	case "verbose":
		return 3
	case "debug":
		return 4
	}
	return 2
}
