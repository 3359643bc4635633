package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rotation modes for the export writer.
const (
	ModeDaily = "daily"
	ModeSize  = "size"
)

// Config is the complete host-supplied configuration, static for the
// process lifetime.
type Config struct {
	Export      ExportConfig      `json:"export" yaml:"export"`
	Session     SessionConfig     `json:"session" yaml:"session"`
	Enforcement EnforcementConfig `json:"enforcement" yaml:"enforcement"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
	State       StateConfig       `json:"state" yaml:"state"`
}

// ExportConfig controls where and how execution files are written.
type ExportConfig struct {
	Directory  string `json:"directory" yaml:"directory"`
	Prefix     string `json:"prefix" yaml:"prefix"`
	Mode       string `json:"mode" yaml:"mode"` // "daily" or "size"
	MaxFileMB  int    `json:"max_file_mb" yaml:"max_file_mb"`
	Connection string `json:"connection" yaml:"connection"`
}

// SessionConfig controls the session-date bucketing of export files.
type SessionConfig struct {
	Timezone       string `json:"timezone" yaml:"timezone"`
	CutoverEnabled bool   `json:"cutover_enabled" yaml:"cutover_enabled"`
	CutoverHour    int    `json:"cutover_hour" yaml:"cutover_hour"` // 0-23
}

// EnforcementConfig controls the order-blocking gate.
type EnforcementConfig struct {
	BlockingEnabled   bool `json:"blocking_enabled" yaml:"blocking_enabled"`
	GracePeriodSec    int  `json:"grace_period_sec" yaml:"grace_period_sec"` // 0-300, 0 disables
	BypassAutomated   bool `json:"bypass_automated" yaml:"bypass_automated"`
	EmergencyOverride bool `json:"emergency_override" yaml:"emergency_override"`
	MaxPendingShown   int  `json:"max_pending_shown" yaml:"max_pending_shown"`
}

// LoggingConfig switches logging on/off and sets the level.
type LoggingConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Level   string `json:"level" yaml:"level"`
}

// StateConfig locates the persisted validation state. An empty audit path
// disables the sqlite audit history.
type StateConfig struct {
	FilePath    string `json:"file_path" yaml:"file_path"`
	AuditDBPath string `json:"audit_db_path,omitempty" yaml:"audit_db_path,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Export.Directory == "" {
		return fmt.Errorf("export.directory is required")
	}
	if c.Export.Prefix == "" {
		return fmt.Errorf("export.prefix is required")
	}
	if c.Export.Mode != ModeDaily && c.Export.Mode != ModeSize {
		return fmt.Errorf("export.mode must be %q or %q", ModeDaily, ModeSize)
	}
	if c.Export.MaxFileMB < 0 {
		return fmt.Errorf("export.max_file_mb must not be negative")
	}
	if c.Export.Mode == ModeSize && c.Export.MaxFileMB == 0 {
		return fmt.Errorf("export.max_file_mb is required in size rotation mode")
	}
	if c.Session.CutoverHour < 0 || c.Session.CutoverHour > 23 {
		return fmt.Errorf("session.cutover_hour must be between 0 and 23")
	}
	if c.Enforcement.GracePeriodSec < 0 || c.Enforcement.GracePeriodSec > 300 {
		return fmt.Errorf("enforcement.grace_period_sec must be between 0 and 300")
	}
	if c.Enforcement.MaxPendingShown < 0 {
		return fmt.Errorf("enforcement.max_pending_shown must not be negative")
	}
	if c.State.FilePath == "" {
		return fmt.Errorf("state.file_path is required")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Export: ExportConfig{
			Directory:  "./export",
			Prefix:     "Futures",
			Mode:       ModeDaily,
			MaxFileMB:  10,
			Connection: "Sim",
		},
		Session: SessionConfig{
			Timezone:       "America/New_York",
			CutoverEnabled: true,
			CutoverHour:    17,
		},
		Enforcement: EnforcementConfig{
			BlockingEnabled: true,
			GracePeriodSec:  0,
			MaxPendingShown: 10,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
		State: StateConfig{
			FilePath: "./validation_state.txt",
		},
	}
}
