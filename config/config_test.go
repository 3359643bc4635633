package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Default().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing directory", func(c *Config) { c.Export.Directory = "" }},
		{"missing prefix", func(c *Config) { c.Export.Prefix = "" }},
		{"bad mode", func(c *Config) { c.Export.Mode = "hourly" }},
		{"size mode without ceiling", func(c *Config) { c.Export.Mode = ModeSize; c.Export.MaxFileMB = 0 }},
		{"negative ceiling", func(c *Config) { c.Export.MaxFileMB = -1 }},
		{"cutover hour too large", func(c *Config) { c.Session.CutoverHour = 24 }},
		{"negative cutover hour", func(c *Config) { c.Session.CutoverHour = -1 }},
		{"grace period too long", func(c *Config) { c.Enforcement.GracePeriodSec = 301 }},
		{"negative grace period", func(c *Config) { c.Enforcement.GracePeriodSec = -1 }},
		{"missing state path", func(c *Config) { c.State.FilePath = "" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveLoadYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Export.Prefix = "Roundtrip"
	cfg.Enforcement.GracePeriodSec = 120

	assert.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	assert.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSaveLoadJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.Export.Mode = ModeSize
	cfg.Export.MaxFileMB = 25

	assert.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	assert.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
