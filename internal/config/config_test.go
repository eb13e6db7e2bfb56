package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "mixdeck.toml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Render.BitrateKbps != 192 || cfg.Render.SampleRate != 44100 {
		t.Errorf("Expected 192 kbit/s at 44100 Hz, got %d at %d", cfg.Render.BitrateKbps, cfg.Render.SampleRate)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected the default file to be written: %v", err)
	}

	again, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Reloading defaults failed: %v", err)
	}
	if again.Database.Path != cfg.Database.Path || again.BPMDelay() != 30*time.Second {
		t.Errorf("Expected the saved defaults to load back, got %+v", again)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixdeck.toml")
	content := `
[database]
path = "/tmp/catalogue.db"

[render]
sample_rate = 44100
bitrate_kbps = 320
block_frames = 1024
workers = 2

[background]
wait_timeout_seconds = 2
bpm_delay_seconds = 0

[logging]
level = "debug"
format = "json"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Database.Path != "/tmp/catalogue.db" {
		t.Errorf("Expected database path override, got %s", cfg.Database.Path)
	}
	if cfg.Render.SampleRate != 44100 || cfg.Render.BitrateKbps != 320 || cfg.Render.Workers != 2 {
		t.Errorf("Expected render overrides, got %+v", cfg.Render)
	}
	if cfg.BackgroundWait() != 2*time.Second || cfg.BPMDelay() != 0 {
		t.Errorf("Expected background overrides, got %+v", cfg.Background)
	}
	if cfg.Library.DefaultCrossfadeMs != 4000 {
		t.Errorf("Expected unset keys to keep defaults, got crossfade %d", cfg.Library.DefaultCrossfadeMs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }, "database path"},
		{"no formats", func(c *Config) { c.Library.SupportedFormats = nil }, "supported audio format"},
		{"48 kHz output", func(c *Config) { c.Render.SampleRate = 48000 }, "sample rate"},
		{"zero sample rate", func(c *Config) { c.Render.SampleRate = 0 }, "sample rate"},
		{"odd bitrate", func(c *Config) { c.Render.BitrateKbps = 200 }, "bitrate"},
		{"zero workers", func(c *Config) { c.Render.Workers = 0 }, "render workers"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("Expected defaults to validate, got %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	if got := PathFromEnv(); got != DefaultPath {
		t.Errorf("Expected %s, got %s", DefaultPath, got)
	}
	t.Setenv(EnvConfigPath, "/etc/mixdeck.toml")
	if got := PathFromEnv(); got != "/etc/mixdeck.toml" {
		t.Errorf("Expected /etc/mixdeck.toml, got %s", got)
	}
}
