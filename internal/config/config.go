package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvConfigPath names the environment variable that points at the config file.
const EnvConfigPath = "MIXDECK_CONFIG"

// DefaultPath is used when EnvConfigPath is unset.
const DefaultPath = "./mixdeck.toml"

// OutputSampleRate is the only rate mixes are rendered at.
const OutputSampleRate = 44100

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Library    LibraryConfig    `toml:"library"`
	Render     RenderConfig     `toml:"render"`
	Background BackgroundConfig `toml:"background"`
	Navigation NavigationConfig `toml:"navigation"`
	Logging    LoggingConfig    `toml:"logging"`
	UI         UIConfig         `toml:"ui"`
}

// DatabaseConfig contains database-related configuration
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LibraryConfig controls scanning and auto-mix defaults.
type LibraryConfig struct {
	SupportedFormats      []string `toml:"supported_formats"`
	ScanWorkers           int      `toml:"scan_workers"`
	WatchForChanges       bool     `toml:"watch_for_changes"`
	ScanOnStartup         bool     `toml:"scan_on_startup"`
	RescanIntervalMinutes int      `toml:"rescan_interval_minutes"`
	DefaultCrossfadeMs    int64    `toml:"default_crossfade_ms"`
	DefaultFadeMs         int64    `toml:"default_fade_ms"`
}

// RenderConfig controls the offline mix renderer.
type RenderConfig struct {
	SampleRate  int    `toml:"sample_rate"`
	BitrateKbps int    `toml:"bitrate_kbps"`
	BlockFrames int    `toml:"block_frames"`
	Workers     int    `toml:"workers"`
	Artist      string `toml:"artist"`
	OutputDir   string `toml:"output_dir"`
}

// BackgroundConfig controls the background task service.
type BackgroundConfig struct {
	Enabled            bool `toml:"enabled"`
	WaitTimeoutSeconds int  `toml:"wait_timeout_seconds"`
	BPMDelaySeconds    int  `toml:"bpm_delay_seconds"`
	AnalyseBPM         bool `toml:"analyse_bpm"`
}

// NavigationConfig controls the browse tree.
type NavigationConfig struct {
	PageCacheTTLSeconds int `toml:"page_cache_ttl_seconds"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// UIConfig is carried for front ends; the engine does not read it.
type UIConfig struct {
	ThemesFolder string `toml:"themes_folder"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "./mixdeck.db",
		},
		Library: LibraryConfig{
			SupportedFormats:      []string{".mp3", ".flac", ".wav"},
			ScanWorkers:           0,
			WatchForChanges:       false,
			ScanOnStartup:         false,
			RescanIntervalMinutes: 60,
			DefaultCrossfadeMs:    4000,
			DefaultFadeMs:         0,
		},
		Render: RenderConfig{
			SampleRate:  OutputSampleRate,
			BitrateKbps: 192,
			BlockFrames: 4096,
			Workers:     1,
			Artist:      "mixdeck",
			OutputDir:   ".",
		},
		Background: BackgroundConfig{
			Enabled:            true,
			WaitTimeoutSeconds: 5,
			BPMDelaySeconds:    30,
			AnalyseBPM:         true,
		},
		Navigation: NavigationConfig{
			PageCacheTTLSeconds: 300,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   false,
		},
		UI: UIConfig{
			ThemesFolder: "./themes",
		},
	}
}

// PathFromEnv returns the config path named by MIXDECK_CONFIG, or DefaultPath.
func PathFromEnv() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultPath
}

// LoadConfig loads configuration from a TOML file, writing the defaults there
// first when the file does not exist.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# mixdeck configuration
# Library, render and background settings for the mixdeck engine.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	if len(c.Library.SupportedFormats) == 0 {
		return fmt.Errorf("at least one supported audio format must be specified")
	}
	if c.Library.ScanWorkers < 0 {
		return fmt.Errorf("scan workers cannot be negative")
	}
	if c.Library.DefaultCrossfadeMs < 0 || c.Library.DefaultFadeMs < 0 {
		return fmt.Errorf("crossfade and fade lengths cannot be negative")
	}

	if c.Render.SampleRate != OutputSampleRate {
		return fmt.Errorf("render sample rate must be %d Hz, got %d", OutputSampleRate, c.Render.SampleRate)
	}
	validBitrates := map[int]bool{
		32: true, 40: true, 48: true, 56: true, 64: true, 80: true, 96: true,
		112: true, 128: true, 160: true, 192: true, 224: true, 256: true, 320: true,
	}
	if !validBitrates[c.Render.BitrateKbps] {
		return fmt.Errorf("invalid mp3 bitrate: %d kbit/s", c.Render.BitrateKbps)
	}
	if c.Render.BlockFrames < 64 {
		return fmt.Errorf("render block must be at least 64 frames")
	}
	if c.Render.Workers < 1 {
		return fmt.Errorf("render workers must be at least 1")
	}

	if c.Background.WaitTimeoutSeconds < 1 {
		return fmt.Errorf("background wait timeout must be at least 1 second")
	}
	if c.Background.BPMDelaySeconds < 0 {
		return fmt.Errorf("bpm delay cannot be negative")
	}

	if c.Navigation.PageCacheTTLSeconds < 1 {
		return fmt.Errorf("page cache ttl must be at least 1 second")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// IsFormatSupported checks if an audio format is supported
func (c *Config) IsFormatSupported(format string) bool {
	for _, supported := range c.Library.SupportedFormats {
		if supported == format {
			return true
		}
	}
	return false
}

// RescanInterval is how often the background rescan revisits a folder.
func (c *Config) RescanInterval() time.Duration {
	return time.Duration(c.Library.RescanIntervalMinutes) * time.Minute
}

// BackgroundWait is the background worker's idle timeout.
func (c *Config) BackgroundWait() time.Duration {
	return time.Duration(c.Background.WaitTimeoutSeconds) * time.Second
}

// BPMDelay is how long tempo analysis waits after start-up.
func (c *Config) BPMDelay() time.Duration {
	return time.Duration(c.Background.BPMDelaySeconds) * time.Second
}

// PageCacheTTL is how long the navigation tree keeps an unused page.
func (c *Config) PageCacheTTL() time.Duration {
	return time.Duration(c.Navigation.PageCacheTTLSeconds) * time.Second
}
