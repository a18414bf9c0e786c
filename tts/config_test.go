package tts

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// TestDefaultConfig tests that default configuration is valid.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}

	if cfg.Engine != "mock" {
		t.Errorf("Default engine should be mock, got %s", cfg.Engine)
	}
	if cfg.Quality != 5 {
		t.Errorf("Default quality should be 5, got %d", cfg.Quality)
	}
	if cfg.MinChars != 100 || cfg.MaxChars != 1000 {
		t.Errorf("Default segment bounds = %d/%d, want 100/1000", cfg.MinChars, cfg.MaxChars)
	}
	if cfg.SampleRate != 44100 {
		t.Errorf("Default sample rate = %d, want 44100", cfg.SampleRate)
	}
}

// TestConfigValidation tests configuration validation.
func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "engine is case insensitive",
			modify:  func(c *Config) { c.Engine = "MOCK" },
			wantErr: false,
		},
		{
			name:    "invalid engine",
			modify:  func(c *Config) { c.Engine = "invalid" },
			wantErr: true,
			errMsg:  "invalid engine",
		},
		{
			name:    "invalid device",
			modify:  func(c *Config) { c.Device = "alsa" },
			wantErr: true,
			errMsg:  "invalid device",
		},
		{
			name:    "empty voice",
			modify:  func(c *Config) { c.Voice = "  " },
			wantErr: true,
			errMsg:  "voice cannot be empty",
		},
		{
			name:    "quality too low",
			modify:  func(c *Config) { c.Quality = 0 },
			wantErr: true,
			errMsg:  "quality must be between",
		},
		{
			name:    "quality too high",
			modify:  func(c *Config) { c.Quality = 51 },
			wantErr: true,
			errMsg:  "quality must be between",
		},
		{
			name:    "speed too slow",
			modify:  func(c *Config) { c.Speed = 0.5 },
			wantErr: true,
			errMsg:  "speed must be between",
		},
		{
			name:    "speed too fast",
			modify:  func(c *Config) { c.Speed = 1.5 },
			wantErr: true,
			errMsg:  "speed must be between",
		},
		{
			name:    "min above max",
			modify:  func(c *Config) { c.MinChars = 2000 },
			wantErr: true,
			errMsg:  "min_chars must be between",
		},
		{
			name:    "volume too high",
			modify:  func(c *Config) { c.Volume = 3.0 },
			wantErr: true,
			errMsg:  "volume must be between",
		},
		{
			name:    "invalid sample rate",
			modify:  func(c *Config) { c.SampleRate = 12345 },
			wantErr: true,
			errMsg:  "invalid sample rate",
		},
		{
			name:    "refresh too fast",
			modify:  func(c *Config) { c.RefreshInterval = time.Millisecond },
			wantErr: true,
			errMsg:  "refresh_interval must be between",
		},
		{
			name:    "no voice source",
			modify:  func(c *Config) { c.Voices.URL = "" },
			wantErr: true,
			errMsg:  "either url or dir",
		},
		{
			name:    "command engine without command",
			modify:  func(c *Config) { c.Engine = "command" },
			wantErr: true,
			errMsg:  "command cannot be empty",
		},
		{
			name: "command engine with command",
			modify: func(c *Config) {
				c.Engine = "command"
				c.Command.Command = "supertonic --stdin"
			},
			wantErr: false,
		},
		{
			name:    "mock words per minute",
			modify:  func(c *Config) { c.Mock.WordsPerMinute = 10 },
			wantErr: true,
			errMsg:  "words_per_minute must be between",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.errMsg)
			}
		})
	}
}

// resetViper clears global viper state for the duration of a test.
func resetViper(t *testing.T, values map[string]interface{}) {
	t.Helper()
	viper.Reset()
	for key, value := range values {
		viper.Set(key, value)
	}
	t.Cleanup(viper.Reset)
}

// TestLoadConfigFromViper tests loading configuration from Viper.
func TestLoadConfigFromViper(t *testing.T) {
	resetViper(t, map[string]interface{}{
		"voice":                       "Male",
		"quality":                     12,
		"speed":                       1.1,
		"min_chars":                   50,
		"volume":                      0.9,
		"engine":                      "command",
		"command.command":             "synth --raw",
		"command.requests_per_minute": 30,
		"mock.words_per_minute":       200,
		"cache.enabled":               false,
	})

	cfg, err := LoadConfigFromViper()
	if err != nil {
		t.Fatalf("LoadConfigFromViper() error = %v", err)
	}

	if cfg.Voice != "Male" {
		t.Errorf("Voice = %v, want Male", cfg.Voice)
	}
	if cfg.Quality != 12 {
		t.Errorf("Quality = %v, want 12", cfg.Quality)
	}
	if cfg.Speed != 1.1 {
		t.Errorf("Speed = %v, want 1.1", cfg.Speed)
	}
	if cfg.MinChars != 50 {
		t.Errorf("MinChars = %v, want 50", cfg.MinChars)
	}
	if cfg.Volume != 0.9 {
		t.Errorf("Volume = %v, want 0.9", cfg.Volume)
	}
	if cfg.Command.Command != "synth --raw" {
		t.Errorf("Command.Command = %v, want synth --raw", cfg.Command.Command)
	}
	if cfg.Command.RequestsPerMinute != 30 {
		t.Errorf("Command.RequestsPerMinute = %v, want 30", cfg.Command.RequestsPerMinute)
	}
	if cfg.Mock.WordsPerMinute != 200 {
		t.Errorf("Mock.WordsPerMinute = %v, want 200", cfg.Mock.WordsPerMinute)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache should be disabled")
	}
}

// TestLoadConfigDurationParsing tests duration parsing from Viper.
func TestLoadConfigDurationParsing(t *testing.T) {
	resetViper(t, map[string]interface{}{
		"startup_lead":          "250ms",
		"refresh_interval":      "100ms",
		"voices.timeout":        "not-a-duration",
		"mock.generation_delay": "0s",
	})

	cfg, err := LoadConfigFromViper()
	if err != nil {
		t.Fatalf("LoadConfigFromViper() error = %v", err)
	}

	if cfg.StartupLead != 250*time.Millisecond {
		t.Errorf("StartupLead = %v, want 250ms", cfg.StartupLead)
	}
	if cfg.RefreshInterval != 100*time.Millisecond {
		t.Errorf("RefreshInterval = %v, want 100ms", cfg.RefreshInterval)
	}
	if cfg.Voices.Timeout != 60*time.Second {
		t.Errorf("Voices.Timeout = %v, want default 60s", cfg.Voices.Timeout)
	}
	if cfg.Mock.GenerationDelay != 0 {
		t.Errorf("Mock.GenerationDelay = %v, want 0", cfg.Mock.GenerationDelay)
	}
}

// TestLoadConfigInvalid tests that invalid values are rejected.
func TestLoadConfigInvalid(t *testing.T) {
	resetViper(t, map[string]interface{}{"quality": 99})

	_, err := LoadConfigFromViper()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("LoadConfigFromViper() error = %v, want ErrInvalidConfig", err)
	}
	if !errors.Is(err, ErrInvalidQuality) {
		t.Errorf("error should also wrap ErrInvalidQuality: %v", err)
	}
}

// TestSetDefaults tests that SetDefaults properly sets Viper defaults.
func TestSetDefaults(t *testing.T) {
	resetViper(t, nil)

	SetDefaults()

	if viper.GetString("engine") != "mock" {
		t.Errorf("engine = %v, want mock", viper.GetString("engine"))
	}
	if viper.GetInt("quality") != 5 {
		t.Errorf("quality = %v, want 5", viper.GetInt("quality"))
	}
	if viper.GetInt("sample_rate") != 44100 {
		t.Errorf("sample_rate = %v, want 44100", viper.GetInt("sample_rate"))
	}
	if !viper.IsSet("voices.url") {
		t.Error("voices.url default not set")
	}

	cfg, err := LoadConfigFromViper()
	if err != nil {
		t.Fatalf("LoadConfigFromViper() with defaults error = %v", err)
	}
	if cfg.RefreshInterval != RefreshInterval {
		t.Errorf("RefreshInterval = %v, want %v", cfg.RefreshInterval, RefreshInterval)
	}
}
