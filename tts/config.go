package tts

import (
	"fmt"
	"strings"
	"time"
)

// Config contains all pipeline configuration options.
type Config struct {
	// Synthesis settings
	Engine  string  `yaml:"engine" env:"TONIC_ENGINE" envDefault:"mock"`
	Voice   string  `yaml:"voice" env:"TONIC_VOICE" envDefault:"Female"`
	Quality int     `yaml:"quality" env:"TONIC_QUALITY" envDefault:"5"`
	Speed   float64 `yaml:"speed" env:"TONIC_SPEED" envDefault:"1.0"`

	// Segmentation settings
	MinChars int `yaml:"min_chars" env:"TONIC_MIN_CHARS" envDefault:"100"`
	MaxChars int `yaml:"max_chars" env:"TONIC_MAX_CHARS" envDefault:"1000"`

	// Playback settings
	Device          string        `yaml:"device" env:"TONIC_DEVICE" envDefault:"auto"`
	SampleRate      int           `yaml:"sample_rate" env:"TONIC_SAMPLE_RATE" envDefault:"44100"`
	Volume          float64       `yaml:"volume" env:"TONIC_VOLUME" envDefault:"1.0"`
	StartupLead     time.Duration `yaml:"startup_lead" env:"TONIC_STARTUP_LEAD" envDefault:"100ms"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"TONIC_REFRESH_INTERVAL" envDefault:"50ms"`

	// Component configurations
	Voices  VoicesConfig  `yaml:"voices"`
	Command CommandConfig `yaml:"command"`
	Mock    MockConfig    `yaml:"mock"`
	Cache   CacheConfig   `yaml:"cache"`
}

// VoicesConfig tells the voice loader where embeddings live.
type VoicesConfig struct {
	URL string `yaml:"url" env:"TONIC_VOICES_URL" envDefault:"https://huggingface.co/onnx-community/Supertonic-TTS-ONNX/resolve/main/voices/"`
	// Dir takes precedence over URL when set.
	Dir     string        `yaml:"dir" env:"TONIC_VOICES_DIR"`
	Timeout time.Duration `yaml:"timeout" env:"TONIC_VOICES_TIMEOUT" envDefault:"60s"`
}

// CommandConfig contains settings for the external synthesizer process.
type CommandConfig struct {
	Command           string        `yaml:"command" env:"TONIC_COMMAND"`
	SampleRate        int           `yaml:"sample_rate" env:"TONIC_COMMAND_SAMPLE_RATE" envDefault:"44100"`
	Timeout           time.Duration `yaml:"timeout" env:"TONIC_COMMAND_TIMEOUT" envDefault:"2m"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"TONIC_COMMAND_RPM" envDefault:"0"`
	// FallbackAfter switches to the tone synthesizer after this many
	// consecutive failures. 0 disables the fallback.
	FallbackAfter int `yaml:"fallback_after" env:"TONIC_COMMAND_FALLBACK_AFTER" envDefault:"0"`
	// Env is added to the model process environment as KEY=VALUE pairs.
	Env []string `yaml:"env" env:"TONIC_COMMAND_ENV" envSeparator:","`
}

// MockConfig contains settings for the built-in tone synthesizer.
type MockConfig struct {
	SampleRate      int           `yaml:"sample_rate" env:"TONIC_MOCK_SAMPLE_RATE" envDefault:"44100"`
	GenerationDelay time.Duration `yaml:"generation_delay" env:"TONIC_MOCK_GENERATION_DELAY" envDefault:"150ms"`
	WordsPerMinute  int           `yaml:"words_per_minute" env:"TONIC_MOCK_WORDS_PER_MINUTE" envDefault:"170"`
}

// CacheConfig controls the on-disk synthesis cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled" env:"TONIC_CACHE_ENABLED" envDefault:"true"`
	Dir     string `yaml:"dir" env:"TONIC_CACHE_DIR"`
	MaxSize int64  `yaml:"max_size" env:"TONIC_CACHE_MAX_SIZE" envDefault:"268435456"`
	// MaxAge drops entries older than this when the cache opens. 0 keeps
	// everything until the size limit evicts it.
	MaxAge time.Duration `yaml:"max_age" env:"TONIC_CACHE_MAX_AGE" envDefault:"720h"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine:  "mock",
		Voice:   "Female",
		Quality: DefaultQuality,
		Speed:   DefaultSpeed,

		MinChars: MinChars,
		MaxChars: MaxChars,

		Device:          "auto",
		SampleRate:      SampleRate,
		Volume:          1.0,
		StartupLead:     StartupLead,
		RefreshInterval: RefreshInterval,

		Voices:  DefaultVoicesConfig(),
		Command: DefaultCommandConfig(),
		Mock:    DefaultMockConfig(),
		Cache:   DefaultCacheConfig(),
	}
}

// DefaultVoicesConfig returns the default voice source.
func DefaultVoicesConfig() VoicesConfig {
	return VoicesConfig{
		URL:     "https://huggingface.co/onnx-community/Supertonic-TTS-ONNX/resolve/main/voices/",
		Timeout: 60 * time.Second,
	}
}

// DefaultCommandConfig returns default external synthesizer configuration.
func DefaultCommandConfig() CommandConfig {
	return CommandConfig{
		SampleRate: SampleRate,
		Timeout:    2 * time.Minute,
	}
}

// DefaultMockConfig returns default tone synthesizer configuration.
func DefaultMockConfig() MockConfig {
	return MockConfig{
		SampleRate:      SampleRate,
		GenerationDelay: 150 * time.Millisecond,
		WordsPerMinute:  170,
	}
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: true,
		MaxSize: 256 << 20,
		MaxAge:  30 * 24 * time.Hour,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	validEngines := []string{"mock", "command"}
	engineValid := false
	for _, e := range validEngines {
		if strings.EqualFold(c.Engine, e) {
			engineValid = true
			c.Engine = strings.ToLower(c.Engine)
			break
		}
	}
	if !engineValid {
		return fmt.Errorf("invalid engine '%s': must be one of %v", c.Engine, validEngines)
	}

	validDevices := []string{"auto", "oto", "mock"}
	deviceValid := false
	for _, d := range validDevices {
		if strings.EqualFold(c.Device, d) {
			deviceValid = true
			c.Device = strings.ToLower(c.Device)
			break
		}
	}
	if !deviceValid {
		return fmt.Errorf("invalid device '%s': must be one of %v", c.Device, validDevices)
	}

	if strings.TrimSpace(c.Voice) == "" {
		return fmt.Errorf("voice cannot be empty")
	}

	if err := ValidateQuality(c.Quality); err != nil {
		return err
	}
	if err := ValidateSpeed(c.Speed); err != nil {
		return err
	}

	if c.MinChars < 1 || c.MinChars > c.MaxChars {
		return fmt.Errorf("min_chars must be between 1 and max_chars (%d), got %d", c.MaxChars, c.MinChars)
	}

	if c.Volume < 0.0 || c.Volume > MaxVolume {
		return fmt.Errorf("volume must be between 0.0 and %.1f, got %f", MaxVolume, c.Volume)
	}

	validSampleRates := []int{16000, 22050, 24000, 44100, 48000}
	sampleRateValid := false
	for _, sr := range validSampleRates {
		if c.SampleRate == sr {
			sampleRateValid = true
			break
		}
	}
	if !sampleRateValid {
		return fmt.Errorf("%w %d: must be one of %v", ErrInvalidSampleRate, c.SampleRate, validSampleRates)
	}

	if c.StartupLead < 0 || c.StartupLead > 5*time.Second {
		return fmt.Errorf("startup_lead must be between 0s and 5s, got %v", c.StartupLead)
	}

	if c.RefreshInterval < 10*time.Millisecond || c.RefreshInterval > time.Second {
		return fmt.Errorf("refresh_interval must be between 10ms and 1s, got %v", c.RefreshInterval)
	}

	if err := c.Voices.Validate(); err != nil {
		return fmt.Errorf("voices config: %w", err)
	}

	switch c.Engine {
	case "command":
		if err := c.Command.Validate(); err != nil {
			return fmt.Errorf("command config: %w", err)
		}
	case "mock":
		if err := c.Mock.Validate(); err != nil {
			return fmt.Errorf("mock config: %w", err)
		}
	}

	return nil
}

// Validate checks if the voice source is usable.
func (c *VoicesConfig) Validate() error {
	if c.URL == "" && c.Dir == "" {
		return fmt.Errorf("either url or dir must be set")
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1 second, got %v", c.Timeout)
	}
	return nil
}

// Validate checks if the external synthesizer configuration is valid.
func (c *CommandConfig) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if c.SampleRate < 8000 || c.SampleRate > 96000 {
		return fmt.Errorf("sample_rate must be between 8000 and 96000, got %d", c.SampleRate)
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1 second, got %v", c.Timeout)
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must be >= 0, got %d", c.RequestsPerMinute)
	}
	if c.FallbackAfter < 0 {
		return fmt.Errorf("fallback_after must be >= 0, got %d", c.FallbackAfter)
	}
	return nil
}

// Validate checks if the Mock configuration is valid.
func (c *MockConfig) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 96000 {
		return fmt.Errorf("sample_rate must be between 8000 and 96000, got %d", c.SampleRate)
	}
	if c.WordsPerMinute < 50 || c.WordsPerMinute > 500 {
		return fmt.Errorf("words_per_minute must be between 50 and 500, got %d", c.WordsPerMinute)
	}
	if c.GenerationDelay < 0 {
		return fmt.Errorf("generation_delay cannot be negative, got %v", c.GenerationDelay)
	}
	return nil
}
