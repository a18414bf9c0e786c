package tts

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// LoadConfigFromViper loads pipeline configuration from Viper.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	// Synthesis settings
	if viper.IsSet("engine") {
		cfg.Engine = viper.GetString("engine")
	}
	if viper.IsSet("voice") {
		cfg.Voice = viper.GetString("voice")
	}
	if viper.IsSet("quality") {
		cfg.Quality = viper.GetInt("quality")
	}
	if viper.IsSet("speed") {
		cfg.Speed = viper.GetFloat64("speed")
	}

	// Segmentation settings
	if viper.IsSet("min_chars") {
		cfg.MinChars = viper.GetInt("min_chars")
	}
	if viper.IsSet("max_chars") {
		cfg.MaxChars = viper.GetInt("max_chars")
	}

	// Playback settings
	if viper.IsSet("device") {
		cfg.Device = viper.GetString("device")
	}
	if viper.IsSet("sample_rate") {
		cfg.SampleRate = viper.GetInt("sample_rate")
	}
	if viper.IsSet("volume") {
		cfg.Volume = viper.GetFloat64("volume")
	}
	cfg.StartupLead = getDuration("startup_lead", cfg.StartupLead)
	cfg.RefreshInterval = getDuration("refresh_interval", cfg.RefreshInterval)

	cfg.Voices = loadVoicesConfig()
	cfg.Command = loadCommandConfig()
	cfg.Mock = loadMockConfig()
	cfg.Cache = loadCacheConfig()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// getDuration reads a duration key, keeping the fallback on parse errors.
func getDuration(key string, fallback time.Duration) time.Duration {
	if !viper.IsSet(key) {
		return fallback
	}
	if d, err := time.ParseDuration(viper.GetString(key)); err == nil {
		return d
	}
	return fallback
}

func loadVoicesConfig() VoicesConfig {
	cfg := DefaultVoicesConfig()

	if viper.IsSet("voices.url") {
		cfg.URL = viper.GetString("voices.url")
	}
	if viper.IsSet("voices.dir") {
		cfg.Dir = viper.GetString("voices.dir")
	}
	cfg.Timeout = getDuration("voices.timeout", cfg.Timeout)

	return cfg
}

func loadCommandConfig() CommandConfig {
	cfg := DefaultCommandConfig()

	if viper.IsSet("command.command") {
		cfg.Command = viper.GetString("command.command")
	}
	if viper.IsSet("command.sample_rate") {
		cfg.SampleRate = viper.GetInt("command.sample_rate")
	}
	if viper.IsSet("command.requests_per_minute") {
		cfg.RequestsPerMinute = viper.GetInt("command.requests_per_minute")
	}
	if viper.IsSet("command.env") {
		cfg.Env = viper.GetStringSlice("command.env")
	}
	if viper.IsSet("command.fallback_after") {
		cfg.FallbackAfter = viper.GetInt("command.fallback_after")
	}
	cfg.Timeout = getDuration("command.timeout", cfg.Timeout)

	return cfg
}

func loadMockConfig() MockConfig {
	cfg := DefaultMockConfig()

	if viper.IsSet("mock.sample_rate") {
		cfg.SampleRate = viper.GetInt("mock.sample_rate")
	}
	if viper.IsSet("mock.words_per_minute") {
		cfg.WordsPerMinute = viper.GetInt("mock.words_per_minute")
	}
	cfg.GenerationDelay = getDuration("mock.generation_delay", cfg.GenerationDelay)

	return cfg
}

func loadCacheConfig() CacheConfig {
	cfg := DefaultCacheConfig()

	if viper.IsSet("cache.enabled") {
		cfg.Enabled = viper.GetBool("cache.enabled")
	}
	if viper.IsSet("cache.dir") {
		cfg.Dir = viper.GetString("cache.dir")
	}
	cfg.MaxAge = getDuration("cache.max_age", cfg.MaxAge)
	if viper.IsSet("cache.max_size") {
		cfg.MaxSize = viper.GetInt64("cache.max_size")
	}

	return cfg
}

// SetDefaults sets default values in Viper for the pipeline configuration.
func SetDefaults() {
	defaults := DefaultConfig()

	viper.SetDefault("engine", defaults.Engine)
	viper.SetDefault("voice", defaults.Voice)
	viper.SetDefault("quality", defaults.Quality)
	viper.SetDefault("speed", defaults.Speed)

	viper.SetDefault("min_chars", defaults.MinChars)
	viper.SetDefault("max_chars", defaults.MaxChars)

	viper.SetDefault("device", defaults.Device)
	viper.SetDefault("sample_rate", defaults.SampleRate)
	viper.SetDefault("volume", defaults.Volume)
	viper.SetDefault("startup_lead", defaults.StartupLead.String())
	viper.SetDefault("refresh_interval", defaults.RefreshInterval.String())

	viper.SetDefault("voices.url", defaults.Voices.URL)
	viper.SetDefault("voices.timeout", defaults.Voices.Timeout.String())

	viper.SetDefault("command.sample_rate", defaults.Command.SampleRate)
	viper.SetDefault("command.timeout", defaults.Command.Timeout.String())
	viper.SetDefault("command.requests_per_minute", defaults.Command.RequestsPerMinute)

	viper.SetDefault("mock.sample_rate", defaults.Mock.SampleRate)
	viper.SetDefault("mock.generation_delay", defaults.Mock.GenerationDelay.String())
	viper.SetDefault("mock.words_per_minute", defaults.Mock.WordsPerMinute)

	viper.SetDefault("cache.enabled", defaults.Cache.Enabled)
	viper.SetDefault("cache.max_size", defaults.Cache.MaxSize)
	viper.SetDefault("cache.max_age", defaults.Cache.MaxAge.String())
}
