package ui

import "time"

// Config contains TUI-specific configuration. Fields with env tags are
// parsed with caarlos0/env; the rest are filled in by the CLI.
type Config struct {
	EnableMouse bool          `env:"TONIC_MOUSE"`
	MaxWidth    int           `env:"TONIC_WIDTH" envDefault:"100"`
	SeekStep    time.Duration `env:"TONIC_SEEK_STEP" envDefault:"5s"`
	ExportPath  string        `env:"TONIC_EXPORT_PATH" envDefault:"."`
	ShowStats   bool          `env:"TONIC_SHOW_STATS" envDefault:"true"`

	// Text to speak and how to speak it.
	Text     string
	Voice    string
	Voices   []string // Loaded voices the v key cycles through
	Quality  int
	Speed    float64
	MinChars int
	MaxChars int
}
