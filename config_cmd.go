package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# synthesizer: mock or command
engine: "mock"
# voice name or alias (Female, Male, F1, M1, F2, M2)
voice: "Female"
# denoising steps, 1 to 50
quality: 5
# speech rate, 0.8 to 1.2
speed: 1.0

# segmentation bounds in characters
min_chars: 100
max_chars: 1000

# audio output: auto, oto, or mock
device: "auto"
sample_rate: 44100
# output gain (0.0 mutes, 1.0 is unchanged, up to 2.0; loud peaks are clipped)
volume: 1.0
# delay before the first chunk starts
startup_lead: "100ms"
# how often the playhead is polled
refresh_interval: "50ms"

# mouse support (TUI-mode only)
mouse: false

voices:
  url: "https://huggingface.co/onnx-community/Supertonic-TTS-ONNX/resolve/main/voices/"
  # read embeddings from a local directory instead
  # dir: "~/.local/share/tonic/voices"
  timeout: "60s"

# external synthesizer process
command:
  # receives a JSON request on stdin, writes float32 samples to stdout
  # command: "python3 synth.py --model ~/models/supertonic"
  sample_rate: 44100
  timeout: "2m"
  # 0 disables rate limiting
  requests_per_minute: 0
  # switch to the mock synthesizer after this many failures in a row, 0 to disable
  fallback_after: 0
  # extra environment for the model process
  # env: ["OMP_NUM_THREADS=4"]

# built-in tone synthesizer
mock:
  sample_rate: 44100
  generation_delay: "150ms"
  words_per_minute: 170

cache:
  enabled: true
  # dir: "~/.cache/tonic/audio"
  max_size: 268435456
  # entries older than this are dropped at startup, 0 keeps them
  max_age: "720h"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the tonic config file",
	Long:    paragraph(fmt.Sprintf("\n%s the tonic config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("tonic config\ntonic config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("tonic", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
