// Package main provides the entry point for the tonic CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"golang.org/x/text/unicode/norm"

	"github.com/dgnsrekt/tonic/tts"
	"github.com/dgnsrekt/tonic/tts/sentence"
	"github.com/dgnsrekt/tonic/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	markdownExtensions = []string{".md", ".markdown", ".mdown", ".mkdn", ".mkd"}

	configFile  string
	markdown    bool
	example     string
	watch       bool
	noPlay      bool
	outputPath  string
	metricsAddr string
	width       uint
	mouse       bool

	rootCmd = &cobra.Command{
		Use:   "tonic [SOURCE]",
		Short: "Read text aloud as it streams in",
		Long: paragraph(
			fmt.Sprintf("\nRead text aloud on the CLI, %s!", keyword("while it is still being synthesized")),
		),
		Example:          paragraph("tonic notes.txt\ntonic --markdown README.md\ncat chapter.txt | tonic --voice Male --output chapter.wav\ntonic --example quote"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// source provides readable input text.
type source struct {
	reader io.ReadCloser
	URL    string
}

// sourceFromArg parses an argument and creates a readable source for it.
func sourceFromArg(ctx context.Context, arg string) (*source, error) {
	// from stdin
	if arg == "-" {
		return &source{reader: os.Stdin}, nil
	}

	// HTTP(S) URLs:
	if u, err := url.ParseRequestURI(arg); err == nil && strings.Contains(arg, "://") {
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("%s is not a supported protocol", u.Scheme)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("unable to get url: %w", err)
		}
		// consumer of the source is responsible for closing the ReadCloser.
		resp, err := http.DefaultClient.Do(req) //nolint:bodyclose
		if err != nil {
			return nil, fmt.Errorf("unable to get url: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("HTTP status %d", resp.StatusCode)
		}
		return &source{resp.Body, u.String()}, nil
	}

	st, err := os.Stat(arg)
	if err == nil && st.IsDir() {
		return nil, fmt.Errorf("%s is a directory", arg)
	}

	r, err := os.Open(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	u, err := filepath.Abs(arg)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("unable to get absolute path: %w", err)
	}
	return &source{r, u}, nil
}

func isMarkdownFile(name string) bool {
	if name == "" {
		return false
	}
	if u, err := url.Parse(name); err == nil && u.Scheme != "" {
		name = u.Path
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, v := range markdownExtensions {
		if ext == v {
			return true
		}
	}
	return false
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

var frontmatter = regexp.MustCompile(`(?s)\A---\r?\n.*?\r?\n---\r?\n`)

// prepareText normalizes raw input into the text handed to the segmenter.
func prepareText(b []byte, md bool) (string, error) {
	s := norm.NFC.String(string(b))
	s = strings.TrimPrefix(s, "\ufeff")
	if md {
		s = frontmatter.ReplaceAllString(s, "")
		stripped, err := sentence.StripMarkdown(s)
		if err != nil {
			return "", err //nolint:wrapcheck
		}
		s = stripped
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", tts.ErrEmptyContent
	}
	return s, nil
}

func validateOptions(cmd *cobra.Command) error {
	// grab config values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")

	tts.InitializeLogging(viper.GetBool("debug"), viper.GetBool("trace"))

	if example != "" && cmd.Flags().NArg() > 0 {
		return errors.New("cannot use both --example and a source")
	}
	if example != "" {
		if _, err := exampleText(example); err != nil {
			return err
		}
	}
	if watch && noPlay {
		return errors.New("cannot use both --watch and --no-play")
	}
	if outputPath != "" {
		if ext := strings.ToLower(filepath.Ext(outputPath)); ext != "" && ext != ".wav" {
			return fmt.Errorf("'%s' is not a supported output type: use '.wav'", ext)
		}
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))

	// Detect terminal width
	if !cmd.Flags().Changed("width") {
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}

			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// readInput returns the prepared text and, for local files, its path.
func readInput(ctx context.Context, args []string) (string, string, error) {
	if example != "" {
		text, err := exampleText(example)
		return text, "", err
	}

	var src *source
	switch {
	case len(args) > 0:
		s, err := sourceFromArg(ctx, args[0])
		if err != nil {
			return "", "", err
		}
		src = s
	default:
		// if stdin is a pipe then use stdin for input. note that you can
		// also explicitly use a - to read from stdin.
		yes, err := stdinIsPipe()
		if err != nil {
			return "", "", err
		}
		if !yes {
			return "", "", errors.New("missing text source: pass a file, a URL, - for stdin, or --example")
		}
		src = &source{reader: os.Stdin}
	}
	defer src.reader.Close() //nolint:errcheck

	b, err := io.ReadAll(src.reader)
	if err != nil {
		return "", "", fmt.Errorf("unable to read from reader: %w", err)
	}

	text, err := prepareText(b, markdown || isMarkdownFile(src.URL))
	if err != nil {
		return "", "", err
	}

	path := ""
	if src.URL != "" && !isURL(src.URL) {
		path = src.URL
	}
	return text, path, nil
}

func execute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	text, path, err := readInput(ctx, args)
	if err != nil {
		return err
	}

	cfg, err := tts.LoadConfigFromViper()
	if err != nil {
		return err //nolint:wrapcheck
	}
	if noPlay {
		cfg.Device = "mock"
	}

	log.Debug("starting", "engine", cfg.Engine, "voice", cfg.Voice, "chars", len(text), "source", path)

	if !noPlay && term.IsTerminal(int(os.Stdout.Fd())) {
		return runTUI(cfg, text, path)
	}
	if watch {
		log.Warn("--watch is only supported in the TUI")
	}
	return runHeadless(ctx, cfg, text, os.Stdout)
}

func runTUI(cfg tts.Config, text, path string) error {
	// Read environment to get debugging stuff
	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	uiCfg.Text = text
	uiCfg.Voice = cfg.Voice
	uiCfg.Voices = voiceNames(cfg.Voice)
	uiCfg.Quality = cfg.Quality
	uiCfg.Speed = cfg.Speed
	uiCfg.MinChars = cfg.MinChars
	uiCfg.MaxChars = cfg.MaxChars
	uiCfg.EnableMouse = uiCfg.EnableMouse || mouse
	uiCfg.MaxWidth = min(uiCfg.MaxWidth, int(width)) //nolint:gosec
	if outputPath != "" {
		uiCfg.ExportPath = outputPath
	}

	bridge := ui.NewBridge()
	defer bridge.Close()

	p, err := newPipeline(cfg, pipelineOptions{
		callbacks:   bridge.Callbacks(),
		metricsAddr: metricsAddr,
	})
	if err != nil {
		return err
	}
	defer p.shutdown() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		bridge.Loaded(p.loadVoices(ctx, bridge.Progress))
	}()

	if watch && path != "" {
		if err := watchFile(ctx, path, markdown || isMarkdownFile(path), bridge.Reload); err != nil {
			return err
		}
	}

	// Run Bubble Tea program
	if _, err := ui.NewProgram(uiCfg, p.session, bridge, true).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}

	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().Bool("debug", false, "write debug output to the log file")

	rootCmd.Flags().StringP("voice", "v", "", "voice name or alias (Female, Male, F1, M1, ...)")
	rootCmd.Flags().IntP("quality", "q", 0, "denoising steps, 1 to 50")
	rootCmd.Flags().Float64P("speed", "s", 0, "speech rate, 0.8 to 1.2")
	rootCmd.Flags().StringP("engine", "e", "", "synthesizer: mock or command")
	rootCmd.Flags().String("device", "", "audio output: auto, oto or mock")
	rootCmd.Flags().BoolVarP(&markdown, "markdown", "m", false, "treat the source as markdown and read only its prose")
	rootCmd.Flags().StringVar(&example, "example", "", "speak a built-in text: quote, paragraph or random")
	rootCmd.Flags().BoolVarP(&watch, "watch", "w", false, "regenerate when the source file changes (TUI-mode only)")
	rootCmd.Flags().BoolVar(&noPlay, "no-play", false, "generate without playing")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the generated audio to a WAV file")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.Flags().UintVar(&width, "width", 0, "word-wrap at width (TUI-mode only)")
	rootCmd.Flags().BoolVar(&mouse, "mouse", false, "enable mouse wheel (TUI-mode only)")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("voice", rootCmd.Flags().Lookup("voice"))
	_ = viper.BindPFlag("quality", rootCmd.Flags().Lookup("quality"))
	_ = viper.BindPFlag("speed", rootCmd.Flags().Lookup("speed"))
	_ = viper.BindPFlag("engine", rootCmd.Flags().Lookup("engine"))
	_ = viper.BindPFlag("device", rootCmd.Flags().Lookup("device"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	tts.SetDefaults()
	viper.SetDefault("width", 0)

	rootCmd.AddCommand(configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "tonic")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "tonic")}, dirs...)
	}

	if c := os.Getenv("TONIC_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}
	viper.AddConfigPath(".")

	viper.SetConfigName("tonic")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("tonic")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "tonic.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
