// Package ui provides the interactive player for tonic.
package ui

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/dgnsrekt/tonic/tts"
	"github.com/dgnsrekt/tonic/tts/audio"
	"github.com/dgnsrekt/tonic/tts/sentence"
	"github.com/dgnsrekt/tonic/tts/session"
	"github.com/dgnsrekt/tonic/tts/voices"
)

const statusMessageTimeout = 3 * time.Second

// Player is the part of a session the UI drives.
type Player interface {
	Generate(text, voice string) error
	Stop()
	TogglePlay() error
	Seek(fraction float64) error
	SeekBy(delta time.Duration) error
	SetTuning(quality int, speed float64) error
	Export(path string) (string, error)
	Status() session.Status
	Store() *audio.Store
}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#5A56E0")).
			Padding(0, 1)
	helpStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B6FFE4"))
	appStyle     = lipgloss.NewStyle().Padding(1, 2)
)

// NewProgram returns a Bubble Tea program driving player. When loading is
// true the model waits for bridge.Loaded before generating.
func NewProgram(cfg Config, player Player, bridge *Bridge, loading bool) *tea.Program {
	log.Debug("starting player UI", "voice", cfg.Voice, "loading", loading)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, player, bridge, loading), opts...)
}

type model struct {
	cfg    Config
	player Player
	bridge *Bridge

	segments []tts.Segment
	status   *StatusDisplay
	speeds   *tts.SpeedController

	spinner  spinner.Model
	progress progress.Model

	loading    bool
	loadPct    int
	generating bool

	width  int
	height int

	message  string
	fatalErr error
}

func newModel(cfg Config, player Player, bridge *Bridge, loading bool) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(playingColor)

	m := model{
		cfg:      cfg,
		player:   player,
		bridge:   bridge,
		status:   NewStatusDisplay(),
		speeds:   tts.NewSpeedController(cfg.Speed),
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		loading:  loading,
		width:    cfg.MaxWidth,
	}

	segments, err := sentence.Segment(cfg.Text, cfg.MinChars, cfg.MaxChars)
	if err != nil {
		m.fatalErr = err
	}
	m.segments = segments
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.bridge.listen(), tick()}
	if !m.loading && m.fatalErr == nil {
		cmds = append(cmds, func() tea.Msg { return startMsg{} })
	}
	return tea.Batch(cmds...)
}

type startMsg struct{}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = min(msg.Width-4, m.cfg.MaxWidth)
		m.height = msg.Height
		m.progress.Width = max(m.width-16, 10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case startMsg:
		return m, m.generate()

	case loadProgressMsg:
		m.loadPct = int(msg)
		return m, m.bridge.listen()

	case loadDoneMsg:
		m.loading = false
		if msg.err != nil {
			m.fatalErr = tts.NewTTSError(msg.err, "voices", "load").WithSeverity(tts.SeverityCritical)
			return m, m.bridge.listen()
		}
		return m, tea.Batch(m.bridge.listen(), m.generate())

	case reloadMsg:
		segments, err := sentence.Segment(string(msg), m.cfg.MinChars, m.cfg.MaxChars)
		if err != nil {
			m.message = err.Error()
			return m, m.bridge.listen()
		}
		m.cfg.Text = string(msg)
		m.segments = segments
		var cmd tea.Cmd
		if !m.loading {
			cmd = m.generate()
			if m.message == "" && m.fatalErr == nil {
				m.message = "Source changed, regenerating"
			}
		}
		return m, tea.Batch(m.bridge.listen(), cmd)

	case chunkMsg:
		m.refresh()
		return m, m.bridge.listen()

	case doneMsg:
		m.generating = false
		m.refresh()
		var cmd tea.Cmd
		switch {
		case msg.Err != nil:
			cmd = m.report(msg.Err, "stream", "synthesize")
		case msg.Stopped:
			m.message = fmt.Sprintf("Stopped after %d segments", msg.Stats.Segments)
			cmd = waitForStatusMessageTimeout(statusMessageTimeout)
		default:
			m.message = fmt.Sprintf("Generated %d segments, %s of audio", msg.Stats.Segments, formatDuration(msg.Stats.TotalAudio))
			cmd = waitForStatusMessageTimeout(statusMessageTimeout)
		}
		return m, tea.Batch(m.bridge.listen(), cmd)

	case positionMsg, stateMsg:
		m.refresh()
		return m, m.bridge.listen()

	case playbackErrMsg:
		return m, tea.Batch(m.bridge.listen(), m.report(msg.err, "audio", "play"))

	case exportedMsg:
		m.message = fmt.Sprintf("Saved %s (%s)", msg.path, humanize.Bytes(uint64(msg.size)))
		return m, waitForStatusMessageTimeout(statusMessageTimeout)

	case errMsg:
		return m, m.report(msg.err, "player", "command")

	case statusMessageTimeoutMsg:
		m.message = ""
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m *model) refresh() {
	m.status.Update(m.player.Status(), len(m.segments))
}

func (m *model) generate() tea.Cmd {
	if err := m.player.Generate(m.cfg.Text, m.cfg.Voice); err != nil {
		return m.report(err, "session", "generate")
	}
	m.generating = true
	m.message = ""
	m.refresh()
	return nil
}

// report logs err with where it happened and shows it. Errors the player
// cannot recover from replace the view; warnings clear after a timeout.
func (m *model) report(err error, component, action string) tea.Cmd {
	var terr *tts.TTSError
	if !errors.As(err, &terr) {
		terr = tts.NewTTSError(err, component, action)
	}

	fields := append([]interface{}{"error", terr.Err}, terr.Fields()...)
	if terr.Severity <= tts.SeverityWarning {
		log.Warn("player error", fields...)
	} else {
		log.Error("player error", fields...)
	}

	if !terr.IsRecoverable() {
		m.fatalErr = terr
		return nil
	}
	m.message = terr.Error()
	if terr.Severity <= tts.SeverityWarning {
		return waitForStatusMessageTimeout(statusMessageTimeout)
	}
	return nil
}

// retune applies new synthesis settings for the next generation.
func (m *model) retune(quality int, speed float64) tea.Cmd {
	if err := m.player.SetTuning(quality, speed); err != nil {
		return m.report(err, "session", "tune")
	}
	m.cfg.Quality, m.cfg.Speed = quality, speed
	m.message = fmt.Sprintf("Quality %d, speed %.2fx. Press r to regenerate", quality, speed)
	return waitForStatusMessageTimeout(statusMessageTimeout)
}

// nextVoice cycles through the loaded voices.
func (m *model) nextVoice() tea.Cmd {
	if len(m.cfg.Voices) == 0 {
		return nil
	}
	i := slices.Index(m.cfg.Voices, voices.ID(m.cfg.Voice))
	m.cfg.Voice = m.cfg.Voices[(i+1)%len(m.cfg.Voices)]
	m.message = fmt.Sprintf("Voice %s. Press r to regenerate", m.cfg.Voice)
	return waitForStatusMessageTimeout(statusMessageTimeout)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	}
	if m.loading {
		return m, nil
	}

	var err error
	switch key {
	case " ", "space":
		err = m.player.TogglePlay()
	case "left", "h":
		err = m.player.SeekBy(-m.cfg.SeekStep)
	case "right", "l":
		err = m.player.SeekBy(m.cfg.SeekStep)
	case "0", "1", "2", "3", "4", "5", "6", "7", "8", "9":
		err = m.player.Seek(float64(key[0]-'0') / 10)
	case "s":
		m.player.Stop()
	case "d":
		return m, exportCmd(m.player, m.cfg.ExportPath)
	case "r":
		return m, m.generate()
	case "+", "=":
		speed, serr := m.speeds.Faster()
		if serr != nil {
			m.message = serr.Error()
			return m, nil
		}
		return m, m.retune(m.cfg.Quality, speed)
	case "-":
		speed, serr := m.speeds.Slower()
		if serr != nil {
			m.message = serr.Error()
			return m, nil
		}
		return m, m.retune(m.cfg.Quality, speed)
	case "]":
		return m, m.retune(min(m.cfg.Quality+1, tts.MaxQuality), m.cfg.Speed)
	case "[":
		return m, m.retune(max(m.cfg.Quality-1, tts.MinQuality), m.cfg.Speed)
	case "v":
		return m, m.nextVoice()
	default:
		return m, nil
	}

	m.refresh()
	if err != nil {
		return m, m.report(err, "playback", key)
	}
	return m, nil
}

func exportCmd(p Player, path string) tea.Cmd {
	return func() tea.Msg {
		written, err := p.Export(path)
		if err != nil {
			terr := tts.NewTTSError(err, "export", "save").WithContext("dir", path)
			if errors.Is(err, tts.ErrNothingToExport) {
				terr = tts.NewTTSError(errors.New("nothing to export yet"), "export", "save").
					WithSeverity(tts.SeverityWarning)
			}
			return errMsg{terr}
		}
		var size int64
		if info, err := os.Stat(written); err == nil {
			size = info.Size()
		}
		return exportedMsg{path: written, size: size}
	}
}

func (m model) View() string {
	if m.fatalErr != nil {
		return appStyle.Render(errorView(m.fatalErr))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("tonic"))
	b.WriteString(helpStyle.Render(fmt.Sprintf("  %s · quality %d · speed %.2fx", m.cfg.Voice, m.cfg.Quality, m.cfg.Speed)))
	b.WriteString("\n\n")

	if m.loading {
		b.WriteString(m.spinner.View() + " Loading voices\n")
		b.WriteString(m.progress.ViewAs(float64(m.loadPct) / 100))
		b.WriteString(fmt.Sprintf(" %3d%%\n", m.loadPct))
		return appStyle.Render(b.String())
	}

	if m.generating {
		b.WriteString(m.spinner.View() + " Generating\n")
	} else {
		b.WriteString("\n")
	}
	b.WriteString(m.progress.ViewAs(m.status.Fraction()))
	b.WriteString("\n")
	if line := m.status.CompactStatus(); line != "" {
		b.WriteString(line + "\n")
	}
	if m.cfg.ShowStats {
		b.WriteString(m.status.StatsLine() + "\n")
	}
	if line := m.status.ErrorLine(m.width); line != "" {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")

	current := -1
	if m.status.state != tts.StateIdle {
		current = CurrentSegment(m.player.Store(), m.status.position)
	}
	text := RenderSegments(m.segments, current, m.status.chunks, m.width)
	if m.height > 0 {
		text = window(text, lineOfSegment(m.segments, current, m.width), m.height-14)
	}
	b.WriteString(text)
	b.WriteString("\n\n")

	if m.message != "" {
		b.WriteString(messageStyle.Render(m.message) + "\n")
	}
	b.WriteString(helpStyle.Render("space play/pause · ←/→ seek · 0-9 jump · -/+ speed · [/] quality · v voice · s stop · d export · r regenerate · q quit"))

	return appStyle.Render(b.String())
}

func errorView(err error) string {
	return lipgloss.NewStyle().Foreground(errorColor).Render("Error: "+err.Error()) +
		"\n\n" + helpStyle.Render("Press any key to exit")
}
