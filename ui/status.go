package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/tonic/tts"
	"github.com/dgnsrekt/tonic/tts/session"
)

var (
	playingColor  = lipgloss.Color("#04B575")
	pausedColor   = lipgloss.Color("#EDFF82")
	finishedColor = lipgloss.Color("#888888")
	stoppedColor  = lipgloss.Color("#FF8800")
	errorColor    = lipgloss.Color("#FF5F87")
	mutedColor    = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
)

// StatusDisplay renders the session state for the status area.
type StatusDisplay struct {
	state      tts.StateType
	generating bool
	chunks     int
	total      int
	position   time.Duration
	duration   time.Duration
	stats      tts.RunStats
	err        string
}

// NewStatusDisplay creates an idle display.
func NewStatusDisplay() *StatusDisplay {
	return &StatusDisplay{state: tts.StateIdle}
}

// Update copies a session snapshot. total is the number of segments in
// the run, if known.
func (s *StatusDisplay) Update(st session.Status, total int) {
	s.state = st.State
	s.generating = st.Generating
	s.chunks = st.Chunks
	s.total = total
	s.position = st.Position
	s.duration = st.Total
	s.stats = st.Stats
	if st.Err != nil {
		s.err = st.Err.Error()
	} else {
		s.err = ""
	}
}

// Fraction returns playback position over buffered audio, 0 to 1.
func (s *StatusDisplay) Fraction() float64 {
	if s.duration <= 0 {
		return 0
	}
	return min(float64(s.position)/float64(s.duration), 1)
}

// CompactStatus returns a one-line state summary.
func (s *StatusDisplay) CompactStatus() string {
	if s.state == tts.StateIdle && !s.generating {
		return ""
	}

	style := lipgloss.NewStyle().Foreground(s.stateColor())
	status := style.Render(fmt.Sprintf("%s %s", s.stateIcon(), s.state))

	if s.total > 0 {
		counter := lipgloss.NewStyle().Foreground(mutedColor)
		status += counter.Render(fmt.Sprintf("  %d/%d segments", s.chunks, s.total))
	}
	status += lipgloss.NewStyle().Foreground(mutedColor).
		Render(fmt.Sprintf("  %s / %s", formatDuration(s.position), formatDuration(s.duration)))
	return status
}

// StatsLine summarizes throughput. Missing values render as dashes.
func (s *StatusDisplay) StatsLine() string {
	latency, rtf := "-", "-"
	if s.stats.FirstChunkLatency != nil {
		latency = fmt.Sprintf("%.2fs", s.stats.FirstChunkLatency.Seconds())
	}
	if s.stats.RealTimeFactor != nil {
		rtf = fmt.Sprintf("%.2fx", *s.stats.RealTimeFactor)
	}

	parts := []string{
		"first chunk " + latency,
		"rtf " + rtf,
		fmt.Sprintf("%.0f chars/s", s.stats.CharsPerSecond),
		fmt.Sprintf("%.0f%%", s.stats.Progress),
	}
	return lipgloss.NewStyle().Foreground(mutedColor).Render(strings.Join(parts, " · "))
}

// ErrorLine returns the last run error, truncated to width.
func (s *StatusDisplay) ErrorLine(width int) string {
	if s.err == "" {
		return ""
	}
	msg := truncate.StringWithTail("Error: "+s.err, uint(max(width, 10)), "…")
	return lipgloss.NewStyle().Foreground(errorColor).Render(msg)
}

// IsActive reports whether audio is playing or being generated.
func (s *StatusDisplay) IsActive() bool {
	return s.generating || s.state == tts.StatePlaying
}

func (s *StatusDisplay) stateColor() lipgloss.TerminalColor {
	switch s.state {
	case tts.StatePlaying, tts.StateSeeking:
		return playingColor
	case tts.StatePaused:
		return pausedColor
	case tts.StateFinished:
		return finishedColor
	case tts.StateStopped:
		return stoppedColor
	default:
		return mutedColor
	}
}

func (s *StatusDisplay) stateIcon() string {
	switch s.state {
	case tts.StatePlaying:
		return "▶"
	case tts.StatePaused:
		return "⏸"
	case tts.StateSeeking:
		return "⇢"
	case tts.StateFinished:
		return "■"
	case tts.StateStopped:
		return "◼"
	default:
		return "○"
	}
}

// formatDuration formats d as m:ss.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
