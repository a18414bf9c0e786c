package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/dgnsrekt/tonic/tts"
	"github.com/dgnsrekt/tonic/tts/audio"
)

var (
	currentSegmentStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFDF5")).
				Background(lipgloss.Color("#6124DF"))
	pendingSegmentStyle = lipgloss.NewStyle().Foreground(mutedColor)
)

// CurrentSegment returns the 0-based index of the buffered chunk playing at
// pos, or -1 when nothing is buffered.
func CurrentSegment(store *audio.Store, pos time.Duration) int {
	current := -1
	store.Walk(func(i int, _ tts.AudioChunk, start, end time.Duration) bool {
		current = i
		return pos >= end
	})
	return current
}

// RenderSegments wraps each segment to width. The segment at current is
// highlighted and segments at or past generated are dimmed.
func RenderSegments(segments []tts.Segment, current, generated, width int) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteString("\n\n")
		}
		text := wordwrap.String(seg.Text, max(width, 20))
		switch {
		case i == current:
			lines := strings.Split(text, "\n")
			for j, l := range lines {
				lines[j] = currentSegmentStyle.Render(l)
			}
			b.WriteString(strings.Join(lines, "\n"))
		case i >= generated:
			b.WriteString(pendingSegmentStyle.Render(text))
		default:
			b.WriteString(text)
		}
	}
	return b.String()
}

// window returns at most height lines of s, keeping the line at focus in
// view.
func window(s string, focus, height int) string {
	lines := strings.Split(s, "\n")
	if height <= 0 || len(lines) <= height {
		return s
	}
	start := min(max(focus-height/3, 0), len(lines)-height)
	return strings.Join(lines[start:start+height], "\n")
}

// lineOfSegment returns the first rendered line of segment i.
func lineOfSegment(segments []tts.Segment, i, width int) int {
	line := 0
	for j := 0; j < i && j < len(segments); j++ {
		line += strings.Count(wordwrap.String(segments[j].Text, max(width, 20)), "\n") + 2
	}
	return line
}
