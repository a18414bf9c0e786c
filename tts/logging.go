package tts

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// SynthesisMetrics holds timing for one synthesizer call.
type SynthesisMetrics struct {
	RunID          string
	Index          int
	TextLength     int
	SynthesisStart time.Time
	SynthesisEnd   time.Time
	Duration       time.Duration
	AudioDuration  time.Duration
	ErrorOccurred  bool
	ErrorMessage   string
}

var (
	metricsMu      sync.Mutex
	metricsEnabled bool
	metricsHistory []SynthesisMetrics
)

// InitializeLogging sets the global log level.
func InitializeLogging(debugMode bool, traceMode bool) {
	switch {
	case traceMode:
		log.SetLevel(log.DebugLevel) // Trace maps to Debug in charmbracelet/log
		log.SetReportCaller(true)
		log.Debug("logging initialized", "level", "TRACE")
	case debugMode:
		log.SetLevel(log.DebugLevel)
		log.Debug("logging initialized", "level", "DEBUG")
	default:
		log.SetLevel(log.InfoLevel)
	}

	metricsMu.Lock()
	metricsEnabled = debugMode || traceMode
	metricsMu.Unlock()
}

// StartSynthesis starts tracking a synthesizer call.
func StartSynthesis(runID string, index int, text string) *SynthesisMetrics {
	m := &SynthesisMetrics{
		RunID:          runID,
		Index:          index,
		TextLength:     len([]rune(text)),
		SynthesisStart: time.Now(),
	}

	log.Debug("synthesis started", "run", runID, "index", index, "chars", m.TextLength)

	return m
}

// EndSynthesis completes tracking a synthesizer call.
func (m *SynthesisMetrics) EndSynthesis(audio time.Duration, err error) {
	m.SynthesisEnd = time.Now()
	m.Duration = m.SynthesisEnd.Sub(m.SynthesisStart)
	m.AudioDuration = audio

	if err != nil {
		m.ErrorOccurred = true
		m.ErrorMessage = err.Error()
		log.Error("synthesis failed", "run", m.RunID, "index", m.Index, "duration", m.Duration, "error", err)
	} else {
		log.Debug("synthesis completed",
			"run", m.RunID,
			"index", m.Index,
			"chars", m.TextLength,
			"audio", m.AudioDuration,
			"duration", m.Duration,
			"rtf", formatRTF(m.Duration, m.AudioDuration))
	}

	metricsMu.Lock()
	if metricsEnabled {
		metricsHistory = append(metricsHistory, *m)
	}
	metricsMu.Unlock()
}

func formatRTF(elapsed, audio time.Duration) string {
	if audio == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.3f", elapsed.Seconds()/audio.Seconds())
}

// LogCacheHit logs a cache hit event
func LogCacheHit(key string, size int) {
	log.Debug("cache hit", "key", key, "size", size)
}

// LogCacheMiss logs a cache miss event
func LogCacheMiss(key string) {
	log.Debug("cache miss", "key", key)
}

// LogPlaybackEvent logs playback events
func LogPlaybackEvent(event string, keyvals ...interface{}) {
	log.Debug("playback "+event, keyvals...)
}

// SynthesisTotals aggregates the synthesizer calls recorded while debug
// logging is on.
type SynthesisTotals struct {
	Calls   int
	Errors  int
	Elapsed time.Duration
	Audio   time.Duration
}

// Average returns the mean call duration.
func (t SynthesisTotals) Average() time.Duration {
	if t.Calls == 0 {
		return 0
	}
	return t.Elapsed / time.Duration(t.Calls)
}

// RTF formats the overall real-time factor.
func (t SynthesisTotals) RTF() string { return formatRTF(t.Elapsed, t.Audio) }

// SynthesisSummary totals the recorded calls.
func SynthesisSummary() SynthesisTotals {
	metricsMu.Lock()
	defer metricsMu.Unlock()

	var t SynthesisTotals
	for _, m := range metricsHistory {
		t.Calls++
		t.Elapsed += m.Duration
		t.Audio += m.AudioDuration
		if m.ErrorOccurred {
			t.Errors++
		}
	}
	return t
}

// LogSynthesisSummary logs the totals at debug level, if any were recorded.
func LogSynthesisSummary() {
	t := SynthesisSummary()
	if t.Calls == 0 {
		return
	}
	log.Debug("synthesis totals",
		"calls", t.Calls,
		"avg", t.Average().Round(time.Millisecond),
		"audio", t.Audio.Round(time.Millisecond),
		"rtf", t.RTF(),
		"errors", t.Errors)
}
