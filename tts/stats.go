package tts

import (
	"sync"
	"time"
)

// RunStats is a snapshot of a generation run's throughput and latency.
type RunStats struct {
	// FirstChunkLatency is nil until the first event arrives.
	FirstChunkLatency *time.Duration
	Elapsed           time.Duration
	CharsPerSecond    float64
	// RealTimeFactor is nil while no audio has been produced.
	RealTimeFactor *float64
	TotalAudio     time.Duration
	Position       time.Duration
	Progress       float64
	Segments       int
	Chars          int
}

// StatsTracker derives RunStats from the stream of events of one run.
type StatsTracker struct {
	mu     sync.RWMutex
	start  time.Time
	stats  RunStats
	frozen bool
}

// NewStatsTracker creates a tracker for a run starting now.
func NewStatsTracker() *StatsTracker {
	return &StatsTracker{start: time.Now()}
}

// Reset clears all counters for a new run that started at start.
func (t *StatsTracker) Reset(start time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start = start
	t.stats = RunStats{}
	t.frozen = false
}

// Observe folds one event into the stats and returns the new snapshot.
func (t *StatsTracker) Observe(ev StreamEvent) RunStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return t.snapshotLocked()
	}

	elapsed := ev.EmittedAt.Sub(t.start)
	if elapsed < 0 {
		elapsed = 0
	}

	if t.stats.FirstChunkLatency == nil {
		latency := elapsed
		t.stats.FirstChunkLatency = &latency
	}

	t.stats.Elapsed = elapsed
	t.stats.TotalAudio += ev.Chunk.Duration()
	t.stats.Segments++
	t.stats.Chars += len([]rune(ev.Text))

	if secs := elapsed.Seconds(); secs > 0 {
		t.stats.CharsPerSecond = float64(t.stats.Chars) / secs
	}

	if t.stats.TotalAudio > 0 {
		rtf := elapsed.Seconds() / t.stats.TotalAudio.Seconds()
		t.stats.RealTimeFactor = &rtf
	}

	if ev.Total > 0 {
		t.stats.Progress = float64(ev.Index) / float64(ev.Total) * 100
	}

	return t.snapshotLocked()
}

// SetPosition records the current playback position.
func (t *StatsTracker) SetPosition(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Position = d
}

// Freeze stops further updates from events. Used when a run fails so the
// last known values stay on screen.
func (t *StatsTracker) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen = true
}

// Snapshot returns a copy of the current stats.
func (t *StatsTracker) Snapshot() RunStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

func (t *StatsTracker) snapshotLocked() RunStats {
	s := t.stats
	if s.FirstChunkLatency != nil {
		v := *s.FirstChunkLatency
		s.FirstChunkLatency = &v
	}
	if s.RealTimeFactor != nil {
		v := *s.RealTimeFactor
		s.RealTimeFactor = &v
	}
	return s
}
