// Package audio buffers synthesized chunks and schedules them for gapless
// playback on an output device.
package audio

import (
	"sync"
	"time"

	"github.com/dgnsrekt/tonic/tts"
)

// StoreItem wraps a chunk with its place on the run's timeline.
type StoreItem struct {
	Chunk tts.AudioChunk
	Index int           // Arrival order, 0-based
	Start time.Duration // Cumulative duration of all earlier chunks
	Added time.Time
}

// End returns the timeline position at which the chunk finishes.
func (it StoreItem) End() time.Duration {
	return it.Start + it.Chunk.Duration()
}

// Store is an append-only list of chunks in arrival order. It is cleared at
// the start of every run and safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	items    []StoreItem
	samples  int
	duration time.Duration
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Append adds a chunk to the end of the store. The store takes ownership of
// the chunk's samples; callers must not modify them afterwards.
func (s *Store) Append(chunk tts.AudioChunk) StoreItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := StoreItem{
		Chunk: chunk,
		Index: len(s.items),
		Start: s.duration,
		Added: time.Now(),
	}
	s.items = append(s.items, item)
	s.samples += len(chunk.Samples)
	s.duration += chunk.Duration()
	return item
}

// Reset discards all chunks.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.samples = 0
	s.duration = 0
}

// Len returns the number of chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// TotalSamples returns the sum of every chunk's sample count.
func (s *Store) TotalSamples() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.samples
}

// Duration returns the summed duration of all chunks.
func (s *Store) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duration
}

// Items returns a copy of the store's items.
func (s *Store) Items() []StoreItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]StoreItem(nil), s.items...)
}

// Walk calls fn for each chunk in order with its cumulative start and end
// times. Iteration stops when fn returns false. Chunks appended while
// walking are not visited.
func (s *Store) Walk(fn func(i int, c tts.AudioChunk, start, end time.Duration) bool) {
	for _, it := range s.Items() {
		if !fn(it.Index, it.Chunk, it.Start, it.End()) {
			return
		}
	}
}

// Concat returns every chunk's samples joined into one sequence at
// sampleRate. Chunks at another rate are resampled.
func (s *Store) Concat(sampleRate int) []float32 {
	items := s.Items()

	var out []float32
	for _, it := range items {
		out = append(out, Resample(it.Chunk.Samples, it.Chunk.SampleRate, sampleRate)...)
	}
	return out
}

// Resample converts samples from one rate to another by linear
// interpolation. It returns samples unchanged when the rates match.
func Resample(samples []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}

	n := int(int64(len(samples)) * int64(to) / int64(from))
	out := make([]float32, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}
